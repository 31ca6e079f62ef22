package indexer

import (
	"net/http"

	"github.com/calehh/mvpr-app/metrics"
	"github.com/gin-gonic/gin"
)

type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
}

// NewService serves indexed governance data on listenAddr. With m set it
// also serves /metrics.
func NewService(listenAddr string, indexer *ChainIndexer, m *metrics.Metrics) *Service {
	r := gin.Default()
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.POST("/getMembers", s.handleGetMembers)
	s.engine.POST("/getRoles", s.handleGetRoles)
	s.engine.GET("/status", s.handleStatus)
	if m != nil {
		s.engine.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return s
}

func (s *Service) Start() error {
	return s.engine.Run(s.listenAddr)
}

type ProposalInfo struct {
	Proposal Proposal `json:"proposal"`
	Votes    []Vote   `json:"votes"`
}

type GetProposalsReq struct {
	ProposalId      *uint64 `json:"proposalId"`
	ProposerAddress string  `json:"proposer"`
	Status          uint64  `json:"status"`
	Kind            uint64  `json:"kind"`
	Page            int     `json:"page"`
	PageSize        int     `json:"pageSize"`
}

type GetProposalResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     uint64         `json:"total"`
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var response GetProposalResponse
	response.Proposals = make([]ProposalInfo, 0)
	var requestData GetProposalsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.ProposalId != nil {
		proposal, err := s.indexer.getProposalById(*requestData.ProposalId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		proposalInfo, err := s.proposalInfo(proposal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, proposalInfo)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	filter := ProposalFilter{
		Proposer: requestData.ProposerAddress,
		Status:   requestData.Status,
		Kind:     requestData.Kind,
	}
	proposals, total, err := s.indexer.getProposals(filter, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Total = total
	for _, proposal := range proposals {
		proposalInfo, err := s.proposalInfo(proposal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, proposalInfo)
	}
	c.JSON(http.StatusOK, response)
}

func (s *Service) proposalInfo(proposal Proposal) (ProposalInfo, error) {
	id := proposal.ProposalId
	votes, _, err := s.indexer.getVotes(&id, "", 0, maxPageSize)
	if err != nil {
		return ProposalInfo{}, err
	}
	return ProposalInfo{Proposal: proposal, Votes: votes}, nil
}

type GetVotesReq struct {
	ProposalId *uint64 `json:"proposalId"`
	Voter      string  `json:"voter"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
}

type GetVotesResponse struct {
	Votes []Vote `json:"votes"`
	Total uint64 `json:"total"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var requestData GetVotesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if requestData.ProposalId == nil && requestData.Voter == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposalId or voter is required"})
		return
	}
	votes, total, err := s.indexer.getVotes(requestData.ProposalId, requestData.Voter, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if votes == nil {
		votes = make([]Vote, 0)
	}
	c.JSON(http.StatusOK, GetVotesResponse{Votes: votes, Total: total})
}

type GetMembersReq struct {
	Address     string `json:"address"`
	OnlyMembers bool   `json:"onlyMembers"`
	Page        int    `json:"page"`
	PageSize    int    `json:"pageSize"`
}

type GetMembersResponse struct {
	Members []Member `json:"members"`
	Total   uint64   `json:"total"`
}

func (s *Service) handleGetMembers(c *gin.Context) {
	var requestData GetMembersReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if requestData.Address != "" {
		m, err := s.indexer.member(requestData.Address)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, GetMembersResponse{Members: []Member{*m}, Total: 1})
		return
	}
	members, total, err := s.indexer.getMembers(requestData.OnlyMembers, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if members == nil {
		members = make([]Member, 0)
	}
	c.JSON(http.StatusOK, GetMembersResponse{Members: members, Total: total})
}

type GetRolesReq struct {
	Address  string `json:"address"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

func (s *Service) handleGetRoles(c *gin.Context) {
	var requestData GetRolesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	changes, err := s.indexer.getRoleChanges(requestData.Address, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if changes == nil {
		changes = make([]RoleChange, 0)
	}
	c.JSON(http.StatusOK, gin.H{"roles": changes})
}

func (s *Service) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"height": s.indexer.Height - 1})
}
