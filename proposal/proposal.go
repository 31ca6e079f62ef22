package proposal

import (
	"github.com/calehh/mvpr-app/types"
	"github.com/ethereum/go-ethereum/common"
)

// Status is the lifecycle part shared by internal and external proposals.
type Status struct {
	State      types.ProposalState `json:"state"`
	StageIndex uint64              `json:"stageIndex"`
	CreatedAt  uint64              `json:"createdAt"`
	ResolvedAt uint64              `json:"resolvedAt,omitempty"`
	Result     *types.VoteResult   `json:"result,omitempty"`
}

// InternalProposal changes the governance system's own parameters.
type InternalProposal struct {
	ID                     uint64                  `json:"id"`
	Proposer               common.Address          `json:"proposer"`
	PolicingRatio          uint8                   `json:"policingRatio"`
	ReputationMintingValue uint64                  `json:"reputationMintingValue"`
	VoteConfiguration      types.VoteConfiguration `json:"voteConfiguration"`
	Status
}

// Proposal is an external, funded initiative. StoragePointer and
// StorageFingerprint are opaque; the engine only records them.
type Proposal struct {
	ID                 uint64                  `json:"id"`
	Proposer           common.Address          `json:"proposer"`
	Name               string                  `json:"name"`
	StoragePointer     string                  `json:"storagePointer"`
	StorageFingerprint string                  `json:"storageFingerprint"`
	Category           types.Category          `json:"category"`
	Citations          []uint64                `json:"citations"`
	Ratios             [2]uint8                `json:"ratios"`
	VoteConfiguration  types.VoteConfiguration `json:"voteConfiguration"`
	Milestones         []types.Milestone       `json:"milestones"`
	StakedReputation   uint64                  `json:"stakedReputation"`
	Status
}

func (p *Proposal) PolicingRatio() uint8 {
	return p.Ratios[0]
}

func (p *Proposal) CitationRatio() uint8 {
	return p.Ratios[1]
}

// OperationalRatio is the share left to the proposal itself.
func (p *Proposal) OperationalRatio() uint8 {
	return 100 - p.Ratios[0] - p.Ratios[1]
}

func (p *Proposal) clone() *Proposal {
	n := *p
	n.Citations = append([]uint64(nil), p.Citations...)
	n.Milestones = append([]types.Milestone(nil), p.Milestones...)
	if p.Result != nil {
		r := *p.Result
		n.Result = &r
	}
	return &n
}

func (p *InternalProposal) clone() *InternalProposal {
	n := *p
	if p.Result != nil {
		r := *p.Result
		n.Result = &r
	}
	return &n
}

// CreateProposalRequest carries the arguments of CreateProposal. Numeric
// lists are uint64 so they travel as JSON arrays; ranges are checked on
// creation.
type CreateProposalRequest struct {
	Name                         string                  `json:"name"`
	StoragePointer               string                  `json:"storagePointer"`
	StorageFingerprint           string                  `json:"storageFingerprint"`
	Category                     uint64                  `json:"category"`
	Citations                    []uint64                `json:"citations"`
	Ratios                       []uint64                `json:"ratios"`
	VoteConfiguration            types.VoteConfiguration `json:"voteConfiguration"`
	MilestoneTypes               []uint64                `json:"milestoneTypes"`
	MilestoneProgressPercentages []uint64                `json:"milestoneProgressPercentages"`
	StakedReputation             uint64                  `json:"stakedReputation"`
}
