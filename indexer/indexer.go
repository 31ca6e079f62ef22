package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/calehh/mvpr-app/metrics"
	"github.com/calehh/mvpr-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

const maxPageSize = 100

// ChainIndexer follows committed blocks over RPC and mirrors governance
// events into sqlite for the query service.
type ChainIndexer struct {
	logger        cmtlog.Logger
	Url           string
	Height        int64
	db            *gorm.DB
	cli           *comethttp.HTTP
	eventHandlers map[string]eventHandler
	metrics       *metrics.Metrics
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string, m *metrics.Metrics) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	c, err := newChainIndexer(logger, db, m)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.Url = chainUrl
	return c, nil
}

func newChainIndexer(logger cmtlog.Logger, db *gorm.DB, m *metrics.Metrics) (*ChainIndexer, error) {
	if err := db.AutoMigrate(&Height{}, &Member{}, &RoleChange{}, &Proposal{}, &Vote{}).Error; err != nil {
		return nil, err
	}
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c := &ChainIndexer{
		logger:  logger.With("module", "indexer"),
		Height:  int64(h.Height + 1),
		db:      db,
		metrics: m,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventMemberType:         c.handleEventMember,
		types.EventReputationType:     c.handleEventReputation,
		types.EventRoleType:           c.handleEventRole,
		types.EventProposalType:       c.handleEventProposal,
		types.EventTransitionType:     c.handleEventTransition,
		types.EventVoteType:           c.handleEventVote,
		types.EventSettleProposalType: c.handleEventSettleProposal,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

type eventHandler func(ctx context.Context, event abci.Event, height int64)

func (c *ChainIndexer) handleEvent(ctx context.Context, event abci.Event, height int64) {
	if h, ok := c.eventHandlers[event.Type]; ok {
		h(ctx, event, height)
	}
}

// member loads the row for address, or a fresh one if it was never indexed.
func (c *ChainIndexer) member(address string) (*Member, error) {
	m := Member{Address: address}
	err := c.db.Where("address = ?", address).First(&m).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}
	return &m, nil
}

func (c *ChainIndexer) handleEventMember(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeEventMember(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	m, err := c.member(ev.Address)
	if err != nil {
		c.logger.Error("get member fail", "err", err)
		return
	}
	m.Member = ev.Member
	m.Height = uint64(height)
	if err := c.db.Save(m).Error; err != nil {
		c.logger.Error("save member fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventReputation(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeEventReputation(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	m, err := c.member(ev.Address)
	if err != nil {
		c.logger.Error("get member fail", "err", err)
		return
	}
	m.Balance = ev.Balance
	m.Height = uint64(height)
	if err := c.db.Save(m).Error; err != nil {
		c.logger.Error("save member fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventRole(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeEventRole(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	rc := RoleChange{
		Role:    ev.Role,
		Address: ev.Address,
		Grant:   ev.Grant,
		Height:  uint64(height),
	}
	if err := c.db.Create(&rc).Error; err != nil {
		c.logger.Error("save role change fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventProposal(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeEventProposal(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	proposal := Proposal{
		ProposalId:      ev.ProposalIndex,
		Kind:            ev.Kind,
		ProposerAddress: ev.ProposerAddress,
		Name:            ev.Name,
		Status:          ev.Status,
		CreateTime:      ev.CreatedAt,
		NewHeight:       uint64(height),
	}
	if err := c.db.Create(&proposal).Error; err != nil {
		c.logger.Error("save proposal fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventTransition(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeEventTransition(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	proposal, err := c.getProposalById(ev.Proposal)
	if err != nil {
		c.logger.Error("get proposal fail", "proposal", ev.Proposal, "err", err)
		return
	}
	proposal.Status = uint64(types.ProposalStateVotingActive)
	proposal.Stage = ev.Stage
	proposal.OpenedAt = ev.OpenedAt
	proposal.TransitionHeight = uint64(height)
	if err := c.db.Save(&proposal).Error; err != nil {
		c.logger.Error("save proposal fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventVote(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeEventVote(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	vote := Vote{
		Proposal: ev.Proposal,
		Voter:    ev.Voter,
		Weight:   ev.Weight,
		Support:  ev.Support,
		Height:   uint64(height),
	}
	if err := c.db.Create(&vote).Error; err != nil {
		c.logger.Error("save vote fail", "err", err)
	}
}

func (c *ChainIndexer) handleEventSettleProposal(ctx context.Context, event abci.Event, height int64) {
	ev := types.DecodeEventSettleProposal(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return
	}
	proposal, err := c.getProposalById(ev.Proposal)
	if err != nil {
		c.logger.Error("get proposal fail", "proposal", ev.Proposal, "err", err)
		return
	}
	proposal.Status = uint64(ev.State)
	proposal.SettleHeight = uint64(height)
	proposal.ForWeight = ev.ForWeight
	proposal.AgainstWeight = ev.AgainstWeight
	proposal.Voters = ev.Voters
	if err := c.db.Save(&proposal).Error; err != nil {
		c.logger.Error("save proposal fail", "err", err)
	}
}

// handleBlock indexes the events of the successful txs in one block and
// records height as done.
func (c *ChainIndexer) handleBlock(ctx context.Context, height int64, results []*abci.ExecTxResult) error {
	for _, res := range results {
		if res == nil || res.Code != types.CodeOK {
			continue
		}
		for _, event := range res.Events {
			c.handleEvent(ctx, event, height)
		}
	}
	if err := c.db.Save(&Height{Id: 1, Height: uint64(height)}).Error; err != nil {
		return err
	}
	c.Height = height + 1
	c.metrics.IndexerHeight(height)
	return nil
}

func (c *ChainIndexer) connect() (err error) {
	if c.cli != nil {
		return nil
	}
	c.cli, err = comethttp.New(c.Url, "/websocket")
	return
}

func (c *ChainIndexer) sync(ctx context.Context) error {
	if err := c.connect(); err != nil {
		return err
	}
	status, err := c.cli.Status(ctx)
	if err != nil {
		c.cli = nil
		return err
	}
	for status.SyncInfo.LatestBlockHeight >= c.Height {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug("indexer syncing", "height", c.Height)
		height := c.Height
		res, err := c.cli.BlockResults(ctx, &height)
		if err != nil {
			return err
		}
		if err = c.handleBlock(ctx, height, res.TxsResults); err != nil {
			return err
		}
	}
	return nil
}

// Start polls the node every interval until ctx is done.
func (c *ChainIndexer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sync(ctx); err != nil {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

func pageBounds(page, pageSize int) (offset, limit int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page * pageSize, pageSize
}

// ProposalFilter narrows getProposals; zero fields match everything.
type ProposalFilter struct {
	Proposer string
	Status   uint64
	Kind     uint64
}

func (f ProposalFilter) apply(db *gorm.DB) *gorm.DB {
	if f.Proposer != "" {
		db = db.Where("proposer_address = ?", f.Proposer)
	}
	if f.Status != 0 {
		db = db.Where("status = ?", f.Status)
	}
	if f.Kind != 0 {
		db = db.Where("kind = ?", f.Kind)
	}
	return db
}

func (c *ChainIndexer) getProposals(f ProposalFilter, page int, pageSize int) ([]Proposal, uint64, error) {
	offset, limit := pageBounds(page, pageSize)
	var proposals []Proposal
	err := f.apply(c.db).Order("proposal_id desc").Offset(offset).Limit(limit).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = f.apply(c.db.Model(&Proposal{})).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(proposalId uint64) (Proposal, error) {
	var proposal Proposal
	err := c.db.Where("proposal_id = ?", proposalId).First(&proposal).Error
	if err != nil {
		return Proposal{}, err
	}
	return proposal, nil
}

func (c *ChainIndexer) getVotes(proposal *uint64, voter string, page int, pageSize int) ([]Vote, uint64, error) {
	where := func(db *gorm.DB) *gorm.DB {
		if proposal != nil {
			db = db.Where("proposal = ?", *proposal)
		}
		if voter != "" {
			db = db.Where("voter = ?", voter)
		}
		return db
	}
	offset, limit := pageBounds(page, pageSize)
	var votes []Vote
	err := where(c.db).Order("id desc").Offset(offset).Limit(limit).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = where(c.db.Model(&Vote{})).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) getMembers(onlyMembers bool, page int, pageSize int) ([]Member, uint64, error) {
	where := func(db *gorm.DB) *gorm.DB {
		if onlyMembers {
			db = db.Where("member = ?", true)
		}
		return db
	}
	offset, limit := pageBounds(page, pageSize)
	var members []Member
	err := where(c.db).Order("balance desc").Offset(offset).Limit(limit).Find(&members).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = where(c.db.Model(&Member{})).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (c *ChainIndexer) getRoleChanges(address string, page int, pageSize int) ([]RoleChange, error) {
	offset, limit := pageBounds(page, pageSize)
	var changes []RoleChange
	db := c.db
	if address != "" {
		db = db.Where("address = ?", address)
	}
	err := db.Order("id desc").Offset(offset).Limit(limit).Find(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}
