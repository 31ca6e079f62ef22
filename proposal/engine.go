// Package proposal implements the proposal lifecycle engine. It owns every
// proposal and milestone record and the state machine that moves a proposal
// from creation through its transition vote to resolution.
package proposal

import (
	"fmt"
	"sort"

	"github.com/calehh/mvpr-app/clock"
	"github.com/calehh/mvpr-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EngineAddress identifies the lifecycle engine when it calls into the
// voting engine.
var EngineAddress = common.BytesToAddress(crypto.Keccak256([]byte("mvpr/proposal-engine")))

// Ledger is the read-only view of the reputation ledger the engine needs.
type Ledger interface {
	IsMember(addr common.Address) bool
	BalanceOf(addr common.Address) uint64
}

// Voter is the voting engine as seen from the lifecycle engine.
type Voter interface {
	Address() common.Address
	HasTally(proposalID uint64) bool
	OpenTally(caller common.Address, proposalID uint64, cfg types.VoteConfiguration) error
}

type Option func(*Engine)

func WithCooldown(cooldown uint64) Option {
	return func(e *Engine) {
		e.params.Cooldown = cooldown
	}
}

func WithLogger(logger cmtlog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With("module", "proposal")
	}
}

type Engine struct {
	logger cmtlog.Logger
	clock  clock.Clock

	owner  common.Address
	params types.SystemParams
	ledger Ledger
	voting Voter

	nextID    uint64
	internals map[uint64]*InternalProposal
	externals map[uint64]*Proposal
}

func NewEngine(owner common.Address, policingFloor uint8, clk clock.Clock, opts ...Option) (*Engine, error) {
	if policingFloor > 100 {
		return nil, fmt.Errorf("%w: policing floor %d above 100", types.ErrInvalidArgument, policingFloor)
	}
	if clk == nil {
		return nil, fmt.Errorf("%w: clock", types.ErrNotConfigured)
	}
	e := &Engine{
		logger: cmtlog.NewNopLogger(),
		clock:  clk,
		owner:  owner,
		params: types.SystemParams{
			PolicingRatioFloor: policingFloor,
			Cooldown:           types.DefaultCooldown,
		},
		internals: make(map[uint64]*InternalProposal),
		externals: make(map[uint64]*Proposal),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Address() common.Address {
	return EngineAddress
}

func (e *Engine) SetReputation(caller common.Address, ledger Ledger) error {
	if caller != e.owner {
		return fmt.Errorf("%w: only the owner wires the ledger", types.ErrUnauthorized)
	}
	if e.ledger != nil {
		return fmt.Errorf("%w: ledger", types.ErrAlreadyConfigured)
	}
	if ledger == nil {
		return fmt.Errorf("%w: nil ledger", types.ErrInvalidArgument)
	}
	e.ledger = ledger
	return nil
}

func (e *Engine) SetVotingEngine(caller common.Address, voting Voter) error {
	if caller != e.owner {
		return fmt.Errorf("%w: only the owner wires the voting engine", types.ErrUnauthorized)
	}
	if e.voting != nil {
		return fmt.Errorf("%w: voting engine", types.ErrAlreadyConfigured)
	}
	if voting == nil {
		return fmt.Errorf("%w: nil voting engine", types.ErrInvalidArgument)
	}
	e.voting = voting
	return nil
}

func (e *Engine) configured() error {
	if e.ledger == nil || e.voting == nil {
		return types.ErrNotConfigured
	}
	return nil
}

func (e *Engine) requireMember(caller common.Address) error {
	if !e.ledger.IsMember(caller) {
		return fmt.Errorf("%w: %v is not a member", types.ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (e *Engine) Params() types.SystemParams {
	return e.params
}

func (e *Engine) Owner() common.Address {
	return e.owner
}

// NextID is the id the next created proposal will receive.
func (e *Engine) NextID() uint64 {
	return e.nextID
}

func (e *Engine) checkPolicingRatio(ratio uint64) error {
	if ratio > 100 {
		return fmt.Errorf("%w: policing ratio %d above 100", types.ErrInvalidArgument, ratio)
	}
	if ratio < uint64(e.params.PolicingRatioFloor) {
		return fmt.Errorf("%w: policing ratio %d below system floor %d", types.ErrInvalidArgument, ratio, e.params.PolicingRatioFloor)
	}
	return nil
}

func (e *Engine) CreateInternalProposal(caller common.Address, policingRatio uint8, reputationMintingValue uint64, cfg types.VoteConfiguration) (uint64, error) {
	if err := e.configured(); err != nil {
		return 0, err
	}
	if err := e.requireMember(caller); err != nil {
		return 0, err
	}
	if err := e.checkPolicingRatio(uint64(policingRatio)); err != nil {
		return 0, err
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	id := e.nextID
	e.nextID++
	e.internals[id] = &InternalProposal{
		ID:                     id,
		Proposer:               caller,
		PolicingRatio:          policingRatio,
		ReputationMintingValue: reputationMintingValue,
		VoteConfiguration:      cfg,
		Status: Status{
			State:     types.ProposalStateProposed,
			CreatedAt: e.clock.Now(),
		},
	}
	e.logger.Info("internal proposal created", "proposal", id, "proposer", caller.Hex(), "policingRatio", policingRatio)
	return id, nil
}

func (e *Engine) CreateProposal(caller common.Address, req CreateProposalRequest) (uint64, error) {
	if err := e.configured(); err != nil {
		return 0, err
	}
	if err := e.requireMember(caller); err != nil {
		return 0, err
	}
	p, err := e.buildProposal(caller, req)
	if err != nil {
		return 0, err
	}

	p.ID = e.nextID
	e.nextID++
	p.Status = Status{
		State:     types.ProposalStateProposed,
		CreatedAt: e.clock.Now(),
	}
	e.externals[p.ID] = p
	e.logger.Info("proposal created", "proposal", p.ID, "proposer", caller.Hex(), "name", p.Name, "milestones", len(p.Milestones))
	return p.ID, nil
}

// buildProposal validates req without touching engine state.
func (e *Engine) buildProposal(caller common.Address, req CreateProposalRequest) (*Proposal, error) {
	if req.Category > 255 {
		return nil, fmt.Errorf("%w: category %d", types.ErrInvalidArgument, req.Category)
	}
	if len(req.Ratios) != 2 {
		return nil, fmt.Errorf("%w: ratios need [policing, citations], got %d values", types.ErrInvalidArgument, len(req.Ratios))
	}
	policing, citation := req.Ratios[0], req.Ratios[1]
	if err := e.checkPolicingRatio(policing); err != nil {
		return nil, err
	}
	if citation > 100 || policing+citation > 100 {
		return nil, fmt.Errorf("%w: policing %d + citations %d above 100", types.ErrInvalidArgument, policing, citation)
	}
	if operational := 100 - policing - citation; citation > operational {
		return nil, fmt.Errorf("%w: citation ratio %d exceeds operational ratio %d", types.ErrInvalidArgument, citation, operational)
	}
	if len(req.Citations) == 0 && citation != 0 {
		return nil, fmt.Errorf("%w: citation ratio %d without citations", types.ErrInvalidArgument, citation)
	}
	seen := make(map[uint64]bool, len(req.Citations))
	for _, c := range req.Citations {
		if seen[c] {
			return nil, fmt.Errorf("%w: duplicate citation %d", types.ErrInvalidArgument, c)
		}
		seen[c] = true
		if !e.exists(c) {
			return nil, fmt.Errorf("%w: cited proposal %d", types.ErrNotFound, c)
		}
	}

	milestones, err := buildMilestones(req.MilestoneTypes, req.MilestoneProgressPercentages)
	if err != nil {
		return nil, err
	}
	if err := req.VoteConfiguration.Validate(); err != nil {
		return nil, err
	}
	if bal := e.ledger.BalanceOf(caller); req.StakedReputation > bal {
		return nil, fmt.Errorf("%w: staked %d exceeds balance %d", types.ErrInsufficientBalance, req.StakedReputation, bal)
	}

	return &Proposal{
		Proposer:           caller,
		Name:               req.Name,
		StoragePointer:     req.StoragePointer,
		StorageFingerprint: req.StorageFingerprint,
		Category:           types.Category(req.Category),
		Citations:          append([]uint64(nil), req.Citations...),
		Ratios:             [2]uint8{uint8(policing), uint8(citation)},
		VoteConfiguration:  req.VoteConfiguration,
		Milestones:         milestones,
		StakedReputation:   req.StakedReputation,
	}, nil
}

// buildMilestones requires matching lengths and progress summing to exactly 100.
func buildMilestones(kinds, progress []uint64) ([]types.Milestone, error) {
	if len(kinds) != len(progress) {
		return nil, fmt.Errorf("%w: %d milestone types but %d progress percentages", types.ErrInvalidArgument, len(kinds), len(progress))
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: no milestones", types.ErrInvalidArgument)
	}
	milestones := make([]types.Milestone, len(kinds))
	var sum uint64
	for i := range kinds {
		if kinds[i] > 255 {
			return nil, fmt.Errorf("%w: milestone type %d", types.ErrInvalidArgument, kinds[i])
		}
		if progress[i] > 100 {
			return nil, fmt.Errorf("%w: milestone %d progress %d above 100", types.ErrInvalidArgument, i, progress[i])
		}
		sum += progress[i]
		milestones[i] = types.Milestone{
			Type:               types.MilestoneType(kinds[i]),
			ProgressPercentage: uint8(progress[i]),
		}
	}
	if sum != 100 {
		return nil, fmt.Errorf("%w: milestone progress sums to %d, want 100", types.ErrInvalidArgument, sum)
	}
	return milestones, nil
}

func (e *Engine) exists(id uint64) bool {
	_, internal := e.internals[id]
	_, external := e.externals[id]
	return internal || external
}

func (e *Engine) status(id uint64) (*Status, types.ProposalKind, error) {
	if p, ok := e.internals[id]; ok {
		return &p.Status, types.ProposalKindInternal, nil
	}
	if p, ok := e.externals[id]; ok {
		return &p.Status, types.ProposalKindExternal, nil
	}
	return nil, 0, fmt.Errorf("%w: proposal %d", types.ErrNotFound, id)
}

func (e *Engine) voteConfiguration(id uint64) types.VoteConfiguration {
	if p, ok := e.internals[id]; ok {
		return p.VoteConfiguration
	}
	return e.externals[id].VoteConfiguration
}

// stages is the number of transition stages a proposal offers: one per
// milestone for external proposals, a single stage for internal ones.
func (e *Engine) stages(id uint64) uint64 {
	if p, ok := e.externals[id]; ok {
		return uint64(len(p.Milestones))
	}
	return 1
}

// CallTransitionVote opens the proposal's transition vote once the cooldown
// since creation has elapsed. Each state step is committed before the
// voting engine is called.
func (e *Engine) CallTransitionVote(caller common.Address, proposalID, stageIndex uint64) error {
	if err := e.configured(); err != nil {
		return err
	}
	if err := e.requireMember(caller); err != nil {
		return err
	}
	st, _, err := e.status(proposalID)
	if err != nil {
		return err
	}
	if st.State != types.ProposalStateProposed {
		return fmt.Errorf("%w: proposal %d is %v", types.ErrInvalidState, proposalID, st.State)
	}
	if stageIndex >= e.stages(proposalID) {
		return fmt.Errorf("%w: stage %d of proposal %d", types.ErrNotFound, stageIndex, proposalID)
	}
	now := e.clock.Now()
	if !clock.Elapsed(st.CreatedAt, now, e.params.Cooldown) {
		return fmt.Errorf("%w: proposal %d created at %d, now %d, cooldown %d", types.ErrCooldownNotElapsed, proposalID, st.CreatedAt, now, e.params.Cooldown)
	}
	if e.voting.HasTally(proposalID) {
		return fmt.Errorf("%w: tally for proposal %d already exists", types.ErrInvalidState, proposalID)
	}

	prev := *st
	st.State = types.ProposalStateTransitionRequested
	st.StageIndex = stageIndex
	if err := e.voting.OpenTally(e.Address(), proposalID, e.voteConfiguration(proposalID)); err != nil {
		*st = prev
		e.logger.Error("open tally fail", "proposal", proposalID, "err", err)
		return err
	}
	st.State = types.ProposalStateVotingActive
	e.logger.Info("transition vote opened", "proposal", proposalID, "stage", stageIndex, "caller", caller.Hex())
	return nil
}

// ApplyResult is the finalization entry point. Only the wired voting engine
// may call it, and only for a proposal whose vote is active.
func (e *Engine) ApplyResult(caller common.Address, res types.VoteResult) error {
	if err := e.configured(); err != nil {
		return err
	}
	if caller != e.voting.Address() {
		return fmt.Errorf("%w: %v is not the voting engine", types.ErrUnauthorized, caller.Hex())
	}
	st, kind, err := e.status(res.ProposalID)
	if err != nil {
		return err
	}
	if st.State != types.ProposalStateVotingActive {
		return fmt.Errorf("%w: proposal %d is %v", types.ErrInvalidState, res.ProposalID, st.State)
	}

	result := res
	st.Result = &result
	st.ResolvedAt = e.clock.Now()
	if !res.Accepted {
		st.State = types.ProposalStateRejected
		e.logger.Info("proposal rejected", "proposal", res.ProposalID, "for", res.ForWeight, "against", res.AgainstWeight, "voters", res.Voters)
		return nil
	}
	st.State = types.ProposalStateAccepted
	e.logger.Info("proposal accepted", "proposal", res.ProposalID, "for", res.ForWeight, "against", res.AgainstWeight, "voters", res.Voters)
	if kind == types.ProposalKindInternal {
		p := e.internals[res.ProposalID]
		old := e.params
		e.params.PolicingRatioFloor = p.PolicingRatio
		e.params.ReputationMintingValue = p.ReputationMintingValue
		e.logger.Info("system policy changed", "proposal", p.ID,
			"policingRatioFloor", old.PolicingRatioFloor, "newPolicingRatioFloor", e.params.PolicingRatioFloor,
			"reputationMintingValue", old.ReputationMintingValue, "newReputationMintingValue", e.params.ReputationMintingValue)
	}
	return nil
}

func (e *Engine) GetMilestone(proposalID, index uint64) (types.Milestone, error) {
	p, ok := e.externals[proposalID]
	if !ok {
		return types.Milestone{}, fmt.Errorf("%w: proposal %d", types.ErrNotFound, proposalID)
	}
	if index >= uint64(len(p.Milestones)) {
		return types.Milestone{}, fmt.Errorf("%w: milestone %d of proposal %d", types.ErrNotFound, index, proposalID)
	}
	return p.Milestones[index], nil
}

func (e *Engine) InternalProposal(id uint64) (InternalProposal, error) {
	p, ok := e.internals[id]
	if !ok {
		return InternalProposal{}, fmt.Errorf("%w: internal proposal %d", types.ErrNotFound, id)
	}
	return *p.clone(), nil
}

func (e *Engine) Proposal(id uint64) (Proposal, error) {
	p, ok := e.externals[id]
	if !ok {
		return Proposal{}, fmt.Errorf("%w: proposal %d", types.ErrNotFound, id)
	}
	return *p.clone(), nil
}

func (e *Engine) Kind(id uint64) (types.ProposalKind, error) {
	_, kind, err := e.status(id)
	return kind, err
}

func (e *Engine) State(id uint64) (types.ProposalState, error) {
	st, _, err := e.status(id)
	if err != nil {
		return 0, err
	}
	return st.State, nil
}

// Snapshot is the persisted form of the engine, proposals sorted by id.
// Collaborator wiring is not part of it.
type Snapshot struct {
	Owner     common.Address     `json:"owner"`
	Params    types.SystemParams `json:"params"`
	NextID    uint64             `json:"nextId"`
	Internals []InternalProposal `json:"internals"`
	Externals []Proposal         `json:"externals"`
}

func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Owner:     e.owner,
		Params:    e.params,
		NextID:    e.nextID,
		Internals: make([]InternalProposal, 0, len(e.internals)),
		Externals: make([]Proposal, 0, len(e.externals)),
	}
	for _, p := range e.internals {
		snap.Internals = append(snap.Internals, *p.clone())
	}
	for _, p := range e.externals {
		snap.Externals = append(snap.Externals, *p.clone())
	}
	sort.Slice(snap.Internals, func(i, j int) bool { return snap.Internals[i].ID < snap.Internals[j].ID })
	sort.Slice(snap.Externals, func(i, j int) bool { return snap.Externals[i].ID < snap.Externals[j].ID })
	return snap
}

// Restore rebuilds an unwired engine from snap.
func Restore(snap Snapshot, clk clock.Clock, opts ...Option) (*Engine, error) {
	e, err := NewEngine(snap.Owner, snap.Params.PolicingRatioFloor, clk, opts...)
	if err != nil {
		return nil, err
	}
	e.params = snap.Params
	e.nextID = snap.NextID
	for i := range snap.Internals {
		e.internals[snap.Internals[i].ID] = snap.Internals[i].clone()
	}
	for i := range snap.Externals {
		e.externals[snap.Externals[i].ID] = snap.Externals[i].clone()
	}
	return e, nil
}
