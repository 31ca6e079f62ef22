// Package voting runs the reputation-weighted transition votes. A tally is
// opened by the lifecycle engine, collects stake from members until its
// timeout, and is finalized exactly once; the result is handed back to the
// lifecycle engine through its ApplyResult entry point.
package voting

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/calehh/mvpr-app/clock"
	"github.com/calehh/mvpr-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EngineAddress identifies the voting engine when it reports results.
var EngineAddress = common.BytesToAddress(crypto.Keccak256([]byte("mvpr/voting-engine")))

type Ledger interface {
	IsMember(addr common.Address) bool
	BalanceOf(addr common.Address) uint64
}

// Lifecycle is the proposal engine as seen from the voting engine.
type Lifecycle interface {
	Address() common.Address
	ApplyResult(caller common.Address, res types.VoteResult) error
}

type Tally struct {
	ProposalID    uint64                    `json:"proposalId"`
	Config        types.VoteConfiguration   `json:"config"`
	ForWeight     uint64                    `json:"forWeight"`
	AgainstWeight uint64                    `json:"againstWeight"`
	Voters        uint64                    `json:"voters"`
	OpenedAt      uint64                    `json:"openedAt"`
	Committed     map[common.Address]uint64 `json:"committed"`
	Finalized     bool                      `json:"finalized"`
	Result        *types.VoteResult         `json:"result,omitempty"`
}

func (t *Tally) Total() uint64 {
	return t.ForWeight + t.AgainstWeight
}

// Deadline is the first instant at which votes are refused and the tally
// may be calculated.
func (t *Tally) Deadline() uint64 {
	return clock.SaturatingAdd(t.OpenedAt, t.Config.Timeout)
}

func (t *Tally) clone() *Tally {
	n := *t
	n.Committed = make(map[common.Address]uint64, len(t.Committed))
	for k, v := range t.Committed {
		n.Committed[k] = v
	}
	if t.Result != nil {
		r := *t.Result
		n.Result = &r
	}
	return &n
}

type Option func(*Engine)

func WithLogger(logger cmtlog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With("module", "voting")
	}
}

type Engine struct {
	logger    cmtlog.Logger
	clock     clock.Clock
	ledger    Ledger
	lifecycle Lifecycle

	tallies map[uint64]*Tally
}

// NewEngine binds the engine to its ledger and lifecycle engine. With a nil
// collaborator every operation fails with ErrNotConfigured.
func NewEngine(ledger Ledger, lifecycle Lifecycle, clk clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		logger:    cmtlog.NewNopLogger(),
		clock:     clk,
		ledger:    ledger,
		lifecycle: lifecycle,
		tallies:   make(map[uint64]*Tally),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Address() common.Address {
	return EngineAddress
}

func (e *Engine) configured() error {
	if e.ledger == nil || e.lifecycle == nil || e.clock == nil {
		return types.ErrNotConfigured
	}
	return nil
}

func (e *Engine) HasTally(proposalID uint64) bool {
	_, ok := e.tallies[proposalID]
	return ok
}

func (e *Engine) OpenTally(caller common.Address, proposalID uint64, cfg types.VoteConfiguration) error {
	if err := e.configured(); err != nil {
		return err
	}
	if caller != e.lifecycle.Address() {
		return fmt.Errorf("%w: %v may not open tallies", types.ErrUnauthorized, caller.Hex())
	}
	if e.HasTally(proposalID) {
		return fmt.Errorf("%w: tally for proposal %d already open", types.ErrInvalidState, proposalID)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	now := e.clock.Now()
	e.tallies[proposalID] = &Tally{
		ProposalID: proposalID,
		Config:     cfg,
		OpenedAt:   now,
		Committed:  make(map[common.Address]uint64),
	}
	e.logger.Info("tally opened", "proposal", proposalID, "openedAt", now, "timeout", cfg.Timeout)
	return nil
}

// SubmitTransitionVote commits weight of the caller's reputation to one side
// of the proposal's tally. Repeated votes accumulate against the voter's
// staking limit and available balance; the balance itself is not moved.
func (e *Engine) SubmitTransitionVote(caller common.Address, proposalID, weight uint64, support bool) error {
	if err := e.configured(); err != nil {
		return err
	}
	if !e.ledger.IsMember(caller) {
		return fmt.Errorf("%w: %v is not a member", types.ErrUnauthorized, caller.Hex())
	}
	t, ok := e.tallies[proposalID]
	if !ok {
		return fmt.Errorf("%w: no tally for proposal %d", types.ErrTallyNotOpen, proposalID)
	}
	now := e.clock.Now()
	if t.Finalized || now >= t.Deadline() {
		return fmt.Errorf("%w: tally for proposal %d closed at %d", types.ErrTallyNotOpen, proposalID, t.Deadline())
	}
	if weight == 0 {
		return fmt.Errorf("%w: zero vote weight", types.ErrInvalidArgument)
	}

	committed := t.Committed[caller]
	if weight > t.Config.VoterStakingLimit || committed > t.Config.VoterStakingLimit-weight {
		return fmt.Errorf("%w: committed %d + %d above limit %d", types.ErrStakeLimitExceeded, committed, weight, t.Config.VoterStakingLimit)
	}
	var available uint64
	if bal := e.ledger.BalanceOf(caller); bal > committed {
		available = bal - committed
	}
	if weight > available {
		return fmt.Errorf("%w: weight %d above available %d", types.ErrInsufficientBalance, weight, available)
	}
	if t.Total() > math.MaxUint64-weight {
		return fmt.Errorf("%w: tally weight overflow", types.ErrInvalidArgument)
	}

	if committed == 0 {
		t.Voters++
	}
	t.Committed[caller] = committed + weight
	if support {
		t.ForWeight += weight
	} else {
		t.AgainstWeight += weight
	}
	e.logger.Debug("vote submitted", "proposal", proposalID, "voter", caller.Hex(), "weight", weight, "support", support)
	return nil
}

// Accepted applies the acceptance rule: both quorums reached and the for
// share of cast weight at or above the threshold percentage.
func Accepted(cfg types.VoteConfiguration, forWeight, againstWeight, voters uint64) bool {
	total := new(big.Int).Add(new(big.Int).SetUint64(forWeight), new(big.Int).SetUint64(againstWeight))
	if voters < cfg.MemberQuorum || total.Cmp(new(big.Int).SetUint64(cfg.ReputationQuorum)) < 0 {
		return false
	}
	lhs := new(big.Int).Mul(new(big.Int).SetUint64(forWeight), big.NewInt(100))
	rhs := new(big.Int).Mul(new(big.Int).SetUint64(cfg.Threshold), total)
	return lhs.Cmp(rhs) >= 0
}

// CalculateVote finalizes the tally once its timeout has elapsed and reports
// the result to the lifecycle engine. If the lifecycle engine rejects the
// result the tally is left unfinalized.
func (e *Engine) CalculateVote(proposalID uint64) (types.VoteResult, error) {
	if err := e.configured(); err != nil {
		return types.VoteResult{}, err
	}
	t, ok := e.tallies[proposalID]
	if !ok {
		return types.VoteResult{}, fmt.Errorf("%w: no tally for proposal %d", types.ErrTallyNotOpen, proposalID)
	}
	if t.Finalized {
		return types.VoteResult{}, fmt.Errorf("%w: proposal %d", types.ErrAlreadyFinalized, proposalID)
	}
	if now := e.clock.Now(); now < t.Deadline() {
		return types.VoteResult{}, fmt.Errorf("%w: proposal %d closes at %d, now %d", types.ErrTimeoutNotElapsed, proposalID, t.Deadline(), now)
	}

	res := types.VoteResult{
		ProposalID:    proposalID,
		Accepted:      Accepted(t.Config, t.ForWeight, t.AgainstWeight, t.Voters),
		ForWeight:     t.ForWeight,
		AgainstWeight: t.AgainstWeight,
		Voters:        t.Voters,
	}
	t.Finalized = true
	t.Result = &res
	if err := e.lifecycle.ApplyResult(e.Address(), res); err != nil {
		t.Finalized = false
		t.Result = nil
		e.logger.Error("apply vote result fail", "proposal", proposalID, "err", err)
		return types.VoteResult{}, err
	}
	e.logger.Info("vote calculated", "proposal", proposalID, "accepted", res.Accepted,
		"for", res.ForWeight, "against", res.AgainstWeight, "voters", res.Voters)
	return res, nil
}

func (e *Engine) Tally(proposalID uint64) (Tally, error) {
	t, ok := e.tallies[proposalID]
	if !ok {
		return Tally{}, fmt.Errorf("%w: tally for proposal %d", types.ErrNotFound, proposalID)
	}
	return *t.clone(), nil
}

type Snapshot struct {
	Tallies []Tally `json:"tallies"`
}

func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{Tallies: make([]Tally, 0, len(e.tallies))}
	for _, t := range e.tallies {
		snap.Tallies = append(snap.Tallies, *t.clone())
	}
	sort.Slice(snap.Tallies, func(i, j int) bool {
		return snap.Tallies[i].ProposalID < snap.Tallies[j].ProposalID
	})
	return snap
}

func Restore(snap Snapshot, ledger Ledger, lifecycle Lifecycle, clk clock.Clock, opts ...Option) *Engine {
	e := NewEngine(ledger, lifecycle, clk, opts...)
	for i := range snap.Tallies {
		e.tallies[snap.Tallies[i].ProposalID] = snap.Tallies[i].clone()
	}
	return e
}
