package voting

import (
	"errors"
	"testing"

	"github.com/calehh/mvpr-app/clock"
	"github.com/calehh/mvpr-app/proposal"
	"github.com/calehh/mvpr-app/reputation"
	"github.com/calehh/mvpr-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = common.HexToAddress("0x01")
	addr1 = common.HexToAddress("0x02")
	addr2 = common.HexToAddress("0x03")
	addr3 = common.HexToAddress("0x04")
)

var scenarioConfig = types.VoteConfiguration{
	MemberQuorum:      2,
	ReputationQuorum:  15,
	Threshold:         50,
	Timeout:           20,
	VoterStakingLimit: 30,
}

type system struct {
	clock     *clock.Manual
	ledger    *reputation.Ledger
	lifecycle *proposal.Engine
	voting    *Engine
}

func newSystem(t *testing.T) *system {
	t.Helper()
	clk := clock.NewManual(0)
	ledger := reputation.New(owner, owner, owner)
	lifecycle, err := proposal.NewEngine(owner, 1, clk)
	require.NoError(t, err)
	v := NewEngine(ledger, lifecycle, clk)
	require.NoError(t, lifecycle.SetReputation(owner, ledger))
	require.NoError(t, lifecycle.SetVotingEngine(owner, v))

	for _, m := range []common.Address{owner, addr1, addr2} {
		require.NoError(t, ledger.AddMember(owner, m))
		require.NoError(t, ledger.Mint(owner, m, 100))
	}
	return &system{clock: clk, ledger: ledger, lifecycle: lifecycle, voting: v}
}

// openInternal creates an internal proposal and opens its transition vote.
func (s *system) openInternal(t *testing.T, cfg types.VoteConfiguration) uint64 {
	t.Helper()
	id, err := s.lifecycle.CreateInternalProposal(owner, 60, 50, cfg)
	require.NoError(t, err)
	s.clock.Advance(61)
	require.NoError(t, s.lifecycle.CallTransitionVote(owner, id, 0))
	return id
}

func TestScenarioA_Accepted(t *testing.T) {
	s := newSystem(t)
	id := s.openInternal(t, scenarioConfig)

	require.NoError(t, s.voting.SubmitTransitionVote(addr1, id, 10, true))
	require.NoError(t, s.voting.SubmitTransitionVote(addr2, id, 7, false))

	s.clock.Advance(2_000_000)
	res, err := s.voting.CalculateVote(id)
	require.NoError(t, err)
	assert.Equal(t, types.VoteResult{ProposalID: id, Accepted: true, ForWeight: 10, AgainstWeight: 7, Voters: 2}, res)

	p, err := s.lifecycle.InternalProposal(id)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStateAccepted, p.State)
	assert.Equal(t, uint8(60), s.lifecycle.Params().PolicingRatioFloor)
	assert.Equal(t, uint64(50), s.lifecycle.Params().ReputationMintingValue)
	assert.Equal(t, uint64(100), s.ledger.BalanceOf(addr1), "voting never moves balances")
}

func TestScenarioB_MemberQuorumNotMet(t *testing.T) {
	s := newSystem(t)
	id := s.openInternal(t, scenarioConfig)

	require.NoError(t, s.voting.SubmitTransitionVote(addr1, id, 10, true))
	require.NoError(t, s.voting.SubmitTransitionVote(addr1, id, 10, true))

	s.clock.Advance(20)
	res, err := s.voting.CalculateVote(id)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, uint64(1), res.Voters)
	assert.Equal(t, uint64(20), res.ForWeight)

	st, err := s.lifecycle.State(id)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStateRejected, st)
	assert.Equal(t, uint8(1), s.lifecycle.Params().PolicingRatioFloor)
}

func TestScenarioC_MilestoneSumBelow100(t *testing.T) {
	s := newSystem(t)
	_, err := s.lifecycle.CreateProposal(owner, proposal.CreateProposalRequest{
		Name:                         "p",
		Ratios:                       []uint64{50, 0},
		VoteConfiguration:            scenarioConfig,
		MilestoneTypes:               []uint64{99, 98},
		MilestoneProgressPercentages: []uint64{50, 49},
	})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.Equal(t, uint64(0), s.lifecycle.NextID())
}

func TestScenarioD_StakeLimits(t *testing.T) {
	s := newSystem(t)
	require.NoError(t, s.ledger.AddMember(owner, addr3))
	require.NoError(t, s.ledger.Mint(owner, addr3, 5))
	id := s.openInternal(t, scenarioConfig)

	err := s.voting.SubmitTransitionVote(addr1, id, 31, true)
	assert.ErrorIs(t, err, types.ErrStakeLimitExceeded)

	err = s.voting.SubmitTransitionVote(addr3, id, 10, true)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)

	t.Run("limit applies to accumulated weight", func(t *testing.T) {
		require.NoError(t, s.voting.SubmitTransitionVote(addr1, id, 20, true))
		err := s.voting.SubmitTransitionVote(addr1, id, 11, false)
		assert.ErrorIs(t, err, types.ErrStakeLimitExceeded)
		require.NoError(t, s.voting.SubmitTransitionVote(addr1, id, 10, false))
	})

	t.Run("balance counts committed weight", func(t *testing.T) {
		require.NoError(t, s.voting.SubmitTransitionVote(addr3, id, 3, true))
		err := s.voting.SubmitTransitionVote(addr3, id, 3, true)
		assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	})

	tally, err := s.voting.Tally(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(23), tally.ForWeight)
	assert.Equal(t, uint64(10), tally.AgainstWeight)
	assert.Equal(t, uint64(2), tally.Voters)
	assert.Equal(t, uint64(30), tally.Committed[addr1])
}

func TestSubmitTransitionVote_Rejections(t *testing.T) {
	s := newSystem(t)

	err := s.voting.SubmitTransitionVote(addr1, 0, 1, true)
	assert.ErrorIs(t, err, types.ErrTallyNotOpen, "no proposal yet")

	id := s.openInternal(t, scenarioConfig)

	tests := []struct {
		name   string
		caller common.Address
		id     uint64
		weight uint64
		want   error
	}{
		{"non member", addr3, id, 1, types.ErrUnauthorized},
		{"unknown tally", addr1, id + 1, 1, types.ErrTallyNotOpen},
		{"zero weight", addr1, id, 0, types.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.voting.SubmitTransitionVote(tt.caller, tt.id, tt.weight, true)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("closed at deadline", func(t *testing.T) {
		s.clock.Advance(19)
		require.NoError(t, s.voting.SubmitTransitionVote(addr1, id, 1, true))
		s.clock.Advance(1)
		err := s.voting.SubmitTransitionVote(addr1, id, 1, true)
		assert.ErrorIs(t, err, types.ErrTallyNotOpen)
	})

	t.Run("burned voter cannot add weight", func(t *testing.T) {
		id := s.openInternal(t, scenarioConfig)
		require.NoError(t, s.voting.SubmitTransitionVote(addr2, id, 10, true))
		require.NoError(t, s.ledger.Burn(owner, addr2, 95))
		err := s.voting.SubmitTransitionVote(addr2, id, 1, true)
		assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	})
}

func TestCalculateVote_Timing(t *testing.T) {
	s := newSystem(t)

	_, err := s.voting.CalculateVote(0)
	assert.ErrorIs(t, err, types.ErrTallyNotOpen)

	id := s.openInternal(t, scenarioConfig)
	require.NoError(t, s.voting.SubmitTransitionVote(addr1, id, 10, true))
	require.NoError(t, s.voting.SubmitTransitionVote(addr2, id, 10, true))

	s.clock.Advance(19)
	_, err = s.voting.CalculateVote(id)
	assert.ErrorIs(t, err, types.ErrTimeoutNotElapsed)
	st, _ := s.lifecycle.State(id)
	assert.Equal(t, types.ProposalStateVotingActive, st)

	s.clock.Advance(1)
	first, err := s.voting.CalculateVote(id)
	require.NoError(t, err)
	assert.True(t, first.Accepted)

	_, err = s.voting.CalculateVote(id)
	assert.ErrorIs(t, err, types.ErrAlreadyFinalized)

	tally, err := s.voting.Tally(id)
	require.NoError(t, err)
	assert.True(t, tally.Finalized)
	require.NotNil(t, tally.Result)
	assert.Equal(t, first, *tally.Result)
}

func TestCalculateVote_SaturatingDeadline(t *testing.T) {
	s := newSystem(t)
	cfg := scenarioConfig
	cfg.Timeout = ^uint64(0)
	id := s.openInternal(t, cfg)

	s.clock.Advance(^uint64(0))
	_, err := s.voting.CalculateVote(id)
	require.NoError(t, err)
}

func TestAccepted(t *testing.T) {
	tests := []struct {
		name                   string
		forW, againstW, voters uint64
		want                   bool
	}{
		{"all conditions met", 10, 7, 2, true},
		{"member quorum missed", 10, 7, 1, false},
		{"reputation quorum missed", 10, 4, 2, false},
		{"threshold missed", 7, 10, 2, false},
		{"threshold met exactly", 10, 10, 2, true},
		{"no votes", 0, 0, 0, false},
		{"large weights", ^uint64(0) / 2, ^uint64(0) / 2, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accepted(scenarioConfig, tt.forW, tt.againstW, tt.voters))
		})
	}
}

type fakeLifecycle struct {
	err     error
	applied []types.VoteResult
}

func (f *fakeLifecycle) Address() common.Address { return proposal.EngineAddress }

func (f *fakeLifecycle) ApplyResult(caller common.Address, res types.VoteResult) error {
	if caller != EngineAddress {
		return types.ErrUnauthorized
	}
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, res)
	return nil
}

func TestEngine_Isolated(t *testing.T) {
	clk := clock.NewManual(0)
	ledger := reputation.New(owner, owner, owner)
	require.NoError(t, ledger.AddMember(owner, addr1))
	require.NoError(t, ledger.Mint(owner, addr1, 50))
	lc := &fakeLifecycle{}
	v := NewEngine(ledger, lc, clk)

	t.Run("only the lifecycle engine opens tallies", func(t *testing.T) {
		err := v.OpenTally(addr1, 0, scenarioConfig)
		assert.ErrorIs(t, err, types.ErrUnauthorized)
	})

	require.NoError(t, v.OpenTally(proposal.EngineAddress, 0, scenarioConfig))
	assert.ErrorIs(t, v.OpenTally(proposal.EngineAddress, 0, scenarioConfig), types.ErrInvalidState)
	require.NoError(t, v.SubmitTransitionVote(addr1, 0, 30, true))
	clk.Advance(20)

	t.Run("rejected notification keeps tally open", func(t *testing.T) {
		lc.err = errors.New("lifecycle down")
		_, err := v.CalculateVote(0)
		assert.EqualError(t, err, "lifecycle down")
		tally, err := v.Tally(0)
		require.NoError(t, err)
		assert.False(t, tally.Finalized)
		assert.Nil(t, tally.Result)
		lc.err = nil
	})

	res, err := v.CalculateVote(0)
	require.NoError(t, err)
	assert.False(t, res.Accepted, "one voter misses member quorum")
	assert.Equal(t, []types.VoteResult{res}, lc.applied)
}

func TestEngine_NotConfigured(t *testing.T) {
	v := NewEngine(nil, nil, clock.NewManual(0))
	assert.ErrorIs(t, v.OpenTally(proposal.EngineAddress, 0, scenarioConfig), types.ErrNotConfigured)
	assert.ErrorIs(t, v.SubmitTransitionVote(addr1, 0, 1, true), types.ErrNotConfigured)
	_, err := v.CalculateVote(0)
	assert.ErrorIs(t, err, types.ErrNotConfigured)
}

func TestEngine_SnapshotRestore(t *testing.T) {
	s := newSystem(t)
	id := s.openInternal(t, scenarioConfig)
	require.NoError(t, s.voting.SubmitTransitionVote(addr1, id, 10, true))

	snap := s.voting.Snapshot()
	r := Restore(snap, s.ledger, s.lifecycle, s.clock)
	assert.Equal(t, snap, r.Snapshot())

	require.NoError(t, r.SubmitTransitionVote(addr1, id, 5, false))
	orig, err := s.voting.Tally(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), orig.AgainstWeight, "restored engine does not alias the original")
}
