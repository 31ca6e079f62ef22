package handler

import (
	"context"
	"testing"

	"github.com/calehh/mvpr-app/state"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainID = "mvpr-test"

func newGenesisState(t *testing.T) (*state.State, ed25519.PrivKey) {
	t.Helper()
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	key := ed25519.GenPrivKey()
	st := db.NewState()
	st.SetChainId(chainID)
	st.SetTime(1000)
	require.NoError(t, st.InitGenesis(types.DefaultGenesisState(tx.SignerAddress(key.PubKey().Bytes()))))
	return st, key
}

func signed(t *testing.T, key ed25519.PrivKey, tp tx.MVPRTxType, nonce uint64, payload any) *tx.MVPRTx {
	t.Helper()
	btx := &tx.MVPRTx{Type: tp, Nonce: nonce, Tx: payload}
	require.NoError(t, tx.Sign(btx, key, chainID))
	dat, err := tx.MarshalMVPRTx(btx)
	require.NoError(t, err)
	decoded, err := tx.UnmarshalMVPRTx(dat)
	require.NoError(t, err)
	return decoded
}

func TestHandler_ProcessSuccess(t *testing.T) {
	st, key := newGenesisState(t)
	owner := tx.SignerAddress(key.PubKey().Bytes())
	member := common.HexToAddress("0x02")
	h := NewMemberTxHandler(cmtlog.NewNopLogger(), true)

	res, err := h.Process(context.Background(), st, signed(t, key, tx.MVPRTxTypeAddMember, 0, tx.MemberTx{Address: member}))
	require.NoError(t, err)
	assert.Equal(t, types.CodeOK, res.Code)
	require.Len(t, res.Events, 1)
	ev := types.DecodeEventMember(res.Events[0])
	require.NotNil(t, ev)
	assert.Equal(t, types.AddressString(member), ev.Address)
	assert.True(t, ev.Member)
	assert.True(t, st.Ledger().IsMember(member))

	nonce, err := st.Nonce(owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestHandler_ProcessRejection(t *testing.T) {
	st, key := newGenesisState(t)
	owner := tx.SignerAddress(key.PubKey().Bytes())
	h := NewVoteTxHandler(cmtlog.NewNopLogger())

	res, err := h.Process(context.Background(), st, signed(t, key, tx.MVPRTxTypeSubmitVote, 0, tx.VoteTx{Proposal: 0, Weight: 1, Support: true}))
	require.NoError(t, err)
	assert.Equal(t, types.CodeTallyNotOpen, res.Code)
	assert.Contains(t, res.Log, "tally not open")
	assert.Empty(t, res.Events)

	nonce, err := st.Nonce(owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce, "rejected txs keep the nonce")
}

func TestHandler_CheckDoesNotMutate(t *testing.T) {
	st, key := newGenesisState(t)
	h := NewInternalProposalTxHandler(cmtlog.NewNopLogger())
	payload := tx.InternalProposalTx{
		PolicingRatio: 60,
		VoteConfiguration: types.VoteConfiguration{
			MemberQuorum: 2, ReputationQuorum: 15, Threshold: 50, Timeout: 20, VoterStakingLimit: 30,
		},
	}

	res, err := h.Check(context.Background(), st, signed(t, key, tx.MVPRTxTypeCreateInternalProposal, 0, payload))
	require.NoError(t, err)
	assert.Equal(t, types.CodeOK, res.Code)
	assert.Equal(t, uint64(0), st.Lifecycle().NextID())

	payload.PolicingRatio = 0
	res, err = h.Check(context.Background(), st, signed(t, key, tx.MVPRTxTypeCreateInternalProposal, 0, payload))
	require.NoError(t, err)
	assert.Equal(t, types.CodeInvalidArgument, res.Code)
}

func TestHandler_SettleFlow(t *testing.T) {
	st, key := newGenesisState(t)
	ctx := context.Background()
	cfg := types.VoteConfiguration{MemberQuorum: 1, ReputationQuorum: 1, Threshold: 50, Timeout: 10, VoterStakingLimit: 30}

	res, err := NewInternalProposalTxHandler(cmtlog.NewNopLogger()).Process(ctx, st,
		signed(t, key, tx.MVPRTxTypeCreateInternalProposal, 0, tx.InternalProposalTx{PolicingRatio: 40, VoteConfiguration: cfg}))
	require.NoError(t, err)
	require.Equal(t, types.CodeOK, res.Code)

	st.SetTime(1059)
	res, err = NewTransitionTxHandler(cmtlog.NewNopLogger()).Process(ctx, st,
		signed(t, key, tx.MVPRTxTypeCallTransitionVote, 1, tx.TransitionTx{Proposal: 0}))
	require.NoError(t, err)
	assert.Equal(t, types.CodeCooldownNotElapsed, res.Code)

	st.SetTime(1060)
	res, err = NewTransitionTxHandler(cmtlog.NewNopLogger()).Process(ctx, st,
		signed(t, key, tx.MVPRTxTypeCallTransitionVote, 1, tx.TransitionTx{Proposal: 0}))
	require.NoError(t, err)
	require.Equal(t, types.CodeOK, res.Code)
	ev := types.DecodeEventTransition(res.Events[0])
	require.NotNil(t, ev)
	assert.Equal(t, uint64(1060), ev.OpenedAt)

	res, err = NewVoteTxHandler(cmtlog.NewNopLogger()).Process(ctx, st,
		signed(t, key, tx.MVPRTxTypeSubmitVote, 2, tx.VoteTx{Proposal: 0, Weight: 5, Support: true}))
	require.NoError(t, err)
	require.Equal(t, types.CodeOK, res.Code)

	settle := NewSettleProposalTxHandler(cmtlog.NewNopLogger())
	res, err = settle.Process(ctx, st, signed(t, key, tx.MVPRTxTypeCalculateVote, 3, tx.CalculateTx{Proposal: 0}))
	require.NoError(t, err)
	assert.Equal(t, types.CodeTimeoutNotElapsed, res.Code)

	st.SetTime(1070)
	res, err = settle.Process(ctx, st, signed(t, key, tx.MVPRTxTypeCalculateVote, 3, tx.CalculateTx{Proposal: 0}))
	require.NoError(t, err)
	require.Equal(t, types.CodeOK, res.Code)
	sev := types.DecodeEventSettleProposal(res.Events[0])
	require.NotNil(t, sev)
	assert.Equal(t, int64(types.ProposalStateAccepted), sev.State)
	assert.Equal(t, uint64(5), sev.ForWeight)
	assert.Equal(t, uint8(40), st.Lifecycle().Params().PolicingRatioFloor)
}
