package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/calehh/mvpr-app/config"
	"github.com/calehh/mvpr-app/metrics"
	"github.com/calehh/mvpr-app/reputation"
	"github.com/calehh/mvpr-app/state"
	"github.com/calehh/mvpr-app/tx"
	"github.com/calehh/mvpr-app/types"
	"github.com/calehh/mvpr-app/voting"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainID = "mvpr-test"

type testChain struct {
	t      *testing.T
	app    *MVPRApp
	key    ed25519.PrivKey
	owner  common.Address
	nonce  uint64
	height int64
}

func newTestChain(t *testing.T, genesisTime int64) *testChain {
	t.Helper()
	logger := cmtlog.NewNopLogger()
	db, err := state.NewMemStateDB(logger)
	require.NoError(t, err)
	app := newMVPRApp(config.DefaultAppConfig(t.TempDir()), logger, db, metrics.New(prometheus.NewRegistry()))

	key := ed25519.GenPrivKey()
	owner := tx.SignerAddress(key.PubKey().Bytes())
	appState, err := json.Marshal(types.DefaultGenesisState(owner))
	require.NoError(t, err)
	res, err := app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		Time:          time.Unix(genesisTime, 0),
		ChainId:       chainID,
		AppStateBytes: appState,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AppHash)
	return &testChain{t: t, app: app, key: key, owner: owner}
}

func (c *testChain) sign(tp tx.MVPRTxType, payload any) []byte {
	c.t.Helper()
	btx := &tx.MVPRTx{Type: tp, Nonce: c.nonce, Tx: payload}
	require.NoError(c.t, tx.Sign(btx, c.key, chainID))
	dat, err := tx.MarshalMVPRTx(btx)
	require.NoError(c.t, err)
	c.nonce++
	return dat
}

func (c *testChain) block(at int64, txs ...[]byte) *abcitypes.ResponseFinalizeBlock {
	c.t.Helper()
	c.height++
	res, err := c.app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Txs:    txs,
		Height: c.height,
		Time:   time.Unix(at, 0),
	})
	require.NoError(c.t, err)
	_, err = c.app.Commit(context.Background(), &abcitypes.RequestCommit{})
	require.NoError(c.t, err)
	return res
}

func (c *testChain) query(path string, data []byte, v any) *abcitypes.ResponseQuery {
	c.t.Helper()
	res, err := c.app.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: data})
	require.NoError(c.t, err)
	if res.Code == types.CodeOK && v != nil {
		require.NoError(c.t, json.Unmarshal(res.Value, v))
	}
	return res
}

func TestApp_InitChain(t *testing.T) {
	c := newTestChain(t, 1000)

	var acnt reputation.Account
	res := c.query(QueryMembers, c.owner.Bytes(), &acnt)
	require.Equal(t, types.CodeOK, res.Code)
	assert.True(t, acnt.Member)
	assert.Equal(t, types.DefaultGenesisBalance, acnt.Balance)

	var params types.SystemParams
	c.query(QueryParams, nil, &params)
	assert.Equal(t, types.DefaultPolicingRatioFloor, params.PolicingRatioFloor)
	assert.Equal(t, types.DefaultCooldown, params.Cooldown)

	info, err := c.app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.LastBlockHeight)
	assert.NotEmpty(t, info.LastBlockAppHash)

	again, err := c.app.InitChain(context.Background(), &abcitypes.RequestInitChain{ChainId: chainID})
	require.NoError(t, err)
	assert.Equal(t, info.LastBlockAppHash, again.AppHash)
}

func TestApp_InitChainEmptyAppState(t *testing.T) {
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	app := newMVPRApp(config.DefaultAppConfig(t.TempDir()), cmtlog.NewNopLogger(), db, nil)
	_, err = app.InitChain(context.Background(), &abcitypes.RequestInitChain{ChainId: chainID})
	assert.ErrorIs(t, err, ErrEmptyAppState)
}

func TestApp_MemberBlock(t *testing.T) {
	c := newTestChain(t, 1000)
	member := common.HexToAddress("0x0000000000000000000000000000000000000abc")

	res := c.block(1001,
		c.sign(tx.MVPRTxTypeAddMember, tx.MemberTx{Address: member}),
		c.sign(tx.MVPRTxTypeMint, tx.ReputationTx{Address: member, Amount: 40}),
	)
	require.Len(t, res.TxResults, 2)
	for _, r := range res.TxResults {
		assert.Equal(t, types.CodeOK, r.Code, r.Log)
	}

	var acnt reputation.Account
	c.query(QueryMembers, []byte(member.Hex()), &acnt)
	assert.True(t, acnt.Member)
	assert.Equal(t, uint64(40), acnt.Balance)

	var nonce uint64
	q := c.query(QueryNonce, c.owner.Bytes(), &nonce)
	assert.Equal(t, uint64(2), nonce)
	assert.Equal(t, int64(1), q.Height)
}

func TestApp_CheckTx(t *testing.T) {
	c := newTestChain(t, 1000)
	ctx := context.Background()

	res, err := c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: []byte("not a tx")})
	require.NoError(t, err)
	assert.NotEqual(t, types.CodeOK, res.Code)

	c.nonce = 3
	res, err = c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: c.sign(tx.MVPRTxTypeAddMember, tx.MemberTx{Address: common.HexToAddress("0x01")})})
	require.NoError(t, err)
	assert.Equal(t, types.CodeOK, res.Code, "a nonce gap is fine in the mempool")

	res, err = c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: c.sign(tx.MVPRTxTypeCalculateVote, tx.CalculateTx{Proposal: 9})})
	require.NoError(t, err)
	assert.Equal(t, types.CodeTallyNotOpen, res.Code)

	var acnt reputation.Account
	c.query(QueryMembers, common.HexToAddress("0x01").Bytes(), &acnt)
	assert.False(t, acnt.Member, "CheckTx never touches committed state")
}

func TestApp_PrepareAndProcessProposal(t *testing.T) {
	c := newTestChain(t, 1000)
	ctx := context.Background()

	good := c.sign(tx.MVPRTxTypeAddMember, tx.MemberTx{Address: common.HexToAddress("0x01")})
	bad := c.sign(tx.MVPRTxTypeSubmitVote, tx.VoteTx{Proposal: 0, Weight: 1, Support: true})
	garbage := []byte("{}")

	prep, err := c.app.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{
		Txs:        [][]byte{good, bad, garbage},
		Height:     1,
		Time:       time.Unix(1001, 0),
		MaxTxBytes: 1 << 20,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{good}, prep.Txs)

	proc, err := c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Txs: prep.Txs, Height: 1, Time: time.Unix(1001, 0)})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, proc.Status)

	proc, err = c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Txs: [][]byte{good, bad}, Height: 1, Time: time.Unix(1001, 0)})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_REJECT, proc.Status)

	proc, err = c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Height: 1, Time: time.Unix(1001, 0)})
	require.NoError(t, err)
	assert.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, proc.Status)
}

func TestApp_FinalizeRecordsRejectedTx(t *testing.T) {
	c := newTestChain(t, 1000)
	res := c.block(1001,
		c.sign(tx.MVPRTxTypeSubmitVote, tx.VoteTx{Proposal: 0, Weight: 1, Support: true}),
		[]byte("garbage"),
	)
	require.Len(t, res.TxResults, 2)
	assert.Equal(t, types.CodeTallyNotOpen, res.TxResults[0].Code)
	assert.NotEqual(t, types.CodeOK, res.TxResults[1].Code)
}

func TestApp_GovernanceFlow(t *testing.T) {
	c := newTestChain(t, 1000)
	cfg := types.VoteConfiguration{MemberQuorum: 1, ReputationQuorum: 1, Threshold: 50, Timeout: 10, VoterStakingLimit: 30}

	res := c.block(1000, c.sign(tx.MVPRTxTypeCreateInternalProposal, tx.InternalProposalTx{PolicingRatio: 40, VoteConfiguration: cfg}))
	require.Equal(t, types.CodeOK, res.TxResults[0].Code, res.TxResults[0].Log)

	res = c.block(1060,
		c.sign(tx.MVPRTxTypeCallTransitionVote, tx.TransitionTx{Proposal: 0}),
		c.sign(tx.MVPRTxTypeSubmitVote, tx.VoteTx{Proposal: 0, Weight: 20, Support: true}),
	)
	for _, r := range res.TxResults {
		require.Equal(t, types.CodeOK, r.Code, r.Log)
	}

	var tally voting.Tally
	c.query(QueryTallies, EncodeID(0), &tally)
	assert.Equal(t, uint64(20), tally.ForWeight)
	assert.Equal(t, uint64(1060), tally.OpenedAt)
	assert.False(t, tally.Finalized)

	res = c.block(1069, c.sign(tx.MVPRTxTypeCalculateVote, tx.CalculateTx{Proposal: 0}))
	assert.Equal(t, types.CodeTimeoutNotElapsed, res.TxResults[0].Code)
	c.nonce--

	res = c.block(1070, c.sign(tx.MVPRTxTypeCalculateVote, tx.CalculateTx{Proposal: 0}))
	require.Equal(t, types.CodeOK, res.TxResults[0].Code, res.TxResults[0].Log)

	var params types.SystemParams
	c.query(QueryParams, nil, &params)
	assert.Equal(t, uint8(40), params.PolicingRatioFloor)

	c.query(QueryTallies, EncodeID(0), &tally)
	assert.True(t, tally.Finalized)
	require.NotNil(t, tally.Result)
	assert.True(t, tally.Result.Accepted)

	q := c.query(QueryProposals, EncodeID(0), nil)
	assert.Equal(t, types.CodeOK, q.Code)
	assert.Equal(t, int64(4), q.Height)
}

func TestApp_Query(t *testing.T) {
	c := newTestChain(t, 1000)

	res := c.query("/unknown", nil, nil)
	assert.Equal(t, uint32(404), res.Code)

	res = c.query(QueryProposals, EncodeID(7), nil)
	assert.Equal(t, types.CodeNotFound, res.Code)

	res = c.query(QueryTallies, nil, nil)
	assert.Equal(t, types.CodeInvalidArgument, res.Code)

	res = c.query(QueryMilestones, EncodeID(0), nil)
	assert.Equal(t, types.CodeInvalidArgument, res.Code)

	res = c.query(QueryMembers, []byte("nope"), nil)
	assert.Equal(t, types.CodeInvalidArgument, res.Code)
}
