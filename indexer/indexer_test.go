package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/calehh/mvpr-app/metrics"
	"github.com/calehh/mvpr-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x00000000000000000000000000000000000A11cE"
	bob   = "0x0000000000000000000000000000000000000B0b"
)

func newTestIndexer(t *testing.T, m *metrics.Metrics) *ChainIndexer {
	t.Helper()
	c, err := NewChainIndexer(cmtlog.NewNopLogger(), filepath.Join(t.TempDir(), "indexer.db"), "tcp://127.0.0.1:26657", m)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func ok(events ...abci.Event) *abci.ExecTxResult {
	return &abci.ExecTxResult{Code: types.CodeOK, Events: events}
}

func indexGovernance(t *testing.T, c *ChainIndexer) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.handleBlock(ctx, 1, []*abci.ExecTxResult{
		ok(types.EncodeEventMember(&types.EventMember{Address: bob, Member: true})),
		ok(types.EncodeEventReputation(&types.EventReputation{Address: bob, Amount: 50, Mint: true, Balance: 50})),
		ok(types.EncodeEventRole(&types.EventRole{Role: "minter", Address: bob, Grant: true})),
		ok(types.EncodeEventProposal(&types.EventProposal{
			ProposalIndex: 0, Kind: uint64(types.ProposalKindInternal), ProposerAddress: alice,
			CreatedAt: 1000, Status: uint64(types.ProposalStateProposed),
		})),
		{Code: types.CodeTallyNotOpen, Log: "tally not open"},
	}))
	require.NoError(t, c.handleBlock(ctx, 2, []*abci.ExecTxResult{
		ok(types.EncodeEventTransition(&types.EventTransition{Proposal: 0, Caller: alice, OpenedAt: 1060})),
		ok(types.EncodeEventVote(&types.EventVote{Proposal: 0, Voter: alice, Weight: 20, Support: true})),
		ok(types.EncodeEventVote(&types.EventVote{Proposal: 0, Voter: bob, Weight: 5, Support: false})),
	}))
	require.NoError(t, c.handleBlock(ctx, 3, []*abci.ExecTxResult{
		ok(types.EncodeEventSettleProposal(&types.EventSettleProposal{
			Proposal: 0, State: int64(types.ProposalStateAccepted), ForWeight: 20, AgainstWeight: 5, Voters: 2,
		})),
	}))
}

func TestIndexer_HandleBlocks(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := newTestIndexer(t, m)
	assert.Equal(t, int64(1), c.Height)
	indexGovernance(t, c)
	assert.Equal(t, int64(4), c.Height)

	member, err := c.member(bob)
	require.NoError(t, err)
	assert.True(t, member.Member)
	assert.Equal(t, uint64(50), member.Balance)

	roles, err := c.getRoleChanges(bob, 0, 10)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "minter", roles[0].Role)

	p, err := c.getProposalById(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(types.ProposalStateAccepted), p.Status)
	assert.Equal(t, uint64(1060), p.OpenedAt)
	assert.Equal(t, uint64(2), p.TransitionHeight)
	assert.Equal(t, uint64(3), p.SettleHeight)
	assert.Equal(t, uint64(20), p.ForWeight)
	assert.Equal(t, uint64(2), p.Voters)

	id := uint64(0)
	votes, total, err := c.getVotes(&id, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	assert.Len(t, votes, 2)

	votes, total, err = c.getVotes(nil, bob, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	assert.False(t, votes[0].Support)
}

func TestIndexer_ResumesHeight(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "indexer.db")
	c, err := NewChainIndexer(cmtlog.NewNopLogger(), dbPath, "", nil)
	require.NoError(t, err)
	require.NoError(t, c.handleBlock(context.Background(), 7, nil))
	require.NoError(t, c.Close())

	c, err = NewChainIndexer(cmtlog.NewNopLogger(), dbPath, "", nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, int64(8), c.Height)
}

func TestIndexer_Paging(t *testing.T) {
	c := newTestIndexer(t, nil)
	ctx := context.Background()
	results := make([]*abci.ExecTxResult, 0, 5)
	for i := uint64(0); i < 5; i++ {
		results = append(results, ok(types.EncodeEventProposal(&types.EventProposal{
			ProposalIndex: i, Kind: uint64(types.ProposalKindExternal), ProposerAddress: alice, Name: "p",
			Status: uint64(types.ProposalStateProposed),
		})))
	}
	require.NoError(t, c.handleBlock(ctx, 1, results))

	proposals, total, err := c.getProposals(ProposalFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), total)
	require.Len(t, proposals, 2)
	assert.Equal(t, uint64(2), proposals[0].ProposalId)

	_, total, err = c.getProposals(ProposalFilter{Proposer: bob}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), total)

	offset, limit := pageBounds(-1, 1000)
	assert.Equal(t, 0, offset)
	assert.Equal(t, maxPageSize, limit)
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	dat, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(dat))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New(prometheus.NewRegistry())
	c := newTestIndexer(t, m)
	indexGovernance(t, c)
	s := NewService("127.0.0.1:0", c, m)

	id := uint64(0)
	rec := post(t, s.engine, "/getProposals", GetProposalsReq{ProposalId: &id})
	require.Equal(t, http.StatusOK, rec.Code)
	var proposals GetProposalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proposals))
	require.Len(t, proposals.Proposals, 1)
	assert.Equal(t, uint64(0), proposals.Proposals[0].Proposal.ProposalId)
	assert.Len(t, proposals.Proposals[0].Votes, 2)

	missing := uint64(9)
	rec = post(t, s.engine, "/getProposals", GetProposalsReq{ProposalId: &missing})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(t, s.engine, "/getVotes", GetVotesReq{Voter: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	var votes GetVotesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &votes))
	assert.Equal(t, uint64(1), votes.Total)

	rec = post(t, s.engine, "/getVotes", GetVotesReq{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, s.engine, "/getMembers", GetMembersReq{OnlyMembers: true})
	require.Equal(t, http.StatusOK, rec.Code)
	var members GetMembersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	require.Len(t, members.Members, 1)
	assert.Equal(t, bob, members.Members[0].Address)

	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mvpr_indexer_height 3")
}
