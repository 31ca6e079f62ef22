package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Tx("SubmitVote", 0)
	m.Tx("SubmitVote", 0)
	m.Tx("SubmitVote", 7)
	m.Proposal("internal")
	m.Vote(5)
	m.Vote(10)
	m.Settled(true)
	m.Height(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.txs.WithLabelValues("SubmitVote", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txs.WithLabelValues("SubmitVote", "7")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proposals.WithLabelValues("internal")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.votes))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.voteWeight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settled.WithLabelValues("accepted")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.height))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Tx("Mint", 0)
		m.Vote(1)
		m.Settled(false)
		m.Height(1)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Height(7)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mvpr_block_height 7")
}
