package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mvpr"

// Metrics records governance activity as seen by this node's FinalizeBlock.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	txs         *prometheus.CounterVec
	proposals   *prometheus.CounterVec
	votes       prometheus.Counter
	voteWeight  prometheus.Counter
	settled     *prometheus.CounterVec
	height      prometheus.Gauge
	indexHeight prometheus.Gauge
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txs_total",
			Help:      "Delivered transactions by type and result code.",
		}, []string{"type", "code"}),
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_total",
			Help:      "Created proposals by kind.",
		}, []string{"kind"}),
		votes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Accepted votes.",
		}),
		voteWeight: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_weight_total",
			Help:      "Reputation weight committed by accepted votes.",
		}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_proposals_total",
			Help:      "Finalized tallies by outcome.",
		}, []string{"result"}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "block_height",
			Help:      "Last committed block height.",
		}),
		indexHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexer_height",
			Help:      "Last block height processed by the indexer.",
		}),
	}
	reg.MustRegister(m.txs, m.proposals, m.votes, m.voteWeight, m.settled, m.height, m.indexHeight)
	return m
}

func (m *Metrics) Tx(txType string, code uint32) {
	if m == nil {
		return
	}
	m.txs.WithLabelValues(txType, strconv.FormatUint(uint64(code), 10)).Inc()
}

func (m *Metrics) Proposal(kind string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(kind).Inc()
}

func (m *Metrics) Vote(weight uint64) {
	if m == nil {
		return
	}
	m.votes.Inc()
	m.voteWeight.Add(float64(weight))
}

func (m *Metrics) Settled(accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.settled.WithLabelValues(result).Inc()
}

func (m *Metrics) Height(h int64) {
	if m == nil {
		return
	}
	m.height.Set(float64(h))
}

func (m *Metrics) IndexerHeight(h int64) {
	if m == nil {
		return
	}
	m.indexHeight.Set(float64(h))
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
