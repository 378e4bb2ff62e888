package editor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chazu/asphalt/pkg/ids"
	"github.com/chazu/asphalt/pkg/road"
)

// Metrics are the editor's Prometheus collectors.
type Metrics struct {
	// Commits counts applied commands by command and result.
	Commits *prometheus.CounterVec
	// Rejected counts refused commands by error kind.
	Rejected *prometheus.CounterVec
	// MeshDuration tracks how long a mesh refresh takes.
	MeshDuration prometheus.Histogram

	Nodes    prometheus.Gauge
	Segments prometheus.Gauge
	Trees    prometheus.Gauge
}

// NewMetrics registers the editor collectors with reg. A nil reg creates
// unregistered collectors, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "asphalt_editor_commits_total",
			Help: "Total editor commands by command and result",
		}, []string{"command", "result"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "asphalt_editor_rejected_total",
			Help: "Total rejected editor commands by reason",
		}, []string{"reason"}),
		MeshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "asphalt_editor_mesh_duration_seconds",
			Help:    "Mesh refresh duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		Nodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "asphalt_graph_nodes",
			Help: "Nodes in the road graph",
		}),
		Segments: f.NewGauge(prometheus.GaugeOpts{
			Name: "asphalt_graph_segments",
			Help: "Segments in the road graph",
		}),
		Trees: f.NewGauge(prometheus.GaugeOpts{
			Name: "asphalt_graph_trees",
			Help: "Trees in the road graph",
		}),
	}
}

func (m *Metrics) observe(g *road.Graph) {
	m.Nodes.Set(float64(g.NodeCount()))
	m.Segments.Set(float64(g.SegmentCount()))
	m.Trees.Set(float64(g.TreeCount()))
}

// reason maps a command error to a low-cardinality label.
func reason(err error) string {
	switch {
	case errors.Is(err, ids.ErrIdentifierExhausted):
		return "exhausted"
	case errors.Is(err, road.ErrInvalidBuilder):
		return "invalid_builder"
	case errors.Is(err, road.ErrSegmentTooShort):
		return "too_short"
	case errors.Is(err, road.ErrIncompatibleSnap):
		return "incompatible_snap"
	case errors.Is(err, road.ErrInvalidCurveConstraint):
		return "curve"
	case errors.Is(err, road.ErrNodeNotFound), errors.Is(err, road.ErrSegmentNotFound):
		return "not_found"
	case errors.Is(err, road.ErrOccupied):
		return "occupied"
	default:
		return "other"
	}
}
