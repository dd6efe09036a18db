package trellis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons a root frame is abandoned.
const (
	abortNoSurface    = "no_surface"
	abortRequestFrame = "request_frame"
	abortNoCanvas     = "no_canvas"
	abortFlushFrame   = "flush_frame"
)

var (
	framesFlushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trellis_frames_flushed_total",
		Help: "Total number of root frames painted and flushed",
	})

	framesAbortedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trellis_frames_aborted_total",
		Help: "Root frames abandoned before flush, by reason",
	}, []string{"reason"})

	opDroppedNodesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trellis_op_dropped_nodes_total",
		Help: "Nodes whose painting was skipped because they missed the frame damage",
	})

	damageAreaPixels = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trellis_damage_area_pixels",
		Help:    "Area of the damage rectangle redrawn per frame",
		Buckets: prometheus.ExponentialBuckets(256, 4, 10),
	})

	traversalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trellis_traversal_duration_seconds",
		Help:    "Duration of one traversal pass",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.004, 0.008, 0.016, 0.033},
	}, []string{"pass"})

	frameDrawOps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trellis_frame_draw_ops",
		Help:    "Paint operations issued per flushed frame",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	overdrawRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trellis_overdraw_ratio",
		Help: "Painted area divided by buffer area for the last frame flushed with overdraw counting on",
	})

	registeredNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trellis_registered_nodes",
		Help: "Current number of nodes in the most recently changed registry",
	})

	capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trellis_captures_total",
		Help: "Capture tasks run, by result",
	}, []string{"result"})
)
