// Package metrics collects per-run pipeline metrics and writes them in the
// Prometheus text format next to the other run artifacts, where a
// node_exporter textfile collector can pick them up.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	reg *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	Predictions   *prometheus.CounterVec
	FramesSampled prometheus.Counter
	Segments      prometheus.Counter
	Modality      *prometheus.GaugeVec
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "affect_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affect_stage_failures_total",
			Help: "Stages that ended with an error, by stage and kind",
		}, []string{"stage", "kind"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "affect_predictions_total",
			Help: "Prediction records produced, by modality",
		}, []string{"modality"}),
		FramesSampled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "affect_frames_sampled_total",
			Help: "Video frames sent to the face detector",
		}),
		Segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "affect_signal_segments_total",
			Help: "Biosignal segments cut from the PPG stream",
		}),
		Modality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "affect_modality_available",
			Help: "1 when the modality's model loaded, 0 otherwise",
		}, []string{"modality"}),
	}
	r.reg.MustRegister(r.StageDuration, r.StageFailures, r.Predictions, r.FramesSampled, r.Segments, r.Modality)
	return r
}

// ObserveStage records the time since start for stage.
func (r *Recorder) ObserveStage(stage string, start time.Time) {
	r.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (r *Recorder) SetAvailable(modality string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	r.Modality.WithLabelValues(modality).Set(v)
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile atomically writes the registry to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
