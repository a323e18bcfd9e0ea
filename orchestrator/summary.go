package orchestrator

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/affect-demo/video"
)

type DemoInfo struct {
	RunID         string             `json:"run_id"`
	Timestamp     time.Time          `json:"timestamp"`
	CSVFile       string             `json:"csv_file"`
	VideoFile     string             `json:"video_file"`
	FusionWeights map[string]float64 `json:"fusion_weights"`
	Strategy      string             `json:"fusion_strategy"`
	Modalities    map[string]string  `json:"modalities"`
	Video         *video.Info        `json:"video,omitempty"`
}

// BiosignalSummary is empty ({}) when there were no biosignal predictions.
type BiosignalSummary struct {
	ValenceDistribution map[int]int `json:"valence_distribution,omitempty"`
	ArousalDistribution map[int]int `json:"arousal_distribution,omitempty"`
	AverageConfidence   *float64    `json:"average_confidence,omitempty"`
}

// EmotionSummary is empty ({}) when there were no predictions.
type EmotionSummary struct {
	EmotionDistribution map[string]int `json:"emotion_distribution,omitempty"`
	AverageConfidence   *float64       `json:"average_confidence,omitempty"`
}

type Summary struct {
	DemoInfo         DemoInfo         `json:"demo_info"`
	PredictionCounts map[string]int   `json:"prediction_counts"`
	BiosignalSummary BiosignalSummary `json:"biosignal_summary"`
	VisualSummary    EmotionSummary   `json:"visual_summary"`
	FusionSummary    EmotionSummary   `json:"fusion_summary"`
	StageErrors      []StageError     `json:"stage_errors"`
	TotalSeconds     float64          `json:"total_seconds"`
}

// summarize writes demo_summary.json and returns the run's elapsed time.
func (p *Pipeline) summarize(st *runState, bio []BiosignalPrediction, vis []VisualPrediction, fused []FusedPrediction) time.Duration {
	defer st.metrics.ObserveStage(stageSummary, time.Now())

	s := p.buildSummary(st, bio, vis, fused)
	path := filepath.Join(st.outDir, "demo_summary.json")
	if err := writeJSON(path, s); err != nil {
		p.stageFailed(st, stageSummary, fmt.Errorf("%w: %w", ErrIO, err))
	} else {
		st.log.WithField("path", path).Info("saved summary report")
	}

	elapsed := time.Since(st.started)
	st.log.WithFields(logrus.Fields{
		"biosignal": len(bio),
		"visual":    len(vis),
		"fused":     len(fused),
	}).Info("demo summary")
	return elapsed
}

func (p *Pipeline) buildSummary(st *runState, bio []BiosignalPrediction, vis []VisualPrediction, fused []FusedPrediction) Summary {
	errs := st.errors
	if errs == nil {
		errs = []StageError{}
	}
	return Summary{
		DemoInfo: DemoInfo{
			RunID:     st.id,
			Timestamp: time.Now().UTC(),
			CSVFile:   st.csvPath,
			VideoFile: st.videoPath,
			FusionWeights: map[string]float64{
				"biosignal": p.cfg.Fusion.BiosignalWeight,
				"visual":    p.cfg.Fusion.VisualWeight,
			},
			Strategy: p.cfg.Fusion.Strategy,
			Modalities: map[string]string{
				stageBiosignal: p.bio.Status(),
				stageVisual:    p.visual.Status(),
				stageFusion:    p.fusion.Status(),
			},
			Video: st.videoInfo,
		},
		PredictionCounts: map[string]int{
			"biosignal": len(bio),
			"visual":    len(vis),
			"fused":     len(fused),
		},
		BiosignalSummary: summarizeBiosignal(bio),
		VisualSummary: summarizeEmotions(len(vis), func(i int) (string, float64) {
			return vis[i].Emotion, vis[i].Confidence
		}),
		FusionSummary: summarizeEmotions(len(fused), func(i int) (string, float64) {
			return fused[i].DiscreteEmotion, fused[i].FusionConfidence
		}),
		StageErrors:  errs,
		TotalSeconds: time.Since(st.started).Seconds(),
	}
}

func summarizeBiosignal(bio []BiosignalPrediction) BiosignalSummary {
	if len(bio) == 0 {
		return BiosignalSummary{}
	}
	s := BiosignalSummary{
		ValenceDistribution: map[int]int{},
		ArousalDistribution: map[int]int{},
	}
	conf := make([]float64, 0, len(bio))
	for _, b := range bio {
		s.ValenceDistribution[b.Valence]++
		s.ArousalDistribution[b.Arousal]++
		conf = append(conf, b.Confidence)
	}
	avg := mean(conf)
	s.AverageConfidence = &avg
	return s
}

func summarizeEmotions(n int, at func(int) (string, float64)) EmotionSummary {
	if n == 0 {
		return EmotionSummary{}
	}
	s := EmotionSummary{EmotionDistribution: map[string]int{}}
	conf := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		emotion, c := at(i)
		s.EmotionDistribution[emotion]++
		conf = append(conf, c)
	}
	avg := mean(conf)
	s.AverageConfidence = &avg
	return s
}
