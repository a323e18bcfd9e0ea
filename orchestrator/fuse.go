package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/affect-demo/fusion"
)

// fuse pairs every biosignal segment with the visual record nearest in time
// and writes fused_predictions.json. Segments without a visual partner are
// dropped.
func (p *Pipeline) fuse(ctx context.Context, st *runState, bio []BiosignalPrediction, vis []VisualPrediction) []FusedPrediction {
	defer st.metrics.ObserveStage(stageFusion, time.Now())
	log := st.log.WithField("stage", stageFusion)
	fused := []FusedPrediction{}

	mod, ok := p.fusion.Model()
	switch {
	case !ok:
		p.stageFailed(st, stageFusion, fmt.Errorf("skipping fusion: %w", p.fusion.Reason()))
	case len(bio) == 0 && len(vis) == 0:
		log.Warn("no predictions available for fusion")
	default:
		log.WithFields(logrus.Fields{"biosignal": len(bio), "visual": len(vis)}).Info("fusing predictions")
		fused = p.match(ctx, log, mod, bio, vis)
	}
	st.metrics.Predictions.WithLabelValues(stageFusion).Add(float64(len(fused)))

	path := filepath.Join(st.outDir, "fused_predictions.json")
	if err := writeJSON(path, fused); err != nil {
		p.stageFailed(st, stageFusion, fmt.Errorf("%w: %w", ErrIO, err))
		return fused
	}
	log.WithFields(logrus.Fields{"path": path, "fused": len(fused)}).Info("saved fused predictions")
	return fused
}

func (p *Pipeline) match(ctx context.Context, log logrus.FieldLogger, mod *fusion.Module, bio []BiosignalPrediction, vis []VisualPrediction) []FusedPrediction {
	fused := []FusedPrediction{}

	times := make([]float64, len(vis))
	for i, v := range vis {
		times[i] = v.Timestamp
	}

	for i, b := range bio {
		if ctx.Err() != nil {
			break
		}
		query := fusion.SegmentTime(i, p.cfg.Fusion.SegmentSeconds)
		j, diff := fusion.Nearest(query, times)
		if j < 0 {
			log.WithField("segment", b.SegmentID).Debug("no visual match for biosignal segment")
			continue
		}
		v := vis[j]

		r := mod.Fuse(
			fusion.Biosignal{Valence: b.Valence, Arousal: b.Arousal, Confidence: b.Confidence},
			fusion.Visual{Emotion: v.Emotion, Valence: v.Valence, Arousal: v.Arousal, Confidence: v.Confidence},
		)
		fused = append(fused, FusedPrediction{
			FusionID:              i + 1,
			BiosignalSegment:      b.SegmentID,
			VisualFrame:           v.FrameID,
			Timestamp:             b.Timestamp,
			Valence:               r.Valence,
			Arousal:               r.Arousal,
			DiscreteEmotion:       r.DiscreteEmotion,
			FusionConfidence:      r.Confidence,
			FusionStrategy:        r.Strategy,
			BiosignalContribution: r.BiosignalContribution,
			VisualContribution:    r.VisualContribution,
			Metadata: FusedMetadata{
				TimeDifference:   diff,
				VisualTimestamp:  v.Timestamp,
				VisualEmotion:    v.Emotion,
				VisualFaceID:     v.FaceID,
				BiosignalValence: r.BiosignalAffect.Valence,
				BiosignalArousal: r.BiosignalAffect.Arousal,
			},
		})
		log.WithFields(logrus.Fields{
			"segment": b.SegmentID,
			"frame":   v.FrameID,
			"diff":    fmt.Sprintf("%.1fs", diff),
			"emotion": r.DiscreteEmotion,
		}).Debug("segment fused")
	}
	return fused
}
