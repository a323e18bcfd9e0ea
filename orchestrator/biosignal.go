package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/affect-demo/signal"
)

func (p *Pipeline) signalParams() signal.Params {
	s := p.cfg.Signal
	return signal.Params{
		OriginalRate:  s.OriginalRate,
		TargetRate:    s.TargetRate,
		SegmentLength: s.SegmentLength,
		Scale:         s.Scale,
	}
}

// processBiosignal turns the CSV into per-segment CNN predictions and writes
// biosignal_predictions.{json,csv}.
func (p *Pipeline) processBiosignal(ctx context.Context, st *runState) []BiosignalPrediction {
	defer st.metrics.ObserveStage(stageBiosignal, time.Now())

	preds, err := p.predictBiosignal(ctx, st)
	if err != nil {
		p.stageFailed(st, stageBiosignal, err)
		preds = []BiosignalPrediction{}
	}
	st.metrics.Predictions.WithLabelValues(stageBiosignal).Add(float64(len(preds)))

	jsonPath := filepath.Join(st.outDir, "biosignal_predictions.json")
	if err := writeJSON(jsonPath, preds); err != nil {
		p.stageFailed(st, stageBiosignal, fmt.Errorf("%w: %w", ErrIO, err))
		return preds
	}
	if err := writeBiosignalCSV(filepath.Join(st.outDir, "biosignal_predictions.csv"), preds); err != nil {
		p.stageFailed(st, stageBiosignal, fmt.Errorf("%w: %w", ErrIO, err))
	}
	st.log.WithField("path", jsonPath).Info("saved biosignal predictions")
	return preds
}

func (p *Pipeline) predictBiosignal(ctx context.Context, st *runState) ([]BiosignalPrediction, error) {
	log := st.log.WithField("stage", stageBiosignal)
	preds := []BiosignalPrediction{}

	model, ok := p.bio.Model()
	if !ok {
		return preds, fmt.Errorf("skipping biosignal processing: %w", p.bio.Reason())
	}

	log.WithField("csv", st.csvPath).Info("reading biosignal data")
	rec, err := signal.ReadPPGFile(st.csvPath, log)
	if err != nil {
		if errors.Is(err, signal.ErrMalformed) {
			return preds, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		return preds, fmt.Errorf("%w: %w", ErrIO, err)
	}
	log.WithFields(logrus.Fields{
		"rows":    rec.Rows,
		"skipped": rec.Skipped,
		"points":  len(rec.Samples),
	}).Info("extracted PPG data points")
	if len(rec.Samples) == 0 {
		log.Warn("no valid PPG data found")
		return preds, nil
	}

	prep := signal.Prepare(rec.Samples, p.signalParams())
	st.metrics.Segments.Add(float64(len(prep.Segments)))
	log.WithFields(logrus.Fields{
		"resampled": prep.Resampled,
		"segments":  len(prep.Segments),
	}).Info("created signal segments")
	if len(prep.Segments) == 0 {
		log.Warn("recording shorter than one segment")
		return preds, nil
	}

	resp, err := model.Predict(ctx, prep.Segments)
	if err != nil {
		return preds, fmt.Errorf("%w: predict: %w", ErrModelUnavailable, err)
	}

	for i, seg := range prep.Segments {
		vClass, vConf, err := classify(resp.ValenceLogits[i])
		if err != nil {
			return []BiosignalPrediction{}, fmt.Errorf("%w: segment %d valence: %w", ErrMalformedInput, i+1, err)
		}
		aClass, aConf, err := classify(resp.ArousalLogits[i])
		if err != nil {
			return []BiosignalPrediction{}, fmt.Errorf("%w: segment %d arousal: %w", ErrMalformedInput, i+1, err)
		}

		pred := BiosignalPrediction{
			SegmentID:         i + 1,
			Valence:           vClass,
			Arousal:           aClass,
			Confidence:        (vConf + aConf) / 2,
			ValenceConfidence: vConf,
			ArousalConfidence: aConf,
			Timestamp:         prep.Offsets[i],
			PPGSegment:        seg,
		}
		if !rec.Start.IsZero() {
			t := rec.Start.Add(time.Duration(prep.Offsets[i] * float64(time.Second)))
			pred.StartTime = &t
		}
		preds = append(preds, pred)

		log.WithFields(logrus.Fields{
			"segment":    pred.SegmentID,
			"valence":    pred.Valence,
			"arousal":    pred.Arousal,
			"confidence": fmt.Sprintf("%.3f", pred.Confidence),
		}).Debug("segment classified")
	}
	return preds, nil
}
