package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/affect-demo/fusion"
	"github.com/maastricht-university/affect-demo/video"
)

// processVideo samples frames from the video, runs the face detector on each
// and writes visual_predictions.json.
func (p *Pipeline) processVideo(ctx context.Context, st *runState) []VisualPrediction {
	defer st.metrics.ObserveStage(stageVisual, time.Now())

	preds, err := p.detectFaces(ctx, st)
	if err != nil {
		p.stageFailed(st, stageVisual, err)
		if preds == nil {
			preds = []VisualPrediction{}
		}
	}
	st.metrics.Predictions.WithLabelValues(stageVisual).Add(float64(len(preds)))

	path := filepath.Join(st.outDir, "visual_predictions.json")
	if err := writeJSON(path, preds); err != nil {
		p.stageFailed(st, stageVisual, fmt.Errorf("%w: %w", ErrIO, err))
		return preds
	}
	st.log.WithField("path", path).Info("saved visual predictions")
	return preds
}

// detectFaces returns what it collected so far together with any error, so
// a cancelled run still keeps the frames already processed.
func (p *Pipeline) detectFaces(ctx context.Context, st *runState) ([]VisualPrediction, error) {
	log := st.log.WithField("stage", stageVisual)
	preds := []VisualPrediction{}

	det, ok := p.visual.Model()
	if !ok {
		return preds, fmt.Errorf("skipping video processing: %w", p.visual.Reason())
	}

	log.WithField("video", st.videoPath).Info("reading video data")
	if _, err := os.Stat(st.videoPath); err != nil {
		return preds, fmt.Errorf("%w: could not open video file: %w", ErrIO, err)
	}
	info, err := p.sampler.Probe(ctx, st.videoPath)
	if err != nil {
		return preds, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	st.videoInfo = &info
	log.WithFields(logrus.Fields{
		"frames":   info.FrameCount,
		"fps":      fmt.Sprintf("%.2f", info.FPS),
		"duration": fmt.Sprintf("%.2fs", info.Duration),
	}).Info("video info")

	interval, err := video.FrameInterval(info.FPS, p.cfg.Video.SampleSeconds)
	if err != nil {
		return preds, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	dir, err := os.MkdirTemp("", "affect-frames-*")
	if err != nil {
		return preds, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer os.RemoveAll(dir)

	frames, err := p.sampler.Sample(ctx, st.videoPath, info, interval, dir)
	if err != nil {
		return preds, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	st.metrics.FramesSampled.Add(float64(len(frames)))
	log.WithFields(logrus.Fields{
		"sampled":  len(frames),
		"interval": interval,
	}).Info("starting frame-by-frame emotion detection")

	prog := p.newProgress(st, len(frames), info.FrameCount)
	defer prog.Finish()

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return preds, err
		}
		flog := log.WithFields(logrus.Fields{"frame": f.Number, "at": fmt.Sprintf("%.1fs", f.Timestamp)})

		resp, err := det.Detect(ctx, f.Path)
		if err != nil {
			flog.WithError(err).Warn("detector failed on frame")
			prog.Step(i+1, f.Number)
			continue
		}
		if len(resp.Faces) == 0 {
			flog.Debug("no faces detected")
		}
		processed := time.Now().UTC()
		for faceID, face := range resp.Faces {
			va, _ := fusion.MapEmotion(face.Emotion, face.Confidence)
			preds = append(preds, VisualPrediction{
				FrameID:        f.Number,
				Timestamp:      f.Timestamp,
				FaceID:         faceID,
				Emotion:        face.Emotion,
				Confidence:     face.Confidence,
				Valence:        va.Valence,
				Arousal:        va.Arousal,
				Position:       face.Position,
				ProcessingTime: processed,
			})
			flog.WithFields(logrus.Fields{
				"face":       faceID + 1,
				"emotion":    face.Emotion,
				"confidence": fmt.Sprintf("%.3f", face.Confidence),
			}).Debug("face classified")
		}
		prog.Step(i+1, f.Number)
	}

	log.WithField("predictions", len(preds)).Info("completed video processing")
	return preds, nil
}
