package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/affect-demo/clients"
	cfg "github.com/maastricht-university/affect-demo/config"
	"github.com/maastricht-university/affect-demo/history"
	"github.com/maastricht-university/affect-demo/video"
)

// fakeSampler pretends to decode a 10 s, 25 fps video.
type fakeSampler struct {
	info    video.Info
	probeEr error
}

func (f fakeSampler) Probe(context.Context, string) (video.Info, error) {
	return f.info, f.probeEr
}

func (f fakeSampler) Sample(_ context.Context, _ string, info video.Info, interval int, dir string) ([]video.Frame, error) {
	var frames []video.Frame
	for n := interval; n <= info.FrameCount; n += interval {
		p := filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", n/interval))
		if err := os.WriteFile(p, []byte("jpeg"), 0o644); err != nil {
			return nil, err
		}
		frames = append(frames, video.Frame{Number: n, Timestamp: float64(n) / info.FPS, Path: p})
	}
	return frames, nil
}

func bioServer(t *testing.T, loadStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/load":
			w.WriteHeader(loadStatus)
		case "/predict":
			var req clients.BioPredictReq
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			out := clients.BioPredictResp{}
			for range req.Segments {
				out.ValenceLogits = append(out.ValenceLogits, []float64{0, 2})
				out.ArousalLogits = append(out.ArousalLogits, []float64{0, 1})
			}
			_ = json.NewEncoder(w).Encode(out)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func detectorServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/detect":
			_ = json.NewEncoder(w).Encode(clients.DetectResp{Faces: []clients.Face{
				{Emotion: "happy", Confidence: 0.9, Position: clients.Position{X: 1, Y: 2, W: 30, H: 30}},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, bioURL, detURL string) *cfg.Root {
	t.Helper()
	c := &cfg.Root{
		Signal: cfg.Signal{OriginalRate: 25, TargetRate: 64, SegmentLength: 140, Scale: 1000},
		Video:  cfg.Video{SampleSeconds: 2, ProgressEvery: 1},
		Fusion: cfg.Fusion{
			Strategy:         "weighted_average",
			BiosignalWeight:  0.4,
			VisualWeight:     0.6,
			SegmentSeconds:   2.2,
			BiosignalClasses: 2,
		},
	}
	c.Services.Biosignal.URL = bioURL
	c.Services.Biosignal.Weights = "emotion_cnn.pth"
	c.Services.Detector.URL = detURL
	c.Paths.Outputs = t.TempDir()
	require.NoError(t, c.Validate())
	return c
}

// writeCSV writes n single-sample rows at 25 Hz.
func writeCSV(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,ppg_gr\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "2024-03-01 10:00:%02d,%d\n", i/25, 500+int(100*math.Sin(float64(i)/4)))
	}
	p := filepath.Join(t.TempDir(), "ppg.csv")
	require.NoError(t, os.WriteFile(p, []byte(b.String()), 0o644))
	return p
}

func newTestPipeline(t *testing.T, c *cfg.Root, opts ...Option) *Pipeline {
	t.Helper()
	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	opts = append([]Option{
		WithSampler(fakeSampler{info: video.Info{FPS: 25, FrameCount: 250, Duration: 10}}),
		WithInteractive(false),
	}, opts...)
	p := NewPipeline(c, log, opts...)
	p.Init(context.Background())
	return p
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}

func TestRunFusesNearestFrames(t *testing.T) {
	c := testConfig(t, bioServer(t, http.StatusOK).URL, detectorServer(t).URL)
	p := newTestPipeline(t, c)

	vid := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(vid, []byte("video"), 0o644))

	res, err := p.Run(context.Background(), writeCSV(t, 150), vid)
	require.NoError(t, err)
	assert.Empty(t, res.StageErrors)
	// 150 samples at 25 Hz -> 384 at 64 Hz -> 2 segments of 140.
	assert.Equal(t, 2, res.Biosignal)
	// Frames 50, 100, ..., 250 with one face each.
	assert.Equal(t, 5, res.Visual)
	assert.Equal(t, 2, res.Fused)

	var fused []FusedPrediction
	readJSON(t, filepath.Join(c.Paths.Outputs, "fused_predictions.json"), &fused)
	require.Len(t, fused, 2)
	for i, f := range fused {
		assert.Equal(t, i+1, f.FusionID)
		assert.Equal(t, i+1, f.BiosignalSegment)
		assert.Equal(t, 50, f.VisualFrame)
		assert.Equal(t, "happy", f.Metadata.VisualEmotion)
		assert.InDelta(t, 1.0, f.BiosignalContribution+f.VisualContribution, 1e-9)
	}
	assert.InDelta(t, 2.0, fused[0].Metadata.TimeDifference, 1e-9)
	assert.InDelta(t, 0.2, fused[1].Metadata.TimeDifference, 1e-9)

	csvOut, err := os.ReadFile(filepath.Join(c.Paths.Outputs, "biosignal_predictions.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvOut)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,valence_prediction,arousal_prediction", lines[0])
	assert.Equal(t, "2024-03-01T10:00:00.000Z,1,1", lines[1])

	_, err = os.Stat(filepath.Join(c.Paths.Outputs, "metrics.prom"))
	assert.NoError(t, err)
}

func TestRunEmptyCSV(t *testing.T) {
	c := testConfig(t, bioServer(t, http.StatusOK).URL, detectorServer(t).URL)
	p := newTestPipeline(t, c)

	csvPath := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("timestamp,ppg_gr\n"), 0o644))
	vid := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(vid, []byte("video"), 0o644))

	res, err := p.Run(context.Background(), csvPath, vid)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Biosignal)
	assert.Equal(t, 0, res.Fused)
	assert.Empty(t, res.StageErrors)

	raw, err := os.ReadFile(filepath.Join(c.Paths.Outputs, "biosignal_predictions.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))
	raw, err = os.ReadFile(filepath.Join(c.Paths.Outputs, "fused_predictions.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))
}

func TestRunBiosignalLoadFailure(t *testing.T) {
	c := testConfig(t, bioServer(t, http.StatusInternalServerError).URL, detectorServer(t).URL)
	p := newTestPipeline(t, c)
	assert.False(t, p.bio.Available())

	vid := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(vid, []byte("video"), 0o644))

	res, err := p.Run(context.Background(), writeCSV(t, 150), vid)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Biosignal)
	assert.Equal(t, 5, res.Visual)
	assert.Equal(t, 0, res.Fused)
	require.Len(t, res.StageErrors, 1)
	assert.Equal(t, StageError{Stage: stageBiosignal, Kind: "model_unavailable", Message: res.StageErrors[0].Message}, res.StageErrors[0])

	var s map[string]json.RawMessage
	readJSON(t, filepath.Join(c.Paths.Outputs, "demo_summary.json"), &s)
	assert.JSONEq(t, `{}`, string(s["biosignal_summary"]))
	assert.JSONEq(t, `{}`, string(s["fusion_summary"]))
	assert.JSONEq(t, `{"biosignal":0,"visual":5,"fused":0}`, string(s["prediction_counts"]))
}

func TestRunMissingCSVIsIOError(t *testing.T) {
	c := testConfig(t, bioServer(t, http.StatusOK).URL, "")
	p := newTestPipeline(t, c)
	assert.False(t, p.visual.Available())

	res, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), "")
	require.NoError(t, err)

	kinds := map[string]string{}
	for _, e := range res.StageErrors {
		kinds[e.Stage] = e.Kind
	}
	assert.Equal(t, map[string]string{
		stageBiosignal: "io",
		stageVisual:    "model_unavailable",
	}, kinds)
}

func TestRunUndecodableVideo(t *testing.T) {
	c := testConfig(t, "", detectorServer(t).URL)
	p := newTestPipeline(t, c, WithSampler(fakeSampler{probeEr: errors.New("moov atom not found")}))

	vid := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(vid, []byte("garbage"), 0o644))

	res, err := p.Run(context.Background(), "", vid)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Visual)

	var visual []VisualPrediction
	readJSON(t, filepath.Join(c.Paths.Outputs, "visual_predictions.json"), &visual)
	assert.Empty(t, visual)

	kinds := map[string]string{}
	for _, e := range res.StageErrors {
		kinds[e.Stage] = e.Kind
	}
	assert.Equal(t, "malformed_input", kinds[stageVisual])
}

func TestSummaryShape(t *testing.T) {
	c := testConfig(t, bioServer(t, http.StatusOK).URL, detectorServer(t).URL)
	p := newTestPipeline(t, c)

	vid := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(vid, []byte("video"), 0o644))
	res, err := p.Run(context.Background(), writeCSV(t, 150), vid)
	require.NoError(t, err)

	var s Summary
	readJSON(t, filepath.Join(c.Paths.Outputs, "demo_summary.json"), &s)
	assert.Equal(t, res.RunID, s.DemoInfo.RunID)
	assert.Equal(t, "weighted_average", s.DemoInfo.Strategy)
	assert.Equal(t, map[string]float64{"biosignal": 0.4, "visual": 0.6}, s.DemoInfo.FusionWeights)
	assert.Equal(t, "loaded", s.DemoInfo.Modalities[stageBiosignal])
	require.NotNil(t, s.DemoInfo.Video)
	assert.Equal(t, 250, s.DemoInfo.Video.FrameCount)

	assert.Equal(t, map[int]int{1: 2}, s.BiosignalSummary.ValenceDistribution)
	assert.Equal(t, map[int]int{1: 2}, s.BiosignalSummary.ArousalDistribution)
	require.NotNil(t, s.BiosignalSummary.AverageConfidence)
	assert.Equal(t, map[string]int{"happy": 5}, s.VisualSummary.EmotionDistribution)
	assert.InDelta(t, 0.9, *s.VisualSummary.AverageConfidence, 1e-9)
	assert.Len(t, s.FusionSummary.EmotionDistribution, 1)
	assert.NotNil(t, s.StageErrors)
	assert.Positive(t, s.TotalSeconds)
}

func TestRunRecordsHistory(t *testing.T) {
	c := testConfig(t, bioServer(t, http.StatusOK).URL, detectorServer(t).URL)
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	p := newTestPipeline(t, c, WithHistory(store))

	res, err := p.Run(context.Background(), writeCSV(t, 150), "")
	require.NoError(t, err)

	runs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Biosignal)
	assert.Equal(t, len(res.StageErrors), runs[0].StageErrors)
}

func TestRunRejectsConcurrentWriter(t *testing.T) {
	c := testConfig(t, "", "")
	p := newTestPipeline(t, c)

	held := flock.New(filepath.Join(c.Paths.Outputs, lockFile))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	_, err = p.Run(context.Background(), "", "")
	assert.ErrorContains(t, err, "another run")
}

func TestClassify(t *testing.T) {
	class, conf, err := classify([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, class, "ties go to the first class")
	assert.InDelta(t, 0.5, conf, 1e-12)

	class, conf, err = classify([]float64{1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, class)
	assert.InDelta(t, math.Exp(3)/(math.Exp(1)+math.Exp(3)+math.Exp(2)), conf, 1e-12)

	_, _, err = classify(nil)
	assert.Error(t, err)
	_, _, err = classify([]float64{1, math.NaN()})
	assert.Error(t, err)
}

func TestSoftmaxStable(t *testing.T) {
	out := softmax([]float64{1000, 1000})
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, out, 1e-12)
}
