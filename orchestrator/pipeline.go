package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/mdobak/go-xerrors"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/affect-demo/clients"
	cfg "github.com/maastricht-university/affect-demo/config"
	"github.com/maastricht-university/affect-demo/fusion"
	"github.com/maastricht-university/affect-demo/history"
	"github.com/maastricht-university/affect-demo/metrics"
	"github.com/maastricht-university/affect-demo/modality"
	"github.com/maastricht-university/affect-demo/video"
)

const (
	stageBiosignal = "biosignal"
	stageVisual    = "visual"
	stageFusion    = "fusion"
	stageSummary   = "summary"

	lockFile = ".affect-demo.lock"
)

// BiosignalModel runs the PPG CNN over a batch of segments.
type BiosignalModel interface {
	Predict(ctx context.Context, segments [][]float64) (*clients.BioPredictResp, error)
}

// FaceDetector finds faces and their expression in one frame image.
type FaceDetector interface {
	Detect(ctx context.Context, framePath string) (*clients.DetectResp, error)
}

// FrameSampler decodes a video into sampled frame images.
type FrameSampler interface {
	Probe(ctx context.Context, path string) (video.Info, error)
	Sample(ctx context.Context, path string, info video.Info, interval int, dir string) ([]video.Frame, error)
}

type remoteBiosignal struct {
	http *clients.HTTP
	url  string
}

func (r remoteBiosignal) Predict(ctx context.Context, segments [][]float64) (*clients.BioPredictResp, error) {
	return r.http.BioPredict(ctx, r.url, segments)
}

type remoteDetector struct {
	http *clients.HTTP
	url  string
}

func (r remoteDetector) Detect(ctx context.Context, framePath string) (*clients.DetectResp, error) {
	return r.http.Detect(ctx, r.url, framePath)
}

var errNotInitialised = fmt.Errorf("%w: pipeline not initialised", ErrModelUnavailable)

type Pipeline struct {
	cfg *cfg.Root
	log logrus.FieldLogger

	bioHTTP     *clients.HTTP
	detHTTP     *clients.HTTP
	dashHTTP    *clients.HTTP
	sampler     FrameSampler
	history     *history.Store
	interactive bool

	bio    modality.Slot[BiosignalModel]
	visual modality.Slot[FaceDetector]
	fusion modality.Slot[*fusion.Module]
}

type Option func(*Pipeline)

// WithSampler replaces the ffmpeg frame sampler.
func WithSampler(s FrameSampler) Option { return func(p *Pipeline) { p.sampler = s } }

// WithHistory records every finished run in store.
func WithHistory(store *history.Store) Option { return func(p *Pipeline) { p.history = store } }

// WithInteractive forces the progress bar on or off.
func WithInteractive(on bool) Option { return func(p *Pipeline) { p.interactive = on } }

func NewPipeline(c *cfg.Root, log logrus.FieldLogger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:         c,
		log:         log,
		bioHTTP:     clients.NewHTTP(cfg.DurSeconds(c.Services.Biosignal.Timeout)),
		detHTTP:     clients.NewHTTP(cfg.DurSeconds(c.Services.Detector.Timeout)),
		dashHTTP:    clients.NewHTTP(cfg.DurSeconds(c.Services.Dashboard.Timeout)),
		sampler:     video.NewSampler(c.Video.FFmpeg, c.Video.FFprobe, log),
		interactive: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
		bio:         modality.Unavailable[BiosignalModel](errNotInitialised),
		visual:      modality.Unavailable[FaceDetector](errNotInitialised),
		fusion:      modality.Unavailable[*fusion.Module](errNotInitialised),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Init loads every component. A component that fails to load leaves its
// modality unavailable; Init itself never fails.
func (p *Pipeline) Init(ctx context.Context) {
	p.log.Info("initializing pipeline components")
	p.bio = p.loadBiosignal(ctx)
	p.visual = p.loadDetector(ctx)
	p.fusion = p.loadFusion()
	p.log.WithFields(logrus.Fields{
		"biosignal": p.bio.Status(),
		"visual":    p.visual.Status(),
		"fusion":    p.fusion.Status(),
	}).Info("components initialized")
}

func (p *Pipeline) loadBiosignal(ctx context.Context) modality.Slot[BiosignalModel] {
	svc := p.cfg.Services.Biosignal
	log := p.log.WithField("component", stageBiosignal)
	if svc.URL == "" {
		return modality.Unavailable[BiosignalModel](fmt.Errorf("%w: no biosignal service configured", ErrModelUnavailable))
	}
	if err := p.bioHTTP.BioLoad(ctx, svc.URL, svc.Weights); err != nil {
		log.WithError(err).WithField("weights", svc.Weights).Error("failed to load biosignal model")
		return modality.Unavailable[BiosignalModel](fmt.Errorf("%w: %w", ErrModelUnavailable, err))
	}
	log.WithField("weights", svc.Weights).Info("biosignal model loaded")
	return modality.Loaded[BiosignalModel](remoteBiosignal{http: p.bioHTTP, url: svc.URL})
}

func (p *Pipeline) loadDetector(ctx context.Context) modality.Slot[FaceDetector] {
	svc := p.cfg.Services.Detector
	log := p.log.WithField("component", stageVisual)
	if svc.URL == "" {
		return modality.Unavailable[FaceDetector](fmt.Errorf("%w: no detector service configured", ErrModelUnavailable))
	}
	if err := p.detHTTP.Health(ctx, svc.URL); err != nil {
		log.WithError(err).Error("failed to initialize visual detector")
		return modality.Unavailable[FaceDetector](fmt.Errorf("%w: %w", ErrModelUnavailable, err))
	}
	log.Info("visual detector ready")
	return modality.Loaded[FaceDetector](remoteDetector{http: p.detHTTP, url: svc.URL})
}

func (p *Pipeline) loadFusion() modality.Slot[*fusion.Module] {
	f := p.cfg.Fusion
	m, err := fusion.New(fusion.Strategy(f.Strategy), fusion.Weights{Biosignal: f.BiosignalWeight, Visual: f.VisualWeight}, f.BiosignalClasses)
	if err != nil {
		p.log.WithError(err).Error("failed to initialize late fusion module")
		return modality.Unavailable[*fusion.Module](fmt.Errorf("%w: %w", ErrModelUnavailable, err))
	}
	return modality.Loaded(m)
}

// runState is the per-run scratch space threaded through the stages.
type runState struct {
	id        string
	started   time.Time
	csvPath   string
	videoPath string
	outDir    string
	log       logrus.FieldLogger
	metrics   *metrics.Recorder
	videoInfo *video.Info
	errors    []StageError
}

// stageFailed logs err and records it against stage; the caller carries on
// with an empty result.
func (p *Pipeline) stageFailed(st *runState, stage string, err error) {
	err = xerrors.New(err)
	kind := kindOf(err)
	st.log.WithFields(logrus.Fields{"stage": stage, "kind": kind}).WithError(err).Error("stage failed, continuing with empty result")
	st.log.Debug(xerrors.Sprint(err))
	st.metrics.StageFailures.WithLabelValues(stage, kind).Inc()
	st.errors = append(st.errors, StageError{Stage: stage, Kind: kind, Message: err.Error()})
}

// Run executes the whole pipeline and writes every artifact into the
// configured output directory. Only setup problems (output directory, lock)
// are returned as errors.
func (p *Pipeline) Run(ctx context.Context, csvPath, videoPath string) (*Result, error) {
	outDir := p.cfg.Paths.Outputs
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(outDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another run is writing to %s", outDir)
	}
	defer lock.Unlock()

	st := &runState{
		id:        uuid.NewString(),
		started:   time.Now(),
		csvPath:   csvPath,
		videoPath: videoPath,
		outDir:    outDir,
		metrics:   metrics.New(),
	}
	st.log = p.log.WithField("run_id", st.id)
	st.metrics.SetAvailable(stageBiosignal, p.bio.Available())
	st.metrics.SetAvailable(stageVisual, p.visual.Available())

	st.log.WithFields(logrus.Fields{
		"csv":     csvPath,
		"video":   videoPath,
		"outputs": outDir,
		"weights": fmt.Sprintf("biosignal=%.2f visual=%.2f", p.cfg.Fusion.BiosignalWeight, p.cfg.Fusion.VisualWeight),
	}).Info("starting integrated demo pipeline")

	st.log.Info("step 1: processing biosignal data")
	bio := p.processBiosignal(ctx, st)

	st.log.Info("step 2: processing video data")
	vis := p.processVideo(ctx, st)

	st.log.Info("step 3: performing late fusion")
	fused := p.fuse(ctx, st, bio, vis)

	st.log.Info("step 4: generating summary report")
	elapsed := p.summarize(st, bio, vis, fused)

	if err := st.metrics.WriteTextfile(filepath.Join(outDir, "metrics.prom")); err != nil {
		st.log.WithError(err).Warn("failed to write metrics")
	}
	p.publish(ctx, st, fused)

	res := &Result{
		RunID:       st.id,
		Biosignal:   len(bio),
		Visual:      len(vis),
		Fused:       len(fused),
		StageErrors: st.errors,
		Elapsed:     elapsed,
		OutputDir:   outDir,
	}
	p.record(ctx, st, res)

	st.log.WithFields(logrus.Fields{
		"biosignal": res.Biosignal,
		"visual":    res.Visual,
		"fused":     res.Fused,
		"elapsed":   elapsed.Round(time.Millisecond),
	}).Info("demo pipeline completed")
	return res, nil
}

// publish sends the fused timeline to the dashboard when one is configured.
func (p *Pipeline) publish(ctx context.Context, st *runState, fused []FusedPrediction) {
	url := p.cfg.Services.Dashboard.URL
	if url == "" || len(fused) == 0 {
		return
	}
	req := clients.TimelineReq{
		RunID:      st.id,
		Timestamps: make([]float64, 0, len(fused)),
		Valence:    make([]float64, 0, len(fused)),
		Arousal:    make([]float64, 0, len(fused)),
		Emotions:   make([]string, 0, len(fused)),
		OutputDir:  st.outDir,
	}
	for _, f := range fused {
		req.Timestamps = append(req.Timestamps, f.Timestamp)
		req.Valence = append(req.Valence, f.Valence)
		req.Arousal = append(req.Arousal, f.Arousal)
		req.Emotions = append(req.Emotions, f.DiscreteEmotion)
	}
	resp, err := p.dashHTTP.GenerateTimeline(ctx, url, req)
	if err != nil {
		st.log.WithError(err).Warn("dashboard timeline not published")
		return
	}
	st.log.WithField("path", resp.Path).Info("dashboard timeline published")
}

func (p *Pipeline) record(ctx context.Context, st *runState, res *Result) {
	if p.history == nil {
		return
	}
	err := p.history.Record(ctx, history.Run{
		ID:          st.id,
		StartedAt:   st.started,
		FinishedAt:  st.started.Add(res.Elapsed),
		CSVFile:     st.csvPath,
		VideoFile:   st.videoPath,
		OutputDir:   st.outDir,
		Strategy:    p.cfg.Fusion.Strategy,
		Biosignal:   res.Biosignal,
		Visual:      res.Visual,
		Fused:       res.Fused,
		StageErrors: len(res.StageErrors),
		Elapsed:     res.Elapsed,
	})
	if err != nil {
		st.log.WithError(err).Warn("run not recorded in history")
	}
}
