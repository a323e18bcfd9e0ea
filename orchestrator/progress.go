package orchestrator

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// progress reports frame processing either as a terminal bar or, when
// output is not a terminal, as periodic log lines.
type progress interface {
	Step(done, frame int)
	Finish()
}

func (p *Pipeline) newProgress(st *runState, sampled, totalFrames int) progress {
	if p.interactive {
		return &barProgress{bar: progressbar.NewOptions(sampled,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("detecting faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)}
	}
	every := p.cfg.Video.ProgressEvery
	if every <= 0 {
		every = 1
	}
	return &logProgress{log: st.log.WithField("stage", stageVisual), every: every, total: totalFrames}
}

type barProgress struct{ bar *progressbar.ProgressBar }

func (b *barProgress) Step(done, _ int) { _ = b.bar.Set(done) }
func (b *barProgress) Finish()          { _ = b.bar.Finish() }

type logProgress struct {
	log   logrus.FieldLogger
	every int
	total int
}

func (l *logProgress) Step(done, frame int) {
	if done%l.every != 0 || l.total <= 0 {
		return
	}
	pct := float64(frame) / float64(l.total) * 100
	l.log.Infof("progress %.1f%% (%d/%d frames)", pct, frame, l.total)
}

func (l *logProgress) Finish() {}
