package video

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const framePattern = "frame_%06d.jpg"

// Frame is one sampled video frame written to disk.
type Frame struct {
	Number    int     // 1-based frame number in the source
	Timestamp float64 // Number / fps, seconds
	Path      string
}

// FrameInterval is the number of source frames between samples.
func FrameInterval(fps, everySeconds float64) (int, error) {
	n := int(fps * everySeconds)
	if n < 1 {
		return 0, fmt.Errorf("frame interval %d from fps=%.2f every=%.2fs", n, fps, everySeconds)
	}
	return n, nil
}

type Sampler struct {
	ffmpeg  string
	ffprobe string
	log     logrus.FieldLogger
}

func NewSampler(ffmpeg, ffprobe string, log logrus.FieldLogger) *Sampler {
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	return &Sampler{ffmpeg: ffmpeg, ffprobe: ffprobe, log: log}
}

func (s *Sampler) Probe(ctx context.Context, path string) (Info, error) {
	return Probe(ctx, s.ffprobe, path)
}

// Sample writes every interval-th frame (frames interval, 2*interval, ...)
// of path into dir as JPEG.
func (s *Sampler) Sample(ctx context.Context, path string, info Info, interval int, dir string) ([]Frame, error) {
	if interval < 1 {
		return nil, fmt.Errorf("sample: interval %d", interval)
	}
	// n is 0-based inside the select filter.
	filter := fmt.Sprintf("select=not(mod(n+1\\,%d))", interval)
	cmd := exec.CommandContext(ctx, s.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vf", filter,
		"-vsync", "vfr",
		"-q:v", "2",
		"-y",
		filepath.Join(dir, framePattern),
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	frames, err := collectFrames(dir, interval, info.FPS)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"count":    len(frames),
		"interval": interval,
	}).Debug("frames sampled")
	return frames, nil
}

// collectFrames maps the k-th written file (1-based) back to source frame
// k*interval.
func collectFrames(dir string, interval int, fps float64) ([]Frame, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}

	type numbered struct {
		k    int
		path string
	}
	found := make([]numbered, 0, len(paths))
	for _, p := range paths {
		base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "frame_"), ".jpg")
		k, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		found = append(found, numbered{k: k, path: p})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].k < found[j].k })

	frames := make([]Frame, 0, len(found))
	for _, f := range found {
		n := f.k * interval
		ts := 0.0
		if fps > 0 {
			ts = float64(n) / fps
		}
		frames = append(frames, Frame{Number: n, Timestamp: ts, Path: f.path})
	}
	return frames, nil
}
