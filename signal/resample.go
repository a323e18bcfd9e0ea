// Package signal turns raw PPG readings into fixed-length model inputs:
// Fourier resampling to the model rate, min-max normalisation and
// non-overlapping segmentation.
package signal

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Params mirrors the signal section of the config.
type Params struct {
	OriginalRate  float64 // Hz
	TargetRate    float64 // Hz
	SegmentLength int     // samples at TargetRate
	Scale         float64
}

func DefaultParams() Params {
	return Params{
		OriginalRate:  25,
		TargetRate:    64,
		SegmentLength: 140,
		Scale:         1000,
	}
}

// ResampledLen is round(duration * toRate) for n samples recorded at fromRate.
func ResampledLen(n int, fromRate, toRate float64) int {
	if n <= 0 || fromRate <= 0 || toRate <= 0 {
		return 0
	}
	return int(math.Round(float64(n) / fromRate * toRate))
}

// Resample converts x from fromRate to toRate with the Fourier method.
func Resample(x []float64, fromRate, toRate float64) []float64 {
	return ResampleN(x, ResampledLen(len(x), fromRate, toRate))
}

// ResampleN resamples x to num samples by zero-padding or truncating its
// spectrum. The even-length Nyquist bin is halved when upsampling and
// doubled when downsampling so the band edge keeps its energy.
func ResampleN(x []float64, num int) []float64 {
	nx := len(x)
	if nx == 0 || num <= 0 {
		return []float64{}
	}
	if num == nx {
		return append([]float64(nil), x...)
	}

	coef := fourier.NewFFT(nx).Coefficients(nil, x)
	out := make([]complex128, num/2+1)
	n := min(num, nx)
	copy(out, coef[:n/2+1])
	if n%2 == 0 {
		if num < nx {
			out[n/2] *= 2
		} else {
			out[n/2] *= 0.5
		}
	}

	// Sequence is unnormalised; the 1/num of the inverse and the num/nx
	// amplitude correction collapse to 1/nx.
	y := fourier.NewFFT(num).Sequence(nil, out)
	floats.Scale(1/float64(nx), y)
	return y
}

// Normalize maps x linearly onto [0, scale]. A constant input has no range
// and maps to zeros.
func Normalize(x []float64, scale float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	lo, hi := floats.Min(x), floats.Max(x)
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, v := range x {
		out[i] = (v - lo) / span * scale
	}
	return out
}

// Segment splits x into floor(len(x)/w) windows [0,w), [w,2w), ... and drops
// the trailing remainder.
func Segment(x []float64, w int) [][]float64 {
	if w <= 0 || len(x) < w {
		return [][]float64{}
	}
	out := make([][]float64, 0, len(x)/w)
	for start := 0; start+w <= len(x); start += w {
		out = append(out, x[start:start+w:start+w])
	}
	return out
}

// Prepared is the model-ready form of a recording.
type Prepared struct {
	Resampled int         // samples after resampling
	Segments  [][]float64 // normalised, SegmentLength each
	Offsets   []float64   // segment start, seconds from recording start
}

// Prepare resamples, normalises and segments raw samples.
func Prepare(samples []float64, p Params) Prepared {
	up := Resample(samples, p.OriginalRate, p.TargetRate)
	norm := Normalize(up, p.Scale)
	segs := Segment(norm, p.SegmentLength)

	offsets := make([]float64, len(segs))
	for i := range segs {
		offsets[i] = float64(i*p.SegmentLength) / p.TargetRate
	}
	return Prepared{Resampled: len(up), Segments: segs, Offsets: offsets}
}
