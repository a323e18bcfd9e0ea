package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n int, rate, hz float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * hz * float64(i) / rate)
	}
	return out
}

func TestResampleLength(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{n: 100, want: 256},
		{n: 33, want: 84},  // 84.48
		{n: 37, want: 95},  // 94.72 rounds up
		{n: 25, want: 64},
		{n: 1, want: 3}, // 2.56
	}
	for _, tc := range cases {
		got := Resample(make([]float64, tc.n), 25, 64)
		assert.Len(t, got, tc.want, "n=%d", tc.n)
		assert.Equal(t, tc.want, ResampledLen(tc.n, 25, 64))
	}
}

func TestResampleEmpty(t *testing.T) {
	got := Resample(nil, 25, 64)
	require.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, ResampleN([]float64{1, 2}, 0))
}

func TestResamplePreservesConstant(t *testing.T) {
	x := make([]float64, 50)
	for i := range x {
		x[i] = 512
	}
	for _, v := range Resample(x, 25, 64) {
		assert.InDelta(t, 512, v, 1e-9)
	}
}

func TestResampleBandLimitedSine(t *testing.T) {
	// Four whole periods: the periodic extension is exact, so the Fourier
	// method reproduces the sine at the new rate.
	x := sine(100, 25, 1)
	y := Resample(x, 25, 64)
	require.Len(t, y, 256)
	want := sine(256, 64, 1)
	for i := range y {
		assert.InDelta(t, want[i], y[i], 1e-9, "i=%d", i)
	}

	down := Resample(y, 64, 25)
	require.Len(t, down, 100)
	for i := range down {
		assert.InDelta(t, x[i], down[i], 1e-9, "i=%d", i)
	}
}

func TestResampleSameLengthCopies(t *testing.T) {
	x := []float64{1, 2, 3}
	y := ResampleN(x, 3)
	y[0] = 9
	assert.Equal(t, 1.0, x[0])
}

func TestNormalize(t *testing.T) {
	x := []float64{3, -1, 7, 5}
	got := Normalize(x, 1000)
	assert.InDelta(t, 500, got[0], 1e-9)
	assert.InDelta(t, 0, got[1], 1e-9)
	assert.InDelta(t, 1000, got[2], 1e-9)
	assert.InDelta(t, 750, got[3], 1e-9)
}

func TestNormalizeConstantAndEmpty(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0}, Normalize([]float64{4, 4, 4}, 1000))
	assert.Empty(t, Normalize(nil, 1000))
}

func TestSegment(t *testing.T) {
	x := make([]float64, 300)
	for i := range x {
		x[i] = float64(i)
	}
	segs := Segment(x, 140)
	require.Len(t, segs, 2)
	for k, s := range segs {
		require.Len(t, s, 140)
		assert.Equal(t, float64(k*140), s[0])
		assert.Equal(t, float64(k*140+139), s[139])
	}

	assert.Len(t, Segment(x[:280], 140), 2)
	assert.Empty(t, Segment(x[:139], 140))
	assert.Empty(t, Segment(x, 0))
}

func TestSegmentWindowsDoNotAlias(t *testing.T) {
	segs := Segment([]float64{1, 2, 3, 4}, 2)
	segs[0] = append(segs[0], 99)
	assert.Equal(t, []float64{3, 4}, segs[1])
}

func TestPrepare(t *testing.T) {
	raw := sine(500, 25, 1.3) // 20s
	p := Prepare(raw, DefaultParams())

	assert.Equal(t, 1280, p.Resampled)
	require.Len(t, p.Segments, 9)
	require.Len(t, p.Offsets, 9)
	assert.InDelta(t, 140.0/64, p.Offsets[1], 1e-12)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range p.Segments {
		for _, v := range s {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.LessOrEqual(t, hi, 1000.0)
}

func TestPrepareEmpty(t *testing.T) {
	p := Prepare(nil, DefaultParams())
	assert.Zero(t, p.Resampled)
	assert.Empty(t, p.Segments)
}
