package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndList(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Record(ctx, Run{
			ID:         id,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 3*time.Second),
			CSVFile:    "tester.csv",
			VideoFile:  "clip.mp4",
			OutputDir:  "demo_outputs",
			Strategy:   "weighted_average",
			Biosignal:  i,
			Visual:     10,
			Fused:      i,
			Elapsed:    1500 * time.Millisecond,
		}))
	}

	runs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, 2, runs[0].Biosignal)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Elapsed)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(2*time.Minute)))

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordDuplicateID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	run := Run{ID: "dup", StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, store.Record(context.Background(), run))
	assert.Error(t, store.Record(context.Background(), run))
}
