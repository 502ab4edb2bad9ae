package journal

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/MustardWombat/BitByteAI"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock returns successive times one minute apart.
func fixedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(time.Minute)
		return t
	}
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	s.now = fixedClock(time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := s.Record(ctx, models.FeatureMap{
		models.FeatureDayOfWeek:    2,
		models.FeatureHourOfDay:    14,
		models.FeatureMinuteOfHour: 30,
		models.FeatureActivity:     0.7,
		models.FeatureBatteryLevel: 0.8,
	}, 25)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := s.Record(ctx, models.FeatureMap{models.FeatureHourOfDay: 9}, 10)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Newest first
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
	assert.Equal(t, []float64{2, 14, 30, 0.7, 0.8}, all[1].Features.Row())
	assert.Equal(t, 25.0, all[1].Label)
	assert.True(t, first.RecordedAt.Equal(all[1].RecordedAt))

	// Missing features stored as zero
	assert.Equal(t, []float64{0, 9, 0, 0, 0}, all[0].Features.Row())

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}

func TestRecordRejectsNonFinite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Record(ctx, models.FeatureMap{models.FeatureActivity: math.NaN()}, 1)
	assert.ErrorIs(t, err, ErrInvalidObservation)

	_, err = s.Record(ctx, models.FeatureMap{}, math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidObservation)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTrainingSet(t *testing.T) {
	s := openTestStore(t)
	s.now = fixedClock(time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	X, y, err := s.TrainingSet(ctx)
	require.NoError(t, err)
	assert.Empty(t, X)
	assert.Empty(t, y)

	_, err = s.Record(ctx, models.FeatureMap{models.FeatureDayOfWeek: 1}, 5)
	require.NoError(t, err)
	_, err = s.Record(ctx, models.FeatureMap{models.FeatureDayOfWeek: 2}, 6)
	require.NoError(t, err)

	X, y, err = s.TrainingSet(ctx)
	require.NoError(t, err)

	// Oldest first, parallel slices
	assert.Equal(t, [][]float64{{1, 0, 0, 0, 0}, {2, 0, 0, 0, 0}}, X)
	assert.Equal(t, []float64{5, 6}, y)
}

func TestCountAndClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Record(ctx, models.FeatureMap{models.FeatureHourOfDay: float64(i)}, float64(i))
		require.NoError(t, err)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	removed, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(ctx, models.FeatureMap{models.FeatureBatteryLevel: 0.5}, 3)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
