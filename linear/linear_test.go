package linear

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitRecoversLinearRelation(t *testing.T) {
	// y = 1 + 2a - b
	X := [][]float64{{0, 0}, {1, 0}, {0, 1}, {2, 3}, {4, 1}, {3, 3}}
	y := make([]float64, len(X))
	for i, row := range X {
		y[i] = 1 + 2*row[0] - row[1]
	}

	m := New(0)
	require.NoError(t, m.Fit(X, y))

	assert.InDelta(t, 1.0, m.Intercept, 1e-9)
	require.Len(t, m.Weights, 2)
	assert.InDelta(t, 2.0, m.Weights[0], 1e-9)
	assert.InDelta(t, -1.0, m.Weights[1], 1e-9)

	out, err := m.Predict([][]float64{{10, 5}})
	require.NoError(t, err)
	assert.InDelta(t, 16.0, out[0], 1e-9)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		lambda float64
		want   float64
	}{
		{"positive", 0.5, 0.5},
		{"zero", 0, 0},
		{"negative falls back", -1, DefaultLambda},
		{"nan falls back", math.NaN(), DefaultLambda},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.lambda)
			assert.Equal(t, tt.want, m.Lambda)
			assert.Nil(t, m.Weights)
			assert.Zero(t, m.Features())
		})
	}
}

func TestFitRidgeShrinksWeights(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}}
	y := []float64{0, 2, 4, 6}

	plain := New(0)
	require.NoError(t, plain.Fit(X, y))
	ridge := New(10)
	require.NoError(t, ridge.Fit(X, y))

	assert.InDelta(t, 2.0, plain.Weights[0], 1e-9)
	assert.Less(t, ridge.Weights[0], plain.Weights[0])
	assert.Greater(t, ridge.Weights[0], 0.0)
}

func TestFitIgnoresConstantColumnsWithPenalty(t *testing.T) {
	// Only the second column varies; the penalty keeps the system solvable.
	X := [][]float64{{0, 1, 0}, {0, 2, 0}, {0, 3, 0}, {0, 4, 0}}
	y := []float64{3, 5, 7, 9}

	m := New(DefaultLambda)
	require.NoError(t, m.Fit(X, y))
	assert.Equal(t, 3, m.Features())
	assert.InDelta(t, 0.0, m.Weights[0], 1e-9)
	assert.InDelta(t, 0.0, m.Weights[2], 1e-9)

	out, err := m.Predict([][]float64{{0, 5, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 11.0, out[0], 1e-2)
}

func TestFitErrors(t *testing.T) {
	t.Run("mismatched lengths", func(t *testing.T) {
		err := New(DefaultLambda).Fit([][]float64{{1}, {2}}, []float64{1})
		assert.ErrorIs(t, err, ErrShape)
	})

	t.Run("ragged rows", func(t *testing.T) {
		err := New(DefaultLambda).Fit([][]float64{{1, 2}, {2}}, []float64{1, 2})
		assert.ErrorIs(t, err, ErrShape)
	})

	t.Run("width change on trained model", func(t *testing.T) {
		m := &Model{Lambda: DefaultLambda, Weights: []float64{1, 2, 3}}
		err := m.Fit([][]float64{{1, 2}}, []float64{1})
		assert.ErrorIs(t, err, ErrShape)
		assert.Equal(t, []float64{1, 2, 3}, m.Weights, "failed fit must not change weights")
	})

	t.Run("singular without penalty", func(t *testing.T) {
		err := New(0).Fit([][]float64{{1, 1}, {1, 1}}, []float64{1, 2})
		assert.ErrorIs(t, err, ErrSingular)
	})
}

func TestPredictUntrained(t *testing.T) {
	_, err := New(DefaultLambda).Predict([][]float64{{1, 2, 3, 4, 5}})
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestPredictShape(t *testing.T) {
	m := &Model{Weights: []float64{1, 1}}
	_, err := m.Predict([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestCodec(t *testing.T) {
	c := Codec{}

	t.Run("encode then decode preserves predictions", func(t *testing.T) {
		m := &Model{Lambda: 0.5, Intercept: 3, Weights: []float64{1, -2, 0.5, 0, 4}}
		data, err := c.Encode(m)
		require.NoError(t, err)
		assert.Contains(t, string(data), Format)

		decoded, err := c.Decode(data)
		require.NoError(t, err)

		row := [][]float64{{2, 14, 30, 0.7, 0.8}}
		want, err := m.Predict(row)
		require.NoError(t, err)
		got, err := decoded.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("untrained document", func(t *testing.T) {
		decoded, err := c.Decode([]byte(`{"format":"bitbyte-linear/v1","lambda":0.1}`))
		require.NoError(t, err)
		_, err = decoded.Predict([][]float64{{1}})
		assert.ErrorIs(t, err, ErrNotTrained)
	})

	t.Run("empty weights decode as untrained", func(t *testing.T) {
		decoded, err := c.Decode([]byte(`{"format":"bitbyte-linear/v1","lambda":0.001,"weights":[]}`))
		require.NoError(t, err)

		_, err = decoded.Predict([][]float64{{1, 2, 3, 4, 5}})
		assert.ErrorIs(t, err, ErrNotTrained)

		X := [][]float64{{1, 2, 3, 4, 5}, {2, 1, 0, 1, 2}}
		require.NoError(t, decoded.Fit(X, []float64{1, 2}))
		assert.Equal(t, 5, decoded.(*Model).Features())
	})

	t.Run("null weights decode as untrained", func(t *testing.T) {
		decoded, err := c.Decode([]byte(`{"format":"bitbyte-linear/v1","weights":null}`))
		require.NoError(t, err)
		assert.Nil(t, decoded.(*Model).Weights)
	})

	t.Run("rejects negative lambda", func(t *testing.T) {
		_, err := c.Decode([]byte(`{"format":"bitbyte-linear/v1","lambda":-1}`))
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := c.Decode([]byte("not json"))
		assert.Error(t, err)
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		_, err := c.Decode([]byte(`{"format":"other/v9","weights":[1]}`))
		assert.Error(t, err)
	})
}
