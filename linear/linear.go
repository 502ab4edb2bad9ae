// Package linear provides a ridge-regularized least-squares model that
// satisfies the models.Model capability, and a JSON codec for it.
package linear

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	models "github.com/MustardWombat/BitByteAI"
)

// Format identifies the serialized representation written by Codec.
const Format = "bitbyte-linear/v1"

// DefaultLambda is the ridge penalty used when none is configured.
const DefaultLambda = 1e-3

var (
	// ErrNotTrained indicates Predict was called before any weights exist.
	ErrNotTrained = errors.New("linear: model not trained")

	// ErrShape indicates rows of the wrong width or mismatched lengths.
	ErrShape = errors.New("linear: shape mismatch")

	// ErrSingular indicates the normal equations are not positive definite.
	ErrSingular = errors.New("linear: singular system")
)

// Model is a linear regressor y = intercept + Σ weights[i]·x[i].
// Predict is safe for concurrent use; Fit is not.
type Model struct {
	// Lambda is the L2 penalty on the weights (not the intercept).
	Lambda float64

	// Intercept is the bias term.
	Intercept float64

	// Weights holds one coefficient per feature. Nil until trained.
	Weights []float64
}

// Ensure Model implements models.Model.
var _ models.Model = (*Model)(nil)

// New returns an untrained model with the given ridge penalty.
func New(lambda float64) *Model {
	if lambda < 0 || math.IsNaN(lambda) {
		lambda = DefaultLambda
	}
	return &Model{Lambda: lambda}
}

// Features returns the number of input features, or 0 if untrained.
func (m *Model) Features() int {
	return len(m.Weights)
}

// Fit solves (XᵀX + λI)w = Xᵀy with an unpenalized intercept, replacing
// any previous weights. If the model is already trained the observations
// must keep the same width.
func (m *Model) Fit(observations [][]float64, labels []float64) error {
	if len(observations) == 0 || len(observations) != len(labels) {
		return fmt.Errorf("%w: %d observations, %d labels", ErrShape, len(observations), len(labels))
	}
	width := len(observations[0])
	if width == 0 {
		return fmt.Errorf("%w: empty observation", ErrShape)
	}
	if m.Weights != nil && width != m.Features() {
		return fmt.Errorf("%w: got %d features, model has %d", ErrShape, width, m.Features())
	}

	// Column 0 of the design matrix is the intercept.
	n := width + 1
	design := mat.NewDense(len(observations), n, nil)
	for k, obs := range observations {
		if len(obs) != width {
			return fmt.Errorf("%w: observation %d has %d values, want %d", ErrShape, k, len(obs), width)
		}
		design.Set(k, 0, 1)
		for j, v := range obs {
			design.Set(k, j+1, v)
		}
	}

	var gram mat.SymDense
	gram.SymOuterK(1, design.T())
	for i := 1; i < n; i++ {
		gram.SetSym(i, i, gram.At(i, i)+m.Lambda)
	}

	var rhs mat.VecDense
	rhs.MulVec(design.T(), mat.NewVecDense(len(labels), append([]float64(nil), labels...)))

	var chol mat.Cholesky
	if !chol.Factorize(&gram) {
		return ErrSingular
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &rhs); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}

	m.Intercept = w.AtVec(0)
	m.Weights = make([]float64, width)
	for i := range m.Weights {
		m.Weights[i] = w.AtVec(i + 1)
	}
	return nil
}

// Predict returns one value per observation.
func (m *Model) Predict(observations [][]float64) ([]float64, error) {
	if m.Weights == nil {
		return nil, ErrNotTrained
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: no observations", ErrShape)
	}

	out := make([]float64, len(observations))
	for k, obs := range observations {
		if len(obs) != m.Features() {
			return nil, fmt.Errorf("%w: observation %d has %d values, want %d", ErrShape, k, len(obs), m.Features())
		}
		y := m.Intercept
		for i, x := range obs {
			y += m.Weights[i] * x
		}
		out[k] = y
	}
	return out, nil
}

// document is the serialized form of a Model.
type document struct {
	Format    string    `json:"format"`
	Lambda    float64   `json:"lambda"`
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
}

// Codec encodes Models as JSON documents.
type Codec struct{}

// Ensure Codec implements models.Codec.
var _ models.Codec = Codec{}

// Decode parses a document produced by Encode.
// A document with absent, null or empty weights decodes to an untrained model.
func (Codec) Decode(data []byte) (models.Model, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("linear: decoding model: %w", err)
	}
	if doc.Format != Format {
		return nil, fmt.Errorf("linear: unsupported format %q", doc.Format)
	}
	if doc.Lambda < 0 {
		return nil, fmt.Errorf("linear: negative lambda %v", doc.Lambda)
	}

	m := New(doc.Lambda)
	m.Intercept = doc.Intercept
	if len(doc.Weights) > 0 {
		m.Weights = doc.Weights
	}
	return m, nil
}

// Encode serializes m, which must be a *Model.
func (Codec) Encode(m models.Model) ([]byte, error) {
	lm, ok := m.(*Model)
	if !ok {
		return nil, fmt.Errorf("linear: cannot encode %T", m)
	}

	return json.Marshal(document{
		Format:    Format,
		Lambda:    lm.Lambda,
		Intercept: lm.Intercept,
		Weights:   lm.Weights,
	})
}
