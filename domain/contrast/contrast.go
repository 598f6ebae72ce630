// Package contrast builds the comparison specifications handed to the
// fitting services: a level reordering for two-group runs, or a full
// contrast matrix for multi-group runs.
package contrast

import (
	"fmt"
	"sort"

	"gomarker/domain/core"
	"gomarker/domain/profile"
)

// ScalingFactorRow is the synthetic all-zero row appended to every contrast
// matrix. The downstream fitting service's design matrix carries a scaling
// factor term that is absent from the contrast's natural level set; the
// matrix row layouts must agree.
const ScalingFactorRow = "scalingFactor"

// Pair is an ordered comparison: numerator versus denominator. Endpoints are
// stored sanitized, through the same sanitizer applied to group levels.
type Pair struct {
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
}

// NewPair sanitizes raw endpoint labels into a comparison pair.
func NewPair(rawNumerator, rawDenominator string) Pair {
	return Pair{
		Numerator:   profile.SanitizeLabel(rawNumerator),
		Denominator: profile.SanitizeLabel(rawDenominator),
	}
}

// Name renders the conventional "numerator-denominator" column name. It is
// provenance only; direction decisions read the structured Pair, never this
// string.
func (p Pair) Name() string {
	return p.Numerator + "-" + p.Denominator
}

// Flip returns the pair with endpoints swapped.
func (p Pair) Flip() Pair {
	return Pair{Numerator: p.Denominator, Denominator: p.Numerator}
}

// Column is one comparison column of a contrast matrix.
type Column struct {
	Pair   Pair      `json:"pair"`
	Name   string    `json:"name"`
	Coeffs []float64 `json:"coeffs"` // aligned with Matrix.Rows
}

// Matrix is a contrast matrix: one row per group level plus the synthetic
// scaling-factor row, one column per pairwise comparison.
type Matrix struct {
	Rows    []string `json:"rows"`
	Columns []Column `json:"columns"`
}

// Plan is the contrast builder's output: either a two-group relevel
// instruction or a multi-group contrast matrix.
type Plan struct {
	Pair   *Pair   // set for two-group and explicit-pair runs
	Matrix *Matrix // set for multi-group runs
}

// AllPairs reports whether the plan compares every unordered level pair.
func (p *Plan) AllPairs() bool {
	return p.Pair == nil
}

// Build validates the grouping factor against an optional comparison pair and
// produces the contrast plan. Pure function of its inputs.
//
// Two levels: the pair is mandatory; the plan instructs the caller to relevel
// the factor so index 0 = denominator and index 1 = numerator, which is what
// makes the downstream coefficient sign read numerator minus denominator.
//
// More than two levels: a full contrast matrix, either the single requested
// column or one column per unordered level pair, in deterministic
// sorted-level order.
func Build(gf *profile.GroupFactor, pair *Pair) (*Plan, error) {
	if gf.LevelCount() == 2 {
		if pair == nil {
			return nil, core.ErrContrastRequired
		}
		if err := checkPair(gf, *pair); err != nil {
			return nil, err
		}
		p := *pair
		return &Plan{Pair: &p}, nil
	}

	if pair != nil {
		if err := checkPair(gf, *pair); err != nil {
			return nil, err
		}
		m := newMatrix(gf.Levels)
		m.addColumn(*pair)
		p := *pair
		return &Plan{Pair: &p, Matrix: m}, nil
	}

	sorted := append([]string(nil), gf.Levels...)
	sort.Strings(sorted)

	m := newMatrix(gf.Levels)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			m.addColumn(Pair{Numerator: sorted[i], Denominator: sorted[j]})
		}
	}
	return &Plan{Matrix: m}, nil
}

func checkPair(gf *profile.GroupFactor, p Pair) error {
	if !gf.HasLevel(p.Numerator) {
		return fmt.Errorf("%w: %q", core.ErrUnknownGroup, p.Numerator)
	}
	if !gf.HasLevel(p.Denominator) {
		return fmt.Errorf("%w: %q", core.ErrUnknownGroup, p.Denominator)
	}
	if p.Numerator == p.Denominator {
		return core.NewValidationError("contrast", "numerator and denominator are the same group")
	}
	return nil
}

func newMatrix(levels []string) *Matrix {
	rows := append([]string(nil), levels...)
	rows = append(rows, ScalingFactorRow)
	return &Matrix{Rows: rows}
}

// addColumn appends a numerator-minus-denominator column. The scaling-factor
// row coefficient is always zero.
func (m *Matrix) addColumn(p Pair) {
	coeffs := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		switch row {
		case p.Numerator:
			coeffs[i] = 1
		case p.Denominator:
			coeffs[i] = -1
		}
	}
	m.Columns = append(m.Columns, Column{Pair: p, Name: p.Name(), Coeffs: coeffs})
}
