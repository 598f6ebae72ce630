package fit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarker/domain/contrast"
	"gomarker/domain/profile"
	"gomarker/ports"
)

func threeGroupFit() *ports.ZIGFit {
	cov := [][]float64{
		{0.5, 0, 0, 0},
		{0, 0.5, 0, 0},
		{0, 0, 0.5, 0},
		{0, 0, 0, 0},
	}
	return &ports.ZIGFit{
		Features: []string{"otu1", "otu2"},
		Coefs:    []string{"a", "b", "c", contrast.ScalingFactorRow},
		Beta: [][]float64{
			{5, 3, 1, 0},
			{2, 2, 2, 0},
		},
		Sigma: []float64{1, 1},
		DF:    []float64{4, 4},
		Cov:   cov,
	}
}

func threeGroupMatrix(t *testing.T) *contrast.Matrix {
	t.Helper()
	gf, err := profile.NewGroupFactor([]string{"a", "b", "c", "a", "b", "c"})
	require.NoError(t, err)
	plan, err := contrast.Build(gf, nil)
	require.NoError(t, err)
	return plan.Matrix
}

func TestLimma_ContrastsFit(t *testing.T) {
	fit := threeGroupFit()
	m := threeGroupMatrix(t)

	cf, err := NewLimma().ContrastsFit(fit, m)
	require.NoError(t, err)

	require.Len(t, cf.Pairs, 3)
	assert.Equal(t, contrast.Pair{Numerator: "a", Denominator: "b"}, cf.Pairs[0])

	// Beta times the contrast columns: a-b, a-c, b-c
	assert.InDelta(t, 2.0, cf.Effects[0][0], 1e-12)
	assert.InDelta(t, 4.0, cf.Effects[0][1], 1e-12)
	assert.InDelta(t, 2.0, cf.Effects[0][2], 1e-12)
	assert.Equal(t, []float64{0, 0, 0}, cf.Effects[1])

	// C' Cov C with Cov = diag(0.5): diagonal 1, signed halves off it
	assert.InDelta(t, 1.0, cf.UVar[0], 1e-12)
	assert.InDelta(t, 0.5, cf.ContrastUV[0][1], 1e-12)
	assert.InDelta(t, -0.5, cf.ContrastUV[0][2], 1e-12)
	assert.InDelta(t, 0.5, cf.ContrastUV[1][2], 1e-12)
}

func TestLimma_ContrastsFitRejectsLayoutMismatch(t *testing.T) {
	fit := threeGroupFit()
	fit.Coefs = []string{"a", "c", "b", contrast.ScalingFactorRow}

	_, err := NewLimma().ContrastsFit(fit, threeGroupMatrix(t))
	assert.Error(t, err)
}

func TestLimma_EmpiricalBayes(t *testing.T) {
	cf, err := NewLimma().ContrastsFit(threeGroupFit(), threeGroupMatrix(t))
	require.NoError(t, err)

	cf, err = NewLimma().EmpiricalBayes(cf)
	require.NoError(t, err)

	assert.True(t, cf.Moderated)
	require.Len(t, cf.SigmaPost, 2)
	// equal residual variances shrink to one shared posterior value
	assert.InDelta(t, cf.SigmaPost[0], cf.SigmaPost[1], 1e-12)
	assert.Greater(t, cf.SigmaPost[0], 0.0)
	assert.False(t, math.IsNaN(cf.VarPrior))
}

func TestLimma_EmpiricalBayesShrinksOutlierVariance(t *testing.T) {
	fit := threeGroupFit()
	fit.Features = []string{"otu1", "otu2", "otu3", "otu4"}
	fit.Beta = append(fit.Beta, []float64{1, 1, 1, 0}, []float64{3, 2, 1, 0})
	fit.Sigma = []float64{1, 1, 1, 3}
	fit.DF = []float64{4, 4, 4, 4}

	cf, err := NewLimma().ContrastsFit(fit, threeGroupMatrix(t))
	require.NoError(t, err)
	cf, err = NewLimma().EmpiricalBayes(cf)
	require.NoError(t, err)

	// the outlier moves toward the pack, the pack moves up toward the prior
	assert.Less(t, cf.SigmaPost[3], 3.0)
	assert.Greater(t, cf.SigmaPost[0], 1.0)
}

func TestLimma_TopTableSingleContrast(t *testing.T) {
	cf := &ports.ContrastFit{
		Features:   []string{"otu1"},
		Pairs:      []contrast.Pair{{Numerator: "case", Denominator: "control"}},
		Effects:    [][]float64{{1}},
		UVar:       []float64{0.25},
		Sigma:      []float64{1},
		DF:         []float64{4},
		Moderated:  true,
		DFPrior:    math.Inf(1),
		SigmaPost:  []float64{1},
		ContrastUV: [][]float64{{0.25}},
	}

	rows, err := NewLimma().TopTable(cf, ports.AdjustNone)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// t = 1 / (1 * 0.5) = 2, near-infinite df makes this the normal tail
	assert.InDelta(t, 4.0, rows[0].FStatistic, 1e-9)
	assert.InDelta(t, 0.0455, rows[0].PValue, 1e-3)
	assert.Equal(t, []float64{1}, rows[0].LogFC)
}

func TestLimma_TopTableMultiContrast(t *testing.T) {
	cf := &ports.ContrastFit{
		Features: []string{"otu1"},
		Pairs: []contrast.Pair{
			{Numerator: "a", Denominator: "b"},
			{Numerator: "a", Denominator: "c"},
		},
		Effects:   [][]float64{{2, 0}},
		UVar:      []float64{1, 1},
		Sigma:     []float64{1},
		DF:        []float64{4},
		Moderated: true,
		DFPrior:   math.Inf(1),
		SigmaPost: []float64{1},
		ContrastUV: [][]float64{
			{1, 0},
			{0, 1},
		},
	}

	rows, err := NewLimma().TopTable(cf, ports.AdjustNone)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// F = E' UV^-1 E / (k s^2) = 4 / 2; F(2, inf) ~ chi-square tail exp(-2)
	assert.InDelta(t, 2.0, rows[0].FStatistic, 1e-9)
	assert.InDelta(t, math.Exp(-2), rows[0].PValue, 1e-3)
}

func TestLimma_TopTableAllPairsSingularCovariance(t *testing.T) {
	// all-pairs columns are linearly dependent (b-c = (a-c) - (a-b)), so the
	// contrast covariance is exactly singular; the F statistic must come from
	// the rank-2 subspace instead of a full inverse.
	cf, err := NewLimma().ContrastsFit(threeGroupFit(), threeGroupMatrix(t))
	require.NoError(t, err)
	cf, err = NewLimma().EmpiricalBayes(cf)
	require.NoError(t, err)

	rows, err := NewLimma().TopTable(cf, ports.AdjustBH)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// effects (2,4,2) lie in the rank-2 subspace with quadratic form 16
	s2 := cf.SigmaPost[0] * cf.SigmaPost[0]
	assert.InDelta(t, 16/(2*s2), rows[0].FStatistic, 1e-9)
	assert.Greater(t, rows[0].FStatistic, 0.0)
	assert.Greater(t, rows[0].PValue, 0.0)
	assert.Less(t, rows[0].PValue, 0.05)

	// the flat feature carries no signal
	assert.InDelta(t, 0.0, rows[1].FStatistic, 1e-9)
	assert.InDelta(t, 1.0, rows[1].PValue, 1e-9)
}

func TestReduceUV_RankAndQuad(t *testing.T) {
	// rank-2 pairwise Gram matrix: eigenvalues {1.5, 1.5, 0}
	uv := [][]float64{
		{1, 0.5, -0.5},
		{0.5, 1, 0.5},
		{-0.5, 0.5, 1},
	}
	red, err := reduceUV(uv)
	require.NoError(t, err)
	assert.Equal(t, 2, red.rank())

	// in-subspace vector: quad = |e|^2 / 1.5
	assert.InDelta(t, 24.0/1.5, red.quad([]float64{2, 4, 2}), 1e-9)

	// the null direction (1,-1,1) contributes nothing
	assert.InDelta(t, 0.0, red.quad([]float64{1, -1, 1}), 1e-9)

	_, err = reduceUV([][]float64{{0, 0}, {0, 0}})
	assert.Error(t, err)
}

func TestLimma_TopTableRequiresModeration(t *testing.T) {
	cf := &ports.ContrastFit{Features: []string{"otu1"}}
	_, err := NewLimma().TopTable(cf, ports.AdjustNone)
	assert.Error(t, err)
}

func TestTrigamma(t *testing.T) {
	// trigamma(1) = pi^2 / 6
	assert.InDelta(t, math.Pi*math.Pi/6, trigamma(1), 1e-12)

	for _, y := range []float64{0.1, 1, 5} {
		x := trigammaInverse(y)
		assert.InDelta(t, y, trigamma(x), 1e-6, "y=%g", y)
	}
}
