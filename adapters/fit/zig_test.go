package fit

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarker/domain/contrast"
	"gomarker/domain/core"
	"gomarker/domain/profile"
	"gomarker/ports"
)

func TestZIG_FitAndCoefficients(t *testing.T) {
	p, gf, scales := twoGroupProfile(t)
	fitter := NewZIG()

	fit, err := fitter.FitZIG(context.Background(), p, gf, scales, ports.FitOptions{Adjust: ports.AdjustBH})
	require.NoError(t, err)

	// constant scaling factors collapse into the intercepts, so the layout
	// still carries the scaling-factor slot with a zero coefficient
	assert.Equal(t, []string{"control", "case", contrast.ScalingFactorRow}, fit.Coefs)
	require.Len(t, fit.Beta, 2)
	assert.Zero(t, fit.Beta[0][2])

	// feature 1: cell means of log2(count+1) are 2 (control) and 4 (case)
	assert.InDelta(t, 2.0, fit.Beta[0][0], 1e-9)
	assert.InDelta(t, 4.0, fit.Beta[0][1], 1e-9)
	assert.InDelta(t, 1.0, fit.Sigma[0], 1e-9) // rss 4 over df 4
	assert.InDelta(t, 4.0, fit.DF[0], 1e-9)

	results, err := fitter.Coefficients(fit, ports.AdjustBH)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// balanced cell means with n=3 per group: same t as the Welch gold case
	assert.InDelta(t, 2.0, results[0].Effect, 1e-9)
	assert.InDelta(t, 0.07048399, results[0].PValue, 1e-6)
}

func TestZIG_ZeroCountsAreDownWeighted(t *testing.T) {
	p := profile.MustNewProfile(
		[][]float64{
			{0, 3, 7, 0, 15, 31},
			{1, 1, 1, 1, 1, 1},
		},
		[]string{"otu1", "otu2"},
		[]string{"s1", "s2", "s3", "s4", "s5", "s6"},
		nil, nil,
	)
	gf, err := profile.NewGroupFactor([]string{"control", "control", "control", "case", "case", "case"})
	require.NoError(t, err)
	scales := []float64{900, 1000, 1100, 950, 1000, 1050}

	fit, err := NewZIG().FitZIG(context.Background(), p, gf, scales, ports.FitOptions{Adjust: ports.AdjustBH})
	require.NoError(t, err)
	require.Len(t, fit.Sigma, 2)
	assert.False(t, math.IsNaN(fit.Sigma[0]))
	assert.Greater(t, fit.DF[0], 0.0)
	// zero-bearing feature has less effective weight than the fully observed one
	assert.Less(t, fit.DF[0], fit.DF[1])
}

func TestZIG_ScaleColumnKeptWhenVarying(t *testing.T) {
	p, gf, _ := twoGroupProfile(t)
	scales := []float64{500, 1000, 2000, 600, 1200, 2400}

	fit, err := NewZIG().FitZIG(context.Background(), p, gf, scales, ports.FitOptions{Adjust: ports.AdjustBH})
	require.NoError(t, err)
	// three fitted coefficients leave df = 6 - 3
	assert.InDelta(t, 3.0, fit.DF[0], 1e-9)
}

func TestZIG_CoefficientsRejectsShortLayout(t *testing.T) {
	_, err := NewZIG().Coefficients(&ports.ZIGFit{Coefs: []string{"a", "b"}}, ports.AdjustBH)
	assert.Error(t, err)
}

func TestZIG_TooFewSamplesIsFitError(t *testing.T) {
	p := profile.MustNewProfile(
		[][]float64{{1, 2}},
		[]string{"otu1"},
		[]string{"s1", "s2"},
		nil, nil,
	)
	gf, err := profile.NewGroupFactor([]string{"control", "case"})
	require.NoError(t, err)

	_, err = NewZIG().FitZIG(context.Background(), p, gf, []float64{1000, 1000}, ports.FitOptions{Adjust: ports.AdjustBH})
	assert.True(t, core.IsFitError(err))
}
