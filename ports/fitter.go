package ports

import (
	"context"
	"fmt"

	"gomarker/domain/contrast"
	"gomarker/domain/core"
	"gomarker/domain/profile"
)

// AdjustMethod is the multiple-testing correction applied to raw p-values.
type AdjustMethod string

const (
	AdjustNone       AdjustMethod = "none"
	AdjustBH         AdjustMethod = "BH" // Benjamini-Hochberg
	AdjustBY         AdjustMethod = "BY" // Benjamini-Yekutieli
	AdjustBonferroni AdjustMethod = "bonferroni"
	AdjustHolm       AdjustMethod = "holm"
	AdjustHochberg   AdjustMethod = "hochberg"
)

// ParseAdjustMethod validates an adjustment name.
func ParseAdjustMethod(s string) (AdjustMethod, error) {
	switch AdjustMethod(s) {
	case AdjustNone, AdjustBH, AdjustBY, AdjustBonferroni, AdjustHolm, AdjustHochberg:
		return AdjustMethod(s), nil
	}
	return "", fmt.Errorf("%w: p-value adjustment %q", core.ErrInvalidEnum, s)
}

// FitOptions tunes the delegated fitting services.
type FitOptions struct {
	Adjust AdjustMethod
}

// FeatureResult is the two-group raw output shape: one row per feature with a
// single effect column.
type FeatureResult struct {
	Feature   string
	Effect    float64 // logFC (log-normal) or group coefficient (ZIG)
	PValue    float64
	PAdjusted float64
}

// FeatureModelFitter fits the zero-inflated log-normal feature model.
// Defined for exactly two groups; the dispatcher rejects larger factors
// before this is ever called.
type FeatureModelFitter interface {
	FitFeatureModel(ctx context.Context, p *profile.Profile, gf *profile.GroupFactor,
		scales []float64, opts FitOptions) ([]FeatureResult, error)
}

// ZIGFit is the opaque result of the zero-inflated Gaussian fit: per-feature
// coefficients over the design columns plus everything the contrast step
// needs to propagate uncertainty.
type ZIGFit struct {
	Features []string
	Coefs    []string    // design column names: levels then scalingFactor
	Beta     [][]float64 // features x coefs
	Sigma    []float64   // per-feature residual standard deviation
	DF       []float64   // per-feature residual degrees of freedom
	Cov      [][]float64 // unscaled coefficient covariance (X'X)^-1, coefs x coefs
}

// ZIGFitter fits the zero-inflated Gaussian mixture model.
type ZIGFitter interface {
	FitZIG(ctx context.Context, p *profile.Profile, gf *profile.GroupFactor,
		scales []float64, opts FitOptions) (*ZIGFit, error)

	// Coefficients extracts the two-group coefficient table from a fit,
	// with adjusted p-values.
	Coefficients(fit *ZIGFit, adjust AdjustMethod) ([]FeatureResult, error)
}

// ContrastFit carries per-feature contrast effects through empirical-Bayes
// shrinkage.
type ContrastFit struct {
	Features []string
	Pairs    []contrast.Pair
	Effects  [][]float64 // features x contrasts
	UVar     []float64   // unscaled variance per contrast column
	Sigma    []float64
	DF       []float64

	// Populated by EmpiricalBayes
	Moderated  bool
	SigmaPost  []float64 // posterior residual sd per feature
	DFPrior    float64
	VarPrior   float64
	ContrastUV [][]float64 // unscaled contrast covariance, contrasts x contrasts
}

// RankedRow is the multi-group raw output shape: per-contrast effects plus an
// overall moderated statistic.
type RankedRow struct {
	Feature    string
	Pairs      []contrast.Pair
	LogFC      []float64 // aligned with Pairs; single entry for explicit pairs
	FStatistic float64
	PValue     float64
	PAdjusted  float64
}

// ContrastFitter reshapes a ZIG fit onto a contrast matrix, applies
// empirical-Bayes shrinkage, and ranks the outcome.
type ContrastFitter interface {
	ContrastsFit(fit *ZIGFit, m *contrast.Matrix) (*ContrastFit, error)
	EmpiricalBayes(fit *ContrastFit) (*ContrastFit, error)
	TopTable(fit *ContrastFit, adjust AdjustMethod) ([]RankedRow, error)
}
