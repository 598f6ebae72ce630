package fit

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gomarker/domain/core"
	"gomarker/domain/profile"
	"gomarker/internal/padjust"
	"gomarker/ports"
)

// minZeroWeight floors the weight a structural zero can receive, so samples
// that are almost entirely zero still contribute some information.
const minZeroWeight = 0.1

// ZIG fits the zero-inflated Gaussian mixture: log counts regressed on group
// indicators and the scaling factor, with zero observations down-weighted by
// the per-sample probability that the zero is structural rather than sampled.
type ZIG struct{}

// NewZIG creates the zero-inflated Gaussian fitter.
func NewZIG() *ZIG {
	return &ZIG{}
}

var _ ports.ZIGFitter = (*ZIG)(nil)

// FitZIG fits every feature against the shared design.
func (z *ZIG) FitZIG(ctx context.Context, p *profile.Profile, gf *profile.GroupFactor,
	scales []float64, opts ports.FitOptions) (*ports.ZIGFit, error) {

	d, err := buildDesign(gf, scales)
	if err != nil {
		return nil, core.NewFitError("metagenomeSeq: ZIG", err)
	}

	// Per-sample structural-zero responsibility, estimated from the
	// sample's overall zero fraction.
	zeroResp := make([]float64, p.SampleCount())
	for j := range p.Samples {
		zeros := 0
		for i := range p.Counts {
			if p.Counts[i][j] == 0 {
				zeros++
			}
		}
		zeroResp[j] = float64(zeros) / float64(p.FeatureCount())
	}

	fit := &ports.ZIGFit{
		Features: append([]string(nil), p.Features...),
		Coefs:    d.Cols,
		Cov:      d.Cov,
	}

	usable := 0
	for i := range p.Features {
		y := make([]float64, p.SampleCount())
		w := make([]float64, p.SampleCount())
		for j := range p.Samples {
			y[j] = math.Log2(p.Counts[i][j] + 1)
			if p.Counts[i][j] == 0 {
				w[j] = math.Max(minZeroWeight, 1-zeroResp[j])
			} else {
				w[j] = 1
			}
		}

		beta, sigma, df, err := d.solveWLS(y, w)
		switch {
		case err == nil:
			usable++
		case errors.Is(err, core.ErrInsufficientData):
			beta = make([]float64, len(d.Cols))
			sigma, df = math.NaN(), math.NaN()
		default:
			return nil, core.NewFitError("metagenomeSeq: ZIG", err)
		}

		fit.Beta = append(fit.Beta, beta)
		fit.Sigma = append(fit.Sigma, sigma)
		fit.DF = append(fit.DF, df)
	}

	if usable == 0 {
		return nil, core.NewFitError("metagenomeSeq: ZIG", core.ErrNoUsableData)
	}
	return fit, nil
}

// Coefficients extracts the two-group coefficient table: the group effect is
// the numerator-level coefficient minus the denominator-level coefficient,
// which is why the factor is releveled denominator-first upstream.
func (z *ZIG) Coefficients(fit *ports.ZIGFit, adjust ports.AdjustMethod) ([]ports.FeatureResult, error) {
	if len(fit.Coefs) < 3 {
		return nil, core.NewValidationError("fit", "coefficient extraction expects two group levels plus the scaling factor")
	}
	den, num := 0, 1

	// Var(beta_num - beta_den) scales with this quadratic form.
	u := fit.Cov[num][num] + fit.Cov[den][den] - 2*fit.Cov[num][den]
	if u <= 0 {
		return nil, core.NewFitError("metagenomeSeq: ZIG", core.ErrSingularFit)
	}

	results := make([]ports.FeatureResult, len(fit.Features))
	pvals := make([]float64, len(fit.Features))
	for g := range fit.Features {
		effect := fit.Beta[g][num] - fit.Beta[g][den]
		pv := math.NaN()
		if !math.IsNaN(fit.Sigma[g]) && fit.DF[g] > 0 {
			se := fit.Sigma[g] * math.Sqrt(u)
			if se > 0 {
				t := effect / se
				dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: fit.DF[g]}
				pv = 2 * dist.Survival(math.Abs(t))
			}
		}
		pvals[g] = pv
		results[g] = ports.FeatureResult{
			Feature: fit.Features[g],
			Effect:  effect,
			PValue:  pv,
		}
	}

	adj, err := padjust.Adjust(pvals, adjust)
	if err != nil {
		return nil, err
	}
	for g := range results {
		results[g].PAdjusted = adj[g]
	}
	return results, nil
}
