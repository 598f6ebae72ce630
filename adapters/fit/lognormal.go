package fit

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"gomarker/domain/core"
	"gomarker/domain/profile"
	"gomarker/internal/padjust"
	"gomarker/ports"
)

// LogNormal fits the zero-inflated log-normal feature model: the continuous
// component compares scale-adjusted log counts of the detected (positive)
// observations between exactly two groups. The factor arrives releveled
// denominator-first, so a positive logFC always reads numerator over
// denominator.
type LogNormal struct{}

// NewLogNormal creates the feature-model fitter.
func NewLogNormal() *LogNormal {
	return &LogNormal{}
}

var _ ports.FeatureModelFitter = (*LogNormal)(nil)

// FitFeatureModel fits each feature and adjusts the p-values.
func (l *LogNormal) FitFeatureModel(ctx context.Context, p *profile.Profile, gf *profile.GroupFactor,
	scales []float64, opts ports.FitOptions) ([]ports.FeatureResult, error) {

	if gf.LevelCount() != 2 {
		return nil, core.ErrModelGroupMismatch
	}
	if len(scales) != p.SampleCount() {
		return nil, core.NewValidationError("scales", "one factor per sample required")
	}

	denIdx := gf.SampleIndices(gf.Levels[0])
	numIdx := gf.SampleIndices(gf.Levels[1])

	results := make([]ports.FeatureResult, p.FeatureCount())
	pvals := make([]float64, p.FeatureCount())
	usable := 0

	for i := range p.Features {
		den := positiveLogAbundance(p.Counts[i], scales, denIdx)
		num := positiveLogAbundance(p.Counts[i], scales, numIdx)

		logFC, pv := welch(num, den)
		if !math.IsNaN(pv) {
			usable++
		}
		pvals[i] = pv
		results[i] = ports.FeatureResult{
			Feature: p.Features[i],
			Effect:  logFC,
			PValue:  pv,
		}
	}

	if usable == 0 {
		return nil, core.NewFitError("metagenomeSeq: ZILN", core.ErrNoUsableData)
	}

	adj, err := padjust.Adjust(pvals, opts.Adjust)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].PAdjusted = adj[i]
	}
	return results, nil
}

// positiveLogAbundance collects log2 scale-adjusted abundances over the
// detected observations of the given samples.
func positiveLogAbundance(row, scales []float64, idx []int) []float64 {
	var out []float64
	for _, j := range idx {
		if row[j] > 0 {
			out = append(out, math.Log2(row[j]*1000/scales[j]+1))
		}
	}
	return out
}

// welch runs the unequal-variance two-sample comparison on the log scale.
// Returns (NaN, NaN) when either side has too few detected observations.
func welch(num, den []float64) (logFC, pValue float64) {
	if len(num) == 0 && len(den) == 0 {
		return math.NaN(), math.NaN()
	}

	meanNum := stat.Mean(num, nil)
	meanDen := stat.Mean(den, nil)
	switch {
	case len(num) == 0:
		return -meanDen, math.NaN()
	case len(den) == 0:
		return meanNum, math.NaN()
	}
	logFC = meanNum - meanDen

	if len(num) < 2 || len(den) < 2 {
		return logFC, math.NaN()
	}

	varNum := stat.Variance(num, nil)
	varDen := stat.Variance(den, nil)
	n1, n2 := float64(len(num)), float64(len(den))

	se := math.Sqrt(varNum/n1 + varDen/n2)
	if se == 0 {
		if logFC == 0 {
			return logFC, 1
		}
		return logFC, math.NaN()
	}

	t := logFC / se
	// Welch-Satterthwaite degrees of freedom
	df := math.Pow(varNum/n1+varDen/n2, 2) /
		(math.Pow(varNum/n1, 2)/(n1-1) + math.Pow(varDen/n2, 2)/(n2-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return logFC, 2 * dist.Survival(math.Abs(t))
}
