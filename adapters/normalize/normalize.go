// Package normalize implements the abundance transform and library-size
// normalization services behind ports.Normalizer.
package normalize

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"gomarker/domain/core"
	"gomarker/domain/profile"
	"gomarker/ports"
)

// cssScaleDivisor rescales CSS factors into metagenomeSeq's conventional
// per-mille units.
const cssScaleDivisor = 1000.0

// Service implements ports.Normalizer.
type Service struct {
	rng ports.RNGPort
}

// NewService creates a normalization service. The RNG port drives rarefying.
func NewService(rng ports.RNGPort) *Service {
	return &Service{rng: rng}
}

// Transform applies the abundance transform. log10 is only defined on
// strictly positive counts; zero-bearing profiles need log10p.
func (s *Service) Transform(ctx context.Context, p *profile.Profile, method ports.TransformMethod) (*profile.Profile, error) {
	out := p.Clone()
	switch method {
	case ports.TransformIdentity:
		return out, nil
	case ports.TransformLog10:
		for i, row := range out.Counts {
			for j, v := range row {
				if v <= 0 {
					return nil, core.NewUsageError(core.ErrInvalidEnum,
						fmt.Sprintf("log10 transform undefined for count %g at feature %q; use log10p", v, out.Features[i]))
				}
				out.Counts[i][j] = math.Log10(v)
			}
		}
		return out, nil
	case ports.TransformLog10P:
		for i, row := range out.Counts {
			for j, v := range row {
				out.Counts[i][j] = math.Log10(v + 1)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: transform %q", core.ErrInvalidEnum, method)
}

// Normalize rescales the profile and reports per-sample scaling factors.
func (s *Service) Normalize(ctx context.Context, p *profile.Profile, method ports.NormMethod, opts ports.NormOptions) (*ports.Normalized, error) {
	switch method {
	case ports.NormNone:
		return &ports.Normalized{Profile: p.Clone()}, nil
	case ports.NormTSS:
		return s.totalSum(p)
	case ports.NormCPM:
		return s.countsPerMillion(p)
	case ports.NormRarefy:
		return s.rarefy(ctx, p, opts)
	case ports.NormCSS:
		return s.cumulativeSum(p, opts.CSSQuantile)
	case ports.NormRLE:
		return s.relativeLog(p)
	case ports.NormTMM:
		return s.trimmedMean(p)
	case ports.NormCLR:
		return s.centeredLogRatio(p)
	}
	return nil, fmt.Errorf("%w: normalization %q", core.ErrInvalidEnum, method)
}

func (s *Service) totalSum(p *profile.Profile) (*ports.Normalized, error) {
	out := p.Clone()
	sizes := p.LibrarySizes()
	for j, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("%w: sample %q has zero library size", core.ErrInsufficientData, p.Samples[j])
		}
	}
	for i := range out.Counts {
		for j := range out.Counts[i] {
			out.Counts[i][j] /= sizes[j]
		}
	}
	return &ports.Normalized{Profile: out, ScaleFactors: sizes}, nil
}

func (s *Service) countsPerMillion(p *profile.Profile) (*ports.Normalized, error) {
	norm, err := s.totalSum(p)
	if err != nil {
		return nil, err
	}
	for i := range norm.Profile.Counts {
		for j := range norm.Profile.Counts[i] {
			norm.Profile.Counts[i][j] *= 1e6
		}
	}
	factors := make([]float64, len(norm.ScaleFactors))
	for j, size := range norm.ScaleFactors {
		factors[j] = size / 1e6
	}
	norm.ScaleFactors = factors
	return norm, nil
}

// rarefy subsamples every sample without replacement to a common depth.
// Deterministic for a fixed seed via the RNG port.
func (s *Service) rarefy(ctx context.Context, p *profile.Profile, opts ports.NormOptions) (*ports.Normalized, error) {
	// Rarefying draws individual reads; a fractional or negative count has
	// no read multiset to draw from (log transforms must come after, not
	// before, resampling).
	for i := range p.Counts {
		for j, v := range p.Counts[i] {
			if v < 0 || v != math.Trunc(v) {
				return nil, core.NewValidationError("rarefy",
					fmt.Sprintf("count %g for feature %q sample %q is not a non-negative integer",
						v, p.Features[i], p.Samples[j]))
			}
		}
	}

	sizes := p.LibrarySizes()
	depth := opts.RarefyDepth
	if depth <= 0 {
		m := math.Inf(1)
		for _, size := range sizes {
			m = math.Min(m, size)
		}
		depth = int(m)
	}
	if depth <= 0 {
		return nil, fmt.Errorf("%w: rarefying depth resolves to %d", core.ErrInsufficientData, depth)
	}

	rng, err := s.rng.SeededStream(ctx, "rarefy", opts.Seed)
	if err != nil {
		return nil, err
	}

	out := p.Clone()
	for j := range p.Samples {
		if int(sizes[j]) < depth {
			return nil, fmt.Errorf("%w: sample %q library size %.0f below rarefying depth %d",
				core.ErrInsufficientData, p.Samples[j], sizes[j], depth)
		}
		drawn := drawWithoutReplacement(p.Counts, j, int(sizes[j]), depth, rng)
		for i := range out.Counts {
			out.Counts[i][j] = drawn[i]
		}
	}

	factors := make([]float64, len(p.Samples))
	for j := range factors {
		factors[j] = float64(depth)
	}
	return &ports.Normalized{Profile: out, ScaleFactors: factors}, nil
}

// drawWithoutReplacement samples depth reads from sample col's count column
// by walking a Fisher-Yates style draw over the implicit read multiset.
func drawWithoutReplacement(counts [][]float64, col, total, depth int, rng interface{ Intn(int) int }) []float64 {
	remaining := make([]int, len(counts))
	for i := range counts {
		remaining[i] = int(counts[i][col])
	}
	drawn := make([]float64, len(counts))

	left := total
	for k := 0; k < depth; k++ {
		pick := rng.Intn(left)
		acc := 0
		for i, r := range remaining {
			acc += r
			if pick < acc {
				remaining[i]--
				drawn[i]++
				break
			}
		}
		left--
	}
	return drawn
}

// cumulativeSum implements metagenomeSeq-style cumulative-sum scaling: each
// sample's factor is the sum of its counts at or below the chosen quantile of
// its nonzero count distribution.
func (s *Service) cumulativeSum(p *profile.Profile, quantile float64) (*ports.Normalized, error) {
	factors, err := s.CSSFactors(p, quantile)
	if err != nil {
		return nil, err
	}
	out := p.Clone()
	for i := range out.Counts {
		for j := range out.Counts[i] {
			out.Counts[i][j] = out.Counts[i][j] / factors[j] * cssScaleDivisor
		}
	}
	return &ports.Normalized{Profile: out, ScaleFactors: factors}, nil
}

// CSSFactors derives cumulative-sum-scaling factors from raw counts.
func (s *Service) CSSFactors(p *profile.Profile, quantile float64) ([]float64, error) {
	if quantile <= 0 || quantile >= 1 {
		quantile = 0.5
	}
	factors := make([]float64, p.SampleCount())
	for j := range p.Samples {
		var nonzero []float64
		for i := range p.Counts {
			if v := p.Counts[i][j]; v > 0 {
				nonzero = append(nonzero, v)
			}
		}
		if len(nonzero) == 0 {
			return nil, fmt.Errorf("%w: sample %q has no nonzero counts", core.ErrInsufficientData, p.Samples[j])
		}
		q := quantileType7(nonzero, quantile)
		sum := 0.0
		for _, v := range nonzero {
			if v <= q {
				sum += v
			}
		}
		if sum <= 0 {
			sum = nonzero[0]
		}
		factors[j] = sum
	}
	return factors, nil
}

// relativeLog implements RLE (median-of-ratios): each sample's factor is the
// median ratio of its counts to the per-feature geometric means.
func (s *Service) relativeLog(p *profile.Profile) (*ports.Normalized, error) {
	geo := make([]float64, p.FeatureCount())
	for i, row := range p.Counts {
		positive := true
		for _, v := range row {
			if v <= 0 {
				positive = false
				break
			}
		}
		if positive {
			geo[i] = stat.GeometricMean(row, nil)
		} else {
			geo[i] = math.NaN() // features with zeros drop out of the reference
		}
	}

	factors := make([]float64, p.SampleCount())
	for j := range p.Samples {
		var ratios []float64
		for i := range p.Counts {
			if !math.IsNaN(geo[i]) && geo[i] > 0 {
				ratios = append(ratios, p.Counts[i][j]/geo[i])
			}
		}
		if len(ratios) == 0 {
			return nil, fmt.Errorf("%w: RLE has no all-positive reference features", core.ErrInsufficientData)
		}
		med, err := stats.Median(ratios)
		if err != nil || med <= 0 {
			return nil, fmt.Errorf("%w: RLE factor for sample %q", core.ErrInsufficientData, p.Samples[j])
		}
		factors[j] = med
	}

	out := p.Clone()
	for i := range out.Counts {
		for j := range out.Counts[i] {
			out.Counts[i][j] /= factors[j]
		}
	}
	return &ports.Normalized{Profile: out, ScaleFactors: factors}, nil
}

// trimmedMean implements edgeR-style TMM: log ratios against a reference
// sample are doubly trimmed (30% on M, 5% on A) and averaged.
func (s *Service) trimmedMean(p *profile.Profile) (*ports.Normalized, error) {
	sizes := p.LibrarySizes()
	ref, err := tmmReference(p, sizes)
	if err != nil {
		return nil, err
	}

	logFactors := make([]float64, p.SampleCount())
	for j := range p.Samples {
		if j == ref {
			continue
		}
		f, err := tmmPairFactor(p, sizes, j, ref)
		if err != nil {
			return nil, err
		}
		logFactors[j] = f
	}

	// Center factors so they multiply to one across samples.
	meanLog := stat.Mean(logFactors, nil)
	factors := make([]float64, len(logFactors))
	for j, lf := range logFactors {
		factors[j] = math.Exp2(lf-meanLog) * sizes[j]
	}

	out := p.Clone()
	for i := range out.Counts {
		for j := range out.Counts[i] {
			out.Counts[i][j] = out.Counts[i][j] / factors[j] * 1e6
		}
	}
	return &ports.Normalized{Profile: out, ScaleFactors: factors}, nil
}

// tmmReference picks the sample whose upper quartile of scaled counts is
// closest to the mean upper quartile.
func tmmReference(p *profile.Profile, sizes []float64) (int, error) {
	uq := make([]float64, p.SampleCount())
	for j := range p.Samples {
		col := make([]float64, 0, p.FeatureCount())
		for i := range p.Counts {
			col = append(col, p.Counts[i][j]/sizes[j])
		}
		uq[j] = quantileType7(col, 0.75)
	}
	meanUQ := stat.Mean(uq, nil)

	best, bestDist := 0, math.Inf(1)
	for j, q := range uq {
		if d := math.Abs(q - meanUQ); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, nil
}

// quantileType7 evaluates R's default (type 7) sample quantile: linear
// interpolation at h = (n-1)q over the sorted values. CSS and TMM factors
// are defined against this convention; nearest-rank variants shift the
// cutoff and with it every scale factor.
func quantileType7(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// maPoint is one feature's (M, A) log-ratio pair against the reference.
type maPoint struct{ m, a float64 }

func tmmPairFactor(p *profile.Profile, sizes []float64, j, ref int) (float64, error) {
	var points []maPoint
	for i := range p.Counts {
		x := p.Counts[i][j]
		r := p.Counts[i][ref]
		if x <= 0 || r <= 0 {
			continue
		}
		px, pr := x/sizes[j], r/sizes[ref]
		points = append(points, maPoint{
			m: math.Log2(px / pr),
			a: 0.5 * (math.Log2(px) + math.Log2(pr)),
		})
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("%w: TMM has no co-detected features for sample %q", core.ErrInsufficientData, p.Samples[j])
	}

	kept := doubleTrim(points, func(pt maPoint) float64 { return pt.m }, 0.30)
	kept = doubleTrim(kept, func(pt maPoint) float64 { return pt.a }, 0.05)
	if len(kept) == 0 {
		kept = points
	}

	sum := 0.0
	for _, pt := range kept {
		sum += pt.m
	}
	return sum / float64(len(kept)), nil
}

func doubleTrim(points []maPoint, key func(maPoint) float64, frac float64) []maPoint {
	if len(points) == 0 {
		return points
	}
	sorted := append([]maPoint(nil), points...)
	sort.Slice(sorted, func(x, y int) bool { return key(sorted[x]) < key(sorted[y]) })
	cut := int(float64(len(sorted)) * frac)
	return sorted[cut : len(sorted)-cut]
}

// centeredLogRatio applies CLR per sample with a pseudocount of 1. CLR has no
// per-sample scale factor; the pipeline re-derives CSS factors instead.
func (s *Service) centeredLogRatio(p *profile.Profile) (*ports.Normalized, error) {
	out := p.Clone()
	for j := range p.Samples {
		logs := make([]float64, p.FeatureCount())
		for i := range p.Counts {
			logs[i] = math.Log(p.Counts[i][j] + 1)
		}
		center := stat.Mean(logs, nil)
		for i := range out.Counts {
			out.Counts[i][j] = logs[i] - center
		}
	}
	return &ports.Normalized{Profile: out}, nil
}
