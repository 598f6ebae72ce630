package ports

import (
	"context"
	"fmt"

	"gomarker/domain/core"
	"gomarker/domain/profile"
)

// TransformMethod is the abundance transform applied before normalization.
type TransformMethod string

const (
	TransformIdentity TransformMethod = "identity"
	TransformLog10    TransformMethod = "log10"
	TransformLog10P   TransformMethod = "log10p" // log10(x + 1)
)

// ParseTransformMethod validates a transform name.
func ParseTransformMethod(s string) (TransformMethod, error) {
	switch TransformMethod(s) {
	case TransformIdentity, TransformLog10, TransformLog10P:
		return TransformMethod(s), nil
	}
	return "", fmt.Errorf("%w: transform %q", core.ErrInvalidEnum, s)
}

// NormMethod is the library-size normalization applied before fitting.
type NormMethod string

const (
	NormNone   NormMethod = "none"
	NormRarefy NormMethod = "rarefy"
	NormTSS    NormMethod = "TSS" // total-sum scaling
	NormTMM    NormMethod = "TMM" // trimmed mean of M-values
	NormRLE    NormMethod = "RLE" // relative log expression
	NormCSS    NormMethod = "CSS" // cumulative-sum scaling
	NormCLR    NormMethod = "CLR" // centered log-ratio
	NormCPM    NormMethod = "CPM" // counts per million
)

// ParseNormMethod validates a normalization name.
func ParseNormMethod(s string) (NormMethod, error) {
	switch NormMethod(s) {
	case NormNone, NormRarefy, NormTSS, NormTMM, NormRLE, NormCSS, NormCLR, NormCPM:
		return NormMethod(s), nil
	}
	return "", fmt.Errorf("%w: normalization %q", core.ErrInvalidEnum, s)
}

// NormOptions carries per-method tuning knobs.
type NormOptions struct {
	RarefyDepth int     // 0 = minimum library size
	Seed        int64   // rarefying draw seed
	CSSQuantile float64 // 0 = adaptive default (0.5)
}

// Normalized is a normalization outcome: the rescaled profile plus the
// per-sample scaling factors the method produced. ScaleFactors is nil when
// the method has no natural per-sample factor; the pipeline re-derives a CSS
// factor in that case so fitters always receive a usable scale.
type Normalized struct {
	Profile      *profile.Profile
	ScaleFactors []float64
}

// Normalizer rescales raw counts to remove library-size variation.
type Normalizer interface {
	Normalize(ctx context.Context, p *profile.Profile, method NormMethod, opts NormOptions) (*Normalized, error)

	// Transform applies the abundance transform, before normalization.
	Transform(ctx context.Context, p *profile.Profile, method TransformMethod) (*profile.Profile, error)

	// CSSFactors derives cumulative-sum-scaling factors from raw counts.
	// Used as the fallback scale source for methods without factors.
	CSSFactors(p *profile.Profile, quantile float64) ([]float64, error)
}
