// Package fit implements the delegated model-fitting services: the
// zero-inflated log-normal feature model, the zero-inflated Gaussian fit,
// and the contrast/empirical-Bayes/top-table chain over it.
package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"gomarker/domain/contrast"
	"gomarker/domain/core"
	"gomarker/domain/profile"
)

// scaleOffset converts a per-sample scaling factor into the design's
// scaling-factor regressor, metagenomeSeq convention.
func scaleOffset(scale float64) float64 {
	return math.Log2(scale/1000 + 1)
}

// design is the shared model matrix for one analysis: cell-means coding (one
// indicator column per group level) plus the scaling-factor column. The
// column layout mirrors contrast.Matrix rows exactly.
type design struct {
	X        *mat.Dense
	Cols     []string
	Cov      [][]float64 // unscaled covariance (X'X)^-1, padded to len(Cols)
	hasScale bool        // false when the scale column was dropped as constant
}

// buildDesign assembles the model matrix. A (near-)constant scaling-factor
// column is collinear with the level indicators and would make X'X singular,
// so it is dropped from the fitted matrix; its coefficient stays in the
// reported layout as an exact zero.
func buildDesign(gf *profile.GroupFactor, scales []float64) (*design, error) {
	n := len(gf.Labels)
	if len(scales) != n {
		return nil, core.NewValidationError("scales",
			fmt.Sprintf("%d factors for %d samples", len(scales), n))
	}

	offsets := make([]float64, n)
	lo, hi := math.Inf(1), math.Inf(-1)
	for j, s := range scales {
		offsets[j] = scaleOffset(s)
		lo = math.Min(lo, offsets[j])
		hi = math.Max(hi, offsets[j])
	}
	hasScale := hi-lo > 1e-12

	levels := gf.Levels
	cols := append([]string(nil), levels...)
	cols = append(cols, contrast.ScalingFactorRow)

	fitted := len(levels)
	if hasScale {
		fitted++
	}

	X := mat.NewDense(n, fitted, nil)
	for j, label := range gf.Labels {
		X.Set(j, gf.LevelIndex(label), 1)
		if hasScale {
			X.Set(j, len(levels), offsets[j])
		}
	}

	cov, err := unscaledCov(X)
	if err != nil {
		return nil, err
	}

	// Pad the covariance out to the full column layout so contrast rows and
	// covariance indices always agree.
	full := make([][]float64, len(cols))
	for i := range full {
		full[i] = make([]float64, len(cols))
	}
	for i := 0; i < fitted; i++ {
		for j := 0; j < fitted; j++ {
			full[i][j] = cov.At(i, j)
		}
	}

	return &design{X: X, Cols: cols, Cov: full, hasScale: hasScale}, nil
}

// unscaledCov computes (X'X)^-1.
func unscaledCov(X *mat.Dense) (*mat.Dense, error) {
	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularFit, err)
	}
	return &inv, nil
}

// solveWLS fits one feature's response by weighted least squares, returning
// the coefficient vector padded to the full column layout, the residual
// standard deviation, and the residual degrees of freedom.
func (d *design) solveWLS(y, w []float64) (beta []float64, sigma, df float64, err error) {
	n, p := d.X.Dims()

	Xw := mat.NewDense(n, p, nil)
	yw := mat.NewVecDense(n, nil)
	sumW := 0.0
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w[i])
		sumW += w[i]
		for j := 0; j < p; j++ {
			Xw.Set(i, j, sw*d.X.At(i, j))
		}
		yw.SetVec(i, sw*y[i])
	}

	var qr mat.QR
	qr.Factorize(Xw)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, yw); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", core.ErrSingularFit, err)
	}

	fitted := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			fitted[i] += d.X.At(i, j) * sol.At(j, 0)
		}
	}

	rss := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted[i]
		rss += w[i] * r * r
	}

	df = sumW - float64(p)
	if df <= 0 {
		return nil, 0, 0, core.ErrInsufficientData
	}
	sigma = math.Sqrt(rss / df)

	beta = make([]float64, len(d.Cols))
	for j := 0; j < p; j++ {
		beta[j] = sol.At(j, 0)
	}
	return beta, sigma, df, nil
}
