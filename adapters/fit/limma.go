package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"gomarker/domain/contrast"
	"gomarker/domain/core"
	"gomarker/internal/padjust"
	"gomarker/ports"
)

// Limma implements the contrast-fit / empirical-Bayes / top-table chain over
// a zero-inflated Gaussian fit, in the manner of the limma workflow.
type Limma struct{}

// NewLimma creates the contrast fitter.
func NewLimma() *Limma {
	return &Limma{}
}

var _ ports.ContrastFitter = (*Limma)(nil)

// ContrastsFit reshapes per-level coefficients onto the contrast columns.
// The contrast matrix rows must match the fit's coefficient layout exactly,
// scaling-factor row included.
func (l *Limma) ContrastsFit(fit *ports.ZIGFit, m *contrast.Matrix) (*ports.ContrastFit, error) {
	if len(m.Rows) != len(fit.Coefs) {
		return nil, core.NewValidationError("contrast",
			"contrast rows do not match fit coefficients")
	}
	for i, row := range m.Rows {
		if row != fit.Coefs[i] {
			return nil, core.NewValidationError("contrast",
				"contrast row order does not match fit coefficients")
		}
	}

	k := len(m.Columns)
	p := len(fit.Coefs)

	cf := &ports.ContrastFit{
		Features: fit.Features,
		Sigma:    fit.Sigma,
		DF:       fit.DF,
	}
	for _, col := range m.Columns {
		cf.Pairs = append(cf.Pairs, col.Pair)
	}

	// Effects = Beta C, per feature.
	for _, beta := range fit.Beta {
		eff := make([]float64, k)
		for c, col := range m.Columns {
			for r := 0; r < p; r++ {
				eff[c] += beta[r] * col.Coeffs[r]
			}
		}
		cf.Effects = append(cf.Effects, eff)
	}

	// ContrastUV = C' Cov C, shared across features.
	cf.ContrastUV = make([][]float64, k)
	cf.UVar = make([]float64, k)
	for a := 0; a < k; a++ {
		cf.ContrastUV[a] = make([]float64, k)
		for b := 0; b < k; b++ {
			sum := 0.0
			for r := 0; r < p; r++ {
				for s := 0; s < p; s++ {
					sum += m.Columns[a].Coeffs[r] * fit.Cov[r][s] * m.Columns[b].Coeffs[s]
				}
			}
			cf.ContrastUV[a][b] = sum
		}
		cf.UVar[a] = cf.ContrastUV[a][a]
	}

	return cf, nil
}

// EmpiricalBayes shrinks per-feature residual variances toward a common prior
// estimated from all features (squeezeVar-style moment estimation on the log
// variances).
func (l *Limma) EmpiricalBayes(cf *ports.ContrastFit) (*ports.ContrastFit, error) {
	var es []float64
	var triSum float64
	for g := range cf.Features {
		s, df := cf.Sigma[g], cf.DF[g]
		if math.IsNaN(s) || df <= 0 {
			continue
		}
		s2 := math.Max(s*s, 1e-10)
		es = append(es, math.Log(s2)-mathext.Digamma(df/2)+math.Log(df/2))
		triSum += trigamma(df / 2)
	}
	if len(es) == 0 {
		return nil, core.NewFitError("empirical Bayes", core.ErrNoUsableData)
	}

	ebar := stat.Mean(es, nil)
	evar := stat.Variance(es, nil) - triSum/float64(len(es))

	var dfPrior, varPrior float64
	if len(es) > 1 && evar > 0 {
		dfPrior = 2 * trigammaInverse(evar)
		varPrior = math.Exp(ebar + mathext.Digamma(dfPrior/2) - math.Log(dfPrior/2))
	} else {
		dfPrior = math.Inf(1)
		varPrior = math.Exp(ebar)
	}

	cf.Moderated = true
	cf.DFPrior = dfPrior
	cf.VarPrior = varPrior
	cf.SigmaPost = make([]float64, len(cf.Features))
	for g := range cf.Features {
		s, df := cf.Sigma[g], cf.DF[g]
		if math.IsNaN(s) || df <= 0 {
			cf.SigmaPost[g] = math.NaN()
			continue
		}
		var post float64
		if math.IsInf(dfPrior, 1) {
			post = varPrior
		} else {
			post = (dfPrior*varPrior + df*s*s) / (dfPrior + df)
		}
		cf.SigmaPost[g] = math.Sqrt(post)
	}
	return cf, nil
}

// TopTable computes moderated statistics per feature and adjusts p-values.
// Row order is feature appearance order; callers relying on the raw fit
// ordering get exactly that back.
func (l *Limma) TopTable(cf *ports.ContrastFit, adjust ports.AdjustMethod) ([]ports.RankedRow, error) {
	if !cf.Moderated {
		return nil, core.NewValidationError("fit", "top table requires an empirical-Bayes moderated fit")
	}

	k := len(cf.Pairs)
	var red *reducedUV
	if k > 1 {
		r, err := reduceUV(cf.ContrastUV)
		if err != nil {
			return nil, core.NewFitError("top table", err)
		}
		red = r
	}

	rows := make([]ports.RankedRow, len(cf.Features))
	pvals := make([]float64, len(cf.Features))
	for g := range cf.Features {
		row := ports.RankedRow{
			Feature: cf.Features[g],
			Pairs:   cf.Pairs,
			LogFC:   append([]float64(nil), cf.Effects[g]...),
		}

		s := cf.SigmaPost[g]
		dfTotal := cf.DF[g] + cf.DFPrior
		if math.IsInf(dfTotal, 1) {
			dfTotal = 1e6 // effectively normal
		}

		pv := math.NaN()
		if !math.IsNaN(s) && s > 0 && dfTotal > 0 {
			if k == 1 {
				se := s * math.Sqrt(cf.UVar[0])
				if se > 0 {
					t := cf.Effects[g][0] / se
					row.FStatistic = t * t
					dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dfTotal}
					pv = 2 * dist.Survival(math.Abs(t))
				}
			} else {
				r := float64(red.rank())
				f := red.quad(cf.Effects[g]) / (r * s * s)
				row.FStatistic = f
				dist := distuv.F{D1: r, D2: dfTotal}
				pv = dist.Survival(f)
			}
		}

		row.PValue = pv
		pvals[g] = pv
		rows[g] = row
	}

	adj, err := padjust.Adjust(pvals, adjust)
	if err != nil {
		return nil, err
	}
	for g := range rows {
		rows[g].PAdjusted = adj[g]
	}
	return rows, nil
}

// reducedUV is the contrast covariance diagonalized onto its rank-r
// subspace. All-pairs contrast columns are linearly dependent (the last pair
// is a difference of the first two), so the full matrix is exactly singular;
// the moderated F statistic lives on the reduced eigenbasis.
type reducedUV struct {
	vectors [][]float64 // r eigenvectors, each of length k
	values  []float64   // matching eigenvalues, all above tolerance
}

func reduceUV(uv [][]float64) (*reducedUV, error) {
	k := len(uv)
	sym := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			sym.SetSym(a, b, (uv[a][b]+uv[b][a])/2)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return nil, core.ErrSingularFit
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	largest := 0.0
	for _, v := range vals {
		largest = math.Max(largest, v)
	}
	if largest <= 0 {
		return nil, core.ErrSingularFit
	}
	tol := largest * 1e-10

	red := &reducedUV{}
	for j, v := range vals {
		if v <= tol {
			continue
		}
		col := make([]float64, k)
		for i := 0; i < k; i++ {
			col[i] = vecs.At(i, j)
		}
		red.vectors = append(red.vectors, col)
		red.values = append(red.values, v)
	}
	if red.rank() == 0 {
		return nil, core.ErrSingularFit
	}
	return red, nil
}

func (r *reducedUV) rank() int {
	return len(r.values)
}

// quad evaluates e' UV^+ e through the eigenbasis.
func (r *reducedUV) quad(e []float64) float64 {
	q := 0.0
	for i, vec := range r.vectors {
		c := 0.0
		for j, v := range vec {
			c += v * e[j]
		}
		q += c * c / r.values[i]
	}
	return q
}

// trigamma evaluates the first derivative of digamma via the ascending
// recurrence into the asymptotic series region.
func trigamma(x float64) float64 {
	if x <= 0 {
		return math.NaN()
	}
	acc := 0.0
	// recurse until the asymptotic series is accurate well past 1e-12
	for x < 18 {
		acc += 1 / (x * x)
		x++
	}
	inv := 1 / x
	inv2 := inv * inv
	// asymptotic expansion
	series := inv + inv2/2 + inv*inv2/6 - inv*inv2*inv2/30 + inv*inv2*inv2*inv2/42
	return acc + series
}

// trigammaInverse solves trigamma(x) = y by Newton iteration, limma-style.
func trigammaInverse(y float64) float64 {
	if y > 1e7 {
		return 1 / math.Sqrt(y)
	}
	if y < 1e-6 {
		return 1 / y
	}

	x := 0.5 + 1/y
	for iter := 0; iter < 50; iter++ {
		tri := trigamma(x)
		// derivative of trigamma by central difference
		h := 1e-4 * x
		deriv := (trigamma(x+h) - trigamma(x-h)) / (2 * h)
		if deriv == 0 {
			break
		}
		delta := tri * (1 - tri/y) / deriv
		x += delta
		if math.Abs(delta)/x < 1e-8 {
			break
		}
	}
	return x
}
