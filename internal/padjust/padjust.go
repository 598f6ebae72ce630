// Package padjust implements multiple-testing corrections over raw p-value
// vectors. NaN entries pass through untouched and do not count toward the
// number of tests, matching the usual statistical-package convention.
package padjust

import (
	"fmt"
	"math"
	"sort"

	"gomarker/domain/core"
	"gomarker/ports"
)

// Adjust corrects raw p-values with the requested method.
func Adjust(p []float64, method ports.AdjustMethod) ([]float64, error) {
	switch method {
	case ports.AdjustNone:
		return append([]float64(nil), p...), nil
	case ports.AdjustBonferroni:
		return bonferroni(p), nil
	case ports.AdjustHolm:
		return holm(p), nil
	case ports.AdjustHochberg:
		return hochberg(p), nil
	case ports.AdjustBH:
		return benjaminiHochberg(p, false), nil
	case ports.AdjustBY:
		return benjaminiHochberg(p, true), nil
	}
	return nil, fmt.Errorf("%w: p-value adjustment %q", core.ErrInvalidEnum, method)
}

// observed collects the indices of non-NaN entries.
func observed(p []float64) []int {
	idx := make([]int, 0, len(p))
	for i, v := range p {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	return idx
}

func bonferroni(p []float64) []float64 {
	out := append([]float64(nil), p...)
	idx := observed(p)
	n := float64(len(idx))
	for _, i := range idx {
		out[i] = math.Min(1, p[i]*n)
	}
	return out
}

func holm(p []float64) []float64 {
	out := append([]float64(nil), p...)
	idx := observed(p)
	n := len(idx)
	sort.Slice(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	running := 0.0
	for rank, i := range idx {
		adj := math.Min(1, float64(n-rank)*p[i])
		running = math.Max(running, adj) // enforce monotone step-down
		out[i] = running
	}
	return out
}

func hochberg(p []float64) []float64 {
	out := append([]float64(nil), p...)
	idx := observed(p)
	n := len(idx)
	sort.Slice(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	running := 1.0
	for rank := n - 1; rank >= 0; rank-- {
		i := idx[rank]
		adj := math.Min(1, float64(n-rank)*p[i])
		running = math.Min(running, adj) // enforce monotone step-up
		out[i] = running
	}
	return out
}

func benjaminiHochberg(p []float64, yekutieli bool) []float64 {
	out := append([]float64(nil), p...)
	idx := observed(p)
	n := len(idx)
	sort.Slice(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	cm := 1.0
	if yekutieli {
		cm = 0
		for i := 1; i <= n; i++ {
			cm += 1 / float64(i)
		}
	}

	running := 1.0
	for rank := n - 1; rank >= 0; rank-- {
		i := idx[rank]
		adj := math.Min(1, cm*float64(n)/float64(rank+1)*p[i])
		running = math.Min(running, adj)
		out[i] = running
	}
	return out
}
