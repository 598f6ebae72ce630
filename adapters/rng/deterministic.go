// Package rng provides the deterministic seeded stream source used by
// stochastic normalization.
package rng

import (
	"context"
	"hash/fnv"
	"math/rand"

	"gomarker/ports"
)

// Deterministic implements ports.RNGPort. Streams are keyed by operation name
// so two operations sharing a base seed never consume the same sequence.
type Deterministic struct{}

var _ ports.RNGPort = (*Deterministic)(nil)

// NewDeterministic creates the stream source.
func NewDeterministic() *Deterministic {
	return &Deterministic{}
}

// SeededStream derives a stream from (name, seed). Identical inputs always
// produce identical streams.
func (d *Deterministic) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	h := fnv.New64a()
	h.Write([]byte(name))
	derived := seed ^ int64(h.Sum64())
	return rand.New(rand.NewSource(derived)), nil
}
