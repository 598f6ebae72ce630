package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a
	// named operation. The same (name, seed) pair always yields an
	// identical stream, which is what makes stochastic normalization
	// (rarefying) replayable.
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
