package ports

import (
	"context"

	"gomarker/domain/core"
	"gomarker/domain/marker"
)

// MarkerRepository persists finished analysis results for batch sweeps. The
// pipeline itself never persists anything; callers opt in explicitly.
type MarkerRepository interface {
	Save(ctx context.Context, result *marker.Result) error
	GetByID(ctx context.Context, id core.AnalysisID) (*marker.Result, error)
	ListRecent(ctx context.Context, limit int) ([]*marker.Result, error)
	Delete(ctx context.Context, id core.AnalysisID) error
}
