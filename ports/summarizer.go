package ports

import (
	"context"
	"fmt"

	"gomarker/domain/core"
	"gomarker/domain/profile"
)

// RankMode selects how features are summarized before fitting.
type RankMode string

const (
	RankModeNone RankMode = "none" // keep raw features untouched
	RankModeAll  RankMode = "all"  // flatten features to full lineage strings
	RankModeAt   RankMode = "rank" // aggregate counts to one named rank
)

// RankSpec is a validated taxonomic summarization request.
type RankSpec struct {
	Mode RankMode
	Rank profile.Rank // set when Mode == RankModeAt
}

// ParseRankSpec accepts "none", "all", or a canonical rank name.
func ParseRankSpec(s string) (RankSpec, error) {
	switch RankMode(s) {
	case RankModeNone:
		return RankSpec{Mode: RankModeNone}, nil
	case RankModeAll:
		return RankSpec{Mode: RankModeAll}, nil
	}
	r, err := profile.ParseRank(s)
	if err != nil {
		return RankSpec{}, fmt.Errorf("%w: taxa rank %q", core.ErrUnknownRank, s)
	}
	return RankSpec{Mode: RankModeAt, Rank: r}, nil
}

// Summarizer aggregates an abundance profile taxonomically.
type Summarizer interface {
	Summarize(ctx context.Context, p *profile.Profile, spec RankSpec) (*profile.Profile, error)
}
