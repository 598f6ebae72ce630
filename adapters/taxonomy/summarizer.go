// Package taxonomy implements rank summarization of abundance profiles.
package taxonomy

import (
	"context"
	"fmt"

	"gomarker/domain/core"
	"gomarker/domain/profile"
	"gomarker/ports"
)

// Service implements ports.Summarizer.
type Service struct{}

// NewService creates a taxonomy summarizer.
func NewService() *Service {
	return &Service{}
}

// Summarize aggregates the profile per the rank spec.
//   - none: features pass through untouched, names unchanged
//   - all: features are flattened to their full lineage strings; features
//     sharing a lineage merge by summing counts
//   - rank: lineages are truncated at the requested rank and merged
func (s *Service) Summarize(ctx context.Context, p *profile.Profile, spec ports.RankSpec) (*profile.Profile, error) {
	switch spec.Mode {
	case ports.RankModeNone:
		return p.Clone(), nil
	case ports.RankModeAll:
		return s.aggregate(p, func(l profile.Lineage) profile.Lineage { return l })
	case ports.RankModeAt:
		if profile.RankDepth(spec.Rank) < 0 {
			return nil, core.NewUsageError(core.ErrUnknownRank, string(spec.Rank))
		}
		return s.aggregate(p, func(l profile.Lineage) profile.Lineage { return l.Truncate(spec.Rank) })
	}
	return nil, fmt.Errorf("%w: rank mode %q", core.ErrInvalidEnum, spec.Mode)
}

// aggregate merges features whose keyed lineage renders identically, summing
// counts column-wise. Output order follows first appearance.
func (s *Service) aggregate(p *profile.Profile, key func(profile.Lineage) profile.Lineage) (*profile.Profile, error) {
	if p.Taxonomy == nil {
		return nil, core.NewValidationError("taxonomy", "rank summarization requires feature taxonomy")
	}

	index := make(map[string]int)
	var names []string
	var lineages []profile.Lineage
	var counts [][]float64

	for i := range p.Features {
		lin := key(p.Taxonomy[i])
		name := lin.String()
		if name == "" {
			name = p.Features[i]
		}

		at, ok := index[name]
		if !ok {
			at = len(names)
			index[name] = at
			names = append(names, name)
			lineages = append(lineages, append(profile.Lineage(nil), lin...))
			counts = append(counts, make([]float64, p.SampleCount()))
		}
		for j, v := range p.Counts[i] {
			counts[at][j] += v
		}
	}

	var meta []profile.SampleMeta
	if p.Meta != nil {
		clone := p.Clone()
		meta = clone.Meta
	}
	return profile.NewProfile(counts, names, append([]string(nil), p.Samples...), meta, lineages)
}
