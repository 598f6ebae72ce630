package profile

import (
	"fmt"

	"gomarker/domain/core"
)

// Profile is the canonical abundance object for the whole pipeline: a
// feature-by-sample count matrix, per-sample metadata, and optional
// per-feature taxonomy.
// INVARIANTS:
// - Counts is rectangular: len(Counts) == len(Features), every row has
//   len(Samples) entries
// - Feature and sample names are unique
// - Taxonomy, when present, is aligned with Features
type Profile struct {
	Counts   [][]float64  // rows = features, cols = samples
	Features []string     // feature (taxon/OTU) identifiers
	Samples  []string     // sample identifiers
	Meta     []SampleMeta // per-sample metadata, aligned with Samples
	Taxonomy []Lineage    // optional, aligned with Features
}

// SampleMeta is one sample's metadata record (column name -> value).
type SampleMeta map[string]string

// NewProfile validates and assembles an abundance profile.
func NewProfile(counts [][]float64, features, samples []string, meta []SampleMeta, taxonomy []Lineage) (*Profile, error) {
	if len(features) == 0 || len(samples) == 0 {
		return nil, core.ErrEmptyProfile
	}
	if len(counts) != len(features) {
		return nil, fmt.Errorf("%w: %d count rows vs %d features", core.ErrRaggedMatrix, len(counts), len(features))
	}
	for i, row := range counts {
		if len(row) != len(samples) {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", core.ErrRaggedMatrix, i, len(row), len(samples))
		}
	}
	if err := checkUnique("feature", features); err != nil {
		return nil, err
	}
	if err := checkUnique("sample", samples); err != nil {
		return nil, err
	}
	if meta != nil && len(meta) != len(samples) {
		return nil, core.NewValidationError("meta", fmt.Sprintf("%d records for %d samples", len(meta), len(samples)))
	}
	if taxonomy != nil && len(taxonomy) != len(features) {
		return nil, core.NewValidationError("taxonomy", fmt.Sprintf("%d lineages for %d features", len(taxonomy), len(features)))
	}

	return &Profile{
		Counts:   counts,
		Features: features,
		Samples:  samples,
		Meta:     meta,
		Taxonomy: taxonomy,
	}, nil
}

// MustNewProfile creates a profile (panics on invalid input).
// Use only in tests and development.
func MustNewProfile(counts [][]float64, features, samples []string, meta []SampleMeta, taxonomy []Lineage) *Profile {
	p, err := NewProfile(counts, features, samples, meta, taxonomy)
	if err != nil {
		panic(err)
	}
	return p
}

func checkUnique(kind string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return fmt.Errorf("%w: %s %q", core.ErrDuplicateName, kind, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// FeatureCount returns the number of features (matrix rows).
func (p *Profile) FeatureCount() int {
	return len(p.Features)
}

// SampleCount returns the number of samples (matrix columns).
func (p *Profile) SampleCount() int {
	return len(p.Samples)
}

// Clone returns a deep copy. Every pipeline stage operates on its own copy;
// caller-owned data is never mutated.
func (p *Profile) Clone() *Profile {
	counts := make([][]float64, len(p.Counts))
	for i, row := range p.Counts {
		counts[i] = append([]float64(nil), row...)
	}
	var meta []SampleMeta
	if p.Meta != nil {
		meta = make([]SampleMeta, len(p.Meta))
		for i, m := range p.Meta {
			cp := make(SampleMeta, len(m))
			for k, v := range m {
				cp[k] = v
			}
			meta[i] = cp
		}
	}
	var tax []Lineage
	if p.Taxonomy != nil {
		tax = make([]Lineage, len(p.Taxonomy))
		for i, l := range p.Taxonomy {
			tax[i] = append(Lineage(nil), l...)
		}
	}
	return &Profile{
		Counts:   counts,
		Features: append([]string(nil), p.Features...),
		Samples:  append([]string(nil), p.Samples...),
		Meta:     meta,
		Taxonomy: tax,
	}
}

// GroupFactor extracts and sanitizes the grouping column from sample metadata.
func (p *Profile) GroupFactor(column string) (*GroupFactor, error) {
	if p.Meta == nil {
		return nil, core.NewValidationError("meta", "profile has no sample metadata")
	}
	raw := make([]string, len(p.Samples))
	for i, m := range p.Meta {
		v, ok := m[column]
		if !ok || v == "" {
			return nil, core.NewValidationError("group",
				fmt.Sprintf("sample %q has no value for column %q", p.Samples[i], column))
		}
		raw[i] = v
	}
	return NewGroupFactor(raw)
}

// LibrarySizes returns the per-sample column sums.
func (p *Profile) LibrarySizes() []float64 {
	sizes := make([]float64, p.SampleCount())
	for _, row := range p.Counts {
		for j, v := range row {
			sizes[j] += v
		}
	}
	return sizes
}
