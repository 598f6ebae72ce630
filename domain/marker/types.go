package marker

import (
	"fmt"

	"gomarker/domain/core"
	"gomarker/domain/profile"
)

// EffectKind tags which statistic the effect-size column carries.
type EffectKind string

const (
	EffectLogFC       EffectKind = "logFC"       // log fold change
	EffectFStatistic  EffectKind = "F_statistic" // overall multi-group F
	EffectCoefficient EffectKind = "coef"        // raw model coefficient
)

// ColumnTag renders the canonical effect-size column name.
func (k EffectKind) ColumnTag() string {
	return "ef_" + string(k)
}

// Record is one canonical marker row, the same schema regardless of which
// model branch produced it.
// INVARIANTS:
// - EnrichGroup is always one of the factor's group levels
// - Ambiguous is set only for multi-group runs with cyclic pairwise dominance
type Record struct {
	ID          string     `json:"id"` // "marker<k>", assigned at assembly
	Feature     string     `json:"feature"`
	EnrichGroup string     `json:"enrich_group"`
	Ambiguous   bool       `json:"ambiguous,omitempty"`
	EffectSize  float64    `json:"effect_size"`
	EffectKind  EffectKind `json:"effect_kind"`
	PValue      float64    `json:"pvalue"`
	PAdjusted   float64    `json:"padj"`
}

// Table is the ordered marker table. Row order is the order of appearance in
// the raw unfiltered fit, never a resort by significance.
type Table struct {
	Records []Record `json:"records"`
}

// AssignIDs renumbers rows "marker1", "marker2", ... in current order.
func (t *Table) AssignIDs() {
	for i := range t.Records {
		t.Records[i].ID = fmt.Sprintf("marker%d", i+1)
	}
}

// Len returns the number of marker rows.
func (t *Table) Len() int {
	return len(t.Records)
}

// Result bundles the marker table with the provenance and the data it was
// derived from.
type Result struct {
	AnalysisID core.AnalysisID `json:"analysis_id"`
	Table      Table           `json:"table"`

	// Provenance
	NormMethod string `json:"norm_method"` // normalization method name
	DiffMethod string `json:"diff_method"` // e.g. "metagenomeSeq: ZILN"

	// Fallback bookkeeping: callers distinguish "fell back" from a normal
	// pass through the flag and the count delta, not a warning string.
	FellBack         bool `json:"fell_back"`
	TotalFeatures    int  `json:"total_features"`
	SignificantCount int  `json:"significant_count"`

	// Data carried alongside the table
	Normalized *profile.Profile `json:"-"`

	Fingerprint core.Hash      `json:"fingerprint"`
	CreatedAt   core.Timestamp `json:"created_at"`
}
