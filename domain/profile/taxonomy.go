package profile

import (
	"strings"

	"gomarker/domain/core"
)

// Rank is a taxonomic rank in the canonical seven-level hierarchy.
type Rank string

const (
	RankKingdom Rank = "Kingdom"
	RankPhylum  Rank = "Phylum"
	RankClass   Rank = "Class"
	RankOrder   Rank = "Order"
	RankFamily  Rank = "Family"
	RankGenus   Rank = "Genus"
	RankSpecies Rank = "Species"
)

// CanonicalRanks lists ranks from broadest to narrowest.
var CanonicalRanks = []Rank{
	RankKingdom, RankPhylum, RankClass, RankOrder,
	RankFamily, RankGenus, RankSpecies,
}

// rank prefixes used when rendering lineage strings (greengenes style)
var rankPrefixes = map[Rank]string{
	RankKingdom: "k__",
	RankPhylum:  "p__",
	RankClass:   "c__",
	RankOrder:   "o__",
	RankFamily:  "f__",
	RankGenus:   "g__",
	RankSpecies: "s__",
}

// ParseRank validates a rank name, case-insensitively.
func ParseRank(name string) (Rank, error) {
	for _, r := range CanonicalRanks {
		if strings.EqualFold(string(r), name) {
			return r, nil
		}
	}
	return "", core.NewUsageError(core.ErrUnknownRank, name)
}

// RankDepth returns the 0-based depth of a rank (Kingdom=0 .. Species=6).
func RankDepth(r Rank) int {
	for i, c := range CanonicalRanks {
		if c == r {
			return i
		}
	}
	return -1
}

// Lineage holds a feature's taxonomy, one name per canonical rank, broadest
// first. Trailing ranks may be empty when unclassified.
type Lineage []string

// Truncate returns the lineage cut at the given rank (inclusive).
func (l Lineage) Truncate(r Rank) Lineage {
	depth := RankDepth(r) + 1
	if depth <= 0 || depth > len(l) {
		depth = len(l)
	}
	out := make(Lineage, depth)
	copy(out, l[:depth])
	return out
}

// String renders the lineage with rank prefixes joined by "|".
func (l Lineage) String() string {
	parts := make([]string, 0, len(l))
	for i, name := range l {
		if i >= len(CanonicalRanks) {
			break
		}
		parts = append(parts, rankPrefixes[CanonicalRanks[i]]+name)
	}
	return strings.Join(parts, "|")
}

// DeepestLabel returns the narrowest non-empty rank name, or the full string
// when every rank is empty.
func (l Lineage) DeepestLabel() string {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i] != "" {
			return l[i]
		}
	}
	return l.String()
}
