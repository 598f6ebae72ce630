package profile

import (
	"fmt"

	"gomarker/domain/core"
)

// GroupFactor is the sanitized categorical grouping of samples, derived from
// one metadata column.
// INVARIANTS:
// - Levels are unique and hold at least 2 entries
// - Labels[i] is always one of Levels
// - two distinct raw labels never sanitize to the same level
type GroupFactor struct {
	Levels []string          // distinct sanitized levels, first-appearance order
	Labels []string          // sanitized label per sample, aligned with Profile.Samples
	Raw    map[string]string // sanitized level -> original raw label
}

// NewGroupFactor sanitizes per-sample raw labels into a group factor.
// Sanitization collisions are a hard usage error: silently collapsing two
// groups into one corrupts every downstream contrast.
func NewGroupFactor(rawLabels []string) (*GroupFactor, error) {
	if len(rawLabels) == 0 {
		return nil, core.NewValidationError("group", "no sample labels supplied")
	}

	gf := &GroupFactor{
		Raw: make(map[string]string),
	}
	seen := make(map[string]int)

	for _, raw := range rawLabels {
		level := SanitizeLabel(raw)
		if prior, ok := gf.Raw[level]; ok {
			if prior != raw {
				return nil, fmt.Errorf("%w: %q and %q both sanitize to %q",
					core.ErrLabelCollision, prior, raw, level)
			}
		} else {
			gf.Raw[level] = raw
			seen[level] = len(gf.Levels)
			gf.Levels = append(gf.Levels, level)
		}
		gf.Labels = append(gf.Labels, level)
	}

	if len(gf.Levels) < 2 {
		return nil, core.NewValidationError("group",
			fmt.Sprintf("need at least 2 distinct levels, got %d", len(gf.Levels)))
	}
	return gf, nil
}

// LevelCount returns the number of distinct levels.
func (g *GroupFactor) LevelCount() int {
	return len(g.Levels)
}

// HasLevel reports whether the sanitized level exists in the factor.
func (g *GroupFactor) HasLevel(level string) bool {
	for _, l := range g.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// LevelIndex returns the position of a sanitized level, or -1.
func (g *GroupFactor) LevelIndex(level string) int {
	for i, l := range g.Levels {
		if l == level {
			return i
		}
	}
	return -1
}

// SampleIndices returns the sample positions assigned to a level.
func (g *GroupFactor) SampleIndices(level string) []int {
	var idx []int
	for i, l := range g.Labels {
		if l == level {
			idx = append(idx, i)
		}
	}
	return idx
}

// Relevel reorders Levels so that the denominator sits first and the
// numerator second. Used for two-group contrasts, where the downstream
// coefficient sign convention is level2 minus level1.
func (g *GroupFactor) Relevel(denominator, numerator string) error {
	if !g.HasLevel(denominator) {
		return fmt.Errorf("%w: %q", core.ErrUnknownGroup, denominator)
	}
	if !g.HasLevel(numerator) {
		return fmt.Errorf("%w: %q", core.ErrUnknownGroup, numerator)
	}
	if denominator == numerator {
		return core.NewValidationError("contrast", "numerator and denominator are the same group")
	}

	ordered := []string{denominator, numerator}
	for _, l := range g.Levels {
		if l != denominator && l != numerator {
			ordered = append(ordered, l)
		}
	}
	g.Levels = ordered
	return nil
}
