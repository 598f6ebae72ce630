package marker

import "math"

// FilterSignificant keeps records whose adjusted p-value is present and
// strictly below the cutoff, preserving appearance order. When nothing
// passes, the full input is returned unfiltered and fellBack reports the
// degradation; an empty table is never produced from a non-empty fit.
func FilterSignificant(records []Record, cutoff float64) (kept []Record, fellBack bool) {
	for _, r := range records {
		if !math.IsNaN(r.PAdjusted) && r.PAdjusted < cutoff {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 && len(records) > 0 {
		return append([]Record(nil), records...), true
	}
	return kept, false
}

// Assemble builds the final table from filtered rows: sequential marker IDs
// in surviving-row order.
func Assemble(records []Record) Table {
	t := Table{Records: append([]Record(nil), records...)}
	t.AssignIDs()
	return t
}
