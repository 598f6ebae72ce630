package marker

import (
	"sort"

	"gomarker/domain/contrast"
)

// EnrichForPair resolves the enriched group for a single comparison: a
// positive effect means the numerator side is elevated.
func EnrichForPair(effect float64, pair contrast.Pair) string {
	if effect >= 0 {
		return pair.Numerator
	}
	return pair.Denominator
}

// DeriveWinner resolves the enriched group for a multi-group all-pairs run
// from the sign pattern of one feature's contrast columns. For a column
// (A minus B): a positive value makes B the losing side, a negative value
// makes A the losing side, zero scores neither.
//
// The winner is the unique group that never loses a comparison. Pairwise sign
// comparisons are not transitive, so that group may not exist; the fallback is
// the group with the best net win count (wins minus losses), and a remaining
// tie picks the lexicographically first tied level with ambiguous set.
func DeriveWinner(values []float64, pairs []contrast.Pair) (winner string, ambiguous bool) {
	wins := make(map[string]int)
	losses := make(map[string]int)

	for i, p := range pairs {
		// Make sure every participant is scored even on all-zero columns.
		wins[p.Numerator] += 0
		wins[p.Denominator] += 0

		v := values[i]
		switch {
		case v > 0:
			wins[p.Numerator]++
			losses[p.Denominator]++
		case v < 0:
			wins[p.Denominator]++
			losses[p.Numerator]++
		}
	}

	groups := make([]string, 0, len(wins))
	for g := range wins {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var neverLosers []string
	for _, g := range groups {
		if losses[g] == 0 {
			neverLosers = append(neverLosers, g)
		}
	}
	if len(neverLosers) == 1 {
		return neverLosers[0], false
	}

	// Cyclic dominance or an all-zero tie: net-win tiebreak over the
	// never-loser candidates when any exist, otherwise over all groups.
	candidates := neverLosers
	if len(candidates) == 0 {
		candidates = groups
	}

	best := candidates[0]
	bestNet := wins[best] - losses[best]
	tied := false
	for _, g := range candidates[1:] {
		net := wins[g] - losses[g]
		if net > bestNet {
			best, bestNet, tied = g, net, false
		} else if net == bestNet {
			tied = true
		}
	}
	return best, tied
}
