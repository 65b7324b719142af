package dag

import "sort"

// computeWaves groups tasks by earliest start. Waves are ordered by start
// time; within a wave critical tasks come first, then IDs ascending. Each
// timing's Wave field is set to its wave index.
func computeWaves(order []string, timings map[string]*TaskTiming) []Wave {
	groups := make(map[float64][]string)
	for _, id := range order {
		es := timings[id].EarliestStart
		groups[es] = append(groups[es], id)
	}

	starts := make([]float64, 0, len(groups))
	for es := range groups {
		starts = append(starts, es)
	}
	sort.Float64s(starts)

	waves := make([]Wave, len(starts))
	for i, es := range starts {
		ids := groups[es]
		sort.Slice(ids, func(a, b int) bool {
			ca, cb := timings[ids[a]].IsCritical, timings[ids[b]].IsCritical
			if ca != cb {
				return ca
			}
			return ids[a] < ids[b]
		})

		critical := false
		for _, id := range ids {
			timings[id].Wave = i
			if timings[id].IsCritical {
				critical = true
			}
		}
		waves[i] = Wave{
			Index:         i,
			EarliestStart: es,
			TaskIDs:       ids,
			IsCritical:    critical,
		}
	}
	return waves
}
