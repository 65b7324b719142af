package dag

import (
	"math"
	"sort"
)

// Track is a set of tasks connected through dependency edges (of any type)
// and sharing none with tasks in other tracks. Independent tracks can be
// staffed separately.
type Track struct {
	ID int `json:"id"`
	// TaskIDs lists the members in execution order.
	TaskIDs []string `json:"tasks"`
	// TotalDurationDays sums the members' durations.
	TotalDurationDays float64 `json:"total_duration_days"`
	// SpanDays runs from the earliest member start to the latest member finish.
	SpanDays float64 `json:"span_days"`
	// IsCritical is true when the track holds a critical task.
	IsCritical bool `json:"critical"`
}

// ComputeTracks partitions the analysed graph into independent tracks using
// union-find over its edges. Tracks are ordered by span descending, then
// size descending, then first task ID; IDs are assigned after sorting.
func ComputeTracks(g *Graph, a *Analysis) []Track {
	if len(a.Order) == 0 {
		return nil
	}

	uf := newUnionFind(a.Order)
	for _, e := range g.edges {
		uf.union(e.PredecessorID, e.SuccessorID)
	}

	// Members come out in analysis order because components preserves it.
	groups := uf.components(a.Order)
	tracks := make([]Track, 0, len(groups))
	for _, members := range groups {
		tr := Track{TaskIDs: members}
		start, finish := math.Inf(1), math.Inf(-1)
		for _, id := range members {
			tt := a.Timings[id]
			tr.TotalDurationDays += g.tasks[id].DurationDays
			start = math.Min(start, tt.EarliestStart)
			finish = math.Max(finish, tt.EarliestFinish)
			if tt.IsCritical {
				tr.IsCritical = true
			}
		}
		tr.SpanDays = finish - start
		tracks = append(tracks, tr)
	}

	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].SpanDays != tracks[j].SpanDays {
			return tracks[i].SpanDays > tracks[j].SpanDays
		}
		if len(tracks[i].TaskIDs) != len(tracks[j].TaskIDs) {
			return len(tracks[i].TaskIDs) > len(tracks[j].TaskIDs)
		}
		return tracks[i].TaskIDs[0] < tracks[j].TaskIDs[0]
	})
	for i := range tracks {
		tracks[i].ID = i
	}
	return tracks
}
