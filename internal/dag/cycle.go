package dag

import "sort"

// WouldCreateCycle reports whether inserting predecessor → successor would
// close a cycle, i.e. whether predecessor is already reachable from
// successor. Direct back-edges and longer chains are the same check. The
// graph is never modified.
func WouldCreateCycle(g *Graph, predecessor, successor string) bool {
	if predecessor == successor {
		return true
	}
	return PathBetween(g, successor, predecessor) != nil
}

// PathBetween returns a path of task IDs src → … → dst following successor
// edges, or nil if dst is unreachable from src. The search is an iterative
// depth-first walk with a visited set, so it terminates in O(V+E) even on a
// graph that already contains a cycle.
func PathBetween(g *Graph, src, dst string) []string {
	if src == dst {
		return nil
	}
	if !g.HasTask(src) || !g.HasTask(dst) {
		return nil
	}
	parent := map[string]string{src: ""}
	stack := []string{src}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, eid := range g.succ[cur] {
			next := g.edges[eid].SuccessorID
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			if next == dst {
				return tracePath(parent, dst)
			}
			stack = append(stack, next)
		}
	}
	return nil
}

func tracePath(parent map[string]string, end string) []string {
	var path []string
	for cur := end; cur != ""; cur = parent[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// DetectCycle returns one cycle as a closed path (first ID repeated at the
// end), or nil if the graph is acyclic. It colours nodes white/gray/black and
// visits roots in ID order so the reported cycle is deterministic.
func DetectCycle(g *Graph) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.tasks))
	parent := make(map[string]string, len(g.tasks))

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		for _, eid := range g.succ[id] {
			next := g.edges[eid].SuccessorID
			switch color[next] {
			case gray:
				cycle := []string{next}
				for cur := id; cur != next; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, next)
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			case white:
				parent[next] = id
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		color[id] = black
		return nil
	}

	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
