// Package order produces a stable rendering order for blocks linked by
// parent edges.
//
// Blocks form a DAG: a block's parents must render before it. Kahn's
// topological sort drives the ordering, with (createdAt, id) tie-breaks at
// every decision point so identical input always yields identical output.
// Cycles degrade to creation-time order for the unvisited remainder rather
// than failing.
package order

import (
	"sort"
	"time"
)

// Block is one node of the ordering problem. ParentIDs referencing blocks
// outside the input set are ignored.
type Block struct {
	ID        string
	CreatedAt time.Time
	ParentIDs []string
}

// Sort returns the IDs of blocks in parent-before-child order.
func Sort(blocks []Block) []string {
	byID := make(map[string]Block, len(blocks))
	for _, b := range blocks {
		byID[b.ID] = b
	}

	// In-degree counts only parents present in the input set.
	inDegree := make(map[string]int, len(blocks))
	children := make(map[string][]string, len(blocks))
	for _, b := range blocks {
		if _, ok := inDegree[b.ID]; !ok {
			inDegree[b.ID] = 0
		}
		for _, p := range b.ParentIDs {
			if _, ok := byID[p]; !ok {
				continue
			}
			inDegree[b.ID]++
			children[p] = append(children[p], b.ID)
		}
	}

	ready := make([]string, 0, len(blocks))
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sortByAge(ready, byID)

	ordered := make([]string, 0, len(blocks))
	visited := make(map[string]bool, len(blocks))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, id)
		visited[id] = true

		released := false
		for _, child := range children[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				ready = append(ready, child)
				released = true
			}
		}
		if released {
			sortByAge(ready, byID)
		}
	}

	// A cycle leaves some blocks unvisited; append them in creation-time
	// order so the output stays deterministic.
	if len(ordered) < len(blocks) {
		var rest []string
		for _, b := range blocks {
			if !visited[b.ID] {
				rest = append(rest, b.ID)
			}
		}
		sortByAge(rest, byID)
		ordered = append(ordered, rest...)
	}

	return ordered
}

// sortByAge orders IDs by (createdAt, id) ascending.
func sortByAge(idList []string, byID map[string]Block) {
	sort.Slice(idList, func(i, j int) bool {
		a, b := byID[idList[i]], byID[idList[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
