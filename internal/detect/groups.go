package detect

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MergeGroups merges findings whose members overlap into non-overlapping
// groups, one slice of sorted file names per connected component. Three or
// more images sharing content produce pairwise findings; review and
// reporting want them as a single group.
func MergeGroups(findings []Finding) [][]string {
	adjacency := make(map[string]map[string]struct{})
	link := func(a, b string) {
		if adjacency[a] == nil {
			adjacency[a] = make(map[string]struct{})
		}
		adjacency[a][b] = struct{}{}
	}
	for _, f := range findings {
		link(f.Subject, f.Match)
		link(f.Match, f.Subject)
	}

	nodes := maps.Keys(adjacency)
	slices.Sort(nodes)

	visited := make(map[string]struct{})
	var groups [][]string
	for _, start := range nodes {
		if _, ok := visited[start]; ok {
			continue
		}
		var component []string
		stack := []string{start}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := visited[node]; ok {
				continue
			}
			visited[node] = struct{}{}
			component = append(component, node)
			for neighbor := range adjacency[node] {
				if _, ok := visited[neighbor]; !ok {
					stack = append(stack, neighbor)
				}
			}
		}
		slices.Sort(component)
		groups = append(groups, component)
	}
	return groups
}
