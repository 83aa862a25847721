package graph

// ClosureOf returns root together with every package that transitively
// requires it, which is everything removed along with root. It walks
// edges breadth-first and terminates on cycles.
func ClosureOf(g *Graph, root string) Set {
	visited := Set{root: {}}
	queue := []string{root}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for dep := range g.edges[id] {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}

	return visited
}
