package closure

// condensation is the strongly connected component structure of a graph
// given as index adjacency lists.
type condensation struct {
	comp    []int   // node -> component id
	members [][]int // component id -> nodes
	cyclic  []bool  // component has more than one member or a self-loop
}

// tarjan finds strongly connected components without recursion so that
// long dependency chains cannot exhaust the goroutine stack. Components are
// numbered in the order Tarjan's algorithm completes them, which is a reverse
// topological order of the condensation: every component reachable from C
// has a smaller id than C.
func tarjan(adj [][]int) condensation {
	n := len(adj)
	var (
		index   = make([]int, n) // 0 means unvisited
		low     = make([]int, n)
		onStack = make([]bool, n)
		stack   []int
		counter int
		c       = condensation{comp: make([]int, n)}
	)

	type frame struct{ v, next int }
	var call []frame

	visit := func(v int) {
		counter++
		index[v], low[v] = counter, counter
		stack = append(stack, v)
		onStack[v] = true
		call = append(call, frame{v: v})
	}

	for root := range n {
		if index[root] != 0 {
			continue
		}
		visit(root)
		for len(call) > 0 {
			top := &call[len(call)-1]
			v := top.v
			if top.next < len(adj[v]) {
				w := adj[v][top.next]
				top.next++
				if index[w] == 0 {
					visit(w)
				} else if onStack[w] && index[w] < low[v] {
					low[v] = index[w]
				}
				continue
			}

			call = call[:len(call)-1]
			if len(call) > 0 {
				if p := call[len(call)-1].v; low[v] < low[p] {
					low[p] = low[v]
				}
			}
			if low[v] != index[v] {
				continue
			}

			id := len(c.members)
			var ms []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				c.comp[w] = id
				ms = append(ms, w)
				if w == v {
					break
				}
			}
			c.members = append(c.members, ms)
		}
	}

	c.cyclic = make([]bool, len(c.members))
	for id, ms := range c.members {
		if len(ms) > 1 {
			c.cyclic[id] = true
			continue
		}
		v := ms[0]
		for _, w := range adj[v] {
			if w == v {
				c.cyclic[id] = true
				break
			}
		}
	}
	return c
}
