package store

// BlockInfo is the result of a blocking query: whether the task is blocked,
// which transitive targets block it, which referenced ids are missing, and
// the id sequence of a cycle when one exists (first id repeated at the end).
type BlockInfo struct {
	Blocked     bool
	BlockingIDs []int
	MissingIDs  []int
	Cycle       []int
}

// Blocked walks the blocked-by relations depth-first from id. A task is
// blocked when any transitive target is in a blocking status, references a
// missing id, or participates in a cycle. Resolved targets neither block nor
// propagate their own blockers.
func (r *Repository) Blocked(id int) BlockInfo {
	info := BlockInfo{}
	if r.Get(id) == nil {
		return info
	}

	visited := make(map[int]bool)
	onStack := make(map[int]bool)
	var stack []int

	var walk func(cur int)
	walk = func(cur int) {
		onStack[cur] = true
		stack = append(stack, cur)
		defer func() {
			onStack[cur] = false
			stack = stack[:len(stack)-1]
			visited[cur] = true
		}()

		task := r.Get(cur)
		for _, target := range task.BlockedByIDs() {
			if onStack[target] {
				info.Blocked = true
				if info.Cycle == nil {
					info.Cycle = cycleSlice(stack, target)
				}
				continue
			}
			tt := r.Get(target)
			if tt == nil {
				info.Blocked = true
				info.MissingIDs = appendUnique(info.MissingIDs, target)
				info.BlockingIDs = appendUnique(info.BlockingIDs, target)
				continue
			}
			if tt.Status.Resolved() {
				continue
			}
			info.Blocked = true
			info.BlockingIDs = appendUnique(info.BlockingIDs, target)
			if !visited[target] {
				walk(target)
			}
		}
	}
	walk(id)
	return info
}

// cycleFrom detects a structural blocked-by cycle reachable from start,
// with start's outgoing edges overridden by startEdges (the tentative
// relations of a mutation not yet committed). Statuses are ignored: the
// relation graph itself must stay acyclic. Returns the cycle id sequence or
// nil.
func (r *Repository) cycleFrom(start int, startEdges []int) []int {
	edgesOf := func(id int) []int {
		if id == start {
			return startEdges
		}
		if t := r.Get(id); t != nil {
			return t.BlockedByIDs()
		}
		return nil
	}

	visited := make(map[int]bool)
	onStack := make(map[int]bool)
	var stack []int
	var found []int

	var walk func(cur int)
	walk = func(cur int) {
		if found != nil {
			return
		}
		onStack[cur] = true
		stack = append(stack, cur)
		defer func() {
			onStack[cur] = false
			stack = stack[:len(stack)-1]
			visited[cur] = true
		}()

		for _, target := range edgesOf(cur) {
			if found != nil {
				return
			}
			if onStack[target] {
				found = cycleSlice(stack, target)
				return
			}
			if !visited[target] {
				walk(target)
			}
		}
	}
	walk(start)
	return found
}

// cycleSlice builds the cycle id sequence from the DFS stack: the ids from
// the revisited node to the top, with the revisited id repeated at the end.
func cycleSlice(stack []int, target int) []int {
	for i, id := range stack {
		if id == target {
			cycle := append([]int{}, stack[i:]...)
			return append(cycle, target)
		}
	}
	return nil
}

func appendUnique(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
