package grid

// Direction priority for BFS expansion: up, right, down, left. Ties between
// equal-cost paths always resolve the same way, so replanning is
// deterministic.
var stepDX = [4]int{0, 1, 0, -1}
var stepDY = [4]int{-1, 0, 1, 0}

type pathNode struct{ tx, ty int }

// FindPath runs a breadth-first search over 4-connected passable tiles from
// src to dst. The returned path excludes src and includes dst. maxNodes
// bounds the explored node count; when the budget is exhausted or dst is
// unreachable, ok is false.
func (g *Grid) FindPath(src, dst Pos, maxNodes int) ([]Pos, bool) {
	if src == dst {
		return nil, true
	}
	if g.IsBlocked(dst.TX, dst.TY) {
		return nil, false
	}
	if maxNodes <= 0 {
		maxNodes = g.Width * g.Height
	}

	prev := make(map[pathNode]pathNode, 256)
	start := pathNode{src.TX, src.TY}
	goal := pathNode{dst.TX, dst.TY}
	prev[start] = start

	queue := []pathNode{start}
	explored := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		explored++
		if explored > maxNodes {
			return nil, false
		}
		for i := 0; i < 4; i++ {
			next := pathNode{cur.tx + stepDX[i], cur.ty + stepDY[i]}
			if _, seen := prev[next]; seen {
				continue
			}
			if g.IsBlocked(next.tx, next.ty) {
				continue
			}
			prev[next] = cur
			if next == goal {
				return reconstruct(prev, start, goal), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func reconstruct(prev map[pathNode]pathNode, start, goal pathNode) []Pos {
	var rev []Pos
	for cur := goal; cur != start; cur = prev[cur] {
		rev = append(rev, Pos{TX: cur.tx, TY: cur.ty})
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}
