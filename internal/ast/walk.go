package ast

// Visitor is called once per node during a Walk, pre-order.
type Visitor func(id Id, n *Node)

// Walk visits id and every descendant, pre-order, via arena.
func (a *Arena) Walk(id Id, visit Visitor) {
	n := a.Get(id)
	visit(id, n)
	switch n.Kind {
	case KindUnaryOp:
		a.Walk(n.Left, visit)
	case KindBinaryOp:
		a.Walk(n.Left, visit)
		a.Walk(n.Right, visit)
	case KindCall:
		for _, arg := range n.Args {
			a.Walk(arg, visit)
		}
	case KindArrayLit:
		for _, row := range n.Rows {
			for _, cell := range row {
				a.Walk(cell, visit)
			}
		}
	case KindUnion:
		for _, p := range n.Parts {
			a.Walk(p, visit)
		}
	}
}

// Refs collects every KindRef/KindRange/KindName node id reachable from
// root, in encounter order. Used by the dependency planner (internal/graph)
// to classify direct-cell vs range vs name dependencies.
func (a *Arena) Refs(root Id) (refs []Id, ranges []Id, names []Id) {
	a.Walk(root, func(id Id, n *Node) {
		switch n.Kind {
		case KindRef:
			refs = append(refs, id)
		case KindRange:
			ranges = append(ranges, id)
		case KindName:
			names = append(names, id)
		}
	})
	return
}
