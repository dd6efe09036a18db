package trellis

// SortedChildren returns the paint-ordered children: live children plus
// disappearing children at their old index, stably sorted by PositionZ. The
// result is cached until membership changes or ResetSortedChildren is called.
// The returned slice MUST NOT be mutated by the caller.
func (n *Node) SortedChildren() []*Node {
	if len(n.sortedChildren) == 0 && (len(n.children) > 0 || len(n.disappearing) > 0) {
		n.GenerateSortedChildren()
	}
	return n.sortedChildren
}

// ResetSortedChildren drops the cached paint order.
func (n *Node) ResetSortedChildren() {
	n.sortedChildren = nil
}

// GenerateSortedChildren rebuilds the paint order.
func (n *Node) GenerateSortedChildren() {
	sorted := make([]*Node, 0, len(n.children)+len(n.disappearing))

	live := n.children[:0]
	for _, child := range n.children {
		if child.disposed {
			Logger().Info("removing expired child", "parent", n.id, "child", child.id)
			continue
		}
		live = append(live, child)
		sorted = append(sorted, child)
	}
	clear(n.children[len(live):])
	n.children = live

	if len(n.disappearing) > 0 {
		parentTransition := n.HasDisappearingTransition(true)
		kept := n.disappearing[:0]
		for _, dc := range n.disappearing {
			child := dc.node
			if !parentTransition && !child.HasDisappearingTransition(false) {
				Logger().Debug("removing finished transition child", "parent", n.id, "child", child.id)
				if child.parent == n {
					child.ResetParent()
				}
				continue
			}
			if dc.origPos < len(sorted) {
				sorted = append(sorted, nil)
				copy(sorted[dc.origPos+1:], sorted[dc.origPos:])
				sorted[dc.origPos] = child
			} else {
				sorted = append(sorted, child)
			}
			kept = append(kept, dc)
		}
		clear(n.disappearing[len(kept):])
		n.disappearing = kept
	}

	// Stable insertion sort by PositionZ. Non-render nodes compare equal to
	// everything and never move past a neighbor.
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && zGreater(sorted[j], key) {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}
	n.sortedChildren = sorted
}

func zGreater(a, b *Node) bool {
	if a.props == nil || b.props == nil {
		return false
	}
	return a.props.PositionZ > b.props.PositionZ
}
