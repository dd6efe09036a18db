package trellis

import (
	"strconv"
	"strings"
)

// globalDebug enables the tree sanity checks. It follows Config.Debug of
// the most recently created Scene.
var globalDebug bool

const debugMaxTreeDepth = 32

// debugCheckTreeDepth warns when n sits deeper than debugMaxTreeDepth.
func debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = p.Parent() {
		depth++
	}
	if depth > debugMaxTreeDepth {
		Logger().Warn("tree depth exceeds threshold", "node", n.id, "depth", depth, "threshold", debugMaxTreeDepth)
	}
}

const debugMaxChildCount = 1000

// debugCheckChildCount warns when n has more than debugMaxChildCount children.
func debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		Logger().Warn("child count exceeds threshold", "node", n.id, "children", len(n.children), "threshold", debugMaxChildCount)
	}
}

// DumpTree renders the subtree under n, one node per line, including
// disappearing children and their transition state.
func (n *Node) DumpTree() string {
	var b strings.Builder
	n.dumpTree(0, &b)
	return b.String()
}

func (n *Node) dumpTree(depth int, b *strings.Builder) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("| ")
	b.WriteString(n.kind.String())
	b.WriteString("[" + strconv.FormatUint(uint64(n.id), 10) + "]")
	b.WriteString(", isOnTheTree: " + boolDigit(n.onTree))
	if s := n.surface; s != nil {
		b.WriteString(", hasConsumer: " + boolDigit(s.hasBuffer))
		b.WriteString(", Name [" + s.name + "]")
		if p := n.Parent(); p != nil {
			b.WriteString(", parent [" + strconv.FormatUint(uint64(p.id), 10) + "]")
		} else {
			b.WriteString(", parent [null]")
		}
		b.WriteString(", " + s.visibleRegion.String())
		b.WriteString(", SurfaceBgAlpha[ " + strconv.Itoa(int(s.abilityBgAlpha)) + " ]")
	}
	b.WriteString(", children[")
	for _, c := range n.children {
		if c.disposed {
			b.WriteString(", null")
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(c.id), 10) + " ")
	}
	if len(n.disappearing) > 0 {
		b.WriteString("], disappearing children[")
		for i, dc := range n.disappearing {
			b.WriteString("(" + strconv.Itoa(i) + ": id:" + strconv.FormatUint(uint64(dc.node.id), 10) +
				", Transition:" + boolDigit(dc.node.HasDisappearingTransition(false)) + "),")
		}
	}
	b.WriteString("]\n")

	for _, c := range n.children {
		if !c.disposed {
			c.dumpTree(depth+1, b)
		}
	}
	for _, dc := range n.disappearing {
		dc.node.dumpTree(depth+1, b)
	}
}

func boolDigit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
