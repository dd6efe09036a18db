package trellis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(nodes []*Node) []NodeID {
	out := make([]NodeID, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}

func TestNodeKindInstanceOf(t *testing.T) {
	tests := []struct {
		kind, of NodeKind
		want     bool
	}{
		{KindRoot, KindCanvas, true},
		{KindRoot, KindRender, true},
		{KindCanvas, KindRoot, false},
		{KindSurface, KindRender, true},
		{KindSurface, KindCanvas, false},
		{KindProxy, KindRender, true},
		{KindDisplay, KindRender, false},
		{KindDisplay, KindBase, true},
		{KindBase, KindRender, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.IsInstanceOf(tt.of), "%s instance of %s", tt.kind, tt.of)
	}
}

func TestNodeConstructors(t *testing.T) {
	assert.Nil(t, NewBaseNode(1).Properties())
	assert.Nil(t, NewDisplayNode(2, DisplayConfig{Width: 10, Height: 10}).Properties())

	c := NewCanvasNode(3)
	require.NotNil(t, c.Properties())
	assert.True(t, c.IsDirty())
	assert.True(t, c.ShouldPaint())
	assert.Equal(t, "CANVAS_NODE", c.Kind().String())

	rn := NewRenderNode(5)
	require.NotNil(t, rn.Properties())
	assert.Equal(t, KindRender, rn.Kind())

	s := NewSurfaceNode(4, SurfaceConfig{})
	assert.Equal(t, "SurfaceNode", s.SurfaceName())
	assert.Equal(t, SurfaceDefault, s.SurfaceNodeType())
}

func TestMakeNodeIDOwner(t *testing.T) {
	id := MakeNodeID(7, 42)
	assert.Equal(t, uint32(7), id.Owner())
	assert.Equal(t, uint32(42), uint32(id))
}

func TestAddChildIndex(t *testing.T) {
	p := NewCanvasNode(1)
	a, b, c := NewCanvasNode(2), NewCanvasNode(3), NewCanvasNode(4)
	p.AddChild(a, -1)
	p.AddChild(b, -1)
	p.AddChild(c, 0)
	assert.Equal(t, []NodeID{4, 2, 3}, ids(p.Children()))

	p.AddChild(NewCanvasNode(1), -1)
	p.AddChild(nil, -1)
	assert.Equal(t, 3, p.ChildrenCount())
	assert.Same(t, p, a.Parent())
}

func TestAddChildReparents(t *testing.T) {
	p1, p2 := NewCanvasNode(1), NewCanvasNode(2)
	child := NewCanvasNode(3)
	p1.AddChild(child, -1)
	p2.AddChild(child, -1)

	assert.Equal(t, 0, p1.ChildrenCount())
	assert.Equal(t, 1, p2.ChildrenCount())
	assert.Same(t, p2, child.Parent())
	assert.True(t, p1.HasRemovedChild())
	p1.ResetHasRemovedChild()
	assert.False(t, p1.HasRemovedChild())
}

func TestMoveChild(t *testing.T) {
	p := NewCanvasNode(1)
	a, b, c := NewCanvasNode(2), NewCanvasNode(3), NewCanvasNode(4)
	for _, n := range []*Node{a, b, c} {
		p.AddChild(n, -1)
	}
	p.MoveChild(c, 0)
	assert.Equal(t, []NodeID{4, 2, 3}, ids(p.Children()))
	p.MoveChild(c, -1)
	assert.Equal(t, []NodeID{2, 3, 4}, ids(p.Children()))

	other := NewCanvasNode(9)
	p.MoveChild(other, 0)
	assert.Equal(t, []NodeID{2, 3, 4}, ids(p.Children()))
}

func TestRemoveChildWithoutTransition(t *testing.T) {
	p, c := NewCanvasNode(1), NewCanvasNode(2)
	p.AddChild(c, -1)
	p.RemoveChild(c, false)

	assert.Equal(t, 0, p.ChildrenCount())
	assert.Equal(t, 0, p.DisappearingChildrenCount())
	assert.Nil(t, c.Parent())
	assert.True(t, p.HasRemovedChild())
}

func TestRemoveChildKeepsTransitioningChild(t *testing.T) {
	p, c := NewCanvasNode(1), NewCanvasNode(2)
	p.AddChild(c, -1)
	c.AddDisappearingTransition()
	p.RemoveChild(c, false)

	assert.Equal(t, 0, p.ChildrenCount())
	assert.Equal(t, 1, p.DisappearingChildrenCount())
	assert.Same(t, p, c.Parent())
	assert.Equal(t, []NodeID{2}, ids(p.SortedChildren()))

	c.RemoveDisappearingTransition()
	assert.Empty(t, p.SortedChildren())
	assert.Equal(t, 0, p.DisappearingChildrenCount())
	assert.Nil(t, c.Parent())
}

func TestRemoveChildSkipTransition(t *testing.T) {
	p, c := NewCanvasNode(1), NewCanvasNode(2)
	p.AddChild(c, -1)
	c.AddDisappearingTransition()
	p.RemoveChild(c, true)

	assert.Equal(t, 0, p.DisappearingChildrenCount())
	assert.Nil(t, c.Parent())
}

func TestRemoveFromTreeSkipTransitionDropsDisappearing(t *testing.T) {
	p, c := NewCanvasNode(1), NewCanvasNode(2)
	p.AddChild(c, -1)
	c.AddDisappearingTransition()
	c.RemoveFromTree(false)
	require.Equal(t, 1, p.DisappearingChildrenCount())

	c.RemoveFromTree(true)
	assert.Equal(t, 0, p.DisappearingChildrenCount())
	assert.Nil(t, c.Parent())
}

func TestAncestorTransitionIsRecursive(t *testing.T) {
	p, c := NewCanvasNode(1), NewCanvasNode(2)
	p.AddChild(c, -1)
	p.AddDisappearingTransition()

	assert.True(t, c.HasDisappearingTransition(true))
	assert.False(t, c.HasDisappearingTransition(false))
}

func TestSortedChildrenStableByPositionZ(t *testing.T) {
	p := NewCanvasNode(1)
	zs := []float64{1, 0, 1, 0}
	for i, z := range zs {
		c := NewCanvasNode(NodeID(10 + i))
		c.Properties().SetPositionZ(z)
		p.AddChild(c, -1)
	}
	assert.Equal(t, []NodeID{11, 13, 10, 12}, ids(p.SortedChildren()))
}

func TestSortedChildrenCachedUntilReset(t *testing.T) {
	p, a := NewCanvasNode(1), NewCanvasNode(2)
	p.AddChild(a, -1)
	require.Len(t, p.SortedChildren(), 1)

	p.AddChild(NewCanvasNode(3), -1)
	assert.Len(t, p.SortedChildren(), 1)
	p.ResetSortedChildren()
	assert.Len(t, p.SortedChildren(), 2)
}

func TestSortedChildrenDisappearingAtOldIndex(t *testing.T) {
	p := NewCanvasNode(1)
	a, b, c := NewCanvasNode(2), NewCanvasNode(3), NewCanvasNode(4)
	for _, n := range []*Node{a, b, c} {
		p.AddChild(n, -1)
	}
	b.AddDisappearingTransition()
	p.RemoveChild(b, false)

	assert.Equal(t, []NodeID{2, 4}, ids(p.Children()))
	assert.Equal(t, []NodeID{2, 3, 4}, ids(p.SortedChildren()))
}

func TestSortedChildrenPrunesDisposed(t *testing.T) {
	p, a, b := NewCanvasNode(1), NewCanvasNode(2), NewCanvasNode(3)
	p.AddChild(a, -1)
	p.AddChild(b, -1)
	b.Dispose()

	assert.Equal(t, []NodeID{2}, ids(p.SortedChildren()))
	assert.Equal(t, 1, p.ChildrenCount())
	assert.True(t, b.IsDisposed())
}

func TestDisposedParentIsExpired(t *testing.T) {
	p, c := NewCanvasNode(1), NewCanvasNode(2)
	p.AddChild(c, -1)
	p.Dispose()
	assert.Nil(t, c.Parent())
}

func TestClearChildrenKeepsTransitioning(t *testing.T) {
	p, a, b := NewCanvasNode(1), NewCanvasNode(2), NewCanvasNode(3)
	p.AddChild(a, -1)
	p.AddChild(b, -1)
	b.AddDisappearingTransition()
	p.ClearChildren()

	assert.Equal(t, 0, p.ChildrenCount())
	assert.Equal(t, 1, p.DisappearingChildrenCount())
	assert.Nil(t, a.Parent())
	assert.Same(t, p, b.Parent())
}

func TestClearChildrenDuringParentTransition(t *testing.T) {
	p, a, b := NewCanvasNode(1), NewCanvasNode(2), NewCanvasNode(3)
	p.AddChild(a, -1)
	p.AddChild(b, -1)
	p.AddDisappearingTransition()
	p.ClearChildren()

	assert.Equal(t, 2, p.DisappearingChildrenCount())
	assert.Equal(t, []NodeID{2, 3}, ids(p.SortedChildren()))
}

func TestOnTreePropagation(t *testing.T) {
	root, child, grand := NewRootNode(1), NewCanvasNode(2), NewCanvasNode(3)
	root.SetIsOnTheTree(true)
	root.AddChild(child, -1)
	child.AddChild(grand, -1)
	assert.True(t, child.IsOnTheTree())
	assert.True(t, grand.IsOnTheTree())

	root.RemoveChild(child, true)
	assert.False(t, child.IsOnTheTree())
	assert.False(t, grand.IsOnTheTree())
}

func TestCrossParentChild(t *testing.T) {
	p1, p2, c := NewCanvasNode(1), NewCanvasNode(2), NewCanvasNode(3)
	p1.AddChild(c, -1)
	p2.AddCrossParentChild(c, -1)

	assert.Equal(t, 1, p1.ChildrenCount())
	assert.Equal(t, 1, p2.ChildrenCount())
	assert.Same(t, p2, c.Parent())

	p2.RemoveCrossParentChild(c, p1)
	assert.Equal(t, 0, p2.ChildrenCount())
	assert.Same(t, p1, c.Parent())
	assert.True(t, p2.HasRemovedChild())
}

func TestGenerateSortedChildrenIsIdempotent(t *testing.T) {
	p := NewCanvasNode(1)
	a, b, c := NewCanvasNode(2), NewCanvasNode(3), NewCanvasNode(4)
	for _, n := range []*Node{a, b, c} {
		p.AddChild(n, -1)
	}
	b.AddDisappearingTransition()
	p.RemoveChild(b, false)

	p.GenerateSortedChildren()
	first := ids(p.SortedChildren())
	p.GenerateSortedChildren()
	assert.Equal(t, first, ids(p.SortedChildren()))
	assert.Equal(t, []NodeID{2, 3, 4}, first)
	assert.Equal(t, 1, p.DisappearingChildrenCount())
	assert.Same(t, p, b.Parent())
}
