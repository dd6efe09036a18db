package trellis

import "slices"

// NodeKind is a bit set describing what a node is. A node is an instance of
// kind T when its kind contains every bit of T, so Root is also a Canvas and
// every Canvas, Surface and Proxy is also a Render node.
type NodeKind uint16

const (
	KindBase    NodeKind = 0x00
	KindRender  NodeKind = 0x01
	KindDisplay NodeKind = 0x10
	KindSurface NodeKind = 0x21
	KindProxy   NodeKind = 0x41
	KindCanvas  NodeKind = 0x81
	KindRoot    NodeKind = 0x181
)

func (k NodeKind) String() string {
	switch k {
	case KindBase:
		return "BASE_NODE"
	case KindRender:
		return "RS_NODE"
	case KindDisplay:
		return "DISPLAY_NODE"
	case KindSurface:
		return "SURFACE_NODE"
	case KindProxy:
		return "PROXY_NODE"
	case KindCanvas:
		return "CANVAS_NODE"
	case KindRoot:
		return "ROOT_NODE"
	default:
		return "UNKNOWN_NODE"
	}
}

// disappearingChild is a removed child kept for the length of its exit
// transition, along with the index it was removed from.
type disappearingChild struct {
	node    *Node
	origPos int
}

// Node is one element of the render tree. A single flat struct is used for
// every kind; kind-specific state lives in the payload pointers, of which at
// most one is set.
//
// Parent and child links are plain pointers. A disposed node is treated as
// gone: Parent returns nil for a disposed parent and sorting prunes disposed
// children.
type Node struct {
	id   NodeID
	kind NodeKind

	parent         *Node
	children       []*Node
	disappearing   []disappearingChild
	sortedChildren []*Node

	onTree              bool
	dirty               bool
	hasRemovedChild     bool
	tunnelHandleChanged bool
	disposed            bool

	disappearingTransitionCount int

	// Render-kind state. props is nil for Base and Display nodes.
	props            *Properties
	modifiers        modifierMap
	drawCmdModifiers map[ModifierType][]*DrawCmdModifier
	boundsModifier   Modifier
	frameModifier    Modifier
	renderSave       SaveStatus

	childrenRect         RectI
	oldDirty             RectI
	oldDirtyInSurface    RectI
	isDirtyRegionUpdated bool
	isLastVisible        bool
	renderUpdateIgnored  bool

	animations                 []*Animation
	fallbackAnimationOnDestroy bool
	fallback                   *Node

	surface *surfaceState
	root    *rootState
	proxy   *proxyState
	display *displayState
}

// nodeDefaults sets the common default field values shared by all constructors.
func nodeDefaults(n *Node) {
	n.dirty = true
	n.fallbackAnimationOnDestroy = true
	if n.kind.IsInstanceOf(KindRender) {
		n.props = NewProperties()
		n.drawCmdModifiers = make(map[ModifierType][]*DrawCmdModifier)
	}
}

// NewBaseNode creates a plain grouping node with no paint state.
func NewBaseNode(id NodeID) *Node {
	n := &Node{id: id, kind: KindBase}
	nodeDefaults(n)
	return n
}

// NewRenderNode creates a render node with properties and modifiers but no
// kind-specific behavior.
func NewRenderNode(id NodeID) *Node {
	n := &Node{id: id, kind: KindRender}
	nodeDefaults(n)
	return n
}

// NewCanvasNode creates a canvas node, the common drawable node.
func NewCanvasNode(id NodeID) *Node {
	n := &Node{id: id, kind: KindCanvas}
	nodeDefaults(n)
	return n
}

// ID returns the node id.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the node kind.
func (n *Node) Kind() NodeKind { return n.kind }

// IsInstanceOf reports whether n can be treated as a node of kind t.
func (n *Node) IsInstanceOf(t NodeKind) bool {
	return n.kind.IsInstanceOf(t)
}

// IsInstanceOf reports whether k contains every bit of t.
func (k NodeKind) IsInstanceOf(t NodeKind) bool {
	return k&t == t
}

// Properties returns the node's properties, or nil for non-render kinds.
func (n *Node) Properties() *Properties { return n.props }

// Parent returns the parent node, or nil if there is none or it was disposed.
func (n *Node) Parent() *Node {
	if n.parent == nil || n.parent.disposed {
		return nil
	}
	return n.parent
}

// Children returns the live child list. The returned slice MUST NOT be
// mutated by the caller.
func (n *Node) Children() []*Node { return n.children }

// ChildrenCount returns the number of live children.
func (n *Node) ChildrenCount() int { return len(n.children) }

// DisappearingChildrenCount returns how many removed children are retained
// for exit transitions.
func (n *Node) DisappearingChildrenCount() int { return len(n.disappearing) }

// IsOnTheTree reports whether the ancestor chain reaches an on-tree root.
func (n *Node) IsOnTheTree() bool { return n.onTree }

// IsDisposed reports whether the node was disposed.
func (n *Node) IsDisposed() bool { return n.disposed }

// HasRemovedChild reports whether a child was detached since the flag was
// last reset.
func (n *Node) HasRemovedChild() bool { return n.hasRemovedChild }

// ResetHasRemovedChild clears the removed-child flag.
func (n *Node) ResetHasRemovedChild() { n.hasRemovedChild = false }

// SetTunnelHandleChange records whether the node's tunnel handle changed.
func (n *Node) SetTunnelHandleChange(changed bool) { n.tunnelHandleChanged = changed }

// TunnelHandleChange reports the tunnel handle flag.
func (n *Node) TunnelHandleChange() bool { return n.tunnelHandleChanged }

// --- Dirty state ---

// SetDirty marks the node dirty.
func (n *Node) SetDirty() { n.dirty = true }

// SetClean clears the node's own dirty flag.
func (n *Node) SetClean() { n.dirty = false }

// IsDirty reports whether the node or, for render kinds, its properties are
// dirty.
func (n *Node) IsDirty() bool {
	if n.dirty {
		return true
	}
	return n.props != nil && n.props.IsDirty()
}

// --- Tree manipulation ---

// AddChild adopts child at index, or appends when index is out of range.
// A child that already has a parent is removed from it first. Adding nil
// or a node with the same id is a no-op.
func (n *Node) AddChild(child *Node, index int) {
	if child == nil || child.id == n.id {
		return
	}
	if prev := child.Parent(); prev != nil {
		prev.RemoveChild(child, false)
	}
	n.adopt(child, index)
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// AddCrossParentChild adopts child without detaching it from its current
// parent. Used for nodes shown under several parents at once.
func (n *Node) AddCrossParentChild(child *Node, index int) {
	if child == nil {
		return
	}
	n.adopt(child, index)
}

func (n *Node) adopt(child *Node, index int) {
	child.parent = n
	if index < 0 || index >= len(n.children) {
		n.children = append(n.children, child)
	} else {
		n.children = slices.Insert(n.children, index, child)
	}
	n.removeDisappearing(child)
	if n.onTree {
		child.SetIsOnTheTree(true)
	}
	n.SetDirty()
}

// MoveChild moves child to index among its siblings, appending when index
// is out of range. No-op unless n is child's parent.
func (n *Node) MoveChild(child *Node, index int) {
	if child == nil || child.Parent() != n {
		return
	}
	old := slices.Index(n.children, child)
	if old < 0 {
		return
	}
	if index < 0 || index >= len(n.children) {
		n.children = append(n.children, child)
	} else {
		n.children = slices.Insert(n.children, index, child)
		if index <= old {
			old++
		}
	}
	n.children = slices.Delete(n.children, old, old+1)
	n.SetDirty()
}

// RemoveChild detaches child. When skipTransition is false and child, or
// any of its ancestors, has an exit transition running, the child is kept
// as a disappearing child at its old index until the transition ends.
func (n *Node) RemoveChild(child *Node, skipTransition bool) {
	if child == nil {
		return
	}
	i := slices.Index(n.children, child)
	if i < 0 {
		return
	}
	n.removeDisappearing(child)
	if !skipTransition && child.HasDisappearingTransition(true) {
		Logger().Debug("move child into disappearing children", "parent", n.id, "child", child.id)
		n.disappearing = append(n.disappearing, disappearingChild{child, i})
	} else {
		child.ResetParent()
	}
	n.children = slices.Delete(n.children, i, i+1)
	n.SetDirty()
}

// RemoveCrossParentChild detaches child from n and re-points its parent to
// newParent, unless an exit transition keeps it as a disappearing child.
func (n *Node) RemoveCrossParentChild(child, newParent *Node) {
	if child == nil {
		return
	}
	i := slices.Index(n.children, child)
	if i < 0 {
		return
	}
	n.removeDisappearing(child)
	if child.HasDisappearingTransition(true) {
		n.disappearing = append(n.disappearing, disappearingChild{child, i})
	} else {
		child.parent = newParent
		n.hasRemovedChild = true
	}
	n.children = slices.Delete(n.children, i, i+1)
	n.SetDirty()
}

// RemoveFromTree removes n from its parent. With skipTransition the
// removal is immediate even if an exit transition is already running.
func (n *Node) RemoveFromTree(skipTransition bool) {
	p := n.Parent()
	if p == nil {
		return
	}
	p.RemoveChild(n, skipTransition)
	if !skipTransition {
		return
	}
	p.removeDisappearing(n)
	p.ResetSortedChildren()
	n.ResetParent()
}

// ClearChildren removes every live child. Children with a running exit
// transition, or all of them when n itself is transitioning out, are kept
// as disappearing children.
func (n *Node) ClearChildren() {
	if len(n.children) == 0 {
		return
	}
	parentTransition := n.HasDisappearingTransition(true)
	for pos, child := range n.children {
		if child.disposed {
			continue
		}
		n.removeDisappearing(child)
		if parentTransition || child.HasDisappearingTransition(false) {
			n.disappearing = append(n.disappearing, disappearingChild{child, pos})
		} else {
			child.ResetParent()
		}
	}
	clear(n.children)
	n.children = n.children[:0]
	n.SetDirty()
}

// SetParent sets the parent link without touching either child list.
func (n *Node) SetParent(p *Node) { n.parent = p }

// ResetParent clears the parent link, flags the former parent as having
// removed a child and takes the subtree off the tree.
func (n *Node) ResetParent() {
	if p := n.Parent(); p != nil {
		p.hasRemovedChild = true
	}
	n.parent = nil
	n.SetIsOnTheTree(false)
	if n.surface != nil {
		n.resetSurfaceParent()
	}
}

// SetIsOnTheTree propagates the on-tree flag through the subtree. Taking a
// subtree off the tree also reaches its disappearing children.
func (n *Node) SetIsOnTheTree(flag bool) {
	if !flag && !n.onTree {
		return
	}
	n.onTree = flag
	for _, child := range n.children {
		if child.disposed {
			continue
		}
		child.SetIsOnTheTree(flag)
	}
	if flag {
		return
	}
	for _, dc := range n.disappearing {
		dc.node.SetIsOnTheTree(false)
	}
}

// RemoveSelfFromDisappearingChildren force-drops n from its parent's
// disappearing list, clearing the parent link when it was there.
func (n *Node) RemoveSelfFromDisappearingChildren() {
	p := n.Parent()
	if p == nil {
		return
	}
	if p.removeDisappearing(n) {
		n.ResetParent()
	}
}

// removeDisappearing drops child from the disappearing list and reports
// whether it was there.
func (n *Node) removeDisappearing(child *Node) bool {
	before := len(n.disappearing)
	n.disappearing = slices.DeleteFunc(n.disappearing, func(dc disappearingChild) bool {
		return dc.node == child
	})
	return len(n.disappearing) != before
}

// --- Exit transitions ---

// HasDisappearingTransition reports whether an exit transition is running
// on n or, when recursive, on any ancestor.
func (n *Node) HasDisappearingTransition(recursive bool) bool {
	if n.disappearingTransitionCount > 0 {
		return true
	}
	if !recursive {
		return false
	}
	if p := n.Parent(); p != nil {
		return p.HasDisappearingTransition(true)
	}
	return false
}

// AddDisappearingTransition registers one running exit transition.
func (n *Node) AddDisappearingTransition() {
	n.disappearingTransitionCount++
}

// RemoveDisappearingTransition unregisters one exit transition. When the
// last one finishes the parent re-sorts so the node can be dropped.
func (n *Node) RemoveDisappearingTransition() {
	if n.disappearingTransitionCount == 0 {
		return
	}
	n.disappearingTransitionCount--
	if n.disappearingTransitionCount > 0 {
		return
	}
	if p := n.Parent(); p != nil {
		p.ResetSortedChildren()
		p.SetDirty()
	}
}

// --- Disposal ---

// Dispose marks the node as gone. Running animations move to the fallback
// node unless that was suppressed. Children are not disposed; they observe
// an expired parent.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	if n.fallbackAnimationOnDestroy && n.fallback != nil && n.fallback != n {
		n.FallbackAnimationsTo(n.fallback)
	}
	n.disposed = true
	n.sortedChildren = nil
	if n.surface != nil {
		n.surface.clearCachedImage()
	}
}

// SetFallbackAnimationOnDestroy controls whether Dispose hands running
// animations to the fallback node.
func (n *Node) SetFallbackAnimationOnDestroy(on bool) {
	n.fallbackAnimationOnDestroy = on
}
