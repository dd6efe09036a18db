package trellis

// PartialRenderType selects how much of a frame is redrawn.
type PartialRenderType uint8

const (
	// PartialRenderDisabled redraws whole frames.
	PartialRenderDisabled PartialRenderType = iota
	// PartialRenderSetDamage redraws whole frames but reports the damage
	// region to the buffer producer.
	PartialRenderSetDamage
	// PartialRenderSetDamageAndDropOp also skips painting nodes outside
	// the damage.
	PartialRenderSetDamageAndDropOp
	// PartialRenderSetDamageAndDropOpOcclusion skips nodes outside the
	// visible region.
	PartialRenderSetDamageAndDropOpOcclusion
	// PartialRenderSetDamageAndDropOpNotVisibleDirty skips nodes that are
	// hidden or clean.
	PartialRenderSetDamageAndDropOpNotVisibleDirty
)

var partialRenderNames = [...]string{
	PartialRenderDisabled:                          "disabled",
	PartialRenderSetDamage:                         "set_damage",
	PartialRenderSetDamageAndDropOp:                "set_damage_and_drop_op",
	PartialRenderSetDamageAndDropOpOcclusion:       "set_damage_and_drop_op_occlusion",
	PartialRenderSetDamageAndDropOpNotVisibleDirty: "set_damage_and_drop_op_not_visible_dirty",
}

func (t PartialRenderType) String() string {
	if int(t) < len(partialRenderNames) {
		return partialRenderNames[t]
	}
	return "unknown"
}

// Visitor is a traversal engine. A frame is one Prepare pass over a tree
// followed by one Process pass; Node.Prepare and Node.Process dispatch to
// the method for the node's kind, and the engine recurses through the
// node's sorted children.
type Visitor interface {
	PrepareBase(n *Node)
	PrepareCanvas(n *Node)
	PrepareDisplay(n *Node)
	PrepareProxy(n *Node)
	PrepareRoot(n *Node)
	PrepareSurface(n *Node)

	ProcessBase(n *Node)
	ProcessCanvas(n *Node)
	ProcessDisplay(n *Node)
	ProcessProxy(n *Node)
	ProcessRoot(n *Node)
	ProcessSurface(n *Node)
}

// Prepare runs the bookkeeping pass of v on n.
func (n *Node) Prepare(v Visitor) {
	if v == nil {
		return
	}
	switch n.kind {
	case KindRoot:
		v.PrepareRoot(n)
	case KindCanvas:
		v.PrepareCanvas(n)
	case KindSurface:
		v.PrepareSurface(n)
	case KindProxy:
		v.PrepareProxy(n)
	case KindDisplay:
		v.PrepareDisplay(n)
	default:
		v.PrepareBase(n)
	}
}

// Process runs the paint pass of v on n.
func (n *Node) Process(v Visitor) {
	if v == nil {
		return
	}
	switch n.kind {
	case KindRoot:
		v.ProcessRoot(n)
	case KindCanvas:
		v.ProcessCanvas(n)
	case KindSurface:
		v.ProcessSurface(n)
	case KindProxy:
		v.ProcessProxy(n)
	case KindDisplay:
		v.ProcessDisplay(n)
	default:
		v.ProcessBase(n)
	}
}

// applyChildModifiers applies modifiers to every live render child of n,
// so children hold current geometry before their parent is read.
func applyChildModifiers(n *Node) {
	for _, child := range n.children {
		if child.disposed || !child.IsInstanceOf(KindRender) {
			continue
		}
		child.ApplyModifiers()
	}
}

// renderParentProps returns the properties of n's parent when it is a
// render node.
func renderParentProps(n *Node) *Properties {
	if p := n.Parent(); p != nil {
		return p.props
	}
	return nil
}

// publishChildSurfaces sends the commands that rebuild the child list of
// surface id on the receiving side.
func publishChildSurfaces(sink CommandSink, id NodeID, children []NodeID) {
	if sink == nil {
		return
	}
	sink.Send(ClearSurfaceChildrenCmd{ID: id}, id, FollowToSelf)
	for _, child := range children {
		sink.Send(AddSurfaceChildCmd{ID: id, Child: child, Index: -1}, id, FollowToSelf)
	}
}
