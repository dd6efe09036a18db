package trellis

import (
	"maps"
	"slices"
)

// Registry maps node ids to nodes for one scene. It always holds the
// fallback node under FallbackNodeID, which adopts the animations of
// disposed nodes.
//
// A Registry is not safe for concurrent use; mutate it from the thread
// that owns the scene or through a CommandSink.
type Registry struct {
	nodes    map[NodeID]*Node
	surfaces map[NodeID]*Node
	fallback *Node
}

// NewRegistry creates a registry holding only the fallback node.
func NewRegistry() *Registry {
	fallback := NewCanvasNode(FallbackNodeID)
	fallback.SetFallbackAnimationOnDestroy(false)
	r := &Registry{
		nodes:    map[NodeID]*Node{FallbackNodeID: fallback},
		surfaces: make(map[NodeID]*Node),
		fallback: fallback,
	}
	registeredNodes.Set(float64(len(r.nodes)))
	return r
}

// RegisterNode adds n. It returns false, leaving the existing mapping in
// place, when n is nil or its id is taken.
func (r *Registry) RegisterNode(n *Node) bool {
	if n == nil {
		return false
	}
	if _, ok := r.nodes[n.id]; ok {
		Logger().Debug("node id already registered", "node", n.id)
		return false
	}
	r.nodes[n.id] = n
	if n.IsInstanceOf(KindSurface) {
		r.surfaces[n.id] = n
	}
	n.fallback = r.fallback
	registeredNodes.Set(float64(len(r.nodes)))
	return true
}

// UnregisterNode removes the node with id. The fallback node cannot be
// removed.
func (r *Registry) UnregisterNode(id NodeID) {
	if id == FallbackNodeID {
		return
	}
	if _, ok := r.nodes[id]; !ok {
		return
	}
	delete(r.nodes, id)
	delete(r.surfaces, id)
	registeredNodes.Set(float64(len(r.nodes)))
}

// Len returns the number of registered nodes, the fallback node included.
func (r *Registry) Len() int { return len(r.nodes) }

// Node returns the node with id, or nil.
func (r *Registry) Node(id NodeID) *Node { return r.nodes[id] }

// lookup returns the node with id when it is of kind k.
func (r *Registry) lookup(id NodeID, k NodeKind) *Node {
	n := r.nodes[id]
	if n == nil || !n.IsInstanceOf(k) {
		return nil
	}
	return n
}

func (r *Registry) RenderNode(id NodeID) *Node  { return r.lookup(id, KindRender) }
func (r *Registry) CanvasNode(id NodeID) *Node  { return r.lookup(id, KindCanvas) }
func (r *Registry) SurfaceNode(id NodeID) *Node { return r.lookup(id, KindSurface) }
func (r *Registry) RootNode(id NodeID) *Node    { return r.lookup(id, KindRoot) }
func (r *Registry) ProxyNode(id NodeID) *Node   { return r.lookup(id, KindProxy) }
func (r *Registry) DisplayNode(id NodeID) *Node { return r.lookup(id, KindDisplay) }

// AnimationFallbackNode returns the node that adopts orphaned animations.
func (r *Registry) AnimationFallbackNode() *Node { return r.fallback }

// FilterNodesByOwner detaches, disposes and unregisters every node owned by
// owner. Their animations are dropped rather than moved to the fallback
// node, and modifiers of owner left on other nodes are removed.
func (r *Registry) FilterNodesByOwner(owner uint32) {
	removed := 0
	for _, id := range slices.Sorted(maps.Keys(r.nodes)) {
		n := r.nodes[id]
		if id == FallbackNodeID || id.Owner() != owner {
			continue
		}
		n.SetFallbackAnimationOnDestroy(false)
		n.RemoveFromTree(true)
		n.Dispose()
		delete(r.nodes, id)
		delete(r.surfaces, id)
		removed++
	}
	for _, n := range r.nodes {
		if n.props != nil {
			n.FilterModifiersByOwner(owner)
		}
	}
	r.fallback.animations = slices.DeleteFunc(r.fallback.animations, func(a *Animation) bool {
		return a.target != nil && a.target.ID.Owner() == owner
	})
	registeredNodes.Set(float64(len(r.nodes)))
	Logger().Info("filtered nodes by owner", "owner", owner, "removed", removed)
}

// TraverseSurfaceNodes calls fn for every surface node in id order.
func (r *Registry) TraverseSurfaceNodes(fn func(n *Node)) {
	for _, id := range slices.Sorted(maps.Keys(r.surfaces)) {
		fn(r.surfaces[id])
	}
}

// Animate steps the animations of every registered node in id order, the
// fallback node included, and reports whether any is still running.
func (r *Registry) Animate(dt float32) bool {
	running := false
	for _, id := range slices.Sorted(maps.Keys(r.nodes)) {
		if r.nodes[id].Animate(dt) {
			running = true
		}
	}
	return running
}

// TraverseRootNodes calls fn for every root node in id order.
func (r *Registry) TraverseRootNodes(fn func(n *Node)) {
	for _, id := range slices.Sorted(maps.Keys(r.nodes)) {
		if n := r.nodes[id]; n.kind == KindRoot {
			fn(n)
		}
	}
}
