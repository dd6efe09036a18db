package trellis

import (
	"time"
)

// Scene owns the node registry of one render context together with the
// render-thread engine that paints its roots and the transaction that
// collects the commands it emits for a mirroring scene.
type Scene struct {
	cfg      Config
	registry *Registry
	tx       *Transaction
	rt       *RenderThreadVisitor

	onFlush      func(batch []QueuedCommand, timestamp time.Time)
	focusedOwner uint32

	lastSurfaceCount int
	occlusionDirty   bool
}

// NewScene creates an empty scene. cfg is assumed to be validated; its
// debug switch becomes process wide.
func NewScene(cfg Config) *Scene {
	cfg.apply()
	s := &Scene{
		cfg:            cfg,
		registry:       NewRegistry(),
		occlusionDirty: true,
	}
	s.tx = NewTransaction(s.flush)
	s.rt = NewRenderThreadVisitor(s.registry, s.tx, cfg)
	return s
}

// Config returns the configuration the scene was created with.
func (s *Scene) Config() Config { return s.cfg }

// Registry returns the scene's node registry.
func (s *Scene) Registry() *Registry { return s.registry }

// Transaction returns the sink commands emitted while rendering are
// buffered in.
func (s *Scene) Transaction() *Transaction { return s.tx }

// RenderThread returns the scene's render-thread engine.
func (s *Scene) RenderThread() *RenderThreadVisitor { return s.rt }

// SetFlushHandler sets the function receiving the command batch flushed at
// the end of each painted root. A mirroring scene typically passes its
// Apply method.
func (s *Scene) SetFlushHandler(fn func(batch []QueuedCommand, timestamp time.Time)) {
	s.onFlush = fn
}

func (s *Scene) flush(batch []QueuedCommand, timestamp time.Time) {
	if s.onFlush != nil {
		s.onFlush(batch, timestamp)
	}
}

// Apply replays a command batch received from another scene.
func (s *Scene) Apply(batch []QueuedCommand, _ time.Time) {
	ApplyTo(s.registry, batch)
	s.occlusionDirty = true
}

// Register adds n to the registry.
func (s *Scene) Register(n *Node) bool {
	if !s.registry.RegisterNode(n) {
		return false
	}
	s.occlusionDirty = true
	return true
}

// SetFocusedOwner sets the owner whose windows are treated as focused by
// the container window opaque region policy.
func (s *Scene) SetFocusedOwner(owner uint32) {
	if s.focusedOwner != owner {
		s.focusedOwner = owner
		s.occlusionDirty = true
	}
}

// SetPartialRenderStatus changes the partial render policy of the
// render-thread engine.
func (s *Scene) SetPartialRenderStatus(status PartialRenderType, forced bool) {
	s.cfg.PartialRender, s.cfg.RenderForced = status, forced
	s.rt.SetPartialRenderStatus(status, forced)
}

// Update steps every animation by dt seconds and reports whether any is
// still running.
func (s *Scene) Update(dt float32) bool {
	return s.registry.Animate(dt)
}

// RenderRoot runs Prepare and then Process over the root with id. It
// reports false when no such root is registered.
func (s *Scene) RenderRoot(id NodeID, timestamp time.Time) bool {
	root := s.registry.RootNode(id)
	if root == nil {
		Logger().Debug("render root not found", "node", id)
		return false
	}
	s.renderRoot(root, timestamp)
	return true
}

// Render paints every registered root in id order.
func (s *Scene) Render(timestamp time.Time) {
	s.registry.TraverseRootNodes(func(n *Node) {
		s.renderRoot(n, timestamp)
	})
}

func (s *Scene) renderRoot(root *Node, timestamp time.Time) {
	s.rt.SetTimestamp(timestamp)

	start := time.Now()
	root.Prepare(s.rt)
	traversalDuration.WithLabelValues("prepare").Observe(time.Since(start).Seconds())

	start = time.Now()
	root.Process(s.rt)
	traversalDuration.WithLabelValues("process").Observe(time.Since(start).Seconds())
}

// --- Composition ---

// Compose prepares the surfaces below display for composition: geometry
// and damage are updated, each surface records its src and dst rects, total
// matrix and global alpha, and its opaque region is recomputed.
func (s *Scene) Compose(display *Node) {
	if display == nil || display.display == nil {
		return
	}
	start := time.Now()
	display.Prepare(&compositeVisitor{
		policy:       s.cfg.Container.Policy,
		focusedOwner: s.focusedOwner,
	})
	traversalDuration.WithLabelValues("compose").Observe(time.Since(start).Seconds())
}

// compositeVisitor is the Prepare pass of the compositor. It keeps a
// device-space canvas with no backing store so surfaces can read their
// placement from it. The Process half is empty.
type compositeVisitor struct {
	policy       ContainerWindowConfig
	focusedOwner uint32

	screen    RectI
	canvas    *PaintCanvas
	dirty     *DirtyRegionManager
	dirtyFlag bool
}

func (v *compositeVisitor) PrepareBase(n *Node) {
	n.ResetSortedChildren()
	applyChildModifiers(n)
	for _, child := range n.SortedChildren() {
		child.Prepare(v)
	}
}

func (v *compositeVisitor) PrepareDisplay(n *Node) {
	v.screen = n.ScreenRect()
	v.canvas = NewPaintCanvas(NewRecordingCanvas(v.screen.Width, v.screen.Height))
	offX, offY := n.DisplayOffset()
	v.canvas.Translate(float64(-offX), float64(-offY))
	v.dirty = NewDirtyRegionManager()
	v.dirty.SetSurfaceSize(v.screen.Width, v.screen.Height)
	v.dirtyFlag = false
	v.PrepareBase(n)
	v.canvas = nil
}

func (v *compositeVisitor) PrepareRoot(n *Node) { v.PrepareCanvas(n) }

func (v *compositeVisitor) PrepareCanvas(n *Node) {
	n.ApplyModifiers()
	if !n.ShouldPaint() || v.canvas == nil {
		return
	}
	saved := v.dirtyFlag
	v.dirtyFlag = n.Update(v.dirty, renderParentProps(n), v.dirtyFlag)

	status := v.canvas.SaveCanvasAndAlpha()
	v.canvas.Concat(n.props.Matrix())
	v.canvas.MultiplyAlpha(n.props.Alpha)
	v.PrepareBase(n)
	v.canvas.RestoreCanvasAndAlpha(status)

	v.dirtyFlag = saved
}

func (v *compositeVisitor) PrepareSurface(n *Node) {
	n.ApplyModifiers()
	if v.canvas == nil {
		return
	}
	savedFlag, savedDirty := v.dirtyFlag, v.dirty
	v.dirty = n.SurfaceDirtyManager()
	v.dirty.Clear()
	v.dirty.SetSurfaceSize(v.screen.Width, v.screen.Height)
	v.dirtyFlag = n.Update(v.dirty, renderParentProps(n), v.dirtyFlag)

	n.PrepareRenderBeforeChildren(v.canvas)
	n.ResetSurfaceOpaqueRegion(v.screen, n.DstRect(), v.policy, n.IsFocusedWindow(v.focusedOwner))
	v.PrepareBase(n)
	n.PrepareRenderAfterChildren(v.canvas)

	v.dirtyFlag, v.dirty = savedFlag, savedDirty
}

func (v *compositeVisitor) PrepareProxy(*Node) {}

func (v *compositeVisitor) ProcessBase(*Node)    {}
func (v *compositeVisitor) ProcessCanvas(*Node)  {}
func (v *compositeVisitor) ProcessDisplay(*Node) {}
func (v *compositeVisitor) ProcessProxy(*Node)   {}
func (v *compositeVisitor) ProcessRoot(*Node)    {}
func (v *compositeVisitor) ProcessSurface(*Node) {}

// --- Occlusion ---

// Occlusion is the outcome of one occlusion pass.
type Occlusion struct {
	// Visible lists the surfaces with a non-empty visible region, top
	// first.
	Visible []NodeID
	// OwnerVisible maps each owner of a surface with qos calculation
	// enabled to whether any of its surfaces is visible.
	OwnerVisible map[uint32]bool
}

// CalculateOcclusion assigns visible regions to the surfaces composited on
// display. Surfaces are walked from the top; each one sees its area minus
// the opaque area of the surfaces above it. The pass is skipped, returning
// false, when no surface moved, changed opacity or z order and the surface
// set is unchanged since the previous call.
func (s *Scene) CalculateOcclusion(display *Node) (Occlusion, bool) {
	if display == nil || display.display == nil {
		return Occlusion{}, false
	}
	uni := s.cfg.UniRender
	surfaces := display.CollectSurface(nil, uni)

	dirty := s.occlusionDirty || len(surfaces) != s.lastSurfaceCount
	s.lastSurfaceCount = len(surfaces)
	for i := len(surfaces) - 1; i >= 0; i-- {
		n := surfaces[i]
		if n.ZOrderChanged() || n.DstRectChanged() || n.IsOpaqueRegionChanged() ||
			n.AlphaChanged() || (uni && n.IsDirtyRegionUpdated()) {
			dirty = true
		}
		n.CleanDstRectChanged()
		n.CleanAlphaChanged()
		n.UpdatePositionZ()
	}
	if !dirty {
		return Occlusion{}, false
	}
	s.occlusionDirty = false

	result := Occlusion{OwnerVisible: make(map[uint32]bool)}
	var covered Region
	for i := len(surfaces) - 1; i >= 0; i-- {
		n := surfaces[i]
		if n.DstRect().IsEmpty() {
			continue
		}
		rect := n.DstRect()
		if uni && !n.OldDirtyInSurface().IsEmpty() {
			rect = n.OldDirtyInSurface()
		}
		area := RegionFromRect(rect)
		result.Visible = n.SetVisibleRegionRecursive(area.Sub(covered), result.Visible, result.OwnerVisible)

		// A window still starting inside its leash does not hide others.
		if p := n.Parent(); p != nil && p.SurfaceNodeType() == SurfaceLeashWindow && !n.IsNotifyUIBufferAvailable() {
			continue
		}
		if uni {
			covered = covered.Or(n.OpaqueRegion())
		} else if !n.IsTransparent() {
			covered = covered.Or(area)
		}
	}
	Logger().Debug("occlusion calculated", "surfaces", len(surfaces), "visible", len(result.Visible))
	return result, true
}
