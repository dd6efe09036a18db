package trellis

import (
	"math"
	"slices"
	"time"
)

// Frame is one buffer obtained from a RenderSurface.
type Frame interface {
	// Canvas returns the canvas drawing into the buffer, or nil.
	Canvas() Canvas
	// BufferAge is the number of frames since the buffer was last
	// presented. 0 means its content is undefined, a negative value that
	// the age is unknown.
	BufferAge() int
	// SetDamageRegion limits presentation to r, given with the origin at
	// the bottom left.
	SetDamageRegion(r RectI)
}

// RenderSurface produces the buffers a root paints into.
type RenderSurface interface {
	RequestFrame(width, height int, timestamp time.Time) (Frame, error)
	FlushFrame(f Frame, timestamp time.Time) error
	QueueSize() int
	ColorSpace() ColorGamut
	SetColorSpace(c ColorGamut)
}

// flusher is implemented by sinks that batch commands per frame.
type flusher interface {
	Flush(timestamp time.Time)
}

// Dirty region overlay colors.
var (
	debugMultiHistoryColor = HexColor(0xFF0AFF0A)
	debugCurrentWholeColor = HexColor(0xFFFFFF00)
	debugCanvasSubColor    = HexColor(0xFFFF0000)
	debugSurfaceSubColor   = HexColor(0xFFD899D8)
)

const (
	debugEdgeWidth = 6
	debugFillAlpha = 0.2
	debugEdgeAlpha = 0.4
	debugSubFactor = 2.0
)

// processContext is the state a Process pass carries down the tree. A
// surface swaps in a fresh context for its subtree and restores the saved
// one afterwards, so siblings never see each other's child surfaces.
type processContext struct {
	childSurfaceIDs []NodeID
	parentMatrix    Matrix
}

// RenderThreadVisitor paints root nodes into their RenderSurface and keeps
// the mirrored scene behind sink in step: each surface met on the way gets
// its placement sent, and changed child surface lists are republished.
type RenderThreadVisitor struct {
	registry *Registry
	sink     CommandSink

	partialRender PartialRenderType
	renderForced  bool
	setDamage     bool
	opDropped     bool
	alignBits     int
	debugType     DirtyRegionDebugType
	highContrast  bool
	overdraw      bool
	lastDrawOps   int
	lastOverdraw  float64

	dirty          *DirtyRegionManager
	canvas         *PaintCanvas
	dirtyFlag      bool
	isIdle         bool
	curDirtyRegion RectI
	ctx            processContext
	needUpdate     bool
	queueSize      int
	timestamp      time.Time
}

// NewRenderThreadVisitor creates a render-thread engine. Roots are
// resolved against registry; commands go to sink, which may be nil.
func NewRenderThreadVisitor(registry *Registry, sink CommandSink, cfg Config) *RenderThreadVisitor {
	v := &RenderThreadVisitor{
		registry:     registry,
		sink:         sink,
		alignBits:    cfg.DirtyAlignBits,
		debugType:    cfg.DirtyRegionDebug,
		highContrast: cfg.HighContrast,
		overdraw:     cfg.Overdraw,
		dirty:        NewDirtyRegionManager(),
		isIdle:       true,
	}
	v.SetPartialRenderStatus(cfg.PartialRender, cfg.RenderForced)
	return v
}

// SetPartialRenderStatus selects the partial render policy. Forced render
// disables both damage reporting and op dropping.
func (v *RenderThreadVisitor) SetPartialRenderStatus(status PartialRenderType, forced bool) {
	v.renderForced = forced
	v.setDamage = !forced && status != PartialRenderDisabled
	v.opDropped = !forced && status == PartialRenderSetDamageAndDropOp
	if v.partialRender != status {
		Logger().Debug("partial render status", "from", v.partialRender, "to", status,
			"forced", forced, "setDamage", v.setDamage, "opDropped", v.opDropped)
	}
	v.partialRender = status
}

// SetTimestamp sets the timestamp frames are requested and flushed with.
// A zero timestamp means time.Now at the start of each root.
func (v *RenderThreadVisitor) SetTimestamp(ts time.Time) { v.timestamp = ts }

// QueueSize returns the buffer queue size of the last processed surface.
func (v *RenderThreadVisitor) QueueSize() int { return v.queueSize }

// DirtyRegion returns the damage used by the last processed root.
func (v *RenderThreadVisitor) DirtyRegion() RectI { return v.curDirtyRegion }

// IsValidRootRenderNode reports whether n can be painted: its window
// surface node is registered, rendering is enabled and the suggested
// buffer size is positive.
func (v *RenderThreadVisitor) IsValidRootRenderNode(n *Node) bool {
	if n.root == nil {
		return false
	}
	if v.registry == nil || v.registry.SurfaceNode(n.root.surfaceNodeID) == nil {
		Logger().Debug("root has no surface node", "node", n.id, "surface", n.root.surfaceNodeID)
		return false
	}
	if !n.root.enableRender {
		Logger().Debug("root render disabled", "node", n.id)
		return false
	}
	if n.root.suggestedWidth <= 0 || n.root.suggestedHeight <= 0 {
		Logger().Debug("root buffer size not positive", "node", n.id,
			"width", n.root.suggestedWidth, "height", n.root.suggestedHeight)
		return false
	}
	return true
}

// --- Prepare ---

func (v *RenderThreadVisitor) PrepareBase(n *Node) {
	n.ResetSortedChildren()
	applyChildModifiers(n)
	for _, child := range n.SortedChildren() {
		child.Prepare(v)
	}
}

func (v *RenderThreadVisitor) PrepareRoot(n *Node) {
	if !v.isIdle {
		v.PrepareCanvas(n)
		return
	}
	v.dirty = n.root.dirtyManager
	v.dirty.SetDebugType(v.debugType)
	v.dirty.Clear()
	n.ApplyModifiers()
	if !v.IsValidRootRenderNode(n) {
		return
	}
	v.dirtyFlag = false
	v.isIdle = false
	v.PrepareCanvas(n)
	v.isIdle = true
}

func (v *RenderThreadVisitor) PrepareCanvas(n *Node) {
	n.ApplyModifiers()
	if !n.ShouldPaint() {
		return
	}
	saved := v.dirtyFlag
	v.dirtyFlag = n.Update(v.dirty, renderParentProps(n), v.dirtyFlag)
	if n.IsDirtyRegionUpdated() && v.dirty.IsDebugRegionTypeEnable(DebugRegionCurrentSub) {
		v.dirty.UpdateDirtyCanvasNodes(n.id, n.OldDirty())
	}
	v.PrepareBase(n)
	v.dirtyFlag = saved
}

func (v *RenderThreadVisitor) PrepareSurface(n *Node) {
	n.ApplyModifiers()
	saved := v.dirtyFlag
	if !n.IsNotifyRTBufferAvailablePre() && n.IsNotifyRTBufferAvailable() {
		Logger().Debug("buffer became available, marking dirty", "node", n.id)
		n.SetDirty()
	}
	v.dirtyFlag = n.Update(v.dirty, renderParentProps(n), v.dirtyFlag)
	if n.IsDirtyRegionUpdated() && v.dirty.IsDebugRegionTypeEnable(DebugRegionCurrentSub) {
		v.dirty.UpdateDirtySurfaceNodes(n.id, n.OldDirty())
	}
	v.PrepareBase(n)
	v.dirtyFlag = saved
}

func (v *RenderThreadVisitor) PrepareProxy(*Node)   {}
func (v *RenderThreadVisitor) PrepareDisplay(*Node) {}

// --- Process ---

func (v *RenderThreadVisitor) ProcessBase(n *Node) {
	for _, child := range n.SortedChildren() {
		child.Process(v)
	}
	n.ResetSortedChildren()
}

func (v *RenderThreadVisitor) ProcessDisplay(*Node) {}

func (v *RenderThreadVisitor) ProcessRoot(n *Node) {
	if !v.isIdle {
		v.ProcessCanvas(n)
		return
	}
	if !v.IsValidRootRenderNode(n) {
		return
	}
	surfaceNode := v.registry.SurfaceNode(n.root.surfaceNodeID)
	v.dirty = n.root.dirtyManager

	rs := n.root.renderSurface
	if rs == nil {
		Logger().Warn("root has no render surface", "node", n.id, "surface", surfaceNode.SurfaceName())
		framesAbortedTotal.WithLabelValues(abortNoSurface).Inc()
		return
	}
	v.queueSize = rs.QueueSize()
	if cs := surfaceNode.ColorSpace(); cs != rs.ColorSpace() {
		Logger().Debug("setting render surface color space", "node", n.id, "colorSpace", cs)
		rs.SetColorSpace(cs)
	}

	ts := v.timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	p := n.props
	bufW := n.root.suggestedWidth * p.ScaleX
	bufH := n.root.suggestedHeight * p.ScaleY
	frame, err := rs.RequestFrame(int(math.Round(bufW)), int(math.Round(bufH)), ts)
	if err != nil || frame == nil {
		Logger().Warn("request frame failed", "node", n.id, "surface", surfaceNode.SurfaceName(), "err", err)
		framesAbortedTotal.WithLabelValues(abortRequestFrame).Inc()
		return
	}
	backend := frame.Canvas()
	if backend == nil {
		Logger().Warn("frame has no canvas", "node", n.id)
		framesAbortedTotal.WithLabelValues(abortNoCanvas).Inc()
		return
	}
	v.canvas = NewPaintCanvas(backend)
	v.canvas.SetHighContrast(v.highContrast)
	v.canvas.SetOverdraw(v.overdraw)

	v.dirty.SetSurfaceSize(int(bufW), int(bufH))
	v.dirty.ClipDirtyRectWithinSurface()
	gravity := gravityResizeMatrix(p.Frame.Width*p.ScaleX, p.Frame.Height*p.ScaleY, bufW, bufH)
	if d := v.dirty.DirtyRegion(); v.renderForced || d.Width == 0 || d.Height == 0 || !gravity.IsIdentity() {
		v.dirty.ResetDirtyAsSurfaceSize()
	}
	v.updateDirtyAndSetDamageRegion(frame)

	v.canvas.ClipRect(Rect{Width: bufW, Height: bufH})
	v.canvas.Clear(ColorTransparent)
	v.isIdle = false

	v.ctx = processContext{parentMatrix: gravity}
	v.canvas.Concat(gravity)

	v.needUpdate = n.root.needUpdate
	v.ProcessCanvas(n)

	if v.needUpdate || !slices.Equal(n.root.childSurfaceIDs, v.ctx.childSurfaceIDs) {
		publishChildSurfaces(v.sink, n.root.surfaceNodeID, v.ctx.childSurfaceIDs)
		n.root.childSurfaceIDs = v.ctx.childSurfaceIDs
	}
	v.ctx = processContext{}
	v.needUpdate = false
	n.root.needUpdate = false

	if f, ok := v.sink.(flusher); ok {
		f.Flush(ts)
	}

	if v.dirty.IsDirty() && v.dirty.IsDebugEnabled() {
		v.drawDirtyRegion()
	}

	if err := rs.FlushFrame(frame, ts); err != nil {
		Logger().Warn("flush frame failed", "node", n.id, "err", err)
		framesAbortedTotal.WithLabelValues(abortFlushFrame).Inc()
	} else {
		framesFlushedTotal.Inc()
		damageAreaPixels.Observe(float64(v.curDirtyRegion.Width * v.curDirtyRegion.Height))
		v.recordFrameStats(RectI{Width: int(bufW), Height: int(bufH)})
	}
	v.canvas = nil
	v.isIdle = true
}

// recordFrameStats publishes the paint counters of the frame just flushed.
func (v *RenderThreadVisitor) recordFrameStats(buffer RectI) {
	v.lastDrawOps = v.canvas.DrawOps()
	frameDrawOps.Observe(float64(v.lastDrawOps))
	if !v.overdraw {
		return
	}
	v.lastOverdraw = v.canvas.OverdrawRatio(buffer)
	overdrawRatio.Set(v.lastOverdraw)
	Logger().Debug("frame overdraw", "ops", v.lastDrawOps, "ratio", v.lastOverdraw)
}

// LastDrawOps returns the paint operations of the last flushed frame.
func (v *RenderThreadVisitor) LastDrawOps() int { return v.lastDrawOps }

// LastOverdrawRatio returns the overdraw ratio of the last frame flushed
// with overdraw counting on.
func (v *RenderThreadVisitor) LastOverdrawRatio() float64 { return v.lastOverdraw }

// updateDirtyAndSetDamageRegion settles the frame damage. With damage
// reporting on, history is merged for the buffer age, the rect is pixel
// aligned and, for a known age, handed to the frame in flipped
// coordinates.
func (v *RenderThreadVisitor) updateDirtyAndSetDamageRegion(frame Frame) {
	if !v.setDamage {
		v.dirty.UpdateDirty()
		v.curDirtyRegion = v.dirty.DirtyRegion()
		return
	}
	age := frame.BufferAge()
	if !v.dirty.SetBufferAge(age) {
		Logger().Debug("invalid buffer age", "age", age)
		v.dirty.ResetDirtyAsSurfaceSize()
	}
	v.dirty.UpdateDirtyByAligned(v.alignBits)
	v.dirty.UpdateDirty()
	v.curDirtyRegion = v.dirty.DirtyRegion()
	if age >= 0 {
		flipped := v.dirty.RectFlipWithinSurface(v.curDirtyRegion)
		frame.SetDamageRegion(flipped)
		v.curDirtyRegion = v.dirty.RectFlipWithinSurface(flipped)
	}
	Logger().Debug("frame damage", "rect", v.curDirtyRegion.String(), "age", age)
}

func (v *RenderThreadVisitor) ProcessCanvas(n *Node) {
	if !n.ShouldPaint() {
		return
	}
	if v.canvas == nil {
		Logger().Debug("process canvas without canvas", "node", n.id)
		return
	}
	n.UpdateRenderStatus(v.curDirtyRegion, v.opDropped)
	if n.IsRenderUpdateIgnored() {
		opDroppedNodesTotal.Inc()
		return
	}
	n.ProcessRenderBeforeChildren(v.canvas)
	v.ProcessBase(n)
	n.ProcessRenderAfterChildren(v.canvas)
}

// contextMatrix returns the current matrix relative to the enclosing
// surface.
func (v *RenderThreadVisitor) contextMatrix() Matrix {
	m := v.canvas.TotalMatrix()
	inv, ok := v.ctx.parentMatrix.Invert()
	if !ok {
		Logger().Debug("parent surface matrix not invertible")
		return m
	}
	return m.Multiply(inv)
}

func (v *RenderThreadVisitor) ProcessSurface(n *Node) {
	if v.canvas == nil {
		Logger().Debug("process surface without canvas", "node", n.id)
		return
	}
	n.ParallelVisitLock()
	defer n.ParallelVisitUnlock()
	if !n.ShouldPaint() {
		Logger().Info("surface is invisible", "node", n.id)
		n.SetContextAlpha(0, v.sink)
		return
	}
	n.SetContextMatrix(v.contextMatrix(), v.sink)
	n.SetContextAlpha(v.canvas.Alpha(), v.sink)
	n.SetContextBounds(n.props.Bounds, v.sink)

	clip := localClipBounds(v.canvas)
	if clip.Width < floatEpsilon || clip.Height < floatEpsilon {
		return
	}
	n.SetContextClipRegion(clip, v.sink)
	v.clipHole(n)

	v.ctx.childSurfaceIDs = append(v.ctx.childSurfaceIDs, n.id)
	saved := v.ctx
	v.ctx = processContext{parentMatrix: v.canvas.TotalMatrix()}

	v.ProcessBase(n)

	if v.needUpdate || !slices.Equal(n.surface.childSurfaceIDs, v.ctx.childSurfaceIDs) {
		publishChildSurfaces(v.sink, n.id, v.ctx.childSurfaceIDs)
		n.surface.childSurfaceIDs = v.ctx.childSurfaceIDs
	}
	v.ctx = saved
}

// clipHole clears the surface's area, inset by one pixel, so the
// composited surface shows through. Until its buffer is available the area
// is filled with the background color instead.
func (v *RenderThreadVisitor) clipHole(n *Node) {
	b := n.props.Bounds
	hole := Rect{
		X:      math.Ceil(b.X + 1),
		Y:      math.Ceil(b.Y + 1),
		Width:  math.Floor(b.Width - 2),
		Height: math.Floor(b.Height - 2),
	}
	v.canvas.Save()
	v.canvas.ClipRect(hole)
	if n.IsNotifyRTBufferAvailable() {
		v.canvas.Clear(ColorTransparent)
	} else if bg := n.props.BackgroundColor; !bg.IsTransparent() {
		v.canvas.Clear(bg)
	}
	v.canvas.Restore()
}

// ProcessProxy relays the placement of the proxied surface. The proxy's
// subtree is not painted.
func (v *RenderThreadVisitor) ProcessProxy(n *Node) {
	if v.canvas == nil {
		Logger().Debug("process proxy without canvas", "node", n.id)
		return
	}
	n.SetProxyContext(v.contextMatrix(), v.canvas.Alpha(), v.sink)
	n.ResetSortedChildren()
}

// --- Dirty region overlay ---

func (v *RenderThreadVisitor) drawDebugRect(r RectI, c Color, fill bool, alpha float64) {
	if r.Width <= 0 || r.Height <= 0 {
		return
	}
	c = c.WithAlpha(alpha)
	if fill {
		v.canvas.DrawRect(r.Rect(), c)
		return
	}
	v.canvas.StrokeRect(r.Rect(), debugEdgeWidth, c)
}

func (v *RenderThreadVisitor) drawDirtyRegion() {
	dm := v.dirty
	if dm.IsDebugRegionTypeEnable(DebugRegionMultiHistory) {
		if r := dm.DirtyRegion(); !r.IsEmpty() {
			v.drawDebugRect(r, debugMultiHistoryColor, true, debugFillAlpha/debugSubFactor)
			v.drawDebugRect(r, debugMultiHistoryColor, false, debugEdgeAlpha)
		}
	}
	if dm.IsDebugRegionTypeEnable(DebugRegionCurrentWhole) {
		if r := dm.LatestDirtyRegion(); !r.IsEmpty() {
			v.drawDebugRect(r, debugCurrentWholeColor, true, debugFillAlpha)
			v.drawDebugRect(r, debugCurrentWholeColor, false, debugEdgeAlpha)
		}
	}
	if dm.IsDebugRegionTypeEnable(DebugRegionCurrentSub) {
		for _, r := range sortedRects(dm.DirtyCanvasNodes()) {
			v.drawDebugRect(r, debugCanvasSubColor, false, debugEdgeAlpha/debugSubFactor)
		}
		for _, r := range sortedRects(dm.DirtySurfaceNodes()) {
			v.drawDebugRect(r, debugSurfaceSubColor, false, debugEdgeAlpha)
		}
	}
}

func sortedRects(m map[NodeID]RectI) []RectI {
	ids := make([]NodeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]RectI, len(ids))
	for i, id := range ids {
		out[i] = m[id]
	}
	return out
}
