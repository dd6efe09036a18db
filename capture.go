package trellis

import (
	"fmt"
	"image"
	"math"
)

// CaptureTask renders one surface or display node into a new image.
type CaptureTask struct {
	NodeID NodeID
	ScaleX float64
	ScaleY float64
	// UniRender selects capture of the merged scene, where canvas nodes are
	// painted too, rather than of surface buffers only.
	UniRender bool
}

// Run captures the node from r. A surface is captured at its bounds, a
// display at its rotated screen size, both multiplied by the task scale.
func (t CaptureTask) Run(r *Registry) (*image.RGBA, error) {
	img, err := t.run(r)
	if err != nil {
		capturesTotal.WithLabelValues("error").Inc()
		Logger().Warn("capture failed", "node", t.NodeID, "err", err)
		return nil, err
	}
	capturesTotal.WithLabelValues("ok").Inc()
	return img, nil
}

func (t CaptureTask) run(r *Registry) (*image.RGBA, error) {
	if t.ScaleX <= 0 || t.ScaleY <= 0 || nearlyEqual(t.ScaleX, 0) || nearlyEqual(t.ScaleY, 0) {
		return nil, fmt.Errorf("capture %d: %w (%g, %g)", t.NodeID, ErrInvalidScale, t.ScaleX, t.ScaleY)
	}
	n := r.Node(t.NodeID)
	if n == nil || n.disposed {
		return nil, fmt.Errorf("capture %d: %w", t.NodeID, ErrNodeNotFound)
	}

	v := &captureVisitor{scaleX: t.ScaleX, scaleY: t.ScaleY, uniRender: t.UniRender}
	var w, h float64
	switch {
	case n.surface != nil:
		if !t.UniRender && !n.HasBuffer() {
			return nil, fmt.Errorf("capture %d: surface has no buffer: %w", t.NodeID, ErrEmptyCapture)
		}
		w, h = n.props.Bounds.Width, n.props.Bounds.Height
	case n.display != nil:
		sr := n.ScreenRect()
		w, h = float64(sr.Width), float64(sr.Height)
		v.isDisplay = true
	default:
		return nil, fmt.Errorf("capture %d: %s: %w", t.NodeID, n.kind, ErrUnsupportedNode)
	}
	pw, ph := int(math.Ceil(w*t.ScaleX)), int(math.Ceil(h*t.ScaleY))
	if pw <= 0 || ph <= 0 {
		return nil, fmt.Errorf("capture %d: %dx%d: %w", t.NodeID, pw, ph, ErrEmptyCapture)
	}
	Logger().Debug("capture", "node", t.NodeID, "kind", n.kind, "width", pw, "height", ph,
		"scaleX", t.ScaleX, "scaleY", t.ScaleY)

	dst := image.NewRGBA(image.Rect(0, 0, pw, ph))
	v.canvas = NewPaintCanvas(NewImageCanvas(dst))
	v.canvas.Scale(t.ScaleX, t.ScaleY)
	v.captureMatrix = ScaleMatrix(t.ScaleX, t.ScaleY)

	n.Prepare(v)
	n.Process(v)
	return dst, nil
}

// captureVisitor paints a subtree into an offscreen canvas. Its Prepare
// pass only applies modifiers; geometry comes from the last frame.
type captureVisitor struct {
	scaleX, scaleY float64
	uniRender      bool
	isDisplay      bool

	canvas        *PaintCanvas
	captureMatrix Matrix
}

func (v *captureVisitor) PrepareBase(n *Node) {
	n.ResetSortedChildren()
	applyChildModifiers(n)
	for _, child := range n.SortedChildren() {
		child.Prepare(v)
	}
}

func (v *captureVisitor) PrepareCanvas(n *Node) {
	n.ApplyModifiers()
	v.PrepareBase(n)
}

func (v *captureVisitor) PrepareRoot(n *Node)    { v.PrepareCanvas(n) }
func (v *captureVisitor) PrepareSurface(n *Node) { v.PrepareCanvas(n) }
func (v *captureVisitor) PrepareDisplay(n *Node) { v.PrepareBase(n) }
func (v *captureVisitor) PrepareProxy(*Node)     {}

func (v *captureVisitor) ProcessBase(n *Node) {
	for _, child := range n.SortedChildren() {
		child.Process(v)
	}
	n.ResetSortedChildren()
}

func (v *captureVisitor) ProcessDisplay(n *Node) {
	Logger().Debug("capture display", "node", n.id, "children", n.ChildrenCount())
	v.ProcessBase(n)
}

func (v *captureVisitor) ProcessProxy(*Node) {}

func (v *captureVisitor) ProcessRoot(n *Node) {
	if !v.uniRender || !n.ShouldPaint() || v.canvas == nil {
		return
	}
	count := v.canvas.Save()
	v.ProcessCanvas(n)
	v.canvas.RestoreToCount(count)
}

func (v *captureVisitor) ProcessCanvas(n *Node) {
	if !v.uniRender || !n.ShouldPaint() || v.canvas == nil {
		return
	}
	n.ProcessRenderBeforeChildren(v.canvas)
	v.ProcessBase(n)
	n.ProcessRenderAfterChildren(v.canvas)
}

func (v *captureVisitor) ProcessSurface(n *Node) {
	if v.canvas == nil {
		return
	}
	if !n.ParallelVisitTryLock() {
		Logger().Debug("capture skips surface visited by another traversal", "node", n.id)
		return
	}
	defer n.ParallelVisitUnlock()
	if !n.ShouldPaint() {
		Logger().Debug("capture skips invisible surface", "node", n.id)
		return
	}
	if !v.uniRender {
		if v.isDisplay {
			v.surfaceInDisplay(n)
		} else {
			v.singleSurface(n)
		}
		return
	}
	status := v.canvas.SaveCanvasAndAlpha()
	v.canvas.MultiplyAlpha(n.props.Alpha * n.ContextAlpha())
	if v.isDisplay {
		v.surfaceInDisplayUni(n)
	} else {
		v.singleSurfaceUni(n)
	}
	v.canvas.RestoreCanvasAndAlpha(status)
}

// drawBuffer draws the last content of a surface's buffer in its local
// space.
func (v *captureVisitor) drawBuffer(n *Node) {
	if !n.HasBuffer() {
		return
	}
	if img := n.CachedImage(); img != nil {
		v.canvas.DrawImage(img, n.props.LocalBounds(), 1)
	}
}

// drawCachedWindow reports whether an app window is shown from its cached
// image, which happens while it is frozen or still starting.
func (v *captureVisitor) drawCachedWindow(n *Node) bool {
	if !n.IsAppWindow() || (!n.IsAppFreeze() && n.IsStartAnimationFinished()) {
		return false
	}
	img := n.CachedImage()
	if img == nil {
		return false
	}
	Logger().Debug("capture draws cached image", "node", n.id)
	v.canvas.DrawImage(img, n.props.LocalBounds(), 1)
	return true
}

func (v *captureVisitor) singleSurfaceUni(n *Node) {
	p := n.props
	v.canvas.Save()
	if n.IsAppWindow() {
		// Children are placed relative to the window's top left corner.
		v.captureMatrix = ScaleMatrix(v.scaleX, v.scaleY)
		if inv, ok := p.AbsMatrix().Invert(); ok {
			v.captureMatrix = v.captureMatrix.Multiply(inv)
		}
	} else {
		v.canvas.SetMatrix(v.captureMatrix)
		v.canvas.Concat(p.AbsMatrix())
	}

	selfDrawing := n.SurfaceNodeType() == SurfaceSelfDrawing
	bounds := p.LocalBounds()
	if selfDrawing && p.IsShadowValid() {
		v.canvas.DrawShadow(bounds, p.CornerRadius, p.Shadow)
	}
	v.canvas.Save()
	if selfDrawing {
		clipBounds(v.canvas, bounds, p.CornerRadius)
	} else {
		v.canvas.ClipRect(bounds)
	}
	if n.IsSecurityLayer() {
		Logger().Debug("capture clears security layer", "node", n.id)
		v.canvas.Clear(ColorWhite)
		v.canvas.Restore()
		v.canvas.Restore()
		return
	}
	if !p.BackgroundColor.IsTransparent() {
		v.canvas.DrawRect(bounds, p.BackgroundColor)
	}
	if selfDrawing {
		if !p.Mask.IsEmpty() {
			v.canvas.ClipRect(p.Mask)
		}
		if p.BackgroundFilter.IsValid() {
			v.canvas.DrawFilter(bounds, p.BackgroundFilter)
		}
	}
	v.canvas.Restore()
	if !n.IsAppWindow() {
		v.drawBuffer(n)
	}
	if selfDrawing && p.Filter.IsValid() {
		v.canvas.DrawFilter(bounds, p.Filter)
	}
	v.canvas.Restore()

	if !v.drawCachedWindow(n) {
		v.ProcessBase(n)
	}
}

func (v *captureVisitor) surfaceInDisplayUni(n *Node) {
	if n.IsSecurityLayer() {
		Logger().Debug("capture skips security layer", "node", n.id)
		return
	}
	p := n.props
	t := n.SurfaceNodeType()
	selfDrawing := t == SurfaceSelfDrawing || t == SurfaceAbilityComponent
	if !selfDrawing {
		v.canvas.Concat(n.ContextMatrix())
		if clip := n.ContextClipRegion(); !clip.IsEmpty() {
			v.canvas.ClipRect(clip)
		}
	}
	v.canvas.Save()
	v.canvas.Concat(p.Matrix())

	bounds := p.LocalBounds()
	v.canvas.Save()
	if p.IsShadowValid() {
		v.canvas.DrawShadow(bounds, p.CornerRadius, p.Shadow)
	}
	clipBounds(v.canvas, bounds, p.CornerRadius)
	if !p.BackgroundColor.IsTransparent() {
		v.canvas.DrawRect(bounds, p.BackgroundColor)
	}
	if !p.Mask.IsEmpty() {
		v.canvas.ClipRect(p.Mask)
	}
	if p.BackgroundFilter.IsValid() {
		v.canvas.DrawFilter(bounds, p.BackgroundFilter)
	}
	v.canvas.Restore()

	if !n.IsAppWindow() {
		v.drawBuffer(n)
	}
	v.ProcessBase(n)
	if p.Filter.IsValid() {
		v.canvas.DrawFilter(bounds, p.Filter)
	}
	v.canvas.Restore()
}

func (v *captureVisitor) singleSurface(n *Node) {
	offset := IdentityMatrix
	if p := n.Parent(); p != nil && p.surface != nil {
		pm, m := p.TotalMatrix(), n.TotalMatrix()
		offset = TranslateMatrix(m[4]-pm[4], m[5]-pm[5])
	}
	if n.IsSecurityLayer() {
		Logger().Debug("capture clears security layer", "node", n.id)
		v.canvas.Save()
		v.canvas.Concat(offset)
		v.canvas.Clear(ColorWhite)
		v.canvas.Restore()
		return
	}
	if n.ChildrenCount() > 0 {
		v.canvas.Concat(offset)
		count := v.canvas.Save()
		v.ProcessBase(n)
		v.canvas.RestoreToCount(count)
		v.drawBuffer(n)
		return
	}
	v.canvas.Save()
	v.canvas.Concat(offset)
	v.drawBuffer(n)
	v.canvas.Restore()
}

func (v *captureVisitor) surfaceInDisplay(n *Node) {
	if n.IsSecurityLayer() {
		Logger().Debug("capture skips security layer", "node", n.id)
		return
	}
	v.ProcessBase(n)
	if n.HasBuffer() {
		if img := n.CachedImage(); img != nil {
			v.canvas.DrawImage(img, n.DstRect().Rect(), n.GlobalAlpha())
		}
	}
}
