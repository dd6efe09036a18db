package trellis

import "slices"

// drawPhases lists the draw-command phases in paint order.
var drawPhases = [...]ModifierType{
	ModifierBackgroundStyle,
	ModifierContentStyle,
	ModifierForegroundStyle,
	ModifierOverlayStyle,
}

// ShouldPaint reports whether the node is drawn this frame: it must be
// visible or transitioning out, and its alpha must be above zero.
func (n *Node) ShouldPaint() bool {
	if n.props == nil {
		return false
	}
	return (n.props.Visible || n.HasDisappearingTransition(false)) && n.props.Alpha > 0
}

// IsLastVisible reports the visibility recorded by the previous Update.
func (n *Node) IsLastVisible() bool { return n.isLastVisible }

// Update recomputes absolute geometry against parent and accumulates the
// node's damage into dm. It reports whether geometry was recomputed, which
// children use as their parentDirty.
func (n *Node) Update(dm *DirtyRegionManager, parent *Properties, parentDirty bool) bool {
	if n.props == nil {
		return false
	}
	if !n.ShouldPaint() && !n.isLastVisible {
		return false
	}
	var offX, offY float64
	if parent != nil && !n.IsInstanceOf(KindSurface) {
		offX, offY = parent.FrameOffset()
	}
	dirty := n.props.UpdateGeometry(parent, parentDirty, offX, offY)
	n.isDirtyRegionUpdated = false
	n.UpdateDirtyRegion(dm, dirty)
	n.isLastVisible = n.ShouldPaint()
	n.props.ResetDirty()
	return dirty
}

// UpdateDirtyRegion merges last frame's footprint and, unless the node just
// became invisible, its current footprint into dm.
func (n *Node) UpdateDirtyRegion(dm *DirtyRegionManager, geoDirty bool) {
	if !n.IsDirty() && !geoDirty {
		return
	}
	if !n.oldDirty.IsEmpty() {
		dm.MergeDirtyRect(n.oldDirty)
	}
	if !n.ShouldPaint() && n.isLastVisible {
		Logger().Debug("dirty region visible to invisible", "node", n.id)
	} else {
		dirty := n.props.DirtyRect()
		if n.props.IsShadowValid() {
			if shadow := n.props.ShadowDirtyRect(n.props.LocalBounds()); !shadow.IsEmpty() {
				dirty = dirty.Join(shadow)
			}
		}
		if !dirty.IsEmpty() {
			dm.MergeDirtyRect(dirty)
			n.isDirtyRegionUpdated = true
			n.oldDirty = dirty
			n.oldDirtyInSurface = dirty.Intersect(dm.SurfaceRect())
		}
	}
	n.SetClean()
}

// IsDirtyRegionUpdated reports whether the last Update merged a new rect.
func (n *Node) IsDirtyRegionUpdated() bool { return n.isDirtyRegionUpdated }

// OldDirty returns the footprint merged by the last Update.
func (n *Node) OldDirty() RectI { return n.oldDirty }

// OldDirtyInSurface returns OldDirty clipped to the surface.
func (n *Node) OldDirtyInSurface() RectI { return n.oldDirtyInSurface }

// UpdateRenderStatus decides whether painting can be skipped because the
// node's footprint misses the frame damage. With partial render disabled
// nothing is skipped.
func (n *Node) UpdateRenderStatus(damage RectI, partialRender bool) {
	dirty := n.props.DirtyRect()
	switch {
	case !partialRender:
		n.renderUpdateIgnored = false
	case damage.IsEmpty() || dirty.IsEmpty():
		n.renderUpdateIgnored = true
	default:
		n.renderUpdateIgnored = damage.Intersect(dirty).IsEmpty()
	}
}

// IsRenderUpdateIgnored reports the last UpdateRenderStatus decision.
func (n *Node) IsRenderUpdateIgnored() bool { return n.renderUpdateIgnored }

// ChildrenRect returns the accumulated footprint of the node's children.
func (n *Node) ChildrenRect() RectI { return n.childrenRect }

// UpdateChildrenRect joins sub into the children footprint.
func (n *Node) UpdateChildrenRect(sub RectI) {
	if sub.IsEmpty() {
		return
	}
	if n.childrenRect.IsEmpty() {
		n.childrenRect = sub
		return
	}
	n.childrenRect = n.childrenRect.Join(sub)
}

// ResetChildrenRect clears the children footprint.
func (n *Node) ResetChildrenRect() { n.childrenRect = RectI{} }

// UpdateParentChildrenRect pushes this node's footprint, or sub when
// customized, plus its own children footprint, into parent.
func (n *Node) UpdateParentChildrenRect(parent *Node, customized bool, sub RectI) {
	if parent == nil {
		return
	}
	r := n.childrenRect
	if customized {
		r = r.Join(sub)
	} else if n.props != nil {
		r = r.Join(n.props.DirtyRect())
	}
	parent.UpdateChildrenRect(r)
}

// --- Modifiers ---

// AddModifier attaches m. Bounds and frame are singletons: a later bounds
// or frame modifier is keyed to the first one, which keeps applying.
func (n *Node) AddModifier(m Modifier) {
	if m == nil || n.props == nil {
		return
	}
	switch t := m.Type(); {
	case t == ModifierBounds:
		if n.boundsModifier == nil {
			n.boundsModifier = m
		}
		n.modifiers.add(m.PropertyID(), n.boundsModifier)
	case t == ModifierFrame:
		if n.frameModifier == nil {
			n.frameModifier = m
		}
		n.modifiers.add(m.PropertyID(), n.frameModifier)
	case t < ModifierCustom:
		n.modifiers.add(m.PropertyID(), m)
	default:
		dm, ok := m.(*DrawCmdModifier)
		if !ok {
			return
		}
		n.drawCmdModifiers[t] = append(n.drawCmdModifiers[t], dm)
	}
	n.SetDirty()
}

// Modifier returns the modifier with the given id.
func (n *Node) Modifier(id PropertyID) (Modifier, bool) {
	if m, ok := n.modifiers.get(id); ok {
		return m, true
	}
	for _, list := range n.drawCmdModifiers {
		for _, m := range list {
			if m.ID == id {
				return m, true
			}
		}
	}
	return nil, false
}

// RemoveModifier detaches the modifier with the given id.
func (n *Node) RemoveModifier(id PropertyID) {
	if n.modifiers.remove(id) {
		n.SetDirty()
		return
	}
	for typ, list := range n.drawCmdModifiers {
		n.drawCmdModifiers[typ] = slices.DeleteFunc(list, func(m *DrawCmdModifier) bool {
			return m == nil || m.ID == id
		})
		if typ == ModifierOverlayStyle {
			n.UpdateOverlayBounds()
		}
	}
}

// FilterModifiersByOwner removes every modifier created by owner.
func (n *Node) FilterModifiersByOwner(owner uint32) {
	n.modifiers.deleteFunc(func(id PropertyID) bool { return id.Owner() == owner })
	for typ, list := range n.drawCmdModifiers {
		n.drawCmdModifiers[typ] = slices.DeleteFunc(list, func(m *DrawCmdModifier) bool {
			return m.ID.Owner() == owner
		})
	}
}

// ApplyModifiers rebuilds the properties from the attached property
// modifiers. It only runs when the node itself is dirty. A node without
// property modifiers keeps the values set on its Properties directly.
func (n *Node) ApplyModifiers() {
	if !n.dirty || n.props == nil {
		return
	}
	if n.modifiers.len() > 0 {
		prev := n.props.PropertyValues
		n.props.Reset()
		ctx := &ModifierContext{Props: n.props}
		for _, m := range n.modifiers.order {
			m.Apply(ctx)
		}
		n.props.commit(prev)
	}
	n.UpdateOverlayBounds()
}

// UpdateOverlayBounds recomputes the overlay area from every draw-command
// modifier: its explicit overlay bounds when set, otherwise the size of its
// recorded list.
func (n *Node) UpdateOverlayBounds() {
	if n.props == nil {
		return
	}
	var join RectI
	for _, typ := range drawPhases {
		for _, m := range n.drawCmdModifiers[typ] {
			switch {
			case m.OverlayBounds != nil:
				if !m.OverlayBounds.IsEmpty() {
					join = join.Join(*m.OverlayBounds)
				}
			case m.List != nil:
				join = join.Join(RectI{0, 0, m.List.Width, m.List.Height})
			}
		}
	}
	n.props.SetOverlayBounds(join)
}

// DrawCmdModifiers returns the draw-command modifiers of one phase.
func (n *Node) DrawCmdModifiers(typ ModifierType) []*DrawCmdModifier {
	return n.drawCmdModifiers[typ]
}

func (n *Node) drawPhase(c Canvas, typ ModifierType) {
	for _, m := range n.drawCmdModifiers[typ] {
		m.Draw(c)
	}
}

// --- Paint phases ---

// ProcessRenderBeforeChildren saves canvas state, moves into node space and
// paints everything that sits below the children.
func (n *Node) ProcessRenderBeforeChildren(c *PaintCanvas) {
	p := n.props
	n.renderSave = c.SaveCanvasAndAlpha()
	c.Concat(p.Matrix())

	bounds := p.LocalBounds()
	if p.Alpha < 1 {
		if len(n.children) == 0 || !p.AlphaOffscreen {
			c.MultiplyAlpha(p.Alpha)
		} else {
			c.SaveLayerAlpha(bounds, p.Alpha)
		}
	}
	if p.IsShadowValid() {
		c.DrawShadow(bounds, p.CornerRadius, p.Shadow)
	}
	if p.ClipToBounds {
		clipBounds(c, bounds, p.CornerRadius)
	}
	if !p.BackgroundColor.IsTransparent() {
		fillBounds(c, bounds, p.CornerRadius, p.BackgroundColor)
	}
	if p.BackgroundFilter.IsValid() {
		c.DrawFilter(bounds, p.BackgroundFilter)
	}
	n.drawPhase(c, ModifierBackgroundStyle)
	if !p.Mask.IsEmpty() {
		c.ClipRect(p.Mask)
	}
	n.drawPhase(c, ModifierContentStyle)
	if p.ClipToFrame && !p.Frame.IsEmpty() {
		fx, fy := p.FrameOffset()
		c.ClipRect(Rect{fx, fy, p.Frame.Width, p.Frame.Height})
	}
}

// ProcessRenderAfterChildren paints everything above the children and
// restores the canvas state saved before them.
func (n *Node) ProcessRenderAfterChildren(c *PaintCanvas) {
	p := n.props
	bounds := p.LocalBounds()
	n.drawPhase(c, ModifierForegroundStyle)
	if p.Filter.IsValid() {
		c.DrawFilter(bounds, p.Filter)
	}
	if p.BorderWidth > 0 && !p.BorderColor.IsTransparent() {
		c.StrokeRect(bounds, p.BorderWidth, p.BorderColor)
	}
	if !p.ForegroundColor.IsTransparent() {
		fillBounds(c, bounds, p.CornerRadius, p.ForegroundColor)
	}
	n.drawPhase(c, ModifierOverlayStyle)
	c.RestoreCanvasAndAlpha(n.renderSave)
}

func clipBounds(c Canvas, r Rect, radius float64) {
	if radius > 0 {
		c.ClipRoundRect(r, radius)
		return
	}
	c.ClipRect(r)
}

func fillBounds(c Canvas, r Rect, radius float64, col Color) {
	if radius > 0 {
		c.DrawRoundRect(r, radius, col)
		return
	}
	c.DrawRect(r, col)
}
