package trellis

import "math"

// FilterKind identifies an image filter descriptor. Filters are drawn by the
// Canvas backend; this package only carries them.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterBlur
	FilterGrayscale
	FilterBrightness
	FilterContrast
	FilterSaturation
)

// Filter describes an image filter applied to a node's content or to what
// is behind it.
type Filter struct {
	Kind   FilterKind
	Amount float64
}

// IsValid reports whether the filter does anything.
func (f Filter) IsValid() bool { return f.Kind != FilterNone }

// Shadow describes a drop shadow cast by a node.
type Shadow struct {
	Color            Color
	OffsetX, OffsetY float64
	Radius           float64
	Alpha            float64
}

// PropertyValues holds the modifiable paint and geometry state of a node.
// Every field is a plain value so two snapshots can be compared with ==.
type PropertyValues struct {
	Bounds    Rect
	Frame     Rect
	PositionZ float64

	PivotX, PivotY         float64
	ScaleX, ScaleY         float64
	SkewX, SkewY           float64
	Rotation               float64
	TranslateX, TranslateY float64

	Alpha          float64
	AlphaOffscreen bool
	Visible        bool

	ClipToBounds bool
	ClipToFrame  bool
	CornerRadius float64

	BackgroundColor Color
	ForegroundColor Color
	BorderColor     Color
	BorderWidth     float64

	Shadow           Shadow
	Filter           Filter
	BackgroundFilter Filter
	// Mask is a clip rectangle in node-local coordinates; empty means none.
	Mask Rect
}

func (v *PropertyValues) geometry() [17]float64 {
	return [17]float64{
		v.Bounds.X, v.Bounds.Y, v.Bounds.Width, v.Bounds.Height,
		v.Frame.X, v.Frame.Y, v.Frame.Width, v.Frame.Height,
		v.PivotX, v.PivotY, v.ScaleX, v.ScaleY, v.SkewX, v.SkewY,
		v.Rotation, v.TranslateX, v.TranslateY,
	}
}

func defaultPropertyValues() PropertyValues {
	return PropertyValues{
		PivotX: 0.5, PivotY: 0.5,
		ScaleX: 1, ScaleY: 1,
		Alpha:   1,
		Visible: true,
	}
}

// Properties is the per-node geometry and paint state plus the absolute
// geometry computed from it during Prepare.
type Properties struct {
	PropertyValues

	dirty    bool
	geoDirty bool

	matrix    Matrix
	absMatrix Matrix
	absRect   RectI
	overlay   RectI
}

// NewProperties returns properties at their defaults, marked dirty.
func NewProperties() *Properties {
	p := &Properties{}
	p.Reset()
	p.matrix = IdentityMatrix
	p.absMatrix = IdentityMatrix
	p.dirty = true
	p.geoDirty = true
	return p
}

// Reset restores every value to its default. Dirty flags are untouched.
func (p *Properties) Reset() {
	p.PropertyValues = defaultPropertyValues()
}

// SetBounds sets the node's bounds in parent coordinates.
func (p *Properties) SetBounds(r Rect) {
	if p.Bounds == r {
		return
	}
	p.Bounds = r
	p.geoDirty = true
	p.dirty = true
}

// SetFrame sets the node's content frame in parent coordinates. Children
// are laid out relative to it, so it counts as geometry.
func (p *Properties) SetFrame(r Rect) {
	if p.Frame == r {
		return
	}
	p.Frame = r
	p.geoDirty = true
	p.dirty = true
}

// SetAlpha sets the node's alpha.
func (p *Properties) SetAlpha(a float64) {
	if p.Alpha == a {
		return
	}
	p.Alpha = a
	p.dirty = true
}

// SetVisible sets the node's visibility.
func (p *Properties) SetVisible(v bool) {
	if p.Visible == v {
		return
	}
	p.Visible = v
	p.dirty = true
}

// SetPositionZ sets the node's sort key among its siblings.
func (p *Properties) SetPositionZ(z float64) {
	if p.PositionZ == z {
		return
	}
	p.PositionZ = z
	p.dirty = true
}

// SetTranslate sets the paint translation applied on top of the bounds.
func (p *Properties) SetTranslate(x, y float64) {
	if p.TranslateX == x && p.TranslateY == y {
		return
	}
	p.TranslateX, p.TranslateY = x, y
	p.geoDirty = true
	p.dirty = true
}

// SetBackgroundColor sets the fill drawn behind the node's content.
func (p *Properties) SetBackgroundColor(c Color) {
	if p.BackgroundColor == c {
		return
	}
	p.BackgroundColor = c
	p.dirty = true
}

// commit compares the values against a snapshot taken before modifiers were
// re-applied and raises the dirty flags for anything that changed.
func (p *Properties) commit(prev PropertyValues) {
	if p.PropertyValues == prev {
		return
	}
	p.dirty = true
	if p.geometry() != prev.geometry() {
		p.geoDirty = true
	}
}

// IsDirty reports whether any value changed since the last ResetDirty.
func (p *Properties) IsDirty() bool { return p.dirty }

// IsGeometryDirty reports whether a geometry value changed.
func (p *Properties) IsGeometryDirty() bool { return p.geoDirty }

// SetDirty forces the properties dirty.
func (p *Properties) SetDirty() { p.dirty = true }

// ResetDirty clears both dirty flags.
func (p *Properties) ResetDirty() {
	p.dirty = false
	p.geoDirty = false
}

// Matrix returns the transform from node space to parent space computed by
// the last UpdateGeometry, including the parent's frame offset.
func (p *Properties) Matrix() Matrix { return p.matrix }

// AbsMatrix returns the transform from node space to surface space computed
// by the last UpdateGeometry.
func (p *Properties) AbsMatrix() Matrix { return p.absMatrix }

// AbsRect returns the node's bounds in surface space.
func (p *Properties) AbsRect() RectI { return p.absRect }

// LocalBounds returns the bounds with its origin at the node.
func (p *Properties) LocalBounds() Rect {
	return Rect{0, 0, p.Bounds.Width, p.Bounds.Height}
}

// FrameOffset returns how far the frame's origin sits from the bounds
// origin. Children are laid out relative to the frame.
func (p *Properties) FrameOffset() (float64, float64) {
	if p.Frame.IsEmpty() {
		return 0, 0
	}
	return p.Frame.X - p.Bounds.X, p.Frame.Y - p.Bounds.Y
}

// UpdateGeometry recomputes the absolute matrix and rect relative to parent,
// shifted by (offsetX, offsetY). It reports whether anything was recomputed.
func (p *Properties) UpdateGeometry(parent *Properties, parentDirty bool, offsetX, offsetY float64) bool {
	if !p.geoDirty && !parentDirty {
		return false
	}
	p.matrix = TranslateMatrix(offsetX, offsetY).Multiply(localMatrix(p))
	m := p.matrix
	if parent != nil {
		m = parent.absMatrix.Multiply(m)
	}
	p.absMatrix = m
	p.absRect = m.MapRect(p.LocalBounds()).RoundOut()
	return true
}

// SetOverlayBounds records the node-local area drawn by overlay commands.
func (p *Properties) SetOverlayBounds(r RectI) { p.overlay = r }

// OverlayBounds returns the node-local overlay area.
func (p *Properties) OverlayBounds() RectI { return p.overlay }

// DirtyRect returns the surface-space area the node paints into: its bounds
// grown by the border, joined with the overlay area.
func (p *Properties) DirtyRect() RectI {
	r := p.absRect
	if p.BorderWidth > 0 && !r.IsEmpty() {
		w := int(math.Ceil(p.BorderWidth))
		r = RectI{r.Left - w, r.Top - w, r.Width + 2*w, r.Height + 2*w}
	}
	if !p.overlay.IsEmpty() {
		r = r.Join(p.absMatrix.MapRect(p.overlay.Rect()).RoundOut())
	}
	return r
}

// IsShadowValid reports whether the node casts a visible shadow.
func (p *Properties) IsShadowValid() bool {
	s := p.Shadow
	return s.Color.A > 0 && s.Alpha > 0 &&
		(s.Radius > 0 || s.OffsetX != 0 || s.OffsetY != 0)
}

// ShadowDirtyRect returns the surface-space area covered by the shadow of
// a node whose shape is clip in node-local coordinates. The blur radius
// spreads the shadow outward on every side.
func (p *Properties) ShadowDirtyRect(clip Rect) RectI {
	if !p.IsShadowValid() {
		return RectI{}
	}
	s := p.Shadow
	local := clip.Offset(s.OffsetX, s.OffsetY).Outset(s.Radius)
	return p.absMatrix.MapRect(local).RoundOut()
}
