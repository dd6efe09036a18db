package trellis

import "slices"

// PropertyID identifies a modifier. Like NodeID, the high 32 bits carry the
// owning process.
type PropertyID uint64

// Owner returns the owning-process id encoded in the high 32 bits.
func (id PropertyID) Owner() uint32 {
	return uint32(uint64(id) >> 32)
}

// ModifierType selects the property a modifier writes, or for draw-command
// modifiers the paint phase it belongs to.
type ModifierType int

const (
	ModifierBounds ModifierType = iota
	ModifierFrame
	ModifierPositionZ
	ModifierPivotX
	ModifierPivotY
	ModifierScaleX
	ModifierScaleY
	ModifierRotation
	ModifierTranslateX
	ModifierTranslateY
	ModifierAlpha
	ModifierAlphaOffscreen
	ModifierVisible
	ModifierClipToBounds
	ModifierClipToFrame
	ModifierCornerRadius
	ModifierBackgroundColor
	ModifierForegroundColor
	ModifierBorderColor
	ModifierBorderWidth
	ModifierShadowColor
	ModifierShadowOffsetX
	ModifierShadowOffsetY
	ModifierShadowRadius
	ModifierShadowAlpha
	ModifierFilter
	ModifierBackgroundFilter
	ModifierMask

	// ModifierCustom separates property modifiers from draw-command phases.
	ModifierCustom

	ModifierBackgroundStyle
	ModifierContentStyle
	ModifierForegroundStyle
	ModifierOverlayStyle
)

// IsDrawPhase reports whether t is a draw-command phase.
func (t ModifierType) IsDrawPhase() bool { return t > ModifierCustom }

// ModifierContext is handed to Modifier.Apply.
type ModifierContext struct {
	Props *Properties
}

// Modifier writes one property of a node. Property modifiers are re-applied
// onto freshly reset properties every time a dirty node is prepared.
type Modifier interface {
	PropertyID() PropertyID
	Type() ModifierType
	Apply(ctx *ModifierContext)
}

// FloatModifier sets a scalar property.
type FloatModifier struct {
	ID    PropertyID
	Typ   ModifierType
	Value float64
}

func (m *FloatModifier) PropertyID() PropertyID { return m.ID }
func (m *FloatModifier) Type() ModifierType     { return m.Typ }

func (m *FloatModifier) Apply(ctx *ModifierContext) {
	p := &ctx.Props.PropertyValues
	switch m.Typ {
	case ModifierPositionZ:
		p.PositionZ = m.Value
	case ModifierPivotX:
		p.PivotX = m.Value
	case ModifierPivotY:
		p.PivotY = m.Value
	case ModifierScaleX:
		p.ScaleX = m.Value
	case ModifierScaleY:
		p.ScaleY = m.Value
	case ModifierRotation:
		p.Rotation = m.Value
	case ModifierTranslateX:
		p.TranslateX = m.Value
	case ModifierTranslateY:
		p.TranslateY = m.Value
	case ModifierAlpha:
		p.Alpha *= m.Value
	case ModifierCornerRadius:
		p.CornerRadius = m.Value
	case ModifierBorderWidth:
		p.BorderWidth = m.Value
	case ModifierShadowOffsetX:
		p.Shadow.OffsetX = m.Value
	case ModifierShadowOffsetY:
		p.Shadow.OffsetY = m.Value
	case ModifierShadowRadius:
		p.Shadow.Radius = m.Value
	case ModifierShadowAlpha:
		p.Shadow.Alpha = m.Value
	}
}

// RectModifier sets bounds, frame or mask.
type RectModifier struct {
	ID    PropertyID
	Typ   ModifierType
	Value Rect
}

func (m *RectModifier) PropertyID() PropertyID { return m.ID }
func (m *RectModifier) Type() ModifierType     { return m.Typ }

func (m *RectModifier) Apply(ctx *ModifierContext) {
	switch m.Typ {
	case ModifierBounds:
		ctx.Props.Bounds = m.Value
	case ModifierFrame:
		ctx.Props.Frame = m.Value
	case ModifierMask:
		ctx.Props.Mask = m.Value
	}
}

// ColorModifier sets a color property.
type ColorModifier struct {
	ID    PropertyID
	Typ   ModifierType
	Value Color
}

func (m *ColorModifier) PropertyID() PropertyID { return m.ID }
func (m *ColorModifier) Type() ModifierType     { return m.Typ }

func (m *ColorModifier) Apply(ctx *ModifierContext) {
	switch m.Typ {
	case ModifierBackgroundColor:
		ctx.Props.BackgroundColor = m.Value
	case ModifierForegroundColor:
		ctx.Props.ForegroundColor = m.Value
	case ModifierBorderColor:
		ctx.Props.BorderColor = m.Value
	case ModifierShadowColor:
		ctx.Props.Shadow.Color = m.Value
	}
}

// BoolModifier sets a flag property.
type BoolModifier struct {
	ID    PropertyID
	Typ   ModifierType
	Value bool
}

func (m *BoolModifier) PropertyID() PropertyID { return m.ID }
func (m *BoolModifier) Type() ModifierType     { return m.Typ }

func (m *BoolModifier) Apply(ctx *ModifierContext) {
	switch m.Typ {
	case ModifierVisible:
		ctx.Props.Visible = m.Value
	case ModifierAlphaOffscreen:
		ctx.Props.AlphaOffscreen = m.Value
	case ModifierClipToBounds:
		ctx.Props.ClipToBounds = m.Value
	case ModifierClipToFrame:
		ctx.Props.ClipToFrame = m.Value
	}
}

// FilterModifier sets the content or background filter.
type FilterModifier struct {
	ID    PropertyID
	Typ   ModifierType
	Value Filter
}

func (m *FilterModifier) PropertyID() PropertyID { return m.ID }
func (m *FilterModifier) Type() ModifierType     { return m.Typ }

func (m *FilterModifier) Apply(ctx *ModifierContext) {
	switch m.Typ {
	case ModifierFilter:
		ctx.Props.Filter = m.Value
	case ModifierBackgroundFilter:
		ctx.Props.BackgroundFilter = m.Value
	}
}

// DrawCmdModifier carries recorded draw commands played back during one
// paint phase.
type DrawCmdModifier struct {
	ID  PropertyID
	Typ ModifierType
	// List is played back onto the paint canvas in node-local coordinates.
	List *DrawCmdList
	// OverlayBounds, when set, overrides the list's own bounds for overlay
	// phase accounting.
	OverlayBounds *RectI
}

func (m *DrawCmdModifier) PropertyID() PropertyID    { return m.ID }
func (m *DrawCmdModifier) Type() ModifierType        { return m.Typ }
func (m *DrawCmdModifier) Apply(ctx *ModifierContext) {}

// Draw plays the list back onto c.
func (m *DrawCmdModifier) Draw(c Canvas) {
	if m.List != nil {
		m.List.Playback(c)
	}
}

// modifierMap is an insertion-ordered PropertyID -> Modifier map.
type modifierMap struct {
	ids   []PropertyID
	order []Modifier
	index map[PropertyID]int
}

// add inserts m under id. An id that is already present keeps its
// modifier and add returns false.
func (mm *modifierMap) add(id PropertyID, m Modifier) bool {
	if mm.index == nil {
		mm.index = make(map[PropertyID]int)
	}
	if _, ok := mm.index[id]; ok {
		return false
	}
	mm.index[id] = len(mm.order)
	mm.ids = append(mm.ids, id)
	mm.order = append(mm.order, m)
	return true
}

func (mm *modifierMap) get(id PropertyID) (Modifier, bool) {
	i, ok := mm.index[id]
	if !ok {
		return nil, false
	}
	return mm.order[i], true
}

func (mm *modifierMap) remove(id PropertyID) bool {
	i, ok := mm.index[id]
	if !ok {
		return false
	}
	mm.ids = slices.Delete(mm.ids, i, i+1)
	mm.order = slices.Delete(mm.order, i, i+1)
	delete(mm.index, id)
	for j := i; j < len(mm.ids); j++ {
		mm.index[mm.ids[j]] = j
	}
	return true
}

// deleteFunc removes every entry for which del returns true.
func (mm *modifierMap) deleteFunc(del func(PropertyID) bool) {
	ids := mm.ids[:0]
	order := mm.order[:0]
	for i, id := range mm.ids {
		if del(id) {
			delete(mm.index, id)
			continue
		}
		ids = append(ids, id)
		order = append(order, mm.order[i])
	}
	clear(mm.order[len(order):])
	mm.ids, mm.order = ids, order
	for i, id := range mm.ids {
		mm.index[id] = i
	}
}

func (mm *modifierMap) len() int { return len(mm.order) }
