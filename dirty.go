package trellis

import "maps"

// dirtyHistorySize is the number of past frame damage rects kept for
// buffer-age merging.
const dirtyHistorySize = 10

// DirtyRegionDebugType selects which dirty-region overlays are drawn after a
// frame is painted.
type DirtyRegionDebugType int

const (
	DirtyDebugDisabled DirtyRegionDebugType = iota
	DirtyDebugCurrentSub
	DirtyDebugCurrentWhole
	DirtyDebugMultiHistory
	DirtyDebugCurrentSubAndWhole
	DirtyDebugCurrentWholeAndMultiHistory
	DirtyDebugEGLDamage
)

// DebugRegionType is one overlay that a DirtyRegionDebugType may enable.
type DebugRegionType int

const (
	DebugRegionCurrentSub DebugRegionType = iota
	DebugRegionCurrentWhole
	DebugRegionMultiHistory
	DebugRegionEGLDamage
	debugRegionTypeCount
)

// DirtyRegionManager accumulates damage rectangles for one surface across a
// frame and keeps a short history so a buffer that is several frames old can
// be brought up to date.
type DirtyRegionManager struct {
	dirtyRegion RectI
	surfaceRect RectI

	history     [dirtyHistorySize]RectI
	historyHead int
	historySize int
	bufferAge   int

	debugType    DirtyRegionDebugType
	debugEnabled [debugRegionTypeCount]bool
	dirtyCanvas  map[NodeID]RectI
	dirtySurface map[NodeID]RectI
}

// NewDirtyRegionManager returns an empty manager.
func NewDirtyRegionManager() *DirtyRegionManager {
	return &DirtyRegionManager{
		historyHead:  -1,
		dirtyCanvas:  make(map[NodeID]RectI),
		dirtySurface: make(map[NodeID]RectI),
	}
}

// MergeDirtyRect joins r into the current damage. Empty rects are ignored.
func (m *DirtyRegionManager) MergeDirtyRect(r RectI) {
	if r.IsEmpty() {
		return
	}
	if m.dirtyRegion.IsEmpty() {
		m.dirtyRegion = r
		return
	}
	m.dirtyRegion = m.dirtyRegion.Join(r)
}

// IntersectDirtyRect narrows the current damage to r.
func (m *DirtyRegionManager) IntersectDirtyRect(r RectI) {
	m.dirtyRegion = m.dirtyRegion.Intersect(r)
}

// ClipDirtyRectWithinSurface clips the damage to the surface and to
// non-negative coordinates. An emptied region resets to the zero rect.
func (m *DirtyRegionManager) ClipDirtyRectWithinSurface() {
	left := max(m.dirtyRegion.Left, 0, m.surfaceRect.Left)
	top := max(m.dirtyRegion.Top, 0, m.surfaceRect.Top)
	width := min(m.dirtyRegion.Right(), m.surfaceRect.Right()) - left
	height := min(m.dirtyRegion.Bottom(), m.surfaceRect.Bottom()) - top
	if width <= 0 || height <= 0 {
		m.dirtyRegion = RectI{}
		return
	}
	m.dirtyRegion = RectI{left, top, width, height}
}

// DirtyRegion returns the current damage.
func (m *DirtyRegionManager) DirtyRegion() RectI { return m.dirtyRegion }

// SurfaceRect returns the surface bounds the damage is clipped against.
func (m *DirtyRegionManager) SurfaceRect() RectI { return m.surfaceRect }

// DirtyRegionFlipWithinSurface returns the damage with its origin moved to
// the bottom-left corner of the surface.
func (m *DirtyRegionManager) DirtyRegionFlipWithinSurface() RectI {
	return m.RectFlipWithinSurface(m.dirtyRegion)
}

// RectFlipWithinSurface converts r between top-left and bottom-left origin.
func (m *DirtyRegionManager) RectFlipWithinSurface(r RectI) RectI {
	r.Top = m.surfaceRect.Height - r.Top - r.Height
	return r
}

// LatestDirtyRegion returns the most recently pushed history entry, or the
// current damage when nothing has been pushed yet.
func (m *DirtyRegionManager) LatestDirtyRegion() RectI {
	if m.historyHead < 0 {
		return m.dirtyRegion
	}
	return m.history[m.historyHead]
}

// PixelAlignedRect expands r outward to multiples of alignedBits.
func PixelAlignedRect(r RectI, alignedBits int) RectI {
	if alignedBits <= 1 {
		return r
	}
	left := (r.Left / alignedBits) * alignedBits
	top := (r.Top / alignedBits) * alignedBits
	width := ((r.Right()+alignedBits-1)/alignedBits)*alignedBits - left
	height := ((r.Bottom()+alignedBits-1)/alignedBits)*alignedBits - top
	return RectI{left, top, width, height}
}

// Clear drops the current damage and the per-node debug rects, and
// refreshes the enabled debug overlays.
func (m *DirtyRegionManager) Clear() {
	m.dirtyRegion = RectI{}
	clear(m.dirtyCanvas)
	clear(m.dirtySurface)
	m.updateDebugRegionTypeEnable()
}

// IsDirty reports whether the current damage has area.
func (m *DirtyRegionManager) IsDirty() bool {
	return m.dirtyRegion.Width > 0 && m.dirtyRegion.Height > 0
}

// UpdateDirty records the current damage in the history and replaces it
// with the union needed to bring a buffer of the current age up to date.
func (m *DirtyRegionManager) UpdateDirty() {
	m.pushHistory(m.dirtyRegion)
	m.dirtyRegion = m.mergeHistory(m.bufferAge, m.dirtyRegion)
}

// UpdateDirtyByAligned aligns the current damage to alignedBits.
func (m *DirtyRegionManager) UpdateDirtyByAligned(alignedBits int) {
	m.dirtyRegion = PixelAlignedRect(m.dirtyRegion, alignedBits)
}

// UpdateDirtyCanvasNodes records r as the debug dirty rect of a canvas node.
func (m *DirtyRegionManager) UpdateDirtyCanvasNodes(id NodeID, r RectI) {
	m.dirtyCanvas[id] = r
}

// UpdateDirtySurfaceNodes records r as the debug dirty rect of a surface node.
func (m *DirtyRegionManager) UpdateDirtySurfaceNodes(id NodeID, r RectI) {
	m.dirtySurface[id] = r
}

// DirtyCanvasNodes returns a copy of the per-canvas debug rects.
func (m *DirtyRegionManager) DirtyCanvasNodes() map[NodeID]RectI {
	return maps.Clone(m.dirtyCanvas)
}

// DirtySurfaceNodes returns a copy of the per-surface debug rects.
func (m *DirtyRegionManager) DirtySurfaceNodes() map[NodeID]RectI {
	return maps.Clone(m.dirtySurface)
}

// SetBufferAge sets the age of the buffer about to be drawn. A negative
// age is invalid: it resets the age to 0 (full redraw) and returns false.
func (m *DirtyRegionManager) SetBufferAge(age int) bool {
	if age < 0 {
		m.bufferAge = 0
		return false
	}
	m.bufferAge = age
	return true
}

// SetSurfaceSize sets the surface bounds. Negative sizes are rejected.
func (m *DirtyRegionManager) SetSurfaceSize(width, height int) bool {
	if width < 0 || height < 0 {
		return false
	}
	m.surfaceRect = RectI{0, 0, width, height}
	return true
}

// ResetDirtyAsSurfaceSize marks the whole surface as damaged.
func (m *DirtyRegionManager) ResetDirtyAsSurfaceSize() {
	m.dirtyRegion = m.surfaceRect
}

// SetDebugType selects the overlays enabled on the next Clear.
func (m *DirtyRegionManager) SetDebugType(t DirtyRegionDebugType) {
	m.debugType = t
}

// IsDebugRegionTypeEnable reports whether overlay t is enabled.
func (m *DirtyRegionManager) IsDebugRegionTypeEnable(t DebugRegionType) bool {
	if t < 0 || t >= debugRegionTypeCount {
		return false
	}
	return m.debugEnabled[t]
}

// IsDebugEnabled reports whether any overlay is enabled.
func (m *DirtyRegionManager) IsDebugEnabled() bool {
	for _, on := range m.debugEnabled {
		if on {
			return true
		}
	}
	return false
}

func (m *DirtyRegionManager) updateDebugRegionTypeEnable() {
	m.debugEnabled = [debugRegionTypeCount]bool{}
	switch m.debugType {
	case DirtyDebugCurrentSub:
		m.debugEnabled[DebugRegionCurrentSub] = true
	case DirtyDebugCurrentWhole:
		m.debugEnabled[DebugRegionCurrentWhole] = true
	case DirtyDebugMultiHistory:
		m.debugEnabled[DebugRegionMultiHistory] = true
	case DirtyDebugCurrentSubAndWhole:
		m.debugEnabled[DebugRegionCurrentSub] = true
		m.debugEnabled[DebugRegionCurrentWhole] = true
	case DirtyDebugCurrentWholeAndMultiHistory:
		m.debugEnabled[DebugRegionCurrentWhole] = true
		m.debugEnabled[DebugRegionMultiHistory] = true
	case DirtyDebugEGLDamage:
		m.debugEnabled[DebugRegionEGLDamage] = true
	}
}

// mergeHistory joins r with the damage of the last age frames, the most
// recent push included. An age of 0 or one older than the kept history
// means the buffer content is unknown, so the whole surface is returned.
func (m *DirtyRegionManager) mergeHistory(age int, r RectI) RectI {
	if age == 0 || age > m.historySize {
		return m.surfaceRect
	}
	for i := range age {
		idx := (m.historyHead - i + dirtyHistorySize) % dirtyHistorySize
		sub := m.history[idx]
		if sub.IsEmpty() {
			continue
		}
		if r.IsEmpty() {
			r = sub
			continue
		}
		r = r.Join(sub)
	}
	return r
}

func (m *DirtyRegionManager) pushHistory(r RectI) {
	next := (m.historyHead + 1) % dirtyHistorySize
	m.history[next] = r
	if m.historySize < dirtyHistorySize {
		m.historySize++
	}
	m.historyHead = next
}
