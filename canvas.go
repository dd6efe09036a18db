package trellis

import "image"

// Canvas is the drawing capability the paint phases draw through. Geometry
// is given in the current local space, which Concat and the clip calls
// modify. Colors arrive with any group alpha already applied.
type Canvas interface {
	Save() int
	Restore()
	RestoreToCount(count int)
	SaveCount() int

	Concat(m Matrix)
	SetMatrix(m Matrix)
	TotalMatrix() Matrix
	Translate(dx, dy float64)
	Scale(sx, sy float64)

	ClipRect(r Rect)
	ClipRoundRect(r Rect, radius float64)
	DeviceClipBounds() RectI

	Clear(c Color)
	DrawRect(r Rect, c Color)
	DrawRoundRect(r Rect, radius float64, c Color)
	StrokeRect(r Rect, width float64, c Color)
	DrawImage(img image.Image, dst Rect, alpha float64)
	DrawShadow(r Rect, radius float64, s Shadow)
	DrawFilter(r Rect, f Filter)
}

// LayerCanvas is implemented by canvases that can composite a group
// through an offscreen layer.
type LayerCanvas interface {
	SaveLayerAlpha(bounds Rect, alpha float64) int
}

type canvasState struct {
	matrix Matrix
	clip   Rect // device space
}

// stateStack is the matrix and clip bookkeeping shared by the canvas
// backends.
type stateStack struct {
	cur   canvasState
	saved []canvasState
}

func newStateStack(width, height int) stateStack {
	return stateStack{cur: canvasState{
		matrix: IdentityMatrix,
		clip:   Rect{0, 0, float64(width), float64(height)},
	}}
}

func (s *stateStack) Save() int {
	s.saved = append(s.saved, s.cur)
	return len(s.saved)
}

func (s *stateStack) Restore() {
	if len(s.saved) == 0 {
		return
	}
	s.cur = s.saved[len(s.saved)-1]
	s.saved = s.saved[:len(s.saved)-1]
}

func (s *stateStack) RestoreToCount(count int) {
	if count < 1 {
		count = 1
	}
	for len(s.saved) >= count {
		s.Restore()
	}
}

// SaveCount returns the depth of the save stack plus one for the base
// state, so a fresh canvas reports 1.
func (s *stateStack) SaveCount() int { return len(s.saved) + 1 }

func (s *stateStack) Concat(m Matrix)     { s.cur.matrix = s.cur.matrix.Multiply(m) }
func (s *stateStack) SetMatrix(m Matrix)  { s.cur.matrix = m }
func (s *stateStack) TotalMatrix() Matrix { return s.cur.matrix }

func (s *stateStack) Translate(dx, dy float64) { s.Concat(TranslateMatrix(dx, dy)) }
func (s *stateStack) Scale(sx, sy float64)     { s.Concat(ScaleMatrix(sx, sy)) }

func (s *stateStack) ClipRect(r Rect) {
	s.cur.clip = s.cur.clip.Intersect(s.cur.matrix.MapRect(r))
}

// ClipRoundRect clips to the bounds of the rounded rectangle.
func (s *stateStack) ClipRoundRect(r Rect, _ float64) { s.ClipRect(r) }

func (s *stateStack) DeviceClipBounds() RectI { return s.cur.clip.RoundOut() }

// clipDevice returns the device-space clip.
func (s *stateStack) clipDevice() Rect { return s.cur.clip }

// SaveStatus pairs a canvas save count with an alpha save count so both can
// be restored together.
type SaveStatus struct {
	Canvas int
	Alpha  int
}

// PaintCanvas wraps a backend Canvas with a group alpha stack. Every color
// drawn through it is multiplied by the current alpha. It can also count
// how many times each device pixel area is covered for overdraw display.
type PaintCanvas struct {
	Canvas

	alpha      float64
	alphaStack []float64

	highContrast bool
	overdraw     bool
	drawOps      int
	coveredArea  float64
}

// NewPaintCanvas wraps c.
func NewPaintCanvas(c Canvas) *PaintCanvas {
	return &PaintCanvas{Canvas: c, alpha: 1}
}

// Alpha returns the current group alpha.
func (c *PaintCanvas) Alpha() float64 { return c.alpha }

// SetAlpha replaces the current group alpha.
func (c *PaintCanvas) SetAlpha(a float64) { c.alpha = a }

// MultiplyAlpha scales the current group alpha.
func (c *PaintCanvas) MultiplyAlpha(a float64) { c.alpha *= a }

// SaveAlpha pushes the current alpha and returns the new depth.
func (c *PaintCanvas) SaveAlpha() int {
	c.alphaStack = append(c.alphaStack, c.alpha)
	return len(c.alphaStack)
}

// RestoreAlpha pops one alpha level.
func (c *PaintCanvas) RestoreAlpha() {
	if len(c.alphaStack) == 0 {
		return
	}
	c.alpha = c.alphaStack[len(c.alphaStack)-1]
	c.alphaStack = c.alphaStack[:len(c.alphaStack)-1]
}

// RestoreAlphaToCount pops alpha levels until the depth is below count.
func (c *PaintCanvas) RestoreAlphaToCount(count int) {
	for len(c.alphaStack) >= count && len(c.alphaStack) > 0 {
		c.RestoreAlpha()
	}
}

// SaveCanvasAndAlpha saves both stacks.
func (c *PaintCanvas) SaveCanvasAndAlpha() SaveStatus {
	return SaveStatus{Canvas: c.Save(), Alpha: c.SaveAlpha()}
}

// RestoreCanvasAndAlpha restores both stacks to a SaveCanvasAndAlpha point.
func (c *PaintCanvas) RestoreCanvasAndAlpha(s SaveStatus) {
	c.RestoreToCount(s.Canvas)
	c.RestoreAlphaToCount(s.Alpha)
}

// SaveLayerAlpha composites what follows at alpha through a layer when the
// backend supports it. Otherwise the alpha is applied per draw.
func (c *PaintCanvas) SaveLayerAlpha(bounds Rect, alpha float64) int {
	alpha = min(max(alpha, 0), 1)
	if lc, ok := c.Canvas.(LayerCanvas); ok {
		count := lc.SaveLayerAlpha(bounds, alpha*c.alpha)
		c.alpha = 1
		return count
	}
	count := c.Save()
	c.MultiplyAlpha(alpha)
	return count
}

// SetHighContrast toggles high contrast drawing.
func (c *PaintCanvas) SetHighContrast(on bool) { c.highContrast = on }

// HighContrast reports whether high contrast drawing is on.
func (c *PaintCanvas) HighContrast() bool { return c.highContrast }

// SetOverdraw enables overdraw counting.
func (c *PaintCanvas) SetOverdraw(on bool) { c.overdraw = on }

// DrawOps returns the number of paint operations issued.
func (c *PaintCanvas) DrawOps() int { return c.drawOps }

// OverdrawRatio returns the painted device area divided by the area of
// surface. Only counted with overdraw enabled.
func (c *PaintCanvas) OverdrawRatio(surface RectI) float64 {
	area := float64(surface.Width * surface.Height)
	if area <= 0 {
		return 0
	}
	return c.coveredArea / area
}

func (c *PaintCanvas) paint(r Rect) {
	c.drawOps++
	if !c.overdraw {
		return
	}
	dev := c.TotalMatrix().MapRect(r).Intersect(c.DeviceClipBounds().Rect())
	c.coveredArea += dev.Width * dev.Height
}

func (c *PaintCanvas) color(col Color) Color {
	if c.highContrast {
		col = highContrastColor(col)
	}
	return col.WithAlpha(c.alpha)
}

// highContrastColor snaps a color to black or white by luminance.
func highContrastColor(col Color) Color {
	lum := 0.2126*col.R + 0.7152*col.G + 0.0722*col.B
	if lum > 0.5 {
		return Color{1, 1, 1, col.A}
	}
	return Color{0, 0, 0, col.A}
}

func (c *PaintCanvas) DrawRect(r Rect, col Color) {
	c.paint(r)
	c.Canvas.DrawRect(r, c.color(col))
}

func (c *PaintCanvas) DrawRoundRect(r Rect, radius float64, col Color) {
	c.paint(r)
	c.Canvas.DrawRoundRect(r, radius, c.color(col))
}

func (c *PaintCanvas) StrokeRect(r Rect, width float64, col Color) {
	c.paint(r)
	c.Canvas.StrokeRect(r, width, c.color(col))
}

func (c *PaintCanvas) DrawImage(img image.Image, dst Rect, alpha float64) {
	c.paint(dst)
	c.Canvas.DrawImage(img, dst, alpha*c.alpha)
}

func (c *PaintCanvas) DrawShadow(r Rect, radius float64, s Shadow) {
	c.paint(r.Offset(s.OffsetX, s.OffsetY).Outset(s.Radius))
	s.Alpha *= c.alpha
	c.Canvas.DrawShadow(r, radius, s)
}

func (c *PaintCanvas) Clear(col Color) {
	c.drawOps++
	c.Canvas.Clear(col)
}
