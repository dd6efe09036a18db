package trellis

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

var (
	whiteImage    *ebiten.Image
	whiteSubImage *ebiten.Image
)

func init() {
	whiteImage = ebiten.NewImage(3, 3)
	whiteImage.Fill(ColorWhite.NRGBA())
	// The 1x1 center keeps linear filtering from sampling the edge.
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
}

// EbitenCanvas is a Canvas drawing into an *ebiten.Image on the GPU.
// Shapes are drawn as triangles from a white pixel, the clip is applied by
// drawing into a sub-image.
type EbitenCanvas struct {
	stateStack
	dst *ebiten.Image

	pool    *renderTexturePool
	filters ebitenFilters
	images  map[image.Image]*ebiten.Image
	verts   []ebiten.Vertex
	inds    []uint16
}

// NewEbitenCanvas returns a canvas drawing into dst. Scratch images used by
// filters are taken from pool, which may be nil.
func NewEbitenCanvas(dst *ebiten.Image, pool *renderTexturePool) *EbitenCanvas {
	b := dst.Bounds()
	if pool == nil {
		pool = &renderTexturePool{}
	}
	return &EbitenCanvas{
		stateStack: newStateStack(b.Dx(), b.Dy()),
		dst:        dst,
		pool:       pool,
		filters:    ebitenFilters{pool: pool},
	}
}

// Image returns the destination image.
func (c *EbitenCanvas) Image() *ebiten.Image { return c.dst }

// target returns dst restricted to the clip, or nil when the clip is empty.
func (c *EbitenCanvas) target() *ebiten.Image {
	r := c.DeviceClipBounds()
	b := c.dst.Bounds()
	clip := image.Rect(b.Min.X+r.Left, b.Min.Y+r.Top, b.Min.X+r.Right(), b.Min.Y+r.Bottom()).Intersect(b)
	if clip.Empty() {
		return nil
	}
	return c.dst.SubImage(clip).(*ebiten.Image)
}

// geoM converts m into device space of dst.
func (c *EbitenCanvas) geoM(m Matrix) ebiten.GeoM {
	var g ebiten.GeoM
	g.SetElement(0, 0, m[0])
	g.SetElement(1, 0, m[1])
	g.SetElement(0, 1, m[2])
	g.SetElement(1, 1, m[3])
	g.SetElement(0, 2, m[4])
	g.SetElement(1, 2, m[5])
	b := c.dst.Bounds()
	g.Translate(float64(b.Min.X), float64(b.Min.Y))
	return g
}

// fillPolygon fills a convex polygon given in local space.
func (c *EbitenCanvas) fillPolygon(pts []point, col Color) {
	if len(pts) < 3 || col.IsTransparent() {
		return
	}
	dst := c.target()
	if dst == nil {
		return
	}
	g := c.geoM(c.TotalMatrix())
	c.verts, c.inds = c.verts[:0], c.inds[:0]
	r, gr, b, a := float32(col.R), float32(col.G), float32(col.B), float32(col.A)
	for _, p := range pts {
		x, y := g.Apply(p.x, p.y)
		c.verts = append(c.verts, ebiten.Vertex{
			DstX: float32(x), DstY: float32(y),
			SrcX: 1.5, SrcY: 1.5,
			ColorR: r, ColorG: gr, ColorB: b, ColorA: a,
		})
	}
	for i := 1; i < len(pts)-1; i++ {
		c.inds = append(c.inds, 0, uint16(i), uint16(i+1))
	}
	op := &ebiten.DrawTrianglesOptions{AntiAlias: true}
	dst.DrawTriangles(c.verts, c.inds, whiteSubImage, op)
}

// Clear replaces every pixel inside the clip with col.
func (c *EbitenCanvas) Clear(col Color) {
	dst := c.target()
	if dst == nil {
		return
	}
	if col.IsTransparent() {
		dst.Clear()
		return
	}
	dst.Fill(col.NRGBA())
}

func (c *EbitenCanvas) DrawRect(r Rect, col Color) {
	c.fillPolygon(rectPoints(r), col)
}

func (c *EbitenCanvas) DrawRoundRect(r Rect, radius float64, col Color) {
	c.fillPolygon(roundRectPoints(r, radius), col)
}

// StrokeRect draws a border of the given width centered on r's edges.
func (c *EbitenCanvas) StrokeRect(r Rect, width float64, col Color) {
	if width <= 0 {
		return
	}
	h := width / 2
	c.fillPolygon(rectPoints(Rect{r.X - h, r.Y - h, r.Width + width, width}), col)
	c.fillPolygon(rectPoints(Rect{r.X - h, r.Bottom() - h, r.Width + width, width}), col)
	c.fillPolygon(rectPoints(Rect{r.X - h, r.Y + h, width, r.Height - width}), col)
	c.fillPolygon(rectPoints(Rect{r.Right() - h, r.Y + h, width, r.Height - width}), col)
}

// ebitenImage returns img as an ebiten image, uploading it once.
func (c *EbitenCanvas) ebitenImage(img image.Image) *ebiten.Image {
	if e, ok := img.(*ebiten.Image); ok {
		return e
	}
	if e, ok := c.images[img]; ok {
		return e
	}
	if c.images == nil {
		c.images = make(map[image.Image]*ebiten.Image)
	}
	e := ebiten.NewImageFromImage(img)
	c.images[img] = e
	return e
}

// DrawImage draws img scaled into dst at the given alpha.
func (c *EbitenCanvas) DrawImage(img image.Image, r Rect, alpha float64) {
	dst := c.target()
	sr := img.Bounds()
	if dst == nil || sr.Empty() || alpha <= 0 {
		return
	}
	src := c.ebitenImage(img)
	op := &ebiten.DrawImageOptions{Filter: ebiten.FilterLinear}
	op.GeoM.Scale(r.Width/float64(sr.Dx()), r.Height/float64(sr.Dy()))
	op.GeoM.Translate(r.X, r.Y)
	op.GeoM.Concat(c.geoM(c.TotalMatrix()))
	op.ColorScale.ScaleAlpha(float32(alpha))
	dst.DrawImage(src, op)
}

// DrawShadow fills the offset shape with the shadow color, grown by half
// the blur radius.
func (c *EbitenCanvas) DrawShadow(r Rect, radius float64, s Shadow) {
	shape := r.Offset(s.OffsetX, s.OffsetY).Outset(s.Radius / 2)
	c.fillPolygon(roundRectPoints(shape, radius), s.Color.WithAlpha(s.Alpha))
}

// DrawFilter applies f to the pixels already drawn under r. The area, grown
// by the filter's padding, is copied to a scratch image, filtered and drawn
// back inside r.
func (c *EbitenCanvas) DrawFilter(r Rect, f Filter) {
	dst := c.target()
	if dst == nil {
		return
	}
	ef := c.filters.lookup(f)
	if ef == nil {
		return
	}
	b := c.dst.Bounds()
	dev := c.TotalMatrix().MapRect(r).RoundOut()
	area := image.Rect(b.Min.X+dev.Left, b.Min.Y+dev.Top, b.Min.X+dev.Right(), b.Min.Y+dev.Bottom()).
		Intersect(dst.Bounds())
	if area.Empty() {
		return
	}
	read := area.Inset(-ef.Padding()).Intersect(b)
	w, h := read.Dx(), read.Dy()
	scratch := c.pool.Acquire(w, h)
	defer c.pool.Release(scratch)
	result := c.pool.Acquire(w, h)
	defer c.pool.Release(result)

	// A source sub-image is drawn with its top left corner at the origin.
	scratch.DrawImage(c.dst.SubImage(read).(*ebiten.Image), &ebiten.DrawImageOptions{Blend: ebiten.BlendCopy})
	in := scratch.SubImage(image.Rect(0, 0, w, h)).(*ebiten.Image)
	out := result.SubImage(image.Rect(0, 0, w, h)).(*ebiten.Image)
	ef.Apply(in, out)

	op := &ebiten.DrawImageOptions{Blend: ebiten.BlendCopy}
	op.GeoM.Translate(float64(read.Min.X), float64(read.Min.Y))
	c.dst.SubImage(area).(*ebiten.Image).DrawImage(out, op)
}
