package trellis

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"
)

// ImageCanvas is a CPU Canvas drawing into an *image.RGBA. Shapes are
// rasterized with x/image/vector and images are resampled with
// x/image/draw, so arbitrary affine transforms are supported.
type ImageCanvas struct {
	stateStack
	dst *image.RGBA
	ras *vector.Rasterizer
}

// NewImageCanvas returns a canvas drawing into dst.
func NewImageCanvas(dst *image.RGBA) *ImageCanvas {
	b := dst.Bounds()
	return &ImageCanvas{
		stateStack: newStateStack(b.Dx(), b.Dy()),
		dst:        dst,
		ras:        vector.NewRasterizer(1, 1),
	}
}

// Image returns the destination image.
func (c *ImageCanvas) Image() *image.RGBA { return c.dst }

// clipRect returns the device clip as a pixel rectangle inside dst.
func (c *ImageCanvas) clipRect() image.Rectangle {
	r := c.DeviceClipBounds()
	return image.Rect(r.Left, r.Top, r.Right(), r.Bottom()).Intersect(c.dst.Bounds())
}

type point struct{ x, y float64 }

// fillPolygon fills pts, given in local space, with col.
func (c *ImageCanvas) fillPolygon(pts []point, col Color) {
	clip := c.clipRect()
	if clip.Empty() || len(pts) < 3 || col.IsTransparent() {
		return
	}
	m := c.TotalMatrix()
	ox, oy := float64(clip.Min.X), float64(clip.Min.Y)
	c.ras.Reset(clip.Dx(), clip.Dy())
	c.ras.DrawOp = draw.Over
	for i, p := range pts {
		x, y := m.MapPoint(p.x, p.y)
		if i == 0 {
			c.ras.MoveTo(float32(x-ox), float32(y-oy))
			continue
		}
		c.ras.LineTo(float32(x-ox), float32(y-oy))
	}
	c.ras.ClosePath()
	c.ras.Draw(c.dst, clip, image.NewUniform(col.NRGBA()), image.Point{})
}

func rectPoints(r Rect) []point {
	return []point{{r.X, r.Y}, {r.Right(), r.Y}, {r.Right(), r.Bottom()}, {r.X, r.Bottom()}}
}

// roundRectPoints approximates a rounded rectangle with short segments.
func roundRectPoints(r Rect, radius float64) []point {
	radius = min(radius, r.Width/2, r.Height/2)
	if radius <= 0 {
		return rectPoints(r)
	}
	const steps = 8
	corners := [4]struct{ cx, cy, start float64 }{
		{r.Right() - radius, r.Y + radius, -math.Pi / 2},
		{r.Right() - radius, r.Bottom() - radius, 0},
		{r.X + radius, r.Bottom() - radius, math.Pi / 2},
		{r.X + radius, r.Y + radius, math.Pi},
	}
	pts := make([]point, 0, 4*(steps+1))
	for _, k := range corners {
		for i := 0; i <= steps; i++ {
			a := k.start + float64(i)/steps*math.Pi/2
			pts = append(pts, point{k.cx + radius*math.Cos(a), k.cy + radius*math.Sin(a)})
		}
	}
	return pts
}

// Clear replaces every pixel inside the clip with col.
func (c *ImageCanvas) Clear(col Color) {
	clip := c.clipRect()
	if clip.Empty() {
		return
	}
	draw.Draw(c.dst, clip, image.NewUniform(col.NRGBA()), image.Point{}, draw.Src)
}

func (c *ImageCanvas) DrawRect(r Rect, col Color) {
	c.fillPolygon(rectPoints(r), col)
}

func (c *ImageCanvas) DrawRoundRect(r Rect, radius float64, col Color) {
	c.fillPolygon(roundRectPoints(r, radius), col)
}

// StrokeRect draws a border of the given width centered on r's edges.
func (c *ImageCanvas) StrokeRect(r Rect, width float64, col Color) {
	if width <= 0 {
		return
	}
	h := width / 2
	c.fillPolygon(rectPoints(Rect{r.X - h, r.Y - h, r.Width + width, width}), col)
	c.fillPolygon(rectPoints(Rect{r.X - h, r.Bottom() - h, r.Width + width, width}), col)
	c.fillPolygon(rectPoints(Rect{r.X - h, r.Y + h, width, r.Height - width}), col)
	c.fillPolygon(rectPoints(Rect{r.Right() - h, r.Y + h, width, r.Height - width}), col)
}

// DrawImage draws img scaled into dst at the given alpha.
func (c *ImageCanvas) DrawImage(img image.Image, dst Rect, alpha float64) {
	clip := c.clipRect()
	sr := img.Bounds()
	if clip.Empty() || sr.Empty() || alpha <= 0 {
		return
	}
	m := c.TotalMatrix().
		Multiply(TranslateMatrix(dst.X, dst.Y)).
		Multiply(ScaleMatrix(dst.Width/float64(sr.Dx()), dst.Height/float64(sr.Dy()))).
		Multiply(TranslateMatrix(-float64(sr.Min.X), -float64(sr.Min.Y)))
	s2d := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	var opts *draw.Options
	if alpha < 1 {
		opts = &draw.Options{DstMask: image.NewUniform(color.Alpha{A: unit8(alpha)})}
	}
	target := c.dst.SubImage(clip).(*image.RGBA)
	draw.ApproxBiLinear.Transform(target, s2d, img, sr, draw.Over, opts)
}

// DrawShadow fills the offset shape with the shadow color, grown by half
// the blur radius.
func (c *ImageCanvas) DrawShadow(r Rect, radius float64, s Shadow) {
	shape := r.Offset(s.OffsetX, s.OffsetY).Outset(s.Radius / 2)
	c.fillPolygon(roundRectPoints(shape, radius), s.Color.WithAlpha(s.Alpha))
}

// DrawFilter applies f to the pixels already drawn under r.
func (c *ImageCanvas) DrawFilter(r Rect, f Filter) {
	dev := c.TotalMatrix().MapRect(r).RoundOut()
	area := image.Rect(dev.Left, dev.Top, dev.Right(), dev.Bottom()).Intersect(c.clipRect())
	if area.Empty() {
		return
	}
	if m, ok := f.ColorMatrix(); ok {
		c.eachPixel(area, func(p []uint8) { applyColorMatrixRGBA(&m, p) })
		return
	}
	if f.Kind == FilterBlur {
		boxBlur(c.dst, area, int(math.Round(f.Amount)))
	}
}

// applyColorMatrixRGBA transforms one premultiplied RGBA pixel in place.
func applyColorMatrixRGBA(m *ColorMatrix, p []uint8) {
	if p[3] == 0 {
		return
	}
	a := float64(p[3]) / 255
	in := Color{float64(p[0]) / 255 / a, float64(p[1]) / 255 / a, float64(p[2]) / 255 / a, a}
	out := m.Apply(in)
	p[0] = unit8(out.R * out.A)
	p[1] = unit8(out.G * out.A)
	p[2] = unit8(out.B * out.A)
	p[3] = unit8(out.A)
}

func (c *ImageCanvas) eachPixel(area image.Rectangle, fn func(p []uint8)) {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			i := c.dst.PixOffset(x, y)
			fn(c.dst.Pix[i : i+4 : i+4])
		}
	}
}

// boxBlur runs one horizontal and one vertical box pass of the given
// radius over area.
func boxBlur(img *image.RGBA, area image.Rectangle, radius int) {
	if radius <= 0 {
		return
	}
	src := image.NewRGBA(area)
	draw.Draw(src, area, img, area.Min, draw.Src)
	blurPass(src, img, area, radius, 1, 0)
	draw.Draw(src, area, img, area.Min, draw.Src)
	blurPass(src, img, area, radius, 0, 1)
}

func blurPass(src, dst *image.RGBA, area image.Rectangle, radius, dx, dy int) {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			var sum [4]int
			n := 0
			for k := -radius; k <= radius; k++ {
				p := image.Pt(x+k*dx, y+k*dy)
				if !p.In(area) {
					continue
				}
				i := src.PixOffset(p.X, p.Y)
				for ch := range 4 {
					sum[ch] += int(src.Pix[i+ch])
				}
				n++
			}
			i := dst.PixOffset(x, y)
			for ch := range 4 {
				dst.Pix[i+ch] = uint8(sum[ch] / n)
			}
		}
	}
}
