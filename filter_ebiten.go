package trellis

import (
	"image"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// ebitenFilter renders src into dst with an effect on the GPU.
type ebitenFilter interface {
	Apply(src, dst *ebiten.Image)
	// Padding is how many pixels around the filtered area the effect reads.
	Padding() int
}

// Ebitengine uses premultiplied alpha; the shader un-premultiplies before
// the transform and premultiplies the result.
const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

var (
	colorMatrixShaderOnce sync.Once
	colorMatrixShader     *ebiten.Shader
)

func ensureColorMatrixShader() *ebiten.Shader {
	colorMatrixShaderOnce.Do(func() {
		s, err := ebiten.NewShader([]byte(colorMatrixShaderSrc))
		if err != nil {
			panic("trellis: compile color matrix shader: " + err.Error())
		}
		colorMatrixShader = s
	})
	return colorMatrixShader
}

// ColorMatrixFilter applies a ColorMatrix with a Kage shader.
type ColorMatrixFilter struct {
	Matrix    ColorMatrix
	uniforms  map[string]any
	matrixF32 [20]float32
	shaderOp  ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a filter applying m.
func NewColorMatrixFilter(m ColorMatrix) *ColorMatrixFilter {
	f := &ColorMatrixFilter{Matrix: m, uniforms: make(map[string]any, 1)}
	f.uniforms["Matrix"] = f.matrixF32[:]
	return f
}

func (f *ColorMatrixFilter) Apply(src, dst *ebiten.Image) {
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	b := src.Bounds()
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	f.shaderOp.Blend = ebiten.BlendCopy
	dst.DrawRectShader(b.Dx(), b.Dy(), ensureColorMatrixShader(), &f.shaderOp)
}

func (f *ColorMatrixFilter) Padding() int { return 0 }

// BlurFilter is a Kawase blur: the source is halved log2(radius) times and
// scaled back up, letting linear filtering do the averaging. Intermediate
// images come from pool.
type BlurFilter struct {
	Radius int
	pool   *renderTexturePool
	temps  []*ebiten.Image
	views  []*ebiten.Image
	imgOp  ebiten.DrawImageOptions
}

// NewBlurFilter creates a blur of radius pixels. A negative radius is 0.
func NewBlurFilter(radius int, pool *renderTexturePool) *BlurFilter {
	if pool == nil {
		pool = &renderTexturePool{}
	}
	return &BlurFilter{Radius: max(radius, 0), pool: pool}
}

// passes returns the number of halving steps for the radius.
func (f *BlurFilter) passes() int {
	if f.Radius <= 0 {
		return 0
	}
	return max(1, int(math.Ceil(math.Log2(float64(f.Radius)))))
}

func (f *BlurFilter) Apply(src, dst *ebiten.Image) {
	op := &f.imgOp
	passes := f.passes()
	if passes == 0 {
		op.GeoM.Reset()
		op.Filter = ebiten.FilterNearest
		op.Blend = ebiten.BlendCopy
		dst.DrawImage(src, op)
		return
	}

	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	f.temps, f.views = f.temps[:0], f.views[:0]
	defer func() {
		for _, img := range f.temps {
			f.pool.Release(img)
		}
		clear(f.temps)
		clear(f.views)
	}()

	op.Filter = ebiten.FilterLinear
	op.Blend = ebiten.BlendCopy
	current := src
	for range passes {
		w, h = max(w/2, 1), max(h/2, 1)
		img := f.pool.Acquire(w, h)
		view := img.SubImage(image.Rect(0, 0, w, h)).(*ebiten.Image)
		f.temps = append(f.temps, img)
		f.views = append(f.views, view)
		scaleInto(view, current, op)
		current = view
	}
	for i := passes - 2; i >= 0; i-- {
		scaleInto(f.views[i], current, op)
		current = f.views[i]
	}
	scaleInto(dst, current, op)
}

// scaleInto draws src stretched over dst.
func scaleInto(dst, src *ebiten.Image, op *ebiten.DrawImageOptions) {
	sb, db := src.Bounds(), dst.Bounds()
	op.GeoM.Reset()
	op.GeoM.Scale(float64(db.Dx())/float64(sb.Dx()), float64(db.Dy())/float64(sb.Dy()))
	op.GeoM.Translate(float64(db.Min.X), float64(db.Min.Y))
	dst.DrawImage(src, op)
}

func (f *BlurFilter) Padding() int { return f.Radius }

// ebitenFilters keeps one GPU filter per kind for a canvas so their
// buffers are reused across draws.
type ebitenFilters struct {
	pool   *renderTexturePool
	matrix *ColorMatrixFilter
	blur   *BlurFilter
}

// lookup returns the GPU filter for f, or nil when f does nothing.
func (fs *ebitenFilters) lookup(f Filter) ebitenFilter {
	if m, ok := f.ColorMatrix(); ok {
		if fs.matrix == nil {
			fs.matrix = NewColorMatrixFilter(m)
		}
		fs.matrix.Matrix = m
		return fs.matrix
	}
	if f.Kind != FilterBlur {
		return nil
	}
	radius := int(math.Round(f.Amount))
	if radius < 1 {
		return nil
	}
	if fs.blur == nil {
		fs.blur = NewBlurFilter(radius, fs.pool)
	}
	fs.blur.Radius = radius
	return fs.blur
}
