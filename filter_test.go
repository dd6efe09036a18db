package trellis

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertColor(t *testing.T, want, got Color) {
	t.Helper()
	assert.InDelta(t, want.R, got.R, 1e-9, "R")
	assert.InDelta(t, want.G, got.G, 1e-9, "G")
	assert.InDelta(t, want.B, got.B, 1e-9, "B")
	assert.InDelta(t, want.A, got.A, 1e-9, "A")
}

func TestIdentityColorMatrix(t *testing.T) {
	m := IdentityColorMatrix
	c := Color{0.2, 0.4, 0.6, 0.8}
	assertColor(t, c, m.Apply(c))
}

func TestColorMatrixApply(t *testing.T) {
	red := Color{1, 0, 0, 1}
	tests := []struct {
		name string
		m    ColorMatrix
		in   Color
		want Color
	}{
		{"grayscale", SaturationMatrix(0), red, Color{0.299, 0.299, 0.299, 1}},
		{"saturation one", SaturationMatrix(1), red, red},
		{"brightness half", BrightnessMatrix(0.5), red, Color{0.5, 0, 0, 1}},
		{"brightness clamps", BrightnessMatrix(3), Color{0.5, 0.2, 0, 1}, Color{1, 0.6, 0, 1}},
		{"contrast zero", ContrastMatrix(0), red, Color{0.5, 0.5, 0.5, 1}},
		{"contrast keeps alpha", ContrastMatrix(2), Color{0.75, 0.25, 0.5, 0.5}, Color{1, 0, 0.5, 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertColor(t, tt.want, tt.m.Apply(tt.in))
		})
	}
}

func TestFilterColorMatrix(t *testing.T) {
	tests := []struct {
		f    Filter
		want ColorMatrix
		ok   bool
	}{
		{Filter{Kind: FilterGrayscale}, SaturationMatrix(0), true},
		{Filter{Kind: FilterBrightness, Amount: 0.7}, BrightnessMatrix(0.7), true},
		{Filter{Kind: FilterContrast, Amount: 1.5}, ContrastMatrix(1.5), true},
		{Filter{Kind: FilterSaturation, Amount: 0.3}, SaturationMatrix(0.3), true},
		{Filter{Kind: FilterBlur, Amount: 4}, ColorMatrix{}, false},
		{Filter{}, ColorMatrix{}, false},
	}
	for _, tt := range tests {
		m, ok := tt.f.ColorMatrix()
		assert.Equal(t, tt.ok, ok, "kind %d", tt.f.Kind)
		assert.Equal(t, tt.want, m, "kind %d", tt.f.Kind)
	}
}

func TestImageCanvasColorFilter(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want [4]uint8
	}{
		{"grayscale", Filter{Kind: FilterGrayscale}, [4]uint8{76, 76, 76, 255}},
		{"brightness", Filter{Kind: FilterBrightness, Amount: 0.5}, [4]uint8{128, 0, 0, 255}},
		{"contrast", Filter{Kind: FilterContrast}, [4]uint8{128, 128, 128, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, 20, 20))
			c := NewImageCanvas(img)
			c.DrawRect(Rect{Width: 20, Height: 20}, Color{1, 0, 0, 1})
			c.DrawFilter(Rect{Width: 10, Height: 20}, tt.f)

			i := img.PixOffset(5, 5)
			assert.Equal(t, tt.want[:], img.Pix[i:i+4])
			j := img.PixOffset(15, 5)
			assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pix[j:j+4], "outside the filtered area")
		})
	}
}

func TestImageCanvasColorFilterSkipsTransparent(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	c := NewImageCanvas(img)
	c.DrawFilter(Rect{Width: 4, Height: 4}, Filter{Kind: FilterContrast})
	assert.Equal(t, make([]uint8, 4*4*4), img.Pix)
}

func TestBlurFilterPasses(t *testing.T) {
	tests := []struct {
		radius, want int
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{8, 3},
		{9, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewBlurFilter(tt.radius, nil).passes(), "radius %d", tt.radius)
	}
}

func TestFilterPadding(t *testing.T) {
	assert.Equal(t, 0, NewColorMatrixFilter(IdentityColorMatrix).Padding())
	assert.Equal(t, 6, NewBlurFilter(6, nil).Padding())

	f := NewBlurFilter(-3, nil)
	assert.Equal(t, 0, f.Radius)
	assert.Equal(t, 0, f.Padding())
}

func TestEbitenFiltersLookup(t *testing.T) {
	fs := ebitenFilters{pool: &renderTexturePool{}}

	assert.Nil(t, fs.lookup(Filter{}))
	assert.Nil(t, fs.lookup(Filter{Kind: FilterBlur, Amount: 0.4}))

	gray := fs.lookup(Filter{Kind: FilterGrayscale})
	require.IsType(t, &ColorMatrixFilter{}, gray)
	bright := fs.lookup(Filter{Kind: FilterBrightness, Amount: 0.5})
	assert.Same(t, gray, bright)
	assert.Equal(t, BrightnessMatrix(0.5), bright.(*ColorMatrixFilter).Matrix)

	blur := fs.lookup(Filter{Kind: FilterBlur, Amount: 2.6})
	require.IsType(t, &BlurFilter{}, blur)
	assert.Equal(t, 3, blur.Padding())
	assert.Same(t, blur, fs.lookup(Filter{Kind: FilterBlur, Amount: 5}))
	assert.Equal(t, 5, blur.Padding())
}
