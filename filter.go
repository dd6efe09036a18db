package trellis

// ColorMatrix is a 4x5 color transform in row-major order:
// [R_r, R_g, R_b, R_a, R_offset, G_r, ...]. It works on straight alpha
// components in [0, 1].
type ColorMatrix [20]float64

// IdentityColorMatrix leaves colors unchanged.
var IdentityColorMatrix = ColorMatrix{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// BrightnessMatrix scales the color channels by b. b=1 is unchanged.
func BrightnessMatrix(b float64) ColorMatrix {
	return ColorMatrix{
		b, 0, 0, 0, 0,
		0, b, 0, 0, 0,
		0, 0, b, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// ContrastMatrix scales the channels around mid gray. c=1 is unchanged,
// 0 is flat gray.
func ContrastMatrix(c float64) ColorMatrix {
	t := (1 - c) / 2
	return ColorMatrix{
		c, 0, 0, 0, t,
		0, c, 0, 0, t,
		0, 0, c, 0, t,
		0, 0, 0, 1, 0,
	}
}

// SaturationMatrix mixes each channel with the luminance. s=1 is
// unchanged, 0 is grayscale.
func SaturationMatrix(s float64) ColorMatrix {
	sr := (1 - s) * 0.299
	sg := (1 - s) * 0.587
	sb := (1 - s) * 0.114
	return ColorMatrix{
		sr + s, sg, sb, 0, 0,
		sr, sg + s, sb, 0, 0,
		sr, sg, sb + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Apply transforms one color, clamping the result to [0, 1].
func (m *ColorMatrix) Apply(c Color) Color {
	row := func(i int) float64 {
		v := m[i]*c.R + m[i+1]*c.G + m[i+2]*c.B + m[i+3]*c.A + m[i+4]
		return min(max(v, 0), 1)
	}
	return Color{row(0), row(5), row(10), row(15)}
}

// ColorMatrix returns the matrix a color filter applies. It reports false
// for filters that are not color transforms.
func (f Filter) ColorMatrix() (ColorMatrix, bool) {
	switch f.Kind {
	case FilterGrayscale:
		return SaturationMatrix(0), true
	case FilterBrightness:
		return BrightnessMatrix(f.Amount), true
	case FilterContrast:
		return ContrastMatrix(f.Amount), true
	case FilterSaturation:
		return SaturationMatrix(f.Amount), true
	}
	return ColorMatrix{}, false
}
