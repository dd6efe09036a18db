package trellis

import "math"

// Matrix is a 2D affine transform stored as [a, b, c, d, tx, ty]:
//
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
type Matrix [6]float64

// IdentityMatrix is the identity transform.
var IdentityMatrix = Matrix{1, 0, 0, 1, 0, 0}

// TranslateMatrix returns a matrix translating by (tx, ty).
func TranslateMatrix(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// ScaleMatrix returns a matrix scaling by (sx, sy).
func ScaleMatrix(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, sy, 0, 0}
}

// RotateMatrix returns a matrix rotating by r radians.
func RotateMatrix(r float64) Matrix {
	sin, cos := math.Sincos(r)
	return Matrix{cos, sin, -sin, cos, 0, 0}
}

// Multiply returns m * o (o is applied first).
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[2]*o[1],
		m[1]*o[0] + m[3]*o[1],
		m[0]*o[2] + m[2]*o[3],
		m[1]*o[2] + m[3]*o[3],
		m[0]*o[4] + m[2]*o[5] + m[4],
		m[1]*o[4] + m[3]*o[5] + m[5],
	}
}

// Invert returns the inverse of m. ok is false when m is singular, in
// which case the identity is returned.
func (m Matrix) Invert() (inv Matrix, ok bool) {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return IdentityMatrix, false
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return Matrix{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}, true
}

// MapPoint applies m to a point.
func (m Matrix) MapPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// MapRect returns the axis-aligned bounds of r after applying m.
func (m Matrix) MapRect(r Rect) Rect {
	if m.IsTranslate() {
		return r.Offset(m[4], m[5])
	}
	x0, y0 := m.MapPoint(r.X, r.Y)
	x1, y1 := m.MapPoint(r.Right(), r.Y)
	x2, y2 := m.MapPoint(r.X, r.Bottom())
	x3, y3 := m.MapPoint(r.Right(), r.Bottom())
	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))
	return Rect{minX, minY, maxX - minX, maxY - minY}
}

// IsIdentity reports whether m is (nearly) the identity.
func (m Matrix) IsIdentity() bool {
	return m.IsTranslate() && nearlyEqual(m[4], 0) && nearlyEqual(m[5], 0)
}

// IsTranslate reports whether m only translates.
func (m Matrix) IsTranslate() bool {
	return nearlyEqual(m[0], 1) && nearlyEqual(m[1], 0) &&
		nearlyEqual(m[2], 0) && nearlyEqual(m[3], 1)
}

// Equal reports whether m and o match within epsilon.
func (m Matrix) Equal(o Matrix) bool {
	for i := range m {
		if !nearlyEqual(m[i], o[i]) {
			return false
		}
	}
	return true
}

// ScaleFactors returns the x and y scale magnitudes of m.
func (m Matrix) ScaleFactors() (sx, sy float64) {
	return math.Hypot(m[0], m[1]), math.Hypot(m[2], m[3])
}

// localMatrix computes the node-local transform from its properties.
//
// Composition order:
//
//	Translate(-pivot) -> Scale -> Skew -> Rotate -> Translate(pivot + position)
//
// The pivot is expressed as a fraction of the bounds size.
func localMatrix(p *Properties) Matrix {
	sx, sy := p.ScaleX, p.ScaleY
	sin, cos := math.Sincos(p.Rotation)

	var tanSkewX, tanSkewY float64
	if p.SkewX != 0 {
		tanSkewX = math.Tan(p.SkewX)
	}
	if p.SkewY != 0 {
		tanSkewY = math.Tan(p.SkewY)
	}

	a := sx
	b := tanSkewY * sx
	c := tanSkewX * sy
	d := sy

	px := p.PivotX * p.Bounds.Width
	py := p.PivotY * p.Bounds.Height
	preTx := -px*sx - tanSkewX*py*sy
	preTy := -tanSkewY*px*sx - py*sy

	ra := cos*a - sin*b
	rb := sin*a + cos*b
	rc := cos*c - sin*d
	rd := sin*c + cos*d
	rtx := cos*preTx - sin*preTy
	rty := sin*preTx + cos*preTy

	x := p.Bounds.X + p.TranslateX + px
	y := p.Bounds.Y + p.TranslateY + py
	return Matrix{ra, rb, rc, rd, rtx + x, rty + y}
}

// gravityResizeMatrix maps a frame of fw x fh onto a buffer of bw x bh by
// stretching it to fill.
func gravityResizeMatrix(fw, fh, bw, bh float64) Matrix {
	if fw <= 0 || fh <= 0 {
		return IdentityMatrix
	}
	return ScaleMatrix(bw/fw, bh/fh)
}
