package trellis

import (
	"errors"
	"fmt"
	"image/color"
	"math"
)

var (
	// ErrInvalidScale is returned by a capture with a non-positive scale.
	ErrInvalidScale = errors.New("trellis: scale must be positive")
	// ErrNodeNotFound is returned when an id does not resolve to a node.
	ErrNodeNotFound = errors.New("trellis: node not found")
	// ErrUnsupportedNode is returned when an operation does not apply to
	// the node's kind.
	ErrUnsupportedNode = errors.New("trellis: unsupported node kind")
	// ErrEmptyCapture is returned when a capture would produce no pixels.
	ErrEmptyCapture = errors.New("trellis: capture area is empty")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("trellis: invalid config")
)

// NodeID identifies a render node. The high 32 bits carry the id of the
// owning process, which is used for bulk cleanup when that owner goes away.
type NodeID uint64

// FallbackNodeID is the id of the permanent animation-fallback node.
const FallbackNodeID NodeID = 0

// MakeNodeID packs an owner id and an owner-local id into a NodeID.
func MakeNodeID(owner, local uint32) NodeID {
	return NodeID(uint64(owner)<<32 | uint64(local))
}

// Owner returns the owning-process id encoded in the high 32 bits.
func (id NodeID) Owner() uint32 {
	return uint32(uint64(id) >> 32)
}

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color struct {
	R, G, B, A float64
}

var (
	ColorTransparent = Color{}
	ColorWhite       = Color{1, 1, 1, 1}
	ColorBlack       = Color{0, 0, 0, 1}
)

// HexColor builds a Color from a 0xAARRGGBB value.
func HexColor(argb uint32) Color {
	return Color{
		R: float64(argb>>16&0xff) / 255,
		G: float64(argb>>8&0xff) / 255,
		B: float64(argb&0xff) / 255,
		A: float64(argb>>24&0xff) / 255,
	}
}

// IsTransparent reports whether the alpha component is zero.
func (c Color) IsTransparent() bool {
	return c.A <= 0
}

// WithAlpha returns c with its alpha multiplied by a.
func (c Color) WithAlpha(a float64) Color {
	c.A *= a
	return c
}

// NRGBA converts c to a straight-alpha 8-bit color.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: unit8(c.R), G: unit8(c.G), B: unit8(c.B), A: unit8(c.A)}
}

func unit8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Rect is an axis-aligned rectangle in floating point coordinates. The
// coordinate system has its origin at the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other share any area.
func (r Rect) Intersects(other Rect) bool {
	return !r.Intersect(other).IsEmpty()
}

// Intersect returns the overlap of r and other, or the zero Rect.
func (r Rect) Intersect(other Rect) Rect {
	left := math.Max(r.X, other.X)
	top := math.Max(r.Y, other.Y)
	right := math.Min(r.Right(), other.Right())
	bottom := math.Min(r.Bottom(), other.Bottom())
	if right <= left || bottom <= top {
		return Rect{}
	}
	return Rect{left, top, right - left, bottom - top}
}

// Join returns the bounding box of r and other. Empty operands are ignored.
func (r Rect) Join(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	left := math.Min(r.X, other.X)
	top := math.Min(r.Y, other.Y)
	right := math.Max(r.Right(), other.Right())
	bottom := math.Max(r.Bottom(), other.Bottom())
	return Rect{left, top, right - left, bottom - top}
}

// Offset returns r translated by (dx, dy).
func (r Rect) Offset(dx, dy float64) Rect {
	return Rect{r.X + dx, r.Y + dy, r.Width, r.Height}
}

// Outset grows r by d on every side.
func (r Rect) Outset(d float64) Rect {
	return Rect{r.X - d, r.Y - d, r.Width + 2*d, r.Height + 2*d}
}

// RoundOut returns the smallest integer rectangle containing r.
func (r Rect) RoundOut() RectI {
	left := int(math.Floor(r.X))
	top := int(math.Floor(r.Y))
	right := int(math.Ceil(r.Right()))
	bottom := int(math.Ceil(r.Bottom()))
	return RectI{left, top, right - left, bottom - top}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", r.X, r.Y, r.Width, r.Height)
}

// RectI is an integer rectangle used for damage and screen bookkeeping.
type RectI struct {
	Left, Top, Width, Height int
}

// IsEmpty reports whether the rectangle has no area.
func (r RectI) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r RectI) Right() int  { return r.Left + r.Width }
func (r RectI) Bottom() int { return r.Top + r.Height }

// Intersect returns the overlap of r and other, or the zero RectI.
func (r RectI) Intersect(other RectI) RectI {
	left := max(r.Left, other.Left)
	top := max(r.Top, other.Top)
	right := min(r.Right(), other.Right())
	bottom := min(r.Bottom(), other.Bottom())
	if right <= left || bottom <= top {
		return RectI{}
	}
	return RectI{left, top, right - left, bottom - top}
}

// Intersects reports whether r and other share any area.
func (r RectI) Intersects(other RectI) bool {
	return !r.Intersect(other).IsEmpty()
}

// Join returns the bounding box of r and other. Empty operands are ignored.
func (r RectI) Join(other RectI) RectI {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	left := min(r.Left, other.Left)
	top := min(r.Top, other.Top)
	right := max(r.Right(), other.Right())
	bottom := max(r.Bottom(), other.Bottom())
	return RectI{left, top, right - left, bottom - top}
}

// IsInsideOf reports whether r lies entirely within other.
func (r RectI) IsInsideOf(other RectI) bool {
	return r.Left >= other.Left && r.Top >= other.Top &&
		r.Right() <= other.Right() && r.Bottom() <= other.Bottom()
}

// Offset returns r translated by (dx, dy).
func (r RectI) Offset(dx, dy int) RectI {
	return RectI{r.Left + dx, r.Top + dy, r.Width, r.Height}
}

// Rect converts r to floating point.
func (r RectI) Rect() Rect {
	return Rect{float64(r.Left), float64(r.Top), float64(r.Width), float64(r.Height)}
}

func (r RectI) String() string {
	return fmt.Sprintf("[%d, %d, %d, %d]", r.Left, r.Top, r.Width, r.Height)
}

const floatEpsilon = 1e-6

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= floatEpsilon
}
