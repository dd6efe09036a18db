package trellis

import (
	"fmt"
	"slices"
	"strings"
)

// RegionRect is an edge-based integer rectangle used by Region. Right and
// Bottom are exclusive.
type RegionRect struct {
	Left, Top, Right, Bottom int
}

// NewRegionRect converts a RectI to edge form.
func NewRegionRect(r RectI) RegionRect {
	return RegionRect{r.Left, r.Top, r.Right(), r.Bottom()}
}

// IsEmpty reports whether the rectangle has no area.
func (r RegionRect) IsEmpty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// RectI converts r to origin + size form.
func (r RegionRect) RectI() RectI {
	return RectI{r.Left, r.Top, r.Right - r.Left, r.Bottom - r.Top}
}

func (r RegionRect) area() int {
	if r.IsEmpty() {
		return 0
	}
	return (r.Right - r.Left) * (r.Bottom - r.Top)
}

// Region is a set of non-overlapping rectangles over screen space, kept in
// y-x banded order. The zero value is the empty region.
type Region struct {
	rects []RegionRect
	bound RegionRect
}

// NewRegion returns a region covering r.
func NewRegion(r RegionRect) Region {
	if r.IsEmpty() {
		return Region{}
	}
	return Region{rects: []RegionRect{r}, bound: r}
}

// RegionFromRect returns a region covering the RectI r.
func RegionFromRect(r RectI) Region {
	return NewRegion(NewRegionRect(r))
}

// IsEmpty reports whether the region covers no area.
func (rg Region) IsEmpty() bool { return len(rg.rects) == 0 }

// Size returns the number of rectangles in the region.
func (rg Region) Size() int { return len(rg.rects) }

// Rects returns a copy of the region's rectangles.
func (rg Region) Rects() []RegionRect { return slices.Clone(rg.rects) }

// Bound returns the bounding rectangle of the region.
func (rg Region) Bound() RegionRect { return rg.bound }

// Area returns the covered area in pixels.
func (rg Region) Area() int {
	total := 0
	for _, r := range rg.rects {
		total += r.area()
	}
	return total
}

// Equal reports whether both regions cover the same area.
func (rg Region) Equal(o Region) bool {
	return rg.Xor(o).IsEmpty()
}

// IsIntersectWith reports whether rg and o overlap.
func (rg Region) IsIntersectWith(o Region) bool {
	if rg.IsEmpty() || o.IsEmpty() {
		return false
	}
	if rg.intersectBound(o.bound).IsEmpty() {
		return false
	}
	return !rg.And(o).IsEmpty()
}

func (rg Region) intersectBound(b RegionRect) RegionRect {
	r := RegionRect{
		Left:   max(rg.bound.Left, b.Left),
		Top:    max(rg.bound.Top, b.Top),
		Right:  min(rg.bound.Right, b.Right),
		Bottom: min(rg.bound.Bottom, b.Bottom),
	}
	if r.IsEmpty() {
		return RegionRect{}
	}
	return r
}

func (rg Region) String() string {
	var sb strings.Builder
	sb.WriteString("Region[")
	for i, r := range rg.rects {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "(%d, %d, %d, %d)", r.Left, r.Top, r.Right, r.Bottom)
	}
	sb.WriteString("]")
	return sb.String()
}

type regionOp int

const (
	opAnd regionOp = iota
	opOr
	opXor
	opSub
)

func (op regionOp) keep(inA, inB bool) bool {
	switch op {
	case opAnd:
		return inA && inB
	case opOr:
		return inA || inB
	case opXor:
		return inA != inB
	default:
		return inA && !inB
	}
}

// And returns the intersection of rg and o.
func (rg Region) And(o Region) Region { return rg.operate(o, opAnd) }

// Or returns the union of rg and o.
func (rg Region) Or(o Region) Region { return rg.operate(o, opOr) }

// Xor returns the symmetric difference of rg and o.
func (rg Region) Xor(o Region) Region { return rg.operate(o, opXor) }

// Sub returns rg minus o.
func (rg Region) Sub(o Region) Region { return rg.operate(o, opSub) }

func (rg Region) operate(o Region, op regionOp) Region {
	if rg.IsEmpty() {
		if op == opAnd || op == opSub {
			return Region{}
		}
		return o
	}
	if o.IsEmpty() {
		if op == opAnd {
			return Region{}
		}
		return rg
	}

	ys := make([]int, 0, 2*(len(rg.rects)+len(o.rects)))
	for _, r := range rg.rects {
		ys = append(ys, r.Top, r.Bottom)
	}
	for _, r := range o.rects {
		ys = append(ys, r.Top, r.Bottom)
	}
	slices.Sort(ys)
	ys = slices.Compact(ys)

	type band struct {
		top, bottom int
		spans       []span
	}
	var bands []band
	for i := 0; i+1 < len(ys); i++ {
		y0, y1 := ys[i], ys[i+1]
		spans := combineSpans(bandSpans(rg.rects, y0, y1), bandSpans(o.rects, y0, y1), op)
		if len(spans) == 0 {
			continue
		}
		if n := len(bands); n > 0 && bands[n-1].bottom == y0 && slices.Equal(bands[n-1].spans, spans) {
			bands[n-1].bottom = y1
			continue
		}
		bands = append(bands, band{y0, y1, spans})
	}

	var out Region
	for _, b := range bands {
		for _, s := range b.spans {
			out.rects = append(out.rects, RegionRect{s.left, b.top, s.right, b.bottom})
		}
	}
	out.updateBound()
	return out
}

func (rg *Region) updateBound() {
	if len(rg.rects) == 0 {
		rg.bound = RegionRect{}
		return
	}
	b := rg.rects[0]
	for _, r := range rg.rects[1:] {
		b.Left = min(b.Left, r.Left)
		b.Top = min(b.Top, r.Top)
		b.Right = max(b.Right, r.Right)
		b.Bottom = max(b.Bottom, r.Bottom)
	}
	rg.bound = b
}

type span struct {
	left, right int
}

// bandSpans returns the merged x spans of rects fully covering [y0, y1).
// Bands are split at every rect edge, so partial coverage cannot occur.
func bandSpans(rects []RegionRect, y0, y1 int) []span {
	var spans []span
	for _, r := range rects {
		if r.Top <= y0 && r.Bottom >= y1 {
			spans = append(spans, span{r.Left, r.Right})
		}
	}
	if len(spans) < 2 {
		return spans
	}
	slices.SortFunc(spans, func(a, b span) int { return a.left - b.left })
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.left <= last.right {
			last.right = max(last.right, s.right)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func combineSpans(a, b []span, op regionOp) []span {
	xs := make([]int, 0, 2*(len(a)+len(b)))
	for _, s := range a {
		xs = append(xs, s.left, s.right)
	}
	for _, s := range b {
		xs = append(xs, s.left, s.right)
	}
	slices.Sort(xs)
	xs = slices.Compact(xs)

	var out []span
	ia, ib := 0, 0
	for i := 0; i+1 < len(xs); i++ {
		x0, x1 := xs[i], xs[i+1]
		for ia < len(a) && a[ia].right <= x0 {
			ia++
		}
		for ib < len(b) && b[ib].right <= x0 {
			ib++
		}
		inA := ia < len(a) && a[ia].left <= x0
		inB := ib < len(b) && b[ib].left <= x0
		if !op.keep(inA, inB) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].right == x0 {
			out[n-1].right = x1
			continue
		}
		out = append(out, span{x0, x1})
	}
	return out
}
