package trellis

import (
	"image"
	"sync"
)

// DrawOp is one recorded canvas call.
type DrawOp interface {
	Playback(c Canvas)
}

type (
	SaveOp      struct{}
	RestoreOp   struct{}
	ConcatOp    struct{ M Matrix }
	SetMatrixOp struct{ M Matrix }
	ClipRectOp  struct{ R Rect }
	ClearOp     struct{ C Color }

	DrawRectOp struct {
		R Rect
		C Color
	}
	ClipRoundRectOp struct {
		R      Rect
		Radius float64
	}
	DrawRoundRectOp struct {
		R      Rect
		Radius float64
		C      Color
	}
	StrokeRectOp struct {
		R     Rect
		Width float64
		C     Color
	}
	DrawImageOp struct {
		Img   image.Image
		Dst   Rect
		Alpha float64
	}
	DrawShadowOp struct {
		R      Rect
		Radius float64
		S      Shadow
	}
	DrawFilterOp struct {
		R Rect
		F Filter
	}
)

func (SaveOp) Playback(c Canvas)            { c.Save() }
func (RestoreOp) Playback(c Canvas)         { c.Restore() }
func (o ConcatOp) Playback(c Canvas)        { c.Concat(o.M) }
func (o SetMatrixOp) Playback(c Canvas)     { c.SetMatrix(o.M) }
func (o ClipRectOp) Playback(c Canvas)      { c.ClipRect(o.R) }
func (o ClipRoundRectOp) Playback(c Canvas) { c.ClipRoundRect(o.R, o.Radius) }
func (o ClearOp) Playback(c Canvas)         { c.Clear(o.C) }
func (o DrawRectOp) Playback(c Canvas)      { c.DrawRect(o.R, o.C) }
func (o DrawRoundRectOp) Playback(c Canvas) { c.DrawRoundRect(o.R, o.Radius, o.C) }
func (o StrokeRectOp) Playback(c Canvas)    { c.StrokeRect(o.R, o.Width, o.C) }
func (o DrawImageOp) Playback(c Canvas)     { c.DrawImage(o.Img, o.Dst, o.Alpha) }
func (o DrawShadowOp) Playback(c Canvas)    { c.DrawShadow(o.R, o.Radius, o.S) }
func (o DrawFilterOp) Playback(c Canvas)    { c.DrawFilter(o.R, o.F) }

// DrawCmdList is a recorded sequence of canvas calls over a Width x Height
// area. It is safe to play back while another goroutine appends.
type DrawCmdList struct {
	Width, Height int

	mu  sync.Mutex
	ops []DrawOp
}

// NewDrawCmdList returns an empty list for a w x h area.
func NewDrawCmdList(w, h int) *DrawCmdList {
	return &DrawCmdList{Width: w, Height: h}
}

// AddOp appends op.
func (l *DrawCmdList) AddOp(op DrawOp) {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
}

// ClearOps drops every recorded op.
func (l *DrawCmdList) ClearOps() {
	l.mu.Lock()
	l.ops = nil
	l.mu.Unlock()
}

// Len returns the number of recorded ops.
func (l *DrawCmdList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ops)
}

// Ops returns a copy of the recorded ops.
func (l *DrawCmdList) Ops() []DrawOp {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DrawOp(nil), l.ops...)
}

// Playback replays the list onto c. The canvas state is restored
// afterward. A list with an empty area draws nothing.
func (l *DrawCmdList) Playback(c Canvas) {
	if l.Width <= 0 || l.Height <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	count := c.Save()
	for _, op := range l.ops {
		if op != nil {
			op.Playback(c)
		}
	}
	c.RestoreToCount(count)
}

// RecordingCanvas is a Canvas that records every call into a DrawCmdList.
type RecordingCanvas struct {
	stateStack
	list *DrawCmdList
}

// NewRecordingCanvas returns a canvas recording into a new w x h list.
func NewRecordingCanvas(w, h int) *RecordingCanvas {
	return &RecordingCanvas{
		stateStack: newStateStack(w, h),
		list:       NewDrawCmdList(w, h),
	}
}

// List returns the list being recorded.
func (c *RecordingCanvas) List() *DrawCmdList { return c.list }

func (c *RecordingCanvas) Save() int {
	c.list.AddOp(SaveOp{})
	return c.stateStack.Save()
}

func (c *RecordingCanvas) Restore() {
	if len(c.saved) == 0 {
		return
	}
	c.list.AddOp(RestoreOp{})
	c.stateStack.Restore()
}

func (c *RecordingCanvas) RestoreToCount(count int) {
	if count < 1 {
		count = 1
	}
	for len(c.saved) >= count {
		c.Restore()
	}
}

func (c *RecordingCanvas) Concat(m Matrix) {
	c.list.AddOp(ConcatOp{m})
	c.stateStack.Concat(m)
}

func (c *RecordingCanvas) SetMatrix(m Matrix) {
	c.list.AddOp(SetMatrixOp{m})
	c.stateStack.SetMatrix(m)
}

func (c *RecordingCanvas) Translate(dx, dy float64) { c.Concat(TranslateMatrix(dx, dy)) }
func (c *RecordingCanvas) Scale(sx, sy float64)     { c.Concat(ScaleMatrix(sx, sy)) }

func (c *RecordingCanvas) ClipRect(r Rect) {
	c.list.AddOp(ClipRectOp{r})
	c.stateStack.ClipRect(r)
}

func (c *RecordingCanvas) ClipRoundRect(r Rect, radius float64) {
	c.list.AddOp(ClipRoundRectOp{r, radius})
	c.stateStack.ClipRoundRect(r, radius)
}

func (c *RecordingCanvas) Clear(col Color) { c.list.AddOp(ClearOp{col}) }

func (c *RecordingCanvas) DrawRect(r Rect, col Color) { c.list.AddOp(DrawRectOp{r, col}) }

func (c *RecordingCanvas) DrawRoundRect(r Rect, radius float64, col Color) {
	c.list.AddOp(DrawRoundRectOp{r, radius, col})
}

func (c *RecordingCanvas) StrokeRect(r Rect, width float64, col Color) {
	c.list.AddOp(StrokeRectOp{r, width, col})
}

func (c *RecordingCanvas) DrawImage(img image.Image, dst Rect, alpha float64) {
	c.list.AddOp(DrawImageOp{img, dst, alpha})
}

func (c *RecordingCanvas) DrawShadow(r Rect, radius float64, s Shadow) {
	c.list.AddOp(DrawShadowOp{r, radius, s})
}

func (c *RecordingCanvas) DrawFilter(r Rect, f Filter) {
	c.list.AddOp(DrawFilterOp{r, f})
}
