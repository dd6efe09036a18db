package trellis

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrame struct {
	canvas Canvas
	age    int
	damage *RectI
}

func (f *fakeFrame) Canvas() Canvas { return f.canvas }
func (f *fakeFrame) BufferAge() int { return f.age }
func (f *fakeFrame) SetDamageRegion(r RectI) {
	f.damage = &r
}

type fakeSurface struct {
	age        int
	noCanvas   bool
	requestErr error
	flushErr   error
	cs         ColorGamut

	requested [2]int
	last      *fakeFrame
	flushed   int
}

func (s *fakeSurface) RequestFrame(w, h int, _ time.Time) (Frame, error) {
	if s.requestErr != nil {
		return nil, s.requestErr
	}
	s.requested = [2]int{w, h}
	s.last = &fakeFrame{age: s.age}
	if !s.noCanvas {
		s.last.canvas = NewRecordingCanvas(w, h)
	}
	return s.last, nil
}

func (s *fakeSurface) FlushFrame(Frame, time.Time) error {
	if s.flushErr != nil {
		return s.flushErr
	}
	s.flushed++
	return nil
}

func (s *fakeSurface) QueueSize() int             { return 3 }
func (s *fakeSurface) ColorSpace() ColorGamut     { return s.cs }
func (s *fakeSurface) SetColorSpace(c ColorGamut) { s.cs = c }

const (
	testRootID   NodeID = 1
	testWindowID NodeID = 2
)

func newTestRoot(reg *Registry, rs RenderSurface) *Node {
	reg.RegisterNode(NewSurfaceNode(testWindowID, SurfaceConfig{Type: SurfaceAppWindow}))
	root := NewRootNode(testRootID)
	root.AttachRenderSurface(testWindowID, rs)
	root.SetSuggestedBufferSize(100, 80)
	root.Properties().SetBounds(Rect{Width: 100, Height: 80})
	root.Properties().SetFrame(Rect{Width: 100, Height: 80})
	reg.RegisterNode(root)
	return root
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DirtyAlignBits = 1
	return cfg
}

func renderOnce(v *RenderThreadVisitor, root *Node) {
	root.Prepare(v)
	root.Process(v)
}

func counterDelta(c prometheus.Counter, fn func()) float64 {
	before := testutil.ToFloat64(c)
	fn()
	return testutil.ToFloat64(c) - before
}

func rectOps(l *DrawCmdList, width float64) int {
	n := 0
	for _, op := range l.Ops() {
		if r, ok := op.(DrawRectOp); ok && r.R.Width == width {
			n++
		}
	}
	return n
}

func TestIsValidRootRenderNode(t *testing.T) {
	reg := NewRegistry()
	v := NewRenderThreadVisitor(reg, nil, testConfig())
	root := newTestRoot(reg, &fakeSurface{})
	assert.True(t, v.IsValidRootRenderNode(root))
	assert.False(t, v.IsValidRootRenderNode(NewCanvasNode(9)))

	root.SetEnableRender(false)
	assert.False(t, v.IsValidRootRenderNode(root))
	root.SetEnableRender(true)

	root.SetSuggestedBufferSize(0, 80)
	assert.False(t, v.IsValidRootRenderNode(root))
	root.SetSuggestedBufferSize(100, 80)

	reg.UnregisterNode(testWindowID)
	assert.False(t, v.IsValidRootRenderNode(root))
}

func TestProcessRootFlushesFrame(t *testing.T) {
	reg := NewRegistry()
	rs := &fakeSurface{age: 1}
	v := NewRenderThreadVisitor(reg, nil, testConfig())
	root := newTestRoot(reg, rs)
	root.Properties().SetBackgroundColor(HexColor(0xFF101010))
	reg.SurfaceNode(testWindowID).SetColorSpace(ColorGamutDisplayP3)

	flushed := counterDelta(framesFlushedTotal, func() { renderOnce(v, root) })
	assert.Equal(t, 1.0, flushed)
	assert.Equal(t, 1, rs.flushed)
	assert.Equal(t, [2]int{100, 80}, rs.requested)
	assert.Equal(t, ColorGamutDisplayP3, rs.cs)
	assert.Equal(t, 3, v.QueueSize())
	assert.Equal(t, RectI{0, 0, 100, 80}, v.DirtyRegion())
	require.NotNil(t, rs.last.damage)
	assert.Equal(t, RectI{0, 0, 100, 80}, *rs.last.damage)

	list := rs.last.canvas.(*RecordingCanvas).List()
	assert.Equal(t, 1, rectOps(list, 100))
}

func TestProcessRootScalesBuffer(t *testing.T) {
	reg := NewRegistry()
	rs := &fakeSurface{age: 1}
	v := NewRenderThreadVisitor(reg, nil, testConfig())
	root := newTestRoot(reg, rs)
	root.Properties().ScaleX, root.Properties().ScaleY = 2, 2
	renderOnce(v, root)
	assert.Equal(t, [2]int{200, 160}, rs.requested)
}

func TestProcessRootAbortReasons(t *testing.T) {
	tests := []struct {
		name   string
		rs     RenderSurface
		reason string
	}{
		{"no surface", nil, abortNoSurface},
		{"request frame", &fakeSurface{requestErr: errors.New("no buffer")}, abortRequestFrame},
		{"no canvas", &fakeSurface{noCanvas: true}, abortNoCanvas},
		{"flush frame", &fakeSurface{flushErr: errors.New("lost")}, abortFlushFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			v := NewRenderThreadVisitor(reg, nil, testConfig())
			root := newTestRoot(reg, tt.rs)
			aborted := counterDelta(framesAbortedTotal.WithLabelValues(tt.reason), func() {
				renderOnce(v, root)
			})
			assert.Equal(t, 1.0, aborted)
		})
	}
}

func TestPartialDamageAcrossFrames(t *testing.T) {
	reg := NewRegistry()
	rs := &fakeSurface{age: 1}
	v := NewRenderThreadVisitor(reg, nil, testConfig())
	root := newTestRoot(reg, rs)
	moving := NewCanvasNode(10)
	moving.Properties().SetBounds(Rect{X: 10, Y: 10, Width: 20, Height: 20})
	moving.Properties().SetBackgroundColor(HexColor(0xFFFF0000))
	still := NewCanvasNode(11)
	still.Properties().SetBounds(Rect{X: 60, Y: 50, Width: 10, Height: 10})
	still.Properties().SetBackgroundColor(HexColor(0xFF00FF00))
	root.AddChild(moving, -1)
	root.AddChild(still, -1)

	renderOnce(v, root)
	require.Equal(t, RectI{0, 0, 100, 80}, v.DirtyRegion())

	moving.Properties().SetBounds(Rect{X: 30, Y: 10, Width: 20, Height: 20})
	renderOnce(v, root)
	assert.Equal(t, RectI{10, 10, 40, 20}, v.DirtyRegion())
	require.NotNil(t, rs.last.damage)
	assert.Equal(t, RectI{10, 50, 40, 20}, *rs.last.damage)

	list := rs.last.canvas.(*RecordingCanvas).List()
	assert.Equal(t, 1, rectOps(list, 20))
	assert.Equal(t, 1, rectOps(list, 10))
}

func TestDropOpSkipsUndamagedNodes(t *testing.T) {
	reg := NewRegistry()
	rs := &fakeSurface{age: 1}
	cfg := testConfig()
	cfg.PartialRender = PartialRenderSetDamageAndDropOp
	v := NewRenderThreadVisitor(reg, nil, cfg)
	root := newTestRoot(reg, rs)
	moving := NewCanvasNode(10)
	moving.Properties().SetBounds(Rect{X: 10, Y: 10, Width: 20, Height: 20})
	moving.Properties().SetBackgroundColor(HexColor(0xFFFF0000))
	still := NewCanvasNode(11)
	still.Properties().SetBounds(Rect{X: 60, Y: 50, Width: 10, Height: 10})
	still.Properties().SetBackgroundColor(HexColor(0xFF00FF00))
	root.AddChild(moving, -1)
	root.AddChild(still, -1)
	renderOnce(v, root)

	moving.Properties().SetBounds(Rect{X: 30, Y: 10, Width: 20, Height: 20})
	dropped := counterDelta(opDroppedNodesTotal, func() { renderOnce(v, root) })
	assert.Equal(t, 1.0, dropped)
	assert.True(t, still.IsRenderUpdateIgnored())
	assert.False(t, moving.IsRenderUpdateIgnored())

	list := rs.last.canvas.(*RecordingCanvas).List()
	assert.Equal(t, 1, rectOps(list, 20))
	assert.Zero(t, rectOps(list, 10))
}

func TestUnknownBufferAgeRedrawsEverything(t *testing.T) {
	reg := NewRegistry()
	rs := &fakeSurface{age: 1}
	v := NewRenderThreadVisitor(reg, nil, testConfig())
	root := newTestRoot(reg, rs)
	child := NewCanvasNode(10)
	child.Properties().SetBounds(Rect{X: 10, Y: 10, Width: 20, Height: 20})
	root.AddChild(child, -1)
	renderOnce(v, root)

	rs.age = -1
	child.Properties().SetBounds(Rect{X: 12, Y: 10, Width: 20, Height: 20})
	renderOnce(v, root)
	assert.Equal(t, RectI{0, 0, 100, 80}, v.DirtyRegion())
	assert.Nil(t, rs.last.damage)
}

func TestSetPartialRenderStatus(t *testing.T) {
	v := NewRenderThreadVisitor(NewRegistry(), nil, testConfig())
	tests := []struct {
		status              PartialRenderType
		forced              bool
		setDamage, dropOps bool
	}{
		{PartialRenderDisabled, false, false, false},
		{PartialRenderSetDamage, false, true, false},
		{PartialRenderSetDamageAndDropOp, false, true, true},
		{PartialRenderSetDamageAndDropOpOcclusion, false, true, false},
		{PartialRenderSetDamageAndDropOp, true, false, false},
	}
	for _, tt := range tests {
		v.SetPartialRenderStatus(tt.status, tt.forced)
		assert.Equal(t, tt.setDamage, v.setDamage, "%s forced=%v", tt.status, tt.forced)
		assert.Equal(t, tt.dropOps, v.opDropped, "%s forced=%v", tt.status, tt.forced)
	}
}

func TestDisabledPartialRenderSkipsDamage(t *testing.T) {
	reg := NewRegistry()
	rs := &fakeSurface{age: 1}
	cfg := testConfig()
	cfg.PartialRender = PartialRenderDisabled
	v := NewRenderThreadVisitor(reg, nil, cfg)
	root := newTestRoot(reg, rs)
	renderOnce(v, root)
	renderOnce(v, root)

	assert.Nil(t, rs.last.damage)
	assert.Equal(t, RectI{0, 0, 100, 80}, v.DirtyRegion())
}

func TestChildSurfacesPublishedToMirror(t *testing.T) {
	cfg := testConfig()
	app := NewScene(cfg)
	mirror := NewScene(cfg)
	var batches [][]QueuedCommand
	app.SetFlushHandler(func(batch []QueuedCommand, ts time.Time) {
		batches = append(batches, batch)
		mirror.Apply(batch, ts)
	})

	rs := &fakeSurface{age: 1}
	root := newTestRoot(app.Registry(), rs)
	child := NewSurfaceNode(5, SurfaceConfig{Name: "video"})
	child.Properties().SetBounds(Rect{X: 10, Y: 10, Width: 50, Height: 40})
	root.AddChild(child, -1)
	app.Register(child)

	mirrorWindow := NewSurfaceNode(testWindowID, SurfaceConfig{})
	mirrorChild := NewSurfaceNode(5, SurfaceConfig{})
	mirror.Register(mirrorWindow)
	mirror.Register(mirrorChild)

	require.True(t, app.RenderRoot(testRootID, time.Unix(1, 0)))
	require.Len(t, batches, 1)
	assert.Equal(t, []NodeID{5}, root.RootChildSurfaceIDs())
	assert.Equal(t, []NodeID{5}, ids(mirrorWindow.Children()))
	assert.Equal(t, Rect{0, 0, 100, 80}, mirrorChild.ContextClipRegion())
	assert.Equal(t, Rect{10, 10, 50, 40}, mirrorChild.Properties().Bounds)

	app.RenderRoot(testRootID, time.Unix(2, 0))
	require.Len(t, batches, 2)
	for _, qc := range batches[1] {
		assert.IsType(t, SetContextBoundsCmd{}, qc.Cmd)
	}
	assert.Equal(t, []NodeID{5}, ids(mirrorWindow.Children()))

	root.SetNeedUpdateSurfaceNode(true)
	app.RenderRoot(testRootID, time.Unix(3, 0))
	require.Len(t, batches, 3)
	assert.IsType(t, ClearSurfaceChildrenCmd{}, batches[2][len(batches[2])-2].Cmd)
	assert.False(t, root.NeedUpdateSurfaceNode())
}

func TestInvisibleSurfaceSendsZeroAlpha(t *testing.T) {
	reg := NewRegistry()
	tx := NewTransaction(nil)
	v := NewRenderThreadVisitor(reg, tx, testConfig())
	root := newTestRoot(reg, &fakeSurface{age: 1})
	child := NewSurfaceNode(5, SurfaceConfig{})
	child.Properties().SetBounds(Rect{Width: 10, Height: 10})
	root.AddChild(child, -1)
	renderOnce(v, root)
	tx.Drain()

	child.Properties().SetVisible(false)
	renderOnce(v, root)
	assert.Zero(t, child.ContextAlpha())
	assert.Empty(t, root.RootChildSurfaceIDs())
}

func TestSceneRenderRootUnknown(t *testing.T) {
	s := NewScene(testConfig())
	assert.False(t, s.RenderRoot(42, time.Now()))
}

func TestProcessSurfaceWaitsForVisitLock(t *testing.T) {
	reg := NewRegistry()
	v := NewRenderThreadVisitor(reg, nil, testConfig())
	root := newTestRoot(reg, &fakeSurface{age: 1})
	win := NewSurfaceNode(5, SurfaceConfig{Type: SurfaceAppWindow})
	win.Properties().SetBounds(Rect{Width: 20, Height: 20})
	root.AddChild(win, -1)
	reg.RegisterNode(win)

	require.True(t, win.ParallelVisitTryLock())
	done := make(chan struct{})
	go func() {
		renderOnce(v, root)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("render finished while the surface was locked")
	case <-time.After(20 * time.Millisecond):
	}
	win.ParallelVisitUnlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("render did not resume after unlock")
	}
	assert.True(t, win.ParallelVisitTryLock())
	win.ParallelVisitUnlock()
}

func TestProcessRootRecordsOverdraw(t *testing.T) {
	tests := []struct {
		name     string
		overdraw bool
		ratio    float64
	}{
		{"counting", true, 1.25},
		{"off", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			cfg := testConfig()
			cfg.Overdraw = tt.overdraw
			v := NewRenderThreadVisitor(reg, nil, cfg)
			root := newTestRoot(reg, &fakeSurface{age: 1})
			root.Properties().SetBackgroundColor(HexColor(0xFF101010))
			child := NewCanvasNode(10)
			child.Properties().SetBounds(Rect{X: 10, Y: 10, Width: 50, Height: 40})
			child.Properties().SetBackgroundColor(HexColor(0xFFFF0000))
			root.AddChild(child, -1)

			renderOnce(v, root)
			assert.Equal(t, 3, v.LastDrawOps())
			assert.InDelta(t, tt.ratio, v.LastOverdrawRatio(), 1e-9)
			if tt.overdraw {
				assert.InDelta(t, tt.ratio, testutil.ToFloat64(overdrawRatio), 1e-9)
			}
		})
	}
}

func TestProcessRootHighContrast(t *testing.T) {
	reg := NewRegistry()
	rs := &fakeSurface{age: 1}
	cfg := testConfig()
	cfg.HighContrast = true
	v := NewRenderThreadVisitor(reg, nil, cfg)
	root := newTestRoot(reg, rs)
	root.Properties().SetBackgroundColor(HexColor(0xFF336699))
	renderOnce(v, root)

	var fills []Color
	for _, op := range rs.last.canvas.(*RecordingCanvas).List().Ops() {
		if r, ok := op.(DrawRectOp); ok {
			fills = append(fills, r.C)
		}
	}
	assert.Equal(t, []Color{ColorBlack}, fills)
}

func TestProcessRootSkipsTransparentChild(t *testing.T) {
	tests := []struct {
		name       string
		alpha      float64
		ops, fills int
	}{
		{"opaque", 1, 3, 1},
		{"transparent", 0, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			rs := &fakeSurface{age: 1}
			v := NewRenderThreadVisitor(reg, nil, testConfig())
			root := newTestRoot(reg, rs)
			root.Properties().SetBackgroundColor(HexColor(0xFF101010))
			child := NewCanvasNode(10)
			child.Properties().SetBounds(Rect{X: 10, Y: 10, Width: 50, Height: 40})
			child.Properties().SetBackgroundColor(HexColor(0xFFFF0000))
			child.Properties().SetAlpha(tt.alpha)
			root.AddChild(child, -1)

			renderOnce(v, root)
			assert.Equal(t, tt.ops, v.LastDrawOps())
			assert.Equal(t, tt.fills, rectOps(rs.last.canvas.(*RecordingCanvas).List(), 50))
		})
	}
}
