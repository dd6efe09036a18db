package trellis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addWindow(parent *Node, id NodeID, typ SurfaceNodeType, bounds Rect, opaque bool) *Node {
	n := NewSurfaceNode(id, SurfaceConfig{Type: typ})
	n.Properties().SetBounds(bounds)
	n.SetHasBuffer(true)
	if opaque {
		n.SetAbilityBgAlpha(opaqueAbilityAlpha)
	}
	parent.AddChild(n, -1)
	return n
}

func newTestDisplay() *Node {
	return NewDisplayNode(100, DisplayConfig{Width: 200, Height: 200})
}

func TestComposeRecordsPlacement(t *testing.T) {
	s := NewScene(testConfig())
	display := newTestDisplay()
	display.SetDisplayOffset(10, 0)
	w := addWindow(display, 1, SurfaceAppWindow, Rect{Width: 100, Height: 100}, true)

	s.Compose(display)
	assert.Equal(t, RectI{0, 0, 90, 100}, w.DstRect())
	assert.Equal(t, RectI{10, 0, 90, 100}, w.SrcRect())
	assert.Equal(t, TranslateMatrix(-10, 0), w.TotalMatrix())
	assert.Equal(t, 9000, w.OpaqueRegion().Area())

	s.Compose(nil)
	s.Compose(NewCanvasNode(5))
}

func TestComposeFocusedContainerWindow(t *testing.T) {
	s := NewScene(testConfig())
	display := NewDisplayNode(100, DisplayConfig{Width: 400, Height: 400})
	w := addWindow(display, MakeNodeID(3, 1), SurfaceAppWindow, Rect{Width: 200, Height: 300}, true)
	w.SetContainerWindow(true, 2)

	s.Compose(display)
	assert.Equal(t, RegionRect{10, 76, 190, 290}, w.OpaqueRegion().Bound())

	s.SetFocusedOwner(3)
	s.Compose(display)
	assert.Equal(t, RegionRect{10, 104, 190, 290}, w.OpaqueRegion().Bound())
}

func TestCalculateOcclusion(t *testing.T) {
	s := NewScene(testConfig())
	display := newTestDisplay()
	below := addWindow(display, 1, SurfaceAppWindow, Rect{Width: 100, Height: 100}, true)
	above := addWindow(display, 2, SurfaceAppWindow, Rect{X: 50, Y: 50, Width: 100, Height: 100}, true)

	s.Compose(display)
	occ, ok := s.CalculateOcclusion(display)
	require.True(t, ok)
	assert.Equal(t, []NodeID{2, 1}, occ.Visible)
	assert.Equal(t, 10000, above.VisibleRegion().Area())
	assert.Equal(t, 7500, below.VisibleRegion().Area())
	assert.Empty(t, occ.OwnerVisible)
}

func TestCalculateOcclusionSkipsWhenClean(t *testing.T) {
	s := NewScene(testConfig())
	display := newTestDisplay()
	addWindow(display, 1, SurfaceAppWindow, Rect{Width: 100, Height: 100}, true)
	above := addWindow(display, 2, SurfaceAppWindow, Rect{X: 50, Y: 50, Width: 100, Height: 100}, true)

	s.Compose(display)
	_, ok := s.CalculateOcclusion(display)
	require.True(t, ok)

	s.Compose(display)
	_, ok = s.CalculateOcclusion(display)
	assert.False(t, ok)

	above.Properties().SetBounds(Rect{X: 60, Y: 50, Width: 100, Height: 100})
	s.Compose(display)
	_, ok = s.CalculateOcclusion(display)
	assert.True(t, ok)

	s.Compose(display)
	addWindow(display, 3, SurfaceAppWindow, Rect{Width: 10, Height: 10}, true)
	display.ResetSortedChildren()
	_, ok = s.CalculateOcclusion(display)
	assert.True(t, ok)
}

func TestTransparentSurfaceDoesNotOcclude(t *testing.T) {
	s := NewScene(testConfig())
	display := newTestDisplay()
	below := addWindow(display, 1, SurfaceAppWindow, Rect{Width: 100, Height: 100}, true)
	addWindow(display, 2, SurfaceAppWindow, Rect{Width: 100, Height: 100}, false)

	s.Compose(display)
	occ, ok := s.CalculateOcclusion(display)
	require.True(t, ok)
	assert.Equal(t, 10000, below.VisibleRegion().Area())
	assert.Len(t, occ.Visible, 2)
}

func TestStartingWindowInLeashDoesNotOcclude(t *testing.T) {
	s := NewScene(testConfig())
	display := newTestDisplay()
	below := addWindow(display, 1, SurfaceAppWindow, Rect{Width: 100, Height: 100}, true)
	leash := addWindow(display, 2, SurfaceLeashWindow, Rect{Width: 100, Height: 100}, false)
	starting := addWindow(leash, 3, SurfaceAppWindow, Rect{Width: 100, Height: 100}, true)

	s.Compose(display)
	occ, ok := s.CalculateOcclusion(display)
	require.True(t, ok)
	assert.Equal(t, []NodeID{3, 1}, occ.Visible)
	assert.Equal(t, 10000, below.VisibleRegion().Area())
	assert.True(t, below.OcclusionVisible())

	other := NewScene(testConfig())
	starting.SetIsNotifyUIBufferAvailable(true)
	other.Compose(display)
	occ, _ = other.CalculateOcclusion(display)
	assert.Equal(t, []NodeID{3}, occ.Visible)
	assert.False(t, below.OcclusionVisible())
}

func TestOcclusionOwnerVisibility(t *testing.T) {
	s := NewScene(testConfig())
	display := newTestDisplay()
	hidden := addWindow(display, MakeNodeID(4, 1), SurfaceAppWindow, Rect{Width: 100, Height: 100}, true)
	hidden.SetQosCal(true)
	top := addWindow(display, MakeNodeID(5, 1), SurfaceAppWindow, Rect{Width: 200, Height: 200}, true)
	top.SetQosCal(true)

	s.Compose(display)
	occ, ok := s.CalculateOcclusion(display)
	require.True(t, ok)
	assert.Equal(t, map[uint32]bool{4: false, 5: true}, occ.OwnerVisible)
}

func TestSceneRenderPaintsEveryRoot(t *testing.T) {
	s := NewScene(testConfig())
	surfaces := map[NodeID]*fakeSurface{}
	for _, id := range []NodeID{10, 20} {
		s.Register(NewSurfaceNode(id+1, SurfaceConfig{}))
		rs := &fakeSurface{age: 1}
		surfaces[id] = rs
		root := NewRootNode(id)
		root.AttachRenderSurface(id+1, rs)
		root.SetSuggestedBufferSize(10, 10)
		root.Properties().SetBounds(Rect{Width: 10, Height: 10})
		s.Register(root)
	}
	s.Render(time.Unix(5, 0))
	for id, rs := range surfaces {
		assert.Equal(t, 1, rs.flushed, "root %d", id)
	}
}

func TestSceneUpdateRunsAnimations(t *testing.T) {
	s := NewScene(testConfig())
	n := NewCanvasNode(3)
	s.Register(n)
	m := &FloatModifier{ID: 1, Typ: ModifierAlpha}
	n.AddModifier(m)
	n.AddAnimation(NewAnimation(m, 1, 1, nil))

	assert.True(t, s.Update(0.5))
	assert.False(t, s.Update(0.5))
	assert.InDelta(t, 1.0, m.Value, 1e-9)
}

func TestScenePartialRenderStatus(t *testing.T) {
	s := NewScene(testConfig())
	s.SetPartialRenderStatus(PartialRenderDisabled, true)
	assert.Equal(t, PartialRenderDisabled, s.Config().PartialRender)
	assert.True(t, s.Config().RenderForced)
	assert.False(t, s.RenderThread().setDamage)
}
