package trellis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFrameRelaysOutChildren(t *testing.T) {
	dm := NewDirtyRegionManager()
	p, c := NewCanvasNode(1), NewCanvasNode(2)
	p.Properties().SetBounds(Rect{Width: 200, Height: 200})
	c.Properties().SetBounds(Rect{Width: 50, Height: 50})
	p.AddChild(c, -1)
	layout(p, nil, dm)
	require.Equal(t, 0, c.Properties().AbsRect().Left)

	p.Properties().SetFrame(Rect{X: 30, Y: 30, Width: 200, Height: 200})
	assert.True(t, p.Properties().IsGeometryDirty())
	parentDirty := p.Update(dm, nil, false)
	assert.True(t, parentDirty)
	c.Update(dm, p.Properties(), parentDirty)
	assert.Equal(t, RectI{30, 30, 50, 50}, c.Properties().AbsRect())
}

func TestFrameModifierChangeIsGeometry(t *testing.T) {
	n := NewCanvasNode(1)
	frame := &RectModifier{ID: 2, Typ: ModifierFrame, Value: Rect{Width: 100, Height: 100}}
	n.AddModifier(&RectModifier{ID: 1, Typ: ModifierBounds, Value: Rect{Width: 100, Height: 100}})
	n.AddModifier(frame)
	n.ApplyModifiers()
	n.Properties().ResetDirty()

	frame.Value = Rect{X: 10, Width: 100, Height: 100}
	n.SetDirty()
	n.ApplyModifiers()
	assert.True(t, n.Properties().IsGeometryDirty())
	assert.Equal(t, frame.Value, n.Properties().Frame)
}

func TestAddModifierGeometrySingletons(t *testing.T) {
	tests := []struct {
		name string
		typ  ModifierType
		get  func(*Properties) Rect
	}{
		{"bounds", ModifierBounds, func(p *Properties) Rect { return p.Bounds }},
		{"frame", ModifierFrame, func(p *Properties) Rect { return p.Frame }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewCanvasNode(1)
			first := &RectModifier{ID: 1, Typ: tt.typ, Value: Rect{Width: 10, Height: 10}}
			second := &RectModifier{ID: 2, Typ: tt.typ, Value: Rect{Width: 50, Height: 50}}
			n.AddModifier(first)
			n.AddModifier(second)

			m, ok := n.Modifier(2)
			require.True(t, ok)
			assert.Same(t, first, m)
			n.ApplyModifiers()
			assert.Equal(t, first.Value, tt.get(n.Properties()))

			n.RemoveModifier(1)
			n.ApplyModifiers()
			assert.Equal(t, first.Value, tt.get(n.Properties()), "second id still applies the first modifier")
		})
	}
}

func TestRemoveModifierRecomputesOverlay(t *testing.T) {
	n := NewCanvasNode(1)
	n.AddModifier(&DrawCmdModifier{ID: 5, Typ: ModifierOverlayStyle, OverlayBounds: &RectI{0, 0, 30, 20}})
	n.AddModifier(&DrawCmdModifier{ID: 6, Typ: ModifierOverlayStyle, OverlayBounds: &RectI{10, 10, 40, 40}})
	n.ApplyModifiers()
	require.Equal(t, RectI{0, 0, 50, 50}, n.Properties().OverlayBounds())

	n.RemoveModifier(5)
	assert.Len(t, n.DrawCmdModifiers(ModifierOverlayStyle), 1)
	assert.Equal(t, RectI{10, 10, 40, 40}, n.Properties().OverlayBounds())

	n.RemoveModifier(6)
	assert.True(t, n.Properties().OverlayBounds().IsEmpty())
}

func TestShouldPaint(t *testing.T) {
	tests := []struct {
		name       string
		visible    bool
		transition bool
		alpha      float64
		want       bool
	}{
		{"visible", true, false, 1, true},
		{"visible transparent", true, false, 0, false},
		{"hidden", false, false, 1, false},
		{"hidden transitioning", false, true, 1, true},
		{"hidden transitioning transparent", false, true, 0, false},
		{"visible transitioning transparent", true, true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewCanvasNode(1)
			n.Properties().SetVisible(tt.visible)
			n.Properties().SetAlpha(tt.alpha)
			if tt.transition {
				n.AddDisappearingTransition()
			}
			assert.Equal(t, tt.want, n.ShouldPaint())
		})
	}
}

func TestUpdateDamagesOldAndNewFootprint(t *testing.T) {
	dm := NewDirtyRegionManager()
	n := NewCanvasNode(1)
	n.Properties().SetBounds(Rect{X: 10, Y: 10, Width: 20, Height: 20})
	n.Update(dm, nil, false)
	require.Equal(t, RectI{10, 10, 20, 20}, dm.DirtyRegion())
	require.Equal(t, RectI{10, 10, 20, 20}, n.OldDirty())

	dm.Clear()
	n.Properties().SetBounds(Rect{X: 60, Y: 10, Width: 20, Height: 20})
	n.Update(dm, nil, false)
	assert.Equal(t, RectI{10, 10, 70, 20}, dm.DirtyRegion())
	assert.Equal(t, RectI{60, 10, 20, 20}, n.OldDirty())

	dm.Clear()
	n.Update(dm, nil, false)
	assert.True(t, dm.DirtyRegion().IsEmpty(), "clean node adds no damage")
}
