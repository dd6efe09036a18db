package trellis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanema/gween/ease"
)

func TestAnimationStepsModifier(t *testing.T) {
	n := NewCanvasNode(1)
	m := &FloatModifier{ID: 1, Typ: ModifierTranslateX}
	n.AddModifier(m)
	a := NewAnimation(m, 10, 1, nil)
	n.AddAnimation(a)
	assert.Same(t, n, a.Owner())

	n.SetClean()
	assert.True(t, n.Animate(0.5))
	assert.InDelta(t, 5.0, m.Value, 1e-4)
	assert.True(t, n.IsDirty())

	n.ApplyModifiers()
	assert.InDelta(t, 5.0, n.Properties().TranslateX, 1e-4)
}

func TestAnimationFinishes(t *testing.T) {
	n := NewCanvasNode(1)
	m := &FloatModifier{ID: 1, Typ: ModifierAlpha, Value: 1}
	finished := 0
	a := NewAnimation(m, 0, 0.5, ease.OutQuad).OnFinish(func() { finished++ })
	n.AddAnimation(a)

	assert.False(t, n.Animate(1))
	assert.True(t, a.Done())
	assert.Zero(t, m.Value)
	assert.Empty(t, n.Animations())
	assert.False(t, n.Animate(1))
	assert.Equal(t, 1, finished)

	n.AddAnimation(a)
	assert.Empty(t, n.Animations())
}

func TestAddAnimationTwiceIsNoop(t *testing.T) {
	n := NewCanvasNode(1)
	a := NewAnimation(&FloatModifier{}, 1, 1, nil)
	n.AddAnimation(a)
	n.AddAnimation(a)
	n.AddAnimation(nil)
	assert.Len(t, n.Animations(), 1)
}

func TestAnimationMovesBetweenNodes(t *testing.T) {
	from, to := NewCanvasNode(1), NewCanvasNode(2)
	a := NewExitAnimation(&FloatModifier{}, 1, 1, nil)
	from.AddAnimation(a)
	require.True(t, from.HasDisappearingTransition(false))

	to.AddAnimation(a)
	assert.Empty(t, from.Animations())
	assert.False(t, from.HasDisappearingTransition(false))
	assert.True(t, to.HasDisappearingTransition(false))
	assert.False(t, a.Done())
	assert.Same(t, to, a.Owner())
}

func TestRemoveAnimationCancels(t *testing.T) {
	n := NewCanvasNode(1)
	m := &FloatModifier{}
	a := NewAnimation(m, 10, 1, nil)
	n.AddAnimation(a)
	n.Animate(0.25)
	n.RemoveAnimation(a)

	assert.True(t, a.Done())
	assert.Empty(t, n.Animations())
	assert.InDelta(t, 2.5, m.Value, 1e-4)
}

func TestExitAnimationKeepsNodePainted(t *testing.T) {
	p, c := NewCanvasNode(1), NewCanvasNode(2)
	p.AddChild(c, -1)
	m := &FloatModifier{ID: 1, Typ: ModifierAlpha, Value: 1}
	c.AddModifier(m)
	a := NewExitAnimation(m, 0, 1, nil)
	require.True(t, a.IsExit())
	c.AddAnimation(a)

	p.RemoveChild(c, false)
	assert.Equal(t, 1, p.DisappearingChildrenCount())
	assert.Equal(t, []NodeID{2}, ids(p.SortedChildren()))

	c.Properties().SetVisible(false)
	assert.True(t, c.ShouldPaint())

	c.Animate(1)
	assert.False(t, c.HasDisappearingTransition(false))
	assert.Empty(t, p.SortedChildren())
	assert.Zero(t, p.DisappearingChildrenCount())
	assert.Nil(t, c.Parent())
}

func TestFallbackAnimationsReleaseExitHold(t *testing.T) {
	n, fb := NewCanvasNode(1), NewCanvasNode(2)
	a := NewExitAnimation(&FloatModifier{}, 1, 1, nil)
	n.AddAnimation(a)
	n.FallbackAnimationsTo(fb)

	assert.False(t, n.HasDisappearingTransition(false))
	assert.False(t, a.IsExit())
	assert.Same(t, fb, a.Owner())
	assert.Len(t, fb.Animations(), 1)
}

func TestAnimationChainedFromOnFinish(t *testing.T) {
	p, c := NewCanvasNode(1), NewCanvasNode(2)
	p.AddChild(c, -1)
	m := &FloatModifier{ID: 1, Typ: ModifierAlpha, Value: 1}
	next := NewExitAnimation(m, 0, 1, nil)
	first := NewAnimation(m, 0.5, 1, nil).OnFinish(func() { c.AddAnimation(next) })
	c.AddAnimation(first)

	assert.True(t, c.Animate(1))
	require.Equal(t, []*Animation{next}, c.Animations())
	require.True(t, c.HasDisappearingTransition(false))
	assert.InDelta(t, 0.5, m.Value, 1e-4)

	p.RemoveChild(c, false)
	assert.Equal(t, 1, p.DisappearingChildrenCount())

	assert.False(t, c.Animate(1))
	assert.True(t, next.Done())
	assert.False(t, c.HasDisappearingTransition(false))
	assert.Empty(t, p.SortedChildren())
	assert.Zero(t, p.DisappearingChildrenCount())
}

func TestAnimationMovedAwayByCallbackIsNotStepped(t *testing.T) {
	n, other := NewCanvasNode(1), NewCanvasNode(2)
	m := &FloatModifier{}
	moved := NewAnimation(m, 10, 1, nil)
	trigger := NewAnimation(&FloatModifier{}, 1, 0.1, nil).OnFinish(func() { other.AddAnimation(moved) })
	n.AddAnimation(trigger)
	n.AddAnimation(moved)

	assert.False(t, n.Animate(0.5))
	assert.Zero(t, m.Value)
	assert.Same(t, other, moved.Owner())
	assert.Equal(t, []*Animation{moved}, other.Animations())
}
