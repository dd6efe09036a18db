package trellis

import (
	"slices"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Animation tweens the value of one float modifier. Each step writes the
// value into the modifier and marks the owning node dirty so the next
// Prepare reapplies modifiers.
//
// An exit animation also holds a disappearing transition on its node for
// as long as it runs, so a removed node stays painted until it finishes.
type Animation struct {
	target   *FloatModifier
	tween    *gween.Tween
	owner    *Node
	exit     bool
	done     bool
	onFinish func()
}

// NewAnimation creates an animation of m from its current value to to over
// duration seconds. A nil fn animates linearly.
func NewAnimation(m *FloatModifier, to float64, duration float32, fn ease.TweenFunc) *Animation {
	if fn == nil {
		fn = ease.Linear
	}
	return &Animation{
		target: m,
		tween:  gween.New(float32(m.Value), float32(to), duration, fn),
	}
}

// NewExitAnimation is NewAnimation for an exit transition.
func NewExitAnimation(m *FloatModifier, to float64, duration float32, fn ease.TweenFunc) *Animation {
	a := NewAnimation(m, to, duration, fn)
	a.exit = true
	return a
}

// OnFinish sets a callback run once when the animation completes.
func (a *Animation) OnFinish(fn func()) *Animation {
	a.onFinish = fn
	return a
}

// IsExit reports whether a holds a disappearing transition.
func (a *Animation) IsExit() bool { return a.exit }

// Done reports whether a has finished or was cancelled.
func (a *Animation) Done() bool { return a.done }

// Owner returns the node currently running a.
func (a *Animation) Owner() *Node { return a.owner }

// step advances a by dt seconds and reports whether it finished.
func (a *Animation) step(dt float32) bool {
	if a.done {
		return true
	}
	val, finished := a.tween.Update(dt)
	a.target.Value = float64(val)
	if a.owner != nil && !a.owner.disposed {
		a.owner.SetDirty()
	}
	if finished {
		a.finish()
	}
	return finished
}

func (a *Animation) finish() {
	if a.done {
		return
	}
	a.done = true
	if a.exit && a.owner != nil {
		a.owner.RemoveDisappearingTransition()
	}
	if a.onFinish != nil {
		a.onFinish()
	}
}

// AddAnimation starts a on n. An exit animation registers a disappearing
// transition on n.
func (n *Node) AddAnimation(a *Animation) {
	if a == nil || a.done || a.owner == n {
		return
	}
	if old := a.owner; old != nil && old.detachAnimation(a) && a.exit {
		old.RemoveDisappearingTransition()
	}
	a.owner = n
	if a.exit {
		n.AddDisappearingTransition()
	}
	n.animations = append(n.animations, a)
}

// RemoveAnimation cancels a. The animated value stays where it was.
func (n *Node) RemoveAnimation(a *Animation) {
	if n.detachAnimation(a) {
		a.finish()
	}
}

func (n *Node) detachAnimation(a *Animation) bool {
	i := slices.Index(n.animations, a)
	if i < 0 {
		return false
	}
	n.animations = slices.Delete(n.animations, i, i+1)
	return true
}

// Animations returns the running animations of n.
func (n *Node) Animations() []*Animation { return n.animations }

// Animate steps every animation of n by dt seconds, dropping finished ones.
// Animations started from a finish callback join the list and are first
// stepped on the next call. It reports whether any animation is still
// running.
func (n *Node) Animate(dt float32) bool {
	if len(n.animations) == 0 {
		return false
	}
	stepping := slices.Clone(n.animations)
	for _, a := range stepping {
		if a.owner != n {
			continue
		}
		a.step(dt)
	}
	n.animations = slices.DeleteFunc(n.animations, func(a *Animation) bool { return a.done })
	return len(n.animations) > 0
}

// FallbackAnimationsTo moves the running animations of n to dst so they
// run to completion after n is gone. Moved exit animations release their
// hold on n.
func (n *Node) FallbackAnimationsTo(dst *Node) {
	if dst == nil || dst == n || len(n.animations) == 0 {
		return
	}
	moved := n.animations
	n.animations = nil
	for _, a := range moved {
		if a.exit {
			a.exit = false
			n.RemoveDisappearingTransition()
		}
		a.owner = dst
		dst.animations = append(dst.animations, a)
	}
	Logger().Debug("animations moved to fallback", "node", n.id, "count", len(moved))
}
