package trellis

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionBuffersUntilFlush(t *testing.T) {
	var got []QueuedCommand
	var gotTS time.Time
	flushes := 0
	tx := NewTransaction(func(batch []QueuedCommand, ts time.Time) {
		flushes++
		got, gotTS = batch, ts
	})

	tx.Send(nil, 1, FollowNone)
	tx.Send(ClearSurfaceChildrenCmd{ID: 1}, 1, FollowToSelf)
	tx.Send(AddSurfaceChildCmd{ID: 1, Child: 2, Index: -1}, 1, FollowToSelf)
	assert.Equal(t, 2, tx.Len())

	ts := time.Unix(100, 0)
	tx.Flush(ts)
	require.Equal(t, 1, flushes)
	require.Len(t, got, 2)
	assert.Equal(t, ClearSurfaceChildrenCmd{ID: 1}, got[0].Cmd)
	assert.Equal(t, FollowToSelf, got[1].Follow)
	assert.Equal(t, ts, gotTS)
	assert.Zero(t, tx.Len())

	tx.Flush(ts)
	assert.Equal(t, 1, flushes)
}

func TestTransactionConcurrentSend(t *testing.T) {
	tx := NewTransaction(nil)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tx.Send(SetContextAlphaCmd{ID: NodeID(i), Alpha: 1}, NodeID(i), FollowToSelf)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, tx.Drain(), 800)
	assert.Zero(t, tx.Len())
}

func TestApplyToMirrorsSurfaceState(t *testing.T) {
	r := NewRegistry()
	s := NewSurfaceNode(1, SurfaceConfig{})
	c := NewCanvasNode(2)
	r.RegisterNode(s)
	r.RegisterNode(c)

	m := TranslateMatrix(5, 6)
	clip := Rect{0, 0, 40, 30}
	bounds := Rect{1, 2, 40, 30}
	ApplyTo(r, []QueuedCommand{
		{Cmd: AddSurfaceChildCmd{ID: 1, Child: 2, Index: -1}},
		{Cmd: SetContextMatrixCmd{ID: 1, M: m}},
		{Cmd: SetContextAlphaCmd{ID: 1, Alpha: 0.5}},
		{Cmd: SetContextClipRegionCmd{ID: 1, Clip: clip}},
		{Cmd: SetContextBoundsCmd{ID: 1, Bounds: bounds}},
		{Cmd: SetContextAlphaCmd{ID: 99, Alpha: 0}},
		{Cmd: AddSurfaceChildCmd{ID: 1, Child: 99, Index: -1}},
	})

	assert.Equal(t, []NodeID{2}, ids(s.Children()))
	assert.Equal(t, m, s.ContextMatrix())
	assert.Equal(t, 0.5, s.ContextAlpha())
	assert.Equal(t, clip, s.ContextClipRegion())
	assert.Equal(t, bounds, s.Properties().Bounds)

	ClearSurfaceChildrenCmd{ID: 1}.Apply(r)
	assert.Zero(t, s.ChildrenCount())
}

func TestContextSettersSendOnChange(t *testing.T) {
	tx := NewTransaction(nil)
	s := NewSurfaceNode(1, SurfaceConfig{})
	s.SetClean()
	s.Properties().ResetDirty()
	require.False(t, s.IsDirty())

	s.SetContextMatrix(TranslateMatrix(1, 1), tx)
	s.SetContextMatrix(TranslateMatrix(1, 1), tx)
	s.SetContextAlpha(0.25, tx)
	s.SetContextAlpha(0.25, tx)
	s.SetContextClipRegion(Rect{0, 0, 5, 5}, tx)
	assert.True(t, s.IsDirty())

	batch := tx.Drain()
	require.Len(t, batch, 3)
	assert.IsType(t, SetContextMatrixCmd{}, batch[0].Cmd)
	assert.IsType(t, SetContextAlphaCmd{}, batch[1].Cmd)
	assert.IsType(t, SetContextClipRegionCmd{}, batch[2].Cmd)

	s.SetContextAlpha(0.75, nil)
	assert.Equal(t, 0.75, s.ContextAlpha())
	assert.Zero(t, tx.Len())
}

func TestContextBoundsAlwaysSent(t *testing.T) {
	tx := NewTransaction(nil)
	s := NewSurfaceNode(1, SurfaceConfig{})
	s.SetContextBounds(Rect{0, 0, 1, 1}, tx)
	s.SetContextBounds(Rect{0, 0, 1, 1}, tx)
	assert.Equal(t, 2, tx.Len())

	NewCanvasNode(2).SetContextBounds(Rect{}, tx)
	assert.Equal(t, 2, tx.Len())
}

func TestProxyRelaysToTarget(t *testing.T) {
	tx := NewTransaction(nil)
	p := NewProxyNode(1, 9)
	assert.Equal(t, NodeID(9), p.ProxyTarget())

	m := TranslateMatrix(3, 4)
	p.SetProxyContext(m, 0.5, tx)
	p.SetProxyContext(m, 0.5, tx)

	batch := tx.Drain()
	require.Len(t, batch, 2)
	for _, qc := range batch {
		assert.Equal(t, NodeID(9), qc.Target)
		assert.Equal(t, NodeID(9), qc.Cmd.Target())
	}
	gotM, gotA := p.ProxyContext()
	assert.Equal(t, m, gotM)
	assert.Equal(t, 0.5, gotA)
}

func TestCommandStrings(t *testing.T) {
	assert.Equal(t, "ClearSurfaceChildren(3)", ClearSurfaceChildrenCmd{ID: 3}.String())
	assert.Equal(t, "AddSurfaceChild(3, 4, -1)", AddSurfaceChildCmd{ID: 3, Child: 4, Index: -1}.String())
}
