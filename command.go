package trellis

import (
	"fmt"
	"sync"
	"time"
)

// FollowType tells the receiving side which node a command travels with.
type FollowType uint8

const (
	FollowNone FollowType = iota
	FollowToParent
	FollowToSelf
)

// Command is a node mutation sent to a mirrored scene. Apply replays it
// against the receiving registry; a missing target is ignored.
type Command interface {
	Target() NodeID
	Apply(r *Registry)
}

// CommandSink accepts commands for delivery. Send never blocks on the
// receiver and reports nothing back.
type CommandSink interface {
	Send(cmd Command, target NodeID, follow FollowType)
}

// ClearSurfaceChildrenCmd detaches every child of a surface node.
type ClearSurfaceChildrenCmd struct {
	ID NodeID
}

func (c ClearSurfaceChildrenCmd) Target() NodeID { return c.ID }

func (c ClearSurfaceChildrenCmd) Apply(r *Registry) {
	if n := r.Node(c.ID); n != nil {
		n.ClearChildren()
	}
}

// AddSurfaceChildCmd attaches Child under ID at Index (-1 appends).
type AddSurfaceChildCmd struct {
	ID    NodeID
	Child NodeID
	Index int
}

func (c AddSurfaceChildCmd) Target() NodeID { return c.ID }

func (c AddSurfaceChildCmd) Apply(r *Registry) {
	parent := r.Node(c.ID)
	child := r.Node(c.Child)
	if parent == nil || child == nil {
		return
	}
	parent.AddChild(child, c.Index)
}

// SetContextMatrixCmd carries the matrix a surface inherits from the
// scene above it.
type SetContextMatrixCmd struct {
	ID NodeID
	M  Matrix
}

func (c SetContextMatrixCmd) Target() NodeID { return c.ID }

func (c SetContextMatrixCmd) Apply(r *Registry) {
	if n := r.SurfaceNode(c.ID); n != nil {
		n.SetContextMatrix(c.M, nil)
	}
}

// SetContextAlphaCmd carries the inherited alpha of a surface.
type SetContextAlphaCmd struct {
	ID    NodeID
	Alpha float64
}

func (c SetContextAlphaCmd) Target() NodeID { return c.ID }

func (c SetContextAlphaCmd) Apply(r *Registry) {
	if n := r.SurfaceNode(c.ID); n != nil {
		n.SetContextAlpha(c.Alpha, nil)
	}
}

// SetContextClipRegionCmd carries the inherited clip of a surface in its
// parent's coordinates.
type SetContextClipRegionCmd struct {
	ID   NodeID
	Clip Rect
}

func (c SetContextClipRegionCmd) Target() NodeID { return c.ID }

func (c SetContextClipRegionCmd) Apply(r *Registry) {
	if n := r.SurfaceNode(c.ID); n != nil {
		n.SetContextClipRegion(c.Clip, nil)
	}
}

// SetContextBoundsCmd resizes the mirrored surface.
type SetContextBoundsCmd struct {
	ID     NodeID
	Bounds Rect
}

func (c SetContextBoundsCmd) Target() NodeID { return c.ID }

func (c SetContextBoundsCmd) Apply(r *Registry) {
	if n := r.SurfaceNode(c.ID); n != nil && n.props != nil {
		n.props.SetBounds(c.Bounds)
	}
}

func (c ClearSurfaceChildrenCmd) String() string {
	return fmt.Sprintf("ClearSurfaceChildren(%d)", c.ID)
}

func (c AddSurfaceChildCmd) String() string {
	return fmt.Sprintf("AddSurfaceChild(%d, %d, %d)", c.ID, c.Child, c.Index)
}

// --- Transaction ---

// QueuedCommand is one buffered Send.
type QueuedCommand struct {
	Cmd    Command
	Target NodeID
	Follow FollowType
}

// Transaction is a CommandSink that buffers commands until Flush. It is
// safe for concurrent use.
type Transaction struct {
	mu      sync.Mutex
	queue   []QueuedCommand
	onFlush func(batch []QueuedCommand, timestamp time.Time)
}

// NewTransaction creates a transaction. onFlush, if non-nil, receives each
// flushed batch.
func NewTransaction(onFlush func(batch []QueuedCommand, timestamp time.Time)) *Transaction {
	return &Transaction{onFlush: onFlush}
}

// Send buffers cmd.
func (t *Transaction) Send(cmd Command, target NodeID, follow FollowType) {
	if cmd == nil {
		return
	}
	t.mu.Lock()
	t.queue = append(t.queue, QueuedCommand{Cmd: cmd, Target: target, Follow: follow})
	t.mu.Unlock()
}

// Len returns the number of buffered commands.
func (t *Transaction) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Drain removes and returns every buffered command.
func (t *Transaction) Drain() []QueuedCommand {
	t.mu.Lock()
	batch := t.queue
	t.queue = nil
	t.mu.Unlock()
	return batch
}

// Flush drains the buffer and hands the batch to the flush callback. An
// empty buffer is not flushed.
func (t *Transaction) Flush(timestamp time.Time) {
	batch := t.Drain()
	if len(batch) == 0 || t.onFlush == nil {
		return
	}
	t.onFlush(batch, timestamp)
}

// ApplyTo replays batch against r in order.
func ApplyTo(r *Registry, batch []QueuedCommand) {
	for _, qc := range batch {
		qc.Cmd.Apply(r)
	}
}
