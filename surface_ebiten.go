package trellis

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

const defaultQueueSize = 3

// EbitenSurface is a RenderSurface backed by a ring of offscreen ebiten
// images. Buffers keep their content between frames, so BufferAge reports
// how many frames ago a buffer was last flushed.
type EbitenSurface struct {
	mu         sync.Mutex
	pool       renderTexturePool
	buffers    []*ebitenBuffer
	next       int
	flushed    uint64
	presented  *ebitenBuffer
	colorSpace ColorGamut
}

type ebitenBuffer struct {
	img           *ebiten.Image
	width, height int
	flushedAt     uint64
}

// view returns the buffer image trimmed to the requested size.
func (b *ebitenBuffer) view() *ebiten.Image {
	return b.img.SubImage(image.Rect(0, 0, b.width, b.height)).(*ebiten.Image)
}

// NewEbitenSurface creates a surface with queueSize buffers. A size below
// one selects the default of three.
func NewEbitenSurface(queueSize int) *EbitenSurface {
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	s := &EbitenSurface{buffers: make([]*ebitenBuffer, queueSize)}
	for i := range s.buffers {
		s.buffers[i] = &ebitenBuffer{}
	}
	return s
}

type ebitenFrame struct {
	surface *EbitenSurface
	buffer  *ebitenBuffer
	canvas  *EbitenCanvas
	age     int
	damage  RectI
}

func (f *ebitenFrame) Canvas() Canvas          { return f.canvas }
func (f *ebitenFrame) BufferAge() int          { return f.age }
func (f *ebitenFrame) SetDamageRegion(r RectI) { f.damage = r }

// RequestFrame hands out the next buffer of the ring, reallocating it when
// the size changed.
func (s *EbitenSurface) RequestFrame(width, height int, _ time.Time) (Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("trellis: request frame %dx%d: size must be positive", width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buffers[s.next]
	if b.img == nil || b.width != width || b.height != height {
		s.pool.Release(b.img)
		b.img = s.pool.Acquire(width, height)
		b.width, b.height = width, height
		b.flushedAt = 0
	}
	age := 0
	if b.flushedAt > 0 {
		age = int(s.flushed - b.flushedAt + 1)
	}
	return &ebitenFrame{
		surface: s,
		buffer:  b,
		canvas:  NewEbitenCanvas(b.view(), &s.pool),
		age:     age,
	}, nil
}

// FlushFrame makes f the presented buffer and advances the ring.
func (s *EbitenSurface) FlushFrame(f Frame, _ time.Time) error {
	ef, ok := f.(*ebitenFrame)
	if !ok || ef.surface != s {
		return errors.New("trellis: flush frame: frame was not requested from this surface")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed++
	ef.buffer.flushedAt = s.flushed
	s.presented = ef.buffer
	s.next = (s.next + 1) % len(s.buffers)
	return nil
}

// QueueSize returns the number of buffers in the ring.
func (s *EbitenSurface) QueueSize() int { return len(s.buffers) }

func (s *EbitenSurface) ColorSpace() ColorGamut {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colorSpace
}

func (s *EbitenSurface) SetColorSpace(c ColorGamut) {
	s.mu.Lock()
	s.colorSpace = c
	s.mu.Unlock()
}

// Present draws the last flushed buffer onto screen at its origin.
func (s *EbitenSurface) Present(screen *ebiten.Image) {
	s.mu.Lock()
	b := s.presented
	s.mu.Unlock()
	if b == nil {
		return
	}
	screen.DrawImage(b.view(), nil)
}

// Release returns every buffer to the pool and frees the pool.
func (s *EbitenSurface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buffers {
		s.pool.Release(b.img)
		*b = ebitenBuffer{}
	}
	s.presented = nil
	s.pool.Drain()
}
