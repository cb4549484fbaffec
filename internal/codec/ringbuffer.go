package codec

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrBufferClosed is returned to every caller once Close has been called
	ErrBufferClosed = errors.New("codec: frame buffer closed")

	// ErrBufferNotConfigured is returned before the first Configure
	ErrBufferNotConfigured = errors.New("codec: frame buffer has no geometry")

	// ErrReconfigured wakes callers that were blocked while the geometry changed
	ErrReconfigured = errors.New("codec: frame buffer reconfigured while waiting")
)

// FrameBuffer is a bounded circular byte buffer between a frame producer and
// a frame consumer. Push blocks while the buffer is full and Pop blocks until
// a whole frame is queued. The buffer owns the negotiated Geometry so that
// replacing it is serialized with every push and pop.
type FrameBuffer struct {
	name string

	mu   sync.Mutex
	cond *sync.Cond

	geometry   Geometry
	buffer     []byte
	iPtr       int // Input pointer (where new data is written)
	oPtr       int // Output pointer (where data is read from)
	size       int // Bytes queued
	generation uint64
	closed     bool
}

// NewFrameBuffer creates an unconfigured frame buffer
func NewFrameBuffer(name string) *FrameBuffer {
	fb := &FrameBuffer{name: name}
	fb.cond = sync.NewCond(&fb.mu)
	return fb
}

// Configure discards queued data and resizes the buffer for geometry,
// holding maxFrames frames. Blocked callers wake with ErrReconfigured.
func (fb *FrameBuffer) Configure(geometry Geometry, maxFrames int) error {
	if geometry.IsZero() || geometry.FrameBytes <= 0 {
		return ErrUnknownMode
	}
	if maxFrames <= 0 {
		maxFrames = MAX_QUEUED_FRAMES
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return ErrBufferClosed
	}

	fb.geometry = geometry
	fb.buffer = make([]byte, maxFrames*geometry.FrameBytes)
	fb.iPtr = 0
	fb.oPtr = 0
	fb.size = 0
	fb.generation++
	fb.cond.Broadcast()

	return nil
}

// Push queues data, blocking whenever the buffer is full until the consumer
// frees space. Data larger than the free space is written in pieces; the
// consumer only ever sees whole frames.
func (fb *FrameBuffer) Push(ctx context.Context, data []byte) error {
	stop := context.AfterFunc(ctx, fb.wake)
	defer stop()

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if err := fb.usable(); err != nil {
		return err
	}
	gen := fb.generation

	for len(data) > 0 {
		for fb.size == len(fb.buffer) {
			if err := fb.waitLocked(ctx, gen); err != nil {
				return err
			}
		}

		n := fb.writeLocked(data)
		data = data[n:]
		fb.cond.Broadcast()
	}

	return nil
}

// Pop blocks until one whole frame is queued and copies it into dst, which
// must hold at least one frame. It returns the frame length, the geometry
// the frame was queued under and the generation it was popped in. A later
// Configure bumps the generation.
func (fb *FrameBuffer) Pop(ctx context.Context, dst []byte) (int, Geometry, uint64, error) {
	stop := context.AfterFunc(ctx, fb.wake)
	defer stop()

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if err := fb.usable(); err != nil {
		return 0, Geometry{}, 0, err
	}
	gen := fb.generation
	frameBytes := fb.geometry.FrameBytes

	if len(dst) < frameBytes {
		return 0, Geometry{}, 0, ErrFrameSize
	}

	for fb.size < frameBytes {
		if err := fb.waitLocked(ctx, gen); err != nil {
			return 0, Geometry{}, 0, err
		}
	}

	fb.readLocked(dst[:frameBytes])
	fb.cond.Broadcast()

	return frameBytes, fb.geometry, gen, nil
}

// Close releases the storage and wakes every blocked caller with
// ErrBufferClosed. It is safe to call more than once.
func (fb *FrameBuffer) Close() {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.closed = true
	fb.buffer = nil
	fb.iPtr = 0
	fb.oPtr = 0
	fb.size = 0
	fb.cond.Broadcast()
}

// Geometry returns the geometry the buffer is currently sized for
func (fb *FrameBuffer) Geometry() Geometry {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.geometry
}

// Generation returns the number of times the buffer has been configured
func (fb *FrameBuffer) Generation() uint64 {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.generation
}

// DataSize returns the number of queued bytes
func (fb *FrameBuffer) DataSize() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.size
}

// FreeSpace returns the number of bytes that can be pushed without blocking
func (fb *FrameBuffer) FreeSpace() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.buffer) - fb.size
}

// Frames returns the number of whole frames ready for Pop
func (fb *FrameBuffer) Frames() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.geometry.FrameBytes == 0 {
		return 0
	}
	return fb.size / fb.geometry.FrameBytes
}

// GetLength returns the buffer capacity in bytes
func (fb *FrameBuffer) GetLength() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.buffer)
}

// GetName returns the buffer name for debugging
func (fb *FrameBuffer) GetName() string {
	return fb.name
}

func (fb *FrameBuffer) usable() error {
	if fb.closed {
		return ErrBufferClosed
	}
	if fb.geometry.IsZero() {
		return ErrBufferNotConfigured
	}
	return nil
}

// waitLocked waits for a state change and reports why the caller has to
// give up, if it has to
func (fb *FrameBuffer) waitLocked(ctx context.Context, gen uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fb.cond.Wait()

	switch {
	case fb.closed:
		return ErrBufferClosed
	case fb.generation != gen:
		return ErrReconfigured
	}
	return ctx.Err()
}

func (fb *FrameBuffer) wake() {
	fb.mu.Lock()
	fb.cond.Broadcast()
	fb.mu.Unlock()
}

func (fb *FrameBuffer) writeLocked(data []byte) int {
	free := len(fb.buffer) - fb.size
	n := len(data)
	if n > free {
		n = free
	}

	for i := 0; i < n; {
		chunk := copy(fb.buffer[fb.iPtr:], data[i:n])
		i += chunk
		fb.iPtr += chunk
		if fb.iPtr == len(fb.buffer) {
			fb.iPtr = 0
		}
	}
	fb.size += n

	return n
}

func (fb *FrameBuffer) readLocked(dst []byte) {
	for i := 0; i < len(dst); {
		end := fb.oPtr + (len(dst) - i)
		if end > len(fb.buffer) {
			end = len(fb.buffer)
		}
		chunk := copy(dst[i:], fb.buffer[fb.oPtr:end])
		i += chunk
		fb.oPtr += chunk
		if fb.oPtr == len(fb.buffer) {
			fb.oPtr = 0
		}
	}
	fb.size -= len(dst)
}
