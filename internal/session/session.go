// Package session drives one decode stream: negotiation, the frame queue
// between producer and consumer, and the per-session vocoder state.
package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbehnke/mbedecode/internal/codec"
	"github.com/dbehnke/mbedecode/internal/vocoder"
)

// State is the lifecycle state of a session
type State int

const (
	StateUninitialized State = iota
	StateNegotiated
	StateStreaming
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateNegotiated:
		return "negotiated"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Observer receives per-session events. Calls are made synchronously from
// the goroutine doing the work and must not block.
type Observer interface {
	FramesQueued(mode codec.Mode, frames int)
	FrameDecoded(mode codec.Mode, report vocoder.Report, elapsed time.Duration)
	NegotiationFailed(err error)
}

// Options configures a new session
type Options struct {
	Quality   int // unvoiced synthesis quality, clamped to 1..64
	MaxFrames int // queue depth in frames, codec.MAX_QUEUED_FRAMES when zero
	Logger    *log.Logger
	Debug     bool // log every frame with a non-clean synthesizer report
	Observer  Observer
}

// Stats are advisory counters for one session
type Stats struct {
	FramesIn       uint64     `json:"frames_in"`
	FramesOut      uint64     `json:"frames_out"`
	Errors         uint64     `json:"errors"`
	Errors2        uint64     `json:"errors2"`
	Renegotiations uint64     `json:"renegotiations"`
	Mode           codec.Mode `json:"-"`
}

// Session owns one frame queue, one codec state and the negotiated
// geometry. Decode is meant for a single producer and Read for a single
// consumer; both may block and run concurrently.
type Session struct {
	id        uuid.UUID
	createdAt time.Time
	synth     vocoder.Synthesizer
	quality   int
	maxFrames int
	logger    *log.Logger
	debug     bool
	observer  Observer

	buffer *codec.FrameBuffer

	mu         sync.Mutex
	state      State
	codecState vocoder.State
	bits       codec.VoiceBits
	pcm        [codec.AUDIO_SAMPLES]int16
	pending    int // bytes pushed that do not yet make a whole frame
	stats      Stats
}

// New creates an uninitialized session backed by synth
func New(synth vocoder.Synthesizer, opts Options) (*Session, error) {
	if synth == nil {
		return nil, errors.New("session: nil synthesizer")
	}

	st, err := synth.NewState()
	if err != nil {
		return nil, fmt.Errorf("session: allocating codec state: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	maxFrames := opts.MaxFrames
	if maxFrames <= 0 {
		maxFrames = codec.MAX_QUEUED_FRAMES
	}

	id := uuid.New()
	return &Session{
		id:         id,
		createdAt:  time.Now(),
		synth:      synth,
		quality:    vocoder.ClampQuality(opts.Quality),
		maxFrames:  maxFrames,
		logger:     logger,
		debug:      opts.Debug,
		observer:   opts.Observer,
		buffer:     codec.NewFrameBuffer(id.String()),
		codecState: st,
	}, nil
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID { return s.id }

// CreatedAt returns the time the session was created
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Quality returns the unvoiced synthesis quality used for every frame
func (s *Session) Quality() int { return s.quality }

// Synthesizer returns the name of the synthesizer in use
func (s *Session) Synthesizer() string { return s.synth.Name() }

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode returns the negotiated mode, ModeUnknown before negotiation
func (s *Session) Mode() codec.Mode {
	return s.buffer.Geometry().Mode
}

// Framing describes the negotiated channel and audio framing. It is the
// zero value before negotiation.
func (s *Session) Framing() FramingHint {
	g := s.buffer.Geometry()
	if g.IsZero() {
		return FramingHint{}
	}
	return NewFramingHint(g)
}

// Stats returns a snapshot of the session counters
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Mode = s.buffer.Geometry().Mode
	return st
}

// Renegotiate selects a new mode. On success the queue is emptied and
// resized and the codec state is reset; on failure nothing changes.
func (s *Session) Renegotiate(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renegotiateLocked(settings)
}

func (s *Session) renegotiateLocked(settings Settings) error {
	if s.state == StateEnded {
		return ErrSessionEnded
	}

	g, err := Negotiate(settings)
	if err != nil {
		if s.observer != nil {
			s.observer.NegotiationFailed(err)
		}
		return err
	}

	if err := s.buffer.Configure(g, s.maxFrames); err != nil {
		return fmt.Errorf("session: configuring frame buffer: %w", err)
	}
	s.codecState.Reset()
	s.pending = 0
	s.state = StateNegotiated
	s.stats.Renegotiations++

	s.logger.Printf("Session %s: negotiated %s (%d/%d bits, %d byte frames)",
		s.id, g.Mode, g.FrameBits, g.DataBits, g.FrameBytes)

	return nil
}

// Decode queues raw channel data, blocking while the queue is full. data
// need not be frame aligned.
func (s *Session) Decode(ctx context.Context, data []byte) error {
	if err := s.ready(); err != nil {
		return err
	}

	if err := s.buffer.Push(ctx, data); err != nil {
		return s.bufferError("decode", err)
	}

	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	g := s.buffer.Geometry()
	s.pending += len(data)
	frames := s.pending / g.FrameBytes
	s.pending %= g.FrameBytes
	s.stats.FramesIn += uint64(frames)
	s.state = StateStreaming
	s.mu.Unlock()

	if s.observer != nil && frames > 0 {
		s.observer.FramesQueued(g.Mode, frames)
	}

	return nil
}

// Read waits for the next queued frame, decodes it and writes one frame of
// 16 bit little-endian PCM into out. It returns the number of bytes
// written, which is always the negotiated audio frame size on success.
// A frame queued before a renegotiation is dropped with
// codec.ErrReconfigured.
func (s *Session) Read(ctx context.Context, out []byte) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(out) < codec.AUDIO_BYTES {
		return 0, ErrShortBuffer
	}

	var frame [codec.IMBE_FRAME_BYTES]byte
	n, g, gen, err := s.buffer.Pop(ctx, frame[:])
	if err != nil {
		return 0, s.bufferError("read", err)
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return 0, ErrSessionEnded
	}
	// a renegotiation between Pop and here owns the codec state now
	if gen != s.buffer.Generation() {
		return 0, s.bufferError("read", codec.ErrReconfigured)
	}

	if err := codec.Deinterleave(g.Mode, frame[:n], &s.bits); err != nil {
		return 0, fmt.Errorf("session: read: %w", err)
	}
	report := s.synth.Synthesize(&s.bits, s.codecState, s.quality, s.pcm[:])

	for i, v := range s.pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}

	s.stats.FramesOut++
	s.stats.Errors += uint64(report.Errors)
	s.stats.Errors2 += uint64(report.Errors2)
	s.state = StateStreaming

	if s.debug && !report.Clean() {
		s.logger.Printf("Session %s: %s frame errs=%d errs2=%d %q",
			s.id, g.Mode, report.Errors, report.Errors2, report.Diagnostic)
	}
	if s.observer != nil {
		s.observer.FrameDecoded(g.Mode, report, time.Since(start))
	}

	return g.AudioBytes, nil
}

// End releases the queue and the codec state and wakes any blocked Decode
// or Read with ErrSessionEnded. It is safe to call more than once.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return
	}
	s.state = StateEnded
	s.buffer.Close()

	if err := s.codecState.Close(); err != nil {
		s.logger.Printf("Session %s: releasing codec state: %v", s.id, err)
	}
	s.logger.Printf("Session %s: ended after %d frames in, %d frames out",
		s.id, s.stats.FramesIn, s.stats.FramesOut)
}

func (s *Session) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateEnded:
		return ErrSessionEnded
	case StateUninitialized:
		return ErrNotNegotiated
	}
	return nil
}

func (s *Session) bufferError(op string, err error) error {
	if errors.Is(err, codec.ErrBufferClosed) {
		return ErrSessionEnded
	}
	return fmt.Errorf("session: %s: %w", op, err)
}
