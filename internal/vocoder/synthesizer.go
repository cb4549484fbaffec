// Package vocoder is the boundary between frame decoding and speech
// reconstruction. A Synthesizer turns one deinterleaved frame into 20ms of
// 8kHz PCM, carrying whatever history it needs in a per-session State.
package vocoder

import (
	"errors"

	"github.com/dbehnke/mbedecode/internal/codec"
)

// Unvoiced synthesis quality bounds accepted by every synthesizer
const (
	MIN_UNVOICED_QUALITY     = 1
	MAX_UNVOICED_QUALITY     = 64
	DEFAULT_UNVOICED_QUALITY = 1
)

var (
	// ErrMBELibUnavailable is returned when the binary was built without libmbe
	ErrMBELibUnavailable = errors.New("vocoder: built without mbelib support")

	// ErrForeignState is returned when a State from another synthesizer is passed in
	ErrForeignState = errors.New("vocoder: state belongs to a different synthesizer")
)

// State is the mutable codec history of one session. It is owned by a
// single session and must not be shared.
type State interface {
	// Reset returns the state to its freshly allocated condition
	Reset()

	// Close releases the state; it must not be used afterwards
	Close() error
}

// Report is the advisory outcome of one synthesis call
type Report struct {
	Errors     int    // corrected channel errors
	Errors2    int    // uncorrectable / secondary errors
	Diagnostic string // per-frame error trace, empty when clean
}

// Clean reports whether the frame decoded without any error indication
func (r Report) Clean() bool {
	return r.Errors == 0 && r.Errors2 == 0 && r.Diagnostic == ""
}

// Synthesizer reconstructs PCM audio from deinterleaved voice frames
type Synthesizer interface {
	// Name identifies the implementation in logs and the API
	Name() string

	// NewState allocates a fresh per-session codec state
	NewState() (State, error)

	// Synthesize decodes bits into pcm, which holds at least
	// codec.AUDIO_SAMPLES samples, mutating st in place
	Synthesize(bits *codec.VoiceBits, st State, quality int, pcm []int16) Report
}

// ClampQuality bounds an unvoiced quality value to the supported range
func ClampQuality(q int) int {
	if q < MIN_UNVOICED_QUALITY {
		return MIN_UNVOICED_QUALITY
	}
	if q > MAX_UNVOICED_QUALITY {
		return MAX_UNVOICED_QUALITY
	}
	return q
}

// Default returns the best synthesizer this binary was built with:
// libmbe when available, silence otherwise
func Default() Synthesizer {
	if s, err := NewMBELib(); err == nil {
		return s
	}
	return Silence{}
}
