package vocoder

import "github.com/dbehnke/mbedecode/internal/codec"

// Silence is a Synthesizer that emits silent frames. It keeps the pipeline
// timing intact when no speech library is linked in.
type Silence struct{}

type silenceState struct {
	frames uint64
	closed bool
}

func (s *silenceState) Reset()       { s.frames = 0 }
func (s *silenceState) Close() error { s.closed = true; return nil }

// Name implements Synthesizer
func (Silence) Name() string { return "silence" }

// NewState implements Synthesizer
func (Silence) NewState() (State, error) {
	return &silenceState{}, nil
}

// Synthesize writes one frame of silence. The C0 Golay error count is
// still reported for the 3600 bps AMBE modes.
func (Silence) Synthesize(bits *codec.VoiceBits, st State, quality int, pcm []int16) Report {
	ss, ok := st.(*silenceState)
	if !ok || ss.closed {
		return Report{Diagnostic: ErrForeignState.Error()}
	}
	ss.frames++

	n := codec.AUDIO_SAMPLES
	if len(pcm) < n {
		n = len(pcm)
	}
	clear(pcm[:n])

	return Report{Errors: codec.AmbeC0Errors(bits)}
}
