//go:build !mbelib

package vocoder

import "github.com/dbehnke/mbedecode/internal/codec"

// MBELib placeholder when the binary is built without -tags mbelib
type MBELib struct{}

// NewMBELib always fails without libmbe
func NewMBELib() (Synthesizer, error) {
	return nil, ErrMBELibUnavailable
}

// Name implements Synthesizer
func (MBELib) Name() string { return "mbelib" }

// NewState implements Synthesizer
func (MBELib) NewState() (State, error) {
	return nil, ErrMBELibUnavailable
}

// Synthesize implements Synthesizer
func (MBELib) Synthesize(bits *codec.VoiceBits, st State, quality int, pcm []int16) Report {
	return Report{Diagnostic: ErrMBELibUnavailable.Error()}
}
