package codec

import "fmt"

// Mode identifies the over-the-air vocoder frame format being decoded
type Mode int

const (
	ModeUnknown       Mode = iota
	ModeAmbe3600x2400      // D-Star
	ModeAmbe3600x2450      // DMR, dPMR, NXDN, YSF V/D type 1 (DN)
	ModeAmbe2450           // YSF V/D type 2, no FEC in the AMBE codeword
	ModeImbe7200x4400      // YSF VW (voice full rate)
)

// Audio framing produced by the synthesizer for every mode:
// 20ms at 8kHz = 160 samples, 16 bit each
const (
	AUDIO_SAMPLES = 160
	AUDIO_BYTES   = AUDIO_SAMPLES * 2
	SAMPLE_RATE   = 8000

	// Frames the streaming buffer holds before the producer blocks
	MAX_QUEUED_FRAMES = 16
)

// String returns the conventional codec name for the mode
func (m Mode) String() string {
	switch m {
	case ModeAmbe3600x2400:
		return "ambe3600x2400"
	case ModeAmbe3600x2450:
		return "ambe3600x2450"
	case ModeAmbe2450:
		return "ambe2450"
	case ModeImbe7200x4400:
		return "imbe7200x4400"
	default:
		return "unknown"
	}
}

// FrameBits returns the number of channel bits in one raw frame
func (m Mode) FrameBits() int {
	switch m {
	case ModeAmbe3600x2400, ModeAmbe3600x2450:
		return 72
	case ModeAmbe2450:
		return 49
	case ModeImbe7200x4400:
		return 144
	default:
		return 0
	}
}

// DataBits returns the number of vocoder data bits carried per frame
func (m Mode) DataBits() int {
	switch m {
	case ModeAmbe3600x2400:
		return 48
	case ModeAmbe3600x2450, ModeAmbe2450:
		return 49
	case ModeImbe7200x4400:
		return 88
	default:
		return 0
	}
}

// FrameBytes returns the raw frame size in bytes
func (m Mode) FrameBytes() int {
	return (m.FrameBits() + 7) / 8
}

// Geometry describes the framing fixed by a successful negotiation.
// A zero Geometry means nothing has been negotiated yet.
type Geometry struct {
	Mode         Mode
	FrameBits    int
	DataBits     int
	FrameBytes   int
	AudioSamples int
	AudioBytes   int
}

// NewGeometry derives the framing for a negotiated mode. frameBits and
// dataBits are the values the negotiation produced; they must agree with
// the mode.
func NewGeometry(mode Mode, frameBits, dataBits int) (Geometry, error) {
	if mode == ModeUnknown {
		return Geometry{}, ErrUnknownMode
	}
	if frameBits != mode.FrameBits() || dataBits != mode.DataBits() {
		return Geometry{}, fmt.Errorf("codec: %s does not carry %d/%d bits", mode, frameBits, dataBits)
	}

	return Geometry{
		Mode:         mode,
		FrameBits:    frameBits,
		DataBits:     dataBits,
		FrameBytes:   (frameBits + 7) / 8,
		AudioSamples: AUDIO_SAMPLES,
		AudioBytes:   AUDIO_BYTES,
	}, nil
}

// IsZero reports whether no mode has been negotiated
func (g Geometry) IsZero() bool {
	return g.Mode == ModeUnknown
}
