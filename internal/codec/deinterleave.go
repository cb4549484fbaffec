package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMode is returned when a frame is handed over before a mode is known
	ErrUnknownMode = errors.New("codec: unknown vocoder mode")

	// ErrFrameSize is returned when a raw frame is shorter than its mode requires
	ErrFrameSize = errors.New("codec: frame too short for mode")
)

// VoiceBits is the deinterleaved form of one frame, one bit per element.
// Planes is filled for the AMBE 3600 modes, which still hand the
// synthesizer their C0..C3 codeword planes; Data holds the flat parameter
// vector (the first Mode.DataBits() entries are meaningful).
type VoiceBits struct {
	Mode   Mode
	Planes [AMBE_PLANES][AMBE_PLANE_BITS]uint8
	Data   [IMBE_DATA_BITS]uint8
}

// Reset clears every bit and forgets the mode
func (v *VoiceBits) Reset() {
	*v = VoiceBits{}
}

// DataBits returns the meaningful prefix of the flat vector
func (v *VoiceBits) DataBits() []uint8 {
	return v.Data[:v.Mode.DataBits()]
}

// Deinterleave dispatches a raw frame to the deinterleaver for mode
func Deinterleave(mode Mode, frame []byte, out *VoiceBits) error {
	if mode == ModeUnknown {
		return ErrUnknownMode
	}
	if len(frame) < mode.FrameBytes() {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrFrameSize, mode, mode.FrameBytes(), len(frame))
	}

	switch mode {
	case ModeAmbe3600x2400:
		DeinterleaveAmbe3600x2400(frame, out)
	case ModeAmbe3600x2450:
		DeinterleaveAmbe3600x2450(frame, out)
	case ModeAmbe2450:
		DeinterleaveAmbe2450(frame, out)
	case ModeImbe7200x4400:
		DeinterleaveImbe7200x4400(frame, out)
	default:
		return ErrUnknownMode
	}

	return nil
}

// DeinterleaveAmbe3600x2400 unpacks a 9-byte D-Star voice frame into the
// C0..C3 planes. The data vector is left zeroed for the synthesizer.
func DeinterleaveAmbe3600x2400(frame []byte, out *VoiceBits) {
	deinterleavePlanes(frame, &AMBE3600x2400_W, &AMBE3600x2400_X, out)
	out.Mode = ModeAmbe3600x2400
}

// DeinterleaveAmbe3600x2450 unpacks a 9-byte DMR/NXDN voice frame into the
// C0..C3 planes. The data vector is left zeroed for the synthesizer.
func DeinterleaveAmbe3600x2450(frame []byte, out *VoiceBits) {
	deinterleavePlanes(frame, &AMBE3600x2450_W, &AMBE3600x2450_X, out)
	out.Mode = ModeAmbe3600x2450
}

func deinterleavePlanes(frame []byte, w, x *[AMBE_FRAME_BYTES][8]uint8, out *VoiceBits) {
	out.Reset()

	for i := 0; i < AMBE_FRAME_BYTES; i++ {
		b := frame[i]
		for bit := 0; bit < 8; bit++ {
			out.Planes[w[i][bit]][x[i][bit]] = (b >> bit) & 0x01
		}
	}
}

// DeinterleaveAmbe2450 unpacks a 7-byte YSF V/D type 2 frame straight into
// the 49-bit data vector
func DeinterleaveAmbe2450(frame []byte, out *VoiceBits) {
	out.Reset()
	out.Mode = ModeAmbe2450

	for i := 0; i < AMBE2450_FRAME_BYTES-1; i++ {
		b := frame[i]
		for bit := 0; bit < 8; bit++ {
			out.Data[AMBE2450_X[i][bit]] = (b >> bit) & 0x01
		}
	}
	out.Data[AMBE2450_LAST_BIT_INDEX] = (frame[AMBE2450_FRAME_BYTES-1] >> 7) & 0x01
}

// DeinterleaveImbe7200x4400 unpacks an 18-byte YSF VW frame: it assembles
// the IMBE voice frame, removes the PN scrambling and then copies the
// parameter bits out of each codeword.
func DeinterleaveImbe7200x4400(frame []byte, out *VoiceBits) {
	var voice [IMBE_FRAME_BYTES]byte
	AssembleImbeVoiceFrame(frame, &voice)
	Descramble(&voice)

	out.Reset()
	out.Mode = ModeImbe7200x4400

	n := 0
	for _, start := range IMBE_GOLAY_STARTS {
		n += copyBits(out.Data[n:], voice[:], start, IMBE_GOLAY_DATA_BITS)
	}
	for _, start := range IMBE_HAMMING_STARTS {
		n += copyBits(out.Data[n:], voice[:], start, IMBE_HAMMING_DATA_BITS)
	}
	copyBits(out.Data[n:], voice[:], IMBE_TAIL_START, IMBE_TAIL_BITS)
}

// AssembleImbeVoiceFrame performs the OR-accumulate permutation from the
// over-the-air byte order into the 144-bit voice frame. voice is
// overwritten.
func AssembleImbeVoiceFrame(frame []byte, voice *[IMBE_FRAME_BYTES]byte) {
	*voice = [IMBE_FRAME_BYTES]byte{}

	for i := 0; i < IMBE_FRAME_BYTES; i++ {
		b := frame[i]
		for bit := 0; bit < 8; bit++ {
			if (b>>bit)&0x01 != 0 {
				pos := IMBE7200x4400_POS[i][bit]
				voice[pos>>3] |= BIT_MASK_TABLE[pos&7]
			}
		}
	}
}

// copyBits reads n consecutive MSB-first bits starting at bit offset start
// and stores them one per element in dst
func copyBits(dst []uint8, src []byte, start, n int) int {
	for k := 0; k < n; k++ {
		if readBit(src, start+k) {
			dst[k] = 1
		} else {
			dst[k] = 0
		}
	}
	return n
}

// readBit reads a bit from a byte array at the specified bit position
func readBit(data []byte, pos int) bool {
	return data[pos>>3]&BIT_MASK_TABLE[pos&7] != 0
}

// writeBit writes a bit to a byte array at the specified bit position
func writeBit(data []byte, pos int, bit bool) {
	if bit {
		data[pos>>3] |= BIT_MASK_TABLE[pos&7]
	} else {
		data[pos>>3] &^= BIT_MASK_TABLE[pos&7]
	}
}

// PackBits packs a one-bit-per-element vector MSB first, padding the last
// byte with zeros. It is the inverse of the representation used in
// VoiceBits and is handy for logging and comparisons.
func PackBits(bits []uint8) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		writeBit(out, i, b != 0)
	}
	return out
}
