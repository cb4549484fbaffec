package codec

// Golay (23,12) as used for the C0 codeword of the 3600 bps AMBE modes.
// Codewords carry 12 data bits above 11 parity bits.

const (
	GOLAY_GENERATOR   = 0xC75 // x^11 + x^10 + x^6 + x^5 + x^4 + x^2 + 1
	GOLAY_CODE_BITS   = 23
	GOLAY_DATA_BITS   = 12
	GOLAY_PARITY_BITS = 11
	GOLAY_MAX_ERRORS  = 3
)

// golaySyndromes maps every syndrome to the lowest weight error pattern
// producing it. The code is perfect, so all 2048 syndromes are covered.
var golaySyndromes = buildGolaySyndromes()

func buildGolaySyndromes() [1 << GOLAY_PARITY_BITS]uint32 {
	var table [1 << GOLAY_PARITY_BITS]uint32

	table[0] = 0
	for a := 0; a < GOLAY_CODE_BITS; a++ {
		e1 := uint32(1) << a
		table[golaySyndrome(e1)] = e1
		for b := a + 1; b < GOLAY_CODE_BITS; b++ {
			e2 := e1 | uint32(1)<<b
			table[golaySyndrome(e2)] = e2
			for c := b + 1; c < GOLAY_CODE_BITS; c++ {
				e3 := e2 | uint32(1)<<c
				table[golaySyndrome(e3)] = e3
			}
		}
	}

	return table
}

// golaySyndrome is the remainder of code divided by the generator
func golaySyndrome(code uint32) uint32 {
	code &= 0x7FFFFF
	for i := GOLAY_CODE_BITS - 1; i >= GOLAY_PARITY_BITS; i-- {
		if code&(1<<uint(i)) != 0 {
			code ^= GOLAY_GENERATOR << uint(i-GOLAY_PARITY_BITS)
		}
	}
	return code & 0x7FF
}

// Encode23127 encodes 12 data bits into a systematic 23 bit codeword
func Encode23127(data uint32) uint32 {
	data &= 0xFFF
	shifted := data << GOLAY_PARITY_BITS
	return shifted | golaySyndrome(shifted)
}

// Decode23127 corrects up to three bit errors and returns the data bits
// together with the number of bits it flipped
func Decode23127(code uint32) (uint32, int) {
	code &= 0x7FFFFF
	pattern := golaySyndromes[golaySyndrome(code)]
	corrected := code ^ pattern
	return corrected >> GOLAY_PARITY_BITS, popcount(pattern)
}

// AmbeC0Errors counts the bit errors Golay decoding corrects in the C0
// codeword of a 3600 bps AMBE frame. Bit 0 of the plane is the extra
// parity bit and is not part of the codeword. Other modes report zero.
func AmbeC0Errors(bits *VoiceBits) int {
	switch bits.Mode {
	case ModeAmbe3600x2400, ModeAmbe3600x2450:
	default:
		return 0
	}

	var code uint32
	for i := GOLAY_CODE_BITS - 1; i >= 0; i-- {
		code = code<<1 | uint32(bits.Planes[0][i+1]&1)
	}

	_, errs := Decode23127(code)
	return errs
}

// popcount counts the number of 1 bits in a 32-bit integer
func popcount(x uint32) int {
	count := 0
	for x != 0 {
		count++
		x &= x - 1 // Remove the lowest set bit
	}
	return count
}
