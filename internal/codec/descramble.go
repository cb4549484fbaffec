package codec

// IMBE PN sequence generator: x(n+1) = 173*x(n) + 13849 mod 2^16,
// one output bit per step taken from bit 15
const (
	IMBE_PN_MULTIPLIER = 173
	IMBE_PN_INCREMENT  = 13849
)

// ImbeSeed derives the PN seed from the first 12 bits of a voice frame
// (the u0 parameter bits, which are sent unscrambled)
func ImbeSeed(voice *[IMBE_FRAME_BYTES]byte) uint16 {
	return uint16(voice[0])<<8 | uint16(voice[1]&0xF0)
}

// ImbeMask returns the XOR mask for the given seed. The generator is
// stepped strictly in bit order for bits 23..136 and each completed byte is
// written out; the mask covers bits 23..135.
func ImbeMask(seed uint16) [IMBE_FRAME_BYTES]byte {
	var mask [IMBE_FRAME_BYTES]byte

	v := seed
	acc := uint8(0)
	for i := IMBE_SCRAMBLE_FIRST_BIT; i <= IMBE_SCRAMBLE_LAST_BIT; i++ {
		v = v*IMBE_PN_MULTIPLIER + IMBE_PN_INCREMENT // wraps mod 65536
		acc = acc<<1 | uint8(v>>15)

		if i%8 == 7 {
			mask[i/8] = acc
			acc = 0
		}
	}

	// bit 136 steps the generator but never completes a byte, so it is
	// left unmasked
	return mask
}

// Descramble removes the PN whitening from an assembled voice frame in place
func Descramble(voice *[IMBE_FRAME_BYTES]byte) {
	mask := ImbeMask(ImbeSeed(voice))
	for i := range voice {
		voice[i] ^= mask[i]
	}
}
