package codec

// Frame and vector sizes for the supported vocoder formats
const (
	AMBE_FRAME_BYTES      = 9  // D-Star, DMR, NXDN AMBE+2 3600bps channel frame
	AMBE2450_FRAME_BYTES  = 7  // YSF V/D type 2, 49 bits in 7 bytes
	IMBE_FRAME_BYTES      = 18 // YSF VW, 144 bits
	AMBE_PLANES           = 4  // C0..C3 codeword planes
	AMBE_PLANE_BITS       = 24 // widest plane (C0 is Golay 24,12)
	AMBE_DATA_BITS        = 49 // vocoder parameter bits in an AMBE frame
	IMBE_DATA_BITS        = 88 // vocoder parameter bits in an IMBE frame
	IMBE_VOICE_FRAME_BITS = 144
)

// D-Star AMBE 3600x2400 deinterleave. For frame byte i, bit b (LSB first)
// lands in plane AMBE3600x2400_W[i][b] at index AMBE3600x2400_X[i][b].
var AMBE3600x2400_W = [AMBE_FRAME_BYTES][8]uint8{
	{0, 0, 3, 2, 1, 1, 0, 0}, {1, 1, 0, 0, 3, 2, 1, 1},
	{3, 2, 1, 1, 0, 0, 3, 2}, {0, 0, 3, 2, 1, 1, 0, 0},
	{1, 1, 0, 0, 3, 2, 1, 1}, {3, 2, 1, 1, 0, 0, 3, 2},
	{0, 0, 3, 2, 1, 1, 0, 0}, {1, 1, 0, 0, 3, 2, 1, 1},
	{3, 3, 2, 1, 0, 0, 3, 3},
}

var AMBE3600x2400_X = [AMBE_FRAME_BYTES][8]uint8{
	{10, 22, 11, 9, 10, 22, 11, 23}, {8, 20, 9, 21, 10, 8, 9, 21},
	{8, 6, 7, 19, 8, 20, 9, 7}, {6, 18, 7, 5, 6, 18, 7, 19},
	{4, 16, 5, 17, 6, 4, 5, 17}, {4, 2, 3, 15, 4, 16, 5, 3},
	{2, 14, 3, 1, 2, 14, 3, 15}, {0, 12, 1, 13, 2, 0, 1, 13},
	{0, 12, 10, 11, 0, 12, 1, 13},
}

// DMR/NXDN AMBE 3600x2450 deinterleave, same addressing as above
var AMBE3600x2450_W = [AMBE_FRAME_BYTES][8]uint8{
	{2, 1, 0, 0, 2, 1, 0, 0}, {2, 1, 0, 0, 2, 1, 0, 0},
	{3, 1, 0, 0, 3, 1, 0, 0}, {3, 1, 1, 0, 3, 1, 1, 0},
	{3, 1, 1, 0, 3, 1, 1, 0}, {3, 2, 1, 0, 3, 1, 1, 0},
	{3, 2, 1, 0, 3, 2, 1, 0}, {3, 2, 1, 0, 3, 2, 1, 0},
	{3, 2, 1, 0, 3, 2, 1, 0},
}

var AMBE3600x2450_X = [AMBE_FRAME_BYTES][8]uint8{
	{2, 9, 4, 22, 3, 10, 5, 23}, {0, 7, 2, 20, 1, 8, 3, 21},
	{12, 5, 0, 18, 13, 6, 1, 19}, {10, 3, 21, 16, 11, 4, 22, 17},
	{8, 1, 19, 14, 9, 2, 20, 15}, {6, 10, 17, 12, 7, 0, 18, 13},
	{4, 8, 15, 10, 5, 9, 16, 11}, {2, 6, 13, 8, 3, 7, 14, 9},
	{0, 4, 11, 6, 1, 5, 12, 7},
}

// YSF V/D type 2 deinterleave straight into the 49-bit data vector.
// Only bytes 0..5 follow the table; byte 6 contributes a single bit.
var AMBE2450_X = [AMBE2450_FRAME_BYTES - 1][8]uint8{
	{20, 2, 37, 19, 1, 36, 18, 0}, {5, 40, 22, 4, 39, 21, 3, 38},
	{43, 25, 7, 42, 24, 6, 41, 23}, {28, 10, 45, 27, 9, 44, 26, 8},
	{13, 48, 30, 12, 47, 29, 11, 46}, {17, 34, 16, 33, 15, 32, 14, 31},
}

// Byte 6, bit 7 of a V/D type 2 frame is data bit 35
const AMBE2450_LAST_BIT_INDEX = 35

// YSF VW deinterleave into the 144-bit IMBE voice frame. Positions are
// MSB-first bit offsets in the u0..u7 codeword layout:
// u0..u3 at 0/23/46/69 (23 bits each), u4..u6 at 92/107/122 (15 bits
// each), u7 at 137 (7 bits).
var IMBE7200x4400_POS = [IMBE_FRAME_BYTES][8]uint8{
	{1, 25, 120, 96, 72, 48, 24, 0},
	{74, 50, 26, 2, 97, 121, 49, 73},
	{99, 123, 51, 75, 3, 27, 122, 98},
	{5, 29, 124, 100, 76, 52, 28, 4},
	{78, 54, 30, 6, 101, 125, 53, 77},
	{103, 127, 55, 79, 7, 31, 126, 102},
	{9, 33, 128, 104, 80, 56, 32, 8},
	{82, 58, 34, 10, 105, 129, 57, 81},
	{107, 131, 59, 83, 11, 35, 130, 106},
	{13, 37, 132, 108, 84, 60, 36, 12},
	{86, 62, 38, 14, 109, 133, 61, 85},
	{111, 135, 63, 87, 15, 39, 134, 110},
	{17, 41, 136, 112, 88, 64, 40, 16},
	{90, 66, 42, 18, 113, 137, 65, 89},
	{115, 139, 67, 91, 19, 43, 138, 114},
	{21, 45, 140, 116, 92, 68, 44, 20},
	{94, 70, 46, 22, 117, 141, 69, 93},
	{119, 143, 71, 95, 23, 47, 142, 118},
}

// Data bit extraction from the descrambled IMBE voice frame: the top 12
// bits of each Golay word, the top 11 of each Hamming word, then u7.
var (
	IMBE_GOLAY_STARTS   = [4]int{0, 23, 46, 69}
	IMBE_HAMMING_STARTS = [3]int{92, 107, 122}
)

const (
	IMBE_GOLAY_DATA_BITS   = 12
	IMBE_HAMMING_DATA_BITS = 11
	IMBE_TAIL_START        = 137
	IMBE_TAIL_BITS         = 7
)

// Scrambled region of the IMBE voice frame (u1..u6)
const (
	IMBE_SCRAMBLE_FIRST_BIT = 23
	IMBE_SCRAMBLE_LAST_BIT  = 136
)

// BIT_MASK_TABLE addresses bits MSB first within a byte
var BIT_MASK_TABLE = [8]uint8{0x80, 0x40, 0x20, 0x10, 0x08, 0x04, 0x02, 0x01}
