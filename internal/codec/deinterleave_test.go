package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func bitString(bits []uint8) string {
	var sb strings.Builder
	for _, b := range bits {
		if b != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func filledFrame(n int, v byte) []byte {
	return bytes.Repeat([]byte{v}, n)
}

func TestDeinterleavePlanes_ReferenceVectors(t *testing.T) {
	frame := []byte{0x03, 0x20, 0x3D, 0x5A, 0x77, 0x94, 0xB1, 0xCE, 0xEB}

	tests := []struct {
		name   string
		fn     func([]byte, *VoiceBits)
		mode   Mode
		planes [AMBE_PLANES]string
	}{
		{
			name: "D-Star 3600x2400",
			fn:   DeinterleaveAmbe3600x2400,
			mode: ModeAmbe3600x2400,
			planes: [AMBE_PLANES]string{
				"011011011010110100101010",
				"011111110001111010010000",
				"000111001000000000000000",
				"110000101000110000000000",
			},
		},
		{
			name: "DMR 3600x2450",
			fn:   DeinterleaveAmbe3600x2450,
			mode: ModeAmbe3600x2450,
			planes: [AMBE_PLANES]string{
				"100000111101010010100000",
				"011100101100111001011010",
				"001011100100000000000000",
				"100011011101110000000000",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out VoiceBits
			tt.fn(frame, &out)

			if out.Mode != tt.mode {
				t.Errorf("Mode = %v, want %v", out.Mode, tt.mode)
			}
			for p := 0; p < AMBE_PLANES; p++ {
				if got := bitString(out.Planes[p][:]); got != tt.planes[p] {
					t.Errorf("plane %d = %s, want %s", p, got, tt.planes[p])
				}
			}
			for i, b := range out.Data {
				if b != 0 {
					t.Fatalf("Data[%d] = %d, want 0 (synthesizer scratch)", i, b)
				}
			}
		})
	}
}

func TestDeinterleavePlanes_AllZeroAllOne(t *testing.T) {
	tables := []struct {
		name string
		fn   func([]byte, *VoiceBits)
		w, x *[AMBE_FRAME_BYTES][8]uint8
	}{
		{"3600x2400", DeinterleaveAmbe3600x2400, &AMBE3600x2400_W, &AMBE3600x2400_X},
		{"3600x2450", DeinterleaveAmbe3600x2450, &AMBE3600x2450_W, &AMBE3600x2450_X},
	}

	for _, tt := range tables {
		t.Run(tt.name, func(t *testing.T) {
			var targeted [AMBE_PLANES][AMBE_PLANE_BITS]bool
			for i := 0; i < AMBE_FRAME_BYTES; i++ {
				for b := 0; b < 8; b++ {
					targeted[tt.w[i][b]][tt.x[i][b]] = true
				}
			}

			var zeros, ones VoiceBits
			tt.fn(filledFrame(AMBE_FRAME_BYTES, 0x00), &zeros)
			tt.fn(filledFrame(AMBE_FRAME_BYTES, 0xFF), &ones)

			count := 0
			for p := 0; p < AMBE_PLANES; p++ {
				for i := 0; i < AMBE_PLANE_BITS; i++ {
					if zeros.Planes[p][i] != 0 {
						t.Errorf("all-zero frame set plane %d bit %d", p, i)
					}
					want := uint8(0)
					if targeted[p][i] {
						want = 1
						count++
					}
					if ones.Planes[p][i] != want {
						t.Errorf("all-one frame plane %d bit %d = %d, want %d", p, i, ones.Planes[p][i], want)
					}
				}
			}
			if count != AMBE_FRAME_BYTES*8 {
				t.Errorf("table targets %d cells, want %d distinct cells", count, AMBE_FRAME_BYTES*8)
			}
		})
	}
}

func TestDeinterleaveAmbe2450(t *testing.T) {
	t.Run("reference vector", func(t *testing.T) {
		frame := []byte{0xC9, 0xFE, 0x33, 0x68, 0x9D, 0xD2, 0x87}
		want := "1001101000001111001111101111001100110011100110110"

		var out VoiceBits
		DeinterleaveAmbe2450(frame, &out)

		if got := bitString(out.DataBits()); got != want {
			t.Errorf("data = %s, want %s", got, want)
		}
	})

	t.Run("only bit 7 of the last byte is used", func(t *testing.T) {
		frame := make([]byte, AMBE2450_FRAME_BYTES)
		frame[6] = 0x7F

		var out VoiceBits
		DeinterleaveAmbe2450(frame, &out)
		if got := bitString(out.DataBits()); got != strings.Repeat("0", AMBE_DATA_BITS) {
			t.Errorf("low bits of byte 6 leaked into data: %s", got)
		}

		frame[6] = 0x80
		DeinterleaveAmbe2450(frame, &out)
		for i, b := range out.DataBits() {
			want := uint8(0)
			if i == AMBE2450_LAST_BIT_INDEX {
				want = 1
			}
			if b != want {
				t.Errorf("Data[%d] = %d, want %d", i, b, want)
			}
		}
	})

	t.Run("all zero and all one", func(t *testing.T) {
		var out VoiceBits
		DeinterleaveAmbe2450(filledFrame(AMBE2450_FRAME_BYTES, 0x00), &out)
		if got := bitString(out.DataBits()); got != strings.Repeat("0", AMBE_DATA_BITS) {
			t.Errorf("all-zero frame = %s", got)
		}
		DeinterleaveAmbe2450(filledFrame(AMBE2450_FRAME_BYTES, 0xFF), &out)
		if got := bitString(out.DataBits()); got != strings.Repeat("1", AMBE_DATA_BITS) {
			t.Errorf("all-one frame = %s", got)
		}
	})
}

func TestAssembleImbeVoiceFrame(t *testing.T) {
	t.Run("all zero and all one", func(t *testing.T) {
		var voice [IMBE_FRAME_BYTES]byte

		AssembleImbeVoiceFrame(filledFrame(IMBE_FRAME_BYTES, 0x00), &voice)
		if !bytes.Equal(voice[:], filledFrame(IMBE_FRAME_BYTES, 0x00)) {
			t.Errorf("all-zero frame assembled to % X", voice)
		}

		AssembleImbeVoiceFrame(filledFrame(IMBE_FRAME_BYTES, 0xFF), &voice)
		if !bytes.Equal(voice[:], filledFrame(IMBE_FRAME_BYTES, 0xFF)) {
			t.Errorf("all-one frame assembled to % X", voice)
		}
	})

	t.Run("every source bit has its own position", func(t *testing.T) {
		var seen [IMBE_VOICE_FRAME_BITS]bool
		for i := 0; i < IMBE_FRAME_BYTES; i++ {
			for b := 0; b < 8; b++ {
				pos := IMBE7200x4400_POS[i][b]
				if seen[pos] {
					t.Fatalf("position %d targeted twice (byte %d bit %d)", pos, i, b)
				}
				seen[pos] = true

				frame := make([]byte, IMBE_FRAME_BYTES)
				frame[i] = 1 << b
				var voice [IMBE_FRAME_BYTES]byte
				AssembleImbeVoiceFrame(frame, &voice)

				want := make([]byte, IMBE_FRAME_BYTES)
				writeBit(want, int(pos), true)
				if !bytes.Equal(voice[:], want) {
					t.Fatalf("byte %d bit %d assembled to % X, want % X", i, b, voice, want)
				}
			}
		}
	})

	t.Run("reference vector", func(t *testing.T) {
		frame := make([]byte, IMBE_FRAME_BYTES)
		for i := range frame {
			frame[i] = byte(i*37 + 11)
		}
		want := []byte{
			0x52, 0xF2, 0xF2, 0x4E, 0xBB, 0xE4, 0x1B, 0xA4, 0x4E,
			0x0E, 0x0A, 0x4A, 0xDE, 0x9E, 0x16, 0x62, 0x15, 0xC8,
		}

		var voice [IMBE_FRAME_BYTES]byte
		AssembleImbeVoiceFrame(frame, &voice)
		if !bytes.Equal(voice[:], want) {
			t.Errorf("voice frame = % X, want % X", voice, want)
		}
	})
}

func TestDeinterleaveImbe7200x4400_ReferenceVector(t *testing.T) {
	frame := make([]byte, IMBE_FRAME_BYTES)
	for i := range frame {
		frame[i] = byte(i*37 + 11)
	}
	want := []byte{0x52, 0xF3, 0x34, 0x9D, 0xE9, 0xDE, 0xC8, 0x28, 0x02, 0x66, 0xC8}

	var out VoiceBits
	DeinterleaveImbe7200x4400(frame, &out)

	if out.Mode != ModeImbe7200x4400 {
		t.Errorf("Mode = %v, want %v", out.Mode, ModeImbe7200x4400)
	}
	if len(out.DataBits()) != IMBE_DATA_BITS {
		t.Fatalf("len(DataBits()) = %d, want %d", len(out.DataBits()), IMBE_DATA_BITS)
	}
	if got := PackBits(out.DataBits()); !bytes.Equal(got, want) {
		t.Errorf("data = % X, want % X", got, want)
	}
}

func TestDeinterleave_Deterministic(t *testing.T) {
	modes := []Mode{ModeAmbe3600x2400, ModeAmbe3600x2450, ModeAmbe2450, ModeImbe7200x4400}

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			frame := make([]byte, mode.FrameBytes())
			for i := range frame {
				frame[i] = byte(i*101 + 7)
			}

			var first, second VoiceBits
			if err := Deinterleave(mode, frame, &first); err != nil {
				t.Fatalf("Deinterleave() error = %v", err)
			}
			second.Data[0] = 1 // stale content must not survive
			if err := Deinterleave(mode, frame, &second); err != nil {
				t.Fatalf("Deinterleave() error = %v", err)
			}
			if first != second {
				t.Errorf("second pass differs from first")
			}
		})
	}
}

func TestDeinterleave_Errors(t *testing.T) {
	var out VoiceBits

	if err := Deinterleave(ModeUnknown, make([]byte, 18), &out); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Deinterleave(ModeUnknown) error = %v, want ErrUnknownMode", err)
	}
	if err := Deinterleave(ModeImbe7200x4400, make([]byte, 9), &out); !errors.Is(err, ErrFrameSize) {
		t.Errorf("Deinterleave(short frame) error = %v, want ErrFrameSize", err)
	}
}

func TestPackBits(t *testing.T) {
	got := PackBits([]uint8{1, 0, 1, 0, 0, 0, 0, 1, 1})
	want := []byte{0xA1, 0x80}
	if !bytes.Equal(got, want) {
		t.Errorf("PackBits() = % X, want % X", got, want)
	}
}

func BenchmarkDeinterleaveAmbe3600x2450(b *testing.B) {
	frame := filledFrame(AMBE_FRAME_BYTES, 0x5A)
	var out VoiceBits
	for i := 0; i < b.N; i++ {
		DeinterleaveAmbe3600x2450(frame, &out)
	}
}

func BenchmarkDeinterleaveImbe7200x4400(b *testing.B) {
	frame := filledFrame(IMBE_FRAME_BYTES, 0x5A)
	var out VoiceBits
	for i := 0; i < b.N; i++ {
		DeinterleaveImbe7200x4400(frame, &out)
	}
}
