package codec

import "testing"

func TestGolay23127_RoundTrip(t *testing.T) {
	for data := uint32(0); data < 1<<GOLAY_DATA_BITS; data += 37 {
		code := Encode23127(data)
		if code>>GOLAY_PARITY_BITS != data {
			t.Fatalf("Encode23127(%03X) is not systematic: %06X", data, code)
		}
		if s := golaySyndrome(code); s != 0 {
			t.Fatalf("Encode23127(%03X) syndrome = %03X, want 0", data, s)
		}
		got, errs := Decode23127(code)
		if got != data || errs != 0 {
			t.Errorf("Decode23127(%06X) = %03X, %d; want %03X, 0", code, got, errs, data)
		}
	}
}

func TestGolay23127_CorrectsUpToThreeErrors(t *testing.T) {
	tests := []struct {
		name  string
		flips []uint
	}{
		{"one data bit", []uint{20}},
		{"one parity bit", []uint{3}},
		{"two bits", []uint{0, 22}},
		{"three bits", []uint{5, 11, 17}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := uint32(0xA5C)
			code := Encode23127(data)
			for _, f := range tt.flips {
				code ^= 1 << f
			}

			got, errs := Decode23127(code)
			if got != data {
				t.Errorf("Decode23127() data = %03X, want %03X", got, data)
			}
			if errs != len(tt.flips) {
				t.Errorf("Decode23127() errors = %d, want %d", errs, len(tt.flips))
			}
		})
	}
}

func TestGolaySyndromeTable_IsComplete(t *testing.T) {
	seen := make(map[uint32]bool)
	for s, pattern := range golaySyndromes {
		if s != 0 && pattern == 0 {
			t.Fatalf("syndrome %03X has no error pattern", s)
		}
		if popcount(pattern) > GOLAY_MAX_ERRORS {
			t.Errorf("syndrome %03X maps to weight %d", s, popcount(pattern))
		}
		if seen[pattern] {
			t.Errorf("pattern %06X appears twice", pattern)
		}
		seen[pattern] = true
	}
}

func TestAmbeC0Errors(t *testing.T) {
	bits := VoiceBits{Mode: ModeAmbe3600x2450}
	code := Encode23127(0x3C5)
	for i := 0; i < GOLAY_CODE_BITS; i++ {
		bits.Planes[0][i+1] = uint8(code >> uint(i) & 1)
	}
	bits.Planes[0][0] = 1 // parity bit is ignored

	if got := AmbeC0Errors(&bits); got != 0 {
		t.Errorf("AmbeC0Errors(clean) = %d, want 0", got)
	}

	bits.Planes[0][4] ^= 1
	bits.Planes[0][19] ^= 1
	if got := AmbeC0Errors(&bits); got != 2 {
		t.Errorf("AmbeC0Errors(two flips) = %d, want 2", got)
	}

	bits.Mode = ModeAmbe2450
	if got := AmbeC0Errors(&bits); got != 0 {
		t.Errorf("AmbeC0Errors(ambe2450) = %d, want 0", got)
	}
}

func BenchmarkDecode23127(b *testing.B) {
	code := Encode23127(0x5A5) ^ 0x41
	for i := 0; i < b.N; i++ {
		_, _ = Decode23127(code)
	}
}
