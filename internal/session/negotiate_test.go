package session

import (
	"errors"
	"testing"

	"github.com/dbehnke/mbedecode/internal/codec"
)

const (
	ratepDStar = "0130:0763:4000:0000:0000:0048"
	ratepImbe  = "0058:0000:0000:0000:0000:0090"
)

func TestParseRateP(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := ParseRateP(ratepDStar)
		if err != nil {
			t.Fatalf("ParseRateP() error = %v", err)
		}
		want := RateParameters{0x0130, 0x0763, 0x4000, 0x0000, 0x0000, 0x0048}
		if p != want {
			t.Errorf("ParseRateP() = %04X, want %04X", p, want)
		}
		if p.FrameBits() != 72 || p.DataBits() != 48 {
			t.Errorf("FrameBits/DataBits = %d/%d, want 72/48", p.FrameBits(), p.DataBits())
		}
	})

	t.Run("lower case hex", func(t *testing.T) {
		p, err := ParseRateP("abcd:ef01:0000:0000:0000:00ff")
		if err != nil {
			t.Fatalf("ParseRateP() error = %v", err)
		}
		if p[0] != 0xABCD || p[5] != 0x00FF {
			t.Errorf("ParseRateP() = %04X", p)
		}
	})

	malformed := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"too short", "0130:0763:4000:0000:0000:004"},
		{"too long", "0130:0763:4000:0000:0000:00480"},
		{"five fields", "0130-0763:4000:0000:0000:0048"},
		{"seven fields", "013:0763:4000:0000:0000:00:48"},
		{"uneven fields", "130:00763:4000:0000:0000:0048"},
		{"non hex digit", "013G:0763:4000:0000:0000:0048"},
		{"sign", "+130:0763:4000:0000:0000:0048"},
		{"spaces", " 130:0763:4000:0000:0000:0048"},
	}

	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseRateP(tt.in)
			if !errors.Is(err, ErrMalformedRateDescriptor) {
				t.Errorf("ParseRateP(%q) error = %v, want ErrMalformedRateDescriptor", tt.in, err)
			}
			if p != (RateParameters{}) {
				t.Errorf("ParseRateP(%q) returned partial result %04X", tt.in, p)
			}
		})
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		mode     codec.Mode
		frame    int
		data     int
		err      error
	}{
		{"index 33", Settings{Args: map[string]string{"index": "33"}}, codec.ModeAmbe3600x2450, 72, 49, nil},
		{"index 34", Settings{Args: map[string]string{"index": "34"}}, codec.ModeAmbe2450, 49, 49, nil},
		{"index 59", Settings{Args: map[string]string{"index": "59"}}, codec.ModeImbe7200x4400, 144, 88, nil},
		{"index with decode direction", Settings{Directions: []Direction{DirectionDecode}, Args: map[string]string{"index": "33"}}, codec.ModeAmbe3600x2450, 72, 49, nil},
		{"index wins over ratep", Settings{Args: map[string]string{"index": "34", "ratep": ratepDStar}}, codec.ModeAmbe2450, 49, 49, nil},
		{"ratep D-Star", Settings{Args: map[string]string{"ratep": ratepDStar}}, codec.ModeAmbe3600x2400, 72, 48, nil},
		{"ratep IMBE", Settings{Args: map[string]string{"ratep": ratepImbe}}, codec.ModeImbe7200x4400, 144, 88, nil},
		{"unknown index", Settings{Args: map[string]string{"index": "42"}}, codec.ModeUnknown, 0, 0, ErrUnknownRateIndex},
		{"non numeric index", Settings{Args: map[string]string{"index": "dmr"}}, codec.ModeUnknown, 0, 0, ErrMalformedRateIndex},
		{"unsupported ratep", Settings{Args: map[string]string{"ratep": "0031:0000:0000:0000:0000:0048"}}, codec.ModeUnknown, 0, 0, ErrUnsupportedRate},
		{"malformed ratep", Settings{Args: map[string]string{"ratep": "0130:0763"}}, codec.ModeUnknown, 0, 0, ErrMalformedRateDescriptor},
		{"no parameters", Settings{Args: map[string]string{"foo": "bar"}}, codec.ModeUnknown, 0, 0, ErrNoRateParameters},
		{"nil args", Settings{}, codec.ModeUnknown, 0, 0, ErrNoRateParameters},
		{"encode", Settings{Directions: []Direction{DirectionDecode, DirectionEncode}, Args: map[string]string{"index": "33"}}, codec.ModeUnknown, 0, 0, ErrUnsupportedDirection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Negotiate(tt.settings)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("Negotiate() error = %v, want %v", err, tt.err)
				}
				if !g.IsZero() {
					t.Errorf("Negotiate() returned geometry %+v alongside an error", g)
				}
				return
			}
			if err != nil {
				t.Fatalf("Negotiate() error = %v", err)
			}
			if g.Mode != tt.mode || g.FrameBits != tt.frame || g.DataBits != tt.data {
				t.Errorf("Negotiate() = %v %d/%d, want %v %d/%d", g.Mode, g.FrameBits, g.DataBits, tt.mode, tt.frame, tt.data)
			}
			if g.FrameBytes != (tt.frame+7)/8 || g.AudioBytes != 320 || g.AudioSamples != 160 {
				t.Errorf("Negotiate() derived framing %+v", g)
			}
		})
	}
}

func TestNegotiationError(t *testing.T) {
	_, err := Negotiate(Settings{Args: map[string]string{"index": "99"}})

	var ne *NegotiationError
	if !errors.As(err, &ne) {
		t.Fatalf("error %v is not a *NegotiationError", err)
	}
	if ne.Arg != "index" || ne.Value != "99" {
		t.Errorf("NegotiationError = %+v", ne)
	}
	if got := FailureReason(err); got != "unknown_index" {
		t.Errorf("FailureReason() = %q, want unknown_index", got)
	}

	if _, err := Negotiate(Settings{Directions: []Direction{DirectionEncode}}); errors.As(err, &ne) {
		t.Errorf("encode rejection should not be a NegotiationError: %v", err)
	}
}

func TestRateIndexes(t *testing.T) {
	got := RateIndexes()
	want := []int{33, 34, 59}
	if len(got) != len(want) {
		t.Fatalf("RateIndexes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RateIndexes() = %v, want %v", got, want)
		}
	}
}
