package session

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/dbehnke/mbedecode/internal/codec"
)

// Direction is a requested transcoding direction
type Direction string

const (
	DirectionDecode Direction = "decode"
	DirectionEncode Direction = "encode"
)

// Negotiation argument keys
const (
	ARG_INDEX = "index"
	ARG_RATEP = "ratep"
)

// ratep descriptor: six 4-digit hex fields separated by colons
const (
	RATEP_FIELDS       = 6
	RATEP_FIELD_DIGITS = 4
	RATEP_LENGTH       = RATEP_FIELDS*RATEP_FIELD_DIGITS + RATEP_FIELDS - 1
)

// Settings is a negotiation request
type Settings struct {
	Directions []Direction
	Args       map[string]string
}

// RateParameters holds the six words of a ratep descriptor
type RateParameters [RATEP_FIELDS]uint16

// FrameBits returns the channel bits per frame carried in the descriptor
func (p RateParameters) FrameBits() int { return int(p[5] & 0xFF) }

// DataBits returns the vocoder data bits per frame carried in the descriptor
func (p RateParameters) DataBits() int { return int(p[0] & 0xFF) }

// FramingHint tells the caller how to chunk channel data and audio
type FramingHint struct {
	ChannelBits  int `json:"channel_bits"`
	ChannelBytes int `json:"channel_bytes"`
	AudioSamples int `json:"audio_samples"`
	AudioBytes   int `json:"audio_bytes"`
}

// NewFramingHint derives the hint for a negotiated geometry
func NewFramingHint(g codec.Geometry) FramingHint {
	return FramingHint{
		ChannelBits:  g.FrameBits,
		ChannelBytes: g.FrameBytes,
		AudioSamples: g.AudioSamples,
		AudioBytes:   g.AudioBytes,
	}
}

type rate struct {
	frameBits int
	dataBits  int
	mode      codec.Mode
}

// rate indexes as used by the AMBE-3000 family
var rateIndexTable = map[int]rate{
	33: {72, 49, codec.ModeAmbe3600x2450},
	34: {49, 49, codec.ModeAmbe2450},
	59: {144, 88, codec.ModeImbe7200x4400},
}

// ratep (frameBits, dataBits) pairs that select a mode
var rateParameterTable = []rate{
	{72, 48, codec.ModeAmbe3600x2400},
	{144, 88, codec.ModeImbe7200x4400},
}

// ParseRateP parses a descriptor like "0130:0763:4000:0000:0000:0048".
// Nothing is returned unless the whole string is well formed.
func ParseRateP(s string) (RateParameters, error) {
	var p RateParameters

	if len(s) != RATEP_LENGTH {
		return RateParameters{}, ErrMalformedRateDescriptor
	}

	fields := strings.Split(s, ":")
	if len(fields) != RATEP_FIELDS {
		return RateParameters{}, ErrMalformedRateDescriptor
	}

	for i, f := range fields {
		if len(f) != RATEP_FIELD_DIGITS {
			return RateParameters{}, ErrMalformedRateDescriptor
		}
		v, err := strconv.ParseUint(f, 16, 16)
		if err != nil {
			return RateParameters{}, ErrMalformedRateDescriptor
		}
		p[i] = uint16(v)
	}

	return p, nil
}

// Negotiate resolves settings to a frame geometry without touching any
// session. Encoding is always refused; index takes precedence over ratep.
func Negotiate(settings Settings) (codec.Geometry, error) {
	for _, d := range settings.Directions {
		if d == DirectionEncode {
			return codec.Geometry{}, ErrUnsupportedDirection
		}
	}

	if v, ok := settings.Args[ARG_INDEX]; ok {
		index, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return codec.Geometry{}, &NegotiationError{Arg: ARG_INDEX, Value: v, Err: ErrMalformedRateIndex}
		}
		r, ok := rateIndexTable[index]
		if !ok {
			return codec.Geometry{}, &NegotiationError{Arg: ARG_INDEX, Value: v, Err: ErrUnknownRateIndex}
		}
		return codec.NewGeometry(r.mode, r.frameBits, r.dataBits)
	}

	if v, ok := settings.Args[ARG_RATEP]; ok {
		p, err := ParseRateP(v)
		if err != nil {
			return codec.Geometry{}, &NegotiationError{Arg: ARG_RATEP, Value: v, Err: err}
		}
		for _, r := range rateParameterTable {
			if r.frameBits == p.FrameBits() && r.dataBits == p.DataBits() {
				return codec.NewGeometry(r.mode, r.frameBits, r.dataBits)
			}
		}
		return codec.Geometry{}, &NegotiationError{Arg: ARG_RATEP, Value: v, Err: ErrUnsupportedRate}
	}

	return codec.Geometry{}, &NegotiationError{Err: ErrNoRateParameters}
}

// RateIndexes lists the supported rate indexes in ascending order
func RateIndexes() []int {
	return slices.Sorted(maps.Keys(rateIndexTable))
}
