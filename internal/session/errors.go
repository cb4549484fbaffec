package session

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedDirection is returned when encoding is requested
	ErrUnsupportedDirection = errors.New("session: encoding is not supported")

	ErrMalformedRateDescriptor = errors.New("session: malformed ratep descriptor")
	ErrMalformedRateIndex      = errors.New("session: malformed rate index")
	ErrUnknownRateIndex        = errors.New("session: unknown rate index")
	ErrUnsupportedRate         = errors.New("session: unsupported frame/data bit combination")
	ErrNoRateParameters        = errors.New("session: neither index nor ratep given")

	// ErrNotNegotiated is returned by Decode and Read before the first
	// successful negotiation
	ErrNotNegotiated = errors.New("session: no mode negotiated")

	// ErrSessionEnded is returned by every operation after End
	ErrSessionEnded = errors.New("session: ended")

	// ErrShortBuffer is returned by Read when out cannot hold one audio frame
	ErrShortBuffer = errors.New("session: output buffer too short")
)

// NegotiationError describes a rejected negotiation argument. The session
// is left exactly as it was; the caller may retry with other settings.
type NegotiationError struct {
	Arg   string // "index", "ratep" or empty when nothing usable was given
	Value string
	Err   error
}

func (e *NegotiationError) Error() string {
	if e.Arg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s=%q", e.Err, e.Arg, e.Value)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// FailureReason returns a short stable label for a negotiation error,
// suitable for metrics
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedDirection):
		return "unsupported_direction"
	case errors.Is(err, ErrMalformedRateDescriptor):
		return "malformed_ratep"
	case errors.Is(err, ErrMalformedRateIndex):
		return "malformed_index"
	case errors.Is(err, ErrUnknownRateIndex):
		return "unknown_index"
	case errors.Is(err, ErrUnsupportedRate):
		return "unsupported_rate"
	case errors.Is(err, ErrNoRateParameters):
		return "no_parameters"
	case errors.Is(err, ErrSessionEnded):
		return "ended"
	default:
		return "other"
	}
}
