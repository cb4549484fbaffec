package server

import (
	"github.com/dbehnke/mbedecode/internal/session"
)

// Websocket control message types
const (
	MSG_SESSION_START       = "session/start"
	MSG_SESSION_FRAMING     = "session/framing"
	MSG_SESSION_RENEGOTIATE = "session/renegotiate"
	MSG_SESSION_END         = "session/end"
	MSG_SESSION_ENDED       = "session/ended"
	MSG_ERROR               = "error"
)

// ControlMessage is a text message sent by the client
type ControlMessage struct {
	Type       string            `json:"type"`
	Codec      string            `json:"codec,omitempty"`
	Directions []string          `json:"directions,omitempty"`
	Args       map[string]string `json:"args,omitempty"`
}

// Settings converts the message into negotiation settings. An empty
// direction list means decode.
func (m ControlMessage) Settings() session.Settings {
	settings := session.Settings{Args: m.Args}
	if len(m.Directions) == 0 {
		settings.Directions = []session.Direction{session.DirectionDecode}
		return settings
	}
	for _, d := range m.Directions {
		settings.Directions = append(settings.Directions, session.Direction(d))
	}
	return settings
}

// FramingMessage tells the client how to chunk frames and audio
type FramingMessage struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id"`
	Mode      string              `json:"mode"`
	Framing   session.FramingHint `json:"framing"`
}

// EndedMessage is the last message of a session
type EndedMessage struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	Stats     session.Stats `json:"stats"`
}

// ErrorMessage reports a failed request. Reason is a stable label.
type ErrorMessage struct {
	Type   string `json:"type"`
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func newErrorMessage(err error) ErrorMessage {
	return ErrorMessage{Type: MSG_ERROR, Error: err.Error(), Reason: session.FailureReason(err)}
}

func newFramingMessage(s *session.Session) FramingMessage {
	return FramingMessage{
		Type:      MSG_SESSION_FRAMING,
		SessionID: s.ID().String(),
		Mode:      s.Mode().String(),
		Framing:   s.Framing(),
	}
}
