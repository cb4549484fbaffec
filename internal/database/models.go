package database

import (
	"fmt"
	"strings"
	"time"
)

// Session end reasons
const (
	END_REASON_CLIENT     = "client"     // session/end message
	END_REASON_DISCONNECT = "disconnect" // transport closed
	END_REASON_SHUTDOWN   = "shutdown"   // server stopping
	END_REASON_ERROR      = "error"
)

// SessionRecord is the journal entry for one decode session
type SessionRecord struct {
	ID             string     `gorm:"primarykey;size:36" json:"id"`
	Driver         string     `gorm:"size:32" json:"driver"`
	Synthesizer    string     `gorm:"size:32" json:"synthesizer"`
	Mode           string     `gorm:"index;size:32" json:"mode"`
	RemoteAddr     string     `gorm:"size:64" json:"remote_addr"`
	Args           string     `gorm:"size:128" json:"args"`
	Quality        int        `json:"quality"`
	FramesIn       uint64     `json:"frames_in"`
	FramesOut      uint64     `json:"frames_out"`
	Errors         uint64     `json:"errors"`
	Errors2        uint64     `json:"errors2"`
	Renegotiations uint64     `json:"renegotiations"`
	EndReason      string     `gorm:"size:16" json:"end_reason,omitempty"`
	StartedAt      time.Time  `gorm:"index" json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// TableName specifies the table name for GORM
func (SessionRecord) TableName() string {
	return "sessions"
}

// Active reports whether the session has not been finished yet
func (r SessionRecord) Active() bool {
	return r.EndedAt == nil
}

// Duration returns how long the session lasted, or has lasted so far
func (r SessionRecord) Duration() time.Duration {
	if r.EndedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// IsValid checks if the record has required fields
func (r SessionRecord) IsValid() bool {
	return r.ID != "" && r.Driver != "" && !r.StartedAt.IsZero()
}

// SanitizeFields cleans up free-form fields
func (r *SessionRecord) SanitizeFields() {
	r.Driver = strings.TrimSpace(r.Driver)
	r.Mode = strings.ToLower(strings.TrimSpace(r.Mode))
	r.RemoteAddr = strings.TrimSpace(r.RemoteAddr)
	if len(r.Args) > 128 {
		r.Args = r.Args[:128]
	}
}

// String returns a formatted string representation
func (r SessionRecord) String() string {
	result := fmt.Sprintf("%s [%s/%s]", r.ID, r.Driver, r.Mode)

	if r.RemoteAddr != "" {
		result += fmt.Sprintf(" from %s", r.RemoteAddr)
	}

	result += fmt.Sprintf(" in=%d out=%d", r.FramesIn, r.FramesOut)

	if r.EndReason != "" {
		result += fmt.Sprintf(" (%s)", r.EndReason)
	}

	return result
}
