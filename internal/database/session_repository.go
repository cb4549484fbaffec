package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrSessionNotFound is returned when no journal entry has the given ID
var ErrSessionNotFound = errors.New("database: session not found")

// SessionTotals aggregates the journal counters
type SessionTotals struct {
	Sessions  int64  `json:"sessions"`
	Active    int64  `json:"active"`
	FramesIn  uint64 `json:"frames_in"`
	FramesOut uint64 `json:"frames_out"`
}

// SessionRepository provides database operations for the session journal
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts the journal entry for a freshly started session
func (r *SessionRepository) Create(record *SessionRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	record.SanitizeFields()
	if !record.IsValid() {
		return fmt.Errorf("session record is not valid: id=%q, driver=%q", record.ID, record.Driver)
	}

	return r.db.Create(record).Error
}

// Update stores the latest counters and mode of a running session
func (r *SessionRepository) Update(record *SessionRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	record.SanitizeFields()

	res := r.db.Model(&SessionRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"mode":           record.Mode,
			"frames_in":      record.FramesIn,
			"frames_out":     record.FramesOut,
			"errors":         record.Errors,
			"errors2":        record.Errors2,
			"renegotiations": record.Renegotiations,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Finish stores the final counters and marks the session as ended
func (r *SessionRepository) Finish(record *SessionRecord, reason string, endedAt time.Time) error {
	if err := r.Update(record); err != nil {
		return err
	}

	record.EndReason = reason
	record.EndedAt = &endedAt
	return r.db.Model(&SessionRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"end_reason": reason,
			"ended_at":   endedAt,
		}).Error
}

// GetByID finds a session by its identifier
func (r *SessionRepository) GetByID(id string) (*SessionRecord, error) {
	var record SessionRecord
	err := r.db.Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Recent returns the most recently started sessions, newest first
func (r *SessionRepository) Recent(limit int) ([]SessionRecord, error) {
	var records []SessionRecord
	err := r.db.Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Active returns the sessions that have not been finished
func (r *SessionRepository) Active() ([]SessionRecord, error) {
	var records []SessionRecord
	err := r.db.Where("ended_at IS NULL").
		Order("started_at ASC").
		Find(&records).Error
	return records, err
}

// Prune deletes finished sessions that ended before the cutoff and
// returns how many were removed
func (r *SessionRepository) Prune(before time.Time) (int64, error) {
	res := r.db.Where("ended_at IS NOT NULL AND ended_at < ?", before).
		Delete(&SessionRecord{})
	return res.RowsAffected, res.Error
}

// Count returns the total number of journal entries
func (r *SessionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&SessionRecord{}).Count(&count).Error
	return count, err
}

// Totals returns aggregate counters over the whole journal
func (r *SessionRepository) Totals() (SessionTotals, error) {
	var totals SessionTotals

	var sums struct {
		FramesIn  uint64
		FramesOut uint64
	}
	err := r.db.Model(&SessionRecord{}).
		Select("COALESCE(SUM(frames_in), 0) AS frames_in, COALESCE(SUM(frames_out), 0) AS frames_out").
		Scan(&sums).Error
	if err != nil {
		return totals, err
	}
	totals.FramesIn = sums.FramesIn
	totals.FramesOut = sums.FramesOut

	if totals.Sessions, err = r.Count(); err != nil {
		return totals, err
	}
	err = r.db.Model(&SessionRecord{}).Where("ended_at IS NULL").Count(&totals.Active).Error
	return totals, err
}

// HealthCheck verifies the repository is working correctly
func (r *SessionRepository) HealthCheck() error {
	var count int64
	return r.db.Model(&SessionRecord{}).Count(&count).Error
}
