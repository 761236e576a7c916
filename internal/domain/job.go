package domain

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// JobStatus enumerates album job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// MaxErrorMessageLen bounds the error_message column.
const MaxErrorMessageLen = 1000

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Transitions only go forward; nothing re-enters pending.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// AlbumJob is one row of the album_jobs table.
type AlbumJob struct {
	ID            string
	UserID        string
	SessionID     string
	CustomerName  string
	AlbumTitle    string
	AlbumSubtitle string
	Payload       json.RawMessage
	Status        JobStatus
	OutputKey     *string
	ErrorMessage  *string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

// NewAlbumJob carries what the enqueue path knows before a row exists.
type NewAlbumJob struct {
	UserID        string
	SessionID     string
	CustomerName  string
	AlbumTitle    string
	AlbumSubtitle string
	Payload       json.RawMessage
}

// TruncateError bounds msg to max runes without splitting a UTF-8 sequence.
func TruncateError(msg string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(msg) <= max {
		return msg
	}
	count := 0
	for i := range msg {
		if count == max {
			return msg[:i]
		}
		count++
	}
	return msg
}
