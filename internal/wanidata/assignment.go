package wanidata

import "time"

// Assignment is the user's progress record for one subject.
type Assignment struct {
	ID   int64
	Data AssignmentData
}

// AssignmentData holds the SRS stage and lifecycle timestamps of an
// assignment. A nil timestamp means the lifecycle event has not happened.
type AssignmentData struct {
	AvailableAt   *time.Time  `json:"available_at"`
	BurnedAt      *time.Time  `json:"burned_at"`
	CreatedAt     time.Time   `json:"created_at"`
	Hidden        bool        `json:"hidden"`
	PassedAt      *time.Time  `json:"passed_at"`
	ResurrectedAt *time.Time  `json:"resurrected_at"`
	SRSStage      int         `json:"srs_stage"`
	StartedAt     *time.Time  `json:"started_at"`
	SubjectID     int64       `json:"subject_id"`
	SubjectType   SubjectType `json:"subject_type"`
	UnlockedAt    *time.Time  `json:"unlocked_at"`
}

func (Assignment) object() string { return ObjectAssignment }
