package wanidata

import (
	"encoding/json"
	"time"
)

// Review is a server-confirmed review resource.
type Review struct {
	ID   int64
	Data ReviewData
}

// ReviewData holds the graded result of a confirmed review.
type ReviewData struct {
	AssignmentID            int64     `json:"assignment_id"`
	CreatedAt               time.Time `json:"created_at"`
	EndingSRSStage          int       `json:"ending_srs_stage"`
	IncorrectMeaningAnswers int       `json:"incorrect_meaning_answers"`
	IncorrectReadingAnswers int       `json:"incorrect_reading_answers"`
	SRSID                   int64     `json:"spaced_repetition_system_id"`
	StartingSRSStage        int       `json:"starting_srs_stage"`
	SubjectID               int64     `json:"subject_id"`
}

func (Review) object() string { return ObjectReview }

// ReviewStatus tracks how far a locally graded review has progressed. The
// numeric values are stable because they are persisted in the reviews table.
type ReviewStatus int

const (
	ReviewNotStarted ReviewStatus = iota
	ReviewMeaningDone
	ReviewReadingDone
	ReviewDone
)

// NewReview is a review result created locally before the server has
// confirmed it. It has no server identifier and no availability timestamp;
// both are assigned at confirmation time.
type NewReview struct {
	AssignmentID            int64
	CreatedAt               time.Time
	IncorrectMeaningAnswers int
	IncorrectReadingAnswers int
	Status                  ReviewStatus
}

// newReviewWire is the exact submission shape the server expects.
type newReviewWire struct {
	AssignmentID            int64        `json:"assignment_id"`
	IncorrectMeaningAnswers int          `json:"incorrect_meaning_answers"`
	IncorrectReadingAnswers int          `json:"incorrect_reading_answers"`
	Status                  ReviewStatus `json:"status"`
}

// EncodeWire renders the pending review as the POST /reviews request body:
// a {"review": {...}} wrapper around the submission fields. This is the
// only wire-encoding path in the model; everything else is read-only.
func (r *NewReview) EncodeWire() ([]byte, error) {
	return json.Marshal(struct {
		Review newReviewWire `json:"review"`
	}{
		Review: newReviewWire{
			AssignmentID:            r.AssignmentID,
			IncorrectMeaningAnswers: r.IncorrectMeaningAnswers,
			IncorrectReadingAnswers: r.IncorrectReadingAnswers,
			Status:                  r.Status,
		},
	})
}
