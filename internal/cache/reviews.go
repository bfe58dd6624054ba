package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wanicli/wani/internal/wanidata"
)

// Pending and confirmed reviews live in one table, distinguished by the
// available_at column being NULL. That makes the submission queue and the
// confirmed history the same storage, so they cannot drift apart: a pending
// row is converted in place when the server confirms it, exactly once.

// PendingReview is a locally queued review plus its cache surrogate id.
type PendingReview struct {
	LocalID int64
	wanidata.NewReview
}

// ConfirmedReview is a server-acknowledged review row.
type ConfirmedReview struct {
	LocalID                 int64
	ReviewID                int64
	AssignmentID            int64
	CreatedAt               time.Time
	IncorrectMeaningAnswers int
	IncorrectReadingAnswers int
	Status                  wanidata.ReviewStatus
	AvailableAt             time.Time
}

// EnqueueReview inserts a locally graded review with no server identifier
// and no availability timestamp. Returns the surrogate row id.
func (db *DB) EnqueueReview(ctx context.Context, r wanidata.NewReview) (int64, error) {
	query := `
	INSERT INTO reviews
		(assignment_id, created_at, incorrect_meaning_answers, incorrect_reading_answers, status)
	VALUES (?, ?, ?, ?, ?)`

	res, err := db.conn.ExecContext(ctx, query,
		r.AssignmentID,
		fmtTime(r.CreatedAt),
		r.IncorrectMeaningAnswers,
		r.IncorrectReadingAnswers,
		int(r.Status),
	)
	if err != nil {
		return 0, storeErr(fmt.Sprintf("enqueue review for assignment %d", r.AssignmentID), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("read enqueued review id", err)
	}
	return id, nil
}

// PendingReviews returns the submission queue: every review row the server
// has not yet acknowledged, oldest first.
func (db *DB) PendingReviews(ctx context.Context) ([]PendingReview, error) {
	query := `
	SELECT id, assignment_id, created_at, incorrect_meaning_answers, incorrect_reading_answers, status
	FROM reviews
	WHERE available_at IS NULL
	ORDER BY created_at ASC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reviews: %w", err)
	}
	defer rows.Close()

	var out []PendingReview
	for rows.Next() {
		var (
			p         PendingReview
			createdAt string
			status    int
		)
		err := rows.Scan(
			&p.LocalID,
			&p.AssignmentID,
			&createdAt,
			&p.IncorrectMeaningAnswers,
			&p.IncorrectReadingAnswers,
			&status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending review: %w", err)
		}
		created, err := parseTime(createdAt)
		if err != nil {
			return nil, decodeErr("reviews", p.LocalID, err)
		}
		p.CreatedAt = created
		p.Status = wanidata.ReviewStatus(status)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending reviews: %w", err)
	}
	return out, nil
}

// confirmReview converts the oldest pending row for an assignment into a
// confirmed one in place, assigning the server identifier and availability
// timestamp. Exactly one row converts per acknowledgment: submission order
// is oldest first, so the oldest pending row is the one the server just
// acknowledged, and any younger pending rows for the same assignment stay
// queued. This is the only write path that populates either column.
func confirmReview(ctx context.Context, q querier, assignmentID, reviewID int64, availableAt time.Time) error {
	query := `
	UPDATE reviews
	SET review_id = ?, available_at = ?
	WHERE id = (
		SELECT id FROM reviews
		WHERE assignment_id = ? AND available_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	)`

	res, err := q.ExecContext(ctx, query, reviewID, fmtTime(availableAt), assignmentID)
	if err != nil {
		return storeErr(fmt.Sprintf("confirm review for assignment %d", assignmentID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(fmt.Sprintf("confirm review for assignment %d", assignmentID), err)
	}
	if n == 0 {
		return fmt.Errorf("no pending review for assignment %d: %w", assignmentID, sql.ErrNoRows)
	}
	return nil
}

// ConfirmReview marks the pending review for an assignment as acknowledged.
func (db *DB) ConfirmReview(ctx context.Context, assignmentID, reviewID int64, availableAt time.Time) error {
	return confirmReview(ctx, db.conn, assignmentID, reviewID, availableAt)
}

// ConfirmReview marks the pending review for an assignment as acknowledged,
// inside the transaction.
func (t *Tx) ConfirmReview(ctx context.Context, assignmentID, reviewID int64, availableAt time.Time) error {
	return confirmReview(ctx, t.tx, assignmentID, reviewID, availableAt)
}

// RemoveReview deletes the pending review for an assignment outright.
// Idempotent: removing an absent row is not an error.
func (db *DB) RemoveReview(ctx context.Context, assignmentID int64) error {
	query := `DELETE FROM reviews WHERE assignment_id = ? AND available_at IS NULL`
	if _, err := db.conn.ExecContext(ctx, query, assignmentID); err != nil {
		return storeErr(fmt.Sprintf("remove review for assignment %d", assignmentID), err)
	}
	return nil
}

// ConfirmedReviews returns acknowledged reviews available at or before the
// given time, oldest availability first.
func (db *DB) ConfirmedReviews(ctx context.Context, before time.Time) ([]ConfirmedReview, error) {
	query := `
	SELECT id, review_id, assignment_id, created_at,
	       incorrect_meaning_answers, incorrect_reading_answers, status, available_at
	FROM reviews
	WHERE available_at IS NOT NULL AND available_at <= ?
	ORDER BY available_at ASC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query, fmtTime(before))
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed reviews: %w", err)
	}
	defer rows.Close()

	var out []ConfirmedReview
	for rows.Next() {
		var (
			c           ConfirmedReview
			createdAt   string
			status      int
			availableAt string
		)
		err := rows.Scan(
			&c.LocalID,
			&c.ReviewID,
			&c.AssignmentID,
			&createdAt,
			&c.IncorrectMeaningAnswers,
			&c.IncorrectReadingAnswers,
			&status,
			&availableAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan confirmed review: %w", err)
		}
		created, err := parseTime(createdAt)
		if err != nil {
			return nil, decodeErr("reviews", c.LocalID, err)
		}
		available, err := parseTime(availableAt)
		if err != nil {
			return nil, decodeErr("reviews", c.LocalID, err)
		}
		c.CreatedAt = created
		c.AvailableAt = available
		c.Status = wanidata.ReviewStatus(status)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating confirmed reviews: %w", err)
	}
	return out, nil
}
