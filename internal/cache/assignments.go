package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wanicli/wani/internal/wanidata"
)

const assignmentColumns = `id,
	subject_id,
	subject_type,
	srs_stage,
	hidden,
	created_at,
	available_at,
	burned_at,
	passed_at,
	resurrected_at,
	started_at,
	unlocked_at`

func upsertAssignment(ctx context.Context, q querier, a wanidata.Assignment) error {
	query := "REPLACE INTO assignments (" + assignmentColumns + ") VALUES " + placeholders(12)
	_, err := q.ExecContext(ctx, query,
		a.ID,
		a.Data.SubjectID,
		int(a.Data.SubjectType),
		a.Data.SRSStage,
		a.Data.Hidden,
		fmtTime(a.Data.CreatedAt),
		timeToNullString(a.Data.AvailableAt),
		timeToNullString(a.Data.BurnedAt),
		timeToNullString(a.Data.PassedAt),
		timeToNullString(a.Data.ResurrectedAt),
		timeToNullString(a.Data.StartedAt),
		timeToNullString(a.Data.UnlockedAt),
	)
	if err != nil {
		return storeErr(fmt.Sprintf("upsert assignment %d", a.ID), err)
	}
	return nil
}

// UpsertAssignment writes one assignment with replace semantics.
func (db *DB) UpsertAssignment(ctx context.Context, a wanidata.Assignment) error {
	return upsertAssignment(ctx, db.conn, a)
}

// UpsertAssignment writes one assignment inside the transaction.
func (t *Tx) UpsertAssignment(ctx context.Context, a wanidata.Assignment) error {
	return upsertAssignment(ctx, t.tx, a)
}

func scanAssignment(row rowScanner) (wanidata.Assignment, error) {
	var (
		a             wanidata.Assignment
		subjectType   int
		createdAt     string
		availableAt   sql.NullString
		burnedAt      sql.NullString
		passedAt      sql.NullString
		resurrectedAt sql.NullString
		startedAt     sql.NullString
		unlockedAt    sql.NullString
	)
	err := row.Scan(
		&a.ID,
		&a.Data.SubjectID,
		&subjectType,
		&a.Data.SRSStage,
		&a.Data.Hidden,
		&createdAt,
		&availableAt,
		&burnedAt,
		&passedAt,
		&resurrectedAt,
		&startedAt,
		&unlockedAt,
	)
	if err != nil {
		return wanidata.Assignment{}, err
	}

	a.Data.SubjectType = wanidata.SubjectType(subjectType)
	created, err := parseTime(createdAt)
	if err != nil {
		return wanidata.Assignment{}, decodeErr("assignments", a.ID, err)
	}
	a.Data.CreatedAt = created

	optional := []struct {
		raw  sql.NullString
		dest **time.Time
	}{
		{availableAt, &a.Data.AvailableAt},
		{burnedAt, &a.Data.BurnedAt},
		{passedAt, &a.Data.PassedAt},
		{resurrectedAt, &a.Data.ResurrectedAt},
		{startedAt, &a.Data.StartedAt},
		{unlockedAt, &a.Data.UnlockedAt},
	}
	for _, o := range optional {
		t, err := nullStringToTime(o.raw)
		if err != nil {
			return wanidata.Assignment{}, decodeErr("assignments", a.ID, err)
		}
		*o.dest = t
	}

	return a, nil
}

// Assignment returns one assignment by id. Returns sql.ErrNoRows if absent.
func (db *DB) Assignment(ctx context.Context, id int64) (wanidata.Assignment, error) {
	query := "SELECT " + assignmentColumns + " FROM assignments WHERE id = ?"
	return scanAssignment(db.conn.QueryRowContext(ctx, query, id))
}

// DueLessons counts unlocked, unstarted, visible assignments: the lessons
// available at the given time.
func (db *DB) DueLessons(ctx context.Context, now time.Time) (int, error) {
	query := `
	SELECT COUNT(*) FROM assignments
	WHERE hidden = 0
	  AND unlocked_at IS NOT NULL AND unlocked_at <= ?
	  AND started_at IS NULL`

	var count int
	if err := db.conn.QueryRowContext(ctx, query, fmtTime(now)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count due lessons: %w", err)
	}
	return count, nil
}

// DueReviews counts started, visible assignments whose review is available
// at the given time.
func (db *DB) DueReviews(ctx context.Context, now time.Time) (int, error) {
	query := `
	SELECT COUNT(*) FROM assignments
	WHERE hidden = 0
	  AND started_at IS NOT NULL
	  AND available_at IS NOT NULL AND available_at <= ?`

	var count int
	if err := db.conn.QueryRowContext(ctx, query, fmtTime(now)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count due reviews: %w", err)
	}
	return count, nil
}

// DueAssignments returns up to limit started, visible assignments whose
// review is available at the given time, oldest first. Assignments that
// already have a queued review are skipped so they cannot be reviewed a
// second time before the queue drains. limit <= 0 means no limit.
func (db *DB) DueAssignments(ctx context.Context, now time.Time, limit int) ([]wanidata.Assignment, error) {
	query := "SELECT " + assignmentColumns + `
	FROM assignments
	WHERE hidden = 0
	  AND started_at IS NOT NULL
	  AND available_at IS NOT NULL AND available_at <= ?
	  AND NOT EXISTS (
		SELECT 1 FROM reviews
		WHERE reviews.assignment_id = assignments.id AND reviews.available_at IS NULL
	  )
	ORDER BY available_at, id`
	args := []any{fmtTime(now)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due assignments: %w", err)
	}
	defer rows.Close()

	var out []wanidata.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due assignments: %w", err)
	}
	return out, nil
}

// AssignmentCount returns the number of cached assignments.
func (db *DB) AssignmentCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM assignments").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}
