package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wanicli/wani/internal/wanidata"
)

const userColumns = `id,
	username,
	level,
	started_at,
	vacation_started_at,
	subscription`

func upsertUser(ctx context.Context, q querier, u wanidata.User) error {
	subscription, err := encodeBlob(u.Data.Subscription)
	if err != nil {
		return fmt.Errorf("failed to encode user %s: %w", u.Data.ID, err)
	}

	query := "REPLACE INTO user (" + userColumns + ") VALUES " + placeholders(6)
	_, err = q.ExecContext(ctx, query,
		u.Data.ID,
		u.Data.Username,
		u.Data.Level,
		fmtTime(u.Data.StartedAt),
		timeToNullString(u.Data.CurrentVacationStartedAt),
		subscription,
	)
	if err != nil {
		return storeErr(fmt.Sprintf("upsert user %s", u.Data.ID), err)
	}
	return nil
}

// UpsertUser writes the account record with replace semantics.
func (db *DB) UpsertUser(ctx context.Context, u wanidata.User) error {
	return upsertUser(ctx, db.conn, u)
}

// UpsertUser writes the account record inside the transaction.
func (t *Tx) UpsertUser(ctx context.Context, u wanidata.User) error {
	return upsertUser(ctx, t.tx, u)
}

// User returns the cached account record. Returns sql.ErrNoRows if the
// user has never been synced.
func (db *DB) User(ctx context.Context) (wanidata.User, error) {
	query := "SELECT " + userColumns + " FROM user LIMIT 1"
	row := db.conn.QueryRowContext(ctx, query)

	var (
		u            wanidata.User
		startedAt    string
		vacation     sql.NullString
		subscription string
	)
	err := row.Scan(
		&u.Data.ID,
		&u.Data.Username,
		&u.Data.Level,
		&startedAt,
		&vacation,
		&subscription,
	)
	if err != nil {
		return wanidata.User{}, err
	}

	started, err := parseTime(startedAt)
	if err != nil {
		return wanidata.User{}, decodeErr("user", 0, err)
	}
	u.Data.StartedAt = started
	v, err := nullStringToTime(vacation)
	if err != nil {
		return wanidata.User{}, decodeErr("user", 0, err)
	}
	u.Data.CurrentVacationStartedAt = v
	if err := decodeBlob(subscription, "subscription", &u.Data.Subscription); err != nil {
		return wanidata.User{}, decodeErr("user", 0, err)
	}
	return u, nil
}
