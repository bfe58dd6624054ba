package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ResourceClass identifies one tracked resource family in cache_info. The
// set is fixed; rows are seeded at schema init and never added dynamically.
type ResourceClass int

const (
	ClassSubjects ResourceClass = iota
	ClassAssignments
	ClassUser
)

// AllResourceClasses returns the fixed class set in sync order.
func AllResourceClasses() []ResourceClass {
	return []ResourceClass{ClassSubjects, ClassAssignments, ClassUser}
}

func (c ResourceClass) String() string {
	switch c {
	case ClassSubjects:
		return "subjects"
	case ClassAssignments:
		return "assignments"
	case ClassUser:
		return "user"
	}
	return fmt.Sprintf("resource_class(%d)", int(c))
}

// CacheInfo is the freshness watermark for one resource class. Empty
// fields mean no conditional state: the next fetch is unconditional.
type CacheInfo struct {
	ETag         string
	LastModified string
	UpdatedAfter *time.Time
}

// AllCacheInfo returns the stored watermark for every resource class.
func (db *DB) AllCacheInfo(ctx context.Context) (map[ResourceClass]CacheInfo, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, etag, last_modified, updated_after FROM cache_info ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query cache_info: %w", err)
	}
	defer rows.Close()

	out := make(map[ResourceClass]CacheInfo)
	for rows.Next() {
		var (
			id           int
			etag         sql.NullString
			lastModified sql.NullString
			updatedAfter sql.NullString
		)
		if err := rows.Scan(&id, &etag, &lastModified, &updatedAfter); err != nil {
			return nil, fmt.Errorf("failed to scan cache_info: %w", err)
		}

		info := CacheInfo{
			ETag:         etag.String,
			LastModified: lastModified.String,
		}
		after, err := nullStringToTime(updatedAfter)
		if err != nil {
			return nil, decodeErr("cache_info", int64(id), err)
		}
		info.UpdatedAfter = after
		out[ResourceClass(id)] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache_info: %w", err)
	}
	return out, nil
}

// CacheInfoFor returns the stored watermark for one resource class.
func (db *DB) CacheInfoFor(ctx context.Context, class ResourceClass) (CacheInfo, error) {
	all, err := db.AllCacheInfo(ctx)
	if err != nil {
		return CacheInfo{}, err
	}
	info, ok := all[class]
	if !ok {
		return CacheInfo{}, fmt.Errorf("no cache_info row for class %s", class)
	}
	return info, nil
}

// AdvanceCacheInfo records a new watermark for a resource class. The
// upsert is keyed by the fixed class id; empty fields clear the stored
// value rather than preserving it, so a response without an ETag does not
// leave a stale one behind.
//
// Callers only invoke this after every record of the fetch has been
// durably committed; advancing earlier would make later syncs silently
// skip unapplied data.
func (db *DB) AdvanceCacheInfo(ctx context.Context, class ResourceClass, info CacheInfo) error {
	query := `
	INSERT INTO cache_info (id, etag, last_modified, updated_after)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		etag = excluded.etag,
		last_modified = excluded.last_modified,
		updated_after = excluded.updated_after`

	_, err := db.conn.ExecContext(ctx, query,
		int(class),
		nullIfEmpty(info.ETag),
		nullIfEmpty(info.LastModified),
		timeToNullString(info.UpdatedAfter),
	)
	if err != nil {
		return storeErr(fmt.Sprintf("advance cache_info for %s", class), err)
	}
	return nil
}

// ResetCacheInfo clears the watermark for a resource class, forcing the
// next sync of that class to fetch unconditionally.
func (db *DB) ResetCacheInfo(ctx context.Context, class ResourceClass) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE cache_info SET etag = NULL, last_modified = NULL, updated_after = NULL WHERE id = ?",
		int(class))
	if err != nil {
		return storeErr(fmt.Sprintf("reset cache_info for %s", class), err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
