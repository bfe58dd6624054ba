package cache

import (
	"context"
	"testing"
)

func TestCacheInfo_SeededEmpty(t *testing.T) {
	db := newTestDB(t)

	all, err := db.AllCacheInfo(context.Background())
	if err != nil {
		t.Fatalf("AllCacheInfo failed: %v", err)
	}
	if len(all) != len(AllResourceClasses()) {
		t.Fatalf("expected %d rows, got %d", len(AllResourceClasses()), len(all))
	}
	for class, info := range all {
		if info.ETag != "" || info.LastModified != "" || info.UpdatedAfter != nil {
			t.Errorf("%s seeded non-empty: %+v", class, info)
		}
	}
}

func TestAdvanceCacheInfo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	after := ts(2026, 1, 5, 10)
	info := CacheInfo{ETag: `"v1"`, LastModified: "Mon, 05 Jan 2026 10:00:00 GMT", UpdatedAfter: &after}
	if err := db.AdvanceCacheInfo(ctx, ClassSubjects, info); err != nil {
		t.Fatalf("AdvanceCacheInfo failed: %v", err)
	}

	got, err := db.CacheInfoFor(ctx, ClassSubjects)
	if err != nil {
		t.Fatalf("CacheInfoFor failed: %v", err)
	}
	if got.ETag != `"v1"` || got.LastModified != info.LastModified {
		t.Errorf("watermark stored wrong: %+v", got)
	}
	if got.UpdatedAfter == nil || !got.UpdatedAfter.Equal(after) {
		t.Errorf("updated_after stored wrong: %v", got.UpdatedAfter)
	}

	// Other classes are untouched.
	other, _ := db.CacheInfoFor(ctx, ClassAssignments)
	if other.ETag != "" || other.UpdatedAfter != nil {
		t.Errorf("assignments watermark leaked: %+v", other)
	}

	// A later response without an ETag clears the stored one.
	later := ts(2026, 1, 6, 10)
	if err := db.AdvanceCacheInfo(ctx, ClassSubjects, CacheInfo{UpdatedAfter: &later}); err != nil {
		t.Fatalf("second AdvanceCacheInfo failed: %v", err)
	}
	got, _ = db.CacheInfoFor(ctx, ClassSubjects)
	if got.ETag != "" {
		t.Errorf("stale etag survived: %q", got.ETag)
	}
	if got.UpdatedAfter == nil || !got.UpdatedAfter.Equal(later) {
		t.Errorf("updated_after not advanced: %v", got.UpdatedAfter)
	}
}

func TestResetCacheInfo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	after := ts(2026, 1, 5, 10)
	if err := db.AdvanceCacheInfo(ctx, ClassUser, CacheInfo{UpdatedAfter: &after}); err != nil {
		t.Fatalf("AdvanceCacheInfo failed: %v", err)
	}
	if err := db.ResetCacheInfo(ctx, ClassUser); err != nil {
		t.Fatalf("ResetCacheInfo failed: %v", err)
	}

	got, err := db.CacheInfoFor(ctx, ClassUser)
	if err != nil {
		t.Fatalf("CacheInfoFor failed: %v", err)
	}
	if got.ETag != "" || got.LastModified != "" || got.UpdatedAfter != nil {
		t.Errorf("watermark not cleared: %+v", got)
	}
}
