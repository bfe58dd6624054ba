package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/wanicli/wani/internal/api"
	"github.com/wanicli/wani/internal/cache"
	"github.com/wanicli/wani/internal/wanidata"
)

// stubClient serves canned pages keyed by endpoint path (ConditionalGet)
// or absolute URL (GetURL), and records what the syncer asked for.
type stubClient struct {
	pages map[string]*api.Page
	errs  map[string]error

	gets         []string
	updatedAfter map[string]*time.Time

	createResp *wanidata.Resp
	createErr  error
	created    []int64
}

func newStubClient() *stubClient {
	return &stubClient{
		pages:        map[string]*api.Page{},
		errs:         map[string]error{},
		updatedAfter: map[string]*time.Time{},
	}
}

func (s *stubClient) ConditionalGet(ctx context.Context, path, etag string, updatedAfter *time.Time) (*api.Page, error) {
	s.gets = append(s.gets, path)
	s.updatedAfter[path] = updatedAfter
	if err, ok := s.errs[path]; ok {
		return nil, err
	}
	if p, ok := s.pages[path]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("stub has no page for %s", path)
}

func (s *stubClient) GetURL(ctx context.Context, rawURL, etag string) (*api.Page, error) {
	s.gets = append(s.gets, rawURL)
	if err, ok := s.errs[rawURL]; ok {
		return nil, err
	}
	if p, ok := s.pages[rawURL]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("stub has no page for %s", rawURL)
}

func (s *stubClient) CreateReview(ctx context.Context, r *wanidata.NewReview) (*wanidata.Resp, error) {
	s.created = append(s.created, r.AssignmentID)
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createResp, nil
}

func newTestSyncer(t *testing.T, client *stubClient) (*Syncer, *cache.DB) {
	t.Helper()
	db, err := cache.Open(filepath.Join(t.TempDir(), "wani.db"))
	if err != nil {
		t.Fatalf("cache.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	return New(db, client, log.New(io.Discard, "", 0)), db
}

func collectionPage(etag, next string, items ...wanidata.Data) *api.Page {
	return &api.Page{
		ETag: etag,
		Resp: &wanidata.Resp{
			Data: wanidata.Collection{
				Data:  items,
				Pages: wanidata.PageData{NextURL: next},
			},
		},
	}
}

func notModified() *api.Page {
	return &api.Page{NotModified: true}
}

func testRadical(id int64) wanidata.Radical {
	chars := "一"
	return wanidata.Radical{
		ID: id,
		Data: wanidata.RadicalData{
			SubjectData: wanidata.SubjectData{
				CreatedAt: time.Date(2012, 2, 27, 18, 0, 0, 0, time.UTC),
				Level:     1,
				Meanings:  []wanidata.Meaning{{Meaning: "Ground", Primary: true, AcceptedAnswer: true}},
				Slug:      "ground",
				SRSID:     2,
			},
			Characters: &chars,
		},
	}
}

func testKanji(id int64) wanidata.Kanji {
	return wanidata.Kanji{
		ID: id,
		Data: wanidata.KanjiData{
			SubjectData: wanidata.SubjectData{
				CreatedAt: time.Date(2012, 2, 27, 19, 0, 0, 0, time.UTC),
				Level:     1,
				Meanings:  []wanidata.Meaning{{Meaning: "One", Primary: true, AcceptedAnswer: true}},
				Slug:      "one",
				SRSID:     2,
			},
			Characters: "一",
			Readings:   []wanidata.KanjiReading{{Reading: "いち", Primary: true, AcceptedAnswer: true, Type: wanidata.KanjiReadingOnyomi}},
		},
	}
}

func testAssignment(id, subjectID int64) wanidata.Assignment {
	avail := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	started := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
	return wanidata.Assignment{
		ID: id,
		Data: wanidata.AssignmentData{
			SubjectID:   subjectID,
			SubjectType: wanidata.SubjectTypeKanji,
			SRSStage:    2,
			CreatedAt:   time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			AvailableAt: &avail,
			StartedAt:   &started,
		},
	}
}

func testUser() wanidata.User {
	return wanidata.User{
		Data: wanidata.UserData{
			ID:        "5a6a5234-a392-4a87-8f3f-33342afe8a42",
			Username:  "crabigator",
			Level:     7,
			StartedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestSyncAll_NotModified(t *testing.T) {
	client := newStubClient()
	client.pages["/subjects"] = notModified()
	client.pages["/assignments"] = notModified()
	client.pages["/user"] = notModified()

	s, db := newTestSyncer(t, client)
	results, err := s.SyncAll(context.Background(), Options{})
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.NotModified || r.Err != nil || r.Updated != 0 {
			t.Errorf("%s: expected clean not-modified, got %+v", r.Class, r)
		}
	}

	// A 304 must not move the watermark.
	info, _ := db.CacheInfoFor(context.Background(), cache.ClassSubjects)
	if info.UpdatedAfter != nil {
		t.Errorf("watermark advanced on 304: %+v", info)
	}
}

func TestSyncAll_FullPassAdvancesWatermarks(t *testing.T) {
	client := newStubClient()
	page2URL := "https://api.wanikani.com/v2/subjects?page_after_id=1"
	client.pages["/subjects"] = collectionPage(`"v1"`, page2URL, testRadical(1))
	client.pages[page2URL] = collectionPage("", "", testKanji(440))
	client.pages["/assignments"] = collectionPage("", "", testAssignment(42, 440))
	client.pages["/user"] = &api.Page{Resp: &wanidata.Resp{Data: testUser()}}

	s, db := newTestSyncer(t, client)
	clock := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	ctx := context.Background()
	results, err := s.SyncAll(ctx, Options{})
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if results[0].Updated != 2 || results[1].Updated != 1 || results[2].Updated != 1 {
		t.Errorf("wrong update counts: %+v", results)
	}

	if rads, _ := db.AllRadicals(ctx); len(rads) != 1 {
		t.Errorf("radical not stored")
	}
	if kanji, _ := db.AllKanji(ctx); len(kanji) != 1 {
		t.Errorf("second page kanji not stored")
	}
	if _, err := db.Assignment(ctx, 42); err != nil {
		t.Errorf("assignment not stored: %v", err)
	}
	if u, err := db.User(ctx); err != nil || u.Data.Username != "crabigator" {
		t.Errorf("user not stored: %v", err)
	}

	for _, class := range cache.AllResourceClasses() {
		info, _ := db.CacheInfoFor(ctx, class)
		if info.UpdatedAfter == nil || !info.UpdatedAfter.Equal(clock) {
			t.Errorf("%s watermark not advanced to request time: %+v", class, info)
		}
	}
	subj, _ := db.CacheInfoFor(ctx, cache.ClassSubjects)
	if subj.ETag != `"v1"` {
		t.Errorf("subjects etag not recorded: %q", subj.ETag)
	}

	// The next pass fetches from the stored watermark.
	client.pages["/subjects"] = notModified()
	client.pages["/assignments"] = notModified()
	client.pages["/user"] = notModified()
	if _, err := s.SyncAll(ctx, Options{}); err != nil {
		t.Fatalf("second SyncAll failed: %v", err)
	}
	got := client.updatedAfter["/assignments"]
	if got == nil || !got.Equal(clock) {
		t.Errorf("second pass did not use stored watermark: %v", got)
	}
}

func TestSyncAll_MidPaginationFailureKeepsWatermark(t *testing.T) {
	client := newStubClient()
	page2URL := "https://api.wanikani.com/v2/subjects?page_after_id=440"
	client.pages["/subjects"] = collectionPage(`"v1"`, page2URL, testKanji(440))
	client.errs[page2URL] = &api.TransportError{Err: fmt.Errorf("connection reset")}
	client.pages["/assignments"] = notModified()
	client.pages["/user"] = notModified()

	s, db := newTestSyncer(t, client)
	ctx := context.Background()
	results, err := s.SyncAll(ctx, Options{})
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if results[0].Err == nil {
		t.Fatal("expected subjects failure to be reported")
	}

	// Committed pages stay; the watermark does not move, so the tail is
	// refetched next run instead of being skipped.
	if kanji, _ := db.AllKanji(ctx); len(kanji) != 1 {
		t.Errorf("first page not kept: %d kanji", len(kanji))
	}
	info, _ := db.CacheInfoFor(ctx, cache.ClassSubjects)
	if info.UpdatedAfter != nil || info.ETag != "" {
		t.Errorf("watermark advanced past a failed page: %+v", info)
	}
}

func TestSyncAll_RateLimitIsolatedToClass(t *testing.T) {
	client := newStubClient()
	client.errs["/subjects"] = &api.RateLimitError{}
	client.pages["/assignments"] = collectionPage("", "", testAssignment(42, 440))
	client.pages["/user"] = notModified()

	s, db := newTestSyncer(t, client)
	clock := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	ctx := context.Background()
	results, err := s.SyncAll(ctx, Options{})
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if results[0].Err == nil {
		t.Error("expected subjects rate-limit error to be reported")
	}

	// The throttled class must not block the others.
	if _, err := db.Assignment(ctx, 42); err != nil {
		t.Errorf("assignments blocked by subjects failure: %v", err)
	}
	aInfo, _ := db.CacheInfoFor(ctx, cache.ClassAssignments)
	if aInfo.UpdatedAfter == nil {
		t.Error("assignments watermark not advanced")
	}
	sInfo, _ := db.CacheInfoFor(ctx, cache.ClassSubjects)
	if sInfo.UpdatedAfter != nil {
		t.Error("subjects watermark advanced despite rate limit")
	}
}

func TestSyncAll_AuthErrorAbortsRun(t *testing.T) {
	client := newStubClient()
	client.errs["/subjects"] = &api.AuthError{Status: 401}

	s, _ := newTestSyncer(t, client)
	results, err := s.SyncAll(context.Background(), Options{})
	if err == nil {
		t.Fatal("expected SyncAll to fail on bad credentials")
	}
	if len(results) != 1 {
		t.Errorf("expected the run to stop after the first class, got %d results", len(results))
	}
	if len(client.gets) != 1 {
		t.Errorf("remaining classes were still fetched: %v", client.gets)
	}
}

func TestSyncAll_StoreFailureAbortsRun(t *testing.T) {
	client := newStubClient()
	client.pages["/subjects"] = collectionPage("", "", testKanji(440))
	client.pages["/assignments"] = collectionPage("", "", testAssignment(42, 440))
	client.pages["/user"] = &api.Page{Resp: &wanidata.Resp{Data: testUser()}}

	path := filepath.Join(t.TempDir(), "wani.db")
	db, err := cache.Open(path)
	if err != nil {
		t.Fatalf("cache.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	s := New(db, client, log.New(io.Discard, "", 0))

	// Break the store out of band so the first page write is rejected.
	raw, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	if _, err := raw.Exec("DROP TABLE kanji"); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}
	_ = raw.Close()

	results, err := s.SyncAll(ctx, Options{})
	if err == nil {
		t.Fatal("expected SyncAll to fail on a broken store")
	}
	if len(results) != 1 {
		t.Fatalf("expected the run to stop after the first class, got %d results", len(results))
	}
	var storeErr *cache.StoreError
	if !errors.As(results[0].Err, &storeErr) {
		t.Errorf("expected StoreError in the class result, got %v", results[0].Err)
	}
	if len(client.gets) != 1 {
		t.Errorf("remaining classes were still fetched: %v", client.gets)
	}
}

func TestSyncAll_ForceIgnoresStoredWatermarks(t *testing.T) {
	client := newStubClient()
	client.pages["/subjects"] = collectionPage("", "", testKanji(440))
	client.pages["/assignments"] = collectionPage("", "", testAssignment(42, 440))
	client.pages["/user"] = &api.Page{Resp: &wanidata.Resp{Data: testUser()}}

	s, db := newTestSyncer(t, client)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := db.AdvanceCacheInfo(ctx, cache.ClassAssignments, cache.CacheInfo{UpdatedAfter: &old}); err != nil {
		t.Fatalf("AdvanceCacheInfo failed: %v", err)
	}

	if _, err := s.SyncAll(ctx, Options{Force: true}); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if client.updatedAfter["/assignments"] != nil {
		t.Errorf("forced pass still sent updated_after: %v", client.updatedAfter["/assignments"])
	}

	// A successful forced pass records fresh watermarks.
	info, _ := db.CacheInfoFor(ctx, cache.ClassAssignments)
	if info.UpdatedAfter == nil || info.UpdatedAfter.Equal(old) {
		t.Errorf("forced pass did not record a fresh watermark: %+v", info)
	}
}

func TestSubmitPending_ConfirmsAndAppliesAssignment(t *testing.T) {
	client := newStubClient()
	s, db := newTestSyncer(t, client)
	ctx := context.Background()

	queued := wanidata.NewReview{
		AssignmentID:            42,
		CreatedAt:               time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		IncorrectReadingAnswers: 1,
		Status:                  wanidata.ReviewDone,
	}
	if _, err := db.EnqueueReview(ctx, queued); err != nil {
		t.Fatalf("EnqueueReview failed: %v", err)
	}

	updated := testAssignment(42, 440)
	updated.Data.SRSStage = 3
	nextAvail := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	updated.Data.AvailableAt = &nextAvail
	client.createResp = &wanidata.Resp{
		Data: wanidata.Review{
			ID: 999,
			Data: wanidata.ReviewData{
				AssignmentID: 42,
				CreatedAt:    time.Date(2026, 1, 5, 10, 0, 5, 0, time.UTC),
			},
		},
		ResourcesUpdated: &wanidata.ResourcesUpdated{Assignment: &updated},
	}

	submitted, err := s.SubmitPending(ctx)
	if err != nil {
		t.Fatalf("SubmitPending failed: %v", err)
	}
	if submitted != 1 || len(client.created) != 1 || client.created[0] != 42 {
		t.Errorf("wrong submission: submitted=%d created=%v", submitted, client.created)
	}

	pending, _ := db.PendingReviews(ctx)
	if len(pending) != 0 {
		t.Errorf("review still pending after confirmation: %+v", pending)
	}
	confirmed, _ := db.ConfirmedReviews(ctx, time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC))
	if len(confirmed) != 1 || confirmed[0].ReviewID != 999 || !confirmed[0].AvailableAt.Equal(nextAvail) {
		t.Errorf("confirmation wrong: %+v", confirmed)
	}

	a, err := db.Assignment(ctx, 42)
	if err != nil {
		t.Fatalf("updated assignment not stored: %v", err)
	}
	if a.Data.SRSStage != 3 {
		t.Errorf("refreshed assignment not applied: stage %d", a.Data.SRSStage)
	}
}

func TestSubmitPending_RateLimitLeavesQueueIntact(t *testing.T) {
	client := newStubClient()
	client.createErr = &api.RateLimitError{}

	s, db := newTestSyncer(t, client)
	ctx := context.Background()

	for id := int64(1); id <= 2; id++ {
		r := wanidata.NewReview{
			AssignmentID: id,
			CreatedAt:    time.Date(2026, 1, 5, 10, int(id), 0, 0, time.UTC),
			Status:       wanidata.ReviewDone,
		}
		if _, err := db.EnqueueReview(ctx, r); err != nil {
			t.Fatalf("EnqueueReview failed: %v", err)
		}
	}

	submitted, err := s.SubmitPending(ctx)
	if err != nil {
		t.Fatalf("SubmitPending returned error on rate limit: %v", err)
	}
	if submitted != 0 {
		t.Errorf("submitted = %d, want 0", submitted)
	}
	pending, _ := db.PendingReviews(ctx)
	if len(pending) != 2 {
		t.Errorf("queue lost entries: %d remain", len(pending))
	}
}
