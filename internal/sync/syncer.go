// Package sync implements the incremental refresh of the local cache from
// the WaniKani API and the submission of locally queued reviews.
//
// Each sync pass walks the fixed resource classes (subjects, assignments,
// user) one at a time. For every class it issues a conditional fetch from
// the stored watermark, drains pagination fully (one transaction per
// page), and advances the watermark only after the last page has
// committed. A class that fails — rate limit, transport error, bad page —
// leaves its watermark untouched so the next run resumes from the same
// point; it never blocks or corrupts the other classes. Only an auth
// failure aborts the whole pass, since every subsequent request would be
// rejected identically.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wanicli/wani/internal/api"
	"github.com/wanicli/wani/internal/cache"
	"github.com/wanicli/wani/internal/wanidata"
)

// Fetcher is the HTTP capability the orchestrator consumes. *api.Client
// implements it; tests substitute a stub.
type Fetcher interface {
	ConditionalGet(ctx context.Context, path, etag string, updatedAfter *time.Time) (*api.Page, error)
	GetURL(ctx context.Context, rawURL, etag string) (*api.Page, error)
	CreateReview(ctx context.Context, r *wanidata.NewReview) (*wanidata.Resp, error)
}

// classEndpoints maps each resource class to its API path.
var classEndpoints = map[cache.ResourceClass]string{
	cache.ClassSubjects:    "/subjects",
	cache.ClassAssignments: "/assignments",
	cache.ClassUser:        "/user",
}

// Syncer drives sync passes against one cache and one API client.
type Syncer struct {
	db     *cache.DB
	client Fetcher
	logger *log.Logger
	now    func() time.Time
}

// New creates a Syncer. The cache must already have its schema
// initialized. If logger is nil, a default logger writing to stderr is
// used.
func New(db *cache.DB, client Fetcher, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Syncer{
		db:     db,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Options configures a sync pass.
type Options struct {
	// Force ignores stored watermarks and refetches every class in full.
	// Stored watermarks are not cleared; a successful forced pass records
	// fresh ones like any other fully-applied merge.
	Force bool
}

// Result is the outcome of one resource class within a pass.
type Result struct {
	Class       cache.ResourceClass
	Updated     int
	NotModified bool
	Err         error
}

// SyncAll runs one sync pass over every resource class in order. Class
// failures are isolated into their Result entries; the returned error is
// non-nil only for pass-fatal conditions (invalid credentials, watermark
// store failure).
func (s *Syncer) SyncAll(ctx context.Context, opts Options) ([]Result, error) {
	watermarks := map[cache.ResourceClass]cache.CacheInfo{}
	if !opts.Force {
		var err error
		watermarks, err = s.db.AllCacheInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load watermarks: %w", err)
		}
	}

	var results []Result
	for _, class := range cache.AllResourceClasses() {
		res := s.syncClass(ctx, class, watermarks[class])
		results = append(results, res)

		var authErr *api.AuthError
		if errors.As(res.Err, &authErr) {
			// No point trying the remaining classes with a bad token.
			return results, fmt.Errorf("sync aborted: %w", res.Err)
		}
		var storeErr *cache.StoreError
		if errors.As(res.Err, &storeErr) {
			// A store that rejects writes will reject them for every class.
			return results, fmt.Errorf("sync aborted: %w", res.Err)
		}

		if res.Err != nil {
			s.logger.Printf("WARNING: %s sync failed: %v", class, res.Err)
			continue
		}
		if res.NotModified {
			s.logger.Printf("%s: not modified", class)
		} else {
			s.logger.Printf("%s: updated %d resources", class, res.Updated)
		}
	}
	return results, nil
}

// syncClass refreshes one resource class: conditional fetch, full
// pagination drain with one transaction per page, then watermark advance.
func (s *Syncer) syncClass(ctx context.Context, class cache.ResourceClass, info cache.CacheInfo) Result {
	res := Result{Class: class}

	// Only the subjects payload is large and stable enough for ETag
	// validation to pay off; the other classes rely on updated_after.
	etag := ""
	if class == cache.ClassSubjects {
		etag = info.ETag
	}

	requestTime := s.now()
	page, err := s.client.ConditionalGet(ctx, classEndpoints[class], etag, info.UpdatedAfter)
	if err != nil {
		res.Err = err
		return res
	}
	if page.NotModified {
		res.NotModified = true
		return res
	}

	// Freshness headers of the first response describe the conditional
	// request we will repeat next run; later pages are cursor fetches.
	newETag := page.ETag
	newLastModified := page.LastModified

	for {
		n, next, err := s.applyPage(ctx, class, page.Resp)
		res.Updated += n
		if err != nil {
			res.Err = err
			return res
		}
		if next == "" {
			break
		}

		page, err = s.client.GetURL(ctx, next, "")
		if err != nil {
			// Mid-pagination failure: pages committed so far stay, but the
			// watermark must not move or the tail would be skipped forever.
			res.Err = err
			return res
		}
		if page.NotModified {
			res.Err = fmt.Errorf("unexpected 304 following pagination cursor %s", next)
			return res
		}
	}

	newInfo := cache.CacheInfo{
		ETag:         newETag,
		LastModified: newLastModified,
		UpdatedAfter: &requestTime,
	}
	if err := s.db.AdvanceCacheInfo(ctx, class, newInfo); err != nil {
		res.Err = err
	}
	return res
}

// applyPage writes one response's resources inside a single transaction
// and returns the count written plus the next pagination cursor.
func (s *Syncer) applyPage(ctx context.Context, class cache.ResourceClass, resp *wanidata.Resp) (int, string, error) {
	var (
		items []wanidata.Data
		next  string
	)
	switch data := resp.Data.(type) {
	case wanidata.Collection:
		items = data.Data
		next = data.Pages.NextURL
	case wanidata.Unknown:
		return 0, "", fmt.Errorf("unexpected resource %q syncing %s", data.Tag, class)
	default:
		// Single-resource endpoints (user) respond without a collection
		// wrapper.
		items = []wanidata.Data{resp.Data}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	written := 0
	skipped := 0
	for _, item := range items {
		switch d := item.(type) {
		case wanidata.Subject:
			err = tx.UpsertSubject(ctx, d)
		case wanidata.Assignment:
			err = tx.UpsertAssignment(ctx, d)
		case wanidata.User:
			err = tx.UpsertUser(ctx, d)
		case wanidata.Unknown:
			// Resource types the cache does not track yet.
			skipped++
			continue
		default:
			skipped++
			continue
		}
		if err != nil {
			// Roll the whole page back; a partial page must never commit.
			return 0, "", err
		}
		written++
	}

	if skipped > 0 {
		s.logger.Printf("%s: skipped %d unhandled resources", class, skipped)
	}

	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return written, next, nil
}

// SubmitPending posts every locally queued review and confirms each row
// the server acknowledges, applying the refreshed assignment in the same
// transaction. Submission stops early on auth failure or rate limiting;
// any review not yet submitted simply stays queued for the next run.
func (s *Syncer) SubmitPending(ctx context.Context) (int, error) {
	pending, err := s.db.PendingReviews(ctx)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for i := range pending {
		p := &pending[i]
		resp, err := s.client.CreateReview(ctx, &p.NewReview)
		if err != nil {
			var rateErr *api.RateLimitError
			if errors.As(err, &rateErr) {
				s.logger.Printf("WARNING: review submission throttled after %d of %d: %v",
					submitted, len(pending), err)
				return submitted, nil
			}
			return submitted, fmt.Errorf("failed to submit review for assignment %d: %w",
				p.AssignmentID, err)
		}

		review, ok := resp.Data.(wanidata.Review)
		if !ok {
			return submitted, fmt.Errorf("unexpected response submitting review for assignment %d",
				p.AssignmentID)
		}

		availableAt := review.Data.CreatedAt
		var updated *wanidata.Assignment
		if resp.ResourcesUpdated != nil && resp.ResourcesUpdated.Assignment != nil {
			updated = resp.ResourcesUpdated.Assignment
			if updated.Data.AvailableAt != nil {
				availableAt = *updated.Data.AvailableAt
			}
		}

		tx, err := s.db.Begin(ctx)
		if err != nil {
			return submitted, err
		}
		if err := tx.ConfirmReview(ctx, p.AssignmentID, review.ID, availableAt); err != nil {
			_ = tx.Rollback()
			return submitted, err
		}
		if updated != nil {
			if err := tx.UpsertAssignment(ctx, *updated); err != nil {
				_ = tx.Rollback()
				return submitted, err
			}
		}
		if err := tx.Commit(); err != nil {
			return submitted, err
		}

		submitted++
		s.logger.Printf("confirmed review %d for assignment %d", review.ID, p.AssignmentID)
	}
	return submitted, nil
}
