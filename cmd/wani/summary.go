package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wanicli/wani/internal/api"
	"github.com/wanicli/wani/internal/ui"
	"github.com/wanicli/wani/internal/wanidata"
)

var summaryRemote bool

var summaryCmd = &cobra.Command{
	Use:     "summary",
	Aliases: []string{"s"},
	Short:   "Show lessons and reviews currently available",
	Long: `Show how many lessons and reviews are available right now.

Counts come from the local cache, so they are only as fresh as the last
sync. Pass --remote to ask the server's summary endpoint instead.`,
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryRemote, "remote", false, "fetch counts from the server instead of the cache")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	if summaryRemote {
		return remoteSummary(cmd)
	}

	db, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	now := time.Now()

	lessons, err := db.DueLessons(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to count lessons: %w", err)
	}
	reviews, err := db.DueReviews(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to count reviews: %w", err)
	}

	fmt.Println(ui.HeadlineStyle.Render("Summary"))
	fmt.Printf("  Lessons: %s\n", ui.Count(lessons))
	fmt.Printf("  Reviews: %s\n", ui.Count(reviews))

	user, err := db.User(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		fmt.Println("\nNo account data cached yet. Run 'wani sync' first.")
	case err != nil:
		return fmt.Errorf("failed to read cached user: %w", err)
	default:
		fmt.Printf("\n  %s, level %d\n", user.Data.Username, user.Data.Level)
		if user.Data.CurrentVacationStartedAt != nil {
			fmt.Println("  On vacation: lessons and reviews are paused.")
		}
	}
	return nil
}

// remoteSummary asks the server's summary report and counts the buckets
// already available.
func remoteSummary(cmd *cobra.Command) error {
	token, err := authToken()
	if err != nil {
		return err
	}

	client := api.New(token)
	page, err := client.ConditionalGet(cmd.Context(), "/summary", "", nil)
	if err != nil {
		return fmt.Errorf("failed to fetch summary: %w", err)
	}

	lessons, reviews, err := reportCounts(page, time.Now())
	if err != nil {
		return err
	}

	fmt.Println(ui.HeadlineStyle.Render("Summary (remote)"))
	fmt.Printf("  Lessons: %s\n", ui.Count(lessons))
	fmt.Printf("  Reviews: %s\n", ui.Count(reviews))
	return nil
}

// reportCounts extracts the currently available lesson and review counts
// from a summary page. The request is unconditional, but a cache sitting in
// front of the API can still answer 304, so an empty page is handled rather
// than dereferenced.
func reportCounts(page *api.Page, now time.Time) (lessons, reviews int, err error) {
	if page.Resp == nil {
		return 0, 0, fmt.Errorf("summary endpoint returned no body")
	}
	report, ok := page.Resp.Data.(wanidata.Report)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected summary response")
	}
	return countAvailable(report.Lessons, now), countAvailable(report.Reviews, now), nil
}

func countAvailable(entries []wanidata.SummaryEntry, now time.Time) int {
	n := 0
	for _, e := range entries {
		if !e.AvailableAt.After(now) {
			n += len(e.SubjectIDs)
		}
	}
	return n
}
