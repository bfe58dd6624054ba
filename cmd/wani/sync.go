package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wanicli/wani/internal/cache"
	"github.com/wanicli/wani/internal/sync"
	"github.com/wanicli/wani/internal/ui"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the local cache with the WaniKani API",
	Long: `Refresh the local cache from the WaniKani API and submit any reviews
completed offline.

Each resource class (subjects, assignments, user) fetches only what
changed since its stored watermark. A class that fails is reported and
skipped for this run; its watermark stays put so the next sync resumes
cleanly. Pass --force to refetch everything regardless of watermarks.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "ignore stored watermarks and refetch everything")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	db, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	syncer, err := newSyncer(db)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	submitted, err := syncer.SubmitPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to submit pending reviews: %w", err)
	}
	if submitted > 0 {
		fmt.Printf("Submitted %d pending reviews\n", submitted)
	}

	results, err := syncer.SyncAll(ctx, sync.Options{Force: syncForce})
	printSyncResults(results)
	if err != nil {
		return err
	}
	return nil
}

func printSyncResults(results []sync.Result) {
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Printf("  %-11s %s\n", r.Class.String()+":", ui.ErrorStyle.Render(r.Err.Error()))
			failed++
		case r.NotModified:
			fmt.Printf("  %-11s up to date\n", r.Class.String()+":")
		default:
			fmt.Printf("  %-11s %d updated\n", r.Class.String()+":", r.Updated)
		}
	}
	if failed > 0 {
		fmt.Printf("%d of %d classes failed; they will retry on the next sync\n",
			failed, len(results))
	}
}

var cacheInfoCmd = &cobra.Command{
	Use:   "cache-info",
	Short: "Show sync watermarks per resource class",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		all, err := db.AllCacheInfo(cmd.Context())
		if err != nil {
			return err
		}
		for _, class := range cache.AllResourceClasses() {
			info := all[class]
			after := "-"
			if info.UpdatedAfter != nil {
				after = info.UpdatedAfter.UTC().Format("2006-01-02 15:04:05")
			}
			etag := info.ETag
			if etag == "" {
				etag = "-"
			}
			fmt.Printf("  %-11s updated_after=%s etag=%s\n", class.String()+":", after, etag)
		}
		return nil
	},
}

var cacheInfoResetCmd = &cobra.Command{
	Use:   "reset [class]",
	Short: "Clear watermarks so the next sync refetches in full",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		classes := cache.AllResourceClasses()
		if len(args) == 1 {
			class, err := classByName(args[0])
			if err != nil {
				return err
			}
			classes = []cache.ResourceClass{class}
		}
		for _, class := range classes {
			if err := db.ResetCacheInfo(cmd.Context(), class); err != nil {
				return err
			}
			fmt.Printf("Reset %s watermark\n", class)
		}
		return nil
	},
}

func classByName(name string) (cache.ResourceClass, error) {
	for _, class := range cache.AllResourceClasses() {
		if class.String() == name {
			return class, nil
		}
	}
	return 0, fmt.Errorf("unknown resource class %q (subjects, assignments, user)", name)
}

func init() {
	cacheInfoCmd.AddCommand(cacheInfoResetCmd)
	rootCmd.AddCommand(cacheInfoCmd)
}
