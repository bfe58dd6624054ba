package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wanicli/wani/internal/api"
	"github.com/wanicli/wani/internal/cache"
	"github.com/wanicli/wani/internal/sync"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "wani",
	Short: "WaniKani from the command line",
	Long: `wani keeps a local cache of your WaniKani subjects, assignments and
account data in SQLite and works against that cache, syncing
incrementally from the API so repeated runs stay fast and cheap.

Configuration is read from ~/.config/wani/wani.yaml (override with
--config). Two keys matter:

  auth:     your WaniKani personal access token
  datapath: directory for the cache database and logs

Both can also be set with the WANI_AUTH and WANI_DATAPATH environment
variables or the matching flags. Run 'wani init' to set up for the
first time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation shows the summary, same as 'wani summary'.
		return runSummary(cmd, args)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/wani/wani.yaml)")
	rootCmd.PersistentFlags().StringP("auth", "a", "", "WaniKani personal access token")
	rootCmd.PersistentFlags().StringP("datapath", "d", "", "directory for cache database and logs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log sync activity to stderr as well as the log file")

	viper.BindPFlag("auth", rootCmd.PersistentFlags().Lookup("auth"))
	viper.BindPFlag("datapath", rootCmd.PersistentFlags().Lookup("datapath"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("wani")
		viper.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "wani"))
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("wani")
	viper.AutomaticEnv()

	// Missing config is fine; init writes one and flags/env can stand alone.
	_ = viper.ReadInConfig()
}

// defaultDatapath is where the cache lands when no datapath is configured.
func defaultDatapath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wani"
	}
	return filepath.Join(home, ".local", "share", "wani")
}

func datapath() string {
	if p := viper.GetString("datapath"); p != "" {
		return p
	}
	return defaultDatapath()
}

func authToken() (string, error) {
	token := viper.GetString("auth")
	if token == "" {
		return "", fmt.Errorf("no access token configured; run 'wani init' or set --auth / WANI_AUTH")
	}
	return token, nil
}

// openCache opens the database under the configured datapath. The schema is
// initialized on every open; init is idempotent and never clobbers data.
func openCache(cmd *cobra.Command) (*cache.DB, error) {
	db, err := cache.Open(filepath.Join(datapath(), "wani.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := db.InitSchema(cmd.Context()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return db, nil
}

// newLogger writes to a rotating log file under the datapath, and also to
// stderr when --verbose is set.
func newLogger() *log.Logger {
	var w io.Writer = &lumberjack.Logger{
		Filename:   filepath.Join(datapath(), "wani.log"),
		MaxSize:    5,
		MaxBackups: 2,
	}
	if verbose {
		w = io.MultiWriter(w, os.Stderr)
	}
	return log.New(w, "", log.LstdFlags)
}

func newSyncer(db *cache.DB) (*sync.Syncer, error) {
	token, err := authToken()
	if err != nil {
		return nil, err
	}
	return sync.New(db, api.New(token), newLogger()), nil
}
