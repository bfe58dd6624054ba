package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up wani for first use",
	Long: `Prompt for a WaniKani personal access token, write the config file,
and create the local cache database.

Generate a token at https://www.wanikani.com/settings/personal_access_tokens.
Review submission needs a token with the reviews:create permission.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	token := viper.GetString("auth")
	if token == "" {
		var err error
		token, err = promptToken()
		if err != nil {
			return err
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to locate home directory: %w", err)
	}
	cfgDir := filepath.Join(home, ".config", "wani")
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("auth", token)
	viper.Set("datapath", datapath())

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(cfgDir, "wani.yaml")
	}
	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	db, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("Config written to %s\n", cfgPath)
	fmt.Printf("Cache created at %s\n", db.Path())
	fmt.Println("Run 'wani sync' to fetch your data.")
	return nil
}

// promptToken reads the access token without echoing it. Falls back to a
// plain line read when stdin is not a terminal (piped input in scripts).
func promptToken() (string, error) {
	fmt.Print("WaniKani access token: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		token := strings.TrimSpace(string(raw))
		if token == "" {
			return "", fmt.Errorf("no token entered")
		}
		return token, nil
	}

	var token string
	if _, err := fmt.Fscanln(os.Stdin, &token); err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(token), nil
}
