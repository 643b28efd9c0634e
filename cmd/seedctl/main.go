package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
	timeout   time.Duration
)

// rootCmd is the seedctl entry point
var rootCmd = &cobra.Command{
	Use:   "seedctl",
	Short: "Manage DID keys and approval requests from the terminal",
	Long: `seedctl generates DID key pairs, signs the login challenge and talks to
the seeddid HTTP API.

Commands that call the API read --server and --token, falling back to the
SEEDDID_SERVER and SEEDDID_TOKEN environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("SEEDDID_SERVER", "http://localhost:8080"), "seeddid API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("SEEDDID_TOKEN"), "Bearer token from 'seedctl login'")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "HTTP request timeout")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(respondCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
