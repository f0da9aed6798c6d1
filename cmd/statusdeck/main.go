// Command statusdeck runs the status button plugin for a deck host, or
// headless against a buttons file.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose   bool
	configDir string
	apiPort   int
)

var rootCmd = &cobra.Command{
	Use:   "statusdeck",
	Short: "Status buttons for a deck host",
	Long: `statusdeck checks a website or a local script for each status button
and shows the result on the button as a color, a label or an image.

Checks run when a button appears, when it is pressed, and on a per-button
interval.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load environment variables
		if err := godotenv.Load(); err != nil && verbose {
			fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
		}
		if !cmd.Flags().Changed("config-dir") {
			configDir = envOr("CONFIG_DIR", configDir)
		}
		if !cmd.Flags().Changed("port") {
			if port, err := strconv.Atoi(os.Getenv("API_PORT")); err == nil {
				apiPort = port
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "./configs", "Directory holding buttons.yaml")
	rootCmd.PersistentFlags().IntVarP(&apiPort, "port", "p", 8081, "HTTP API port (0 disables the API)")

	rootCmd.AddCommand(serveCmd, watchCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
