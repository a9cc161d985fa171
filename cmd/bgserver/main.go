// bgserver hosts backgammon matches over HTTP.
//
// Usage:
//
//	bgserver serve                  - Start the match server
//	bgserver legal <position>       - List legal moves for a roll
//	bgserver export <position>      - Convert between position formats
//	bgserver verify <file.mat>      - Replay a match transcript
//	bgserver history                - Show recently finished matches
//
// Global flags:
//
//	--config <path>  - Configuration file (default: search path)
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/yourusername/bgserver/internal/config"
)

const version = "0.2.0"

var flagConfig string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "bgserver",
	Short:   "Backgammon match server",
	Version: version,
	Long: `bgserver hosts two-player backgammon matches with a REST API,
server-sent events and WebSocket player channels.

Available commands:
  serve    - Start the match server
  legal    - List legal moves for a position and roll
  export   - Show a position in both notations
  verify   - Replay a .mat transcript and check the result
  history  - Show recently finished matches

Examples:
  bgserver serve --port 9000
  bgserver legal 4HPwATDgc/ABMA --dice 3-1
  bgserver verify match.mat`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(legalCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the configuration selected by --config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "bgserver",
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}
