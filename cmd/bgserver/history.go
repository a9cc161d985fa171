package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yourusername/bgserver/internal/storage"
	"github.com/yourusername/bgserver/pkg/rules"
)

var (
	flagLimit  int
	flagPlayer string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently finished matches",
	Long: `Display the most recent finished matches from the results database.

Examples:
  bgserver history
  bgserver history --limit 5
  bgserver history --player alice`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("open results database: %w", err)
		}
		defer store.Close()
		return runHistory(cmd.OutOrStdout(), store)
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagLimit, "limit", 10, "Number of matches to show")
	historyCmd.Flags().StringVar(&flagPlayer, "player", "", "Show win/loss totals for a player")
}

func runHistory(w io.Writer, store *storage.Store) error {
	if flagPlayer != "" {
		stats, err := store.PlayerStats(flagPlayer)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d matches, %d won, %d lost\n", flagPlayer, stats.Played, stats.Won, stats.Played-stats.Won)
		fmt.Fprintln(w)
	}

	matches, err := store.RecentMatches(flagLimit)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches recorded yet.")
		return nil
	}

	fmt.Fprintf(w, "  %-16s  %-21s  %-6s  %-7s  %-10s  %s\n", "Ended", "Players", "Target", "Score", "Winner", "Match")
	fmt.Fprintf(w, "  %-16s  %-21s  %-6s  %-7s  %-10s  %s\n", "-----", "-------", "------", "-----", "------", "-----")
	for _, m := range matches {
		winner := "-"
		switch m.Winner {
		case rules.White:
			winner = m.White
		case rules.Red:
			winner = m.Red
		}
		if m.Forfeited {
			winner += "*"
		}
		target := "-"
		if m.Target > 0 {
			target = fmt.Sprint(m.Target)
		}
		fmt.Fprintf(w, "  %-16s  %-21s  %-6s  %-7s  %-10s  %s\n",
			m.EndedAt.Local().Format("2006-01-02 15:04"),
			m.White+" v "+m.Red,
			target,
			fmt.Sprintf("%d-%d", m.Score[rules.White.Index()], m.Score[rules.Red.Index()]),
			winner,
			m.MatchID)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "* won by forfeit")
	return nil
}
