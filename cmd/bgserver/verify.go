package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/bgserver/pkg/rules"
	"github.com/yourusername/bgserver/pkg/transcript"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file.mat>",
	Short: "Replay a match transcript through the rules engine",
	Long: `Read a .mat transcript, replay every game and check that each move is
legal and the recorded scores agree with the replay.

Examples:
  bgserver verify match.mat`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return runVerify(cmd.OutOrStdout(), f)
	},
}

func runVerify(w io.Writer, r io.Reader) error {
	m, err := transcript.ReadMAT(r)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	result, err := transcript.Replay(m)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	length := "unlimited"
	if m.MatchLength > 0 {
		length = fmt.Sprintf("%d point", m.MatchLength)
	}
	fmt.Fprintf(w, "%s match, %s vs %s, %d games\n", length, m.White, m.Red, len(m.Games))
	fmt.Fprintf(w, "Score: %s %d, %s %d\n", m.White, result.Score[rules.White.Index()], m.Red, result.Score[rules.Red.Index()])
	if result.IsComplete() && result.Winner.Valid() {
		name := m.White
		if result.Winner == rules.Red {
			name = m.Red
		}
		fmt.Fprintf(w, "Winner: %s\n", name)
	}
	fmt.Fprintln(w, "OK")
	return nil
}
