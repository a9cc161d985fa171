package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourusername/bgserver/pkg/codec"
	"github.com/yourusername/bgserver/pkg/rules"
)

var (
	flagDice  string
	flagColor string
)

var legalCmd = &cobra.Command{
	Use:   "legal <position>",
	Short: "List legal checker moves for a position and roll",
	Long: `List the checker moves that may be played first with the given dice.

The position is either a bgp1 notation line or a gnubg position ID. For a
gnubg ID the player on roll is given with --color. A bgp1 line that already
carries dice is used as is unless --dice overrides them.

Examples:
  bgserver legal 4HPwATDgc/ABMA --dice 3-1
  bgserver legal 4HPwATDgc/ABMA --dice 6,6 --color red`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLegal(cmd.OutOrStdout(), args[0])
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <position>",
	Short: "Show a position as bgp1 notation and gnubg position ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	legalCmd.Flags().StringVar(&flagDice, "dice", "", "Dice roll, e.g. 3-1 or 3,1")
	for _, c := range []*cobra.Command{legalCmd, exportCmd} {
		c.Flags().StringVar(&flagColor, "color", "white", "Player on roll for gnubg IDs")
	}
}

// loadState reads a position argument in either notation.
func loadState(arg, color string) (rules.State, error) {
	if strings.HasPrefix(arg, "bgp1;") {
		return codec.Import(arg)
	}
	// gnubg tools print "position:match"; only the position half is used.
	if idx := strings.Index(arg, ":"); idx >= 0 {
		arg = arg[:idx]
	}
	c, ok := rules.ParseColor(color)
	if !ok {
		return rules.State{}, fmt.Errorf("unknown color %q", color)
	}
	p, err := codec.PositionFromGnubgID(arg, c)
	if err != nil {
		return rules.State{}, err
	}
	return rules.State{
		Position: p,
		Cube:     rules.NewCube(),
		Turn:     c,
		Phase:    rules.AwaitingRoll,
		Winner:   rules.None,
	}, nil
}

// parseDice accepts "3-1" or "3,1".
func parseDice(s string) ([2]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		parts = strings.Split(s, "-")
	}
	if len(parts) != 2 {
		return [2]int{}, fmt.Errorf("dice should be in format '3,1' or '3-1'")
	}
	d1, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	d2, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || d1 < 1 || d1 > 6 || d2 < 1 || d2 > 6 {
		return [2]int{}, fmt.Errorf("dice values must be 1-6")
	}
	return [2]int{d1, d2}, nil
}

func runLegal(w io.Writer, arg string) error {
	st, err := loadState(arg, flagColor)
	if err != nil {
		return err
	}
	remaining := st.Dice.Remaining()
	if flagDice != "" {
		roll, err := parseDice(flagDice)
		if err != nil {
			return err
		}
		d, err := rules.NewDice(roll[0], roll[1])
		if err != nil {
			return err
		}
		remaining = d.Remaining()
	}
	if len(remaining) == 0 {
		return fmt.Errorf("no dice: pass --dice")
	}

	moves := rules.LegalMoves(st.Position, st.Turn, remaining)
	fmt.Fprintf(w, "%s to play %v, %d dice usable\n", st.Turn, remaining,
		rules.MaxDiceUsable(st.Position, st.Turn, remaining))
	if len(moves) == 0 {
		fmt.Fprintln(w, "No legal moves.")
		return nil
	}
	for _, m := range moves {
		fmt.Fprintf(w, "  %s\n", m)
	}
	return nil
}

func runExport(w io.Writer, arg string) error {
	st, err := loadState(arg, flagColor)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "bgp1:  %s\n", codec.Export(st))
	fmt.Fprintf(w, "gnubg: %s\n", codec.GnubgPositionID(st.Position, st.Turn))
	fmt.Fprintf(w, "pips:  white %d, red %d\n", st.Position.PipCount(rules.White), st.Position.PipCount(rules.Red))
	return nil
}
