package transcript

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/bgserver/pkg/rules"
)

// MAT layout: each move line is "NNN) " followed by White's entry padded to
// a fixed column and then Red's entry.
//
//	7 point match
//
//	Game 1
//	alice : 0                                   bob : 0
//	 1) 31: 8/5 6/5                              52: 24/22 13/8
//	 2) 64: 24/18 13/9*                          Doubles => 2
//	 3) Takes                                    ...
const (
	linePrefix  = 5
	columnWidth = 40
	rightColumn = linePrefix + columnWidth
)

var (
	matchLengthRE = regexp.MustCompile(`(\d+)\s+point\s+match`)
	gameHeaderRE  = regexp.MustCompile(`^\s*Game\s+(\d+)`)
	scoreLineRE   = regexp.MustCompile(`^\s*(.+?)\s*:\s*(\d+)\s+(.+?)\s*:\s*(\d+)\s*$`)
	moveLineRE    = regexp.MustCompile(`^\s*(\d+)\)`)
	winsRE        = regexp.MustCompile(`Wins\s+(\d+)\s+point`)
	tagRE         = regexp.MustCompile(`\[(\w+(?:\s\d)?)\s+"([^"]*)"\]`)
	doublesRE     = regexp.MustCompile(`^Doubles\s*=>\s*(\d+)$`)
)

// WriteMAT writes m in MAT format.
func WriteMAT(w io.Writer, m *Match) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "; [Player 1 \"%s\"]\n", m.White)
	fmt.Fprintf(bw, "; [Player 2 \"%s\"]\n", m.Red)
	if m.Event != "" {
		fmt.Fprintf(bw, "; [Event \"%s\"]\n", m.Event)
	}
	if m.Date != "" {
		fmt.Fprintf(bw, "; [Date \"%s\"]\n", m.Date)
	}
	if m.MatchLength > 0 {
		fmt.Fprintf(bw, " %d point match\n\n", m.MatchLength)
	} else {
		fmt.Fprintf(bw, " Unlimited match\n\n")
	}

	for _, g := range m.Games {
		writeGame(bw, m, g)
	}
	return bw.Flush()
}

func writeGame(w *bufio.Writer, m *Match, g *Game) {
	fmt.Fprintf(w, " Game %d\n", g.Number)
	fmt.Fprintf(w, " %-*s%s : %d\n", columnWidth+linePrefix-1, fmt.Sprintf("%s : %d", m.White, g.Score[rules.White.Index()]), m.Red, g.Score[rules.Red.Index()])

	var left, right string
	n := 0
	flush := func() {
		if left == "" && right == "" {
			return
		}
		n++
		line := fmt.Sprintf("%3d) %-*s%s", n, columnWidth, left, right)
		fmt.Fprintln(w, strings.TrimRight(line, " "))
		left, right = "", ""
	}
	for _, a := range g.Actions {
		text := formatAction(a)
		if a.Player == rules.White {
			flush()
			left = text
			continue
		}
		right = text
		flush()
	}
	flush()

	if g.Finished && g.Winner.Valid() {
		pad := linePrefix + 1
		if g.Winner == rules.Red {
			pad = rightColumn
		}
		unit := "points"
		if g.Points == 1 {
			unit = "point"
		}
		fmt.Fprintf(w, "%*sWins %d %s\n", pad, "", g.Points, unit)
	}
	fmt.Fprintln(w)
}

func formatAction(a Action) string {
	switch a.Type {
	case ActionDouble:
		return fmt.Sprintf("Doubles => %d", a.Value)
	case ActionTake:
		return "Takes"
	case ActionDrop:
		return "Drops"
	case ActionResign:
		return "Resigns"
	}
	parts := make([]string, 0, len(a.Moves)+1)
	parts = append(parts, fmt.Sprintf("%d%d:", a.Dice[0], a.Dice[1]))
	for _, mv := range a.Moves {
		parts = append(parts, formatMove(mv, a.Player))
	}
	return strings.Join(parts, " ")
}

// formatMove renders a move with points numbered from the mover's side.
func formatMove(m rules.Move, c rules.Color) string {
	from := "bar"
	if m.From != rules.BarPoint {
		from = strconv.Itoa(ownPoint(c, m.From))
	}
	to := "off"
	if m.To != rules.OffPoint {
		to = strconv.Itoa(ownPoint(c, m.To))
	}
	s := from + "/" + to
	if m.Hit {
		s += "*"
	}
	return s
}

// ownPoint converts between absolute and mover-relative numbering; the
// mapping is its own inverse.
func ownPoint(c rules.Color, point int) int {
	if c == rules.Red {
		return rules.NumPoints + 1 - point
	}
	return point
}

// ReadMAT parses a match written in MAT format. Moves are recorded as the
// file states them; Replay checks them against the rules.
func ReadMAT(r io.Reader) (*Match, error) {
	scanner := bufio.NewScanner(r)
	m := &Match{}
	var cur *Game
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), " \t\r")
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ";") {
			if t := tagRE.FindStringSubmatch(line); t != nil {
				switch strings.ToLower(t[1]) {
				case "player 1", "player1":
					m.White = t[2]
				case "player 2", "player2":
					m.Red = t[2]
				case "event":
					m.Event = t[2]
				case "date":
					m.Date = t[2]
				}
			}
			continue
		}
		if cur == nil {
			if t := matchLengthRE.FindStringSubmatch(line); t != nil {
				m.MatchLength, _ = strconv.Atoi(t[1])
				continue
			}
		}
		if t := gameHeaderRE.FindStringSubmatch(line); t != nil {
			cur = m.AddGame([2]int{}, false)
			cur.Number, _ = strconv.Atoi(t[1])
			continue
		}
		if cur == nil {
			continue
		}
		if t := winsRE.FindStringSubmatch(line); t != nil {
			winner := rules.White
			if strings.Index(raw, "Wins") >= rightColumn {
				winner = rules.Red
			}
			points, _ := strconv.Atoi(t[1])
			cur.Winner = winner
			cur.Points = points
			cur.Reason = inferReason(cur)
			cur.Finished = true
			continue
		}
		if moveLineRE.MatchString(raw) {
			if err := parseMoveLine(raw, cur); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}
		if t := scoreLineRE.FindStringSubmatch(line); t != nil && len(cur.Actions) == 0 {
			if m.White == "" {
				m.White = t[1]
			}
			if m.Red == "" {
				m.Red = t[3]
			}
			cur.Score[rules.White.Index()], _ = strconv.Atoi(t[2])
			cur.Score[rules.Red.Index()], _ = strconv.Atoi(t[4])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading MAT file: %w", err)
	}
	markCrawford(m)
	return m, nil
}

func inferReason(g *Game) rules.EndReason {
	if len(g.Actions) == 0 {
		return rules.EndBearOff
	}
	switch g.Actions[len(g.Actions)-1].Type {
	case ActionDrop:
		return rules.EndDeclined
	case ActionResign:
		return rules.EndAbandoned
	}
	return rules.EndBearOff
}

// markCrawford flags the first game played with a score at match point
// minus one.
func markCrawford(m *Match) {
	if m.MatchLength == 0 {
		return
	}
	for _, g := range m.Games {
		if g.Score[rules.White.Index()] == m.MatchLength-1 || g.Score[rules.Red.Index()] == m.MatchLength-1 {
			g.Crawford = true
			return
		}
	}
}

func parseMoveLine(line string, g *Game) error {
	_, rest, _ := strings.Cut(line, ")")
	start := strings.Index(line, ")") + 1
	if start < linePrefix {
		start = linePrefix
	}
	left, right := rest, ""
	if len(line) > rightColumn {
		left, right = line[start:rightColumn], line[rightColumn:]
	}
	if err := parseEntry(strings.TrimSpace(left), rules.White, g); err != nil {
		return err
	}
	return parseEntry(strings.TrimSpace(right), rules.Red, g)
}

func parseEntry(text string, c rules.Color, g *Game) error {
	switch {
	case text == "":
		return nil
	case text == "Takes":
		g.AddTake(c)
		return nil
	case text == "Drops" || text == "Passes":
		g.AddDrop(c)
		return nil
	case text == "Resigns":
		g.AddResign(c)
		return nil
	}
	if t := doublesRE.FindStringSubmatch(text); t != nil {
		v, _ := strconv.Atoi(t[1])
		g.AddDouble(c, v)
		return nil
	}

	diceText, movesText, ok := strings.Cut(text, ":")
	if !ok || len(diceText) != 2 {
		return rules.NewParseError(text, "expected <dice>: <moves>")
	}
	d1, d2 := int(diceText[0]-'0'), int(diceText[1]-'0')
	if d1 < 1 || d1 > 6 || d2 < 1 || d2 > 6 {
		return rules.NewParseError(diceText, "dice out of range")
	}

	var moves []rules.Move
	for _, tok := range strings.Fields(movesText) {
		parsed, err := parseMoveToken(tok, c)
		if err != nil {
			return err
		}
		moves = append(moves, parsed...)
	}
	g.AddTurn(c, [2]int{d1, d2}, moves)
	return nil
}

// parseMoveToken parses "13/8", "bar/22*", "6/off" or "8/5(2)".
func parseMoveToken(tok string, c rules.Color) ([]rules.Move, error) {
	body := tok
	count := 1
	if i := strings.Index(body, "("); i >= 0 {
		n, err := strconv.Atoi(strings.TrimSuffix(body[i+1:], ")"))
		if err != nil || n < 1 || n > 4 {
			return nil, rules.NewParseError(tok, "bad repeat count")
		}
		count = n
		body = body[:i]
	}
	hit := strings.HasSuffix(body, "*")
	body = strings.TrimSuffix(body, "*")

	fromText, toText, ok := strings.Cut(body, "/")
	if !ok {
		return nil, rules.NewParseError(tok, "expected from/to")
	}
	from, err := parsePoint(fromText, c, true)
	if err != nil {
		return nil, rules.NewParseError(tok, "%v", err)
	}
	to, err := parsePoint(toText, c, false)
	if err != nil {
		return nil, rules.NewParseError(tok, "%v", err)
	}

	out := make([]rules.Move, count)
	for i := range out {
		out[i] = rules.Move{From: from, To: to, Hit: hit}
	}
	return out, nil
}

func parsePoint(s string, c rules.Color, source bool) (int, error) {
	switch strings.ToLower(s) {
	case "bar":
		return rules.BarPoint, nil
	case "off":
		return rules.OffPoint, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad point %q", s)
	}
	switch {
	case source && n == 25:
		return rules.BarPoint, nil
	case !source && n == 0:
		return rules.OffPoint, nil
	case n < 1 || n > rules.NumPoints:
		return 0, fmt.Errorf("point %d out of range", n)
	}
	return ownPoint(c, n), nil
}
