// Package codec converts game state to and from a single-line text notation
// and to gnubg position IDs.
//
// The notation has a fixed field order and every field is mandatory:
//
//	bgp1;points=2w,0,...;bar=0,0;off=0,0;dice=3,5;left=5;cube=1,-,-;turn=w;phase=moves;crawford=0;winner=-
//
// Point tokens are "0", "<n>w" or "<n>r". Dice are "0,0" before the roll and
// left is "-" when no value remains. Cube is value, owner, offering color.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/bgserver/pkg/rules"
)

// Magic is the leading token of every notation string.
const Magic = "bgp1"

var fieldOrder = []string{"points", "bar", "off", "dice", "left", "cube", "turn", "phase", "crawford", "winner"}

var phaseNames = map[rules.Phase]string{
	rules.WaitingForOpponent: "waiting",
	rules.AwaitingRoll:       "roll",
	rules.MovesRemaining:     "moves",
	rules.AwaitingEndTurn:    "endturn",
	rules.GameOver:           "over",
}

// Export renders s in notation form.
func Export(s rules.State) string {
	var b strings.Builder
	b.WriteString(Magic)

	b.WriteString(";points=")
	for pt := 1; pt <= rules.NumPoints; pt++ {
		if pt > 1 {
			b.WriteByte(',')
		}
		c, n := s.Position.Occupant(pt)
		if n == 0 {
			b.WriteByte('0')
			continue
		}
		b.WriteString(strconv.Itoa(n))
		b.WriteString(colorToken(c))
	}

	fmt.Fprintf(&b, ";bar=%d,%d", s.Position.Bar[rules.White.Index()], s.Position.Bar[rules.Red.Index()])
	fmt.Fprintf(&b, ";off=%d,%d", s.Position.Off[rules.White.Index()], s.Position.Off[rules.Red.Index()])
	fmt.Fprintf(&b, ";dice=%d,%d", s.Dice.Values[0], s.Dice.Values[1])

	b.WriteString(";left=")
	left := s.Dice.Remaining()
	if len(left) == 0 {
		b.WriteByte('-')
	}
	for i, v := range left {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}

	fmt.Fprintf(&b, ";cube=%d,%s,%s", s.Cube.Value, colorToken(s.Cube.Owner), colorToken(s.Cube.OfferedBy))
	fmt.Fprintf(&b, ";turn=%s", colorToken(s.Turn))
	fmt.Fprintf(&b, ";phase=%s", phaseNames[s.Phase])
	crawford := 0
	if s.Crawford {
		crawford = 1
	}
	fmt.Fprintf(&b, ";crawford=%d", crawford)
	fmt.Fprintf(&b, ";winner=%s", colorToken(s.Winner))
	return b.String()
}

func colorToken(c rules.Color) string {
	switch c {
	case rules.White:
		return "w"
	case rules.Red:
		return "r"
	default:
		return "-"
	}
}

// Import parses a notation string. On any error the returned State is the
// zero value and the error is a *rules.Error of kind ParseError naming the
// offending token.
func Import(line string) (rules.State, error) {
	fields := strings.Split(strings.TrimSpace(line), ";")
	if fields[0] != Magic {
		return rules.State{}, rules.NewParseError(fields[0], "notation must start with %q", Magic)
	}
	fields = fields[1:]

	values := make(map[string]string, len(fieldOrder))
	for i, name := range fieldOrder {
		if i >= len(fields) {
			return rules.State{}, rules.NewParseError(name, "missing field %q", name)
		}
		key, val, ok := strings.Cut(fields[i], "=")
		if !ok {
			return rules.State{}, rules.NewParseError(fields[i], "field is not key=value")
		}
		if key != name {
			return rules.State{}, rules.NewParseError(fields[i], "expected field %q, got %q", name, key)
		}
		values[name] = val
	}
	if len(fields) > len(fieldOrder) {
		return rules.State{}, rules.NewParseError(fields[len(fieldOrder)], "unexpected trailing field")
	}

	var p parser
	s := rules.State{
		Position: p.position(values["points"], values["bar"], values["off"]),
		Dice:     p.dice(values["dice"], values["left"]),
		Cube:     p.cube(values["cube"]),
		Turn:     p.color(values["turn"], false),
		Phase:    p.phase(values["phase"]),
		Crawford: p.flag(values["crawford"]),
		Winner:   p.color(values["winner"], true),
	}
	if p.err != nil {
		return rules.State{}, p.err
	}
	if err := s.Validate(); err != nil {
		return rules.State{}, rules.NewParseError(line, "inconsistent state: %v", err)
	}
	return s, nil
}

// parser keeps the first error; later calls become no-ops.
type parser struct {
	err error
}

func (p *parser) fail(token, format string, args ...any) {
	if p.err == nil {
		p.err = rules.NewParseError(token, format, args...)
	}
}

func (p *parser) int(token string, lo, hi int) int {
	if p.err != nil {
		return 0
	}
	// Only plain digits: a sign would not survive export.
	if token == "" || strings.TrimLeft(token, "0123456789") != "" {
		p.fail(token, "not a number")
		return 0
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		p.fail(token, "not a number")
		return 0
	}
	if n < lo || n > hi {
		p.fail(token, "value %d outside %d-%d", n, lo, hi)
		return 0
	}
	return n
}

func (p *parser) pair(token string, lo, hi int) (int, int) {
	a, b, ok := strings.Cut(token, ",")
	if !ok || strings.Contains(b, ",") {
		p.fail(token, "expected two comma-separated values")
		return 0, 0
	}
	return p.int(a, lo, hi), p.int(b, lo, hi)
}

func (p *parser) position(points, bar, off string) rules.Position {
	var pos rules.Position
	tokens := strings.Split(points, ",")
	if len(tokens) != rules.NumPoints {
		p.fail(points, "expected %d points, got %d", rules.NumPoints, len(tokens))
		return pos
	}
	for i, tok := range tokens {
		if tok == "0" {
			continue
		}
		if len(tok) < 2 {
			p.fail(tok, "point %d: expected <count>w or <count>r", i+1)
			return pos
		}
		c := p.color(tok[len(tok)-1:], false)
		n := p.int(tok[:len(tok)-1], 1, rules.NumCheckers)
		if p.err != nil {
			return pos
		}
		pos.SetPoint(i+1, c, n)
	}
	bw, br := p.pair(bar, 0, rules.NumCheckers)
	ow, or := p.pair(off, 0, rules.NumCheckers)
	pos.Bar = [2]uint8{uint8(bw), uint8(br)}
	pos.Off = [2]uint8{uint8(ow), uint8(or)}
	return pos
}

func (p *parser) dice(dice, left string) rules.Dice {
	a, b := p.pair(dice, 0, 6)
	var remaining []int
	if left != "-" {
		for _, tok := range strings.Split(left, ",") {
			remaining = append(remaining, p.int(tok, 1, 6))
		}
	}
	if p.err != nil {
		return rules.Dice{}
	}
	if (a == 0) != (b == 0) {
		p.fail(dice, "both dice must be rolled or neither")
		return rules.Dice{}
	}
	d, err := rules.DiceWithRemaining(a, b, remaining)
	if err != nil {
		p.fail(left, "%v", err)
	}
	return d
}

func (p *parser) cube(token string) rules.Cube {
	parts := strings.Split(token, ",")
	if len(parts) != 3 {
		p.fail(token, "expected value,owner,offeredBy")
		return rules.Cube{}
	}
	v := p.int(parts[0], 1, 1<<12)
	if p.err == nil && v&(v-1) != 0 {
		p.fail(parts[0], "cube value %d is not a power of two", v)
	}
	c := rules.Cube{
		Value:     v,
		Owner:     p.color(parts[1], true),
		OfferedBy: p.color(parts[2], true),
	}
	c.OfferPending = c.OfferedBy != rules.None
	return c
}

func (p *parser) color(token string, allowNone bool) rules.Color {
	switch token {
	case "w":
		return rules.White
	case "r":
		return rules.Red
	case "-":
		if allowNone {
			return rules.None
		}
	}
	p.fail(token, "unknown color")
	return rules.None
}

func (p *parser) phase(token string) rules.Phase {
	for ph, name := range phaseNames {
		if name == token {
			return ph
		}
	}
	p.fail(token, "unknown phase")
	return 0
}

func (p *parser) flag(token string) bool {
	switch token {
	case "0":
		return false
	case "1":
		return true
	}
	p.fail(token, "expected 0 or 1")
	return false
}
