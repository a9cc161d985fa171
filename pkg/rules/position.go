// Package rules implements the backgammon rules engine: board positions, dice,
// legal move generation, the turn state machine, the doubling cube and match
// scoring. Everything here is synchronous and free of I/O.
package rules

const (
	NumPoints   = 24 // board points, numbered 1-24
	NumCheckers = 15 // checkers per color
	HomePoints  = 6

	// BarPoint is the From value of a move entering from the bar.
	BarPoint = 0
	// OffPoint is the To value of a move bearing a checker off.
	OffPoint = 25
)

// Color identifies a side. The zero value is None, so an unset color never
// names a seat. White moves 24 -> 1 with home board 1-6; Red moves 1 -> 24
// with home board 19-24.
type Color int8

const (
	None Color = iota
	White
	Red
)

// Colors lists both sides in index order.
var Colors = [2]Color{White, Red}

// Opponent returns the other side, or None for None.
func (c Color) Opponent() Color {
	switch c {
	case White:
		return Red
	case Red:
		return White
	default:
		return None
	}
}

// Index returns c's slot in per-color arrays: 0 for White, 1 for Red.
// It is -1 for None, so indexing with an unset color panics.
func (c Color) Index() int {
	return int(c) - 1
}

// Valid reports whether c is White or Red.
func (c Color) Valid() bool {
	return c == White || c == Red
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Red:
		return "red"
	default:
		return "none"
	}
}

// ParseColor accepts "white"/"w" and "red"/"r".
func ParseColor(s string) (Color, bool) {
	switch s {
	case "white", "w":
		return White, true
	case "red", "r":
		return Red, true
	}
	return None, false
}

// Position is the checker layout. Points[i] holds the checkers on point i:
// positive counts are White, negative counts are Red, so a point can never
// hold both colors. Points[0] is unused.
type Position struct {
	Points [NumPoints + 1]int8
	Bar    [2]uint8
	Off    [2]uint8
}

// StartingPosition returns the standard opening layout.
func StartingPosition() Position {
	var p Position
	p.SetPoint(24, White, 2)
	p.SetPoint(13, White, 5)
	p.SetPoint(8, White, 3)
	p.SetPoint(6, White, 5)

	p.SetPoint(1, Red, 2)
	p.SetPoint(12, Red, 5)
	p.SetPoint(17, Red, 3)
	p.SetPoint(19, Red, 5)
	return p
}

// relative converts an absolute point into c's own pip distance from home
// (1 = closest to bearing off). The mapping is its own inverse.
func relative(c Color, point int) int {
	if c == White {
		return point
	}
	return NumPoints + 1 - point
}

func absolute(c Color, rel int) int {
	return relative(c, rel)
}

func sign(c Color) int8 {
	if c == White {
		return 1
	}
	return -1
}

// SetPoint places n checkers of color c on point, replacing its contents.
func (p *Position) SetPoint(point int, c Color, n int) {
	if point < 1 || point > NumPoints {
		return
	}
	p.Points[point] = sign(c) * int8(n)
}

// Checkers returns how many checkers of color c sit on point.
func (p *Position) Checkers(c Color, point int) int {
	if point < 1 || point > NumPoints {
		return 0
	}
	n := p.Points[point]
	switch {
	case c == White && n > 0:
		return int(n)
	case c == Red && n < 0:
		return int(-n)
	}
	return 0
}

// Occupant returns the color and count on point; None and 0 when empty.
func (p *Position) Occupant(point int) (Color, int) {
	if point < 1 || point > NumPoints {
		return None, 0
	}
	n := p.Points[point]
	switch {
	case n > 0:
		return White, int(n)
	case n < 0:
		return Red, int(-n)
	}
	return None, 0
}

// IsBlocked reports whether point is made by c's opponent (two or more checkers).
func (p *Position) IsBlocked(c Color, point int) bool {
	return p.Checkers(c.Opponent(), point) >= 2
}

// OnBoard counts c's checkers on points 1-24.
func (p *Position) OnBoard(c Color) int {
	total := 0
	for pt := 1; pt <= NumPoints; pt++ {
		total += p.Checkers(c, pt)
	}
	return total
}

// Total counts all of c's checkers: board, bar and borne off.
func (p *Position) Total(c Color) int {
	return p.OnBoard(c) + int(p.Bar[c.Index()]) + int(p.Off[c.Index()])
}

// PipCount is the number of pips c needs to bear everything off.
func (p *Position) PipCount(c Color) int {
	pips := int(p.Bar[c.Index()]) * (NumPoints + 1)
	for pt := 1; pt <= NumPoints; pt++ {
		pips += p.Checkers(c, pt) * relative(c, pt)
	}
	return pips
}

// farthest returns the largest relative distance of any of c's checkers on
// the board, 25 when c has checkers on the bar, and 0 when none remain.
func (p *Position) farthest(c Color) int {
	if p.Bar[c.Index()] > 0 {
		return NumPoints + 1
	}
	for rel := NumPoints; rel >= 1; rel-- {
		if p.Checkers(c, absolute(c, rel)) > 0 {
			return rel
		}
	}
	return 0
}

// AllHome reports whether every checker c has left is in its home board.
func (p *Position) AllHome(c Color) bool {
	return p.farthest(c) <= HomePoints
}

// HomeBoard returns c's checker counts on its home points, index 0 being the
// point closest to bearing off.
func (p *Position) HomeBoard(c Color) [HomePoints]int {
	var home [HomePoints]int
	for rel := 1; rel <= HomePoints; rel++ {
		home[rel-1] = p.Checkers(c, absolute(c, rel))
	}
	return home
}

// HomePointsMade counts home points holding two or more of c's checkers.
func (p *Position) HomePointsMade(c Color) int {
	made := 0
	for _, n := range p.HomeBoard(c) {
		if n >= 2 {
			made++
		}
	}
	return made
}

// Validate checks the checker-count invariant for both colors.
func (p *Position) Validate() error {
	if p.Points[0] != 0 {
		return invariantf("point 0 holds %d checkers", p.Points[0])
	}
	for _, c := range Colors {
		if n := p.Total(c); n != NumCheckers {
			return invariantf("%s has %d checkers, want %d", c, n, NumCheckers)
		}
	}
	return nil
}

// apply moves one checker without checking legality. A checker landing on a
// single enemy checker sends it to the bar.
func (p *Position) apply(c Color, m Move) {
	if m.From == BarPoint {
		p.Bar[c.Index()]--
	} else {
		p.Points[m.From] -= sign(c)
	}
	if m.To == OffPoint {
		p.Off[c.Index()]++
		return
	}
	opp := c.Opponent()
	if p.Checkers(opp, m.To) == 1 {
		p.Points[m.To] = 0
		p.Bar[opp.Index()]++
	}
	p.Points[m.To] += sign(c)
}
