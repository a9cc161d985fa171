package rules

import (
	"cmp"
	"slices"
	"strconv"
)

// Move is one checker moved by one die.
type Move struct {
	From int  // 1-24, or BarPoint
	To   int  // 1-24, or OffPoint
	Die  int  // die value consumed
	Hit  bool // lands on a single enemy checker
}

// String renders the move as "13/8", "bar/22*" or "3/off".
func (m Move) String() string {
	from := "bar"
	if m.From != BarPoint {
		from = strconv.Itoa(m.From)
	}
	to := "off"
	if m.To != OffPoint {
		to = strconv.Itoa(m.To)
	}
	s := from + "/" + to
	if m.Hit {
		s += "*"
	}
	return s
}

func compareMoves(a, b Move) int {
	if c := cmp.Compare(b.From, a.From); c != 0 {
		return c
	}
	if c := cmp.Compare(b.To, a.To); c != 0 {
		return c
	}
	return cmp.Compare(a.Die, b.Die)
}

// SortMoves orders moves by source point, then destination, then die.
func SortMoves(moves []Move) {
	slices.SortFunc(moves, compareMoves)
}

// ApplyMoves plays a sequence of single-checker moves on a copy of p.
// No legality checks are made; callers use it on generator output.
func ApplyMoves(p Position, c Color, moves ...Move) Position {
	for _, m := range moves {
		p.apply(c, m)
	}
	return p
}
