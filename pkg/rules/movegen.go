package rules

// singleMoves lists every way c can move one checker by die. Checkers on the
// bar must enter before anything else moves.
func singleMoves(p *Position, c Color, die int) []Move {
	opp := c.Opponent()

	if p.Bar[c.Index()] > 0 {
		to := absolute(c, NumPoints+1-die)
		if p.IsBlocked(c, to) {
			return nil
		}
		return []Move{{From: BarPoint, To: to, Die: die, Hit: p.Checkers(opp, to) == 1}}
	}

	farthest := p.farthest(c)
	home := farthest <= HomePoints

	var moves []Move
	for rel := farthest; rel >= 1; rel-- {
		from := absolute(c, rel)
		if p.Checkers(c, from) == 0 {
			continue
		}

		dest := rel - die
		if dest >= 1 {
			to := absolute(c, dest)
			if p.IsBlocked(c, to) {
				continue
			}
			moves = append(moves, Move{From: from, To: to, Die: die, Hit: p.Checkers(opp, to) == 1})
			continue
		}

		// Bearing off: exact roll, or a larger die from the rearmost checker.
		if home && (dest == 0 || rel == farthest) {
			moves = append(moves, Move{From: from, To: OffPoint, Die: die})
		}
	}
	return moves
}

type searchKey struct {
	pos  Position
	dice [4]int8
}

// search computes how many dice can be played from a position, memoized on
// (position, remaining dice). Dice slices are always sorted high to low.
type search struct {
	color Color
	memo  map[searchKey]int
}

func newSearch(c Color) *search {
	return &search{color: c, memo: make(map[searchKey]int)}
}

func (s *search) depth(p Position, dice []int) int {
	if len(dice) == 0 {
		return 0
	}

	key := searchKey{pos: p}
	for i, d := range dice {
		key.dice[i] = int8(d)
	}
	if v, ok := s.memo[key]; ok {
		return v
	}

	best := 0
outer:
	for i, d := range dice {
		if i > 0 && dice[i-1] == d {
			continue
		}
		rest := without(dice, i)
		for _, m := range singleMoves(&p, s.color, d) {
			next := p
			next.apply(s.color, m)
			if v := 1 + s.depth(next, rest); v > best {
				best = v
				if best == len(dice) {
					break outer
				}
			}
		}
	}

	s.memo[key] = best
	return best
}

func without(dice []int, i int) []int {
	rest := make([]int, 0, len(dice)-1)
	rest = append(rest, dice[:i]...)
	return append(rest, dice[i+1:]...)
}

func sortedDesc(dice []int) []int {
	out := make([]int, len(dice))
	copy(out, dice)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] < out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// LegalMoves returns the moves c may play next with the remaining dice.
//
// Every ordering of the dice is searched for the longest playable sequence.
// A move is legal only if some sequence starting with it uses that maximum
// number of dice. When only one of two different dice can be played, the
// larger one must be played if it can be. All surviving first moves are
// returned; no further preference between maximal sequences is applied.
func LegalMoves(p Position, c Color, remaining []int) []Move {
	if !c.Valid() || len(remaining) == 0 {
		return nil
	}
	dice := sortedDesc(remaining)
	s := newSearch(c)

	type candidate struct {
		move  Move
		depth int
	}
	var cands []candidate
	best := 0

	for i, d := range dice {
		if i > 0 && dice[i-1] == d {
			continue
		}
		rest := without(dice, i)
		for _, m := range singleMoves(&p, c, d) {
			next := p
			next.apply(c, m)
			v := 1 + s.depth(next, rest)
			cands = append(cands, candidate{move: m, depth: v})
			if v > best {
				best = v
			}
		}
	}
	if best == 0 {
		return nil
	}

	mustUseHigh := best == 1 && len(dice) == 2 && dice[0] != dice[1]
	highPlayable := false
	if mustUseHigh {
		for _, cand := range cands {
			if cand.move.Die == dice[0] {
				highPlayable = true
				break
			}
		}
	}

	moves := make([]Move, 0, len(cands))
	for _, cand := range cands {
		if cand.depth != best {
			continue
		}
		if highPlayable && cand.move.Die != dice[0] {
			continue
		}
		moves = append(moves, cand.move)
	}
	SortMoves(moves)
	return moves
}

// MaxDiceUsable returns the length of the longest playable sequence.
func MaxDiceUsable(p Position, c Color, remaining []int) int {
	if !c.Valid() {
		return 0
	}
	return newSearch(c).depth(p, sortedDesc(remaining))
}

// LegalDestinations lists the distinct destinations legal for a checker on from.
func LegalDestinations(p Position, c Color, remaining []int, from int) []int {
	return Destinations(LegalMoves(p, c, remaining), from)
}

// Destinations lists the distinct To points of the moves leaving from, in
// the order they appear.
func Destinations(moves []Move, from int) []int {
	var dests []int
	for _, m := range moves {
		if m.From != from {
			continue
		}
		dup := false
		for _, d := range dests {
			if d == m.To {
				dup = true
				break
			}
		}
		if !dup {
			dests = append(dests, m.To)
		}
	}
	return dests
}
