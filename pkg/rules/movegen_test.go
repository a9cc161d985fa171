package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contains(moves []Move, from, to int) bool {
	for _, m := range moves {
		if m.From == from && m.To == to {
			return true
		}
	}
	return false
}

func TestLegalMovesStartingPosition35(t *testing.T) {
	p := StartingPosition()
	moves := LegalMoves(p, White, []int{3, 5})

	require.NotEmpty(t, moves)
	assert.True(t, contains(moves, 24, 21), "24/21 should be legal")
	assert.False(t, contains(moves, 24, 19), "24/19 lands on red's six point")
	assert.True(t, contains(moves, 13, 8), "13/8 should be legal")
	assert.True(t, contains(moves, 13, 10), "13/10 should be legal")
	assert.True(t, contains(moves, 8, 3), "8/3 should be legal")
	assert.False(t, contains(moves, 6, 1), "6/1 lands on the red anchor")

	for _, m := range moves {
		assert.Contains(t, []int{3, 5}, m.Die)
		assert.Equal(t, m.From-m.Die, m.To, "white moves down the board: %s", m)
	}
}

func TestLegalMovesRedMirrorsWhite(t *testing.T) {
	p := StartingPosition()
	red := LegalMoves(p, Red, []int{5, 3})
	white := LegalMoves(p, White, []int{5, 3})

	require.Len(t, red, len(white))
	for _, m := range white {
		assert.True(t, contains(red, 25-m.From, 25-m.To), "missing mirror of %s", m)
	}
}

func TestLegalMovesDoublesUseAllFour(t *testing.T) {
	p := StartingPosition()
	assert.Equal(t, 4, MaxDiceUsable(p, White, []int{6, 6, 6, 6}))

	moves := LegalMoves(p, White, []int{6, 6, 6, 6})
	require.NotEmpty(t, moves)
	assert.True(t, contains(moves, 24, 18))
	assert.True(t, contains(moves, 13, 7))
	assert.True(t, contains(moves, 8, 2))
}

func TestLegalMovesBarFirst(t *testing.T) {
	var p Position
	p.Bar[White.Index()] = 1
	p.SetPoint(6, White, 5)
	p.SetPoint(8, White, 3)
	p.SetPoint(13, White, 5)
	p.SetPoint(24, White, 1)
	p.SetPoint(1, Red, 2)
	p.SetPoint(12, Red, 5)
	p.SetPoint(17, Red, 3)
	p.SetPoint(19, Red, 5)
	require.NoError(t, p.Validate())

	moves := LegalMoves(p, White, []int{3, 1})
	require.NotEmpty(t, moves)
	for _, m := range moves {
		assert.Equal(t, BarPoint, m.From, "checker on the bar must enter first: %s", m)
	}
	assert.True(t, contains(moves, BarPoint, 22))
	assert.True(t, contains(moves, BarPoint, 24))
}

func TestLegalMovesEntryBlocked(t *testing.T) {
	var p Position
	p.Bar[White.Index()] = 2
	p.SetPoint(6, White, 5)
	p.SetPoint(8, White, 3)
	p.SetPoint(13, White, 5)
	for pt := 19; pt <= 24; pt++ {
		p.SetPoint(pt, Red, 2)
	}
	p.SetPoint(12, Red, 3)
	require.NoError(t, p.Validate())

	assert.Empty(t, LegalMoves(p, White, []int{3, 1}))
	assert.Empty(t, LegalMoves(p, White, []int{6, 6, 6, 6}))
}

func TestLegalMovesHitMarksBlot(t *testing.T) {
	var p Position
	p.SetPoint(13, White, 15)
	p.SetPoint(10, Red, 1)
	p.SetPoint(1, Red, 14)

	moves := LegalMoves(p, White, []int{3, 2})
	var hit *Move
	for i := range moves {
		if moves[i].To == 10 {
			hit = &moves[i]
		}
	}
	require.NotNil(t, hit)
	assert.True(t, hit.Hit)
	assert.Equal(t, "13/10*", hit.String())

	after := ApplyMoves(p, White, *hit)
	assert.Equal(t, uint8(1), after.Bar[Red.Index()])
	assert.Equal(t, 1, after.Checkers(White, 10))
	require.NoError(t, after.Validate())
}

func TestLegalMovesMustPlayLargerDie(t *testing.T) {
	var p Position
	p.SetPoint(1, White, 14)
	p.SetPoint(13, White, 1)
	p.SetPoint(2, Red, 2)
	p.SetPoint(24, Red, 13)
	require.NoError(t, p.Validate())

	assert.Equal(t, 1, MaxDiceUsable(p, White, []int{6, 5}))
	moves := LegalMoves(p, White, []int{6, 5})
	require.Len(t, moves, 1)
	assert.Equal(t, Move{From: 13, To: 7, Die: 6}, moves[0])
}

func TestLegalMovesSmallerDieWhenLargerBlocked(t *testing.T) {
	var p Position
	p.SetPoint(1, White, 14)
	p.SetPoint(13, White, 1)
	p.SetPoint(2, Red, 2)
	p.SetPoint(7, Red, 2)
	p.SetPoint(24, Red, 11)
	require.NoError(t, p.Validate())

	moves := LegalMoves(p, White, []int{6, 5})
	require.Len(t, moves, 1)
	assert.Equal(t, Move{From: 13, To: 8, Die: 5}, moves[0])
}

func TestLegalMovesLookaheadExcludesDeadEnd(t *testing.T) {
	// 11/6 is playable on its own but leaves the 3 unplayable, while
	// 13/8 and 11/8 both lead to sequences using both dice.
	var p Position
	p.SetPoint(1, White, 13)
	p.SetPoint(11, White, 1)
	p.SetPoint(13, White, 1)
	p.SetPoint(10, Red, 2)
	p.SetPoint(3, Red, 2)
	p.SetPoint(24, Red, 11)
	require.NoError(t, p.Validate())

	moves := LegalMoves(p, White, []int{5, 3})
	assert.ElementsMatch(t, []Move{
		{From: 13, To: 8, Die: 5},
		{From: 11, To: 8, Die: 3},
	}, moves)
	assert.Equal(t, []int{8}, LegalDestinations(p, White, []int{5, 3}, 11))
}

func TestLegalMovesBearOff(t *testing.T) {
	var p Position
	p.SetPoint(2, White, 2)
	p.Off[White.Index()] = 13
	p.SetPoint(12, Red, 15)

	moves := LegalMoves(p, White, []int{6, 5})
	assert.ElementsMatch(t, []Move{
		{From: 2, To: OffPoint, Die: 6},
		{From: 2, To: OffPoint, Die: 5},
	}, moves)
}

func TestLegalMovesBearOffNeedsRearmostChecker(t *testing.T) {
	var p Position
	p.SetPoint(5, White, 1)
	p.SetPoint(2, White, 1)
	p.Off[White.Index()] = 13
	p.SetPoint(12, Red, 15)

	moves := LegalMoves(p, White, []int{6, 6, 6, 6})
	assert.True(t, contains(moves, 5, OffPoint))
	assert.False(t, contains(moves, 2, OffPoint), "2 cannot bear off with a 6 while 5 is occupied")

	moves = LegalMoves(p, White, []int{4, 1})
	assert.True(t, contains(moves, 5, 1))
	assert.True(t, contains(moves, 2, 1))
	assert.False(t, contains(moves, 2, OffPoint), "a 4 cannot bear off from 2 while 5 is occupied")
}

func TestLegalMovesNoBearOffWithStraggler(t *testing.T) {
	var p Position
	p.SetPoint(7, White, 1)
	p.SetPoint(2, White, 14)
	p.SetPoint(20, Red, 15)

	moves := LegalMoves(p, White, []int{2, 1})
	for _, m := range moves {
		if m.From == 2 {
			assert.NotEqual(t, OffPoint, m.To, "white cannot bear off with a checker on 7: %s", m)
		}
	}
}

func TestLegalMovesNoDuplicates(t *testing.T) {
	moves := LegalMoves(StartingPosition(), White, []int{4, 4, 4, 4})
	seen := make(map[Move]bool)
	for _, m := range moves {
		assert.False(t, seen[m], "duplicate move %s", m)
		seen[m] = true
	}
}

func TestLegalMovesInvalidColor(t *testing.T) {
	assert.Nil(t, LegalMoves(StartingPosition(), None, []int{3, 1}))
	assert.Nil(t, LegalMoves(StartingPosition(), White, nil))
}
