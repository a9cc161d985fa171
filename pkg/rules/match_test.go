package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedMatch(t *testing.T, target int) *Match {
	t.Helper()
	m, err := NewMatch(target)
	require.NoError(t, err)
	require.NoError(t, m.Begin())
	return m
}

func TestNewMatch(t *testing.T) {
	m, err := NewMatch(5)
	require.NoError(t, err)
	assert.Equal(t, WaitingForPlayer, m.Status)
	assert.Equal(t, None, m.Winner)

	err = m.RecordGameResult(White, 1)
	assert.ErrorIs(t, err, ErrStateConflict, "match has not started")

	require.NoError(t, m.Begin())
	assert.ErrorIs(t, m.Begin(), ErrStateConflict)

	_, err = NewMatch(-1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCrawfordRule(t *testing.T) {
	m := startedMatch(t, 7)

	require.NoError(t, m.RecordGameResult(White, 6))
	assert.Equal(t, [2]int{6, 0}, m.Score)
	assert.True(t, m.Crawford, "leader is one point away")

	g := startedGame(t, GameOptions{Crawford: m.Crawford})
	assert.ErrorIs(t, g.OfferDouble(White), ErrStateConflict)

	require.NoError(t, m.RecordGameResult(Red, 1))
	assert.False(t, m.Crawford)
	assert.True(t, m.CrawfordPlayed)

	require.NoError(t, m.RecordGameResult(Red, 5))
	assert.Equal(t, [2]int{6, 6}, m.Score)
	assert.False(t, m.Crawford, "only one Crawford game per match")

	require.NoError(t, m.RecordGameResult(Red, 2))
	assert.True(t, m.IsComplete())
	assert.Equal(t, Red, m.Winner)
	assert.Equal(t, 4, m.Games)

	err := m.RecordGameResult(White, 1)
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestCrawfordWonByLeader(t *testing.T) {
	m := startedMatch(t, 3)
	require.NoError(t, m.RecordGameResult(Red, 2))
	require.True(t, m.Crawford)

	require.NoError(t, m.RecordGameResult(Red, 1))
	assert.True(t, m.IsComplete())
	assert.Equal(t, Red, m.Winner)
	assert.True(t, m.CrawfordPlayed)
	assert.False(t, m.Crawford)
}

func TestOvershootCompletesMatch(t *testing.T) {
	m := startedMatch(t, 5)
	require.NoError(t, m.RecordGameResult(White, 8))
	assert.True(t, m.IsComplete())
	assert.Equal(t, White, m.Winner)
	assert.False(t, m.Crawford)
}

func TestUnlimitedSessionNeverCompletes(t *testing.T) {
	m := startedMatch(t, 0)
	for i := 0; i < 20; i++ {
		require.NoError(t, m.RecordGameResult(Colors[i%2], 64))
	}
	assert.False(t, m.IsComplete())
	assert.False(t, m.Crawford)
	assert.Equal(t, [2]int{640, 640}, m.Score)
}

func TestRecordGameResultValidation(t *testing.T) {
	m := startedMatch(t, 5)
	assert.ErrorIs(t, m.RecordGameResult(None, 1), ErrValidation)
	assert.ErrorIs(t, m.RecordGameResult(White, 0), ErrValidation)
	assert.Equal(t, [2]int{0, 0}, m.Score)
	assert.Zero(t, m.Games)
}

func TestForfeit(t *testing.T) {
	m := startedMatch(t, 5)
	require.NoError(t, m.RecordGameResult(White, 2))
	require.NoError(t, m.Forfeit(White))
	assert.True(t, m.IsComplete())
	assert.True(t, m.Forfeited)
	assert.Equal(t, Red, m.Winner)
	assert.ErrorIs(t, m.Forfeit(Red), ErrStateConflict)

	waiting, err := NewMatch(5)
	require.NoError(t, err)
	require.NoError(t, waiting.Forfeit(White))
	assert.Equal(t, None, waiting.Winner)
}
