package dicestats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bgserver/pkg/rules"
)

func TestRecord(t *testing.T) {
	var c Counter
	c.Record(rules.White, 3, 5)
	c.Record(rules.Red, 6, 6)
	c.Record(rules.None, 1, 2)
	c.Record(rules.White, 0, 7)

	s := c.Summary()
	assert.Equal(t, [2]int{1, 1}, s.Rolls)
	assert.Equal(t, [2]int{0, 1}, s.Doubles)
	assert.Equal(t, [6]int{0, 0, 1, 0, 1, 0}, s.Faces[rules.White.Index()])
	assert.Equal(t, [6]int{0, 0, 0, 0, 0, 2}, s.Faces[rules.Red.Index()])
	assert.False(t, s.Tested, "too few dice for the test")
	assert.Equal(t, 1.0, s.PValue)
}

func TestFairDiceNotSuspicious(t *testing.T) {
	var c Counter
	// Every ordered pair once per color: perfectly uniform faces.
	for a := 1; a <= 6; a++ {
		for b := 1; b <= 6; b++ {
			c.Record(rules.White, a, b)
			c.Record(rules.Red, b, a)
		}
	}
	s := c.Summary()
	require.True(t, s.Tested)
	assert.InDelta(t, 0, s.ChiSquare, 1e-9)
	assert.InDelta(t, 1, s.PValue, 1e-9)
	assert.False(t, s.Suspicious(0.01))
}

func TestLoadedDiceSuspicious(t *testing.T) {
	var c Counter
	for i := 0; i < 60; i++ {
		c.Record(rules.White, 6, 6)
	}
	s := c.Summary()
	require.True(t, s.Tested)
	assert.Greater(t, s.ChiSquare, 100.0)
	assert.True(t, s.Suspicious(0.01))
}

func TestRandomRollerLooksFair(t *testing.T) {
	var c Counter
	r := rules.NewRandomRoller(42)
	for i := 0; i < 3000; i++ {
		a, b := r.Roll()
		c.Record(rules.Colors[i%2], a, b)
	}
	assert.False(t, c.Summary().Suspicious(0.0001))
}

func TestConcurrentRecord(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(rules.White, 1, 2)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, c.Summary().Rolls[rules.White.Index()])
}
