// Package dicestats keeps per-match dice counts and runs a chi-square
// goodness-of-fit test on the faces rolled.
package dicestats

import (
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/yourusername/bgserver/pkg/rules"
)

// MinDice is the number of individual dice below which the fairness test
// is not reported: the chi-square approximation needs about five expected
// observations per face.
const MinDice = 30

// Summary is a point-in-time view of the counts.
type Summary struct {
	Rolls     [2]int    `json:"rolls"`
	Doubles   [2]int    `json:"doubles"`
	Faces     [2][6]int `json:"faces"`
	ChiSquare float64   `json:"chi_square"`
	PValue    float64   `json:"p_value"`
	Tested    bool      `json:"tested"` // false until MinDice dice were rolled
}

// Counter accumulates rolls. Safe for concurrent use.
type Counter struct {
	mu      sync.Mutex
	rolls   [2]int
	doubles [2]int
	faces   [2][6]int
}

// Record adds one roll by color c. Out-of-range values are ignored.
func (c *Counter) Record(color rules.Color, a, b int) {
	if !color.Valid() || a < 1 || a > 6 || b < 1 || b > 6 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolls[color.Index()]++
	c.faces[color.Index()][a-1]++
	c.faces[color.Index()][b-1]++
	if a == b {
		c.doubles[color.Index()]++
	}
}

// Summary returns the counts and, once enough dice were rolled, the
// chi-square statistic and p-value of all faces against a fair die.
func (c *Counter) Summary() Summary {
	c.mu.Lock()
	s := Summary{Rolls: c.rolls, Doubles: c.doubles, Faces: c.faces}
	c.mu.Unlock()

	s.PValue = 1
	obs := make([]float64, 6)
	for _, color := range rules.Colors {
		for i, n := range s.Faces[color.Index()] {
			obs[i] += float64(n)
		}
	}
	total := floats.Sum(obs)
	if total < MinDice {
		return s
	}
	exp := make([]float64, 6)
	for i := range exp {
		exp[i] = total / 6
	}
	s.ChiSquare = stat.ChiSquare(obs, exp)
	s.PValue = distuv.ChiSquared{K: 5}.Survival(s.ChiSquare)
	s.Tested = true
	return s
}

// Suspicious reports whether the faces rolled so far reject a fair die at
// significance level alpha.
func (s Summary) Suspicious(alpha float64) bool {
	return s.Tested && s.PValue < alpha
}
