package rules

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Dice holds the current roll and the die values not yet played this turn.
// The zero value means "not rolled". Remaining values are kept sorted high
// to low so equal dice states compare equal with ==.
type Dice struct {
	Values [2]int // as rolled; 0,0 when not rolled
	left   [4]int
	n      int
}

// NewDice builds a fresh roll. Doubles expand to four playable values.
func NewDice(a, b int) (Dice, error) {
	if a < 1 || a > 6 || b < 1 || b > 6 {
		return Dice{}, validationf("roll", "dice %d-%d out of range", a, b)
	}
	d := Dice{Values: [2]int{a, b}}
	if a == b {
		d.left = [4]int{a, a, a, a}
		d.n = 4
		return d, nil
	}
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	d.left = [4]int{hi, lo}
	d.n = 2
	return d, nil
}

// DiceWithRemaining rebuilds a partially played roll. remaining must be a
// sub-multiset of the roll's playable values.
func DiceWithRemaining(a, b int, remaining []int) (Dice, error) {
	if a == 0 && b == 0 {
		if len(remaining) > 0 {
			return Dice{}, validationf("dice", "remaining values without a roll")
		}
		return Dice{}, nil
	}
	full, err := NewDice(a, b)
	if err != nil {
		return Dice{}, err
	}
	d := Dice{Values: full.Values}
	pool := full
	for _, v := range remaining {
		if !pool.use(v) {
			return Dice{}, validationf("dice", "remaining value %d not part of roll %d-%d", v, a, b)
		}
		d.insert(v)
	}
	return d, nil
}

// Rolled reports whether dice have been thrown this turn.
func (d Dice) Rolled() bool {
	return d.Values[0] != 0
}

// IsDouble reports whether both dice show the same value.
func (d Dice) IsDouble() bool {
	return d.Rolled() && d.Values[0] == d.Values[1]
}

// Remaining returns the unplayed values, highest first.
func (d Dice) Remaining() []int {
	out := make([]int, d.n)
	copy(out, d.left[:d.n])
	return out
}

// Has reports whether v is still available.
func (d Dice) Has(v int) bool {
	for i := 0; i < d.n; i++ {
		if d.left[i] == v {
			return true
		}
	}
	return false
}

// use removes one occurrence of v; false if v is not available.
func (d *Dice) use(v int) bool {
	for i := 0; i < d.n; i++ {
		if d.left[i] != v {
			continue
		}
		copy(d.left[i:], d.left[i+1:d.n])
		d.n--
		d.left[d.n] = 0
		return true
	}
	return false
}

func (d *Dice) insert(v int) {
	i := d.n
	for i > 0 && d.left[i-1] < v {
		d.left[i] = d.left[i-1]
		i--
	}
	d.left[i] = v
	d.n++
}

// Roller produces dice rolls.
type Roller interface {
	Roll() (int, int)
}

// RollerFunc adapts a function to Roller.
type RollerFunc func() (int, int)

// Roll calls f.
func (f RollerFunc) Roll() (int, int) { return f() }

// RandomRoller rolls with a seeded PCG source. Safe for concurrent use.
type RandomRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomRoller creates a roller; seed 0 seeds from the clock.
func NewRandomRoller(seed uint64) *RandomRoller {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomRoller{rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

// Roll returns two independent die values.
func (r *RandomRoller) Roll() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(6) + 1, r.rng.IntN(6) + 1
}

// FixedRoller replays scripted rolls in order, cycling when exhausted.
type FixedRoller struct {
	mu    sync.Mutex
	rolls [][2]int
	next  int
}

// NewFixedRoller scripts the given rolls.
func NewFixedRoller(rolls ...[2]int) *FixedRoller {
	return &FixedRoller{rolls: rolls}
}

// Roll returns the next scripted roll.
func (r *FixedRoller) Roll() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rolls) == 0 {
		return 1, 1
	}
	roll := r.rolls[r.next%len(r.rolls)]
	r.next++
	return roll[0], roll[1]
}
