package codec

import (
	"encoding/base64"

	"github.com/yourusername/bgserver/pkg/rules"
)

// GnubgIDLength is the length of a gnubg position ID.
const GnubgIDLength = 14

// gnubgBoard is gnubg's TanBoard layout: [side][point], each side counted
// from its own home (index 0 is its one point) and index 24 is the bar.
// Side 1 is the player on roll.
type gnubgBoard [2][25]uint8

// ownPoint maps c's relative point (1 = nearest home) to the absolute point.
func ownPoint(c rules.Color, rel int) int {
	if c == rules.White {
		return rel
	}
	return rules.NumPoints + 1 - rel
}

func toGnubgBoard(p rules.Position, onRoll rules.Color) gnubgBoard {
	var b gnubgBoard
	for side, c := range [2]rules.Color{onRoll.Opponent(), onRoll} {
		for rel := 1; rel <= rules.NumPoints; rel++ {
			b[side][rel-1] = uint8(p.Checkers(c, ownPoint(c, rel)))
		}
		b[side][24] = p.Bar[c.Index()]
	}
	return b
}

// GnubgPositionID encodes the checker layout as seen by onRoll in the
// 14-character base64 form used by GNU Backgammon. Each side is written as
// a run of 1-bits per checker followed by a 0 separator per point.
func GnubgPositionID(p rules.Position, onRoll rules.Color) string {
	b := toGnubgBoard(p, onRoll)
	var key [10]byte
	bit := 0
	for side := 0; side < 2; side++ {
		for pt := 0; pt < 25; pt++ {
			for n := 0; n < int(b[side][pt]); n++ {
				key[bit/8] |= 1 << (bit % 8)
				bit++
			}
			bit++
		}
	}
	return base64.RawStdEncoding.EncodeToString(key[:])
}

// PositionFromGnubgID decodes a gnubg position ID for the given color on
// roll. Checkers missing from the board and bar are counted as borne off.
func PositionFromGnubgID(id string, onRoll rules.Color) (rules.Position, error) {
	if !onRoll.Valid() {
		return rules.Position{}, rules.NewParseError(id, "invalid color on roll")
	}
	if len(id) != GnubgIDLength {
		return rules.Position{}, rules.NewParseError(id, "position ID must be %d characters", GnubgIDLength)
	}
	raw, err := base64.RawStdEncoding.DecodeString(id)
	if err != nil {
		return rules.Position{}, rules.NewParseError(id, "bad base64: %v", err)
	}

	var b gnubgBoard
	side, pt := 0, 0
	for bit := 0; bit < len(raw)*8 && side < 2; bit++ {
		if raw[bit/8]&(1<<(bit%8)) != 0 {
			b[side][pt]++
			continue
		}
		pt++
		if pt == 25 {
			side++
			pt = 0
		}
	}

	var p rules.Position
	for side, c := range [2]rules.Color{onRoll.Opponent(), onRoll} {
		total := 0
		for rel := 1; rel <= rules.NumPoints; rel++ {
			n := int(b[side][rel-1])
			if n == 0 {
				continue
			}
			abs := ownPoint(c, rel)
			if occ, _ := p.Occupant(abs); occ != rules.None {
				return rules.Position{}, rules.NewParseError(id, "point %d holds both colors", abs)
			}
			p.SetPoint(abs, c, n)
			total += n
		}
		total += int(b[side][24])
		if total > rules.NumCheckers {
			return rules.Position{}, rules.NewParseError(id, "%s has %d checkers", c, total)
		}
		p.Bar[c.Index()] = b[side][24]
		p.Off[c.Index()] = uint8(rules.NumCheckers - total)
	}
	return p, nil
}
