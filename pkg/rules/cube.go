package rules

// DefaultMaxCube is the highest cube value reachable by doubling.
const DefaultMaxCube = 64

// Cube is the doubling cube. It is centered (Owner None) at value 1 at the
// start of every game; after an accepted double the taker owns it.
type Cube struct {
	Value        int
	Owner        Color
	OfferPending bool
	OfferedBy    Color
}

// NewCube returns a centered cube.
func NewCube() Cube {
	return Cube{Value: 1, Owner: None, OfferedBy: None}
}

// Centered reports whether nobody owns the cube.
func (c Cube) Centered() bool {
	return c.Owner == None
}

// MayDouble reports whether color holds doubling rights on the cube,
// ignoring turn and phase.
func (c Cube) MayDouble(color Color) bool {
	return !c.OfferPending && (c.Owner == None || c.Owner == color)
}

func (c *Cube) offer(color Color, maxValue int) error {
	const op = "offer_double"
	if c.OfferPending {
		return conflictf(op, "a double is already pending")
	}
	if c.Owner != None && c.Owner != color {
		return conflictf(op, "cube is owned by %s", c.Owner)
	}
	if maxValue > 0 && c.Value*2 > maxValue {
		return conflictf(op, "cube is already at its maximum value %d", c.Value)
	}
	c.OfferPending = true
	c.OfferedBy = color
	return nil
}

func (c *Cube) checkResponder(op string, color Color) error {
	if !c.OfferPending {
		return conflictf(op, "no double has been offered")
	}
	if color == c.OfferedBy {
		return validationf(op, "%s cannot answer its own double", color)
	}
	return nil
}

func (c *Cube) accept(color Color) error {
	if err := c.checkResponder("accept_double", color); err != nil {
		return err
	}
	c.Value *= 2
	c.Owner = color
	c.OfferPending = false
	c.OfferedBy = None
	return nil
}

// decline clears the offer and returns the offering color and the value the
// game is lost at, which is the value before the double.
func (c *Cube) decline(color Color) (Color, int, error) {
	if err := c.checkResponder("decline_double", color); err != nil {
		return None, 0, err
	}
	offeredBy := c.OfferedBy
	c.OfferPending = false
	c.OfferedBy = None
	return offeredBy, c.Value, nil
}

func (c Cube) validate() error {
	if c.Value < 1 || c.Value&(c.Value-1) != 0 {
		return validationf("cube", "cube value %d is not a power of two", c.Value)
	}
	if c.Owner != None && !c.Owner.Valid() {
		return validationf("cube", "invalid cube owner %d", c.Owner)
	}
	if c.Value == 1 && c.Owner != None {
		return validationf("cube", "cube at 1 cannot be owned")
	}
	if c.Value > 1 && c.Owner == None {
		return validationf("cube", "cube at %d must have an owner", c.Value)
	}
	if c.OfferPending != (c.OfferedBy != None) {
		return validationf("cube", "pending offer and offering color disagree")
	}
	if c.OfferPending && !c.OfferedBy.Valid() {
		return validationf("cube", "invalid offering color %d", c.OfferedBy)
	}
	if c.OfferPending && c.Owner != None && c.Owner != c.OfferedBy {
		return validationf("cube", "%s offered a cube owned by %s", c.OfferedBy, c.Owner)
	}
	return nil
}
