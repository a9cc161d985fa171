package session

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/yourusername/bgserver/pkg/rules"
)

// Chooser picks one of the legal moves. legal is never empty.
type Chooser interface {
	Choose(snap *Snapshot, legal []rules.Move) rules.Move
}

// ChooserFunc adapts a function to Chooser.
type ChooserFunc func(snap *Snapshot, legal []rules.Move) rules.Move

// Choose calls f.
func (f ChooserFunc) Choose(snap *Snapshot, legal []rules.Move) rules.Move {
	return f(snap, legal)
}

// FirstMove always plays the first legal move.
var FirstMove = ChooserFunc(func(_ *Snapshot, legal []rules.Move) rules.Move {
	return legal[0]
})

// Bot plays one color of a session. It watches snapshots and submits
// actions through Do like any other client. It never offers doubles and
// accepts every double offered to it.
type Bot struct {
	session *Session
	color   rules.Color
	name    string
	chooser Chooser
	logger  *log.Logger
}

// NewBot creates a bot for color. A nil chooser uses FirstMove.
func NewBot(s *Session, color rules.Color, chooser Chooser, logger *log.Logger) *Bot {
	if chooser == nil {
		chooser = FirstMove
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Bot{
		session: s,
		color:   color,
		name:    "bot",
		chooser: chooser,
		logger:  logger.With("match", string(s.ID()), "bot", color),
	}
}

// Run joins the match if the bot's seat is free and then plays until ctx
// ends, the session closes or the match is complete.
func (b *Bot) Run(ctx context.Context) error {
	sub := b.session.Subscribe(0)
	defer sub.Close()

	if snap := b.session.Snapshot(); !snap.Seated[b.color.Index()] && snap.Match.Status == rules.WaitingForPlayer {
		if _, err := b.session.Do(ctx, Join{Player: b.name, Color: b.color}); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done():
			return nil
		case evt := <-sub.Events():
			se, ok := evt.(SnapshotEvent)
			if !ok {
				if _, closed := evt.(ClosedEvent); closed {
					return nil
				}
				continue
			}
			if se.Snapshot.Completed() {
				return nil
			}
			if err := b.act(ctx, se.Snapshot); err != nil {
				return err
			}
		}
	}
}

// act submits at most one action for snap. Stale snapshots are skipped; the
// event for the newer one is on its way.
func (b *Bot) act(ctx context.Context, snap *Snapshot) error {
	if latest := b.session.Snapshot(); latest.Version != snap.Version {
		return nil
	}
	a := b.next(snap)
	if a == nil {
		return nil
	}
	_, err := b.session.Do(ctx, a)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrClosed):
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}
	// A rejection means another client acted first; the next snapshot
	// decides again.
	b.logger.Debug("bot action rejected", "action", a.Name(), "error", err)
	return nil
}

func (b *Bot) next(snap *Snapshot) Action {
	st := snap.State
	if st.Phase == rules.GameOver {
		if snap.Match.Status == rules.InProgress {
			return NextGame{Color: b.color}
		}
		return nil
	}
	if snap.ToAct() != b.color {
		return nil
	}
	if st.Cube.OfferPending {
		return AcceptDouble{Color: b.color}
	}
	switch st.Phase {
	case rules.AwaitingRoll:
		return Roll{Color: b.color}
	case rules.MovesRemaining:
		m := b.chooser.Choose(snap, snap.Legal)
		return Move{Color: b.color, From: m.From, To: m.To}
	case rules.AwaitingEndTurn:
		return EndTurn{Color: b.color}
	}
	return nil
}
