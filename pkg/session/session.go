// Package session runs live matches. Each Session owns one match's mutable
// state in a single goroutine; actions are applied one at a time in arrival
// order and every applied action publishes an immutable Snapshot that
// readers load without locking.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yourusername/bgserver/internal/dicestats"
	"github.com/yourusername/bgserver/pkg/codec"
	"github.com/yourusername/bgserver/pkg/rules"
	"github.com/yourusername/bgserver/pkg/transcript"
)

// ErrClosed is returned for actions submitted to a closed session.
var ErrClosed = errors.New("session: closed")

// MatchID identifies a session.
type MatchID string

// DefaultQueueSize is the action queue length used when none is given.
const DefaultQueueSize = 16

// Options configures a session.
type Options struct {
	Target      int  // match length; 0 = unlimited
	Practice    bool // allows ImportPosition
	MaxCube     int  // 0 = rules.DefaultMaxCube
	Roller      rules.Roller
	QueueSize   int
	EventBuffer int // default subscription buffer
	Logger      *log.Logger
	Saver       ResultSaver // optional
}

type request struct {
	action Action
	query  func() // read-only access to the owned state, no snapshot
	reply  chan reply
}

type reply struct {
	snap *Snapshot
	err  error
}

// Session is one live match.
type Session struct {
	id      MatchID
	opts    Options
	logger  *log.Logger
	roller  rules.Roller
	created time.Time
	stats   dicestats.Counter

	requests  chan request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	current atomic.Pointer[Snapshot]

	subMu sync.Mutex
	subs  map[*Subscription]struct{}

	// Owned by the run goroutine.
	match     *rules.Match
	game      *rules.Game
	record    *transcript.Match
	players   [2]string
	seated    [2]bool
	version   uint64
	last      *rules.GameResult
	turnRoll  [2]int
	untracked bool // current game was imported and is not transcribed
}

// New creates a session and starts its goroutine. Call Close to stop it.
func New(id MatchID, opts Options) (*Session, error) {
	m, err := rules.NewMatch(opts.Target)
	if err != nil {
		return nil, err
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.EventBuffer < 1 {
		opts.EventBuffer = DefaultEventBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	roller := opts.Roller
	if roller == nil {
		roller = rules.NewRandomRoller(0)
	}

	now := time.Now()
	s := &Session{
		id:       id,
		opts:     opts,
		logger:   logger.With("match", string(id)),
		roller:   roller,
		created:  now,
		requests: make(chan request, opts.QueueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		subs:     make(map[*Subscription]struct{}),
		match:    m,
		game:     rules.NewGame(rules.GameOptions{MaxCube: opts.MaxCube}),
		record:   transcript.NewMatch("", "", opts.Target),
	}
	s.record.Date = now.Format("2006-01-02")
	s.publish()

	go s.run()
	return s, nil
}

// ID returns the match identifier.
func (s *Session) ID() MatchID {
	return s.id
}

// Snapshot returns the latest published state. It never blocks.
func (s *Session) Snapshot() *Snapshot {
	return s.current.Load()
}

// LegalDestinations lists where the checker on from may move, read from the
// latest snapshot.
func (s *Session) LegalDestinations(from int) []int {
	return s.Snapshot().LegalDestinations(from)
}

// ExportPosition returns the current game state in notation form.
func (s *Session) ExportPosition() string {
	return s.Snapshot().Notation
}

// Do submits a to the session and waits for it to be applied. The returned
// error is a *rules.Error when the action was rejected. If ctx ends after
// the action was queued it may still be applied.
func (s *Session) Do(ctx context.Context, a Action) (*Snapshot, error) {
	if a == nil {
		return nil, &rules.Error{Kind: rules.ValidationError, Op: "action", Msg: "no action"}
	}
	return s.submit(ctx, request{action: a, reply: make(chan reply, 1)})
}

// Transcript returns a copy of the match record so far.
func (s *Session) Transcript(ctx context.Context) (*transcript.Match, error) {
	var out *transcript.Match
	_, err := s.submit(ctx, request{
		query: func() { out = s.transcriptCopy() },
		reply: make(chan reply, 1),
	})
	return out, err
}

func (s *Session) submit(ctx context.Context, req request) (*Snapshot, error) {
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	}
	select {
	case r := <-req.reply:
		return r.snap, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	}
}

// Subscribe registers for events. The latest snapshot is delivered first.
// buffer 0 uses the session default.
func (s *Session) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = s.opts.EventBuffer
	}
	sub := newSubscription(buffer, s.unsubscribe)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	select {
	case <-s.done:
		sub.send(ClosedEvent{MatchID: s.id})
		sub.closeOnce.Do(func() { close(sub.done) })
		return sub
	default:
	}
	sub.send(SnapshotEvent{Snapshot: s.Snapshot()})
	s.subs[sub] = struct{}{}
	return sub
}

func (s *Session) unsubscribe(sub *Subscription) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subs, sub)
}

// Subscribers returns the number of attached subscriptions.
func (s *Session) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// Close stops the session and ends every subscription. Pending and later
// actions fail with ErrClosed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.stopped

		s.subMu.Lock()
		subs := s.subs
		s.subs = make(map[*Subscription]struct{})
		s.subMu.Unlock()

		for sub := range subs {
			sub.send(ClosedEvent{MatchID: s.id})
			sub.closeOnce.Do(func() { close(sub.done) })
		}
		s.logger.Debug("session closed")
	})
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case req := <-s.requests:
			if req.query != nil {
				req.query()
				req.reply <- reply{}
				continue
			}
			snap, err := s.handle(req.action)
			req.reply <- reply{snap: snap, err: err}
		case <-s.done:
			return
		}
	}
}

func (s *Session) handle(a Action) (*Snapshot, error) {
	if err := s.apply(a); err != nil {
		kind := rules.KindOf(err)
		if kind == rules.InvariantViolation {
			s.logger.Error("invariant violated", "action", a.Name(), "error", err)
		} else {
			s.logger.Debug("action rejected", "action", a.Name(), "color", actor(a), "error", err)
		}
		s.broadcast(RejectionEvent{
			MatchID: s.id,
			Action:  a.Name(),
			Color:   actor(a),
			Kind:    kind,
			Message: err.Error(),
		})
		return nil, err
	}
	snap := s.publish()
	s.broadcast(SnapshotEvent{Action: a.Name(), Snapshot: snap})
	return snap, nil
}

func (s *Session) apply(a Action) error {
	switch a := a.(type) {
	case Join:
		return s.join(a)
	case Roll:
		d, err := s.game.Roll(a.Color, s.roller)
		if err != nil {
			return err
		}
		s.stats.Record(a.Color, d.Values[0], d.Values[1])
		s.turnRoll = d.Values
		return nil
	case Move:
		if _, err := s.game.ApplyMove(a.Color, a.From, a.To); err != nil {
			return err
		}
		if s.game.Phase() == rules.GameOver {
			if g := s.tracked(); g != nil {
				g.AddTurn(a.Color, s.turnRoll, s.game.PlayedMoves())
			}
			s.finishGame()
		}
		return nil
	case Undo:
		return s.game.UndoLastMove(a.Color)
	case EndTurn:
		played := s.game.PlayedMoves()
		if err := s.game.EndTurn(a.Color); err != nil {
			return err
		}
		if g := s.tracked(); g != nil {
			g.AddTurn(a.Color, s.turnRoll, played)
		}
		return nil
	case OfferDouble:
		if err := s.game.OfferDouble(a.Color); err != nil {
			return err
		}
		if g := s.tracked(); g != nil {
			g.AddDouble(a.Color, s.game.Cube().Value*2)
		}
		return nil
	case AcceptDouble:
		if err := s.game.AcceptDouble(a.Color); err != nil {
			return err
		}
		if g := s.tracked(); g != nil {
			g.AddTake(a.Color)
		}
		return nil
	case DeclineDouble:
		if err := s.game.DeclineDouble(a.Color); err != nil {
			return err
		}
		if g := s.tracked(); g != nil {
			g.AddDrop(a.Color)
		}
		s.finishGame()
		return nil
	case Abandon:
		return s.abandon(a)
	case NextGame:
		return s.nextGame(a)
	case ImportPosition:
		return s.importPosition(a)
	}
	return invalid("action", "unsupported action %T", a)
}

func (s *Session) join(a Join) error {
	const op = "join"
	if s.match.Status != rules.WaitingForPlayer {
		return conflict(op, "match already %s", s.match.Status)
	}
	c := a.Color
	if c == rules.None {
		c = rules.White
		if s.seated[rules.White.Index()] {
			c = rules.Red
		}
	}
	if !c.Valid() {
		return invalid(op, "invalid color")
	}
	if s.seated[c.Index()] {
		return conflict(op, "%s seat is taken", c)
	}

	s.seated[c.Index()] = true
	s.players[c.Index()] = a.Player
	if !s.seated[rules.White.Index()] || !s.seated[rules.Red.Index()] {
		return nil
	}

	if err := s.match.Begin(); err != nil {
		return err
	}
	if s.game.Phase() == rules.WaitingForOpponent {
		if err := s.game.Start(); err != nil {
			return err
		}
	}
	s.record.White, s.record.Red = s.players[rules.White.Index()], s.players[rules.Red.Index()]
	if !s.untracked {
		s.record.AddGame(s.match.Score, s.match.Crawford)
	}
	s.logger.Info("match started", "white", s.players[rules.White.Index()], "red", s.players[rules.Red.Index()], "target", s.match.Target)
	return nil
}

func (s *Session) abandon(a Abandon) error {
	const op = "abandon"
	if s.match.IsComplete() {
		return conflict(op, "match is complete")
	}
	if !a.Color.Valid() {
		return invalid(op, "invalid color")
	}
	if s.game.Phase() != rules.GameOver {
		if err := s.game.Abandon(a.Color); err != nil {
			return err
		}
		if g := s.tracked(); g != nil {
			g.AddResign(a.Color)
		}
		s.finishGame()
	}
	if s.match.IsComplete() {
		return nil
	}
	if err := s.match.Forfeit(a.Color); err != nil {
		return err
	}
	s.logger.Info("match forfeited", "by", a.Color)
	s.saveMatch()
	return nil
}

func (s *Session) nextGame(a NextGame) error {
	const op = "next_game"
	if s.match.IsComplete() {
		return conflict(op, "match is complete")
	}
	if s.match.Status != rules.InProgress {
		return conflict(op, "match has not started")
	}
	if s.game.Phase() != rules.GameOver {
		return conflict(op, "current game is not over")
	}
	if !a.Color.Valid() {
		return invalid(op, "invalid color")
	}

	first := rules.White
	if len(s.record.Games)%2 == 1 {
		first = rules.Red
	}
	g := rules.NewGame(rules.GameOptions{FirstToMove: first, Crawford: s.match.Crawford, MaxCube: s.opts.MaxCube})
	if err := g.Start(); err != nil {
		return err
	}
	s.game = g
	s.untracked = false
	s.turnRoll = [2]int{}
	s.record.AddGame(s.match.Score, s.match.Crawford)
	s.logger.Debug("game started", "game", len(s.record.Games), "first", first, "crawford", s.match.Crawford)
	return nil
}

func (s *Session) importPosition(a ImportPosition) error {
	const op = "import_position"
	if !s.opts.Practice {
		return conflict(op, "positions can only be imported in practice sessions")
	}
	st, err := codec.Import(a.Notation)
	if err != nil {
		return err
	}
	g, err := rules.RestoreGame(st, s.opts.MaxCube)
	if err != nil {
		return err
	}
	s.game = g
	s.untracked = true
	s.turnRoll = st.Dice.Values
	if r := g.Result(); r != nil {
		s.last = r
	}
	s.logger.Debug("position imported", "notation", a.Notation)
	return nil
}

// tracked returns the transcript game for the current game, nil when the
// game is not being recorded.
func (s *Session) tracked() *transcript.Game {
	if s.untracked {
		return nil
	}
	return s.record.Current()
}

// finishGame scores the game that just ended and persists it.
func (s *Session) finishGame() {
	res := s.game.Result()
	if res == nil {
		return
	}
	s.last = res
	if s.untracked {
		// Imported positions never count toward the match.
		s.logger.Info("practice game over", "winner", res.Winner, "stakes", res.Stakes, "reason", res.Reason)
		return
	}
	if g := s.tracked(); g != nil {
		g.Finish(*res)
	}
	if res.Winner.Valid() && s.match.Status == rules.InProgress {
		if err := s.match.RecordGameResult(res.Winner, res.Stakes); err != nil {
			s.logger.Error("recording game result", "error", err)
		}
	}
	s.logger.Info("game over", "winner", res.Winner, "stakes", res.Stakes, "reason", res.Reason,
		"score", fmt.Sprintf("%d-%d", s.match.Score[rules.White.Index()], s.match.Score[rules.Red.Index()]))

	if s.opts.Saver != nil && s.match.Status != rules.WaitingForPlayer {
		rec := GameRecord{
			MatchID:    s.id,
			GameNumber: len(s.record.Games),
			Winner:     res.Winner,
			Multiplier: res.Multiplier,
			CubeValue:  res.CubeValue,
			Stakes:     res.Stakes,
			Reason:     res.Reason,
			Crawford:   s.game.Crawford(),
			Position:   codec.Export(s.game.State()),
			EndedAt:    time.Now(),
		}
		if err := s.opts.Saver.SaveGameResult(rec); err != nil {
			s.logger.Error("saving game result", "error", err)
		}
	}
	if s.match.IsComplete() {
		s.logger.Info("match complete", "winner", s.match.Winner)
		s.saveMatch()
	}
}

func (s *Session) saveMatch() {
	if s.opts.Saver == nil {
		return
	}
	var buf bytes.Buffer
	if err := transcript.WriteMAT(&buf, s.transcriptCopy()); err != nil {
		s.logger.Error("writing transcript", "error", err)
	}
	rec := MatchRecord{
		MatchID:    s.id,
		Target:     s.match.Target,
		Practice:   s.opts.Practice,
		Players:    s.players,
		Score:      s.match.Score,
		Winner:     s.match.Winner,
		Forfeited:  s.match.Forfeited,
		Games:      s.match.Games,
		Transcript: buf.String(),
		StartedAt:  s.created,
		EndedAt:    time.Now(),
	}
	if err := s.opts.Saver.SaveMatchResult(rec); err != nil {
		s.logger.Error("saving match result", "error", err)
	}
}

func (s *Session) transcriptCopy() *transcript.Match {
	out := s.record.Clone()
	out.White, out.Red = s.players[rules.White.Index()], s.players[rules.Red.Index()]
	return out
}

// publish builds and stores a new snapshot. Called only from the run
// goroutine, or from New before it starts.
func (s *Session) publish() *Snapshot {
	s.version++
	st := s.game.State()
	snap := &Snapshot{
		MatchID:    s.id,
		Version:    s.version,
		Practice:   s.opts.Practice,
		Players:    s.players,
		Seated:     s.seated,
		State:      st,
		Match:      *s.match,
		GameNumber: len(s.record.Games),
		Legal:      s.game.LegalMoves(),
		Played:     s.game.PlayedMoves(),
		CanUndo:    s.game.CanUndo(),
		Notation:   codec.Export(st),
		GnubgID:    codec.GnubgPositionID(st.Position, st.Turn),
		Dice:       s.stats.Summary(),
		CreatedAt:  s.created,
		UpdatedAt:  time.Now(),
	}
	if s.last != nil {
		r := *s.last
		snap.LastResult = &r
	}
	s.current.Store(snap)
	return snap
}

// broadcast delivers evt to every subscriber. The lock is held while
// sending so a new subscriber never sees events older than its initial
// snapshot; send never blocks.
func (s *Session) broadcast(evt Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subs {
		sub.send(evt)
	}
}

func invalid(op, format string, args ...any) error {
	return &rules.Error{Kind: rules.ValidationError, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func conflict(op, format string, args ...any) error {
	return &rules.Error{Kind: rules.StateConflictError, Op: op, Msg: fmt.Sprintf(format, args...)}
}
