package round

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wricardo/stop-ultra/game/protocol"
)

const (
	DefaultSpinDelay    = 2 * time.Second
	DefaultTickInterval = time.Second
)

// Options wires a Controller to its owner
type Options struct {
	Clock        clockwork.Clock
	SpinDelay    time.Duration
	TickInterval time.Duration

	// Post schedules fn on the owner's event loop. Timer callbacks never touch
	// controller state directly.
	Post func(fn func())

	// Emit sends an intent produced by a local timer
	Emit func(action protocol.Action, payload any) error

	// OnTick observes every countdown step
	OnTick func(remaining int)

	Logger *zap.Logger
}

// Controller tracks the current phase and round data for one client
type Controller struct {
	localID string
	opts    Options
	logger  *zap.Logger

	phase  protocol.Phase
	fields Fields
	round  int

	remaining    int
	tickTimer    clockwork.Timer
	countdownGen int
	forceEnded   bool
	submitted    bool

	// resync is set while a new connection waits for its first update
	resync bool

	spinning  bool
	spinTimer clockwork.Timer
	spinGen   int
}

// NewController creates a controller in the LOBBY phase
func NewController(localID string, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.SpinDelay <= 0 {
		opts.SpinDelay = DefaultSpinDelay
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	if opts.Emit == nil {
		opts.Emit = func(protocol.Action, any) error { return nil }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Controller{
		localID: localID,
		opts:    opts,
		logger:  opts.Logger,
		phase:   protocol.PhaseLobby,
	}
}

// Apply mirrors an authoritative update and reports whether the phase changed
func (c *Controller) Apply(u protocol.GameStateUpdate) bool {
	if u.State == protocol.PhaseLobby {
		changed := c.phase != protocol.PhaseLobby
		c.Reset()
		return changed
	}

	prev := c.phase
	c.fields.merge(u)
	c.phase = u.State

	if c.spinning && c.fields.Letter != "" {
		c.CancelSpin()
	}

	resync := c.resync
	c.resync = false

	if prev == c.phase {
		if resync {
			c.reenter(c.phase)
		}
		return false
	}

	c.exit(prev)
	c.enter(c.phase)
	c.logger.Debug("phase changed",
		zap.String("from", string(prev)),
		zap.String("to", string(c.phase)),
		zap.Int("round", c.round))
	return true
}

// Reset returns to the lobby, clearing round data and cancelling timers
func (c *Controller) Reset() {
	c.stopCountdown()
	c.CancelSpin()
	c.phase = protocol.PhaseLobby
	c.fields = Fields{}
	c.round = 0
	c.remaining = 0
	c.forceEnded = false
	c.submitted = false
	c.resync = false
}

// Resync drops the local countdown after the connection was replaced. The
// next update re-enters its phase as if seen for the first time, without
// counting a new round.
func (c *Controller) Resync() {
	c.stopCountdown()
	c.resync = true
}

func (c *Controller) exit(phase protocol.Phase) {
	switch phase {
	case protocol.PhasePlaying:
		c.stopCountdown()
	case protocol.PhasePreparing:
		c.CancelSpin()
	}
}

func (c *Controller) enter(phase protocol.Phase) {
	if phase != protocol.PhasePlaying {
		return
	}
	c.round++
	c.forceEnded = false
	c.submitted = false
	c.startCountdown()
}

func (c *Controller) reenter(phase protocol.Phase) {
	if phase != protocol.PhasePlaying {
		return
	}
	c.forceEnded = false
	c.submitted = c.answered()
	c.startCountdown()
	c.logger.Debug("round resynced", zap.Int("round", c.round), zap.Int("remaining", c.remaining))
}

// answered reports whether the server lists an answer from the local client
func (c *Controller) answered() bool {
	for _, a := range c.fields.Answers {
		if a.ClientID == c.localID {
			return true
		}
	}
	return false
}

func (c *Controller) Phase() protocol.Phase { return c.phase }
func (c *Controller) Round() int            { return c.round }
func (c *Controller) Remaining() int        { return c.remaining }
func (c *Controller) Spinning() bool        { return c.spinning }
func (c *Controller) Submitted() bool       { return c.submitted }

// Fields returns a copy of the merged round data
func (c *Controller) Fields() Fields {
	return c.fields.clone()
}

// IsModerator reports whether the local client moderates the current round
func (c *Controller) IsModerator() bool {
	return c.fields.ModeratorID != "" && c.fields.ModeratorID == c.localID
}

// View returns the round data for the current phase
func (c *Controller) View() View {
	f := c.fields.clone()
	switch c.phase {
	case protocol.PhasePreparing:
		return PreparingView{ModeratorID: f.ModeratorID, Letter: f.Letter, Category: f.Category, Spinning: c.spinning}
	case protocol.PhasePlaying:
		return PlayingView{
			ModeratorID: f.ModeratorID,
			Letter:      f.Letter,
			Category:    f.Category,
			TimeLimit:   c.timeLimit(),
			Remaining:   c.remaining,
			Answers:     f.Answers,
		}
	case protocol.PhaseEvaluating:
		return EvaluatingView{ModeratorID: f.ModeratorID, Answers: f.Answers}
	case protocol.PhaseScores, protocol.PhaseFinalScores:
		return ScoresView{ModeratorID: f.ModeratorID, Final: c.phase == protocol.PhaseFinalScores}
	default:
		return LobbyView{}
	}
}

// MarkSubmitted records that the local player answered this round
func (c *Controller) MarkSubmitted() {
	c.submitted = true
}

func (c *Controller) timeLimit() int {
	if c.fields.TimeLimit > 0 {
		return c.fields.TimeLimit
	}
	return DefaultTimeLimit
}

func (c *Controller) startCountdown() {
	c.stopCountdown()
	c.remaining = c.timeLimit()
	c.scheduleTick()
}

func (c *Controller) scheduleTick() {
	gen := c.countdownGen
	c.tickTimer = c.opts.Clock.AfterFunc(c.opts.TickInterval, func() {
		c.opts.Post(func() {
			if gen != c.countdownGen {
				return
			}
			c.tickTimer = nil
			c.Tick()
		})
	})
}

func (c *Controller) stopCountdown() {
	c.countdownGen++
	if c.tickTimer != nil {
		c.tickTimer.Stop()
		c.tickTimer = nil
	}
}

// Tick advances the local countdown by one step. Once it reaches zero the
// moderator emits FORCE_END_ROUND; further ticks in the same round do nothing.
func (c *Controller) Tick() {
	if c.phase != protocol.PhasePlaying {
		return
	}

	if c.remaining > 0 {
		c.remaining--
		if c.opts.OnTick != nil {
			c.opts.OnTick(c.remaining)
		}
	}

	if c.remaining > 0 {
		if c.tickTimer == nil {
			c.scheduleTick()
		}
		return
	}

	c.stopCountdown()
	if !c.IsModerator() || c.forceEnded {
		return
	}

	c.forceEnded = true
	c.logger.Info("countdown elapsed, ending round", zap.Int("round", c.round))
	if err := c.opts.Emit(protocol.ActionForceEndRound, nil); err != nil {
		c.logger.Warn("force end not delivered", zap.Int("round", c.round), zap.Error(err))
	}
}

// RequestSpin arms the spin delay. SPIN is emitted when it elapses.
func (c *Controller) RequestSpin() error {
	if err := c.Check(protocol.ActionSpin, false); err != nil {
		return err
	}
	if c.spinning {
		return fmt.Errorf("%w: already spinning", ErrIllegalAction)
	}

	c.spinning = true
	gen := c.spinGen
	c.spinTimer = c.opts.Clock.AfterFunc(c.opts.SpinDelay, func() {
		c.opts.Post(func() {
			if gen != c.spinGen {
				return
			}
			c.spinTimer = nil
			if err := c.opts.Emit(protocol.ActionSpin, nil); err != nil {
				c.logger.Warn("spin not delivered", zap.Error(err))
				c.spinning = false
			}
		})
	})
	return nil
}

// CancelSpin abandons a pending spin
func (c *Controller) CancelSpin() {
	c.spinGen++
	if c.spinTimer != nil {
		c.spinTimer.Stop()
		c.spinTimer = nil
	}
	c.spinning = false
}
