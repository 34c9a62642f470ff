// Package bot drives a game client without a human, so a room can reach the
// player minimum during development and demos.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wricardo/stop-ultra/game/protocol"
	"github.com/wricardo/stop-ultra/game/service"
)

// DefaultThink is the pause between two looks at the table
const DefaultThink = 1500 * time.Millisecond

// Options configures a Bot
type Options struct {
	// Strategy defaults to Casual
	Strategy Strategy

	// Think is the polling interval
	Think time.Duration

	Clock  clockwork.Clock
	Logger *zap.Logger
}

// Bot plays one seat through a GameClient
type Bot struct {
	game     service.GameClient
	strategy Strategy
	think    time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger

	// last is the phase/round/action of the last move sent
	last string
}

// New creates a bot for a client that is already running
func New(game service.GameClient, opts Options) *Bot {
	if opts.Strategy == nil {
		opts.Strategy = NewCasual(nil)
	}
	if opts.Think <= 0 {
		opts.Think = DefaultThink
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Bot{
		game:     game,
		strategy: opts.Strategy,
		think:    opts.Think,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
}

// Run plays until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	ticker := b.clock.NewTicker(b.think)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			action, err := b.Step(ctx)
			if err != nil {
				b.logger.Debug("bot move refused", zap.String("action", string(action)), zap.Error(err))
				continue
			}
			if action != "" {
				b.logger.Info("bot move", zap.String("action", string(action)))
			}
		}
	}
}

// Step looks at the table once and sends at most one intent. It returns the
// action sent, or "" when the bot is waiting.
func (b *Bot) Step(ctx context.Context) (protocol.Action, error) {
	snap, err := b.game.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	move := b.strategy.NextMove(snap)
	if move.Action == "" {
		return "", nil
	}

	// The same move twice in a row means the server has not answered yet
	key := fmt.Sprintf("%s/%d/%s", snap.Phase, snap.Round, move.Action)
	if key == b.last {
		return "", nil
	}

	if err := b.execute(ctx, move); err != nil {
		return move.Action, err
	}
	b.last = key
	return move.Action, nil
}

func (b *Bot) execute(ctx context.Context, move Move) error {
	switch move.Action {
	case protocol.ActionSpin:
		return b.game.Spin(ctx)
	case protocol.ActionStartRound:
		return b.game.StartRound(ctx)
	case protocol.ActionSubmitAnswer:
		return b.game.SubmitAnswer(ctx, move.Answer)
	case protocol.ActionSelectWinner:
		return b.game.SelectWinner(ctx, move.WinnerID)
	case protocol.ActionRestartRound:
		return b.game.RestartRound(ctx)
	case protocol.ActionContinueGame:
		return b.game.ContinueGame(ctx)
	default:
		return b.game.Dispatch(ctx, move.Action, nil)
	}
}
