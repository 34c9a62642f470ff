package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wricardo/stop-ultra/game/protocol"
	"github.com/wricardo/stop-ultra/game/round"
)

// Dispatch sends an intent if the connection is open and the action is
// legal in the current phase. Nothing is queued while disconnected.
func (c *Client) Dispatch(ctx context.Context, action protocol.Action, payload any) error {
	if action == protocol.ActionLeaveRoom {
		return c.LeaveRoom(ctx)
	}
	return c.do(ctx, func() error {
		return c.dispatch(action, payload)
	})
}

func (c *Client) dispatch(action protocol.Action, payload any) error {
	if err := c.requireOpen(action); err != nil {
		return err
	}
	if err := c.round.Check(action, c.session.IsHost()); err != nil {
		return err
	}
	return c.send(action, payload)
}

func (c *Client) requireOpen(action protocol.Action) error {
	if c.connState != Open || c.conn == nil {
		return fmt.Errorf("%w: %s dropped", ErrNotConnected, action)
	}
	return nil
}

// send encodes and writes one intent
func (c *Client) send(action protocol.Action, payload any) error {
	if err := c.requireOpen(action); err != nil {
		return err
	}

	data, err := protocol.Encode(action, payload)
	if err != nil {
		return err
	}
	if err := c.conn.Send(data); err != nil {
		return fmt.Errorf("failed to send %s: %w", action, err)
	}

	c.logger.Debug("intent sent", zap.String("action", string(action)))
	return nil
}

// StartGame starts the game with a round length from round.TimeLimitOptions.
// Zero uses the configured default.
func (c *Client) StartGame(ctx context.Context, timeLimit int) error {
	if timeLimit == 0 {
		timeLimit = c.cfg.DefaultTimeLimit
	}
	if err := round.ValidateTimeLimit(timeLimit); err != nil {
		return err
	}

	return c.do(ctx, func() error {
		if err := c.requireOpen(protocol.ActionStartGame); err != nil {
			return err
		}
		if c.session.IsHost() && !c.session.CanStartGame() {
			return fmt.Errorf("%w: need %d more players", round.ErrIllegalAction, c.session.MissingPlayers())
		}
		return c.dispatch(protocol.ActionStartGame, protocol.StartGamePayload{TimeLimit: timeLimit})
	})
}

// Spin arms the wheel; SPIN goes out once the spin delay elapses
func (c *Client) Spin(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.requireOpen(protocol.ActionSpin); err != nil {
			return err
		}
		return c.round.RequestSpin()
	})
}

func (c *Client) StartRound(ctx context.Context) error {
	return c.Dispatch(ctx, protocol.ActionStartRound, nil)
}

// SubmitAnswer sends the local player's answer for this round
func (c *Client) SubmitAnswer(ctx context.Context, answer string) error {
	answer, err := round.NormalizeAnswer(answer)
	if err != nil {
		return err
	}

	return c.do(ctx, func() error {
		if err := c.dispatch(protocol.ActionSubmitAnswer, protocol.SubmitAnswerPayload{Answer: answer}); err != nil {
			return err
		}
		c.round.MarkSubmitted()
		return nil
	})
}

func (c *Client) ForceEndRound(ctx context.Context) error {
	return c.Dispatch(ctx, protocol.ActionForceEndRound, nil)
}

// SelectWinner names the player whose answer wins the round
func (c *Client) SelectWinner(ctx context.Context, winnerID string) error {
	return c.do(ctx, func() error {
		if err := c.requireOpen(protocol.ActionSelectWinner); err != nil {
			return err
		}
		if err := c.round.Check(protocol.ActionSelectWinner, c.session.IsHost()); err != nil {
			return err
		}
		if err := c.round.ValidateWinner(winnerID); err != nil {
			return err
		}
		return c.send(protocol.ActionSelectWinner, protocol.SelectWinnerPayload{WinnerID: winnerID})
	})
}

func (c *Client) RestartRound(ctx context.Context) error {
	return c.Dispatch(ctx, protocol.ActionRestartRound, nil)
}

func (c *Client) EndGame(ctx context.Context) error {
	return c.Dispatch(ctx, protocol.ActionEndGame, nil)
}

func (c *Client) ContinueGame(ctx context.Context) error {
	return c.Dispatch(ctx, protocol.ActionContinueGame, nil)
}

func (c *Client) ReturnToLobby(ctx context.Context) error {
	return c.Dispatch(ctx, protocol.ActionReturnToLobby, nil)
}
