package round

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/wricardo/stop-ultra/game/protocol"
)

var (
	ErrIllegalAction    = errors.New("action not allowed now")
	ErrEmptyAnswer      = errors.New("answer is empty")
	ErrInvalidTimeLimit = errors.New("invalid time limit")
	ErrUnknownWinner    = errors.New("winner is not among the answers")
)

const (
	DefaultTimeLimit      = 60
	MaxAnswerLength       = 25
	FallbackModeratorName = "Moderator"
)

// TimeLimitOptions are the round lengths, in seconds, a host may pick
var TimeLimitOptions = []int{15, 30, 45, 60, 90, 105, 120}

// Check reports whether the local client may send action in the current
// phase. It mirrors the server's rules so a UI can hide refused actions.
func (c *Controller) Check(action protocol.Action, isHost bool) error {
	mod := c.IsModerator()
	hasLetter := c.fields.Letter != ""

	var ok bool
	switch action {
	case protocol.ActionJoin, protocol.ActionLeaveRoom:
		ok = true
	case protocol.ActionStartGame:
		ok = c.phase == protocol.PhaseLobby && isHost
	case protocol.ActionSpin:
		ok = c.phase == protocol.PhasePreparing && mod && !hasLetter
	case protocol.ActionStartRound:
		ok = c.phase == protocol.PhasePreparing && mod && hasLetter
	case protocol.ActionSubmitAnswer:
		ok = c.phase == protocol.PhasePlaying && !mod && !c.submitted
	case protocol.ActionForceEndRound:
		ok = c.phase == protocol.PhasePlaying && mod
	case protocol.ActionSelectWinner, protocol.ActionRestartRound:
		ok = c.phase == protocol.PhaseEvaluating && mod
	case protocol.ActionEndGame:
		ok = (c.phase == protocol.PhaseEvaluating || c.phase == protocol.PhaseScores) && mod
	case protocol.ActionContinueGame:
		ok = c.phase == protocol.PhaseScores && mod
	case protocol.ActionReturnToLobby:
		ok = c.phase == protocol.PhaseFinalScores && isHost
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnknownAction, action)
	}

	if !ok {
		return fmt.Errorf("%w: %s during %s", ErrIllegalAction, action, c.phase)
	}
	return nil
}

// ValidateTimeLimit accepts only the offered round lengths
func ValidateTimeLimit(seconds int) error {
	if !slices.Contains(TimeLimitOptions, seconds) {
		return fmt.Errorf("%w: %d", ErrInvalidTimeLimit, seconds)
	}
	return nil
}

// NormalizeAnswer trims the answer and caps it at MaxAnswerLength runes
func NormalizeAnswer(answer string) (string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	if utf8.RuneCountInString(answer) > MaxAnswerLength {
		answer = strings.TrimSpace(string([]rune(answer)[:MaxAnswerLength]))
	}
	return answer, nil
}

// ValidateWinner checks that winnerID submitted an answer this round
func (c *Controller) ValidateWinner(winnerID string) error {
	for _, a := range c.fields.Answers {
		if a.ClientID == winnerID {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownWinner, winnerID)
}
