package round

import (
	"slices"

	"github.com/wricardo/stop-ultra/game/protocol"
)

// Fields is the merged round payload mirrored from the server
type Fields struct {
	ModeratorID string
	Letter      string
	Category    string
	Answers     []protocol.Answer
	TimeLimit   int
}

func (f Fields) clone() Fields {
	f.Answers = slices.Clone(f.Answers)
	return f
}

// merge shallow-merges the fields present in u
func (f *Fields) merge(u protocol.GameStateUpdate) {
	if u.ModeratorID.Set {
		f.ModeratorID = u.ModeratorID.Value
	}
	if u.Letter.Set {
		f.Letter = u.Letter.Value
	}
	if u.Category.Set {
		f.Category = u.Category.Value
	}
	if u.Answers.Set {
		f.Answers = slices.Clone(u.Answers.Value)
	}
	if u.TimeLimit.Set {
		f.TimeLimit = u.TimeLimit.Value
	}
}

// View is the round data relevant to one phase
type View interface {
	Phase() protocol.Phase
}

type LobbyView struct{}

type PreparingView struct {
	ModeratorID string
	Letter      string
	Category    string
	Spinning    bool
}

type PlayingView struct {
	ModeratorID string
	Letter      string
	Category    string
	TimeLimit   int
	Remaining   int
	Answers     []protocol.Answer
}

type EvaluatingView struct {
	ModeratorID string
	Answers     []protocol.Answer
}

// ScoresView covers both the between-rounds scoreboard and the final results
type ScoresView struct {
	ModeratorID string
	Final       bool
}

func (LobbyView) Phase() protocol.Phase      { return protocol.PhaseLobby }
func (PreparingView) Phase() protocol.Phase  { return protocol.PhasePreparing }
func (PlayingView) Phase() protocol.Phase    { return protocol.PhasePlaying }
func (EvaluatingView) Phase() protocol.Phase { return protocol.PhaseEvaluating }

func (v ScoresView) Phase() protocol.Phase {
	if v.Final {
		return protocol.PhaseFinalScores
	}
	return protocol.PhaseScores
}

// ModeratorName resolves the moderator's nickname from the roster
func ModeratorName(moderatorID string, players []protocol.Player) string {
	for _, p := range players {
		if p.ID == moderatorID && moderatorID != "" {
			return p.Nickname
		}
	}
	return FallbackModeratorName
}
