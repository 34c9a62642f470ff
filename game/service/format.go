package service

import (
	"fmt"
	"strings"

	"github.com/wricardo/stop-ultra/game/protocol"
	"github.com/wricardo/stop-ultra/game/round"
	"github.com/wricardo/stop-ultra/game/session"
)

// FormatSnapshot renders a snapshot as plain text for terminal and agent
// surfaces
func FormatSnapshot(s *Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Screen: %s  Connection: %s\n", s.Screen, s.Connection)
	if s.Screen == session.ScreenHome {
		b.WriteString("Not in a room. Create or join one to play.\n")
		return b.String()
	}

	role := "guest"
	if s.IsHost {
		role = "host"
	}
	fmt.Fprintf(&b, "Room: %s  You: %s (%s, %s)\n", s.RoomID, s.Nickname, s.ClientID, role)

	b.WriteString("\nPlayers:\n")
	for _, p := range s.Players {
		var tags []string
		if p.IsHost {
			tags = append(tags, "host")
		}
		if p.IsModerator {
			tags = append(tags, "moderator")
		}
		if p.ID == s.ClientID {
			tags = append(tags, "you")
		}
		line := fmt.Sprintf("  %-12s %3d pts  id=%s", p.Nickname, p.Score, p.ID)
		if len(tags) > 0 {
			line += "  [" + strings.Join(tags, ", ") + "]"
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if s.Phase == protocol.PhaseLobby || s.Phase == "" {
		if s.IsHost && !s.CanStartGame {
			fmt.Fprintf(&b, "Waiting for players (need %d).\n", session.MinPlayers)
		} else if s.IsHost {
			b.WriteString("Ready: start the game when everyone is in.\n")
		} else {
			b.WriteString("Waiting for the host to start the game.\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Phase: %s  Round: %d  Moderator: %s\n", s.Phase, s.Round, s.ModeratorName)

	switch v := s.View.(type) {
	case round.PreparingView:
		switch {
		case s.Spinning:
			b.WriteString("Spinning...\n")
		case v.Letter != "":
			fmt.Fprintf(&b, "Letter: %s  Category: %s\n", v.Letter, v.Category)
		default:
			b.WriteString("No letter yet.\n")
		}

	case round.PlayingView:
		fmt.Fprintf(&b, "Letter: %s  Category: %s\n", v.Letter, v.Category)
		fmt.Fprintf(&b, "Time left: %ds of %ds  Answers in: %d\n", s.Remaining, v.TimeLimit, len(v.Answers))
		if s.Submitted {
			b.WriteString("Your answer is in.\n")
		}

	case round.EvaluatingView:
		b.WriteString("Answers:\n")
		for _, a := range v.Answers {
			fmt.Fprintf(&b, "  %-12s %s  (id=%s)\n", a.Nickname, a.Answer, a.ClientID)
		}
		if len(v.Answers) == 0 {
			b.WriteString("  (none)\n")
		}

	case round.ScoresView:
		if v.Final {
			b.WriteString("Final standings are in.\n")
		}
	}

	return b.String()
}
