package session

import (
	"slices"
	"sort"
	"strings"

	"github.com/wricardo/stop-ultra/game/protocol"
)

// MinPlayers is the smallest roster the host may start a game with
const MinPlayers = 3

// Screen is the top-level context the client is showing
type Screen int

const (
	ScreenHome Screen = iota
	ScreenLobby
	ScreenGame
)

func (s Screen) String() string {
	switch s {
	case ScreenLobby:
		return "LOBBY"
	case ScreenGame:
		return "GAME"
	default:
		return "HOME"
	}
}

// State is the client's read-only mirror of the joined room
type State struct {
	clientID string
	roomID   string
	nickname string
	players  []protocol.Player
	isHost   bool
	screen   Screen
}

// New creates an empty session for the given local identity
func New(clientID string) *State {
	return &State{clientID: clientID, screen: ScreenHome}
}

// NormalizeRoomID upper-cases and trims a room code the way the server does
func NormalizeRoomID(roomID string) string {
	return strings.ToUpper(strings.TrimSpace(roomID))
}

// Begin records a successful create or join. The creator is assumed host
// until the first roster says otherwise.
func (s *State) Begin(roomID, nickname string, asHost bool) {
	s.roomID = NormalizeRoomID(roomID)
	s.nickname = nickname
	s.players = nil
	s.isHost = asHost
	s.screen = ScreenLobby
}

// Reset destroys the session and returns to the home screen
func (s *State) Reset() {
	s.roomID = ""
	s.nickname = ""
	s.players = nil
	s.isHost = false
	s.screen = ScreenHome
}

// ApplyRosterUpdate replaces the roster with the given snapshot and derives
// the local host flag from it
func (s *State) ApplyRosterUpdate(players []protocol.Player) {
	s.players = slices.Clone(players)

	for _, p := range s.players {
		if p.ID == s.clientID {
			s.isHost = p.IsHost
			return
		}
	}
}

func (s *State) ClientID() string { return s.clientID }
func (s *State) RoomID() string   { return s.roomID }
func (s *State) Nickname() string { return s.nickname }
func (s *State) IsHost() bool     { return s.isHost }
func (s *State) Screen() Screen   { return s.screen }

// Joined reports whether a room is currently joined
func (s *State) Joined() bool {
	return s.roomID != ""
}

// SetScreen switches between the lobby and game screens. It is ignored while
// no room is joined.
func (s *State) SetScreen(screen Screen) {
	if !s.Joined() {
		return
	}
	s.screen = screen
}

// Players returns a copy of the current roster in server order
func (s *State) Players() []protocol.Player {
	return slices.Clone(s.players)
}

// Player looks up a roster entry by id
func (s *State) Player(id string) (protocol.Player, bool) {
	for _, p := range s.players {
		if p.ID == id {
			return p, true
		}
	}
	return protocol.Player{}, false
}

// Standings returns the roster ordered by score, highest first. Ties keep
// server order.
func (s *State) Standings() []protocol.Player {
	standings := s.Players()
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	return standings
}

// CanStartGame reports whether the local client may start the game
func (s *State) CanStartGame() bool {
	return s.isHost && len(s.players) >= MinPlayers
}

// MissingPlayers is how many more players the lobby needs before starting
func (s *State) MissingPlayers() int {
	if n := MinPlayers - len(s.players); n > 0 {
		return n
	}
	return 0
}
