package api

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wricardo/stop-ultra/game/protocol"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrGameInProgress = errors.New("game in progress")
)

const (
	roomCodeLength   = 4
	minPlayers       = 3
	defaultTimeLimit = 60
)

// Letters excludes K and W, which have too few Spanish words
var Letters = strings.Split("ABCDEFGHIJLMNOPQRSTUVXYZ", "")

var Categories = []string{
	"Herramienta", "Animal", "Cuerpo humano", "Adjetivo", "Ciudad", "País",
	"Profesión", "Deporte", "Alimento", "Cantante o grupo musical",
	"Película", "Serie de TV", "Persona famosa", "Marca",
}

type player struct {
	id        string
	nickname  string
	score     int
	isHost    bool
	connected bool
}

type room struct {
	id          string
	hostID      string
	players     []*player
	state       protocol.Phase
	moderatorID string
	letter      string
	category    string
	answers     []protocol.Answer
	timeLimit   int
}

func (r *room) find(id string) (*player, int) {
	for i, p := range r.players {
		if p.id == id {
			return p, i
		}
	}
	return nil, -1
}

func (r *room) remove(id string) {
	if _, i := r.find(id); i >= 0 {
		r.players = append(r.players[:i], r.players[i+1:]...)
	}
}

// promoteHost hands the host role to the longest-standing player
func (r *room) promoteHost() {
	r.hostID = ""
	if len(r.players) == 0 {
		return
	}
	r.players[0].isHost = true
	r.hostID = r.players[0].id
}

func (r *room) clearRound() {
	r.letter = ""
	r.category = ""
	r.answers = nil
}

func (r *room) roster() []protocol.Player {
	out := make([]protocol.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, protocol.Player{
			ID:          p.id,
			Nickname:    p.nickname,
			IsHost:      p.isHost,
			Score:       p.score,
			IsModerator: p.id == r.moderatorID,
		})
	}
	return out
}

func (r *room) stateUpdate() protocol.GameStateUpdate {
	answers := append([]protocol.Answer{}, r.answers...)
	return protocol.GameStateUpdate{
		State:       r.state,
		ModeratorID: protocol.Some(r.moderatorID),
		Letter:      protocol.Some(r.letter),
		Category:    protocol.Some(r.category),
		Answers:     protocol.Some(answers),
		TimeLimit:   protocol.Some(r.timeLimit),
	}
}

// outcome says which snapshots an intent invalidated
type outcome struct {
	roster bool
	state  bool
}

// Rooms is the in-memory authority for every room
type Rooms struct {
	mu     sync.Mutex
	rooms  map[string]*room
	logger *zap.Logger

	// pick returns a random index in [0, n)
	pick func(n int) int
}

// NewRooms creates an empty room table
func NewRooms(logger *zap.Logger) *Rooms {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rooms{
		rooms:  make(map[string]*room),
		logger: logger,
		pick:   rand.IntN,
	}
}

// Create registers a room with a fresh four-letter code
func (rs *Rooms) Create() string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var code string
	for {
		b := make([]byte, roomCodeLength)
		for i := range b {
			b[i] = byte('A' + rs.pick(26))
		}
		code = string(b)
		if _, exists := rs.rooms[code]; !exists {
			break
		}
	}

	rs.rooms[code] = &room{id: code, state: protocol.PhaseLobby, timeLimit: defaultTimeLimit}
	rs.logger.Info("room created", zap.String("room", code))
	return code
}

// Check reports whether new players may enter a room
func (rs *Rooms) Check(roomID string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r, ok := rs.rooms[strings.ToUpper(roomID)]
	if !ok {
		return ErrRoomNotFound
	}
	if r.state != protocol.PhaseLobby {
		return ErrGameInProgress
	}
	return nil
}

// Exists reports whether a room code is known
func (rs *Rooms) Exists(roomID string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	_, ok := rs.rooms[strings.ToUpper(roomID)]
	return ok
}

// Apply runs one intent against a room and returns the frames to broadcast,
// roster first. Intents that break the rules are ignored.
func (rs *Rooms) Apply(roomID, clientID string, intent protocol.Intent) ([][]byte, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r, ok := rs.rooms[strings.ToUpper(roomID)]
	if !ok {
		return nil, ErrRoomNotFound
	}

	out, err := rs.apply(r, clientID, intent)
	if err != nil {
		return nil, err
	}
	return rs.frames(r, out)
}

func (rs *Rooms) apply(r *room, clientID string, intent protocol.Intent) (outcome, error) {
	var out outcome

	switch intent.Action {
	case protocol.ActionJoin:
		var payload protocol.JoinPayload
		if err := json.Unmarshal(intent.Payload, &payload); err != nil {
			return out, err
		}
		if payload.Nickname == "" {
			payload.Nickname = "Unknown"
		}

		if p, _ := r.find(clientID); p != nil {
			p.nickname = payload.Nickname
			p.connected = true
		} else {
			first := len(r.players) == 0
			r.players = append(r.players, &player{id: clientID, nickname: payload.Nickname, isHost: first, connected: true})
			if first {
				r.hostID = clientID
			}
		}
		out.roster = true
		// A rejoining player needs the current round to resume
		out.state = r.state != protocol.PhaseLobby

	case protocol.ActionLeaveRoom:
		if p, _ := r.find(clientID); p == nil {
			return out, nil
		}
		r.remove(clientID)
		if r.hostID == clientID {
			r.promoteHost()
		}
		if r.state != protocol.PhaseLobby && r.moderatorID == clientID && len(r.players) > 0 {
			r.moderatorID = r.hostID
			out.state = true
		}
		out.roster = true

	case protocol.ActionStartGame:
		if len(r.players) < minPlayers {
			return out, nil
		}
		var payload protocol.StartGamePayload
		json.Unmarshal(intent.Payload, &payload)
		if payload.TimeLimit <= 0 {
			payload.TimeLimit = defaultTimeLimit
		}
		r.state = protocol.PhasePreparing
		r.moderatorID = r.hostID
		r.timeLimit = payload.TimeLimit
		r.clearRound()
		out.state = true

	case protocol.ActionSpin:
		if r.moderatorID != clientID || r.state != protocol.PhasePreparing {
			return out, nil
		}
		r.letter = Letters[rs.pick(len(Letters))]
		r.category = Categories[rs.pick(len(Categories))]
		out.state = true

	case protocol.ActionStartRound:
		if r.moderatorID != clientID || r.state != protocol.PhasePreparing || r.letter == "" {
			return out, nil
		}
		r.state = protocol.PhasePlaying
		out.state = true

	case protocol.ActionSubmitAnswer:
		p, _ := r.find(clientID)
		if p == nil || r.state != protocol.PhasePlaying || clientID == r.moderatorID {
			return out, nil
		}
		for _, a := range r.answers {
			if a.ClientID == clientID {
				return out, nil
			}
		}
		var payload protocol.SubmitAnswerPayload
		json.Unmarshal(intent.Payload, &payload)
		r.answers = append(r.answers, protocol.Answer{
			ClientID: clientID,
			Nickname: p.nickname,
			Answer:   strings.ToUpper(strings.TrimSpace(payload.Answer)),
		})
		if len(r.answers) >= len(r.players)-1 {
			r.state = protocol.PhaseEvaluating
		}
		out.state = true

	case protocol.ActionForceEndRound:
		if r.state != protocol.PhasePlaying {
			return out, nil
		}
		r.state = protocol.PhaseEvaluating
		out.state = true

	case protocol.ActionSelectWinner:
		if clientID != r.moderatorID || r.state != protocol.PhaseEvaluating {
			return out, nil
		}
		var payload protocol.SelectWinnerPayload
		json.Unmarshal(intent.Payload, &payload)
		winner, _ := r.find(payload.WinnerID)
		if winner == nil {
			return out, nil
		}
		winner.score++
		r.moderatorID = winner.id
		r.state = protocol.PhaseScores
		out.roster = true
		out.state = true

	case protocol.ActionContinueGame:
		if clientID != r.moderatorID || r.state != protocol.PhaseScores {
			return out, nil
		}
		r.state = protocol.PhasePreparing
		r.clearRound()
		out.state = true

	case protocol.ActionRestartRound:
		if clientID != r.moderatorID || r.state != protocol.PhaseEvaluating {
			return out, nil
		}
		r.state = protocol.PhasePreparing
		r.clearRound()
		out.state = true

	case protocol.ActionEndGame:
		if clientID != r.moderatorID {
			return out, nil
		}
		r.state = protocol.PhaseFinalScores
		out.state = true

	case protocol.ActionReturnToLobby:
		p, _ := r.find(clientID)
		if p == nil || !p.isHost || r.state != protocol.PhaseFinalScores {
			return out, nil
		}
		for _, p := range r.players {
			p.score = 0
		}
		r.state = protocol.PhaseLobby
		r.clearRound()
		out.roster = true
		out.state = true
	}

	if out.roster || out.state {
		rs.logger.Debug("room updated",
			zap.String("room", r.id),
			zap.String("client", clientID),
			zap.String("action", string(intent.Action)),
			zap.String("state", string(r.state)))
	}
	return out, nil
}

func (rs *Rooms) frames(r *room, out outcome) ([][]byte, error) {
	var frames [][]byte
	if out.roster {
		data, err := protocol.EncodeEvent(protocol.EventPlayerListUpdate, r.roster())
		if err != nil {
			return nil, err
		}
		frames = append(frames, data)
	}
	if out.state {
		data, err := protocol.EncodeEvent(protocol.EventGameStateUpdate, r.stateUpdate())
		if err != nil {
			return nil, err
		}
		frames = append(frames, data)
	}
	return frames, nil
}

// Disconnect marks a player offline. The slot and score are kept so the
// same client id can rejoin.
func (rs *Rooms) Disconnect(roomID, clientID string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r, ok := rs.rooms[strings.ToUpper(roomID)]
	if !ok {
		return
	}
	if p, _ := r.find(clientID); p != nil {
		p.connected = false
		rs.logger.Debug("player offline", zap.String("room", r.id), zap.String("client", clientID))
	}
}
