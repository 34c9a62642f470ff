package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/stop-ultra/game/protocol"
	"github.com/wricardo/stop-ultra/transport/websocket"
)

// Server is the local Room Registry and game server
type Server struct {
	rooms  *Rooms
	hub    *websocket.Hub
	router *mux.Router
	logger *zap.Logger

	// Serializes apply and broadcast so every client sees one order
	mu sync.Mutex
}

var _ websocket.RoomHandler = (*Server)(nil)

// NewServer creates a new API server. The caller runs the returned server's
// Hub.
func NewServer(rooms *Rooms, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		rooms:  rooms,
		router: mux.NewRouter(),
		logger: logger,
	}
	s.hub = websocket.NewHub(s, logger)

	s.setupRoutes()
	return s
}

// Hub returns the hub whose Run loop must be started by the caller
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(allowAnyOrigin)

	// Room Registry
	s.router.HandleFunc("/create-room", s.handleCreateRoom).Methods("POST", "OPTIONS")
	s.router.HandleFunc("/check-room", s.handleCheckRoom).Methods("POST", "OPTIONS")

	// Realtime
	s.router.HandleFunc("/ws/{room_id}/{client_id}", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// allowAnyOrigin lets browser clients served from another host call the
// registry
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

// Registry Handlers

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	roomID := s.rooms.Create()
	respondJSON(w, http.StatusOK, map[string]string{"room_id": roomID})
}

func (s *Server) handleCheckRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID   string `json:"room_id"`
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		respondError(w, http.StatusUnprocessableEntity, "room_id and nickname are required")
		return
	}

	switch err := s.rooms.Check(req.RoomID); {
	case errors.Is(err, ErrRoomNotFound):
		respondError(w, http.StatusNotFound, "Room not found")
	case errors.Is(err, ErrGameInProgress):
		respondError(w, http.StatusBadRequest, "Game in progress")
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]bool{"valid": true})
	}
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := strings.ToUpper(vars["room_id"])
	clientID := vars["client_id"]

	if !s.rooms.Exists(roomID) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, roomID, clientID)
}

// HandleMessage applies one client frame and broadcasts the result
func (s *Server) HandleMessage(roomID, clientID string, data []byte) {
	intent, err := protocol.DecodeIntent(data)
	if err != nil {
		s.logger.Debug("ignoring frame", zap.String("client", clientID), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frames, err := s.rooms.Apply(roomID, clientID, intent)
	if err != nil {
		s.logger.Debug("intent rejected",
			zap.String("room", roomID),
			zap.String("action", string(intent.Action)),
			zap.Error(err))
		return
	}
	if len(frames) > 0 {
		s.hub.BroadcastToRoom(roomID, frames...)
	}
}

// HandleDisconnect marks the player offline
func (s *Server) HandleDisconnect(roomID, clientID string) {
	s.rooms.Disconnect(roomID, clientID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
