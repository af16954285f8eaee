package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cameroncuttingedge/scorepad/game"
	"github.com/cameroncuttingedge/scorepad/scoring"
	"github.com/cameroncuttingedge/scorepad/utils"
	"github.com/cameroncuttingedge/scorepad/websocket"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type API struct {
	service *scoring.Service
	ws      *websocket.Server
}

func New(service *scoring.Service, ws *websocket.Server) *API {
	return &API{service: service, ws: ws}
}

// Router wires every route. Mutations are thin: decode, call the service,
// map typed failures to status codes.
func (a *API) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/game/create", a.createGameHandler).Methods("POST")
	r.HandleFunc("/game/{gameID}", a.deleteGameHandler).Methods("DELETE")
	r.HandleFunc("/game/{gameID}/join", a.joinGameHandler).Methods("POST")
	r.HandleFunc("/game/{gameID}/leave", a.leaveGameHandler).Methods("POST")
	r.HandleFunc("/game/{gameID}/score", a.submitScoreHandler).Methods("POST")
	r.HandleFunc("/game/{gameID}/round/next", a.nextRoundHandler).Methods("POST")
	r.HandleFunc("/game/{gameID}/round/reset", a.resetRoundHandler).Methods("POST")
	r.HandleFunc("/game/{gameID}/players/reorder", a.reorderPlayersHandler).Methods("POST")
	r.HandleFunc("/game/{gameID}/history", a.updateHistoryHandler).Methods("POST")
	r.HandleFunc("/game/{gameID}/win-condition", a.winConditionHandler).Methods("POST")
	r.HandleFunc("/game/{gameID}/state/", a.getGameStateHandler).Methods("GET")
	r.HandleFunc("/ws/game/state/{gameID}", a.ws.GameWebSocketHandler)

	return handlers.RecoveryHandler()(handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r))
}

// StartAPI blocks serving HTTP on addr.
func (a *API) StartAPI(addr string) error {
	fmt.Printf("Server started on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, a.Router())
}

func (a *API) createGameHandler(w http.ResponseWriter, r *http.Request) {
	log.Info().Msg("Attempting to create new game")

	playerID := r.URL.Query().Get("playerID")
	if playerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = playerID
	}

	gameID := utils.GenerateUUIDString()
	g, err := a.service.CreateGame(r.Context(), gameID, playerID, name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, g)
}

func (a *API) deleteGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	if err := a.service.DeleteGame(r.Context(), gameID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"message": "Game deleted"})
}

func (a *API) joinGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	playerID := r.URL.Query().Get("playerID")
	if playerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = playerID
	}

	g, err := a.service.AddPlayer(r.Context(), gameID, playerID, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

func (a *API) leaveGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	playerID := r.URL.Query().Get("playerID")
	if playerID == "" {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}

	g, err := a.service.RemovePlayer(r.Context(), gameID, playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

type scoreRequest struct {
	UserID string `json:"userId"`
	Score  int    `json:"score"`
}

func (a *API) submitScoreHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Error decoding JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "No userId in JSON", http.StatusBadRequest)
		return
	}

	g, err := a.service.SubmitScore(r.Context(), gameID, req.UserID, req.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

func (a *API) nextRoundHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	force := r.URL.Query().Get("force") == "true"

	g, message, err := a.service.NextRound(r.Context(), gameID, force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, struct {
		Game    *game.Game `json:"game"`
		Message string     `json:"message,omitempty"`
	}{Game: g, Message: message})
}

func (a *API) resetRoundHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	g, err := a.service.ResetRound(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

type reorderRequest struct {
	FromIndex int `json:"fromIndex"`
	ToIndex   int `json:"toIndex"`
}

func (a *API) reorderPlayersHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Error decoding JSON: %v", err), http.StatusBadRequest)
		return
	}

	g, err := a.service.ReorderPlayers(r.Context(), gameID, req.FromIndex, req.ToIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

type historyRequest struct {
	UserID     string `json:"userId"`
	RoundIndex int    `json:"roundIndex"`
	NewScore   int    `json:"newScore"`
}

func (a *API) updateHistoryHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	var req historyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Error decoding JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "No userId in JSON", http.StatusBadRequest)
		return
	}

	g, err := a.service.UpdateHistoryScore(r.Context(), gameID, req.UserID, req.RoundIndex, req.NewScore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

type winConditionRequest struct {
	Value int `json:"value"`
}

func (a *API) winConditionHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	var req winConditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Error decoding JSON: %v", err), http.StatusBadRequest)
		return
	}

	g, err := a.service.SubmitWinCondition(r.Context(), gameID, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

func (a *API) getGameStateHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]
	g, err := a.service.GetGame(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrConflict), errors.Is(err, game.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, game.ErrValidation):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
