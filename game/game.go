package game

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// Win condition bounds, inclusive.
	MinWinCondition = 100
	MaxWinCondition = 10000

	// DefaultWinCondition applies to newly created games until the group
	// picks its own threshold.
	DefaultWinCondition = 500
)

// Player belongs to exactly one Game; it has no lifecycle of its own.
type Player struct {
	UserID            string `json:"userId"`
	Name              string `json:"name"`
	TotalScore        int    `json:"totalScore"`
	CurrentRoundScore int    `json:"currentRoundScore"`
	HasSubmitted      bool   `json:"hasSubmitted"`
	PointsHistory     []int  `json:"pointsHistory"`
}

// Game is one scored play session. Player order is turn order; the dealer
// rotates by list position each committed round.
type Game struct {
	ID            string    `json:"id"`
	Players       []*Player `json:"players"`
	CurrentDealer string    `json:"currentDealer"`
	CurrentRound  int       `json:"currentRound"`
	IsFinished    bool      `json:"isFinished"`
	Winner        string    `json:"winner"`
	WinCondition  int       `json:"winCondition"`
	CreatedAt     time.Time `json:"createdAt"`
}

// New creates a game with its first player, who starts as dealer.
func New(gameID, userID, name string) *Game {
	return &Game{
		ID:            gameID,
		Players:       []*Player{{UserID: userID, Name: name, PointsHistory: []int{}}},
		CurrentDealer: userID,
		CurrentRound:  1,
		WinCondition:  DefaultWinCondition,
		CreatedAt:     time.Now().UTC(),
	}
}

// FindPlayer returns the player with the given user id, or nil.
func (g *Game) FindPlayer(userID string) *Player {
	for _, p := range g.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// AllSubmitted reports whether every player has submitted for the current round.
func (g *Game) AllSubmitted() bool {
	for _, p := range g.Players {
		if !p.HasSubmitted {
			return false
		}
	}
	return true
}

// SubmitScore records a player's score for the current round. It reports
// whether all players have now submitted.
func (g *Game) SubmitScore(userID string, score int) (bool, error) {
	if g.IsFinished {
		return false, fmt.Errorf("game %s is finished: %w", g.ID, ErrInvalidState)
	}
	p := g.FindPlayer(userID)
	if p == nil {
		return false, fmt.Errorf("player %s: %w", userID, ErrNotFound)
	}
	if p.HasSubmitted {
		return false, fmt.Errorf("player %s already submitted for round %d: %w", userID, g.CurrentRound, ErrConflict)
	}
	// A history length other than round-1 means the client is acting on a
	// stale view of the round.
	if len(p.PointsHistory) != g.CurrentRound-1 {
		return false, fmt.Errorf("player %s history has %d rounds, game is on round %d: %w",
			userID, len(p.PointsHistory), g.CurrentRound, ErrInvalidState)
	}
	p.CurrentRoundScore = score
	p.HasSubmitted = true
	return g.AllSubmitted(), nil
}

// AdvanceRound commits the current round: every player's round score moves
// into their history and total, then either the game ends (first player in
// list order at or above the win condition) or the next round starts and the
// dealer rotates. With force, players who have not submitted commit their
// current round score as-is (zero unless previously set).
func (g *Game) AdvanceRound(force bool) error {
	if g.IsFinished {
		return fmt.Errorf("game %s is finished: %w", g.ID, ErrInvalidState)
	}
	if !force && !g.AllSubmitted() {
		return fmt.Errorf("not all players have submitted for round %d: %w", g.CurrentRound, ErrInvalidState)
	}

	for _, p := range g.Players {
		p.PointsHistory = append(p.PointsHistory, p.CurrentRoundScore)
		p.TotalScore += p.CurrentRoundScore
	}

	// First player in list order past the threshold wins, even if a later
	// player has a higher total.
	var winner *Player
	for _, p := range g.Players {
		if p.TotalScore >= g.WinCondition {
			winner = p
			break
		}
	}

	if winner != nil {
		g.IsFinished = true
		g.Winner = winner.UserID
		g.clearRoundState()
		log.Info().Str("gameID", g.ID).Str("winner", winner.UserID).Int("totalScore", winner.TotalScore).Msg("Game finished")
		return nil
	}

	g.CurrentRound++
	g.clearRoundState()
	g.rotateDealer()
	return nil
}

// ResetRound clears everyone's pending submission without touching history.
func (g *Game) ResetRound() error {
	if g.IsFinished {
		return fmt.Errorf("game %s is finished: %w", g.ID, ErrInvalidState)
	}
	g.clearRoundState()
	return nil
}

// ReorderPlayers moves the player at fromIndex to toIndex. The new first
// player becomes dealer.
func (g *Game) ReorderPlayers(fromIndex, toIndex int) error {
	n := len(g.Players)
	if fromIndex < 0 || fromIndex >= n || toIndex < 0 || toIndex >= n {
		return fmt.Errorf("indices %d -> %d out of range for %d players: %w", fromIndex, toIndex, n, ErrValidation)
	}
	moved := g.Players[fromIndex]
	g.Players = append(g.Players[:fromIndex], g.Players[fromIndex+1:]...)
	rest := append([]*Player{}, g.Players[toIndex:]...)
	g.Players = append(append(g.Players[:toIndex], moved), rest...)
	g.CurrentDealer = g.Players[0].UserID
	return nil
}

// UpdateHistoryScore rewrites one recorded round score and adjusts the total
// by the delta. Allowed on finished games: corrections do not reopen them.
// Returns the previous score.
func (g *Game) UpdateHistoryScore(userID string, roundIndex, newScore int) (int, error) {
	p := g.FindPlayer(userID)
	if p == nil {
		return 0, fmt.Errorf("player %s: %w", userID, ErrNotFound)
	}
	if roundIndex < 0 || roundIndex >= len(p.PointsHistory) {
		return 0, fmt.Errorf("round index %d out of range for %d recorded rounds: %w", roundIndex, len(p.PointsHistory), ErrValidation)
	}
	old := p.PointsHistory[roundIndex]
	p.PointsHistory[roundIndex] = newScore
	p.TotalScore += newScore - old
	return old, nil
}

// AddPlayer appends a player. Adding an existing player is a no-op; the
// return value reports whether the list changed. The newcomer's history is
// padded with zeros so all histories stay the same length.
func (g *Game) AddPlayer(userID, name string) bool {
	if g.FindPlayer(userID) != nil {
		return false
	}
	history := make([]int, g.CurrentRound-1)
	g.Players = append(g.Players, &Player{UserID: userID, Name: name, PointsHistory: history})
	log.Info().Str("gameID", g.ID).Str("userID", userID).Int("playerCount", len(g.Players)).Msg("Player added")
	return true
}

// RemovePlayer drops a player. Removing the current dealer hands the deal to
// the new first player.
func (g *Game) RemovePlayer(userID string) error {
	idx := -1
	for i, p := range g.Players {
		if p.UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("player %s: %w", userID, ErrNotFound)
	}
	g.Players = append(g.Players[:idx], g.Players[idx+1:]...)
	if g.CurrentDealer == userID && len(g.Players) > 0 {
		g.CurrentDealer = g.Players[0].UserID
	}
	return nil
}

// SetWinCondition updates the threshold for future round evaluations.
func (g *Game) SetWinCondition(value int) error {
	if g.IsFinished {
		return fmt.Errorf("game %s is finished: %w", g.ID, ErrInvalidState)
	}
	if value < MinWinCondition || value > MaxWinCondition {
		return fmt.Errorf("win condition %d outside [%d, %d]: %w", value, MinWinCondition, MaxWinCondition, ErrValidation)
	}
	g.WinCondition = value
	return nil
}

// Clone returns a deep copy. Stores hand out clones so no caller ever holds
// a reference into stored state.
func (g *Game) Clone() *Game {
	cp := *g
	cp.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		pc := *p
		pc.PointsHistory = append([]int{}, p.PointsHistory...)
		cp.Players[i] = &pc
	}
	return &cp
}

func (g *Game) clearRoundState() {
	for _, p := range g.Players {
		p.CurrentRoundScore = 0
		p.HasSubmitted = false
	}
}

func (g *Game) rotateDealer() {
	n := len(g.Players)
	if n == 0 {
		return
	}
	for i, p := range g.Players {
		if p.UserID == g.CurrentDealer {
			g.CurrentDealer = g.Players[(i+1)%n].UserID
			return
		}
	}
	g.CurrentDealer = g.Players[0].UserID
}
