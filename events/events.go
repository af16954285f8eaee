// Package events defines the wire contract for real-time game updates.
package events

import "github.com/cameroncuttingedge/scorepad/game"

// Type tags an event on the wire. The set is closed; clients switch on it.
type Type string

const (
	TypeConnected           Type = "CONNECTED"
	TypePlayerJoined        Type = "PLAYER_JOINED"
	TypePlayerLeft          Type = "PLAYER_LEFT"
	TypeScoreSubmitted      Type = "SCORE_SUBMITTED"
	TypeRoundStarted        Type = "ROUND_STARTED"
	TypeRoundReset          Type = "ROUND_RESET"
	TypePlayersReordered    Type = "PLAYERS_REORDERED"
	TypeHistoryScoreUpdated Type = "HISTORY_SCORE_UPDATED"
	TypeWinConditionSet     Type = "WIN_CONDITION_SET"
	TypeGameEnded           Type = "GAME_ENDED"
)

// PlayerSummary identifies the player an event is about.
type PlayerSummary struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	TotalScore int    `json:"totalScore"`
}

// HistoryChange carries the before/after of a retroactive score edit.
type HistoryChange struct {
	RoundIndex int `json:"roundIndex"`
	OldScore   int `json:"oldScore"`
	NewScore   int `json:"newScore"`
}

// Event is one message pushed to subscribers. Every event carries a full
// game snapshot; the optional fields are set per type.
type Event struct {
	Type          Type           `json:"type"`
	Game          *game.Game     `json:"game,omitempty"`
	Actor         *PlayerSummary `json:"actor,omitempty"`
	Winner        *PlayerSummary `json:"winner,omitempty"`
	AllSubmitted  *bool          `json:"allSubmitted,omitempty"`
	HistoryChange *HistoryChange `json:"historyChange,omitempty"`
}

func summary(p *game.Player) *PlayerSummary {
	if p == nil {
		return nil
	}
	return &PlayerSummary{UserID: p.UserID, Name: p.Name, TotalScore: p.TotalScore}
}

// Connected is the handshake sent to a subscriber right after it registers.
func Connected(g *game.Game) Event {
	return Event{Type: TypeConnected, Game: g}
}

func PlayerJoined(g *game.Game, userID string) Event {
	return Event{Type: TypePlayerJoined, Game: g, Actor: summary(g.FindPlayer(userID))}
}

func PlayerLeft(g *game.Game, userID, name string) Event {
	return Event{Type: TypePlayerLeft, Game: g, Actor: &PlayerSummary{UserID: userID, Name: name}}
}

func ScoreSubmitted(g *game.Game, userID string, allSubmitted bool) Event {
	return Event{
		Type:         TypeScoreSubmitted,
		Game:         g,
		Actor:        summary(g.FindPlayer(userID)),
		AllSubmitted: &allSubmitted,
	}
}

func RoundStarted(g *game.Game) Event {
	return Event{Type: TypeRoundStarted, Game: g}
}

func RoundReset(g *game.Game) Event {
	return Event{Type: TypeRoundReset, Game: g}
}

func PlayersReordered(g *game.Game) Event {
	return Event{Type: TypePlayersReordered, Game: g}
}

func HistoryScoreUpdated(g *game.Game, userID string, roundIndex, oldScore, newScore int) Event {
	return Event{
		Type:  TypeHistoryScoreUpdated,
		Game:  g,
		Actor: summary(g.FindPlayer(userID)),
		HistoryChange: &HistoryChange{
			RoundIndex: roundIndex,
			OldScore:   oldScore,
			NewScore:   newScore,
		},
	}
}

func WinConditionSet(g *game.Game) Event {
	return Event{Type: TypeWinConditionSet, Game: g}
}

func GameEnded(g *game.Game) Event {
	return Event{Type: TypeGameEnded, Game: g, Winner: summary(g.FindPlayer(g.Winner))}
}
