// Package scoring runs every game mutation through the per-game queue:
// load from the store, validate and mutate, save, publish.
package scoring

import (
	"context"
	"fmt"

	"github.com/cameroncuttingedge/scorepad/events"
	"github.com/cameroncuttingedge/scorepad/game"
	"github.com/cameroncuttingedge/scorepad/hub"
	"github.com/cameroncuttingedge/scorepad/queue"
	"github.com/cameroncuttingedge/scorepad/store"
	"github.com/rs/zerolog/log"
)

// FinishedGameMessage is returned by NextRound when the game already ended.
const FinishedGameMessage = "Game is already finished"

// Service owns the operation queue for all games. Every mutating method is
// serialized per game id; reads go straight to the store.
type Service struct {
	store store.Store
	hub   *hub.Hub
	queue *queue.Serializer
}

func NewService(st store.Store, h *hub.Hub) *Service {
	return &Service{store: st, hub: h, queue: queue.NewSerializer()}
}

// GetGame returns the current state, or a NotFound failure.
func (s *Service) GetGame(ctx context.Context, gameID string) (*game.Game, error) {
	g, err := s.store.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("game %s: %w", gameID, game.ErrNotFound)
	}
	return g, nil
}

// CreateGame makes a new game whose first player is the dealer. Called by
// the lobby when its first member joins. No event: nobody can be subscribed
// to a game that does not exist yet.
func (s *Service) CreateGame(ctx context.Context, gameID, userID, name string) (*game.Game, error) {
	var out *game.Game
	err := s.queue.Do(gameID, func() error {
		existing, err := s.store.FindByID(ctx, gameID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("game %s already exists: %w", gameID, game.ErrConflict)
		}
		g := game.New(gameID, userID, name)
		if _, err := s.store.Save(ctx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

// DeleteGame removes the record, discards the game's queue entry and
// disconnects its subscribers. Called when the owning lobby goes away.
func (s *Service) DeleteGame(ctx context.Context, gameID string) error {
	err := s.queue.Do(gameID, func() error {
		return s.store.DeleteByID(ctx, gameID)
	})
	s.queue.Drop(gameID)
	s.hub.DropGame(gameID)
	log.Info().Str("gameID", gameID).Msg("Game deleted")
	return err
}

// SubmitScore records one player's score for the current round.
func (s *Service) SubmitScore(ctx context.Context, gameID, userID string, score int) (*game.Game, error) {
	return s.mutate(ctx, gameID, func(g *game.Game) (*events.Event, error) {
		allSubmitted, err := g.SubmitScore(userID, score)
		if err != nil {
			return nil, err
		}
		ev := events.ScoreSubmitted(g, userID, allSubmitted)
		return &ev, nil
	})
}

// NextRound commits the current round. On an already-finished game it is a
// pure no-op: the unchanged state comes back with FinishedGameMessage and
// nothing is saved or published.
func (s *Service) NextRound(ctx context.Context, gameID string, force bool) (*game.Game, string, error) {
	var out *game.Game
	var message string
	err := s.queue.Do(gameID, func() error {
		g, err := s.load(ctx, gameID)
		if err != nil {
			return err
		}
		if g.IsFinished {
			out = g
			message = FinishedGameMessage
			return nil
		}
		if err := g.AdvanceRound(force); err != nil {
			return err
		}
		if _, err := s.store.Save(ctx, g); err != nil {
			return err
		}
		if g.IsFinished {
			s.hub.Publish(gameID, events.GameEnded(g))
		} else {
			s.hub.Publish(gameID, events.RoundStarted(g))
		}
		out = g
		return nil
	})
	return out, message, err
}

// ResetRound throws away everyone's pending submission for the round.
func (s *Service) ResetRound(ctx context.Context, gameID string) (*game.Game, error) {
	return s.mutate(ctx, gameID, func(g *game.Game) (*events.Event, error) {
		if err := g.ResetRound(); err != nil {
			return nil, err
		}
		ev := events.RoundReset(g)
		return &ev, nil
	})
}

// ReorderPlayers changes turn order; the new first player deals.
func (s *Service) ReorderPlayers(ctx context.Context, gameID string, fromIndex, toIndex int) (*game.Game, error) {
	return s.mutate(ctx, gameID, func(g *game.Game) (*events.Event, error) {
		if err := g.ReorderPlayers(fromIndex, toIndex); err != nil {
			return nil, err
		}
		ev := events.PlayersReordered(g)
		return &ev, nil
	})
}

// UpdateHistoryScore retroactively corrects one recorded round score.
func (s *Service) UpdateHistoryScore(ctx context.Context, gameID, userID string, roundIndex, newScore int) (*game.Game, error) {
	return s.mutate(ctx, gameID, func(g *game.Game) (*events.Event, error) {
		old, err := g.UpdateHistoryScore(userID, roundIndex, newScore)
		if err != nil {
			return nil, err
		}
		ev := events.HistoryScoreUpdated(g, userID, roundIndex, old, newScore)
		return &ev, nil
	})
}

// AddPlayer registers a lobby member in the game. Adding someone already in
// the game changes nothing and publishes nothing.
func (s *Service) AddPlayer(ctx context.Context, gameID, userID, name string) (*game.Game, error) {
	return s.mutate(ctx, gameID, func(g *game.Game) (*events.Event, error) {
		if !g.AddPlayer(userID, name) {
			return nil, nil
		}
		ev := events.PlayerJoined(g, userID)
		return &ev, nil
	})
}

// RemovePlayer drops a lobby member from the game.
func (s *Service) RemovePlayer(ctx context.Context, gameID, userID string) (*game.Game, error) {
	return s.mutate(ctx, gameID, func(g *game.Game) (*events.Event, error) {
		p := g.FindPlayer(userID)
		var name string
		if p != nil {
			name = p.Name
		}
		if err := g.RemovePlayer(userID); err != nil {
			return nil, err
		}
		ev := events.PlayerLeft(g, userID, name)
		return &ev, nil
	})
}

// SubmitWinCondition sets the threshold used at the next round commit.
func (s *Service) SubmitWinCondition(ctx context.Context, gameID string, value int) (*game.Game, error) {
	return s.mutate(ctx, gameID, func(g *game.Game) (*events.Event, error) {
		if err := g.SetWinCondition(value); err != nil {
			return nil, err
		}
		ev := events.WinConditionSet(g)
		return &ev, nil
	})
}

// mutate is the one path every simple mutation takes: queue, load, apply,
// save, publish. A nil event from fn means the operation was a no-op; the
// state is returned unsaved and nothing is published.
func (s *Service) mutate(ctx context.Context, gameID string, fn func(g *game.Game) (*events.Event, error)) (*game.Game, error) {
	var out *game.Game
	err := s.queue.Do(gameID, func() error {
		g, err := s.load(ctx, gameID)
		if err != nil {
			return err
		}
		ev, err := fn(g)
		if err != nil {
			return err
		}
		if ev != nil {
			if _, err := s.store.Save(ctx, g); err != nil {
				return err
			}
			s.hub.Publish(gameID, *ev)
		}
		out = g
		return nil
	})
	return out, err
}

func (s *Service) load(ctx context.Context, gameID string) (*game.Game, error) {
	g, err := s.store.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("game %s: %w", gameID, game.ErrNotFound)
	}
	return g, nil
}
