// Package store persists game state keyed by game id.
package store

import (
	"context"

	"github.com/cameroncuttingedge/scorepad/game"
)

// Store is the durability boundary for games. Save is an upsert. FindByID
// returns (nil, nil) when the id is unknown; callers translate that into
// their own not-found failure. Implementations must hand out copies so the
// caller never aliases stored state.
type Store interface {
	FindByID(ctx context.Context, gameID string) (*game.Game, error)
	Save(ctx context.Context, g *game.Game) (*game.Game, error)
	DeleteByID(ctx context.Context, gameID string) error
}
