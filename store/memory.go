package store

import (
	"context"
	"sync"

	"github.com/cameroncuttingedge/scorepad/game"
)

// Memory keeps games in a map. Used in tests and for running without a
// database file.
type Memory struct {
	mu    sync.Mutex
	games map[string]*game.Game
}

func NewMemory() *Memory {
	return &Memory{games: make(map[string]*game.Game)}
}

func (m *Memory) FindByID(_ context.Context, gameID string) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, nil
	}
	return g.Clone(), nil
}

func (m *Memory) Save(_ context.Context, g *game.Game) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g.Clone()
	return g, nil
}

func (m *Memory) DeleteByID(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
	return nil
}
