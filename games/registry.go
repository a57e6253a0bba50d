package games

import (
	"fmt"
	"sync"
)

// Registry holds all registered game variants, keyed by game type.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rules
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rules)}
}

// Register adds a game variant to the registry.
func (r *Registry) Register(rules Rules) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rules.Name()] = rules
}

// Get retrieves a variant by game type.
func (r *Registry) Get(gameType string) (Rules, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules, ok := r.rules[gameType]
	if !ok {
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
	return rules, nil
}

// GameInfo contains display information about a registered variant.
type GameInfo struct {
	GameType        string `json:"game_type"`
	RequiredPlayers int    `json:"required_players"`
}

// List returns information about all registered variants.
func (r *Registry) List() []GameInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]GameInfo, 0, len(r.rules))
	for _, rules := range r.rules {
		infos = append(infos, GameInfo{
			GameType:        rules.Name(),
			RequiredPlayers: rules.RequiredPlayers(),
		})
	}
	return infos
}
