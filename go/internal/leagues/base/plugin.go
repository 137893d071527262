package base

import (
	"fmt"
	"sync"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

// LeaguePlugin supplies the roster of teams a board is built from.
type LeaguePlugin interface {
	// Init applies plugin options from the config file. Options may be nil.
	Init(options map[string]interface{}) error
	Teams() []tally.Team
}

var (
	registry   = make(map[string]LeaguePlugin)
	registryMu sync.RWMutex
)

// RegisterPlugin adds a plugin implementation under a key.
// It should be called in each league plugin's init() function.
func RegisterPlugin(key string, plugin LeaguePlugin) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if key == "" {
		return fmt.Errorf("plugin key cannot be empty")
	}
	if _, exists := registry[key]; exists {
		return fmt.Errorf("plugin already registered for key %q", key)
	}
	registry[key] = plugin
	return nil
}

// GetPlugin retrieves a plugin by key or returns an error if not found.
func GetPlugin(key string) (LeaguePlugin, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	plugin, exists := registry[key]
	if !exists {
		return nil, fmt.Errorf("no league plugin registered for key %q", key)
	}
	return plugin, nil
}

// InitializePlugin initializes a specific plugin with its options.
func InitializePlugin(key string, options map[string]interface{}) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	plugin, exists := registry[key]
	if !exists {
		return fmt.Errorf("no league plugin registered for key %q", key)
	}
	if err := plugin.Init(options); err != nil {
		return fmt.Errorf("failed to init plugin %q: %w", key, err)
	}
	return nil
}

// LoadRoster initializes the plugin under key and builds its roster.
func LoadRoster(key string, options map[string]interface{}) (*tally.Roster, error) {
	if err := InitializePlugin(key, options); err != nil {
		return nil, err
	}
	plugin, err := GetPlugin(key)
	if err != nil {
		return nil, err
	}
	roster, err := tally.NewRoster(plugin.Teams())
	if err != nil {
		return nil, fmt.Errorf("plugin %q produced an invalid roster: %w", key, err)
	}
	return roster, nil
}
