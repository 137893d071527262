package ipl

import (
	"fmt"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/slapboard/go/internal/leagues/base"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

// IPLPlugin implements the LeaguePlugin interface for the three-team IPL board.
type IPLPlugin struct {
	config Config
	teams  []tally.Team
}

// Config holds IPL-specific options.
type Config struct {
	// AssetPrefix is joined in front of every image and sound path
	AssetPrefix string `yaml:"asset_prefix"`
	// Baselines overrides the starting count of individual teams
	Baselines map[string]int64 `yaml:"baselines"`
}

func init() {
	if err := base.RegisterPlugin("ipl", &IPLPlugin{}); err != nil {
		panic(fmt.Sprintf("Failed to register IPL plugin: %v", err))
	}
}

// Init decodes plugin options and builds the team list.
func (p *IPLPlugin) Init(options map[string]interface{}) error {
	cfg := Config{}
	if len(options) > 0 {
		// options arrive as a generic YAML map; re-encode to decode into Config
		raw, err := yaml.Marshal(options)
		if err != nil {
			return fmt.Errorf("ipl: encode options: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("ipl: decode options: %w", err)
		}
	}

	teams := defaultTeams()
	for i := range teams {
		if n, ok := cfg.Baselines[string(teams[i].ID)]; ok {
			if n < 0 {
				return fmt.Errorf("ipl: negative baseline for %s", teams[i].ID)
			}
			teams[i].Baseline = n
		}
		if cfg.AssetPrefix != "" {
			teams[i].Images = prefixAll(cfg.AssetPrefix, teams[i].Images)
			teams[i].Sounds = prefixAll(cfg.AssetPrefix, teams[i].Sounds)
		}
	}

	p.config = cfg
	p.teams = teams
	return nil
}

// Teams returns rcb, mi and csk in declaration order.
func (p *IPLPlugin) Teams() []tally.Team {
	if p.teams == nil {
		return defaultTeams()
	}
	return p.teams
}

func prefixAll(prefix string, refs []string) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = path.Join(prefix, r)
	}
	return out
}

func defaultTeams() []tally.Team {
	return []tally.Team{
		{
			ID:   "rcb",
			Name: "RCB",
			Images: []string{
				"/rcb1.webp", "/rcb2.webp", "/rcb3.webp", "/rcb4.webp", "/rcb5.webp",
				"/rcb6.jpeg", "/rcb7.webp", "/all.jpeg", "/sanju.png",
			},
			Sounds:   []string{"/sounds/rcb1.mp3", "/sounds/all.mp3", "/sounds/all3.mp3"},
			Message:  "So close, yet so far, every year. Keep dreaming, Bangalore!",
			Baseline: 1000,
		},
		{
			ID:   "mi",
			Name: "MI",
			Images: []string{
				"/mi1.jpg", "/mi2.jpg", "/mi3.jpeg", "/all.jpeg", "/sanju.png", "/mi4.webp",
			},
			Sounds:   []string{"/sounds/mi1.mp3", "/sounds/mi2.mp3", "/sounds/all.mp3", "/sounds/all3.mp3"},
			Message:  "Money might buy trophies, but can it buy some loyalty too?",
			Baseline: 900,
		},
		{
			ID:   "csk",
			Name: "CSK",
			Images: []string{
				"/csk1.webp", "/csk2.webp", "/csk3.webp", "/csk4.webp", "/csk5.jpeg",
				"/csk6.jpeg", "/csk7.jpeg", "/all.jpeg", "/sanju.png",
			},
			Sounds:   []string{"/sounds/csk1.mp3", "/sounds/csk2.mp3", "/sounds/all.mp3", "/sounds/all3.mp3"},
			Message:  "A grandpa squad that still whoops you. Old is gold, baby!",
			Baseline: 800,
		},
	}
}
