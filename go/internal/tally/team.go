package tally

import (
	"fmt"
)

// TeamID identifies one of the fixed, declared teams a viewer can slap
type TeamID string

// Team is a participating team along with its reaction asset pools
type Team struct {
	ID       TeamID   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Images   []string `json:"images" yaml:"images"`
	Sounds   []string `json:"sounds,omitempty" yaml:"sounds"`
	Message  string   `json:"message" yaml:"message"`
	Baseline int64    `json:"baseline" yaml:"baseline"`
}

// Roster is the closed, ordered set of teams. Declaration order breaks standings ties.
type Roster struct {
	teams []Team
	index map[TeamID]int
}

// NewRoster validates the declared teams and builds a roster
func NewRoster(teams []Team) (*Roster, error) {
	if len(teams) == 0 {
		return nil, fmt.Errorf("roster requires at least one team")
	}

	r := &Roster{
		teams: make([]Team, len(teams)),
		index: make(map[TeamID]int, len(teams)),
	}
	for i, t := range teams {
		if t.ID == "" {
			return nil, fmt.Errorf("team at position %d has an empty id", i)
		}
		if _, exists := r.index[t.ID]; exists {
			return nil, fmt.Errorf("team %q declared more than once", t.ID)
		}
		if len(t.Images) == 0 {
			return nil, fmt.Errorf("team %q has no images", t.ID)
		}
		if t.Baseline < 0 {
			return nil, fmt.Errorf("team %q has a negative baseline", t.ID)
		}
		t.Images = append([]string(nil), t.Images...)
		t.Sounds = append([]string(nil), t.Sounds...)
		r.teams[i] = t
		r.index[t.ID] = i
	}
	return r, nil
}

// IDs returns team IDs in declaration order
func (r *Roster) IDs() []TeamID {
	ids := make([]TeamID, len(r.teams))
	for i, t := range r.teams {
		ids[i] = t.ID
	}
	return ids
}

// Teams returns a copy of the declared teams
func (r *Roster) Teams() []Team {
	return append([]Team(nil), r.teams...)
}

// Team looks up a team by ID
func (r *Roster) Team(id TeamID) (Team, bool) {
	i, ok := r.index[id]
	if !ok {
		return Team{}, false
	}
	return r.teams[i], true
}

// Contains reports whether id belongs to the roster
func (r *Roster) Contains(id TeamID) bool {
	_, ok := r.index[id]
	return ok
}

// Validate returns ErrUnknownTeam for IDs outside the roster
func (r *Roster) Validate(id TeamID) error {
	if !r.Contains(id) {
		return fmt.Errorf("%w: %q", ErrUnknownTeam, id)
	}
	return nil
}

// Baseline returns the documented starting counts for every team
func (r *Roster) Baseline() Counts {
	counts := make(Counts, len(r.teams))
	for _, t := range r.teams {
		counts[t.ID] = t.Baseline
	}
	return counts
}
