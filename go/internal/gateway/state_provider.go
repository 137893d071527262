package gateway

import (
	"github.com/mcdev12/slapboard/go/internal/memes"
	"github.com/mcdev12/slapboard/go/internal/storesync"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

// StateProvider is where the gateway reads the mirrored counts and roster
type StateProvider interface {
	// Counts returns the current counts payload, or false before the first snapshot
	Counts() (*CountsPayload, bool)
	Teams() []TeamInfo
	Connected() bool
	SubmissionURL() string
}

// SyncStateProvider implements StateProvider over a storesync.Sync mirror
type SyncStateProvider struct {
	sync       *storesync.Sync
	submission memes.Submission
}

// NewSyncStateProvider creates a new state provider
func NewSyncStateProvider(s *storesync.Sync, submission memes.Submission) *SyncStateProvider {
	return &SyncStateProvider{
		sync:       s,
		submission: submission,
	}
}

// Counts implements StateProvider
func (p *SyncStateProvider) Counts() (*CountsPayload, bool) {
	counts, ok := p.sync.Mirror()
	if !ok {
		return nil, false
	}
	return buildCountsPayload(p.sync.Roster(), counts), true
}

// Teams implements StateProvider
func (p *SyncStateProvider) Teams() []TeamInfo {
	return teamInfos(p.sync.Roster())
}

// Connected implements StateProvider
func (p *SyncStateProvider) Connected() bool {
	return p.sync.Connected()
}

// SubmissionURL implements StateProvider
func (p *SyncStateProvider) SubmissionURL() string {
	return memes.SubmissionLink(p.submission)
}

func buildCountsPayload(roster *tally.Roster, counts tally.Counts) *CountsPayload {
	standings := roster.Standings(counts)

	entries := make([]StandingEntry, len(standings.Ranked))
	for i, s := range standings.Ranked {
		team, _ := roster.Team(s.Team)
		entries[i] = StandingEntry{
			Rank:  i + 1,
			Team:  s.Team,
			Name:  team.Name,
			Count: s.Count,
		}
	}

	return &CountsPayload{
		Counts:    counts.Clone(),
		Standings: entries,
		Leader:    standings.Leader,
		Message:   standings.Message,
	}
}

func teamInfos(roster *tally.Roster) []TeamInfo {
	teams := roster.Teams()
	infos := make([]TeamInfo, len(teams))
	for i, t := range teams {
		infos[i] = TeamInfo{ID: t.ID, Name: t.Name}
	}
	return infos
}
