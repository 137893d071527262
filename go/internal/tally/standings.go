package tally

import "sort"

// Standing is one row of the ranked standings
type Standing struct {
	Team  TeamID `json:"team"`
	Count int64  `json:"count"`
}

// Standings is the ranking derived from a counter table
type Standings struct {
	Ranked  []Standing `json:"ranked"`
	Leader  TeamID     `json:"leader"`
	Message string     `json:"message"`
}

// Standings ranks teams by count, highest first. Ties keep declaration order.
// Teams missing from counts rank with their baseline. Calling it twice with the
// same counts yields the same result.
func (r *Roster) Standings(counts Counts) Standings {
	ranked := make([]Standing, len(r.teams))
	for i, t := range r.teams {
		n, ok := counts[t.ID]
		if !ok {
			n = t.Baseline
		}
		ranked[i] = Standing{Team: t.ID, Count: n}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	leader := ranked[0].Team
	team, _ := r.Team(leader)
	return Standings{
		Ranked:  ranked,
		Leader:  leader,
		Message: team.Message,
	}
}
