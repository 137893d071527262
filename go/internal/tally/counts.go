package tally

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Counts is the counter table: one non-negative count per team
type Counts map[TeamID]int64

// Clone returns an independent copy
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Decoded is the result of mapping a raw store document onto the roster
type Decoded struct {
	Counts Counts
	// Dropped lists document fields that are not part of the roster
	Dropped []string
	// Defaulted lists teams that were absent or unreadable and fell back to their baseline
	Defaulted []TeamID
}

// DecodeCounts maps a raw counter document onto the roster.
// Unknown fields are dropped, and known teams that are missing, negative or not integral
// default to their baseline. Only a document that is not a JSON object fails.
func (r *Roster) DecodeCounts(raw []byte) (Decoded, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if fields == nil {
		return Decoded{}, fmt.Errorf("%w: document is null", ErrMalformedSnapshot)
	}

	out := Decoded{Counts: make(Counts, len(r.teams))}
	for _, t := range r.teams {
		v, ok := fields[string(t.ID)]
		if !ok {
			out.Counts[t.ID] = t.Baseline
			out.Defaulted = append(out.Defaulted, t.ID)
			continue
		}
		n, ok := parseCount(v)
		if !ok {
			out.Counts[t.ID] = t.Baseline
			out.Defaulted = append(out.Defaulted, t.ID)
			continue
		}
		out.Counts[t.ID] = n
	}

	for name := range fields {
		if !r.Contains(TeamID(name)) {
			out.Dropped = append(out.Dropped, name)
		}
	}
	return out, nil
}

func parseCount(raw json.RawMessage) (int64, bool) {
	s := string(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n >= 0
	}
	// Some stores hand numbers back as doubles (1000.0, 1e3)
	f, err := strconv.ParseFloat(s, 64)
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit
	if err != nil || f < 0 || f != math.Trunc(f) || f >= float64(math.MaxInt64) {
		return 0, false
	}
	return int64(f), true
}

// EncodeCounts renders counts as a store document, one field per team
func EncodeCounts(c Counts) ([]byte, error) {
	doc := make(map[string]int64, len(c))
	for k, v := range c {
		doc[string(k)] = v
	}
	return json.Marshal(doc)
}
