package tally

import "errors"

// ErrUnknownTeam is returned when a team ID is not part of the roster
var ErrUnknownTeam = errors.New("unknown team")

// ErrMalformedSnapshot is returned when a counter document cannot be decoded at all
var ErrMalformedSnapshot = errors.New("malformed snapshot")
