package reaction

import (
	"math/rand/v2"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

type randPicker struct{}

func (randPicker) IntN(n int) int   { return rand.IntN(n) }
func (randPicker) Float64() float64 { return rand.Float64() }

// draw is the outcome of one click's independent random choices
type draw struct {
	image string
	sound string
}

// drawReaction picks one image, then with probability chance one sound.
// Every choice is fresh; nothing carries over between calls.
func drawReaction(team tally.Team, p Picker, chance float64) draw {
	d := draw{image: team.Images[p.IntN(len(team.Images))]}
	if p.Float64() < chance && len(team.Sounds) > 0 {
		d.sound = team.Sounds[p.IntN(len(team.Sounds))]
	}
	return d
}
