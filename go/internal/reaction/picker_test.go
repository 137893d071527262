package reaction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

func TestDrawReaction_SoundChanceIsCoinFlip(t *testing.T) {
	team := tally.Team{
		ID:     "rcb",
		Images: []string{"a", "b", "c"},
		Sounds: []string{"s1", "s2"},
	}

	const trials = 20000
	withSound := 0
	images := map[string]int{}
	for i := 0; i < trials; i++ {
		d := drawReaction(team, randPicker{}, 0.5)
		images[d.image]++
		if d.sound != "" {
			withSound++
			assert.Contains(t, team.Sounds, d.sound)
		}
	}

	assert.InDelta(t, 0.5, float64(withSound)/trials, 0.03)
	for _, img := range team.Images {
		assert.InDelta(t, 1.0/3, float64(images[img])/trials, 0.03, "image %s", img)
	}
}

func TestDrawReaction_ChanceBounds(t *testing.T) {
	team := tally.Team{ID: "mi", Images: []string{"a"}, Sounds: []string{"s"}}

	for i := 0; i < 100; i++ {
		assert.Empty(t, drawReaction(team, randPicker{}, 0).sound)
		assert.Equal(t, "s", drawReaction(team, randPicker{}, 1).sound)
	}
}

func TestState_MarshalText(t *testing.T) {
	b, err := Reacting.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "reacting", string(b))
	assert.Equal(t, "idle", Idle.String())

	var s State
	assert.NoError(t, s.UnmarshalText([]byte("reacting")))
	assert.Equal(t, Reacting, s)
	assert.Error(t, s.UnmarshalText([]byte("asleep")))
}
