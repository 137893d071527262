package reaction

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/tally"
)

// Machine is the click → react → reveal → cooldown lifecycle of one team.
// Machines never share state or locks with each other.
type Machine struct {
	team     tally.Team
	cfg      Config
	clock    clockwork.Clock
	picker   Picker
	store    Incrementer
	player   SoundPlayer
	metrics  MetricsCollector
	observer Observer
	boardID  string

	// effects tracks in-flight increments and playbacks
	effects sync.WaitGroup

	mu         sync.Mutex
	state      State
	impact     bool
	visible    bool
	selection  string
	generation uint64
	timers     []clockwork.Timer
	closed     bool
}

// Team returns the team this machine reacts for
func (m *Machine) Team() tally.TeamID {
	return m.team.ID
}

// View returns a copy of the current state
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

func (m *Machine) viewLocked() View {
	return View{
		Team:      m.team.ID,
		State:     m.state,
		Impact:    m.impact,
		Visible:   m.visible,
		Selection: m.selection,
	}
}

// Click starts a reaction if the machine is Idle and reports whether it did.
// A click while Reacting is dropped, not queued.
func (m *Machine) Click() bool {
	m.mu.Lock()
	if m.closed || m.state == Reacting {
		closed := m.closed
		m.mu.Unlock()
		m.metrics.RecordClick(m.team.ID, false)
		msg := "click dropped while reacting"
		if closed {
			msg = "click dropped, board closed"
		}
		log.Debug().
			Str("board_id", m.boardID).
			Str("team", string(m.team.ID)).
			Msg(msg)
		return false
	}

	m.state = Reacting
	m.generation++
	gen := m.generation

	m.issueIncrement()

	m.impact = true
	d := drawReaction(m.team, m.picker, m.cfg.SoundChance)
	m.selection = d.image
	if d.sound != "" {
		m.playSound(d.sound)
	}
	m.visible = true

	m.timers = []clockwork.Timer{
		m.clock.AfterFunc(m.cfg.ImpactDuration, func() { m.clearImpact(gen) }),
		m.clock.AfterFunc(m.cfg.RevealDuration, func() { m.finish(gen) }),
	}
	view := m.viewLocked()
	m.mu.Unlock()

	m.metrics.RecordClick(m.team.ID, true)
	m.notify(Event{Type: EventReactionStarted, View: view, Sound: d.sound})
	return true
}

// issueIncrement fires the store increment without waiting for it.
// Must be called with m.mu held so Close cannot race the WaitGroup.
func (m *Machine) issueIncrement() {
	m.effects.Add(1)
	go func() {
		defer m.effects.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.IncrementTimeout)
		defer cancel()

		start := m.clock.Now()
		err := m.store.Increment(ctx, m.team.ID)
		m.metrics.RecordIncrement(m.team.ID, err == nil, m.clock.Since(start))
		if err != nil {
			// no retry: a lost increment only shows up as a stale count
			log.Warn().
				Err(err).
				Str("board_id", m.boardID).
				Str("team", string(m.team.ID)).
				Msg("increment failed")
		}
	}()
}

// playSound plays one sound once. Failures never touch machine state.
func (m *Machine) playSound(sound string) {
	m.effects.Add(1)
	go func() {
		defer m.effects.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PlaybackTimeout)
		defer cancel()

		if err := m.player.Play(ctx, m.team.ID, sound); err != nil {
			m.metrics.RecordPlayback(m.team.ID, false)
			log.Warn().
				Err(fmt.Errorf("%w: %v", ErrPlaybackFailed, err)).
				Str("board_id", m.boardID).
				Str("team", string(m.team.ID)).
				Str("sound", sound).
				Msg("failed to play sound")
			return
		}
		m.metrics.RecordPlayback(m.team.ID, true)
	}()
}

func (m *Machine) clearImpact(gen uint64) {
	m.mu.Lock()
	if m.generation != gen || !m.impact {
		m.mu.Unlock()
		return
	}
	m.impact = false
	view := m.viewLocked()
	m.mu.Unlock()

	m.notify(Event{Type: EventImpactCleared, View: view})
}

func (m *Machine) finish(gen uint64) {
	m.mu.Lock()
	if m.generation != gen || m.state != Reacting {
		m.mu.Unlock()
		return
	}
	m.state = Idle
	m.visible = false
	m.selection = ""
	m.timers = nil
	view := m.viewLocked()
	m.mu.Unlock()

	m.notify(Event{Type: EventReactionEnded, View: view})
}

// close stops pending timers and resets the machine to Idle.
// Later clicks are dropped.
func (m *Machine) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
	m.closed = true
	m.generation++
	m.state = Idle
	m.impact = false
	m.visible = false
	m.selection = ""
}

func (m *Machine) notify(ev Event) {
	if m.observer == nil {
		return
	}
	ev.At = m.clock.Now()
	m.observer(ev)
}

// wait blocks until in-flight increments and playbacks finish
func (m *Machine) wait() {
	m.effects.Wait()
}
