// Package scenario reads scripted playback runs from YAML. A scenario
// names a pack and a starting behavior, then lists timed events that poke
// the runtime state, letting a run be replayed deterministically from the
// command line.
package scenario

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/auziqni/learn-shimeji-sub000/internal/condition"
)

// Event mutates runtime state at a given tick.
type Event struct {
	// Tick is the zero-based update on which the event fires.
	Tick int `yaml:"tick"`
	// Set writes raw values into the condition state.
	Set map[string]float64 `yaml:"set,omitempty"`
	// Floor toggles floor contact. Pointer so "absent" and "false" stay
	// distinct.
	Floor *bool `yaml:"floor,omitempty"`
	// Behavior forces a transition to the named behavior.
	Behavior string `yaml:"behavior,omitempty"`
}

// Scenario is one scripted run.
type Scenario struct {
	Name     string  `yaml:"name"`
	Pack     string  `yaml:"pack"`
	Behavior string  `yaml:"behavior"`
	Ticks    int     `yaml:"ticks"`
	Delta    float64 `yaml:"delta"`
	Seed     int64   `yaml:"seed,omitempty"`
	Events   []Event `yaml:"events,omitempty"`
}

// Read decodes a scenario. Unknown fields are rejected so a typoed key
// fails loudly instead of being silently dropped.
func Read(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ReadFile reads a scenario from disk.
func ReadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func (s *Scenario) validate() error {
	if s.Pack == "" {
		return fmt.Errorf("scenario %q: pack is required", s.Name)
	}
	if s.Behavior == "" {
		return fmt.Errorf("scenario %q: behavior is required", s.Name)
	}
	if s.Ticks <= 0 {
		return fmt.Errorf("scenario %q: ticks must be positive, got %d", s.Name, s.Ticks)
	}
	if s.Delta <= 0 {
		return fmt.Errorf("scenario %q: delta must be positive, got %v", s.Name, s.Delta)
	}
	prev := -1
	for i, e := range s.Events {
		if e.Tick < 0 || e.Tick >= s.Ticks {
			return fmt.Errorf("scenario %q: event %d tick %d outside run of %d ticks",
				s.Name, i, e.Tick, s.Ticks)
		}
		if e.Tick < prev {
			return fmt.Errorf("scenario %q: events must be ordered by tick", s.Name)
		}
		prev = e.Tick
	}
	return nil
}

// Apply writes the event into st. Behavior transitions are the caller's
// concern; Apply only touches condition state.
func (e *Event) Apply(st condition.State) {
	for k, v := range e.Set {
		st[k] = v
	}
	if e.Floor != nil {
		st.SetBool(condition.KeyFloorContact, *e.Floor)
	}
}

// At returns the events scheduled for a tick. Events are kept in script
// order, so multiple events on one tick fire in the order written.
func (s *Scenario) At(tick int) []Event {
	var out []Event
	for _, e := range s.Events {
		if e.Tick == tick {
			out = append(out, e)
		}
	}
	return out
}
