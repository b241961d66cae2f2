// Package crafting compiles a crafting rulebook into an HTN domain and drives the
// generic planner over it: operators and methods synthesized from recipes, the
// have_enough acquisition task, the loop guards and the method ranking policy.
package crafting

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/autohtn/internal/htn"
)

// State is the crafting world for one or more agents.
//
// Invariant: the vocabulary (Items ∪ Tools) is fixed at construction; every quantity
// and every remaining time is >= 0 after each successful operator.
type State struct {
	Name string
	// Qty maps item → agent → count.
	Qty map[string]map[string]int
	// Time maps agent → remaining time units.
	Time map[string]int
	// Made maps tool → agent → whether the agent has produced it at least once.
	Made map[string]map[string]bool

	vocab []string
}

// NewState returns a zeroed State over vocab for agent, with time units to spend.
//
// Precondition: vocab holds distinct names; tools is a subset of vocab.
func NewState(name string, vocab, tools []string, agent string, time int) *State {
	s := &State{
		Name:  name,
		Qty:   make(map[string]map[string]int, len(vocab)),
		Time:  map[string]int{agent: time},
		Made:  make(map[string]map[string]bool, len(tools)),
		vocab: vocab,
	}
	for _, item := range vocab {
		s.Qty[item] = map[string]int{agent: 0}
	}
	for _, tool := range tools {
		s.Made[tool] = map[string]bool{agent: false}
	}
	return s
}

// Clone returns a deep copy; the vocabulary slice is shared since it never changes.
func (s *State) Clone() htn.State {
	return s.clone()
}

func (s *State) clone() *State {
	c := &State{
		Name:  s.Name,
		Qty:   make(map[string]map[string]int, len(s.Qty)),
		Time:  make(map[string]int, len(s.Time)),
		Made:  make(map[string]map[string]bool, len(s.Made)),
		vocab: s.vocab,
	}
	for item, per := range s.Qty {
		m := make(map[string]int, len(per))
		for a, n := range per {
			m[a] = n
		}
		c.Qty[item] = m
	}
	for a, t := range s.Time {
		c.Time[a] = t
	}
	for tool, per := range s.Made {
		m := make(map[string]bool, len(per))
		for a, v := range per {
			m[a] = v
		}
		c.Made[tool] = m
	}
	return c
}

// Known reports whether item is part of the vocabulary.
func (s *State) Known(item string) bool {
	_, ok := s.Qty[item]
	return ok
}

// Quantity returns how many of item agent holds; unknown names hold 0.
func (s *State) Quantity(item, agent string) int {
	return s.Qty[item][agent]
}

// TimeLeft returns agent's remaining time.
func (s *State) TimeLeft(agent string) int {
	return s.Time[agent]
}

// WasMade reports whether agent has produced tool before.
func (s *State) WasMade(tool, agent string) bool {
	return s.Made[tool][agent]
}

// Holdings returns agent's non-zero quantities in vocabulary order.
func (s *State) Holdings(agent string) []Holding {
	var out []Holding
	for _, item := range s.vocab {
		if n := s.Qty[item][agent]; n != 0 {
			out = append(out, Holding{Item: item, Qty: n})
		}
	}
	return out
}

// Holding is one line of an inventory.
type Holding struct {
	Item string
	Qty  int
}

// Format renders agent's inventory and remaining time, one "name = value" per line.
func (s *State) Format(agent string) string {
	var b strings.Builder
	for _, h := range s.Holdings(agent) {
		fmt.Fprintf(&b, "%s = %d\n", h.Item, h.Qty)
	}
	fmt.Fprintf(&b, "time = %d\n", s.TimeLeft(agent))
	return b.String()
}
