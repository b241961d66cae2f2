package crafting

import "github.com/cory-johannsen/autohtn/internal/htn"

// Applicable reports whether agent can run r in s: every required tool and consumed
// item is held in the stated amount and enough time remains.
func (r *Recipe) Applicable(s *State, agent string) bool {
	for _, e := range r.Requires {
		if s.Quantity(e.Name, agent) < e.Qty {
			return false
		}
	}
	for _, e := range r.Consumes {
		if s.Quantity(e.Name, agent) < e.Qty {
			return false
		}
	}
	return s.TimeLeft(agent) >= r.Time
}

// Apply runs r for agent in place.
//
// Postcondition: on true, consumed items and time were deducted, products added and
// any produced tool flagged as made; on false, s is untouched.
func (r *Recipe) Apply(s *State, agent string) bool {
	if !r.Applicable(s, agent) {
		return false
	}
	for _, e := range r.Consumes {
		s.Qty[e.Name][agent] -= e.Qty
	}
	s.Time[agent] -= r.Time
	for _, e := range r.Produces {
		s.Qty[e.Name][agent] += e.Qty
		if made, isTool := s.Made[e.Name]; isTool {
			made[agent] = true
		}
	}
	return true
}

// newOperator wraps r as the primitive task op_<id>(agent).
func newOperator(r *Recipe) *htn.Operator {
	return &htn.Operator{
		Name: r.OperatorName(),
		Apply: func(st htn.State, task htn.Task) (htn.State, bool) {
			s, ok := st.(*State)
			if !ok || !r.Apply(s, task.StringArg(0)) {
				return nil, false
			}
			return s, true
		},
	}
}
