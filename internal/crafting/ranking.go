package crafting

import (
	"sort"

	"github.com/cory-johannsen/autohtn/internal/htn"
)

// Weights are the ranking coefficients.
//
// Invariant: Cycle > Tool > 0 and Time >= 0, so cycle risk outweighs tool count,
// which outweighs time cost.
type Weights struct {
	Cycle  int
	Tool   int
	Time   int
	Remake int
	// Deprioritize enables the Remake term for tools made before but no longer held.
	Deprioritize bool
}

// Score returns the ranking score of r; lower is tried first.
//
// Postcondition: pure; reads s and pursued only.
func (w Weights) Score(r *Recipe, pursued map[string]bool, s *State, agent string) int {
	score := w.Tool*len(r.Requires) + w.Time*r.Time
	for _, e := range r.Requires {
		if pursued[e.Name] {
			score += w.Cycle
			break
		}
	}
	if w.Deprioritize && s != nil {
		for _, e := range r.Requires {
			if s.WasMade(e.Name, agent) && s.Quantity(e.Name, agent) < e.Qty {
				score += w.Remake
			}
		}
	}
	return score
}

// pursuedItems returns every item under production in n's chain, plus n's own.
func pursuedItems(n htn.Node) map[string]bool {
	out := make(map[string]bool)
	add := func(t htn.Task) {
		if item, ok := producedItem(t); ok {
			out[item] = true
		} else if t.Name == TaskProduce {
			out[t.StringArg(1)] = true
		}
	}
	for _, c := range n.Chain {
		add(c)
	}
	add(n.Task)
	return out
}

// Order is the htn.Ordering for produce_<item> tasks: methods sorted ascending by
// Score, stable so equal scores keep their static order. Other tasks pass through.
func (w Weights) Order(n htn.Node, methods []*htn.Method) []*htn.Method {
	if _, ok := producedItem(n.Task); !ok {
		return methods
	}
	s, _ := n.State.(*State)
	agent := n.Task.StringArg(0)
	pursued := pursuedItems(n)

	scores := make(map[*htn.Method]int, len(methods))
	for _, m := range methods {
		meta, ok := m.Meta.(*MethodMeta)
		if !ok {
			return methods
		}
		scores[m] = w.Score(meta.Recipe, pursued, s, agent)
	}
	out := append([]*htn.Method(nil), methods...)
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i]] < scores[out[j]]
	})
	return out
}
