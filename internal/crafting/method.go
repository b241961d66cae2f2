package crafting

import (
	"sort"

	"github.com/cory-johannsen/autohtn/internal/htn"
	"github.com/cory-johannsen/autohtn/internal/rules"
)

// Task names.
const (
	TaskHaveEnough = "have_enough"
	TaskProduce    = "produce"
	ProducePrefix  = "produce_"
)

// ProduceTask returns the name of the compound task that produces item.
func ProduceTask(item string) string {
	return ProducePrefix + item
}

// MethodMeta is attached to every recipe method for the ranking policy.
type MethodMeta struct {
	Recipe  *Recipe
	Product string
}

// newMethod builds the produce_<product> method for r. Subtasks are have_enough for
// each required tool, then for each consumed item in acquire order, then the operator.
// The method is not applicable when r takes longer than the agent has left.
func newMethod(r *Recipe, product string, acquire rules.Quantities) *htn.Method {
	name := r.ID
	if len(r.Produces) > 1 {
		name = r.ID + "/" + product
	}
	op := r.OperatorName()
	return &htn.Method{
		Name: name,
		Meta: &MethodMeta{Recipe: r, Product: product},
		Decompose: func(st htn.State, task htn.Task) ([]htn.Task, bool) {
			s, ok := st.(*State)
			agent := task.StringArg(0)
			if !ok || s.TimeLeft(agent) < r.Time {
				return nil, false
			}
			subtasks := make([]htn.Task, 0, len(r.Requires)+len(acquire)+1)
			for _, e := range r.Requires {
				subtasks = append(subtasks, htn.NewTask(TaskHaveEnough, agent, e.Name, e.Qty))
			}
			for _, e := range acquire {
				subtasks = append(subtasks, htn.NewTask(TaskHaveEnough, agent, e.Name, e.Qty))
			}
			return append(subtasks, htn.NewTask(op, agent)), true
		},
	}
}

// ingredientClosure maps every item to the set of items transitively consumed by the
// recipes that produce it.
func ingredientClosure(recipes []*Recipe) map[string]map[string]bool {
	direct := make(map[string]map[string]bool)
	for _, r := range recipes {
		for _, p := range r.Produces {
			if direct[p.Name] == nil {
				direct[p.Name] = make(map[string]bool)
			}
			for _, c := range r.Consumes {
				direct[p.Name][c.Name] = true
			}
		}
	}
	closure := make(map[string]map[string]bool, len(direct))
	for item := range direct {
		seen := make(map[string]bool)
		stack := []string{item}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for dep := range direct[cur] {
				if !seen[dep] {
					seen[dep] = true
					stack = append(stack, dep)
				}
			}
		}
		closure[item] = seen
	}
	return closure
}

// acquireOrder orders consumed items so that an ingredient made from another listed
// ingredient is acquired first; the later acquisition then tops the raw one back up.
// Ties and mutual dependencies keep declaration order.
func acquireOrder(consumes rules.Quantities, closure map[string]map[string]bool) rules.Quantities {
	remaining := append(rules.Quantities(nil), consumes...)
	out := make(rules.Quantities, 0, len(consumes))
	for len(remaining) > 0 {
		pick := 0
		for i, cand := range remaining {
			needed := false
			for j, other := range remaining {
				if i != j && closure[other.Name][cand.Name] && !closure[cand.Name][other.Name] {
					needed = true
					break
				}
			}
			if !needed {
				pick = i
				break
			}
		}
		out = append(out, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return out
}

// buildMethods returns the methods for every produce_<item> task, each list sorted
// ascending by recipe time with declaration order breaking ties. A recipe that
// consumes at least as much of a product as it makes is no method for that product.
func buildMethods(recipes []*Recipe) (map[string][]*htn.Method, []string) {
	closure := ingredientClosure(recipes)
	byTask := make(map[string][]*htn.Method)
	var order []string
	for _, r := range recipes {
		acquire := acquireOrder(r.Consumes, closure)
		for _, p := range r.Produces {
			if used, ok := r.Consumes.Get(p.Name); ok && used >= p.Qty {
				continue
			}
			task := ProduceTask(p.Name)
			if _, ok := byTask[task]; !ok {
				order = append(order, task)
			}
			byTask[task] = append(byTask[task], newMethod(r, p.Name, acquire))
		}
	}
	for _, ms := range byTask {
		sort.SliceStable(ms, func(i, j int) bool {
			return ms[i].Meta.(*MethodMeta).Recipe.Time < ms[j].Meta.(*MethodMeta).Recipe.Time
		})
	}
	return byTask, order
}
