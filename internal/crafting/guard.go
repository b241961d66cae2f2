package crafting

import (
	"strings"

	"github.com/cory-johannsen/autohtn/internal/htn"
)

// Suppressor vetoes production of item by an external rule. inGoal reports whether
// the Problem goal names item; isTool whether item is declared in Tools.
type Suppressor interface {
	Suppress(agent, item string, depth int, inGoal, isTool bool) bool
}

// Check names, in evaluation order.
const (
	CheckDepth        = "depth_cap"
	CheckSelfRecurse  = "self_recursion"
	CheckNegativeTime = "negative_time"
	CheckOptionalTool = "optional_tool"
	CheckScript       = "script"
)

// producedItem returns the item of a produce_<item> task.
func producedItem(t htn.Task) (string, bool) {
	if !strings.HasPrefix(t.Name, ProducePrefix) {
		return "", false
	}
	return strings.TrimPrefix(t.Name, ProducePrefix), true
}

func depthCap(max int) htn.Check {
	return func(n htn.Node) bool {
		return n.Depth > max
	}
}

// selfRecursion vetoes a produce_<item> task already being expanded in its own chain.
func selfRecursion(n htn.Node) bool {
	if _, ok := producedItem(n.Task); !ok {
		return false
	}
	for _, c := range n.Chain {
		if c.Equal(n.Task) {
			return true
		}
	}
	return false
}

func negativeTime(n htn.Node) bool {
	s, ok := n.State.(*State)
	return ok && s.TimeLeft(n.Task.StringArg(0)) < 0
}

// guard holds what the goal-relative checks read from the compiled domain.
type guard struct {
	goal       map[string]bool
	tools      map[string]bool
	methods    map[string][]*htn.Method
	suppressor Suppressor
}

// optionalTool vetoes producing a tool the goal does not ask for when the nearest
// enclosing production has another recipe, not needing that tool, that can run now.
func (g *guard) optionalTool(n htn.Node) bool {
	tool, ok := producedItem(n.Task)
	if !ok || !g.tools[tool] || g.goal[tool] {
		return false
	}
	s, ok := n.State.(*State)
	if !ok {
		return false
	}
	agent := n.Task.StringArg(0)
	for i := len(n.Chain) - 1; i >= 0; i-- {
		outer, ok := producedItem(n.Chain[i])
		if !ok {
			continue
		}
		for _, m := range g.methods[ProduceTask(outer)] {
			r := m.Meta.(*MethodMeta).Recipe
			if _, needs := r.Requires.Get(tool); needs {
				continue
			}
			if r.Applicable(s, agent) {
				return true
			}
		}
		return false
	}
	return false
}

func (g *guard) script(n htn.Node) bool {
	item, ok := producedItem(n.Task)
	if !ok {
		return false
	}
	return g.suppressor.Suppress(n.Task.StringArg(0), item, n.Depth, g.goal[item], g.tools[item])
}
