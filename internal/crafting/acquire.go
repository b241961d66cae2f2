package crafting

import (
	"github.com/cory-johannsen/autohtn/internal/htn"
)

// checkEnough succeeds with no subtasks when have_enough(agent, item, num) already holds.
func checkEnough(st htn.State, task htn.Task) ([]htn.Task, bool) {
	s, ok := st.(*State)
	if !ok {
		return nil, false
	}
	if s.Quantity(task.StringArg(1), task.StringArg(0)) >= task.IntArg(2) {
		return []htn.Task{}, true
	}
	return nil, false
}

// produceEnough requests one production round and re-checks. It applies only while
// the agent is short, so backtracking never re-produces an item already held.
func produceEnough(st htn.State, task htn.Task) ([]htn.Task, bool) {
	agent, item, num := task.StringArg(0), task.StringArg(1), task.IntArg(2)
	s, ok := st.(*State)
	if !ok || s.Quantity(item, agent) >= num {
		return nil, false
	}
	return []htn.Task{
		htn.NewTask(TaskProduce, agent, item),
		htn.NewTask(TaskHaveEnough, agent, item, num),
	}, true
}

// acquisitionMethods returns check_enough then produce_enough for have_enough.
func acquisitionMethods() []*htn.Method {
	return []*htn.Method{
		{Name: "check_enough", Decompose: checkEnough},
		{Name: "produce_enough", Decompose: produceEnough},
	}
}

// produceMethod dispatches produce(agent, item) to produce_<item>(agent). It fails for
// items no recipe produces and, when forbidRemake is set, for tools the agent has
// already made once.
func produceMethod(producible map[string]bool, forbidRemake bool) *htn.Method {
	return &htn.Method{
		Name: "produce",
		Decompose: func(st htn.State, task htn.Task) ([]htn.Task, bool) {
			agent, item := task.StringArg(0), task.StringArg(1)
			if !producible[item] {
				return nil, false
			}
			if forbidRemake {
				if s, ok := st.(*State); ok && s.WasMade(item, agent) {
					return nil, false
				}
			}
			return []htn.Task{htn.NewTask(ProduceTask(item), agent)}, true
		},
	}
}
