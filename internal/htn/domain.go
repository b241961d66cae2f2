// Package htn implements a generic Hierarchical Task Network (HTN) planner.
//
// A Domain registers primitive operators, decomposition methods, pruning checks and an
// optional method-ordering callback. A Planner then performs a depth-first,
// backtracking decomposition of a goal task list against an initial State.
// The package knows nothing about what the tasks mean.
package htn

import (
	"errors"
	"fmt"
)

// State is the planning state threaded through operators.
//
// Clone must return a deep copy; the planner clones before every operator call so
// that earlier states stay intact for backtracking.
type State interface {
	Clone() State
}

// OperatorFunc applies a primitive task to state.
//
// Postcondition: returns (next, true) on success; (nil, false) when not applicable.
type OperatorFunc func(state State, task Task) (State, bool)

// Operator is a primitive state transition named after the task it executes.
//
// Precondition: Name and Apply must be non-empty.
type Operator struct {
	Name  string
	Apply OperatorFunc
}

// DecomposeFunc maps a compound task to an ordered list of subtasks.
//
// Postcondition: (subtasks, true) when applicable (subtasks may be empty);
// (nil, false) otherwise. Must not mutate state.
type DecomposeFunc func(state State, task Task) ([]Task, bool)

// Method is one way of decomposing a compound task.
//
// Meta carries caller-defined data for ordering callbacks; the planner never reads it.
type Method struct {
	Name      string
	Decompose DecomposeFunc
	Meta      any
}

// Node is the view of one expansion point handed to checks and ordering callbacks.
type Node struct {
	State State
	// Task is the task about to be expanded.
	Task Task
	// Pending are the tasks still to be solved after Task.
	Pending []Task
	// Plan is the partial plan found so far.
	Plan []Task
	// Depth is len(Chain).
	Depth int
	// Chain holds Task's ancestors, outermost first. A task emitted again by its own
	// decomposition keeps the chain of the occurrence it repeats.
	Chain []Task
}

// Check vetoes a branch when it returns true.
type Check func(n Node) bool

// Ordering reorders the candidate methods for n.Task; the first is tried first.
//
// Postcondition: returns a permutation of methods. Must not mutate n.
type Ordering func(n Node, methods []*Method) []*Method

type namedCheck struct {
	name string
	fn   Check
}

// Domain holds the operators, methods, checks and ordering for one planning problem.
//
// Invariant: operator names are unique; a task name is never both an operator and a
// compound task.
type Domain struct {
	ID        string
	operators map[string]*Operator
	methods   map[string][]*Method
	checks    []namedCheck
	ordering  Ordering
}

// NewDomain returns an empty Domain.
//
// Precondition: id must be non-empty.
func NewDomain(id string) *Domain {
	return &Domain{
		ID:        id,
		operators: make(map[string]*Operator),
		methods:   make(map[string][]*Method),
	}
}

// DeclareOperators registers ops.
//
// Postcondition: returns error on an empty or duplicate name, or a name already used
// by a compound task.
func (d *Domain) DeclareOperators(ops ...*Operator) error {
	for _, op := range ops {
		if op == nil || op.Name == "" || op.Apply == nil {
			return fmt.Errorf("htn.Domain %q: operator missing Name or Apply", d.ID)
		}
		if _, dup := d.operators[op.Name]; dup {
			return fmt.Errorf("htn.Domain %q: duplicate operator %q", d.ID, op.Name)
		}
		if _, clash := d.methods[op.Name]; clash {
			return fmt.Errorf("htn.Domain %q: operator %q clashes with a compound task", d.ID, op.Name)
		}
		d.operators[op.Name] = op
	}
	return nil
}

// DeclareMethods appends methods for task, keeping the given order.
//
// Postcondition: returns error if task is empty, names an operator, or a method is
// missing its Decompose function.
func (d *Domain) DeclareMethods(task string, methods ...*Method) error {
	if task == "" {
		return fmt.Errorf("htn.Domain %q: task name must not be empty", d.ID)
	}
	if _, clash := d.operators[task]; clash {
		return fmt.Errorf("htn.Domain %q: task %q clashes with an operator", d.ID, task)
	}
	for _, m := range methods {
		if m == nil || m.Decompose == nil {
			return fmt.Errorf("htn.Domain %q task %q: method missing Decompose", d.ID, task)
		}
	}
	d.methods[task] = append(d.methods[task], methods...)
	return nil
}

// AddCheck registers a pruning check. Checks run in registration order before
// every expansion.
func (d *Domain) AddCheck(name string, c Check) {
	d.checks = append(d.checks, namedCheck{name: name, fn: c})
}

// DefineOrdering sets the method-ordering callback, replacing any previous one.
func (d *Domain) DefineOrdering(o Ordering) {
	d.ordering = o
}

// OperatorByID returns the operator with the given name, or false if not found.
func (d *Domain) OperatorByID(name string) (*Operator, bool) {
	op, ok := d.operators[name]
	return op, ok
}

// MethodsForTask returns the methods for task in declaration order.
func (d *Domain) MethodsForTask(task string) []*Method {
	return d.methods[task]
}

// CheckNames returns the registered check names in evaluation order.
func (d *Domain) CheckNames() []string {
	names := make([]string, len(d.checks))
	for i, c := range d.checks {
		names[i] = c.name
	}
	return names
}

// Validate checks that the domain can be searched.
//
// Postcondition: nil return guarantees a non-empty ID and at least one operator.
func (d *Domain) Validate() error {
	if d.ID == "" {
		return errors.New("htn.Domain: ID must not be empty")
	}
	if len(d.operators) == 0 {
		return fmt.Errorf("htn.Domain %q: must declare at least one operator", d.ID)
	}
	return nil
}
