package htn

import (
	"fmt"
	"strings"
)

// Task is a named tuple of arguments: a compound task resolved by methods, or a
// primitive task executed by the operator of the same name.
//
// Invariant: Args hold comparable scalar values (string, int, bool).
type Task struct {
	Name string
	Args []any
}

// NewTask builds a Task.
func NewTask(name string, args ...any) Task {
	return Task{Name: name, Args: args}
}

// Equal reports whether t and o have the same name and pairwise-equal arguments.
func (t Task) Equal(o Task) bool {
	if t.Name != o.Name || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if t.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// StringArg returns argument i as a string, or "" if absent or not a string.
func (t Task) StringArg(i int) string {
	if i < 0 || i >= len(t.Args) {
		return ""
	}
	s, _ := t.Args[i].(string)
	return s
}

// IntArg returns argument i as an int, or 0 if absent or not an int.
func (t Task) IntArg(i int) int {
	if i < 0 || i >= len(t.Args) {
		return 0
	}
	n, _ := t.Args[i].(int)
	return n
}

// String renders the task as name(arg, ...).
func (t Task) String() string {
	var b strings.Builder
	b.WriteString(t.Name)
	b.WriteByte('(')
	for i, a := range t.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(&b, a)
	}
	b.WriteByte(')')
	return b.String()
}
