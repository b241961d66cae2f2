// Package rules loads crafting rulebooks: the Items and Tools catalog, the Recipes and
// the Problem to solve. Declaration order of recipes and of the keys inside every
// quantity mapping is preserved exactly as written in the source document.
package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRules marks every input-data error. Callers test with errors.Is.
var ErrInvalidRules = errors.New("invalid rules")

// Entry is one name→quantity pair.
type Entry struct {
	Name string
	Qty  int
}

// Quantities is an ordered name→quantity mapping.
type Quantities []Entry

// Get returns the quantity recorded for name.
func (q Quantities) Get(name string) (int, bool) {
	for _, e := range q {
		if e.Name == name {
			return e.Qty, true
		}
	}
	return 0, false
}

// Names returns the keys in declaration order.
func (q Quantities) Names() []string {
	out := make([]string, len(q))
	for i, e := range q {
		out[i] = e.Name
	}
	return out
}

// RecipeDef is one recipe as written in the rulebook.
type RecipeDef struct {
	Name     string
	Produces Quantities
	Consumes Quantities
	Requires Quantities
	Time     int
}

// Problem is the start inventory, the goal inventory and the time budget.
type Problem struct {
	Initial Quantities
	Goal    Quantities
	Time    int
}

// Rulebook is a parsed, validated rule document.
//
// Invariant: a Rulebook returned by this package has passed Validate.
type Rulebook struct {
	Items   []string
	Tools   []string
	Recipes []RecipeDef
	Problem Problem
	// Digest is the hex sha256 of the canonical JSON document the rulebook was parsed from.
	Digest string
	// Source is that JSON document. YAML rulebooks carry their JSON rendering.
	Source []byte
}

// IsTool reports whether name is declared in Tools.
func (rb *Rulebook) IsTool(name string) bool {
	for _, t := range rb.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// Vocabulary returns Items followed by Tools.
func (rb *Rulebook) Vocabulary() []string {
	out := make([]string, 0, len(rb.Items)+len(rb.Tools))
	out = append(out, rb.Items...)
	return append(out, rb.Tools...)
}

// Validate checks the semantic constraints a JSON Schema cannot express.
//
// Postcondition: Returns nil, or an error wrapping ErrInvalidRules that lists every violation.
func (rb *Rulebook) Validate() error {
	var errs []string

	known := make(map[string]bool, len(rb.Items)+len(rb.Tools))
	for _, name := range rb.Vocabulary() {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "item and tool names must not be empty")
			continue
		}
		if known[name] {
			errs = append(errs, fmt.Sprintf("%q is declared more than once in Items/Tools", name))
		}
		known[name] = true
	}

	checkRefs := func(where string, q Quantities, minQty int) {
		seen := make(map[string]bool, len(q))
		for _, e := range q {
			if !known[e.Name] {
				errs = append(errs, fmt.Sprintf("%s references unknown item %q", where, e.Name))
			}
			if seen[e.Name] {
				errs = append(errs, fmt.Sprintf("%s lists %q more than once", where, e.Name))
			}
			seen[e.Name] = true
			if e.Qty < minQty {
				errs = append(errs, fmt.Sprintf("%s: quantity of %q must be >= %d, got %d", where, e.Name, minQty, e.Qty))
			}
		}
	}

	if len(rb.Recipes) == 0 {
		errs = append(errs, "Recipes must not be empty")
	}
	names := make(map[string]bool, len(rb.Recipes))
	for _, r := range rb.Recipes {
		where := fmt.Sprintf("recipe %q", r.Name)
		if strings.TrimSpace(r.Name) == "" {
			errs = append(errs, "recipe names must not be empty")
		}
		if names[r.Name] {
			errs = append(errs, fmt.Sprintf("%s is declared more than once", where))
		}
		names[r.Name] = true
		if len(r.Produces) == 0 {
			errs = append(errs, fmt.Sprintf("%s: Produces must not be empty", where))
		}
		if r.Time < 0 {
			errs = append(errs, fmt.Sprintf("%s: Time must be >= 0, got %d", where, r.Time))
		}
		checkRefs(where+" Produces", r.Produces, 1)
		checkRefs(where+" Consumes", r.Consumes, 1)
		checkRefs(where+" Requires", r.Requires, 1)
	}

	checkRefs("Problem.Initial", rb.Problem.Initial, 0)
	checkRefs("Problem.Goal", rb.Problem.Goal, 0)
	if rb.Problem.Time < 0 {
		errs = append(errs, fmt.Sprintf("Problem.Time must be >= 0, got %d", rb.Problem.Time))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRules, strings.Join(errs, "; "))
	}
	return nil
}
