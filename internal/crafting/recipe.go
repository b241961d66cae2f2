package crafting

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cory-johannsen/autohtn/internal/rules"
)

// Recipe is an immutable, normalized recipe.
type Recipe struct {
	// ID is the normalized identifier used in operator and method names.
	ID string
	// Name is the recipe name as written in the rulebook.
	Name     string
	Produces rules.Quantities
	Consumes rules.Quantities
	Requires rules.Quantities
	Time     int
}

// OperatorName returns "op_<id>".
func (r *Recipe) OperatorName() string {
	return "op_" + r.ID
}

// NormalizeID lower-cases name and collapses every run of characters that are not
// letters or digits into a single underscore, trimming leading and trailing ones.
//
// Postcondition: the result contains only lower-case letters, digits and single
// underscores; it is empty when name has no letters or digits.
func NormalizeID(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// NormalizeRecipes converts rulebook recipes into Recipes, keeping declaration order.
//
// Postcondition: returns an error wrapping rules.ErrInvalidRules if a name normalizes
// to empty or two names normalize to the same ID.
func NormalizeRecipes(defs []rules.RecipeDef) ([]*Recipe, error) {
	out := make([]*Recipe, 0, len(defs))
	byID := make(map[string]string, len(defs))
	for _, d := range defs {
		id := NormalizeID(d.Name)
		if id == "" {
			return nil, fmt.Errorf("%w: recipe %q has no usable identifier", rules.ErrInvalidRules, d.Name)
		}
		if prev, dup := byID[id]; dup {
			return nil, fmt.Errorf("%w: recipes %q and %q both normalize to %q", rules.ErrInvalidRules, prev, d.Name, id)
		}
		byID[id] = d.Name
		out = append(out, &Recipe{
			ID:       id,
			Name:     d.Name,
			Produces: d.Produces,
			Consumes: d.Consumes,
			Requires: d.Requires,
			Time:     d.Time,
		})
	}
	return out, nil
}
