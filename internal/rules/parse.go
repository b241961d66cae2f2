package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// Parse decodes a JSON rulebook.
//
// Postcondition: Returns a validated Rulebook, or an error wrapping ErrInvalidRules.
func Parse(data []byte) (*Rulebook, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(data)
	rb := &Rulebook{
		Items: stringList(doc.Get("Items")),
		Tools: stringList(doc.Get("Tools")),
	}

	var perr error
	doc.Get("Recipes").ForEach(func(key, value gjson.Result) bool {
		r, err := parseRecipe(key.String(), value)
		if err != nil {
			perr = err
			return false
		}
		rb.Recipes = append(rb.Recipes, r)
		return true
	})
	if perr != nil {
		return nil, perr
	}

	prob := doc.Get("Problem")
	var err error
	if rb.Problem.Initial, err = quantities(prob.Get("Initial")); err != nil {
		return nil, fmt.Errorf("Problem.Initial: %w", err)
	}
	if rb.Problem.Goal, err = quantities(prob.Get("Goal")); err != nil {
		return nil, fmt.Errorf("Problem.Goal: %w", err)
	}
	if rb.Problem.Time, err = integer(prob.Get("Time")); err != nil {
		return nil, fmt.Errorf("Problem.Time: %w", err)
	}

	if err := rb.Validate(); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	rb.Digest = hex.EncodeToString(sum[:])
	rb.Source = append([]byte(nil), data...)
	return rb, nil
}

func parseRecipe(name string, v gjson.Result) (RecipeDef, error) {
	r := RecipeDef{Name: name}
	var err error
	if r.Produces, err = quantities(v.Get("Produces")); err != nil {
		return r, fmt.Errorf("recipe %q Produces: %w", name, err)
	}
	if r.Consumes, err = quantities(v.Get("Consumes")); err != nil {
		return r, fmt.Errorf("recipe %q Consumes: %w", name, err)
	}
	if r.Requires, err = quantities(v.Get("Requires")); err != nil {
		return r, fmt.Errorf("recipe %q Requires: %w", name, err)
	}
	if t := v.Get("Time"); t.Exists() {
		if r.Time, err = integer(t); err != nil {
			return r, fmt.Errorf("recipe %q Time: %w", name, err)
		}
	}
	return r, nil
}

// quantities reads an object in key order. A boolean true counts as 1 and false drops
// the entry, so {"bench": true} means one bench is required.
func quantities(v gjson.Result) (Quantities, error) {
	if !v.Exists() {
		return nil, nil
	}
	var out Quantities
	var err error
	v.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.True:
			out = append(out, Entry{Name: key.String(), Qty: 1})
		case gjson.False:
		default:
			var n int
			if n, err = integer(value); err != nil {
				err = fmt.Errorf("%q: %w", key.String(), err)
				return false
			}
			out = append(out, Entry{Name: key.String(), Qty: n})
		}
		return true
	})
	return out, err
}

func integer(v gjson.Result) (int, error) {
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%w: expected an integer, got %s", ErrInvalidRules, v.Raw)
	}
	f := v.Float()
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: expected an integer, got %s", ErrInvalidRules, v.Raw)
	}
	return int(f), nil
}

func stringList(v gjson.Result) []string {
	arr := v.Array()
	out := make([]string, 0, len(arr))
	for _, s := range arr {
		out = append(out, s.String())
	}
	return out
}
