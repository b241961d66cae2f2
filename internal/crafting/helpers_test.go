package crafting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/autohtn/internal/crafting"
	"github.com/cory-johannsen/autohtn/internal/htn"
	"github.com/cory-johannsen/autohtn/internal/rules"
)

const woodRules = `{
  "Items": ["wood"],
  "Tools": [],
  "Recipes": {"gather wood": {"Produces": {"wood": 1}, "Time": 1}},
  "Problem": {"Initial": {}, "Goal": {"wood": 3}, "Time": %d}
}`

// axeRules offers a slow bare-handed recipe and a fast one needing an axe.
const axeRules = `{
  "Items": ["wood"],
  "Tools": ["axe"],
  "Recipes": {
    "punch for wood": {"Produces": {"wood": 1}, "Time": 4},
    "axe for wood": {"Produces": {"wood": 1}, "Requires": {"axe": true}, "Time": 1},
    "make axe": {"Produces": {"axe": 1}, "Time": 2}
  },
  "Problem": {"Goal": {"wood": 2}, "Time": 20}
}`

func parseRules(t testing.TB, doc string) *rules.Rulebook {
	t.Helper()
	rb, err := rules.Parse([]byte(doc))
	require.NoError(t, err)
	return rb
}

func craftingRules(t testing.TB) *rules.Rulebook {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "rules", "testdata", "crafting.json"))
	require.NoError(t, err)
	return parseRules(t, string(data))
}

func compile(t testing.TB, rb *rules.Rulebook, opts crafting.Options) *crafting.Domain {
	t.Helper()
	d, err := crafting.Compile(rb, opts)
	require.NoError(t, err)
	return d
}

func stepNames(plan []htn.Task) []string {
	out := make([]string, len(plan))
	for i, t := range plan {
		out[i] = t.Name
	}
	return out
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
