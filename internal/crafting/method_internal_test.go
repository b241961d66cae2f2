package crafting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/autohtn/internal/htn"
	"github.com/cory-johannsen/autohtn/internal/rules"
)

func quantities(names ...string) rules.Quantities {
	out := make(rules.Quantities, len(names))
	for i, n := range names {
		out[i] = rules.Entry{Name: n, Qty: 1}
	}
	return out
}

func chainRecipes() []*Recipe {
	return []*Recipe{
		{ID: "craft_plank", Produces: quantities("plank"), Consumes: quantities("wood"), Time: 1},
		{ID: "craft_stick", Produces: quantities("stick"), Consumes: quantities("plank"), Time: 1},
		{ID: "craft_pickaxe", Produces: quantities("pickaxe"), Consumes: quantities("plank", "stick"), Time: 6},
	}
}

func TestAcquireOrder_MadeFromSiblingComesFirst(t *testing.T) {
	closure := ingredientClosure(chainRecipes())
	assert.True(t, closure["stick"]["wood"])
	assert.True(t, closure["stick"]["plank"])
	assert.False(t, closure["plank"]["stick"])

	got := acquireOrder(quantities("plank", "stick"), closure)
	assert.Equal(t, quantities("stick", "plank"), got)
}

func TestAcquireOrder_IndependentKeepsDeclarationOrder(t *testing.T) {
	closure := ingredientClosure(chainRecipes())
	got := acquireOrder(quantities("wood", "coal", "ore"), closure)
	assert.Equal(t, quantities("wood", "coal", "ore"), got)
}

func TestAcquireOrder_MutualDependencyKeepsDeclarationOrder(t *testing.T) {
	closure := ingredientClosure([]*Recipe{
		{ID: "a", Produces: quantities("a"), Consumes: quantities("b")},
		{ID: "b", Produces: quantities("b"), Consumes: quantities("a")},
	})
	got := acquireOrder(quantities("a", "b"), closure)
	assert.Equal(t, quantities("a", "b"), got)
}

func TestNewMethod_Subtasks(t *testing.T) {
	recipes := chainRecipes()
	recipes[2].Requires = rules.Quantities{{Name: "bench", Qty: 1}}
	methods, order := buildMethods(recipes)
	assert.Equal(t, []string{"produce_plank", "produce_stick", "produce_pickaxe"}, order)

	m := methods["produce_pickaxe"][0]
	s := NewState("s", []string{"wood", "plank", "stick", "pickaxe", "bench"}, []string{"bench", "pickaxe"}, "a", 10)
	subtasks, ok := m.Decompose(s, htn.NewTask("produce_pickaxe", "a"))
	require.True(t, ok)
	want := []string{
		"have_enough(a, bench, 1)",
		"have_enough(a, stick, 1)",
		"have_enough(a, plank, 1)",
		"op_craft_pickaxe(a)",
	}
	got := make([]string, len(subtasks))
	for i, st := range subtasks {
		got[i] = st.String()
	}
	assert.Equal(t, want, got)

	s.Time["a"] = 5
	_, ok = m.Decompose(s, htn.NewTask("produce_pickaxe", "a"))
	assert.False(t, ok, "recipe takes longer than the time left")
}

func TestBuildMethods_MultiProductNames(t *testing.T) {
	methods, order := buildMethods([]*Recipe{
		{ID: "smelt", Produces: quantities("ingot", "slag"), Time: 2},
	})
	assert.Equal(t, []string{"produce_ingot", "produce_slag"}, order)
	assert.Equal(t, "smelt/ingot", methods["produce_ingot"][0].Name)
	assert.Equal(t, "smelt/slag", methods["produce_slag"][0].Name)
	assert.Equal(t, "slag", methods["produce_slag"][0].Meta.(*MethodMeta).Product)
}

func TestBuildMethods_SkipsRecipesWithoutNetGain(t *testing.T) {
	methods, order := buildMethods([]*Recipe{
		{ID: "swap", Produces: quantities("wood", "bark"), Consumes: quantities("wood"), Time: 0},
		{ID: "split", Produces: rules.Quantities{{Name: "plank", Qty: 4}}, Consumes: rules.Quantities{{Name: "plank", Qty: 1}}, Time: 1},
	})
	assert.Equal(t, []string{"produce_bark", "produce_plank"}, order)
	assert.Empty(t, methods["produce_wood"])
	assert.Len(t, methods["produce_plank"], 1)
}

func TestProduceMethod(t *testing.T) {
	s := NewState("s", []string{"bench"}, []string{"bench"}, "a", 1)
	task := htn.NewTask(TaskProduce, "a", "bench")

	forbid := produceMethod(map[string]bool{"bench": true}, true)
	sub, ok := forbid.Decompose(s, task)
	require.True(t, ok)
	assert.Equal(t, []htn.Task{htn.NewTask("produce_bench", "a")}, sub)

	s.Made["bench"]["a"] = true
	_, ok = forbid.Decompose(s, task)
	assert.False(t, ok)

	_, ok = produceMethod(map[string]bool{"bench": true}, false).Decompose(s, task)
	assert.True(t, ok)

	_, ok = forbid.Decompose(s, htn.NewTask(TaskProduce, "a", "gold"))
	assert.False(t, ok)
}

func TestAcquisitionMethods(t *testing.T) {
	s := NewState("s", []string{"wood"}, nil, "a", 1)
	s.Qty["wood"]["a"] = 2
	ms := acquisitionMethods()
	require.Len(t, ms, 2)

	sub, ok := ms[0].Decompose(s, htn.NewTask(TaskHaveEnough, "a", "wood", 2))
	assert.True(t, ok)
	assert.Empty(t, sub)
	_, ok = ms[0].Decompose(s, htn.NewTask(TaskHaveEnough, "a", "wood", 3))
	assert.False(t, ok)

	sub, ok = ms[1].Decompose(s, htn.NewTask(TaskHaveEnough, "a", "wood", 3))
	require.True(t, ok)
	assert.Equal(t, []htn.Task{
		htn.NewTask(TaskProduce, "a", "wood"),
		htn.NewTask(TaskHaveEnough, "a", "wood", 3),
	}, sub)

	// Held already: only check_enough may satisfy it, even after backtracking.
	_, ok = ms[1].Decompose(s, htn.NewTask(TaskHaveEnough, "a", "wood", 2))
	assert.False(t, ok)
	_, ok = ms[1].Decompose(s, htn.NewTask(TaskHaveEnough, "a", "wood", 1))
	assert.False(t, ok)
}

func TestOptionalTool_RequiresApplicableAlternative(t *testing.T) {
	punch := &Recipe{ID: "punch", Produces: quantities("wood"), Time: 4}
	chop := &Recipe{ID: "chop", Produces: quantities("wood"), Requires: quantities("axe"), Time: 1}
	g := &guard{
		goal:  map[string]bool{"wood": true},
		tools: map[string]bool{"axe": true},
		methods: map[string][]*htn.Method{
			"produce_wood": {newMethod(chop, "wood", nil), newMethod(punch, "wood", nil)},
		},
	}
	s := NewState("s", []string{"wood", "axe"}, []string{"axe"}, "a", 10)
	node := htn.Node{
		State: s,
		Task:  htn.NewTask("produce_axe", "a"),
		Chain: []htn.Task{htn.NewTask("produce_wood", "a"), htn.NewTask(TaskHaveEnough, "a", "axe", 1), htn.NewTask(TaskProduce, "a", "axe")},
	}
	assert.True(t, g.optionalTool(node))

	s.Time["a"] = 3
	assert.False(t, g.optionalTool(node), "punching no longer fits in the time left")

	s.Time["a"] = 10
	g.goal["axe"] = true
	assert.False(t, g.optionalTool(node), "goal tools are never optional")

	g.goal["axe"] = false
	node.Chain = nil
	assert.False(t, g.optionalTool(node), "no enclosing production")
}

func TestSelfRecursionAndDepth(t *testing.T) {
	task := htn.NewTask("produce_wood", "a")
	assert.True(t, selfRecursion(htn.Node{Task: task, Chain: []htn.Task{task, htn.NewTask("produce_plank", "a")}}))
	assert.False(t, selfRecursion(htn.Node{Task: task, Chain: []htn.Task{htn.NewTask("produce_wood", "b")}}))
	assert.False(t, selfRecursion(htn.Node{Task: htn.NewTask(TaskHaveEnough, "a", "wood", 1), Chain: []htn.Task{htn.NewTask(TaskHaveEnough, "a", "wood", 1)}}))

	check := depthCap(2)
	assert.False(t, check(htn.Node{Depth: 2}))
	assert.True(t, check(htn.Node{Depth: 3}))

	s := NewState("s", nil, nil, "a", 0)
	assert.False(t, negativeTime(htn.Node{State: s, Task: task}))
	s.Time["a"] = -1
	assert.True(t, negativeTime(htn.Node{State: s, Task: task}))
}
