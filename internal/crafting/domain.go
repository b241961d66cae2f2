package crafting

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autohtn/internal/config"
	"github.com/cory-johannsen/autohtn/internal/htn"
	"github.com/cory-johannsen/autohtn/internal/rules"
)

// Options tune how a rulebook is compiled and searched.
type Options struct {
	// Agent is used when Solve is called with an empty agent.
	Agent    string
	MaxDepth int
	Weights  Weights
	// ForbidRemake vetoes producing a tool the agent has already made.
	ForbidRemake          bool
	SuppressOptionalTools bool
	// Suppressor, if non-nil, is consulted before every produce_<item> expansion.
	Suppressor Suppressor
	Logger     *zap.Logger
}

// OptionsFromConfig maps planner configuration onto Options.
//
// Precondition: cfg has passed config validation.
func OptionsFromConfig(cfg config.PlannerConfig) Options {
	deprioritize := cfg.ToolPolicy == config.ToolPolicyDeprioritize
	return Options{
		Agent:    cfg.Agent,
		MaxDepth: cfg.MaxDepth,
		Weights: Weights{
			Cycle:        cfg.CyclePenalty,
			Tool:         cfg.ToolPenalty,
			Time:         cfg.TimeWeight,
			Remake:       cfg.RemakePenalty,
			Deprioritize: deprioritize,
		},
		ForbidRemake:          !deprioritize,
		SuppressOptionalTools: cfg.SuppressOptionalTools,
	}
}

// DefaultOptions returns OptionsFromConfig over the default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Planner)
}

// Solution is a found plan.
type Solution struct {
	Agent string
	// Plan holds one op_<recipe>(agent) task per step.
	Plan  []htn.Task
	Final *State
	Stats htn.Stats
}

// Domain is a compiled rulebook: the htn.Domain plus what is needed to build states
// and goals for it.
//
// Invariant: immutable after Compile; safe for concurrent Solve calls.
type Domain struct {
	Rules   *rules.Rulebook
	recipes []*Recipe
	opts    Options
	htn     *htn.Domain
	planner *htn.Planner
	logger  *zap.Logger
}

// Compile synthesizes operators, methods, checks and ordering from rb.
//
// Precondition: rb has passed rules validation.
// Postcondition: returns a ready Domain, or an error wrapping rules.ErrInvalidRules.
func Compile(rb *rules.Rulebook, opts Options) (*Domain, error) {
	if rb == nil {
		return nil, fmt.Errorf("%w: nil rulebook", rules.ErrInvalidRules)
	}
	if opts.Agent == "" {
		opts.Agent = config.Default().Planner.Agent
	}
	if opts.MaxDepth < 1 {
		return nil, fmt.Errorf("crafting.Compile: max depth must be >= 1, got %d", opts.MaxDepth)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	recipes, err := NormalizeRecipes(rb.Recipes)
	if err != nil {
		return nil, err
	}

	hd := htn.NewDomain(domainID(rb))
	for _, r := range recipes {
		if err := hd.DeclareOperators(newOperator(r)); err != nil {
			return nil, fmt.Errorf("%w: %v", rules.ErrInvalidRules, err)
		}
	}
	if err := hd.DeclareMethods(TaskHaveEnough, acquisitionMethods()...); err != nil {
		return nil, err
	}

	methods, order := buildMethods(recipes)
	producible := make(map[string]bool, len(order))
	for _, task := range order {
		if err := hd.DeclareMethods(task, methods[task]...); err != nil {
			return nil, fmt.Errorf("%w: %v", rules.ErrInvalidRules, err)
		}
		item, _ := producedItem(htn.NewTask(task))
		producible[item] = true
	}
	if err := hd.DeclareMethods(TaskProduce, produceMethod(producible, opts.ForbidRemake)); err != nil {
		return nil, err
	}

	g := &guard{
		goal:       make(map[string]bool, len(rb.Problem.Goal)),
		tools:      make(map[string]bool, len(rb.Tools)),
		methods:    methods,
		suppressor: opts.Suppressor,
	}
	for _, e := range rb.Problem.Goal {
		g.goal[e.Name] = true
	}
	for _, t := range rb.Tools {
		g.tools[t] = true
	}

	hd.AddCheck(CheckDepth, depthCap(opts.MaxDepth))
	hd.AddCheck(CheckSelfRecurse, selfRecursion)
	hd.AddCheck(CheckNegativeTime, negativeTime)
	if opts.SuppressOptionalTools {
		hd.AddCheck(CheckOptionalTool, g.optionalTool)
	}
	if opts.Suppressor != nil {
		hd.AddCheck(CheckScript, g.script)
	}
	hd.DefineOrdering(opts.Weights.Order)

	logger.Debug("compiled domain",
		zap.String("domain", hd.ID),
		zap.Int("recipes", len(recipes)),
		zap.Int("produce_tasks", len(order)),
		zap.Strings("checks", hd.CheckNames()),
	)

	return &Domain{
		Rules:   rb,
		recipes: recipes,
		opts:    opts,
		htn:     hd,
		planner: htn.NewPlanner(hd, logger),
		logger:  logger,
	}, nil
}

func domainID(rb *rules.Rulebook) string {
	if len(rb.Digest) >= 12 {
		return "crafting-" + rb.Digest[:12]
	}
	return "crafting"
}

// ID returns the engine domain identifier.
func (d *Domain) ID() string {
	return d.htn.ID
}

// Recipes returns the normalized recipes in declaration order.
func (d *Domain) Recipes() []*Recipe {
	return d.recipes
}

// Engine exposes the underlying htn.Domain.
func (d *Domain) Engine() *htn.Domain {
	return d.htn
}

// Agent resolves an empty agent to the configured default.
func (d *Domain) Agent(agent string) string {
	if agent == "" {
		return d.opts.Agent
	}
	return agent
}

// InitialState builds the Problem's starting state for agent.
func (d *Domain) InitialState(agent string) *State {
	agent = d.Agent(agent)
	s := NewState("state", d.Rules.Vocabulary(), d.Rules.Tools, agent, d.Rules.Problem.Time)
	for _, e := range d.Rules.Problem.Initial {
		s.Qty[e.Name][agent] = e.Qty
	}
	return s
}

// Goals translates the Problem goal 1:1 into have_enough tasks, in declaration order.
func (d *Domain) Goals(agent string) []htn.Task {
	agent = d.Agent(agent)
	out := make([]htn.Task, 0, len(d.Rules.Problem.Goal))
	for _, e := range d.Rules.Problem.Goal {
		out = append(out, htn.NewTask(TaskHaveEnough, agent, e.Name, e.Qty))
	}
	return out
}

// Solve plans the Problem for agent from its initial state.
//
// Postcondition: returns a Solution, htn.ErrNoPlan when the goal is unreachable, or
// ctx.Err() when cancelled. Stats are filled in every case.
func (d *Domain) Solve(ctx context.Context, agent string) (Solution, error) {
	return d.SolveFrom(ctx, d.InitialState(agent), agent)
}

// SolveFrom plans the Problem goal for agent from start. start is not mutated.
func (d *Domain) SolveFrom(ctx context.Context, start *State, agent string) (Solution, error) {
	agent = d.Agent(agent)
	res, err := d.planner.Run(ctx, start, d.Goals(agent))
	sol := Solution{Agent: agent, Stats: res.Stats}
	if err != nil {
		return sol, err
	}
	sol.Plan = res.Plan
	sol.Final = res.State.(*State)
	return sol, nil
}
