package htn

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNoPlan is returned by Run when every decomposition of the goals has been exhausted.
var ErrNoPlan = errors.New("no plan found")

// Stats counts search events for one Run.
type Stats struct {
	Expansions       int
	Backtracks       int
	Pruned           int
	OperatorFailures int
}

// Result is the outcome of a successful Run.
type Result struct {
	// Plan is the ordered list of primitive tasks.
	Plan []Task
	// State is the state after applying every task in Plan.
	State State
	Stats Stats
}

// frame is one pending task together with its own ancestry.
type frame struct {
	task  Task
	chain []Task
}

// Planner performs depth-first, backtracking HTN decomposition over a Domain.
//
// Invariant: domain and logger are non-nil. A Planner holds no per-run state and may
// serve concurrent Runs.
type Planner struct {
	domain *Domain
	logger *zap.Logger
}

// NewPlanner constructs a Planner.
//
// Precondition: domain must not be nil. A nil logger is replaced with zap.NewNop().
func NewPlanner(domain *Domain, logger *zap.Logger) *Planner {
	if domain == nil {
		panic("htn.NewPlanner: domain must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{domain: domain, logger: logger}
}

// Run searches for a plan achieving goals from state.
//
// Precondition: state must not be nil; it is never mutated.
// Postcondition: returns a Result on success; ErrNoPlan (with partial Stats in the
// Result) when the search is exhausted; ctx.Err() when ctx is done first.
func (p *Planner) Run(ctx context.Context, state State, goals []Task) (Result, error) {
	if state == nil {
		return Result{}, fmt.Errorf("htn.Planner.Run: state must not be nil")
	}
	if err := p.domain.Validate(); err != nil {
		return Result{}, err
	}

	frames := make([]frame, len(goals))
	for i, g := range goals {
		frames[i] = frame{task: g}
	}

	s := &search{domain: p.domain, logger: p.logger}
	plan, final, ok, err := s.seek(ctx, state, frames, nil)
	if err != nil {
		return Result{Stats: s.stats}, err
	}
	if !ok {
		p.logger.Debug("search exhausted",
			zap.String("domain", p.domain.ID),
			zap.Int("expansions", s.stats.Expansions),
			zap.Int("backtracks", s.stats.Backtracks),
		)
		return Result{Stats: s.stats}, ErrNoPlan
	}
	if plan == nil {
		plan = []Task{}
	}
	return Result{Plan: plan, State: final, Stats: s.stats}, nil
}

// search holds the mutable bookkeeping of a single Run.
type search struct {
	domain *Domain
	logger *zap.Logger
	stats  Stats
}

func (s *search) seek(ctx context.Context, state State, frames []frame, plan []Task) ([]Task, State, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, false, err
	}
	if len(frames) == 0 {
		return plan, state, true, nil
	}

	cur, rest := frames[0], frames[1:]
	s.stats.Expansions++

	node := Node{
		State:   state,
		Task:    cur.task,
		Pending: pendingTasks(rest),
		Plan:    plan,
		Depth:   len(cur.chain),
		Chain:   cur.chain,
	}

	for _, c := range s.domain.checks {
		if c.fn(node) {
			s.stats.Pruned++
			if ce := s.logger.Check(zap.DebugLevel, "pruned"); ce != nil {
				ce.Write(zap.String("task", cur.task.String()), zap.String("check", c.name), zap.Int("depth", node.Depth))
			}
			return nil, nil, false, nil
		}
	}

	if op, ok := s.domain.OperatorByID(cur.task.Name); ok {
		next, applied := op.Apply(state.Clone(), cur.task)
		if !applied {
			s.stats.OperatorFailures++
			if ce := s.logger.Check(zap.DebugLevel, "operator not applicable"); ce != nil {
				ce.Write(zap.String("task", cur.task.String()))
			}
			return nil, nil, false, nil
		}
		if ce := s.logger.Check(zap.DebugLevel, "operator applied"); ce != nil {
			ce.Write(zap.String("task", cur.task.String()), zap.Int("plan_len", len(plan)+1))
		}
		return s.seek(ctx, next, rest, append(plan[:len(plan):len(plan)], cur.task))
	}

	methods := s.domain.MethodsForTask(cur.task.Name)
	if len(methods) == 0 {
		return nil, nil, false, nil
	}
	if s.domain.ordering != nil && len(methods) > 1 {
		methods = s.domain.ordering(node, methods)
	}

	chain := make([]Task, len(cur.chain)+1)
	copy(chain, cur.chain)
	chain[len(cur.chain)] = cur.task

	for _, m := range methods {
		subtasks, ok := m.Decompose(state, cur.task)
		if !ok {
			continue
		}
		if ce := s.logger.Check(zap.DebugLevel, "expanding"); ce != nil {
			ce.Write(zap.String("task", cur.task.String()), zap.String("method", m.Name), zap.Int("depth", node.Depth))
		}
		next := make([]frame, 0, len(subtasks)+len(rest))
		for _, st := range subtasks {
			if st.Equal(cur.task) {
				// A repeat of the task being decomposed continues it; it does not nest.
				next = append(next, frame{task: st, chain: cur.chain})
				continue
			}
			next = append(next, frame{task: st, chain: chain})
		}
		next = append(next, rest...)

		found, final, ok, err := s.seek(ctx, state, next, plan)
		if err != nil {
			return nil, nil, false, err
		}
		if ok {
			return found, final, true, nil
		}
		s.stats.Backtracks++
	}
	return nil, nil, false, nil
}

func pendingTasks(frames []frame) []Task {
	out := make([]Task, len(frames))
	for i, f := range frames {
		out[i] = f.task
	}
	return out
}
