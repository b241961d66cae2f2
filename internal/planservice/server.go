package planservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/autohtn/internal/crafting"
	"github.com/cory-johannsen/autohtn/internal/htn"
	"github.com/cory-johannsen/autohtn/internal/observability"
	"github.com/cory-johannsen/autohtn/internal/rules"
	"github.com/cory-johannsen/autohtn/internal/storage/postgres"
)

// RulebookStore loads stored rulebooks by name.
type RulebookStore interface {
	// Load returns postgres.ErrRulebookNotFound for unknown names.
	Load(ctx context.Context, name string) (*rules.Rulebook, error)
}

// Server implements PlannerServer over a crafting.Registry.
type Server struct {
	registry *crafting.Registry
	store    RulebookStore
	metrics  *observability.Metrics
	logger   *zap.Logger
	timeout  time.Duration
}

// NewServer creates a plan Server.
//
// Precondition: registry must be non-nil. store may be nil, in which case requests
// naming a stored rulebook fail with FailedPrecondition. metrics may be nil.
// timeout <= 0 leaves the caller's deadline as the only bound.
func NewServer(registry *crafting.Registry, store RulebookStore, metrics *observability.Metrics, logger *zap.Logger, timeout time.Duration) *Server {
	if registry == nil {
		panic("planservice.NewServer: registry must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		registry: registry,
		store:    store,
		metrics:  metrics,
		logger:   logger,
		timeout:  timeout,
	}
}

// Plan compiles (or reuses) the requested rulebook and searches for a plan.
//
// Postcondition: an unsatisfiable goal is a successful response with found=false.
// Input errors map to InvalidArgument, unknown stored rulebooks to NotFound and
// expired deadlines to DeadlineExceeded.
func (s *Server) Plan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))

	req, err := ParseRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rb, err := s.rulebook(ctx, req)
	if err != nil {
		return nil, err
	}

	d, cached, err := s.registry.GetOrCompile(rb)
	if err != nil {
		if errors.Is(err, rules.ErrInvalidRules) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sol, err := d.Solve(ctx, req.Agent)
	elapsed := time.Since(start)
	resp := Response{RunID: runID, Stats: sol.Stats}

	switch {
	case err == nil:
		resp.Found = true
		resp.Steps = make([]string, len(sol.Plan))
		for i, step := range sol.Plan {
			resp.Steps[i] = step.String()
		}
		resp.TimeLeft = sol.Final.TimeLeft(sol.Agent)
		resp.Inventory = sol.Final.Holdings(sol.Agent)
		s.observe(observability.ResultFound, sol.Stats, len(sol.Plan), elapsed)
	case errors.Is(err, htn.ErrNoPlan):
		s.observe(observability.ResultNoPlan, sol.Stats, 0, elapsed)
	case errors.Is(err, context.DeadlineExceeded):
		s.observe(observability.ResultCanceled, sol.Stats, 0, elapsed)
		return nil, status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		s.observe(observability.ResultCanceled, sol.Stats, 0, elapsed)
		return nil, status.Error(codes.Canceled, err.Error())
	default:
		s.observe(observability.ResultError, sol.Stats, 0, elapsed)
		return nil, status.Error(codes.Internal, err.Error())
	}

	logger.Info("plan request",
		zap.String("domain", d.ID()),
		zap.Bool("cached", cached),
		zap.String("agent", sol.Agent),
		zap.Bool("found", resp.Found),
		zap.Int("steps", len(resp.Steps)),
		zap.Int("expansions", sol.Stats.Expansions),
		zap.Duration("elapsed", elapsed),
	)

	out, err := resp.Struct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) rulebook(ctx context.Context, req Request) (*rules.Rulebook, error) {
	if req.RulesJSON != "" {
		rb, err := rules.Parse([]byte(req.RulesJSON))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return rb, nil
	}
	if s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "no rulebook store configured")
	}
	rb, err := s.store.Load(ctx, req.Rulebook)
	switch {
	case err == nil:
		return rb, nil
	case errors.Is(err, postgres.ErrRulebookNotFound):
		return nil, status.Errorf(codes.NotFound, "rulebook %q not found", req.Rulebook)
	case errors.Is(err, rules.ErrInvalidRules):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	default:
		return nil, status.Error(codes.Unavailable, err.Error())
	}
}

func (s *Server) observe(result string, stats htn.Stats, steps int, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveSearch(result, stats, steps, elapsed)
	}
}
