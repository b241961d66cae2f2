// Package main provides the autohtn command: load a crafting rulebook, plan its
// Problem and print the plan followed by the final inventory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/autohtn/internal/app"
	"github.com/cory-johannsen/autohtn/internal/config"
	"github.com/cory-johannsen/autohtn/internal/crafting"
	"github.com/cory-johannsen/autohtn/internal/htn"
	"github.com/cory-johannsen/autohtn/internal/observability"
	"github.com/cory-johannsen/autohtn/internal/rules"
	"github.com/cory-johannsen/autohtn/internal/storage/postgres"
)

const defaultRulesFile = "crafting.json"

// Exit codes.
const (
	exitOK     = 0
	exitInput  = 1
	exitNoPlan = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and maps its outcome onto an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, htn.ErrNoPlan):
		fmt.Fprintln(stderr, htn.ErrNoPlan.Error())
		return exitNoPlan
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprint(stderr, cmd.UsageString())
		return exitInput
	}
}

type flags struct {
	configPath  string
	agent       string
	verbose     bool
	traceSample int
	timeout     time.Duration
	rulebook    string
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "autohtn [rules-file]",
		Short: "Plan a crafting goal with a hierarchical task network",
		Long: "autohtn compiles the recipes of a rulebook (.json, .yaml or .yml, optionally\n" +
			".gz or .zst compressed) into an HTN domain and searches for a plan that\n" +
			"reaches the rulebook's Problem goal within its time budget.",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultRulesFile
			if len(args) == 1 {
				path = args[0]
			}
			return plan(cmd.Context(), f, path, stdout)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "configuration file (defaults plus AUTOHTN_ environment when empty)")
	cmd.Flags().StringVar(&f.agent, "agent", "", "agent name (overrides planner.agent)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log the search trace at debug level")
	cmd.Flags().IntVar(&f.traceSample, "trace-sample", 0, "with --verbose, keep the first n of each trace message per second and every nth after (0 keeps all)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "give up planning after this long (0 waits indefinitely)")
	cmd.Flags().StringVar(&f.rulebook, "rulebook", "", "load the named rulebook from the database instead of a file")
	return cmd
}

func plan(ctx context.Context, f flags, path string, stdout io.Writer) error {
	start := time.Now()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.TraceSample = f.traceSample
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	rb, err := loadRulebook(ctx, cfg, f.rulebook, path)
	if err != nil {
		return err
	}

	opts, closeScripts, err := app.PlannerOptions(cfg.Planner, rb.IsTool, logger)
	if err != nil {
		return err
	}
	defer closeScripts()

	d, err := crafting.Compile(rb, opts)
	if err != nil {
		return err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	sol, err := d.Solve(ctx, f.agent)
	logger.Debug("search finished",
		zap.Int("expansions", sol.Stats.Expansions),
		zap.Int("backtracks", sol.Stats.Backtracks),
		zap.Int("pruned", sol.Stats.Pruned),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err != nil {
		return err
	}

	for _, step := range sol.Plan {
		fmt.Fprintln(stdout, step.String())
	}
	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, sol.Final.Format(sol.Agent))
	return nil
}

func loadRulebook(ctx context.Context, cfg config.Config, name, path string) (*rules.Rulebook, error) {
	if name == "" {
		return rules.LoadFile(path)
	}
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	return postgres.NewRulebookRepository(pool.DB()).Load(ctx, name)
}
