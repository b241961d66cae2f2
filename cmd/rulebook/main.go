// Package main provides a CLI tool for managing the rulebooks stored in PostgreSQL.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/autohtn/internal/config"
	"github.com/cory-johannsen/autohtn/internal/rules"
	"github.com/cory-johannsen/autohtn/internal/storage/postgres"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type repoFunc func(ctx context.Context, repo *postgres.RulebookRepository) error

func newRootCmd(stdout io.Writer) *cobra.Command {
	var (
		configPath string
		timeout    time.Duration
	)

	// withRepo connects, runs fn and disconnects.
	withRepo := func(cmd *cobra.Command, fn repoFunc) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		return fn(ctx, postgres.NewRulebookRepository(pool.DB()))
	}

	root := &cobra.Command{
		Use:          "rulebook",
		Short:        "Manage stored crafting rulebooks",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/dev.yaml", "path to configuration file")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "database operation timeout")

	var create bool
	put := &cobra.Command{
		Use:   "put <name> <rules-file>",
		Short: "Validate a rulebook file and store it under name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			rb, err := rules.LoadFile(args[1])
			if err != nil {
				return err
			}
			return withRepo(cmd, func(ctx context.Context, repo *postgres.RulebookRepository) error {
				store := repo.Put
				if create {
					store = repo.Create
				}
				stored, err := store(ctx, args[0], rb)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "stored %s digest=%s recipes=%d [%s]\n",
					stored.Name, stored.Digest, len(rb.Recipes), time.Since(start))
				return nil
			})
		},
	}
	put.Flags().BoolVar(&create, "create", false, "fail if a rulebook with this name already exists")

	get := &cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored rulebook's JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, func(ctx context.Context, repo *postgres.RulebookRepository) error {
				stored, err := repo.Get(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(stdout, string(stored.Document))
				return err
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored rulebooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepo(cmd, func(ctx context.Context, repo *postgres.RulebookRepository) error {
				all, err := repo.List(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tDIGEST\tUPDATED")
				for _, s := range all {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Digest[:12], s.UpdatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored rulebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, func(ctx context.Context, repo *postgres.RulebookRepository) error {
				if err := repo.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "deleted %s\n", args[0])
				return nil
			})
		},
	}

	root.AddCommand(put, get, list, del)
	return root
}
