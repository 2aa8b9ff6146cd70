// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/sqlbind"
)

func (a *app) execCmd() *cobra.Command {
	var flags bindingFlags
	cmd := &cobra.Command{
		Use:   "exec QUERY...",
		Short: "Run statements with bound parameters",
		Long: `Run each QUERY in order on the configured database, binding the same
bindings to each of them, and print the number of affected rows.`,
		Example: `  # Insert a row into a SQLite database
  sqlbind exec 'INSERT INTO person (id, name) VALUES (:id, :name)' \
    --set :name=Fred -b bindings.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := flags.load()
			if err != nil {
				return err
			}
			return a.withRunner(cmd.Context(), func(ctx context.Context, r runner) error {
				for _, query := range args {
					n, err := a.exec(ctx, r, query, bindings)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	var flags bindingFlags
	cmd := &cobra.Command{
		Use:   "query QUERY...",
		Short: "Run statements and print the rows of the last one",
		Long: `Run each QUERY in order on the configured database, binding the same
bindings to each of them. The rows returned by the last QUERY are printed as
tab-separated values.`,
		Example: `  # Query an in-memory SQLite database
  sqlbind query 'CREATE TABLE t (id integer)' 'INSERT INTO t VALUES (1), (2)' \
    'SELECT id FROM t WHERE id IN (:ids)' -b bindings.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := flags.load()
			if err != nil {
				return err
			}
			return a.withRunner(cmd.Context(), func(ctx context.Context, r runner) error {
				last := len(args) - 1
				for _, query := range args[:last] {
					if _, err := a.exec(ctx, r, query, bindings); err != nil {
						return err
					}
				}
				if err := r.Query(ctx, cmd.OutOrStdout(), args[last], bindings); err != nil {
					return statementError(args[last], err)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) exec(ctx context.Context, r runner, query string, bindings sqlbind.Bindings) (int64, error) {
	n, err := r.Exec(ctx, query, bindings)
	if err != nil {
		return 0, statementError(query, err)
	}
	a.logger.Info("statement executed", "query", query, "rows", n)
	return n, nil
}

// withRunner opens the configured database, calls f and closes the database.
func (a *app) withRunner(ctx context.Context, f func(context.Context, runner) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := a.openRunner(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			a.logger.Warn("closing database", "error", err)
		}
	}()
	return f(ctx, r)
}
