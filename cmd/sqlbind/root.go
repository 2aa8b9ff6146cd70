// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/canonical/sqlbind/internal/cli"
)

// app holds the state shared by the commands of a single invocation.
type app struct {
	// Set during PersistentPreRunE.
	cfg        *cli.Config
	configPath string
	logger     *slog.Logger

	// Persistent flags.
	cfgFile string
	verbose int
}

// Command group IDs
const (
	groupBind     = "bind"
	groupDatabase = "database"
	groupUtility  = "utility"
)

func newRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	rootCmd := &cobra.Command{
		Use:   "sqlbind",
		Short: "Bind typed parameters to SQL queries",
		Long: `sqlbind - bind typed parameters to SQL queries

sqlbind coerces named query parameters according to their type tag, expands
IN lists and sanitises full-text search input before the values reach the
database.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)

			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			var err error
			a.cfg, a.configPath, err = cli.LoadConfig(a.cfgFile)
			if err != nil {
				return cli.ConfigError("loading configuration", err)
			}
			a.logger.Debug("configuration loaded", "path", a.configPath)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: auto-discover sqlbind.yaml)")
	rootCmd.PersistentFlags().CountVarP(&a.verbose, "verbose", "v", "increase verbosity (can be repeated)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupBind, Title: "Binding:"},
		&cobra.Group{ID: groupDatabase, Title: "Database:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	matchCmd := a.matchCmd()
	matchCmd.GroupID = groupBind
	unpackCmd := a.unpackCmd()
	unpackCmd.GroupID = groupBind
	execCmd := a.execCmd()
	execCmd.GroupID = groupDatabase
	queryCmd := a.queryCmd()
	queryCmd.GroupID = groupDatabase
	configCmd := a.configCmd()
	configCmd.GroupID = groupUtility
	rootCmd.AddCommand(matchCmd, unpackCmd, execCmd, queryCmd, configCmd)

	return rootCmd
}

// newLogger returns a text logger on w. Warnings and errors are always shown,
// -v adds info and -vv adds debug messages.
func newLogger(w io.Writer, verbose int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
