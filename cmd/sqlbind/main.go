// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Command sqlbind binds typed parameters to SQL queries from the command line.
//
// The CLI supports:
//   - match: sanitise text for a full-text search MATCH
//   - unpack: expand "in" parameters and print the rewritten query
//   - exec: run statements with bound parameters
//   - query: run statements and print the rows of the last one
//   - config show: print the effective configuration
//
// Bindings are read from a YAML or JSON file given with --bindings, where a
// typed value is written as [value, type], and from --set placeholder=value
// flags.
package main

import (
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canonical/sqlbind/internal/cli"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		cli.ExitWithError(os.Stderr, err)
	}
}
