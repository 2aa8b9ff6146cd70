// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canonical/sqlbind/internal/match"
)

func (a *app) matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match TEXT...",
		Short: "Sanitise full-text search input",
		Long: `Print TEXT as it would be bound to a "match" parameter.

Operators without an operand are dropped, unbalanced quotes and parentheses
are removed and text without any word is printed as an empty line.`,
		Example: `  # Drop the unterminated phrase
  sqlbind match 'hello "world'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			sanitized := match.Sanitize(text)
			a.logger.Debug("sanitized match expression", "input", text, "output", sanitized)
			fmt.Fprintln(cmd.OutOrStdout(), sanitized)
			return nil
		},
	}
}
