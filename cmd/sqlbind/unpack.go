// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/canonical/sqlbind"
	"github.com/canonical/sqlbind/internal/cli"
	"github.com/canonical/sqlbind/internal/typetag"
)

// bindingFlags are the flags of the commands that take bindings.
type bindingFlags struct {
	file string
	sets []string
}

// register adds the flags to cmd and lists the type tags in its help.
func (f *bindingFlags) register(cmd *cobra.Command) {
	cmd.Long += "\n\nA binding is a value or a [value, tag] pair. Known tags:\n  " +
		strings.Join(typetag.Tags(), ", ")
	cmd.Flags().StringVarP(&f.file, "bindings", "b", "", "YAML or JSON file of bindings")
	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "bind a string value, as placeholder=value (can be repeated)")
}

func (f *bindingFlags) load() (sqlbind.Bindings, error) {
	bindings, err := cli.LoadBindings(f.file, f.sets)
	if err != nil {
		return nil, cli.BindingsError("loading bindings", err)
	}
	return bindings, nil
}

func (a *app) unpackCmd() *cobra.Command {
	var flags bindingFlags
	cmd := &cobra.Command{
		Use:   "unpack QUERY",
		Short: "Expand IN parameters",
		Long: `Expand the "in" parameters of the bindings and print the rewritten query
together with the bindings it is run with.`,
		Example: `  # Expand a list of ids
  sqlbind unpack 'SELECT * FROM t WHERE id IN (:ids)' -b bindings.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := flags.load()
			if err != nil {
				return err
			}
			query, bindings, err := sqlbind.UnpackIN(args[0], bindings)
			if err != nil {
				return cli.BindingsError("unpacking in parameters", err)
			}
			out, err := cli.MarshalUnpacked(query, bindings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	flags.register(cmd)
	return cmd
}
