// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wopr-net/wopr/pkg/plugin"
	"github.com/wopr-net/wopr/plugins/echo"
)

// builtins returns the plugins compiled into this binary.
func builtins() []*plugin.Plugin {
	return []*plugin.Plugin{
		echo.New(),
	}
}

// NewPluginsCmd creates the plugins subcommand. Each built-in plugin's CLI
// commands are surfaced as `wopr plugins <plugin> <command>`.
func NewPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect and exercise the built-in plugins",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the built-in plugins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range builtins() {
				cmd.Printf("%s %s\n", p.Name, p.Version)
			}
			return nil
		},
	})

	validate := &cobra.Command{
		Use:   "validate <plugin.yaml>",
		Short: "Validate a plugin manifest file",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidateManifest,
	}
	cmd.AddCommand(validate)

	for _, p := range builtins() {
		pluginCmd := &cobra.Command{
			Use:   p.Name,
			Short: "Commands contributed by the " + p.Name + " plugin",
		}
		for _, c := range p.Commands {
			run := c.Run
			pluginCmd.AddCommand(&cobra.Command{
				Use:   c.Name,
				Short: c.Description,
				RunE: func(cmd *cobra.Command, args []string) error {
					return run(cmd.Context(), args, cmd.OutOrStdout())
				},
			})
		}
		cmd.AddCommand(pluginCmd)
	}

	return cmd
}

func runValidateManifest(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return oops.Code("MANIFEST_UNREADABLE").With("path", args[0]).Wrap(err)
	}

	if err := plugin.ValidateManifestSchema(data); err != nil {
		cmd.PrintErrln(plugin.FormatSchemaError(err))
		return oops.Code("MANIFEST_INVALID").With("path", args[0]).Wrap(err)
	}
	if _, err := plugin.ParseManifest(data); err != nil {
		return oops.Code("MANIFEST_INVALID").With("path", args[0]).Wrap(err)
	}

	cmd.Println("manifest is valid")
	return nil
}
