// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wopr-net/wopr/pkg/plugin"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the plugin manifest JSON Schema",
		Long: `Print the JSON Schema that plugin.yaml files are validated
against, for editor integration and CI checks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := plugin.ManifestSchema()
			if err != nil {
				return oops.Code("SCHEMA_GENERATION_FAILED").Wrap(err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
}
