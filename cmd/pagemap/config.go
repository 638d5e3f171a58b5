package main

import (
	"io"

	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(opts *util.Options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML.",
		Long: `Print the options after merging defaults, the config file, the
environment and flags. The output can be fed back with --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(stdout)
			enc.SetIndent(2)
			if err := enc.Encode(opts); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
