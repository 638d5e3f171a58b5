package main

import (
	"fmt"
	"io"
	"strings"

	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PAGEMAP"

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := util.DefaultOptions()

	rc := &cobra.Command{
		Use:   "pagemap",
		Short: "Exercise a memory-mapped page manager over a file.",
		Long: `pagemap registers the pages of a file with a mapping manager that keeps
the total mapped bytes near a soft limit, evicting unused pages by priority
and age. The bench command drives it with concurrent workers and checks the
file contents afterwards.

Options come from flags, PAGEMAP_* environment variables and an optional
YAML config file, in that order of priority.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setAllConfig(viper.New(), cmd.Flags())
		},
	}

	flags := rc.PersistentFlags()
	flags.StringP("config", "c", "", "YAML configuration file to read from.")
	flags.StringVarP(&opts.Path, "path", "p", opts.Path, "Backing file.")
	flags.StringVarP(&opts.MappingLimit, "mapping-limit", "l", opts.MappingLimit, "Soft limit on mapped bytes (e.g. 64MiB).")
	flags.IntVar(&opts.PriorityLevels, "priority-levels", opts.PriorityLevels, "Number of eviction priority levels.")
	flags.IntVar(&opts.PageSize, "page-size", opts.PageSize, "Bytes per page.")
	flags.IntVarP(&opts.Pages, "pages", "n", opts.Pages, "Number of pages to register.")
	flags.IntVarP(&opts.Workers, "workers", "w", opts.Workers, "Concurrent workers.")
	flags.IntVarP(&opts.Iterations, "iterations", "i", opts.Iterations, "Page uses per worker.")
	flags.Float64Var(&opts.DirtyRatio, "dirty-ratio", opts.DirtyRatio, "Fraction of uses that write the page.")
	flags.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug, info, warn or error.")
	flags.StringVar(&opts.LogFormat, "log-format", opts.LogFormat, "Log format: console or json.")
	flags.BoolVar(&opts.Metrics, "metrics", opts.Metrics, "Print prometheus metrics after the run.")

	rc.AddCommand(newBenchCommand(&opts, stdout, stderr))
	rc.AddCommand(newConfigCommand(&opts, stdout))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setAllConfig takes a FlagSet to be the definition of all configuration
// options, as well as their defaults. It then reads from the command line, the
// environment, and a config file (if specified), and applies the configuration
// in that priority order. Each flag holds a pointer to where its value is
// stored, so the options are modified in place.
//
// Environment variables are the flag names upper-cased, with dashes replaced
// by underscores and prefixed with PAGEMAP_.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validTags := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}
		for _, key := range v.AllKeys() {
			if !validTags[key] {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			// set on the command line, highest priority
			return
		}
		if err := f.Value.Set(v.GetString(f.Name)); err != nil {
			flagErr = fmt.Errorf("invalid value for %s: %v", f.Name, err)
		}
	})
	return flagErr
}
