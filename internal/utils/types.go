package util

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// PageSize is the default size of a registered page (4KB)
const PageSize = 4096

// Options represents mapping manager and workload configuration
type Options struct {
	Path           string  `yaml:"path" mapstructure:"path"`
	MappingLimit   string  `yaml:"mapping-limit" mapstructure:"mapping-limit"`
	PriorityLevels int     `yaml:"priority-levels" mapstructure:"priority-levels"`
	PageSize       int     `yaml:"page-size" mapstructure:"page-size"`
	Pages          int     `yaml:"pages" mapstructure:"pages"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	Iterations     int     `yaml:"iterations" mapstructure:"iterations"`
	DirtyRatio     float64 `yaml:"dirty-ratio" mapstructure:"dirty-ratio"`
	LogLevel       string  `yaml:"log-level" mapstructure:"log-level"`
	LogFormat      string  `yaml:"log-format" mapstructure:"log-format"`
	Metrics        bool    `yaml:"metrics" mapstructure:"metrics"`
}

// DefaultOptions returns default options
func DefaultOptions() Options {
	return Options{
		Path:           "pagemap.dat",
		MappingLimit:   "1MiB", // 256 pages of 4KB
		PriorityLevels: 2,
		PageSize:       PageSize,
		Pages:          1024,
		Workers:        4,
		Iterations:     10000,
		DirtyRatio:     0.25,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// LimitBytes parses MappingLimit ("64MiB", "1GB", "4096") into bytes.
func (o Options) LimitBytes() (int64, error) {
	n, err := humanize.ParseBytes(o.MappingLimit)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidOptions, "mapping limit %q: %v", o.MappingLimit, err)
	}
	return int64(n), nil
}

func (o Options) Validate() error {
	if o.PriorityLevels <= 0 {
		return errors.Wrapf(ErrInvalidPriorityLevels, "priority levels %d", o.PriorityLevels)
	}
	if o.PageSize <= 0 {
		return errors.Wrapf(ErrInvalidPageSize, "page size %d", o.PageSize)
	}
	if o.Pages <= 0 || o.Workers <= 0 || o.Iterations < 0 {
		return errors.Wrapf(ErrInvalidOptions, "pages=%d workers=%d iterations=%d", o.Pages, o.Workers, o.Iterations)
	}
	if o.DirtyRatio < 0 || o.DirtyRatio > 1 {
		return errors.Wrapf(ErrInvalidOptions, "dirty ratio %v not in [0,1]", o.DirtyRatio)
	}
	if _, err := o.LimitBytes(); err != nil {
		return err
	}
	return nil
}
