package util

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(o *Options)
		wantErr error
	}{
		{name: "Defaults", modify: func(o *Options) {}},
		{name: "ZeroLevels", modify: func(o *Options) { o.PriorityLevels = 0 }, wantErr: ErrInvalidPriorityLevels},
		{name: "NegativePageSize", modify: func(o *Options) { o.PageSize = -1 }, wantErr: ErrInvalidPageSize},
		{name: "NoWorkers", modify: func(o *Options) { o.Workers = 0 }, wantErr: ErrInvalidOptions},
		{name: "DirtyRatioAboveOne", modify: func(o *Options) { o.DirtyRatio = 1.5 }, wantErr: ErrInvalidOptions},
		{name: "BadLimit", modify: func(o *Options) { o.MappingLimit = "lots" }, wantErr: ErrInvalidOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.modify(&o)
			err := o.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
		})
	}
}

func TestOptionsLimitBytes(t *testing.T) {
	o := DefaultOptions()
	for in, want := range map[string]int64{
		"1MiB":  1 << 20,
		"64KiB": 64 << 10,
		"4096":  4096,
		"1GB":   1000 * 1000 * 1000,
	} {
		o.MappingLimit = in
		got, err := o.LimitBytes()
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
