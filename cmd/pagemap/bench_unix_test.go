//go:build unix

package main

import (
	"bytes"
	"context"
	"testing"

	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchCommand(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()

	var stdout, stderr bytes.Buffer
	rc := NewRootCommand(nil, &stdout, &stderr)
	rc.SetArgs([]string{"bench",
		"--path", path,
		"--pages", "16",
		"--workers", "2",
		"--iterations", "200",
		"--mapping-limit", "16KiB",
		"--log-level", "error",
		"--metrics",
	})
	require.NoError(t, rc.ExecuteContext(context.Background()), stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "verified pages")
	assert.Contains(t, out, "16 KiB", "humanized mapping limit")
	assert.Contains(t, out, "pagemap_mapping_mapped_bytes")
}
