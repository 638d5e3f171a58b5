package mapping

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	m, _ := newTestManager(t, ps, 2)
	low := addTestPage(t, m, 0, 0, DirtyList{})
	high := addTestPage(t, m, 1, 1, DirtyList{})
	usePage(t, m, low)
	releasePage(t, m, low)
	usePage(t, m, high) // evicts low

	c := NewCollector(m, "pagemap")
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	expected := `
# HELP pagemap_mapping_evictions_total Pages unmapped to stay under the limit.
# TYPE pagemap_mapping_evictions_total counter
pagemap_mapping_evictions_total 1
# HELP pagemap_mapping_map_calls_total Map calls since the last map count reset.
# TYPE pagemap_mapping_map_calls_total counter
pagemap_mapping_map_calls_total 2
# HELP pagemap_mapping_mapped_bytes Bytes currently mapped.
# TYPE pagemap_mapping_mapped_bytes gauge
pagemap_mapping_mapped_bytes 4096
# HELP pagemap_mapping_unused_pages Unused pages per priority level.
# TYPE pagemap_mapping_unused_pages gauge
pagemap_mapping_unused_pages{priority="0"} 1
pagemap_mapping_unused_pages{priority="1"} 0
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"pagemap_mapping_evictions_total",
		"pagemap_mapping_map_calls_total",
		"pagemap_mapping_mapped_bytes",
		"pagemap_mapping_unused_pages",
	)
	assert.NoError(t, err)

	assert.Equal(t, 11, testutil.CollectAndCount(c), "nine scalars plus one series per priority")
	assert.Equal(t, uint64(2), m.MapCount(), "collecting does not reset the map count")
}
