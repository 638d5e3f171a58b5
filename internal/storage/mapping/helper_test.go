package mapping

import (
	"sync"
	"testing"

	"github.com/bietkhonhungvandi212/pagemap/internal/storage/file"
	"github.com/bietkhonhungvandi212/pagemap/internal/storage/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type flushCall struct {
	data []byte
	sync bool
}

// fakeMapper hands out heap buffers instead of real mappings.
type fakeMapper struct {
	mu       sync.Mutex
	maps     int
	unmaps   int
	live     int
	flushes  []flushCall
	mapErr   error
	unmapErr error
	flushErr error
}

func (f *fakeMapper) Map(fd int, offset int64, size int, writable bool) (file.Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mapErr != nil {
		return file.Region{}, f.mapErr
	}
	f.maps++
	f.live++
	data := make([]byte, size)
	return file.Region{Data: data, Base: data, Fd: fd}, nil
}

func (f *fakeMapper) Unmap(r file.Region) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unmapErr != nil {
		return f.unmapErr
	}
	f.unmaps++
	f.live--
	return nil
}

func (f *fakeMapper) Flush(r file.Region, sync bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flushErr != nil {
		return f.flushErr
	}
	f.flushes = append(f.flushes, flushCall{data: r.Data, sync: sync})
	return nil
}

func (f *fakeMapper) flushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.flushes)
}

func newTestManager(t *testing.T, limit int64, levels int) (*Manager, *fakeMapper) {
	t.Helper()
	fm := &fakeMapper{}
	m, err := New(limit, levels, fm, WithLogger(zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))))
	require.NoError(t, err, "create manager")
	return m, fm
}

func addTestPage(t *testing.T, m *Manager, n int, priority int, dl DirtyList) Handle {
	t.Helper()
	d := page.CreateTestDescriptor(3, n, priority)
	h, err := m.AddPage(d.Fd, d.Offset, d.Size, d.Writable, d.Priority, dl)
	require.NoError(t, err, "add page %d", n)
	return h
}

func usePage(t *testing.T, m *Manager, h Handle) []byte {
	t.Helper()
	data, err := m.UsePage(h, false)
	require.NoError(t, err, "use %s", h)
	return data
}

func releasePage(t *testing.T, m *Manager, h Handle) {
	t.Helper()
	require.NoError(t, m.ReleasePage(h), "release %s", h)
}

func isMapped(t *testing.T, m *Manager, h Handle) bool {
	t.Helper()
	data, err := m.GetPageData(h)
	require.NoError(t, err)
	return data != nil
}

// checkInvariants verifies list membership and byte accounting for every live page.
func (m *Manager) checkInvariants(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	inUsed := make(map[int]bool)
	m.used.walk(m.lruLink, func(idx int) bool {
		inUsed[idx] = true
		return true
	})
	inBucket := make(map[int]int)
	for p := range m.buckets {
		m.buckets[p].walk(m.lruLink, func(idx int) bool {
			_, dup := inBucket[idx]
			assert.False(t, dup, "page %d linked in two buckets", idx)
			inBucket[idx] = p
			return true
		})
	}

	var mapped int64
	m.pages.each(func(idx int, rec *record) {
		assert.GreaterOrEqual(t, rec.refCount, 0, "page %d refCount", idx)
		bucket, unused := inBucket[idx]
		if rec.refCount > 0 {
			assert.True(t, inUsed[idx], "in-use page %d must be in the used list", idx)
			assert.False(t, unused, "in-use page %d must not be in a bucket", idx)
			assert.True(t, rec.flags.Has(page.FlagMapped), "in-use page %d must be mapped", idx)
		} else {
			assert.False(t, inUsed[idx], "unused page %d must not be in the used list", idx)
			assert.True(t, unused, "unused page %d must be in a bucket", idx)
			assert.Equal(t, rec.desc.Priority, bucket, "page %d bucket", idx)
		}
		if rec.flags.Has(page.FlagMapped) {
			mapped += int64(rec.desc.Size)
			assert.NotNil(t, rec.region.Data, "mapped page %d data", idx)
		} else {
			assert.Nil(t, rec.region.Data, "unmapped page %d data", idx)
		}
	})

	assert.Equal(t, mapped, m.mapped, "mapped bytes")
	assert.Equal(t, m.pages.len(), len(inUsed)+len(inBucket), "every page in exactly one list")
}
