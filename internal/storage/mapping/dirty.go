package mapping

import (
	"fmt"

	"github.com/bietkhonhungvandi212/pagemap/internal/storage/page"
	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DirtyList is an opaque reference to a dirty list. The zero DirtyList means
// "no dirty list" when passed to AddPage.
type DirtyList struct {
	idx int
	gen uint32
}

func (dl DirtyList) String() string {
	return fmt.Sprintf("dirty#%d.%d", dl.idx, dl.gen)
}

type dirtyRecord struct {
	chain   list // pages enqueued by a dirty UsePage, in enqueue order
	members int  // pages associated through AddPage
}

func (m *Manager) CreateDirtyList() (DirtyList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return DirtyList{}, util.ErrManagerClosed
	}

	idx, gen := m.dirtyLists.alloc()
	m.dirtyLists.at(idx).chain = newList()
	return DirtyList{idx: idx, gen: gen}, nil
}

func (m *Manager) lookupDirtyLocked(dl DirtyList) (*dirtyRecord, error) {
	if m.closed {
		return nil, util.ErrManagerClosed
	}
	dr := m.dirtyLists.lookup(dl.idx, dl.gen)
	if dr == nil {
		return nil, errors.Wrapf(util.ErrInvalidDirtyList, "%s", dl)
	}
	return dr, nil
}

// ClearDirtyList unlinks every enqueued page without flushing and returns how
// many there were. The pages stay associated and are enqueued again by their
// next dirty UsePage.
func (m *Manager) ClearDirtyList(dl DirtyList) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dr, err := m.lookupDirtyLocked(dl)
	if err != nil {
		return 0, err
	}
	return m.clearChainLocked(dr), nil
}

func (m *Manager) clearChainLocked(dr *dirtyRecord) int {
	n := 0
	dr.chain.walk(m.dirtyLink, func(idx int) bool {
		dr.chain.remove(idx, m.dirtyLink)
		m.pages.at(idx).flags.Clear(page.FlagDirtyQueued)
		n++
		return true
	})
	return n
}

// FlushDirtyList writes back every mapped page in the chain, in enqueue
// order, and returns the number flushed. Pages stay enqueued; unmapped ones
// are skipped. A failed flush does not stop the walk; all failures are
// returned together.
//
// The manager lock is held for the whole walk, so a synchronous flush of a
// long chain stalls every other caller.
func (m *Manager) FlushDirtyList(dl DirtyList, sync bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dr, err := m.lookupDirtyLocked(dl)
	if err != nil {
		return 0, err
	}

	flushed := 0
	var errs error
	dr.chain.walk(m.dirtyLink, func(idx int) bool {
		rec := m.pages.at(idx)
		if !rec.flags.Has(page.FlagMapped) {
			return true
		}
		if err := m.mapper.Flush(rec.region, sync); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "[mapping] [FlushDirtyList] %s", rec.desc))
			return true
		}
		flushed++
		return true
	})
	m.flushes.Add(uint64(flushed))

	m.logger.Debug("flushed dirty list",
		zap.Stringer("list", dl), zap.Bool("sync", sync),
		zap.Int("flushed", flushed), zap.Int("queued", dr.chain.len()))
	return flushed, errs
}

// DeleteDirtyList frees the list and returns how many pages were still
// enqueued. Nothing is flushed; flush first if the writes matter. Pages
// added with this list lose their association.
func (m *Manager) DeleteDirtyList(dl DirtyList) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dr, err := m.lookupDirtyLocked(dl)
	if err != nil {
		return 0, err
	}

	pending := m.clearChainLocked(dr)
	if dr.members > 0 {
		m.pages.each(func(_ int, rec *record) {
			if rec.dirtyList == dl.idx {
				rec.dirtyList = nilIdx
			}
		})
	}
	m.dirtyLists.release(dl.idx)
	return pending, nil
}
