// Package mapping multiplexes a process-wide budget of memory mappings
// across many file-backed pages.
//
// Pages are registered with AddPage and mapped on demand by UsePage. Unused
// pages stay mapped until a later UsePage finds the total mapped bytes above
// the mapping limit; it then unmaps unused pages, lowest priority first and
// least recently released first within a priority. The limit is a soft
// budget: a UsePage is never refused because of it.
//
// All operations are safe for concurrent use, except that RemovePage must not
// race with other operations on the same page.
package mapping

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bietkhonhungvandi212/pagemap/internal/storage/file"
	"github.com/bietkhonhungvandi212/pagemap/internal/storage/page"
	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Handle is an opaque reference to a registered page. The zero Handle is never valid.
type Handle struct {
	idx int
	gen uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("page#%d.%d", h.idx, h.gen)
}

type record struct {
	desc      page.Descriptor
	region    file.Region
	flags     page.Flags
	refCount  int
	lru       link // priority bucket or used list
	dirty     link // dirty list chain
	dirtyList int  // dirty list slot, nilIdx if none
}

type Manager struct {
	mu         sync.Mutex
	pages      arena[record]
	dirtyLists arena[dirtyRecord]
	buckets    []list // unused pages, one per priority level
	used       list   // pages with refCount > 0
	levels     int
	mapped     int64 // bytes currently mapped
	closed     bool

	mappingLimit atomic.Int64
	mapCount     atomic.Uint64
	evictions    atomic.Uint64
	flushes      atomic.Uint64

	mapper file.Mapper
	logger *zap.Logger
}

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCapacity presizes the page arena.
func WithCapacity(pages int) Option {
	return func(m *Manager) {
		if pages > 0 {
			m.pages = newArena[record](pages)
		}
	}
}

func New(mappingLimit int64, numPriorityLevels int, mapper file.Mapper, opts ...Option) (*Manager, error) {
	if numPriorityLevels <= 0 {
		return nil, errors.Wrapf(util.ErrInvalidPriorityLevels, "got %d", numPriorityLevels)
	}
	if mapper == nil {
		return nil, util.ErrNilMapper
	}

	m := &Manager{
		pages:      newArena[record](0),
		dirtyLists: newArena[dirtyRecord](0),
		buckets:    make([]list, numPriorityLevels),
		used:       newList(),
		levels:     numPriorityLevels,
		mapper:     mapper,
		logger:     zap.NewNop(),
	}
	for i := range m.buckets {
		m.buckets[i] = newList()
	}
	m.mappingLimit.Store(mappingLimit)

	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("mapping")

	return m, nil
}

// NewFromOptions builds a manager from validated options.
func NewFromOptions(o util.Options, mapper file.Mapper, opts ...Option) (*Manager, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	limit, err := o.LimitBytes()
	if err != nil {
		return nil, err
	}
	return New(limit, o.PriorityLevels, mapper, append([]Option{WithCapacity(o.Pages)}, opts...)...)
}

/* REGISTER */

// AddPage registers [offset, offset+size) of fd at the given priority and
// returns its handle. The page starts unused and unmapped, at the back of its
// priority bucket. A non-zero dl associates the page with that dirty list;
// the page joins the list chain on its first dirty UsePage.
func (m *Manager) AddPage(fd int, offset int64, size int, writable bool, priority int, dl DirtyList) (Handle, error) {
	desc := page.Descriptor{Fd: fd, Offset: offset, Size: size, Writable: writable, Priority: priority}
	if err := desc.Validate(m.levels); err != nil {
		return Handle{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Handle{}, util.ErrManagerClosed
	}

	dirtyIdx := nilIdx
	if dl != (DirtyList{}) {
		dr := m.dirtyLists.lookup(dl.idx, dl.gen)
		if dr == nil {
			return Handle{}, errors.Wrapf(util.ErrInvalidDirtyList, "%s", dl)
		}
		dr.members++
		dirtyIdx = dl.idx
	}

	idx, gen := m.pages.alloc()
	rec := m.pages.at(idx)
	rec.desc = desc
	rec.refCount = 0
	rec.lru = unlinked()
	rec.dirty = unlinked()
	rec.dirtyList = dirtyIdx

	m.buckets[priority].pushBack(idx, m.lruLink)

	return Handle{idx: idx, gen: gen}, nil
}

/* USE / RELEASE */

// UsePage pins the page, mapping it first if needed, and returns its bytes.
// The slice stays valid until the page is released and then evicted, or removed.
// With dirty set, the page joins the chain of the dirty list it was added with.
func (m *Manager) UsePage(h Handle, dirty bool) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, util.ErrManagerClosed
	}
	rec := m.pages.lookup(h.idx, h.gen)
	if rec == nil {
		return nil, errors.Wrapf(util.ErrInvalidHandle, "%s", h)
	}
	if dirty && rec.dirtyList == nilIdx {
		return nil, errors.Wrapf(util.ErrNoDirtyList, "%s", h)
	}

	// Map before touching any list so a failure leaves the page as it was.
	if !rec.flags.Has(page.FlagMapped) {
		region, err := m.mapper.Map(rec.desc.Fd, rec.desc.Offset, rec.desc.Size, rec.desc.Writable)
		if err != nil {
			if !errors.Is(err, util.ErrMapFailed) {
				err = errors.WithStack(fmt.Errorf("%w: %w", util.ErrMapFailed, err))
			}
			return nil, errors.Wrapf(err, "[mapping] [UsePage] %s (%s)", h, rec.desc)
		}
		rec.region = region
		rec.flags.Set(page.FlagMapped)
		m.mapped += int64(rec.desc.Size)
		m.mapCount.Add(1)
		m.logger.Debug("mapped page", zap.Stringer("handle", h), zap.Stringer("page", rec.desc))
	}

	if rec.refCount == 0 {
		m.buckets[rec.desc.Priority].remove(h.idx, m.lruLink)
		m.used.pushBack(h.idx, m.lruLink)
		rec.flags.Set(page.FlagInUse)
	}
	rec.refCount++

	if dirty && !rec.flags.Has(page.FlagDirtyQueued) {
		m.dirtyLists.at(rec.dirtyList).chain.pushBack(h.idx, m.dirtyLink)
		rec.flags.Set(page.FlagDirtyQueued)
	}

	if limit := m.mappingLimit.Load(); m.mapped > limit {
		m.evictLocked(limit)
	}

	return rec.region.Data, nil
}

// ReleasePage unpins the page. At zero uses it moves to the back of its
// priority bucket and becomes evictable; it is not unmapped here.
func (m *Manager) ReleasePage(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return util.ErrManagerClosed
	}
	rec := m.pages.lookup(h.idx, h.gen)
	if rec == nil {
		return errors.Wrapf(util.ErrInvalidHandle, "%s", h)
	}
	if rec.refCount == 0 {
		return errors.Wrapf(util.ErrPageNotInUse, "%s", h)
	}

	rec.refCount--
	if rec.refCount == 0 {
		m.used.remove(h.idx, m.lruLink)
		m.buckets[rec.desc.Priority].pushBack(h.idx, m.lruLink)
		rec.flags.Clear(page.FlagInUse)
	}
	return nil
}

// RemovePage unregisters the page whatever its use count, unmapping it if
// mapped. Slices returned by UsePage for it must no longer be touched. The
// bookkeeping is always dropped; an unmap failure is still reported.
func (m *Manager) RemovePage(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return util.ErrManagerClosed
	}
	if m.pages.lookup(h.idx, h.gen) == nil {
		return errors.Wrapf(util.ErrInvalidHandle, "%s", h)
	}
	return m.removeLocked(h.idx)
}

func (m *Manager) removeLocked(idx int) error {
	rec := m.pages.at(idx)

	if rec.refCount > 0 {
		m.used.remove(idx, m.lruLink)
	} else {
		m.buckets[rec.desc.Priority].remove(idx, m.lruLink)
	}

	if rec.dirtyList != nilIdx {
		dr := m.dirtyLists.at(rec.dirtyList)
		if rec.flags.Has(page.FlagDirtyQueued) {
			dr.chain.remove(idx, m.dirtyLink)
			rec.flags.Clear(page.FlagDirtyQueued)
		}
		dr.members--
	}

	var err error
	if rec.flags.Has(page.FlagMapped) {
		if err = m.mapper.Unmap(rec.region); err != nil {
			err = errors.Wrapf(err, "[mapping] [RemovePage] %s", rec.desc)
		}
		m.dropMappingLocked(rec)
	}

	m.pages.release(idx)
	return err
}

/* EVICT */

// evictLocked unmaps unused pages, lowest priority and oldest first, until
// the mapped bytes fit in limit or nothing evictable is left.
func (m *Manager) evictLocked(limit int64) {
	for p := 0; p < m.levels && m.mapped > limit; p++ {
		m.buckets[p].walk(m.lruLink, func(idx int) bool {
			rec := m.pages.at(idx)
			if rec.refCount != 0 || !rec.flags.Has(page.FlagMapped) {
				return true
			}

			if err := m.evictPageLocked(rec); err != nil {
				m.logger.Warn("evict page failed", zap.Stringer("page", rec.desc), zap.Error(err))
				return true
			}
			m.evictions.Add(1)
			m.logger.Debug("evicted page", zap.Stringer("page", rec.desc), zap.Int64("mapped", m.mapped))
			return m.mapped > limit
		})
	}

	if m.mapped > limit {
		m.logger.Debug("mapping limit exceeded, no evictable pages",
			zap.Int64("mapped", m.mapped), zap.Int64("limit", limit))
	}
}

// evictPageLocked writes back a queued dirty page, then unmaps it. The page
// stays in its bucket.
func (m *Manager) evictPageLocked(rec *record) error {
	if rec.flags.Has(page.FlagDirtyQueued) {
		if err := m.mapper.Flush(rec.region, true); err != nil {
			return errors.Wrap(err, "flush before evict")
		}
		m.flushes.Add(1)
	}

	if err := m.mapper.Unmap(rec.region); err != nil {
		return err
	}
	m.dropMappingLocked(rec)
	return nil
}

func (m *Manager) dropMappingLocked(rec *record) {
	m.mapped -= int64(rec.desc.Size)
	rec.region = file.Region{}
	rec.flags.Clear(page.FlagMapped)
}

/* ACCESSORS */

// GetPageData returns the mapped bytes of the page, or nil if it is not mapped.
func (m *Manager) GetPageData(h Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.pages.lookup(h.idx, h.gen)
	if rec == nil {
		return nil, errors.Wrapf(util.ErrInvalidHandle, "%s", h)
	}
	return rec.region.Data, nil
}

func (m *Manager) GetPageUseCount(h Handle) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.pages.lookup(h.idx, h.gen)
	if rec == nil {
		return 0, errors.Wrapf(util.ErrInvalidHandle, "%s", h)
	}
	return rec.refCount, nil
}

// MappingLimit is read without the manager lock.
func (m *Manager) MappingLimit() int64 {
	return m.mappingLimit.Load()
}

// SetMappingLimit takes effect at the next UsePage; nothing is unmapped now.
func (m *Manager) SetMappingLimit(limit int64) {
	m.mappingLimit.Store(limit)
}

// MapCount is the number of map calls since creation or the last reset.
func (m *Manager) MapCount() uint64 {
	return m.mapCount.Load()
}

// MapCountReset zeroes the map count and returns its previous value.
func (m *Manager) MapCountReset() uint64 {
	return m.mapCount.Swap(0)
}

func (m *Manager) NumPriorityLevels() int {
	return m.levels
}

func (m *Manager) TotalMappedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapped
}

type Stats struct {
	MappedBytes  int64
	MappingLimit int64
	MapCount     uint64
	Evictions    uint64
	Flushes      uint64
	Pages        int
	MappedPages  int
	PagesInUse   int
	Unused       []int // unused pages per priority level
	DirtyLists   int
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		MappedBytes:  m.mapped,
		MappingLimit: m.mappingLimit.Load(),
		MapCount:     m.mapCount.Load(),
		Evictions:    m.evictions.Load(),
		Flushes:      m.flushes.Load(),
		Pages:        m.pages.len(),
		PagesInUse:   m.used.len(),
		Unused:       make([]int, m.levels),
		DirtyLists:   m.dirtyLists.len(),
	}
	for i := range m.buckets {
		s.Unused[i] = m.buckets[i].len()
	}
	m.pages.each(func(_ int, rec *record) {
		if rec.flags.Has(page.FlagMapped) {
			s.MappedPages++
		}
	})
	return s
}

/**
* CLOSE FUNCTION
**/

// Close removes every remaining page and dirty list. Later calls on the
// manager return ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	var err error
	removed := 0
	m.pages.each(func(idx int, _ *record) {
		err = multierr.Append(err, m.removeLocked(idx))
		removed++
	})
	m.dirtyLists.each(func(idx int, _ *dirtyRecord) {
		m.dirtyLists.release(idx)
	})
	m.closed = true

	m.logger.Info("mapping manager closed",
		zap.Int("removedPages", removed),
		zap.Uint64("evictions", m.evictions.Load()),
		zap.Uint64("flushes", m.flushes.Load()))
	return err
}

func (m *Manager) lruLink(idx int) *link {
	return &m.pages.at(idx).lru
}

func (m *Manager) dirtyLink(idx int) *link {
	return &m.pages.at(idx).dirty
}
