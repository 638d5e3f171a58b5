// Package bench drives a mapping manager over a real file: workers pin pages,
// write versioned patterns into some of them, and the result is checked
// against the file after a synchronous flush of the dirty list.
package bench

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/bietkhonhungvandi212/pagemap/internal/storage/file"
	"github.com/bietkhonhungvandi212/pagemap/internal/storage/mapping"
	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/zeebo/blake3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrCorruptPage = errors.New("page content mismatch")

type Result struct {
	Pages      int
	Workers    int
	Uses       uint64
	DirtyUses  uint64
	Flushed    int
	Verified   int
	Duration   time.Duration
	Stats      mapping.Stats
	Metrics    []byte // prometheus text exposition, when enabled
	FileDigest [32]byte
}

type pageState struct {
	handle  mapping.Handle
	offset  int64
	version uint64
	digest  [32]byte
}

type runner struct {
	o      util.Options
	fm     *file.FileManager
	m      *mapping.Manager
	dl     mapping.DirtyList
	pages  []pageState
	uses   atomic.Uint64
	dirty  atomic.Uint64
	logger *zap.Logger
}

// Run executes the workload described by o against o.Path.
func Run(ctx context.Context, o util.Options, mapper file.Mapper, logger *zap.Logger) (res *Result, err error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("bench")

	fm, err := file.NewFileManager(o.Path, int64(o.Pages)*int64(o.PageSize))
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, fm.Close()) }()

	m, err := mapping.NewFromOptions(o, mapper, mapping.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, m.Close()) }()

	r := &runner{o: o, fm: fm, m: m, logger: logger}
	if err := r.register(); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := r.work(ctx); err != nil {
		return nil, err
	}

	flushed, err := m.FlushDirtyList(r.dl, true)
	if err != nil {
		return nil, errors.Wrap(err, "flush dirty list")
	}
	elapsed := time.Since(start)

	verified, fileDigest, err := r.verify()
	if err != nil {
		return nil, err
	}

	res = &Result{
		Pages:      o.Pages,
		Workers:    o.Workers,
		Uses:       r.uses.Load(),
		DirtyUses:  r.dirty.Load(),
		Flushed:    flushed,
		Verified:   verified,
		Duration:   elapsed,
		Stats:      m.Stats(),
		FileDigest: fileDigest,
	}
	if o.Metrics {
		if res.Metrics, err = exposition(m); err != nil {
			return nil, err
		}
	}

	logger.Info("bench finished",
		zap.Int("pages", res.Pages),
		zap.Uint64("uses", res.Uses),
		zap.Uint64("evictions", res.Stats.Evictions),
		zap.Duration("elapsed", elapsed))
	return res, nil
}

// register adds every page with the dirty list and records the digest of its
// current on-disk bytes.
func (r *runner) register() error {
	dl, err := r.m.CreateDirtyList()
	if err != nil {
		return err
	}
	r.dl = dl

	size := r.o.PageSize
	buf := make([]byte, size)
	r.pages = make([]pageState, r.o.Pages)
	for i := range r.pages {
		offset := int64(i) * int64(size)
		h, err := r.m.AddPage(r.fm.Fd(), offset, size, true, i%r.o.PriorityLevels, dl)
		if err != nil {
			return errors.Wrapf(err, "add page %d", i)
		}
		if err := r.fm.ReadAt(buf, offset); err != nil {
			return err
		}
		r.pages[i] = pageState{handle: h, offset: offset, digest: blake3.Sum256(buf)}
	}
	return nil
}

// work runs the workers. Page i belongs to worker i%Workers, so no two
// goroutines ever touch the same mapping.
func (r *runner) work(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < r.o.Workers; w++ {
		var own []int
		for i := w; i < len(r.pages); i += r.o.Workers {
			own = append(own, i)
		}
		if len(own) == 0 {
			continue
		}

		rng := rand.New(rand.NewSource(int64(w) + 1))
		g.Go(func() error {
			for n := 0; n < r.o.Iterations; n++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := r.step(own[rng.Intn(len(own))], rng.Float64() < r.o.DirtyRatio); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// step pins one page. A dirty step writes the next version of the page's
// pattern; a clean step checks the bytes still match the last version.
func (r *runner) step(i int, dirty bool) (err error) {
	p := &r.pages[i]
	data, err := r.m.UsePage(p.handle, dirty)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, r.m.ReleasePage(p.handle)) }()

	r.uses.Add(1)
	if dirty {
		r.dirty.Add(1)
		p.version++
		fillPattern(data, uint64(i), p.version)
		p.digest = blake3.Sum256(data)
		return nil
	}

	if blake3.Sum256(data) != p.digest {
		return errors.Wrapf(ErrCorruptPage, "page %d version %d in memory", i, p.version)
	}
	return nil
}

// verify compares the file against the expected page digests and returns a
// digest of the whole file.
func (r *runner) verify() (int, [32]byte, error) {
	var sum [32]byte
	h := blake3.New()
	buf := make([]byte, r.o.PageSize)
	for i := range r.pages {
		p := &r.pages[i]
		if err := r.fm.ReadAt(buf, p.offset); err != nil {
			return i, sum, err
		}
		if blake3.Sum256(buf) != p.digest {
			return i, sum, errors.Wrapf(ErrCorruptPage, "page %d version %d on disk", i, p.version)
		}
		h.Write(buf)
	}
	copy(sum[:], h.Sum(nil))
	return len(r.pages), sum, nil
}

// fillPattern writes a pattern derived from the page number and version.
func fillPattern(data []byte, page, version uint64) {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[:8], page)
	binary.LittleEndian.PutUint64(key[8:], version)
	seed := xxhash.Sum64(key[:])

	k := 0
	for ; k+8 <= len(data); k += 8 {
		binary.LittleEndian.PutUint64(data[k:], seed+uint64(k))
	}
	for ; k < len(data); k++ {
		data[k] = byte(seed >> (k % 8 * 8))
	}
}

func exposition(m *mapping.Manager) ([]byte, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(mapping.NewCollector(m, "pagemap")); err != nil {
		return nil, err
	}
	mfs, err := reg.Gather()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
