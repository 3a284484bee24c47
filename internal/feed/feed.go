package feed

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"hati/internal/book"
	"hati/internal/common"
)

const DELTA_CHAN_SIZE = 256

var ErrFeedClosed = errors.New("feed closed")

// Feed is the serialization boundary in front of the order books. Books are
// single-writer structures, so the feed runs exactly one worker goroutine
// per instrument, draining that instrument's delta channel in submission
// order. Producers on any goroutine call Submit; readers take consistent
// snapshots through Snapshot or WithBook.
type Feed struct {
	t   *tomb.Tomb
	log zerolog.Logger

	workersLock sync.Mutex
	workers     map[string]*worker
}

// worker pairs one book with its delta queue. The mutex covers the book for
// the apply path and for external readers; the channel alone is not enough
// once snapshots are taken from other goroutines.
type worker struct {
	lock   sync.Mutex
	book   *book.OrderBook
	deltas chan common.Delta
}

func New(log zerolog.Logger) *Feed {
	f := &Feed{
		t:       new(tomb.Tomb),
		log:     log,
		workers: make(map[string]*worker),
	}
	// Keeper goroutine: tomb.Wait blocks forever on a tomb that never ran
	// anything, and a feed can be closed before its first Submit.
	f.t.Go(func() error {
		<-f.t.Dying()
		return nil
	})
	return f
}

// Submit queues one delta for the instrument, starting its worker on first
// sight. Blocks when the instrument's queue is full (backpressure rather
// than dropping book events). Returns ErrFeedClosed once Close has begun.
func (f *Feed) Submit(instrument string, delta common.Delta) error {
	w, err := f.worker(instrument)
	if err != nil {
		return err
	}
	select {
	case <-f.t.Dying():
		return ErrFeedClosed
	case w.deltas <- delta:
		return nil
	}
}

// Snapshot returns a detached copy of up to depth levels per side. ok is
// false for an instrument the feed has never seen.
func (f *Feed) Snapshot(instrument string, depth int) (book.BookSnapshot, bool) {
	var snap book.BookSnapshot
	ok := f.WithBook(instrument, func(b *book.OrderBook) {
		snap = b.Snapshot(depth)
	})
	return snap, ok
}

// WithBook runs fn against the instrument's book while holding its worker
// lock, so fn observes the book between deltas, never mid-mutation. fn must
// not retain the book past its return.
func (f *Feed) WithBook(instrument string, fn func(b *book.OrderBook)) bool {
	f.workersLock.Lock()
	w, ok := f.workers[instrument]
	f.workersLock.Unlock()
	if !ok {
		return false
	}

	w.lock.Lock()
	defer w.lock.Unlock()
	fn(w.book)
	return true
}

// Close stops accepting deltas, lets every worker drain what was already
// queued, and waits for them to exit. Books stay readable after Close.
func (f *Feed) Close() error {
	// Kill under the workers lock so no worker goroutine is spawned on a
	// tomb that is already dying.
	f.workersLock.Lock()
	f.t.Kill(nil)
	f.workersLock.Unlock()
	return f.t.Wait()
}

func (f *Feed) worker(instrument string) (*worker, error) {
	f.workersLock.Lock()
	defer f.workersLock.Unlock()

	select {
	case <-f.t.Dying():
		return nil, ErrFeedClosed
	default:
	}

	w, ok := f.workers[instrument]
	if !ok {
		b := book.New(instrument)
		b.SetLogger(f.log)
		w = &worker{
			book:   b,
			deltas: make(chan common.Delta, DELTA_CHAN_SIZE),
		}
		f.workers[instrument] = w
		f.t.Go(func() error {
			return f.run(w)
		})
		f.log.Info().
			Str("instrument", instrument).
			Msg("started book worker")
	}
	return w, nil
}

// run is the per-instrument apply loop. On shutdown it drains the queue
// before exiting, so every delta accepted by Submit reaches its book.
func (f *Feed) run(w *worker) error {
	for {
		select {
		case <-f.t.Dying():
			for {
				select {
				case delta := <-w.deltas:
					f.apply(w, delta)
				default:
					return nil
				}
			}
		case delta := <-w.deltas:
			f.apply(w, delta)
		}
	}
}

func (f *Feed) apply(w *worker, delta common.Delta) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if err := w.book.ApplyDelta(delta); err != nil {
		f.log.Error().
			Err(err).
			Str("instrument", w.book.Instrument()).
			Msg("dropping bad delta")
	}
}
