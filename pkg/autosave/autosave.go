// Package autosave saves a flow periodically while it is being edited.
//
// The saver never touches the canvas from another goroutine: a ticker
// asks the host to call Tick on its event loop, Tick takes a deep copy of
// the document there, and only the copy is handed to the save function.
package autosave

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ha1tch/flowdesigner/pkg/flow"
)

// Source is the editing state the saver watches. *canvas.Canvas
// satisfies it.
type Source interface {
	Flow() *flow.ServiceFlow
	Snapshot() *flow.ServiceFlow
	Busy() bool
	Revision() uint64
}

// SaveFunc persists a snapshot of the flow.
type SaveFunc func(ctx context.Context, f *flow.ServiceFlow) error

// Result reports the outcome of one save.
type Result struct {
	Revision uint64
	Err      error
	At       time.Time
}

// Options configures a Saver.
type Options struct {
	Timeout  time.Duration
	Logger   *slog.Logger
	OnResult func(Result) // called from the saving goroutine
}

// Saver decides when a save is due and runs it in the background.
type Saver struct {
	src  Source
	save SaveFunc
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	saved    uint64
	inFlight bool
	wg       sync.WaitGroup
}

// New returns a saver for src. The revision current at creation counts
// as saved.
func New(src Source, save SaveFunc, opts Options) *Saver {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Saver{
		src:   src,
		save:  save,
		opts:  opts,
		log:   logger,
		saved: src.Revision(),
	}
}

// Tick starts a save when the document changed since the last one. It
// must run on the goroutine that owns the source. The result reports
// whether a save was started.
func (s *Saver) Tick(ctx context.Context) bool {
	if s.src.Flow() == nil || s.src.Busy() {
		return false
	}
	rev := s.src.Revision()

	s.mu.Lock()
	if s.inFlight || rev == s.saved {
		s.mu.Unlock()
		return false
	}
	s.inFlight = true
	s.mu.Unlock()

	snap := s.src.Snapshot()
	s.wg.Add(1)
	go s.run(ctx, rev, snap)
	return true
}

func (s *Saver) run(ctx context.Context, rev uint64, snap *flow.ServiceFlow) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	err := s.save(ctx, snap)
	cancel()

	s.mu.Lock()
	s.inFlight = false
	if err == nil && rev > s.saved {
		s.saved = rev
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("autosave failed", "revision", rev, "error", err)
	} else {
		s.log.Info("autosaved", "revision", rev, "name", snap.Name)
	}
	if s.opts.OnResult != nil {
		s.opts.OnResult(Result{Revision: rev, Err: err, At: time.Now()})
	}
}

// MarkSaved records rev as persisted, e.g. after an explicit save.
func (s *Saver) MarkSaved(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev > s.saved {
		s.saved = rev
	}
}

// Dirty reports whether rev has not been saved yet.
func (s *Saver) Dirty(rev uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rev != s.saved
}

// Start calls post every interval until ctx is done. post should ask
// the event loop to call Tick.
func (s *Saver) Start(ctx context.Context, interval time.Duration, post func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				post()
			}
		}
	}()
}

// Wait blocks until the ticker and any save in flight have finished.
func (s *Saver) Wait() {
	s.wg.Wait()
}
