package corpus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trezcool/insights/core"
)

// DefaultDebounce is the quiet period before a triggered rebuild starts.
const DefaultDebounce = time.Second

type (
	// Policy decides what happens to a trigger arriving while a rebuild runs.
	Policy string

	// State of the Rebuilder.
	State int

	// Builder builds snapshots. It is implemented by Scanner.
	Builder interface {
		Scan(ctx context.Context) (Snapshot, error)
	}

	RebuildOptions struct {
		Debounce time.Duration
		Policy   Policy
	}
)

const (
	// PolicyCoalesce runs one more rebuild after the current one, however many triggers arrived meanwhile.
	PolicyCoalesce Policy = "coalesce"
	// PolicyDrop ignores triggers while a rebuild runs.
	PolicyDrop Policy = "drop"
)

const (
	StateIdle State = iota
	StateRebuilding
	StateRebuildPending
)

func (s State) String() string {
	switch s {
	case StateRebuilding:
		return "rebuilding"
	case StateRebuildPending:
		return "rebuild_pending"
	default:
		return "idle"
	}
}

// Rebuilder is the single writer of a Store. Triggers are debounced; at most one rebuild runs at a time.
type Rebuilder struct {
	builder  Builder
	store    *Store
	logger   core.Logger
	debounce time.Duration
	policy   Policy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	scans  atomic.Int64

	mu      sync.Mutex
	state   State
	timer   *time.Timer
	gen     uint64        // trigger generation; stale timers are ignored
	done    chan struct{} // closed when the running rebuild cycle ends
	lastErr error
	closed  bool
}

func NewRebuilder(builder Builder, store *Store, logger core.Logger, opts RebuildOptions) *Rebuilder {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Policy != PolicyDrop {
		opts.Policy = PolicyCoalesce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Rebuilder{
		builder:  builder,
		store:    store,
		logger:   logger,
		debounce: opts.Debounce,
		policy:   opts.Policy,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Trigger requests a rebuild once no other trigger arrived for the debounce period.
func (r *Rebuilder) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.timer = time.AfterFunc(r.debounce, func() { r.fire(gen) })
}

func (r *Rebuilder) fire(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || gen != r.gen {
		return
	}
	r.timer = nil

	switch r.state {
	case StateIdle:
		r.start()
	case StateRebuilding:
		if r.policy == PolicyDrop {
			r.logger.Debug("rebuild already running, trigger dropped")
			return
		}
		r.state = StateRebuildPending
	}
}

// RebuildNow rebuilds and waits for the result. When a rebuild is running, one more is queued and waited for.
func (r *Rebuilder) RebuildNow(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	switch r.state {
	case StateIdle:
		r.start()
	case StateRebuilding:
		r.state = StateRebuildPending
	}
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start launches a rebuild cycle. r.mu must be held.
func (r *Rebuilder) start() {
	r.state = StateRebuilding
	r.done = make(chan struct{})
	r.wg.Add(1)
	go r.run()
}

func (r *Rebuilder) run() {
	defer r.wg.Done()
	for {
		err := r.rebuild()

		r.mu.Lock()
		r.lastErr = err
		if r.state == StateRebuildPending && !r.closed {
			r.state = StateRebuilding
			r.mu.Unlock()
			continue
		}
		r.state = StateIdle
		close(r.done)
		r.mu.Unlock()
		return
	}
}

func (r *Rebuilder) rebuild() error {
	r.scans.Add(1)
	snap, err := r.builder.Scan(r.ctx)
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Error("corpus rebuild failed", err)
		}
		return err
	}
	if err = r.store.Swap(snap); err != nil {
		return err
	}
	r.logger.Info(fmt.Sprintf(
		"corpus rebuilt: %d records from %d files (%d skipped, %d rows dropped) in %s",
		len(snap.Records), snap.FilesScanned, snap.FilesSkipped, snap.RecordsDropped, snap.Duration.Round(time.Millisecond),
	))
	return nil
}

// State returns the current state.
func (r *Rebuilder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Scans returns the number of scans started so far.
func (r *Rebuilder) Scans() int {
	return int(r.scans.Load())
}

// Close cancels pending triggers and the running rebuild, and waits for it to return.
func (r *Rebuilder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}
