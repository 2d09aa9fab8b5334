// Package watch turns filesystem changes under the mounted content roots
// into debounced rebuilds.
//
// Watchers only enqueue. A single consumer goroutine owns the Queue: it
// registers each change immediately, counts down quiet ticks, and triggers
// exactly one rebuild per burst of changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/albertocavalcante/modlayer/internal/log"
)

// ErrQueueClosed is returned when submitting to a closed queue.
var ErrQueueClosed = errors.New("queue closed")

// ErrQueueFull is returned by TrySubmit when the queue has no room.
var ErrQueueFull = errors.New("queue full")

// Op is the kind of change an event reports.
type Op uint8

const (
	OpCreate Op = iota + 1
	OpWrite
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	default:
		return fmt.Sprintf("Op(%d)", o)
	}
}

// Event is a change to one logical path.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// State is the queue's debounce state.
type State int

const (
	StateIdle State = iota
	StatePendingDebounce
	StateDraining
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingDebounce:
		return "pending"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Defaults for QueueConfig.
const (
	DefaultDebounceTicks = 6
	DefaultCapacity      = 1024
	DefaultMaxAttempts   = 5
)

// QueueConfig configures a Queue.
type QueueConfig struct {
	// DebounceTicks is the number of quiet ticks before a rebuild.
	DebounceTicks int

	// Capacity bounds the event channel. Submit blocks when it is full.
	Capacity int

	// MaxAttempts bounds Prepare retries for one entry. After that the
	// entry is released to the rebuild anyway.
	MaxAttempts int

	// Prepare registers a change cheaply, right when it arrives.
	Prepare func(Event) error

	// Rebuild runs once per quiet period with the drained paths.
	Rebuild func(paths []string) error
}

// Stats counts queue activity.
type Stats struct {
	Received        int `json:"received"`
	Deduplicated    int `json:"deduplicated"`
	PrepareFailures int `json:"prepare_failures"`
	Released        int `json:"released"`
	Rebuilds        int `json:"rebuilds"`
	RebuildFailures int `json:"rebuild_failures"`
	Pending         int `json:"pending"`
}

type entry struct {
	ev       Event
	prepared bool
	attempts int
}

type call struct {
	fn   func()
	done chan struct{}
}

// Queue deduplicates change events and debounces rebuilds.
//
// Submit, TrySubmit, Do, State and Stats may be called from any goroutine.
// Tick and Run belong to the single consumer goroutine.
type Queue struct {
	cfg    QueueConfig
	events chan Event
	calls  chan call
	done   chan struct{}
	once   sync.Once
	logger *zap.SugaredLogger

	// consumer-owned
	pending   map[string]*entry
	order     []string
	countdown int

	mu    sync.Mutex
	state State
	stats Stats
}

// NewQueue creates a queue. Zero config values take the defaults.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.DebounceTicks <= 0 {
		cfg.DebounceTicks = DefaultDebounceTicks
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Prepare == nil {
		cfg.Prepare = func(Event) error { return nil }
	}
	if cfg.Rebuild == nil {
		cfg.Rebuild = func([]string) error { return nil }
	}
	return &Queue{
		cfg:     cfg,
		events:  make(chan Event, cfg.Capacity),
		calls:   make(chan call),
		done:    make(chan struct{}),
		logger:  log.Component("queue"),
		pending: make(map[string]*entry),
	}
}

// Submit enqueues ev, blocking while the queue is full.
func (q *Queue) Submit(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.events <- ev:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues ev without blocking. It fails with ErrQueueFull when
// the queue has no room.
func (q *Queue) TrySubmit(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs fn on the consumer goroutine and waits for it to finish. It
// requires Run to be active.
func (q *Queue) Do(ctx context.Context, fn func()) error {
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case q.calls <- c:
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events. Pending entries are dropped.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

// Run is the consumer loop: it accepts events as they arrive, ticks every
// interval and serves Do calls, until ctx is cancelled. The queue is closed
// on return.
func (q *Queue) Run(ctx context.Context, interval time.Duration) error {
	defer q.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-q.events:
			q.accept(ev)
		case c := <-q.calls:
			c.fn()
			close(c.done)
		case <-ticker.C:
			q.Tick()
		}
	}
}

// Tick advances the debounce countdown by one. When the countdown reaches
// zero, entries whose Prepare failed are retried; once every entry is
// prepared, one rebuild runs with all pending paths.
func (q *Queue) Tick() {
	q.acceptQueued()

	if q.State() != StatePendingDebounce {
		return
	}
	q.countdown--
	if q.countdown > 0 {
		return
	}

	q.setState(StateDraining)
	if !q.retryUnprepared() {
		q.arm()
		return
	}

	paths := q.order
	q.pending = make(map[string]*entry)
	q.order = nil
	q.updatePending()

	q.logger.Debugw("rebuilding", "paths", len(paths))
	err := q.cfg.Rebuild(paths)

	q.mu.Lock()
	q.stats.Rebuilds++
	if err != nil {
		q.stats.RebuildFailures++
	}
	q.mu.Unlock()
	if err != nil {
		q.logger.Warnw("rebuild failed", "error", err)
	}

	q.setState(StateIdle)
	// Events that arrived during the rebuild start a new quiet period.
	q.acceptQueued()
}

// acceptQueued accepts every event already buffered in the channel.
func (q *Queue) acceptQueued() {
	for {
		select {
		case ev := <-q.events:
			q.accept(ev)
		default:
			return
		}
	}
}

// accept registers ev right away and restarts the quiet period on success.
func (q *Queue) accept(ev Event) {
	q.mu.Lock()
	q.stats.Received++
	q.mu.Unlock()

	e, ok := q.pending[ev.Path]
	if ok {
		e.ev = ev
		q.mu.Lock()
		q.stats.Deduplicated++
		q.mu.Unlock()
	} else {
		e = &entry{ev: ev}
		q.pending[ev.Path] = e
		q.order = append(q.order, ev.Path)
		q.updatePending()
	}

	// A failed Prepare leaves the quiet period running; the entry is
	// retried at drain time.
	if q.prepare(e) || q.State() == StateIdle {
		q.arm()
	}
}

// prepare runs Prepare for e and records the outcome.
func (q *Queue) prepare(e *entry) bool {
	if err := q.cfg.Prepare(e.ev); err != nil {
		e.prepared = false
		e.attempts++
		q.mu.Lock()
		q.stats.PrepareFailures++
		q.mu.Unlock()
		q.logger.Debugw("prepare failed", "path", e.ev.Path, "attempt", e.attempts, "error", err)
		return false
	}
	e.prepared = true
	return true
}

// retryUnprepared retries failed entries. Entries out of attempts are
// released to the rebuild. It reports whether every entry is now ready.
func (q *Queue) retryUnprepared() bool {
	ready := true
	for _, p := range q.order {
		e := q.pending[p]
		if e.prepared || q.prepare(e) {
			continue
		}
		if e.attempts >= q.cfg.MaxAttempts {
			q.logger.Warnw("giving up on change, rebuilding without it", "path", p, "attempts", e.attempts)
			e.prepared = true
			q.mu.Lock()
			q.stats.Released++
			q.mu.Unlock()
			continue
		}
		ready = false
	}
	return ready
}

func (q *Queue) arm() {
	q.countdown = q.cfg.DebounceTicks
	q.setState(StatePendingDebounce)
}

func (q *Queue) setState(s State) {
	q.mu.Lock()
	q.state = s
	q.mu.Unlock()
}

func (q *Queue) updatePending() {
	q.mu.Lock()
	q.stats.Pending = len(q.order)
	q.mu.Unlock()
}

// State returns the current debounce state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}
