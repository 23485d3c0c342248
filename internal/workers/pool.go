package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrUnavailable is returned when the pool is closed or shut down before replying.
	ErrUnavailable = errors.New("worker pool unavailable")
	// ErrNoResult is returned when a worker could not produce a result for the task.
	ErrNoResult = errors.New("worker produced no result")
)

// Config sizes one pool. Each task kind gets its own pool.
type Config struct {
	Name       string
	Workers    int
	QueueDepth int
}

// HandlerFunc processes one task. Returning false reports "no result".
type HandlerFunc[T, R any] func(T) (R, bool)

// BatchFunc processes a drained batch of tasks.
type BatchFunc[T any] func([]T)

// Stats is a point-in-time view of pool counters.
type Stats struct {
	Name      string
	Queued    int
	Processed uint64
	NoResult  uint64
	Panics    uint64
}

type reply[R any] struct {
	value R
	ok    bool
}

type task[T, R any] struct {
	payload T
	reply   chan reply[R]
}

func (t task[T, R]) deliver(value R, ok bool) {
	if t.reply == nil {
		return
	}
	// reply is buffered with capacity one, so an abandoned receiver never blocks the worker.
	select {
	case t.reply <- reply[R]{value: value, ok: ok}:
	default:
	}
}

// Pool is a bounded request/response facility parameterized over task and reply types.
type Pool[T, R any] struct {
	cfg      Config
	handle   HandlerFunc[T, R]
	batch    BatchFunc[T]
	interval time.Duration

	ch        chan task[T, R]
	done      chan struct{}
	stopped   chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once

	processed atomic.Uint64
	noResult  atomic.Uint64
	panics    atomic.Uint64
}

// New starts cfg.Workers goroutines that serve tasks with fn.
func New[T, R any](cfg Config, fn HandlerFunc[T, R]) *Pool[T, R] {
	p := newPool[T, R](cfg)
	p.handle = fn

	p.wg.Add(p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		go p.run()
	}
	return p
}

// NewBatched starts a single goroutine that drains up to cfg.QueueDepth queued tasks at a
// time, hands them to fn, then pauses for interval before draining again. cfg.Workers is
// ignored.
func NewBatched[T any](cfg Config, fn BatchFunc[T], interval time.Duration) *Pool[T, struct{}] {
	cfg.Workers = 1
	p := newPool[T, struct{}](cfg)
	p.batch = fn
	p.interval = interval

	p.wg.Add(1)
	go p.runBatched()
	return p
}

func newPool[T, R any](cfg Config) *Pool[T, R] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 1
	}
	return &Pool[T, R]{
		cfg:     cfg,
		ch:      make(chan task[T, R], cfg.QueueDepth),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Submit enqueues payload and waits for its reply. A full queue suspends the caller until a
// worker frees a slot or ctx is done.
func (p *Pool[T, R]) Submit(ctx context.Context, payload T) (R, error) {
	var zero R
	if ctx == nil {
		ctx = context.Background()
	}

	ch := make(chan reply[R], 1)
	if err := p.enqueue(ctx, task[T, R]{payload: payload, reply: ch}); err != nil {
		return zero, err
	}

	select {
	case r := <-ch:
		return unwrap(r)
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-p.stopped:
		select {
		case r := <-ch:
			return unwrap(r)
		default:
			return zero, ErrUnavailable
		}
	}
}

// SubmitFireAndForget enqueues payload without waiting for a result.
func (p *Pool[T, R]) SubmitFireAndForget(ctx context.Context, payload T) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return p.enqueue(ctx, task[T, R]{payload: payload})
}

func (p *Pool[T, R]) enqueue(ctx context.Context, t task[T, R]) error {
	if p == nil || p.closed.Load() {
		return ErrUnavailable
	}

	select {
	case p.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrUnavailable
	}
}

func unwrap[R any](r reply[R]) (R, error) {
	if !r.ok {
		var zero R
		return zero, ErrNoResult
	}
	return r.value, nil
}

func (p *Pool[T, R]) run() {
	defer p.wg.Done()

	for {
		select {
		case t := <-p.ch:
			p.serve(t)
		case <-p.done:
			for {
				select {
				case t := <-p.ch:
					p.serve(t)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool[T, R]) serve(t task[T, R]) {
	value, ok := p.call(t.payload)
	p.processed.Add(1)
	if !ok {
		p.noResult.Add(1)
	}
	t.deliver(value, ok)
}

func (p *Pool[T, R]) call(payload T) (value R, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			var zero R
			value, ok = zero, false
		}
	}()
	return p.handle(payload)
}

func (p *Pool[T, R]) runBatched() {
	defer p.wg.Done()

	for {
		select {
		case first := <-p.ch:
			p.serveBatch(p.collect(first))
		case <-p.done:
			for {
				select {
				case first := <-p.ch:
					p.serveBatch(p.collect(first))
				default:
					return
				}
			}
		}

		if p.interval > 0 {
			timer := time.NewTimer(p.interval)
			select {
			case <-timer.C:
			case <-p.done:
				timer.Stop()
			}
		}
	}
}

func (p *Pool[T, R]) collect(first task[T, R]) []task[T, R] {
	tasks := make([]task[T, R], 0, p.cfg.QueueDepth)
	tasks = append(tasks, first)
	for len(tasks) < p.cfg.QueueDepth {
		select {
		case t := <-p.ch:
			tasks = append(tasks, t)
		default:
			return tasks
		}
	}
	return tasks
}

func (p *Pool[T, R]) serveBatch(tasks []task[T, R]) {
	payloads := make([]T, len(tasks))
	for i, t := range tasks {
		payloads[i] = t.payload
	}

	ok := p.callBatch(payloads)
	p.processed.Add(uint64(len(tasks)))
	if !ok {
		p.noResult.Add(uint64(len(tasks)))
	}

	var zero R
	for _, t := range tasks {
		t.deliver(zero, ok)
	}
}

func (p *Pool[T, R]) callBatch(payloads []T) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			ok = false
		}
	}()
	p.batch(payloads)
	return true
}

// Close stops intake, lets workers drain what is already queued, and waits for them.
// Safe to call more than once.
func (p *Pool[T, R]) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		p.wg.Wait()
		close(p.stopped)
	})
}

// Stats returns the current counters.
func (p *Pool[T, R]) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	return Stats{
		Name:      p.cfg.Name,
		Queued:    len(p.ch),
		Processed: p.processed.Load(),
		NoResult:  p.noResult.Load(),
		Panics:    p.panics.Load(),
	}
}
