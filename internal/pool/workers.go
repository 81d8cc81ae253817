// Package pool bounds background work with a fixed set of workers and a
// buffered queue.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool queue is full")
)

// Task is a unit of background work.
type Task func()

// Config configures a Pool.
type Config struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
	// PanicHandler receives the recovered value of a panicking task.
	PanicHandler func(any) `json:"-"`
}

// DefaultConfig returns 4 workers and a queue of 64.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 64}
}

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	mu     sync.RWMutex
	closed bool
	queue  chan Task

	// pending 计数已接受但未完成的任务；idle 在计数归零时关闭
	pendingMu sync.Mutex
	pendingN  int
	idle      chan struct{}

	workers sync.WaitGroup

	panicHandler func(any)

	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panicked  atomic.Int64
}

// New starts the workers.
func New(cfg Config) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	p := &Pool{
		queue:        make(chan Task, cfg.QueueSize),
		panicHandler: cfg.PanicHandler,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues task without blocking. It fails with ErrPoolFull when
// every worker is busy and the queue is full.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.rejected.Add(1)
		return ErrPoolClosed
	}

	p.addPending()
	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.donePending()
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

func (p *Pool) addPending() {
	p.pendingMu.Lock()
	if p.pendingN == 0 {
		p.idle = make(chan struct{})
	}
	p.pendingN++
	p.pendingMu.Unlock()
}

func (p *Pool) donePending() {
	p.pendingMu.Lock()
	p.pendingN--
	if p.pendingN == 0 {
		close(p.idle)
	}
	p.pendingMu.Unlock()
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		if r := recover(); r != nil {
			p.panicked.Add(1)
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
		} else {
			p.completed.Add(1)
		}
		p.donePending()
	}()
	task()
}

// Wait blocks until every accepted task finished or ctx ends. Tasks
// submitted while waiting are waited for too.
func (p *Pool) Wait(ctx context.Context) error {
	for {
		p.pendingMu.Lock()
		if p.pendingN == 0 {
			p.pendingMu.Unlock()
			return nil
		}
		idle := p.idle
		p.pendingMu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting tasks, lets the queued ones finish and stops the
// workers. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.workers.Wait()
}

// Discard stops accepting tasks, drops the queued ones without running them
// and waits for the running ones. It returns the number dropped.
func (p *Pool) Discard() int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.workers.Wait()
		return 0
	}
	p.closed = true
	dropped := 0
	for {
		select {
		case <-p.queue:
			dropped++
			p.donePending()
			continue
		default:
		}
		break
	}
	close(p.queue)
	p.mu.Unlock()

	p.workers.Wait()
	p.rejected.Add(int64(dropped))
	return dropped
}

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Panicked  int64 `json:"panicked"`
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panicked:  p.panicked.Load(),
	}
}
