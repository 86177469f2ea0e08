package workerpool

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one unit of work.
type Task func()

// Pool is a bounded worker pool with panic isolation.
type Pool struct {
	workers   int
	taskQueue chan Task
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
}

// New starts a pool with the given worker count and queue size.
func New(workers int, queueSize int, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		workers:   workers,
		taskQueue: make(chan Task, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	pool.logger.Info("Worker pool started",
		"workers", workers,
		"queue_size", queueSize)

	return pool
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}

			func() {
				defer func() {
					if r := recover(); r != nil {
						p.logger.Error("Task panic recovered",
							"worker_id", id,
							"panic", r)
					}
				}()
				task()
			}()
		}
	}
}

// Submit enqueues a task, blocking until there is room or the pool shuts down.
func (p *Pool) Submit(task Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.taskQueue <- task:
		return true
	}
}

// TrySubmit enqueues without blocking; false when the queue is full.
func (p *Pool) TrySubmit(task Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Shutdown drains outstanding tasks and stops the workers.
func (p *Pool) Shutdown() {
	p.cancel()
	close(p.taskQueue)
	p.wg.Wait()
	p.logger.Info("Worker pool shutdown completed")
}
