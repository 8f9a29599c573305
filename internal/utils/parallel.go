package utils

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work run by RunParallel.
type Task func(ctx context.Context) error

// RunParallel executes tasks concurrently and waits for all of them. The first failure cancels
// the context passed to the others and is the error returned.
func RunParallel(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}
	return g.Wait()
}

// WorkerPool runs submitted tasks on a fixed number of goroutines.
type WorkerPool struct {
	taskChan chan func() error
	wg       sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewWorkerPool starts maxWorkers workers.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	pool := &WorkerPool{taskChan: make(chan func() error, maxWorkers*2)}
	for i := 0; i < maxWorkers; i++ {
		go pool.worker()
	}
	return pool
}

func (p *WorkerPool) worker() {
	for task := range p.taskChan {
		if err := task(); err != nil {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
		p.wg.Done()
	}
}

// Submit queues a task, blocking while the buffer is full.
func (p *WorkerPool) Submit(task func() error) {
	p.wg.Add(1)
	p.taskChan <- task
}

// Wait blocks until every submitted task finished, stops the workers and returns the task
// errors. The pool cannot be reused afterwards.
func (p *WorkerPool) Wait() []error {
	p.wg.Wait()
	close(p.taskChan)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs
}
