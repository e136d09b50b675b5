// Package concurrency provides a bounded goroutine pool used to fan out messages.
package concurrency

import "sync"

// Task represents a work task to be run on the specified pool.
type Task func()

// GoRoutinePool runs tasks on at most a fixed number of goroutines. A nil pool
// runs every task inline on the calling goroutine.
type GoRoutinePool struct {
	// Work queue.
	work chan Task
	// Counter to control the number of already allocated/running goroutines.
	sem chan struct{}
	// Exit knob.
	stop     chan struct{}
	stopOnce sync.Once
}

// NewGoRoutinePool allocates a new pool with up to `numWorkers` goroutines.
// Returns nil if numWorkers is not positive.
func NewGoRoutinePool(numWorkers int) *GoRoutinePool {
	if numWorkers <= 0 {
		return nil
	}
	return &GoRoutinePool{
		work: make(chan Task),
		sem:  make(chan struct{}, numWorkers),
		stop: make(chan struct{}),
	}
}

// Size returns the maximum number of goroutines, 0 for a nil pool.
func (p *GoRoutinePool) Size() int {
	if p == nil {
		return 0
	}
	return cap(p.sem)
}

// Schedule hands the task to an idle worker, starts a new worker if the limit
// is not reached yet, or blocks until a worker frees up.
// Must not be called after Stop.
func (p *GoRoutinePool) Schedule(task Task) {
	if p == nil {
		task()
		return
	}
	select {
	case p.work <- task:
	case p.sem <- struct{}{}:
		go p.worker(task)
	}
}

// Stop terminates idle workers. Running tasks are allowed to finish.
func (p *GoRoutinePool) Stop() {
	if p == nil {
		return
	}
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *GoRoutinePool) worker(task Task) {
	defer func() { <-p.sem }()
	for {
		task()
		select {
		case task = <-p.work:
		case <-p.stop:
			return
		}
	}
}
