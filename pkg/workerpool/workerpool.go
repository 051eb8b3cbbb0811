// Package workerpool runs indexed jobs on a fixed set of goroutines and
// collects their results in submission order.
package workerpool

import (
	"context"
	"runtime"
	"sync"
)

type Config struct {
	// WorkerCount defaults to the number of CPUs.
	WorkerCount int
	// QueueSize defaults to twice WorkerCount.
	QueueSize int
}

// WorkerPool owns the worker goroutines. Close it when done.
type WorkerPool struct {
	config    Config
	taskQueue chan func()
	workers   sync.WaitGroup
	closeOnce sync.Once
}

func NewWorkerPool(config Config) *WorkerPool { // A
	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU()
	}
	if config.QueueSize < 1 {
		config.QueueSize = 2 * config.WorkerCount
	}

	wp := &WorkerPool{
		config:    config,
		taskQueue: make(chan func(), config.QueueSize),
	}
	wp.workers.Add(config.WorkerCount)
	for i := 0; i < config.WorkerCount; i++ {
		go wp.worker()
	}
	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.workers.Done()
	for run := range wp.taskQueue {
		run()
	}
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { // H
	return wp.config.WorkerCount
}

// Close stops the workers after the queued tasks have run. Submitting to a
// room of a closed pool panics.
func (wp *WorkerPool) Close() { // A
	wp.closeOnce.Do(func() {
		close(wp.taskQueue)
		wp.workers.Wait()
	})
}

// Room groups the tasks of one batch. Results keep the order of the
// indices given to Submit.
type Room[T any] struct {
	wp      *WorkerPool
	wg      sync.WaitGroup
	mu      sync.Mutex
	results []T
	err     error
	errIdx  int
}

// NewRoom creates a room for size tasks with indices 0..size-1.
func NewRoom[T any](wp *WorkerPool, size int) *Room[T] { // A
	return &Room[T]{
		wp:      wp,
		results: make([]T, size),
		errIdx:  -1,
	}
}

// Submit queues job as task i, blocking while the queue is full. It fails
// only when ctx ends before the task is queued.
func (ro *Room[T]) Submit(ctx context.Context, i int, job func() (T, error)) error { // A
	ro.wg.Add(1)
	task := func() {
		defer ro.wg.Done()
		res, err := job()

		ro.mu.Lock()
		defer ro.mu.Unlock()
		ro.results[i] = res
		// Report the lowest failing index so the error is deterministic.
		if err != nil && (ro.errIdx < 0 || i < ro.errIdx) {
			ro.err = err
			ro.errIdx = i
		}
	}

	select {
	case ro.wp.taskQueue <- task:
		return nil
	case <-ctx.Done():
		ro.wg.Done()
		return ctx.Err()
	}
}

// Collect waits for every submitted task and returns the results, or the
// error of the lowest-indexed failed task.
func (ro *Room[T]) Collect() ([]T, error) { // A
	ro.wg.Wait()

	ro.mu.Lock()
	defer ro.mu.Unlock()
	if ro.err != nil {
		return nil, ro.err
	}
	return ro.results, nil
}
