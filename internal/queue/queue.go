// Package queue bounds how many HTTP handlers run at once.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrShutdown = errors.New("queue: shut down")

type Job struct {
	Fn   func() error
	Errc chan error
}

type RequestQueueManager struct {
	JobQueue   chan Job
	MaxWorkers int

	logger *slog.Logger
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewRequestQueueManager(queueSize int, maxWorkers int, logger *slog.Logger) *RequestQueueManager {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	manager := &RequestQueueManager{
		JobQueue:   make(chan Job, queueSize),
		MaxWorkers: maxWorkers,
		logger:     logger.With("component", "queue"),
	}
	manager.startWorkers()
	return manager
}

func (rqm *RequestQueueManager) startWorkers() {
	for i := 0; i < rqm.MaxWorkers; i++ {
		rqm.wg.Add(1)
		go func(workerID int) {
			defer rqm.wg.Done()
			rqm.logger.Debug("worker started", "worker", workerID)
			for job := range rqm.JobQueue {
				err := rqm.run(job)
				if job.Errc != nil {
					job.Errc <- err
				}
			}
			rqm.logger.Debug("worker stopped", "worker", workerID)
		}(i)
	}
}

// run keeps a panicking handler from taking the worker down with it.
func (rqm *RequestQueueManager) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			rqm.logger.Error("job panicked", "panic", r)
			err = fmt.Errorf("queue: job panicked: %v", r)
		}
	}()
	return job.Fn()
}

// EnqueueJob blocks until a slot frees up, ctx ends or the queue shuts down.
func (rqm *RequestQueueManager) EnqueueJob(ctx context.Context, job Job) error {
	rqm.mu.RLock()
	defer rqm.mu.RUnlock()
	if rqm.closed {
		return ErrShutdown
	}

	select {
	case rqm.JobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth is the number of jobs waiting for a worker.
func (rqm *RequestQueueManager) Depth() int {
	return len(rqm.JobQueue)
}

func (rqm *RequestQueueManager) Shutdown() {
	rqm.mu.Lock()
	if rqm.closed {
		rqm.mu.Unlock()
		return
	}
	rqm.closed = true
	close(rqm.JobQueue)
	rqm.mu.Unlock()

	rqm.wg.Wait()
}
