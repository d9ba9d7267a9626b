// small contract description
// inputs: task table rows, handlers map
// outputs: task status updates, dead-letter moves on permanent failure
// error modes: db errors, handler errors
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type WorkerPool struct {
	repo         *Repository
	handlers     map[string]Handler
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(repo *Repository, handlers map[string]Handler, logger *slog.Logger, workerCount int, pollInterval time.Duration) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 2
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		repo:         repo,
		handlers:     handlers,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		stop:         make(chan struct{}),
	}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them. It is safe to call more than once.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Debug("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Debug("context canceled, worker exiting", "id", id)
			return
		default:
		}

		task, err := p.repo.FetchNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("fetch task", "err", err)
			}
			p.wait(ctx, time.Second)
			continue
		}
		if task == nil {
			p.wait(ctx, p.pollInterval)
			continue
		}

		p.process(ctx, task)
	}
}

// wait sleeps for d unless the pool is stopped first
func (p *WorkerPool) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}

func (p *WorkerPool) process(ctx context.Context, task *Task) {
	h, ok := p.handlers[task.Type]
	if !ok {
		task.Status = StatusFailed
		task.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(ctx, task); err != nil {
			p.logger.Error("move to dead letter", "task_id", task.ID, "err", err)
		}
		return
	}

	err := h(ctx, task)
	if err == nil {
		task.Status = StatusDone
		if upErr := p.repo.UpdateTask(ctx, task); upErr != nil {
			p.logger.Error("mark task done", "task_id", task.ID, "err", upErr)
		}
		return
	}

	task.Attempts++
	task.LastError = err.Error()
	if task.Attempts >= task.MaxAttempts {
		task.Status = StatusFailed
		if mvErr := p.repo.MoveToDeadLetter(ctx, task); mvErr != nil {
			p.logger.Error("move to dead letter", "task_id", task.ID, "err", mvErr)
		}
		return
	}

	next := time.Now().Add(BackoffDuration(task.Attempts))
	task.NextTryAt = &next
	task.Status = StatusRetry
	if upErr := p.repo.UpdateTask(ctx, task); upErr != nil {
		p.logger.Error("update task for retry", "task_id", task.ID, "err", upErr)
	}
}
