// Package worker imports queued CSV uploads into the shot store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/mq/queue"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/pkg/logger"
	"github.com/eerriikk-pro/sius-parse/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Parser decodes an uploaded file into shots.
type Parser interface {
	Parse(filename string, content []byte, importDate model.Date) ([]model.Shot, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(filename string, content []byte, importDate model.Date) ([]model.Shot, error)

// Parse calls f.
func (f ParserFunc) Parse(filename string, content []byte, importDate model.Date) ([]model.Shot, error) {
	return f(filename, content, importDate)
}

// Writer stores decoded shots and reports how many were new.
type Writer interface {
	InsertShots(ctx context.Context, shots []model.Shot) (int, error)
}

// Reporter receives every job once it reaches a final state.
type Reporter interface {
	Finish(ctx context.Context, job Job)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes import jobs until stopped.
type Worker interface {
	// Run consumes jobs until the queue is drained, ctx is canceled or
	// Shutdown is called.
	Run(ctx context.Context)

	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing import jobs.
type InMemoryWorker struct {
	queue    Queue
	parser   Parser
	writer   Writer
	reporter Reporter
	name     string
	now      func() time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	processed *atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, parser Parser, writer Writer, reporter Reporter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		parser:    parser,
		writer:    writer,
		reporter:  reporter,
		name:      "worker",
		now:       time.Now,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		processed: &atomic.Int64{},
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns how many jobs this worker has finished.
func (w *InMemoryWorker) Processed() int64 {
	return w.processed.Load()
}

// process runs one job and always hands it to the reporter.
func (w *InMemoryWorker) process(ctx context.Context, job Job) { //nolint:gocritic // hugeParam: jobs travel by value
	start := time.Now()
	defer func() {
		metrics.RecordImportLatency(float64(time.Since(start).Microseconds()) / 1000)
		metrics.RecordImportJob(string(job.Status))
		w.processed.Add(1)
		job.Content = nil
		w.reporter.Finish(ctx, job)
	}()

	shots, err := w.parser.Parse(job.Filename, job.Content, model.DateOf(w.now()))
	if err != nil {
		w.fail(ctx, &job, "parse", err)
		return
	}
	job.Shots = len(shots)

	inserted, err := w.writer.InsertShots(ctx, shots)
	if err != nil {
		w.fail(ctx, &job, "store", err)
		return
	}
	job.Inserted = inserted
	job.Status = model.JobDone
	job.FinishedAt = w.now()
	metrics.RecordShotsImported(inserted, len(shots)-inserted)

	w.logger.Info(ctx, "import finished",
		logger.String("job_id", job.ID),
		logger.String("filename", job.Filename),
		logger.Int("shots", job.Shots),
		logger.Int("inserted", inserted),
	)
}

func (w *InMemoryWorker) fail(ctx context.Context, job *Job, stage string, err error) {
	job.Status = model.JobFailed
	job.Error = err.Error()
	job.FinishedAt = w.now()

	metrics.RecordErrorByType(stage+"_error", "high")
	w.logger.Error(ctx, "import failed",
		logger.String("job_id", job.ID),
		logger.String("filename", job.Filename),
		logger.String("stage", stage),
		logger.Error(err),
	)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A count below one uses runtime.NumCPU.
func NewPool(workerCount int, q Queue, parser Parser, writer Writer, reporter Reporter, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, parser, writer, reporter, workerOpts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs finished by all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Stop signals every worker and waits for them to return. Jobs still queued
// are left in the queue.
func (p *Pool) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("worker %d: %w", i, err)
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}

// Shutdown closes the queue and lets the workers drain it before returning.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("drain import queue: %w", ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
