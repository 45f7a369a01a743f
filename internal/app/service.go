// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the operator CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/ingest"
	importqueue "github.com/eerriikk-pro/sius-parse/internal/adapters/mq/queue"
	workerpool "github.com/eerriikk-pro/sius-parse/internal/adapters/mq/worker"
	"github.com/eerriikk-pro/sius-parse/internal/adapters/repository"
	"github.com/eerriikk-pro/sius-parse/internal/domain/dedupe"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/internal/domain/period"
	"github.com/eerriikk-pro/sius-parse/internal/domain/relay"
	"github.com/eerriikk-pro/sius-parse/pkg/logger"
	"github.com/eerriikk-pro/sius-parse/pkg/metrics"
	"github.com/google/uuid"
)

// Service implements the API dependencies for the shot statistics system.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	reporter *period.Reporter
	deduper  dedupe.Deduper
	queue    importqueue.Queue
	pool     *workerpool.Pool
	jobs     *jobRegistry

	workerCount int
	queueSize   int
	dedupeSize  int
	relaySize   int
	now         func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the shot store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of import workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the import queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many upload checksums are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRelaySize sets the number of match shots per relay.
func WithRelaySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.relaySize = size
		}
	}
}

// WithClock sets the source of "today" for window queries and imports.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   importqueue.DefaultCapacity,
		dedupeSize:  dedupe.DefaultMaxSize,
		relaySize:   relay.DefaultSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting shot service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.reporter = period.NewReporter(s.store,
		period.WithClock(s.now),
		period.WithRelaySize(s.relaySize),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = importqueue.NewInMemoryQueue(importqueue.WithCapacity(s.queueSize))
	s.jobs = newJobRegistry(s.dedupeSize, s.deduper)
	s.pool = workerpool.NewPool(s.workerCount, s.queue,
		workerpool.ParserFunc(ingest.Parse), s.store, s.jobs,
		workerpool.WithClock(s.now),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "shot service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("relaySize", s.relaySize),
	)
	return nil
}

// Stop drains the import queue and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping shot service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop workers: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "shot service stopped")
	return errors.Join(errs...)
}

func (s *Service) ready() (*period.Reporter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.reporter, nil
}

func observeReport(op string, start time.Time) {
	metrics.RecordReportLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// GetRecent returns the days with shots among the last days days, newest first.
func (s *Service) GetRecent(ctx context.Context, athleteID int64, days int) ([]model.DayStats, error) {
	defer observeReport("recent", time.Now())
	r, err := s.ready()
	if err != nil {
		return nil, err
	}
	return r.Recent(ctx, athleteID, days)
}

// GetStats returns the period report over the last days days.
func (s *Service) GetStats(ctx context.Context, athleteID int64, days int) (model.PeriodReport, error) {
	defer observeReport("stats", time.Now())
	r, err := s.ready()
	if err != nil {
		return model.PeriodReport{}, err
	}
	return r.Report(ctx, athleteID, days)
}

// GetDay returns the statistics of one day.
func (s *Service) GetDay(ctx context.Context, athleteID int64, day model.Date) (model.DayStats, error) {
	defer observeReport("by_day", time.Now())
	r, err := s.ready()
	if err != nil {
		return model.DayStats{}, err
	}
	return r.Day(ctx, athleteID, day)
}

// GetSet returns the relay at the 1-based index on day, or an empty slice.
func (s *Service) GetSet(ctx context.Context, athleteID int64, day model.Date, index int) ([]model.RelayStats, error) {
	defer observeReport("by_set", time.Now())
	r, err := s.ready()
	if err != nil {
		return nil, err
	}
	return r.Set(ctx, athleteID, day, index)
}

// SubmitImport queues an uploaded file for asynchronous import. Content that
// was already accepted is answered with a duplicate job and not queued again.
func (s *Service) SubmitImport(ctx context.Context, filename string, content []byte) (model.ImportJob, error) {
	if _, err := ingest.FileDate(filename); err != nil {
		return model.ImportJob{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.ImportJob{}, ErrNotStarted
	}

	job := model.ImportJob{
		ID:          uuid.NewString(),
		Filename:    filename,
		Checksum:    dedupe.Checksum(content),
		Status:      model.JobQueued,
		SubmittedAt: s.now(),
	}

	if s.deduper.SeenAndRecord(ctx, job.Checksum) {
		metrics.RecordImportDuplicate()
		job.Status = model.JobDuplicate
		job.FinishedAt = job.SubmittedAt
		s.jobs.put(job)
		s.logger.Debug(ctx, "duplicate upload skipped",
			logger.String("filename", filename),
			logger.String("checksum", job.Checksum),
		)
		return job, nil
	}

	// Register before enqueueing so a fast worker cannot finish an unknown job.
	s.jobs.put(job)
	queued := job
	queued.Content = content
	if err := s.queue.Enqueue(ctx, queued); err != nil {
		s.deduper.Unrecord(ctx, job.Checksum)
		s.jobs.remove(job.ID)
		if errors.Is(err, importqueue.ErrFull) {
			return model.ImportJob{}, fmt.Errorf("submit %s: %w", filename, ErrBackpressure)
		}
		return model.ImportJob{}, fmt.Errorf("submit %s: %w", filename, err)
	}
	metrics.UpdateQueueSize(s.queue.Len(ctx), s.queue.Cap())
	return job, nil
}

// ImportNow parses and stores a file synchronously, bypassing the queue.
func (s *Service) ImportNow(ctx context.Context, filename string, content []byte) (model.ImportJob, error) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return model.ImportJob{}, ErrNotStarted
	}

	job := model.ImportJob{
		ID:          uuid.NewString(),
		Filename:    filename,
		Checksum:    dedupe.Checksum(content),
		SubmittedAt: s.now(),
	}
	shots, err := ingest.Parse(filename, content, model.DateOf(s.now()))
	if err != nil {
		return model.ImportJob{}, err
	}
	inserted, err := store.InsertShots(ctx, shots)
	if err != nil {
		return model.ImportJob{}, fmt.Errorf("store %s: %w", filename, err)
	}
	metrics.RecordShotsImported(inserted, len(shots)-inserted)
	job.Status = model.JobDone
	job.Shots = len(shots)
	job.Inserted = inserted
	job.FinishedAt = s.now()
	return job, nil
}

// Job returns the current state of an import job.
func (s *Service) Job(_ context.Context, id string) (model.ImportJob, error) {
	s.mu.RLock()
	jobs := s.jobs
	s.mu.RUnlock()
	if jobs == nil {
		return model.ImportJob{}, ErrNotStarted
	}
	job, ok := jobs.get(id)
	if !ok {
		return model.ImportJob{}, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	return job, nil
}

func (s *Service) athletes() (repository.AthleteStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// CreateAthlete registers an athlete under its range id.
func (s *Service) CreateAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error) {
	st, err := s.athletes()
	if err != nil {
		return model.Athlete{}, err
	}
	return st.CreateAthlete(ctx, a)
}

func (s *Service) GetAthlete(ctx context.Context, id int64) (model.Athlete, error) {
	st, err := s.athletes()
	if err != nil {
		return model.Athlete{}, err
	}
	return st.GetAthlete(ctx, id)
}

func (s *Service) ListAthletes(ctx context.Context) ([]model.Athlete, error) {
	st, err := s.athletes()
	if err != nil {
		return nil, err
	}
	return st.ListAthletes(ctx)
}

func (s *Service) UpdateAthlete(ctx context.Context, id int64, u model.AthleteUpdate) (model.Athlete, error) {
	st, err := s.athletes()
	if err != nil {
		return model.Athlete{}, err
	}
	return st.UpdateAthlete(ctx, id, u)
}

func (s *Service) DeleteAthlete(ctx context.Context, id int64) error {
	st, err := s.athletes()
	if err != nil {
		return err
	}
	return st.DeleteAthlete(ctx, id)
}

// Status returns service statistics for monitoring.
func (s *Service) Status() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"relaySize":   s.relaySize,
	}
	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["jobsProcessed"] = s.pool.Processed()
		stats["uploadsSeen"] = s.deduper.Size()
		if c, err := s.store.Count(ctx); err == nil {
			stats["shots"] = c.Shots
			stats["athletes"] = c.Athletes
			metrics.UpdateStoreCounts(c.Shots, c.Athletes)
		}
		metrics.UpdateQueueSize(queueLen, s.queueSize)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}
