package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storesync-api/internal/model"
	"storesync-api/internal/syncer"
	"storesync-api/pkg/uid"
)

var (
	// ErrQueueFull is returned by Enqueue when no worker can take the job.
	ErrQueueFull = errors.New("sync queue full")

	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("sync service stopped")
)

// Runner executes one sync.
type Runner interface {
	Run(ctx context.Context, userID string, store model.Store, kind model.Kind) (*model.SyncResult, error)
}

// SyncConfig holds worker pool settings.
type SyncConfig struct {
	Workers    int
	QueueSize  int
	RunTimeout time.Duration
}

// Job is a queued background sync. Kinds run in order under one worker.
type Job struct {
	RunID  string
	UserID string
	Store  model.Store
	Kinds  []model.Kind
}

// SyncService runs syncs inline or on a background worker pool.
type SyncService struct {
	runner Runner
	config SyncConfig
	log    *logrus.Entry

	jobs     chan Job
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewSyncService creates a sync service. Call Start to launch the workers.
func NewSyncService(runner Runner, config SyncConfig, log *logrus.Entry) *SyncService {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 15 * time.Minute
	}
	return &SyncService{
		runner: runner,
		config: config,
		log:    log,
		jobs:   make(chan Job, config.QueueSize),
	}
}

// Start launches the workers.
func (s *SyncService) Start() {
	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.log.WithFields(logrus.Fields{
		"workers":    s.config.Workers,
		"queue_size": s.config.QueueSize,
	}).Info("Sync workers started")
}

// RunSync runs a sync inline and returns its result.
func (s *SyncService) RunSync(ctx context.Context, userID string, store model.Store, kind model.Kind) (*model.SyncResult, error) {
	ctx = syncer.WithRunID(ctx, uid.NewOrdered())
	return s.runner.Run(ctx, userID, store, kind)
}

// Enqueue schedules a background sync and returns its run id.
func (s *SyncService) Enqueue(userID string, store model.Store, kinds ...model.Kind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrStopped
	}

	job := Job{RunID: uid.NewOrdered(), UserID: userID, Store: store, Kinds: kinds}
	select {
	case s.jobs <- job:
		return job.RunID, nil
	default:
		return "", ErrQueueFull
	}
}

// Pending returns the number of queued jobs.
func (s *SyncService) Pending() int {
	return len(s.jobs)
}

// Stop stops accepting jobs and waits for queued ones to finish or ctx to end.
func (s *SyncService) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.jobs)
		s.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Sync workers stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncService) worker(n int) {
	defer s.wg.Done()
	for job := range s.jobs {
		s.process(n, job)
	}
}

func (s *SyncService) process(n int, job Job) {
	entry := s.log.WithFields(logrus.Fields{
		"worker":  n,
		"run_id":  job.RunID,
		"user_id": job.UserID,
		"store":   job.Store,
	})
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("Sync worker recovered from panic")
		}
	}()

	for _, kind := range job.Kinds {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
		_, err := s.runner.Run(syncer.WithRunID(ctx, job.RunID), job.UserID, job.Store, kind)
		cancel()

		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, syncer.ErrSyncInProgress), errors.Is(err, syncer.ErrQuotaExceeded):
			entry.WithError(err).WithField("kind", kind).Info("Background sync skipped")
		default:
			entry.WithError(err).WithField("kind", kind).Warn("Background sync failed")
		}
	}
}
