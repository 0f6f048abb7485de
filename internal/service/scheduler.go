package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storesync-api/internal/model"
	"storesync-api/internal/repository"
)

// Enqueuer schedules background syncs.
type Enqueuer interface {
	Enqueue(userID string, store model.Store, kinds ...model.Kind) (string, error)
}

// SchedulerConfig holds configuration for the auto-sync scheduler.
type SchedulerConfig struct {
	// Interval is how often every connected user is synced.
	Interval time.Duration

	// StartDelay postpones the first run after Start.
	// Default: 1 minute
	StartDelay time.Duration

	// StoreActive gates stores; nil enables every store.
	StoreActive func(store string) bool
}

// AutoSyncScheduler periodically enqueues inventory then orders syncs for
// every user with a connected marketplace account.
type AutoSyncScheduler struct {
	users     repository.UserRepository
	queue     Enqueuer
	config    SchedulerConfig
	log       *logrus.Entry
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewAutoSyncScheduler creates a new scheduler.
func NewAutoSyncScheduler(users repository.UserRepository, queue Enqueuer, config SchedulerConfig, log *logrus.Entry) *AutoSyncScheduler {
	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.StartDelay == 0 {
		config.StartDelay = time.Minute
	}

	return &AutoSyncScheduler{
		users:  users,
		queue:  queue,
		config: config,
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *AutoSyncScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.log.WithField("interval", s.config.Interval.String()).Info("Auto-sync scheduler started")

	go func() {
		select {
		case <-time.After(s.config.StartDelay):
			s.runOnce()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

func (s *AutoSyncScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runOnce()
		case <-s.stopCh:
			s.log.Info("Auto-sync scheduler stopped")
			return
		}
	}
}

func (s *AutoSyncScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := s.RunNow(ctx)
	if err != nil {
		s.log.WithError(err).WithField("enqueued", n).Error("Auto-sync run failed")
		return
	}
	s.log.WithField("enqueued", n).Info("Auto-sync run enqueued jobs")
}

// RunNow enqueues one job per connected (user, store) and returns how many were queued.
func (s *AutoSyncScheduler) RunNow(ctx context.Context) (int, error) {
	enqueued := 0
	for _, store := range []model.Store{model.StoreEbay, model.StoreDepop} {
		if s.config.StoreActive != nil && !s.config.StoreActive(string(store)) {
			continue
		}

		ids, err := s.users.ListUserIDs(ctx, store)
		if err != nil {
			return enqueued, err
		}
		for _, id := range ids {
			if _, err := s.queue.Enqueue(id, store, model.KindInventory, model.KindOrders); err != nil {
				if errors.Is(err, ErrQueueFull) {
					s.log.WithField("store", store).Warn("Sync queue full, remaining users wait for the next run")
					return enqueued, nil
				}
				return enqueued, err
			}
			enqueued++
		}
	}
	return enqueued, nil
}

// Stop stops the scheduler.
func (s *AutoSyncScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
