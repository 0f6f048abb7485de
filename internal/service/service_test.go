package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync-api/internal/logging"
	"storesync-api/internal/model"
	"storesync-api/internal/repository"
	"storesync-api/internal/syncer"
)

type call struct {
	runID  string
	userID string
	store  model.Store
	kind   model.Kind
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	block chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, userID string, store model.Store, kind model.Kind) (*model.SyncResult, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{runID: syncer.RunID(ctx), userID: userID, store: store, kind: kind})
	return &model.SyncResult{Success: true}, nil
}

func (r *fakeRunner) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func TestRunSyncTagsRunID(t *testing.T) {
	r := &fakeRunner{}
	svc := NewSyncService(r, SyncConfig{}, logging.Discard())

	res, err := svc.RunSync(context.Background(), "u1", model.StoreEbay, model.KindOrders)
	require.NoError(t, err)
	assert.True(t, res.Success)

	calls := r.snapshot()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].runID)
	assert.Equal(t, model.KindOrders, calls[0].kind)
}

func TestEnqueueRunsKindsInOrder(t *testing.T) {
	r := &fakeRunner{}
	svc := NewSyncService(r, SyncConfig{Workers: 1, QueueSize: 4}, logging.Discard())
	svc.Start()

	runID, err := svc.Enqueue("u1", model.StoreDepop, model.KindInventory, model.KindOrders)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))

	calls := r.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, model.KindInventory, calls[0].kind)
	assert.Equal(t, model.KindOrders, calls[1].kind)
	assert.Equal(t, runID, calls[1].runID)

	_, err = svc.Enqueue("u1", model.StoreDepop, model.KindOrders)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEnqueueQueueFull(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{})}
	svc := NewSyncService(r, SyncConfig{Workers: 1, QueueSize: 1}, logging.Discard())

	// no workers yet, so the single slot stays taken
	_, err := svc.Enqueue("u1", model.StoreEbay, model.KindOrders)
	require.NoError(t, err)
	_, err = svc.Enqueue("u2", model.StoreEbay, model.KindOrders)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, svc.Pending())

	svc.Start()
	close(r.block)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))
}

type recordingQueue struct {
	jobs []Job
	max  int
}

func (q *recordingQueue) Enqueue(userID string, store model.Store, kinds ...model.Kind) (string, error) {
	if q.max > 0 && len(q.jobs) >= q.max {
		return "", ErrQueueFull
	}
	q.jobs = append(q.jobs, Job{UserID: userID, Store: store, Kinds: kinds})
	return "run", nil
}

func TestSchedulerRunNow(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStore()
	require.NoError(t, repo.PutUser(ctx, &model.User{ID: "a", ConnectedAccounts: map[model.Store]model.ConnectedAccount{
		model.StoreEbay:  {AccessToken: "t"},
		model.StoreDepop: {ShopID: "s"},
	}}))
	require.NoError(t, repo.PutUser(ctx, &model.User{ID: "b", ConnectedAccounts: map[model.Store]model.ConnectedAccount{
		model.StoreEbay: {AccessToken: "t"},
	}}))
	require.NoError(t, repo.PutUser(ctx, &model.User{ID: "c"}))

	t.Run("all stores", func(t *testing.T) {
		q := &recordingQueue{}
		s := NewAutoSyncScheduler(repo, q, SchedulerConfig{}, logging.Discard())
		n, err := s.RunNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		for _, j := range q.jobs {
			assert.Equal(t, []model.Kind{model.KindInventory, model.KindOrders}, j.Kinds)
		}
	})

	t.Run("inactive store skipped", func(t *testing.T) {
		q := &recordingQueue{}
		s := NewAutoSyncScheduler(repo, q, SchedulerConfig{
			StoreActive: func(store string) bool { return store == "depop" },
		}, logging.Discard())
		n, err := s.RunNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, "a", q.jobs[0].UserID)
	})

	t.Run("queue full stops quietly", func(t *testing.T) {
		q := &recordingQueue{max: 1}
		s := NewAutoSyncScheduler(repo, q, SchedulerConfig{}, logging.Discard())
		n, err := s.RunNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewAutoSyncScheduler(repository.NewMemoryStore(), &recordingQueue{}, SchedulerConfig{Interval: time.Hour}, logging.Discard())
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
