package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync-api/internal/logging"
	"storesync-api/internal/model"
	"storesync-api/internal/service"
	"storesync-api/internal/syncer"
)

type fakeSyncService struct {
	result    *model.SyncResult
	runErr    error
	enqErr    error
	enqueued  []string
	lastStore model.Store
	lastKind  model.Kind
}

func (f *fakeSyncService) RunSync(_ context.Context, userID string, store model.Store, kind model.Kind) (*model.SyncResult, error) {
	f.lastStore, f.lastKind = store, kind
	if f.runErr != nil {
		return f.result, f.runErr
	}
	return f.result, nil
}

func (f *fakeSyncService) Enqueue(userID string, store model.Store, kinds ...model.Kind) (string, error) {
	if f.enqErr != nil {
		return "", f.enqErr
	}
	f.enqueued = append(f.enqueued, userID)
	f.lastStore, f.lastKind = store, kinds[0]
	return "run-1", nil
}

func newSyncRouter(svc SyncService) http.Handler {
	h := NewSyncHandler(svc, logging.Discard())
	r := chi.NewRouter()
	r.Route("/sync/{store}/{kind}", func(r chi.Router) {
		r.Post("/", h.Enqueue)
		r.Post("/run", h.Run)
	})
	return r
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	return rec
}

func TestEnqueueAccepted(t *testing.T) {
	svc := &fakeSyncService{}
	rec := serve(t, newSyncRouter(svc), "/sync/ebay/orders/?uid=u1")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "run-1", rec.Header().Get("X-Sync-Run-ID"))
	assert.Equal(t, []string{"u1"}, svc.enqueued)
	assert.Equal(t, model.StoreEbay, svc.lastStore)
	assert.Equal(t, model.KindOrders, svc.lastKind)
}

func TestEnqueueQueueFull(t *testing.T) {
	svc := &fakeSyncService{enqErr: service.ErrQueueFull}
	rec := serve(t, newSyncRouter(svc), "/sync/depop/inventory/?uid=u1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSyncRequestValidation(t *testing.T) {
	svc := &fakeSyncService{}
	rec := serve(t, newSyncRouter(svc), "/sync/amazon/listings/run")

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Details []struct {
				Field string `json:"field"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)

	var fields []string
	for _, d := range body.Error.Details {
		fields = append(fields, d.Field)
	}
	assert.Equal(t, []string{"store", "kind", "uid"}, fields)
	assert.Empty(t, svc.enqueued)
}

func TestRunReturnsResult(t *testing.T) {
	svc := &fakeSyncService{result: &model.SyncResult{Success: true, NewCount: 3, Written: 3, Pages: 1}}
	rec := serve(t, newSyncRouter(svc), "/sync/ebay/inventory/run?uid=u1")

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool             `json:"success"`
		Data    model.SyncResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 3, body.Data.NewCount)
	assert.Equal(t, model.KindInventory, svc.lastKind)
}

func TestRunErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{syncer.ErrQuotaExceeded, http.StatusBadRequest},
		{syncer.ErrNoSubscription, http.StatusBadRequest},
		{syncer.ErrAccountNotConnected, http.StatusUnauthorized},
		{syncer.ErrUnknownUser, http.StatusNotFound},
		{syncer.ErrSyncInProgress, http.StatusConflict},
		{fmt.Errorf("%w: lock no longer held", syncer.ErrLockLost), http.StatusConflict},
		{syncer.ErrStoreDisabled, http.StatusServiceUnavailable},
		{fmt.Errorf("get orders: %w", syncer.ErrUpstreamUnavailable), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &fakeSyncService{runErr: tt.err}
			rec := serve(t, newSyncRouter(svc), "/sync/ebay/orders/run?uid=u1")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	h := New(Info{Name: "storesync-api", Version: "test"}, map[string]CheckFunc{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Data ReadyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Data.Ready)
	require.Len(t, body.Data.Checks, 3)
	assert.Equal(t, "database", body.Data.Checks[1].Name)
	assert.Equal(t, "error", body.Data.Checks[2].Status)
	assert.Equal(t, "connection refused", body.Data.Checks[2].Error)
}

func TestRunInProgressIsRetryable(t *testing.T) {
	svc := &fakeSyncService{runErr: syncer.ErrSyncInProgress}
	rec := serve(t, newSyncRouter(svc), "/sync/depop/orders/run?uid=u1")
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error struct {
			Code      string `json:"code"`
			Retryable bool   `json:"retryable"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CONFLICT", body.Error.Code)
	assert.True(t, body.Error.Retryable)
}

func TestRunFailureKeepsPartialCounts(t *testing.T) {
	err := fmt.Errorf("get orders: %w", syncer.ErrUpstreamUnavailable)
	svc := &fakeSyncService{
		runErr: err,
		result: &model.SyncResult{NewCount: 2, OldCount: 1, Written: 3, Pages: 1, Error: err.Error()},
	}
	rec := serve(t, newSyncRouter(svc), "/sync/ebay/orders/run?uid=u1")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
		Data *model.SyncResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "BAD_GATEWAY", body.Error.Code)
	require.NotNil(t, body.Data)
	assert.False(t, body.Data.Success)
	assert.Equal(t, 2, body.Data.NewCount)
	assert.Equal(t, 1, body.Data.OldCount)
	assert.Contains(t, body.Data.Error, "marketplace unavailable")
}

func TestRunFailureWithoutResult(t *testing.T) {
	svc := &fakeSyncService{runErr: syncer.ErrQuotaExceeded}
	rec := serve(t, newSyncRouter(svc), "/sync/ebay/orders/run?uid=u1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "data")
	assert.Contains(t, body, "error")
}
