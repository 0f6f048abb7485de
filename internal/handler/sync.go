package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"storesync-api/internal/model"
	"storesync-api/internal/service"
	"storesync-api/internal/syncer"
	"storesync-api/pkg/apierror"
	"storesync-api/pkg/response"
)

// SyncService runs marketplace syncs.
type SyncService interface {
	RunSync(ctx context.Context, userID string, store model.Store, kind model.Kind) (*model.SyncResult, error)
	Enqueue(userID string, store model.Store, kinds ...model.Kind) (string, error)
}

// SyncHandler handles sync-related HTTP requests.
type SyncHandler struct {
	syncService SyncService
	log         *logrus.Entry
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(syncService SyncService, log *logrus.Entry) *SyncHandler {
	return &SyncHandler{syncService: syncService, log: log}
}

type syncRequest struct {
	userID string
	store  model.Store
	kind   model.Kind
}

func parseSyncRequest(r *http.Request) (syncRequest, error) {
	var fields []apierror.FieldError

	store, err := model.ParseStore(chi.URLParam(r, "store"))
	if err != nil {
		fields = append(fields, apierror.FieldError{Field: "store", Message: err.Error()})
	}
	kind, err := model.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		fields = append(fields, apierror.FieldError{Field: "kind", Message: err.Error()})
	}
	userID := r.URL.Query().Get("uid")
	if userID == "" {
		fields = append(fields, apierror.FieldError{Field: "uid", Message: "uid is required"})
	}

	if len(fields) > 0 {
		return syncRequest{}, apierror.ValidationError("invalid sync request", fields...)
	}
	return syncRequest{userID: userID, store: store, kind: kind}, nil
}

// Enqueue handles POST /api/v1/sync/{store}/{kind}
func (h *SyncHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	req, err := parseSyncRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	runID, err := h.syncService.Enqueue(req.userID, req.store, req.kind)
	if err != nil {
		if errors.Is(err, service.ErrQueueFull) || errors.Is(err, service.ErrStopped) {
			response.Error(w, apierror.ServiceUnavailable(err.Error()))
			return
		}
		response.Error(w, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"run_id":  runID,
		"user_id": req.userID,
		"store":   req.store,
		"kind":    req.kind,
	}).Info("Sync accepted")
	w.Header().Set("X-Sync-Run-ID", runID)
	response.Accepted(w, nil)
}

// Run handles POST /api/v1/sync/{store}/{kind}/run
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	req, err := parseSyncRequest(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	res, err := h.syncService.RunSync(r.Context(), req.userID, req.store, req.kind)
	if err != nil {
		// Pages committed before the failure are reported with the error.
		var partial interface{}
		if res != nil {
			partial = res
		}
		response.Failure(w, syncError(err), partial)
		return
	}
	response.OK(w, res)
}

// syncError maps sync failures onto API errors.
func syncError(err error) *apierror.Error {
	switch {
	case errors.Is(err, syncer.ErrQuotaExceeded), errors.Is(err, syncer.ErrNoSubscription):
		return apierror.BadRequest(err.Error())
	case errors.Is(err, syncer.ErrAccountNotConnected):
		return apierror.Unauthorized(err.Error())
	case errors.Is(err, syncer.ErrUnknownUser):
		return apierror.NotFound(err.Error())
	case errors.Is(err, syncer.ErrSyncInProgress), errors.Is(err, syncer.ErrLockLost):
		return apierror.Conflict(err.Error())
	case errors.Is(err, syncer.ErrStoreDisabled):
		return apierror.ServiceUnavailable(err.Error())
	case errors.Is(err, syncer.ErrUpstreamUnavailable):
		return apierror.BadGateway(err.Error())
	}
	return apierror.InternalError("")
}
