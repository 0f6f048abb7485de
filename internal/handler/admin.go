package handler

import (
	"net/http"
	"runtime"
	"time"

	"storesync-api/internal/repository"
	"storesync-api/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	gateway   repository.Gateway
	dbType    string // sqlite, postgres, mysql, mongodb or memory
	cacheType string // memory or redis
	pending   func() int
	startTime time.Time
}

// NewAdminHandler creates a new admin handler. pending reports the sync queue depth.
func NewAdminHandler(gateway repository.Gateway, dbType, cacheType string, pending func() int) *AdminHandler {
	return &AdminHandler{
		gateway:   gateway,
		dbType:    dbType,
		cacheType: cacheType,
		pending:   pending,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["cache_type"] = h.cacheType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	if h.pending != nil {
		stats["sync_queue"] = map[string]interface{}{
			"pending": h.pending(),
		}
	}

	// Gateway stats
	if h.gateway != nil {
		dbStats, err := h.gateway.GetStats(ctx)
		if err == nil {
			dbStats["status"] = "connected"
			stats["database"] = dbStats
		} else {
			stats["database"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["database"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
