package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-dms/meridian-dms/internal/platform/httpx"
)

// Handler exposes reconciliation over HTTP. Concurrent run requests are
// collapsed into one pass; everyone receives the same summary.
type Handler struct {
	logger *slog.Logger
	syncer *Syncer
	group  singleflight.Group
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, syncer *Syncer) *Handler {
	return &Handler{logger: logger, syncer: syncer}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run", h.run)
	r.Get("/stream", h.stream)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	resultChan := h.group.DoChan("sync", func() (interface{}, error) {
		// Detached from the request context: an aborted caller must not
		// cancel a repair pass other callers are waiting on.
		return h.syncer.SyncAll(context.WithoutCancel(r.Context()), nil)
	})

	select {
	case <-r.Context().Done():
		httpx.Problem(w, http.StatusRequestTimeout, "Cancelled", "client went away before the run finished")
	case res := <-resultChan:
		if res.Err != nil {
			h.logger.Error("reconciliation run failed", slog.Any("error", res.Err))
			httpx.Problem(w, http.StatusInternalServerError, "Reconciliation Failed", "")
			return
		}
		httpx.JSON(w, http.StatusOK, res.Val)
	}
}

// stream runs a pass and reports progress as server-sent events, ending
// with a summary event.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Streaming Unsupported", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(event string, payload interface{}) {
		raw, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, raw)
		flusher.Flush()
	}

	summary, err := h.syncer.SyncAll(r.Context(), func(p Progress) {
		emit("progress", p)
	})
	if err != nil {
		h.logger.Error("reconciliation stream failed", slog.Any("error", err))
		emit("error", map[string]string{"error": err.Error()})
		return
	}
	emit("summary", summary)
}
