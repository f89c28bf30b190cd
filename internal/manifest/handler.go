package manifest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-dms/meridian-dms/internal/platform/httpx"
	"github.com/meridian-dms/meridian-dms/internal/shared"
)

// Handler manages manifest HTTP endpoints. Manifests are mutated only by
// the background queue, so the surface here is read-only.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/stats", h.dayStats)
	r.Get("/{ref}", h.show)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListRequest{Limit: 20}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 1000 {
			req.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			req.Offset = offset
		}
	}
	if v := q.Get("driver_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.DriverID = &id
		}
	}
	if v := q.Get("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
			return
		}
		req.Date = &d
	}
	if v := q.Get("active"); v != "" {
		active := v == "true" || v == "1"
		req.Active = &active
	}

	manifests, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	meta := shared.NewPagination(req.Offset/req.Limit+1, req.Limit, total)
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"manifests": manifests,
		"total":     total,
		"limit":     req.Limit,
		"offset":    req.Offset,
		"pages":     meta.TotalPages,
	})
}

// show resolves either a numeric ID or an external manifest number.
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var m *Manifest
	var err error
	if strings.HasPrefix(ref, "DL-") {
		m, err = h.service.GetByNumber(r.Context(), ref)
	} else {
		id, parseErr := strconv.ParseInt(ref, 10, 64)
		if parseErr != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Reference", "expected a manifest id or DL- number")
			return
		}
		m, err = h.service.GetByID(r.Context(), id)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) dayStats(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		var err error
		date, err = time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
			return
		}
	}

	stats, err := h.service.DayStats(r.Context(), date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error("manifest request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
