package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/tinylink/internal/app/service"
	"github.com/atinyakov/tinylink/internal/errx"
	"github.com/atinyakov/tinylink/internal/metrics"
	"github.com/atinyakov/tinylink/internal/models"
)

const requestTimeout = 3 * time.Second

type GetHandler struct {
	service service.LinkServiceIface
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewGet(s service.LinkServiceIface, l *zap.Logger, m *metrics.Metrics) *GetHandler {
	return &GetHandler{
		service: s,
		logger:  l,
		metrics: m,
	}
}

// Redirect sends the visitor to the target of a live code and counts the click.
// Malformed, unknown and deleted codes all answer 404.
func (h *GetHandler) Redirect(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	code := chi.URLParam(req, "code")

	target, err := h.service.Resolve(ctx, code)
	if err != nil {
		switch errx.KindOf(err) {
		case errx.InvalidCode, errx.NotFound:
			h.metrics.Redirect(metrics.RedirectNotFound)
			http.Error(res, "Not Found", http.StatusNotFound)
			return
		case errx.Transient:
			if target == "" {
				h.metrics.Redirect(metrics.RedirectError)
				h.logger.Error("Resolve failed", zap.String("code", code), zap.Error(err))
				http.Error(res, "server error", http.StatusInternalServerError)
				return
			}
			h.metrics.ClickRecordFailed()
			h.logger.Warn("Click not recorded", zap.String("code", code), zap.Error(err))
		default:
			h.metrics.Redirect(metrics.RedirectError)
			h.logger.Error("Resolve failed", zap.String("code", code), zap.Error(err))
			http.Error(res, "server error", http.StatusInternalServerError)
			return
		}
	}

	h.metrics.Redirect(metrics.RedirectFound)
	http.Redirect(res, req, target, http.StatusFound)
}

func (h *GetHandler) PingDB(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	if err := h.service.PingContext(ctx); err != nil {
		h.logger.Error("Ping failed", zap.Error(err))
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}

func (h *GetHandler) Healthz(res http.ResponseWriter, _ *http.Request) {
	writeJSON(res, http.StatusOK, models.OKResponse{OK: true})
}

// ListLinks returns the caller's links filtered by the query string.
func (h *GetHandler) ListLinks(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFrom(req)
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: "missing token"})
		return
	}

	q := req.URL.Query()
	list, err := h.service.List(ctx, userID, models.ListQuery{
		Q:         q.Get("q"),
		Deleted:   q.Get("deleted"),
		MinClicks: q.Get("minClicks"),
		MaxClicks: q.Get("maxClicks"),
		DateFrom:  q.Get("dateFrom"),
		DateTo:    q.Get("dateTo"),
		Sort:      q.Get("sort"),
		Order:     q.Get("order"),
		Limit:     q.Get("limit"),
		Offset:    q.Get("offset"),
	})
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusOK, list)
}

// LinkStats returns counters of one of the caller's links.
func (h *GetHandler) LinkStats(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFrom(req)
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: "missing token"})
		return
	}

	link, err := h.service.Stats(ctx, userID, chi.URLParam(req, "code"))
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusOK, link)
}
