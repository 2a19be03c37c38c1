package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/tinylink/internal/app/service"
	"github.com/atinyakov/tinylink/internal/metrics"
	"github.com/atinyakov/tinylink/internal/models"
)

type PostHandler struct {
	service service.LinkServiceIface
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewPost(s service.LinkServiceIface, l *zap.Logger, m *metrics.Metrics) *PostHandler {
	return &PostHandler{
		service: s,
		logger:  l,
		metrics: m,
	}
}

// CreateLink handles POST /api/links.
func (h *PostHandler) CreateLink(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFrom(req)
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: "missing token"})
		return
	}

	var request models.CreateLinkRequest
	if !decodeOrFail(res, req, &request, h.logger) {
		return
	}

	if request.Target == "" {
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Error: "target is required"})
		return
	}

	link, err := h.service.Create(ctx, userID, request)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	h.metrics.LinkCreated()
	h.logger.Info("Link created", zap.String("code", link.Code), zap.String("owner", userID))

	writeJSON(res, http.StatusCreated, link)
}
