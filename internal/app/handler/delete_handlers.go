package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/tinylink/internal/app/service"
	"github.com/atinyakov/tinylink/internal/models"
)

type DeleteHandler struct {
	service service.LinkServiceIface
	logger  *zap.Logger
}

func NewDelete(s service.LinkServiceIface, l *zap.Logger) *DeleteHandler {
	return &DeleteHandler{
		service: s,
		logger:  l,
	}
}

// DeleteLink soft deletes one of the caller's links.
func (h *DeleteHandler) DeleteLink(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFrom(req)
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: "missing token"})
		return
	}

	code := chi.URLParam(req, "code")
	if err := h.service.Delete(ctx, userID, code); err != nil {
		writeError(res, err, h.logger)
		return
	}

	h.logger.Info("Link deleted", zap.String("code", code), zap.String("owner", userID))
	writeJSON(res, http.StatusOK, models.OKResponse{OK: true})
}

// DeleteBatch accepts a JSON array of codes and queues them for deletion.
func (h *DeleteHandler) DeleteBatch(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFrom(req)
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: "missing token"})
		return
	}

	var codes []string
	if !decodeOrFail(res, req, &codes, h.logger) {
		return
	}

	if err := h.service.DeleteBatch(ctx, userID, codes); err != nil {
		writeError(res, err, h.logger)
		return
	}

	res.WriteHeader(http.StatusAccepted)
}
