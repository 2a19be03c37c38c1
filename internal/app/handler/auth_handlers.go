package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/tinylink/internal/app/service"
	"github.com/atinyakov/tinylink/internal/models"
)

type AuthHandler struct {
	auth   service.AuthIface
	logger *zap.Logger
}

func NewAuth(a service.AuthIface, l *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   a,
		logger: l,
	}
}

func (h *AuthHandler) Register(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var creds models.Credentials
	if !decodeOrFail(res, req, &creds, h.logger) {
		return
	}

	user, err := h.auth.Register(ctx, creds.Email, creds.Password)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	h.logger.Info("User registered", zap.String("user", user.ID))
	writeJSON(res, http.StatusCreated, user)
}

func (h *AuthHandler) Login(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	var creds models.Credentials
	if !decodeOrFail(res, req, &creds, h.logger) {
		return
	}

	login, err := h.auth.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusOK, login)
}

// Me returns the account behind the bearer token.
func (h *AuthHandler) Me(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	userID, ok := userIDFrom(req)
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: "missing token"})
		return
	}

	user, err := h.auth.CurrentUser(ctx, userID)
	if err != nil {
		writeError(res, err, h.logger)
		return
	}

	writeJSON(res, http.StatusOK, user)
}
