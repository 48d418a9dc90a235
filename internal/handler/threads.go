package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-desk/internal/middleware"
	"github.com/capitalize-ai/support-desk/internal/service"
	"github.com/capitalize-ai/support-desk/internal/session"
	"github.com/capitalize-ai/support-desk/pkg/logger"
)

// ThreadHandler handles thread list and selection endpoints.
type ThreadHandler struct {
	support *service.SupportService
	logger  *logger.Logger
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(support *service.SupportService, log *logger.Logger) *ThreadHandler {
	return &ThreadHandler{
		support: support,
		logger:  log,
	}
}

// List handles GET /api/v1/threads?q=
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.support.Threads(r.Context(), r.URL.Query().Get("q")))
}

// Get handles GET /api/v1/threads/{key}. Opening a thread marks it read.
func (h *ThreadHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, err := participantKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	th, err := h.support.Select(r.Context(), key)
	if errors.Is(err, session.ErrThreadNotFound) {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		middleware.RequestLogger(r.Context(), h.logger).Error("failed to select thread", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open thread")
		return
	}

	writeJSON(w, http.StatusOK, th)
}

// Unread handles GET /api/v1/unread
func (h *ThreadHandler) Unread(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.support.TotalUnread(r.Context()))
}

// ClearHistory handles DELETE /api/v1/history
func (h *ThreadHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	log := middleware.RequestLogger(r.Context(), h.logger)
	if err := h.support.ClearHistory(r.Context()); err != nil {
		log.Error("failed to clear history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	log.Info("history cleared by operator")
	w.WriteHeader(http.StatusNoContent)
}
