package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-desk/internal/middleware"
	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/internal/service"
	"github.com/capitalize-ai/support-desk/internal/session"
	"github.com/capitalize-ai/support-desk/pkg/logger"
)

const maxBodyBytes = 64 << 10

// MessageHandler handles operator reply endpoints.
type MessageHandler struct {
	support *service.SupportService
	drafter *service.Drafter
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler. drafter may be nil.
func NewMessageHandler(support *service.SupportService, drafter *service.Drafter, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		support: support,
		drafter: drafter,
		logger:  log,
	}
}

// Send handles POST /api/v1/threads/{key}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	key, err := participantKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendReplyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.support.Reply(r.Context(), key, req.Text)
	switch {
	case errors.Is(err, session.ErrThreadNotFound):
		writeError(w, http.StatusNotFound, "thread not found")
		return
	case errors.Is(err, session.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		middleware.RequestLogger(r.Context(), h.logger).Error("failed to send reply",
			zap.String("participant_key", key),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to send reply")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Draft handles POST /api/v1/threads/{key}/draft
func (h *MessageHandler) Draft(w http.ResponseWriter, r *http.Request) {
	key, err := participantKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	draft, err := h.drafter.Draft(r.Context(), key)
	switch {
	case errors.Is(err, service.ErrDraftsDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, session.ErrThreadNotFound):
		writeError(w, http.StatusNotFound, "thread not found")
		return
	case err != nil:
		middleware.RequestLogger(r.Context(), h.logger).Warn("failed to draft reply",
			zap.String("participant_key", key),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "failed to draft reply")
		return
	}

	writeJSON(w, http.StatusOK, draft)
}
