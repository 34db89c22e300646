// Package api provides HTTP handlers for the mqpub server REST API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coregx/mqpub"
	"github.com/coregx/mqpub/model"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	router      *mqpub.Router
	worker      *mqpub.DrainWorker
	deadLetters *mqpub.DeadLetterManager
	logger      mqpub.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	router *mqpub.Router,
	worker *mqpub.DrainWorker,
	deadLetters *mqpub.DeadLetterManager,
	logger mqpub.Logger,
) *Handler {
	return &Handler{
		router:      router,
		worker:      worker,
		deadLetters: deadLetters,
		logger:      logger,
	}
}

// PublishRequest represents a publish message request.
type PublishRequest struct {
	Broker  string `json:"broker"`
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	QoS     byte   `json:"qos"`
	Retain  bool   `json:"retain"`
}

// ReplayRequest represents a dead letter replay request.
type ReplayRequest struct {
	Broker      string `json:"broker,omitempty"`
	TopicPrefix string `json:"topicPrefix,omitempty"`
	Before      string `json:"before,omitempty"` // RFC 3339
	Limit       int    `json:"limit,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandlePublish handles POST /api/v1/publish
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}

	if req.Broker == "" || req.Topic == "" {
		h.respondError(w, http.StatusBadRequest, "broker and topic are required", mqpub.ErrCodeValidation)
		return
	}

	err := h.router.Route(r.Context(), req.Broker, req.Topic, []byte(req.Payload), req.QoS, req.Retain)
	if err != nil {
		h.respondRouteError(w, err)
		return
	}

	h.respondSuccess(w, http.StatusAccepted, nil, "Message accepted for delivery")
}

// HandleStatus handles GET /api/v1/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	status, err := h.worker.Status(r.Context())
	if err != nil {
		h.logger.Errorf("Failed to collect engine status: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to collect status", "STATUS_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, status, "")
}

// HandleListDeadLetters handles GET /api/v1/deadletters
func (h *Handler) HandleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	entries, err := h.deadLetters.List(r.Context(), limit)
	if err != nil {
		if mqpub.IsNoData(err) {
			h.respondSuccess(w, http.StatusOK, []model.DeadLetter{}, "No dead letters found")
			return
		}
		h.logger.Errorf("Failed to list dead letters: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list dead letters", "LIST_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, entries, "")
}

// HandleDeadLetterStats handles GET /api/v1/deadletters/stats
func (h *Handler) HandleDeadLetterStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	stats, err := h.deadLetters.Stats(r.Context())
	if err != nil {
		h.logger.Errorf("Failed to collect dead letter stats: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to collect stats", "STATS_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, stats, "")
}

// HandleReplay handles POST /api/v1/deadletters/replay
func (h *Handler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var req ReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}

	filter := model.DeadLetterFilter{
		Broker:      req.Broker,
		TopicPrefix: req.TopicPrefix,
	}
	if req.Before != "" {
		before, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "before must be RFC 3339", mqpub.ErrCodeValidation)
			return
		}
		filter.Before = before
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	result, err := h.deadLetters.Replay(r.Context(), filter, limit)
	if err != nil {
		if mqpub.IsNoData(err) {
			h.respondSuccess(w, http.StatusOK, &mqpub.ReplayResult{}, "No dead letters matched")
			return
		}
		h.logger.Errorf("Failed to replay dead letters: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to replay dead letters", "REPLAY_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, result, "Replay completed")
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "0.1.0",
	}

	h.respondSuccess(w, http.StatusOK, health, "")
}

// respondRouteError maps routing failures to HTTP status codes.
func (h *Handler) respondRouteError(w http.ResponseWriter, err error) {
	var mqErr *mqpub.Error
	if errors.As(err, &mqErr) {
		switch mqErr.Code {
		case mqpub.ErrCodeValidation:
			h.respondError(w, http.StatusBadRequest, mqErr.Message, mqErr.Code)
			return
		case mqpub.ErrCodeUnknownBroker:
			h.respondError(w, http.StatusNotFound, mqErr.Message, mqErr.Code)
			return
		}
	}
	h.logger.Errorf("Failed to route message: %v", err)
	h.respondError(w, http.StatusInternalServerError, "Failed to accept message", "PUBLISH_ERROR")
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}
