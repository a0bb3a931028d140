package main

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer"
	"github.com/BaSui01/hyperinfer/internal/model"
)

// ChatHandler serves the data plane's single request-response endpoint
//: POST /v1/chat, authenticated by an opaque caller key rather
// than the admin surface's JWT.
type ChatHandler struct {
	client *hyperinfer.Client
	logger *zap.Logger
}

// NewChatHandler builds a ChatHandler bound to client.
func NewChatHandler(client *hyperinfer.Client, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{client: client, logger: logger.With(zap.String("component", "gateway.chat"))}
}

// HandleChat POST /v1/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, model.ErrConfigError, "method not allowed")
		return
	}

	key := r.Header.Get("X-API-Key")
	if key == "" {
		writeJSONError(w, http.StatusUnauthorized, model.ErrConfigError, "missing X-API-Key header")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req model.ChatRequest
	if err := decoder.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, model.ErrConfigError, "invalid JSON body")
		return
	}

	resp, err := h.client.Chat(r.Context(), key, &req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps a *model.Error onto the wire; anything else degrades to
// a generic 500, which should not happen since every component along
// Client.Chat's path returns one of the gateway's own typed errors.
func writeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	modelErr, ok := err.(*model.Error)
	if !ok {
		logger.Error("unexpected untyped error from Chat", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, model.ErrHTTPError, "internal error")
		return
	}
	status := modelErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	logger.Warn("chat request failed",
		zap.String("code", string(modelErr.Code)),
		zap.String("message", modelErr.Message),
		zap.Int("status", status))
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":      string(modelErr.Code),
			"message":   modelErr.Message,
			"retryable": modelErr.Retryable,
		},
	})
}

func writeJSONError(w http.ResponseWriter, status int, code model.ErrorCode, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": string(code), "message": message},
	})
}
