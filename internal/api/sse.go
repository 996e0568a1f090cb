package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/orchestrator"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/stream"
)

// handleChat streams one chat session as server-sent events.
func handleChat(svc Interviewer, mode orchestrator.Mode, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		question, err := chatQuestion(w, r)
		if err != nil {
			badRequest(w, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		s, events, err := svc.Chat(r.Context(), mode, question)
		if errors.Is(err, stream.ErrBusy) {
			httpError(w, http.StatusServiceUnavailable, "api_error", "too many concurrent streams, retry later")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "starting stream: %v", err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Session-ID", s.ID)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				logger.Error("encoding stream event", "session", s.ID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				logger.Debug("stream client gone", "session", s.ID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// chatQuestion reads the question from a JSON or form body, falling back
// to the query string. Bodies of other content types are ignored.
func chatQuestion(w http.ResponseWriter, r *http.Request) (string, error) {
	var req chatRequest
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "application/x-www-form-urlencoded", "multipart/form-data":
			v, err := formValue(w, r, "question")
			if err != nil {
				return "", err
			}
			if v != "" {
				data, _ := json.Marshal(chatRequest{Question: v})
				if err := validateJSON(data, "chat", &req); err != nil {
					return "", err
				}
			}
		case "application/json", "":
			if err := decodeBody(w, r, "chat", &req); err != nil {
				return "", err
			}
		}
	}
	if req.Question == "" {
		req.Question = r.URL.Query().Get("question")
	}
	if req.Question == "" {
		return "", &requestError{msg: "question is required"}
	}
	return req.Question, nil
}
