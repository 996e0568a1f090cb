// Package api exposes the orchestrator over HTTP (JSON and server-sent
// events) and as MCP tools.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/orchestrator"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/storage"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/stream"
)

// Interviewer is the orchestrator surface served over HTTP and MCP.
type Interviewer interface {
	GenerateQuestion(ctx context.Context, p interview.Parameters) (orchestrator.QuestionResult, error)
	EvaluateAnswer(ctx context.Context, question, answer, questionID string, p interview.Parameters) (interview.Feedback, error)
	Summarize(ctx context.Context, req interview.SummaryRequest) (interview.Summary, error)
	Chat(ctx context.Context, mode orchestrator.Mode, message string) (*stream.Session, <-chan stream.Event, error)
	Status() orchestrator.StatusReport
	Session(ctx context.Context, id string) (stream.Info, error)
}

// RecordStore serves answer history. It may be nil when storage is off.
type RecordStore interface {
	ListAnswerRecords(ctx context.Context, f storage.RecordFilter) ([]storage.AnswerRecord, error)
	ListWrongQuestions(ctx context.Context, userID int64) ([]storage.WrongQuestion, error)
}

const (
	defaultRecordLimit = 20
	maxRecordLimit     = 100
)

var chatRoutes = map[string]orchestrator.Mode{
	"/chat":         orchestrator.ModeDeep,
	"/chat-network": orchestrator.ModeNetwork,
	"/chat-http":    orchestrator.ModeHTTP,
	"/chat-simple":  orchestrator.ModeSimple,
}

// NewHandler returns the HTTP API. A nil logger uses slog.Default.
func NewHandler(svc Interviewer, records RecordStore, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Route("/api/ai", func(r chi.Router) {
		r.Get("/status", handleStatus(svc))
		for path, mode := range chatRoutes {
			h := handleChat(svc, mode, logger)
			r.Get(path, h)
			r.Post(path, h)
		}
		r.Get("/sessions/{id}", handleSession(svc))
		r.Post("/question", handleQuestion(svc))
		r.Post("/answer", handleAnswer(svc))
		r.Post("/summary", handleSummary(svc))
		r.Get("/records", handleRecords(records))
		r.Get("/wrong-questions", handleWrongQuestions(records))
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStatus(svc Interviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

func handleSession(svc Interviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		info, err := svc.Session(r.Context(), id)
		if errors.Is(err, stream.ErrSessionNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "session %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "session lookup failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func handleQuestion(svc Interviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if err := decodeBody(w, r, "question", &req); err != nil {
			badRequest(w, err)
			return
		}
		res, err := svc.GenerateQuestion(r.Context(), req.parameters())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "generating question: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleAnswer(svc Interviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerRequest
		if err := decodeBody(w, r, "answer", &req); err != nil {
			badRequest(w, err)
			return
		}
		fb, err := svc.EvaluateAnswer(r.Context(), req.Question, req.Answer, string(req.QuestionID), req.parameters())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "evaluating answer: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, answerResponse{Feedback: fb})
	}
}

func handleSummary(svc Interviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req summaryRequest
		if err := decodeBody(w, r, "summary", &req); err != nil {
			badRequest(w, err)
			return
		}
		s, err := svc.Summarize(r.Context(), req.toDomain())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "building summary: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleRecords(records RecordStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if records == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "storage is not configured")
			return
		}
		userID, err := queryInt(r, "userId", orchestrator.DefaultUserID)
		if err != nil {
			badRequest(w, err)
			return
		}
		questionID, err := queryInt(r, "questionId", 0)
		if err != nil {
			badRequest(w, err)
			return
		}
		limit, err := queryInt(r, "limit", defaultRecordLimit)
		if err != nil {
			badRequest(w, err)
			return
		}
		limit = min(max(limit, 1), maxRecordLimit)

		list, err := records.ListAnswerRecords(r.Context(), storage.RecordFilter{
			UserID:     userID,
			QuestionID: questionID,
			Limit:      int(limit),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "listing records: %v", err)
			return
		}
		if list == nil {
			list = []storage.AnswerRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": list})
	}
}

func handleWrongQuestions(records RecordStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if records == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "storage is not configured")
			return
		}
		userID, err := queryInt(r, "userId", orchestrator.DefaultUserID)
		if err != nil {
			badRequest(w, err)
			return
		}
		list, err := records.ListWrongQuestions(r.Context(), userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "server_error", "listing wrong questions: %v", err)
			return
		}
		if list == nil {
			list = []storage.WrongQuestion{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"wrongQuestions": list})
	}
}

func queryInt(r *http.Request, key string, def int64) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &requestError{msg: key + " must be an integer"}
	}
	return n, nil
}

func badRequest(w http.ResponseWriter, err error) {
	var re *requestError
	if errors.As(err, &re) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", re.msg)
		return
	}
	httpError(w, http.StatusInternalServerError, "server_error", "%v", err)
}
