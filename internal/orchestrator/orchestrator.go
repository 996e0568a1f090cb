// Package orchestrator turns interview requests into provider calls and
// guarantees an answer: every provider problem degrades to the mock
// generator instead of failing the request.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/mockgen"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/parser"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/prompt"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/provider"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/storage"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/stream"
)

// ErrFallbackFailed means the mock generator itself failed. It is the only
// error GenerateQuestion, EvaluateAnswer and Summarize return.
var ErrFallbackFailed = errors.New("fallback generation failed")

// ErrUnknownMode is returned by Chat for an unsupported mode.
var ErrUnknownMode = errors.New("unknown chat mode")

// DefaultUserID owns answer records until accounts exist.
const DefaultUserID int64 = 1

// Store is the persistence the orchestrator writes through. Failures are
// logged and never fail a request.
type Store interface {
	PersistQuestion(ctx context.Context, q interview.Question) (int64, error)
	FindQuestion(ctx context.Context, id int64) (interview.Question, error)
	PersistAnswerRecord(ctx context.Context, userID, questionID int64, answer string, fb interview.Feedback) (storage.AnswerRecord, error)
}

// Mock is the local generator used whenever no provider can answer.
type Mock interface {
	Question(p interview.Parameters) string
	Feedback(answer string) interview.Feedback
	Summary(req interview.SummaryRequest) interview.Summary
	SimpleReply(question string) string
	FallbackReply(question string, advanced bool) string
	Duration(lo, hi time.Duration) time.Duration
}

// Options wires an Orchestrator. Zero timeouts use 5 and 10 minutes.
type Options struct {
	Selector     *provider.Selector
	Mock         Mock
	Store        Store
	Dispatcher   *stream.Dispatcher
	Logger       *slog.Logger
	ShortTimeout time.Duration
	LongTimeout  time.Duration
	PaceMin      time.Duration
	PaceMax      time.Duration
}

type Orchestrator struct {
	selector   *provider.Selector
	mock       Mock
	store      Store
	dispatcher *stream.Dispatcher
	logger     *slog.Logger

	shortTimeout time.Duration
	longTimeout  time.Duration
	paceMin      time.Duration
	paceMax      time.Duration

	now func() time.Time
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		selector:     opts.Selector,
		mock:         opts.Mock,
		store:        opts.Store,
		dispatcher:   opts.Dispatcher,
		logger:       opts.Logger,
		shortTimeout: opts.ShortTimeout,
		longTimeout:  opts.LongTimeout,
		paceMin:      opts.PaceMin,
		paceMax:      opts.PaceMax,
		now:          time.Now,
	}
	if o.mock == nil {
		o.mock = mockgen.New(nil)
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "orchestrator")
	}
	if o.shortTimeout <= 0 {
		o.shortTimeout = 5 * time.Minute
	}
	if o.longTimeout <= 0 {
		o.longTimeout = 10 * time.Minute
	}
	return o
}

// QuestionResult is the payload of a generated question.
type QuestionResult struct {
	Question   string `json:"question"`
	Type       string `json:"type"`
	QuestionID string `json:"questionId"`
}

// GenerateQuestion asks a network-capable provider, then a generic one,
// and falls back to the mock pools. AI questions are persisted; mock
// questions get a fallback_<millis> ID and are not.
func (o *Orchestrator) GenerateQuestion(ctx context.Context, p interview.Parameters) (res QuestionResult, err error) {
	defer recoverFallback(&err)
	p = p.WithDefaults()
	text := prompt.BuildQuestion(p)

	if prov, _, ok := o.selector.SelectFirst(provider.Network, provider.GenericText); ok {
		content, err := o.askQuestion(ctx, prov, text)
		if err == nil {
			q := interview.NewQuestion(content, p, true, text)
			return QuestionResult{Question: content, Type: p.Type, QuestionID: o.persistQuestion(ctx, q)}, nil
		}
		o.logger.Warn("question generation failed, using mock", "provider", prov.Name(), "error", err)
	} else {
		o.logger.Debug("no provider for question generation, using mock")
	}

	content := o.mock.Question(p)
	if content == "" {
		return QuestionResult{}, fmt.Errorf("%w: empty mock question", ErrFallbackFailed)
	}
	return QuestionResult{
		Question:   content,
		Type:       p.Type,
		QuestionID: fmt.Sprintf("fallback_%d", o.now().UnixMilli()),
	}, nil
}

func (o *Orchestrator) askQuestion(ctx context.Context, prov provider.Provider, text string) (string, error) {
	raw, err := prov.Generate(provider.WithPurpose(ctx, "question"), text)
	if err != nil {
		return "", err
	}
	return parser.ParseQuestion(raw)
}

func (o *Orchestrator) persistQuestion(ctx context.Context, q interview.Question) string {
	if o.store != nil {
		id, err := o.store.PersistQuestion(ctx, q)
		if err == nil {
			return strconv.FormatInt(id, 10)
		}
		o.logger.Warn("persisting question failed", "error", err)
	}
	return fmt.Sprintf("ai_%d", o.now().UnixMilli())
}

// EvaluateAnswer scores answer with a deep-thinking provider, then a
// generic one, then the mock. The result is recorded against questionID
// when it is a numeric ID of a stored question.
func (o *Orchestrator) EvaluateAnswer(ctx context.Context, question, answer, questionID string, p interview.Parameters) (fb interview.Feedback, err error) {
	defer recoverFallback(&err)

	fb, ok := o.evaluate(ctx, question, answer, p)
	if !ok {
		fb = o.mock.Feedback(answer)
		if len(fb.Suggestions) == 0 {
			return interview.Feedback{}, fmt.Errorf("%w: mock feedback without suggestions", ErrFallbackFailed)
		}
	}
	o.recordAnswer(ctx, questionID, answer, fb)
	return fb, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, question, answer string, p interview.Parameters) (interview.Feedback, bool) {
	prov, _, ok := o.selector.SelectFirst(provider.DeepThinking, provider.GenericText)
	if !ok {
		o.logger.Debug("no provider for evaluation, using mock")
		return interview.Feedback{}, false
	}
	raw, err := prov.Generate(provider.WithPurpose(ctx, "evaluation"), prompt.BuildEvaluation(question, answer, p))
	if err != nil {
		o.logger.Warn("evaluation failed, using mock", "provider", prov.Name(), "error", err)
		return interview.Feedback{}, false
	}
	return parser.ParseFeedback(raw), true
}

func (o *Orchestrator) recordAnswer(ctx context.Context, questionID, answer string, fb interview.Feedback) {
	if o.store == nil {
		return
	}
	id, ok := parseQuestionID(questionID)
	if !ok {
		return
	}
	if _, err := o.store.FindQuestion(ctx, id); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			o.logger.Warn("looking up question failed", "question_id", questionID, "error", err)
		}
		return
	}
	if _, err := o.store.PersistAnswerRecord(ctx, DefaultUserID, id, answer, fb); err != nil {
		o.logger.Warn("persisting answer record failed", "question_id", questionID, "error", err)
	}
}

// parseQuestionID accepts only stored row IDs. ai_ and fallback_ IDs name
// questions that were never persisted.
func parseQuestionID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Summarize builds the end-of-interview report from per-question scores.
func (o *Orchestrator) Summarize(_ context.Context, req interview.SummaryRequest) (s interview.Summary, err error) {
	defer recoverFallback(&err)
	return o.mock.Summary(req), nil
}

func recoverFallback(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrFallbackFailed, r)
	}
}
