package orchestrator

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/mockgen"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/provider"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/storage"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/stream"
)

type stubProvider struct {
	name   string
	text   string
	err    error
	chunks []provider.Chunk

	mu      sync.Mutex
	prompts []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.text, s.err
}

func (s *stubProvider) GenerateStream(_ context.Context, prompt string) (<-chan provider.Chunk, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan provider.Chunk, len(s.chunks))
	for _, c := range s.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func entry(p provider.Provider, prio int, caps provider.Capability) provider.Entry {
	return provider.Entry{
		Descriptor: provider.Descriptor{Name: p.Name(), Priority: prio, Capabilities: caps, Available: true},
		Provider:   p,
	}
}

type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	persistEr error
	questions map[int64]interview.Question
	records   []storage.AnswerRecord
	lookups   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 41, questions: map[int64]interview.Question{}}
}

func (f *fakeStore) PersistQuestion(_ context.Context, q interview.Question) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistEr != nil {
		return 0, f.persistEr
	}
	f.nextID++
	q.ID = f.nextID
	f.questions[q.ID] = q
	return q.ID, nil
}

func (f *fakeStore) FindQuestion(_ context.Context, id int64) (interview.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	q, ok := f.questions[id]
	if !ok {
		return interview.Question{}, storage.ErrNotFound
	}
	return q, nil
}

func (f *fakeStore) PersistAnswerRecord(_ context.Context, userID, questionID int64, answer string, fb interview.Feedback) (storage.AnswerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := storage.AnswerRecord{UserID: userID, QuestionID: questionID, Answer: answer, Score: fb.Score, Evaluation: fb}
	f.records = append(f.records, rec)
	return rec, nil
}

func newTestOrchestrator(t *testing.T, sel *provider.Selector, store Store) *Orchestrator {
	t.Helper()
	d, err := stream.NewDispatcher(8, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(time.Second) })

	o := New(Options{
		Selector:   sel,
		Mock:       mockgen.New(rand.NewPCG(1, 2)),
		Store:      store,
		Dispatcher: d,
	})
	o.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return o
}

func TestGenerateQuestionFromNetworkProvider(t *testing.T) {
	net := &stubProvider{name: "net", text: "题目：请解释浏览器事件循环的执行顺序"}
	gen := &stubProvider{name: "gen", text: "should not be used"}
	store := newFakeStore()
	o := newTestOrchestrator(t, provider.NewSelector(entry(gen, 40, provider.GenericText), entry(net, 30, provider.Network)), store)

	res, err := o.GenerateQuestion(context.Background(), interview.Parameters{Type: "technical", Position: "frontend"})
	require.NoError(t, err)
	assert.Equal(t, "请解释浏览器事件循环的执行顺序", res.Question)
	assert.Equal(t, "technical", res.Type)
	assert.Equal(t, "42", res.QuestionID)
	assert.Empty(t, gen.prompts)

	q := store.questions[42]
	assert.True(t, q.GeneratedByAI)
	assert.Equal(t, res.Question, q.Content)
	assert.Contains(t, q.Tags, "前端开发")
	assert.Contains(t, q.SourcePrompt, "当前是第 1 题")
}

func TestGenerateQuestionFallsThroughToGeneric(t *testing.T) {
	gen := &stubProvider{name: "gen", text: "请描述一次你解决线上故障的经历"}
	o := newTestOrchestrator(t, provider.NewSelector(entry(gen, 40, provider.GenericText)), newFakeStore())

	res, err := o.GenerateQuestion(context.Background(), interview.Parameters{Type: "behavioral"})
	require.NoError(t, err)
	assert.Equal(t, "请描述一次你解决线上故障的经历", res.Question)
	assert.Len(t, gen.prompts, 1)
}

func TestGenerateQuestionFallsBackToMock(t *testing.T) {
	tests := []struct {
		name string
		sel  *provider.Selector
	}{
		{"no provider", provider.NewSelector()},
		{"nil selector", nil},
		{"call failed", provider.NewSelector(entry(&stubProvider{name: "net", err: &provider.CallError{Provider: "net", Err: errors.New("dial tcp: refused")}}, 30, provider.Network))},
		{"too short", provider.NewSelector(entry(&stubProvider{name: "net", text: "问题：短"}, 30, provider.Network))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			o := newTestOrchestrator(t, tt.sel, store)

			res, err := o.GenerateQuestion(context.Background(), interview.Parameters{})
			require.NoError(t, err)
			assert.NotEmpty(t, res.Question)
			assert.Equal(t, "technical", res.Type)
			assert.Equal(t, "fallback_1700000000000", res.QuestionID)
			assert.Empty(t, store.questions)
		})
	}
}

func TestGenerateQuestionPersistFailure(t *testing.T) {
	net := &stubProvider{name: "net", text: "请解释 TCP 三次握手的过程和原因"}
	store := newFakeStore()
	store.persistEr = errors.New("disk full")
	o := newTestOrchestrator(t, provider.NewSelector(entry(net, 30, provider.Network)), store)

	res, err := o.GenerateQuestion(context.Background(), interview.Parameters{})
	require.NoError(t, err)
	assert.Equal(t, "ai_1700000000000", res.QuestionID)
}

func TestEvaluateAnswerFromProvider(t *testing.T) {
	deep := &stubProvider{name: "deep", text: "评估如下 {\"score\": 8, \"comment\": \"不错\", \"suggestions\": [\"补充示例\"]}"}
	store := newFakeStore()
	store.questions[42] = interview.Question{ID: 42, Content: "q"}
	o := newTestOrchestrator(t, provider.NewSelector(entry(deep, 10, provider.DeepThinking)), store)

	fb, err := o.EvaluateAnswer(context.Background(), "q", "my answer", "42", interview.Parameters{})
	require.NoError(t, err)
	assert.Equal(t, interview.Feedback{Score: 8, Comment: "不错", Suggestions: []string{"补充示例"}}, fb)

	require.Len(t, store.records, 1)
	assert.Equal(t, DefaultUserID, store.records[0].UserID)
	assert.Equal(t, int64(42), store.records[0].QuestionID)
	assert.Equal(t, "my answer", store.records[0].Answer)
	assert.Contains(t, deep.prompts[0], "my answer")
}

func TestEvaluateAnswerRecordsOnlyStoredQuestions(t *testing.T) {
	tests := []struct {
		id      string
		want    int
		lookups int
	}{
		{"42", 1, 1},
		{"7", 0, 1},
		{"ai_42", 0, 0},
		{"fallback_1700000000000", 0, 0},
		{"", 0, 0},
		{"-3", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			store := newFakeStore()
			store.questions[42] = interview.Question{ID: 42}
			o := newTestOrchestrator(t, nil, store)

			_, err := o.EvaluateAnswer(context.Background(), "q", "a", tt.id, interview.Parameters{})
			require.NoError(t, err)
			assert.Len(t, store.records, tt.want)
			assert.Equal(t, tt.lookups, store.lookups)
		})
	}
}

func TestEvaluateAnswerNeverFails(t *testing.T) {
	failing := &stubProvider{name: "deep", err: &provider.CallError{Provider: "deep", Err: context.DeadlineExceeded}}
	sels := []*provider.Selector{
		nil,
		provider.NewSelector(entry(failing, 10, provider.DeepThinking)),
	}
	answers := []string{"", "短", strings.Repeat("详细", 30), strings.Repeat("很长的回答", 100)}
	for _, sel := range sels {
		o := newTestOrchestrator(t, sel, nil)
		for _, a := range answers {
			fb, err := o.EvaluateAnswer(context.Background(), "q", a, "", interview.Parameters{})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, fb.Score, interview.MinScore)
			assert.LessOrEqual(t, fb.Score, interview.MaxScore)
			assert.NotEmpty(t, fb.Suggestions)
			assert.NotEmpty(t, fb.Comment)
		}
	}
}

func TestEvaluateAnswerFreeText(t *testing.T) {
	gen := &stubProvider{name: "gen", text: "回答覆盖了核心概念，但缺少实例。"}
	o := newTestOrchestrator(t, provider.NewSelector(entry(gen, 40, provider.GenericText)), nil)

	fb, err := o.EvaluateAnswer(context.Background(), "q", "a", "", interview.Parameters{})
	require.NoError(t, err)
	assert.Equal(t, 7, fb.Score)
	assert.Equal(t, "回答覆盖了核心概念，但缺少实例。", fb.Comment)
}

type panicMock struct{ Mock }

func (panicMock) Question(interview.Parameters) string { panic("pool missing") }

func (panicMock) Feedback(string) interview.Feedback { return interview.Feedback{Score: 5} }

func (panicMock) Summary(interview.SummaryRequest) interview.Summary { panic("no template") }

func TestFallbackFailureSurfaces(t *testing.T) {
	o := New(Options{Mock: panicMock{}})

	_, err := o.GenerateQuestion(context.Background(), interview.Parameters{})
	assert.ErrorIs(t, err, ErrFallbackFailed)

	_, err = o.EvaluateAnswer(context.Background(), "q", "a", "", interview.Parameters{})
	assert.ErrorIs(t, err, ErrFallbackFailed)

	_, err = o.Summarize(context.Background(), interview.SummaryRequest{})
	assert.ErrorIs(t, err, ErrFallbackFailed)
}

func TestSummarize(t *testing.T) {
	o := newTestOrchestrator(t, nil, nil)
	s, err := o.Summarize(context.Background(), interview.SummaryRequest{Scores: []int{6, 8, 9}, TotalQuestions: 5})
	require.NoError(t, err)
	assert.Equal(t, 8, s.OverallScore)
	assert.Equal(t, 5, s.TotalQuestions)
	assert.Equal(t, 3, s.AnsweredQuestions)
}

func TestParseQuestionID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12", 12, true},
		{" 12 ", 12, true},
		{"ai_99", 0, false},
		{"fallback_12", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseQuestionID(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
