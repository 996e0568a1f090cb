package mockgen

import (
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
)

func newTestGenerator(seed uint64) *Generator {
	return New(rand.NewPCG(seed, seed+1))
}

func TestPoolsLoad(t *testing.T) {
	p, err := loadPools(poolsYAML)
	require.NoError(t, err)
	assert.Len(t, p.Suggestions, 8)
	assert.Len(t, p.Behavioral, 5)
	assert.Len(t, p.Technical["frontend"]["medium"], 3)
}

func TestPoolsRejectEmpty(t *testing.T) {
	_, err := loadPools([]byte("behavioral: []\n"))
	assert.Error(t, err)
}

func TestQuestionNeverEmpty(t *testing.T) {
	g := newTestGenerator(1)
	types := []string{interview.TypeTechnical, interview.TypeBehavioral, interview.TypeSystemDesign, interview.TypeCoding, "", "panel"}
	positions := []string{"frontend", "backend", "fullstack", "mobile", "devops", ""}
	difficulties := []string{"easy", "medium", "hard", "", "extreme"}

	for _, typ := range types {
		for _, pos := range positions {
			for _, d := range difficulties {
				q := g.Question(interview.Parameters{Type: typ, Position: pos, Difficulty: d})
				assert.NotEmpty(t, q, "type=%q position=%q difficulty=%q", typ, pos, d)
			}
		}
	}
}

func TestQuestionFromMatchingPool(t *testing.T) {
	g := newTestGenerator(2)
	p, err := loadPools(poolsYAML)
	require.NoError(t, err)

	for range 20 {
		q := g.Question(interview.Parameters{Type: interview.TypeTechnical, Position: "frontend", Difficulty: "hard"})
		assert.Contains(t, p.Technical["frontend"]["hard"], q)

		q = g.Question(interview.Parameters{Type: interview.TypeTechnical, Position: "mobile", Difficulty: "easy"})
		assert.Contains(t, p.Technical["backend"]["easy"], q)

		q = g.Question(interview.Parameters{Type: interview.TypeCoding, Difficulty: "medium"})
		assert.Contains(t, p.Coding["medium"], q)

		q = g.Question(interview.Parameters{Type: interview.TypeSystemDesign, Difficulty: "unknown"})
		assert.Contains(t, p.SystemDesign["hard"], q)

		q = g.Question(interview.Parameters{Type: interview.TypeBehavioral})
		assert.Contains(t, p.Behavioral, q)
	}
}

func TestScoreBuckets(t *testing.T) {
	g := newTestGenerator(3)
	tests := []struct {
		name   string
		answer string
		lo, hi int
	}{
		{"empty", "", 3, 4},
		{"whitespace padded short", "   短回答   ", 3, 4},
		{"19 runes", strings.Repeat("字", 19), 3, 4},
		{"20 runes", strings.Repeat("字", 20), 5, 6},
		{"99 runes", strings.Repeat("字", 99), 5, 6},
		{"100 runes", strings.Repeat("字", 100), 6, 7},
		{"199 runes", strings.Repeat("字", 199), 6, 7},
		{"200 runes", strings.Repeat("字", 200), 7, 9},
		{"250 runes", strings.Repeat("a", 250), 7, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := map[int]bool{}
			for range 200 {
				s := g.Score(tt.answer)
				require.GreaterOrEqual(t, s, tt.lo)
				require.LessOrEqual(t, s, tt.hi)
				seen[s] = true
			}
			assert.Len(t, seen, tt.hi-tt.lo+1, "every value in the bucket should appear")
		})
	}
}

func TestCommentBands(t *testing.T) {
	g := newTestGenerator(4)
	p, err := loadPools(poolsYAML)
	require.NoError(t, err)

	for score, b := range map[int]string{10: bandExcellent, 8: bandExcellent, 7: bandGood, 6: bandGood, 5: bandAverage, 4: bandAverage, 3: bandPoor, 1: bandPoor} {
		assert.Contains(t, p.Comments[b], g.Comment(score), "score %d", score)
	}
}

func TestSuggestionsCount(t *testing.T) {
	g := newTestGenerator(5)
	want := map[int]int{10: 2, 9: 2, 8: 3, 7: 4, 5: 4, 1: 4}
	for score, n := range want {
		got := g.Suggestions(score)
		assert.Len(t, got, n, "score %d", score)

		unique := map[string]bool{}
		for _, s := range got {
			unique[s] = true
		}
		assert.Len(t, unique, n, "suggestions must be drawn without replacement")
	}
}

func TestFeedbackInvariant(t *testing.T) {
	g := newTestGenerator(6)
	for _, answer := range []string{"", "x", strings.Repeat("答", 150), strings.Repeat("答", 500)} {
		fb := g.Feedback(answer)
		assert.GreaterOrEqual(t, fb.Score, interview.MinScore)
		assert.LessOrEqual(t, fb.Score, interview.MaxScore)
		assert.NotEmpty(t, fb.Comment)
		assert.NotEmpty(t, fb.Suggestions)
	}
}

func TestSeededReproducible(t *testing.T) {
	a, b := newTestGenerator(42), newTestGenerator(42)
	p := interview.Parameters{Type: interview.TypeCoding, Difficulty: "hard"}
	for range 10 {
		assert.Equal(t, a.Question(p), b.Question(p))
		assert.Equal(t, a.Feedback("some answer"), b.Feedback("some answer"))
	}
}

func TestSummary(t *testing.T) {
	g := newTestGenerator(7)

	s := g.Summary(interview.SummaryRequest{
		Scores:         []int{8, 9, 8},
		TotalQuestions: 5,
		Parameters:     interview.Parameters{Position: "backend", ExperienceLevel: "senior"},
	})
	assert.Equal(t, 8, s.OverallScore)
	assert.Equal(t, 3, s.AnsweredQuestions)
	assert.Equal(t, 5, s.TotalQuestions)
	assert.Equal(t, 30, s.TotalDuration)
	assert.Contains(t, s.OverallComment, "后端开发")
	assert.Contains(t, s.OverallComment, "高级 (5年以上)")
	assert.Len(t, s.Strengths, 4)
	assert.Len(t, s.Weaknesses, 2)
	assert.Equal(t, "加强沟通表达能力，提升面试技巧", s.Recommendations[len(s.Recommendations)-1])
	assert.Len(t, s.SkillScores, 5)
	for name, v := range s.SkillScores {
		assert.InDelta(t, 8, v, 1, "skill %s", name)
	}
}

func TestSummaryWithoutScores(t *testing.T) {
	g := newTestGenerator(8)
	s := g.Summary(interview.SummaryRequest{Duration: 45, Parameters: interview.Parameters{Position: "frontend"}})

	assert.Equal(t, 5, s.OverallScore)
	assert.Equal(t, 45, s.TotalDuration)
	assert.Equal(t, "建议系统性地学习前端开发相关的核心技术", s.Recommendations[0])
	assert.Len(t, s.Strengths, 3)
	assert.Len(t, s.Weaknesses, 3)
}

func TestSummarySkillScoresClamped(t *testing.T) {
	g := newTestGenerator(9)
	for range 50 {
		high := g.Summary(interview.SummaryRequest{Scores: []int{10, 10}})
		low := g.Summary(interview.SummaryRequest{Scores: []int{1}})
		for _, v := range high.SkillScores {
			assert.LessOrEqual(t, v, 10)
		}
		for _, v := range low.SkillScores {
			assert.GreaterOrEqual(t, v, 1)
		}
	}
}

func TestChatReplies(t *testing.T) {
	g := newTestGenerator(10)
	assert.Contains(t, g.SimpleReply("什么是Go?"), "什么是Go?")

	advanced := g.FallbackReply("解释channel", true)
	assert.True(t, strings.HasPrefix(advanced, "【高级思考模式响应】"))
	assert.Contains(t, advanced, "解释channel")
	assert.Contains(t, g.FallbackReply("q", false), "标准模式")
}

func TestDurationRange(t *testing.T) {
	g := newTestGenerator(11)
	for range 100 {
		d := g.Duration(300*time.Millisecond, 500*time.Millisecond)
		assert.GreaterOrEqual(t, d, 300*time.Millisecond)
		assert.LessOrEqual(t, d, 500*time.Millisecond)
	}
	assert.Equal(t, time.Second, g.Duration(time.Second, time.Second))
}

func TestConcurrentUse(t *testing.T) {
	g := newTestGenerator(12)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				g.Feedback("concurrent answer text")
				g.Question(interview.Parameters{})
			}
		}()
	}
	wg.Wait()
}
