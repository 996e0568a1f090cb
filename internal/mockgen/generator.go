// Package mockgen produces questions, feedback, summaries and chat replies
// without calling any backend. It is the fallback for every AI path and must
// always succeed.
package mockgen

import (
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
)

const (
	bandExcellent = "excellent"
	bandGood      = "good"
	bandAverage   = "average"
	bandPoor      = "poor"
)

const (
	minSuggestions = 2
	maxSuggestions = 4
	maxStrengths   = 4
	maxWeaknesses  = 3

	technicalFallback = "backend"
	defaultDuration   = 30
	noScoreOverall    = 5
)

var skillNames = []string{"技术能力", "逻辑思维", "表达能力", "问题分析", "解决方案"}

// Generator is safe for concurrent use. All randomness comes from the
// source passed to New.
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	pools *pools
}

// New returns a Generator drawing from src. A nil src seeds from the clock.
func New(src rand.Source) *Generator {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1|1)
	}
	p, err := loadPools(poolsYAML)
	if err != nil {
		// The pools are compiled in; a decode failure is a build defect.
		panic("mockgen: " + err.Error())
	}
	return &Generator{rng: rand.New(src), pools: p}
}

// Question picks a question for p. Technical questions are keyed by
// position and difficulty; positions without their own pool use the
// backend pool. Unknown types are treated as technical.
func (g *Generator) Question(p interview.Parameters) string {
	d := difficultyKey(p.Difficulty)

	var pool []string
	switch p.Type {
	case interview.TypeBehavioral:
		pool = g.pools.Behavioral
	case interview.TypeSystemDesign:
		pool = g.pools.SystemDesign[d]
	case interview.TypeCoding:
		pool = g.pools.Coding[d]
	default:
		byDifficulty, ok := g.pools.Technical[p.Position]
		if !ok {
			byDifficulty = g.pools.Technical[technicalFallback]
		}
		pool = byDifficulty[d]
	}
	return g.pick(pool)
}

// Score buckets the answer by trimmed length: <20 runes scores 3-4,
// <100 scores 5-6, <200 scores 6-7, anything longer 7-9.
func (g *Generator) Score(answer string) int {
	n := utf8.RuneCountInString(strings.TrimSpace(answer))
	switch {
	case n < 20:
		return g.between(3, 4)
	case n < 100:
		return g.between(5, 6)
	case n < 200:
		return g.between(6, 7)
	default:
		return g.between(7, 9)
	}
}

// Comment picks a comment for the score's band.
func (g *Generator) Comment(score int) string {
	return g.pick(g.pools.Comments[band(score)])
}

// Suggestions draws clamp(2, 4, 11-score) distinct suggestions.
func (g *Generator) Suggestions(score int) []string {
	n := max(minSuggestions, min(maxSuggestions, (10-score)+1))
	return g.sample(g.pools.Suggestions, n)
}

// Feedback scores answer and attaches a matching comment and suggestions.
func (g *Generator) Feedback(answer string) interview.Feedback {
	score := g.Score(answer)
	return interview.Feedback{
		Score:       score,
		Comment:     g.Comment(score),
		Suggestions: g.Suggestions(score),
	}
}

// Summary builds the end-of-interview report from per-question scores.
func (g *Generator) Summary(req interview.SummaryRequest) interview.Summary {
	overall := noScoreOverall
	if len(req.Scores) > 0 {
		total := 0
		for _, s := range req.Scores {
			total += s
		}
		overall = int(math.Round(float64(total) / float64(len(req.Scores))))
	}

	duration := req.Duration
	if duration <= 0 {
		duration = defaultDuration
	}

	skills := make(map[string]int, len(skillNames))
	for _, name := range skillNames {
		skills[name] = interview.ClampScore(overall + g.between(-1, 1))
	}

	position := interview.PositionLabel(req.Parameters.Position)
	experience := interview.ExperienceLabel(req.Parameters.ExperienceLevel)
	commentTmpl := strings.NewReplacer("{position}", position, "{experience}", experience)

	return interview.Summary{
		OverallScore:      overall,
		SkillScores:       skills,
		OverallComment:    commentTmpl.Replace(g.pools.SummaryComments[band(overall)]),
		Strengths:         g.sample(g.pools.Strengths, min(overall/2+1, maxStrengths)),
		Weaknesses:        g.sample(g.pools.Weaknesses, min(max(1, (10-overall)/2+1), maxWeaknesses)),
		Recommendations:   g.recommendations(overall, position),
		AnsweredQuestions: len(req.Scores),
		TotalQuestions:    max(req.TotalQuestions, len(req.Scores)),
		TotalDuration:     duration,
	}
}

func (g *Generator) recommendations(score int, position string) []string {
	r := g.pools.Recommendations
	var base []string
	switch {
	case score < 6:
		base = r.Poor
	case score < 8:
		base = r.Good
	default:
		base = r.Excellent
	}
	out := make([]string, 0, len(base)+1)
	for _, s := range base {
		out = append(out, strings.ReplaceAll(s, "{position}", position))
	}
	return append(out, r.Closing)
}

// SimpleReply is the canned chat answer of the simple mode.
func (g *Generator) SimpleReply(question string) string {
	return strings.ReplaceAll(g.pools.Chat.Simple, "{question}", question)
}

// FallbackReply is the chat answer used when no backend serves a mode.
// advanced selects the deep-reasoning wording.
func (g *Generator) FallbackReply(question string, advanced bool) string {
	mode := "标准模式"
	if advanced {
		mode = "高级思考模式"
	}
	return strings.NewReplacer("{question}", question, "{mode}", mode).Replace(g.pools.Chat.Fallback)
}

// Duration returns a random duration in [lo, hi].
func (g *Generator) Duration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + time.Duration(g.rng.Int64N(int64(hi-lo)+1))
}

func band(score int) string {
	switch {
	case score >= 8:
		return bandExcellent
	case score >= 6:
		return bandGood
	case score >= 4:
		return bandAverage
	default:
		return bandPoor
	}
}

// difficultyKey maps anything other than easy or medium to hard.
func difficultyKey(d string) string {
	switch d {
	case interview.DifficultyEasy, interview.DifficultyMedium:
		return d
	default:
		return interview.DifficultyHard
	}
}

func (g *Generator) pick(pool []string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return pool[g.rng.IntN(len(pool))]
}

// between returns a uniform integer in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.IntN(hi-lo+1)
}

// sample draws n distinct items from pool in random order.
func (g *Generator) sample(pool []string, n int) []string {
	n = min(n, len(pool))
	g.mu.Lock()
	perm := g.rng.Perm(len(pool))
	g.mu.Unlock()

	out := make([]string, n)
	for i := range n {
		out[i] = pool[perm[i]]
	}
	return out
}
