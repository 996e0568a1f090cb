// Package interview holds the domain types shared by prompt construction,
// response parsing, the mock generator and the orchestrator.
package interview

import "unicode/utf8"

// Interview types.
const (
	TypeTechnical    = "technical"
	TypeBehavioral   = "behavioral"
	TypeSystemDesign = "system_design"
	TypeCoding       = "coding"
)

// Difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Parameters describe one question-generation or evaluation request.
// Unknown values are accepted and rendered with default labels.
type Parameters struct {
	Type            string   `json:"type"`
	Difficulty      string   `json:"difficulty"`
	Position        string   `json:"position"`
	ExperienceLevel string   `json:"experienceLevel"`
	QuestionIndex   int      `json:"questionIndex"`
	PriorQuestions  []string `json:"previousQuestions,omitempty"`
}

// WithDefaults fills empty type, difficulty and position with
// technical/medium/frontend.
func (p Parameters) WithDefaults() Parameters {
	if p.Type == "" {
		p.Type = TypeTechnical
	}
	if p.Difficulty == "" {
		p.Difficulty = DifficultyMedium
	}
	if p.Position == "" {
		p.Position = "frontend"
	}
	return p
}

// Question is a generated interview question. It is not mutated after creation.
type Question struct {
	ID            int64    `json:"id,omitempty"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Type          string   `json:"type"`
	Difficulty    string   `json:"difficulty"`
	Position      string   `json:"position"`
	Tags          []string `json:"tags"`
	GeneratedByAI bool     `json:"generatedByAI"`
	SourcePrompt  string   `json:"sourcePrompt,omitempty"`
}

const (
	titleMaxRunes = 50
	titleCutRunes = 47
)

// NewQuestion derives title and tags from content and parameters.
func NewQuestion(content string, p Parameters, byAI bool, sourcePrompt string) Question {
	return Question{
		Title:         TitleOf(content),
		Content:       content,
		Type:          p.Type,
		Difficulty:    p.Difficulty,
		Position:      p.Position,
		Tags:          TagsOf(p),
		GeneratedByAI: byAI,
		SourcePrompt:  sourcePrompt,
	}
}

// TitleOf shortens content longer than 50 runes to 47 runes plus "...".
func TitleOf(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	return string([]rune(content)[:titleCutRunes]) + "..."
}

// TagsOf returns the deduplicated labels of type, position and difficulty.
func TagsOf(p Parameters) []string {
	var tags []string
	seen := map[string]bool{}
	for _, t := range []string{TypeLabel(p.Type), PositionLabel(p.Position), DifficultyLabel(p.Difficulty)} {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

// Feedback is the evaluation of one answer. Score is always in [1,10] and
// Suggestions is never empty.
type Feedback struct {
	Score       int      `json:"score"`
	Comment     string   `json:"comment"`
	Suggestions []string `json:"suggestions"`
}

const (
	MinScore = 1
	MaxScore = 10
)

// ClampScore forces s into [MinScore, MaxScore].
func ClampScore(s int) int {
	return max(MinScore, min(MaxScore, s))
}

// SummaryRequest carries the per-question scores of a finished interview.
// Duration is in minutes; zero means unknown.
type SummaryRequest struct {
	Scores         []int
	TotalQuestions int
	Duration       int
	Parameters     Parameters
}

// Summary is the end-of-interview report.
type Summary struct {
	OverallScore      int            `json:"overallScore"`
	SkillScores       map[string]int `json:"skillScores"`
	OverallComment    string         `json:"overallComment"`
	Strengths         []string       `json:"strengths"`
	Weaknesses        []string       `json:"weaknesses"`
	Recommendations   []string       `json:"recommendations"`
	AnsweredQuestions int            `json:"answeredQuestions"`
	TotalQuestions    int            `json:"totalQuestions"`
	TotalDuration     int            `json:"totalDuration"`
}
