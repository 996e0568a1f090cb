package api

import "github.com/AkaneMaktyo/ai-interview-backend/internal/interview"

type historyItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Feedback *struct {
		Score *int `json:"score"`
	} `json:"feedback,omitempty"`
	Score *int `json:"score,omitempty"`
}

// score prefers feedback.score and falls back to a top-level score.
func (h historyItem) score() (int, bool) {
	if h.Feedback != nil && h.Feedback.Score != nil {
		return *h.Feedback.Score, true
	}
	if h.Score != nil {
		return *h.Score, true
	}
	return 0, false
}

type questionRequest struct {
	QuestionIndex int           `json:"questionIndex"`
	InterviewType string        `json:"interviewType"`
	Difficulty    string        `json:"difficulty"`
	Position      string        `json:"position"`
	Experience    string        `json:"experience"`
	History       []historyItem `json:"history"`
}

func (q questionRequest) parameters() interview.Parameters {
	p := interview.Parameters{
		Type:            q.InterviewType,
		Difficulty:      q.Difficulty,
		Position:        q.Position,
		ExperienceLevel: q.Experience,
		QuestionIndex:   q.QuestionIndex,
	}
	for _, h := range q.History {
		p.PriorQuestions = append(p.PriorQuestions, h.Question)
	}
	return p
}

type answerRequest struct {
	QuestionID    flexID `json:"questionId"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	QuestionIndex int    `json:"questionIndex"`
	InterviewType string `json:"interviewType"`
	Difficulty    string `json:"difficulty"`
	Position      string `json:"position"`
}

func (a answerRequest) parameters() interview.Parameters {
	return interview.Parameters{
		Type:          a.InterviewType,
		Difficulty:    a.Difficulty,
		Position:      a.Position,
		QuestionIndex: a.QuestionIndex,
	}
}

type summaryRequest struct {
	History           []historyItem `json:"history"`
	TotalQuestions    int           `json:"totalQuestions"`
	InterviewDuration int           `json:"interviewDuration"`
	InterviewType     string        `json:"interviewType"`
	Difficulty        string        `json:"difficulty"`
	Position          string        `json:"position"`
	Experience        string        `json:"experience"`
}

// toDomain keeps only scored history entries.
func (s summaryRequest) toDomain() interview.SummaryRequest {
	req := interview.SummaryRequest{
		TotalQuestions: s.TotalQuestions,
		Duration:       s.InterviewDuration,
		Parameters: interview.Parameters{
			Type:            s.InterviewType,
			Difficulty:      s.Difficulty,
			Position:        s.Position,
			ExperienceLevel: s.Experience,
		},
	}
	for _, h := range s.History {
		if score, ok := h.score(); ok {
			req.Scores = append(req.Scores, interview.ClampScore(score))
		}
	}
	return req
}

type chatRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Feedback interview.Feedback `json:"feedback"`
}
