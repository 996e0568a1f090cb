// Package parser turns raw backend text into questions and feedback.
//
// ParseFeedback never fails. It tries three strategies in order: a JSON
// object embedded in the text, a fixed result for malformed JSON, and the
// text itself read as free-form commentary.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
)

// ErrTooShort is returned when a generated question is empty or shorter
// than minQuestionRunes after label stripping.
var ErrTooShort = errors.New("generated question too short")

// errMalformed marks an embedded JSON object that could not be decoded.
// It never leaves this package.
var errMalformed = errors.New("malformed feedback json")

const (
	minQuestionRunes = 10
	maxCommentRunes  = 200
)

var questionLabel = regexp.MustCompile(`^(题目[:：]|问题[:：]|Question[:：]?|面试题[:：]?)\s*`)

const (
	defaultScore        = 7
	defaultComment      = "AI评估完成"
	defaultSuggestion   = "建议继续深入学习相关知识点"
	malformedScore      = 6
	malformedComment    = "AI反馈解析异常，请重试"
	malformedSuggestion = "请检查回答内容并重新提交"
	freeTextScore       = 7
	freeTextSuggestion  = "建议参考AI的详细分析"
	truncationMarker    = "…"
)

// ParseQuestion trims raw, strips one leading label such as "题目：" and
// returns the remaining text. It returns ErrTooShort when fewer than ten
// runes remain.
func ParseQuestion(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", fmt.Errorf("%w: empty response", ErrTooShort)
	}
	q = questionLabel.ReplaceAllString(q, "")
	if utf8.RuneCountInString(q) < minQuestionRunes {
		return "", fmt.Errorf("%w: %q", ErrTooShort, q)
	}
	return q, nil
}

// ParseFeedback extracts a Feedback from raw. The returned score is always
// in [1,10] and suggestions are never empty.
func ParseFeedback(raw string) interview.Feedback {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		fb, err := decodeFeedback(raw[start : end+1])
		if err != nil {
			slog.Debug("feedback json not decodable", "error", err)
			return interview.Feedback{
				Score:       malformedScore,
				Comment:     malformedComment,
				Suggestions: []string{malformedSuggestion},
			}
		}
		return fb
	}
	return freeText(raw)
}

func decodeFeedback(s string) (interview.Feedback, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return interview.Feedback{}, fmt.Errorf("%w: %v", errMalformed, err)
	}

	fb := interview.Feedback{
		Score:       defaultScore,
		Comment:     defaultComment,
		Suggestions: []string{defaultSuggestion},
	}
	if n, ok := m["score"].(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			fb.Score = interview.ClampScore(int(f))
		}
	}
	if c, ok := m["comment"]; ok && c != nil {
		fb.Comment = stringify(c)
	}
	if list, ok := m["suggestions"].([]any); ok {
		var out []string
		for _, item := range list {
			if item != nil {
				out = append(out, stringify(item))
			}
		}
		if len(out) > 0 {
			fb.Suggestions = out
		}
	}
	return fb, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func freeText(raw string) interview.Feedback {
	comment := raw
	if strings.TrimSpace(raw) == "" {
		comment = defaultComment
	} else if utf8.RuneCountInString(raw) > maxCommentRunes {
		comment = string([]rune(raw)[:maxCommentRunes]) + truncationMarker
	}
	return interview.Feedback{
		Score:       freeTextScore,
		Comment:     comment,
		Suggestions: []string{freeTextSuggestion},
	}
}
