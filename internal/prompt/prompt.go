// Package prompt renders the interviewer prompts sent to text-generation
// backends. Every function here is pure.
package prompt

import (
	"fmt"
	"strings"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
)

const questionRequirements = `
请生成一道合适的面试题目，要求：
1. 题目要符合指定的类型和难度
2. 适合指定经验级别的候选人
3. 与职位方向相关
4. 题目表述清晰明确

只需要返回题目内容，不需要其他说明。`

// The rubric lets the response parser expect a JSON object in the common case.
const evaluationFormat = `请对这个回答进行评估，需要返回JSON格式：
{
  "score": 评分(1-10的整数),
  "comment": "详细评价",
  "suggestions": ["改进建议1", "改进建议2"]
}

评分标准：
- 9-10分：回答优秀，全面准确，逻辑清晰
- 7-8分：回答良好，基本正确，有一定深度
- 5-6分：回答一般，部分正确，缺少细节
- 3-4分：回答较差，理解有误，缺乏逻辑
- 1-2分：回答很差，基本错误或无关`

// BuildQuestion renders the question-generation prompt. Previously asked
// questions are listed so the model avoids repeating them.
func BuildQuestion(p interview.Parameters) string {
	var sb strings.Builder
	sb.WriteString("你是一个专业的面试官，需要根据以下条件生成一道面试题目：\n")
	fmt.Fprintf(&sb, "面试类型：%s\n", interview.TypeLabel(p.Type))
	fmt.Fprintf(&sb, "难度等级：%s\n", interview.DifficultyLabel(p.Difficulty))
	fmt.Fprintf(&sb, "职位方向：%s\n", interview.PositionLabel(p.Position))
	fmt.Fprintf(&sb, "工作经验：%s\n", interview.ExperienceLabel(p.ExperienceLevel))
	fmt.Fprintf(&sb, "当前是第 %d 题\n", p.QuestionIndex+1)

	if prior := nonEmpty(p.PriorQuestions); len(prior) > 0 {
		sb.WriteString("\n已经问过的题目：\n")
		for _, q := range prior {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
		sb.WriteString("\n请避免重复，生成新的题目。")
	}

	sb.WriteString(questionRequirements)
	return sb.String()
}

// BuildEvaluation renders the answer-evaluation prompt. Empty type,
// difficulty and position fall back to technical, medium and frontend.
func BuildEvaluation(question, answer string, p interview.Parameters) string {
	p = p.WithDefaults()

	var sb strings.Builder
	sb.WriteString("你是一个专业的面试官，需要评估候选人的回答：\n\n")
	fmt.Fprintf(&sb, "面试题目：%s\n", question)
	fmt.Fprintf(&sb, "候选人回答：%s\n\n", answer)
	sb.WriteString("面试信息：\n")
	fmt.Fprintf(&sb, "- 类型：%s\n", interview.TypeLabel(p.Type))
	fmt.Fprintf(&sb, "- 难度：%s\n", interview.DifficultyLabel(p.Difficulty))
	fmt.Fprintf(&sb, "- 职位：%s\n\n", interview.PositionLabel(p.Position))
	sb.WriteString(evaluationFormat)
	return sb.String()
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
