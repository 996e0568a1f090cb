package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
)

// NewMCPServer exposes question generation, answer evaluation and the
// interview summary as MCP tools.
func NewMCPServer(svc Interviewer, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"interviewd",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("interviewd: generate interview questions, evaluate answers and summarize practice interviews."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_question",
			mcp.WithDescription("Generate one interview question for the given interview type, difficulty and position."),
			mcp.WithString("interviewType", mcp.Description("technical, behavioral, system_design or coding")),
			mcp.WithString("difficulty", mcp.Description("easy, medium or hard")),
			mcp.WithString("position", mcp.Description("frontend, backend, fullstack, mobile or devops")),
			mcp.WithString("experience", mcp.Description("junior, intermediate or senior")),
			mcp.WithNumber("questionIndex", mcp.Description("Zero-based index of the question in the interview")),
			mcp.WithArray("previousQuestions", mcp.Description("Questions already asked"), mcp.WithStringItems()),
		),
		mcpGenerateQuestion(svc),
	)

	s.AddTool(
		mcp.NewTool("evaluate_answer",
			mcp.WithDescription("Score a candidate answer from 1 to 10 with a comment and suggestions."),
			mcp.WithString("question", mcp.Description("The interview question"), mcp.Required()),
			mcp.WithString("answer", mcp.Description("The candidate's answer"), mcp.Required()),
			mcp.WithString("questionId", mcp.Description("ID returned by generate_question; records the attempt when it names a stored question")),
			mcp.WithString("interviewType", mcp.Description("Interview type")),
			mcp.WithString("difficulty", mcp.Description("Difficulty")),
			mcp.WithString("position", mcp.Description("Position")),
		),
		mcpEvaluateAnswer(svc),
	)

	s.AddTool(
		mcp.NewTool("interview_summary",
			mcp.WithDescription("Summarize a finished interview from its per-question scores."),
			mcp.WithArray("scores", mcp.Description("Score of each answered question"), mcp.WithNumberItems(), mcp.Required()),
			mcp.WithNumber("totalQuestions", mcp.Description("Number of questions in the interview")),
			mcp.WithNumber("duration", mcp.Description("Interview length in minutes")),
			mcp.WithString("position", mcp.Description("Position")),
			mcp.WithString("experience", mcp.Description("Experience level")),
		),
		mcpInterviewSummary(svc),
	)

	s.AddResource(
		mcp.NewResource(
			"interview://status",
			"Backend Status",
			mcp.WithResourceDescription("Configured AI backends and which one serves each feature"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStatus(svc),
	)

	return s
}

func mcpGenerateQuestion(svc Interviewer) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p := interview.Parameters{
			Type:            req.GetString("interviewType", ""),
			Difficulty:      req.GetString("difficulty", ""),
			Position:        req.GetString("position", ""),
			ExperienceLevel: req.GetString("experience", ""),
			QuestionIndex:   max(req.GetInt("questionIndex", 0), 0),
			PriorQuestions:  req.GetStringSlice("previousQuestions", nil),
		}
		res, err := svc.GenerateQuestion(ctx, p)
		if err != nil {
			return mcpError(fmt.Sprintf("question generation failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpEvaluateAnswer(svc Interviewer) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || question == "" {
			return mcpError("question is required"), nil
		}
		answer, err := req.RequireString("answer")
		if err != nil {
			return mcpError("answer is required"), nil
		}
		p := interview.Parameters{
			Type:       req.GetString("interviewType", ""),
			Difficulty: req.GetString("difficulty", ""),
			Position:   req.GetString("position", ""),
		}
		fb, err := svc.EvaluateAnswer(ctx, question, answer, req.GetString("questionId", ""), p)
		if err != nil {
			return mcpError(fmt.Sprintf("evaluation failed: %v", err)), nil
		}
		return mcpJSON(fb)
	}
}

func mcpInterviewSummary(svc Interviewer) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scores, err := req.RequireIntSlice("scores")
		if err != nil {
			return mcpError("scores is required"), nil
		}
		for i, s := range scores {
			scores[i] = interview.ClampScore(s)
		}
		sum, err := svc.Summarize(ctx, interview.SummaryRequest{
			Scores:         scores,
			TotalQuestions: req.GetInt("totalQuestions", len(scores)),
			Duration:       req.GetInt("duration", 0),
			Parameters: interview.Parameters{
				Position:        req.GetString("position", ""),
				ExperienceLevel: req.GetString("experience", ""),
			},
		})
		if err != nil {
			return mcpError(fmt.Sprintf("summary failed: %v", err)), nil
		}
		return mcpJSON(sum)
	}
}

func mcpResourceStatus(svc Interviewer) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(svc.Status())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal status: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
