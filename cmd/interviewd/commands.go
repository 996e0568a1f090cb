package main

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/config"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/orchestrator"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/storage"
)

// --- ask ---

var chatPaths = map[orchestrator.Mode]string{
	orchestrator.ModeDeep:    "/api/ai/chat",
	orchestrator.ModeNetwork: "/api/ai/chat-network",
	orchestrator.ModeHTTP:    "/api/ai/chat-http",
	orchestrator.ModeSimple:  "/api/ai/chat-simple",
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the interview coach and stream the reply",
	Long: `Ask the interview coach and stream the reply.

Examples:
  interviewd ask "如何准备系统设计面试"
  interviewd ask --mode network "What changed in Go 1.23 iterators?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modeName, _ := cmd.Flags().GetString("mode")
		mode, err := orchestrator.ParseMode(modeName)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		err = client.stream(cmd.Context(), chatPaths[mode], map[string]string{
			"question": strings.Join(args, " "),
		}, out)
		fmt.Fprintln(out)
		return err
	},
}

func init() {
	askCmd.Flags().String("mode", string(orchestrator.ModeDeep), "deep, network, http or simple")
}

// --- question ---

var questionCmd = &cobra.Command{
	Use:   "question",
	Short: "Generate an interview question",
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		position, _ := cmd.Flags().GetString("position")
		experience, _ := cmd.Flags().GetString("experience")
		index, _ := cmd.Flags().GetInt("index")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/ai/question", map[string]any{
			"interviewType": typ,
			"difficulty":    difficulty,
			"position":      position,
			"experience":    experience,
			"questionIndex": index,
		})
		if err != nil {
			return err
		}
		var res orchestrator.QuestionResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.Question)
		fmt.Fprintf(out, "\n%s %s\n", colorize(colorBold, "id:"), res.QuestionID)
		return nil
	},
}

func init() {
	questionCmd.Flags().String("type", interview.TypeTechnical, "technical, behavioral, system_design or coding")
	questionCmd.Flags().String("difficulty", interview.DifficultyMedium, "easy, medium or hard")
	questionCmd.Flags().String("position", "frontend", "frontend, backend, fullstack, mobile or devops")
	questionCmd.Flags().String("experience", "intermediate", "junior, intermediate or senior")
	questionCmd.Flags().Int("index", 0, "zero-based question number")
}

// --- evaluate ---

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate an answer to a question",
	Long: `Evaluate an answer to a question. Use --answer - to read the answer from stdin.

Examples:
  interviewd evaluate --question-id 12 --question "什么是闭包" --answer "..."
  interviewd evaluate --question "Explain CAP" --answer - < answer.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		answer, _ := cmd.Flags().GetString("answer")
		questionID, _ := cmd.Flags().GetString("question-id")
		typ, _ := cmd.Flags().GetString("type")

		if question == "" {
			return fmt.Errorf("--question is required")
		}
		if answer == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading answer: %w", err)
			}
			answer = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		body := map[string]any{
			"question":      question,
			"answer":        answer,
			"interviewType": typ,
		}
		if questionID != "" {
			body["questionId"] = questionID
		}
		resp, err := client.post(cmd.Context(), "/api/ai/answer", body)
		if err != nil {
			return err
		}
		var res struct {
			Feedback interview.Feedback `json:"feedback"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printFeedback(cmd.OutOrStdout(), res.Feedback)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("question", "", "the interview question")
	evaluateCmd.Flags().String("answer", "", "the answer, or - for stdin")
	evaluateCmd.Flags().String("question-id", "", "question ID returned by `question`")
	evaluateCmd.Flags().String("type", interview.TypeTechnical, "interview type")
}

func printFeedback(w io.Writer, fb interview.Feedback) {
	fmt.Fprintf(w, "%s %d/10\n", colorize(colorBold, "Score:"), fb.Score)
	fmt.Fprintln(w, fb.Comment)
	fmt.Fprintln(w)
	for _, s := range fb.Suggestions {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent answer records",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		questionID, _ := cmd.Flags().GetInt64("question-id")
		wrong, _ := cmd.Flags().GetBool("wrong")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if wrong {
			resp, err := client.get(cmd.Context(), "/api/ai/wrong-questions")
			if err != nil {
				return err
			}
			var res struct {
				WrongQuestions []storage.WrongQuestion `json:"wrongQuestions"`
			}
			if err := decodeJSON(resp, &res); err != nil {
				return err
			}
			for _, w := range res.WrongQuestions {
				fmt.Fprintf(out, "  question %-6d errors=%d last=%d  %s\n",
					w.QuestionID, w.ErrorCount, w.LastScore, w.LastWrongAt.Format("2006-01-02 15:04"))
			}
			return nil
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		if questionID > 0 {
			q.Set("questionId", strconv.FormatInt(questionID, 10))
		}
		resp, err := client.get(cmd.Context(), "/api/ai/records?"+q.Encode())
		if err != nil {
			return err
		}
		var res struct {
			Records []storage.AnswerRecord `json:"records"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if len(res.Records) == 0 {
			fmt.Fprintln(out, "no answer records")
			return nil
		}
		for _, r := range res.Records {
			fmt.Fprintf(out, "  #%-5d question %-6d score=%-2d attempt=%d  %s\n",
				r.ID, r.QuestionID, r.Score, r.AttemptCount, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of records to list")
	historyCmd.Flags().Int64("question-id", 0, "only records for this question")
	historyCmd.Flags().Bool("wrong", false, "list the wrong-question book instead")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		for _, k := range config.SecretKeys() {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k), "(secret)")
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key>",
	Short: "Store an API key in the secret store (value read from stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if f, ok := cmd.InOrStdin().(*os.File); ok && f == os.Stdin {
			fmt.Fprintf(diag, "%s: ", args[0])
		}
		value, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading secret: %w", err)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return fmt.Errorf("empty value for %s", args[0])
		}
		if err := config.SetSecret(args[0], value); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configSetSecretCmd)
}
