package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedQuestion(t *testing.T, s *Store) int64 {
	t.Helper()
	q := interview.NewQuestion("请解释Go中的interface是如何实现的", interview.Parameters{
		Type: interview.TypeTechnical, Difficulty: interview.DifficultyMedium, Position: "backend",
	}, true, "prompt text")
	id, err := s.PersistQuestion(context.Background(), q)
	if err != nil {
		t.Fatalf("PersistQuestion: %v", err)
	}
	return id
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_answer_records_user_question", "idx_answer_records_created"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("001_init.sql")
	if err != nil || v != 1 {
		t.Errorf("parseMigrationVersion = %d, %v; want 1", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for unnumbered migration")
	}
}

func TestPersistAndFindQuestion(t *testing.T) {
	s := openTestStore(t)
	id := seedQuestion(t, s)
	if id <= 0 {
		t.Fatalf("id = %d, want positive", id)
	}

	q, err := s.FindQuestion(context.Background(), id)
	if err != nil {
		t.Fatalf("FindQuestion: %v", err)
	}
	if q.ID != id || q.Content != "请解释Go中的interface是如何实现的" || !q.GeneratedByAI {
		t.Errorf("round-trip mismatch: %+v", q)
	}
	if q.SourcePrompt != "prompt text" || q.Position != "backend" {
		t.Errorf("source prompt/position mismatch: %+v", q)
	}
	want := []string{"技术面试", "后端开发", "中等"}
	if len(q.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", q.Tags, want)
	}
	for i := range want {
		if q.Tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, q.Tags[i], want[i])
		}
	}
}

func TestFindQuestionNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.FindQuestion(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAttemptCountIncrements(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	qid := seedQuestion(t, s)

	for want := 1; want <= 3; want++ {
		rec, err := s.PersistAnswerRecord(ctx, 1, qid, "answer", interview.Feedback{Score: 8, Comment: "好", Suggestions: []string{"继续"}})
		if err != nil {
			t.Fatalf("PersistAnswerRecord: %v", err)
		}
		if rec.AttemptCount != want {
			t.Errorf("attempt %d: AttemptCount = %d", want, rec.AttemptCount)
		}
	}

	// Attempts are per user.
	rec, err := s.PersistAnswerRecord(ctx, 2, qid, "answer", interview.Feedback{Score: 8})
	if err != nil {
		t.Fatalf("PersistAnswerRecord: %v", err)
	}
	if rec.AttemptCount != 1 {
		t.Errorf("other user AttemptCount = %d, want 1", rec.AttemptCount)
	}
}

func TestLowScoreRecordsWrongQuestion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	qid := seedQuestion(t, s)

	if _, err := s.PersistAnswerRecord(ctx, 1, qid, "ok", interview.Feedback{Score: 7}); err != nil {
		t.Fatal(err)
	}
	wrong, err := s.ListWrongQuestions(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(wrong) != 0 {
		t.Fatalf("score 7 should not be wrong, got %+v", wrong)
	}

	for _, score := range []int{6, 3} {
		if _, err := s.PersistAnswerRecord(ctx, 1, qid, "weak", interview.Feedback{Score: score}); err != nil {
			t.Fatal(err)
		}
	}
	wrong, err = s.ListWrongQuestions(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(wrong) != 1 {
		t.Fatalf("got %d wrong questions, want 1", len(wrong))
	}
	if wrong[0].ErrorCount != 2 || wrong[0].LastScore != 3 || wrong[0].QuestionID != qid {
		t.Errorf("wrong question = %+v", wrong[0])
	}
}

func TestAnswerRecordRequiresQuestion(t *testing.T) {
	s := openTestStore(t)
	_, err := s.PersistAnswerRecord(context.Background(), 1, 999, "a", interview.Feedback{Score: 5})
	if err == nil {
		t.Fatal("expected foreign key error for missing question")
	}
	recs, err := s.ListAnswerRecords(context.Background(), RecordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("failed insert left %d records", len(recs))
	}
}

func TestListAnswerRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	q1 := seedQuestion(t, s)
	q2 := seedQuestion(t, s)

	fb := interview.Feedback{Score: 9, Comment: "优秀", Suggestions: []string{"保持"}}
	for _, in := range []struct {
		user, question int64
	}{{1, q1}, {1, q2}, {2, q1}, {1, q1}} {
		if _, err := s.PersistAnswerRecord(ctx, in.user, in.question, "ans", fb); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListAnswerRecords(ctx, RecordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d records, want 4", len(all))
	}
	if all[0].ID < all[len(all)-1].ID {
		t.Error("records should be newest first")
	}
	if all[0].Evaluation.Comment != "优秀" || len(all[0].Evaluation.Suggestions) != 1 {
		t.Errorf("evaluation round-trip = %+v", all[0].Evaluation)
	}

	mine, err := s.ListAnswerRecords(ctx, RecordFilter{UserID: 1, QuestionID: q1})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Errorf("user 1 / q1: got %d records, want 2", len(mine))
	}

	limited, err := s.ListAnswerRecords(ctx, RecordFilter{UserID: 1, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1: got %d records", len(limited))
	}
}
