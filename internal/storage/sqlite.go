package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding questions, answer records and the
// per-user wrong-question book.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "interviewd.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Questions ---

// PersistQuestion stores q and returns its new ID.
func (s *Store) PersistQuestion(ctx context.Context, q interview.Question) (int64, error) {
	tags, err := json.Marshal(q.Tags)
	if err != nil {
		return 0, fmt.Errorf("encoding tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO questions (title, content, type, difficulty, position, tags, generated_by_ai, source_prompt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Title, q.Content, q.Type, q.Difficulty, q.Position, string(tags), q.GeneratedByAI, q.SourcePrompt,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting question: %w", err)
	}
	return res.LastInsertId()
}

// FindQuestion returns the question with id, or ErrNotFound.
func (s *Store) FindQuestion(ctx context.Context, id int64) (interview.Question, error) {
	var q interview.Question
	var tags string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, type, difficulty, position, tags, generated_by_ai, source_prompt
		FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.Title, &q.Content, &q.Type, &q.Difficulty, &q.Position, &tags, &q.GeneratedByAI, &q.SourcePrompt)
	if errors.Is(err, sql.ErrNoRows) {
		return interview.Question{}, ErrNotFound
	}
	if err != nil {
		return interview.Question{}, err
	}
	if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
		return interview.Question{}, fmt.Errorf("decoding tags of question %d: %w", id, err)
	}
	return q, nil
}

// --- Answer records ---

// PersistAnswerRecord stores an evaluated answer. AttemptCount is one more
// than the user's previous attempts at the question. A score below
// WrongScoreThreshold adds the question to the user's wrong-question book,
// or bumps its error count.
func (s *Store) PersistAnswerRecord(ctx context.Context, userID, questionID int64, answer string, fb interview.Feedback) (AnswerRecord, error) {
	eval, err := json.Marshal(fb)
	if err != nil {
		return AnswerRecord{}, fmt.Errorf("encoding evaluation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AnswerRecord{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var prior int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM answer_records WHERE user_id = ? AND question_id = ?", userID, questionID,
	).Scan(&prior); err != nil {
		return AnswerRecord{}, fmt.Errorf("counting attempts: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := AnswerRecord{
		UserID:       userID,
		QuestionID:   questionID,
		Answer:       answer,
		Score:        fb.Score,
		Evaluation:   fb,
		AttemptCount: prior + 1,
		CreatedAt:    now,
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO answer_records (user_id, question_id, answer, score, evaluation, attempt_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, questionID, answer, fb.Score, string(eval), rec.AttemptCount, now.Format(time.RFC3339),
	)
	if err != nil {
		return AnswerRecord{}, fmt.Errorf("inserting answer record: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return AnswerRecord{}, err
	}

	if fb.Score < WrongScoreThreshold {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO wrong_questions (user_id, question_id, error_count, last_score, last_wrong_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT(user_id, question_id) DO UPDATE SET
				error_count = error_count + 1,
				last_score = excluded.last_score,
				last_wrong_at = excluded.last_wrong_at`,
			userID, questionID, fb.Score, now.Format(time.RFC3339),
		); err != nil {
			return AnswerRecord{}, fmt.Errorf("recording wrong question: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return AnswerRecord{}, fmt.Errorf("committing answer record: %w", err)
	}
	return rec, nil
}

// ListAnswerRecords returns matching records, newest first.
func (s *Store) ListAnswerRecords(ctx context.Context, f RecordFilter) ([]AnswerRecord, error) {
	query := `SELECT id, user_id, question_id, answer, score, evaluation, attempt_count, created_at FROM answer_records`
	var where []string
	var args []any
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.QuestionID != 0 {
		where = append(where, "question_id = ?")
		args = append(args, f.QuestionID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnswerRecord
	for rows.Next() {
		var r AnswerRecord
		var eval, createdAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.QuestionID, &r.Answer, &r.Score, &eval, &r.AttemptCount, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(eval), &r.Evaluation); err != nil {
			return nil, fmt.Errorf("decoding evaluation of record %d: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at of record %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListWrongQuestions returns the user's wrong questions, most errors first.
func (s *Store) ListWrongQuestions(ctx context.Context, userID int64) ([]WrongQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, question_id, error_count, last_score, last_wrong_at
		FROM wrong_questions WHERE user_id = ?
		ORDER BY error_count DESC, last_wrong_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WrongQuestion
	for rows.Next() {
		var w WrongQuestion
		var at string
		if err := rows.Scan(&w.UserID, &w.QuestionID, &w.ErrorCount, &w.LastScore, &at); err != nil {
			return nil, err
		}
		if w.LastWrongAt, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("parsing last_wrong_at: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
