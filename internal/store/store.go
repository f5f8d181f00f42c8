// Package store persists call analyses in SQLite. Writes are keyed by
// session id: re-analyzing a session replaces its earlier record instead of
// inserting a duplicate.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/callsense/callsense/internal/analysis"
)

type Store struct {
	db *sql.DB
}

// CallRecord is one analyzed call ready for persistence.
type CallRecord struct {
	SessionID        string
	AudioFile        string
	Transcript       string
	Intent           string
	IntentConfidence float64
	Sentiment        string
	SentimentScore   float64
	Emotion          string
	AgentScore       float64
	Duration         float64
	Requirements     []analysis.Requirement
	AgentText        string
	Politeness       float64
	Helpfulness      float64
	Clarity          float64
}

// CallSummary is a stored call plus its open tickets, as served by the API.
type CallSummary struct {
	CallID     int64                  `json:"call_id"`
	SessionID  string                 `json:"session_id"`
	AudioFile  string                 `json:"audio_file,omitempty"`
	Transcript string                 `json:"transcript"`
	Intent     string                 `json:"intent"`
	Sentiment  string                 `json:"sentiment"`
	Emotion    string                 `json:"emotion"`
	AgentScore float64                `json:"agent_score"`
	Duration   float64                `json:"call_duration"`
	CreatedAt  string                 `json:"created_at"`
	Tickets    []analysis.Requirement `json:"tickets"`
}

type Stats struct {
	TotalCalls      int     `json:"total_calls"`
	AverageScore    float64 `json:"average_agent_score"`
	OpenTickets     int     `json:"open_tickets"`
	NegativeCallPct float64 `json:"negative_call_pct"`
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("store ready", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			call_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL UNIQUE,
			audio_file TEXT,
			transcript TEXT,
			intent TEXT,
			intent_confidence REAL,
			sentiment TEXT,
			sentiment_score REAL,
			emotion TEXT,
			agent_score REAL,
			call_duration REAL,
			status TEXT DEFAULT 'ANALYZED',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			ticket_id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id INTEGER NOT NULL,
			requirement_type TEXT,
			description TEXT,
			priority TEXT,
			status TEXT DEFAULT 'OPEN',
			created_at TEXT NOT NULL,
			FOREIGN KEY (call_id) REFERENCES calls (call_id)
		)`,
		`CREATE TABLE IF NOT EXISTS agent_responses (
			response_id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id INTEGER NOT NULL,
			agent_text TEXT,
			politeness_score REAL,
			helpfulness_score REAL,
			clarity_score REAL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (call_id) REFERENCES calls (call_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_call_id ON tickets (call_id)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_responses_call_id ON agent_responses (call_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveCall upserts the call row for rec.SessionID and replaces its tickets
// and agent-response rows. Returns the call id.
func (s *Store) SaveCall(ctx context.Context, rec CallRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO calls (
			session_id, audio_file, transcript, intent, intent_confidence,
			sentiment, sentiment_score, emotion, agent_score, call_duration, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			audio_file = excluded.audio_file,
			transcript = excluded.transcript,
			intent = excluded.intent,
			intent_confidence = excluded.intent_confidence,
			sentiment = excluded.sentiment,
			sentiment_score = excluded.sentiment_score,
			emotion = excluded.emotion,
			agent_score = excluded.agent_score,
			call_duration = excluded.call_duration`,
		rec.SessionID, rec.AudioFile, rec.Transcript, rec.Intent, rec.IntentConfidence,
		rec.Sentiment, rec.SentimentScore, rec.Emotion, rec.AgentScore, rec.Duration, now,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert call: %w", err)
	}

	var callID int64
	err = tx.QueryRowContext(ctx, `SELECT call_id FROM calls WHERE session_id = ?`, rec.SessionID).Scan(&callID)
	if err != nil {
		return 0, fmt.Errorf("resolve call id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE call_id = ?`, callID); err != nil {
		return 0, fmt.Errorf("clear tickets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_responses WHERE call_id = ?`, callID); err != nil {
		return 0, fmt.Errorf("clear agent responses: %w", err)
	}

	for _, req := range rec.Requirements {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tickets (call_id, requirement_type, description, priority, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			callID, req.Type, req.Description, req.Priority, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert ticket: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agent_responses (call_id, agent_text, politeness_score, helpfulness_score, clarity_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		callID, rec.AgentText, rec.Politeness, rec.Helpfulness, rec.Clarity, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert agent response: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return callID, nil
}

// GetCall returns the stored analysis for a session, or sql.ErrNoRows.
func (s *Store) GetCall(ctx context.Context, sessionID string) (*CallSummary, error) {
	var summary CallSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT call_id, session_id, COALESCE(audio_file, ''), COALESCE(transcript, ''),
			COALESCE(intent, ''), COALESCE(sentiment, ''), COALESCE(emotion, ''),
			COALESCE(agent_score, 0), COALESCE(call_duration, 0), created_at
		FROM calls WHERE session_id = ?`, sessionID).Scan(
		&summary.CallID, &summary.SessionID, &summary.AudioFile, &summary.Transcript,
		&summary.Intent, &summary.Sentiment, &summary.Emotion,
		&summary.AgentScore, &summary.Duration, &summary.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT requirement_type, priority, description
		FROM tickets WHERE call_id = ? ORDER BY ticket_id`, summary.CallID)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	summary.Tickets = []analysis.Requirement{}
	for rows.Next() {
		var req analysis.Requirement
		if err := rows.Scan(&req.Type, &req.Priority, &req.Description); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		summary.Tickets = append(summary.Tickets, req)
	}
	return &summary, rows.Err()
}

// Stats aggregates across all stored calls.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(AVG(agent_score), 0),
			COALESCE(SUM(CASE WHEN sentiment = 'NEGATIVE' THEN 1 ELSE 0 END), 0)
		FROM calls`).Scan(&stats.TotalCalls, &stats.AverageScore, &stats.NegativeCallPct)
	if err != nil {
		return stats, fmt.Errorf("aggregate calls: %w", err)
	}
	if stats.TotalCalls > 0 {
		stats.NegativeCallPct = stats.NegativeCallPct / float64(stats.TotalCalls) * 100
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE status = 'OPEN'`).Scan(&stats.OpenTickets)
	if err != nil {
		return stats, fmt.Errorf("count tickets: %w", err)
	}
	return stats, nil
}
