package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Submission is one attempt to hand a finished pick list to the
// recommendation service.
type Submission struct {
	ID          int64
	SessionID   string
	Picks       []int
	Outcome     string
	Error       string
	ResultCount int
	Duration    time.Duration
	CreatedAt   time.Time
}

type SubmissionRepository struct {
	db *DB
}

func NewSubmissionRepository(db *DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Record(ctx context.Context, s *Submission) error {
	picks, err := json.Marshal(s.Picks)
	if err != nil {
		return fmt.Errorf("failed to encode picks: %w", err)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO submissions (session_id, picks, outcome, error, result_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, string(picks), s.Outcome, s.Error, s.ResultCount, s.Duration.Milliseconds(), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read submission id: %w", err)
	}
	s.ID = id
	return nil
}

// ListBySession returns a session's submissions, oldest first.
func (r *SubmissionRepository) ListBySession(ctx context.Context, sessionID string) ([]Submission, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, session_id, picks, outcome, error, result_count, duration_ms, created_at
		FROM submissions
		WHERE session_id = ?
		ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var (
			s          Submission
			picks      string
			durationMS int64
		)
		if err := rows.Scan(&s.ID, &s.SessionID, &picks, &s.Outcome, &s.Error, &s.ResultCount, &durationMS, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		if err := json.Unmarshal([]byte(picks), &s.Picks); err != nil {
			return nil, fmt.Errorf("failed to decode picks of submission %d: %w", s.ID, err)
		}
		s.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, s)
	}
	return out, rows.Err()
}
