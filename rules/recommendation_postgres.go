package rules

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PostgresRecommendationStore implements RecommendationStore backed by
// PostgreSQL. The evaluation result is stored as a JSON column; the
// confidence score and status are lifted into columns for filtering.
type PostgresRecommendationStore struct {
	db *sql.DB
}

// NewPostgresRecommendationStore creates a PostgreSQL-backed store.
func NewPostgresRecommendationStore(db *sql.DB) *PostgresRecommendationStore {
	return &PostgresRecommendationStore{db: db}
}

// Add stores a freshly generated recommendation. One recommendation per
// message is enforced by the unique index on (account_id, message_id).
func (s *PostgresRecommendationStore) Add(rec *Recommendation) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = StatusGenerated
	}

	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation result: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO recommendations (id, account_id, message_id, result, confidence_score, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.AccountID, rec.MessageID, result, rec.Result.ConfidenceScore,
		rec.Status, rec.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "recommendations_account_message_key") {
			return fmt.Errorf("recommendation already exists for message %s", rec.MessageID)
		}
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}

	return nil
}

// Get retrieves a recommendation by ID.
func (s *PostgresRecommendationStore) Get(id string) (*Recommendation, error) {
	rec, err := s.scanOne(s.db.QueryRow(`
		SELECT id, account_id, message_id, result, status, created_at, reviewed_at
		FROM recommendations
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recommendation %s not found", id)
	}
	return rec, err
}

// GetByMessage retrieves the recommendation for a message.
func (s *PostgresRecommendationStore) GetByMessage(accountID, messageID string) (*Recommendation, error) {
	rec, err := s.scanOne(s.db.QueryRow(`
		SELECT id, account_id, message_id, result, status, created_at, reviewed_at
		FROM recommendations
		WHERE account_id = $1 AND message_id = $2
	`, accountID, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no recommendation for message %s", messageID)
	}
	return rec, err
}

// List returns the account's recommendations, newest first, optionally
// filtered by status and minimum confidence.
func (s *PostgresRecommendationStore) List(accountID string, filter RecommendationFilter) ([]*Recommendation, error) {
	query := `
		SELECT id, account_id, message_id, result, status, created_at, reviewed_at
		FROM recommendations
		WHERE account_id = $1 AND confidence_score >= $2
	`
	args := []any{accountID, filter.MinConfidence}

	if filter.Status != "" {
		query += ` AND status = $3`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	var out []*Recommendation
	for rows.Next() {
		rec, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendations: %w", err)
	}

	return out, nil
}

// Review transitions a generated recommendation to accepted or rejected.
// The WHERE clause keeps the transition append-only: a recommendation that
// has already been reviewed is never rewritten.
func (s *PostgresRecommendationStore) Review(id string, status RecommendationStatus) error {
	if status != StatusAccepted && status != StatusRejected {
		return fmt.Errorf("invalid review status %q", status)
	}

	result, err := s.db.Exec(`
		UPDATE recommendations
		SET status = $1, reviewed_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(status), id, string(StatusGenerated))
	if err != nil {
		return fmt.Errorf("failed to review recommendation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		existing, getErr := s.Get(id)
		if getErr != nil {
			return fmt.Errorf("recommendation %s not found", id)
		}
		return fmt.Errorf("recommendation %s already reviewed as %s", id, existing.Status)
	}

	return nil
}

func (s *PostgresRecommendationStore) scanOne(row rowScanner) (*Recommendation, error) {
	var rec Recommendation
	var result []byte
	var reviewedAt sql.NullTime

	if err := row.Scan(&rec.ID, &rec.AccountID, &rec.MessageID, &result,
		&rec.Status, &rec.CreatedAt, &reviewedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}

	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation %s result: %w", rec.ID, err)
	}
	if reviewedAt.Valid {
		rec.ReviewedAt = &reviewedAt.Time
	}

	return &rec, nil
}
