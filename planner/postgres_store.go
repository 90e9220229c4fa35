package planner

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/liamcoop/triage/internal/logger"
)

// PostgresPlanStore implements PlanStore backed by the plans table. Steps
// and reasoning travel as a JSON document; the scalar columns exist so
// plans can be filtered without decoding the document.
type PostgresPlanStore struct {
	db *sql.DB
}

var _ PlanStore = (*PostgresPlanStore)(nil)

func NewPostgresPlanStore(db *sql.DB) (*PostgresPlanStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	return &PostgresPlanStore{db: db}, nil
}

// planDocument is the JSON shape stored in the plans.document column.
type planDocument struct {
	Steps     []ExecutionStep `json:"steps"`
	Reasoning string          `json:"reasoning"`
}

func (s *PostgresPlanStore) Add(plan *ExecutionPlan) error {
	if plan == nil {
		return fmt.Errorf("plan cannot be nil")
	}
	if plan.ID == "" {
		return fmt.Errorf("plan ID cannot be empty")
	}

	doc, err := json.Marshal(planDocument{Steps: plan.Steps, Reasoning: plan.Reasoning})
	if err != nil {
		return fmt.Errorf("failed to encode plan document: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO plans (id, account_id, recommendation_id, message_id, simulated, status, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		plan.ID, plan.AccountID, plan.RecommendationID, plan.MessageID,
		plan.Simulated, string(plan.OverallStatus), doc, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

func (s *PostgresPlanStore) Get(id string) (*ExecutionPlan, error) {
	row := s.db.QueryRow(`
		SELECT id, account_id, recommendation_id, message_id, simulated, status, document, created_at
		FROM plans WHERE id = $1`, id)

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan with ID %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *PostgresPlanStore) ListByAccount(accountID string, limit int) ([]*ExecutionPlan, error) {
	query := `
		SELECT id, account_id, recommendation_id, message_id, simulated, status, document, created_at
		FROM plans WHERE account_id = $1 ORDER BY created_at DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var out []*ExecutionPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			// A plan that fails to decode is an audit record we cannot
			// silently drop without a trace.
			logger.Warn("skipping undecodable plan row", "error", err.Error())
			continue
		}
		out = append(out, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*ExecutionPlan, error) {
	var plan ExecutionPlan
	var status string
	var doc []byte

	err := row.Scan(&plan.ID, &plan.AccountID, &plan.RecommendationID, &plan.MessageID,
		&plan.Simulated, &status, &doc, &plan.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}

	var document planDocument
	if err := json.Unmarshal(doc, &document); err != nil {
		return nil, fmt.Errorf("failed to decode plan %q document: %w", plan.ID, err)
	}
	plan.Steps = document.Steps
	plan.Reasoning = document.Reasoning
	plan.OverallStatus = OverallStatus(status)
	plan.CreatedAt = plan.CreatedAt.UTC()
	return &plan, nil
}
