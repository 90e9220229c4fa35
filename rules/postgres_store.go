package rules

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/liamcoop/triage/internal/logger"
)

// PostgresRuleStore implements RuleStore backed by PostgreSQL, scoped to a
// single account. Conditions, actions and safety flags are stored as a
// JSON definition column; name, priority and active are lifted into columns
// for querying.
type PostgresRuleStore struct {
	db        *sql.DB
	accountID string
}

// NewPostgresRuleStore creates a PostgreSQL-backed RuleStore for one account.
func NewPostgresRuleStore(db *sql.DB, accountID string) *PostgresRuleStore {
	return &PostgresRuleStore{
		db:        db,
		accountID: accountID,
	}
}

// ruleDefinition is the JSON document stored in the definition column.
type ruleDefinition struct {
	Description string          `json:"description,omitempty"`
	Conditions  Conditions      `json:"conditions"`
	Actions     json.RawMessage `json:"actions"`
	SafetyFlags []string        `json:"safety_flags,omitempty"`
}

// Add inserts a new rule definition.
func (s *PostgresRuleStore) Add(rule *Rule) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rules WHERE id = $1 AND account_id = $2)
	`, rule.ID, s.accountID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	definition, err := marshalDefinition(rule)
	if err != nil {
		return err
	}

	if rule.CreatedAt.IsZero() {
		now := time.Now()
		rule.CreatedAt = now
		rule.UpdatedAt = now
	}

	_, err = s.db.Exec(`
		INSERT INTO rules (id, account_id, name, priority, active, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rule.ID, s.accountID, rule.Name, rule.Priority, rule.Active, definition,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// Get retrieves a rule by ID.
func (s *PostgresRuleStore) Get(id string) (*Rule, error) {
	row := s.db.QueryRow(`
		SELECT id, name, priority, active, definition, created_at, updated_at
		FROM rules
		WHERE id = $1 AND account_id = $2
	`, id, s.accountID)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List returns every rule for the account, newest first.
func (s *PostgresRuleStore) List() ([]*Rule, error) {
	return s.list(`
		SELECT id, name, priority, active, definition, created_at, updated_at
		FROM rules
		WHERE account_id = $1
		ORDER BY created_at DESC
	`)
}

// ListActive returns the account's active rules in creation order. Rows
// whose definition no longer decodes are skipped with a warning rather than
// failing the load; the loader surfaces remaining problems as notes.
func (s *PostgresRuleStore) ListActive() ([]*Rule, error) {
	return s.list(`
		SELECT id, name, priority, active, definition, created_at, updated_at
		FROM rules
		WHERE account_id = $1 AND active = true
		ORDER BY created_at ASC
	`)
}

func (s *PostgresRuleStore) list(query string) ([]*Rule, error) {
	rows, err := s.db.Query(query, s.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rulesList []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			var decodeErr *definitionDecodeError
			if errors.As(err, &decodeErr) {
				logger.Warn("skipping rule with undecodable definition",
					"rule_id", decodeErr.ruleID, "account_id", s.accountID, "error", decodeErr.err)
				continue
			}
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rulesList = append(rulesList, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rulesList, nil
}

// Update modifies an existing rule.
func (s *PostgresRuleStore) Update(rule *Rule) error {
	definition, err := marshalDefinition(rule)
	if err != nil {
		return err
	}

	rule.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE rules
		SET name = $1, priority = $2, active = $3, definition = $4, updated_at = $5
		WHERE id = $6 AND account_id = $7
	`, rule.Name, rule.Priority, rule.Active, definition, rule.UpdatedAt,
		rule.ID, s.accountID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s not found", rule.ID)
	}

	return nil
}

// Delete removes a rule.
func (s *PostgresRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM rules
		WHERE id = $1 AND account_id = $2
	`, id, s.accountID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s not found", id)
	}

	return nil
}

func marshalDefinition(rule *Rule) ([]byte, error) {
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule actions: %w", err)
	}
	definition, err := json.Marshal(ruleDefinition{
		Description: rule.Description,
		Conditions:  rule.Conditions,
		Actions:     actions,
		SafetyFlags: rule.SafetyFlags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule definition: %w", err)
	}
	return definition, nil
}

// definitionDecodeError marks a row whose JSON definition could not be
// decoded, so list operations can skip it instead of failing the batch.
type definitionDecodeError struct {
	ruleID string
	err    error
}

func (e *definitionDecodeError) Error() string {
	return fmt.Sprintf("rule %s definition decode: %v", e.ruleID, e.err)
}

func (e *definitionDecodeError) Unwrap() error { return e.err }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var rule Rule
	var definition []byte
	if err := row.Scan(&rule.ID, &rule.Name, &rule.Priority, &rule.Active,
		&definition, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}

	var def ruleDefinition
	if err := json.Unmarshal(definition, &def); err != nil {
		return nil, &definitionDecodeError{ruleID: rule.ID, err: err}
	}
	rule.Description = def.Description
	rule.Conditions = def.Conditions
	rule.SafetyFlags = def.SafetyFlags
	if len(def.Actions) > 0 {
		if err := json.Unmarshal(def.Actions, &rule.Actions); err != nil {
			return nil, &definitionDecodeError{ruleID: rule.ID, err: err}
		}
	}

	return &rule, nil
}
