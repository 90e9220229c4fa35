// Package accountengine manages one rule evaluation engine per account.
// Each account's active rules compile into an immutable rule set; rule
// mutations rebuild the engine and swap it in atomically, so in-flight
// evaluations always run against a consistent snapshot.
package accountengine

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/liamcoop/triage/internal/logger"
	"github.com/liamcoop/triage/rules"
)

// accountEngine pairs an account's store and cache with its compiled engine.
type accountEngine struct {
	accountID string
	store     rules.RuleStore
	cache     rules.RulesCache
	engine    *rules.Engine
}

// Manager holds the per-account engines. Safe for concurrent use; GetEngine
// is a read-lock lookup and reloads happen copy-and-swap under the write
// lock. A nil db runs every account on an in-memory store seeded with the
// default rules, which is the test and demo mode.
type Manager struct {
	db       *sql.DB
	cacheCfg rules.CacheConfig
	mu       sync.RWMutex
	accounts map[string]*accountEngine
}

func NewManager(db *sql.DB, cacheCfg rules.CacheConfig) *Manager {
	return &Manager{
		db:       db,
		cacheCfg: cacheCfg,
		accounts: make(map[string]*accountEngine),
	}
}

// LoadAllAccounts initializes engines for every account that has rules
// persisted. An account whose rules fail to load is skipped with a warning
// rather than failing startup; it will be retried lazily on first use.
func (m *Manager) LoadAllAccounts() error {
	if m.db == nil {
		return nil
	}

	rows, err := m.db.Query(`SELECT DISTINCT account_id FROM rules`)
	if err != nil {
		return fmt.Errorf("failed to fetch accounts: %w", err)
	}
	defer rows.Close()

	var accountIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan account row: %w", err)
		}
		accountIDs = append(accountIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating account rows: %w", err)
	}

	loaded := 0
	for _, id := range accountIDs {
		if _, err := m.GetEngine(id); err != nil {
			logger.Warn("failed to load account engine at startup",
				"account_id", id, "error", err.Error())
			continue
		}
		loaded++
	}

	logger.Info("account engines loaded", "accounts", loaded)
	return nil
}

// GetEngine returns the account's engine, initializing it on first use.
// New accounts are seeded with the default rule set.
func (m *Manager) GetEngine(accountID string) (*rules.Engine, error) {
	m.mu.RLock()
	ae, exists := m.accounts[accountID]
	m.mu.RUnlock()
	if exists {
		return ae.engine, nil
	}
	return m.initAccount(accountID)
}

// Store returns the account's rule store for definition CRUD, initializing
// the account on first use.
func (m *Manager) Store(accountID string) (rules.RuleStore, error) {
	if _, err := m.GetEngine(accountID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[accountID].store, nil
}

// Reload recompiles the account's engine from its current rules and swaps
// it in. Call after any rule mutation.
func (m *Manager) Reload(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ae, exists := m.accounts[accountID]
	if !exists {
		return fmt.Errorf("account %s not loaded", accountID)
	}

	ae.cache.Invalidate()
	engine, err := buildEngine(ae)
	if err != nil {
		return err
	}
	// Swap after the new engine compiled, so a failed rebuild leaves the
	// previous snapshot serving.
	m.accounts[accountID] = &accountEngine{
		accountID: accountID,
		store:     ae.store,
		cache:     ae.cache,
		engine:    engine,
	}
	return nil
}

// ListAccounts returns the IDs of all loaded accounts.
func (m *Manager) ListAccounts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	return ids
}

// RemoveAccount drops the account's engine from memory. Persisted rules
// are untouched.
func (m *Manager) RemoveAccount(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[accountID]; !exists {
		return fmt.Errorf("account %s not loaded", accountID)
	}
	delete(m.accounts, accountID)
	return nil
}

func (m *Manager) initAccount(accountID string) (*rules.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have initialized while we waited for the lock.
	if ae, exists := m.accounts[accountID]; exists {
		return ae.engine, nil
	}

	var store rules.RuleStore
	if m.db != nil {
		store = rules.NewPostgresRuleStore(m.db, accountID)
	} else {
		store = rules.NewInMemoryRuleStore()
	}

	ae := &accountEngine{
		accountID: accountID,
		store:     store,
		cache:     rules.NewInMemoryRulesCache(m.cacheCfg),
	}

	if err := seedDefaults(ae); err != nil {
		return nil, err
	}

	engine, err := buildEngine(ae)
	if err != nil {
		return nil, err
	}
	ae.engine = engine
	m.accounts[accountID] = ae

	logger.Info("account engine initialized", "account_id", accountID)
	return engine, nil
}

// seedDefaults installs the stock rule set for an account that has no
// rules yet, so a fresh account gets sensible triage out of the box.
func seedDefaults(ae *accountEngine) error {
	existing, err := ae.store.List()
	if err != nil {
		return fmt.Errorf("failed to list rules for account %s: %w", ae.accountID, err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, def := range rules.DefaultRules() {
		rule := def
		rule.ID = uuid.NewString()
		if err := ae.store.Add(&rule); err != nil {
			return fmt.Errorf("failed to seed default rule %q for account %s: %w",
				rule.Name, ae.accountID, err)
		}
	}
	return nil
}

// buildEngine loads the account's active rules, via the cache when it
// holds a usable snapshot, and compiles them into an engine.
func buildEngine(ae *accountEngine) (*rules.Engine, error) {
	defs := ae.cache.Get()
	if defs == nil {
		loaded, err := ae.store.ListActive()
		if err != nil {
			return nil, fmt.Errorf("failed to load rules for account %s: %w", ae.accountID, err)
		}
		ae.cache.Set(loaded)
		defs = loaded
	}

	flat := make([]rules.Rule, 0, len(defs))
	for _, r := range defs {
		flat = append(flat, *r)
	}

	set := rules.NewRuleSet(flat)
	for _, note := range set.Notes() {
		logger.QuarantinedRules.Add(1)
		logger.Warn("rule quarantined during compile",
			"account_id", ae.accountID, "note", note)
	}
	return rules.NewEngine(set), nil
}
