package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection with pooling and prepared statements.
type DB struct {
	*sql.DB
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// NewDB opens (or creates) the operations database under dataDir and runs
// migrations.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "fieldops_risk.db")
	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &DB{
		DB:       db,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized", "path", dbPath)

	return database, nil
}

// migrate creates the operational tables the scorer reads from and the
// snapshot table it writes to.
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS work_orders (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			status TEXT NOT NULL,
			scheduled_start DATETIME,
			scheduled_end DATETIME,
			actual_start DATETIME,
			actual_end DATETIME,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS feedback_entries (
			id TEXT PRIMARY KEY,
			work_order_id TEXT NOT NULL,
			company_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			stars INTEGER NOT NULL,
			would_hire_again BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS issues (
			id TEXT PRIMARY KEY,
			work_order_id TEXT NOT NULL,
			company_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			resolved_at DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS risk_snapshots (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			period_start DATETIME,
			period_end DATETIME,
			score INTEGER NOT NULL,
			ratios TEXT NOT NULL,          -- JSON ratio set
			flagged_metrics TEXT NOT NULL, -- JSON flagged-metric map
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_work_orders_agent ON work_orders(agent_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_work_orders_company ON work_orders(company_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_agent ON feedback_entries(agent_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_company ON feedback_entries(company_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_agent ON issues(agent_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_company ON issues(company_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_agent ON audit_entries(agent_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_company ON audit_entries(company_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_entity ON risk_snapshots(entity_type, entity_id, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements prepares the hot-path insert statements.
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_work_order": `INSERT INTO work_orders (id, company_id, agent_id, status, scheduled_start, scheduled_end, actual_start, actual_end, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		"insert_feedback": `INSERT INTO feedback_entries (id, work_order_id, company_id, agent_id, stars, would_hire_again, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,

		"insert_issue": `INSERT INTO issues (id, work_order_id, company_id, agent_id, status, created_at, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,

		"insert_audit_entry": `INSERT INTO audit_entries (id, company_id, agent_id, action, created_at)
			VALUES (?, ?, ?, ?, ?)`,

		"insert_snapshot": `INSERT INTO risk_snapshots (id, entity_type, entity_id, period_start, period_end, score, ratios, flagged_metrics, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement by name.
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns connection pool statistics.
func (db *DB) GetPoolStats() map[string]interface{} {
	stats := db.DB.Stats()

	return map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}
}

// Close closes prepared statements and the underlying connection.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}

	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
