package cost

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS api_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	cost REAL NOT NULL,
	timestamp TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_api_calls_agent ON api_calls(agent_id);
CREATE INDEX IF NOT EXISTS idx_api_calls_timestamp ON api_calls(timestamp);
`

// APICall is a single recorded provider call.
type APICall struct {
	AgentID          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	Timestamp        time.Time
}

// store is the narrow persistence surface the Tracker needs: durable
// aggregate rollups that a JSONL trace file cannot answer efficiently.
type store interface {
	SaveAPICall(call APICall) error
	GetAgentCost(agentID string) (float64, error)
	GetDailyCost(agentID string) (float64, error)
	GetMonthlyCost(agentID string) (float64, error)
	Close() error
}

// sqliteStore is an embedded modernc.org/sqlite-backed store scoped to a
// single api_calls table.
type sqliteStore struct {
	db *sql.DB
}

// newSQLiteStore opens (and, if needed, creates) the cost database at path.
func newSQLiteStore(path string) (*sqliteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create cost db directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cost db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("apply cost schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) SaveAPICall(call APICall) error {
	_, err := s.db.Exec(
		`INSERT INTO api_calls (agent_id, model, prompt_tokens, completion_tokens, cost, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		call.AgentID, call.Model, call.PromptTokens, call.CompletionTokens, call.Cost,
		call.Timestamp.UTC().Format("2006-01-02 15:04:05"),
	)
	return err
}

func (s *sqliteStore) GetAgentCost(agentID string) (float64, error) {
	var cost float64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(cost), 0) FROM api_calls WHERE agent_id = ?`, agentID,
	).Scan(&cost)
	return cost, err
}

func (s *sqliteStore) GetDailyCost(agentID string) (float64, error) {
	var cost float64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(cost), 0) FROM api_calls
		 WHERE agent_id = ? AND strftime('%Y-%m-%d', timestamp) = strftime('%Y-%m-%d', 'now')`,
		agentID,
	).Scan(&cost)
	return cost, err
}

func (s *sqliteStore) GetMonthlyCost(agentID string) (float64, error) {
	var cost float64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(cost), 0) FROM api_calls
		 WHERE agent_id = ? AND strftime('%Y-%m', timestamp) = strftime('%Y-%m', 'now')`,
		agentID,
	).Scan(&cost)
	return cost, err
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
