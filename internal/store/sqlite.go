// Package store provides storage backends for the flow automation backend.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/jrdesigniub9/novoitm2/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists all collections in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN (a file path).
// The parent directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddFlow(f models.Flow) error {
	nodesJSON, err := marshalJSON(f.Nodes, "[]")
	if err != nil {
		return err
	}
	edgesJSON, err := marshalJSON(f.Edges, "[]")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO flows (id, name, description, nodes, edges, is_active, selected_instance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Description, nodesJSON, edgesJSON, f.IsActive, f.SelectedInstance, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to insert flow %s: %w", f.ID, err)
	}
	slog.Debug("SQLiteStore AddFlow succeeded", "flowID", f.ID)
	return nil
}

const flowColumns = "id, name, description, nodes, edges, is_active, selected_instance, created_at, updated_at"

func (s *SQLiteStore) GetFlows() ([]models.Flow, error) {
	rows, err := s.db.Query(`SELECT ` + flowColumns + ` FROM flows ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore GetFlows query failed", "error", err)
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	var flows []models.Flow
	for rows.Next() {
		f, err := scanFlow(rows.Scan)
		if err != nil {
			slog.Error("SQLiteStore GetFlows scan failed", "error", err)
			return nil, err
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}
	slog.Debug("SQLiteStore GetFlows succeeded", "count", len(flows))
	return flows, nil
}

func (s *SQLiteStore) GetFlow(id string) (*models.Flow, error) {
	row := s.db.QueryRow(`SELECT `+flowColumns+` FROM flows WHERE id = ?`, id)
	f, err := scanFlow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlow failed", "error", err, "flowID", id)
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteStore) SaveFlow(f models.Flow) error {
	nodesJSON, err := marshalJSON(f.Nodes, "[]")
	if err != nil {
		return err
	}
	edgesJSON, err := marshalJSON(f.Edges, "[]")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO flows (id, name, description, nodes, edges, is_active, selected_instance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Description, nodesJSON, edgesJSON, f.IsActive, f.SelectedInstance, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to save flow %s: %w", f.ID, err)
	}
	slog.Debug("SQLiteStore SaveFlow succeeded", "flowID", f.ID)
	return nil
}

func (s *SQLiteStore) DeleteFlow(id string) error {
	res, err := s.db.Exec(`DELETE FROM flows WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteFlow failed", "error", err, "flowID", id)
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrFlowNotFound
	}
	slog.Debug("SQLiteStore DeleteFlow succeeded", "flowID", id)
	return nil
}

func (s *SQLiteStore) AddExecution(e models.FlowExecution) error {
	logJSON, err := marshalJSON(e.Log, "[]")
	if err != nil {
		return err
	}
	var completedAt interface{}
	if e.CompletedAt != nil {
		completedAt = *e.CompletedAt
	}
	_, err = s.db.Exec(`INSERT INTO flow_executions (id, flow_id, status, current_node_id, started_at, completed_at, log)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FlowID, e.Status, e.CurrentNodeID, e.StartedAt, completedAt, logJSON)
	if err != nil {
		slog.Error("SQLiteStore AddExecution failed", "error", err, "executionID", e.ID)
		return fmt.Errorf("failed to insert execution %s: %w", e.ID, err)
	}
	slog.Debug("SQLiteStore AddExecution succeeded", "executionID", e.ID, "status", e.Status)
	return nil
}

const executionColumns = "id, flow_id, status, current_node_id, started_at, completed_at, log"

func (s *SQLiteStore) GetExecutions(flowID string) ([]models.FlowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM flow_executions`
	var args []interface{}
	if flowID != "" {
		query += ` WHERE flow_id = ?`
		args = append(args, flowID)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetExecutions query failed", "error", err)
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var executions []models.FlowExecution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			slog.Error("SQLiteStore GetExecutions scan failed", "error", err)
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

func (s *SQLiteStore) GetExecution(id string) (*models.FlowExecution, error) {
	row := s.db.QueryRow(`SELECT `+executionColumns+` FROM flow_executions WHERE id = ?`, id)
	e, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetExecution failed", "error", err, "executionID", id)
		return nil, err
	}
	return &e, nil
}

const sessionColumns = "id, instance_id, contact_id, context, last_activity, is_active, sentiment"

func (s *SQLiteStore) GetSession(instanceID, contactID string) (*models.ConversationSession, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM ai_sessions WHERE instance_id = ? AND contact_id = ? AND is_active = 1`,
		instanceID, contactID)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "instanceID", instanceID, "contactID", contactID)
		return nil, err
	}
	return &sess, nil
}

func (s *SQLiteStore) SaveSession(sess models.ConversationSession) error {
	contextJSON, err := marshalJSON(sess.Context, "[]")
	if err != nil {
		return err
	}
	sentimentJSON, err := sessionSentimentJSON(sess.SentimentAnalysis)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO ai_sessions (id, instance_id, contact_id, context, last_activity, is_active, sentiment)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.InstanceID, sess.ContactID, contextJSON, sess.LastActivity, sess.IsActive, sentimentJSON)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", sess.ID, "contextLen", len(sess.Context))
	return nil
}

func (s *SQLiteStore) GetSessions() ([]models.ConversationSession, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM ai_sessions ORDER BY last_activity DESC`)
	if err != nil {
		slog.Error("SQLiteStore GetSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ConversationSession
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			slog.Error("SQLiteStore GetSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) AddAIResponse(r models.AIResponseRecord) error {
	sentimentJSON, err := marshalJSON(r.Sentiment, "{}")
	if err != nil {
		return err
	}
	actionsJSON, err := marshalJSON(r.TriggeredActions, "[]")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO ai_responses (id, session_id, user_message, ai_response, sentiment, triggered_actions, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.UserMessage, r.AIResponse, sentimentJSON, actionsJSON, r.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AddAIResponse failed", "error", err, "recordID", r.ID)
		return fmt.Errorf("failed to insert ai response %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore AddAIResponse succeeded", "recordID", r.ID)
	return nil
}

func (s *SQLiteStore) GetAIResponses(limit int) ([]models.AIResponseRecord, error) {
	query := `SELECT id, session_id, user_message, ai_response, sentiment, triggered_actions, timestamp
		FROM ai_responses ORDER BY timestamp DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetAIResponses query failed", "error", err)
		return nil, fmt.Errorf("failed to query ai responses: %w", err)
	}
	defer rows.Close()

	var records []models.AIResponseRecord
	for rows.Next() {
		r, err := scanAIResponse(rows.Scan)
		if err != nil {
			slog.Error("SQLiteStore GetAIResponses scan failed", "error", err)
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) GetAISettings() (*models.AISettings, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM ai_settings WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetAISettings failed", "error", err)
		return nil, err
	}
	var cfg models.AISettings
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		slog.Error("SQLiteStore GetAISettings unmarshal failed", "error", err)
		return nil, fmt.Errorf("unmarshal ai settings failed: %w", err)
	}
	return &cfg, nil
}

func (s *SQLiteStore) SaveAISettings(cfg models.AISettings) error {
	cfg.UpdatedAt = time.Now()
	data, err := marshalJSON(cfg, "{}")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO ai_settings (id, data, updated_at) VALUES (1, ?, ?)`, data, cfg.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveAISettings failed", "error", err)
		return fmt.Errorf("failed to save ai settings: %w", err)
	}
	slog.Debug("SQLiteStore SaveAISettings succeeded")
	return nil
}

func (s *SQLiteStore) AddInstance(i models.Instance) error {
	_, err := s.db.Exec(`INSERT INTO instances (id, instance_name, instance_key, qr_code, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.InstanceName, i.InstanceKey, i.QRCode, i.Status, i.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddInstance failed", "error", err, "instanceName", i.InstanceName)
		return fmt.Errorf("failed to insert instance %s: %w", i.InstanceName, err)
	}
	slog.Debug("SQLiteStore AddInstance succeeded", "instanceName", i.InstanceName)
	return nil
}

const instanceColumns = "id, instance_name, instance_key, qr_code, status, created_at"

func (s *SQLiteStore) GetInstances() ([]models.Instance, error) {
	rows, err := s.db.Query(`SELECT ` + instanceColumns + ` FROM instances ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore GetInstances query failed", "error", err)
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var instances []models.Instance
	for rows.Next() {
		var i models.Instance
		if err := rows.Scan(&i.ID, &i.InstanceName, &i.InstanceKey, &i.QRCode, &i.Status, &i.CreatedAt); err != nil {
			slog.Error("SQLiteStore GetInstances scan failed", "error", err)
			return nil, err
		}
		instances = append(instances, i)
	}
	return instances, rows.Err()
}

func (s *SQLiteStore) GetInstanceByName(name string) (*models.Instance, error) {
	var i models.Instance
	err := s.db.QueryRow(`SELECT `+instanceColumns+` FROM instances WHERE instance_name = ?`, name).
		Scan(&i.ID, &i.InstanceName, &i.InstanceKey, &i.QRCode, &i.Status, &i.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetInstanceByName failed", "error", err, "instanceName", name)
		return nil, err
	}
	return &i, nil
}

func (s *SQLiteStore) SaveInstance(i models.Instance) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO instances (id, instance_name, instance_key, qr_code, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.InstanceName, i.InstanceKey, i.QRCode, i.Status, i.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveInstance failed", "error", err, "instanceName", i.InstanceName)
		return fmt.Errorf("failed to save instance %s: %w", i.InstanceName, err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
