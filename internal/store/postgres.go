// Package store provides storage backends for the flow automation backend.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/jrdesigniub9/novoitm2/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists all collections in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddFlow(f models.Flow) error {
	nodesJSON, err := marshalJSON(f.Nodes, "[]")
	if err != nil {
		return err
	}
	edgesJSON, err := marshalJSON(f.Edges, "[]")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO flows (id, name, description, nodes, edges, is_active, selected_instance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.Name, f.Description, nodesJSON, edgesJSON, f.IsActive, f.SelectedInstance, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore AddFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to insert flow %s: %w", f.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetFlows() ([]models.Flow, error) {
	rows, err := s.db.Query(`SELECT ` + flowColumns + ` FROM flows ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore GetFlows query failed", "error", err)
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	var flows []models.Flow
	for rows.Next() {
		f, err := scanFlow(rows.Scan)
		if err != nil {
			slog.Error("PostgresStore GetFlows scan failed", "error", err)
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

func (s *PostgresStore) GetFlow(id string) (*models.Flow, error) {
	row := s.db.QueryRow(`SELECT `+flowColumns+` FROM flows WHERE id = $1`, id)
	f, err := scanFlow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlow failed", "error", err, "flowID", id)
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStore) SaveFlow(f models.Flow) error {
	nodesJSON, err := marshalJSON(f.Nodes, "[]")
	if err != nil {
		return err
	}
	edgesJSON, err := marshalJSON(f.Edges, "[]")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO flows (id, name, description, nodes, edges, is_active, selected_instance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET name = $2, description = $3, nodes = $4, edges = $5,
			is_active = $6, selected_instance = $7, updated_at = $9`,
		f.ID, f.Name, f.Description, nodesJSON, edgesJSON, f.IsActive, f.SelectedInstance, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("failed to save flow %s: %w", f.ID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteFlow(id string) error {
	res, err := s.db.Exec(`DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteFlow failed", "error", err, "flowID", id)
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrFlowNotFound
	}
	return nil
}

func (s *PostgresStore) AddExecution(e models.FlowExecution) error {
	logJSON, err := marshalJSON(e.Log, "[]")
	if err != nil {
		return err
	}
	var completedAt interface{}
	if e.CompletedAt != nil {
		completedAt = *e.CompletedAt
	}
	_, err = s.db.Exec(`INSERT INTO flow_executions (id, flow_id, status, current_node_id, started_at, completed_at, log)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.FlowID, e.Status, e.CurrentNodeID, e.StartedAt, completedAt, logJSON)
	if err != nil {
		slog.Error("PostgresStore AddExecution failed", "error", err, "executionID", e.ID)
		return fmt.Errorf("failed to insert execution %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetExecutions(flowID string) ([]models.FlowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM flow_executions`
	var args []interface{}
	if flowID != "" {
		query += ` WHERE flow_id = $1`
		args = append(args, flowID)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetExecutions query failed", "error", err)
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var executions []models.FlowExecution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			slog.Error("PostgresStore GetExecutions scan failed", "error", err)
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

func (s *PostgresStore) GetExecution(id string) (*models.FlowExecution, error) {
	row := s.db.QueryRow(`SELECT `+executionColumns+` FROM flow_executions WHERE id = $1`, id)
	e, err := scanExecution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetExecution failed", "error", err, "executionID", id)
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) GetSession(instanceID, contactID string) (*models.ConversationSession, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM ai_sessions WHERE instance_id = $1 AND contact_id = $2 AND is_active = TRUE`,
		instanceID, contactID)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "instanceID", instanceID, "contactID", contactID)
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresStore) SaveSession(sess models.ConversationSession) error {
	contextJSON, err := marshalJSON(sess.Context, "[]")
	if err != nil {
		return err
	}
	sentimentJSON, err := sessionSentimentJSON(sess.SentimentAnalysis)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO ai_sessions (id, instance_id, contact_id, context, last_activity, is_active, sentiment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET context = $4, last_activity = $5, is_active = $6, sentiment = $7`,
		sess.ID, sess.InstanceID, sess.ContactID, contextJSON, sess.LastActivity, sess.IsActive, sentimentJSON)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetSessions() ([]models.ConversationSession, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM ai_sessions ORDER BY last_activity DESC`)
	if err != nil {
		slog.Error("PostgresStore GetSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ConversationSession
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			slog.Error("PostgresStore GetSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) AddAIResponse(r models.AIResponseRecord) error {
	sentimentJSON, err := marshalJSON(r.Sentiment, "{}")
	if err != nil {
		return err
	}
	actionsJSON, err := marshalJSON(r.TriggeredActions, "[]")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO ai_responses (id, session_id, user_message, ai_response, sentiment, triggered_actions, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.SessionID, r.UserMessage, r.AIResponse, sentimentJSON, actionsJSON, r.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AddAIResponse failed", "error", err, "recordID", r.ID)
		return fmt.Errorf("failed to insert ai response %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetAIResponses(limit int) ([]models.AIResponseRecord, error) {
	query := `SELECT id, session_id, user_message, ai_response, sentiment, triggered_actions, timestamp
		FROM ai_responses ORDER BY timestamp DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetAIResponses query failed", "error", err)
		return nil, fmt.Errorf("failed to query ai responses: %w", err)
	}
	defer rows.Close()

	var records []models.AIResponseRecord
	for rows.Next() {
		r, err := scanAIResponse(rows.Scan)
		if err != nil {
			slog.Error("PostgresStore GetAIResponses scan failed", "error", err)
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetAISettings() (*models.AISettings, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM ai_settings WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetAISettings failed", "error", err)
		return nil, err
	}
	var cfg models.AISettings
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal ai settings failed: %w", err)
	}
	return &cfg, nil
}

func (s *PostgresStore) SaveAISettings(cfg models.AISettings) error {
	cfg.UpdatedAt = time.Now()
	data, err := marshalJSON(cfg, "{}")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO ai_settings (id, data, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET data = $1, updated_at = $2`, data, cfg.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveAISettings failed", "error", err)
		return fmt.Errorf("failed to save ai settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddInstance(i models.Instance) error {
	_, err := s.db.Exec(`INSERT INTO instances (id, instance_name, instance_key, qr_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.InstanceName, i.InstanceKey, i.QRCode, i.Status, i.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddInstance failed", "error", err, "instanceName", i.InstanceName)
		return fmt.Errorf("failed to insert instance %s: %w", i.InstanceName, err)
	}
	return nil
}

func (s *PostgresStore) GetInstances() ([]models.Instance, error) {
	rows, err := s.db.Query(`SELECT ` + instanceColumns + ` FROM instances ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore GetInstances query failed", "error", err)
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var instances []models.Instance
	for rows.Next() {
		var i models.Instance
		if err := rows.Scan(&i.ID, &i.InstanceName, &i.InstanceKey, &i.QRCode, &i.Status, &i.CreatedAt); err != nil {
			slog.Error("PostgresStore GetInstances scan failed", "error", err)
			return nil, err
		}
		instances = append(instances, i)
	}
	return instances, rows.Err()
}

func (s *PostgresStore) GetInstanceByName(name string) (*models.Instance, error) {
	var i models.Instance
	err := s.db.QueryRow(`SELECT `+instanceColumns+` FROM instances WHERE instance_name = $1`, name).
		Scan(&i.ID, &i.InstanceName, &i.InstanceKey, &i.QRCode, &i.Status, &i.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetInstanceByName failed", "error", err, "instanceName", name)
		return nil, err
	}
	return &i, nil
}

func (s *PostgresStore) SaveInstance(i models.Instance) error {
	_, err := s.db.Exec(`INSERT INTO instances (id, instance_name, instance_key, qr_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET instance_key = $3, qr_code = $4, status = $5`,
		i.ID, i.InstanceName, i.InstanceKey, i.QRCode, i.Status, i.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveInstance failed", "error", err, "instanceName", i.InstanceName)
		return fmt.Errorf("failed to save instance %s: %w", i.InstanceName, err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
