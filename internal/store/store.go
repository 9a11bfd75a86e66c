// Package store provides storage backends for the flow automation backend.
//
// Flows, executions, conversation sessions, AI audit records, settings, and
// instances are persisted as independent collections keyed by generated ids.
// No cross-collection transactions are used. Backends: in-memory, SQLite, and
// PostgreSQL, selected by DSN.
package store

import (
	"strings"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// Store is the document-store abstraction consumed by the engine and pipeline.
type Store interface {
	// Flows
	AddFlow(f models.Flow) error
	GetFlows() ([]models.Flow, error)
	GetFlow(id string) (*models.Flow, error)
	SaveFlow(f models.Flow) error
	DeleteFlow(id string) error

	// Flow executions
	AddExecution(e models.FlowExecution) error
	GetExecutions(flowID string) ([]models.FlowExecution, error)
	GetExecution(id string) (*models.FlowExecution, error)

	// Conversation sessions
	GetSession(instanceID, contactID string) (*models.ConversationSession, error)
	SaveSession(s models.ConversationSession) error
	GetSessions() ([]models.ConversationSession, error)

	// AI audit records
	AddAIResponse(r models.AIResponseRecord) error
	GetAIResponses(limit int) ([]models.AIResponseRecord, error)

	// AI settings (single record, last-write-wins)
	GetAISettings() (*models.AISettings, error)
	SaveAISettings(s models.AISettings) error

	// Instances
	AddInstance(i models.Instance) error
	GetInstances() ([]models.Instance, error)
	GetInstanceByName(name string) (*models.Instance, error)
	SaveInstance(i models.Instance) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the store DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the store DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
