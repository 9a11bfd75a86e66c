package ai

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/store"
)

// SessionManager owns conversation session state. It serializes all work per
// (instance, contact) pair so that concurrent inbound messages from the same
// contact cannot interleave context reads and writes.
type SessionManager struct {
	store store.Store

	mu    sync.Mutex
	pairs map[string]*sync.Mutex
}

// NewSessionManager creates a session manager backed by the given store.
func NewSessionManager(st store.Store) *SessionManager {
	return &SessionManager{
		store: st,
		pairs: make(map[string]*sync.Mutex),
	}
}

// pairLock returns the mutex for one (instance, contact) pair, creating it on
// first use. Pair mutexes are never removed; the set of pairs is bounded by
// the contact population.
func (m *SessionManager) pairLock(instanceID, contactID string) *sync.Mutex {
	key := instanceID + "\x00" + contactID
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.pairs[key]
	if !ok {
		lock = &sync.Mutex{}
		m.pairs[key] = lock
	}
	return lock
}

// WithPair runs fn while holding the per-pair lock.
func (m *SessionManager) WithPair(instanceID, contactID string, fn func() error) error {
	lock := m.pairLock(instanceID, contactID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// GetOrCreate returns the active session for the pair, creating and persisting
// a fresh one if none exists. Callers inside the pipeline already hold the
// pair lock via WithPair.
func (m *SessionManager) GetOrCreate(instanceID, contactID string) (*models.ConversationSession, error) {
	session, err := m.store.GetSession(instanceID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session != nil {
		return session, nil
	}

	session = &models.ConversationSession{
		ID:           uuid.NewString(),
		InstanceID:   instanceID,
		ContactID:    contactID,
		Context:      []models.ContextEntry{},
		LastActivity: time.Now(),
		IsActive:     true,
	}
	if err := m.store.SaveSession(*session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	slog.Debug("SessionManager.GetOrCreate created session",
		"session_id", session.ID, "instance_id", instanceID, "contact_id", contactID)
	return session, nil
}

// RecordTurn appends a user message and the assistant reply to the session
// context, updates the last-activity timestamp and the session-level
// sentiment, and persists the session. Stored context is append-only; the
// configured context limit bounds what is forwarded to the model, never what
// is retained.
func (m *SessionManager) RecordTurn(session *models.ConversationSession, userMessage, reply string, sentiment *models.SentimentResult) error {
	now := time.Now()
	session.Context = append(session.Context,
		models.ContextEntry{Role: models.ContextRoleUser, Content: userMessage, Timestamp: now, Sentiment: sentiment},
		models.ContextEntry{Role: models.ContextRoleAssistant, Content: reply, Timestamp: now},
	)
	session.LastActivity = now
	session.SentimentAnalysis = sentiment

	if err := m.store.SaveSession(*session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
