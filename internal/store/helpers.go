package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// marshalJSON encodes v for a JSON column, defaulting to the given literal on nil.
func marshalJSON(v interface{}, emptyLiteral string) (string, error) {
	if v == nil {
		return emptyLiteral, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal for storage failed: %w", err)
	}
	return string(b), nil
}

// scanFlow scans a Flow row; nodes and edges arrive as JSON columns.
func scanFlow(scan func(dest ...interface{}) error) (models.Flow, error) {
	var f models.Flow
	var nodesJSON, edgesJSON string
	if err := scan(&f.ID, &f.Name, &f.Description, &nodesJSON, &edgesJSON, &f.IsActive, &f.SelectedInstance, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return f, err
	}
	if err := json.Unmarshal([]byte(nodesJSON), &f.Nodes); err != nil {
		return f, fmt.Errorf("unmarshal flow nodes failed: %w", err)
	}
	if err := json.Unmarshal([]byte(edgesJSON), &f.Edges); err != nil {
		return f, fmt.Errorf("unmarshal flow edges failed: %w", err)
	}
	return f, nil
}

// scanExecution scans a FlowExecution row; the log arrives as a JSON column.
func scanExecution(scan func(dest ...interface{}) error) (models.FlowExecution, error) {
	var e models.FlowExecution
	var logJSON string
	var completedAt sql.NullTime
	if err := scan(&e.ID, &e.FlowID, &e.Status, &e.CurrentNodeID, &e.StartedAt, &completedAt, &logJSON); err != nil {
		return e, err
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(logJSON), &e.Log); err != nil {
		return e, fmt.Errorf("unmarshal execution log failed: %w", err)
	}
	return e, nil
}

// scanSession scans a ConversationSession row; context and sentiment arrive as JSON columns.
func scanSession(scan func(dest ...interface{}) error) (models.ConversationSession, error) {
	var s models.ConversationSession
	var contextJSON string
	var sentimentJSON sql.NullString
	if err := scan(&s.ID, &s.InstanceID, &s.ContactID, &contextJSON, &s.LastActivity, &s.IsActive, &sentimentJSON); err != nil {
		return s, err
	}
	if err := json.Unmarshal([]byte(contextJSON), &s.Context); err != nil {
		return s, fmt.Errorf("unmarshal session context failed: %w", err)
	}
	if sentimentJSON.Valid && sentimentJSON.String != "" {
		var sr models.SentimentResult
		if err := json.Unmarshal([]byte(sentimentJSON.String), &sr); err != nil {
			return s, fmt.Errorf("unmarshal session sentiment failed: %w", err)
		}
		s.SentimentAnalysis = &sr
	}
	return s, nil
}

// scanAIResponse scans an AIResponseRecord row.
func scanAIResponse(scan func(dest ...interface{}) error) (models.AIResponseRecord, error) {
	var r models.AIResponseRecord
	var sentimentJSON, actionsJSON string
	if err := scan(&r.ID, &r.SessionID, &r.UserMessage, &r.AIResponse, &sentimentJSON, &actionsJSON, &r.Timestamp); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(sentimentJSON), &r.Sentiment); err != nil {
		return r, fmt.Errorf("unmarshal response sentiment failed: %w", err)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &r.TriggeredActions); err != nil {
		return r, fmt.Errorf("unmarshal triggered actions failed: %w", err)
	}
	return r, nil
}

// sessionSentimentJSON encodes the optional session sentiment for storage.
func sessionSentimentJSON(s *models.SentimentResult) (interface{}, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session sentiment failed: %w", err)
	}
	return string(b), nil
}
