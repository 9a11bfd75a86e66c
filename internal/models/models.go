// Package models defines the core data structures for the flow automation backend.
//
// It includes flow graph types, execution records, conversation sessions, sentiment
// results, and AI audit records, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// NodeType identifies the behavior of a flow node.
type NodeType string

const (
	// NodeTypeTrigger marks the entry point of a flow. It dispatches no action.
	NodeTypeTrigger NodeType = "trigger"
	// NodeTypeMessage sends a text message.
	NodeTypeMessage NodeType = "message"
	// NodeTypeMedia sends a media attachment (image, video, document).
	NodeTypeMedia NodeType = "media"
	// NodeTypeAudio sends an audio message.
	NodeTypeAudio NodeType = "audio"
	// NodeTypeDelay pauses the execution for a configured number of seconds.
	NodeTypeDelay NodeType = "delay"
)

// IsValidNodeType checks if the given node type is supported.
func IsValidNodeType(nt NodeType) bool {
	switch nt {
	case NodeTypeTrigger, NodeTypeMessage, NodeTypeMedia, NodeTypeAudio, NodeTypeDelay:
		return true
	default:
		return false
	}
}

// Error variables for better error handling and testability
var (
	ErrFlowNotFound      = errors.New("flow not found")
	ErrFlowInactive      = errors.New("flow is not active")
	ErrNoTriggerNode     = errors.New("no trigger node found in flow")
	ErrEmptyFlowName     = errors.New("flow name cannot be empty")
	ErrDuplicateNodeID   = errors.New("duplicate node id in flow")
	ErrUnknownNodeType   = errors.New("unknown node type")
	ErrDanglingEdge      = errors.New("edge references a node that does not exist")
	ErrMissingNodeParams = errors.New("node is missing required parameters")
	ErrEmptyRecipient    = errors.New("recipient cannot be empty")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInstanceNotFound  = errors.New("instance not found")
)

// Position is an opaque layout hint produced by the visual editor.
// The execution engine never interprets it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlowNode is one typed node in a flow graph. Data carries the node-type-specific
// parameters (message text, media url/caption, delay seconds, trigger keywords).
type FlowNode struct {
	ID       string                 `json:"id"`
	Type     NodeType               `json:"type"`
	Position Position               `json:"position"`
	Data     map[string]interface{} `json:"data"`
}

// FlowEdge connects two nodes by id. The engine follows the first outgoing
// edge of a node in declaration order; additional edges are ignored.
type FlowEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Flow is a user-authored automation graph. The Flow record is the sole source
// of truth for topology; execution never mutates it.
type Flow struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Nodes            []FlowNode `json:"nodes"`
	Edges            []FlowEdge `json:"edges"`
	IsActive         bool       `json:"isActive"`
	SelectedInstance string     `json:"selectedInstance,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// FlowCreate is the payload for creating a flow.
type FlowCreate struct {
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Nodes            []FlowNode `json:"nodes"`
	Edges            []FlowEdge `json:"edges"`
	IsActive         bool       `json:"isActive"`
	SelectedInstance string     `json:"selectedInstance,omitempty"`
}

// FlowUpdate is the payload for partially updating a flow. Only non-nil fields
// are applied; UpdatedAt is refreshed on any change.
type FlowUpdate struct {
	Name             *string     `json:"name,omitempty"`
	Description      *string     `json:"description,omitempty"`
	Nodes            *[]FlowNode `json:"nodes,omitempty"`
	Edges            *[]FlowEdge `json:"edges,omitempty"`
	IsActive         *bool       `json:"isActive,omitempty"`
	SelectedInstance *string     `json:"selectedInstance,omitempty"`
}

// Validate checks the structural invariants of a flow: a trigger node must
// exist, node ids must be unique and typed, every edge must reference existing
// nodes, and each reachable node must carry the parameters its type requires.
// Cycle detection is deliberately not performed; traversal terminates because
// only the first outgoing edge of a node is ever followed.
func (f *Flow) Validate() error {
	if f.Name == "" {
		return ErrEmptyFlowName
	}

	nodeIDs := make(map[string]NodeType, len(f.Nodes))
	hasTrigger := false
	for _, n := range f.Nodes {
		if !IsValidNodeType(n.Type) {
			return ErrUnknownNodeType
		}
		if _, dup := nodeIDs[n.ID]; dup {
			return ErrDuplicateNodeID
		}
		nodeIDs[n.ID] = n.Type
		if n.Type == NodeTypeTrigger {
			hasTrigger = true
		}
		if err := validateNodeData(n); err != nil {
			return err
		}
	}
	if !hasTrigger {
		return ErrNoTriggerNode
	}

	for _, e := range f.Edges {
		if _, ok := nodeIDs[e.Source]; !ok {
			return ErrDanglingEdge
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			return ErrDanglingEdge
		}
	}
	return nil
}

// validateNodeData enforces per-type required parameters.
func validateNodeData(n FlowNode) error {
	switch n.Type {
	case NodeTypeMessage:
		if DataString(n.Data, "message") == "" {
			return ErrMissingNodeParams
		}
	case NodeTypeMedia:
		if DataString(n.Data, "mediaUrl") == "" {
			return ErrMissingNodeParams
		}
	case NodeTypeAudio:
		if DataString(n.Data, "audioUrl") == "" {
			return ErrMissingNodeParams
		}
	case NodeTypeDelay:
		if DataFloat(n.Data, "seconds", 1) < 0 {
			return ErrMissingNodeParams
		}
	}
	return nil
}

// DataString extracts a string parameter from a node data map.
func DataString(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// DataFloat extracts a numeric parameter from a node data map, tolerating the
// int/float ambiguity of decoded JSON.
func DataFloat(data map[string]interface{}, key string, def float64) float64 {
	if data == nil {
		return def
	}
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// DataStringSlice extracts a list-of-strings parameter from a node data map.
func DataStringSlice(data map[string]interface{}, key string) []string {
	if data == nil {
		return nil
	}
	switch v := data[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ExecutionStatus represents the lifecycle state of a flow execution.
type ExecutionStatus string

const (
	// ExecutionStatusRunning indicates the execution is in progress.
	ExecutionStatusRunning ExecutionStatus = "running"
	// ExecutionStatusCompleted indicates the execution finished normally.
	ExecutionStatusCompleted ExecutionStatus = "completed"
	// ExecutionStatusFailed indicates the execution aborted on an error.
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// NodeLogStatus is the per-node status recorded in an execution log.
type NodeLogStatus string

const (
	// NodeLogExecuting marks a node whose dispatch has started.
	NodeLogExecuting NodeLogStatus = "executing"
	// NodeLogCompleted marks a node whose dispatch returned successfully.
	NodeLogCompleted NodeLogStatus = "completed"
)

// ExecutionLogEntry is one append-only entry in a flow execution's log.
// Entries with an empty NodeID carry a terminal error instead.
type ExecutionLogEntry struct {
	NodeID    string        `json:"nodeId,omitempty"`
	NodeType  NodeType      `json:"nodeType,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Status    NodeLogStatus `json:"status,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// FlowExecution is one traversal of a flow's graph for one recipient.
// It is append-only while running and immutable once status is terminal.
type FlowExecution struct {
	ID            string              `json:"id"`
	FlowID        string              `json:"flowId"`
	Status        ExecutionStatus     `json:"status"`
	CurrentNodeID string              `json:"currentNodeId,omitempty"`
	StartedAt     time.Time           `json:"startedAt"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
	Log           []ExecutionLogEntry `json:"log"`
}

// SentimentClass buckets a polarity score into positive/neutral/negative.
type SentimentClass string

const (
	SentimentPositive SentimentClass = "positive"
	SentimentNeutral  SentimentClass = "neutral"
	SentimentNegative SentimentClass = "negative"
)

// SentimentResult is the structured output of classifying one message.
// It is always embedded in a context entry or session, never stored alone.
type SentimentResult struct {
	Polarity       float64        `json:"polarity"`
	Subjectivity   float64        `json:"subjectivity"`
	SentimentClass SentimentClass `json:"sentiment_class"`
	HasDoubt       bool           `json:"has_doubt"`
	HasDisinterest bool           `json:"has_disinterest"`
	Confidence     float64        `json:"confidence"`
}

// ContextRole identifies who produced a conversation context entry.
type ContextRole string

const (
	ContextRoleUser      ContextRole = "user"
	ContextRoleAssistant ContextRole = "assistant"
)

// ContextEntry is one turn in a conversation session.
type ContextEntry struct {
	Role      ContextRole      `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Sentiment *SentimentResult `json:"sentiment,omitempty"`
}

// ConversationSession accumulates AI conversation state for one
// (instance, contact) pair. At most one active session exists per pair.
type ConversationSession struct {
	ID                string              `json:"id"`
	InstanceID        string              `json:"instanceId"`
	ContactID         string              `json:"contactId"`
	Context           []ContextEntry      `json:"context"`
	LastActivity      time.Time           `json:"lastActivity"`
	IsActive          bool                `json:"isActive"`
	SentimentAnalysis *SentimentResult    `json:"sentimentAnalysis,omitempty"`
}

// AIResponseRecord is an append-only audit entry, one per processed inbound message.
type AIResponseRecord struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"sessionId"`
	UserMessage      string          `json:"userMessage"`
	AIResponse       string          `json:"aiResponse"`
	Sentiment        SentimentResult `json:"sentiment"`
	TriggeredActions []string        `json:"triggeredActions"`
	Timestamp        time.Time       `json:"timestamp"`
}

// AISettings is the process-wide AI configuration record. It is fetched at the
// start of each pipeline invocation (read-through) rather than cached; updates
// are last-write-wins.
type AISettings struct {
	DefaultPrompt           string   `json:"defaultPrompt"`
	EnableSentimentAnalysis bool     `json:"enableSentimentAnalysis"`
	EnableAutoResponse      bool     `json:"enableAutoResponse"`
	ConfidenceThreshold     float64  `json:"confidenceThreshold"`
	MaxContextMessages      int      `json:"maxContextMessages"`
	DisinterestTriggers     []string `json:"disinterestTriggers"`
	DoubtTriggers           []string `json:"doubtTriggers"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// DefaultAISettings returns the settings used when none have been saved yet.
func DefaultAISettings() AISettings {
	return AISettings{
		DefaultPrompt: "Você é um assistente virtual amigável e prestativo. " +
			"Responda de forma clara, educada e objetiva em português.",
		EnableSentimentAnalysis: true,
		EnableAutoResponse:      true,
		ConfidenceThreshold:     0.7,
		MaxContextMessages:      5,
		DisinterestTriggers:     []string{"não quero", "desistir", "cancelar", "chato", "pare", "parar"},
		DoubtTriggers:           []string{"dúvida", "não entendi", "confuso", "como", "o que", "por que", "?"},
	}
}

// InstanceStatusValue tracks the connection state of a messaging instance.
type InstanceStatusValue string

const (
	InstanceStatusCreated      InstanceStatusValue = "created"
	InstanceStatusConnecting   InstanceStatusValue = "connecting"
	InstanceStatusConnected    InstanceStatusValue = "open"
	InstanceStatusDisconnected InstanceStatusValue = "disconnected"
)

// Instance is one connected messaging-provider account.
type Instance struct {
	ID           string              `json:"id"`
	InstanceName string              `json:"instanceName"`
	InstanceKey  string              `json:"instanceKey,omitempty"`
	QRCode       string              `json:"qrCode,omitempty"`
	Status       InstanceStatusValue `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// InboundMessage is the normalized internal form of a provider "message
// received" event, whatever spelling or payload shape the provider used.
type InboundMessage struct {
	InstanceID string    `json:"instanceId"`
	SenderID   string    `json:"senderId"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	FromMe     bool      `json:"fromMe"`
}

// InstanceStatusUpdate is the normalized internal form of a provider QR or
// connection update event.
type InstanceStatusUpdate struct {
	InstanceID string              `json:"instanceId"`
	QRCode     string              `json:"qrCode,omitempty"`
	Status     InstanceStatusValue `json:"status,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}
