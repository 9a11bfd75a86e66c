// Package flow implements execution of visual automation flows and the router
// that matches inbound messages to flow triggers.
//
// A flow is a directed graph of typed nodes. Execution starts at the first
// trigger node and follows the first outgoing edge of each node in declaration
// order, so traversal is linear and always terminates.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jrdesigniub9/novoitm2/internal/messaging"
	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/store"
)

// DefaultDelaySeconds is used when a delay node does not configure a duration.
const DefaultDelaySeconds = 1.0

// Engine executes flows against a messaging transport and persists the
// resulting execution records.
type Engine struct {
	store store.Store
	msg   messaging.Service
}

// NewEngine creates a flow engine.
func NewEngine(st store.Store, msg messaging.Service) *Engine {
	return &Engine{store: st, msg: msg}
}

// Execute runs one traversal of a flow for one recipient and returns the
// persisted execution record. instanceID names the transport instance the
// triggering message arrived on; a flow bound to a specific instance always
// sends through its own, while an unbound flow replies on instanceID.
//
// An inactive flow fails fast with ErrFlowInactive and leaves no execution
// record. A flow without a trigger node, or a node whose dispatch fails,
// produces a persisted failed execution: inactivity is a caller error, while a
// started traversal is always accounted for.
func (e *Engine) Execute(ctx context.Context, flowID, recipient, instanceID string) (*models.FlowExecution, error) {
	flow, err := e.store.GetFlow(flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %s: %w", flowID, err)
	}
	if flow == nil {
		return nil, models.ErrFlowNotFound
	}
	if !flow.IsActive {
		slog.Debug("Engine.Execute rejected inactive flow", "flow_id", flowID)
		return nil, models.ErrFlowInactive
	}

	sendInstance := flow.SelectedInstance
	if sendInstance == "" {
		sendInstance = instanceID
	}

	exec := &models.FlowExecution{
		ID:        uuid.NewString(),
		FlowID:    flow.ID,
		Status:    models.ExecutionStatusRunning,
		StartedAt: time.Now(),
		Log:       []models.ExecutionLogEntry{},
	}

	trigger := firstTrigger(flow)
	if trigger == nil {
		return e.fail(exec, models.ErrNoTriggerNode)
	}

	slog.Info("Engine.Execute started", "flow_id", flow.ID, "execution_id", exec.ID, "recipient_set", recipient != "")

	current := trigger
	for current != nil {
		exec.CurrentNodeID = current.ID
		exec.Log = append(exec.Log, models.ExecutionLogEntry{
			NodeID:    current.ID,
			NodeType:  current.Type,
			Timestamp: time.Now(),
			Status:    models.NodeLogExecuting,
		})

		if err := e.dispatch(ctx, sendInstance, *current, recipient); err != nil {
			return e.fail(exec, fmt.Errorf("node %s: %w", current.ID, err))
		}

		exec.Log = append(exec.Log, models.ExecutionLogEntry{
			NodeID:    current.ID,
			NodeType:  current.Type,
			Timestamp: time.Now(),
			Status:    models.NodeLogCompleted,
		})

		current = nextNode(flow, current.ID)
	}

	now := time.Now()
	exec.Status = models.ExecutionStatusCompleted
	exec.CompletedAt = &now
	if err := e.store.AddExecution(*exec); err != nil {
		slog.Error("Engine.Execute failed to persist execution", "error", err, "execution_id", exec.ID)
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	slog.Info("Engine.Execute completed", "flow_id", flow.ID, "execution_id", exec.ID, "nodes_run", len(exec.Log)/2)
	return exec, nil
}

// fail finalizes and persists a failed execution, returning it alongside the
// causing error.
func (e *Engine) fail(exec *models.FlowExecution, cause error) (*models.FlowExecution, error) {
	now := time.Now()
	exec.Status = models.ExecutionStatusFailed
	exec.CompletedAt = &now
	exec.Log = append(exec.Log, models.ExecutionLogEntry{
		Timestamp: now,
		Error:     cause.Error(),
	})
	if err := e.store.AddExecution(*exec); err != nil {
		slog.Error("Engine.fail could not persist failed execution", "error", err, "execution_id", exec.ID)
	}
	slog.Error("Engine.Execute failed", "flow_id", exec.FlowID, "execution_id", exec.ID, "error", cause)
	return exec, cause
}

// dispatch performs the action of one node through the given instance.
func (e *Engine) dispatch(ctx context.Context, instanceID string, node models.FlowNode, recipient string) error {
	switch node.Type {
	case models.NodeTypeTrigger:
		// entry point only, no action
		return nil
	case models.NodeTypeMessage:
		text := models.DataString(node.Data, "message")
		if text == "" {
			return models.ErrMissingNodeParams
		}
		return e.msg.SendText(ctx, instanceID, recipient, text)
	case models.NodeTypeMedia:
		url := models.DataString(node.Data, "mediaUrl")
		if url == "" {
			return models.ErrMissingNodeParams
		}
		return e.msg.SendMedia(ctx, instanceID, recipient, url,
			models.DataString(node.Data, "caption"),
			models.DataString(node.Data, "fileName"),
			models.DataString(node.Data, "mimetype"),
			models.DataString(node.Data, "mediaType"))
	case models.NodeTypeAudio:
		url := models.DataString(node.Data, "audioUrl")
		if url == "" {
			return models.ErrMissingNodeParams
		}
		return e.msg.SendAudio(ctx, instanceID, recipient, url)
	case models.NodeTypeDelay:
		return sleep(ctx, delayDuration(node))
	default:
		return models.ErrUnknownNodeType
	}
}

// delayDuration reads the delay node's configured pause, defaulting and
// clamping negatives to the default.
func delayDuration(node models.FlowNode) time.Duration {
	seconds := models.DataFloat(node.Data, "seconds", DefaultDelaySeconds)
	if seconds < 0 {
		seconds = DefaultDelaySeconds
	}
	return time.Duration(seconds * float64(time.Second))
}

// sleep pauses for d, aborting early when the context is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// firstTrigger returns the first trigger node in declaration order, or nil.
func firstTrigger(flow *models.Flow) *models.FlowNode {
	for i := range flow.Nodes {
		if flow.Nodes[i].Type == models.NodeTypeTrigger {
			return &flow.Nodes[i]
		}
	}
	return nil
}

// nextNode follows the first outgoing edge of nodeID in declaration order.
// Edges pointing at unknown nodes end the traversal.
func nextNode(flow *models.Flow, nodeID string) *models.FlowNode {
	for _, edge := range flow.Edges {
		if edge.Source != nodeID {
			continue
		}
		for i := range flow.Nodes {
			if flow.Nodes[i].ID == edge.Target {
				return &flow.Nodes[i]
			}
		}
		return nil
	}
	return nil
}
