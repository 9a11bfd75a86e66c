package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jrdesigniub9/novoitm2/internal/genai"
	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/sentiment"
	"github.com/jrdesigniub9/novoitm2/internal/store"
)

// FallbackReply is sent when reply generation is unavailable or fails.
const FallbackReply = "Desculpe, não consegui processar sua mensagem agora. " +
	"Pode tentar novamente em instantes?"

// TextSender sends a text message to a recipient through a named instance.
// The messaging service satisfies this.
type TextSender interface {
	SendText(ctx context.Context, instanceID, recipient, text string) error
}

// Responder runs the inbound AI pipeline for one message: session lookup,
// sentiment classification, reply generation, turn recording, delivery, and
// trigger-rule follow-ups. Every step after session creation is
// failure-tolerant; a later step still runs when an earlier one degrades.
type Responder struct {
	store     store.Store
	sessions  *SessionManager
	generator genai.ReplyGenerator
	sender    TextSender
}

// NewResponder creates a responder. generator may be nil, in which case every
// reply is the fallback copy.
func NewResponder(st store.Store, sessions *SessionManager, generator genai.ReplyGenerator, sender TextSender) *Responder {
	return &Responder{
		store:     st,
		sessions:  sessions,
		generator: generator,
		sender:    sender,
	}
}

// settings returns the saved AI settings, or the defaults when none are saved
// or the store read fails. Settings are re-read on every invocation so updates
// apply without restart.
func (r *Responder) settings() models.AISettings {
	saved, err := r.store.GetAISettings()
	if err != nil {
		slog.Error("Responder.settings falling back to defaults", "error", err)
		return models.DefaultAISettings()
	}
	if saved == nil {
		return models.DefaultAISettings()
	}
	return *saved
}

// HandleInbound processes one inbound message end to end. It is safe to call
// concurrently; work for the same (instance, contact) pair is serialized.
func (r *Responder) HandleInbound(ctx context.Context, msg models.InboundMessage) {
	if msg.FromMe || msg.Text == "" {
		return
	}

	settings := r.settings()
	if !settings.EnableAutoResponse {
		slog.Debug("Responder.HandleInbound auto-response disabled",
			"instance_id", msg.InstanceID, "sender_id", msg.SenderID)
		return
	}

	err := r.sessions.WithPair(msg.InstanceID, msg.SenderID, func() error {
		r.process(ctx, msg, settings)
		return nil
	})
	if err != nil {
		slog.Error("Responder.HandleInbound failed", "error", err,
			"instance_id", msg.InstanceID, "sender_id", msg.SenderID)
	}
}

// process runs the pipeline steps under the pair lock.
func (r *Responder) process(ctx context.Context, msg models.InboundMessage, settings models.AISettings) {
	session, err := r.sessions.GetOrCreate(msg.InstanceID, msg.SenderID)
	if err != nil {
		slog.Error("Responder.process session unavailable", "error", err,
			"instance_id", msg.InstanceID, "sender_id", msg.SenderID)
		return
	}

	var result models.SentimentResult
	if settings.EnableSentimentAnalysis {
		classifier := sentiment.New(
			sentiment.WithDoubtKeywords(settings.DoubtTriggers),
			sentiment.WithDisinterestKeywords(settings.DisinterestTriggers),
		)
		result = classifier.Classify(msg.Text)
	} else {
		result = models.SentimentResult{
			SentimentClass: models.SentimentNeutral,
			Confidence:     sentiment.DefaultConfidence,
		}
	}

	reply := r.generateReply(ctx, settings, session.Context, msg.Text)

	if err := r.sessions.RecordTurn(session, msg.Text, reply, &result); err != nil {
		slog.Error("Responder.process failed to record turn", "error", err,
			"session_id", session.ID)
	}

	if err := r.sender.SendText(ctx, msg.InstanceID, msg.SenderID, reply); err != nil {
		slog.Error("Responder.process failed to send reply", "error", err,
			"instance_id", msg.InstanceID, "sender_id", msg.SenderID)
	}

	var triggered []string
	if action, ok := SelectAction(result, settings.ConfidenceThreshold); ok {
		triggered = append(triggered, string(action))
		if err := r.sender.SendText(ctx, msg.InstanceID, msg.SenderID, ActionMessage(action)); err != nil {
			slog.Error("Responder.process failed to send action message", "error", err,
				"action", action, "instance_id", msg.InstanceID, "sender_id", msg.SenderID)
		}
	}

	record := models.AIResponseRecord{
		ID:               uuid.NewString(),
		SessionID:        session.ID,
		UserMessage:      msg.Text,
		AIResponse:       reply,
		Sentiment:        result,
		TriggeredActions: triggered,
		Timestamp:        time.Now(),
	}
	if err := r.store.AddAIResponse(record); err != nil {
		slog.Error("Responder.process failed to store audit record", "error", err,
			"session_id", session.ID)
	}

	slog.Info("Responder.process handled message",
		"instance_id", msg.InstanceID,
		"sender_id", msg.SenderID,
		"sentiment", result.SentimentClass,
		"confidence", result.Confidence,
		"actions", triggered)
}

// generateReply asks the configured generator for a reply, passing only the
// most recent context window. Any failure degrades to the fallback copy.
func (r *Responder) generateReply(ctx context.Context, settings models.AISettings, history []models.ContextEntry, message string) string {
	if r.generator == nil {
		return FallbackReply
	}
	window := history
	if settings.MaxContextMessages > 0 && len(window) > settings.MaxContextMessages {
		window = window[len(window)-settings.MaxContextMessages:]
	}
	reply, err := r.generator.GenerateReply(ctx, settings.DefaultPrompt, window, message)
	if err != nil {
		slog.Error("Responder.generateReply degraded to fallback", "error", err)
		return FallbackReply
	}
	if reply == "" {
		return FallbackReply
	}
	return reply
}

// TestResult is the outcome of a dry-run pipeline invocation.
type TestResult struct {
	Reply            string                 `json:"reply"`
	Sentiment        models.SentimentResult `json:"sentiment"`
	TriggeredActions []string               `json:"triggeredActions"`
}

// Test runs classification and reply generation for a message without any
// session, delivery, or persistence side effects.
func (r *Responder) Test(ctx context.Context, message string) TestResult {
	settings := r.settings()

	classifier := sentiment.New(
		sentiment.WithDoubtKeywords(settings.DoubtTriggers),
		sentiment.WithDisinterestKeywords(settings.DisinterestTriggers),
	)
	result := classifier.Classify(message)

	var triggered []string
	if action, ok := SelectAction(result, settings.ConfidenceThreshold); ok {
		triggered = append(triggered, string(action))
	}

	return TestResult{
		Reply:            r.generateReply(ctx, settings, nil, message),
		Sentiment:        result,
		TriggeredActions: triggered,
	}
}
