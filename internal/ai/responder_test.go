package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jrdesigniub9/novoitm2/internal/genai"
	"github.com/jrdesigniub9/novoitm2/internal/messaging"
	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/store"
)

// stubGenerator is a hand-rolled ReplyGenerator for tests.
type stubGenerator struct {
	reply       string
	err         error
	lastHistory []models.ContextEntry
	calls       int
}

func (g *stubGenerator) GenerateReply(ctx context.Context, instructions string, history []models.ContextEntry, message string) (string, error) {
	g.calls++
	g.lastHistory = history
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newTestResponder(gen *stubGenerator) (*Responder, *store.InMemoryStore, *messaging.MockService) {
	st := store.NewInMemoryStore()
	sender := messaging.NewMockService()
	sessions := NewSessionManager(st)
	var generator genai.ReplyGenerator
	if gen != nil {
		generator = gen
	}
	return NewResponder(st, sessions, generator, sender), st, sender
}

func inbound(text string) models.InboundMessage {
	return models.InboundMessage{
		InstanceID: "inst1",
		SenderID:   "5511999999999",
		Text:       text,
	}
}

func TestHandleInbound_RepliesAndRecords(t *testing.T) {
	gen := &stubGenerator{reply: "Olá! Como posso ajudar?"}
	responder, st, sender := newTestResponder(gen)

	responder.HandleInbound(context.Background(), inbound("Adorei o produto! Está perfeito, muito obrigado!"))

	if len(sender.TextSends) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(sender.TextSends))
	}
	if sender.TextSends[0].Body != gen.reply {
		t.Errorf("expected generated reply, got %q", sender.TextSends[0].Body)
	}

	session, err := st.GetSession("inst1", "5511999999999")
	if err != nil || session == nil {
		t.Fatalf("expected session to exist, err=%v", err)
	}
	if len(session.Context) != 2 {
		t.Errorf("expected 2 context entries (user + assistant), got %d", len(session.Context))
	}

	records, err := st.GetAIResponses(10)
	if err != nil {
		t.Fatalf("GetAIResponses failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(records))
	}
	if records[0].Sentiment.SentimentClass != models.SentimentPositive {
		t.Errorf("expected positive sentiment in audit record, got %q", records[0].Sentiment.SentimentClass)
	}
	if len(records[0].TriggeredActions) != 0 {
		t.Errorf("expected no triggered actions, got %v", records[0].TriggeredActions)
	}
}

func TestHandleInbound_DisinterestSendsRetentionFollowup(t *testing.T) {
	gen := &stubGenerator{reply: "Entendo."}
	responder, st, sender := newTestResponder(gen)

	responder.HandleInbound(context.Background(), inbound("Não quero mais isso, cancelar tudo agora!"))

	if len(sender.TextSends) != 2 {
		t.Fatalf("expected reply plus follow-up, got %d sends", len(sender.TextSends))
	}
	if sender.TextSends[1].Body != ActionMessage(ActionDisinterestRetention) {
		t.Errorf("expected retention copy as second send, got %q", sender.TextSends[1].Body)
	}

	records, _ := st.GetAIResponses(10)
	if len(records) != 1 || len(records[0].TriggeredActions) != 1 ||
		records[0].TriggeredActions[0] != string(ActionDisinterestRetention) {
		t.Errorf("expected disinterest_retention in audit record, got %+v", records)
	}
}

func TestHandleInbound_GeneratorFailureFallsBack(t *testing.T) {
	gen := &stubGenerator{err: errors.New("api down")}
	responder, _, sender := newTestResponder(gen)

	responder.HandleInbound(context.Background(), inbound("oi, tudo bem?"))

	if len(sender.TextSends) == 0 {
		t.Fatal("expected a fallback send")
	}
	if sender.TextSends[0].Body != FallbackReply {
		t.Errorf("expected fallback copy, got %q", sender.TextSends[0].Body)
	}
}

func TestHandleInbound_NilGeneratorFallsBack(t *testing.T) {
	responder, _, sender := newTestResponder(nil)

	responder.HandleInbound(context.Background(), inbound("oi"))

	if len(sender.TextSends) == 0 || sender.TextSends[0].Body != FallbackReply {
		t.Errorf("expected fallback copy without a generator, got %+v", sender.TextSends)
	}
}

func TestHandleInbound_SkipsOwnAndEmptyMessages(t *testing.T) {
	responder, st, sender := newTestResponder(&stubGenerator{reply: "x"})

	msg := inbound("oi")
	msg.FromMe = true
	responder.HandleInbound(context.Background(), msg)
	responder.HandleInbound(context.Background(), inbound(""))

	if len(sender.TextSends) != 0 {
		t.Errorf("expected no sends, got %d", len(sender.TextSends))
	}
	if records, _ := st.GetAIResponses(10); len(records) != 0 {
		t.Errorf("expected no audit records, got %d", len(records))
	}
}

func TestHandleInbound_AutoResponseDisabled(t *testing.T) {
	responder, st, sender := newTestResponder(&stubGenerator{reply: "x"})

	settings := models.DefaultAISettings()
	settings.EnableAutoResponse = false
	if err := st.SaveAISettings(settings); err != nil {
		t.Fatalf("SaveAISettings failed: %v", err)
	}

	responder.HandleInbound(context.Background(), inbound("oi"))

	if len(sender.TextSends) != 0 {
		t.Errorf("expected no sends with auto-response disabled, got %d", len(sender.TextSends))
	}
}

func TestHandleInbound_SendFailureStillRecordsAudit(t *testing.T) {
	responder, st, sender := newTestResponder(&stubGenerator{reply: "resposta"})
	sender.TextErr = errors.New("transport down")

	responder.HandleInbound(context.Background(), inbound("oi, tudo bem?"))

	records, _ := st.GetAIResponses(10)
	if len(records) != 1 {
		t.Fatalf("expected audit record despite send failure, got %d", len(records))
	}
}

func TestHandleInbound_StoredContextIsAppendOnly(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	responder, st, _ := newTestResponder(gen)

	settings := models.DefaultAISettings()
	settings.MaxContextMessages = 4
	if err := st.SaveAISettings(settings); err != nil {
		t.Fatalf("SaveAISettings failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		responder.HandleInbound(context.Background(), inbound("mensagem numero "+strings.Repeat("x", i+1)))
	}

	session, _ := st.GetSession("inst1", "5511999999999")
	if session == nil {
		t.Fatal("expected session")
	}
	// The limit bounds the model window only; storage keeps the full history.
	if len(session.Context) != 10 {
		t.Errorf("expected all 10 context entries retained in storage, got %d", len(session.Context))
	}
	if len(gen.lastHistory) > 4 {
		t.Errorf("expected at most 4 entries forwarded to the model, got %d", len(gen.lastHistory))
	}
	last := session.Context[len(session.Context)-1]
	if last.Role != models.ContextRoleAssistant {
		t.Errorf("expected assistant entry last, got %q", last.Role)
	}
}

func TestHandleInbound_HistoryWindowPassedToGenerator(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	responder, st, _ := newTestResponder(gen)

	settings := models.DefaultAISettings()
	settings.MaxContextMessages = 2
	if err := st.SaveAISettings(settings); err != nil {
		t.Fatalf("SaveAISettings failed: %v", err)
	}

	responder.HandleInbound(context.Background(), inbound("primeira"))
	responder.HandleInbound(context.Background(), inbound("segunda"))

	if gen.calls != 2 {
		t.Fatalf("expected 2 generator calls, got %d", gen.calls)
	}
	if len(gen.lastHistory) > 2 {
		t.Errorf("expected history window of at most 2, got %d", len(gen.lastHistory))
	}
}

func TestTest_DryRunHasNoSideEffects(t *testing.T) {
	gen := &stubGenerator{reply: "resposta de teste"}
	responder, st, sender := newTestResponder(gen)

	result := responder.Test(context.Background(), "Não quero mais, cancelar")

	if result.Reply != gen.reply {
		t.Errorf("expected generated reply, got %q", result.Reply)
	}
	if len(result.TriggeredActions) != 1 || result.TriggeredActions[0] != string(ActionDisinterestRetention) {
		t.Errorf("expected disinterest action in dry run, got %v", result.TriggeredActions)
	}
	if len(sender.TextSends) != 0 {
		t.Error("dry run must not send messages")
	}
	if sessions, _ := st.GetSessions(); len(sessions) != 0 {
		t.Error("dry run must not create sessions")
	}
	if records, _ := st.GetAIResponses(10); len(records) != 0 {
		t.Error("dry run must not store audit records")
	}
}

func TestSessionManager_GetOrCreateIsStable(t *testing.T) {
	st := store.NewInMemoryStore()
	m := NewSessionManager(st)

	first, err := m.GetOrCreate("inst1", "contact1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	second, err := m.GetOrCreate("inst1", "contact1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same session for the same pair, got %q and %q", first.ID, second.ID)
	}

	other, err := m.GetOrCreate("inst2", "contact1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if other.ID == first.ID {
		t.Error("expected distinct sessions for distinct instances")
	}
}
