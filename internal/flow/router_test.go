package flow

import (
	"context"
	"testing"

	"github.com/jrdesigniub9/novoitm2/internal/messaging"
	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/store"
	"github.com/jrdesigniub9/novoitm2/internal/testutil"
)

func msgFrom(instanceID, text string) models.InboundMessage {
	return models.InboundMessage{
		InstanceID: instanceID,
		SenderID:   "5511988887777",
		Text:       text,
	}
}

func TestMatchFlows_KeywordSubstringCaseInsensitive(t *testing.T) {
	f := testutil.LinearFlow("flow-1", []string{"promoção"}, testutil.MessageNode("msg-1", "oferta"))
	matched := MatchFlows([]models.Flow{f}, msgFrom("inst1", "Quero saber da PROMOÇÃO de hoje"))
	if len(matched) != 1 {
		t.Fatalf("expected keyword match, got %d flows", len(matched))
	}

	matched = MatchFlows([]models.Flow{f}, msgFrom("inst1", "bom dia"))
	if len(matched) != 0 {
		t.Errorf("expected no match without the keyword, got %d", len(matched))
	}
}

func TestMatchFlows_InactiveFlowNeverMatches(t *testing.T) {
	f := testutil.LinearFlow("flow-1", []string{"oi"}, testutil.MessageNode("msg-1", "resposta"))
	f.IsActive = false
	if matched := MatchFlows([]models.Flow{f}, msgFrom("inst1", "oi")); len(matched) != 0 {
		t.Errorf("inactive flow matched: %d", len(matched))
	}
}

func TestMatchFlows_InstanceIsolation(t *testing.T) {
	bound := testutil.LinearFlow("flow-bound", []string{"oi"}, testutil.MessageNode("msg-1", "resposta"))
	bound.SelectedInstance = "inst1"
	agnostic := testutil.LinearFlow("flow-any", []string{"oi"}, testutil.MessageNode("msg-2", "resposta"))

	flows := []models.Flow{bound, agnostic}

	// Matching instance: both fire.
	matched := MatchFlows(flows, msgFrom("inst1", "oi"))
	if len(matched) != 2 {
		t.Errorf("expected both flows for the bound instance, got %d", len(matched))
	}

	// Other instance: only the instance-agnostic flow fires.
	matched = MatchFlows(flows, msgFrom("inst2", "oi"))
	if len(matched) != 1 || matched[0].ID != "flow-any" {
		t.Errorf("expected only the unbound flow for inst2, got %+v", matched)
	}
}

func TestMatchFlows_TriggerWithoutKeywordsMatchesEverything(t *testing.T) {
	f := testutil.LinearFlow("flow-1", nil, testutil.MessageNode("msg-1", "resposta"))
	if matched := MatchFlows([]models.Flow{f}, msgFrom("inst1", "qualquer coisa")); len(matched) != 1 {
		t.Errorf("keywordless trigger should match any message, got %d", len(matched))
	}
}

func TestMatchFlows_SingleKeywordField(t *testing.T) {
	f := testutil.LinearFlow("flow-1", nil, testutil.MessageNode("msg-1", "resposta"))
	f.Nodes[0].Data["keyword"] = "ajuda"
	if matched := MatchFlows([]models.Flow{f}, msgFrom("inst1", "preciso de AJUDA")); len(matched) != 1 {
		t.Errorf("expected match on the singular keyword field, got %d", len(matched))
	}
	if matched := MatchFlows([]models.Flow{f}, msgFrom("inst1", "bom dia")); len(matched) != 0 {
		t.Errorf("expected no match, got %d", len(matched))
	}
}

func TestHandleInbound_ExecutesMatchingFlows(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := messaging.NewMockService()
	engine := NewEngine(st, sender)
	router := NewRouter(st, engine)

	f := testutil.LinearFlow("flow-1", []string{"oi"}, testutil.MessageNode("msg-1", "bem-vindo"))
	if err := st.AddFlow(f); err != nil {
		t.Fatalf("failed to seed flow: %v", err)
	}

	router.HandleInbound(context.Background(), msgFrom("inst1", "oi, tudo bem?"))

	if len(sender.TextSends) != 1 || sender.TextSends[0].Body != "bem-vindo" {
		t.Fatalf("expected the matched flow to send, got %+v", sender.TextSends)
	}
	if sender.TextSends[0].To != "5511988887777" {
		t.Errorf("expected the sender as recipient, got %q", sender.TextSends[0].To)
	}

	execs, _ := st.GetExecutions("flow-1")
	if len(execs) != 1 || execs[0].Status != models.ExecutionStatusCompleted {
		t.Errorf("expected one completed execution, got %+v", execs)
	}
}

func TestHandleInbound_AgnosticFlowRepliesOnInboundInstance(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := messaging.NewMockService()
	router := NewRouter(st, NewEngine(st, sender))

	f := testutil.LinearFlow("flow-any", []string{"oi"}, testutil.MessageNode("msg-1", "resposta"))
	if err := st.AddFlow(f); err != nil {
		t.Fatalf("failed to seed flow: %v", err)
	}

	router.HandleInbound(context.Background(), msgFrom("inst2", "oi"))

	if len(sender.TextSends) != 1 {
		t.Fatalf("expected one send, got %d", len(sender.TextSends))
	}
	if sender.TextSends[0].InstanceID != "inst2" {
		t.Errorf("expected the reply on the arrival instance, got %q", sender.TextSends[0].InstanceID)
	}
}

func TestHandleInbound_SkipsOwnMessages(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := messaging.NewMockService()
	router := NewRouter(st, NewEngine(st, sender))

	f := testutil.LinearFlow("flow-1", nil, testutil.MessageNode("msg-1", "resposta"))
	if err := st.AddFlow(f); err != nil {
		t.Fatalf("failed to seed flow: %v", err)
	}

	msg := msgFrom("inst1", "oi")
	msg.FromMe = true
	router.HandleInbound(context.Background(), msg)

	if len(sender.TextSends) != 0 {
		t.Errorf("expected no sends for own messages, got %d", len(sender.TextSends))
	}
}

func TestHandleInbound_OneFailureDoesNotBlockOthers(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := messaging.NewMockService()
	router := NewRouter(st, NewEngine(st, sender))

	// A message node without text fails during dispatch.
	broken := testutil.LinearFlow("flow-broken", nil, models.FlowNode{
		ID:   "msg-1",
		Type: models.NodeTypeMessage,
		Data: map[string]interface{}{},
	})
	healthy := testutil.LinearFlow("flow-ok", nil, testutil.MessageNode("msg-2", "funciona"))
	if err := st.AddFlow(broken); err != nil {
		t.Fatal(err)
	}
	if err := st.AddFlow(healthy); err != nil {
		t.Fatal(err)
	}

	router.HandleInbound(context.Background(), msgFrom("inst1", "oi"))

	if len(sender.TextSends) != 1 || sender.TextSends[0].Body != "funciona" {
		t.Errorf("expected the healthy flow to run despite the broken one, got %+v", sender.TextSends)
	}
}
