package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/store"
	"github.com/jrdesigniub9/novoitm2/internal/testutil"
)

// postWebhook sends a raw JSON body to /webhook.
func postWebhook(t *testing.T, srv *Server, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return req
}

// waitForExecutions polls the store until the flow has at least want
// executions. Message events are processed in the background.
func waitForExecutions(t *testing.T, st store.Store, flowID string, want int) []models.FlowExecution {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		execs, err := st.GetExecutions(flowID)
		if err == nil && len(execs) >= want {
			return execs
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d executions of %s, have %d", want, flowID, len(execs))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// disableAutoResponse keeps the AI pipeline quiet so only flow activity shows
// up in the store.
func disableAutoResponse(t *testing.T, st store.Store) {
	t.Helper()
	settings := models.DefaultAISettings()
	settings.EnableAutoResponse = false
	if err := st.SaveAISettings(settings); err != nil {
		t.Fatal(err)
	}
}

func TestWebhookEndpoint_MessagesUpsertFlatShape(t *testing.T) {
	srv, st, _ := newTestServer(t)
	disableAutoResponse(t, st)

	if err := st.AddFlow(testutil.LinearFlow("flow-1", []string{"oi"}, testutil.MessageNode("msg-1", "olá!"))); err != nil {
		t.Fatal(err)
	}

	body := `{
		"event": "messages.upsert",
		"instance": "inst-1",
		"data": {
			"key": {"remoteJid": "5511999999999@s.whatsapp.net", "fromMe": false},
			"message": {"conversation": "oi, tudo bem"},
			"messageTimestamp": 1700000000
		}
	}`
	rr := serve(srv, postWebhook(t, srv, body))
	testutil.AssertHTTPStatus(t, http.StatusAccepted, rr.Code, "message event")
	testutil.AssertJSONResponse(t, rr, "accepted")

	execs := waitForExecutions(t, st, "flow-1", 1)
	if execs[0].Status != models.ExecutionStatusCompleted {
		t.Errorf("expected completed execution, got %q", execs[0].Status)
	}
}

func TestWebhookEndpoint_MessagesUpsertUppercaseBatched(t *testing.T) {
	srv, st, _ := newTestServer(t)
	disableAutoResponse(t, st)

	// Keywordless flow matches every message.
	if err := st.AddFlow(testutil.LinearFlow("flow-1", nil, testutil.MessageNode("msg-1", "olá!"))); err != nil {
		t.Fatal(err)
	}

	body := `{
		"event": "MESSAGES_UPSERT",
		"instance": "inst-1",
		"data": {
			"messages": [
				{"key": {"remoteJid": "5511111111111@s.whatsapp.net"}, "message": {"conversation": "primeira"}},
				{"key": {"remoteJid": "5522222222222@s.whatsapp.net"}, "message": {"extendedTextMessage": {"text": "segunda"}}}
			]
		}
	}`
	rr := serve(srv, postWebhook(t, srv, body))
	testutil.AssertHTTPStatus(t, http.StatusAccepted, rr.Code, "batched uppercase event")

	waitForExecutions(t, st, "flow-1", 2)
}

func TestWebhookEndpoint_LegacyTypeKey(t *testing.T) {
	srv, st, _ := newTestServer(t)
	disableAutoResponse(t, st)

	if err := st.AddFlow(testutil.LinearFlow("flow-1", []string{"oi"}, testutil.MessageNode("msg-1", "olá!"))); err != nil {
		t.Fatal(err)
	}

	// Older deliveries carry the event name under "type" instead of "event".
	body := `{
		"type": "messages.upsert",
		"instance": "inst-1",
		"data": {
			"key": {"remoteJid": "5511999999999@s.whatsapp.net", "fromMe": false},
			"message": {"conversation": "oi"}
		}
	}`
	rr := serve(srv, postWebhook(t, srv, body))
	testutil.AssertHTTPStatus(t, http.StatusAccepted, rr.Code, "legacy envelope key")

	waitForExecutions(t, st, "flow-1", 1)
}

func TestWebhookEndpoint_FromMeIgnored(t *testing.T) {
	srv, st, _ := newTestServer(t)
	disableAutoResponse(t, st)

	if err := st.AddFlow(testutil.LinearFlow("flow-1", nil, testutil.MessageNode("msg-1", "olá!"))); err != nil {
		t.Fatal(err)
	}

	body := `{
		"event": "messages.upsert",
		"instance": "inst-1",
		"data": {
			"key": {"remoteJid": "5511999999999@s.whatsapp.net", "fromMe": true},
			"message": {"conversation": "eco da própria mensagem"}
		}
	}`
	rr := serve(srv, postWebhook(t, srv, body))
	testutil.AssertHTTPStatus(t, http.StatusAccepted, rr.Code, "own message event")

	time.Sleep(150 * time.Millisecond)
	execs, _ := st.GetExecutions("flow-1")
	if len(execs) != 0 {
		t.Errorf("own messages must not trigger flows, got %d executions", len(execs))
	}
}

func TestWebhookEndpoint_QRCodeUpdated(t *testing.T) {
	srv, st, _ := newTestServer(t)

	if err := st.AddInstance(models.Instance{ID: "inst-1", InstanceName: "primary", Status: models.InstanceStatusCreated, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	body := `{
		"event": "QRCODE_UPDATED",
		"instance": "primary",
		"data": {"qrcode": {"base64": "data:image/png;base64,abc"}}
	}`
	rr := serve(srv, postWebhook(t, srv, body))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "qr event")

	instance, _ := st.GetInstanceByName("primary")
	if instance == nil || instance.QRCode != "data:image/png;base64,abc" {
		t.Errorf("expected stored qr code, got %+v", instance)
	}
	if instance != nil && instance.Status != models.InstanceStatusConnecting {
		t.Errorf("expected connecting status, got %q", instance.Status)
	}
}

func TestWebhookEndpoint_ConnectionUpdate(t *testing.T) {
	srv, st, _ := newTestServer(t)

	if err := st.AddInstance(models.Instance{ID: "inst-1", InstanceName: "primary", QRCode: "stale", Status: models.InstanceStatusConnecting, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	rr := serve(srv, postWebhook(t, srv, `{"event": "connection.update", "instance": "primary", "data": {"state": "open"}}`))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "connection open")

	instance, _ := st.GetInstanceByName("primary")
	if instance == nil || instance.Status != models.InstanceStatusConnected {
		t.Errorf("expected connected status, got %+v", instance)
	}
	if instance != nil && instance.QRCode != "" {
		t.Error("expected qr code cleared once connected")
	}

	rr = serve(srv, postWebhook(t, srv, `{"event": "CONNECTION_UPDATE", "instance": "primary", "data": {"state": "close"}}`))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "connection close")

	instance, _ = st.GetInstanceByName("primary")
	if instance == nil || instance.Status != models.InstanceStatusDisconnected {
		t.Errorf("expected disconnected status, got %+v", instance)
	}
}

func TestWebhookEndpoint_UnknownEventIgnored(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := serve(srv, postWebhook(t, srv, `{"event": "contacts.update", "instance": "primary", "data": {}}`))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "unknown event")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	if resp["message"] != "Event ignored" {
		t.Errorf("unexpected message %v", resp["message"])
	}
}

func TestWebhookEndpoint_RejectsBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := serve(srv, testutil.CreateHTTPRequest(t, http.MethodGet, "/webhook", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "GET webhook")

	rr = serve(srv, postWebhook(t, srv, `{not json`))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "malformed body")
}

func TestCanonicalEvent(t *testing.T) {
	cases := map[string]string{
		"messages.upsert":   "messages.upsert",
		"MESSAGES_UPSERT":   "messages.upsert",
		"QRCODE_UPDATED":    "qrcode.updated",
		"qrcode.updated":    "qrcode.updated",
		"CONNECTION_UPDATE": "connection.update",
		"Connection.Update": "connection.update",
	}
	for input, want := range cases {
		if got := canonicalEvent(input); got != want {
			t.Errorf("canonicalEvent(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestWebhookPayload_EventNamePrefersEventKey(t *testing.T) {
	p := webhookPayload{Event: "messages.upsert", Type: "connection.update"}
	if got := p.eventName(); got != "messages.upsert" {
		t.Errorf("expected the event key to win, got %q", got)
	}
	p = webhookPayload{Type: "connection.update"}
	if got := p.eventName(); got != "connection.update" {
		t.Errorf("expected fallback to the type key, got %q", got)
	}
}

func TestNormalizeMessages(t *testing.T) {
	payload := webhookPayload{
		Event:    "messages.upsert",
		Instance: "inst-1",
		Data: json.RawMessage(`{
			"key": {"remoteJid": "5511999999999@s.whatsapp.net", "fromMe": false},
			"message": {"extendedTextMessage": {"text": "texto estendido"}},
			"messageTimestamp": 1700000000
		}`),
	}

	msgs := normalizeMessages(payload)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].SenderID != "5511999999999" {
		t.Errorf("expected JID stripped to phone number, got %q", msgs[0].SenderID)
	}
	if msgs[0].Text != "texto estendido" {
		t.Errorf("expected extended text fallback, got %q", msgs[0].Text)
	}
	if msgs[0].InstanceID != "inst-1" {
		t.Errorf("expected instance carried over, got %q", msgs[0].InstanceID)
	}
	if msgs[0].Timestamp.Unix() != 1700000000 {
		t.Errorf("expected provider timestamp, got %v", msgs[0].Timestamp)
	}

	// Entries without a sender are dropped.
	payload.Data = json.RawMessage(`{"messages": [{"message": {"conversation": "sem remetente"}}]}`)
	if msgs := normalizeMessages(payload); len(msgs) != 0 {
		t.Errorf("expected senderless entries dropped, got %d", len(msgs))
	}
}

func TestNormalizeStatus_QRCodeFallback(t *testing.T) {
	payload := webhookPayload{
		Event:    "qrcode.updated",
		Instance: "primary",
		Data:     json.RawMessage(`{"qrcode": {"code": "raw-qr-string"}}`),
	}

	update := normalizeStatus(payload, "qrcode.updated")
	if update.QRCode != "raw-qr-string" {
		t.Errorf("expected code field fallback, got %q", update.QRCode)
	}
	if update.Status != models.InstanceStatusConnecting {
		t.Errorf("expected connecting status, got %q", update.Status)
	}
}
