package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// webhookPayload is the provider event envelope. Providers emit two spellings
// of each event name ("messages.upsert" and "MESSAGES_UPSERT"), two envelope
// keys for it ("event" and the older "type"), and two data shapes for message
// events, so everything past the envelope is parsed loosely.
type webhookPayload struct {
	Event    string          `json:"event"`
	Type     string          `json:"type"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

// eventName returns the event spelling from the envelope, preferring "event"
// over the legacy "type" key.
func (p webhookPayload) eventName() string {
	if p.Event != "" {
		return p.Event
	}
	return p.Type
}

// webhookMessage is one message entry in either data shape.
type webhookMessage struct {
	Key struct {
		RemoteJid string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	Message struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
	} `json:"message"`
	MessageTimestamp float64 `json:"messageTimestamp"`
}

// webhookMessageData covers both data shapes: the flat single-message form and
// the batched messages list.
type webhookMessageData struct {
	webhookMessage
	Messages []webhookMessage `json:"messages"`
}

// webhookStatusData covers QR and connection update events.
type webhookStatusData struct {
	State  string `json:"state"`
	QRCode struct {
		Base64 string `json:"base64"`
		Code   string `json:"code"`
	} `json:"qrcode"`
}

// canonicalEvent folds the two provider spellings into one:
// "MESSAGES_UPSERT" and "messages.upsert" both become "messages.upsert".
func canonicalEvent(event string) string {
	return strings.ReplaceAll(strings.ToLower(event), "_", ".")
}

// webhookHandler ingests provider events (POST /webhook). Message events are
// acknowledged immediately and processed in the background.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	event := canonicalEvent(payload.eventName())
	slog.Debug("Server.webhookHandler: event received", "event", event, "instance", payload.Instance)

	switch event {
	case "messages.upsert":
		messages := normalizeMessages(payload)
		for _, msg := range messages {
			go func(m models.InboundMessage) {
				ctx, cancel := contextWithTimeout()
				defer cancel()
				s.dispatchInbound(ctx, m)
			}(msg)
		}
		writeJSONResponse(w, http.StatusAccepted, models.Accepted("Event accepted"))
	case "qrcode.updated", "connection.update":
		s.applyStatusUpdate(normalizeStatus(payload, event))
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Event processed", nil))
	default:
		slog.Debug("Server.webhookHandler: ignoring event", "event", event)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Event ignored", nil))
	}
}

// normalizeMessages extracts inbound messages from either data shape.
func normalizeMessages(payload webhookPayload) []models.InboundMessage {
	var data webhookMessageData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		slog.Warn("Server.webhookHandler: failed to parse message data", "error", err)
		return nil
	}

	entries := data.Messages
	if len(entries) == 0 && data.Key.RemoteJid != "" {
		entries = []webhookMessage{data.webhookMessage}
	}

	var out []models.InboundMessage
	for _, entry := range entries {
		text := entry.Message.Conversation
		if text == "" {
			text = entry.Message.ExtendedTextMessage.Text
		}
		sender := entry.Key.RemoteJid
		if at := strings.Index(sender, "@"); at > 0 {
			sender = sender[:at]
		}
		if sender == "" {
			continue
		}
		ts := time.Now()
		if entry.MessageTimestamp > 0 {
			ts = time.Unix(int64(entry.MessageTimestamp), 0)
		}
		out = append(out, models.InboundMessage{
			InstanceID: payload.Instance,
			SenderID:   sender,
			Text:       text,
			Timestamp:  ts,
			FromMe:     entry.Key.FromMe,
		})
	}
	return out
}

// normalizeStatus maps QR and connection events to a status update.
func normalizeStatus(payload webhookPayload, event string) models.InstanceStatusUpdate {
	var data webhookStatusData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		slog.Warn("Server.webhookHandler: failed to parse status data", "error", err)
	}

	update := models.InstanceStatusUpdate{
		InstanceID: payload.Instance,
		Timestamp:  time.Now(),
	}
	if event == "qrcode.updated" {
		update.QRCode = data.QRCode.Base64
		if update.QRCode == "" {
			update.QRCode = data.QRCode.Code
		}
		update.Status = models.InstanceStatusConnecting
		return update
	}

	switch data.State {
	case "open":
		update.Status = models.InstanceStatusConnected
	case "connecting":
		update.Status = models.InstanceStatusConnecting
	default:
		update.Status = models.InstanceStatusDisconnected
	}
	return update
}
