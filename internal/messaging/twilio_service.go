package messaging

import (
	"context"
	"log/slog"

	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/twiliowhatsapp"
)

// TwilioService adapts the Twilio WhatsApp client to the Service contract.
// Twilio has no instance concept, so instanceID is accepted and ignored, and
// no inbound events are produced (Twilio delivers inbound via webhooks).
type TwilioService struct {
	client   twiliowhatsapp.Sender
	messages chan models.InboundMessage
	statuses chan models.InstanceStatusUpdate
}

// NewTwilioService wraps a Twilio client.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:   client,
		messages: make(chan models.InboundMessage),
		statuses: make(chan models.InstanceStatusUpdate),
	}
}

// ValidateAndCanonicalizeRecipient normalizes a recipient into the +E.164-ish
// form Twilio expects.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := CanonicalizeRecipient(recipient)
	if err != nil {
		return "", err
	}
	return "+" + canonical, nil
}

// SendText delivers a text message via Twilio.
func (s *TwilioService) SendText(ctx context.Context, instanceID, to, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMessage(ctx, canonical, body)
}

// SendMedia delivers a media attachment via Twilio. fileName, mimeType, and
// mediaType are ignored; Twilio infers them from the URL.
func (s *TwilioService) SendMedia(ctx context.Context, instanceID, to, url, caption, fileName, mimeType, mediaType string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMedia(ctx, canonical, url, caption)
}

// SendAudio delivers audio as a media message via Twilio.
func (s *TwilioService) SendAudio(ctx context.Context, instanceID, to, url string) error {
	return s.SendMedia(ctx, instanceID, to, url, "", "", "", "")
}

// Start is a no-op for Twilio.
func (s *TwilioService) Start(ctx context.Context) error {
	slog.Debug("TwilioService started")
	return nil
}

// Stop closes the (always empty) event channels.
func (s *TwilioService) Stop() error {
	close(s.messages)
	close(s.statuses)
	return nil
}

// Messages returns an empty stream; Twilio inbound arrives via webhooks.
func (s *TwilioService) Messages() <-chan models.InboundMessage {
	return s.messages
}

// StatusUpdates returns an empty stream.
func (s *TwilioService) StatusUpdates() <-chan models.InstanceStatusUpdate {
	return s.statuses
}

// compile-time interface checks
var (
	_ Service = (*TwilioService)(nil)
	_ Service = (*WhatsAppService)(nil)
)
