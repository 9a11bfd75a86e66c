package messaging

import (
	"context"
	"log/slog"

	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/whatsapp"
)

// WhatsAppService adapts the whatsmeow instance manager to the Service
// contract.
type WhatsAppService struct {
	manager *whatsapp.Manager
}

// NewWhatsAppService wraps an initialized WhatsApp manager.
func NewWhatsAppService(manager *whatsapp.Manager) *WhatsAppService {
	return &WhatsAppService{manager: manager}
}

// Manager exposes the underlying instance manager for instance lifecycle
// operations (create, connect, QR).
func (s *WhatsAppService) Manager() *whatsapp.Manager {
	return s.manager
}

// ValidateAndCanonicalizeRecipient normalizes a recipient phone number or JID.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizeRecipient(recipient)
}

// SendText delivers a text message through the named instance.
func (s *WhatsAppService) SendText(ctx context.Context, instanceID, to, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.manager.SendText(ctx, instanceID, canonical, body)
}

// SendMedia delivers a media attachment through the named instance.
func (s *WhatsAppService) SendMedia(ctx context.Context, instanceID, to, url, caption, fileName, mimeType, mediaType string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.manager.SendMedia(ctx, instanceID, canonical, url, caption, fileName, mimeType, mediaType)
}

// SendAudio delivers an audio message through the named instance.
func (s *WhatsAppService) SendAudio(ctx context.Context, instanceID, to, url string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.manager.SendAudio(ctx, instanceID, canonical, url)
}

// Start is a no-op; per-instance clients connect on demand via the manager.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService started")
	return nil
}

// Stop disconnects every instance.
func (s *WhatsAppService) Stop() error {
	s.manager.Stop()
	return nil
}

// Messages streams normalized inbound messages from every instance.
func (s *WhatsAppService) Messages() <-chan models.InboundMessage {
	return s.manager.Messages()
}

// StatusUpdates streams instance QR and connection updates.
func (s *WhatsAppService) StatusUpdates() <-chan models.InstanceStatusUpdate {
	return s.manager.StatusUpdates()
}
