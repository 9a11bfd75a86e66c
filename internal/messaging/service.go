// Package messaging abstracts message delivery behind a transport-neutral
// service so the flow engine and AI responder do not care whether a message
// leaves through whatsmeow or Twilio.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// Recipient length bounds after canonicalization (digits only).
const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// Service is the delivery contract consumed by the flow engine, the AI
// responder, and the API layer. instanceID selects the provider account; an
// empty instanceID lets the implementation pick its default.
type Service interface {
	// ValidateAndCanonicalizeRecipient normalizes a recipient identifier.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)
	// SendText delivers a plain text message.
	SendText(ctx context.Context, instanceID, to, body string) error
	// SendMedia delivers a media attachment from a URL. fileName, mimeType,
	// and mediaType may be empty; an authored mediaType ("image", "video",
	// "document") overrides mimetype-based detection.
	SendMedia(ctx context.Context, instanceID, to, url, caption, fileName, mimeType, mediaType string) error
	// SendAudio delivers an audio message from a URL.
	SendAudio(ctx context.Context, instanceID, to, url string) error
	// Start begins consuming provider events.
	Start(ctx context.Context) error
	// Stop shuts the transport down.
	Stop() error
	// Messages streams normalized inbound messages.
	Messages() <-chan models.InboundMessage
	// StatusUpdates streams instance QR and connection updates.
	StatusUpdates() <-chan models.InstanceStatusUpdate
}

// CanonicalizeRecipient is the shared phone-number normalization used by every
// transport. Full JIDs (containing '@') pass through untouched; everything
// else must reduce to a plausible international number.
func CanonicalizeRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	if strings.Contains(recipient, "@") {
		return recipient, nil
	}

	var digits strings.Builder
	for _, r := range recipient {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator noise, skip
		default:
			return "", fmt.Errorf("recipient %q contains invalid character %q", recipient, r)
		}
	}

	canonical := digits.String()
	if len(canonical) < minPhoneDigits || len(canonical) > maxPhoneDigits {
		return "", fmt.Errorf("recipient %q must have %d to %d digits", recipient, minPhoneDigits, maxPhoneDigits)
	}
	return canonical, nil
}
