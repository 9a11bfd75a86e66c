package whatsapp

import (
	"testing"

	"go.mau.fi/whatsmeow"
)

func TestUploadKind(t *testing.T) {
	cases := []struct {
		mediaType string
		mimeType  string
		want      whatsmeow.MediaType
	}{
		// Authored media type wins over the mimetype.
		{"image", "application/octet-stream", whatsmeow.MediaImage},
		{"video", "image/png", whatsmeow.MediaVideo},
		{"document", "image/png", whatsmeow.MediaDocument},
		{"IMAGE", "", whatsmeow.MediaImage},
		// Without one, the mimetype prefix decides.
		{"", "image/jpeg", whatsmeow.MediaImage},
		{"", "video/mp4", whatsmeow.MediaVideo},
		{"", "application/pdf", whatsmeow.MediaDocument},
		{"", "", whatsmeow.MediaDocument},
		// Unrecognized authored types fall through to detection.
		{"sticker", "image/webp", whatsmeow.MediaImage},
	}
	for _, tc := range cases {
		if got := uploadKind(tc.mediaType, tc.mimeType); got != tc.want {
			t.Errorf("uploadKind(%q, %q) = %v, want %v", tc.mediaType, tc.mimeType, got, tc.want)
		}
	}
}

func TestRecipientJID(t *testing.T) {
	jid, err := recipientJID("5511999999999")
	if err != nil {
		t.Fatalf("recipientJID failed: %v", err)
	}
	if jid.User != "5511999999999" || jid.Server != JIDSuffix {
		t.Errorf("unexpected JID %v", jid)
	}

	jid, err = recipientJID("5511999999999@s.whatsapp.net")
	if err != nil {
		t.Fatalf("recipientJID failed for full JID: %v", err)
	}
	if jid.User != "5511999999999" {
		t.Errorf("unexpected JID user %q", jid.User)
	}

	if _, err := recipientJID(""); err == nil {
		t.Error("expected error for empty recipient")
	}
}
