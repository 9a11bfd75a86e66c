package messaging

import (
	"context"
	"testing"

	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/twiliowhatsapp"
)

func TestCanonicalizeRecipient(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+55 (11) 99999-9999", "5511999999999", false},
		{"5511999999999", "5511999999999", false},
		{"  +1 416.555.0123 ", "14165550123", false},
		{"5511999999999@s.whatsapp.net", "5511999999999@s.whatsapp.net", false},
		{"", "", true},
		{"   ", "", true},
		{"12345", "", true},          // too short
		{"1234567890123456", "", true}, // too long
		{"55-11-abc", "", true},      // invalid character
	}
	for _, tc := range cases {
		got, err := CanonicalizeRecipient(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("CanonicalizeRecipient(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CanonicalizeRecipient(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CanonicalizeRecipient(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalizeRecipient_EmptyError(t *testing.T) {
	if _, err := CanonicalizeRecipient(""); err != models.ErrEmptyRecipient {
		t.Errorf("expected ErrEmptyRecipient, got %v", err)
	}
}

func TestTwilioService_PrefixesPlus(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	canonical, err := svc.ValidateAndCanonicalizeRecipient("55 11 99999-9999")
	if err != nil {
		t.Fatalf("canonicalization failed: %v", err)
	}
	if canonical != "+5511999999999" {
		t.Errorf("expected +E.164 form, got %q", canonical)
	}
}

func TestTwilioService_SendsThroughClient(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendText(context.Background(), "", "5511999999999", "olá"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "+5511999999999" {
		t.Errorf("unexpected sends: %+v", mock.SentMessages)
	}

	if err := svc.SendAudio(context.Background(), "", "5511999999999", "https://example.com/a.ogg"); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}
	if len(mock.SentMedia) != 1 || mock.SentMedia[0].URL != "https://example.com/a.ogg" {
		t.Errorf("expected audio delivered as media, got %+v", mock.SentMedia)
	}
}
