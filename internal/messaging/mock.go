package messaging

import (
	"context"
	"sync"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// MockService records outbound sends and lets tests inject failures and feed
// inbound events. Sends may arrive from concurrent dispatch goroutines, so
// the recorded slices are mutex-guarded.
type MockService struct {
	mu         sync.Mutex
	TextSends  []MockSend
	MediaSends []MockSend
	AudioSends []MockSend

	TextErr  error
	MediaErr error
	AudioErr error

	InboundCh chan models.InboundMessage
	StatusCh  chan models.InstanceStatusUpdate
}

// MockSend is one recorded outbound send.
type MockSend struct {
	InstanceID string
	To         string
	Body       string
	URL        string
	Caption    string
	FileName   string
	MimeType   string
	MediaType  string
}

// NewMockService creates a mock with buffered inbound channels.
func NewMockService() *MockService {
	return &MockService{
		InboundCh: make(chan models.InboundMessage, 16),
		StatusCh:  make(chan models.InstanceStatusUpdate, 16),
	}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizeRecipient(recipient)
}

func (m *MockService) SendText(ctx context.Context, instanceID, to, body string) error {
	if m.TextErr != nil {
		return m.TextErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TextSends = append(m.TextSends, MockSend{InstanceID: instanceID, To: to, Body: body})
	return nil
}

func (m *MockService) SendMedia(ctx context.Context, instanceID, to, url, caption, fileName, mimeType, mediaType string) error {
	if m.MediaErr != nil {
		return m.MediaErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MediaSends = append(m.MediaSends, MockSend{
		InstanceID: instanceID, To: to, URL: url, Caption: caption, FileName: fileName, MimeType: mimeType, MediaType: mediaType,
	})
	return nil
}

func (m *MockService) SendAudio(ctx context.Context, instanceID, to, url string) error {
	if m.AudioErr != nil {
		return m.AudioErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AudioSends = append(m.AudioSends, MockSend{InstanceID: instanceID, To: to, URL: url})
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error { return nil }

func (m *MockService) Messages() <-chan models.InboundMessage { return m.InboundCh }

func (m *MockService) StatusUpdates() <-chan models.InstanceStatusUpdate { return m.StatusCh }

var _ Service = (*MockService)(nil)
