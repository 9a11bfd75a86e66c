// Package whatsapp wraps the Whatsmeow client for WhatsApp integration.
//
// It manages one client per named instance on a shared device container and
// normalizes provider events into the internal inbound message form.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/jrdesigniub9/novoitm2/internal/models"
	"github.com/jrdesigniub9/novoitm2/internal/store"
)

// Constants for WhatsApp client configuration
const (
	// DefaultSQLitePath is the default path for the whatsmeow SQLite database
	DefaultSQLitePath = "/var/lib/novoitm2/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users
	JIDSuffix = "s.whatsapp.net"
	// eventBuffer sizes the inbound event channels; events beyond it are dropped.
	eventBuffer = 256
)

// Opts holds configuration options for the WhatsApp manager.
type Opts struct {
	DBDSN       string // whatsmeow database connection string
	QRTerminal  bool   // also render login QR codes to stdout
	NumericCode bool   // print numeric login code instead of QR code
}

// Option defines a configuration option for the WhatsApp manager.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) { o.DBDSN = dsn }
}

// WithQRTerminal renders login QR codes to stdout in addition to emitting them
// as status updates.
func WithQRTerminal() Option {
	return func(o *Opts) { o.QRTerminal = true }
}

// WithNumericCode prints the numeric login code instead of rendering a QR code.
func WithNumericCode() Option {
	return func(o *Opts) { o.NumericCode = true }
}

// Manager owns every per-instance whatsmeow client. All instances share one
// device container; each instance maps to one logged-in device.
type Manager struct {
	container *sqlstore.Container
	cfg       Opts

	mu      sync.RWMutex
	clients map[string]*whatsmeow.Client

	messages chan models.InboundMessage
	statuses chan models.InstanceStatusUpdate
}

// NewManager initializes the shared device container and an empty client set.
func NewManager(opts ...Option) (*Manager, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("WhatsApp NewManager options set", "DBDSN_set", cfg.DBDSN != "", "QRTerminal", cfg.QRTerminal, "NumericCode", cfg.NumericCode)

	dbDSN := cfg.DBDSN
	if dbDSN == "" {
		dbDSN = DefaultSQLitePath
		slog.Debug("No WhatsApp database DSN provided, using default SQLite path", "default_path", dbDSN)
	}

	var dbDriver string
	if store.DetectDSNType(dbDSN) == "postgres" {
		dbDriver = "postgres"
	} else {
		dbDriver = "sqlite3"
		// whatsmeow strongly recommends foreign keys on SQLite.
		if !strings.Contains(dbDSN, "foreign_keys") {
			slog.Warn("SQLite database for WhatsApp does not appear to have foreign keys enabled",
				"dsn_example", "file:"+dbDSN+"?_foreign_keys=on")
		}
	}

	logger := waLog.Stdout("Database", "INFO", true)
	container, err := sqlstore.New(context.Background(), dbDriver, dbDSN, logger)
	if err != nil {
		slog.Error("Failed to initialize WhatsApp DB store", "error", err)
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}

	return &Manager{
		container: container,
		cfg:       cfg,
		clients:   make(map[string]*whatsmeow.Client),
		messages:  make(chan models.InboundMessage, eventBuffer),
		statuses:  make(chan models.InstanceStatusUpdate, eventBuffer),
	}, nil
}

// Messages returns the stream of normalized inbound messages across every
// connected instance.
func (m *Manager) Messages() <-chan models.InboundMessage {
	return m.messages
}

// StatusUpdates returns the stream of QR codes and connection state changes.
func (m *Manager) StatusUpdates() <-chan models.InstanceStatusUpdate {
	return m.statuses
}

// Connect starts the client for an instance. deviceJID selects a previously
// paired device; when empty, or when no matching device exists, a fresh device
// is created and the login QR flow runs. Returns the device JID so the caller
// can persist the pairing.
func (m *Manager) Connect(ctx context.Context, instanceID, deviceJID string) (string, error) {
	if instanceID == "" {
		return "", models.ErrInstanceNotFound
	}

	m.mu.Lock()
	if existing, ok := m.clients[instanceID]; ok {
		m.mu.Unlock()
		if existing.IsConnected() {
			return existing.Store.ID.String(), nil
		}
		if err := existing.Connect(); err != nil {
			return "", fmt.Errorf("failed to reconnect instance %s: %w", instanceID, err)
		}
		return existing.Store.ID.String(), nil
	}
	m.mu.Unlock()

	device, err := m.device(ctx, deviceJID)
	if err != nil {
		return "", err
	}

	clientLog := waLog.Stdout("Client", "INFO", true)
	client := whatsmeow.NewClient(device, clientLog)
	client.AddEventHandler(m.eventHandler(instanceID))

	m.mu.Lock()
	m.clients[instanceID] = client
	m.mu.Unlock()

	m.emitStatus(models.InstanceStatusUpdate{InstanceID: instanceID, Status: models.InstanceStatusConnecting})

	if client.Store.ID == nil {
		slog.Info("WhatsApp login required; starting QR code flow", "instance_id", instanceID)
		qrChan, _ := client.GetQRChannel(ctx)
		if err := client.Connect(); err != nil {
			slog.Error("Failed to connect to WhatsApp during login", "error", err, "instance_id", instanceID)
			return "", fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
		}
		go m.loginLoop(instanceID, qrChan)
		return "", nil
	}

	slog.Debug("WhatsApp instance already paired, connecting to server", "instance_id", instanceID)
	if err := client.Connect(); err != nil {
		slog.Error("Failed to connect to WhatsApp server", "error", err, "instance_id", instanceID)
		return "", fmt.Errorf("failed to connect to WhatsApp server: %w", err)
	}
	return client.Store.ID.String(), nil
}

// device resolves a paired device by JID or creates a new one.
func (m *Manager) device(ctx context.Context, deviceJID string) (*wstore.Device, error) {
	if deviceJID != "" {
		devices, err := m.container.GetAllDevices(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate devices: %w", err)
		}
		for _, d := range devices {
			if d.ID != nil && d.ID.String() == deviceJID {
				return d, nil
			}
		}
		slog.Warn("Paired device not found, creating a new one", "device_jid", deviceJID)
	}
	return m.container.NewDevice(), nil
}

// loginLoop consumes the QR channel, emitting each code as a status update and
// optionally rendering it to the terminal.
func (m *Manager) loginLoop(instanceID string, qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			slog.Debug("WhatsApp login code received", "instance_id", instanceID)
			m.emitStatus(models.InstanceStatusUpdate{InstanceID: instanceID, QRCode: evt.Code, Status: models.InstanceStatusConnecting})
			if m.cfg.NumericCode {
				fmt.Fprintln(os.Stdout, evt.Code)
			} else if m.cfg.QRTerminal {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			}
		case "success":
			slog.Info("WhatsApp login succeeded", "instance_id", instanceID)
			m.emitStatus(models.InstanceStatusUpdate{InstanceID: instanceID, Status: models.InstanceStatusConnected})
		default:
			slog.Debug("WhatsApp login event", "event", evt.Event, "instance_id", instanceID)
		}
	}
}

// Disconnect stops the client for an instance, if any.
func (m *Manager) Disconnect(instanceID string) {
	m.mu.Lock()
	client, ok := m.clients[instanceID]
	if ok {
		delete(m.clients, instanceID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	client.Disconnect()
	m.emitStatus(models.InstanceStatusUpdate{InstanceID: instanceID, Status: models.InstanceStatusDisconnected})
}

// Stop disconnects every instance.
func (m *Manager) Stop() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*whatsmeow.Client)
	m.mu.Unlock()
	for id, client := range clients {
		client.Disconnect()
		slog.Debug("WhatsApp instance disconnected", "instance_id", id)
	}
}

// client returns the connected client for an instance.
func (m *Manager) client(instanceID string) (*whatsmeow.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, ok := m.clients[instanceID]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", instanceID, models.ErrInstanceNotFound)
	}
	return client, nil
}

// recipientJID canonicalizes a recipient into a WhatsApp JID. Bare phone
// numbers get the user suffix; anything containing '@' is parsed as a full JID.
func recipientJID(to string) (types.JID, error) {
	if to == "" {
		return types.JID{}, models.ErrEmptyRecipient
	}
	if strings.Contains(to, "@") {
		jid, err := types.ParseJID(to)
		if err != nil {
			return types.JID{}, fmt.Errorf("invalid recipient %q: %w", to, err)
		}
		return jid, nil
	}
	return types.NewJID(to, JIDSuffix), nil
}

// SendText sends a plain text message through the named instance.
func (m *Manager) SendText(ctx context.Context, instanceID, to, body string) error {
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}
	client, err := m.client(instanceID)
	if err != nil {
		return err
	}
	jid, err := recipientJID(to)
	if err != nil {
		return err
	}

	slog.Debug("Sending WhatsApp message", "instance_id", instanceID, "to", to, "body_length", len(body))
	_, err = client.SendMessage(ctx, jid, &waE2E.Message{Conversation: &body})
	if err != nil {
		slog.Error("Failed to send WhatsApp message", "error", err, "instance_id", instanceID, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	return nil
}

// SendMedia downloads the media at url, uploads it to WhatsApp, and sends it
// as an image, video, or document. An authored mediaType wins; otherwise the
// kind is detected from the mimetype. fileName and mimeType are optional;
// when empty they are inferred from the download.
func (m *Manager) SendMedia(ctx context.Context, instanceID, to, url, caption, fileName, mimeType, mediaType string) error {
	client, err := m.client(instanceID)
	if err != nil {
		return err
	}
	jid, err := recipientJID(to)
	if err != nil {
		return err
	}

	data, detected, err := download(ctx, url)
	if err != nil {
		return err
	}
	if mimeType == "" {
		mimeType = detected
	}

	kind := uploadKind(mediaType, mimeType)

	uploaded, err := client.Upload(ctx, data, kind)
	if err != nil {
		slog.Error("Failed to upload media", "error", err, "instance_id", instanceID, "url", url)
		return fmt.Errorf("failed to upload media: %w", err)
	}

	var msg *waE2E.Message
	switch kind {
	case whatsmeow.MediaImage:
		msg = &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}}
	case whatsmeow.MediaVideo:
		msg = &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}}
	default:
		msg = &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption:       proto.String(caption),
			FileName:      proto.String(fileName),
			Mimetype:      proto.String(mimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}}
	}

	if _, err := client.SendMessage(ctx, jid, msg); err != nil {
		slog.Error("Failed to send WhatsApp media", "error", err, "instance_id", instanceID, "to", to)
		return fmt.Errorf("failed to send media to %s: %w", to, err)
	}
	return nil
}

// uploadKind maps an authored media type, or failing that a mimetype, to the
// WhatsApp upload kind. Anything unrecognized ships as a document.
func uploadKind(mediaType, mimeType string) whatsmeow.MediaType {
	switch strings.ToLower(mediaType) {
	case "image":
		return whatsmeow.MediaImage
	case "video":
		return whatsmeow.MediaVideo
	case "document":
		return whatsmeow.MediaDocument
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return whatsmeow.MediaImage
	case strings.HasPrefix(mimeType, "video/"):
		return whatsmeow.MediaVideo
	default:
		return whatsmeow.MediaDocument
	}
}

// SendAudio downloads the audio at url and sends it as a voice note.
func (m *Manager) SendAudio(ctx context.Context, instanceID, to, url string) error {
	client, err := m.client(instanceID)
	if err != nil {
		return err
	}
	jid, err := recipientJID(to)
	if err != nil {
		return err
	}

	data, detected, err := download(ctx, url)
	if err != nil {
		return err
	}
	mimeType := detected
	if !strings.HasPrefix(mimeType, "audio/") {
		mimeType = "audio/ogg; codecs=opus"
	}

	uploaded, err := client.Upload(ctx, data, whatsmeow.MediaAudio)
	if err != nil {
		slog.Error("Failed to upload audio", "error", err, "instance_id", instanceID, "url", url)
		return fmt.Errorf("failed to upload audio: %w", err)
	}

	msg := &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
		Mimetype:      proto.String(mimeType),
		PTT:           proto.Bool(true),
		URL:           proto.String(uploaded.URL),
		DirectPath:    proto.String(uploaded.DirectPath),
		MediaKey:      uploaded.MediaKey,
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    proto.Uint64(uploaded.FileLength),
	}}

	if _, err := client.SendMessage(ctx, jid, msg); err != nil {
		slog.Error("Failed to send WhatsApp audio", "error", err, "instance_id", instanceID, "to", to)
		return fmt.Errorf("failed to send audio to %s: %w", to, err)
	}
	return nil
}

// download fetches a media URL into memory and sniffs its content type.
func download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid media url %q: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media from %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download media from %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media from %s: %w", url, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// eventHandler normalizes whatsmeow events for one instance.
func (m *Manager) eventHandler(instanceID string) func(interface{}) {
	return func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			text := v.Message.GetConversation()
			if text == "" {
				text = v.Message.GetExtendedTextMessage().GetText()
			}
			msg := models.InboundMessage{
				InstanceID: instanceID,
				SenderID:   v.Info.Sender.User,
				Text:       text,
				Timestamp:  v.Info.Timestamp,
				FromMe:     v.Info.IsFromMe,
			}
			select {
			case m.messages <- msg:
			default:
				slog.Warn("Inbound message buffer full, dropping event", "instance_id", instanceID)
			}
		case *events.Connected:
			m.emitStatus(models.InstanceStatusUpdate{InstanceID: instanceID, Status: models.InstanceStatusConnected})
		case *events.Disconnected, *events.LoggedOut:
			m.emitStatus(models.InstanceStatusUpdate{InstanceID: instanceID, Status: models.InstanceStatusDisconnected})
		}
	}
}

// timeNow is a seam for tests.
var timeNow = time.Now

// emitStatus publishes a status update without blocking.
func (m *Manager) emitStatus(update models.InstanceStatusUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = timeNow()
	}
	select {
	case m.statuses <- update:
	default:
		slog.Warn("Status update buffer full, dropping event", "instance_id", update.InstanceID)
	}
}
