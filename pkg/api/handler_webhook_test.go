package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/webhook"
)

type fakeWebhookGateway struct {
	instance       *models.Instance
	instanceErr    error
	upsertedChat   []models.Chat
	upsertedMsgs   []models.Message
	contactUpserts int
}

func (f *fakeWebhookGateway) GetInstance(ctx context.Context, instanceID string) (*models.Instance, error) {
	if f.instanceErr != nil {
		return nil, f.instanceErr
	}
	return f.instance, nil
}

// ListGroupsMissingSubject is unused by these tests but required to satisfy
// api.Gateway, the interface Server.gw is typed as.
func (f *fakeWebhookGateway) ListGroupsMissingSubject(ctx context.Context, instanceID string) ([]models.Group, error) {
	return nil, nil
}
func (f *fakeWebhookGateway) UpsertContact(ctx context.Context, c models.Contact) (*models.Contact, error) {
	f.contactUpserts++
	return &c, nil
}
func (f *fakeWebhookGateway) ContactExists(ctx context.Context, jid, instanceID string) (bool, error) {
	return true, nil
}
func (f *fakeWebhookGateway) UpsertChat(ctx context.Context, c models.Chat) (*models.Chat, error) {
	f.upsertedChat = append(f.upsertedChat, c)
	return &c, nil
}
func (f *fakeWebhookGateway) CreateGroupPlaceholderIfNeeded(ctx context.Context, groupJID, instanceID string) error {
	return nil
}
func (f *fakeWebhookGateway) UpsertGroup(ctx context.Context, group models.Group) (*models.Group, error) {
	return &group, nil
}
func (f *fakeWebhookGateway) ApplyParticipantAction(ctx context.Context, groupJID, participantJID, instanceID string, action models.ParticipantAction) error {
	return nil
}
func (f *fakeWebhookGateway) UpsertMessage(ctx context.Context, m models.Message) (*models.Message, error) {
	f.upsertedMsgs = append(f.upsertedMsgs, m)
	return &m, nil
}
func (f *fakeWebhookGateway) MarkMessageRevoked(ctx context.Context, messageID, instanceID string) error {
	return nil
}
func (f *fakeWebhookGateway) AppendMessageStatusUpdate(ctx context.Context, u models.MessageStatusUpdate) error {
	return nil
}
func (f *fakeWebhookGateway) UpsertReaction(ctx context.Context, r models.MessageReaction) (*models.MessageReaction, error) {
	return &r, nil
}
func (f *fakeWebhookGateway) UpsertCallLog(ctx context.Context, c models.CallLog) (*models.CallLog, error) {
	return &c, nil
}
func (f *fakeWebhookGateway) UpdateConnectionState(ctx context.Context, instanceID string, state models.ConnectionState) error {
	return nil
}

type recordingFailedEventGateway struct {
	fakeWebhookGateway
	failed []models.FailedEvent
}

func (f *recordingFailedEventGateway) InsertFailedEvent(ctx context.Context, fe models.FailedEvent) (*models.FailedEvent, error) {
	f.failed = append(f.failed, fe)
	return &fe, nil
}

func newWebhookTestServer(t *testing.T, secret string) (*Server, *recordingFailedEventGateway) {
	t.Helper()
	gw := &recordingFailedEventGateway{
		fakeWebhookGateway: fakeWebhookGateway{instance: &models.Instance{InstanceID: "inst-1", OwnerJID: "owner@s.whatsapp.net"}},
	}
	adapter := webhook.New(gw, nil)
	s := &Server{echo: echo.New(), gw: gw, webhook: adapter, webhookSecret: secret}
	s.echo.POST("/webhook/:instance", s.webhookHandler)
	s.echo.POST("/webhook/:instance/:eventType", s.webhookHandler)
	return s, gw
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler_ValidSignatureProcessesEvent(t *testing.T) {
	s, gw := newWebhookTestServer(t, "shhh")
	body := []byte(`{"event":"contacts.upsert","data":{"jid":"5511@s.whatsapp.net","pushName":"Ana"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/inst-1", bytes.NewReader(body))
	req.Header.Set("X-Signature", sign(body, "shhh"))
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gw.contactUpserts)
	assert.Empty(t, gw.failed)
}

func TestWebhookHandler_InvalidSignatureReturns401(t *testing.T) {
	s, _ := newWebhookTestServer(t, "shhh")
	body := []byte(`{"event":"contacts.upsert","data":{}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/inst-1", bytes.NewReader(body))
	req.Header.Set("X-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookHandler_MalformedBodyStillReturns200AndRecordsFailure(t *testing.T) {
	s, gw := newWebhookTestServer(t, "")
	body := []byte(`not json`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/inst-1", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gw.failed, 1)
	assert.Equal(t, "malformed", gw.failed[0].EventType)
}

func TestWebhookHandler_DashSeparatedEventTypeIsNormalized(t *testing.T) {
	s, gw := newWebhookTestServer(t, "")
	body := []byte(`{"event":"contacts-upsert","data":{"jid":"5511@s.whatsapp.net"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/inst-1", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gw.contactUpserts)
}

func TestWebhookHandler_ProcessingFailureRecordsFailedEventButReturns200(t *testing.T) {
	s, gw := newWebhookTestServer(t, "")
	// Instance lookup failure propagates out of ProcessIncomingEvent
	// uncaught (unlike the malformed-ID paths, which self-record and
	// swallow their own error) — this is the path the HTTP layer's own
	// recordFailedEvent exists to cover.
	gw.instanceErr = errors.New("instance lookup failed")
	body := []byte(`{"event":"messages.upsert","data":{"key":{"id":"ABC123","remoteJid":"5511@s.whatsapp.net"}}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/inst-1", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gw.failed, 1)
	assert.Equal(t, "messages.upsert", gw.failed[0].EventType)
}
