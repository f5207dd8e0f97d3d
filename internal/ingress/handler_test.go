package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"warelay/internal/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChannelLookup struct {
	channel *models.Channel
	err     error
}

func (m *mockChannelLookup) GetChannelByUUID(ctx context.Context, channelUUID string, types ...models.ChannelType) (*models.Channel, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.channel == nil || m.channel.UUID != channelUUID {
		return nil, nil
	}
	for _, t := range types {
		if m.channel.Type == t {
			return m.channel, nil
		}
	}
	return nil, nil
}

type mockMessageWriter struct {
	created   []*models.Msg
	createErr error
	outgoing  []*models.Msg
	delivered []int64
	failed    []int64
	logs      []models.HTTPLog
	logNames  []string
	nextID    int64
}

func (m *mockMessageWriter) CreateIncoming(ctx context.Context, channelID int64, urn, text, externalID string, attachments []string) (*models.Msg, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	msg := &models.Msg{
		ID:          m.nextID,
		ChannelID:   channelID,
		Direction:   models.DirectionIn,
		Status:      models.StatusHandled,
		ExternalID:  externalID,
		ContactURN:  urn,
		Text:        text,
		Attachments: attachments,
	}
	m.created = append(m.created, msg)
	return msg, nil
}

func (m *mockMessageWriter) GetOutgoingByExternalID(ctx context.Context, channelID int64, externalID string) ([]*models.Msg, error) {
	var out []*models.Msg
	for _, msg := range m.outgoing {
		if msg.ChannelID == channelID && msg.ExternalID == externalID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockMessageWriter) MarkDelivered(ctx context.Context, msgID int64) error {
	m.delivered = append(m.delivered, msgID)
	return nil
}

func (m *mockMessageWriter) MarkFailed(ctx context.Context, msgID int64) error {
	m.failed = append(m.failed, msgID)
	return nil
}

func (m *mockMessageWriter) AddHTTPLog(ctx context.Context, msgID int64, description string, log models.HTTPLog) error {
	m.logNames = append(m.logNames, description)
	m.logs = append(m.logs, log)
	return nil
}

const channelUUID = "11111111-2222-3333-4444-555555555555"

func testChannel(channelType models.ChannelType) *models.Channel {
	ch := &models.Channel{
		ID:      1,
		UUID:    channelUUID,
		Type:    channelType,
		Address: "+27820001111",
		Config:  map[string]interface{}{models.ConfigAPIToken: "token"},
	}
	if channelType == models.ChannelTypeGroup {
		ch.Config[models.ConfigGroupUUID] = "our-group"
	}
	return ch
}

func post(t *testing.T, handler *Handler, uuid string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	router := mux.NewRouter()
	router.HandleFunc("/whatsapp/{uuid}/", handler.ServeWebhook).Methods(http.MethodPost)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/whatsapp/%s/", uuid), &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func webhookEnvelope(event string, data map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"hook": map[string]interface{}{"event": event},
		"data": data,
	}
}

func newTestHandler(channel *models.Channel) (*Handler, *mockMessageWriter) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	messages := &mockMessageWriter{}
	return NewHandler(&mockChannelLookup{channel: channel}, messages, logger), messages
}

func TestWebhookInvalidJSON(t *testing.T) {
	handler, _ := newTestHandler(testChannel(models.ChannelTypeDirect))
	rec := post(t, handler, channelUUID, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON in POST body:")
}

func TestWebhookUnknownEvent(t *testing.T) {
	handler, messages := newTestHandler(testChannel(models.ChannelTypeDirect))
	rec := post(t, handler, channelUUID, webhookEnvelope("message.read_receipt", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": ["Ignored, unknown msg"]}`, rec.Body.String())
	assert.Empty(t, messages.created)
}

func TestDirectInbound(t *testing.T) {
	handler, messages := newTestHandler(testChannel(models.ChannelTypeDirect))
	rec := post(t, handler, channelUUID, webhookEnvelope("message.direct_inbound", map[string]interface{}{
		"uuid":      "gw-msg-uuid",
		"from_addr": "+27820009999",
		"content":   "hello",
	}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message_id": 1}`, rec.Body.String())

	require.Len(t, messages.created, 1)
	msg := messages.created[0]
	assert.Equal(t, "tel:+27820009999", msg.ContactURN)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "gw-msg-uuid", msg.ExternalID)

	require.Equal(t, []string{"Handled inbound message."}, messages.logNames)
	log := messages.logs[0]
	assert.Equal(t, http.MethodPost, log.Method)
	assert.Equal(t, fmt.Sprintf("/whatsapp/%s/", channelUUID), log.URL)
	assert.Equal(t, http.StatusCreated, log.StatusCode)
	assert.Contains(t, log.RequestBody, "gw-msg-uuid")
	assert.JSONEq(t, `{"message_id": 1}`, log.ResponseBody)
}

func TestDirectInboundChannelNotFound(t *testing.T) {
	handler, _ := newTestHandler(nil)
	rec := post(t, handler, channelUUID, webhookEnvelope("message.direct_inbound", map[string]interface{}{
		"uuid":      "gw-msg-uuid",
		"from_addr": "+27820009999",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), fmt.Sprintf("Channel not found for id: %s", channelUUID))
}

func TestDirectInboundRejectsGroupChannel(t *testing.T) {
	// a direct event must not resolve against a group channel
	handler, _ := newTestHandler(testChannel(models.ChannelTypeGroup))
	rec := post(t, handler, channelUUID, webhookEnvelope("message.direct_inbound", map[string]interface{}{
		"uuid":      "gw-msg-uuid",
		"from_addr": "+27820009999",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInboundContentPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]interface{}
		expected string
	}{
		{
			"content wins",
			map[string]interface{}{
				"content":                  "body",
				"image_attachment_caption": "image caption",
			},
			"body",
		},
		{
			"image caption",
			map[string]interface{}{
				"image_attachment_caption":    "image caption",
				"document_attachment_caption": "doc caption",
			},
			"image caption",
		},
		{
			"document caption",
			map[string]interface{}{"document_attachment_caption": "doc caption"},
			"doc caption",
		},
		{
			"all empty",
			map[string]interface{}{},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, messages := newTestHandler(testChannel(models.ChannelTypeDirect))
			tt.data["uuid"] = "gw-msg-uuid"
			tt.data["from_addr"] = "+27820009999"
			rec := post(t, handler, channelUUID, webhookEnvelope("message.direct_inbound", tt.data))

			assert.Equal(t, http.StatusCreated, rec.Code)
			require.Len(t, messages.created, 1)
			assert.Equal(t, tt.expected, messages.created[0].Text)
		})
	}
}

func TestInboundAttachments(t *testing.T) {
	handler, messages := newTestHandler(testChannel(models.ChannelTypeDirect))
	rec := post(t, handler, channelUUID, webhookEnvelope("message.direct_inbound", map[string]interface{}{
		"uuid":                "gw-msg-uuid",
		"from_addr":           "+27820009999",
		"image_attachment":    "https://media.example.com/a.jpg",
		"audio_attachment":    "https://media.example.com/a.ogg",
		"video_attachment":    "https://media.example.com/a.mp4",
		"document_attachment": "https://media.example.com/a.pdf",
		"location": map[string]interface{}{
			"coordinates": []float64{28.0473, -26.2041},
		},
	}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, messages.created, 1)
	assert.Equal(t, []string{
		"image:https://media.example.com/a.jpg",
		"audio:https://media.example.com/a.ogg",
		"video:https://media.example.com/a.mp4",
		"gps:-26.2041,28.0473",
	}, messages.created[0].Attachments)
}

func TestGroupInbound(t *testing.T) {
	handler, messages := newTestHandler(testChannel(models.ChannelTypeGroup))
	rec := post(t, handler, channelUUID, webhookEnvelope("message.group_inbound", map[string]interface{}{
		"uuid":      "gw-msg-uuid",
		"from_addr": "+27820009999",
		"content":   "hello group",
		"group":     map[string]interface{}{"uuid": "our-group"},
	}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, messages.created, 1)
	assert.Equal(t, "hello group", messages.created[0].Text)
}

func TestGroupInboundDifferentGroupDropped(t *testing.T) {
	handler, messages := newTestHandler(testChannel(models.ChannelTypeGroup))
	rec := post(t, handler, channelUUID, webhookEnvelope("message.group_inbound", map[string]interface{}{
		"uuid":      "gw-msg-uuid",
		"from_addr": "+27820009999",
		"content":   "hello group",
		"group":     map[string]interface{}{"uuid": "someone-elses-group"},
	}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
	assert.Empty(t, messages.created)
}

func TestOutboundStatusDelivered(t *testing.T) {
	handler, messages := newTestHandler(testChannel(models.ChannelTypeDirect))
	messages.outgoing = []*models.Msg{
		{ID: 10, ChannelID: 1, ExternalID: "gw-msg-uuid", Direction: models.DirectionOut},
	}

	rec := post(t, handler, channelUUID, webhookEnvelope("message.direct_outbound.status", map[string]interface{}{
		"message_uuid": "gw-msg-uuid",
		"status":       "delivered",
	}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message_ids": [10]}`, rec.Body.String())
	assert.Equal(t, []int64{10}, messages.delivered)
	assert.Empty(t, messages.failed)
}

func TestOutboundStatusFailed(t *testing.T) {
	handler, messages := newTestHandler(testChannel(models.ChannelTypeGroup))
	messages.outgoing = []*models.Msg{
		{ID: 11, ChannelID: 1, ExternalID: "gw-msg-uuid", Direction: models.DirectionOut},
	}

	rec := post(t, handler, channelUUID, webhookEnvelope("message.group_outbound.status", map[string]interface{}{
		"message_uuid": "gw-msg-uuid",
		"status":       "failed",
	}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []int64{11}, messages.failed)
}

func TestOutboundStatusNoMatch(t *testing.T) {
	handler, messages := newTestHandler(testChannel(models.ChannelTypeDirect))

	rec := post(t, handler, channelUUID, webhookEnvelope("message.direct_outbound.status", map[string]interface{}{
		"message_uuid": "someone-elses-message",
		"status":       "delivered",
	}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
	assert.Empty(t, messages.delivered)
}

func TestOutboundStatusUnknownValue(t *testing.T) {
	handler, messages := newTestHandler(testChannel(models.ChannelTypeDirect))
	messages.outgoing = []*models.Msg{
		{ID: 12, ChannelID: 1, ExternalID: "gw-msg-uuid", Direction: models.DirectionOut},
	}

	rec := post(t, handler, channelUUID, webhookEnvelope("message.direct_outbound.status", map[string]interface{}{
		"message_uuid": "gw-msg-uuid",
		"status":       "sent",
	}))

	// acknowledged but no transition happens
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message_ids": [12]}`, rec.Body.String())
	assert.Empty(t, messages.delivered)
	assert.Empty(t, messages.failed)
}

func TestOutboundStatusChannelNotFound(t *testing.T) {
	handler, _ := newTestHandler(nil)
	rec := post(t, handler, channelUUID, webhookEnvelope("message.direct_outbound.status", map[string]interface{}{
		"message_uuid": "gw-msg-uuid",
		"status":       "delivered",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Channel not found for id:")
}
