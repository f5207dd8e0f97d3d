package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"warelay/internal/models"
	"warelay/internal/privacy"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ChannelLookup resolves webhook URLs to stored channels.
type ChannelLookup interface {
	GetChannelByUUID(ctx context.Context, channelUUID string, types ...models.ChannelType) (*models.Channel, error)
}

// MessageWriter is the slice of the host store the ingress writes to.
type MessageWriter interface {
	CreateIncoming(ctx context.Context, channelID int64, urn, text, externalID string, attachments []string) (*models.Msg, error)
	GetOutgoingByExternalID(ctx context.Context, channelID int64, externalID string) ([]*models.Msg, error)
	MarkDelivered(ctx context.Context, msgID int64) error
	MarkFailed(ctx context.Context, msgID int64) error
	AddHTTPLog(ctx context.Context, msgID int64, description string, log models.HTTPLog) error
}

// Handler receives gateway webhook callbacks on /whatsapp/{uuid}/ and
// turns them into stored messages and status transitions.
type Handler struct {
	channels ChannelLookup
	messages MessageWriter
	logger   *logrus.Logger
}

func NewHandler(channels ChannelLookup, messages MessageWriter, logger *logrus.Logger) *Handler {
	return &Handler{channels: channels, messages: messages, logger: logger}
}

// Webhook envelope posted by the gateway.
type webhookBody struct {
	Hook struct {
		Event string `json:"event"`
	} `json:"hook"`
	Data json.RawMessage `json:"data"`
}

type inboundData struct {
	UUID                      string    `json:"uuid"`
	FromAddr                  string    `json:"from_addr"`
	Content                   string    `json:"content"`
	ImageAttachment           string    `json:"image_attachment"`
	ImageAttachmentCaption    string    `json:"image_attachment_caption"`
	AudioAttachment           string    `json:"audio_attachment"`
	VideoAttachment           string    `json:"video_attachment"`
	DocumentAttachment        string    `json:"document_attachment"`
	DocumentAttachmentCaption string    `json:"document_attachment_caption"`
	Location                  *location `json:"location"`
	Group                     *groupRef `json:"group"`
}

type location struct {
	// GeoJSON order, longitude first
	Coordinates []float64 `json:"coordinates"`
}

type groupRef struct {
	UUID string `json:"uuid"`
}

type statusData struct {
	MessageUUID string `json:"message_uuid"`
	Status      string `json:"status"`
}

// ServeWebhook handles POST /whatsapp/{uuid}/.
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	channelUUID := mux.Vars(r)["uuid"]

	requestBody, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var body webhookBody
	if err := json.Unmarshal(requestBody, &body); err != nil {
		h.logger.WithError(err).Error("Malformed webhook body")
		http.Error(w, fmt.Sprintf("Invalid JSON in POST body: %s", err), http.StatusBadRequest)
		return
	}

	switch body.Hook.Event {
	case "message.direct_inbound":
		h.handleInbound(w, r, channelUUID, body.Data, requestBody, models.ChannelTypeDirect)
	case "message.group_inbound":
		h.handleInbound(w, r, channelUUID, body.Data, requestBody, models.ChannelTypeGroup)
	case "message.direct_outbound.status", "message.group_outbound.status":
		h.handleOutboundStatus(w, r, channelUUID, body.Data)
	default:
		// the gateway may grow event types we don't consume
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": []string{"Ignored, unknown msg"},
		})
	}
}

func (h *Handler) handleInbound(w http.ResponseWriter, r *http.Request, channelUUID string, raw json.RawMessage, requestBody []byte, channelType models.ChannelType) {
	ctx := r.Context()

	channel, err := h.channels.GetChannelByUUID(ctx, channelUUID, channelType)
	if err != nil {
		h.logger.WithError(err).Error("Channel lookup failed")
		http.Error(w, "channel lookup failed", http.StatusInternalServerError)
		return
	}
	if channel == nil {
		h.logger.WithField("channel", channelUUID).Error("Channel not found")
		http.Error(w, fmt.Sprintf("Channel not found for id: %s", channelUUID), http.StatusBadRequest)
		return
	}

	var data inboundData
	if err := json.Unmarshal(raw, &data); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON in POST body: %s", err), http.StatusBadRequest)
		return
	}

	// the group hook fires for every group on the number, not just ours
	if channelType == models.ChannelTypeGroup {
		groupUUID := ""
		if data.Group != nil {
			groupUUID = data.Group.UUID
		}
		if channel.GroupUUID() != groupUUID {
			h.logger.WithFields(logrus.Fields{
				"channel": channelUUID,
				"group":   groupUUID,
			}).Info("Received message for a different group")
			h.writeJSON(w, http.StatusOK, map[string]interface{}{})
			return
		}
	}

	message, err := h.messages.CreateIncoming(
		ctx, channel.ID, models.TelURN(data.FromAddr), content(data), data.UUID, attachments(h.logger, data))
	if err != nil {
		h.logger.WithError(err).Error("Failed to store inbound message")
		http.Error(w, "failed to store message", http.StatusInternalServerError)
		return
	}

	responseBody := map[string]interface{}{"message_id": message.ID}
	encoded, _ := json.Marshal(responseBody)
	log := models.HTTPLog{
		Method:       r.Method,
		URL:          r.URL.RequestURI(),
		RequestBody:  string(requestBody),
		StatusCode:   http.StatusCreated,
		ResponseBody: string(encoded),
	}
	if err := h.messages.AddHTTPLog(ctx, message.ID, "Handled inbound message.", log); err != nil {
		h.logger.WithError(err).WithField("msg_id", message.ID).Warn("Failed to record webhook transcript")
	}

	h.logger.WithFields(logrus.Fields{
		"msg_id":  message.ID,
		"channel": channelUUID,
		"from":    privacy.MaskPhoneNumber(data.FromAddr),
	}).Info("Handled inbound message")

	h.writeJSON(w, http.StatusCreated, responseBody)
}

func (h *Handler) handleOutboundStatus(w http.ResponseWriter, r *http.Request, channelUUID string, raw json.RawMessage) {
	ctx := r.Context()

	channel, err := h.channels.GetChannelByUUID(ctx, channelUUID, models.ChannelTypes...)
	if err != nil {
		h.logger.WithError(err).Error("Channel lookup failed")
		http.Error(w, "channel lookup failed", http.StatusInternalServerError)
		return
	}
	if channel == nil {
		h.logger.WithField("channel", channelUUID).Error("Channel not found")
		http.Error(w, fmt.Sprintf("Channel not found for id: %s", channelUUID), http.StatusBadRequest)
		return
	}

	var data statusData
	if err := json.Unmarshal(raw, &data); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON in POST body: %s", err), http.StatusBadRequest)
		return
	}

	messages, err := h.messages.GetOutgoingByExternalID(ctx, channel.ID, data.MessageUUID)
	if err != nil {
		h.logger.WithError(err).Error("Message lookup failed")
		http.Error(w, "message lookup failed", http.StatusInternalServerError)
		return
	}
	if len(messages) == 0 {
		// status events fire for every outbound on the number, including
		// messages we never sent
		h.writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}

	ids := make([]int64, 0, len(messages))
	for _, message := range messages {
		switch data.Status {
		case "delivered":
			err = h.messages.MarkDelivered(ctx, message.ID)
		case "failed":
			err = h.messages.MarkFailed(ctx, message.ID)
		}
		if err != nil {
			h.logger.WithError(err).WithField("msg_id", message.ID).Error("Failed to update message status")
			http.Error(w, "failed to update message status", http.StatusInternalServerError)
			return
		}
		ids = append(ids, message.ID)
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"message_ids": ids})
}

// content picks the message text. Captions stand in for absent content
// so media-only messages still carry text.
func content(data inboundData) string {
	switch {
	case data.Content != "":
		return data.Content
	case data.ImageAttachmentCaption != "":
		return data.ImageAttachmentCaption
	case data.DocumentAttachmentCaption != "":
		return data.DocumentAttachmentCaption
	default:
		return ""
	}
}

// attachments collects the supported media references in "<type>:<url>"
// form. Documents have no host-side representation and are dropped.
func attachments(logger *logrus.Logger, data inboundData) []string {
	var out []string
	if data.ImageAttachment != "" {
		out = append(out, fmt.Sprintf("%s:%s", models.MediaImage, data.ImageAttachment))
	}
	if data.AudioAttachment != "" {
		out = append(out, fmt.Sprintf("%s:%s", models.MediaAudio, data.AudioAttachment))
	}
	if data.VideoAttachment != "" {
		out = append(out, fmt.Sprintf("%s:%s", models.MediaVideo, data.VideoAttachment))
	}
	if data.DocumentAttachment != "" {
		logger.Warning("Received document attachment but the host cannot carry it")
	}
	if data.Location != nil && len(data.Location.Coordinates) >= 2 {
		out = append(out, models.GPSAttachment(data.Location.Coordinates[1], data.Location.Coordinates[0]))
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("Failed to write response")
	}
}
