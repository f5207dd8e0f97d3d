package service

import (
	"context"
	"strings"

	"warelay/internal/models"
	"warelay/pkg/wassup"

	"github.com/sirupsen/logrus"
)

// MessageStore is the slice of the host store the relay needs.
type MessageStore interface {
	ExternalIDFor(ctx context.Context, msgID int64) (string, error)
	MarkWired(ctx context.Context, msgID int64, externalID string) error
	MarkFailed(ctx context.Context, msgID int64) error
	AddHTTPLog(ctx context.Context, msgID int64, description string, log models.HTTPLog) error
}

// Relay pushes outbound messages to the gateway.
type Relay struct {
	messages MessageStore
	factory  GatewayFactory
	logger   *logrus.Logger
}

func NewRelay(messages MessageStore, factory GatewayFactory, logger *logrus.Logger) *Relay {
	return &Relay{messages: messages, factory: factory, logger: logger}
}

// Send delivers one outbound message on its channel. The message is
// marked wired with the gateway's id on success and failed on any
// error. Only the first attachment is forwarded; a second one has
// nowhere to go in the gateway's single-attachment payload.
func (r *Relay) Send(ctx context.Context, ch *models.Channel, msg *models.Msg) error {
	gateway, cred, err := r.factory.ForChannel(ch)
	if err != nil {
		return r.fail(ctx, msg, err)
	}

	payload := wassup.OutboundPayload{
		ToAddr:  strings.TrimPrefix(msg.ContactURN, "tel:"),
		Number:  ch.Address,
		Group:   ch.GroupUUID(),
		Content: msg.Text,
	}
	if msg.ResponseToID != 0 {
		inReplyTo, err := r.messages.ExternalIDFor(ctx, msg.ResponseToID)
		if err != nil {
			return r.fail(ctx, msg, err)
		}
		payload.InReplyTo = inReplyTo
	}

	attachment, ok := r.pickAttachment(msg)

	var externalID string
	var transcript *wassup.Transcript
	if ok {
		externalID, transcript, err = gateway.SendMessageWithAttachment(ctx, cred, payload, attachment)
	} else {
		externalID, transcript, err = gateway.SendMessage(ctx, cred, payload)
	}
	if transcript != nil {
		if logErr := r.messages.AddHTTPLog(ctx, msg.ID, "Message sent.", transcript.HTTPLog()); logErr != nil {
			r.logger.WithError(logErr).WithField("msg_id", msg.ID).Warn("Failed to record send transcript")
		}
	}
	if err != nil {
		return r.fail(ctx, msg, err)
	}

	if err := r.messages.MarkWired(ctx, msg.ID, externalID); err != nil {
		return err
	}
	r.logger.WithFields(logrus.Fields{
		"msg_id":      msg.ID,
		"external_id": externalID,
		"channel":     ch.UUID,
	}).Info("Message relayed")
	return nil
}

// pickAttachment returns the first attachment the gateway can carry.
// Unsupported media types are dropped with a warning and the message
// goes out as plain text.
func (r *Relay) pickAttachment(msg *models.Msg) (models.Attachment, bool) {
	attachments := models.ParseAttachments(msg.Attachments)
	if len(attachments) == 0 {
		return models.Attachment{}, false
	}
	first := attachments[0]
	if _, ok := wassup.AttachmentField(first.ContentType); !ok {
		r.logger.WithFields(logrus.Fields{
			"msg_id":       msg.ID,
			"content_type": first.ContentType,
		}).Warn("Dropping attachment with unsupported media type")
		return models.Attachment{}, false
	}
	if len(attachments) > 1 {
		r.logger.WithField("msg_id", msg.ID).Warn("Message has multiple attachments, sending only the first")
	}
	return first, true
}

func (r *Relay) fail(ctx context.Context, msg *models.Msg, cause error) error {
	if err := r.messages.MarkFailed(ctx, msg.ID); err != nil {
		r.logger.WithError(err).WithField("msg_id", msg.ID).Error("Failed to mark message failed")
	}
	return cause
}
