package service

import (
	"context"
	"fmt"

	"warelay/internal/models"
	"warelay/pkg/wassup"

	"github.com/sirupsen/logrus"
)

// Registrar manages a channel's gateway-side webhook subscriptions: one
// per subscribed event type, created on activation and removed on
// deactivation.
type Registrar struct {
	channels ChannelStore
	factory  GatewayFactory
	hostname string
	logger   *logrus.Logger
}

func NewRegistrar(channels ChannelStore, factory GatewayFactory, hostname string, logger *logrus.Logger) *Registrar {
	return &Registrar{
		channels: channels,
		factory:  factory,
		hostname: hostname,
		logger:   logger,
	}
}

// ChannelURL returns the public ingress URL the gateway posts events to.
func (r *Registrar) ChannelURL(ch *models.Channel) string {
	return fmt.Sprintf("https://%s/whatsapp/%s/", r.hostname, ch.UUID)
}

// Activate subscribes the channel to its variant's inbound and status
// events and stores both webhook ids in the config blob.
func (r *Registrar) Activate(ctx context.Context, ch *models.Channel) error {
	r.logger.WithField("channel", ch.UUID).Info("Activating channel")

	gateway, cred, err := r.factory.ForChannel(ch)
	if err != nil {
		return err
	}

	variant := ch.Type.Variant()
	webhookIDs := make([]string, 0, 2)
	for _, event := range []string{variant.InboundEvent, variant.StatusEvent} {
		id, err := gateway.CreateWebhook(ctx, cred, wassup.WebhookRequest{
			Event:  event,
			URL:    r.ChannelURL(ch),
			Number: ch.Address,
			Secret: ch.Secret(),
		})
		if err != nil {
			return fmt.Errorf("failed to register %s webhook: %w", event, err)
		}
		webhookIDs = append(webhookIDs, id)
	}

	ch.Config[models.ConfigWebhookIDs] = webhookIDs
	return r.channels.SaveChannelConfig(ctx, ch)
}

// Deactivate removes every stored webhook subscription with individual
// delete calls, then drops the ids from the config blob.
func (r *Registrar) Deactivate(ctx context.Context, ch *models.Channel) error {
	r.logger.WithField("channel", ch.UUID).Info("Deactivating channel")

	gateway, cred, err := r.factory.ForChannel(ch)
	if err != nil {
		return err
	}

	for _, id := range ch.WebhookIDs() {
		if err := gateway.DeleteWebhook(ctx, cred, id); err != nil {
			return fmt.Errorf("failed to remove webhook %s: %w", id, err)
		}
	}

	delete(ch.Config, models.ConfigWebhookIDs)
	return r.channels.SaveChannelConfig(ctx, ch)
}
