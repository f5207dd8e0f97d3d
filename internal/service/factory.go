package service

import (
	"context"
	"time"

	"warelay/internal/config"
	"warelay/internal/models"
	"warelay/pkg/wassup"
)

// Gateway is the slice of the Wassup client the services consume.
type Gateway interface {
	RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*models.Authorization, error)
	CreateWebhook(ctx context.Context, cred models.Credential, hook wassup.WebhookRequest) (string, error)
	DeleteWebhook(ctx context.Context, cred models.Credential, webhookID string) error
	SendMessage(ctx context.Context, cred models.Credential, payload wassup.OutboundPayload) (string, *wassup.Transcript, error)
	SendMessageWithAttachment(ctx context.Context, cred models.Credential, payload wassup.OutboundPayload, attachment models.Attachment) (string, *wassup.Transcript, error)
	CheckNumbers(ctx context.Context, cred models.Credential, number string, addresses []string) (map[string]wassup.LookupResult, error)
	ListNumbers(ctx context.Context, cred models.Credential) ([]wassup.Number, error)
	ListGroups(ctx context.Context, cred models.Credential) ([]wassup.Group, error)
}

// GatewayFactory builds gateway clients per caller context, so every
// request carries a user agent naming the org it is made for.
type GatewayFactory interface {
	// ForChannel returns a client identified by the channel's org, plus
	// the channel's credential.
	ForChannel(ch *models.Channel) (Gateway, models.Credential, error)
	// ForSetup returns a client for calls made before any org context
	// exists, such as token refreshes and claim validation.
	ForSetup() Gateway
}

type clientFactory struct {
	gateway  config.GatewayConfig
	hostname string
}

// NewClientFactory builds the production GatewayFactory from config.
func NewClientFactory(gateway config.GatewayConfig, hostname string) GatewayFactory {
	return &clientFactory{gateway: gateway, hostname: hostname}
}

func (f *clientFactory) client(context string) *wassup.Client {
	return wassup.NewClient(wassup.Config{
		AuthBaseURL: f.gateway.AuthBaseURL,
		APIBaseURL:  f.gateway.APIBaseURL,
		UserAgent:   wassup.UserAgent(context, f.hostname),
		Timeout:     time.Duration(f.gateway.TimeoutSec) * time.Second,
	})
}

func (f *clientFactory) ForChannel(ch *models.Channel) (Gateway, models.Credential, error) {
	cred, err := LoadCredential(ch)
	if err != nil {
		return nil, nil, err
	}
	return f.client(ch.OrgName), cred, nil
}

func (f *clientFactory) ForSetup() Gateway {
	return f.client("[Auth Setup]")
}
