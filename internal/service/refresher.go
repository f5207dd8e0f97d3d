package service

import (
	"context"
	"fmt"
	"time"

	apperrors "warelay/internal/errors"
	"warelay/internal/models"

	"github.com/sirupsen/logrus"
)

// ChannelStore is the slice of the host store the refresher needs.
type ChannelStore interface {
	GetChannelByID(ctx context.Context, id int64) (*models.Channel, error)
	ListChannelsByType(ctx context.Context, types ...models.ChannelType) ([]*models.Channel, error)
	SaveChannelConfig(ctx context.Context, ch *models.Channel) error
}

// Refresher keeps OAuth channel credentials fresh by exchanging refresh
// tokens ahead of expiry. Static-token channels are left alone.
type Refresher struct {
	channels     ChannelStore
	gateway      Gateway
	clientID     string
	clientSecret string
	lookahead    time.Duration
	logger       *logrus.Logger
}

func NewRefresher(channels ChannelStore, gateway Gateway, clientID, clientSecret string, lookahead time.Duration, logger *logrus.Logger) *Refresher {
	return &Refresher{
		channels:     channels,
		gateway:      gateway,
		clientID:     clientID,
		clientSecret: clientSecret,
		lookahead:    lookahead,
		logger:       logger,
	}
}

// RefreshOne refreshes a single channel's OAuth token, replacing the
// stored authorization wholesale and recomputing expires_at. Channels
// with a static api_token are skipped. On a gateway error the stored
// credential is left unchanged.
func (r *Refresher) RefreshOne(ctx context.Context, channelID int64) error {
	ch, err := r.channels.GetChannelByID(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to load channel %d: %w", channelID, err)
	}

	cred, err := LoadCredential(ch)
	if err != nil {
		return err
	}

	oauth, ok := cred.(models.OAuthToken)
	if !ok {
		r.logger.WithField("channel", ch.UUID).Debug("Channel uses a static token, skipping refresh")
		return nil
	}
	if oauth.Authorization.RefreshToken == "" {
		return apperrors.NewConfigError("refresh_token",
			fmt.Sprintf("authorization missing refresh_token for channel %s", ch.UUID))
	}

	authorization, err := r.gateway.RefreshToken(ctx, r.clientID, r.clientSecret, oauth.Authorization.RefreshToken)
	if err != nil {
		return fmt.Errorf("token refresh for channel %s failed: %w", ch.UUID, err)
	}

	refreshed := models.OAuthToken{
		Authorization: *authorization,
		ExpiresAt:     time.Now().Add(time.Duration(authorization.ExpiresIn) * time.Second),
	}
	if err := StoreCredential(ch, refreshed); err != nil {
		return err
	}
	if err := r.channels.SaveChannelConfig(ctx, ch); err != nil {
		return fmt.Errorf("failed to persist refreshed credential for channel %s: %w", ch.UUID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"channel":    ch.UUID,
		"expires_at": refreshed.ExpiresAt,
	}).Info("Refreshed channel access token")
	return nil
}

// RefreshDue scans every WhatsApp channel and refreshes those whose
// token expires within the lookahead window. Each channel is an
// independent unit of work; one failure does not stop the scan.
func (r *Refresher) RefreshDue(ctx context.Context) error {
	channels, err := r.channels.ListChannelsByType(ctx, models.ChannelTypes...)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	marker := time.Now().Add(r.lookahead)
	for _, ch := range channels {
		// pre-OAuth integrations store an api_token with no expiry
		expiresAt, ok := CredentialExpiresAt(ch)
		if !ok {
			continue
		}
		if !marker.After(expiresAt) {
			continue
		}

		if err := r.RefreshOne(ctx, ch.ID); err != nil {
			r.logger.WithError(err).WithField("channel", ch.UUID).Error("Failed to refresh channel token")
		}
	}
	return nil
}
