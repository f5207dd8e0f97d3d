package service

import (
	"context"
	"fmt"

	apperrors "warelay/internal/errors"
	"warelay/internal/models"
	"warelay/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ClaimStore is the slice of the host store the claimer needs.
type ClaimStore interface {
	CreateChannel(ctx context.Context, ch *models.Channel) error
}

// Claimer turns a gateway API token into an active channel. The token
// is validated by listing the account's numbers or groups, and the
// channel is registered for webhooks immediately.
type Claimer struct {
	store     ClaimStore
	factory   GatewayFactory
	registrar *Registrar
	logger    *logrus.Logger
}

func NewClaimer(store ClaimStore, factory GatewayFactory, registrar *Registrar, logger *logrus.Logger) *Claimer {
	return &Claimer{
		store:     store,
		factory:   factory,
		registrar: registrar,
		logger:    logger,
	}
}

// ClaimDirect creates a direct channel for one of the token's numbers.
// The number must be owned by the account the token belongs to.
func (c *Claimer) ClaimDirect(ctx context.Context, org *models.Org, apiToken, address string) (*models.Channel, error) {
	if err := validation.ValidatePhoneNumber(address); err != nil {
		return nil, err
	}

	gateway := c.factory.ForSetup()
	cred := models.StaticToken{Token: apiToken}

	numbers, err := gateway.ListNumbers(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to list account numbers: %w", err)
	}

	var number string
	for _, n := range numbers {
		if n.Address() == address {
			number = n.Address()
			break
		}
	}
	if number == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("number %s is not available to this token", address))
	}

	ch := &models.Channel{
		OrgID:    org.ID,
		OrgName:  org.Name,
		Type:     models.ChannelTypeDirect,
		Address:  number,
		IsActive: true,
		Config: map[string]interface{}{
			models.ConfigAPIToken: apiToken,
			models.ConfigNumber:   number,
			models.ConfigSecret:   uuid.NewString(),
		},
	}
	return c.finish(ctx, ch)
}

// ClaimGroup creates a group channel for one of the token's groups.
func (c *Claimer) ClaimGroup(ctx context.Context, org *models.Org, apiToken, groupUUID string) (*models.Channel, error) {
	if err := validation.ValidateGroupUUID(groupUUID); err != nil {
		return nil, err
	}

	gateway := c.factory.ForSetup()
	cred := models.StaticToken{Token: apiToken}

	groups, err := gateway.ListGroups(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to list account groups: %w", err)
	}

	var group *models.Channel
	for _, g := range groups {
		if g.UUID != groupUUID {
			continue
		}
		group = &models.Channel{
			OrgID:    org.ID,
			OrgName:  org.Name,
			Type:     models.ChannelTypeGroup,
			Address:  g.Number,
			IsActive: true,
			Config: map[string]interface{}{
				models.ConfigAPIToken:  apiToken,
				models.ConfigGroupUUID: g.UUID,
				models.ConfigSecret:    uuid.NewString(),
			},
		}
		break
	}
	if group == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("group %s is not available to this token", groupUUID))
	}
	return c.finish(ctx, group)
}

func (c *Claimer) finish(ctx context.Context, ch *models.Channel) (*models.Channel, error) {
	if err := c.store.CreateChannel(ctx, ch); err != nil {
		return nil, err
	}
	if err := c.registrar.Activate(ctx, ch); err != nil {
		return nil, fmt.Errorf("channel created but webhook registration failed: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"channel": ch.UUID,
		"type":    ch.Type,
	}).Info("Channel claimed")
	return ch, nil
}
