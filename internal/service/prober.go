package service

import (
	"context"
	"time"

	"warelay/internal/models"

	"github.com/sirupsen/logrus"
)

// ContactStore is the slice of the host store the prober needs.
type ContactStore interface {
	GetContacts(ctx context.Context, ids []int64) ([]*models.Contact, error)
	SetContactField(ctx context.Context, contactID int64, key, stringValue string, datetimeValue *time.Time) error
	SampleUnprobed(ctx context.Context, orgID int64, limit int) ([]int64, error)
	SampleStale(ctx context.Context, orgID int64, cutoff time.Time, limit int) ([]int64, error)
	EnsureGroup(ctx context.Context, orgID int64, name, query string) (*models.ContactGroup, error)
}

// OrgStore lists the orgs the prober should work through.
type OrgStore interface {
	ListOrgsWithActiveChannels(ctx context.Context) ([]*models.Org, error)
	LatestChannelForOrg(ctx context.Context, orgID int64) (*models.Channel, error)
}

// Prober checks contacts against the gateway's number lookup and stamps
// a has_whatsapp field plus its check timestamp on each one. New
// contacts are discovered in random batches; previously checked
// contacts are re-checked once their stamp goes stale.
type Prober struct {
	contacts      ContactStore
	orgs          OrgStore
	factory       GatewayFactory
	sampleSize    int
	stalenessDays int
	logger        *logrus.Logger
	now           func() time.Time
}

func NewProber(contacts ContactStore, orgs OrgStore, factory GatewayFactory, sampleSize, stalenessDays int, logger *logrus.Logger) *Prober {
	return &Prober{
		contacts:      contacts,
		orgs:          orgs,
		factory:       factory,
		sampleSize:    sampleSize,
		stalenessDays: stalenessDays,
		logger:        logger,
		now:           time.Now,
	}
}

// Run probes every org that has an active channel. Per-org failures are
// logged and do not stop the sweep.
func (p *Prober) Run(ctx context.Context) error {
	orgs, err := p.orgs.ListOrgsWithActiveChannels(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		ch, err := p.orgs.LatestChannelForOrg(ctx, org.ID)
		if err != nil {
			p.logger.WithError(err).WithField("org", org.Name).Error("Failed to load channel for org")
			continue
		}
		if ch == nil {
			continue
		}
		if err := p.DiscoverOrg(ctx, org, ch); err != nil {
			p.logger.WithError(err).WithField("org", org.Name).Error("Contact discovery failed")
		}
		if err := p.RefreshOrg(ctx, org, ch); err != nil {
			p.logger.WithError(err).WithField("org", org.Name).Error("Contact refresh failed")
		}
	}
	return nil
}

// DiscoverOrg checks a random sample of contacts that have never been
// probed.
func (p *Prober) DiscoverOrg(ctx context.Context, org *models.Org, ch *models.Channel) error {
	ids, err := p.contacts.SampleUnprobed(ctx, org.ID, p.sampleSize)
	if err != nil {
		return err
	}
	return p.CheckBatch(ctx, org, ch, ids)
}

// RefreshOrg re-checks contacts whose stamp is older than the staleness
// window.
func (p *Prober) RefreshOrg(ctx context.Context, org *models.Org, ch *models.Channel) error {
	cutoff := p.now().Add(-time.Duration(p.stalenessDays) * 24 * time.Hour)
	ids, err := p.contacts.SampleStale(ctx, org.ID, cutoff, p.sampleSize)
	if err != nil {
		return err
	}
	return p.CheckBatch(ctx, org, ch, ids)
}

// CheckBatch resolves the given contacts against the gateway in one
// lookup call and stamps each one. The whole batch is abandoned when
// the lookup fails; nothing is stamped on error.
func (p *Prober) CheckBatch(ctx context.Context, org *models.Org, ch *models.Channel, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	contacts, err := p.contacts.GetContacts(ctx, ids)
	if err != nil {
		return err
	}

	byAddress := make(map[string]*models.Contact, len(contacts))
	addresses := make([]string, 0, len(contacts))
	for _, contact := range contacts {
		number := contact.PhoneNumber()
		if number == "" {
			continue
		}
		byAddress[number] = contact
		addresses = append(addresses, number)
	}
	if len(addresses) == 0 {
		return nil
	}

	gateway, cred, err := p.factory.ForChannel(ch)
	if err != nil {
		return err
	}
	results, err := gateway.CheckNumbers(ctx, cred, ch.Address, addresses)
	if err != nil {
		return err
	}

	now := p.now().UTC()
	stamped := 0
	for address, result := range results {
		contact, ok := byAddress[address]
		if !ok {
			continue
		}
		value := models.HasWhatsAppNo
		if result.Exists() {
			value = models.HasWhatsAppYes
		}
		if err := p.contacts.SetContactField(ctx, contact.ID, models.FieldHasWhatsApp, value, nil); err != nil {
			p.logger.WithError(err).WithField("contact", contact.ID).Error("Failed to stamp has_whatsapp")
			continue
		}
		if err := p.contacts.SetContactField(ctx, contact.ID, models.FieldHasWhatsAppTimestamp, "", &now); err != nil {
			p.logger.WithError(err).WithField("contact", contact.ID).Error("Failed to stamp check timestamp")
			continue
		}
		stamped++
	}

	if _, err := p.contacts.EnsureGroup(ctx, org.ID, models.WhatsAppGroupName, models.WhatsAppGroupQuery); err != nil {
		p.logger.WithError(err).WithField("org", org.Name).Error("Failed to ensure whatsapp group")
	}

	p.logger.WithFields(logrus.Fields{
		"org":     org.Name,
		"checked": len(addresses),
		"stamped": stamped,
	}).Info("Probed contacts")
	return nil
}
