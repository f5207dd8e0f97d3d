package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"warelay/internal/models"

	"github.com/google/uuid"
)

func (d *Database) CreateOrg(ctx context.Context, name string) (*models.Org, error) {
	org := &models.Org{UUID: uuid.NewString(), Name: name}
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO orgs (uuid, name, created_at) VALUES (?, ?, ?)`,
		org.UUID, org.Name, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create org: %w", err)
	}
	org.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return org, nil
}

// CreateChannel inserts a channel. A zero UUID is assigned; Config may be
// nil.
func (d *Database) CreateChannel(ctx context.Context, ch *models.Channel) error {
	if ch.UUID == "" {
		ch.UUID = uuid.NewString()
	}
	if ch.Config == nil {
		ch.Config = map[string]interface{}{}
	}
	ch.LastModified = time.Now().UTC()

	blob, err := d.marshalConfig(ch.Config)
	if err != nil {
		return err
	}

	var orgID interface{}
	if ch.OrgID != 0 {
		orgID = ch.OrgID
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO channels (uuid, org_id, channel_type, address, config, is_active, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ch.UUID, orgID, string(ch.Type), ch.Address, blob, ch.IsActive, ch.LastModified)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}

	ch.ID, err = res.LastInsertId()
	return err
}

const channelColumns = `
	c.id, c.uuid, c.org_id, COALESCE(o.name, ''), c.channel_type,
	c.address, c.config, c.is_active, c.last_modified`

// GetChannelByUUID finds an active, org-owned channel by UUID among the
// given channel types. Returns nil without error when no channel matches.
func (d *Database) GetChannelByUUID(ctx context.Context, channelUUID string, types ...models.ChannelType) (*models.Channel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM channels c
		JOIN orgs o ON o.id = c.org_id
		WHERE c.uuid = ? AND c.is_active = 1 AND c.channel_type IN (%s)`,
		channelColumns, placeholders(len(types)))

	args := []interface{}{channelUUID}
	for _, t := range types {
		args = append(args, string(t))
	}

	row := d.db.QueryRowContext(ctx, query, args...)
	ch, err := d.scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ch, err
}

// GetChannelByID loads a channel regardless of its active state.
func (d *Database) GetChannelByID(ctx context.Context, id int64) (*models.Channel, error) {
	row := d.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM channels c
		LEFT JOIN orgs o ON o.id = c.org_id
		WHERE c.id = ?`, channelColumns), id)
	return d.scanChannel(row)
}

// ListChannelsByType returns every channel of the given types, active or
// not, for the refresh scan.
func (d *Database) ListChannelsByType(ctx context.Context, types ...models.ChannelType) ([]*models.Channel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM channels c
		LEFT JOIN orgs o ON o.id = c.org_id
		WHERE c.channel_type IN (%s)
		ORDER BY c.id`, channelColumns, placeholders(len(types)))

	args := make([]interface{}, 0, len(types))
	for _, t := range types {
		args = append(args, string(t))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	return d.scanChannels(rows)
}

// LatestChannelForOrg returns the most recently modified active WhatsApp
// channel for an org, used as the prober's credential source. Returns nil
// without error when the org has none.
func (d *Database) LatestChannelForOrg(ctx context.Context, orgID int64) (*models.Channel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM channels c
		JOIN orgs o ON o.id = c.org_id
		WHERE c.org_id = ? AND c.is_active = 1 AND c.channel_type IN (%s)
		ORDER BY c.last_modified DESC, c.id DESC
		LIMIT 1`, channelColumns, placeholders(len(models.ChannelTypes)))

	args := []interface{}{orgID}
	for _, t := range models.ChannelTypes {
		args = append(args, string(t))
	}

	row := d.db.QueryRowContext(ctx, query, args...)
	ch, err := d.scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ch, err
}

// SaveChannelConfig persists the channel's config blob. The blob is
// written whole, so callers must mutate the loaded map rather than
// rebuild it, preserving keys they do not own.
func (d *Database) SaveChannelConfig(ctx context.Context, ch *models.Channel) error {
	blob, err := d.marshalConfig(ch.Config)
	if err != nil {
		return err
	}

	ch.LastModified = time.Now().UTC()
	_, err = d.db.ExecContext(ctx,
		`UPDATE channels SET config = ?, last_modified = ? WHERE id = ?`,
		blob, ch.LastModified, ch.ID)
	if err != nil {
		return fmt.Errorf("failed to save channel config: %w", err)
	}
	return nil
}

// ReleaseChannel marks a channel inactive.
func (d *Database) ReleaseChannel(ctx context.Context, ch *models.Channel) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE channels SET is_active = 0, last_modified = ? WHERE id = ?`,
		time.Now().UTC(), ch.ID)
	if err != nil {
		return fmt.Errorf("failed to release channel: %w", err)
	}
	ch.IsActive = false
	return nil
}

func (d *Database) marshalConfig(config map[string]interface{}) (string, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal channel config: %w", err)
	}
	blob, err := d.encryptor.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt channel config: %w", err)
	}
	return blob, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanChannel(row rowScanner) (*models.Channel, error) {
	var ch models.Channel
	var orgID sql.NullInt64
	var channelType, blob string

	err := row.Scan(&ch.ID, &ch.UUID, &orgID, &ch.OrgName, &channelType,
		&ch.Address, &blob, &ch.IsActive, &ch.LastModified)
	if err != nil {
		return nil, err
	}

	ch.OrgID = orgID.Int64
	ch.Type = models.ChannelType(channelType)

	raw, err := d.encryptor.Decrypt(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt channel config: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &ch.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel config: %w", err)
	}

	return &ch, nil
}

func (d *Database) scanChannels(rows *sql.Rows) ([]*models.Channel, error) {
	var channels []*models.Channel
	for rows.Next() {
		ch, err := d.scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
