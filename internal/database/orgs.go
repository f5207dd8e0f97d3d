package database

import (
	"context"
	"fmt"

	"warelay/internal/models"
)

// ListOrgsWithActiveChannels returns orgs owning at least one active
// WhatsApp channel; only those orgs get probed for whatsappable contacts.
func (d *Database) ListOrgsWithActiveChannels(ctx context.Context) ([]*models.Org, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT o.id, o.uuid, o.name FROM orgs o
		JOIN channels c ON c.org_id = o.id
		WHERE c.is_active = 1 AND c.channel_type IN (%s)
		ORDER BY o.id`, placeholders(len(models.ChannelTypes)))

	args := make([]interface{}, 0, len(models.ChannelTypes))
	for _, t := range models.ChannelTypes {
		args = append(args, string(t))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orgs: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Org
	for rows.Next() {
		var org models.Org
		if err := rows.Scan(&org.ID, &org.UUID, &org.Name); err != nil {
			return nil, err
		}
		orgs = append(orgs, &org)
	}
	return orgs, rows.Err()
}
