package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"warelay/internal/models"

	"github.com/google/uuid"
)

func (d *Database) CreateContact(ctx context.Context, orgID int64, name, urn string) (*models.Contact, error) {
	contact := &models.Contact{
		OrgID:     orgID,
		UUID:      uuid.NewString(),
		Name:      name,
		URN:       urn,
		CreatedAt: time.Now().UTC(),
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO contacts (org_id, uuid, name, urn, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		contact.OrgID, contact.UUID, contact.Name, contact.URN, contact.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	contact.ID, err = res.LastInsertId()
	return contact, err
}

// GetContacts loads contacts by id, skipping ids that no longer exist.
func (d *Database) GetContacts(ctx context.Context, ids []int64) ([]*models.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, org_id, uuid, name, urn, created_at
		FROM contacts WHERE id IN (%s) ORDER BY id`, placeholders(len(ids)))

	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.OrgID, &c.UUID, &c.Name, &c.URN, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, &c)
	}
	return contacts, rows.Err()
}

// SetContactField upserts a typed contact field value. Datetime values
// are stored as unix seconds so staleness comparisons stay cheap.
func (d *Database) SetContactField(ctx context.Context, contactID int64, key, stringValue string, datetimeValue *time.Time) error {
	var datetime interface{}
	if datetimeValue != nil {
		datetime = datetimeValue.UTC().Unix()
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO contact_fields (contact_id, key, string_value, datetime_value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contact_id, key) DO UPDATE SET
			string_value = excluded.string_value,
			datetime_value = excluded.datetime_value`,
		contactID, key, stringValue, datetime)
	if err != nil {
		return fmt.Errorf("failed to set contact field: %w", err)
	}
	return nil
}

// GetContactField returns a field's string and datetime values. A missing
// field returns zero values without error.
func (d *Database) GetContactField(ctx context.Context, contactID int64, key string) (string, *time.Time, error) {
	var stringValue sql.NullString
	var datetimeValue sql.NullInt64

	err := d.db.QueryRowContext(ctx, `
		SELECT string_value, datetime_value FROM contact_fields
		WHERE contact_id = ? AND key = ?`, contactID, key).
		Scan(&stringValue, &datetimeValue)
	if err == sql.ErrNoRows {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to get contact field: %w", err)
	}

	var ts *time.Time
	if datetimeValue.Valid {
		t := time.Unix(datetimeValue.Int64, 0).UTC()
		ts = &t
	}
	return stringValue.String, ts, nil
}

// SampleUnprobed selects up to limit contacts of an org that have neither
// whatsappable field recorded yet, in random order.
func (d *Database) SampleUnprobed(ctx context.Context, orgID int64, limit int) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id FROM contacts
		WHERE org_id = ?
		AND id NOT IN (
			SELECT contact_id FROM contact_fields WHERE key IN (?, ?)
		)
		ORDER BY RANDOM()
		LIMIT ?`,
		orgID, models.FieldHasWhatsApp, models.FieldHasWhatsAppTimestamp, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample unprobed contacts: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// SampleStale selects up to limit contacts that do have a has_whatsapp
// value but whose last check predates the cutoff.
func (d *Database) SampleStale(ctx context.Context, orgID int64, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.id FROM contacts c
		JOIN contact_fields f ON f.contact_id = c.id AND f.key = ?
		JOIN contact_fields ts ON ts.contact_id = c.id AND ts.key = ?
		WHERE c.org_id = ? AND ts.datetime_value < ?
		LIMIT ?`,
		models.FieldHasWhatsApp, models.FieldHasWhatsAppTimestamp,
		orgID, cutoff.UTC().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample stale contacts: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// EnsureGroup creates a dynamic contact group if it does not exist yet.
// Idempotent per (org, name).
func (d *Database) EnsureGroup(ctx context.Context, orgID int64, name, query string) (*models.ContactGroup, error) {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO contact_groups (org_id, name, query) VALUES (?, ?, ?)
		ON CONFLICT(org_id, name) DO NOTHING`,
		orgID, name, query)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure contact group: %w", err)
	}

	group := &models.ContactGroup{OrgID: orgID}
	err = d.db.QueryRowContext(ctx, `
		SELECT id, name, query FROM contact_groups WHERE org_id = ? AND name = ?`,
		orgID, name).Scan(&group.ID, &group.Name, &group.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact group: %w", err)
	}
	return group, nil
}

// CountGroups returns how many groups of the given name an org has.
func (d *Database) CountGroups(ctx context.Context, orgID int64, name string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contact_groups WHERE org_id = ? AND name = ?`,
		orgID, name).Scan(&count)
	return count, err
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
