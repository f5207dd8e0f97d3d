package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"warelay/internal/models"
)

// CreateIncoming records an inbound message against a channel. Duplicate
// deliveries of the same external id create duplicate rows; the gateway
// gives no at-most-once guarantee and neither do we.
func (d *Database) CreateIncoming(ctx context.Context, channelID int64, urn, text, externalID string, attachments []string) (*models.Msg, error) {
	now := time.Now().UTC()
	msg := &models.Msg{
		ChannelID:   channelID,
		Direction:   models.DirectionIn,
		Status:      models.StatusHandled,
		ExternalID:  externalID,
		ContactURN:  urn,
		Text:        text,
		Attachments: attachments,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	return msg, d.insertMsg(ctx, msg)
}

// CreateOutgoing records a host-originated message pending relay to the
// gateway.
func (d *Database) CreateOutgoing(ctx context.Context, channelID int64, urn, text string, responseToID int64) (*models.Msg, error) {
	now := time.Now().UTC()
	msg := &models.Msg{
		ChannelID:    channelID,
		Direction:    models.DirectionOut,
		Status:       models.StatusPending,
		ContactURN:   urn,
		Text:         text,
		ResponseToID: responseToID,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	return msg, d.insertMsg(ctx, msg)
}

func (d *Database) insertMsg(ctx context.Context, msg *models.Msg) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}
	if msg.Attachments == nil {
		attachments = []byte("[]")
	}

	var responseTo interface{}
	if msg.ResponseToID != 0 {
		responseTo = msg.ResponseToID
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO messages (channel_id, direction, status, external_id, contact_urn,
			text, attachments, response_to_id, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ChannelID, string(msg.Direction), string(msg.Status), msg.ExternalID,
		msg.ContactURN, msg.Text, string(attachments), responseTo,
		msg.CreatedAt, msg.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	msg.ID, err = res.LastInsertId()
	return err
}

// GetOutgoingByExternalID returns all outbound messages on a channel
// carrying a given gateway message uuid. An empty result is normal
// traffic: the gateway fans status events out across integrations.
func (d *Database) GetOutgoingByExternalID(ctx context.Context, channelID int64, externalID string) ([]*models.Msg, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, channel_id, direction, status, COALESCE(external_id, ''),
			contact_urn, text, attachments, COALESCE(response_to_id, 0),
			created_at, modified_at
		FROM messages
		WHERE channel_id = ? AND external_id = ? AND direction = ?
		ORDER BY id`,
		channelID, externalID, string(models.DirectionOut))
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Msg
	for rows.Next() {
		msg, err := scanMsg(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// GetMsg loads a single message by id.
func (d *Database) GetMsg(ctx context.Context, id int64) (*models.Msg, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, channel_id, direction, status, COALESCE(external_id, ''),
			contact_urn, text, attachments, COALESCE(response_to_id, 0),
			created_at, modified_at
		FROM messages WHERE id = ?`, id)
	return scanMsg(row)
}

// ExternalIDFor returns the gateway uuid of a message, or empty when the
// message is unknown or was never wired.
func (d *Database) ExternalIDFor(ctx context.Context, msgID int64) (string, error) {
	if msgID == 0 {
		return "", nil
	}
	var externalID string
	err := d.db.QueryRowContext(ctx,
		`SELECT COALESCE(external_id, '') FROM messages WHERE id = ?`, msgID).
		Scan(&externalID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return externalID, err
}

// MarkWired records gateway acceptance of an outbound message.
func (d *Database) MarkWired(ctx context.Context, msgID int64, externalID string) error {
	return d.setStatus(ctx, msgID, models.StatusWired, &externalID)
}

// MarkDelivered transitions a message to delivered. Re-applying is a
// no-op at the data level.
func (d *Database) MarkDelivered(ctx context.Context, msgID int64) error {
	return d.setStatus(ctx, msgID, models.StatusDelivered, nil)
}

// MarkFailed transitions a message to failed.
func (d *Database) MarkFailed(ctx context.Context, msgID int64) error {
	return d.setStatus(ctx, msgID, models.StatusFailed, nil)
}

func (d *Database) setStatus(ctx context.Context, msgID int64, status models.MsgStatus, externalID *string) error {
	var err error
	if externalID != nil {
		_, err = d.db.ExecContext(ctx,
			`UPDATE messages SET status = ?, external_id = ?, modified_at = ? WHERE id = ?`,
			string(status), *externalID, time.Now().UTC(), msgID)
	} else {
		_, err = d.db.ExecContext(ctx,
			`UPDATE messages SET status = ?, modified_at = ? WHERE id = ?`,
			string(status), time.Now().UTC(), msgID)
	}
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	return nil
}

// AddHTTPLog attaches an HTTP transcript to a message for auditing.
func (d *Database) AddHTTPLog(ctx context.Context, msgID int64, description string, log models.HTTPLog) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO channel_logs (message_id, description, method, url,
			request_body, response_status, response_body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msgID, description, log.Method, log.URL, log.RequestBody,
		log.StatusCode, log.ResponseBody, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert channel log: %w", err)
	}
	return nil
}

// GetHTTPLogs returns the transcripts attached to a message, oldest
// first.
func (d *Database) GetHTTPLogs(ctx context.Context, msgID int64) ([]models.HTTPLog, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT method, url, request_body, response_status, response_body, created_at
		FROM channel_logs WHERE message_id = ? ORDER BY id`, msgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel logs: %w", err)
	}
	defer rows.Close()

	var logs []models.HTTPLog
	for rows.Next() {
		var l models.HTTPLog
		if err := rows.Scan(&l.Method, &l.URL, &l.RequestBody, &l.StatusCode,
			&l.ResponseBody, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func scanMsg(row rowScanner) (*models.Msg, error) {
	var msg models.Msg
	var direction, status, attachments string

	err := row.Scan(&msg.ID, &msg.ChannelID, &direction, &status, &msg.ExternalID,
		&msg.ContactURN, &msg.Text, &attachments, &msg.ResponseToID,
		&msg.CreatedAt, &msg.ModifiedAt)
	if err != nil {
		return nil, err
	}

	msg.Direction = models.Direction(direction)
	msg.Status = models.MsgStatus(status)
	if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
	}
	return &msg, nil
}
