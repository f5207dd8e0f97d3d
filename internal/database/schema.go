package database

const schema = `
CREATE TABLE IF NOT EXISTS orgs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid TEXT NOT NULL UNIQUE,
	org_id INTEGER REFERENCES orgs(id),
	channel_type TEXT NOT NULL,
	address TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT '{}',
	is_active INTEGER NOT NULL DEFAULT 1,
	last_modified TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_channels_uuid ON channels(uuid);
CREATE INDEX IF NOT EXISTS idx_channels_type ON channels(channel_type, is_active);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id INTEGER NOT NULL REFERENCES channels(id),
	direction TEXT NOT NULL,
	status TEXT NOT NULL,
	external_id TEXT,
	contact_urn TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	attachments TEXT NOT NULL DEFAULT '[]',
	response_to_id INTEGER,
	created_at TIMESTAMP NOT NULL,
	modified_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_external
	ON messages(channel_id, external_id, direction);

CREATE TABLE IF NOT EXISTS channel_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL REFERENCES messages(id),
	description TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	request_body TEXT NOT NULL DEFAULT '',
	response_status INTEGER NOT NULL,
	response_body TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	org_id INTEGER NOT NULL REFERENCES orgs(id),
	uuid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	urn TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS contact_fields (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	contact_id INTEGER NOT NULL REFERENCES contacts(id),
	key TEXT NOT NULL,
	string_value TEXT,
	datetime_value INTEGER,
	UNIQUE(contact_id, key)
);

CREATE TABLE IF NOT EXISTS contact_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	org_id INTEGER NOT NULL REFERENCES orgs(id),
	name TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	UNIQUE(org_id, name)
);
`
