package models

import (
	"time"
)

// ChannelType identifies which Wassup channel variant a channel is.
type ChannelType string

const (
	// ChannelTypeDirect is a one-on-one WhatsApp number channel.
	ChannelTypeDirect ChannelType = "WAD"
	// ChannelTypeGroup is a WhatsApp group channel.
	ChannelTypeGroup ChannelType = "WAG"
)

// ChannelTypes lists every WhatsApp channel type this service handles.
var ChannelTypes = []ChannelType{ChannelTypeDirect, ChannelTypeGroup}

// Config blob keys shared between the credential adapter, the webhook
// registrar and the ingress handler. Unrelated keys coexist in the same
// blob, so writers must preserve keys they do not own.
const (
	ConfigAPIToken      = "api_token"
	ConfigAuthorization = "authorization"
	ConfigExpiresAt     = "expires_at"
	ConfigGroupUUID     = "group_uuid"
	ConfigNumber        = "number"
	ConfigSecret        = "secret"
	ConfigWebhookIDs    = "wassup_webhook_ids"
)

// Variant describes how a channel type differs on the wire: which gateway
// events it subscribes to and whether outbound payloads carry a group id.
type Variant struct {
	InboundEvent string
	StatusEvent  string
	// GroupConfigKey is the config key holding the group uuid, empty for
	// direct channels.
	GroupConfigKey string
}

var variants = map[ChannelType]Variant{
	ChannelTypeDirect: {
		InboundEvent: "message.direct_inbound",
		StatusEvent:  "message.direct_outbound.status",
	},
	ChannelTypeGroup: {
		InboundEvent:   "message.group_inbound",
		StatusEvent:    "message.group_outbound.status",
		GroupConfigKey: ConfigGroupUUID,
	},
}

// Variant returns the wire-level descriptor for the channel type.
func (t ChannelType) Variant() Variant {
	return variants[t]
}

// Valid reports whether t is a known WhatsApp channel type.
func (t ChannelType) Valid() bool {
	_, ok := variants[t]
	return ok
}

// Channel is a configured messaging endpoint: a WhatsApp number or group
// through which messages flow. Config is the opaque JSON blob shared with
// the host; it holds credentials, webhook ids and the group uuid.
type Channel struct {
	ID           int64
	UUID         string
	OrgID        int64
	OrgName      string
	Type         ChannelType
	Address      string
	Config       map[string]interface{}
	IsActive     bool
	LastModified time.Time
}

// GroupUUID returns the configured group uuid, empty for direct channels.
func (c *Channel) GroupUUID() string {
	key := c.Type.Variant().GroupConfigKey
	if key == "" {
		return ""
	}
	v, _ := c.Config[key].(string)
	return v
}

// Secret returns the webhook secret issued at claim time.
func (c *Channel) Secret() string {
	v, _ := c.Config[ConfigSecret].(string)
	return v
}

// WebhookIDs returns the gateway webhook subscription ids stored on
// activation.
func (c *Channel) WebhookIDs() []string {
	switch raw := c.Config[ConfigWebhookIDs].(type) {
	case []string:
		return raw
	case []interface{}:
		// config decoded from JSON loses the concrete slice type
		ids := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	default:
		return nil
	}
}

// Org is a tenant owning channels and contacts.
type Org struct {
	ID   int64
	UUID string
	Name string
}
