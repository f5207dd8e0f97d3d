package models

import (
	"strings"
	"time"
)

// Contact field keys written by the whatsappable prober.
const (
	FieldHasWhatsApp          = "has_whatsapp"
	FieldHasWhatsAppTimestamp = "has_whatsapp_timestamp"
)

// HasWhatsApp field values.
const (
	HasWhatsAppYes = "yes"
	HasWhatsAppNo  = "no"
)

// WhatsAppGroupName is the dynamic group collecting contacts confirmed to
// be reachable over WhatsApp. Created lazily, once per org.
const WhatsAppGroupName = "Contacts on WhatsApp"

// WhatsAppGroupQuery selects the group's members.
const WhatsAppGroupQuery = `has_whatsapp = "yes"`

// Contact is a person in the host store, addressed by a URN.
type Contact struct {
	ID        int64
	OrgID     int64
	UUID      string
	Name      string
	URN       string
	CreatedAt time.Time
}

// PhoneNumber returns the contact's phone identity, or empty if the
// contact has no tel URN.
func (c *Contact) PhoneNumber() string {
	if strings.HasPrefix(c.URN, "tel:") {
		return strings.TrimPrefix(c.URN, "tel:")
	}
	return ""
}

// TelURN builds a tel URN from a phone number.
func TelURN(number string) string {
	return "tel:" + number
}

// ContactGroup is a dynamic contact group defined by a field query.
type ContactGroup struct {
	ID    int64
	OrgID int64
	Name  string
	Query string
}
