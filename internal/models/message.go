package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction of a message relative to the host store.
type Direction string

const (
	DirectionIn  Direction = "I"
	DirectionOut Direction = "O"
)

// MsgStatus is the delivery state of a message.
type MsgStatus string

const (
	// StatusPending is an outbound message not yet accepted by the gateway.
	StatusPending MsgStatus = "P"
	// StatusWired is an outbound message accepted by the gateway.
	StatusWired MsgStatus = "W"
	// StatusDelivered is an outbound message confirmed delivered.
	StatusDelivered MsgStatus = "D"
	// StatusFailed is an outbound message the gateway could not deliver.
	StatusFailed MsgStatus = "F"
	// StatusHandled is an inbound message accepted into the store.
	StatusHandled MsgStatus = "H"
)

// Attachment media type prefixes, matching the "<type>:<url>" encoding
// used in the message store.
const (
	MediaImage = "image"
	MediaAudio = "audio"
	MediaVideo = "video"
	MediaGPS   = "gps"
)

// Msg is a single message flowing through a channel.
type Msg struct {
	ID           int64
	ChannelID    int64
	Direction    Direction
	Status       MsgStatus
	ExternalID   string
	ContactURN   string
	Text         string
	Attachments  []string
	ResponseToID int64
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// Attachment is a typed reference to message media.
type Attachment struct {
	ContentType string
	URL         string
}

// ParseAttachments splits "<type>:<url>" encoded attachment references.
// Entries without a type prefix are returned with an empty content type.
func ParseAttachments(raw []string) []Attachment {
	attachments := make([]Attachment, 0, len(raw))
	for _, r := range raw {
		if r == "" {
			continue
		}
		if idx := strings.Index(r, ":"); idx >= 0 && !strings.HasPrefix(r[idx:], "://") {
			attachments = append(attachments, Attachment{
				ContentType: r[:idx],
				URL:         r[idx+1:],
			})
		} else {
			attachments = append(attachments, Attachment{URL: r})
		}
	}
	return attachments
}

// GPSAttachment encodes a coordinate pair as a "gps:<lat>,<lon>"
// attachment reference.
func GPSAttachment(lat, lon float64) string {
	return fmt.Sprintf("%s:%v,%v", MediaGPS, lat, lon)
}

// HTTPLog is the transcript of a single HTTP transaction, attached to a
// message for audit purposes.
type HTTPLog struct {
	Method       string
	URL          string
	RequestBody  string
	StatusCode   int
	ResponseBody string
	CreatedAt    time.Time
}
