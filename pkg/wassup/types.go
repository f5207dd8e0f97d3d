package wassup

import (
	"fmt"

	"warelay/internal/models"
)

// OutboundPayload is the body of a message send. Group is empty for
// direct channels; InReplyTo carries the gateway uuid of the message
// being replied to, or empty.
type OutboundPayload struct {
	ToAddr    string `json:"to_addr"`
	Number    string `json:"number"`
	Group     string `json:"group"`
	InReplyTo string `json:"in_reply_to"`
	Content   string `json:"content"`
}

// Fields returns the payload as ordered form fields for multipart sends.
func (p OutboundPayload) Fields() [][2]string {
	return [][2]string{
		{"to_addr", p.ToAddr},
		{"number", p.Number},
		{"group", p.Group},
		{"in_reply_to", p.InReplyTo},
		{"content", p.Content},
	}
}

// WebhookRequest registers a gateway-side webhook subscription.
type WebhookRequest struct {
	Event  string `json:"event"`
	URL    string `json:"url"`
	Number string `json:"number"`
	Secret string `json:"secret"`
}

// LookupResult is one entry of a reachability check, keyed by phone
// number in the response. WaExists is deliberately untyped: anything but
// boolean true means the number has no WhatsApp account.
type LookupResult struct {
	WaExists interface{} `json:"wa_exists"`
}

// Exists reports whether the gateway confirmed a WhatsApp account,
// by strict identity with boolean true.
func (r LookupResult) Exists() bool {
	v, ok := r.WaExists.(bool)
	return ok && v
}

// Number is a WhatsApp number available to the authenticated account.
type Number struct {
	CountryCode string `json:"country_code"`
	Number      string `json:"number"`
}

// Address returns the E.164 form of the number.
func (n Number) Address() string {
	return fmt.Sprintf("+%s%s", n.CountryCode, n.Number)
}

// Group is a WhatsApp group available to the authenticated account.
type Group struct {
	UUID    string `json:"uuid"`
	Subject string `json:"subject"`
	Number  string `json:"number"`
}

// Transcript records one HTTP exchange with the gateway, attached to
// errors and channel logs for diagnostics.
type Transcript struct {
	Method       string
	URL          string
	RequestBody  string
	StatusCode   int
	ResponseBody string
}

// HTTPLog converts the transcript into the host store's audit log shape.
func (t Transcript) HTTPLog() models.HTTPLog {
	return models.HTTPLog{
		Method:       t.Method,
		URL:          t.URL,
		RequestBody:  t.RequestBody,
		StatusCode:   t.StatusCode,
		ResponseBody: t.ResponseBody,
	}
}

// StatusError is a non-2xx gateway response, carrying the full
// request/response transcript.
type StatusError struct {
	Transcript Transcript
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned %d for %s %s: %s",
		e.Transcript.StatusCode, e.Transcript.Method, e.Transcript.URL,
		e.Transcript.ResponseBody)
}
