package wassup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	apperrors "warelay/internal/errors"
	"warelay/internal/models"
)

// Version identifies this integration in user-agent strings. Overridden
// at build time.
var Version = "dev"

// UserAgent builds the identifying header sent on every gateway call:
// the integration version, the calling context (an org name or setup
// marker) and the host name.
func UserAgent(context, hostname string) string {
	return fmt.Sprintf("warelay/%s (%s, %s)", Version, context, hostname)
}

// Attachment field names by content-type prefix. Prefixes outside this
// map cannot be forwarded to the gateway.
var attachmentFields = map[string]string{
	"image":       "image_attachment",
	"audio":       "audio_attachment",
	"video":       "video_attachment",
	"application": "document_attachment",
}

// AttachmentField maps a content type to its multipart field name.
func AttachmentField(contentType string) (string, bool) {
	prefix := strings.SplitN(contentType, "/", 2)[0]
	field, ok := attachmentFields[prefix]
	return field, ok
}

// Config holds everything a Client needs; clients are cheap values
// constructed per caller context so the user agent can carry the org
// name, rather than shared ambient state.
type Config struct {
	AuthBaseURL string
	APIBaseURL  string
	UserAgent   string
	Timeout     time.Duration
}

// Client talks to the Wassup gateway REST API.
type Client struct {
	authBaseURL string
	apiBaseURL  string
	userAgent   string
	httpClient  *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		authBaseURL: strings.TrimSuffix(cfg.AuthBaseURL, "/"),
		apiBaseURL:  strings.TrimSuffix(cfg.APIBaseURL, "/"),
		userAgent:   cfg.UserAgent,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// RefreshToken exchanges a refresh token for a new authorization. The
// returned authorization replaces the stored one wholesale.
func (c *Client) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*models.Authorization, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authBaseURL+"/oauth/token/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	transcript, err := c.do(req, form.Encode())
	if err != nil {
		return nil, err
	}

	var authorization models.Authorization
	if err := json.Unmarshal([]byte(transcript.ResponseBody), &authorization); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &authorization, nil
}

// CreateWebhook registers a gateway webhook subscription and returns its
// id.
func (c *Client) CreateWebhook(ctx context.Context, cred models.Credential, hook WebhookRequest) (string, error) {
	body, err := json.Marshal(hook)
	if err != nil {
		return "", fmt.Errorf("failed to marshal webhook request: %w", err)
	}

	req, err := c.newAPIRequest(ctx, http.MethodPost, "/webhooks/", cred, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	transcript, err := c.do(req, string(body))
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(transcript.ResponseBody), &result); err != nil {
		return "", fmt.Errorf("failed to decode webhook response: %w", err)
	}
	if result.ID == "" {
		return "", apperrors.NewProtocolError("id", "webhook response missing id")
	}
	return result.ID, nil
}

// DeleteWebhook removes a gateway webhook subscription.
func (c *Client) DeleteWebhook(ctx context.Context, cred models.Credential, webhookID string) error {
	req, err := c.newAPIRequest(ctx, http.MethodDelete,
		fmt.Sprintf("/webhooks/%s/", webhookID), cred, nil)
	if err != nil {
		return err
	}

	_, err = c.do(req, "")
	return err
}

// SendMessage submits a message as JSON and returns the gateway's uuid
// for it, with the transcript of the exchange. A 2xx response without a
// uuid is a protocol violation.
func (c *Client) SendMessage(ctx context.Context, cred models.Credential, payload OutboundPayload) (string, *Transcript, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := c.newAPIRequest(ctx, http.MethodPost, "/messages/", cred, bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	transcript, err := c.do(req, string(body))
	if err != nil {
		return "", transcript, err
	}

	return extractMessageUUID(transcript)
}

// SendMessageWithAttachment fetches the attachment's bytes from its URL
// and submits the message as multipart form data. The attachment's
// content type selects the form field; callers must check
// AttachmentField first.
func (c *Client) SendMessageWithAttachment(ctx context.Context, cred models.Credential, payload OutboundPayload, attachment models.Attachment) (string, *Transcript, error) {
	field, ok := AttachmentField(attachment.ContentType)
	if !ok {
		return "", nil, fmt.Errorf("unsupported attachment content type: %s", attachment.ContentType)
	}

	media, contentType, err := c.fetchAttachment(ctx, attachment)
	if err != nil {
		return "", nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, f := range payload.Fields() {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return "", nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`,
		field, path.Base(attachment.URL)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(media); err != nil {
		return "", nil, fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := c.newAPIRequest(ctx, http.MethodPost, "/messages/", cred, &body)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	transcript, err := c.do(req, fmt.Sprintf("multipart message with %s from %s", field, attachment.URL))
	if err != nil {
		return "", transcript, err
	}

	return extractMessageUUID(transcript)
}

// CheckNumbers asks the gateway which of the given phone numbers have
// WhatsApp, synchronously. The result is keyed by phone number.
func (c *Client) CheckNumbers(ctx context.Context, cred models.Credential, number string, addresses []string) (map[string]LookupResult, error) {
	query := url.Values{}
	query.Set("wait", "true")
	query.Set("number", number)
	for _, addr := range addresses {
		query.Add("address", addr)
	}

	req, err := c.newAPIRequest(ctx, http.MethodGet,
		"/numbers/check/?"+query.Encode(), cred, nil)
	if err != nil {
		return nil, err
	}

	transcript, err := c.do(req, "")
	if err != nil {
		return nil, err
	}

	var results map[string]LookupResult
	if err := json.Unmarshal([]byte(transcript.ResponseBody), &results); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	return results, nil
}

// ListNumbers returns the WhatsApp numbers available to the credential.
func (c *Client) ListNumbers(ctx context.Context, cred models.Credential) ([]Number, error) {
	var results struct {
		Results []Number `json:"results"`
	}
	if err := c.getJSON(ctx, cred, "/numbers/", &results); err != nil {
		return nil, err
	}
	return results.Results, nil
}

// ListGroups returns the WhatsApp groups available to the credential.
func (c *Client) ListGroups(ctx context.Context, cred models.Credential) ([]Group, error) {
	var results struct {
		Results []Group `json:"results"`
	}
	if err := c.getJSON(ctx, cred, "/groups/", &results); err != nil {
		return nil, err
	}
	return results.Results, nil
}

// ValidateToken checks a credential against the gateway by listing its
// numbers.
func (c *Client) ValidateToken(ctx context.Context, cred models.Credential) error {
	_, err := c.ListNumbers(ctx, cred)
	return err
}

func (c *Client) getJSON(ctx context.Context, cred models.Credential, endpoint string, out interface{}) error {
	req, err := c.newAPIRequest(ctx, http.MethodGet, endpoint, cred, nil)
	if err != nil {
		return err
	}

	transcript, err := c.do(req, "")
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(transcript.ResponseBody), out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) newAPIRequest(ctx context.Context, method, endpoint string, cred models.Credential, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", cred.AuthorizationHeader())
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// do executes the request and captures the transcript. Non-2xx responses
// return a gateway error wrapping a StatusError so callers always have
// the full exchange for diagnostics.
func (c *Client) do(req *http.Request, requestBody string) (*Transcript, error) {
	transcript := &Transcript{
		Method:      req.Method,
		URL:         req.URL.String(),
		RequestBody: requestBody,
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transcript, apperrors.Wrap(err, apperrors.ErrCodeGatewayAPI,
			fmt.Sprintf("%s %s failed", req.Method, req.URL.Path))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transcript, fmt.Errorf("failed to read response body: %w", err)
	}

	transcript.StatusCode = resp.StatusCode
	transcript.ResponseBody = string(body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transcript, apperrors.NewGatewayError(req.URL.Path, resp.StatusCode,
			&StatusError{Transcript: *transcript})
	}
	return transcript, nil
}

type fetchError struct {
	url    string
	status int
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("fetching attachment %s returned %d", e.url, e.status)
}

// fetchAttachment downloads attachment bytes for forwarding. Size and
// content type are whatever the origin returns.
func (c *Client) fetchAttachment(ctx context.Context, attachment models.Attachment) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create attachment request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ErrCodeMediaDownload, "attachment fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", apperrors.Wrap(
			&fetchError{url: attachment.URL, status: resp.StatusCode},
			apperrors.ErrCodeMediaDownload, "attachment fetch failed")
	}

	media, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read attachment body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = attachment.ContentType
	}
	return media, contentType, nil
}

func extractMessageUUID(transcript *Transcript) (string, *Transcript, error) {
	var result struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal([]byte(transcript.ResponseBody), &result); err != nil {
		return "", transcript, apperrors.Wrap(err, apperrors.ErrCodeProtocolViolation,
			"failed to decode message response")
	}
	if result.UUID == "" {
		return "", transcript, apperrors.NewProtocolError("uuid",
			"unable to read external message id from gateway response")
	}
	return result.UUID, transcript, nil
}
