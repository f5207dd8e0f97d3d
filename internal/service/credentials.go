package service

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "warelay/internal/errors"
	"warelay/internal/models"
)

// LoadCredential reads a channel's stored authorization out of its
// config blob. The blob holds exactly one credential shape: a static
// api_token, or an authorization object with an optional expires_at.
// Missing required keys are errors, never silently defaulted.
func LoadCredential(ch *models.Channel) (models.Credential, error) {
	if raw, ok := ch.Config[models.ConfigAuthorization]; ok {
		blob, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode authorization: %w", err)
		}

		var authorization models.Authorization
		if err := json.Unmarshal(blob, &authorization); err != nil {
			return nil, apperrors.NewConfigError(models.ConfigAuthorization,
				fmt.Sprintf("malformed authorization for channel %s", ch.UUID))
		}
		if authorization.AccessToken == "" {
			return nil, apperrors.NewConfigError(models.ConfigAuthorization,
				fmt.Sprintf("authorization missing access_token for channel %s", ch.UUID))
		}

		cred := models.OAuthToken{Authorization: authorization}
		if expiresAt, ok := ch.Config[models.ConfigExpiresAt].(string); ok {
			parsed, err := time.Parse(time.RFC3339, expiresAt)
			if err != nil {
				return nil, apperrors.NewConfigError(models.ConfigExpiresAt,
					fmt.Sprintf("malformed expires_at for channel %s: %v", ch.UUID, err))
			}
			cred.ExpiresAt = parsed
		}
		return cred, nil
	}

	if token, ok := ch.Config[models.ConfigAPIToken].(string); ok && token != "" {
		return models.StaticToken{Token: token}, nil
	}

	return nil, apperrors.NewConfigError(models.ConfigAPIToken,
		fmt.Sprintf("channel %s has no stored credential", ch.UUID))
}

// StoreCredential writes a credential into the channel's config blob,
// leaving unrelated keys (webhook ids, group uuid) untouched. Callers
// persist the channel afterwards.
func StoreCredential(ch *models.Channel, cred models.Credential) error {
	switch c := cred.(type) {
	case models.StaticToken:
		ch.Config[models.ConfigAPIToken] = c.Token
	case models.OAuthToken:
		// round trip through JSON so the blob stays plain data
		blob, err := json.Marshal(c.Authorization)
		if err != nil {
			return fmt.Errorf("failed to encode authorization: %w", err)
		}
		var raw map[string]interface{}
		if err := json.Unmarshal(blob, &raw); err != nil {
			return fmt.Errorf("failed to decode authorization: %w", err)
		}
		ch.Config[models.ConfigAuthorization] = raw
		if !c.ExpiresAt.IsZero() {
			ch.Config[models.ConfigExpiresAt] = c.ExpiresAt.UTC().Format(time.RFC3339)
		}
	default:
		return fmt.Errorf("unknown credential type %T", cred)
	}
	return nil
}

// CredentialExpiresAt returns the stored token expiry, or false for
// static-token channels that never expire.
func CredentialExpiresAt(ch *models.Channel) (time.Time, bool) {
	expiresAt, ok := ch.Config[models.ConfigExpiresAt].(string)
	if !ok {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
