package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"brainsim/internal/infra"
	"brainsim/internal/sqlinline"
)

// Credential names double as provider keys in integration_tokens.
const (
	GeminiAPIKey = "GEMINI_API_KEY"
	GoogleAPIKey = "GOOGLE_API_KEY"
	BFLAPIKey    = "BFL_API_KEY"
)

// Known lists the credential names the service reads.
var Known = []string{GeminiAPIKey, GoogleAPIKey, BFLAPIKey}

// Store keeps provider keys in Postgres so a deployment can rotate them
// without touching the environment.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored key for name, or "" when none is stored.
func (s *Store) Token(ctx context.Context, name string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, name)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Set stores key under name.
func (s *Store) Set(ctx context.Context, name, key string) error {
	name = strings.ToUpper(strings.TrimSpace(name))
	if !isKnown(name) {
		return fmt.Errorf("unknown credential %q", name)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s is required", name)
	}
	raw, err := json.Marshal(map[string]any{"source": "brainctl"})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, name, key, string(raw))
	return err
}

// Fill replaces empty config credentials with stored ones. Lookup errors are
// logged and leave the value empty, so the endpoint reports it as missing.
func (s *Store) Fill(ctx context.Context, cfg *infra.Config, logger *infra.Logger) {
	logger = infra.OrDiscard(logger)
	for _, slot := range []struct {
		name string
		dst  *string
	}{
		{GeminiAPIKey, &cfg.GeminiAPIKey},
		{GoogleAPIKey, &cfg.GoogleAPIKey},
		{BFLAPIKey, &cfg.BFLAPIKey},
	} {
		if *slot.dst != "" {
			continue
		}
		token, err := s.Token(ctx, slot.name)
		if err != nil {
			logger.Warn().Err(err).Str("credential", slot.name).Msg("credential lookup failed")
			continue
		}
		if token != "" {
			*slot.dst = token
			logger.Info().Str("credential", slot.name).Msg("credential loaded from store")
		}
	}
}

func isKnown(name string) bool {
	for _, k := range Known {
		if k == name {
			return true
		}
	}
	return false
}
