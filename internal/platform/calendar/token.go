package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/99designs/keyring"
	"github.com/google/uuid"
	"github.com/taskflow/taskflow-api/internal/config"
	"golang.org/x/oauth2"
)

const keyringService = "taskflow-calendar"

// ErrNoToken is returned when a user never connected a calendar.
var ErrNoToken = errors.New("no calendar token for user")

// TokenProvider hands out a valid access token for a user's calendar.
type TokenProvider interface {
	Token(ctx context.Context, userID uuid.UUID) (*oauth2.Token, error)
}

// userTokenSource is an oauth2.TokenSource bound to one user.
type userTokenSource struct {
	ctx    context.Context
	tokens TokenProvider
	userID uuid.UUID
}

func (s userTokenSource) Token() (*oauth2.Token, error) {
	return s.tokens.Token(s.ctx, s.userID)
}

// OpenKeyring opens the secret store holding users' calendar tokens. With a
// directory configured it uses an encrypted file backend keyed by the client
// secret; otherwise the platform keychain.
func OpenKeyring(cfg config.CalendarConfig) (keyring.Keyring, error) {
	kc := keyring.Config{
		ServiceName:              keyringService,
		KeychainTrustApplication: true,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
		},
	}
	if cfg.KeyringDir != "" {
		kc.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
		kc.FileDir = cfg.KeyringDir
		kc.FilePasswordFunc = keyring.FixedStringPrompt(cfg.ClientSecret)
	}

	ring, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringTokenProvider stores one OAuth token per user in a keyring and
// refreshes it through the OAuth config when it expires. Refreshed tokens
// are written back so the rotated refresh token survives restarts.
type KeyringTokenProvider struct {
	ring   keyring.Keyring
	oauth  *oauth2.Config
	logger *slog.Logger
}

var _ TokenProvider = (*KeyringTokenProvider)(nil)

// NewKeyringTokenProvider creates a token provider over ring.
func NewKeyringTokenProvider(ring keyring.Keyring, oauth *oauth2.Config, logger *slog.Logger) *KeyringTokenProvider {
	if ring == nil {
		panic("ring cannot be nil")
	}
	if oauth == nil {
		panic("oauth config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyringTokenProvider{
		ring:   ring,
		oauth:  oauth,
		logger: logger.With(slog.String("component", "calendar_tokens")),
	}
}

// OAuthConfig builds the client credentials config for the calendar API.
func OAuthConfig(cfg config.CalendarConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: cfg.TokenURL,
		},
	}
}

func tokenKey(userID uuid.UUID) string {
	return "token:" + userID.String()
}

// SaveToken stores the user's token, replacing any previous one.
func (p *KeyringTokenProvider) SaveToken(userID uuid.UUID, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := p.ring.Set(keyring.Item{Key: tokenKey(userID), Data: data}); err != nil {
		return fmt.Errorf("setting token for %s: %w", userID, err)
	}
	return nil
}

// Token implements TokenProvider.
func (p *KeyringTokenProvider) Token(ctx context.Context, userID uuid.UUID) (*oauth2.Token, error) {
	item, err := p.ring.Get(tokenKey(userID))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("getting token for %s: %w", userID, err)
	}

	var stored oauth2.Token
	if err := json.Unmarshal(item.Data, &stored); err != nil {
		return nil, fmt.Errorf("decoding token for %s: %w", userID, err)
	}

	src := oauth2.ReuseTokenSource(&stored, p.oauth.TokenSource(ctx, &stored))
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token for %s: %w", userID, err)
	}

	if tok.AccessToken != stored.AccessToken {
		if err := p.SaveToken(userID, tok); err != nil {
			p.logger.Warn("failed to persist refreshed token",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()))
		}
	}
	return tok, nil
}
