package graph

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// defaultScope requests all application permissions granted to the app
// registration. App-only (client credential) access uses the .default
// scope instead of per-resource scopes.
const defaultScope = "https://graph.microsoft.com/.default"

// tokenEndpoint is the v2.0 token URL for a tenant.
const tokenEndpoint = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

// AppTokenSource acquires app-only bearer tokens via the OAuth2 client
// credential flow. Tokens are cached by the underlying oauth2 source and
// renewed automatically before expiry; Invalidate drops the cache so the
// next Token call performs a fresh grant. The crawler and orchestrator are
// single-threaded (one caller goroutine), so no locking is needed here.
type AppTokenSource struct {
	cfg    *clientcredentials.Config
	logger *slog.Logger

	src oauth2.TokenSource
}

// NewAppTokenSource creates a token source for the given Azure AD tenant
// and app registration.
func NewAppTokenSource(tenantID, clientID, clientSecret string, logger *slog.Logger) *AppTokenSource {
	if logger == nil {
		logger = slog.Default()
	}

	return &AppTokenSource{
		cfg: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     fmt.Sprintf(tokenEndpoint, tenantID),
			Scopes:       []string{defaultScope},
		},
		logger: logger,
	}
}

// Token returns a valid access token, fetching or renewing as needed.
func (s *AppTokenSource) Token() (string, error) {
	if s.src == nil {
		s.src = s.cfg.TokenSource(context.Background())
	}

	tok, err := s.src.Token()
	if err != nil {
		s.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("graph: obtaining token: %w", err)
	}

	s.logger.Debug("token acquired",
		slog.Time("expiry", tok.Expiry),
		slog.Bool("valid", tok.Valid()),
	)

	return tok.AccessToken, nil
}

// Invalidate discards the cached token source. The client calls this once
// after a 401 so the retried request carries a freshly granted token.
func (s *AppTokenSource) Invalidate() {
	s.logger.Info("invalidating cached token")
	s.src = nil
}

// StaticTokenSource returns a TokenSource that always yields tok.
// Useful for tests and for callers that manage tokens externally.
func StaticTokenSource(tok string) TokenSource {
	return staticToken(tok)
}

type staticToken string

func (t staticToken) Token() (string, error) { return string(t), nil }

func (t staticToken) Invalidate() {}
