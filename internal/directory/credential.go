package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// CredentialProvider acquires app-only tokens for Microsoft Graph with the
// client credentials grant. Tokens are cached and refreshed by oauth2 shortly
// before expiry; the provider is safe for concurrent use.
type CredentialProvider struct {
	settings Settings
	config   *clientcredentials.Config
	base     *http.Client
	source   oauth2.TokenSource
}

// CredentialOption customizes a CredentialProvider
type CredentialOption func(*CredentialProvider)

// WithBaseClient sets the HTTP client used for both token and Graph calls
func WithBaseClient(client *http.Client) CredentialOption {
	return func(p *CredentialProvider) {
		if client != nil {
			p.base = client
		}
	}
}

// NewCredentialProvider validates settings and prepares the token source
func NewCredentialProvider(settings Settings, opts ...CredentialOption) (*CredentialProvider, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	settings = settings.WithDefaults()

	scope, err := graphScope(settings.GraphBaseURL)
	if err != nil {
		return nil, err
	}

	p := &CredentialProvider{
		settings: settings,
		base:     &http.Client{Timeout: 30 * time.Second},
		config: &clientcredentials.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", settings.AuthorityHost, url.PathEscape(settings.TenantID)),
			Scopes:       []string{scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	// The token source outlives any single request, so it gets its own context
	// carrying only the base client.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, p.base)
	p.source = p.config.TokenSource(tokenCtx)

	return p, nil
}

// HTTPClient returns a client that attaches a bearer token to every request.
// It has no client timeout of its own; Graph calls are bounded by the caller's
// context. The base client timeout still applies to token fetches.
func (p *CredentialProvider) HTTPClient() *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: p.source,
			Base:   p.base.Transport,
		},
	}
}

// Token returns a valid access token, fetching one if the cache is empty or stale
func (p *CredentialProvider) Token() (*oauth2.Token, error) {
	return p.source.Token()
}

// Settings returns the effective settings, defaults applied
func (p *CredentialProvider) Settings() Settings {
	return p.settings
}

// TokenURL returns the token endpoint the provider authenticates against
func (p *CredentialProvider) TokenURL() string {
	return p.config.TokenURL
}

// graphScope derives the ".default" scope from the Graph base URL
func graphScope(graphBaseURL string) (string, error) {
	u, err := url.Parse(graphBaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid graph base url: %w", err)
	}
	return fmt.Sprintf("%s://%s/.default", u.Scheme, u.Host), nil
}
