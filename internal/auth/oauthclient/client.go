package oauthclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/shion-ptpe/oauth/internal/auth"
	"github.com/shion-ptpe/oauth/internal/logger"
)

const (
	DefaultTimeout = 3 * time.Second

	maxErrorBody = 512
)

var (
	ErrMissingClientID     = errors.New("oauthclient: missing client ID")
	ErrMissingClientSecret = errors.New("oauthclient: missing client secret")
	ErrMissingEndpoint     = errors.New("oauthclient: missing authorization or token endpoint")
	ErrMissingRedirectURL  = errors.New("oauthclient: missing redirect URL")
)

type Config struct {
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Origin is sent as the Origin header of token requests. Empty means
	// the scheme and host of TokenURL.
	Origin string

	// Timeout bounds both connecting to and reading from the token
	// endpoint. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client is the confidential OAuth2 client of one authorization server.
type Client struct {
	oauthConfig    *oauth2.Config
	exchangeConfig *oauth2.Config
	httpClient     *http.Client
}

var _ auth.Exchanger = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, ErrMissingClientID
	}
	if cfg.ClientSecret == "" {
		return nil, ErrMissingClientSecret
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.RedirectURL == "" {
		return nil, ErrMissingRedirectURL
	}

	origin := cfg.Origin
	if origin == "" {
		var err error
		origin, err = originOf(cfg.TokenURL)
		if err != nil {
			return nil, err
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	endpoint := oauth2.Endpoint{
		AuthURL:  cfg.AuthURL,
		TokenURL: cfg.TokenURL,
	}

	return &Client{
		oauthConfig: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
			Endpoint:    endpoint,
		},
		// Credentials travel only in the Authorization header set by the
		// transport, so the exchange config carries none.
		exchangeConfig: &oauth2.Config{
			RedirectURL: cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoint.AuthURL,
				TokenURL:  endpoint.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: newHTTPClient(timeout, origin, cfg.ClientID, cfg.ClientSecret),
	}, nil
}

// Discover resolves the authorization and token endpoints of an OpenID
// Connect issuer.
func Discover(ctx context.Context, issuer string) (oauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("oauthclient: discover %s: %w", issuer, err)
	}

	ep := provider.Endpoint()
	logger.Info("oidc discovery complete", map[string]any{
		"issuer":         issuer,
		"authorization":  ep.AuthURL,
		"token_endpoint": ep.TokenURL,
	})
	return ep, nil
}

// AuthCodeURL builds the authorization URL: response_type=code, client_id,
// redirect_uri, scope and state, plus an S256 challenge when verifier is set.
func (c *Client) AuthCodeURL(state string, verifier string) string {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return c.oauthConfig.AuthCodeURL(state, opts...)
}

// Exchange posts the authorization code to the token endpoint using HTTP
// Basic client authentication. Any status other than 200 is a
// *auth.StatusError, even when the body holds a token.
func (c *Client) Exchange(ctx context.Context, code string, verifier string) (*auth.Grant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	ctx, rec := withStatusRecorder(ctx)

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := c.exchangeConfig.Exchange(ctx, code, opts...)
	if rec.status != 0 && rec.status != http.StatusOK {
		return nil, &auth.StatusError{
			StatusCode: rec.status,
			Body:       truncate(string(rec.body), maxErrorBody),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("oauthclient: token exchange failed: %w", err)
	}

	scope, _ := token.Extra("scope").(string)

	return &auth.Grant{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Scope:       scope,
		SubjectID:   stringClaim(token.Extra("user_id")),
	}, nil
}

// stringClaim accepts both string and numeric identifiers.
func stringClaim(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("oauthclient: parse token URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("oauthclient: token URL %q is not absolute", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
