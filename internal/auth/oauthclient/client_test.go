package oauthclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/shion-ptpe/oauth/internal/auth"
	"github.com/shion-ptpe/oauth/internal/auth/oauthclient"
)

func testConfig(tokenURL string) oauthclient.Config {
	return oauthclient.Config{
		AuthURL:      "https://auth.example.com/authorize",
		TokenURL:     tokenURL,
		ClientID:     "my client",
		ClientSecret: "p@ss:word",
		RedirectURL:  "https://app.example.com/oauth/callback",
		Scopes:       []string{"read", "write"},
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	valid := testConfig("https://auth.example.com/token")

	tests := []struct {
		name   string
		mutate func(c *oauthclient.Config)
		err    error
	}{
		{"missing client id", func(c *oauthclient.Config) { c.ClientID = "" }, oauthclient.ErrMissingClientID},
		{"missing secret", func(c *oauthclient.Config) { c.ClientSecret = "" }, oauthclient.ErrMissingClientSecret},
		{"missing token url", func(c *oauthclient.Config) { c.TokenURL = "" }, oauthclient.ErrMissingEndpoint},
		{"missing redirect", func(c *oauthclient.Config) { c.RedirectURL = "" }, oauthclient.ErrMissingRedirectURL},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tc.mutate(&cfg)
			c, err := oauthclient.New(cfg)
			require.ErrorIs(t, err, tc.err)
			require.Nil(t, c)
		})
	}

	t.Run("relative token url", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.TokenURL = "/token"
		_, err := oauthclient.New(cfg)
		require.Error(t, err)
	})
}

func TestClient_AuthCodeURL(t *testing.T) {
	t.Parallel()

	c, err := oauthclient.New(testConfig("https://auth.example.com/token"))
	require.NoError(t, err)

	u, err := url.Parse(c.AuthCodeURL("S1", ""))
	require.NoError(t, err)
	require.Equal(t, "auth.example.com", u.Host)
	require.Equal(t, "/authorize", u.Path)

	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "read write", q.Get("scope"))
	require.Equal(t, "my client", q.Get("client_id"))
	require.Equal(t, "https://app.example.com/oauth/callback", q.Get("redirect_uri"))
	require.Equal(t, "S1", q.Get("state"))
	require.False(t, q.Has("code_challenge"))

	u, err = url.Parse(c.AuthCodeURL("S1", "verifier-value"))
	require.NoError(t, err)
	require.Equal(t, oauth2.S256ChallengeFromVerifier("verifier-value"), u.Query().Get("code_challenge"))
	require.Equal(t, "S256", u.Query().Get("code_challenge_method"))
}

func TestClient_Exchange(t *testing.T) {
	t.Parallel()

	t.Run("successful exchange", func(t *testing.T) {
		t.Parallel()

		var got *http.Request
		var form url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			got, form = r, r.PostForm
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "T1",
				"token_type":   "Bearer",
				"scope":        "read write",
				"user_id":      "U1",
			})
		}))
		t.Cleanup(srv.Close)

		c, err := oauthclient.New(testConfig(srv.URL + "/token"))
		require.NoError(t, err)

		grant, err := c.Exchange(context.Background(), "abc", "")
		require.NoError(t, err)
		require.Equal(t, &auth.Grant{AccessToken: "T1", TokenType: "Bearer", Scope: "read write", SubjectID: "U1"}, grant)

		require.Equal(t, http.MethodPost, got.Method)
		require.Equal(t, "/token", got.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
		require.Equal(t, srv.URL, got.Header.Get("Origin"))

		id, secret, ok := got.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "my%20client", id)
		require.Equal(t, "p%40ss%3Aword", secret)

		require.Equal(t, "authorization_code", form.Get("grant_type"))
		require.Equal(t, "abc", form.Get("code"))
		require.Equal(t, "https://app.example.com/oauth/callback", form.Get("redirect_uri"))
		require.False(t, form.Has("client_id"))
		require.False(t, form.Has("client_secret"))
		require.False(t, form.Has("code_verifier"))
	})

	t.Run("credentials keep slashes and encode spaces", func(t *testing.T) {
		t.Parallel()

		var id, secret string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, secret, _ = r.BasicAuth()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"T1","user_id":"U1"}`))
		}))
		t.Cleanup(srv.Close)

		cfg := testConfig(srv.URL + "/token")
		cfg.ClientID = "a b/c"
		cfg.ClientSecret = "x+y"
		c, err := oauthclient.New(cfg)
		require.NoError(t, err)

		_, err = c.Exchange(context.Background(), "abc", "")
		require.NoError(t, err)
		require.Equal(t, "a%20b/c", id)
		require.Equal(t, "x%2By", secret)
	})

	t.Run("origin override and pkce verifier", func(t *testing.T) {
		t.Parallel()

		var origin string
		var form url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			origin, form = r.Header.Get("Origin"), r.PostForm
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"T1","token_type":"Bearer","user_id":42}`))
		}))
		t.Cleanup(srv.Close)

		cfg := testConfig(srv.URL + "/token")
		cfg.Origin = "https://app.example.com"
		c, err := oauthclient.New(cfg)
		require.NoError(t, err)

		grant, err := c.Exchange(context.Background(), "abc", "verifier-value")
		require.NoError(t, err)
		require.Equal(t, "42", grant.SubjectID)
		require.Equal(t, "https://app.example.com", origin)
		require.Equal(t, "verifier-value", form.Get("code_verifier"))
	})

	t.Run("non-success status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"server_error"}`))
		}))
		t.Cleanup(srv.Close)

		c, err := oauthclient.New(testConfig(srv.URL + "/token"))
		require.NoError(t, err)

		_, err = c.Exchange(context.Background(), "abc", "")
		var statusErr *auth.StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
		require.Contains(t, statusErr.Body, "server_error")
	})

	for _, status := range []int{http.StatusCreated, http.StatusAccepted, http.StatusNoContent} {
		status := status
		t.Run("2xx other than 200: "+http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				if status != http.StatusNoContent {
					_, _ = w.Write([]byte(`{"access_token":"T1","token_type":"Bearer","user_id":"U1"}`))
				}
			}))
			t.Cleanup(srv.Close)

			c, err := oauthclient.New(testConfig(srv.URL + "/token"))
			require.NoError(t, err)

			grant, err := c.Exchange(context.Background(), "abc", "")
			require.Nil(t, grant)
			var statusErr *auth.StatusError
			require.ErrorAs(t, err, &statusErr)
			require.Equal(t, status, statusErr.StatusCode)
		})
	}

	t.Run("error body with status 200", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		}))
		t.Cleanup(srv.Close)

		c, err := oauthclient.New(testConfig(srv.URL + "/token"))
		require.NoError(t, err)

		_, err = c.Exchange(context.Background(), "abc", "")
		require.Error(t, err)
		var statusErr *auth.StatusError
		require.NotErrorAs(t, err, &statusErr)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":`))
		}))
		t.Cleanup(srv.Close)

		c, err := oauthclient.New(testConfig(srv.URL + "/token"))
		require.NoError(t, err)

		_, err = c.Exchange(context.Background(), "abc", "")
		require.Error(t, err)
		var statusErr *auth.StatusError
		require.NotErrorAs(t, err, &statusErr)
	})

	t.Run("slow server times out", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(func() {
			close(release)
			srv.Close()
		})

		cfg := testConfig(srv.URL + "/token")
		cfg.Timeout = 100 * time.Millisecond
		c, err := oauthclient.New(cfg)
		require.NoError(t, err)

		start := time.Now()
		_, err = c.Exchange(context.Background(), "abc", "")
		require.Error(t, err)
		require.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/jwks",
		})
	}))
	t.Cleanup(srv.Close)

	ep, err := oauthclient.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/authorize", ep.AuthURL)
	require.Equal(t, srv.URL+"/token", ep.TokenURL)

	_, err = oauthclient.Discover(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
}
