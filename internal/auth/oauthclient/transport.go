package oauthclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBody = 1 << 20

// newHTTPClient returns a client whose connect and read phases are each
// bounded by timeout. Every request carries the Origin header and the
// client's Basic credentials.
func newHTTPClient(timeout time.Duration, origin, clientID, clientSecret string) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	base.TLSHandshakeTimeout = timeout
	base.ResponseHeaderTimeout = timeout

	return &http.Client{
		Transport: &tokenTransport{
			origin:        origin,
			authorization: basicAuth(clientID, clientSecret),
			base:          base,
		},
		Timeout: 2 * timeout,
	}
}

// tokenTransport decorates token requests and records the status of the
// response in the request's statusRecorder, if any.
type tokenTransport struct {
	origin        string
	authorization string
	base          http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Origin", t.origin)
	req.Header.Set("Authorization", t.authorization)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	rec, ok := req.Context().Value(statusRecorderKey{}).(*statusRecorder)
	if !ok {
		return resp, nil
	}
	rec.status = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		rec.body = body
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, nil
}

type statusRecorderKey struct{}

// statusRecorder holds the last token endpoint status seen for one exchange.
type statusRecorder struct {
	status int
	body   []byte
}

func withStatusRecorder(ctx context.Context) (context.Context, *statusRecorder) {
	rec := &statusRecorder{}
	return context.WithValue(ctx, statusRecorderKey{}, rec), rec
}

// basicAuth builds the header value from percent-encoded credentials.
// Space becomes %20 and "/" is kept, so servers decoding with
// decodeURIComponent recover the original values.
func basicAuth(clientID, clientSecret string) string {
	creds := quote(clientID) + ":" + quote(clientSecret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

func quote(s string) string {
	q := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	return strings.ReplaceAll(q, "%2F", "/")
}
