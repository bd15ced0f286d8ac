package source

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// maxBodySize bounds the size of upstream index pages and API responses.
const maxBodySize = 16 << 20

// NewHTTPClient returns a pooled client for talking to upstream channels.
// rootCAs replaces the system trust roots for this client only; nil keeps the
// system roots.
func NewHTTPClient(timeout time.Duration, rootCAs *x509.CertPool) *http.Client {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = timeout
	if rootCAs != nil {
		transport := client.Transport.(*http.Transport)
		transport.TLSClientConfig = &tls.Config{
			RootCAs:    rootCAs,
			MinVersion: tls.VersionTLS12,
		}
	}
	return client
}

type statusError struct {
	url        string
	statusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code: %d", e.url, e.statusCode)
}

// fetchText downloads url and returns its body. Any transport failure or
// non-2xx status is an ErrUpstreamUnavailable.
func fetchText(ctx context.Context, client *http.Client, name, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%s: invalid url %s: %w", name, url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", upstreamError(name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", upstreamError(name, &statusError{url: url, statusCode: resp.StatusCode})
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", upstreamError(name, err)
	}
	return string(body), nil
}
