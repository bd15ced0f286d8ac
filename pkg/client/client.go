// Package client talks to the HTTP front-end of the source resolver.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/hashicorp/go-cleanhttp"
)

type ErrorResponse struct {
	StatusCode int
	ErrorMsg   string `json:"error"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("unexpected status code: %d, error: %s", e.StatusCode, e.ErrorMsg)
}

type SourceInfo struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Platforms []string `json:"platforms"`
}

type Client struct {
	serverURL  string
	httpClient *http.Client
}

func New(serverURL string) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = 5 * time.Minute
	return &Client{
		serverURL:  serverURL,
		httpClient: httpClient,
	}
}

func setAuth(adminAccessToken string) func(r *http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+adminAccessToken)
	}
}

func getSourceURL(sourceName string, elem ...string) string {
	parts := []string{"api/v1/sources", url.PathEscape(sourceName)}
	for _, e := range elem {
		parts = append(parts, url.PathEscape(e))
	}
	return strings.Join(parts, "/")
}

func (c *Client) sendRequest(ctx context.Context, method, endpoint string, body io.Reader, modifyRequestFns ...func(r *http.Request)) (*http.Response, error) {
	apiEndpoint, err := url.JoinPath(c.serverURL, endpoint)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, apiEndpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json; charset=utf-8")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	for _, f := range modifyRequestFns {
		f(req)
	}
	return c.httpClient.Do(req)
}

func (c *Client) decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		errResp := ErrorResponse{StatusCode: resp.StatusCode}
		err := json.NewDecoder(resp.Body).Decode(&errResp)
		if err != nil {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return &errResp
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any, modifyRequestFns ...func(r *http.Request)) error {
	var body io.Reader
	if in != nil {
		var bodyBuffer bytes.Buffer
		if err := json.NewEncoder(&bodyBuffer).Encode(in); err != nil {
			return err
		}
		body = &bodyBuffer
	}
	resp, err := c.sendRequest(ctx, method, endpoint, body, modifyRequestFns...)
	if err != nil {
		return err
	}
	return c.decodeResponse(resp, out)
}

func (c *Client) ListSources(ctx context.Context) ([]SourceInfo, error) {
	var sources []SourceInfo
	if err := c.do(ctx, http.MethodGet, "api/v1/sources", nil, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func (c *Client) GetLatest(ctx context.Context, sourceName string) (string, error) {
	var res manifest.LatestResponse
	if err := c.do(ctx, http.MethodGet, getSourceURL(sourceName, "latest"), nil, &res); err != nil {
		return "", err
	}
	return res.Version, nil
}

func (c *Client) GetManifest(ctx context.Context, sourceName, version string, platform manifest.Platform) (*manifest.FetchManifest, error) {
	var m manifest.FetchManifest
	err := c.do(ctx, http.MethodGet, getSourceURL(sourceName, "versions", version, "platforms", platform.String()), nil, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) BatchLatest(ctx context.Context, sources ...string) (*manifest.BatchLatestResponse, error) {
	var res manifest.BatchLatestResponse
	err := c.do(ctx, http.MethodPost, "api/v1/sources/_latest", &manifest.BatchLatestRequest{Sources: sources}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetInstalled returns an empty version if nothing is recorded for the
// source and platform.
func (c *Client) GetInstalled(ctx context.Context, sourceName string, platform manifest.Platform) (string, error) {
	var res manifest.InstalledVersion
	err := c.do(ctx, http.MethodGet, getSourceURL(sourceName, "installed", platform.String()), nil, &res)
	if err != nil {
		return "", err
	}
	return res.Version, nil
}

func (c *Client) RecordInstalled(ctx context.Context, adminAccessToken, sourceName string, platform manifest.Platform, version string) error {
	body := map[string]string{"version": version}
	var res manifest.InstalledVersion
	return c.do(ctx, http.MethodPut, getSourceURL(sourceName, "installed", platform.String()), body, &res, setAuth(adminAccessToken))
}
