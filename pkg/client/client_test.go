package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linuxAmd64 = manifest.MustParsePlatform("linux-amd64")

func TestListSources(t *testing.T) {
	testData := []SourceInfo{{Name: "ninja", Type: "github", Platforms: []string{"linux-amd64"}}}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/sources", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(testData))
	}))
	defer ts.Close()
	sources, err := New(ts.URL).ListSources(context.Background())
	require.NoError(t, err)
	require.Equal(t, testData, sources)
}

func TestGetLatest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sources/ninja/latest", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(&manifest.LatestResponse{Source: "ninja", Version: "1.12.1"}))
	}))
	defer ts.Close()
	version, err := New(ts.URL).GetLatest(context.Background(), "ninja")
	require.NoError(t, err)
	require.Equal(t, "1.12.1", version)
}

func TestGetManifest(t *testing.T) {
	testData := &manifest.FetchManifest{
		URL:  []string{"https://example.com/a.zip", "https://example.com/b.zip"},
		Name: []string{"a.zip", "b.zip"},
		Ext:  ".zip",
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sources/sdk/versions/8.0.100/platforms/linux-amd64", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(testData))
	}))
	defer ts.Close()
	m, err := New(ts.URL).GetManifest(context.Background(), "sdk", "8.0.100", linuxAmd64)
	require.NoError(t, err)
	require.Equal(t, testData, m)
}

func TestErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": "upstream unavailable: ninja: 503"}`))
	}))
	defer ts.Close()
	_, err := New(ts.URL).GetLatest(context.Background(), "ninja")
	var errResp *ErrorResponse
	require.ErrorAs(t, err, &errResp)
	require.Equal(t, http.StatusBadGateway, errResp.StatusCode)
	require.Equal(t, "upstream unavailable: ninja: 503", errResp.ErrorMsg)
}

func TestBatchLatest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sources/_latest", r.URL.Path)
		var req manifest.BatchLatestRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"ninja", "cmake"}, req.Sources)
		require.NoError(t, json.NewEncoder(w).Encode(&manifest.BatchLatestResponse{
			Versions: map[string]string{"ninja": "1.12.1"},
			Errors:   map[string]string{"cmake": "no version found"},
		}))
	}))
	defer ts.Close()
	res, err := New(ts.URL).BatchLatest(context.Background(), "ninja", "cmake")
	require.NoError(t, err)
	require.Equal(t, "1.12.1", res.Versions["ninja"])
	require.Equal(t, "no version found", res.Errors["cmake"])
}

func TestInstalled(t *testing.T) {
	installed := ""
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sources/ninja/installed/linux-amd64", r.URL.Path)
		if r.Method == http.MethodPut {
			assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			installed = req["version"]
		}
		require.NoError(t, json.NewEncoder(w).Encode(&manifest.InstalledVersion{Source: "ninja", Platform: "linux-amd64", Version: installed}))
	}))
	defer ts.Close()
	c := New(ts.URL)

	version, err := c.GetInstalled(context.Background(), "ninja", linuxAmd64)
	require.NoError(t, err)
	require.Equal(t, "", version)

	require.NoError(t, c.RecordInstalled(context.Background(), "admin-token", "ninja", linuxAmd64, "1.12.1"))

	version, err = c.GetInstalled(context.Background(), "ninja", linuxAmd64)
	require.NoError(t, err)
	require.Equal(t, "1.12.1", version)
}
