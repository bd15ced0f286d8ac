// Package batch downloads the artifacts of a fetch manifest into a single
// tar.gz archive.
package batch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type Downloader struct {
	client *retryablehttp.Client
}

// NewDownloader wraps httpClient in a retrying client. A nil httpClient uses
// the retryablehttp default.
func NewDownloader(log *logrus.Logger, httpClient *http.Client) *Downloader {
	client := retryablehttp.NewClient()
	client.Logger = nil
	if log != nil {
		client.Logger = log.WithField("component", "download")
	}
	if httpClient != nil {
		c := *httpClient
		client.HTTPClient = &c
	}
	client.HTTPClient.Timeout = 3 * time.Minute
	return &Downloader{client: client}
}

// entryName returns the archive file name of the i-th manifest url.
func entryName(m *manifest.FetchManifest, i int) (string, error) {
	if name := m.FileName(i); name != "" {
		return path.Base(name), nil
	}
	u, err := url.Parse(m.URL[i])
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "", fmt.Errorf("could not derive file name from %s", m.URL[i])
	}
	return name, nil
}

// downloadToTemp stores the response body in a temp file so the tar header
// can carry the exact size even without a Content-Length.
func (d *Downloader) downloadToTemp(ctx context.Context, fileURL string) (*os.File, int64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	tmpFile, err := os.CreateTemp("", "artifact-*")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	n, err := io.Copy(tmpFile, resp.Body)
	if err == nil && resp.ContentLength >= 0 && n != resp.ContentLength {
		err = fmt.Errorf("unexpected content length: %d (should be %d)", n, resp.ContentLength)
	}
	if err == nil {
		_, err = tmpFile.Seek(0, io.SeekStart)
	}
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, 0, err
	}
	return tmpFile, n, nil
}

func (d *Downloader) addFile(ctx context.Context, tarWriter *tar.Writer, fileName, fileURL string) error {
	tmpFile, size, err := d.downloadToTemp(ctx, fileURL)
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	err = tarWriter.WriteHeader(&tar.Header{
		Name: fileName,
		Mode: 0o755,
		Size: size,
	})
	if err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := io.Copy(tarWriter, tmpFile); err != nil {
		return fmt.Errorf("failed to write tar file: %w", err)
	}
	return nil
}

// DownloadFilesAndTarGz downloads every url of m into outPath (a temp file
// when empty) below <packageName>/<version>/ and returns the archive path
// and its sha256 checksum. The archive is removed if any download fails.
func (d *Downloader) DownloadFilesAndTarGz(ctx context.Context, packageName, version string, m *manifest.FetchManifest, outPath string) (string, string, error) {
	if err := m.Validate(); err != nil {
		return "", "", err
	}
	var (
		tgzFile *os.File
		err     error
	)
	if outPath == "" {
		tgzFile, err = os.CreateTemp("", packageName+"-*.tar.gz")
	} else {
		tgzFile, err = os.Create(outPath)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to create archive: %w", err)
	}

	tgzHash := sha256.New()
	err = d.writeArchive(ctx, io.MultiWriter(tgzFile, tgzHash), packageName, version, m)
	if closeErr := tgzFile.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close archive: %w", closeErr)
	}
	if err != nil {
		os.Remove(tgzFile.Name())
		return "", "", err
	}
	return tgzFile.Name(), hex.EncodeToString(tgzHash.Sum(nil)), nil
}

func (d *Downloader) writeArchive(ctx context.Context, w io.Writer, packageName, version string, m *manifest.FetchManifest) error {
	gzipWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzipWriter)
	for i, fileURL := range m.URL {
		name, err := entryName(m, i)
		if err != nil {
			return err
		}
		fileName := path.Join(packageName, version, name)
		if err := d.addFile(ctx, tarWriter, fileName, fileURL); err != nil {
			return fmt.Errorf("failed to add %s to tar archive: %w", fileURL, err)
		}
	}
	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}
