// ABOUTME: Remote source fetcher
// ABOUTME: Downloads http(s) sources into a hash-keyed local cache
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fetcher resolves remote source specs to local files
type Fetcher struct {
	cacheDir string
	client   *http.Client
	logger   *slog.Logger
}

// New creates a fetcher caching under cacheDir
func New(cacheDir string, timeout time.Duration, logger *slog.Logger) (*Fetcher, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With(slog.String("component", "fetch")),
	}, nil
}

// IsRemote reports whether spec is an http(s) URL
func IsRemote(spec string) bool {
	return strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://")
}

// Resolve returns a local path for spec, downloading remote sources
func (f *Fetcher) Resolve(ctx context.Context, spec string) (string, error) {
	if !IsRemote(spec) {
		return spec, nil
	}
	return f.Download(ctx, spec)
}

// Download fetches rawURL into the cache unless already present
func (f *Fetcher) Download(ctx context.Context, rawURL string) (string, error) {
	cachePath := f.CachePath(rawURL)

	if _, err := os.Stat(cachePath); err == nil {
		f.logger.Debug("source cache hit", slog.String("path", cachePath))
		return cachePath, nil
	}

	f.logger.Info("downloading source", slog.String("url", rawURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source download failed: HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.cacheDir, "partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save source: %w", err)
	}

	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move source into cache: %w", err)
	}

	f.logger.Info("source saved", slog.String("path", cachePath), slog.Int64("bytes", n))
	return cachePath, nil
}

// CachePath is where rawURL is stored. The extension is kept so format
// dispatch still works on the cached copy.
func (f *Fetcher) CachePath(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, fmt.Sprintf("%x%s", hash[:8], extension(rawURL)))
}

func extension(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	return strings.ToLower(filepath.Ext(path))
}

// Cleanup removes the cache directory
func (f *Fetcher) Cleanup() error {
	return os.RemoveAll(f.cacheDir)
}
