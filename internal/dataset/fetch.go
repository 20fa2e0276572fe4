package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"segmenter/internal/core"
	"segmenter/internal/logger"
)

// ErrFetch wraps every failure to download the remote dataset.
var ErrFetch = errors.New("dataset fetch failed")

// maxDatasetBytes is the default bound on the downloaded body size.
const maxDatasetBytes = 16 << 20

// Loader reads the local dataset, falling back to a one-time download.
type Loader struct {
	Path     string
	URL      string
	Client   *http.Client
	MaxBytes int64 // Larger downloads are rejected; 0 uses 16 MiB
}

// NewLoader creates a loader with an HTTP client using the given timeout.
func NewLoader(path, url string, timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		Path:   path,
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Load returns the customers in Path. When Path does not exist the dataset is
// downloaded from URL, validated, written to Path, and then returned.
// A fetch failure is terminal; there is no further fallback.
func (l *Loader) Load(ctx context.Context) ([]core.Customer, error) {
	if _, err := os.Stat(l.Path); err == nil {
		logger.Debug("Loading local dataset", "path", l.Path)
		return ReadFile(l.Path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat dataset %s: %w", l.Path, err)
	}

	if l.URL == "" {
		return nil, fmt.Errorf("%w: %s does not exist and no dataset URL is configured", ErrFetch, l.Path)
	}

	logger.Info("Local dataset not found, fetching", "path", l.Path, "url", l.URL)
	body, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}

	customers, err := ReadCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: downloaded file is not a valid dataset: %v", ErrFetch, err)
	}

	if err := persist(l.Path, body); err != nil {
		return nil, err
	}
	logger.Info("Dataset saved", "path", l.Path, "records", len(customers))
	return customers, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL %s: %v", ErrFetch, l.URL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get %s: %v", ErrFetch, l.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status code %d", ErrFetch, l.URL, resp.StatusCode)
	}

	limit := l.MaxBytes
	if limit <= 0 {
		limit = maxDatasetBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body from %s: %v", ErrFetch, l.URL, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrFetch, l.URL, limit)
	}
	return body, nil
}

// persist writes through a temp file so a partial download never replaces the dataset.
func persist(path string, body []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dataset directory %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save dataset %s: %w", path, err)
	}
	return nil
}
