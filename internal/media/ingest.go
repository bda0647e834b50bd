package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrIngestion wraps every failure to turn an attachment into a durable
// reference. Callers leave the session untouched when they see it.
var ErrIngestion = errors.New("media ingestion failed")

// Ingestor turns a transport attachment reference into a durable URI.
type Ingestor interface {
	Ingest(ctx context.Context, attachmentRef string) (string, error)
}

// HTTPIngestor downloads the attachment over HTTP into the uploads directory
// and returns the public URL it will be served from.
type HTTPIngestor struct {
	client        *http.Client
	uploadDir     string
	publicBaseURL string
	timeout       time.Duration
}

// NewHTTPIngestor builds an ingestor storing files under uploadDir/voices.
func NewHTTPIngestor(uploadDir, publicBaseURL string, timeout time.Duration) *HTTPIngestor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPIngestor{
		client:        &http.Client{Timeout: timeout},
		uploadDir:     uploadDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		timeout:       timeout,
	}
}

// Ingest fetches the attachment and writes it to disk under a fresh name.
// The partial file is removed on any failure.
func (g *HTTPIngestor) Ingest(ctx context.Context, attachmentRef string) (string, error) {
	if attachmentRef == "" {
		return "", fmt.Errorf("%w: empty attachment reference", ErrIngestion)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachmentRef, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrIngestion, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch attachment: %v", ErrIngestion, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: fetch attachment: status %d", ErrIngestion, resp.StatusCode)
	}

	dir := filepath.Join(g.uploadDir, "voices")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create upload dir: %v", ErrIngestion, err)
	}
	name := uuid.NewString() + ".ogg"
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: create file: %v", ErrIngestion, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: write file: %v", ErrIngestion, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: close file: %v", ErrIngestion, err)
	}

	return g.publicBaseURL + "/uploads/voices/" + name, nil
}
