package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/farxc/vintage-cohorts/internal/logger"
)

const userAgent = "vintage-cohorts/1.0"

// FetchFile downloads a remote vintage export into destDir and returns the local path.
// The file keeps the extension of the URL path so callers can tell a zip from a csv.
func FetchFile(ctx context.Context, client *http.Client, rawURL, destDir string, appLogger *logger.Logger) (string, error) {
	const component = "Downloader"

	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download url %q: %w", rawURL, err)
	}

	if destDir == "" {
		destDir = os.TempDir()
	}
	if err := os.MkdirAll(destDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", destDir, err)
	}

	appLogger.Debug(component, "Starting download: url=%s", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		appLogger.Warn(component, "Non-OK HTTP response: url=%s status=%s statusCode=%d", rawURL, resp.Status, resp.StatusCode)
		return "", fmt.Errorf("unexpected status %s downloading %s", resp.Status, rawURL)
	}

	out, err := os.CreateTemp(destDir, "vintage-*"+path.Ext(parsed.Path))
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	bytesWritten, err := io.Copy(out, resp.Body)
	if err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to write data to file: %w", err)
	}

	outputPath := filepath.Clean(out.Name())
	appLogger.Info(component, "Download completed: url=%s path=%s size=%d bytes", rawURL, outputPath, bytesWritten)
	return outputPath, nil
}
