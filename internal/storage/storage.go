package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const reportPrefix = "reports"

// Client abstracts the subset of S3 operations the tool needs.
type Client interface {
	UploadFile(ctx context.Context, key, filePath string, contentType string) error
	GetDownloadLink(ctx context.Context, key string) string
}

var (
	defaultClient Client
)

// SetDefaultClient sets the global storage client used by the application.
func SetDefaultClient(c Client) {
	defaultClient = c
}

// DefaultClient returns the global storage client if one has been configured.
func DefaultClient() Client {
	return defaultClient
}

// ReportKey is the object key a report of the given run is stored under.
func ReportKey(runID, filePath string) string {
	return path.Join(reportPrefix, runID, filepath.Base(filePath))
}

// UploadReport stores a written report file and returns its object key.
func UploadReport(ctx context.Context, c Client, runID, filePath string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("upload report %s: storage client not initialised", filePath)
	}
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("upload report %s: empty run id", filePath)
	}
	key := ReportKey(runID, filePath)
	if err := c.UploadFile(ctx, key, filePath, ""); err != nil {
		return "", err
	}
	return key, nil
}
