package origin

import (
	"context"
	"log/slog"
)

// DryRunClient wraps a *Client and stubs the two mutating calls the
// reconciler drives (RefreshFromOrigin, UploadFile) to a log line, for the
// orchestrator's --dry-run mode. ResolveProjectID is left untouched since
// it's a read, used by the orchestrator directly rather than through this
// wrapper.
type DryRunClient struct {
	inner *Client
}

func NewDryRunClient(inner *Client) *DryRunClient {
	return &DryRunClient{inner: inner}
}

func (c *DryRunClient) RefreshFromOrigin(ctx context.Context, projectID int) error {
	slog.Info("dry-run: would refresh from origin", "projectId", projectID)
	return nil
}

func (c *DryRunClient) UploadFile(ctx context.Context, projectID int, localPath string, opts UploadOptions) error {
	slog.Info("dry-run: would upload file to origin", "projectId", projectID, "path", localPath)
	return nil
}
