package origin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/imroc/req/v3"
)

const (
	pathResolveProject = "/api/projects/resolve"
	pathUploadDocument = "/api/documents/upload"
	pathProbeDocument  = "/api/documents/probe"
	pathDownloadDoc    = "/api/documents/download"
)

type resolveProjectResponse struct {
	ProjectID int  `json:"projectId"`
	Found     bool `json:"found"`
}

// ResolveProjectID looks up the numeric project id for a sanitized project
// display name. A (0, false, nil) result means Origin has no project by that
// name yet — the caller may retry on a later pass rather than treat it as
// an error.
func (c *Client) ResolveProjectID(ctx context.Context, name string) (int, bool, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return 0, false, fmt.Errorf("origin: resolve project auth: %w", err)
	}

	var resp resolveProjectResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("name", name).
		SetSuccessResult(&resp).
		Get(pathResolveProject)

	if err == nil && isUnauthorized(res) {
		if authErr := c.reauthenticate(ctx); authErr == nil {
			res, err = c.http.R().
				SetContext(ctx).
				SetQueryParam("name", name).
				SetSuccessResult(&resp).
				Get(pathResolveProject)
		}
	}
	if err != nil {
		return 0, false, fmt.Errorf("origin: resolve project %q: %w", name, err)
	}
	if res.IsErrorState() {
		return 0, false, fmt.Errorf("origin: resolve project %q: status %d", name, res.GetStatusCode())
	}

	if !resp.Found || resp.ProjectID <= 0 {
		return 0, false, nil
	}
	return resp.ProjectID, true, nil
}

// UploadOptions carries the parameters the spec's opaque uploadFile contract
// accepts beyond the required project id and source path.
type UploadOptions struct {
	FolderSubpath   string
	RootFolderID    string
	RequireResolved bool
}

// UploadFile pushes a local file to Origin under the resolved project and
// folder subpath. It is only ever called when EnableOriginUpload is set and
// projectID is a resolved positive id — callers are expected to check both.
func (c *Client) UploadFile(ctx context.Context, projectID int, localPath string, opts UploadOptions) error {
	if !c.config.EnableOriginUpload {
		return nil
	}
	if projectID <= 0 {
		return fmt.Errorf("origin: upload file: unresolved project id")
	}
	if opts.RequireResolved && opts.RootFolderID == "" {
		return fmt.Errorf("origin: upload file: root folder id required but missing")
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("origin: open %q: %w", localPath, err)
	}
	defer file.Close()

	if err := c.ensureAuthenticated(ctx); err != nil {
		return fmt.Errorf("origin: upload file auth: %w", err)
	}

	doUpload := func() (*req.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"projectId":     fmt.Sprintf("%d", projectID),
				"folderSubpath": opts.FolderSubpath,
				"rootFolderId":  opts.RootFolderID,
			}).
			SetFile("file", localPath).
			Post(pathUploadDocument)
	}

	res, err := doUpload()
	if err == nil && isUnauthorized(res) {
		if authErr := c.reauthenticate(ctx); authErr == nil {
			res, err = doUpload()
		}
	}
	if err != nil {
		return fmt.Errorf("origin: upload %q: %w", localPath, err)
	}
	if res.IsErrorState() {
		return fmt.Errorf("origin: upload %q: status %d", localPath, res.GetStatusCode())
	}

	return nil
}

type probeDocumentResponse struct {
	Exists bool `json:"exists"`
}

// ProbeDocument checks whether a document still exists on Origin, used by
// the webhook router when an event arrives with a documentId but no
// eventType to classify against.
func (c *Client) ProbeDocument(ctx context.Context, projectID, documentID int) (bool, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return false, fmt.Errorf("origin: probe document auth: %w", err)
	}

	var resp probeDocumentResponse
	doProbe := func() (*req.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"projectId":  fmt.Sprintf("%d", projectID),
				"documentId": fmt.Sprintf("%d", documentID),
			}).
			SetSuccessResult(&resp).
			Get(pathProbeDocument)
	}

	res, err := doProbe()
	if err == nil && isUnauthorized(res) {
		if authErr := c.reauthenticate(ctx); authErr == nil {
			res, err = doProbe()
		}
	}
	if err != nil {
		return false, fmt.Errorf("origin: probe document %d: %w", documentID, err)
	}
	if res.IsErrorState() {
		return false, fmt.Errorf("origin: probe document %d: status %d", documentID, res.GetStatusCode())
	}

	return resp.Exists, nil
}

// DownloadedDocument is a document body streamed from Origin, along with the
// filename Origin reports for it.
type DownloadedDocument struct {
	Body     io.ReadCloser
	Filename string
}

// DownloadDocument fetches a document's content from Origin for mirroring
// into the object store after a create/update webhook event.
func (c *Client) DownloadDocument(ctx context.Context, projectID, documentID int) (*DownloadedDocument, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, fmt.Errorf("origin: download document auth: %w", err)
	}

	doDownload := func() (*req.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"projectId":  fmt.Sprintf("%d", projectID),
				"documentId": fmt.Sprintf("%d", documentID),
			}).
			Get(pathDownloadDoc)
	}

	res, err := doDownload()
	if err == nil && isUnauthorized(res) {
		if authErr := c.reauthenticate(ctx); authErr == nil {
			res, err = doDownload()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("origin: download document %d: %w", documentID, err)
	}
	if res.IsErrorState() {
		res.Body.Close()
		return nil, fmt.Errorf("origin: download document %d: status %d", documentID, res.GetStatusCode())
	}

	filename := filepath.Base(res.Header.Get("x-fv-filename"))
	if filename == "" || filename == "." {
		filename = fmt.Sprintf("document-%d", documentID)
	}

	return &DownloadedDocument{Body: res.Body, Filename: filename}, nil
}
