package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/openmined/filevine-s3-sync/internal/objectstore"
	"github.com/openmined/filevine-s3-sync/internal/origin"
	"github.com/openmined/filevine-s3-sync/internal/reconcile"
)

// ProjectLookup resolves an Origin project id to the reconciler's view of
// that project. Unknown ids (a project not yet discovered from S3) are
// reported via ok=false rather than an error.
type ProjectLookup interface {
	ProjectByID(projectID int) (reconcile.Project, bool)
}

// Reconciler is the subset of *reconcile.Reconciler the router needs.
type Reconciler interface {
	Reconcile(ctx context.Context, project reconcile.Project, opts reconcile.Options) error
}

// OriginDocuments is the Origin surface the router needs beyond what
// internal/reconcile already uses.
type OriginDocuments interface {
	ProbeDocument(ctx context.Context, projectID, documentID int) (bool, error)
	DownloadDocument(ctx context.Context, projectID, documentID int) (*origin.DownloadedDocument, error)
}

// Handler implements the §4.10 classification and dispatch logic. It holds
// no HTTP-framework state; Router wraps it in a gin.Engine.
type Handler struct {
	projects ProjectLookup
	sync     Reconciler
	origin   OriginDocuments
	store    objectstore.Store
	docKeys  *DocumentKeyStore
}

// NewHandler builds a Handler. originClient may be nil when Origin
// credentials aren't configured — create/update/probe events then log and
// no-op rather than crash, per the configuration-error taxonomy.
func NewHandler(projects ProjectLookup, sync Reconciler, originClient OriginDocuments, store objectstore.Store, docKeys *DocumentKeyStore) *Handler {
	return &Handler{projects: projects, sync: sync, origin: originClient, store: store, docKeys: docKeys}
}

// Handle decodes one raw webhook body (unwrapping an API-Gateway envelope if
// present), then classifies and dispatches the event.
func (h *Handler) Handle(ctx context.Context, raw []byte) error {
	event, err := parseEvent(raw)
	if err != nil {
		return err
	}

	class := classify(event)
	slog.Debug("webhook event classified", "class", class.String(), "eventType", event.EventType, "projectId", event.ProjectID)

	switch class {
	case FullSync:
		return h.handleFullSync(ctx, event)
	case DocumentDelete:
		return h.handleDelete(ctx, event)
	case DocumentCreateOrUpdate:
		return h.handleCreateOrUpdate(ctx, event)
	case ProbeThenDecide:
		return h.handleProbe(ctx, event)
	default:
		return fmt.Errorf("webhook: unreachable classification %v", class)
	}
}

func (h *Handler) handleFullSync(ctx context.Context, event Event) error {
	project, ok := h.projects.ProjectByID(event.ProjectID)
	if !ok {
		slog.Warn("webhook full sync for unknown project, ignoring", "projectId", event.ProjectID)
		return nil
	}
	return h.sync.Reconcile(ctx, project, reconcile.Options{})
}

func (h *Handler) handleDelete(ctx context.Context, event Event) error {
	if !event.DocumentID.Set {
		slog.Warn("webhook delete event with no documentId, ignoring", "eventType", event.EventType)
		return nil
	}

	objectKey, ok := h.docKeys.Lookup(event.DocumentID.Value)
	if !ok {
		slog.Warn("webhook delete for document with no cached key, ignoring", "documentId", event.DocumentID.Value)
		return nil
	}

	if err := h.store.Delete(ctx, objectKey); err != nil {
		return fmt.Errorf("webhook delete %q: %w", objectKey, err)
	}
	h.docKeys.Forget(event.DocumentID.Value)
	return nil
}

func (h *Handler) handleCreateOrUpdate(ctx context.Context, event Event) error {
	if !event.DocumentID.Set {
		slog.Warn("webhook create/update event with no documentId, ignoring", "eventType", event.EventType)
		return nil
	}

	if h.origin == nil {
		slog.Warn("webhook create/update received but origin is not configured, ignoring", "projectId", event.ProjectID)
		return nil
	}

	project, ok := h.projects.ProjectByID(event.ProjectID)
	if !ok {
		slog.Warn("webhook create/update for unknown project, ignoring", "projectId", event.ProjectID)
		return nil
	}

	doc, err := h.origin.DownloadDocument(ctx, event.ProjectID, event.DocumentID.Value)
	if err != nil {
		return fmt.Errorf("webhook download document %d: %w", event.DocumentID.Value, err)
	}
	defer doc.Body.Close()

	relKey := path.Join(event.FolderPath, doc.Filename)
	objectKey := project.ObjectKey(relKey)

	if _, err := h.store.Put(ctx, objectstore.PutParams{
		Key:  objectKey,
		Body: doc.Body,
		Metadata: map[string]string{
			"documentid": fmt.Sprintf("%d", event.DocumentID.Value),
			"projectid":  fmt.Sprintf("%d", event.ProjectID),
			"folderid":   event.FolderID,
			"folderpath": event.FolderPath,
		},
		Tags: map[string]string{
			"origin":    "filevine",
			"fv_docid":  fmt.Sprintf("%d", event.DocumentID.Value),
			"projectId": fmt.Sprintf("%d", event.ProjectID),
		},
	}); err != nil {
		return fmt.Errorf("webhook upload %q: %w", objectKey, err)
	}

	if err := h.docKeys.Remember(event.DocumentID.Value, objectKey); err != nil {
		slog.Warn("document key store save failed", "documentId", event.DocumentID.Value, "error", err)
	}
	return nil
}

func (h *Handler) handleProbe(ctx context.Context, event Event) error {
	if h.origin == nil {
		slog.Warn("webhook probe received but origin is not configured, ignoring", "documentId", event.DocumentID.Value)
		return nil
	}

	exists, err := h.origin.ProbeDocument(ctx, event.ProjectID, event.DocumentID.Value)
	if err != nil {
		return fmt.Errorf("webhook probe document %d: %w", event.DocumentID.Value, err)
	}
	if exists {
		return h.handleCreateOrUpdate(ctx, event)
	}
	return h.handleDelete(ctx, event)
}
