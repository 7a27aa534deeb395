package webhook

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/filevine-s3-sync/internal/objectstore"
	"github.com/openmined/filevine-s3-sync/internal/origin"
	"github.com/openmined/filevine-s3-sync/internal/reconcile"
)

type fakeProjects struct {
	project reconcile.Project
	ok      bool
}

func (f fakeProjects) ProjectByID(int) (reconcile.Project, bool) { return f.project, f.ok }

type fakeReconciler struct {
	mu      sync.Mutex
	calls   int
	project reconcile.Project
}

func (f *fakeReconciler) Reconcile(_ context.Context, project reconcile.Project, _ reconcile.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.project = project
	return nil
}

type fakeOrigin struct {
	exists   bool
	filename string
	body     string
}

func (f fakeOrigin) ProbeDocument(context.Context, int, int) (bool, error) {
	return f.exists, nil
}

func (f fakeOrigin) DownloadDocument(context.Context, int, int) (*origin.DownloadedDocument, error) {
	return &origin.DownloadedDocument{
		Body:     io.NopCloser(strings.NewReader(f.body)),
		Filename: f.filename,
	}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	deleted []string
	put     []objectstore.PutParams
}

func (f *fakeStore) ListRecursive(context.Context, string) ([]objectstore.Object, error) {
	return nil, nil
}

func (f *fakeStore) Get(context.Context, string) (*objectstore.GetResult, error) { return nil, nil }

func (f *fakeStore) Put(_ context.Context, params objectstore.PutParams) (*objectstore.PutResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put = append(f.put, params)
	return &objectstore.PutResult{Key: params.Key}, nil
}

func (f *fakeStore) Copy(context.Context, string, string) (*objectstore.CopyResult, error) {
	return nil, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func TestHandler_FullSync(t *testing.T) {
	project := reconcile.NewProject("Smith v Jones", t.TempDir(), "root", "org")
	sync := &fakeReconciler{}
	h := NewHandler(fakeProjects{project: project, ok: true}, sync, fakeOrigin{}, &fakeStore{}, mustDocKeys(t))

	err := h.Handle(context.Background(), []byte(`{"__background_sync":true,"projectId":2370300}`))
	require.NoError(t, err)
	assert.Equal(t, 1, sync.calls)
}

func TestHandler_DocumentDelete_KnownKey(t *testing.T) {
	store := &fakeStore{}
	docKeys := mustDocKeys(t)
	require.NoError(t, docKeys.Remember(12345678, "proj/org/proj/doc.pdf"))

	h := NewHandler(fakeProjects{}, &fakeReconciler{}, fakeOrigin{}, store, docKeys)

	err := h.Handle(context.Background(), []byte(`{"eventType":"DocumentDeleted","projectId":2370300,"documentId":{"native":12345678}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"proj/org/proj/doc.pdf"}, store.deleted)

	_, ok := docKeys.Lookup(12345678)
	assert.False(t, ok)
}

func TestHandler_DocumentDelete_UnknownKeyIsNoop(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(fakeProjects{}, &fakeReconciler{}, fakeOrigin{}, store, mustDocKeys(t))

	err := h.Handle(context.Background(), []byte(`{"eventType":"DocumentDeleted","documentId":99}`))
	require.NoError(t, err)
	assert.Empty(t, store.deleted)
}

func TestHandler_DocumentCreateOrUpdate(t *testing.T) {
	project := reconcile.NewProject("Smith v Jones", t.TempDir(), "root", "org")
	store := &fakeStore{}
	docKeys := mustDocKeys(t)
	h := NewHandler(fakeProjects{project: project, ok: true}, &fakeReconciler{}, fakeOrigin{filename: "contract.pdf", body: "hello"}, store, docKeys)

	err := h.Handle(context.Background(), []byte(`{"eventType":"DocumentCreated","projectId":2370300,"documentId":42,"folderPath":"Contracts"}`))
	require.NoError(t, err)

	require.Len(t, store.put, 1)
	assert.Equal(t, project.ObjectKey("Contracts/contract.pdf"), store.put[0].Key)

	key, ok := docKeys.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, project.ObjectKey("Contracts/contract.pdf"), key)
}

func TestHandler_ProbeThenDecide_ExistsRoutesToCreateOrUpdate(t *testing.T) {
	project := reconcile.NewProject("Smith v Jones", t.TempDir(), "root", "org")
	store := &fakeStore{}
	h := NewHandler(fakeProjects{project: project, ok: true}, &fakeReconciler{}, fakeOrigin{exists: true, filename: "a.pdf", body: "x"}, store, mustDocKeys(t))

	err := h.Handle(context.Background(), []byte(`{"projectId":2370300,"documentId":7}`))
	require.NoError(t, err)
	assert.Len(t, store.put, 1)
}

func TestHandler_ProbeThenDecide_MissingRoutesToDelete(t *testing.T) {
	store := &fakeStore{}
	docKeys := mustDocKeys(t)
	require.NoError(t, docKeys.Remember(7, "proj/org/proj/a.pdf"))
	h := NewHandler(fakeProjects{}, &fakeReconciler{}, fakeOrigin{exists: false}, store, docKeys)

	err := h.Handle(context.Background(), []byte(`{"projectId":2370300,"documentId":7}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"proj/org/proj/a.pdf"}, store.deleted)
}

func mustDocKeys(t *testing.T) *DocumentKeyStore {
	t.Helper()
	store, err := NewDocumentKeyStore(t.TempDir() + "/document-keys.json")
	require.NoError(t, err)
	return store
}
