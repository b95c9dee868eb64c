package file

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abduss/filedrive/internal/audit"
	"github.com/abduss/filedrive/internal/storage"
)

var storageNamePattern = regexp.MustCompile(`^2024-05-01/[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[0-9a-f]{4}-[0-9a-f]{12}\.txt$`)

func newTestService(repo recordStore, provider storage.Provider, recorder auditRecorder) *Service {
	svc := NewService(repo, provider, recorder, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestUploadFileStoresRecordAndAuditsSuccess(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	events := &fakeAudit{}
	svc := newTestService(repo, provider, events)
	userID := uuid.New()

	rec, err := svc.UploadFile(context.Background(), []byte("hello world"), "notes.txt", "text/plain",
		RequestMeta{UserID: &userID, IPAddress: "10.0.0.1", UserAgent: "curl"})
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", rec.OriginalName)
	assert.Equal(t, int64(11), rec.Size)
	assert.Equal(t, "text/plain", rec.MimeType)
	assert.Equal(t, TypeText, rec.FileType)
	assert.Equal(t, "fake", rec.StorageProvider)
	assert.True(t, rec.IsActive)
	assert.Equal(t, &userID, rec.UploadedBy)
	assert.Regexp(t, storageNamePattern, rec.FileName)
	assert.Equal(t, rec.FileName, rec.Path)
	assert.NotContains(t, rec.FileName, rec.ID.String(), "storage name must not leak the record id")
	assert.Equal(t, uuid.Version(7), rec.ID.Version())
	require.NotNil(t, rec.URL)
	assert.Equal(t, "https://files.test/"+rec.Path, *rec.URL)

	assert.Equal(t, []byte("hello world"), provider.objects[rec.Path])

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, audit.StatusSuccess, ev.Status)
	assert.Equal(t, "file", ev.Category)
	assert.Equal(t, "upload", ev.Action)
	assert.Equal(t, rec.ID.String(), ev.TargetID)
	assert.Equal(t, "10.0.0.1", ev.IPAddress)
	assert.Equal(t, "11 B", ev.Details["size"])
	assert.Equal(t, "fake", ev.Details["storageProvider"])
}

func TestUploadThenGetReturnsMatchingRecord(t *testing.T) {
	svc := newTestService(newFakeRepo(), storage.NewLocalProvider(t.TempDir(), "/uploads"), &fakeAudit{})
	ctx := context.Background()

	for _, tc := range []struct {
		name, mime string
		data       []byte
	}{
		{"a.png", "image/png", []byte{0x89, 'P', 'N', 'G'}},
		{"empty.txt", "text/plain", []byte{}},
		{"doc.pdf", "application/pdf", []byte("%PDF-1.4")},
	} {
		rec, err := svc.UploadFile(ctx, tc.data, tc.name, tc.mime, RequestMeta{})
		require.NoError(t, err)

		got, ok := svc.GetFile(ctx, rec.ID)
		require.True(t, ok)
		assert.Equal(t, int64(len(tc.data)), got.Size)
		assert.Equal(t, tc.mime, got.MimeType)
		assert.Nil(t, got.UploadedBy)
	}
}

func TestUploadStorageFailureAuditsAndReturnsOriginalError(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.uploadErr = fmt.Errorf("%w: status 503", storage.ErrWrite)
	events := &fakeAudit{}
	svc := newTestService(repo, provider, events)

	_, err := svc.UploadFile(context.Background(), make([]byte, 2048), "big.txt", "text/plain", RequestMeta{})
	require.ErrorIs(t, err, storage.ErrWrite)

	assert.Empty(t, repo.records)
	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, audit.StatusFailure, ev.Status)
	assert.Empty(t, ev.TargetID)
	assert.Equal(t, "big.txt", ev.Details["originalName"])
	assert.Equal(t, "2.0 KiB", ev.Details["size"])
	assert.Contains(t, ev.Details["error"], "status 503")
}

func TestUploadInsertFailureRemovesStoredObject(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = ErrRecordPersistence
	provider := newFakeProvider()
	events := &fakeAudit{}
	svc := newTestService(repo, provider, events)

	_, err := svc.UploadFile(context.Background(), []byte("x"), "a.txt", "text/plain", RequestMeta{})
	require.ErrorIs(t, err, ErrRecordPersistence)

	require.Len(t, provider.deleted, 1)
	assert.Regexp(t, storageNamePattern, provider.deleted[0])
	assert.Empty(t, provider.objects)
	require.Len(t, events.events, 1)
	assert.Equal(t, audit.StatusFailure, events.events[0].Status)
}

func TestUploadInsertFailureKeepsOriginalErrorWhenCleanupFails(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("connection reset")
	provider := newFakeProvider()
	provider.deleteErr = storage.ErrDelete
	svc := newTestService(repo, provider, &fakeAudit{})

	_, err := svc.UploadFile(context.Background(), []byte("x"), "a.txt", "text/plain", RequestMeta{})
	require.Error(t, err)
	assert.EqualError(t, err, "connection reset")
}

type failingSink struct{}

func (failingSink) Append(context.Context, audit.Event) error { return errors.New("audit db down") }

func TestUploadSucceedsWhenAuditSinkFails(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeProvider(), audit.NewRecorder(failingSink{}, zap.NewNop()))

	rec, err := svc.UploadFile(context.Background(), []byte("x"), "a.txt", "text/plain", RequestMeta{})
	require.NoError(t, err)
	assert.Contains(t, repo.records, rec.ID)
}

func TestDeleteFileMissingReturnsFalseWithoutSideEffects(t *testing.T) {
	provider := newFakeProvider()
	events := &fakeAudit{}
	svc := newTestService(newFakeRepo(), provider, events)

	deleted, err := svc.DeleteFile(context.Background(), uuid.New(), RequestMeta{})
	require.NoError(t, err)

	assert.False(t, deleted)
	assert.Empty(t, provider.deleted)
	assert.Empty(t, events.events)
}

func TestDeleteFileRemovesObjectRecordAndAudits(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	events := &fakeAudit{}
	svc := newTestService(repo, provider, events)
	ctx := context.Background()

	rec, err := svc.UploadFile(ctx, []byte("payload"), "a.txt", "text/plain", RequestMeta{})
	require.NoError(t, err)
	events.events = nil

	userID := uuid.New()
	deleted, err := svc.DeleteFile(ctx, rec.ID, RequestMeta{UserID: &userID})
	require.NoError(t, err)

	assert.True(t, deleted)
	assert.Equal(t, []string{rec.Path}, provider.deleted)
	assert.NotContains(t, repo.records, rec.ID)
	require.Len(t, events.events, 1)
	assert.Equal(t, "delete", events.events[0].Action)
	assert.Equal(t, &userID, events.events[0].UserID)
	assert.Equal(t, int64(7), events.events[0].Details["size"])
}

func TestDeleteFileRemovesRecordEvenWhenStorageFails(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	svc := newTestService(repo, provider, &fakeAudit{})
	ctx := context.Background()

	rec, err := svc.UploadFile(ctx, []byte("payload"), "a.txt", "text/plain", RequestMeta{})
	require.NoError(t, err)

	provider.deleteErr = fmt.Errorf("%w: status 500", storage.ErrDelete)
	deleted, err := svc.DeleteFile(ctx, rec.ID, RequestMeta{})
	require.NoError(t, err)

	assert.True(t, deleted)
	assert.NotContains(t, repo.records, rec.ID)
}

func TestDeleteFileTwiceAtStorageIsHarmless(t *testing.T) {
	provider := storage.NewLocalProvider(t.TempDir(), "/uploads")
	svc := newTestService(newFakeRepo(), provider, &fakeAudit{})
	ctx := context.Background()

	rec, err := svc.UploadFile(ctx, []byte("payload"), "a.txt", "text/plain", RequestMeta{})
	require.NoError(t, err)

	deleted, err := svc.DeleteFile(ctx, rec.ID, RequestMeta{})
	require.NoError(t, err)
	require.True(t, deleted)

	assert.NoError(t, provider.Delete(ctx, rec.Path))
	deleted, err = svc.DeleteFile(ctx, rec.ID, RequestMeta{})
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGetFileSwallowsLookupErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("timeout")
	svc := newTestService(repo, newFakeProvider(), &fakeAudit{})

	_, ok := svc.GetFile(context.Background(), uuid.New())
	assert.False(t, ok)
}

func TestGetFilesByUserAppliesDefaultsAndOrdering(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeProvider(), &fakeAudit{})
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := svc.UploadFile(ctx, []byte("x"), fmt.Sprintf("%d.txt", i), "text/plain", RequestMeta{UserID: &userID})
		require.NoError(t, err)
	}
	_, err := svc.UploadFile(ctx, []byte("x"), "other.txt", "text/plain", RequestMeta{UserID: &other})
	require.NoError(t, err)

	list, err := svc.GetFilesByUser(ctx, userID, 0, -5)
	require.NoError(t, err)

	assert.Equal(t, defaultListLimit, repo.lastLimit)
	assert.Equal(t, 0, repo.lastOffset)
	require.Len(t, list, 3)
	assert.Equal(t, "2.txt", list[0].OriginalName)

	page, err := svc.GetFilesByUser(ctx, userID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "1.txt", page[0].OriginalName)
}

// --- helpers & fakes ---

type fakeRepo struct {
	records    map[uuid.UUID]Record
	seq        int
	createErr  error
	getErr     error
	lastLimit  int
	lastOffset int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]Record)}
}

func (f *fakeRepo) Create(_ context.Context, rec Record) (Record, error) {
	if f.createErr != nil {
		return Record{}, f.createErr
	}
	f.seq++
	rec.CreatedAt = time.Date(2024, 5, 1, 0, 0, f.seq, 0, time.UTC)
	rec.UpdatedAt = rec.CreatedAt
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (Record, error) {
	if f.getErr != nil {
		return Record{}, f.getErr
	}
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrFileNotFound
	}
	return rec, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.records[id]; !ok {
		return ErrFileNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]Record, error) {
	f.lastLimit, f.lastOffset = limit, offset
	var list []Record
	for _, rec := range f.records {
		if rec.IsActive && rec.OwnedBy(userID) {
			list = append(list, rec)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if offset >= len(list) {
		return []Record{}, nil
	}
	list = list[offset:]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

type fakeProvider struct {
	objects   map[string][]byte
	deleted   []string
	uploadErr error
	deleteErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{objects: make(map[string][]byte)}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Upload(_ context.Context, data []byte, fileName, _ string) (storage.UploadResult, error) {
	if p.uploadErr != nil {
		return storage.UploadResult{}, p.uploadErr
	}
	p.objects[fileName] = data
	return storage.UploadResult{Path: fileName, URL: p.URL(fileName)}, nil
}

func (p *fakeProvider) Delete(_ context.Context, path string) error {
	p.deleted = append(p.deleted, path)
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.objects, path)
	return nil
}

func (p *fakeProvider) URL(path string) string { return "https://files.test/" + path }

func (p *fakeProvider) Exists(_ context.Context, path string) bool {
	_, ok := p.objects[path]
	return ok
}

type fakeAudit struct {
	events []audit.Event
}

func (a *fakeAudit) Record(_ context.Context, e audit.Event) {
	a.events = append(a.events, e)
}
