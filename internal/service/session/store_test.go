package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rephrasego/internal/config"
	"rephrasego/internal/models"
	"rephrasego/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]*models.Session
	ttls        map[string]time.Duration
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string]*models.Session{}, ttls: map[string]time.Duration{}}
}

func (c *recordingCache) Load(_ context.Context, id string) (*models.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	return s, ok
}

func (c *recordingCache) Store(_ context.Context, s *models.Session, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.ID] = s
	c.ttls[s.ID] = ttl
}

func (c *recordingCache) Invalidate(_ context.Context, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
		c.invalidated = append(c.invalidated, id)
	}
}

func newTestStore(t *testing.T, cache Cache) (*Store, *fakeClock) {
	t.Helper()
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"sqlite3": {DSN: ":memory:"}}}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(db, "sqlite3", Options{Cache: cache, Now: clock.Now})
	return store, clock
}

func createPending(t *testing.T, store *Store) *models.Session {
	t.Helper()
	sess, err := store.Create(context.Background(), models.Session{
		OriginalText:   "The cat sat on the mat.",
		Mode:           models.ModeSimplify,
		Language:       "English",
		CitationFormat: models.CitationAPA,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func writeUpload(t *testing.T, dir, sessionID, name string) string {
	t.Helper()
	path := filepath.Join(dir, sessionID, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func countRows(t *testing.T, store *Store, table string) int {
	t.Helper()
	var n int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestCreateSetsTTL(t *testing.T) {
	store, clock := newTestStore(t, nil)
	sess := createPending(t, store)
	if sess.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !sess.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("createdAt mismatch: %v", sess.CreatedAt)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != 2*time.Hour {
		t.Fatalf("expected 2h ttl, got %v", got)
	}

	stored, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ExpiresAt.Sub(stored.CreatedAt) != 2*time.Hour {
		t.Fatalf("stored ttl mismatch: %v -> %v", stored.CreatedAt, stored.ExpiresAt)
	}
	if !stored.Pending() || stored.Highlights != nil {
		t.Fatalf("new session should be pending: %+v", stored)
	}

	f, err := store.RecordFile(context.Background(), models.UploadedFile{SessionID: sess.ID, FileName: "a.txt", FileType: "text/plain"})
	if err != nil {
		t.Fatalf("record file: %v", err)
	}
	if f.ExpiresAt.Sub(f.UploadedAt) != 2*time.Hour {
		t.Fatalf("file ttl mismatch")
	}
}

func TestCreateDuplicate(t *testing.T) {
	store, _ := newTestStore(t, nil)
	sess := createPending(t, store)
	_, err := store.Create(context.Background(), models.Session{ID: sess.ID, OriginalText: "x", Mode: models.ModeFormal, Language: "English", CitationFormat: models.CitationAPA})
	if !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t, nil)
	if _, err := store.Get(context.Background(), NewID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateCompletesSession(t *testing.T) {
	cache := newRecordingCache()
	store, _ := newTestStore(t, cache)
	sess := createPending(t, store)
	ctx := context.Background()

	text := "The cat sat down on the mat."
	highlights := []models.Highlight{{Start: 8, End: 16, Kind: models.KindGrammar}}
	if err := store.Update(ctx, sess.ID, models.SessionUpdate{RewrittenText: &text, Highlights: highlights}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Pending() || *got.RewrittenText != text {
		t.Fatalf("rewritten text not stored: %+v", got)
	}
	if len(got.Highlights) != 1 || got.Highlights[0] != highlights[0] {
		t.Fatalf("highlights mismatch: %+v", got.Highlights)
	}
	if got.OriginalText != sess.OriginalText || got.Mode != models.ModeSimplify {
		t.Fatalf("update touched other fields: %+v", got)
	}
	if _, ok := cache.entries[sess.ID]; !ok {
		t.Fatalf("completed session should be cached")
	}
	// entry lives until expiresAt, the earlier of the two bounds
	if ttl := cache.ttls[sess.ID]; ttl != 2*time.Hour {
		t.Fatalf("cache ttl mismatch: %v", ttl)
	}

	if err := store.Update(ctx, NewID(), models.SessionUpdate{RewrittenText: &text}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestPendingSessionNotCached(t *testing.T) {
	cache := newRecordingCache()
	store, _ := newTestStore(t, cache)
	sess := createPending(t, store)
	if _, err := store.Get(context.Background(), sess.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(cache.entries) != 0 {
		t.Fatalf("pending session must not be cached")
	}
}

func TestDeleteSessionIsIdempotent(t *testing.T) {
	cache := newRecordingCache()
	store, _ := newTestStore(t, cache)
	ctx := context.Background()
	dir := t.TempDir()
	sess := createPending(t, store)
	path := writeUpload(t, dir, sess.ID, "notes.txt")
	if _, err := store.RecordFile(ctx, models.UploadedFile{SessionID: sess.ID, FileName: "notes.txt", FileType: "text/plain", FileSize: 5, StoredPath: path, ExtractedText: "hello"}); err != nil {
		t.Fatalf("record file: %v", err)
	}

	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session should be gone, got %v", err)
	}
	if n := countRows(t, store, "uploaded_files"); n != 0 {
		t.Fatalf("expected no file rows, got %d", n)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("stored file should be removed, stat err %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Fatalf("empty session dir should be pruned")
	}
	if len(cache.invalidated) == 0 {
		t.Fatalf("delete should invalidate the cache")
	}
}

func TestDeleteSessionToleratesMissingFile(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()
	sess := createPending(t, store)
	if _, err := store.RecordFile(ctx, models.UploadedFile{SessionID: sess.ID, FileName: "gone.txt", FileType: "text/plain", StoredPath: filepath.Join(t.TempDir(), "gone.txt")}); err != nil {
		t.Fatalf("record file: %v", err)
	}
	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("delete should ignore missing content, got %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	cache := newRecordingCache()
	store, clock := newTestStore(t, cache)
	ctx := context.Background()
	dir := t.TempDir()

	old := createPending(t, store)
	oldPath := writeUpload(t, dir, old.ID, "old.txt")
	if _, err := store.RecordFile(ctx, models.UploadedFile{SessionID: old.ID, FileName: "old.txt", FileType: "text/plain", StoredPath: oldPath}); err != nil {
		t.Fatalf("record file: %v", err)
	}

	clock.Advance(90 * time.Minute)
	fresh := createPending(t, store)

	clock.Advance(30 * time.Minute) // old is now exactly at expiresAt
	res, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep expired: %v", err)
	}
	if res.Sessions != 1 || res.Files != 1 {
		t.Fatalf("unexpected sweep result %+v", res)
	}
	if _, err := store.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session should be swept, got %v", err)
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expired upload should be removed from disk")
	}

	var remaining int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE expires_at <= ?`, store.Now()).Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expired rows remain: %d", remaining)
	}

	again, err := store.SweepExpired(ctx)
	if err != nil || again.Sessions != 0 || again.Files != 0 {
		t.Fatalf("second sweep should be a no-op: %+v %v", again, err)
	}
	found := false
	for _, id := range cache.invalidated {
		if id == old.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("sweep should invalidate swept ids")
	}
}

func TestSweepStaleIgnoresExpiresAt(t *testing.T) {
	store, clock := newTestStore(t, nil)
	ctx := context.Background()
	sess := createPending(t, store)
	if _, err := store.RecordFile(ctx, models.UploadedFile{SessionID: "orphan", FileName: "o.txt", FileType: "text/plain"}); err != nil {
		t.Fatalf("record file: %v", err)
	}
	// simulate a misconfigured TTL that pushed expiry far out
	far := clock.Now().Add(30 * 24 * time.Hour)
	if _, err := store.db.Exec(`UPDATE sessions SET expires_at = ?`, far); err != nil {
		t.Fatalf("push expiry: %v", err)
	}
	if _, err := store.db.Exec(`UPDATE uploaded_files SET expires_at = ?`, far); err != nil {
		t.Fatalf("push file expiry: %v", err)
	}

	clock.Advance(23 * time.Hour)
	res, err := store.SweepStale(ctx)
	if err != nil || res.Sessions != 0 {
		t.Fatalf("nothing is stale yet: %+v %v", res, err)
	}

	clock.Advance(time.Hour)
	res, err = store.SweepStale(ctx)
	if err != nil {
		t.Fatalf("sweep stale: %v", err)
	}
	if res.Sessions != 1 || res.Files != 1 {
		t.Fatalf("unexpected stale sweep result %+v", res)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale session should be gone")
	}
}

func TestListFilesInUploadOrder(t *testing.T) {
	store, clock := newTestStore(t, nil)
	ctx := context.Background()
	id := NewID()
	for _, name := range []string{"first.txt", "second.txt", "third.txt"} {
		if _, err := store.RecordFile(ctx, models.UploadedFile{SessionID: id, FileName: name, FileType: "text/plain"}); err != nil {
			t.Fatalf("record %s: %v", name, err)
		}
		clock.Advance(time.Second)
	}
	files, err := store.ListFiles(ctx, id)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 3 || files[0].FileName != "first.txt" || files[2].FileName != "third.txt" {
		t.Fatalf("unexpected order: %+v", files)
	}
	if _, err := store.RecordFile(ctx, models.UploadedFile{FileName: "x"}); err == nil {
		t.Fatalf("expected error without session id")
	}
}

// deletingCache removes the session from the database at the moment Get tries
// to cache it, the way a concurrent DELETE or sweep would.
type deletingCache struct {
	*recordingCache
	store     *Store
	fired     bool
	deleteErr error
}

func (c *deletingCache) Store(ctx context.Context, s *models.Session, ttl time.Duration) {
	if !c.fired {
		c.fired = true
		c.deleteErr = c.store.DeleteSession(ctx, s.ID)
	}
	c.recordingCache.Store(ctx, s, ttl)
}

func TestGetDoesNotCacheSessionDeletedMidRead(t *testing.T) {
	cache := &deletingCache{recordingCache: newRecordingCache()}
	store, _ := newTestStore(t, cache)
	cache.store = store
	ctx := context.Background()
	sess := createPending(t, store)
	text := "The cat sat down on the mat."
	if err := store.Update(ctx, sess.ID, models.SessionUpdate{RewrittenText: &text, Highlights: []models.Highlight{}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// the first read still saw the row
	if _, err := store.Get(ctx, sess.ID); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if cache.deleteErr != nil {
		t.Fatalf("concurrent delete: %v", cache.deleteErr)
	}
	if n := countRows(t, store, "sessions"); n != 0 {
		t.Fatalf("session row should be deleted, got %d", n)
	}
	if _, ok := cache.entries[sess.ID]; ok {
		t.Fatalf("deleted session left in cache")
	}
	if got, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted session served again: %+v err=%v", got, err)
	}
}
