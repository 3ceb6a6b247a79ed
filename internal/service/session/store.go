// Package session persists rewrite sessions and uploaded-file metadata with
// a fixed time-to-live, and sweeps them once they expire or grow stale.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"rephrasego/internal/models"
)

const (
	DefaultTTL      = 2 * time.Hour
	DefaultStaleAge = 24 * time.Hour

	mysqlDuplicateEntry = 1062
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrDuplicateSession = errors.New("duplicate session")
)

// Options tunes a Store. Zero values fall back to the defaults.
type Options struct {
	TTL      time.Duration
	StaleAge time.Duration
	Cache    Cache
	Now      func() time.Time
}

// Store is the SQL-backed session store.
type Store struct {
	db       *sql.DB
	driver   string
	ttl      time.Duration
	staleAge time.Duration
	cache    Cache
	now      func() time.Time
}

func NewStore(db *sql.DB, driver string, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.StaleAge <= 0 {
		opts.StaleAge = DefaultStaleAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cache == nil {
		opts.Cache = noopCache{}
	}
	return &Store{
		db:       db,
		driver:   strings.ToLower(driver),
		ttl:      opts.TTL,
		staleAge: opts.StaleAge,
		cache:    opts.Cache,
		now:      opts.Now,
	}
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Now is the store clock in UTC.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a pending session. An empty ID is replaced by NewID; CreatedAt
// and ExpiresAt are always set from the store clock.
func (s *Store) Create(ctx context.Context, sess models.Session) (*models.Session, error) {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	now := s.Now()
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.ttl)

	var rewritten sql.NullString
	if sess.RewrittenText != nil {
		rewritten = sql.NullString{String: *sess.RewrittenText, Valid: true}
	}
	highlights, err := encodeHighlights(sess.Highlights)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, original_text, rewritten_text, mode, language, citation_format, style_matching, highlights, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OriginalText, rewritten, string(sess.Mode), sess.Language, string(sess.CitationFormat),
		sess.StyleMatching, highlights, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, sess.ID)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &sess, nil
}

// Get returns the stored session, expired or not. Callers decide whether an
// expired record is still visible.
func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	if cached, ok := s.cache.Load(ctx, id); ok {
		return cached, nil
	}
	var (
		sess       models.Session
		rewritten  sql.NullString
		highlights sql.NullString
		mode       string
		citation   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, original_text, rewritten_text, mode, language, citation_format, style_matching, highlights, created_at, expires_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.OriginalText, &rewritten, &mode, &sess.Language, &citation,
		&sess.StyleMatching, &highlights, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.Mode = models.Mode(mode)
	sess.CitationFormat = models.CitationFormat(citation)
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.ExpiresAt = sess.ExpiresAt.UTC()
	if rewritten.Valid {
		text := rewritten.String
		sess.RewrittenText = &text
	}
	if highlights.Valid {
		if err := json.Unmarshal([]byte(highlights.String), &sess.Highlights); err != nil {
			return nil, fmt.Errorf("decode highlights for %s: %w", id, err)
		}
	}
	if !sess.Pending() {
		s.fillCache(ctx, &sess)
	}
	return &sess, nil
}

// fillCache stores sess, then drops the entry again if a delete or sweep
// removed the row after it was read. Their own invalidation may already have
// run, so the re-check is what keeps a deleted session out of the cache.
func (s *Store) fillCache(ctx context.Context, sess *models.Session) {
	s.cache.Store(ctx, sess, s.cacheTTL(sess))
	exists, err := s.exists(ctx, sess.ID)
	if err != nil {
		log.Printf("session cache: recheck %s failed: %v", sess.ID, err)
	}
	if err != nil || !exists {
		s.cache.Invalidate(ctx, sess.ID)
	}
}

// Update merges the non-nil fields of upd into the session.
func (s *Store) Update(ctx context.Context, id string, upd models.SessionUpdate) error {
	var rewritten sql.NullString
	if upd.RewrittenText != nil {
		rewritten = sql.NullString{String: *upd.RewrittenText, Valid: true}
	}
	highlights, err := encodeHighlights(upd.Highlights)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET rewritten_text = COALESCE(?, rewritten_text), highlights = COALESCE(?, highlights) WHERE id = ?`,
		rewritten, highlights, id,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		// mysql counts changed rows, not matched ones
		exists, err := s.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

// DeleteSession removes the session and its uploaded files. Stored file content
// is removed first; failures there are logged and do not fail the call.
// Deleting an unknown id is a no-op.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	files, err := s.ListFiles(ctx, id)
	if err != nil {
		return err
	}
	for _, f := range files {
		removeStoredFile(f.StoredPath)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM uploaded_files WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete uploaded files: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return true, nil
}

// cacheTTL keeps a cached entry no longer than the record itself can live.
func (s *Store) cacheTTL(sess *models.Session) time.Duration {
	until := sess.ExpiresAt
	if stale := sess.CreatedAt.Add(s.staleAge); stale.Before(until) {
		until = stale
	}
	return until.Sub(s.Now())
}

func encodeHighlights(h []models.Highlight) (sql.NullString, error) {
	if h == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode highlights: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func isDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}

// removeStoredFile deletes the file and prunes its directory when empty.
func removeStoredFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("session cleanup: remove file %s failed: %v", path, err)
		return
	}
	_ = os.Remove(filepath.Dir(path))
}
