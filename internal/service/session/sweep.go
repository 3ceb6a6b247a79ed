package session

import (
	"context"
	"fmt"
	"time"
)

// SweepResult counts the records one sweep removed.
type SweepResult struct {
	Sessions int64
	Files    int64
}

// SweepExpired deletes every session and uploaded file whose expiresAt is at or
// before now, together with the stored file content.
func (s *Store) SweepExpired(ctx context.Context) (SweepResult, error) {
	now := s.Now()
	return s.sweep(ctx,
		`expires_at <= ?`, now,
		`expires_at <= ?`, now,
	)
}

// SweepStale deletes records older than the stale age regardless of expiresAt.
func (s *Store) SweepStale(ctx context.Context) (SweepResult, error) {
	cutoff := s.Now().Add(-s.staleAge)
	return s.sweep(ctx,
		`created_at <= ?`, cutoff,
		`uploaded_at <= ?`, cutoff,
	)
}

func (s *Store) sweep(ctx context.Context, sessionPred string, sessionArg time.Time, filePred string, fileArg time.Time) (SweepResult, error) {
	var result SweepResult

	paths, err := s.collectStrings(ctx, `SELECT stored_path FROM uploaded_files WHERE `+filePred, fileArg)
	if err != nil {
		return result, fmt.Errorf("select swept files: %w", err)
	}
	for _, p := range paths {
		removeStoredFile(p)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploaded_files WHERE `+filePred, fileArg)
	if err != nil {
		return result, fmt.Errorf("sweep uploaded files: %w", err)
	}
	if result.Files, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("uploaded files rows affected: %w", err)
	}

	ids, err := s.collectStrings(ctx, `SELECT id FROM sessions WHERE `+sessionPred, sessionArg)
	if err != nil {
		return result, fmt.Errorf("select swept sessions: %w", err)
	}
	res, err = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE `+sessionPred, sessionArg)
	if err != nil {
		return result, fmt.Errorf("sweep sessions: %w", err)
	}
	if result.Sessions, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("sessions rows affected: %w", err)
	}
	s.cache.Invalidate(ctx, ids...)
	return result, nil
}

// collectStrings drains a single-column query before any further statement
// runs, since a single-connection pool cannot interleave them.
func (s *Store) collectStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
