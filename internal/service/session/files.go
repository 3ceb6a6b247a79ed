package session

import (
	"context"
	"errors"
	"fmt"

	"rephrasego/internal/models"
)

// RecordFile stores metadata for an uploaded file. UploadedAt and ExpiresAt
// come from the store clock.
func (s *Store) RecordFile(ctx context.Context, f models.UploadedFile) (*models.UploadedFile, error) {
	if f.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	now := s.Now()
	f.UploadedAt = now
	f.ExpiresAt = now.Add(s.ttl)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO uploaded_files (session_id, file_name, file_type, file_size, stored_path, extracted_text, uploaded_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.SessionID, f.FileName, f.FileType, f.FileSize, f.StoredPath, f.ExtractedText, f.UploadedAt, f.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert uploaded file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("uploaded file id: %w", err)
	}
	f.ID = id
	return &f, nil
}

// ListFiles returns the files of a session in upload order.
func (s *Store) ListFiles(ctx context.Context, sessionID string) ([]*models.UploadedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, file_name, file_type, file_size, stored_path, extracted_text, uploaded_at, expires_at
		 FROM uploaded_files WHERE session_id = ? ORDER BY uploaded_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list uploaded files: %w", err)
	}
	defer rows.Close()

	var files []*models.UploadedFile
	for rows.Next() {
		f := new(models.UploadedFile)
		if err := rows.Scan(&f.ID, &f.SessionID, &f.FileName, &f.FileType, &f.FileSize,
			&f.StoredPath, &f.ExtractedText, &f.UploadedAt, &f.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan uploaded file: %w", err)
		}
		f.UploadedAt = f.UploadedAt.UTC()
		f.ExpiresAt = f.ExpiresAt.UTC()
		files = append(files, f)
	}
	return files, rows.Err()
}
