package models

import "time"

// UploadedFile is an extracted-text artifact tied to a session.
type UploadedFile struct {
	ID            int64     `json:"id"`
	SessionID     string    `json:"session_id"`
	FileName      string    `json:"file_name"`
	FileType      string    `json:"file_type"`
	FileSize      int64     `json:"file_size"`
	StoredPath    string    `json:"-"`
	ExtractedText string    `json:"extracted_text"`
	UploadedAt    time.Time `json:"uploaded_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}
