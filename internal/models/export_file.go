package models

import "time"

// ExportFile tracks a generated complaint export artifact until it expires.
type ExportFile struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"file_name"`
	StoredPath string    `json:"stored_path"`
	Records    int       `json:"records"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
