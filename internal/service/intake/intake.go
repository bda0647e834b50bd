package intake

import (
	"time"

	"complaintbot/internal/storage"
)

// Service handles session, complaint, operator, and export persistence.
type Service struct {
	db        *storage.DB
	exportDir string
	exportTTL time.Duration
}

// NewService builds a new intake service.
func NewService(db *storage.DB, exportDir string, exportTTL time.Duration) *Service {
	if exportTTL <= 0 {
		exportTTL = DefaultExportTTL
	}
	return &Service{db: db, exportDir: exportDir, exportTTL: exportTTL}
}
