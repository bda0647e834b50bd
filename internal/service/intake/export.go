package intake

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"complaintbot/internal/models"

	"github.com/google/uuid"
)

// ErrNoComplaints is returned when an export is requested on an empty store.
var ErrNoComplaints = errors.New("no complaints to export")

// ExportComplaintsCSV writes all complaints (newest first) as a CSV artifact
// into the export directory and records it for TTL cleanup. The returned
// ExportFile carries the public file name under /exports/.
func (s *Service) ExportComplaintsCSV(ctx context.Context) (*models.ExportFile, error) {
	complaints, err := s.ListComplaints(ctx)
	if err != nil {
		return nil, err
	}
	if len(complaints) == 0 {
		return nil, ErrNoComplaints
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	name := fmt.Sprintf("complaints-%s.csv", uuid.NewString())
	path := filepath.Join(s.exportDir, name)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	if err := WriteComplaintsCSV(file, complaints); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close export file: %w", err)
	}

	now := time.Now().UTC()
	export := &models.ExportFile{
		FileName:   name,
		StoredPath: path,
		Records:    len(complaints),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.exportTTL),
	}
	id, err := s.db.InsertReturningID(ctx,
		`INSERT INTO export_files (file_name, stored_path, records, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		export.FileName, export.StoredPath, export.Records, export.CreatedAt, export.ExpiresAt,
	)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("record export file: %w", err)
	}
	export.ID = id
	return export, nil
}

// WriteComplaintsCSV renders the record list as CSV with a header row.
func WriteComplaintsCSV(w io.Writer, complaints []models.Complaint) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "branch", "category", "text", "voice_url", "status", "patient_name", "patient_phone", "created_at"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, c := range complaints {
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.Branch,
			c.Category,
			c.Text,
			c.VoiceURL,
			string(c.Status),
			c.PatientName,
			c.PatientPhone,
			c.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
