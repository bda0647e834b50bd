package intake

import (
	"context"
	"log"
	"os"
	"time"
)

const (
	DefaultExportTTL             = 2 * time.Hour
	DefaultExportCleanupInterval = 30 * time.Minute
)

// StartExportCleaner removes expired export artifacts on a timer until the
// context is cancelled.
func (s *Service) StartExportCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultExportCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cleanupExpiredExports(ctx); err != nil {
				log.Printf("cleanup export files error: %v", err)
			}
		}
	}
}

func (s *Service) cleanupExpiredExports(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stored_path FROM export_files WHERE expires_at <= ?`,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	type fileRow struct {
		id   int64
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			return err
		}
		files = append(files, fr)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove export file %s failed: %v", f.path, err)
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM export_files WHERE id = ?`, f.id); err != nil {
			log.Printf("delete export record %d failed: %v", f.id, err)
		}
	}
	return nil
}
