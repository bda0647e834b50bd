package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"complaintbot/internal/models"
)

// InsertComplaint stores a finalized record and returns it with its id set.
func (s *Service) InsertComplaint(ctx context.Context, c *models.Complaint) (*models.Complaint, error) {
	if c == nil {
		return nil, errors.New("complaint is required")
	}
	if c.Branch == "" || c.Category == "" {
		return nil, errors.New("branch and category are required")
	}
	if c.Status == "" {
		c.Status = models.StatusIncoming
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	id, err := s.db.InsertReturningID(ctx,
		`INSERT INTO complaints (session_id, chat_id, branch, category, text, voice_url, status, patient_name, patient_phone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.SessionID, c.ChatID, c.Branch, c.Category,
		nullable(c.Text), nullable(c.VoiceURL),
		string(c.Status), c.PatientName, c.PatientPhone, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert complaint: %w", err)
	}
	c.ID = id
	return c, nil
}

// ListComplaints returns all complaints, newest first.
func (s *Service) ListComplaints(ctx context.Context) ([]models.Complaint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, chat_id, branch, category, text, voice_url, status, patient_name, patient_phone, created_at
		 FROM complaints ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	var complaints []models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, *c)
	}
	return complaints, rows.Err()
}

// GetComplaint fetches a single complaint by id.
func (s *Service) GetComplaint(ctx context.Context, id int64) (*models.Complaint, error) {
	if id <= 0 {
		return nil, errors.New("invalid complaint id")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, chat_id, branch, category, text, voice_url, status, patient_name, patient_phone, created_at
		 FROM complaints WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	return scanComplaint(rows)
}

// UpdateComplaintStatus moves a record through the review workflow. This is
// the only mutation allowed on a finalized complaint.
func (s *Service) UpdateComplaintStatus(ctx context.Context, id int64, status models.ComplaintStatus) error {
	switch status {
	case models.StatusIncoming, models.StatusInReview, models.StatusResolved:
	default:
		return fmt.Errorf("unknown status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE complaints SET status = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("update complaint status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complaint rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountComplaints reports the number of stored complaints.
func (s *Service) CountComplaints(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return n, nil
}

func scanComplaint(rows *sql.Rows) (*models.Complaint, error) {
	var c models.Complaint
	var text, voiceURL sql.NullString
	var status string
	if err := rows.Scan(
		&c.ID, &c.SessionID, &c.ChatID, &c.Branch, &c.Category,
		&text, &voiceURL, &status, &c.PatientName, &c.PatientPhone, &c.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan complaint: %w", err)
	}
	c.Text = text.String
	c.VoiceURL = voiceURL.String
	c.Status = models.ComplaintStatus(status)
	return &c, nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
