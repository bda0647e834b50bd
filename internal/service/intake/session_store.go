package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"complaintbot/internal/models"
)

// GetOrCreateSession loads the session for a chat id, creating the default
// unauthorized idle session on first contact.
func (s *Service) GetOrCreateSession(ctx context.Context, chatID int64) (*models.UserSession, error) {
	if chatID == 0 {
		return nil, errors.New("chat_id is required")
	}

	session, err := s.getSession(ctx, chatID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	id, err := s.db.InsertReturningID(ctx,
		`INSERT INTO sessions (chat_id, authorized, step, branch, category, content, patient_name, patient_phone, created_at, updated_at)
		 VALUES (?, ?, ?, '', '', '', '', '', ?, ?)`,
		chatID, false, models.StepIdle.String(), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &models.UserSession{
		ID:        id,
		ChatID:    chatID,
		Step:      models.StepIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Service) getSession(ctx context.Context, chatID int64) (*models.UserSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, authorized, step, branch, category, content, patient_name, patient_phone, created_at, updated_at
		 FROM sessions WHERE chat_id = ?`,
		chatID,
	)
	var session models.UserSession
	var step string
	if err := row.Scan(
		&session.ID, &session.ChatID, &session.Authorized, &step,
		&session.Branch, &session.Category, &session.Content,
		&session.PatientName, &session.PatientPhone,
		&session.CreatedAt, &session.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	parsed, err := models.ParseStep(step)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", session.ID, err)
	}
	session.Step = parsed
	return &session, nil
}

// SaveSession persists the mutable session fields.
func (s *Service) SaveSession(ctx context.Context, session *models.UserSession) error {
	if session == nil || session.ID <= 0 {
		return errors.New("invalid session")
	}
	if !session.Step.Valid() {
		return fmt.Errorf("refusing to save invalid step %v", session.Step)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET authorized = ?, step = ?, branch = ?, category = ?, content = ?, patient_name = ?, patient_phone = ?, updated_at = ?
		 WHERE id = ?`,
		session.Authorized, session.Step.String(),
		session.Branch, session.Category, session.Content,
		session.PatientName, session.PatientPhone, now,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	session.UpdatedAt = now
	return nil
}
