package intake

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"complaintbot/internal/models"
)

// RegisterOperator creates a staff account for the review endpoints.
func (s *Service) RegisterOperator(ctx context.Context, username, password string) (*models.Operator, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	hash := hashPassword(password)
	now := time.Now().UTC()
	id, err := s.db.InsertReturningID(ctx,
		`INSERT INTO operators (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, hash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return &models.Operator{ID: id, Username: username, PasswordHash: hash, CreatedAt: now}, nil
}

// LoginOperator validates credentials and returns the operator profile.
func (s *Service) LoginOperator(ctx context.Context, username, password string) (*models.Operator, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM operators WHERE username = ?`, username,
	)
	var op models.Operator
	if err := row.Scan(&op.ID, &op.Username, &op.PasswordHash, &op.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("invalid credentials")
		}
		return nil, fmt.Errorf("query operator: %w", err)
	}

	if op.PasswordHash != hashPassword(password) {
		return nil, errors.New("invalid credentials")
	}
	return &op, nil
}

func hashPassword(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
