package bot

import (
	"errors"
	"strings"
	"time"

	"complaintbot/internal/models"
)

// ErrIncompleteSession reports a finalize attempt on a session missing its
// branch or category. The transition table makes this unreachable; the
// builder checks anyway.
var ErrIncompleteSession = errors.New("incomplete session: branch or category missing")

// BuildComplaint assembles the finalized record from the session's scratch
// fields. Content splits into a voice reference and supplementary text when
// it starts with a media scheme; otherwise it is plain text. Both may be
// empty when the reporter skipped the content step without sending a voice.
func BuildComplaint(s *models.UserSession, now time.Time) (*models.Complaint, error) {
	if s.Branch == "" || s.Category == "" {
		return nil, ErrIncompleteSession
	}

	c := &models.Complaint{
		SessionID:    s.ID,
		ChatID:       s.ChatID,
		Branch:       s.Branch,
		Category:     s.Category,
		Status:       models.StatusIncoming,
		PatientName:  s.PatientName,
		PatientPhone: s.PatientPhone,
		CreatedAt:    now,
	}

	switch {
	case s.Content == "":
	case HasMediaScheme(s.Content):
		if i := strings.Index(s.Content, "\n"); i >= 0 {
			c.VoiceURL = s.Content[:i]
			c.Text = strings.TrimSpace(s.Content[i+1:])
		} else {
			c.VoiceURL = s.Content
		}
	default:
		c.Text = s.Content
	}
	return c, nil
}
