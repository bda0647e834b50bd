package bot

import (
	"errors"
	"testing"
	"time"

	"complaintbot/internal/models"
)

func TestBuildComplaintPlainText(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &models.UserSession{
		ID: 7, ChatID: 100,
		Branch: "Central", Category: "Service",
		Content:     "long queue",
		PatientName: "Jane Doe", PatientPhone: "+1 555 0100",
	}
	c, err := BuildComplaint(s, now)
	if err != nil {
		t.Fatalf("BuildComplaint: %v", err)
	}
	if c.Text != "long queue" || c.VoiceURL != "" {
		t.Fatalf("plain text misrouted: %#v", c)
	}
	if c.Status != models.StatusIncoming {
		t.Fatalf("new complaints must start incoming, got %s", c.Status)
	}
	if c.SessionID != 7 || c.ChatID != 100 || !c.CreatedAt.Equal(now) {
		t.Fatalf("record metadata wrong: %#v", c)
	}
}

func TestBuildComplaintVoiceOnly(t *testing.T) {
	s := &models.UserSession{
		Branch: "Central", Category: "Service",
		Content: "https://host/uploads/voices/a.ogg",
	}
	c, err := BuildComplaint(s, time.Now())
	if err != nil {
		t.Fatalf("BuildComplaint: %v", err)
	}
	if c.VoiceURL != "https://host/uploads/voices/a.ogg" || c.Text != "" {
		t.Fatalf("voice reference misrouted: %#v", c)
	}
}

func TestBuildComplaintVoiceWithNote(t *testing.T) {
	s := &models.UserSession{
		Branch: "Central", Category: "Service",
		Content: "https://host/v.ogg\nalso rude staff",
	}
	c, err := BuildComplaint(s, time.Now())
	if err != nil {
		t.Fatalf("BuildComplaint: %v", err)
	}
	if c.VoiceURL != "https://host/v.ogg" || c.Text != "also rude staff" {
		t.Fatalf("voice+note misrouted: %#v", c)
	}
}

func TestBuildComplaintEmptyContent(t *testing.T) {
	s := &models.UserSession{Branch: "Central", Category: "Service"}
	c, err := BuildComplaint(s, time.Now())
	if err != nil {
		t.Fatalf("empty content is allowed after a skip: %v", err)
	}
	if c.Text != "" || c.VoiceURL != "" {
		t.Fatalf("expected empty text and voice: %#v", c)
	}
}

func TestBuildComplaintIncomplete(t *testing.T) {
	for _, s := range []*models.UserSession{
		{Category: "Service"},
		{Branch: "Central"},
		{},
	} {
		if _, err := BuildComplaint(s, time.Now()); !errors.Is(err, ErrIncompleteSession) {
			t.Fatalf("expected ErrIncompleteSession, got %v", err)
		}
	}
}
