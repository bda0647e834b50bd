package models

import "time"

// ComplaintStatus is owned by the review workflow after creation.
type ComplaintStatus string

const (
	StatusIncoming ComplaintStatus = "incoming"
	StatusInReview ComplaintStatus = "in_review"
	StatusResolved ComplaintStatus = "resolved"
)

// Complaint is the finalized, persisted output of a completed intake.
// Immutable after creation except for Status.
type Complaint struct {
	ID           int64           `json:"id"`
	SessionID    int64           `json:"session_id"`
	ChatID       int64           `json:"chat_id"`
	Branch       string          `json:"branch"`
	Category     string          `json:"category"`
	Text         string          `json:"text,omitempty"`
	VoiceURL     string          `json:"voice_url,omitempty"`
	Status       ComplaintStatus `json:"status"`
	PatientName  string          `json:"patient_name"`
	PatientPhone string          `json:"patient_phone"`
	CreatedAt    time.Time       `json:"created_at"`
}
