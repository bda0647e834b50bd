package models

import "time"

// UserSession tracks one chat user's progress through the intake flow.
// The scratch fields are populated step by step and cleared on cancellation
// or finalization; step == StepIdle implies all of them are empty.
type UserSession struct {
	ID           int64     `json:"id"`
	ChatID       int64     `json:"chat_id"`
	Authorized   bool      `json:"authorized"`
	Step         Step      `json:"step"`
	Branch       string    `json:"branch"`
	Category     string    `json:"category"`
	Content      string    `json:"content"`
	PatientName  string    `json:"patient_name"`
	PatientPhone string    `json:"patient_phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ScratchEmpty reports whether every scratch field is empty.
func (s *UserSession) ScratchEmpty() bool {
	return s.Branch == "" && s.Category == "" && s.Content == "" &&
		s.PatientName == "" && s.PatientPhone == ""
}

// ResetFlow returns the session to idle and clears all scratch fields.
// The authorized flag is never touched here.
func (s *UserSession) ResetFlow() {
	s.Step = StepIdle
	s.Branch = ""
	s.Category = ""
	s.Content = ""
	s.PatientName = ""
	s.PatientPhone = ""
}
