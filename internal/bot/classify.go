package bot

import (
	"strings"

	"complaintbot/internal/models"
)

// InputKind tags the classified form of an inbound event.
type InputKind int

const (
	// InputCancel aborts the current flow; it wins over every other rule.
	InputCancel InputKind = iota
	// InputAuthCode is any text from a not-yet-authorized user.
	InputAuthCode
	// InputCommand is a main-menu selection from an idle, authorized user.
	InputCommand
	// InputStepText is text consumed by the current in-flow step.
	InputStepText
	// InputStepVoice is a voice attachment at the content step, carrying the
	// transport attachment reference; ingestion happens before the engine runs.
	InputStepVoice
	// InputVoiceStored replaces InputStepVoice once the media adapter has
	// produced a durable reference; Text holds that reference.
	InputVoiceStored
	// InputUnroutable is anything incompatible with the current step.
	InputUnroutable
)

// Input is one classified inbound signal.
type Input struct {
	Kind InputKind
	Text string
	// AttachmentRef is set only for InputStepVoice.
	AttachmentRef string
}

// Classify normalizes a raw event against the current session. It never
// mutates state. Voice events route only at the content step.
func (e *Engine) Classify(ev models.Event, s *models.UserSession) Input {
	switch ev.Kind {
	case models.EventText, models.EventCommand:
		text := strings.TrimSpace(ev.Payload)
		if s.Authorized && text == e.cancelToken {
			return Input{Kind: InputCancel}
		}
		if !s.Authorized {
			// Commands (a /start-style first contact) ask for the code;
			// plain text is the code attempt itself.
			if ev.Kind == models.EventCommand {
				return Input{Kind: InputCommand, Text: text}
			}
			return Input{Kind: InputAuthCode, Text: text}
		}
		if s.Step == models.StepIdle {
			return Input{Kind: InputCommand, Text: text}
		}
		return Input{Kind: InputStepText, Text: text}
	case models.EventVoice:
		if s.Authorized && s.Step == models.StepContent {
			return Input{Kind: InputStepVoice, AttachmentRef: ev.Payload}
		}
		return Input{Kind: InputUnroutable}
	default:
		return Input{Kind: InputUnroutable}
	}
}
