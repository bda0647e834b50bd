package bot

import (
	"strings"

	"complaintbot/internal/models"
)

// Engine is the pure transition function of the intake flow. It holds only
// configuration; all state lives in the session passed through Transition.
type Engine struct {
	confirmCode  string
	cancelToken  string
	skipMarker   string
	mainMenu     models.Menu
	branchMenu   models.Menu
	categoryMenu models.Menu
}

// NewEngine builds an engine from injected configuration. Empty menus fall
// back to the built-in main menu; branch and category menus may be empty,
// in which case the transport renders a plain prompt.
func NewEngine(confirmCode, cancelToken, skipMarker string, branches, categories models.Menu) *Engine {
	if cancelToken == "" {
		cancelToken = "Cancel"
	}
	if skipMarker == "" {
		skipMarker = "."
	}
	return &Engine{
		confirmCode:  confirmCode,
		cancelToken:  cancelToken,
		skipMarker:   skipMarker,
		mainMenu:     defaultMainMenu,
		branchMenu:   branches,
		categoryMenu: categories,
	}
}

// CancelToken returns the configured cancellation label.
func (e *Engine) CancelToken() string { return e.cancelToken }

// MainMenu returns the idle-state menu.
func (e *Engine) MainMenu() models.Menu { return e.mainMenu }

// Outcome is what one transition asks the caller to do. Finalize and Export
// are the only effects observable outside the session itself; the caller
// performs them (and the post-finalize session reset) so that the engine
// stays pure.
type Outcome struct {
	Reply    models.Reply
	Changed  bool
	Finalize bool
	Export   bool
}

// Transition computes (session, input) -> (new session, outcome). It never
// touches storage, the media adapter, or the clock.
func (e *Engine) Transition(s models.UserSession, in Input) (models.UserSession, Outcome) {
	// Cancellation wins at every step.
	if in.Kind == InputCancel {
		s.ResetFlow()
		return s, Outcome{
			Reply:   models.Reply{Text: promptCancelled, Menu: e.mainMenu},
			Changed: true,
		}
	}

	switch s.Step {
	case models.StepIdle:
		return e.transitionIdle(s, in)

	case models.StepBranch:
		if in.Kind != InputStepText {
			return s, Outcome{Reply: models.Reply{Text: promptExpectText}}
		}
		s.Branch = in.Text
		s.Step = models.StepCategory
		return s, Outcome{
			Reply:   models.Reply{Text: promptCategory, Menu: e.withCancelRow(e.categoryMenu)},
			Changed: true,
		}

	case models.StepCategory:
		if in.Kind != InputStepText {
			return s, Outcome{Reply: models.Reply{Text: promptExpectText}}
		}
		s.Category = in.Text
		s.Step = models.StepContent
		return s, Outcome{
			Reply:   models.Reply{Text: promptContent, Menu: e.withCancelRow(nil)},
			Changed: true,
		}

	case models.StepContent:
		return e.transitionContent(s, in)

	case models.StepPatientName:
		if in.Kind != InputStepText {
			return s, Outcome{Reply: models.Reply{Text: promptExpectText}}
		}
		s.PatientName = in.Text
		s.Step = models.StepPatientPhone
		return s, Outcome{
			Reply:   models.Reply{Text: promptPatientPhone, Menu: e.withCancelRow(nil)},
			Changed: true,
		}

	case models.StepPatientPhone:
		if in.Kind != InputStepText {
			return s, Outcome{Reply: models.Reply{Text: promptExpectText}}
		}
		s.PatientPhone = in.Text
		// The caller builds and persists the record, then resets the
		// session; splitting it this way keeps finalize idempotent.
		return s, Outcome{
			Reply:    models.Reply{Text: promptSaved, Menu: e.mainMenu},
			Changed:  true,
			Finalize: true,
		}

	default:
		// A step outside the closed set should be unreachable; recover by
		// resetting to idle.
		s.ResetFlow()
		return s, Outcome{
			Reply:   models.Reply{Text: promptRestartFlow, Menu: e.mainMenu},
			Changed: true,
		}
	}
}

func (e *Engine) transitionIdle(s models.UserSession, in Input) (models.UserSession, Outcome) {
	if !s.Authorized {
		if in.Kind == InputCommand {
			return s, Outcome{Reply: models.Reply{Text: promptAuthCode}}
		}
		if in.Kind == InputAuthCode && in.Text == e.confirmCode {
			s.Authorized = true
			return s, Outcome{
				Reply:   models.Reply{Text: promptAuthorized, Menu: e.mainMenu},
				Changed: true,
			}
		}
		return s, Outcome{Reply: models.Reply{Text: promptInvalidCode}}
	}

	if in.Kind == InputCommand {
		switch in.Text {
		case CmdNewComplaint:
			s.Step = models.StepBranch
			return s, Outcome{
				Reply:   models.Reply{Text: promptBranch, Menu: e.withCancelRow(e.branchMenu)},
				Changed: true,
			}
		case CmdViewComplaints:
			// Delegated to the export collaborator; the caller fills in the
			// reply once the artifact exists.
			return s, Outcome{Export: true}
		}
	}
	return s, Outcome{Reply: models.Reply{Text: promptUseMenu, Menu: e.mainMenu}}
}

func (e *Engine) transitionContent(s models.UserSession, in Input) (models.UserSession, Outcome) {
	switch in.Kind {
	case InputStepText:
		if in.Text == e.skipMarker {
			// Leave content as-is: empty, or the previously stored media
			// reference.
			s.Step = models.StepPatientName
			return s, Outcome{
				Reply:   models.Reply{Text: promptPatientName, Menu: e.withCancelRow(nil)},
				Changed: true,
			}
		}
		if s.Content == "" {
			s.Content = in.Text
		} else {
			// A voice reference was stored earlier; supplementary text is
			// appended, never overwritten.
			s.Content += "\n" + in.Text
		}
		s.Step = models.StepPatientName
		return s, Outcome{
			Reply:   models.Reply{Text: promptPatientName, Menu: e.withCancelRow(nil)},
			Changed: true,
		}

	case InputVoiceStored:
		// A repeated voice send replaces the previous reference.
		s.Content = in.Text
		return s, Outcome{
			Reply:   models.Reply{Text: promptVoiceSaved, Menu: e.withCancelRow(nil)},
			Changed: true,
		}

	default:
		return s, Outcome{Reply: models.Reply{Text: promptExpectText}}
	}
}

// HasMediaScheme reports whether content starts with a durable media
// reference such as https://... or media://... rather than plain text.
func HasMediaScheme(content string) bool {
	i := strings.Index(content, "://")
	if i <= 0 {
		return false
	}
	return !strings.ContainsAny(content[:i], " \t\n")
}
