package bot

import "complaintbot/internal/models"

// Main-menu commands. The transport renders these as buttons and echoes the
// label back as the event payload.
const (
	CmdNewComplaint   = "File a complaint"
	CmdViewComplaints = "View complaints"
)

const (
	promptAuthCode       = "Enter the confirmation code to continue."
	promptInvalidCode    = "Invalid code. Try again."
	promptAuthorized     = "Authorization successful."
	promptUseMenu        = "Please use the menu buttons."
	promptBranch         = "Select a branch:"
	promptCategory       = "Select a complaint category:"
	promptContent        = "Describe your complaint or send a voice message:"
	promptVoiceSaved     = "Voice message saved. You can add a text note, or send \".\" to skip."
	promptPatientName    = "Enter the patient's full name."
	promptPatientPhone   = "Enter the patient's phone number."
	promptSaved          = "Complaint saved. Thank you."
	promptCancelled      = "Complaint cancelled. You are back at the main menu."
	promptExpectText     = "A text reply is expected at this step."
	promptIngestFailed   = "Could not save the voice message. Please try again."
	promptRestartFlow    = "Something went wrong with your report. Please start again."
	promptExportEmpty    = "There are no complaints yet."
	promptExportReady    = "Complaint export is ready: "
	promptExportFailed   = "Could not export complaints. Please retry later."
)

// Replies the transition caller needs for effects the engine itself cannot
// perform (media ingestion, export generation, defect recovery).

// IngestFailedReply tells the user to resend a voice message.
func (e *Engine) IngestFailedReply() models.Reply {
	return models.Reply{Text: promptIngestFailed, Menu: e.withCancelRow(nil)}
}

// ExportReadyReply points the user at a finished export artifact.
func (e *Engine) ExportReadyReply(url string) models.Reply {
	return models.Reply{Text: promptExportReady + url, Menu: e.mainMenu}
}

// ExportEmptyReply reports that there is nothing to export.
func (e *Engine) ExportEmptyReply() models.Reply {
	return models.Reply{Text: promptExportEmpty, Menu: e.mainMenu}
}

// ExportFailedReply reports a failed export run.
func (e *Engine) ExportFailedReply() models.Reply {
	return models.Reply{Text: promptExportFailed, Menu: e.mainMenu}
}

// RestartReply is the safe-recovery answer after an internal defect.
func (e *Engine) RestartReply() models.Reply {
	return models.Reply{Text: promptRestartFlow, Menu: e.mainMenu}
}

var defaultMainMenu = models.Menu{
	{CmdNewComplaint},
	{CmdViewComplaints},
}

// withCancelRow appends the cancel button to an in-flow menu.
func (e *Engine) withCancelRow(menu models.Menu) models.Menu {
	out := make(models.Menu, 0, len(menu)+1)
	out = append(out, menu...)
	out = append(out, []string{e.cancelToken})
	return out
}
