package workflow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/deskbot/core/telegram/format"
	"github.com/m3rciful/deskbot/internal/domain"
)

const (
	textWelcome             = "👋 Welcome!\n\nUse the buttons below to message the admins or to submit an application."
	textMessageAdminPrompt  = "✍️ Write your message for the admins. You can attach a photo, video, audio, voice or document."
	textMessageSent         = "✅ Your message has been sent to the admins. You will get a reply here."
	textApplyPrompt         = "📝 Send the files for your application one by one. Press \"Submit application\" when you are done."
	textApplicationReceived = "✅ Your application has been received. We will let you know the decision."
	textAlreadyApplied      = "⏳ Your application is already under review. Please wait for the decision."
	textAlreadyApproved     = "🎉 Your application has already been approved."
	textApproved            = "🎉 Congratulations! Your application has been approved."
	textRejected            = "❌ Sorry, your application has been rejected."
	textCancelled           = "❌ Cancelled."
	textNeedFile            = "📎 Please send a file for your application."
	textChooseButton        = "⚠️ Please choose one of the buttons below:"
	textNeedStart           = "Send /start to begin."

	alertApplicationNotFound = "Application not found."
	alertUserNotFound        = "User not found."
	alertNotAllowed          = "Decisions are taken in the admin group only."
	alertApproved            = "Approved ✅"
	alertRejected            = "Rejected ❌"
)

// TextError is the generic failure answer for unexpected errors.
const TextError = "❌ Something went wrong. Please try again later."

func textFileTooLarge(limit int64) string {
	return fmt.Sprintf("⚠️ The file is too large. The maximum size is %s.", format.FileSize(limit))
}

func textDraftAdded(name string, count int) string {
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("📎 %q added to your application (%d in total). Send more files or press \"Submit application\".", name, count)
}

func decisionTexts(d domain.Decision) (notice, alert string) {
	switch d {
	case domain.DecisionApprove:
		return textApproved, alertApproved
	default:
		return textRejected, alertRejected
	}
}

func summaryText(from domain.Sender, files []domain.Attachment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 NEW APPLICATION\n\n👤 User: %s %s\n🆔 ID: %d\n📁 Files: %d\n",
		format.UserLink(from.ID, from.FirstName, from.LastName),
		format.Username(from.Username),
		from.ID,
		len(files),
	)
	for i, f := range files {
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, format.EscapeHTML(f.FileName), format.FileSize(f.FileSize))
	}
	return b.String()
}

func summaryAuditText(id uuid.UUID, files int) string {
	return fmt.Sprintf("Application %s submitted (%d files)", id, files)
}
