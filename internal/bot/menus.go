package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/deskbot/core/telegram/keyboard"
	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/workflow"
)

// Reply-keyboard labels. Presses arrive as plain text and are matched exactly.
const (
	LabelMessageAdmin = "💬 Message admin"
	LabelApply        = "📝 Apply"
	LabelCancel       = "❌ Cancel"
	LabelBackToMenu   = "🏠 Back to menu"
	LabelSubmit       = "✅ Submit application"
)

var buttons = []struct {
	label  string
	button domain.Button
}{
	{LabelMessageAdmin, domain.ButtonMessageAdmin},
	{LabelApply, domain.ButtonApply},
	{LabelCancel, domain.ButtonCancel},
	{LabelBackToMenu, domain.ButtonBackToMenu},
	{LabelSubmit, domain.ButtonSubmit},
}

func menuMarkup(m workflow.Menu) *tele.ReplyMarkup {
	switch m {
	case workflow.MenuMain:
		return keyboard.ReplyButtons([]string{LabelMessageAdmin, LabelApply})
	case workflow.MenuCancel:
		return keyboard.ReplyButtons([]string{LabelCancel}, []string{LabelBackToMenu})
	case workflow.MenuSubmit:
		return keyboard.ReplyButtons([]string{LabelSubmit}, []string{LabelCancel})
	}
	return nil
}
