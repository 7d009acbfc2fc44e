package relay

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/deskbot/core/telegram/format"
	"github.com/m3rciful/deskbot/internal/domain"
)

const (
	captionLimit = 1024
	// user text budget inside an admin post; the header takes the rest of the 4096 limit
	textLimit = 3500
)

func adminCaption(from domain.Sender, text string, file *domain.Attachment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 User: %s %s\n🆔 ID: %d\n\n",
		format.UserLink(from.ID, from.FirstName, from.LastName),
		format.Username(from.Username),
		from.ID,
	)
	if text != "" {
		fmt.Fprintf(&b, "💬 Message: %s\n", format.EscapeHTML(truncate(text, textLimit)))
	}
	if file != nil {
		fmt.Fprintf(&b, "📎 File: %s\n", format.EscapeHTML(file.FileName))
		fmt.Fprintf(&b, "📊 Size: %s\n", format.FileSize(file.FileSize))
		fmt.Fprintf(&b, "🗂 Type: %s", strings.ToUpper(string(file.MediaType)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func fitsCaption(s string) bool {
	return utf8.RuneCountInString(s) <= captionLimit
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func adminReplyText(text string) string {
	if text == "" {
		return "📨 The admin sent you a reply."
	}
	return "📨 Admin reply:\n\n" + text
}
