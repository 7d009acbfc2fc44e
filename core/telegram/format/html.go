// Package format renders values for Telegram's HTML parse mode.
package format

import (
	"fmt"
	"html"
	"strings"
)

// EscapeHTML escapes <, >, & and quotes so arbitrary user text is safe in HTML mode.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// FullName joins first and last name, skipping empty parts.
func FullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// UserLink renders a tg://user mention. An empty name falls back to the numeric id.
func UserLink(id int64, first, last string) string {
	name := FullName(first, last)
	if name == "" {
		name = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id, EscapeHTML(name))
}

// Username renders @name, or a placeholder when the user has none.
func Username(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "(no username)"
	}
	return "@" + EscapeHTML(name)
}

// Code wraps s into an escaped <code> element.
func Code(s string) string {
	return "<code>" + EscapeHTML(s) + "</code>"
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FileSize renders a byte count with binary multiples, e.g. 1536 -> "1.5 KB".
func FileSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", n)
	}
	s := strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	return s + " " + sizeUnits[i]
}
