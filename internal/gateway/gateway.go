// Package gateway is the outbound side of the messenger: send text or media
// to a chat, optionally into a forum topic and as a reply, and strip inline
// controls from an earlier post.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/m3rciful/deskbot/internal/domain"
)

// ErrThreadNotFound means the targeted forum topic no longer exists.
var ErrThreadNotFound = errors.New("gateway: message thread not found")

// Target addresses a chat, an optional topic and an optional message to reply to.
type Target struct {
	ChatID   int64
	ThreadID int
	ReplyTo  int
}

// WithoutThread returns t addressed to the chat's default area.
func (t Target) WithoutThread() Target {
	t.ThreadID = 0
	return t
}

// Action is an inline button; Unique selects the callback handler, Data is its payload.
type Action struct {
	Text   string
	Unique string
	Data   string
}

// Options tune a single send.
type Options struct {
	HTML    bool
	Actions [][]Action
}

// Gateway is implemented by Telebot and by Recorder in tests.
type Gateway interface {
	SendText(ctx context.Context, to Target, text string, opts Options) (int, error)
	SendMedia(ctx context.Context, to Target, file domain.Attachment, caption string, opts Options) (int, error)
	RemoveControls(ctx context.Context, chatID int64, messageID int) error
}

// IsThreadNotFound classifies Bot API errors that mean the topic is gone.
func IsThreadNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrThreadNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "thread not found")
}
