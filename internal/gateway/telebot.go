package gateway

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/deskbot/core/telegram/keyboard"
	"github.com/m3rciful/deskbot/internal/domain"
)

// API is the subset of *tele.Bot used here.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
}

// Telebot sends through the Telegram Bot API.
type Telebot struct {
	api API
}

func NewTelebot(api API) *Telebot {
	return &Telebot{api: api}
}

func sendOptions(to Target, opts Options) *tele.SendOptions {
	so := &tele.SendOptions{ThreadID: to.ThreadID}
	if to.ReplyTo != 0 {
		so.ReplyTo = &tele.Message{ID: to.ReplyTo}
	}
	if opts.HTML {
		so.ParseMode = tele.ModeHTML
	}
	if len(opts.Actions) > 0 {
		rows := make([][]keyboard.InlineBtn, 0, len(opts.Actions))
		for _, row := range opts.Actions {
			r := make([]keyboard.InlineBtn, 0, len(row))
			for _, a := range row {
				r = append(r, keyboard.InlineBtn{Text: a.Text, Unique: a.Unique, Data: a.Data})
			}
			rows = append(rows, r)
		}
		so.ReplyMarkup = keyboard.InlineButtonsRows(rows...)
	}
	return so
}

func (g *Telebot) send(to Target, what interface{}, opts Options) (int, error) {
	msg, err := g.api.Send(tele.ChatID(to.ChatID), what, sendOptions(to, opts))
	if err != nil {
		if to.ThreadID != 0 && IsThreadNotFound(err) {
			return 0, fmt.Errorf("%w: %v", ErrThreadNotFound, err)
		}
		return 0, err
	}
	if msg == nil {
		return 0, nil
	}
	return msg.ID, nil
}

func (g *Telebot) SendText(_ context.Context, to Target, text string, opts Options) (int, error) {
	return g.send(to, text, opts)
}

func (g *Telebot) SendMedia(_ context.Context, to Target, file domain.Attachment, caption string, opts Options) (int, error) {
	return g.send(to, Sendable(file, caption), opts)
}

func (g *Telebot) RemoveControls(_ context.Context, chatID int64, messageID int) error {
	msg := tele.StoredMessage{ChatID: chatID, MessageID: strconv.Itoa(messageID)}
	if _, err := g.api.EditReplyMarkup(msg, nil); err != nil {
		return fmt.Errorf("remove controls: %w", err)
	}
	return nil
}

// Sendable converts an attachment into the matching telebot media value.
// Unknown media types are sent as documents.
func Sendable(file domain.Attachment, caption string) tele.Sendable {
	f := tele.File{FileID: file.FileID}
	switch file.MediaType {
	case domain.MediaPhoto:
		return &tele.Photo{File: f, Caption: caption}
	case domain.MediaAudio:
		return &tele.Audio{File: f, Caption: caption, FileName: file.FileName}
	case domain.MediaVoice:
		return &tele.Voice{File: f, Caption: caption}
	case domain.MediaVideo:
		return &tele.Video{File: f, Caption: caption, FileName: file.FileName}
	case domain.MediaSticker:
		return &tele.Sticker{File: f}
	case domain.MediaVideoNote:
		return &tele.VideoNote{File: f}
	default:
		return &tele.Document{File: f, Caption: caption, FileName: file.FileName}
	}
}
