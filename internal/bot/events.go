package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/deskbot/internal/domain"
)

func senderOf(u *tele.User) domain.Sender {
	if u == nil {
		return domain.Sender{}
	}
	return domain.Sender{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func chatIDOf(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

// attachmentOf extracts the single file a message carries. Files Telegram
// sends without a name get one built from their type.
func attachmentOf(m *tele.Message) *domain.Attachment {
	if m == nil {
		return nil
	}
	build := func(t domain.MediaType, f tele.File, name, ext string) *domain.Attachment {
		if strings.TrimSpace(name) == "" {
			name = string(t)
			if f.UniqueID != "" {
				name += "_" + f.UniqueID
			}
			name += ext
		}
		return &domain.Attachment{
			MediaType: t,
			FileID:    f.FileID,
			FileName:  name,
			FileSize:  int64(f.FileSize),
		}
	}

	switch {
	case m.Photo != nil:
		return build(domain.MediaPhoto, m.Photo.File, "", ".jpg")
	case m.Audio != nil:
		return build(domain.MediaAudio, m.Audio.File, m.Audio.FileName, ".mp3")
	case m.Voice != nil:
		return build(domain.MediaVoice, m.Voice.File, "", ".ogg")
	case m.Video != nil:
		return build(domain.MediaVideo, m.Video.File, m.Video.FileName, ".mp4")
	case m.Document != nil:
		return build(domain.MediaDocument, m.Document.File, m.Document.FileName, "")
	case m.Sticker != nil:
		return build(domain.MediaSticker, m.Sticker.File, "", ".webp")
	case m.VideoNote != nil:
		return build(domain.MediaVideoNote, m.VideoNote.File, "", ".mp4")
	}
	return nil
}

func messageEvent(c tele.Context) domain.MessageEvent {
	ev := domain.MessageEvent{
		From:   senderOf(c.Sender()),
		ChatID: chatIDOf(c),
	}
	m := c.Message()
	if m == nil {
		return ev
	}
	ev.MessageID = m.ID
	if m.ReplyTo != nil {
		ev.ReplyTo = m.ReplyTo.ID
	}
	ev.Text = m.Text
	if ev.Text == "" {
		ev.Text = m.Caption
	}
	ev.Attachment = attachmentOf(m)
	return ev
}
