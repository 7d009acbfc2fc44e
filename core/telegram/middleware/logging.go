package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/deskbot/core/logger"
	"github.com/m3rciful/deskbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/deskbot/core/telegram/helpers"
)

// seenUpdates is a fixed-size ring of update IDs already logged. Command
// routes stack LoggerMiddleware on top of the global chain, so one update
// can pass through it twice.
type seenUpdates struct {
	mu   sync.Mutex
	ring [64]int
	next int
	set  map[int]struct{}
}

func (s *seenUpdates) firstTime(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		s.set = make(map[int]struct{}, len(s.ring))
	}
	if _, dup := s.set[id]; dup {
		return false
	}
	if old := s.ring[s.next]; old != 0 {
		delete(s.set, old)
	}
	s.ring[s.next] = id
	s.next = (s.next + 1) % len(s.ring)
	s.set[id] = struct{}{}
	return true
}

var received seenUpdates

// LoggerMiddleware assigns the update correlation id and logs a sampled
// update.received line once per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		chat, user := c.Chat(), c.Sender()
		if chat != nil {
			chatID = chat.ID
		}
		if user != nil {
			userID = user.ID
		}
		if _, ok := c.Get("rid").(string); !ok {
			c.Set("rid", logger.BuildRID(upd.ID, chatID, userID))
			c.Set("update_start", time.Now())
		}
		ctx := tghelpers.BuildContext(c)

		if logger.ShouldSampleDebug() && received.firstTime(upd.ID) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			attrs = append(attrs, receivedDetails(c)...)
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)
		}
		return next(c)
	}
}

func receivedDetails(c tele.Context) []slog.Attr {
	upd := c.Update()
	var attrs []slog.Attr
	if cb := upd.Callback; cb != nil {
		key, payload := callbacks.ParseCallbackData(cb)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
		return attrs
	}
	msg := upd.Message
	if msg == nil {
		return nil
	}
	if t := c.Text(); t != "" {
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
	}
	if media := msg.Media(); media != nil {
		attrs = append(attrs, slog.String("media_type", media.MediaType()))
	}
	if msg.ReplyTo != nil {
		attrs = append(attrs, slog.Int("reply_to", msg.ReplyTo.ID))
	}
	if msg.ThreadID != 0 {
		attrs = append(attrs, slog.Int("thread_id", msg.ThreadID))
	}
	return attrs
}
