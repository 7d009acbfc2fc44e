package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/deskbot/core/logger"
	"github.com/m3rciful/deskbot/core/telegram/sender"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes helper sends through d. Nil restores direct sends.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// deliver queues run on the dispatcher. A full or closed queue degrades to
// a synchronous call so replies are not silently lost during shutdown.
func deliver(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends text to the current chat. Parse mode and markup come from
// opts; only the first element is used.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var extra []interface{}
	if len(opts) > 0 && opts[0] != nil {
		extra = append(extra, opts[0])
	}
	return deliver(c, "send.text", "sendMessage", func() error {
		return c.Send(text, extra...)
	})
}

// Alert answers a callback query. With show set the client displays a modal alert.
func Alert(c tele.Context, text string, show bool) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: show})
}
