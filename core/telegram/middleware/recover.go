package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/deskbot/core/logger"
	tghelpers "github.com/m3rciful/deskbot/core/telegram/helpers"
)

// RecoverMiddleware catches panics in handlers and prevents the bot from crashing.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return RecoverWith(nil)(next)
}

// RecoverWith is RecoverMiddleware that also runs onPanic, typically to tell
// the sender something went wrong. The panic is returned as an error.
func RecoverWith(onPanic tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger.TG.LogAttrs(tghelpers.BuildContext(c), slog.LevelError, "panic recovered",
					slog.String("event", "tg.panic"),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				if onPanic != nil {
					_ = onPanic(c)
				}
				err = fmt.Errorf("panic: %v", r)
			}()
			return next(c)
		}
	}
}
