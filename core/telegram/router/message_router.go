package router

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/deskbot/core/telegram"
	"github.com/m3rciful/deskbot/core/telegram/middleware"
)

// MessageOptions controls what happens to messages nobody claims.
type MessageOptions struct {
	Unknown tele.HandlerFunc
}

// nonTextEndpoints lists every non-text message kind routed to the message
// fallback, so no user message goes unanswered.
var nonTextEndpoints = []string{
	tele.OnPhoto,
	tele.OnVideo,
	tele.OnAudio,
	tele.OnVoice,
	tele.OnDocument,
	tele.OnSticker,
	tele.OnVideoNote,
	tele.OnAnimation,
	tele.OnLocation,
	tele.OnContact,
	tele.OnVenue,
	tele.OnPoll,
	tele.OnDice,
}

// MessageRoutes builds handlers for text and non-text messages. Text is matched
// against reply-keyboard buttons first, then commands typed inline; anything
// left over goes to the registry's message fallback.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	fallback := func(c tele.Context, start time.Time, name string) error {
		if reg != nil {
			if fb := reg.MessageFallback(); fb != nil {
				return handleWithSummary(c, name, start, func() error { return fb(c) })
			}
		}
		if opts.Unknown != nil {
			return handleWithSummary(c, "unknown_"+name, start, func() error { return opts.Unknown(c) })
		}
		logHandlerSummary(c, "unknown_"+name, start, "skip", nil)
		return nil
	}

	text := func(c tele.Context) error {
		start := time.Now()
		if reg != nil {
			if btn, ok := reg.LookupButton(c.Text()); ok {
				return handleWithSummary(c, "button."+normalizeHandlerName(btn.Name), start, func() error {
					return btn.Handler(c)
				})
			}
			if !strings.HasPrefix(c.Text(), "/") {
				return fallback(c, start, "text")
			}
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}
		return fallback(c, start, "text")
	}

	media := func(c tele.Context) error {
		return fallback(c, time.Now(), "media")
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	routes := []tg.Route{{Endpoint: tele.OnText, Handler: wrap(text)}}
	for _, ep := range nonTextEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: wrap(media)})
	}
	return routes
}
