package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/deskbot/core/logger"
	"github.com/m3rciful/deskbot/core/metrics"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds ("message", "callback") that bypass the limiter.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// limiter remembers when each user was last let through.
// Entries older than the interval carry no information and are pruned.
type limiter struct {
	interval  time.Duration
	mu        sync.Mutex
	seen      map[int64]time.Time
	lastPrune time.Time
	now       func() time.Time
}

func newLimiter(interval time.Duration) *limiter {
	return &limiter{interval: interval, seen: make(map[int64]time.Time), now: time.Now}
}

// allow records the attempt and reports whether it passes.
func (l *limiter) allow(userID int64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= l.interval {
		for id, at := range l.seen {
			if now.Sub(at) >= l.interval {
				delete(l.seen, id)
			}
		}
		l.lastPrune = now
	}
	if at, ok := l.seen[userID]; ok && now.Sub(at) < l.interval {
		return false
	}
	l.seen[userID] = now
	return true
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	}
	return "other"
}

// RateLimitMiddleware drops updates arriving from one user faster than Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	return rateLimit(opts, newLimiter(opts.Interval))
}

func rateLimit(opts RateLimitOptions, lim *limiter) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip || lim.allow(user.ID) {
				return next(c)
			}

			metrics.RateLimited.WithLabelValues(kind).Inc()
			attrs := []slog.Attr{
				slog.String("outcome", "rate_limited"),
				slog.String("kind", kind),
				slog.Int64("user_id", user.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.LogEvent(logger.Background(), logger.TG, slog.LevelWarn, "tg.rate_limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
