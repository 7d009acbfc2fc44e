package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

const outboundKey = "outbound"

// Outbound is what a handler sent back while processing one update.
type Outbound struct {
	Messages int
	Keyboard bool
}

// tally is shared with sender workers, which may finish after the handler.
type tally struct {
	mu  sync.Mutex
	out Outbound
}

func (t *tally) record(opts []interface{}) {
	kb := carriesMarkup(opts)
	t.mu.Lock()
	t.out.Messages++
	t.out.Keyboard = t.out.Keyboard || kb
	t.mu.Unlock()
}

func (t *tally) snapshot() Outbound {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out
}

func carriesMarkup(opts []interface{}) bool {
	for _, o := range opts {
		if m, ok := o.(*tele.ReplyMarkup); ok && m != nil {
			return true
		}
		if so, ok := o.(*tele.SendOptions); ok && so != nil && so.ReplyMarkup != nil {
			return true
		}
	}
	return false
}

// countingContext intercepts the reply-producing calls of tele.Context.
type countingContext struct {
	tele.Context
	out *tally
}

func (c countingContext) track(err error, opts []interface{}) error {
	if err == nil {
		c.out.record(opts)
	}
	return err
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware exposes an Outbound tally to downstream handlers.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		out := &tally{}
		c.Set(outboundKey, out)
		return next(countingContext{Context: c, out: out})
	}
}

// OutboundFrom returns the tally for the current update, or a zero value
// when the metrics middleware is not installed.
func OutboundFrom(c tele.Context) Outbound {
	if c == nil {
		return Outbound{}
	}
	if t, ok := c.Get(outboundKey).(*tally); ok && t != nil {
		return t.snapshot()
	}
	return Outbound{}
}
