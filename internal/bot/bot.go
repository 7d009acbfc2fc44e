// Package bot connects telebot to the workflow: updates become domain
// events, workflow replies become messages, alerts and keyboards.
package bot

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/deskbot/core/config"
	tg "github.com/m3rciful/deskbot/core/telegram"
	"github.com/m3rciful/deskbot/core/telegram/callbacks"
	"github.com/m3rciful/deskbot/core/telegram/commands"
	"github.com/m3rciful/deskbot/core/telegram/format"
	tghelpers "github.com/m3rciful/deskbot/core/telegram/helpers"
	"github.com/m3rciful/deskbot/core/telegram/router"
	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/workflow"
)

const (
	textSlowDown     = "⏳ Too many messages at once. Please resend the last one."
	alertUnsupported = "Unsupported action"
)

// Handler processes domain events; *workflow.Service implements it.
type Handler interface {
	Handle(ctx context.Context, ev domain.Event) (workflow.Reply, error)
}

type Bot struct {
	handler     Handler
	adminChatID int64

	send  func(c tele.Context, text string, opts ...*tele.SendOptions) error
	alert func(c tele.Context, text string, show bool) error
}

func New(h Handler, adminChatID int64) *Bot {
	return &Bot{
		handler:     h,
		adminChatID: adminChatID,
		send:        tghelpers.SendText,
		alert:       tghelpers.Alert,
	}
}

// Register adds the commands, keyboard buttons, decision callbacks and the
// message fallback to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	if err := reg.RegisterCommand("/start", commands.Command{
		Handler:     b.onStart,
		Description: "Open the main menu",
	}); err != nil {
		return err
	}
	if err := reg.RegisterCommand("/id", commands.Command{
		Handler:     b.onID,
		Description: "Show chat, topic and user ids",
		Hidden:      true,
	}); err != nil {
		return err
	}
	for _, btn := range buttons {
		if err := reg.RegisterButton(btn.label, tg.Button{
			Name:    string(btn.button),
			Handler: b.onButton(btn.button),
		}); err != nil {
			return err
		}
	}
	if err := reg.RegisterCallback(workflow.UniqueApprove, b.onDecision(domain.DecisionApprove)); err != nil {
		return err
	}
	if err := reg.RegisterCallback(workflow.UniqueReject, b.onDecision(domain.DecisionReject)); err != nil {
		return err
	}
	reg.SetMessageFallback(b.onMessage)
	return nil
}

// Routes builds the telebot routes for everything in reg.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminChatID: b.adminChatID})
	routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{})...)
	return append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
}

// Middlewares returns the shared chain with deskbot's user-facing answers.
func (b *Bot) Middlewares(cfg *coreconfig.Config) []tg.Middleware {
	return tg.DefaultMiddlewares(cfg, tg.MiddlewareHooks{
		OnLimited: func(c tele.Context) error {
			if c.Callback() != nil {
				return b.alert(c, textSlowDown, false)
			}
			return b.send(c, textSlowDown)
		},
		OnPanic: b.replyError,
	})
}

func (b *Bot) onStart(c tele.Context) error {
	return b.dispatch(c, domain.CommandEvent{
		Command: domain.CommandStart,
		From:    senderOf(c.Sender()),
		ChatID:  chatIDOf(c),
	})
}

func (b *Bot) onButton(button domain.Button) tele.HandlerFunc {
	return func(c tele.Context) error {
		// labels typed in the admin group are ordinary messages there
		if chatIDOf(c) == b.adminChatID {
			return b.onMessage(c)
		}
		return b.dispatch(c, domain.ButtonEvent{Button: button, From: senderOf(c.Sender())})
	}
}

func (b *Bot) onDecision(d domain.Decision) tele.HandlerFunc {
	return func(c tele.Context) error {
		id, err := callbacks.PayloadUUID(c)
		if err != nil {
			return b.alert(c, alertUnsupported, true)
		}
		ev := domain.DecisionEvent{
			Decision:      d,
			ApplicationID: id,
			From:          senderOf(c.Sender()),
			ChatID:        chatIDOf(c),
		}
		if m := c.Message(); m != nil {
			ev.PostID = m.ID
		}
		return b.dispatch(c, ev)
	}
}

func (b *Bot) onMessage(c tele.Context) error {
	return b.dispatch(c, messageEvent(c))
}

func (b *Bot) onID(c tele.Context) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🆔 <b>Chat ID:</b> <code>%d</code>\n", chatIDOf(c))
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if m := c.Message(); m != nil && m.ThreadID != 0 {
		fmt.Fprintf(&sb, "🧵 <b>Topic ID:</b> <code>%d</code>\n", m.ThreadID)
		opts.ThreadID = m.ThreadID
	}
	if u := c.Sender(); u != nil {
		fmt.Fprintf(&sb, "👤 <b>User ID:</b> <code>%d</code>\n", u.ID)
	}
	if chat := c.Chat(); chat != nil {
		title := chat.Title
		if title == "" {
			title = format.FullName(chat.FirstName, chat.LastName)
		}
		fmt.Fprintf(&sb, "💬 <b>Chat:</b> %s (%s)", format.EscapeHTML(title), chat.Type)
	}
	return b.send(c, strings.TrimRight(sb.String(), "\n"), opts)
}

func (b *Bot) dispatch(c tele.Context, ev domain.Event) error {
	reply, err := b.handler.Handle(tghelpers.BuildContext(c), ev)
	if err != nil {
		_ = b.replyError(c)
		return fmt.Errorf("handle %T: %w", ev, err)
	}
	return b.render(c, reply)
}

func (b *Bot) render(c tele.Context, r workflow.Reply) error {
	if c.Callback() != nil {
		return b.alert(c, r.Text, r.Alert)
	}
	if r.Text == "" {
		return nil
	}
	if markup := menuMarkup(r.Menu); markup != nil {
		return b.send(c, r.Text, &tele.SendOptions{ReplyMarkup: markup})
	}
	return b.send(c, r.Text)
}

func (b *Bot) replyError(c tele.Context) error {
	if c.Callback() != nil {
		return b.alert(c, workflow.TextError, true)
	}
	return b.send(c, workflow.TextError)
}
