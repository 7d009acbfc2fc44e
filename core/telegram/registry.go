package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/deskbot/core/logger"
	"github.com/m3rciful/deskbot/core/telegram/commands"
)

// Button is a reply-keyboard label bound to a handler. Name is used in logs and metrics.
type Button struct {
	Name    string
	Handler tele.HandlerFunc
}

// Registration errors.
var (
	ErrInvalidRegistration = errors.New("telegram: invalid registration")
	ErrDuplicate           = errors.New("telegram: already registered")
)

// Registry holds bot commands, callbacks and reply-keyboard buttons.
// Registration happens during wiring; lookups are safe from concurrent handlers.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	buttons          map[string]Button
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	messageFallback  tele.HandlerFunc
}

// NewRegistry creates an empty Registry with default fallbacks.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		buttons:   make(map[string]Button),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func rejectWiring(kind, name string, err error) error {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register."+kind+".skip",
		slog.String("name", name),
		slog.String("cause", err.Error()),
	)
	return fmt.Errorf("register %s %q: %w", kind, name, err)
}

// RegisterCommand adds a slash command. Names must start with "/" and carry a description.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 || cmd.Handler == nil || cmd.Description == "" {
		return rejectWiring("command", name, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return rejectWiring("command", name, ErrDuplicate)
	}
	r.commands[name] = cmd
	return nil
}

// ListCommands returns commands sorted by name. With visibleOnly, hidden and
// admin-only commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves text such as "/start@desk_bot payload" to the
// canonical command name. Aliases match with or without the slash.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	name = "/" + strings.TrimPrefix(name, "/")

	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if "/"+strings.TrimPrefix(alias, "/") == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// RegisterButton binds a reply-keyboard label to a handler.
func (r *Registry) RegisterButton(label string, btn Button) error {
	label = strings.TrimSpace(label)
	if label == "" || btn.Handler == nil {
		return rejectWiring("button", label, ErrInvalidRegistration)
	}
	if btn.Name == "" {
		btn.Name = label
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.buttons[label]; dup {
		return rejectWiring("button", btn.Name, ErrDuplicate)
	}
	r.buttons[label] = btn
	return nil
}

// LookupButton matches text against registered labels exactly, ignoring surrounding spaces.
func (r *Registry) LookupButton(text string) (Button, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buttons[strings.TrimSpace(text)]
	return b, ok
}

// RegisterCallback maps an inline button's unique key to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return rejectWiring("callback", key, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		return rejectWiring("callback", key, ErrDuplicate)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the fallback handler for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.callbackNotFound
}

// SetMessageFallback sets the handler for messages that match no command or
// button, media included.
func (r *Registry) SetMessageFallback(h tele.HandlerFunc) {
	r.messageFallback = h
}

// MessageFallback returns the current message fallback handler.
func (r *Registry) MessageFallback() tele.HandlerFunc {
	return r.messageFallback
}

// InitBotCommands sets the Telegram bot commands shown in the command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if len(list) == 0 {
		return
	}
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
