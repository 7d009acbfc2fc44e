package domain

import "github.com/google/uuid"

// Sender identifies who produced an inbound event.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Command is a slash command understood by the workflow.
type Command string

const CommandStart Command = "start"

// Button is a reply-keyboard action.
type Button string

const (
	ButtonMessageAdmin Button = "message_admin"
	ButtonApply        Button = "apply"
	ButtonCancel       Button = "cancel"
	ButtonBackToMenu   Button = "back_to_menu"
	ButtonSubmit       Button = "submit_application"
)

// Event is one of CommandEvent, ButtonEvent, DecisionEvent or MessageEvent.
type Event interface {
	Origin() Sender
	event()
}

type CommandEvent struct {
	Command Command
	From    Sender
	ChatID  int64
}

type ButtonEvent struct {
	Button Button
	From   Sender
}

// DecisionEvent is an admin pressing approve or reject under a summary post.
type DecisionEvent struct {
	Decision      Decision
	ApplicationID uuid.UUID
	From          Sender
	ChatID        int64
	PostID        int
}

// MessageEvent is any other message: text, media or both.
type MessageEvent struct {
	From      Sender
	ChatID    int64
	MessageID int
	// ReplyTo is the id of the message this one replies to, 0 if none.
	ReplyTo    int
	Text       string
	Attachment *Attachment
}

func (e CommandEvent) Origin() Sender  { return e.From }
func (e ButtonEvent) Origin() Sender   { return e.From }
func (e DecisionEvent) Origin() Sender { return e.From }
func (e MessageEvent) Origin() Sender  { return e.From }

func (CommandEvent) event()  {}
func (ButtonEvent) event()   {}
func (DecisionEvent) event() {}
func (MessageEvent) event()  {}
