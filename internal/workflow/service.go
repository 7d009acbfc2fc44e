// Package workflow drives the per-user state machine and the application
// workflow. Every inbound event goes through Service.Handle.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/deskbot/core/logger"
	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/gateway"
	"github.com/m3rciful/deskbot/internal/locks"
	"github.com/m3rciful/deskbot/internal/relay"
	"github.com/m3rciful/deskbot/internal/storage"
)

// Menu selects the reply keyboard shown with a Reply.
type Menu int

const (
	// MenuKeep leaves the keyboard the user currently sees.
	MenuKeep Menu = iota
	MenuMain
	MenuCancel
	MenuSubmit
)

// Reply is what the bot answers to the event's origin. Alert replies answer
// a decision button press instead of posting a message.
type Reply struct {
	Text  string
	Menu  Menu
	Alert bool
}

// Callback uniques of the decision buttons under an application summary.
const (
	UniqueApprove = "app_approve"
	UniqueReject  = "app_reject"
)

// Config holds the application limits.
type Config struct {
	MaxFileSize int64
	DraftTTL    time.Duration
}

type Service struct {
	store  storage.Store
	relay  *relay.Relay
	gw     gateway.Gateway
	locker locks.Locker
	cfg    Config

	now   func() time.Time
	newID func() uuid.UUID
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs replaces the application id generator.
func WithIDs(gen func() uuid.UUID) Option {
	return func(s *Service) { s.newID = gen }
}

func New(store storage.Store, r *relay.Relay, gw gateway.Gateway, locker locks.Locker, cfg Config, opts ...Option) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = domain.DefaultMaxFileSize
	}
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = domain.DefaultDraftTTL
	}
	s := &Service{
		store:  store,
		relay:  r,
		gw:     gw,
		locker: locker,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle processes one inbound event. Validation problems come back as a
// Reply; a non-nil error means the caller should answer with TextError.
func (s *Service) Handle(ctx context.Context, ev domain.Event) (Reply, error) {
	switch e := ev.(type) {
	case domain.CommandEvent:
		return s.locked(ctx, e.From.ID, func() (Reply, error) { return s.command(ctx, e) })
	case domain.ButtonEvent:
		return s.locked(ctx, e.From.ID, func() (Reply, error) { return s.press(ctx, e) })
	case domain.DecisionEvent:
		return s.decide(ctx, e)
	case domain.MessageEvent:
		if s.relay.IsAdminChat(e.ChatID) {
			_, err := s.relay.ToUser(ctx, e)
			return Reply{}, err
		}
		return s.locked(ctx, e.From.ID, func() (Reply, error) { return s.message(ctx, e) })
	default:
		return Reply{}, fmt.Errorf("workflow: unsupported event %T", ev)
	}
}

func (s *Service) locked(ctx context.Context, userID int64, fn func() (Reply, error)) (Reply, error) {
	release, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("lock user %d: %w", userID, err)
	}
	defer release()
	return fn()
}

func (s *Service) command(ctx context.Context, e domain.CommandEvent) (Reply, error) {
	switch e.Command {
	case domain.CommandStart:
		u, err := s.store.Users().Register(ctx, domain.User{
			ID:        e.From.ID,
			Username:  e.From.Username,
			FirstName: e.From.FirstName,
			LastName:  e.From.LastName,
			UpdatedAt: s.now(),
		})
		if err != nil {
			return Reply{}, fmt.Errorf("register user: %w", err)
		}
		logger.Info(ctx, "workflow", "user.start",
			slog.String("state", string(u.State)),
			slog.String("application_status", string(u.ApplicationStatus)),
		)
		return Reply{Text: textWelcome, Menu: MenuMain}, nil
	default:
		return Reply{}, fmt.Errorf("workflow: unknown command %q", e.Command)
	}
}

// loadUser returns ok=false when the user never sent /start.
func (s *Service) loadUser(ctx context.Context, id int64) (domain.User, bool, error) {
	u, err := s.store.Users().Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("load user: %w", err)
	}
	return u, true, nil
}

// transition persists a state change through tx and logs it.
func (s *Service) transition(ctx context.Context, tx storage.Store, u *domain.User, to domain.UserState) error {
	from := u.State
	u.State = to
	u.UpdatedAt = s.now()
	if err := tx.Users().Update(ctx, *u); err != nil {
		return fmt.Errorf("update user state: %w", err)
	}
	if from != to {
		logger.Info(ctx, "workflow", "state.transition",
			slog.String("from_state", string(from)),
			slog.String("to_state", string(to)),
		)
	}
	return nil
}

func (s *Service) press(ctx context.Context, e domain.ButtonEvent) (Reply, error) {
	u, ok, err := s.loadUser(ctx, e.From.ID)
	if err != nil || !ok {
		return Reply{Text: textNeedStart}, err
	}

	switch e.Button {
	case domain.ButtonMessageAdmin:
		if err := s.transition(ctx, s.store, &u, domain.StateMessagingAdmin); err != nil {
			return Reply{}, err
		}
		return Reply{Text: textMessageAdminPrompt, Menu: MenuCancel}, nil
	case domain.ButtonApply:
		return s.startApplication(ctx, u)
	case domain.ButtonCancel:
		if err := s.transition(ctx, s.store, &u, domain.StateNone); err != nil {
			return Reply{}, err
		}
		return Reply{Text: textCancelled, Menu: MenuMain}, nil
	case domain.ButtonBackToMenu:
		if err := s.transition(ctx, s.store, &u, domain.StateNone); err != nil {
			return Reply{}, err
		}
		return Reply{Text: textWelcome, Menu: MenuMain}, nil
	case domain.ButtonSubmit:
		return s.submit(ctx, u, e.From)
	default:
		return Reply{}, fmt.Errorf("workflow: unknown button %q", e.Button)
	}
}

func (s *Service) message(ctx context.Context, e domain.MessageEvent) (Reply, error) {
	u, ok, err := s.loadUser(ctx, e.From.ID)
	if err != nil || !ok {
		return Reply{Text: textNeedStart}, err
	}

	switch u.State {
	case domain.StateNone:
		return Reply{Text: textChooseButton, Menu: MenuMain}, nil
	case domain.StateMessagingAdmin:
		// content-less messages (location, contact, poll) relay the sender header alone
		if _, err := s.relay.ToAdmin(ctx, e.From, e.Text, e.Attachment); err != nil {
			return Reply{}, err
		}
		if err := s.transition(ctx, s.store, &u, domain.StateNone); err != nil {
			return Reply{}, err
		}
		return Reply{Text: textMessageSent, Menu: MenuMain}, nil
	case domain.StateCollectingApplication:
		return s.addFile(ctx, u, e.Attachment)
	default:
		return Reply{}, fmt.Errorf("workflow: user %d in unknown state %q", u.ID, u.State)
	}
}
