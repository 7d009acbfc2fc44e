// Package storage defines the persistence boundary of the bot.
// Implementations live in storage/postgres and storage/memory.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/deskbot/internal/domain"
)

// ErrNotFound is returned when a point lookup finds nothing.
var ErrNotFound = errors.New("storage: not found")

type Users interface {
	Get(ctx context.Context, id int64) (domain.User, error)
	// Register inserts the user or refreshes its identity fields, resetting state to none.
	// ApplicationStatus and CreatedAt of an existing user are preserved.
	Register(ctx context.Context, u domain.User) (domain.User, error)
	// Update persists State, ApplicationStatus and UpdatedAt of an existing user.
	Update(ctx context.Context, u domain.User) error
}

type Drafts interface {
	Get(ctx context.Context, userID int64) (domain.Draft, error)
	// Reset creates or replaces the user's draft with an empty file list.
	Reset(ctx context.Context, userID int64, expiresAt, now time.Time) error
	// Append adds file to the user's draft, creating it if needed, and refreshes expiry.
	Append(ctx context.Context, userID int64, file domain.Attachment, expiresAt, now time.Time) (domain.Draft, error)
	Delete(ctx context.Context, userID int64) error
	// DeleteExpired removes drafts whose expiry is before cutoff and reports how many went.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type Applications interface {
	Create(ctx context.Context, a domain.Application) error
	Get(ctx context.Context, id uuid.UUID) (domain.Application, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus, processedAt time.Time) error
}

// Threads is the append-only map from admin-group posts to users.
type Threads interface {
	Bind(ctx context.Context, e domain.ThreadEntry) error
	Lookup(ctx context.Context, groupMessageID int) (domain.ThreadEntry, error)
}

// Messages is the append-only relay audit log.
type Messages interface {
	Append(ctx context.Context, m domain.MessageRecord) error
}

// Store groups the repositories. InTx runs fn against a transactional view;
// calling InTx on that view reuses the same transaction.
type Store interface {
	Users() Users
	Drafts() Drafts
	Applications() Applications
	Threads() Threads
	Messages() Messages
	InTx(ctx context.Context, fn func(Store) error) error
}
