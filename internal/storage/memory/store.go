// Package memory is an in-process storage.Store. It backs tests and the
// "memory" storage driver; nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/storage"
)

type tables struct {
	users    map[int64]domain.User
	drafts   map[int64]domain.Draft
	apps     map[uuid.UUID]domain.Application
	threads  map[int]domain.ThreadEntry
	messages []domain.MessageRecord
}

func newTables() *tables {
	return &tables{
		users:   make(map[int64]domain.User),
		drafts:  make(map[int64]domain.Draft),
		apps:    make(map[uuid.UUID]domain.Application),
		threads: make(map[int]domain.ThreadEntry),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.drafts {
		v.Files = slices.Clone(v.Files)
		c.drafts[k] = v
	}
	for k, v := range t.apps {
		v.Files = slices.Clone(v.Files)
		c.apps[k] = v
	}
	for k, v := range t.threads {
		c.threads[k] = v
	}
	c.messages = slices.Clone(t.messages)
	return c
}

// Store keeps every table behind one mutex. A transaction works on a copy
// that replaces the live tables only when fn succeeds.
type Store struct {
	mu   *sync.Mutex
	t    *tables
	inTx bool
}

func New() *Store {
	return &Store{mu: &sync.Mutex{}, t: newTables()}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Users() storage.Users               { return users{s} }
func (s *Store) Drafts() storage.Drafts             { return drafts{s} }
func (s *Store) Applications() storage.Applications { return applications{s} }
func (s *Store) Threads() storage.Threads           { return threads{s} }
func (s *Store) Messages() storage.Messages         { return messages{s} }

func (s *Store) InTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	view := &Store{mu: s.mu, t: s.t.clone(), inTx: true}
	if err := fn(view); err != nil {
		return err
	}
	s.t = view.t
	return nil
}

// AuditLog returns a copy of the relay audit log in insertion order.
func (s *Store) AuditLog() []domain.MessageRecord {
	defer s.lock()()
	return slices.Clone(s.t.messages)
}

// ApplicationsOf returns the user's applications ordered by submission time.
func (s *Store) ApplicationsOf(userID int64) []domain.Application {
	defer s.lock()()
	var out []domain.Application
	for _, a := range s.t.apps {
		if a.UserID == userID {
			a.Files = slices.Clone(a.Files)
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

type users struct{ s *Store }

func (r users) Get(_ context.Context, id int64) (domain.User, error) {
	defer r.s.lock()()
	u, ok := r.s.t.users[id]
	if !ok {
		return domain.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (r users) Register(_ context.Context, u domain.User) (domain.User, error) {
	defer r.s.lock()()
	cur, ok := r.s.t.users[u.ID]
	if !ok {
		cur = domain.User{ID: u.ID, ApplicationStatus: domain.ApplicationNone, CreatedAt: u.UpdatedAt}
	}
	cur.Username, cur.FirstName, cur.LastName = u.Username, u.FirstName, u.LastName
	cur.State = domain.StateNone
	cur.UpdatedAt = u.UpdatedAt
	r.s.t.users[u.ID] = cur
	return cur, nil
}

func (r users) Update(_ context.Context, u domain.User) error {
	defer r.s.lock()()
	cur, ok := r.s.t.users[u.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.State = u.State
	cur.ApplicationStatus = u.ApplicationStatus
	cur.UpdatedAt = u.UpdatedAt
	r.s.t.users[u.ID] = cur
	return nil
}

type drafts struct{ s *Store }

func (r drafts) Get(_ context.Context, userID int64) (domain.Draft, error) {
	defer r.s.lock()()
	d, ok := r.s.t.drafts[userID]
	if !ok {
		return domain.Draft{}, storage.ErrNotFound
	}
	d.Files = slices.Clone(d.Files)
	return d, nil
}

func (r drafts) Reset(_ context.Context, userID int64, expiresAt, now time.Time) error {
	defer r.s.lock()()
	r.s.t.drafts[userID] = domain.Draft{UserID: userID, Files: []domain.Attachment{}, ExpiresAt: expiresAt, UpdatedAt: now}
	return nil
}

func (r drafts) Append(_ context.Context, userID int64, file domain.Attachment, expiresAt, now time.Time) (domain.Draft, error) {
	defer r.s.lock()()
	d := r.s.t.drafts[userID]
	d.UserID = userID
	d.Files = append(slices.Clone(d.Files), file)
	d.ExpiresAt = expiresAt
	d.UpdatedAt = now
	r.s.t.drafts[userID] = d
	d.Files = slices.Clone(d.Files)
	return d, nil
}

func (r drafts) Delete(_ context.Context, userID int64) error {
	defer r.s.lock()()
	delete(r.s.t.drafts, userID)
	return nil
}

func (r drafts) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, d := range r.s.t.drafts {
		if d.ExpiresAt.Before(cutoff) {
			delete(r.s.t.drafts, id)
			n++
		}
	}
	return n, nil
}

type applications struct{ s *Store }

func (r applications) Create(_ context.Context, a domain.Application) error {
	defer r.s.lock()()
	a.Files = slices.Clone(a.Files)
	r.s.t.apps[a.ID] = a
	return nil
}

func (r applications) Get(_ context.Context, id uuid.UUID) (domain.Application, error) {
	defer r.s.lock()()
	a, ok := r.s.t.apps[id]
	if !ok {
		return domain.Application{}, storage.ErrNotFound
	}
	a.Files = slices.Clone(a.Files)
	return a, nil
}

func (r applications) SetStatus(_ context.Context, id uuid.UUID, status domain.SubmissionStatus, processedAt time.Time) error {
	defer r.s.lock()()
	a, ok := r.s.t.apps[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.Status = status
	a.ProcessedAt = &processedAt
	r.s.t.apps[id] = a
	return nil
}

type threads struct{ s *Store }

func (r threads) Bind(_ context.Context, e domain.ThreadEntry) error {
	defer r.s.lock()()
	r.s.t.threads[e.GroupMessageID] = e
	return nil
}

func (r threads) Lookup(_ context.Context, groupMessageID int) (domain.ThreadEntry, error) {
	defer r.s.lock()()
	e, ok := r.s.t.threads[groupMessageID]
	if !ok {
		return domain.ThreadEntry{}, storage.ErrNotFound
	}
	return e, nil
}

type messages struct{ s *Store }

func (r messages) Append(_ context.Context, m domain.MessageRecord) error {
	defer r.s.lock()()
	m.ID = int64(len(r.s.t.messages) + 1)
	r.s.t.messages = append(r.s.t.messages, m)
	return nil
}
