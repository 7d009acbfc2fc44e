// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/gateway"
)

// Sent is one delivered message.
type Sent struct {
	ID      int
	To      gateway.Target
	Text    string
	File    *domain.Attachment
	Caption string
	Opts    gateway.Options
}

// Removal records a RemoveControls call.
type Removal struct {
	ChatID    int64
	MessageID int
}

// Recorder stores every send and hands out increasing message ids.
type Recorder struct {
	mu      sync.Mutex
	nextID  int
	sent    []Sent
	removed []Removal

	// GoneThreads lists topic ids that answer with "thread not found".
	GoneThreads map[int]bool
	// Fail, when set, is consulted before every send; a non-nil result is returned as the error.
	Fail func(to gateway.Target) error
}

func New() *Recorder {
	return &Recorder{nextID: 1000, GoneThreads: map[int]bool{}}
}

func (r *Recorder) deliver(s Sent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		if err := r.Fail(s.To); err != nil {
			return 0, err
		}
	}
	if s.To.ThreadID != 0 && r.GoneThreads[s.To.ThreadID] {
		return 0, gateway.ErrThreadNotFound
	}
	r.nextID++
	s.ID = r.nextID
	r.sent = append(r.sent, s)
	return s.ID, nil
}

func (r *Recorder) SendText(_ context.Context, to gateway.Target, text string, opts gateway.Options) (int, error) {
	return r.deliver(Sent{To: to, Text: text, Opts: opts})
}

func (r *Recorder) SendMedia(_ context.Context, to gateway.Target, file domain.Attachment, caption string, opts gateway.Options) (int, error) {
	f := file
	return r.deliver(Sent{To: to, File: &f, Caption: caption, Opts: opts})
}

func (r *Recorder) RemoveControls(_ context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, Removal{ChatID: chatID, MessageID: messageID})
	return nil
}

// Sent returns a copy of every delivered message in order.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// SentTo returns messages delivered to chatID.
func (r *Recorder) SentTo(chatID int64) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.To.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Removed returns every RemoveControls call.
func (r *Recorder) Removed() []Removal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Removal(nil), r.removed...)
}

// Reset forgets recorded traffic.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.removed = nil
}
