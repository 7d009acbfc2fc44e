// Package relay moves messages between users and the admin group and keeps
// the thread map that routes admin replies back to the right user.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/deskbot/core/logger"
	"github.com/m3rciful/deskbot/core/metrics"
	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/gateway"
	"github.com/m3rciful/deskbot/internal/storage"
)

// Config addresses the admin group. Zero topic ids mean the group's default area.
type Config struct {
	GroupID            int64
	MessageTopicID     int
	ApplicationTopicID int
}

type Relay struct {
	gw    gateway.Gateway
	store storage.Store
	cfg   Config
	now   func() time.Time
}

func New(gw gateway.Gateway, store storage.Store, cfg Config) *Relay {
	return &Relay{gw: gw, store: store, cfg: cfg, now: time.Now}
}

// Config returns the admin group addressing the relay was built with.
func (r *Relay) Config() Config { return r.cfg }

// IsAdminChat reports whether chatID is the admin group.
func (r *Relay) IsAdminChat(chatID int64) bool {
	return chatID == r.cfg.GroupID
}

// post sends once and, if the topic is gone, once more into the default area.
func (r *Relay) post(ctx context.Context, to gateway.Target, send func(gateway.Target) (int, error)) (int, gateway.Target, error) {
	id, err := send(to)
	if err == nil || to.ThreadID == 0 || !gateway.IsThreadNotFound(err) {
		return id, to, err
	}
	logger.Warn(ctx, "relay", "relay.thread_fallback",
		slog.Int("thread_id", to.ThreadID),
		slog.String("err", err.Error()),
	)
	to = to.WithoutThread()
	id, err = send(to)
	return id, to, err
}

func (r *Relay) postText(ctx context.Context, to gateway.Target, text string, opts gateway.Options) (int, gateway.Target, error) {
	return r.post(ctx, to, func(t gateway.Target) (int, error) {
		return r.gw.SendText(ctx, t, text, opts)
	})
}

func (r *Relay) postMedia(ctx context.Context, to gateway.Target, file domain.Attachment, caption string, opts gateway.Options) (int, gateway.Target, error) {
	return r.post(ctx, to, func(t gateway.Target) (int, error) {
		return r.gw.SendMedia(ctx, t, file, caption, opts)
	})
}

// ToAdmin forwards a user's message into the admin message topic, binds the
// resulting post(s) to the user and writes the audit record.
func (r *Relay) ToAdmin(ctx context.Context, from domain.Sender, text string, file *domain.Attachment) (int, error) {
	header := adminCaption(from, text, file)
	to := gateway.Target{ChatID: r.cfg.GroupID, ThreadID: r.cfg.MessageTopicID}
	html := gateway.Options{HTML: true}

	var (
		rootID int
		ids    []int
		err    error
	)
	switch {
	case file == nil:
		rootID, to, err = r.postText(ctx, to, header, html)
		ids = append(ids, rootID)
	case file.MediaType.AcceptsCaption() && fitsCaption(header):
		rootID, to, err = r.postMedia(ctx, to, *file, header, html)
		ids = append(ids, rootID)
	default:
		// header first, media as a reply to it
		rootID, to, err = r.postText(ctx, to, header, html)
		if err == nil {
			ids = append(ids, rootID)
			var mediaID int
			reply := to
			reply.ReplyTo = rootID
			if mediaID, _, err = r.postMedia(ctx, reply, *file, "", gateway.Options{}); err == nil {
				ids = append(ids, mediaID)
			}
		}
	}
	if err != nil {
		return 0, fmt.Errorf("relay to admin: %w", err)
	}

	now := r.now()
	err = r.store.InTx(ctx, func(tx storage.Store) error {
		for _, id := range ids {
			if err := tx.Threads().Bind(ctx, domain.ThreadEntry{
				GroupMessageID: id,
				UserID:         from.ID,
				Kind:           domain.ThreadMessage,
				CreatedAt:      now,
			}); err != nil {
				return err
			}
		}
		return tx.Messages().Append(ctx, domain.MessageRecord{
			UserID:         from.ID,
			Direction:      domain.ToAdmin,
			Kind:           domain.ThreadMessage,
			Content:        text,
			GroupMessageID: rootID,
			TopicID:        to.ThreadID,
			CreatedAt:      now,
		}.WithAttachment(file))
	})
	if err != nil {
		return 0, fmt.Errorf("record relayed message: %w", err)
	}

	metrics.RelayedMessages.WithLabelValues(string(domain.ToAdmin)).Inc()
	logger.Info(ctx, "relay", "relay.to_admin",
		slog.String("status", "ok"),
		slog.Int("group_message_id", rootID),
		slog.Int("thread_id", to.ThreadID),
		slog.String("media_type", string(mediaTypeOf(file))),
	)
	return rootID, nil
}

// PostSummary sends an application summary with decision buttons into the application topic.
// It only sends; binding the post is part of the caller's submission transaction.
func (r *Relay) PostSummary(ctx context.Context, summary string, actions [][]gateway.Action) (int, int, error) {
	to := gateway.Target{ChatID: r.cfg.GroupID, ThreadID: r.cfg.ApplicationTopicID}
	id, to, err := r.postText(ctx, to, summary, gateway.Options{HTML: true, Actions: actions})
	if err != nil {
		return 0, 0, fmt.Errorf("post application summary: %w", err)
	}
	return id, to.ThreadID, nil
}

// ForwardFiles posts each file as a reply to the summary. Failures are logged and skipped.
// Successfully posted files are bound to the user as well so replies to them route back.
func (r *Relay) ForwardFiles(ctx context.Context, userID int64, appID uuid.UUID, rootID, threadID int, files []domain.Attachment) int {
	sent := 0
	to := gateway.Target{ChatID: r.cfg.GroupID, ThreadID: threadID, ReplyTo: rootID}
	for i, f := range files {
		id, _, err := r.postMedia(ctx, to, f, "", gateway.Options{})
		if err != nil {
			logger.Warn(ctx, "relay", "relay.file_failed",
				slog.String("application_id", appID.String()),
				slog.Int("index", i),
				slog.String("media_type", string(f.MediaType)),
				slog.String("err", err.Error()),
			)
			continue
		}
		sent++
		if err := r.store.Threads().Bind(ctx, domain.ThreadEntry{
			GroupMessageID: id,
			UserID:         userID,
			Kind:           domain.ThreadApplication,
			ApplicationID:  appID,
			CreatedAt:      r.now(),
		}); err != nil {
			logger.Warn(ctx, "relay", "relay.bind_failed",
				slog.Int("group_message_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
	return sent
}

// ToUser routes an admin reply to the user bound to the replied-to post.
// Replies to untracked posts are dropped without a trace and report false.
func (r *Relay) ToUser(ctx context.Context, ev domain.MessageEvent) (bool, error) {
	if ev.ReplyTo == 0 {
		return false, nil
	}
	entry, err := r.store.Threads().Lookup(ctx, ev.ReplyTo)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup thread: %w", err)
	}

	to := gateway.Target{ChatID: entry.UserID}
	if ev.Attachment != nil {
		caption := ""
		if ev.Attachment.MediaType.AcceptsCaption() {
			caption = ev.Text
		}
		_, err = r.gw.SendMedia(ctx, to, *ev.Attachment, caption, gateway.Options{})
	} else {
		_, err = r.gw.SendText(ctx, to, adminReplyText(ev.Text), gateway.Options{})
	}
	if err != nil {
		return false, fmt.Errorf("relay to user: %w", err)
	}

	topic := r.cfg.MessageTopicID
	if entry.Kind == domain.ThreadApplication {
		topic = r.cfg.ApplicationTopicID
	}
	err = r.store.Messages().Append(ctx, domain.MessageRecord{
		UserID:                entry.UserID,
		Direction:             domain.ToUser,
		Kind:                  entry.Kind,
		Content:               ev.Text,
		GroupMessageID:        ev.MessageID,
		ReplyToGroupMessageID: ev.ReplyTo,
		TopicID:               topic,
		CreatedAt:             r.now(),
	}.WithAttachment(ev.Attachment))
	if err != nil {
		return true, fmt.Errorf("record admin reply: %w", err)
	}

	metrics.RelayedMessages.WithLabelValues(string(domain.ToUser)).Inc()
	logger.Info(ctx, "relay", "relay.to_user",
		slog.String("status", "ok"),
		slog.Int64("user_id", entry.UserID),
		slog.Int("reply_to", ev.ReplyTo),
		slog.String("kind", string(entry.Kind)),
	)
	return true, nil
}

func mediaTypeOf(file *domain.Attachment) domain.MediaType {
	if file == nil {
		return domain.MediaText
	}
	return file.MediaType
}
