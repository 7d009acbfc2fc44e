package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/gateway"
	"github.com/m3rciful/deskbot/internal/gateway/gatewaytest"
	"github.com/m3rciful/deskbot/internal/storage/memory"
)

const adminGroup int64 = -100500

var (
	fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	ann      = domain.Sender{ID: 42, Username: "ann", FirstName: "Ann", LastName: "Lee"}
)

func newRelay(t *testing.T) (*Relay, *gatewaytest.Recorder, *memory.Store) {
	t.Helper()
	rec := gatewaytest.New()
	store := memory.New()
	r := New(rec, store, Config{GroupID: adminGroup, MessageTopicID: 7, ApplicationTopicID: 8})
	r.now = func() time.Time { return fixedNow }
	return r, rec, store
}

func TestToAdminTextBindsThread(t *testing.T) {
	ctx := context.Background()
	r, rec, store := newRelay(t)

	id, err := r.ToAdmin(ctx, ann, "hello <b>", nil)
	require.NoError(t, err)

	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, id, sent[0].ID)
	assert.Equal(t, gateway.Target{ChatID: adminGroup, ThreadID: 7}, sent[0].To)
	assert.True(t, sent[0].Opts.HTML)
	assert.Contains(t, sent[0].Text, "hello &lt;b&gt;")
	assert.Contains(t, sent[0].Text, "🆔 ID: 42")
	assert.Contains(t, sent[0].Text, "@ann")

	entry, err := store.Threads().Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.UserID)
	assert.Equal(t, domain.ThreadMessage, entry.Kind)
	assert.Equal(t, uuid.Nil, entry.ApplicationID)

	audit := store.AuditLog()
	require.Len(t, audit, 1)
	assert.Equal(t, domain.ToAdmin, audit[0].Direction)
	assert.Equal(t, domain.MediaText, audit[0].MediaType)
	assert.Equal(t, "hello <b>", audit[0].Content)
	assert.Equal(t, id, audit[0].GroupMessageID)
	assert.Equal(t, 7, audit[0].TopicID)
}

func TestToAdminMediaCarriesCaption(t *testing.T) {
	r, rec, store := newRelay(t)
	doc := &domain.Attachment{MediaType: domain.MediaDocument, FileID: "f1", FileName: "cv.pdf", FileSize: 1536}

	_, err := r.ToAdmin(context.Background(), ann, "my cv", doc)
	require.NoError(t, err)

	sent := rec.Sent()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].File)
	assert.Equal(t, "f1", sent[0].File.FileID)
	assert.Contains(t, sent[0].Caption, "📎 File: cv.pdf")
	assert.Contains(t, sent[0].Caption, "📊 Size: 1.5 KB")
	assert.Contains(t, sent[0].Caption, "🗂 Type: DOCUMENT")

	audit := store.AuditLog()
	require.Len(t, audit, 1)
	assert.Equal(t, domain.MediaDocument, audit[0].MediaType)
	assert.Equal(t, "f1", audit[0].MediaFileID)
	assert.Equal(t, int64(1536), audit[0].FileSize)
}

func TestToAdminCaptionlessMediaPostsHeaderFirst(t *testing.T) {
	ctx := context.Background()
	r, rec, store := newRelay(t)
	sticker := &domain.Attachment{MediaType: domain.MediaSticker, FileID: "st"}

	id, err := r.ToAdmin(ctx, ann, "", sticker)
	require.NoError(t, err)

	sent := rec.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, id, sent[0].ID)
	assert.Nil(t, sent[0].File)
	require.NotNil(t, sent[1].File)
	assert.Empty(t, sent[1].Caption)
	assert.Equal(t, id, sent[1].To.ReplyTo)

	for _, s := range sent {
		entry, err := store.Threads().Lookup(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(42), entry.UserID)
	}
}

func TestToAdminLongTextFallsBackToHeader(t *testing.T) {
	r, rec, _ := newRelay(t)
	photo := &domain.Attachment{MediaType: domain.MediaPhoto, FileID: "p"}

	_, err := r.ToAdmin(context.Background(), ann, strings.Repeat("x", 2000), photo)
	require.NoError(t, err)

	sent := rec.Sent()
	require.Len(t, sent, 2)
	assert.Nil(t, sent[0].File)
	assert.Empty(t, sent[1].Caption)
}

func TestToAdminRetriesWithoutGoneTopic(t *testing.T) {
	ctx := context.Background()
	r, rec, store := newRelay(t)
	rec.GoneThreads[7] = true

	id, err := r.ToAdmin(ctx, ann, "hi", nil)
	require.NoError(t, err)

	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 0, sent[0].To.ThreadID)

	audit := store.AuditLog()
	require.Len(t, audit, 1)
	assert.Equal(t, 0, audit[0].TopicID)

	_, err = store.Threads().Lookup(ctx, id)
	assert.NoError(t, err)
}

func TestToAdminSendFailureLeavesNoTrace(t *testing.T) {
	r, rec, store := newRelay(t)
	rec.Fail = func(gateway.Target) error { return errors.New("network down") }

	_, err := r.ToAdmin(context.Background(), ann, "hi", nil)
	require.Error(t, err)
	assert.Empty(t, store.AuditLog())
}

func TestToUserRoutesReply(t *testing.T) {
	ctx := context.Background()
	r, rec, store := newRelay(t)
	root, err := r.ToAdmin(ctx, ann, "question", nil)
	require.NoError(t, err)
	rec.Reset()

	ok, err := r.ToUser(ctx, domain.MessageEvent{
		From:      domain.Sender{ID: 1},
		ChatID:    adminGroup,
		MessageID: 555,
		ReplyTo:   root,
		Text:      "answer",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	sent := rec.SentTo(42)
	require.Len(t, sent, 1)
	assert.Equal(t, "📨 Admin reply:\n\nanswer", sent[0].Text)

	audit := store.AuditLog()
	require.Len(t, audit, 2)
	last := audit[1]
	assert.Equal(t, domain.ToUser, last.Direction)
	assert.Equal(t, 555, last.GroupMessageID)
	assert.Equal(t, root, last.ReplyToGroupMessageID)
	assert.Equal(t, 7, last.TopicID)
}

func TestToUserForwardsMedia(t *testing.T) {
	ctx := context.Background()
	r, rec, _ := newRelay(t)
	root, err := r.ToAdmin(ctx, ann, "question", nil)
	require.NoError(t, err)
	rec.Reset()

	photo := &domain.Attachment{MediaType: domain.MediaPhoto, FileID: "ph"}
	ok, err := r.ToUser(ctx, domain.MessageEvent{ChatID: adminGroup, MessageID: 9, ReplyTo: root, Text: "look", Attachment: photo})
	require.NoError(t, err)
	assert.True(t, ok)

	sent := rec.SentTo(42)
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].File)
	assert.Equal(t, "look", sent[0].Caption)
}

func TestToUserDropsUntrackedReplies(t *testing.T) {
	ctx := context.Background()
	r, rec, store := newRelay(t)

	for _, ev := range []domain.MessageEvent{
		{ChatID: adminGroup, MessageID: 1, Text: "not a reply"},
		{ChatID: adminGroup, MessageID: 2, ReplyTo: 999, Text: "reply to unknown"},
	} {
		ok, err := r.ToUser(ctx, ev)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Empty(t, rec.Sent())
	assert.Empty(t, store.AuditLog())
}

func TestForwardFilesSkipsFailures(t *testing.T) {
	ctx := context.Background()
	r, rec, store := newRelay(t)
	appID := uuid.New()
	calls := 0
	rec.Fail = func(gateway.Target) error {
		calls++
		if calls == 2 {
			return errors.New("file too big for api")
		}
		return nil
	}
	files := []domain.Attachment{
		{MediaType: domain.MediaDocument, FileID: "a"},
		{MediaType: domain.MediaDocument, FileID: "b"},
		{MediaType: domain.MediaPhoto, FileID: "c"},
	}

	n := r.ForwardFiles(ctx, 42, appID, 100, 8, files)
	assert.Equal(t, 2, n)

	sent := rec.Sent()
	require.Len(t, sent, 2)
	for _, s := range sent {
		assert.Equal(t, 100, s.To.ReplyTo)
		entry, err := store.Threads().Lookup(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, appID, entry.ApplicationID)
		assert.Equal(t, domain.ThreadApplication, entry.Kind)
	}
}

func TestPostSummaryFallsBack(t *testing.T) {
	r, rec, _ := newRelay(t)
	rec.GoneThreads[8] = true

	id, topic, err := r.PostSummary(context.Background(), "summary", [][]gateway.Action{{{Text: "ok", Unique: "u", Data: "d"}}})
	require.NoError(t, err)
	assert.Equal(t, 0, topic)
	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, id, sent[0].ID)
	assert.Len(t, sent[0].Opts.Actions, 1)
}
