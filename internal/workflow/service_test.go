package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/gateway"
	"github.com/m3rciful/deskbot/internal/gateway/gatewaytest"
	"github.com/m3rciful/deskbot/internal/locks"
	"github.com/m3rciful/deskbot/internal/relay"
	"github.com/m3rciful/deskbot/internal/storage"
	"github.com/m3rciful/deskbot/internal/storage/memory"
)

const (
	adminGroup int64 = -1001
	appTopic         = 8
	msgTopic         = 7
)

var (
	t0    = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	ann   = domain.Sender{ID: 42, Username: "ann", FirstName: "Ann"}
	admin = domain.Sender{ID: 7, Username: "boss"}
	appID = uuid.MustParse("9f0e2c7a-1111-4c5e-9a2b-000000000001")
)

type harness struct {
	svc   *Service
	store *memory.Store
	gw    *gatewaytest.Recorder
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: memory.New(), gw: gatewaytest.New(), clock: t0}
	r := relay.New(h.gw, h.store, relay.Config{GroupID: adminGroup, MessageTopicID: msgTopic, ApplicationTopicID: appTopic})
	h.svc = New(h.store, r, h.gw, locks.NewMemory(time.Second),
		Config{MaxFileSize: domain.DefaultMaxFileSize, DraftTTL: domain.DefaultDraftTTL},
		WithClock(func() time.Time { return h.clock }),
		WithIDs(func() uuid.UUID { return appID }),
	)
	return h
}

func (h *harness) handle(t *testing.T, ev domain.Event) Reply {
	t.Helper()
	reply, err := h.svc.Handle(context.Background(), ev)
	require.NoError(t, err)
	return reply
}

func (h *harness) user(t *testing.T, id int64) domain.User {
	t.Helper()
	u, err := h.store.Users().Get(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (h *harness) start(t *testing.T, from domain.Sender) {
	h.handle(t, domain.CommandEvent{Command: domain.CommandStart, From: from, ChatID: from.ID})
}

func press(from domain.Sender, b domain.Button) domain.ButtonEvent {
	return domain.ButtonEvent{Button: b, From: from}
}

func fileMsg(from domain.Sender, size int64) domain.MessageEvent {
	return domain.MessageEvent{
		From:   from,
		ChatID: from.ID,
		Attachment: &domain.Attachment{
			MediaType: domain.MediaDocument,
			FileID:    fmt.Sprintf("file-%d", size),
			FileName:  "cv.pdf",
			FileSize:  size,
		},
	}
}

func TestStartRegistersUser(t *testing.T) {
	h := newHarness(t)
	reply := h.handle(t, domain.CommandEvent{Command: domain.CommandStart, From: ann, ChatID: ann.ID})

	assert.Equal(t, textWelcome, reply.Text)
	assert.Equal(t, MenuMain, reply.Menu)
	u := h.user(t, ann.ID)
	assert.Equal(t, domain.StateNone, u.State)
	assert.Equal(t, domain.ApplicationNone, u.ApplicationStatus)
}

func TestUnknownUserIsAskedToStart(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, textNeedStart, h.handle(t, press(ann, domain.ButtonApply)).Text)
	assert.Equal(t, textNeedStart, h.handle(t, domain.MessageEvent{From: ann, ChatID: ann.ID, Text: "hi"}).Text)
}

func TestFreeMessageInNoneStateShowsMenu(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	reply := h.handle(t, domain.MessageEvent{From: ann, ChatID: ann.ID, Text: "hello?"})
	assert.Equal(t, textChooseButton, reply.Text)
	assert.Equal(t, MenuMain, reply.Menu)
	assert.Empty(t, h.gw.Sent())
}

func TestMessageAdminRelaysOnceAndReturnsToNone(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)

	reply := h.handle(t, press(ann, domain.ButtonMessageAdmin))
	assert.Equal(t, MenuCancel, reply.Menu)
	assert.Equal(t, domain.StateMessagingAdmin, h.user(t, ann.ID).State)

	reply = h.handle(t, domain.MessageEvent{From: ann, ChatID: ann.ID, MessageID: 3, Text: "need help"})
	assert.Equal(t, textMessageSent, reply.Text)
	assert.Equal(t, domain.StateNone, h.user(t, ann.ID).State)

	sent := h.gw.SentTo(adminGroup)
	require.Len(t, sent, 1)
	assert.Equal(t, msgTopic, sent[0].To.ThreadID)

	// a second message is not relayed
	h.handle(t, domain.MessageEvent{From: ann, ChatID: ann.ID, MessageID: 4, Text: "again"})
	assert.Len(t, h.gw.SentTo(adminGroup), 1)
}

func TestAdminReplyRoutesBackToUser(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonMessageAdmin))
	h.handle(t, domain.MessageEvent{From: ann, ChatID: ann.ID, Text: "need help"})
	root := h.gw.SentTo(adminGroup)[0].ID

	reply := h.handle(t, domain.MessageEvent{From: admin, ChatID: adminGroup, MessageID: 900, ReplyTo: root, Text: "on it"})
	assert.Empty(t, reply.Text)

	toUser := h.gw.SentTo(ann.ID)
	require.Len(t, toUser, 1)
	assert.Contains(t, toUser[0].Text, "on it")

	var toUserRecords int
	for _, m := range h.store.AuditLog() {
		if m.Direction == domain.ToUser {
			toUserRecords++
			assert.Equal(t, ann.ID, m.UserID)
		}
	}
	assert.Equal(t, 1, toUserRecords)
}

func TestAdminReplyToUntrackedPostIsDropped(t *testing.T) {
	h := newHarness(t)
	reply := h.handle(t, domain.MessageEvent{From: admin, ChatID: adminGroup, MessageID: 5, ReplyTo: 4242, Text: "?"})
	assert.Empty(t, reply.Text)
	assert.Empty(t, h.gw.Sent())
	assert.Empty(t, h.store.AuditLog())
}

func TestApplyWhilePendingChangesNothing(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	u := h.user(t, ann.ID)
	u.ApplicationStatus = domain.ApplicationPending
	require.NoError(t, h.store.Users().Update(context.Background(), u))

	reply := h.handle(t, press(ann, domain.ButtonApply))
	assert.Equal(t, textAlreadyApplied, reply.Text)
	assert.Equal(t, domain.StateNone, h.user(t, ann.ID).State)
	_, err := h.store.Drafts().Get(context.Background(), ann.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApplyWhenApproved(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	u := h.user(t, ann.ID)
	u.ApplicationStatus = domain.ApplicationApproved
	require.NoError(t, h.store.Users().Update(context.Background(), u))

	assert.Equal(t, textAlreadyApproved, h.handle(t, press(ann, domain.ButtonApply)).Text)
	assert.Equal(t, domain.StateNone, h.user(t, ann.ID).State)
}

func TestApplyResetsDraftWithFreshExpiry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))
	h.handle(t, fileMsg(ann, 10))

	h.clock = t0.Add(time.Hour)
	reply := h.handle(t, press(ann, domain.ButtonApply))
	assert.Equal(t, textApplyPrompt, reply.Text)
	assert.Equal(t, MenuCancel, reply.Menu)

	d, err := h.store.Drafts().Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, d.Files)
	assert.Equal(t, h.clock.Add(24*time.Hour), d.ExpiresAt)
	assert.Equal(t, domain.StateCollectingApplication, h.user(t, ann.ID).State)
}

func TestFileSizeCeiling(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))

	reply := h.handle(t, fileMsg(ann, 31_457_281))
	assert.Equal(t, textFileTooLarge(domain.DefaultMaxFileSize), reply.Text)
	assert.Contains(t, reply.Text, "30 MB")
	d, err := h.store.Drafts().Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, d.Files)

	reply = h.handle(t, fileMsg(ann, 31_457_280))
	assert.Equal(t, MenuSubmit, reply.Menu)
	d, err = h.store.Drafts().Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.Len(t, d.Files, 1)
	assert.Equal(t, domain.StateCollectingApplication, h.user(t, ann.ID).State)
}

func TestAddFileRefreshesExpiry(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))
	h.clock = t0.Add(5 * time.Hour)
	h.handle(t, fileMsg(ann, 100))

	d, err := h.store.Drafts().Get(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Equal(t, h.clock.Add(24*time.Hour), d.ExpiresAt)
}

func TestExpiredDraftLivesUntilSwept(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))
	h.handle(t, fileMsg(ann, 10))

	// past expiry with no sweep run in between
	h.clock = t0.Add(72 * time.Hour)
	h.handle(t, fileMsg(ann, 20))
	d, err := h.store.Drafts().Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.Len(t, d.Files, 2)
	assert.Equal(t, h.clock.Add(24*time.Hour), d.ExpiresAt)

	n, err := h.store.Drafts().DeleteExpired(ctx, h.clock.Add(25*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	reply := h.handle(t, press(ann, domain.ButtonSubmit))
	assert.Equal(t, textNeedFile, reply.Text)
	assert.Empty(t, h.store.ApplicationsOf(ann.ID))
}

func TestTextWhileCollectingDemandsFile(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))

	reply := h.handle(t, domain.MessageEvent{From: ann, ChatID: ann.ID, Text: "here it is"})
	assert.Equal(t, textNeedFile, reply.Text)
	assert.Equal(t, domain.StateCollectingApplication, h.user(t, ann.ID).State)
}

func TestLocationWhileCollectingDemandsFile(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))

	// a location carries neither text nor a file
	reply := h.handle(t, domain.MessageEvent{From: ann, ChatID: ann.ID, MessageID: 9})
	assert.Equal(t, textNeedFile, reply.Text)
	assert.Equal(t, domain.StateCollectingApplication, h.user(t, ann.ID).State)
	assert.Empty(t, h.gw.SentTo(adminGroup))
}

func TestLocationWhileMessagingAdminRelaysHeader(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonMessageAdmin))

	reply := h.handle(t, domain.MessageEvent{From: ann, ChatID: ann.ID, MessageID: 9})
	assert.Equal(t, textMessageSent, reply.Text)
	assert.Equal(t, domain.StateNone, h.user(t, ann.ID).State)

	sent := h.gw.SentTo(adminGroup)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "ID: 42")
	assert.Len(t, h.store.AuditLog(), 1)
}

func TestSubmitWithoutFiles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))

	reply := h.handle(t, press(ann, domain.ButtonSubmit))
	assert.Equal(t, textNeedFile, reply.Text)
	assert.Empty(t, h.store.ApplicationsOf(ann.ID))
	_, err := h.store.Drafts().Get(ctx, ann.ID)
	assert.NoError(t, err, "draft must survive an empty submit")
	assert.Empty(t, h.gw.Sent())
}

func TestCancelAndBackReturnToNone(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)

	h.handle(t, press(ann, domain.ButtonApply))
	assert.Equal(t, textCancelled, h.handle(t, press(ann, domain.ButtonCancel)).Text)
	assert.Equal(t, domain.StateNone, h.user(t, ann.ID).State)

	h.handle(t, press(ann, domain.ButtonMessageAdmin))
	assert.Equal(t, MenuMain, h.handle(t, press(ann, domain.ButtonBackToMenu)).Menu)
	assert.Equal(t, domain.StateNone, h.user(t, ann.ID).State)
}

func TestSubmitSnapshotsDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))
	h.handle(t, fileMsg(ann, 1))
	h.handle(t, fileMsg(ann, 2))
	h.handle(t, fileMsg(ann, 3))
	draft, err := h.store.Drafts().Get(ctx, ann.ID)
	require.NoError(t, err)

	reply := h.handle(t, press(ann, domain.ButtonSubmit))
	assert.Equal(t, textApplicationReceived, reply.Text)

	apps := h.store.ApplicationsOf(ann.ID)
	require.Len(t, apps, 1)
	assert.Equal(t, domain.SubmissionSubmitted, apps[0].Status)
	assert.Equal(t, draft.Files, apps[0].Files)

	_, err = h.store.Drafts().Get(ctx, ann.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	u := h.user(t, ann.ID)
	assert.Equal(t, domain.ApplicationPending, u.ApplicationStatus)
	assert.Equal(t, domain.StateNone, u.State)

	// summary + three files, files reply to the summary
	sent := h.gw.SentTo(adminGroup)
	require.Len(t, sent, 4)
	assert.Equal(t, appTopic, sent[0].To.ThreadID)
	require.Len(t, sent[0].Opts.Actions, 1)
	assert.Equal(t, UniqueApprove, sent[0].Opts.Actions[0][0].Unique)
	assert.Equal(t, appID.String(), sent[0].Opts.Actions[0][0].Data)
	for i, s := range sent[1:] {
		assert.Equal(t, sent[0].ID, s.To.ReplyTo)
		assert.Equal(t, draft.Files[i].FileID, s.File.FileID)
	}

	entry, err := h.store.Threads().Lookup(ctx, sent[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadApplication, entry.Kind)
	assert.Equal(t, appID, entry.ApplicationID)
}

func TestSubmitSendFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))
	h.handle(t, fileMsg(ann, 1))
	h.gw.Fail = func(to gateway.Target) error {
		if to.ChatID == adminGroup {
			return errors.New("bad gateway")
		}
		return nil
	}

	_, err := h.svc.Handle(ctx, press(ann, domain.ButtonSubmit))
	require.Error(t, err)
	assert.Empty(t, h.store.ApplicationsOf(ann.ID))
	d, err := h.store.Drafts().Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.Len(t, d.Files, 1)
	assert.Equal(t, domain.ApplicationNone, h.user(t, ann.ID).ApplicationStatus)
}

func submitted(t *testing.T) (*harness, int) {
	t.Helper()
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))
	h.handle(t, fileMsg(ann, 1_000_000))
	h.handle(t, press(ann, domain.ButtonSubmit))
	post := h.gw.SentTo(adminGroup)[0].ID
	h.gw.Reset()
	return h, post
}

func decision(d domain.Decision, id uuid.UUID, post int) domain.DecisionEvent {
	return domain.DecisionEvent{Decision: d, ApplicationID: id, From: admin, ChatID: adminGroup, PostID: post}
}

func TestDecisionsReapplyAndNotifyEachClick(t *testing.T) {
	ctx := context.Background()
	h, post := submitted(t)

	steps := []struct {
		d      domain.Decision
		app    domain.SubmissionStatus
		user   domain.ApplicationStatus
		notice string
		alert  string
	}{
		{domain.DecisionApprove, domain.SubmissionApproved, domain.ApplicationApproved, textApproved, alertApproved},
		{domain.DecisionReject, domain.SubmissionRejected, domain.ApplicationRejected, textRejected, alertRejected},
		{domain.DecisionReject, domain.SubmissionRejected, domain.ApplicationRejected, textRejected, alertRejected},
	}
	for i, st := range steps {
		h.clock = t0.Add(time.Duration(i+1) * time.Minute)
		reply := h.handle(t, decision(st.d, appID, post))
		assert.True(t, reply.Alert)
		assert.Equal(t, st.alert, reply.Text)

		app, err := h.store.Applications().Get(ctx, appID)
		require.NoError(t, err)
		assert.Equal(t, st.app, app.Status)
		require.NotNil(t, app.ProcessedAt)
		assert.Equal(t, h.clock, *app.ProcessedAt)
		assert.Equal(t, st.user, h.user(t, ann.ID).ApplicationStatus)

		notices := h.gw.SentTo(ann.ID)
		require.Len(t, notices, i+1)
		assert.Equal(t, st.notice, notices[i].Text)
	}
	assert.Len(t, h.gw.Removed(), len(steps))
}

func TestDecisionOnMissingRecords(t *testing.T) {
	h, post := submitted(t)

	reply := h.handle(t, decision(domain.DecisionApprove, uuid.New(), post))
	assert.Equal(t, alertApplicationNotFound, reply.Text)
	assert.True(t, reply.Alert)
	assert.Empty(t, h.gw.Sent())
	assert.Empty(t, h.gw.Removed())
}

func TestDecisionOutsideAdminGroupIsRefused(t *testing.T) {
	h, post := submitted(t)
	ev := decision(domain.DecisionApprove, appID, post)
	ev.ChatID = ann.ID

	reply := h.handle(t, ev)
	assert.Equal(t, alertNotAllowed, reply.Text)
	assert.Equal(t, domain.ApplicationPending, h.user(t, ann.ID).ApplicationStatus)
}

func TestRejectedUserMayReapply(t *testing.T) {
	h, post := submitted(t)
	h.handle(t, decision(domain.DecisionReject, appID, post))

	reply := h.handle(t, press(ann, domain.ButtonApply))
	assert.Equal(t, textApplyPrompt, reply.Text)
	assert.Equal(t, domain.StateCollectingApplication, h.user(t, ann.ID).State)
}

func TestEndToEndApproval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.start(t, ann)
	assert.Equal(t, domain.StateNone, h.user(t, ann.ID).State)

	h.handle(t, press(ann, domain.ButtonApply))
	assert.Equal(t, domain.StateCollectingApplication, h.user(t, ann.ID).State)
	d, err := h.store.Drafts().Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, d.Files)

	h.handle(t, fileMsg(ann, 1_000_000))
	d, err = h.store.Drafts().Get(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, d.Files, 1)
	assert.Equal(t, domain.StateCollectingApplication, h.user(t, ann.ID).State)

	h.handle(t, press(ann, domain.ButtonSubmit))
	apps := h.store.ApplicationsOf(ann.ID)
	require.Len(t, apps, 1)
	assert.Len(t, apps[0].Files, 1)
	_, err = h.store.Drafts().Get(ctx, ann.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, domain.ApplicationPending, h.user(t, ann.ID).ApplicationStatus)

	group := h.gw.SentTo(adminGroup)
	require.Len(t, group, 2)
	assert.Contains(t, group[0].Text, "NEW APPLICATION")
	require.NotNil(t, group[1].File)
	_, err = h.store.Threads().Lookup(ctx, group[0].ID)
	require.NoError(t, err)

	h.handle(t, decision(domain.DecisionApprove, apps[0].ID, group[0].ID))
	app, err := h.store.Applications().Get(ctx, apps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionApproved, app.Status)
	assert.Equal(t, domain.ApplicationApproved, h.user(t, ann.ID).ApplicationStatus)

	notices := h.gw.SentTo(ann.ID)
	require.Len(t, notices, 1)
	assert.Equal(t, textApproved, notices[0].Text)
	assert.Equal(t, []gatewaytest.Removal{{ChatID: adminGroup, MessageID: group[0].ID}}, h.gw.Removed())
}

func TestConcurrentFilesFromOneUserAreAllKept(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	h.handle(t, press(ann, domain.ButtonApply))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.Handle(context.Background(), fileMsg(ann, int64(i+1)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	d, err := h.store.Drafts().Get(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Len(t, d.Files, n)
}

func TestStateIsAlwaysKnown(t *testing.T) {
	h := newHarness(t)
	h.start(t, ann)
	events := []domain.Event{
		press(ann, domain.ButtonMessageAdmin),
		domain.MessageEvent{From: ann, ChatID: ann.ID, Text: "x"},
		press(ann, domain.ButtonApply),
		domain.MessageEvent{From: ann, ChatID: ann.ID, Text: "x"},
		fileMsg(ann, 5),
		press(ann, domain.ButtonBackToMenu),
		press(ann, domain.ButtonSubmit),
		press(ann, domain.ButtonCancel),
	}
	for _, ev := range events {
		h.handle(t, ev)
		assert.True(t, h.user(t, ann.ID).State.Valid())
	}
}

type bogusEvent struct{ domain.ButtonEvent }

func TestUnsupportedEvent(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Handle(context.Background(), bogusEvent{})
	assert.Error(t, err)
}
