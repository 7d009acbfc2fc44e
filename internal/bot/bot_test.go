package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/deskbot/core/telegram"
	"github.com/m3rciful/deskbot/internal/domain"
	"github.com/m3rciful/deskbot/internal/workflow"
)

const adminGroup int64 = -100500

type fakeHandler struct {
	events []domain.Event
	reply  workflow.Reply
	err    error
}

func (f *fakeHandler) Handle(_ context.Context, ev domain.Event) (workflow.Reply, error) {
	f.events = append(f.events, ev)
	return f.reply, f.err
}

type sent struct {
	text   string
	opts   *tele.SendOptions
	alert  bool
	answer bool
}

type harness struct {
	bot     *Bot
	handler *fakeHandler
	tb      *tele.Bot
	out     []sent
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tb, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)

	h := &harness{handler: &fakeHandler{}, tb: tb}
	h.bot = New(h.handler, adminGroup)
	h.bot.send = func(_ tele.Context, text string, opts ...*tele.SendOptions) error {
		s := sent{text: text}
		if len(opts) > 0 {
			s.opts = opts[0]
		}
		h.out = append(h.out, s)
		return nil
	}
	h.bot.alert = func(_ tele.Context, text string, show bool) error {
		h.out = append(h.out, sent{text: text, alert: show, answer: true})
		return nil
	}
	return h
}

func (h *harness) message(chatID int64, m tele.Message) tele.Context {
	m.Chat = &tele.Chat{ID: chatID, Type: tele.ChatPrivate}
	if m.Sender == nil {
		m.Sender = &tele.User{ID: 42, Username: "alice", FirstName: "Alice"}
	}
	return h.tb.NewContext(tele.Update{ID: 1, Message: &m})
}

func (h *harness) callback(data string) tele.Context {
	return h.tb.NewContext(tele.Update{ID: 2, Callback: &tele.Callback{
		ID:      "cb1",
		Sender:  &tele.User{ID: 7, Username: "admin"},
		Data:    data,
		Message: &tele.Message{ID: 900, Chat: &tele.Chat{ID: adminGroup, Type: tele.ChatSuperGroup}},
	}})
}

func TestStartSendsCommandEventAndMenu(t *testing.T) {
	h := newHarness(t)
	h.handler.reply = workflow.Reply{Text: "welcome", Menu: workflow.MenuMain}

	require.NoError(t, h.bot.onStart(h.message(42, tele.Message{ID: 5, Text: "/start"})))

	require.Len(t, h.handler.events, 1)
	assert.Equal(t, domain.CommandEvent{
		Command: domain.CommandStart,
		From:    domain.Sender{ID: 42, Username: "alice", FirstName: "Alice"},
		ChatID:  42,
	}, h.handler.events[0])

	require.Len(t, h.out, 1)
	require.NotNil(t, h.out[0].opts)
	markup := h.out[0].opts.ReplyMarkup
	require.NotNil(t, markup)
	assert.Equal(t, LabelMessageAdmin, markup.ReplyKeyboard[0][0].Text)
	assert.Equal(t, LabelApply, markup.ReplyKeyboard[0][1].Text)
}

func TestButtonsRegisteredByLabel(t *testing.T) {
	h := newHarness(t)
	reg := tg.NewRegistry()
	require.NoError(t, h.bot.Register(reg))

	for _, b := range buttons {
		btn, ok := reg.LookupButton(b.label)
		require.True(t, ok, b.label)
		require.NoError(t, btn.Handler(h.message(42, tele.Message{ID: 6, Text: b.label})))
	}
	require.Len(t, h.handler.events, len(buttons))
	for i, b := range buttons {
		ev, ok := h.handler.events[i].(domain.ButtonEvent)
		require.True(t, ok)
		assert.Equal(t, b.button, ev.Button)
	}

	_, ok := reg.GetCallback(workflow.UniqueApprove)
	assert.True(t, ok)
	assert.NotNil(t, reg.MessageFallback())
	assert.NotEmpty(t, h.bot.Routes(reg))
}

func TestButtonLabelInAdminGroupIsAMessage(t *testing.T) {
	h := newHarness(t)
	c := h.message(adminGroup, tele.Message{ID: 8, Text: LabelApply, ReplyTo: &tele.Message{ID: 700}})

	require.NoError(t, h.bot.onButton(domain.ButtonApply)(c))

	ev, ok := h.handler.events[0].(domain.MessageEvent)
	require.True(t, ok)
	assert.Equal(t, 700, ev.ReplyTo)
	assert.Empty(t, h.out)
}

func TestDecisionCallback(t *testing.T) {
	h := newHarness(t)
	h.handler.reply = workflow.Reply{Text: "Approved ✅", Alert: true}
	id := uuid.New()

	require.NoError(t, h.bot.onDecision(domain.DecisionApprove)(h.callback("\f"+workflow.UniqueApprove+"|"+id.String())))

	assert.Equal(t, domain.DecisionEvent{
		Decision:      domain.DecisionApprove,
		ApplicationID: id,
		From:          domain.Sender{ID: 7, Username: "admin"},
		ChatID:        adminGroup,
		PostID:        900,
	}, h.handler.events[0])
	assert.Equal(t, []sent{{text: "Approved ✅", alert: true, answer: true}}, h.out)
}

func TestDecisionWithBadPayload(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.onDecision(domain.DecisionReject)(h.callback("\fapp_reject|not-a-uuid")))
	assert.Empty(t, h.handler.events)
	assert.Equal(t, []sent{{text: alertUnsupported, alert: true, answer: true}}, h.out)
}

func TestHandlerErrorAnswersGenericText(t *testing.T) {
	h := newHarness(t)
	h.handler.err = errors.New("store down")

	err := h.bot.onMessage(h.message(42, tele.Message{ID: 9, Text: "hi"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
	require.Len(t, h.out, 1)
	assert.Equal(t, workflow.TextError, h.out[0].text)
}

func TestEmptyReplySendsNothing(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.onMessage(h.message(adminGroup, tele.Message{ID: 10, Text: "internal chatter"})))
	assert.Empty(t, h.out)
}

func TestIDReportsIdentifiers(t *testing.T) {
	h := newHarness(t)
	c := h.tb.NewContext(tele.Update{ID: 3, Message: &tele.Message{
		ID:       11,
		ThreadID: 8,
		Text:     "/id",
		Sender:   &tele.User{ID: 42},
		Chat:     &tele.Chat{ID: adminGroup, Type: tele.ChatSuperGroup, Title: "Admins <&>"},
	}})

	require.NoError(t, h.bot.onID(c))
	require.Len(t, h.out, 1)
	out := h.out[0]
	assert.Contains(t, out.text, "<code>-100500</code>")
	assert.Contains(t, out.text, "Topic ID:</b> <code>8</code>")
	assert.Contains(t, out.text, "User ID:</b> <code>42</code>")
	assert.Contains(t, out.text, "Admins &lt;&amp;&gt; (supergroup)")
	assert.Equal(t, tele.ModeHTML, out.opts.ParseMode)
	assert.Equal(t, 8, out.opts.ThreadID)
}

func TestInstalledRoutesDeliverNonTextMessages(t *testing.T) {
	h := newHarness(t)
	reg := tg.NewRegistry()
	require.NoError(t, h.bot.Register(reg))
	for _, r := range h.bot.Routes(reg) {
		h.tb.Handle(r.Endpoint, r.Handler)
	}

	user := &tele.User{ID: 42, FirstName: "Alice"}
	chat := &tele.Chat{ID: 42, Type: tele.ChatPrivate}
	h.tb.ProcessUpdate(tele.Update{ID: 1, Message: &tele.Message{ID: 1, Sender: user, Chat: chat,
		Location: &tele.Location{Lat: 52.52, Lng: 13.40}}})
	h.tb.ProcessUpdate(tele.Update{ID: 2, Message: &tele.Message{ID: 2, Sender: user, Chat: chat,
		Contact: &tele.Contact{PhoneNumber: "+100", FirstName: "Bob"}}})
	h.tb.ProcessUpdate(tele.Update{ID: 3, Message: &tele.Message{ID: 3, Sender: user, Chat: chat, Text: "hi"}})

	require.Len(t, h.handler.events, 3)
	for _, ev := range h.handler.events {
		msg, ok := ev.(domain.MessageEvent)
		require.True(t, ok)
		assert.Equal(t, int64(42), msg.From.ID)
	}
	assert.Nil(t, h.handler.events[0].(domain.MessageEvent).Attachment)
}
