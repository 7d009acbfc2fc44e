package callbacks

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func callbackCtx(t *testing.T, cb *tele.Callback) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{ID: 1, Callback: cb})
}

func TestParseCallbackData(t *testing.T) {
	key, payload := ParseCallbackData(&tele.Callback{Data: "\fapp_reject|a|b"})
	assert.Equal(t, "app_reject", key)
	assert.Equal(t, "a|b", payload)

	key, payload = ParseCallbackData(&tele.Callback{Data: "plain"})
	assert.Equal(t, "plain", key)
	assert.Empty(t, payload)

	key, payload = ParseCallbackData(nil)
	assert.Empty(t, key)
	assert.Empty(t, payload)
}

func TestPayloadUUID(t *testing.T) {
	id := uuid.New()

	raw := callbackCtx(t, &tele.Callback{Data: "\fapp_approve|" + id.String()})
	got, err := PayloadUUID(raw)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, "app_approve", CallbackKey(raw))

	split := callbackCtx(t, &tele.Callback{Unique: "app_approve", Data: id.String()})
	got, err = PayloadUUID(split)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = PayloadUUID(callbackCtx(t, &tele.Callback{Data: "\fapp_approve|nope"}))
	assert.Error(t, err)
}
