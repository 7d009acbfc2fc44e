package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"💬 Message admin", "📝 Apply"}, []string{"❌ Cancel"})
	require.Len(t, m.ReplyKeyboard, 2)
	assert.True(t, m.ResizeKeyboard)
	assert.Equal(t, "📝 Apply", m.ReplyKeyboard[0][1].Text)
	assert.Equal(t, "❌ Cancel", m.ReplyKeyboard[1][0].Text)
}

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows([]InlineBtn{
		{Text: "✅ Approve", Unique: "app_approve", Data: "id"},
		{Text: "❌ Reject", Unique: "app_reject", Data: "id"},
	})
	require.Len(t, m.InlineKeyboard, 1)
	require.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "app_approve", m.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "❌ Reject", m.InlineKeyboard[0][1].Text)
}
