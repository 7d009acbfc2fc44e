package callbacks

import (
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

// PayloadUUID parses the callback payload as a UUID.
func PayloadUUID(c tele.Context) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(CallbackPayload(c)))
}
