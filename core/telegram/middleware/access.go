package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	// AdminChatID is the chat where admin-only handlers are allowed. Zero disables the check.
	AdminChatID int64
	OnReject    tele.HandlerFunc
}

// InAdminChat reports whether the update comes from the admin chat.
func InAdminChat(c tele.Context, adminChatID int64) bool {
	chat := c.Chat()
	return chat != nil && chat.ID == adminChatID
}

// AdminOnlyMiddleware lets updates through only when they originate in the admin chat.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminChatID != 0 && !InAdminChat(c, opts.AdminChatID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
