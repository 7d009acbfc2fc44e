// Package commands describes slash commands exposed through the registry.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
// AdminOnly commands answer only inside the admin chat; Hidden ones stay out of the command menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}
