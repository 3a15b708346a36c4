// Package commands describes slash commands exposed by a bot.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command handler with its menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run only for the configured admin and never
	// appear in the public menu.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Public reports whether the command belongs in the public command menu.
func (c Command) Public() bool {
	return !c.Hidden && !c.AdminOnly
}
