package app

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/gatekeeper/core/telegram/commands"
	tghelpers "github.com/m3rciful/gatekeeper/core/telegram/helpers"
	"github.com/m3rciful/gatekeeper/gate/journal"
)

func (a *App) registerCommands() {
	a.reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "How to join the chat",
	})
	a.reg.RegisterCommand("/pending", commands.Command{
		Handler:     a.handlePending,
		Description: "Unanswered challenges",
		AdminOnly:   true,
	})
	a.reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Decisions in the last 24 hours",
		AdminOnly:   true,
	})
	a.reg.SetTextFallback(a.handleUnknownText)
}

func (a *App) handleStart(c tele.Context) error {
	return tghelpers.SendText(c, a.cfg.Gate.Texts.Start)
}

// handleUnknownText answers stray private messages with the start text.
func (a *App) handleUnknownText(c tele.Context) error {
	if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
		return nil
	}
	return a.handleStart(c)
}

func (a *App) handlePending(c tele.Context) error {
	n := 0
	if a.engine != nil {
		n = a.engine.PendingCount()
	}
	return tghelpers.SendText(c, fmt.Sprintf("Pending challenges: %d", n))
}

func (a *App) handleStats(c tele.Context) error {
	if !a.journal.Enabled() {
		return tghelpers.SendText(c, "Decision journal is disabled.")
	}
	ctx := tghelpers.BuildContext(c)
	counts, err := a.journal.Summary(ctx, time.Now().Add(-statsWindow))
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, formatStats(counts))
}

func formatStats(counts []journal.Count) string {
	if len(counts) == 0 {
		return "No decisions in the last 24 hours."
	}
	var b strings.Builder
	b.WriteString("Decisions in the last 24 hours:")
	total := 0
	for _, cnt := range counts {
		fmt.Fprintf(&b, "\n%s: %d", cnt.Outcome, cnt.Total)
		total += cnt.Total
	}
	fmt.Fprintf(&b, "\ntotal: %d", total)
	return b.String()
}
