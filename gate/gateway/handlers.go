package gateway

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/gatekeeper/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/gatekeeper/core/telegram/helpers"
	"github.com/m3rciful/gatekeeper/gate/verify"
)

// EventHandler consumes verification events; *verify.Engine implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev verify.Event) (verify.Outcome, error)
}

// PendingChecker reports whether a user has an unanswered challenge.
type PendingChecker interface {
	HasPending(userID int64) bool
}

// JoinRequest translates chat join request updates into JoinRequestEvent.
func JoinRequest(h EventHandler) tele.HandlerFunc {
	return func(c tele.Context) error {
		req := c.ChatJoinRequest()
		if req == nil || req.Chat == nil || req.Sender == nil {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		_, err := h.Handle(ctx, verify.JoinRequestEvent{
			ChatID: req.Chat.ID,
			UserID: req.Sender.ID,
		})
		return err
	}
}

// Response translates challenge button presses into ResponseEvent.
func Response(h EventHandler) tele.HandlerFunc {
	return func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil || c.Sender() == nil {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		_, err := h.Handle(ctx, verify.ResponseEvent{
			UserID:        c.Sender().ID,
			InteractionID: cb.ID,
			Payload:       callbacks.CallbackPayload(c),
		})
		return err
	}
}

// Reminder nudges users who type instead of pressing a challenge button.
// It satisfies router.Interceptor.
type Reminder struct {
	Pending PendingChecker
	Text    string
}

// InProgress reports whether userID still owes an answer.
func (r Reminder) InProgress(userID int64) bool {
	return r.Pending != nil && r.Pending.HasPending(userID)
}

// Handle replies with the reminder in private chats and ignores other chats.
func (r Reminder) Handle(c tele.Context) error {
	if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
		return nil
	}
	return tghelpers.SendText(c, r.Text)
}
