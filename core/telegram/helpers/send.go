package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/gatekeeper/core/logger"
	"github.com/m3rciful/gatekeeper/core/telegram/sender"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the dispatcher used by SendText. nil makes sends
// synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// sendAsync queues run on the dispatcher. When the queue is unavailable
// the call runs inline so the reply is not lost.
func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("op", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := make([]interface{}, 0, 1)
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		return c.Send(text, args...)
	})
}
