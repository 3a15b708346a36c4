package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/gatekeeper/core/telegram"
	"github.com/m3rciful/gatekeeper/core/telegram/middleware"
)

// Interceptor claims text from users that are in the middle of a flow.
type Interceptor interface {
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the handler for plain text. The interceptor runs
// first, then public command aliases, then the registry fallback.
func TextRoutes(in Interceptor, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if in != nil && c.Sender() != nil && in.InProgress(c.Sender().ID) {
			return handled(c, "intercept", func() error { return in.Handle(c) })
		}
		if reg != nil {
			// Admin commands are reachable only through CommandRoutes.
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handled(c, normalizeHandlerName(key), func() error { return cmd.Handler(c) })
			}
			if fb := reg.TextFallback(); fb != nil {
				return handled(c, "fallback", func() error { return fb(c) })
			}
		}
		if opts.UnknownText != nil {
			return handled(c, "unknown_text", func() error { return opts.UnknownText(c) })
		}
		summarize(c, "unknown_text", time.Now(), nil, slog.String("status", "skip"))
		return nil
	}
	return []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}}
}
