package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/gatekeeper/core/telegram"
	"github.com/m3rciful/gatekeeper/core/telegram/callbacks"
	"github.com/m3rciful/gatekeeper/core/telegram/middleware"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every callback query by its unique key through
// the registry. Handlers answer the query themselves.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.CallbackKey(c)
		name := "callback." + normalizeHandlerName(key)
		keyAttr := slog.String("cb_key", key)

		if h, ok := reg.GetCallback(key); ok && h != nil {
			return handled(c, name, func() error { return h(c) }, keyAttr)
		}
		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		return handled(c, name, func() error {
			if fallback == nil {
				return nil
			}
			return fallback(c)
		}, keyAttr, slog.String("cause", "not_found"))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
