package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/gatekeeper/core/telegram"
	"github.com/m3rciful/gatekeeper/core/telegram/middleware"
)

// JoinRequestRoute binds h to chat join request updates.
func JoinRequestRoute(h tele.HandlerFunc) tg.Route {
	handler := func(c tele.Context) error {
		if c.ChatJoinRequest() == nil || h == nil {
			return nil
		}
		return handled(c, "join_request", func() error { return h(c) })
	}
	return tg.Route{
		Endpoint: tele.OnChatJoinRequest,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
