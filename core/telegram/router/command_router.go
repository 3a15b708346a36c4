package router

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/gatekeeper/core/logger"
	tg "github.com/m3rciful/gatekeeper/core/telegram"
	"github.com/m3rciful/gatekeeper/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command. Admin-only
// commands are guarded by AdminOnlyMiddleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	guard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, def := range cmds {
		name, run := name, def.Handler
		h := func(c tele.Context) error {
			return handled(c, "cmd."+normalizeHandlerName(name), func() error { return run(c) })
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
		if def.AdminOnly {
			h = guard(h)
		}
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
	}

	logger.Info(context.Background(), "tg.wire", "commands.wired",
		slog.String("status", "ok"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
