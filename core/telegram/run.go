package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/gatekeeper/core/config"
	"github.com/m3rciful/gatekeeper/core/logger"
	tghelpers "github.com/m3rciful/gatekeeper/core/telegram/helpers"
	tgsender "github.com/m3rciful/gatekeeper/core/telegram/sender"
)

const component = "tg"

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route
	// BuildRoutes contributes routes that need the live bot, such as
	// handlers that call the Bot API outside a tele.Context.
	BuildRoutes func(bot *tele.Bot, rt Runtime) ([]Route, error)

	// AllowedUpdates limits the update types Telegram delivers.
	AllowedUpdates []string

	// KeepWebhook skips removing a stale webhook before long polling.
	KeepWebhook bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, installs middlewares and routes, and serves
// updates until ctx is done or the poller stops.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	start := time.Now()
	bot, err := newBot(ctx, cfg, opts.AllowedUpdates)
	if err != nil {
		return err
	}
	logMode(ctx, bot, cfg, logger.Took(start))
	if _, polling := bot.Poller.(*tele.LongPoller); polling && !opts.KeepWebhook {
		removeWebhook(ctx, bot)
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	routes := append([]Route(nil), opts.Routes...)
	if opts.BuildRoutes != nil {
		built, err := opts.BuildRoutes(bot, rt)
		if err != nil {
			return fmt.Errorf("telegram: build routes: %w", err)
		}
		routes = append(routes, built...)
	}
	for _, r := range routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}

	if opts.OnStop != nil {
		return opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	return nil
}

func newBot(ctx context.Context, cfg *coreconfig.Config, allowed []string) (*tele.Bot, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token: cfg.Telegram.Token,
		Poller: BuildPoller(PollerOptions{
			RunMode:                cfg.Telegram.RunMode,
			LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
			AllowedUpdates:         allowed,
			Webhook: WebhookOptions{
				Listen: cfg.Webhook.Listen,
				Port:   cfg.Webhook.Port,
				URL:    cfg.Webhook.URL,
			},
		}),
		Client: BuildHTTPClient(pollTimeout(cfg.Telegram.LongPollTimeoutSeconds)),
		OnError: func(err error, c tele.Context) {
			ectx := ctx
			if c != nil {
				ectx = tghelpers.BuildContext(c)
			}
			logger.Error(ectx, component, "handler.error",
				slog.String("status", "fail"),
				slog.String("err", tgsender.SanitizeError(err)),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

func logMode(ctx context.Context, bot *tele.Bot, cfg *coreconfig.Config, took time.Duration) {
	switch p := bot.Poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, component, "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", took),
		)
	default:
		logger.Info(ctx, component, "mode",
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", pollTimeout(cfg.Telegram.LongPollTimeoutSeconds)),
			slog.Duration("duration", took),
		)
	}
}

// removeWebhook drops a webhook left by an earlier deployment; Telegram
// refuses getUpdates while one is set.
func removeWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, component, "webhook.remove",
			slog.String("status", "fail"),
			slog.String("err", tgsender.SanitizeError(err)),
		)
		return
	}
	logger.Info(ctx, component, "webhook.remove", slog.String("status", "ok"))
}
