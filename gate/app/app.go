package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/gatekeeper/core/bootstrap"
	"github.com/m3rciful/gatekeeper/core/cmd"
	"github.com/m3rciful/gatekeeper/core/logger"
	tg "github.com/m3rciful/gatekeeper/core/telegram"
	"github.com/m3rciful/gatekeeper/core/telegram/callbacks"
	"github.com/m3rciful/gatekeeper/core/telegram/router"
	"github.com/m3rciful/gatekeeper/gate/challenge"
	"github.com/m3rciful/gatekeeper/gate/gateway"
	"github.com/m3rciful/gatekeeper/gate/journal"
	"github.com/m3rciful/gatekeeper/gate/pending"
	"github.com/m3rciful/gatekeeper/gate/verify"
)

// AllowedUpdates are the only update kinds the bot consumes.
var AllowedUpdates = []string{"message", "callback_query", "chat_join_request"}

// App owns the verification components for one guarded chat.
type App struct {
	cfg     *Config
	db      *sqlx.DB
	journal journal.Journal
	store   *pending.Store
	gen     challenge.Generator
	reg     *tg.Registry

	engine *verify.Engine
	ready  chan struct{}
}

var (
	_ cmd.TelegramApp      = (*App)(nil)
	_ cmd.BackgroundRunner = (*App)(nil)
)

// Bootstrap initialises logging and the optional journal database.
func Bootstrap(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, res.DB), nil
}

// New builds an App. A nil db disables the decision journal.
func New(cfg *Config, db *sqlx.DB) *App {
	var j journal.Journal = journal.Nop{}
	if db != nil {
		j = journal.NewPostgres(db)
	}
	a := &App{
		cfg:     cfg,
		db:      db,
		journal: j,
		store:   pending.NewStore(),
		gen:     challenge.NewGenerator(cfg.Gate.Texts.ButtonPrefix, nil),
		reg:     tg.NewRegistry(),
		ready:   make(chan struct{}),
	}
	a.registerCommands()
	return a
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := &a.cfg.Config
	return tg.RunOptions{
		Config:         core,
		Registry:       a.reg,
		Middlewares:    tg.DefaultMiddlewares(core, nil),
		AllowedUpdates: AllowedUpdates,
		BuildRoutes:    a.buildRoutes,
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			if a.db == nil {
				return nil
			}
			return a.db.Close()
		},
	}, nil
}

// Engine returns the verification engine once routes are built.
func (a *App) Engine() *verify.Engine {
	return a.engine
}

func (a *App) buildRoutes(bot *tele.Bot, _ tg.Runtime) ([]tg.Route, error) {
	gw := gateway.New(bot, gateway.Options{Protect: !a.cfg.Gate.AllowForwarding})
	engine, err := a.newEngine(gw)
	if err != nil {
		return nil, err
	}
	return a.routes(engine)
}

func (a *App) newEngine(gw verify.Gateway) (*verify.Engine, error) {
	engine, err := verify.New(verify.Options{
		Config:    a.cfg.Gate,
		Store:     a.store,
		Generator: a.gen,
		Gateway:   gw,
		Recorder:  a.journal,
	})
	if err != nil {
		return nil, fmt.Errorf("app: verification engine: %w", err)
	}
	a.engine = engine
	close(a.ready)
	return engine, nil
}

func (a *App) routes(engine *verify.Engine) ([]tg.Route, error) {
	if err := a.reg.RegisterCallback(callbacks.Key, gateway.Response(engine)); err != nil {
		return nil, err
	}

	routes := []tg.Route{
		router.JoinRequestRoute(gateway.JoinRequest(engine)),
		router.CallbackRoute(a.reg, router.CallbackOptions{}),
	}
	routes = append(routes, router.TextRoutes(
		gateway.Reminder{Pending: engine, Text: a.cfg.Gate.Texts.Reminder},
		a.reg,
		router.TextOptions{},
	)...)
	routes = append(routes, router.CommandRoutes(a.reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})...)

	logger.Info(context.Background(), "gate", "wired",
		slog.Int64("chat_id", a.cfg.Gate.ChatID),
		slog.String("mode", a.cfg.Gate.Mode.String()),
		slog.Bool("journal", a.journal.Enabled()),
		slog.Duration("pending_ttl", a.cfg.Gate.PendingTTL),
	)
	return routes, nil
}

// RunBackground sweeps expired challenges until ctx is done.
func (a *App) RunBackground(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-a.ready:
	}
	if err := a.engine.RunExpiry(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// statsWindow is the period /stats reports on.
const statsWindow = 24 * time.Hour
