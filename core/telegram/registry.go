package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/gatekeeper/core/logger"
	"github.com/m3rciful/gatekeeper/core/telegram/commands"
)

const wireComponent = "tg.wire"

// ErrInvalidCallback is returned for an empty key or nil handler.
var ErrInvalidCallback = errors.New("invalid callback registration")

// Registry holds the commands and callback handlers of a bot.
// Registration happens during wiring; lookups are safe at any time.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty Registry. Unknown callbacks are answered
// with a short notice until SetCallbackNotFound replaces it.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func wireSkip(event string, attrs ...slog.Attr) {
	logger.Warn(context.Background(), wireComponent, event, append(attrs, slog.String("status", "skip"))...)
}

// RegisterCommand adds cmd under name, which must start with a slash.
// Invalid and duplicate registrations are logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	switch {
	case name == "" || cmd.Handler == nil || cmd.Description == "":
		wireSkip("register.command", slog.String("name", name), slog.String("cause", "invalid"))
		return
	case !strings.HasPrefix(name, "/"):
		wireSkip("register.command", slog.String("name", name), slog.String("cause", "no_slash_prefix"))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		wireSkip("register.command", slog.String("name", name), slog.String("cause", "duplicate"))
		return
	}
	r.commands[name] = cmd
}

// ListCommands returns commands sorted by name. visibleOnly drops hidden
// and admin-only commands, which is what the public command menu shows.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, cmd := range r.commands {
		if visibleOnly && !cmd.Public() {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves name or one of its aliases to the registered key.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = "/" + strings.TrimPrefix(name, "/")
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if "/"+strings.TrimPrefix(alias, "/") == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// RegisterCallback maps key to handler. A key may be registered once.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		wireSkip("register.callback", slog.String("cb_key", key), slog.String("cause", "invalid"))
		return ErrInvalidCallback
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		wireSkip("register.callback", slog.String("cb_key", key), slog.String("cause", "duplicate"))
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that matched nothing else.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the handler for unmatched text.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the visible commands to the Telegram menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	cmds := reg.ListCommands(true)
	if err := bot.SetCommands(cmds); err != nil {
		logger.Error(context.Background(), wireComponent, "register.commands",
			slog.String("status", "fail"),
			slog.Int("count", len(cmds)),
			slog.String("err", err.Error()),
		)
	}
}
