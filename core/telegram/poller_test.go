package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/gatekeeper/core/config"
	"github.com/m3rciful/gatekeeper/core/telegram/commands"
)

func TestBuildPollerLongpoll(t *testing.T) {
	p := BuildPoller(PollerOptions{
		RunMode:        " LongPoll ",
		AllowedUpdates: []string{"message", "chat_join_request"},
	})
	lp, ok := p.(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)
	assert.Equal(t, []string{"message", "chat_join_request"}, lp.AllowedUpdates)
}

func TestBuildPollerWebhook(t *testing.T) {
	p := BuildPoller(PollerOptions{
		RunMode:        coreconfig.RunModeWebhook,
		AllowedUpdates: []string{"callback_query"},
		Webhook:        WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://example.org/hook"},
	})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://example.org/hook", wh.Endpoint.PublicURL)
	assert.Equal(t, []string{"callback_query"}, wh.AllowedUpdates)
}

func TestBuildHTTPClientStretchesTimeouts(t *testing.T) {
	c := BuildHTTPClient(25 * time.Second)
	assert.Equal(t, defaultClientTimeout+25*time.Second, c.Timeout)
	rt, ok := c.Transport.(*retryTransport)
	require.True(t, ok)
	assert.Equal(t, defaultRetryAttempts, rt.maxRetries)
}

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	noop := func(tele.Context) error { return nil }
	reg.RegisterCommand("/start", commandFor(noop, "Start", false))
	reg.RegisterCommand("/pending", commandFor(noop, "Pending", true))
	reg.RegisterCommand("stats", commandFor(noop, "Stats", true))

	visible := reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "/start", visible[0].Text)
	assert.Len(t, reg.ListCommands(false), 2)

	key, _, ok := reg.LookupCommand("pending")
	assert.True(t, ok)
	assert.Equal(t, "/pending", key)
}

func commandFor(h tele.HandlerFunc, desc string, admin bool) commands.Command {
	return commands.Command{Handler: h, Description: desc, AdminOnly: admin}
}

func TestRegistryAliasesAndCallbacks(t *testing.T) {
	reg := NewRegistry()
	noop := func(tele.Context) error { return nil }
	cmd := commandFor(noop, "Pending requests", true)
	cmd.Aliases = []string{"queue", "/q"}
	reg.RegisterCommand("/pending", cmd)
	reg.RegisterCommand("/pending", commandFor(noop, "Duplicate", false))

	for _, name := range []string{"queue", "/queue", "q", "/q"} {
		key, got, ok := reg.LookupCommand(name)
		require.True(t, ok, name)
		assert.Equal(t, "/pending", key)
		assert.Equal(t, "Pending requests", got.Description)
	}
	_, _, ok := reg.LookupCommand("/missing")
	assert.False(t, ok)

	require.NoError(t, reg.RegisterCallback("gate", noop))
	assert.Error(t, reg.RegisterCallback("gate", noop))
	assert.ErrorIs(t, reg.RegisterCallback("", noop), ErrInvalidCallback)
	assert.ErrorIs(t, reg.RegisterCallback("x", nil), ErrInvalidCallback)
	assert.Equal(t, []string{"gate"}, reg.ListCallbacks())

	assert.NotNil(t, reg.CallbackNotFound())
	reg.SetCallbackNotFound(nil)
	assert.NotNil(t, reg.CallbackNotFound())
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		out := make([]string, len(mws))
		for i, mw := range mws {
			out[i] = mw.Name
		}
		return out
	}
	assert.Equal(t, []string{"recover", "logger", "metrics"}, names(DefaultMiddlewares(nil, nil)))

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500, ExcludeUpdates: []string{"join_request"}}}
	assert.Equal(t, []string{"recover", "rate_limit", "logger", "metrics"}, names(DefaultMiddlewares(cfg, nil)))
}
