package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/gatekeeper/core/config"
)

const defaultPollTimeout = 10 * time.Second

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	AllowedUpdates         []string
	Webhook                WebhookOptions
}

// BuildPoller returns a webhook listener for the webhook run mode and a
// long poller otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(opts.Webhook.Listen, strconv.Itoa(opts.Webhook.Port)),
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
			AllowedUpdates: opts.AllowedUpdates,
		}
	}
	return &tele.LongPoller{
		Timeout:        pollTimeout(opts.LongPollTimeoutSeconds),
		AllowedUpdates: opts.AllowedUpdates,
	}
}

func pollTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultPollTimeout
	}
	return time.Duration(seconds) * time.Second
}
