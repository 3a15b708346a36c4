package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/gatekeeper/core/logger"
	"github.com/m3rciful/gatekeeper/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/gatekeeper/core/telegram/helpers"
)

// seenUpdates remembers recently logged update ids. Routes wrap their
// handlers in LoggerMiddleware too, so one update can pass it twice.
var seenUpdates = &updateSet{ttl: 10 * time.Second, seen: make(map[int]time.Time)}

type updateSet struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int]time.Time
}

// firstSeen records id and reports whether it was new.
func (s *updateSet) firstSeen(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.seen {
		if now.Sub(at) > s.ttl {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = now
	return true
}

// LoggerMiddleware builds the update's logging context and logs one
// sampled receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		now := time.Now()
		c.Set("update_start", now)
		ctx := tghelpers.FreshContext(c)

		upd := c.Update()
		if logger.ShouldSampleDebug() && seenUpdates.firstSeen(upd.ID, now) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("op", UpdateKind(upd)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	return attrs
}
