package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/gatekeeper/core/logger"
	tghelpers "github.com/m3rciful/gatekeeper/core/telegram/helpers"
	"github.com/m3rciful/gatekeeper/core/telegram/middleware"
)

// handled runs fn as handler name and logs one summary line for it.
func handled(c tele.Context, name string, fn func() error, extras ...slog.Attr) error {
	start := time.Now()
	tghelpers.WithHandler(c, name)
	err := fn()
	summarize(c, name, start, err, extras...)
	return err
}

// summarize logs handler.handled. extras are applied last and may
// override status.
func summarize(c tele.Context, name string, start time.Time, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	msgs, kb := middleware.GetCounters(c)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", status),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", append(attrs, extras...)...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode prefers an error's Code() and falls back to its type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c interface{ Code() string }
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	name := fmt.Sprintf("%T", err)
	return strings.ToUpper(name[strings.LastIndex(name, ".")+1:])
}
