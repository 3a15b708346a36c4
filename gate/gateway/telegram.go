// Package gateway connects the verification engine to the Telegram Bot API.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/gatekeeper/core/logger"
	"github.com/m3rciful/gatekeeper/core/telegram/callbacks"
	"github.com/m3rciful/gatekeeper/core/telegram/keyboard"
	"github.com/m3rciful/gatekeeper/core/telegram/netutil"
	"github.com/m3rciful/gatekeeper/core/telegram/sender"
	"github.com/m3rciful/gatekeeper/gate/verify"
)

const component = "gate.gateway"

// botAPI is the subset of *tele.Bot used by the gateway.
type botAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	ApproveJoinRequest(chat tele.Recipient, user *tele.User) error
	DeclineJoinRequest(chat tele.Recipient, user *tele.User) error
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// Options tunes the Telegram gateway.
type Options struct {
	// Protect marks challenge messages as protected content.
	Protect bool

	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	// MaxFloodWait caps how long a FloodError may delay a retry.
	MaxFloodWait time.Duration
}

// Telegram implements verify.Gateway on top of telebot.
type Telegram struct {
	bot  botAPI
	opts Options
}

var _ verify.Gateway = (*Telegram)(nil)

// New wraps bot. Zero retry options fall back to conservative defaults.
func New(bot botAPI, opts Options) *Telegram {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 3 * time.Second
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 10 * time.Second
	}
	if opts.MaxFloodWait <= 0 {
		opts.MaxFloodWait = 5 * time.Second
	}
	return &Telegram{bot: bot, opts: opts}
}

// SendMessage sends text with one inline button per control.
func (t *Telegram) SendMessage(ctx context.Context, recipientID int64, text string, controls []verify.Control) error {
	buttons := make([]keyboard.InlineBtn, len(controls))
	for i, c := range controls {
		buttons[i] = keyboard.InlineBtn{Text: c.Label, Unique: callbacks.Key, Data: c.Payload}
	}
	opts := &tele.SendOptions{
		ReplyMarkup: keyboard.InlineButtons(buttons),
		Protected:   t.opts.Protect,
	}
	return t.do(ctx, "sendMessage", func() error {
		_, err := t.bot.Send(&tele.User{ID: recipientID}, text, opts)
		return err
	})
}

// Approve accepts the pending join request.
func (t *Telegram) Approve(ctx context.Context, chatID, userID int64) error {
	return t.do(ctx, "approveChatJoinRequest", func() error {
		return settled(ctx, "approveChatJoinRequest", userID,
			t.bot.ApproveJoinRequest(tele.ChatID(chatID), &tele.User{ID: userID}))
	})
}

// Decline rejects the pending join request.
func (t *Telegram) Decline(ctx context.Context, chatID, userID int64) error {
	return t.do(ctx, "declineChatJoinRequest", func() error {
		return settled(ctx, "declineChatJoinRequest", userID,
			t.bot.DeclineJoinRequest(tele.ChatID(chatID), &tele.User{ID: userID}))
	})
}

// settled drops errors reporting that the join request no longer exists.
// A retried approve or decline whose first attempt reached Telegram gets
// one of these.
func settled(ctx context.Context, endpoint string, userID int64, err error) error {
	if err == nil || !alreadyResolved(err) {
		return err
	}
	logger.Info(ctx, component, "call.already_resolved",
		slog.String("status", "skip"),
		slog.String("endpoint", endpoint),
		slog.Int64("user_id", userID),
		slog.String("err", sender.SanitizeError(err)),
	)
	return nil
}

func alreadyResolved(err error) bool {
	if errors.Is(err, tele.ErrHideRequesterMissing) || errors.Is(err, tele.ErrUserAlreadyParticipant) {
		return true
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "HIDE_REQUESTER_MISSING") || strings.Contains(msg, "USER_ALREADY_PARTICIPANT")
}

// MembershipStatus resolves the user's role in channel, which may be a
// numeric id or an @username. Users the platform does not know are reported
// as MembershipUnknown rather than as an error.
func (t *Telegram) MembershipStatus(ctx context.Context, channel string, userID int64) (verify.Membership, error) {
	var member *tele.ChatMember
	err := t.do(ctx, "getChatMember", func() error {
		var err error
		member, err = t.bot.ChatMemberOf(chatRef(channel), &tele.User{ID: userID})
		return err
	})
	if err != nil {
		if isUserNotFound(err) {
			return verify.MembershipUnknown, nil
		}
		return verify.MembershipUnknown, err
	}
	if member == nil {
		return verify.MembershipUnknown, nil
	}
	return membershipOf(member.Role), nil
}

// AnswerInteraction acknowledges a callback query.
func (t *Telegram) AnswerInteraction(ctx context.Context, interactionID, text string, alert bool) error {
	return t.do(ctx, "answerCallbackQuery", func() error {
		return t.bot.Respond(&tele.Callback{ID: interactionID}, &tele.CallbackResponse{
			Text:      text,
			ShowAlert: alert,
		})
	})
}

func membershipOf(role tele.MemberStatus) verify.Membership {
	switch role {
	case tele.Member, tele.Administrator, tele.Creator:
		return verify.MembershipMember
	case tele.Left:
		return verify.MembershipLeft
	case tele.Kicked:
		return verify.MembershipKicked
	case tele.Restricted:
		return verify.MembershipRestricted
	}
	return verify.MembershipUnknown
}

// chatRef addresses a chat by id or @username.
type chatRef string

func (r chatRef) Recipient() string { return strings.TrimSpace(string(r)) }

func isUserNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user not found") || strings.Contains(msg, "participant_id_invalid")
}

// do runs fn with exponential backoff on transient failures.
func (t *Telegram) do(ctx context.Context, endpoint string, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(t.opts.InitialInterval),
		backoff.WithMaxInterval(t.opts.MaxInterval),
		backoff.WithMaxElapsedTime(t.opts.MaxElapsed),
	), t.opts.MaxRetries), ctx)

	start := time.Now()
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		var flood tele.FloodError
		if errors.As(err, &flood) {
			wait := time.Duration(flood.RetryAfter) * time.Second
			if wait > t.opts.MaxFloodWait {
				return backoff.Permanent(err)
			}
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		logger.Debug(ctx, component, "call.retry",
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt),
			slog.String("err", sender.SanitizeError(err)),
		)
		return err
	}, policy)

	if err != nil {
		logger.Warn(ctx, component, "call.fail",
			slog.String("status", "fail"),
			slog.String("endpoint", endpoint),
			slog.Int("attempts", attempt),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", sender.SanitizeError(err)),
			slog.String("cause", sender.ClassifyError(err)),
		)
		return err
	}
	logger.Debug(ctx, component, "call.ok",
		slog.String("status", "ok"),
		slog.String("endpoint", endpoint),
		slog.Int("attempts", attempt),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func retryable(err error) bool {
	if netutil.ShouldRetry(err) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
