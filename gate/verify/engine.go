// Package verify implements the join request verification state machine.
//
// Per user the machine moves NoRequest -> ChallengeSent -> {Approved | Declined}.
// Terminal states are not stored: reaching one removes the pending entry.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/gatekeeper/core/logger"
	"github.com/m3rciful/gatekeeper/gate/challenge"
	"github.com/m3rciful/gatekeeper/gate/config"
	"github.com/m3rciful/gatekeeper/gate/pending"
)

const component = "gate.verify"

// Options wires the engine's collaborators.
type Options struct {
	Config    config.Config
	Store     *pending.Store
	Generator challenge.Generator
	Gateway   Gateway
	Recorder  Recorder
	Now       func() time.Time
}

// Engine consumes join request and response events.
type Engine struct {
	cfg      config.Config
	store    *pending.Store
	gen      challenge.Generator
	gw       Gateway
	recorder Recorder
	now      func() time.Time
}

// New validates options and builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("verify: nil store")
	}
	if opts.Gateway == nil {
		return nil, errors.New("verify: nil gateway")
	}
	if opts.Generator == nil && opts.Config.Mode.RequiresEquation() {
		return nil, errors.New("verify: nil challenge generator")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:      opts.Config,
		store:    opts.Store,
		gen:      opts.Generator,
		gw:       opts.Gateway,
		recorder: opts.Recorder,
		now:      now,
	}, nil
}

// Handle dispatches ev to the matching transition.
func (e *Engine) Handle(ctx context.Context, ev Event) (Outcome, error) {
	switch ev := ev.(type) {
	case JoinRequestEvent:
		return e.handleJoin(ctx, ev)
	case ResponseEvent:
		return e.handleResponse(ctx, ev)
	default:
		return OutcomeFailed, fmt.Errorf("verify: unsupported event %T", ev)
	}
}

// HasPending reports whether userID has an unanswered challenge.
func (e *Engine) HasPending(userID int64) bool {
	_, ok := e.store.Get(userID)
	return ok
}

// PendingCount reports the number of unanswered challenges.
func (e *Engine) PendingCount() int {
	return e.store.Len()
}

func (e *Engine) handleJoin(ctx context.Context, ev JoinRequestEvent) (Outcome, error) {
	if ev.ChatID != e.cfg.ChatID {
		logger.Debug(ctx, component, "join.ignored",
			slog.String("status", "skip"),
			slog.Int64("chat_id", ev.ChatID),
			slog.Int64("user_id", ev.UserID),
		)
		return OutcomeIgnored, nil
	}

	st := pending.State{
		ChatID: ev.ChatID,
		UserID: ev.UserID,
		Mode:   e.cfg.Mode,
	}
	var (
		text     string
		controls []Control
	)
	if st.Mode.RequiresEquation() {
		ch := e.gen.Generate()
		st.Expected = ch.Expected
		st.Options = ch.Options
		st.Left, st.Right = ch.Left, ch.Right
		text = ch.Text(e.cfg.Texts.Instruction)
		controls = make([]Control, len(ch.Options))
		for i, opt := range ch.Options {
			controls[i] = Control{Label: opt.Label, Payload: strconv.Itoa(opt.Value)}
		}
	} else {
		text = e.cfg.Texts.Instruction
		controls = []Control{{Label: e.cfg.Texts.VerifyButton, Payload: config.VerifyPayload}}
	}

	unlock := e.store.Lock(ev.UserID)
	defer unlock()

	prev, superseded := e.store.Get(ev.UserID)
	if err := e.gw.SendMessage(ctx, ev.UserID, text, controls); err != nil {
		return OutcomeFailed, gatewayErr("send", err)
	}
	st.IssuedAt = e.now()
	e.store.Put(ev.UserID, st)

	if superseded {
		// Last request wins; the earlier challenge becomes unanswerable.
		logger.Warn(ctx, component, "join.superseded",
			slog.Int64("chat_id", ev.ChatID),
			slog.Int64("user_id", ev.UserID),
			slog.Int("prev_expected", prev.Expected),
			slog.Duration("prev_age", e.now().Sub(prev.IssuedAt)),
		)
	}
	logger.Info(ctx, component, "join.challenge_sent",
		slog.String("status", "ok"),
		slog.Int64("chat_id", ev.ChatID),
		slog.Int64("user_id", ev.UserID),
		slog.String("mode", st.Mode.String()),
	)
	return OutcomeChallengeSent, nil
}

func (e *Engine) handleResponse(ctx context.Context, ev ResponseEvent) (Outcome, error) {
	unlock := e.store.Lock(ev.UserID)
	st, ok := e.store.Get(ev.UserID)
	if !ok {
		unlock()
		logger.Info(ctx, component, "response.unknown_requester",
			slog.String("status", "skip"),
			slog.Int64("user_id", ev.UserID),
		)
		return OutcomeUnknownRequester, e.answer(ctx, ev, e.cfg.Texts.NoRequest, true)
	}
	outcome, err := e.resolve(ctx, st, ev.Payload)
	unlock()

	attrs := []slog.Attr{
		slog.Int64("chat_id", st.ChatID),
		slog.Int64("user_id", st.UserID),
		slog.String("mode", st.Mode.String()),
		slog.String("decision", outcome.String()),
	}
	if err != nil {
		logger.Error(ctx, component, "response.failed",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		// The request is still pending; ask the user to press again.
		if ansErr := e.answer(ctx, ev, e.cfg.Texts.TryAgain, true); ansErr != nil {
			logger.Warn(ctx, component, "response.answer_failed",
				slog.Int64("user_id", st.UserID),
				slog.String("err", ansErr.Error()),
			)
		}
		return outcome, err
	}
	logger.Info(ctx, component, "response.resolved", append(attrs, slog.String("status", "ok"))...)

	if outcome.Terminal() {
		e.record(ctx, st, outcome)
	}

	var text string
	switch outcome {
	case OutcomeMalformedResponse:
		text = e.cfg.Texts.InvalidResponse
	case OutcomeWrongAnswer:
		text = e.cfg.Texts.WrongAnswer
	case OutcomeNotSubscribed:
		text = e.cfg.Texts.NotSubscribed
	case OutcomeApproved:
		text = e.cfg.Texts.Success
	}
	return outcome, e.answer(ctx, ev, text, true)
}

// resolve runs the checks for st. It must be called with the user's lock held.
// Equation is checked before subscription so a wrong answer never costs a
// membership lookup.
func (e *Engine) resolve(ctx context.Context, st pending.State, payload string) (Outcome, error) {
	if st.Mode.RequiresEquation() {
		answer, err := strconv.Atoi(payload)
		if err != nil {
			return OutcomeMalformedResponse, nil
		}
		if answer != st.Expected {
			return e.decline(ctx, st, OutcomeWrongAnswer)
		}
	}

	if st.Mode.RequiresSubscription() {
		status, err := e.gw.MembershipStatus(ctx, e.cfg.ChannelID, st.UserID)
		if err != nil {
			return OutcomeFailed, gatewayErr("membership", err)
		}
		if status != MembershipMember {
			logger.Debug(ctx, component, "response.membership",
				slog.Int64("user_id", st.UserID),
				slog.String("membership", status.String()),
			)
			return e.decline(ctx, st, OutcomeNotSubscribed)
		}
	}

	if err := e.gw.Approve(ctx, st.ChatID, st.UserID); err != nil {
		return OutcomeFailed, gatewayErr("approve", err)
	}
	e.store.Remove(st.UserID)
	return OutcomeApproved, nil
}

func (e *Engine) decline(ctx context.Context, st pending.State, outcome Outcome) (Outcome, error) {
	if err := e.gw.Decline(ctx, st.ChatID, st.UserID); err != nil {
		return OutcomeFailed, gatewayErr("decline", err)
	}
	e.store.Remove(st.UserID)
	return outcome, nil
}

func (e *Engine) answer(ctx context.Context, ev ResponseEvent, text string, alert bool) error {
	if ev.InteractionID == "" {
		return nil
	}
	return gatewayErr("answer", e.gw.AnswerInteraction(ctx, ev.InteractionID, text, alert))
}

func (e *Engine) record(ctx context.Context, st pending.State, outcome Outcome) {
	if e.recorder == nil {
		return
	}
	d := Decision{
		ChatID:    st.ChatID,
		UserID:    st.UserID,
		Mode:      st.Mode,
		Outcome:   outcome,
		DecidedAt: e.now(),
	}
	if err := e.recorder.Record(ctx, d); err != nil {
		logger.Warn(ctx, component, "decision.record_failed",
			slog.Int64("user_id", st.UserID),
			slog.String("decision", outcome.String()),
			slog.String("err", err.Error()),
		)
	}
}
