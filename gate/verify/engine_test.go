package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatekeeper/gate/challenge"
	"github.com/m3rciful/gatekeeper/gate/config"
	"github.com/m3rciful/gatekeeper/gate/pending"
)

const (
	guardedChat = int64(100)
	channel     = "@news"
)

type call struct {
	op      string
	chatID  int64
	userID  int64
	text    string
	alert   bool
	payload []Control
}

type fakeGateway struct {
	mu         sync.Mutex
	calls      []call
	membership Membership
	errs       map[string]error
}

func (g *fakeGateway) fail(op string) error {
	if g.errs == nil {
		return nil
	}
	return g.errs[op]
}

func (g *fakeGateway) add(c call) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
}

func (g *fakeGateway) SendMessage(_ context.Context, recipientID int64, text string, controls []Control) error {
	g.add(call{op: "send", userID: recipientID, text: text, payload: controls})
	return g.fail("send")
}

func (g *fakeGateway) Approve(_ context.Context, chatID, userID int64) error {
	g.add(call{op: "approve", chatID: chatID, userID: userID})
	return g.fail("approve")
}

func (g *fakeGateway) Decline(_ context.Context, chatID, userID int64) error {
	g.add(call{op: "decline", chatID: chatID, userID: userID})
	return g.fail("decline")
}

func (g *fakeGateway) MembershipStatus(_ context.Context, ch string, userID int64) (Membership, error) {
	g.add(call{op: "membership", text: ch, userID: userID})
	return g.membership, g.fail("membership")
}

func (g *fakeGateway) AnswerInteraction(_ context.Context, _ string, text string, alert bool) error {
	g.add(call{op: "answer", text: text, alert: alert})
	return g.fail("answer")
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (g *fakeGateway) last(op string) call {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.calls) - 1; i >= 0; i-- {
		if g.calls[i].op == op {
			return g.calls[i]
		}
	}
	return call{}
}

type fixedGenerator struct {
	queue []challenge.Challenge
}

func (f *fixedGenerator) Generate() challenge.Challenge {
	c := f.queue[0]
	if len(f.queue) > 1 {
		f.queue = f.queue[1:]
	}
	return c
}

func puzzle(left, right int, decoys ...int) challenge.Challenge {
	expected := left + right
	values := append([]int{expected}, decoys...)
	opts := make([]challenge.Option, len(values))
	for i, v := range values {
		opts[i] = challenge.Option{Value: v, Label: challenge.Label(config.DefaultTexts.ButtonPrefix, v)}
	}
	return challenge.Challenge{Left: left, Right: right, Expected: expected, Options: opts}
}

type memRecorder struct {
	mu        sync.Mutex
	decisions []Decision
}

func (r *memRecorder) Record(_ context.Context, d Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
	return nil
}

type harness struct {
	engine   *Engine
	store    *pending.Store
	gw       *fakeGateway
	recorder *memRecorder
	clock    time.Time
}

func newHarness(t *testing.T, mode config.Mode, challenges ...challenge.Challenge) *harness {
	t.Helper()
	cfg := config.Config{ChatID: guardedChat, ChannelID: channel, ModeName: mode.String()}
	require.NoError(t, config.Normalize(&cfg))

	if len(challenges) == 0 {
		challenges = []challenge.Challenge{puzzle(4, 3, 5, 9, 2)}
	}
	h := &harness{
		store:    pending.NewStore(),
		gw:       &fakeGateway{membership: MembershipMember},
		recorder: &memRecorder{},
		clock:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	engine, err := New(Options{
		Config:    cfg,
		Store:     h.store,
		Generator: &fixedGenerator{queue: challenges},
		Gateway:   h.gw,
		Recorder:  h.recorder,
		Now:       func() time.Time { return h.clock },
	})
	require.NoError(t, err)
	h.engine = engine
	return h
}

func (h *harness) join(t *testing.T, userID int64) {
	t.Helper()
	out, err := h.engine.Handle(context.Background(), JoinRequestEvent{ChatID: guardedChat, UserID: userID})
	require.NoError(t, err)
	require.Equal(t, OutcomeChallengeSent, out)
}

func (h *harness) respond(userID int64, payload string) (Outcome, error) {
	return h.engine.Handle(context.Background(), ResponseEvent{UserID: userID, InteractionID: "cb-1", Payload: payload})
}

func TestEquationCorrectAnswerApproves(t *testing.T) {
	h := newHarness(t, config.ModeEquation)
	h.join(t, 55)

	sent := h.gw.last("send")
	assert.Equal(t, int64(55), sent.userID)
	assert.Contains(t, sent.text, "4 + 3 = ?")
	require.Len(t, sent.payload, 4)
	assert.Equal(t, Control{Label: "Answer: 7", Payload: "7"}, sent.payload[0])

	st, ok := h.store.Get(55)
	require.True(t, ok)
	assert.Equal(t, 7, st.Expected)
	assert.Equal(t, guardedChat, st.ChatID)

	out, err := h.respond(55, "7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, out)

	assert.Equal(t, 1, h.gw.count("approve"))
	assert.Equal(t, call{op: "approve", chatID: guardedChat, userID: 55}, h.gw.last("approve"))
	assert.Zero(t, h.gw.count("membership"))
	assert.False(t, h.engine.HasPending(55))

	answer := h.gw.last("answer")
	assert.Equal(t, config.DefaultTexts.Success, answer.text)
	assert.True(t, answer.alert)

	require.Len(t, h.recorder.decisions, 1)
	assert.Equal(t, OutcomeApproved, h.recorder.decisions[0].Outcome)
}

func TestWrongAnswerDeclinesOnce(t *testing.T) {
	h := newHarness(t, config.ModeEquation)
	h.join(t, 55)

	out, err := h.respond(55, "3")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrongAnswer, out)
	assert.Equal(t, 1, h.gw.count("decline"))
	assert.False(t, h.engine.HasPending(55))
	assert.Equal(t, config.DefaultTexts.WrongAnswer, h.gw.last("answer").text)
	assert.True(t, h.gw.last("answer").alert)

	out, err = h.respond(55, "7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownRequester, out)
	assert.Equal(t, 1, h.gw.count("decline"), "no second decline")
	assert.Zero(t, h.gw.count("approve"))
	assert.Equal(t, config.DefaultTexts.NoRequest, h.gw.last("answer").text)
	assert.True(t, h.gw.last("answer").alert)
}

func TestMalformedPayloadKeepsState(t *testing.T) {
	h := newHarness(t, config.ModeBoth)
	h.join(t, 55)

	for _, payload := range []string{"", "seven", "7.0", " 7", config.VerifyPayload} {
		out, err := h.respond(55, payload)
		require.NoError(t, err)
		assert.Equal(t, OutcomeMalformedResponse, out, payload)
	}
	assert.True(t, h.engine.HasPending(55))
	assert.Zero(t, h.gw.count("decline"))
	assert.Zero(t, h.gw.count("membership"))
	assert.Equal(t, config.DefaultTexts.InvalidResponse, h.gw.last("answer").text)
	assert.True(t, h.gw.last("answer").alert)

	out, err := h.respond(55, "7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, out)
}

func TestSubscriptionOnlyMode(t *testing.T) {
	h := newHarness(t, config.ModeSubscription)
	h.join(t, 55)

	sent := h.gw.last("send")
	assert.Equal(t, config.DefaultTexts.Instruction, sent.text)
	assert.Equal(t, []Control{{Label: config.DefaultTexts.VerifyButton, Payload: config.VerifyPayload}}, sent.payload)

	st, ok := h.store.Get(55)
	require.True(t, ok)
	assert.Zero(t, st.Expected)
	assert.Empty(t, st.Options)

	h.gw.membership = MembershipLeft
	out, err := h.respond(55, "not-a-number")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotSubscribed, out)
	assert.Equal(t, channel, h.gw.last("membership").text)
	assert.Equal(t, 1, h.gw.count("decline"))
	assert.Equal(t, config.DefaultTexts.NotSubscribed, h.gw.last("answer").text)
}

func TestSubscriptionOnlyApprovesMember(t *testing.T) {
	h := newHarness(t, config.ModeSubscription)
	h.join(t, 55)

	out, err := h.respond(55, config.VerifyPayload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, out)
	assert.Equal(t, 1, h.gw.count("approve"))
}

func TestBothModeWrongAnswerSkipsMembership(t *testing.T) {
	h := newHarness(t, config.ModeBoth)
	h.join(t, 55)

	out, err := h.respond(55, "9")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrongAnswer, out)
	assert.Zero(t, h.gw.count("membership"))
}

func TestBothModeCorrectAnswerButKicked(t *testing.T) {
	h := newHarness(t, config.ModeBoth)
	h.gw.membership = MembershipKicked
	h.join(t, 55)

	out, err := h.respond(55, "7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotSubscribed, out)
	assert.Equal(t, 1, h.gw.count("decline"))
	assert.Zero(t, h.gw.count("approve"))
	assert.Equal(t, 1, h.gw.count("answer"))
	assert.Equal(t, config.DefaultTexts.NotSubscribed, h.gw.last("answer").text)
}

func TestNonMemberStatusesDecline(t *testing.T) {
	for _, status := range []Membership{MembershipLeft, MembershipKicked, MembershipRestricted, MembershipUnknown} {
		t.Run(status.String(), func(t *testing.T) {
			h := newHarness(t, config.ModeSubscription)
			h.gw.membership = status
			h.join(t, 55)
			out, err := h.respond(55, config.VerifyPayload)
			require.NoError(t, err)
			assert.Equal(t, OutcomeNotSubscribed, out)
		})
	}
}

func TestOverwriteMakesFirstAnswerUnreachable(t *testing.T) {
	h := newHarness(t, config.ModeEquation, puzzle(4, 3, 5, 9, 2), puzzle(8, 8, 12, 14, 18))
	h.join(t, 55)
	h.join(t, 55)

	assert.Equal(t, 1, h.engine.PendingCount())
	st, _ := h.store.Get(55)
	assert.Equal(t, 16, st.Expected)

	out, err := h.respond(55, "7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrongAnswer, out)
	assert.Equal(t, 1, h.gw.count("decline"))
}

func TestJoinForOtherChatIgnored(t *testing.T) {
	h := newHarness(t, config.ModeEquation)
	out, err := h.engine.Handle(context.Background(), JoinRequestEvent{ChatID: 999, UserID: 55})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
	assert.Zero(t, h.gw.count("send"))
	assert.False(t, h.engine.HasPending(55))
}

func TestSendFailureStoresNothing(t *testing.T) {
	h := newHarness(t, config.ModeEquation)
	h.gw.errs = map[string]error{"send": errors.New("bot was blocked by the user")}

	out, err := h.engine.Handle(context.Background(), JoinRequestEvent{ChatID: guardedChat, UserID: 55})
	assert.Equal(t, OutcomeFailed, out)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "send", gwErr.Op)
	assert.Equal(t, "GATEWAY_SEND", gwErr.Code())
	assert.False(t, h.engine.HasPending(55))
}

func TestGatewayFailureKeepsStateForRetry(t *testing.T) {
	h := newHarness(t, config.ModeBoth)
	h.join(t, 55)

	h.gw.errs = map[string]error{"approve": errors.New("timeout")}
	out, err := h.respond(55, "7")
	assert.Equal(t, OutcomeFailed, out)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "approve", gwErr.Op)
	assert.True(t, h.engine.HasPending(55))
	assert.Equal(t, 1, h.gw.count("answer"))
	assert.Equal(t, config.DefaultTexts.TryAgain, h.gw.last("answer").text)
	assert.True(t, h.gw.last("answer").alert)
	assert.Empty(t, h.recorder.decisions)

	h.gw.errs = nil
	out, err = h.respond(55, "7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, out)
	assert.False(t, h.engine.HasPending(55))
}

func TestMembershipAndDeclineFailuresKeepState(t *testing.T) {
	h := newHarness(t, config.ModeBoth)
	h.join(t, 55)

	h.gw.errs = map[string]error{"membership": errors.New("chat not found")}
	_, err := h.respond(55, "7")
	require.Error(t, err)
	assert.True(t, h.engine.HasPending(55))

	h.gw.errs = map[string]error{"decline": errors.New("flood")}
	_, err = h.respond(55, "1")
	require.Error(t, err)
	assert.True(t, h.engine.HasPending(55))
}

func TestAnswerFailureSurfacesAfterDecision(t *testing.T) {
	h := newHarness(t, config.ModeEquation)
	h.join(t, 55)
	h.gw.errs = map[string]error{"answer": errors.New("query is too old")}

	out, err := h.respond(55, "7")
	assert.Equal(t, OutcomeApproved, out)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "answer", gwErr.Op)
	assert.False(t, h.engine.HasPending(55))
}

func TestConcurrentUsersResolveIndependently(t *testing.T) {
	h := newHarness(t, config.ModeEquation)
	const users = 64
	for u := int64(1); u <= users; u++ {
		h.join(t, u)
	}

	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			_, _ = h.respond(id, "7")
		}(u)
		go func(id int64) {
			defer wg.Done()
			_, _ = h.respond(id, "7")
		}(u)
	}
	wg.Wait()

	assert.Equal(t, users, h.gw.count("approve"), "each user approved exactly once")
	assert.Zero(t, h.engine.PendingCount())
}

func TestUnsupportedEvent(t *testing.T) {
	h := newHarness(t, config.ModeEquation)
	_, err := h.engine.Handle(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Gateway: &fakeGateway{}})
	assert.Error(t, err)
	_, err = New(Options{Store: pending.NewStore()})
	assert.Error(t, err)
	_, err = New(Options{Store: pending.NewStore(), Gateway: &fakeGateway{}, Config: config.Config{Mode: config.ModeEquation}})
	assert.Error(t, err)
	_, err = New(Options{Store: pending.NewStore(), Gateway: &fakeGateway{}, Config: config.Config{Mode: config.ModeSubscription}})
	assert.NoError(t, err)
}
