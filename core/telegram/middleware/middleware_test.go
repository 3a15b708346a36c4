package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(upd)
}

func textUpdate(id int, userID int64) tele.Update {
	return tele.Update{
		ID: id,
		Message: &tele.Message{
			Text:   "hi",
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	var passed, rejected int
	h := AdminOnlyMiddleware(AdminOptions{
		AdminID:  7,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})(func(tele.Context) error { passed++; return nil })

	require.NoError(t, h(newContext(t, textUpdate(1, 7))))
	require.NoError(t, h(newContext(t, textUpdate(2, 8))))
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, rejected)

	closed := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { passed++; return nil })
	require.NoError(t, closed(newContext(t, textUpdate(3, 7))))
	assert.Equal(t, 1, passed, "no admin configured rejects everyone")
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "callback", UpdateKind(tele.Update{Callback: &tele.Callback{}}))
	assert.Equal(t, "join_request", UpdateKind(tele.Update{ChatJoinRequest: &tele.ChatJoinRequest{}}))
	assert.Equal(t, "message", UpdateKind(tele.Update{Message: &tele.Message{}}))
	assert.Equal(t, "other", UpdateKind(tele.Update{}))
}

func TestRateLimitHonoursExclusions(t *testing.T) {
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	require.NoError(t, h(newContext(t, textUpdate(1, 9))))
	require.NoError(t, h(newContext(t, textUpdate(2, 9))))
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, limited)

	cb := tele.Update{ID: 3, Callback: &tele.Callback{Sender: &tele.User{ID: 9}}}
	require.NoError(t, h(newContext(t, cb)))
	assert.Equal(t, 2, handled)
}

func TestRecoverMiddlewareSwallowsPanics(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	assert.NotPanics(t, func() {
		_ = h(newContext(t, textUpdate(1, 1)))
	})
}

func TestMessageMetricsCountsReplies(t *testing.T) {
	c := newContext(t, textUpdate(10, 5))
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_, ok := c.(countingContext)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, h(c))

	msgs, kb := GetCounters(c)
	assert.Zero(t, msgs)
	assert.False(t, kb)

	n := &counters{}
	cc := countingContext{Context: c, n: n}
	require.NoError(t, cc.count(nil, []interface{}{&tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}}}))
	require.NoError(t, cc.count(nil, nil))
	assert.Error(t, cc.count(assert.AnError, nil))
	assert.Equal(t, 2, n.messages)
	assert.True(t, n.keyboard)
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := newContext(t, textUpdate(11, 6))
	var rid string
	h := LoggerMiddleware(func(c tele.Context) error {
		rid, _ = c.Get("rid").(string)
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, "11:6:6", rid)
	assert.True(t, seenUpdates.firstSeen(12, time.Now()))
	assert.False(t, seenUpdates.firstSeen(12, time.Now()))
}
