package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "reply_counters"

// counters tracks what a handler sent back through its tele.Context.
type counters struct {
	messages int
	keyboard bool
}

// countingContext wraps tele.Context and counts successful replies.
type countingContext struct {
	tele.Context
	n *counters
}

func (m countingContext) count(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	m.n.messages++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			m.n.keyboard = m.n.keyboard || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			m.n.keyboard = m.n.keyboard || v != nil
		}
	}
	return nil
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

// MessageMetricsMiddleware counts replies so handler summaries can report them.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &counters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns the reply count and whether any reply had a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*counters)
	if !ok {
		return 0, false
	}
	return n.messages, n.keyboard
}
