package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		data    string
		unique  string
		payload string
	}{
		{"\fgate|7", "gate", "7"},
		{"\fgate|verify", "gate", "verify"},
		{"\fgate", "gate", ""},
		{"\fgate|a|b", "gate", "a|b"},
		{"12", "", "12"},
		{"", "", ""},
	}
	for _, tc := range cases {
		unique, payload := ParseCallbackData(&tele.Callback{Data: tc.data})
		assert.Equal(t, tc.unique, unique, tc.data)
		assert.Equal(t, tc.payload, payload, tc.data)
	}

	unique, payload := ParseCallbackData(nil)
	assert.Empty(t, unique)
	assert.Empty(t, payload)
}
