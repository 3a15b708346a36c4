package verify

import (
	"time"

	"github.com/m3rciful/gatekeeper/gate/config"
)

// Outcome is the result of handling one event.
type Outcome int

const (
	// OutcomeFailed means a gateway call failed; pending state is untouched.
	OutcomeFailed Outcome = iota
	// OutcomeIgnored is returned for join requests to chats the bot does not guard.
	OutcomeIgnored
	OutcomeChallengeSent
	OutcomeUnknownRequester
	OutcomeMalformedResponse
	OutcomeApproved
	OutcomeWrongAnswer
	OutcomeNotSubscribed
	// OutcomeExpired is produced by the pending expiry sweep.
	OutcomeExpired
)

var outcomeNames = map[Outcome]string{
	OutcomeFailed:            "failed",
	OutcomeIgnored:           "ignored",
	OutcomeChallengeSent:     "challenge_sent",
	OutcomeUnknownRequester:  "unknown_requester",
	OutcomeMalformedResponse: "malformed_response",
	OutcomeApproved:          "approved",
	OutcomeWrongAnswer:       "declined_wrong_answer",
	OutcomeNotSubscribed:     "declined_not_subscribed",
	OutcomeExpired:           "expired",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the outcome resolved a join request.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeApproved, OutcomeWrongAnswer, OutcomeNotSubscribed, OutcomeExpired:
		return true
	}
	return false
}

// Decision is a terminal outcome handed to the Recorder.
type Decision struct {
	ChatID    int64
	UserID    int64
	Mode      config.Mode
	Outcome   Outcome
	DecidedAt time.Time
}
