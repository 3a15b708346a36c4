package verify

import (
	"context"
	"fmt"
	"strings"
)

// Membership is a user's relationship to the gating channel.
type Membership int

const (
	MembershipUnknown Membership = iota
	MembershipMember
	MembershipLeft
	MembershipKicked
	MembershipRestricted
)

func (m Membership) String() string {
	switch m {
	case MembershipMember:
		return "member"
	case MembershipLeft:
		return "left"
	case MembershipKicked:
		return "kicked"
	case MembershipRestricted:
		return "restricted"
	}
	return "unknown"
}

// Control is one selectable action attached to a challenge message.
type Control struct {
	Label   string
	Payload string
}

// Gateway is the chat platform as seen by the engine. Transport, retries and
// rate limits belong to the implementation.
type Gateway interface {
	SendMessage(ctx context.Context, recipientID int64, text string, controls []Control) error
	Approve(ctx context.Context, chatID, userID int64) error
	Decline(ctx context.Context, chatID, userID int64) error
	MembershipStatus(ctx context.Context, channel string, userID int64) (Membership, error)
	AnswerInteraction(ctx context.Context, interactionID, text string, alert bool) error
}

// Recorder receives terminal decisions. Failures never change a decision.
type Recorder interface {
	Record(ctx context.Context, d Decision) error
}

// GatewayError wraps a failed platform call.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Code exposes a stable identifier for handler summaries.
func (e *GatewayError) Code() string {
	return "GATEWAY_" + strings.ToUpper(e.Op)
}

func gatewayErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &GatewayError{Op: op, Err: err}
}
