package verify

// Event is one of the inbound variants the engine understands:
// JoinRequestEvent or ResponseEvent.
type Event interface {
	isEvent()
}

// JoinRequestEvent is a user asking to enter a chat.
type JoinRequestEvent struct {
	ChatID int64
	UserID int64
}

// ResponseEvent is a button press on a previously sent challenge.
type ResponseEvent struct {
	UserID        int64
	InteractionID string
	Payload       string
}

func (JoinRequestEvent) isEvent() {}
func (ResponseEvent) isEvent()    {}
