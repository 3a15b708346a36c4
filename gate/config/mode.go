package config

import (
	"fmt"
	"strings"
)

// Mode selects which checks a join request must pass.
type Mode int

const (
	// ModeBoth requires the arithmetic answer and a channel subscription.
	ModeBoth Mode = iota
	// ModeEquation requires only the arithmetic answer.
	ModeEquation
	// ModeSubscription requires only a channel subscription.
	ModeSubscription
)

// ParseMode maps the configured selector onto a Mode. Empty input means ModeBoth.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "both":
		return ModeBoth, nil
	case "equation":
		return ModeEquation, nil
	case "subscription":
		return ModeSubscription, nil
	}
	return ModeBoth, fmt.Errorf("%w: invalid verify mode %q; allowed: subscription, equation, both", ErrInvalid, raw)
}

// RequiresEquation reports whether the arithmetic challenge is part of the mode.
func (m Mode) RequiresEquation() bool {
	return m == ModeEquation || m == ModeBoth
}

// RequiresSubscription reports whether the channel membership check is part of the mode.
func (m Mode) RequiresSubscription() bool {
	return m == ModeSubscription || m == ModeBoth
}

func (m Mode) String() string {
	switch m {
	case ModeEquation:
		return "equation"
	case ModeSubscription:
		return "subscription"
	default:
		return "both"
	}
}
