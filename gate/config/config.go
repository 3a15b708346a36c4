// Package config holds settings of the guarded chat and its verification flow.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/gatekeeper/core/config"
)

// ErrInvalid is shared with the core so callers can test a single sentinel.
var ErrInvalid = coreconfig.ErrInvalid

const (
	// VerifyPayload is the callback payload of the subscription-only button.
	VerifyPayload = "verify"

	minSweepInterval = time.Second
)

// Texts are the user-facing templates.
type Texts struct {
	Instruction     string `yaml:"instruction" envconfig:"INSTRUCTION_TEXT"`
	Success         string `yaml:"success" envconfig:"SUCCESS_TEXT"`
	ButtonPrefix    string `yaml:"button" envconfig:"BUTTON_TEXT"`
	WrongAnswer     string `yaml:"answer_incorrect" envconfig:"ANSWER_INCORRECT"`
	NotSubscribed   string `yaml:"not_subscribed" envconfig:"NOT_SUBSCRIBED"`
	VerifyButton    string `yaml:"verify_button" envconfig:"VERIFY_BUTTON_TEXT"`
	InvalidResponse string `yaml:"invalid_response" envconfig:"INVALID_RESPONSE_TEXT"`
	NoRequest       string `yaml:"no_request" envconfig:"NO_REQUEST_TEXT"`
	Reminder        string `yaml:"reminder" envconfig:"REMINDER_TEXT"`
	Start           string `yaml:"start" envconfig:"START_TEXT"`
	TryAgain        string `yaml:"try_again" envconfig:"TRY_AGAIN_TEXT"`
}

// DefaultTexts fills templates an operator did not configure.
var DefaultTexts = Texts{
	Instruction:     "To join the chat, please confirm you are human.",
	Success:         "Welcome! Your join request has been approved.",
	ButtonPrefix:    "Answer:",
	WrongAnswer:     "Wrong answer. Your join request has been declined.",
	NotSubscribed:   "You are not subscribed to the channel. Your join request has been declined.",
	VerifyButton:    "I am subscribed",
	InvalidResponse: "This button is not valid, please use one of the options.",
	NoRequest:       "You have no active join request.",
	Reminder:        "Please answer using the buttons above.",
	Start:           "Send a join request to the chat and I will guide you through verification.",
	TryAgain:        "Something went wrong. Please press the button again.",
}

// Config is the verification flow configuration. It is immutable after Normalize.
type Config struct {
	ChatID    int64  `yaml:"chat_id" envconfig:"CHAT_ID"`
	ChannelID string `yaml:"channel_id" envconfig:"CHANNEL_ID"`
	ModeName  string `yaml:"mode" envconfig:"VERIFY_MODE"`
	Mode      Mode   `yaml:"-" ignored:"true"`

	// AllowForwarding disables protected content on challenge messages.
	AllowForwarding bool `yaml:"allow_forwarding" envconfig:"ALLOW_FORWARDING"`

	// PendingTTL bounds how long an unanswered challenge stays valid; 0 keeps
	// it until the platform expires the join request.
	PendingTTL    time.Duration `yaml:"pending_ttl" envconfig:"PENDING_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"PENDING_SWEEP_INTERVAL"`

	Texts Texts `yaml:"texts"`
}

// Normalize validates required identifiers, resolves the mode and applies defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil gate config", ErrInvalid)
	}
	if cfg.ChatID == 0 {
		return fmt.Errorf("%w: guarded chat id is required (CHAT_ID)", ErrInvalid)
	}

	mode, err := ParseMode(cfg.ModeName)
	if err != nil {
		return err
	}
	cfg.Mode = mode
	cfg.ModeName = mode.String()

	cfg.ChannelID = strings.TrimSpace(cfg.ChannelID)
	if mode.RequiresSubscription() && cfg.ChannelID == "" {
		return fmt.Errorf("%w: channel id is required (CHANNEL_ID) when verify mode is %q", ErrInvalid, mode)
	}

	if cfg.PendingTTL < 0 {
		return fmt.Errorf("%w: pending ttl must be >= 0", ErrInvalid)
	}
	if cfg.PendingTTL > 0 {
		if cfg.SweepInterval <= 0 {
			cfg.SweepInterval = cfg.PendingTTL / 4
		}
		if cfg.SweepInterval < minSweepInterval {
			cfg.SweepInterval = minSweepInterval
		}
	}

	applyDefaultTexts(&cfg.Texts)
	return nil
}

func applyDefaultTexts(t *Texts) {
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&t.Instruction, DefaultTexts.Instruction)
	fill(&t.Success, DefaultTexts.Success)
	fill(&t.ButtonPrefix, DefaultTexts.ButtonPrefix)
	fill(&t.WrongAnswer, DefaultTexts.WrongAnswer)
	fill(&t.NotSubscribed, DefaultTexts.NotSubscribed)
	fill(&t.VerifyButton, DefaultTexts.VerifyButton)
	fill(&t.InvalidResponse, DefaultTexts.InvalidResponse)
	fill(&t.NoRequest, DefaultTexts.NoRequest)
	fill(&t.Reminder, DefaultTexts.Reminder)
	fill(&t.Start, DefaultTexts.Start)
	fill(&t.TryAgain, DefaultTexts.TryAgain)
}
