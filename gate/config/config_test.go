package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{
		"":             ModeBoth,
		"both":         ModeBoth,
		" Equation ":   ModeEquation,
		"SUBSCRIPTION": ModeSubscription,
	} {
		got, err := ParseMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseMode("captcha")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestModeRequirements(t *testing.T) {
	assert.True(t, ModeBoth.RequiresEquation())
	assert.True(t, ModeBoth.RequiresSubscription())
	assert.True(t, ModeEquation.RequiresEquation())
	assert.False(t, ModeEquation.RequiresSubscription())
	assert.False(t, ModeSubscription.RequiresEquation())
	assert.True(t, ModeSubscription.RequiresSubscription())
}

func TestNormalize(t *testing.T) {
	cfg := &Config{ChatID: -100123, ModeName: "equation", Texts: Texts{Success: "custom"}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, ModeEquation, cfg.Mode)
	assert.Equal(t, "custom", cfg.Texts.Success)
	assert.Equal(t, DefaultTexts.WrongAnswer, cfg.Texts.WrongAnswer)
	assert.Equal(t, DefaultTexts.TryAgain, cfg.Texts.TryAgain)
	assert.Zero(t, cfg.SweepInterval)

	cfg = &Config{ChatID: 1, ModeName: "subscription", ChannelID: "  @news "}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "@news", cfg.ChannelID)
	assert.Equal(t, "subscription", cfg.ModeName)
}

func TestNormalizeSweepInterval(t *testing.T) {
	cfg := &Config{ChatID: 1, ModeName: "equation", PendingTTL: 2 * time.Second}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, time.Second, cfg.SweepInterval)

	cfg = &Config{ChatID: 1, ModeName: "equation", PendingTTL: 10 * time.Minute}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, 150*time.Second, cfg.SweepInterval)
}

func TestNormalizeErrors(t *testing.T) {
	cases := map[string]*Config{
		"nil":             nil,
		"missing chat":    {ModeName: "equation"},
		"bad mode":        {ChatID: 1, ModeName: "quiz"},
		"missing channel": {ChatID: 1, ModeName: "both"},
		"negative ttl":    {ChatID: 1, ModeName: "equation", PendingTTL: -time.Second},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, Normalize(cfg), ErrInvalid)
		})
	}
}
