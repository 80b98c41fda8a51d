package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Zero(t, cfg.Server.SessionTTL)
	assert.Equal(t, time.Minute, cfg.Server.SweepInterval)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "https://api.mistral.ai/v1", cfg.AI.BaseURL)
	assert.Equal(t, "mistral-small", cfg.AI.Model)
	assert.Equal(t, 250, cfg.AI.MaxTokens)
	assert.Equal(t, 3, cfg.AI.MaxAttempts)
	assert.Equal(t, time.Second, cfg.AI.BaseRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)

	assert.InDelta(t, 0.35, cfg.Game.NPCProbability, 1e-9)
	assert.Equal(t, 10, cfg.Game.HistoryWindow)
	assert.Equal(t, 40, cfg.Game.HistoryRetain)
	assert.Equal(t, []string{"Explore", "Look around", "Wait"}, cfg.Game.FallbackOptions)
	assert.Empty(t, cfg.Game.ExtraBannedPhrases())

	assert.Equal(t, "data/images.db", cfg.Assets.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("AI_PROVIDER", "Ollama")
	t.Setenv("AI_MODEL", "llama3")
	t.Setenv("AI_BASE_RETRY_DELAY", "250ms")
	t.Setenv("GAME_FALLBACK_OPTIONS", "Pray,Sing")
	t.Setenv("GAME_BANNED_PHRASES", "As an AI, | Hello there! ")
	t.Setenv("GAME_HISTORY_RETAIN", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://play.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, []string{"http://localhost:3000", "https://play.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ProviderOllama, cfg.AI.Provider)
	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, 250*time.Millisecond, cfg.AI.BaseRetryDelay)
	assert.Equal(t, []string{"Pray", "Sing"}, cfg.Game.FallbackOptions)
	assert.Equal(t, []string{"As an AI,", "Hello there!"}, cfg.Game.ExtraBannedPhrases())
	assert.Equal(t, 10, cfg.Game.HistoryRetain)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                 "80 80",
		"AI_PROVIDER":          "carrier-pigeon",
		"AI_TIMEOUT":           "soon",
		"GAME_NPC_PROBABILITY": "1.5",
		"GAME_MAX_OPTIONS":     "1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, AIConfig{Provider: ProviderOpenAI, Model: "m"}.Enabled())
	assert.True(t, AIConfig{Provider: ProviderOpenAI, Model: "m", APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{Provider: ProviderArk, Ark: ArkConfig{Model: "ep", AccessKey: "a", SecretKey: "s"}}.Enabled())
	assert.False(t, AIConfig{Provider: ProviderArk, Ark: ArkConfig{Model: "ep", AccessKey: "a"}}.Enabled())
}

func TestNewChatModelRequiresArk(t *testing.T) {
	_, err := AIConfig{Provider: ProviderOpenAI, APIKey: "k", Model: "m"}.NewChatModel(context.Background())
	assert.Error(t, err)
}

func TestAssetURL(t *testing.T) {
	c := AssetConfig{BaseURL: "/static/images/", Unknown: "unknown.png"}

	assert.Equal(t, "/static/images/cave.png", c.URL("cave.png"))
	assert.Equal(t, "/static/images/unknown.png", c.URL(""))
}
