package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/kelseyhightower/envconfig"
)

// Config aggregates every service setting.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Game   GameConfig
	Assets AssetConfig
	Log    LogConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	game, err := loadGameConfig()
	if err != nil {
		return nil, err
	}

	var assets AssetConfig
	if err := envconfig.Process("", &assets); err != nil {
		return nil, fmt.Errorf("load asset config: %w", err)
	}

	var logCfg LogConfig
	if err := envconfig.Process("", &logCfg); err != nil {
		return nil, fmt.Errorf("load log config: %w", err)
	}

	return &Config{Server: server, AI: ai, Game: game, Assets: assets, Log: logCfg}, nil
}

// ServerConfig describes the HTTP listener and session housekeeping.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Addr string `ignored:"true"`
	// SessionTTL of zero disables idle eviction.
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"0s"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"1m"`
	// AllowedOrigins lists browser origins accepted by CORS.
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

func loadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("load server config: %w", err)
	}

	port := strings.TrimSpace(cfg.Port)
	if port == "" {
		port = "8080"
	}
	switch {
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	case strings.Contains(port, ":"):
		// ":8080" and "127.0.0.1:8080" are taken as-is.
		cfg.Addr = port
	default:
		cfg.Addr = ":" + port
	}

	if cfg.SessionTTL < 0 {
		return ServerConfig{}, fmt.Errorf("invalid SESSION_TTL value: %s", cfg.SessionTTL)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return cfg, nil
}

// Provider names accepted by AI_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
	ProviderOllama = "ollama"
)

// AIConfig describes the upstream narrator model.
type AIConfig struct {
	Provider       string        `envconfig:"AI_PROVIDER" default:"openai"`
	BaseURL        string        `envconfig:"AI_BASE_URL" default:"https://api.mistral.ai/v1"`
	APIKey         string        `envconfig:"AI_API_KEY"`
	Model          string        `envconfig:"AI_MODEL" default:"mistral-small"`
	MaxTokens      int           `envconfig:"AI_MAX_TOKENS" default:"250"`
	Timeout        time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
	MaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	BaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"1s"`
	Ark            ArkConfig     `envconfig:"ARK"`
}

// ArkConfig holds Volcengine Ark credentials.
type ArkConfig struct {
	APIKey      string   `envconfig:"API_KEY"`
	AccessKey   string   `envconfig:"ACCESS_KEY"`
	SecretKey   string   `envconfig:"SECRET_KEY"`
	Model       string   `envconfig:"MODEL"`
	BaseURL     string   `envconfig:"BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `envconfig:"REGION" default:"cn-beijing"`
	Temperature *float64 `envconfig:"TEMPERATURE"`
	TopP        *float64 `envconfig:"TOP_P"`
}

func loadAIConfig() (AIConfig, error) {
	var cfg AIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AIConfig{}, fmt.Errorf("load ai config: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch cfg.Provider {
	case ProviderOpenAI, ProviderArk, ProviderOllama:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value: %q", cfg.Provider)
	}
	if cfg.Ark.Model == "" {
		cfg.Ark.Model = cfg.Model
	}
	if cfg.MaxTokens <= 0 {
		return AIConfig{}, fmt.Errorf("invalid AI_MAX_TOKENS value: %d", cfg.MaxTokens)
	}
	if cfg.MaxAttempts <= 0 {
		return AIConfig{}, fmt.Errorf("invalid AI_MAX_ATTEMPTS value: %d", cfg.MaxAttempts)
	}
	if cfg.Timeout <= 0 {
		return AIConfig{}, fmt.Errorf("invalid AI_TIMEOUT value: %s", cfg.Timeout)
	}
	return cfg, nil
}

// Enabled reports whether the selected provider has the credentials it needs.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.APIKey != "" && c.Model != ""
	case ProviderArk:
		return c.Ark.Model != "" && (c.Ark.APIKey != "" || (c.Ark.AccessKey != "" && c.Ark.SecretKey != ""))
	case ProviderOllama:
		return c.Model != ""
	}
	return false
}

// NewChatModel builds the Ark chat model.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY plus a model")
	}

	var temperature *float32
	if c.Ark.Temperature != nil {
		val := float32(*c.Ark.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.Ark.TopP != nil {
		val := float32(*c.Ark.TopP)
		topP = &val
	}

	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.Ark.BaseURL,
		Region:      c.Ark.Region,
		APIKey:      c.Ark.APIKey,
		AccessKey:   c.Ark.AccessKey,
		SecretKey:   c.Ark.SecretKey,
		Model:       c.Ark.Model,
		MaxTokens:   &maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// GameConfig tunes prompt construction and reply parsing.
type GameConfig struct {
	NPCProbability  float64  `envconfig:"GAME_NPC_PROBABILITY" default:"0.35"`
	HistoryWindow   int      `envconfig:"GAME_HISTORY_WINDOW" default:"10"`
	HistoryRetain   int      `envconfig:"GAME_HISTORY_RETAIN" default:"40"`
	MinOptionWords  int      `envconfig:"GAME_MIN_OPTION_WORDS" default:"4"`
	MinOptions      int      `envconfig:"GAME_MIN_OPTIONS" default:"2"`
	MaxOptions      int      `envconfig:"GAME_MAX_OPTIONS" default:"4"`
	FallbackOptions []string `envconfig:"GAME_FALLBACK_OPTIONS" default:"Explore,Look around,Wait"`
	// BannedPhrases are extra "|"-separated phrases stripped from scenarios.
	BannedPhrases string `envconfig:"GAME_BANNED_PHRASES"`
}

func loadGameConfig() (GameConfig, error) {
	var cfg GameConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return GameConfig{}, fmt.Errorf("load game config: %w", err)
	}

	if cfg.NPCProbability < 0 || cfg.NPCProbability > 1 {
		return GameConfig{}, fmt.Errorf("invalid GAME_NPC_PROBABILITY value: %v", cfg.NPCProbability)
	}
	if cfg.HistoryWindow <= 0 {
		return GameConfig{}, fmt.Errorf("invalid GAME_HISTORY_WINDOW value: %d", cfg.HistoryWindow)
	}
	if cfg.HistoryRetain < cfg.HistoryWindow {
		cfg.HistoryRetain = cfg.HistoryWindow
	}
	if cfg.MinOptions <= 0 || cfg.MaxOptions < cfg.MinOptions {
		return GameConfig{}, fmt.Errorf("invalid option bounds: min=%d max=%d", cfg.MinOptions, cfg.MaxOptions)
	}
	return cfg, nil
}

// ExtraBannedPhrases splits BannedPhrases.
func (c GameConfig) ExtraBannedPhrases() []string {
	var out []string
	for _, p := range strings.Split(c.BannedPhrases, "|") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AssetConfig locates the keyword table and the image files.
type AssetConfig struct {
	DBPath  string `envconfig:"ASSET_DB_PATH" default:"data/images.db"`
	Dir     string `envconfig:"ASSET_DIR" default:"static/images"`
	BaseURL string `envconfig:"ASSET_BASE_URL" default:"/static/images/"`
	Unknown string `envconfig:"ASSET_UNKNOWN" default:"unknown.png"`
}

// URL maps a stored filename onto its public path.
func (c AssetConfig) URL(filename string) string {
	if filename == "" {
		filename = c.Unknown
	}
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + filename
}

// LogConfig selects the zap level and encoding.
type LogConfig struct {
	Level    string `envconfig:"LOG_LEVEL" default:"info"`
	Encoding string `envconfig:"LOG_ENCODING" default:"json"`
}
