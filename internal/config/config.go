package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the bot. It is built once at startup
// from environment variables and passed by reference into each component
// constructor; nothing reads the environment after Load returns.
type Config struct {
	Log           LogConfig
	Line          LineConfig
	Temporal      TemporalConfig
	MQTT          MQTTConfig
	HomeAssistant HomeAssistantConfig
	OpenAI        OpenAIConfig
	Bot           BotConfig
}

type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // console | json
}

// LineConfig holds the Messaging API channel credentials.
type LineConfig struct {
	ChannelSecret string
	ChannelToken  string
}

type TemporalConfig struct {
	Address   string
	Namespace string
	TaskQueue string
}

type MQTTConfig struct {
	Broker   string
	Port     int
	User     string
	Password string
	ClientID string
}

type HomeAssistantConfig struct {
	APIURL string
	Token  string
}

type OpenAIConfig struct {
	APIKey  string
	APIBase string
	Model   string
}

// BotConfig selects the reply-dispatch strategy and the agent's language.
type BotConfig struct {
	Strategy     string // "agent" | "keyword"
	Language     string
	PromptPath   string
	SoundBaseURL string // base URL for canned audio clips (keyword strategy)
}

const (
	StrategyAgent   = "agent"
	StrategyKeyword = "keyword"
)

// Load builds the configuration from environment variables. Keys map
// section.key -> SECTION_KEY (e.g. line.channel_secret -> LINE_CHANNEL_SECRET).
// Everything has a default except credentials.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Line: LineConfig{
			ChannelSecret: v.GetString("line.channel_secret"),
			ChannelToken:  v.GetString("line.channel_access_token"),
		},
		Temporal: TemporalConfig{
			Address:   v.GetString("temporal.address"),
			Namespace: v.GetString("temporal.namespace"),
			TaskQueue: v.GetString("temporal.task_queue"),
		},
		MQTT: MQTTConfig{
			Broker:   v.GetString("mqtt.broker"),
			Port:     v.GetInt("mqtt.port"),
			User:     v.GetString("mqtt.user"),
			Password: v.GetString("mqtt.password"),
			ClientID: v.GetString("mqtt.client_id"),
		},
		HomeAssistant: HomeAssistantConfig{
			APIURL: v.GetString("homeassistant.api_url"),
			Token:  v.GetString("homeassistant.token"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  v.GetString("openai.api_key"),
			APIBase: v.GetString("openai.api_base"),
			Model:   v.GetString("openai.model"),
		},
		Bot: BotConfig{
			Strategy:     v.GetString("bot.strategy"),
			Language:     v.GetString("bot.language"),
			PromptPath:   v.GetString("bot.prompt_path"),
			SoundBaseURL: v.GetString("bot.sound_base_url"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "BOT_FARM:SMART_HOME_BOT")

	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.user", "smart-home-bot")
	v.SetDefault("mqtt.password", "")
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "smart-home-bot"
	}
	v.SetDefault("mqtt.client_id", hostname)

	v.SetDefault("homeassistant.api_url", "http://homeassistant.local:8123/api")
	v.SetDefault("homeassistant.token", "")

	v.SetDefault("openai.api_base", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-5-mini")

	v.SetDefault("bot.strategy", StrategyAgent)
	v.SetDefault("bot.language", "繁體中文（台灣）")
	v.SetDefault("bot.prompt_path", "config/prompt.yaml")
	v.SetDefault("bot.sound_base_url", "")
}

// Validate checks that the config has usable values. Credentials are only
// required by the components that use them, so the checks are scoped to the
// selected strategy.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Line.ChannelSecret == "" {
		errs = append(errs, "line.channel_secret is required")
	}
	if cfg.Line.ChannelToken == "" {
		errs = append(errs, "line.channel_access_token is required")
	}

	switch cfg.Bot.Strategy {
	case StrategyAgent:
		if cfg.OpenAI.APIKey == "" {
			errs = append(errs, "openai.api_key is required for the agent strategy")
		}
	case StrategyKeyword:
		// no model needed
	default:
		errs = append(errs, fmt.Sprintf("bot.strategy must be %q or %q", StrategyAgent, StrategyKeyword))
	}

	if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
		errs = append(errs, "mqtt.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// BrokerURL returns the paho connection URL for the configured broker.
func (c MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}
