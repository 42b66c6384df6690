package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "MEET"

type RateLimit struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	RoomGracePeriod  time.Duration `mapstructure:"room_grace_period"`
	ReadmitWindow    time.Duration `mapstructure:"readmit_window"`
	ChatHistoryLimit int           `mapstructure:"chat_history_limit"`
	MaxChatLength    int           `mapstructure:"max_chat_length"`

	Policy struct {
		AllowRejoinAfterKick  bool `mapstructure:"allow_rejoin_after_kick"`
		BackpressureTolerance int  `mapstructure:"backpressure_tolerance"`
	} `mapstructure:"policy"`

	RateLimit struct {
		Join RateLimit `mapstructure:"join"`
		Chat RateLimit `mapstructure:"chat"`
	} `mapstructure:"rate_limit"`

	Store struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"store"`
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "meet-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("room_grace_period", "5m")
	v.SetDefault("readmit_window", "2m")
	v.SetDefault("chat_history_limit", 200)
	v.SetDefault("max_chat_length", 2000)
	v.SetDefault("policy.allow_rejoin_after_kick", false)
	v.SetDefault("policy.backpressure_tolerance", 0)
	v.SetDefault("rate_limit.join.limit", 5)
	v.SetDefault("rate_limit.join.interval", "1m")
	v.SetDefault("rate_limit.chat.limit", 20)
	v.SetDefault("rate_limit.chat.interval", "10s")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "meet.db")
}

// newViper reads config/config.<CONFIG_ENV>.yaml when present and layers
// MEET_ environment variables over it.
func newViper(kind string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/%s.%s.yaml", kind, env)
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}
	return v
}

func Load() (*Config, error) {
	v := newViper("config")
	setServerDefaults(v)
	return decodeServer(v)
}

func decodeServer(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PingPeriod <= 0 {
		return nil, fmt.Errorf("ping_period must be positive, got %s", cfg.PingPeriod)
	}
	if cfg.SendBuffer <= 0 {
		return nil, fmt.Errorf("send_buffer must be positive, got %d", cfg.SendBuffer)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).Msg("server config")
	return &cfg, nil
}
