package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Reconnect struct {
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type Media struct {
	Audio            bool   `mapstructure:"audio"`
	Video            bool   `mapstructure:"video"`
	AllowReceiveOnly bool   `mapstructure:"allow_receive_only"`
	RecordDir        string `mapstructure:"record_dir"`
}

// ClientConfig drives the participant engine and its CLI.
type ClientConfig struct {
	Server         string        `mapstructure:"server"`
	Identity       string        `mapstructure:"identity"`
	Codec          string        `mapstructure:"codec"`
	LogLevel       string        `mapstructure:"log_level"`
	ICEServers     []string      `mapstructure:"ice_servers"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Reconnect      Reconnect     `mapstructure:"reconnect"`
	Media          Media         `mapstructure:"media"`
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("codec", "json")
	v.SetDefault("log_level", "info")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("connect_timeout", "20s")
	v.SetDefault("reconnect.base_delay", "500ms")
	v.SetDefault("reconnect.max_delay", "15s")
	v.SetDefault("reconnect.max_attempts", 8)
	v.SetDefault("media.audio", true)
	v.SetDefault("media.video", false)
	v.SetDefault("media.allow_receive_only", true)
	v.SetDefault("media.record_dir", "")
}

// NewClientViper returns the viper instance the CLI binds its flags into.
func NewClientViper() *viper.Viper {
	v := newViper("client")
	setClientDefaults(v)
	return v
}

func LoadClient(v *viper.Viper) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if cfg.Reconnect.BaseDelay <= 0 || cfg.Reconnect.MaxDelay < cfg.Reconnect.BaseDelay {
		return nil, fmt.Errorf("invalid reconnect delays %s..%s", cfg.Reconnect.BaseDelay, cfg.Reconnect.MaxDelay)
	}
	return &cfg, nil
}
