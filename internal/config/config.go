package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/rescp17/tutorCall/pkg/room"
	"github.com/rescp17/tutorCall/pkg/rtc"
)

type Config struct {
	Mode     string        `mapstructure:"mode"`
	LogLevel string        `mapstructure:"log_level"`
	Listen   string        `mapstructure:"listen"`
	RTC      RTCConfig     `mapstructure:"rtc"`
	Backend  BackendConfig `mapstructure:"backend"`
	Room     RoomConfig    `mapstructure:"room"`
}

type RTCConfig struct {
	ServiceURL   string        `mapstructure:"service_url"`
	SDKAppID     int           `mapstructure:"sdk_app_id"`
	SecretKey    string        `mapstructure:"secret_key"`
	SigExpire    time.Duration `mapstructure:"sig_expire"`
	FrontCamera  bool          `mapstructure:"front_camera"`
	VideoQuality string        `mapstructure:"video_quality"`
	ICEServers   []string      `mapstructure:"ice_servers"`
	// MDNS enables mDNS host candidates for peers on the same LAN.
	MDNS bool `mapstructure:"mdns"`
}

type BackendConfig struct {
	QuestionURL string        `mapstructure:"question_url"`
	Token       string        `mapstructure:"token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RoomConfig struct {
	Name               string        `mapstructure:"name"`
	CreateSettleDelay  time.Duration `mapstructure:"create_settle_delay"`
	JoinRetryDelay     time.Duration `mapstructure:"join_retry_delay"`
	MaxJoinRetries     int           `mapstructure:"max_join_retries"`
	EntitlementCodes   []int         `mapstructure:"entitlement_codes"`
	EntitlementMarkers []string      `mapstructure:"entitlement_markers"`
}

// Load reads path, or config/config.<CONFIG_ENV>.yaml when path is empty.
// A missing default file falls back to defaults; a missing explicit file is
// an error. TUTORCALL_* environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	explicit := path != ""
	if !explicit {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("TUTORCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if explicit {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Debug().Str("module", "config").Str("file", path).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", ":8080")

	v.SetDefault("rtc.service_url", "ws://127.0.0.1:7000/rtc")
	v.SetDefault("rtc.sdk_app_id", 0)
	v.SetDefault("rtc.secret_key", "")
	v.SetDefault("rtc.sig_expire", "168h")
	v.SetDefault("rtc.front_camera", true)
	v.SetDefault("rtc.video_quality", "720p")
	v.SetDefault("rtc.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("rtc.mdns", false)

	v.SetDefault("backend.question_url", "")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", "10s")

	p := room.DefaultRetryPolicy()
	v.SetDefault("room.name", room.DefaultRoomName)
	v.SetDefault("room.create_settle_delay", p.CreateSettleDelay.String())
	v.SetDefault("room.join_retry_delay", p.JoinRetryDelay.String())
	v.SetDefault("room.max_join_retries", p.MaxJoinRetries)
	v.SetDefault("room.entitlement_codes", room.DefaultEntitlementCodes())
	v.SetDefault("room.entitlement_markers", room.DefaultEntitlementMarkers())
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Mode {
	case "release", "debug", "test":
	default:
		return fmt.Errorf("mode must be release, debug or test, got %q", c.Mode)
	}
	if c.RTC.ServiceURL == "" {
		return errors.New("rtc.service_url is required")
	}
	switch c.RTC.VideoQuality {
	case "360p", "540p", "720p", "1080p":
	default:
		return fmt.Errorf("rtc.video_quality %q is not supported", c.RTC.VideoQuality)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend.timeout must be positive")
	}
	if err := c.Room.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("room: %w", err)
	}
	return nil
}

func (r RoomConfig) RetryPolicy() *room.RetryPolicy {
	return &room.RetryPolicy{
		CreateSettleDelay: r.CreateSettleDelay,
		JoinRetryDelay:    r.JoinRetryDelay,
		MaxJoinRetries:    r.MaxJoinRetries,
	}
}

func (r RoomConfig) Classifier() *room.Classifier {
	return room.NewClassifier(r.EntitlementCodes, r.EntitlementMarkers)
}

func (r RTCConfig) Quality() rtc.VideoQuality {
	return rtc.ParseVideoQuality(r.VideoQuality)
}
