// Package config provides a reusable loader for walletd's configuration
// files and environment variables, following the shape of the teacher's
// pkg/config/config.go (viper-backed, mapstructure-tagged Config struct,
// Load(env)/LoadFromEnv entry points).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the unified runtime configuration of the wallet coordination service.
// Field names and defaults mirror the "Configuration options" of spec.md §6.
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Limits struct {
		MaxKeys            int `mapstructure:"max_keys"`             // MAX_KEYS
		MaxMainAddressGap  int `mapstructure:"max_main_address_gap"` // MAX_MAIN_ADDRESS_GAP
		ScanAddressGap     int `mapstructure:"scan_address_gap"`     // SCAN_ADDRESS_GAP
		HistoryLimit       int `mapstructure:"history_limit"`        // HISTORY_LIMIT
	} `mapstructure:"limits"`

	Backoff struct {
		Offset int           `mapstructure:"offset"` // BACKOFF_OFFSET
		Time   time.Duration `mapstructure:"time"`   // BACKOFF_TIME
	} `mapstructure:"backoff"`

	Timers struct {
		DeleteLockTime           time.Duration `mapstructure:"delete_locktime"`            // DELETE_LOCKTIME
		SessionExpiration        time.Duration `mapstructure:"session_expiration"`         // SESSION_EXPIRATION
		BalanceCacheDuration     time.Duration `mapstructure:"balance_cache_duration"`     // BALANCE_CACHE_DURATION
		MaxNotificationsTimeSpan time.Duration `mapstructure:"max_notifications_timespan"` // MAX_NOTIFICATIONS_TIMESPAN
		NotificationsTimeSpan    time.Duration `mapstructure:"notifications_timespan"`     // NOTIFICATIONS_TIMESPAN
		FiatRateFetchInterval    time.Duration `mapstructure:"fiat_rate_fetch_interval"`
		FiatRateMaxLookBack      time.Duration `mapstructure:"fiat_rate_max_lookback"`
	} `mapstructure:"timers"`

	Lock struct {
		WaitTime   time.Duration `mapstructure:"wait_time"`   // LOCK_WAIT_TIME
		ExeTime    time.Duration `mapstructure:"exe_time"`    // LOCK_EXE_TIME
		ServerExe  time.Duration `mapstructure:"server_exe_time"` // SERVER_EXE_TIME
	} `mapstructure:"lock"`

	RateLimit struct {
		CreateWalletPerHour     int `mapstructure:"create_wallet_per_hour"`
		CreateWalletSlowdownAt  int `mapstructure:"create_wallet_slowdown_at"`
	} `mapstructure:"rate_limit"`

	MinClientVersion string `mapstructure:"min_client_version"`
}

// Default returns the configuration populated with spec.md §6 defaults.
func Default() Config {
	var c Config
	c.Server.Port = "3232"
	c.Limits.MaxKeys = 100
	c.Limits.MaxMainAddressGap = 20
	c.Limits.ScanAddressGap = c.Limits.MaxMainAddressGap + 10
	c.Limits.HistoryLimit = 2000
	c.Backoff.Offset = 10
	c.Backoff.Time = 600 * time.Second
	c.Timers.DeleteLockTime = 600 * time.Second
	c.Timers.SessionExpiration = 3600 * time.Second
	c.Timers.BalanceCacheDuration = 10 * time.Second
	c.Timers.MaxNotificationsTimeSpan = 14 * 24 * time.Hour
	c.Timers.NotificationsTimeSpan = 60 * time.Second
	c.Timers.FiatRateFetchInterval = 10 * time.Minute
	c.Timers.FiatRateMaxLookBack = 120 * time.Minute
	c.Lock.WaitTime = 5 * time.Second
	c.Lock.ExeTime = 40 * time.Second
	c.Lock.ServerExe = time.Duration(float64(c.Lock.ExeTime) * 1.5)
	c.RateLimit.CreateWalletPerHour = 15
	c.RateLimit.CreateWalletSlowdownAt = 8
	c.MinClientVersion = ""
	return c
}

// Load starts from Default(), loads an optional .env file into the
// process environment, and overrides Server.Port from WALLETD_SERVER_PORT.
// No other WALLETD_-prefixed variable is read: every other field keeps its
// Default() value. env is accepted but not used.
func Load(env string) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetEnvPrefix("WALLETD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if port := v.GetString("server.port"); port != "" {
		cfg.Server.Port = port
	}
	_ = env // reserved for future per-environment overlays
	return &cfg, nil
}

// LoadFromEnv loads configuration using the WALLETD_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(viperEnv())
}

func viperEnv() string {
	v := viper.New()
	v.SetEnvPrefix("WALLETD")
	v.AutomaticEnv()
	return v.GetString("env")
}
