package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	BackendURL string
	StreamURL  string
	RPCURL     string

	ChainID uint64
	Dex     string

	DepositUSD    string
	TimeframeDays int
	HorizonDays   int
	AprMethod     string
	RangePreset   string
	TickWindow    int

	DistributionDebounce time.Duration
	AllocationDebounce   time.Duration
	AprDebounce          time.Duration

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RANGESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend", "http://localhost:8080")
	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("dex", "uniswap-v3")
	v.SetDefault("deposit", "1000")
	v.SetDefault("timeframe-days", 30)
	v.SetDefault("horizon-days", 30)
	v.SetDefault("apr-method", "historical")
	v.SetDefault("range-preset", "standard")
	v.SetDefault("tick-window", 200)
	v.SetDefault("distribution-debounce", 350*time.Millisecond)
	v.SetDefault("allocation-debounce", 400*time.Millisecond)
	v.SetDefault("apr-debounce", 400*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		BackendURL:           v.GetString("backend"),
		StreamURL:            v.GetString("stream"),
		RPCURL:               v.GetString("rpc"),
		ChainID:              v.GetUint64("chain-id"),
		Dex:                  v.GetString("dex"),
		DepositUSD:           v.GetString("deposit"),
		TimeframeDays:        v.GetInt("timeframe-days"),
		HorizonDays:          v.GetInt("horizon-days"),
		AprMethod:            v.GetString("apr-method"),
		RangePreset:          v.GetString("range-preset"),
		TickWindow:           v.GetInt("tick-window"),
		DistributionDebounce: v.GetDuration("distribution-debounce"),
		AllocationDebounce:   v.GetDuration("allocation-debounce"),
		AprDebounce:          v.GetDuration("apr-debounce"),
		LogLevel:             v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend url is required")
	}
	if c.TimeframeDays <= 0 {
		return fmt.Errorf("timeframe-days must be positive")
	}
	if c.HorizonDays <= 0 {
		return fmt.Errorf("horizon-days must be positive")
	}
	switch c.AprMethod {
	case "historical", "spot":
	default:
		return fmt.Errorf("apr-method must be historical or spot, got %q", c.AprMethod)
	}
	return nil
}
