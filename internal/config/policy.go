package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PolicyConfig holds the quota limits applied by the entitlement engine.
// Values are hot-reloadable from policy.yml without a restart.
type PolicyConfig struct {
	DailyFreeLimit     int           `mapstructure:"dailyFreeLimit"`
	IPFreeLimit        int           `mapstructure:"ipFreeLimit"`
	WelcomeCredits     int           `mapstructure:"welcomeCredits"`
	CreditsPerPurchase int           `mapstructure:"creditsPerPurchase"`
	ReplayWindow       time.Duration `mapstructure:"replayWindow"`
	MaxDescriptionLen  int           `mapstructure:"maxDescriptionLen"`
	ProviderTimeout    time.Duration `mapstructure:"providerTimeout"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		DailyFreeLimit:     2,
		IPFreeLimit:        3,
		WelcomeCredits:     2,
		CreditsPerPurchase: 30,
		ReplayWindow:       300 * time.Second,
		MaxDescriptionLen:  200,
		ProviderTimeout:    30 * time.Second,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds PolicyConfig
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/themeleon/config")
	v.AddConfigPath("/etc/themeleon")
	v.AddConfigPath(".")

	v.SetEnvPrefix("THEMELEON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicyConfig()
	v.SetDefault("policy.dailyFreeLimit", defaults.DailyFreeLimit)
	v.SetDefault("policy.ipFreeLimit", defaults.IPFreeLimit)
	v.SetDefault("policy.welcomeCredits", defaults.WelcomeCredits)
	v.SetDefault("policy.creditsPerPurchase", defaults.CreditsPerPurchase)
	v.SetDefault("policy.replayWindow", defaults.ReplayWindow)
	v.SetDefault("policy.maxDescriptionLen", defaults.MaxDescriptionLen)
	v.SetDefault("policy.providerTimeout", defaults.ProviderTimeout)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PolicyConfig
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return nil, err
	}
	if err := validatePolicyConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PolicyConfig
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Printf("[policy-config] reload failed: %v", err)
			return
		}
		if err := validatePolicyConfig(updated); err != nil {
			log.Printf("[policy-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[policy-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PolicyHolder) Get() PolicyConfig {
	return h.current.Load().(PolicyConfig)
}

// NewStaticPolicyHolder wraps a fixed config, for tests.
func NewStaticPolicyHolder(cfg PolicyConfig) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(cfg)
	return holder
}

func validatePolicyConfig(cfg PolicyConfig) error {
	if cfg.DailyFreeLimit < 0 {
		return errors.New("policy.dailyFreeLimit cannot be negative")
	}
	if cfg.IPFreeLimit < 0 {
		return errors.New("policy.ipFreeLimit cannot be negative")
	}
	if cfg.WelcomeCredits < 0 {
		return errors.New("policy.welcomeCredits cannot be negative")
	}
	if cfg.CreditsPerPurchase <= 0 {
		return errors.New("policy.creditsPerPurchase must be positive")
	}
	if cfg.ReplayWindow <= 0 {
		return errors.New("policy.replayWindow must be positive")
	}
	if cfg.MaxDescriptionLen <= 0 {
		return errors.New("policy.maxDescriptionLen must be positive")
	}
	if cfg.ProviderTimeout <= 0 {
		return errors.New("policy.providerTimeout must be positive")
	}
	return nil
}
