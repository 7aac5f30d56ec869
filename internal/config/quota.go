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

// QuotaPolicy is the tunable side of quota and cache behavior: it is policy,
// not contract, so it lives in a reloadable file rather than in code.
type QuotaPolicy struct {
	BaselineWeeklyLimit int           `mapstructure:"baselineWeeklyLimit"`
	PremiumWeeklyLimit  int           `mapstructure:"premiumWeeklyLimit"`
	CacheTTL            time.Duration `mapstructure:"cacheTTL"`
}

func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{
		BaselineWeeklyLimit: 100,
		PremiumWeeklyLimit:  1000,
		CacheTTL:            12 * time.Hour,
	}
}

type QuotaPolicyHolder struct {
	current atomic.Value // holds QuotaPolicy
}

func NewQuotaPolicyHolder() (*QuotaPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("quota")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/adscope/config") // Volume-mounted config
	v.AddConfigPath("/etc/adscope")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("ADSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultQuotaPolicy()
		v.SetDefault("quota.baselineWeeklyLimit", defaults.BaselineWeeklyLimit)
		v.SetDefault("quota.premiumWeeklyLimit", defaults.PremiumWeeklyLimit)
		v.SetDefault("quota.cacheTTL", defaults.CacheTTL)
	}

	var policy QuotaPolicy
	if err := v.UnmarshalKey("quota", &policy); err != nil {
		return nil, err
	}
	if err := validateQuotaPolicy(policy); err != nil {
		return nil, err
	}

	holder := &QuotaPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated QuotaPolicy
		if err := v.UnmarshalKey("quota", &updated); err != nil {
			log.Printf("[quota-config] reload failed: %v", err)
			return
		}
		if err := validateQuotaPolicy(updated); err != nil {
			log.Printf("[quota-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[quota-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *QuotaPolicyHolder) Get() QuotaPolicy {
	return h.current.Load().(QuotaPolicy)
}

// NewStaticQuotaPolicyHolder returns a holder pinned to the given policy.
// Used by tests and tools that bypass the config file.
func NewStaticQuotaPolicyHolder(policy QuotaPolicy) *QuotaPolicyHolder {
	holder := &QuotaPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func validateQuotaPolicy(policy QuotaPolicy) error {
	if policy.BaselineWeeklyLimit <= 0 {
		return errors.New("quota.baselineWeeklyLimit must be positive")
	}
	if policy.PremiumWeeklyLimit < policy.BaselineWeeklyLimit {
		return errors.New("quota.premiumWeeklyLimit cannot be below the baseline")
	}
	if policy.CacheTTL <= 0 {
		return errors.New("quota.cacheTTL must be positive")
	}
	return nil
}
