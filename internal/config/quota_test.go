package config

import (
	"testing"
	"time"
)

func TestValidateQuotaPolicy(t *testing.T) {
	good := DefaultQuotaPolicy()
	if err := validateQuotaPolicy(good); err != nil {
		t.Fatalf("default policy should validate: %v", err)
	}

	cases := []struct {
		name   string
		policy QuotaPolicy
	}{
		{"zero baseline", QuotaPolicy{BaselineWeeklyLimit: 0, PremiumWeeklyLimit: 10, CacheTTL: time.Hour}},
		{"premium below baseline", QuotaPolicy{BaselineWeeklyLimit: 100, PremiumWeeklyLimit: 50, CacheTTL: time.Hour}},
		{"zero ttl", QuotaPolicy{BaselineWeeklyLimit: 10, PremiumWeeklyLimit: 100, CacheTTL: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateQuotaPolicy(tc.policy); err == nil {
				t.Fatalf("expected %s to be rejected", tc.name)
			}
		})
	}
}

func TestStaticQuotaPolicyHolder(t *testing.T) {
	policy := QuotaPolicy{BaselineWeeklyLimit: 7, PremiumWeeklyLimit: 70, CacheTTL: time.Hour}
	holder := NewStaticQuotaPolicyHolder(policy)
	if got := holder.Get(); got != policy {
		t.Fatalf("Get() = %+v, want %+v", got, policy)
	}
}
