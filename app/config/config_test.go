package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error = %v", err)
	}
	if cfg.Quota.FreeWeeklyLimit != 3 {
		t.Fatalf("FreeWeeklyLimit = %d, want 3", cfg.Quota.FreeWeeklyLimit)
	}
	if cfg.RateLimit.ChecksPerHour != 100 {
		t.Fatalf("ChecksPerHour = %d, want 100", cfg.RateLimit.ChecksPerHour)
	}
	if cfg.Abuse.MaxWeeklyPerIP != 50 || cfg.Abuse.MaxWeeklyPerUA != 40 || cfg.Abuse.MaxAgentsPerIP != 10 {
		t.Fatalf("abuse defaults = %+v, want 50/40/10", cfg.Abuse)
	}
	if cfg.Classifier.VisionModel != "gpt-4o-mini" {
		t.Fatalf("VisionModel = %q, want gpt-4o-mini", cfg.Classifier.VisionModel)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("FREE_WEEKLY_LIMIT", "5")
	t.Setenv("FREEMIUM_DISABLED", "true")
	t.Setenv("RATE_LIMIT_PER_HOUR", "10")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error = %v", err)
	}
	if cfg.Quota.FreeWeeklyLimit != 5 {
		t.Fatalf("FreeWeeklyLimit = %d, want 5", cfg.Quota.FreeWeeklyLimit)
	}
	if !cfg.Quota.Disabled {
		t.Fatalf("Disabled = false, want true")
	}
	if cfg.RateLimit.ChecksPerHour != 10 {
		t.Fatalf("ChecksPerHour = %d, want 10", cfg.RateLimit.ChecksPerHour)
	}
}

func TestGetEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("FREE_WEEKLY_LIMIT", "not-a-number")
	if got := getEnvInt("FREE_WEEKLY_LIMIT", 3); got != 3 {
		t.Fatalf("getEnvInt = %d, want fallback 3", got)
	}
}

func TestGetEnvBoolInvalidFallsBack(t *testing.T) {
	t.Setenv("FREEMIUM_DISABLED", "maybe")
	if got := getEnvBool("FREEMIUM_DISABLED", false); got {
		t.Fatalf("getEnvBool = true, want fallback false")
	}
}
