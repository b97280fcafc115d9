package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/pii-redactor/internal/infrastructure/resilience"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("API_RATE_LIMIT_RPS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DashboardRecentLimit != 20 {
		t.Fatalf("expected dashboard limit 20, got %d", cfg.DashboardRecentLimit)
	}
	if cfg.APIRateLimitRPS != 20 || cfg.APIRateLimitBurst != 40 {
		t.Fatalf("unexpected rate limit defaults %v/%d", cfg.APIRateLimitRPS, cfg.APIRateLimitBurst)
	}
	if cfg.PipelineTimeout() != 5*time.Minute || cfg.RunTTL() != time.Hour {
		t.Fatalf("unexpected durations %v %v", cfg.PipelineTimeout(), cfg.RunTTL())
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"api_port: \"9000\"",
		"jwt_secret: from-file",
		"ollama_text_model: mistral",
		"api_rate_limit_rps: 5",
		"dashboard_recent_limit: 10",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("API_PORT", "")
	t.Setenv("OLLAMA_TEXT_MODEL", "qwen2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9000" || cfg.JWTSecret != "from-file" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.OllamaTextModel != "qwen2.5" {
		t.Fatalf("env must override file, got %q", cfg.OllamaTextModel)
	}
	if cfg.APIRateLimitRPS != 5 || cfg.DashboardRecentLimit != 10 {
		t.Fatalf("unexpected overlay %+v", cfg)
	}
	if cfg.NATSSubject != "documents.events" {
		t.Fatalf("unset keys keep defaults, got %q", cfg.NATSSubject)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.JWTSecret = "s"
	cfg.APIRateLimitRPS = 3
	cfg.APIRateLimitBurst = 0
	cfg.BreakerFailureRatio = 2

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"API_RATE_LIMIT_BURST", "BREAKER_FAILURE_RATIO"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestResilienceMapping(t *testing.T) {
	cfg := Defaults()
	cfg.RetryMaxAttempts = 5
	cfg.BreakerOpenSeconds = 10

	rc := cfg.Resilience()
	if rc.RetryMaxAttempts != 5 || rc.BreakerOpenTimeout != 10*time.Second || rc.RetryInitialBackoff != 200*time.Millisecond {
		t.Fatalf("unexpected resilience config %+v", rc)
	}
	if _, ok := rc.Operations[resilience.OperationPublishEvent]; !ok {
		t.Fatalf("expected per-operation policies to survive config mapping")
	}
}
