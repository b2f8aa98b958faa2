package bridgeconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/llmbridge/llmbridge/internal/canon"
)

func TestLoad_FileOverridesDefaults(t *testing.T) {
	home := filepath.Join(t.TempDir(), ".llmbridge")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home dir: %v", err)
	}
	t.Setenv("LLMBRIDGE_HOME", home)

	configBody := `
default = "anthropic"

[provider.openai]
api_key = "test-key"
base_url = "https://example.test"
request_timeout = "45s"

[retry]
max_retries = 5
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Default != "anthropic" {
		t.Fatalf("expected default %q, got %q", "anthropic", cfg.Default)
	}

	openai, ok := cfg.ProviderByName("openai")
	if !ok {
		t.Fatal("expected openai provider to be configured")
	}
	if openai.APIKey != "test-key" {
		t.Fatalf("expected api key %q, got %q", "test-key", openai.APIKey)
	}
	if openai.BaseURL != "https://example.test" {
		t.Fatalf("expected base url from file, got %q", openai.BaseURL)
	}
	if openai.RequestTimeout != 45*time.Second {
		t.Fatalf("expected request timeout 45s, got %v", openai.RequestTimeout)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Fatalf("expected max_retries 5, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay == 0 {
		t.Fatal("expected retry base delay default to survive a partial [retry] override")
	}
}

func TestLoad_ExpandsEnvVarsInStringValues(t *testing.T) {
	home := filepath.Join(t.TempDir(), ".llmbridge")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home dir: %v", err)
	}
	t.Setenv("LLMBRIDGE_HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "expanded-key")

	configBody := `
[provider.anthropic]
api_key = "$ANTHROPIC_API_KEY"
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	anthropic, ok := cfg.ProviderByName("anthropic")
	if !ok {
		t.Fatal("expected anthropic provider to be configured")
	}
	if anthropic.APIKey != "expanded-key" {
		t.Fatalf("expected expanded api key, got %q", anthropic.APIKey)
	}
}

func TestLoad_MissingConfigFileUsesDefaults(t *testing.T) {
	home := filepath.Join(t.TempDir(), ".llmbridge")
	t.Setenv("LLMBRIDGE_HOME", home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Default != "openai" {
		t.Fatalf("expected default provider %q, got %q", "openai", cfg.Default)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Fatalf("expected default max_retries 3, got %d", cfg.Retry.MaxRetries)
	}
}

func TestRetryPolicyConvertsConfig(t *testing.T) {
	cfg := &Config{Retry: RetryConfig{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second}}
	policy := cfg.RetryPolicy()
	if policy.MaxRetries != 2 || policy.BaseDelay != time.Second || policy.MaxDelay != 10*time.Second {
		t.Fatalf("unexpected retry policy: %#v", policy)
	}
}

func TestPricingTableParsesProviderNames(t *testing.T) {
	half := 0.005
	cfg := &Config{Pricing: []PricingRuleConfig{
		{Provider: "openai", ModelPattern: "gpt-*", InputCostPerToken: 0.01, OutputCostPerToken: 0.02, ReasoningCostPerToken: &half},
	}}
	table, err := cfg.PricingTable()
	if err != nil {
		t.Fatalf("pricing table: %v", err)
	}
	rule, ok := table.FindRule(canon.ProviderOpenAI, "gpt-5-mini")
	if !ok {
		t.Fatal("expected wildcard rule to match")
	}
	if rule.InputCostPerToken != 0.01 || rule.OutputCostPerToken != 0.02 {
		t.Fatalf("unexpected rule: %#v", rule)
	}
	if rule.ReasoningCostPerToken == nil || *rule.ReasoningCostPerToken != half {
		t.Fatalf("expected reasoning rate to survive, got %#v", rule.ReasoningCostPerToken)
	}
}

func TestPricingTableRejectsUnparsableProvider(t *testing.T) {
	cfg := &Config{Pricing: []PricingRuleConfig{{Provider: "", ModelPattern: "*"}}}
	if _, err := cfg.PricingTable(); err == nil {
		t.Fatal("expected empty provider name to fail")
	}
}

func TestDefaultUserConfigTOMLIncludesAllProviders(t *testing.T) {
	toml, err := DefaultUserConfigTOML()
	if err != nil {
		t.Fatalf("default user config: %v", err)
	}
	for _, want := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		if !strings.Contains(toml, want) {
			t.Fatalf("expected default user config to reference %s, got:\n%s", want, toml)
		}
	}
}
