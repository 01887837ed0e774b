package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:      HTTPConfig{Port: 8080},
		Embedding: EmbeddingConfig{APIKey: "test-key"},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingEmbeddingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing embedding api key")
	}
}

func TestValidate_CacheEnabledWithoutAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for enabled cache without addrs")
	}

	cfg.Cache.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with cache addrs set: %v", err)
	}
}

func TestValidate_RerankEnabledRequiresEndpointAndModel(t *testing.T) {
	cfg := validConfig()
	cfg.Rerank.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled rerank without endpoint")
	}

	cfg.Rerank.Endpoint = "https://api.example.com/v1/rerank"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled rerank without model")
	}

	cfg.Rerank.Model = "rerank-v3.5"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with rerank fully configured: %v", err)
	}
}

func TestValidate_NegativeDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Dimensions = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for negative dimensions")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Embedding: EmbeddingConfig{APIKey: "secret"}}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Cache.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Cache.ReadinessTimeout)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("unexpected embedding model default: %s", cfg.Embedding.Model)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("unexpected embedding provider default: %s", cfg.Embedding.Provider)
	}
	if cfg.Rerank.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.Rerank.MaxRetries)
	}
	if cfg.Generation.APIKey != "secret" {
		t.Errorf("expected generation api key to inherit embedding key, got %q", cfg.Generation.APIKey)
	}
	if cfg.Generation.MaxTokens != 1024 {
		t.Errorf("expected MaxTokens=1024, got %d", cfg.Generation.MaxTokens)
	}
	if cfg.Retrieval.Workers != 1 {
		t.Errorf("expected Workers=1, got %d", cfg.Retrieval.Workers)
	}
}

func TestMustLoad_PanicsOnMissingConfig(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a missing config file")
		}
	}()
	MustLoad("no-such-env")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RAGDEX_TEST_KEY", "from-env")

	in := []byte("api_key: ${RAGDEX_TEST_KEY}\nmodel: ${RAGDEX_TEST_MODEL:-fallback-model}\n")
	out := string(expandEnvVars(in))

	want := "api_key: from-env\nmodel: fallback-model\n"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
