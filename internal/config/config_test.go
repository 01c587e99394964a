package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("read timeout default = %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Embedding.MaxTokens != 8191 {
		t.Errorf("max tokens default = %d", cfg.Embedding.MaxTokens)
	}
	if cfg.Embedding.Tokenizer != cfg.Embedding.Model {
		t.Errorf("tokenizer default = %q, want the embedding model", cfg.Embedding.Tokenizer)
	}
	if cfg.Completion.MaxRetries != 3 {
		t.Errorf("max retries default = %d", cfg.Completion.MaxRetries)
	}
	if cfg.Index.Path == "" {
		t.Error("index path default missing")
	}
	if cfg.Search.MinQueryLength != 3 || cfg.Search.MaxResults != 64 {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
	if cfg.Ingest.Workers != 4 || cfg.Ingest.MaxRewrites != 3 {
		t.Errorf("ingest defaults = %+v", cfg.Ingest)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"no addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"no model", func(c *Config) { c.Embedding.Model = "" }, "embedding.model"},
		{"bad dims", func(c *Config) { c.Embedding.Dimensions = 0 }, "embedding.dimensions"},
		{"aggressiveness above one", func(c *Config) { c.Search.VectorAggressiveness = 1.5 }, "vector_aggressiveness"},
		{"negative aggressiveness", func(c *Config) { c.Search.LexicalAggressiveness = -0.1 }, "lexical_aggressiveness"},
		{"negative paraphrases", func(c *Config) { c.Search.MaxParaphrases = -1 }, "max_paraphrases"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LAWDEX_TEST_KEY", "secret")

	out := string(expandEnvVars([]byte("api_key: ${LAWDEX_TEST_KEY}")))
	if out != "api_key: secret" {
		t.Errorf("expansion = %q", out)
	}

	out = string(expandEnvVars([]byte("addr: ${LAWDEX_TEST_MISSING:-localhost:6379}")))
	if out != "addr: localhost:6379" {
		t.Errorf("default expansion = %q", out)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}

	yaml := `
http:
  port: 9090
  shutdown_timeout_sec: 15
database:
  addrs: ["localhost:6379"]
  readiness_timeout_sec: 30
embedding:
  api_key: ${LAWDEX_TEST_API_KEY}
  model: text-embedding-3-small
  dimensions: 256
search:
  assisted_keywords: true
`
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LAWDEX_TEST_API_KEY", "sk-test")
	t.Chdir(dir)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ShutdownSec != 15 {
		t.Errorf("shutdown_timeout_sec not parsed, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 30 {
		t.Errorf("readiness_timeout_sec not parsed, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.Embedding.APIKey)
	}
	if !cfg.Search.AssistedKeywords {
		t.Error("assisted_keywords not parsed")
	}
	if cfg.Search.MaxResults != 64 {
		t.Errorf("defaults not applied, max_results = %d", cfg.Search.MaxResults)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("nonexistent"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
