package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Watch.PollIntervalSeconds != 600 {
		t.Errorf("PollIntervalSeconds = %d, want 600", cfg.Watch.PollIntervalSeconds)
	}
	if cfg.Watch.MaxVideosPerChannel != 3 {
		t.Errorf("MaxVideosPerChannel = %d, want 3", cfg.Watch.MaxVideosPerChannel)
	}
	if cfg.Reference.SimilarityThreshold != 80 || cfg.Reference.TitleThreshold != 85 {
		t.Errorf("thresholds = (%d, %d), want (80, 85)",
			cfg.Reference.SimilarityThreshold, cfg.Reference.TitleThreshold)
	}
	if cfg.Growth.Threshold != 30 {
		t.Errorf("Growth.Threshold = %g, want 30", cfg.Growth.Threshold)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[watch]
channels = ["UCfinance", " UCother "]
poll_interval_seconds = 120

[reference]
similarity_threshold = 70

[growth]
threshold = 25.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Watch.PollIntervalSeconds != 120 {
		t.Errorf("PollIntervalSeconds = %d", cfg.Watch.PollIntervalSeconds)
	}
	if cfg.Reference.SimilarityThreshold != 70 {
		t.Errorf("SimilarityThreshold = %d", cfg.Reference.SimilarityThreshold)
	}
	if cfg.Growth.Threshold != 25 {
		t.Errorf("Growth.Threshold = %g", cfg.Growth.Threshold)
	}
	// Untouched sections keep their defaults.
	if cfg.Gemini.MaxRetries != 3 {
		t.Errorf("Gemini.MaxRetries = %d, want default 3", cfg.Gemini.MaxRetries)
	}
	// Channel names are trimmed.
	if cfg.Watch.Channels[1] != "UCother" {
		t.Errorf("Channels[1] = %q, want trimmed", cfg.Watch.Channels[1])
	}
}

func TestLoadEnvFallbacks(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-gemini-key")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.test/T000")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gemini.APIKey != "env-gemini-key" {
		t.Errorf("APIKey = %q", cfg.Gemini.APIKey)
	}
	if cfg.Slack.WebhookURL != "https://hooks.slack.test/T000" {
		t.Errorf("WebhookURL = %q", cfg.Slack.WebhookURL)
	}
}

func TestLoadFileWinsOverEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[gemini]\napi_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gemini.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want the file value", cfg.Gemini.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero interval", func(c *Config) { c.Watch.PollIntervalSeconds = 0 }, "poll_interval_seconds"},
		{"zero max videos", func(c *Config) { c.Watch.MaxVideosPerChannel = 0 }, "max_videos_per_channel"},
		{"threshold over 100", func(c *Config) { c.Reference.SimilarityThreshold = 101 }, "similarity_threshold"},
		{"negative growth", func(c *Config) { c.Growth.Threshold = -1 }, "growth.threshold"},
		{"zero retries", func(c *Config) { c.Gemini.MaxRetries = 0 }, "max_retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("watch = [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestStatePaths(t *testing.T) {
	cfg := Default()
	cfg.State.Dir = "/var/lib/growthwatch"
	if got := cfg.VisitedPath(); got != "/var/lib/growthwatch/visited_videos.json" {
		t.Errorf("VisitedPath = %q", got)
	}
	if got := cfg.SentPath(); got != "/var/lib/growthwatch/sent_notifications.json" {
		t.Errorf("SentPath = %q", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatal(err)
	}
	// The sample must itself be loadable.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if cfg.Watch.PollIntervalSeconds != 600 {
		t.Errorf("sample PollIntervalSeconds = %d", cfg.Watch.PollIntervalSeconds)
	}
}
