/*
Package config loads and validates the growthwatch configuration file.
*/
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Watch configures the poll loop.
type Watch struct {
	Channels            []string `toml:"channels"`
	MaxVideosPerChannel int      `toml:"max_videos_per_channel"`
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
}

// Reference configures the company reference dataset and entity resolution.
type Reference struct {
	Path                string   `toml:"path"`
	SimilarityThreshold int      `toml:"similarity_threshold"`
	TitleThreshold      int      `toml:"title_threshold"`
	SuffixTokens        []string `toml:"suffix_tokens"`
}

// Growth configures the growth-signal ledger.
type Growth struct {
	LedgerPath string  `toml:"ledger_path"`
	Threshold  float64 `toml:"threshold"`
}

// State configures the persisted dedup sets.
type State struct {
	Dir string `toml:"dir"`
}

// Gemini configures the structured extractor. The API key falls back to the
// GEMINI_API_KEY environment variable.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	MaxRetries     int    `toml:"max_retries"`
	BackoffSeconds int    `toml:"backoff_seconds"`
}

// Slack configures the notification webhook. The URL falls back to the
// SLACK_WEBHOOK_URL environment variable.
type Slack struct {
	WebhookURL string `toml:"webhook_url"`
}

// Email configures the optional e-mail copy of notifications.
type Email struct {
	SMTPServer string `toml:"smtp_server"`
	SMTPPort   int    `toml:"smtp_port"`
	SMTPUser   string `toml:"smtp_user"`
	SMTPPass   string `toml:"smtp_pass"`
	FromEmail  string `toml:"from_email"`
	ToEmail    string `toml:"to_email"`
}

// Transcript configures the transcript acquirer.
type Transcript struct {
	Languages    []string `toml:"languages"`
	WhisperModel string   `toml:"whisper_model"`
}

// Logging configures log output.
type Logging struct {
	Level string `toml:"level"`
}

// Config is the full growthwatch configuration.
type Config struct {
	Watch      Watch      `toml:"watch"`
	Reference  Reference  `toml:"reference"`
	Growth     Growth     `toml:"growth"`
	State      State      `toml:"state"`
	Gemini     Gemini     `toml:"gemini"`
	Slack      Slack      `toml:"slack"`
	Email      Email      `toml:"email"`
	Transcript Transcript `toml:"transcript"`
	Logging    Logging    `toml:"logging"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Watch: Watch{
			MaxVideosPerChannel: 3,
			PollIntervalSeconds: 600,
		},
		Reference: Reference{
			Path:                "comp.csv",
			SimilarityThreshold: 80,
			TitleThreshold:      85,
		},
		Growth: Growth{
			LedgerPath: "growth_mentions.csv",
			Threshold:  30,
		},
		State: State{
			Dir: "~/.local/state/growthwatch",
		},
		Gemini: Gemini{
			Model:          "gemini-2.0-flash",
			MaxRetries:     3,
			BackoffSeconds: 5,
		},
		Email: Email{
			SMTPPort: 587,
		},
		Transcript: Transcript{
			Languages:    []string{"en"},
			WhisperModel: "base",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/growthwatch/config.toml")
}

// Load parses and validates a configuration file. A missing file yields the
// defaults; credentials absent from the file are pulled from the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("growthwatch.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	for _, field := range []*string{&c.Reference.Path, &c.Growth.LedgerPath, &c.State.Dir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Slack.WebhookURL == "" {
		c.Slack.WebhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	}

	for i, ch := range c.Watch.Channels {
		c.Watch.Channels[i] = strings.TrimSpace(ch)
	}
	return nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Watch.MaxVideosPerChannel < 1 {
		problems = append(problems, "watch.max_videos_per_channel must be at least 1")
	}
	if c.Watch.PollIntervalSeconds < 1 {
		problems = append(problems, "watch.poll_interval_seconds must be at least 1")
	}
	if c.Reference.SimilarityThreshold < 0 || c.Reference.SimilarityThreshold > 100 {
		problems = append(problems, "reference.similarity_threshold must be in [0,100]")
	}
	if c.Reference.TitleThreshold < 0 || c.Reference.TitleThreshold > 100 {
		problems = append(problems, "reference.title_threshold must be in [0,100]")
	}
	if c.Growth.Threshold < 0 {
		problems = append(problems, "growth.threshold must not be negative")
	}
	if c.Gemini.MaxRetries < 1 {
		problems = append(problems, "gemini.max_retries must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// VisitedPath returns the VisitedSet file location.
func (c *Config) VisitedPath() string {
	return filepath.Join(c.State.Dir, "visited_videos.json")
}

// SentPath returns the SentSet file location.
func (c *Config) SentPath() string {
	return filepath.Join(c.State.Dir, "sent_notifications.json")
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.State.Dir, filepath.Dir(c.Growth.LedgerPath)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes a sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
