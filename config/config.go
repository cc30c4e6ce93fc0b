package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Platform    PlatformConfig    `yaml:"platform"`
	Recognizer  RecognizerConfig  `yaml:"recognizer"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Media       MediaConfig       `yaml:"media"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Retry       RetryConfig       `yaml:"retry"`
	Journal     JournalConfig     `yaml:"journal"`
	Pushover    PushoverConfig    `yaml:"pushover"`
	Health      HealthConfig      `yaml:"health"`
	Log         LogConfig         `yaml:"log"`
}

type PlatformConfig struct {
	Kind     string         `yaml:"kind"`
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	Local    LocalConfig    `yaml:"local"`
}

type TelegramConfig struct {
	Token       string        `yaml:"token"`
	APIEndpoint string        `yaml:"api_endpoint"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

type DiscordConfig struct {
	Token string `yaml:"token"`
}

type LocalConfig struct {
	InboxDir   string `yaml:"inbox_dir"`
	OutboxDir  string `yaml:"outbox_dir"`
	Source     string `yaml:"source"`
	SampleRate int    `yaml:"sample_rate"`
}

type RecognizerConfig struct {
	Provider        string `yaml:"provider"`
	URL             string `yaml:"url"`
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	Language        string `yaml:"language"`
	CredentialsFile string `yaml:"credentials_file"`
}

type GeneratorConfig struct {
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	URL            string `yaml:"url"`
	PromptTemplate string `yaml:"prompt_template"`
	FallbackReply  string `yaml:"fallback_reply"`
}

type SynthesizerConfig struct {
	Provider string `yaml:"provider"`
	Language string `yaml:"language"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
}

type MediaConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	WorkDir    string `yaml:"work_dir"`
}

type PipelineConfig struct {
	RecognizeTimeout  time.Duration `yaml:"recognize_timeout"`
	GenerateTimeout   time.Duration `yaml:"generate_timeout"`
	SynthesizeTimeout time.Duration `yaml:"synthesize_timeout"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type JournalConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	MaxEntries    int64         `yaml:"max_entries"`
	TTL           time.Duration `yaml:"ttl"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type HealthConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config at path. A .env file next to it, if present,
// is loaded first so ${VAR} references can resolve against it.
func Load(path string) (*Config, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Platform.Kind == "" {
		c.Platform.Kind = "telegram"
	}
	if c.Platform.Telegram.PollTimeout == 0 {
		c.Platform.Telegram.PollTimeout = 30 * time.Second
	}
	if c.Platform.Local.InboxDir == "" {
		c.Platform.Local.InboxDir = "./inbox"
	}
	if c.Platform.Local.OutboxDir == "" {
		c.Platform.Local.OutboxDir = "./outbox"
	}
	if c.Platform.Local.Source == "" {
		c.Platform.Local.Source = "inbox"
	}
	if c.Platform.Local.SampleRate == 0 {
		c.Platform.Local.SampleRate = 16000
	}
	if c.Recognizer.Provider == "" {
		c.Recognizer.Provider = "whisper"
	}
	if c.Recognizer.URL == "" && c.Recognizer.Provider == "whisper" {
		c.Recognizer.URL = "http://localhost:8178"
	}
	if c.Recognizer.Model == "" && c.Recognizer.Provider == "whisper" {
		c.Recognizer.Model = "small"
	}
	if c.Generator.Provider == "" {
		c.Generator.Provider = "gemini"
	}
	if c.Generator.Model == "" && c.Generator.Provider == "gemini" {
		c.Generator.Model = "gemini-1.5-flash"
	}
	if c.Synthesizer.Provider == "" {
		c.Synthesizer.Provider = "gtts"
	}
	if c.Synthesizer.Language == "" {
		c.Synthesizer.Language = "en"
	}
	if c.Media.FFmpegPath == "" {
		c.Media.FFmpegPath = "ffmpeg"
	}
	if c.Media.WorkDir == "" {
		c.Media.WorkDir = os.TempDir()
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 1
	}
	if c.Journal.MaxEntries == 0 {
		c.Journal.MaxEntries = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports unknown providers and missing credentials for the
// selected ones.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	switch c.Platform.Kind {
	case "telegram":
		require(c.Platform.Telegram.Token, "platform.telegram.token")
	case "discord":
		require(c.Platform.Discord.Token, "platform.discord.token")
	case "local":
		if s := c.Platform.Local.Source; s != "inbox" && s != "microphone" {
			errs = append(errs, fmt.Errorf("unknown platform.local.source %q", s))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown platform.kind %q", c.Platform.Kind))
	}

	switch c.Recognizer.Provider {
	case "whisper":
		require(c.Recognizer.URL, "recognizer.url")
	case "openai":
		require(c.Recognizer.APIKey, "recognizer.api_key")
	case "google":
	default:
		errs = append(errs, fmt.Errorf("unknown recognizer.provider %q", c.Recognizer.Provider))
	}

	switch c.Generator.Provider {
	case "gemini", "anthropic", "openai":
		require(c.Generator.APIKey, "generator.api_key")
	default:
		errs = append(errs, fmt.Errorf("unknown generator.provider %q", c.Generator.Provider))
	}

	switch c.Synthesizer.Provider {
	case "gtts":
	case "openai":
		require(c.Synthesizer.APIKey, "synthesizer.api_key")
	default:
		errs = append(errs, fmt.Errorf("unknown synthesizer.provider %q", c.Synthesizer.Provider))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1"))
	}

	if c.Pushover.Enabled {
		require(c.Pushover.Token, "pushover.token")
		require(c.Pushover.UserKey, "pushover.user_key")
	}

	return errors.Join(errs...)
}
