package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	History  HistoryConfig  `toml:"history"`
	UI       UIConfig       `toml:"ui"`
	Logging  LoggingConfig  `toml:"logging"`
	Serve    ServeConfig    `toml:"serve"`
	Keys     KeyConfig      `toml:"keys"`
}

type APIConfig struct {
	BaseURL   string `toml:"base_url"`
	Key       string `toml:"key"`
	Timeout   string `toml:"timeout"` // Go duration; empty or "0" disables the client timeout
	UserAgent string `toml:"user_agent"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
	Limit   int  `toml:"limit"`
}

type UIConfig struct {
	DefaultMode    string `toml:"default_mode"` // single | batch | file
	RenderMarkdown bool   `toml:"render_markdown"`
	OutputStyle    string `toml:"output_style"` // dark | light | ascii | notty
	WatchConfig    bool   `toml:"watch_config"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type KeyConfig struct {
	CopyOutput string `toml:"copy_output"`
	Reload     string `toml:"reload"`
	ToggleHelp string `toml:"toggle_help"`
	NextMode   string `toml:"next_mode"`
	PrevMode   string `toml:"prev_mode"`
}

type ServeConfig struct {
	Bind     string `toml:"bind"`
	Endpoint string `toml:"endpoint"`

	// UploadRoot is the only directory remote callers may upload from; empty disables remote file mode.
	UploadRoot string `toml:"upload_root"`
}

func Default(dbPath string) Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://127.0.0.1:8000",
			Timeout:   "",
			UserAgent: "morfo",
		},
		Database: DatabaseConfig{
			Path: dbPath,
		},
		History: HistoryConfig{
			Enabled: true,
			Limit:   50,
		},
		UI: UIConfig{
			DefaultMode:    "single",
			RenderMarkdown: true,
			OutputStyle:    "dark",
			WatchConfig:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".morfo/log",
			},
		},
		Serve: ServeConfig{
			Bind:     "127.0.0.1:8765",
			Endpoint: "/mcp",
		},
		Keys: KeyConfig{
			CopyOutput: "ctrl+y",
			Reload:     "ctrl+r",
			ToggleHelp: "ctrl+g",
			NextMode:   "ctrl+right",
			PrevMode:   "ctrl+left",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		return errors.New("api.base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid api.base_url: %q", c.API.BaseURL)
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if c.History.Limit < 0 {
		return errors.New("history.limit must be >= 0")
	}

	switch strings.TrimSpace(strings.ToLower(c.UI.DefaultMode)) {
	case "", "single", "batch", "file":
	default:
		return fmt.Errorf("invalid ui.default_mode: %q", c.UI.DefaultMode)
	}
	switch strings.TrimSpace(strings.ToLower(c.UI.OutputStyle)) {
	case "", "dark", "light", "ascii", "notty":
	default:
		return fmt.Errorf("invalid ui.output_style: %q", c.UI.OutputStyle)
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if endpoint := strings.TrimSpace(c.Serve.Endpoint); endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		return fmt.Errorf("serve.endpoint must start with '/': %q", c.Serve.Endpoint)
	}
	return nil
}

// RequestTimeout parses api.timeout; zero means no client timeout.
func (c Config) RequestTimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.API.Timeout)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid api.timeout %q: %w", c.API.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("api.timeout must be >= 0: %q", c.API.Timeout)
	}
	return d, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteDefault writes cfg as TOML to path unless a file already exists there.
func WriteDefault(path string, cfg Config) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("config path is required")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
