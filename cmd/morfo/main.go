package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/morfo/internal/adapters/analyzerapi"
	"github.com/hylla/morfo/internal/adapters/storage/sqlite"
	"github.com/hylla/morfo/internal/app"
	"github.com/hylla/morfo/internal/config"
	"github.com/hylla/morfo/internal/domain"
	"github.com/hylla/morfo/internal/platform"
	"github.com/hylla/morfo/internal/tui"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
	Send(tea.Msg)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := newCLI(os.Stdin, os.Stdout, os.Stderr)
	err := fang.Execute(ctx, newRootCommand(c), fang.WithVersion(version))
	c.close()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes one CLI invocation with explicit streams.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c := newCLI(stdin, stdout, stderr)
	defer c.close()

	root := newRootCommand(c)
	root.SetArgs(args)
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// cli carries flag values and lazily-opened runtime resources for one invocation.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	dbPath     string
	appName    string
	apiKey     string
	baseURL    string
	devMode    bool

	paths        platform.Paths
	defaults     config.Config
	cfg          config.Config
	dbOverridden bool

	logger *runtimeLogger
	repo   *sqlite.Repository
}

// newCLI constructs CLI state with env-derived flag defaults.
func newCLI(stdin io.Reader, stdout, stderr io.Writer) *cli {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	c := &cli{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		appName: "morfo",
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("MORFO_DEV_MODE"); ok {
		c.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("MORFO_APP_NAME")); envApp != "" {
		c.appName = envApp
	}
	return c
}

// newRootCommand builds the command tree; the bare command opens the form.
func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:     "morfo",
		Short:   "Word analysis form for the morphology API",
		Long:    "morfo submits words to the morphology analysis API and shows the JSON result.\nRun without a subcommand to open the terminal form.",
		Version: version,
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.resolvePaths()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTUI(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config TOML")
	flags.StringVar(&c.dbPath, "db", "", "path to sqlite history database")
	flags.StringVar(&c.appName, "app", c.appName, "application name for config/data path resolution")
	flags.BoolVar(&c.devMode, "dev", c.devMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&c.apiKey, "api-key", "", "API key sent as the api-key header")
	flags.StringVar(&c.baseURL, "base-url", "", "analysis API base URL")

	root.AddCommand(
		newSingleCommand(c),
		newBatchCommand(c),
		newUploadCommand(c),
		newHealthCommand(c),
		newHistoryCommand(c),
		newServeCommand(c),
		newPathsCommand(c),
		newConfigCommand(c),
	)
	return root
}

// resolvePaths resolves per-OS config and data locations.
func (c *cli) resolvePaths() error {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.appName,
		DevMode: c.devMode,
	})
	if err != nil {
		return err
	}
	c.paths = paths
	if strings.TrimSpace(c.configPath) == "" {
		if envPath := strings.TrimSpace(os.Getenv("MORFO_CONFIG")); envPath != "" {
			c.configPath = envPath
		} else {
			c.configPath = paths.ConfigPath
		}
	}
	c.dbOverridden = strings.TrimSpace(c.dbPath) != ""
	if !c.dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("MORFO_DB_PATH")); envPath != "" {
			c.dbPath = envPath
			c.dbOverridden = true
		} else {
			c.dbPath = paths.DBPath
		}
	}
	c.defaults = config.Default(c.dbPath)
	return nil
}

// loadConfig reads config from disk and applies env and flag overrides.
func (c *cli) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath, c.defaults)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %q: %w", c.configPath, err)
	}
	if c.dbOverridden {
		cfg.Database.Path = c.dbPath
	}
	if env := strings.TrimSpace(os.Getenv("MORFO_API_KEY")); env != "" {
		cfg.API.Key = env
	}
	if env := strings.TrimSpace(os.Getenv("MORFO_BASE_URL")); env != "" {
		cfg.API.BaseURL = env
	}
	if v := strings.TrimSpace(c.apiKey); v != "" {
		cfg.API.Key = v
	}
	if v := strings.TrimSpace(c.baseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openService loads config, opens runtime sinks, and builds the form controller.
func (c *cli) openService(command string, quietConsole bool) (*app.Service, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	c.cfg = cfg

	logger, err := newRuntimeLogger(c.stderr, c.appName, c.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	c.logger = logger
	if quietConsole {
		logger.SetConsoleEnabled(false)
	}

	logger.Info("startup configuration resolved", "app", c.appName, "dev_mode", c.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", c.configPath, "data_dir", c.paths.DataDir, "db_path", c.dbPath)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	client, err := analyzerapi.New(analyzerapi.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   timeout,
		UserAgent: userAgent(cfg.API.UserAgent),
	})
	if err != nil {
		logger.Error("analyzer client setup failed", "base_url", cfg.API.BaseURL, "err", err)
		return nil, fmt.Errorf("configure analyzer client: %w", err)
	}
	logger.Debug("analyzer client ready", "base_url", client.BaseURL(), "timeout", timeout)

	var history app.HistoryRepository
	if cfg.History.Enabled {
		logger.Debug("opening sqlite repository", "db_path", cfg.Database.Path)
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		c.repo = repo
		history = repo
	}

	defaultMode := domain.ModeSingle
	if raw := strings.TrimSpace(cfg.UI.DefaultMode); raw != "" {
		parsed, err := domain.ParseMode(raw)
		if err != nil {
			return nil, fmt.Errorf("ui.default_mode: %w", err)
		}
		defaultMode = parsed
	}

	svc := app.NewService(client, history, uuid.NewString, nil, app.ServiceConfig{
		DefaultMode:   defaultMode,
		RecordHistory: cfg.History.Enabled,
		HistoryLimit:  cfg.History.Limit,
		OnHistoryError: func(err error) {
			logger.Warn("history write failed", "err", err)
		},
	})
	logger.Debug("form controller initialized", "default_mode", defaultMode, "history", cfg.History.Enabled)
	return svc, nil
}

// close releases the sqlite handle and the dev log file.
func (c *cli) close() {
	if c.repo != nil {
		if err := c.repo.Close(); err != nil {
			c.logger.Warn("sqlite close failed", "db_path", c.cfg.Database.Path, "err", err)
		}
		c.repo = nil
	}
	if err := c.logger.Close(); err != nil && c.logger.ConsoleEnabled() {
		_, _ = fmt.Fprintf(c.stderr, "warning: close runtime log sink: %v\n", err)
	}
	c.logger = nil
}

// runTUI opens the terminal form.
func (c *cli) runTUI(ctx context.Context) error {
	// Runtime logs stay in the dev-file sink while the form owns the terminal.
	svc, err := c.openService("tui", true)
	if err != nil {
		return err
	}
	logger := c.logger

	m := tui.NewModel(
		svc,
		tui.WithRuntimeConfig(toTUIRuntimeConfig(c.cfg)),
		tui.WithKeyConfig(tui.KeyConfig{
			CopyOutput: c.cfg.Keys.CopyOutput,
			Reload:     c.cfg.Keys.Reload,
			ToggleHelp: c.cfg.Keys.ToggleHelp,
			NextMode:   c.cfg.Keys.NextMode,
			PrevMode:   c.cfg.Keys.PrevMode,
		}),
		tui.WithReloadConfigCallback(func() (tui.RuntimeConfig, error) {
			logger.Info("runtime config reload requested", "config_path", c.configPath)
			reloaded, err := c.loadConfig()
			if err != nil {
				logger.Error("runtime config reload failed", "config_path", c.configPath, "err", err)
				return tui.RuntimeConfig{}, err
			}
			logger.Info("runtime config reload complete", "config_path", c.configPath)
			return toTUIRuntimeConfig(reloaded), nil
		}),
	)
	p := programFactory(m)
	if c.cfg.UI.WatchConfig {
		watcher, err := config.Watch(ctx, c.configPath, config.WatchOptions{
			OnChange: func() {
				logger.Debug("config file changed", "config_path", c.configPath)
				p.Send(tui.ConfigChangedMsg{})
			},
			OnError: func(err error) {
				logger.Warn("config watch error", "err", err)
			},
		})
		if err != nil {
			logger.Warn("config watch disabled", "config_path", c.configPath, "err", err)
		} else {
			defer func() { _ = watcher.Close() }()
			logger.Debug("watching config file", "path", watcher.Path())
		}
	}

	logger.Info("starting tui program loop")
	if _, err := p.Run(); err != nil {
		logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	if err := ctx.Err(); err != nil {
		logger.Info("tui program interrupted", "err", err)
	}
	logger.Info("command flow complete", "command", "tui")
	return nil
}

// toTUIRuntimeConfig maps config values into reloadable form settings.
func toTUIRuntimeConfig(cfg config.Config) tui.RuntimeConfig {
	return tui.RuntimeConfig{
		RenderMarkdown: cfg.UI.RenderMarkdown,
		OutputStyle:    cfg.UI.OutputStyle,
		Credential:     cfg.API.Key,
	}
}

// userAgent appends the build version to the configured product name.
func userAgent(product string) string {
	product = strings.TrimSpace(product)
	if product == "" {
		product = "morfo"
	}
	return product + "/" + version
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
