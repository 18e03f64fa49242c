package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hylla/morfo/internal/adapters/server"
	"github.com/hylla/morfo/internal/config"
	"github.com/hylla/morfo/internal/domain"
	"github.com/spf13/cobra"
)

// errSubmissionFailed marks a submission whose outcome text was already printed.
var errSubmissionFailed = errors.New("submission failed")

// newSingleCommand builds `single <word>`.
func newSingleCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "single <word>",
		Short: "Analyze one word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.submit(cmd.Context(), domain.ModeSingle, domain.FormInput{Word: args[0]})
		},
	}
}

// newBatchCommand builds `batch [words...]`.
func newBatchCommand(c *cli) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "batch [words...]",
		Short: "Analyze several words in one request",
		Long:  "Analyze several words in one request. Words come from arguments and, with --in, from a file\n(one word per line; '-' reads stdin). Blank lines are ignored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := append([]string(nil), args...)
			if strings.TrimSpace(inPath) != "" {
				content, err := c.readInput(inPath)
				if err != nil {
					return err
				}
				lines = append(lines, content)
			}
			return c.submit(cmd.Context(), domain.ModeBatch, domain.FormInput{WordsText: strings.Join(lines, "\n")})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "read newline-separated words from a file ('-' for stdin)")
	return cmd
}

// newUploadCommand builds `upload <file>`.
func newUploadCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a .txt file (one word per line) for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.submit(cmd.Context(), domain.ModeFile, domain.FormInput{FilePath: args[0]})
		},
	}
}

// newHealthCommand builds `health`.
func newHealthCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the analysis API health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.openService("health", false)
			if err != nil {
				return err
			}
			status, err := svc.Health(cmd.Context())
			if err != nil {
				c.logger.Error("health check failed", "base_url", c.cfg.API.BaseURL, "err", err)
				return err
			}
			_, _ = fmt.Fprintln(c.stdout, status)
			return nil
		},
	}
}

// newHistoryCommand builds `history` and `history show <id>`.
func newHistoryCommand(c *cli) *cobra.Command {
	var (
		limit    int
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.openService("history", false)
			if err != nil {
				return err
			}
			if clearAll {
				removed, err := svc.ClearHistory(cmd.Context())
				if err != nil {
					return fmt.Errorf("clear history: %w", err)
				}
				c.logger.Info("history cleared", "removed", removed)
				_, _ = fmt.Fprintf(c.stdout, "cleared %d entries\n", removed)
				return nil
			}
			entries, err := svc.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			return writeHistoryTable(c.stdout, entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to list (0 uses history.limit)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete every recorded submission")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded submission with its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.openService("history show", false)
			if err != nil {
				return err
			}
			entry, err := svc.HistoryEntry(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("show history: %w", err)
			}
			writeHistoryEntry(c.stdout, entry)
			return nil
		},
	})
	return cmd
}

// newServeCommand builds `serve`.
func newServeCommand(c *cli) *cobra.Command {
	var (
		bind       string
		endpoint   string
		uploadRoot string
		noAPI      bool
		noMCP      bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP bridge and REST relay over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.openService("serve", false)
			if err != nil {
				return err
			}
			serveCfg := server.Config{
				HTTPBind:          c.cfg.Serve.Bind,
				MCPEndpoint:       c.cfg.Serve.Endpoint,
				ServerName:        c.appName,
				ServerVersion:     version,
				DefaultCredential: c.cfg.API.Key,
				UploadRoot:        c.cfg.Serve.UploadRoot,
				DisableAPI:        noAPI,
				DisableMCP:        noMCP,
			}
			if v := strings.TrimSpace(bind); v != "" {
				serveCfg.HTTPBind = v
			}
			if v := strings.TrimSpace(endpoint); v != "" {
				serveCfg.MCPEndpoint = v
			}
			if v := strings.TrimSpace(uploadRoot); v != "" {
				serveCfg.UploadRoot = v
			}
			c.logger.Info("serve starting", "bind", serveCfg.HTTPBind, "mcp_endpoint", serveCfg.MCPEndpoint, "base_url", c.cfg.API.BaseURL, "upload_root", serveCfg.UploadRoot, "api", !noAPI, "mcp", !noMCP)
			if err := server.Run(cmd.Context(), serveCfg, server.Dependencies{Form: svc}); err != nil {
				c.logger.Error("serve failed", "err", err)
				return fmt.Errorf("serve: %w", err)
			}
			c.logger.Info("serve stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (defaults to serve.bind)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "MCP endpoint path (defaults to serve.endpoint)")
	cmd.Flags().StringVar(&uploadRoot, "upload-root", "", "directory remote file uploads are confined to (defaults to serve.upload_root; empty disables them)")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "serve only the MCP bridge")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "serve only the REST relay")
	return cmd
}

// newPathsCommand builds `paths`.
func newPathsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(c.stdout, "app: %s\n", c.appName)
			_, _ = fmt.Fprintf(c.stdout, "dev_mode: %t\n", c.devMode)
			_, _ = fmt.Fprintf(c.stdout, "config: %s\n", c.configPath)
			_, _ = fmt.Fprintf(c.stdout, "data_dir: %s\n", c.paths.DataDir)
			_, _ = fmt.Fprintf(c.stdout, "db: %s\n", c.dbPath)
			return nil
		},
	}
}

// newConfigCommand builds `config init`.
func newConfigCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.WriteDefault(c.configPath, c.defaults); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "wrote %s\n", c.configPath)
			return nil
		},
	})
	return cmd
}

// submit runs one analysis and prints the outcome text.
func (c *cli) submit(ctx context.Context, mode domain.Mode, in domain.FormInput) error {
	svc, err := c.openService(string(mode), false)
	if err != nil {
		return err
	}
	in.Credential = c.cfg.API.Key

	if err := svc.SwitchMode(mode); err != nil {
		return err
	}
	c.logger.Debug("submission start", "mode", mode)
	out := svc.Submit(ctx, in)
	_, _ = fmt.Fprintln(c.stdout, out.Text)
	if out.OK() {
		c.logger.Info("submission complete", "mode", mode, "status", out.StatusCode)
		return nil
	}
	c.logger.Warn("submission failed", "mode", mode, "kind", out.Kind, "status", out.StatusCode)
	return fmt.Errorf("%w: %s", errSubmissionFailed, out.Kind)
}

// readInput reads one file path, or stdin for "-".
func (c *cli) readInput(path string) (string, error) {
	if strings.TrimSpace(path) == "-" {
		content, err := io.ReadAll(c.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(content), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read words file: %w", err)
	}
	return string(content), nil
}

// writeHistoryTable prints history rows as aligned columns.
func writeHistoryTable(w io.Writer, entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "no history")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCREATED\tMODE\tRESULT\tSTATUS\tWORDS\tINPUT")
	for _, entry := range entries {
		status := "-"
		if entry.StatusCode > 0 {
			status = fmt.Sprint(entry.StatusCode)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			entry.ID,
			entry.CreatedAt.Local().Format(time.DateTime),
			entry.Mode,
			entry.Kind,
			status,
			entry.WordCount,
			entry.Summary,
		)
	}
	return tw.Flush()
}

// writeHistoryEntry prints one history entry with its stored output.
func writeHistoryEntry(w io.Writer, entry domain.HistoryEntry) {
	_, _ = fmt.Fprintf(w, "id: %s\n", entry.ID)
	_, _ = fmt.Fprintf(w, "created: %s\n", entry.CreatedAt.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "mode: %s\n", entry.Mode)
	_, _ = fmt.Fprintf(w, "result: %s\n", entry.Kind)
	if entry.StatusCode > 0 {
		_, _ = fmt.Fprintf(w, "status: %d\n", entry.StatusCode)
	}
	_, _ = fmt.Fprintf(w, "input: %s\n", entry.Summary)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, entry.Output)
}
