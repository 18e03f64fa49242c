// Package server composes the REST relay and MCP transports into one process handler.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/morfo/internal/adapters/server/common"
	"github.com/hylla/morfo/internal/adapters/server/httpapi"
	"github.com/hylla/morfo/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress     = "127.0.0.1:8765"
	defaultAPIEndpoint     = "/api/v1"
	defaultMCPEndpoint     = "/mcp"
	livenessPath           = "/healthz"
	readinessPath          = "/readyz"
	readinessTimeout       = 3 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config defines serve-mode endpoint configuration.
type Config struct {
	HTTPBind          string
	APIEndpoint       string
	MCPEndpoint       string
	ServerName        string
	ServerVersion     string
	DefaultCredential string

	// UploadRoot confines file-mode paths on both transports; empty disables file mode.
	UploadRoot string

	// DisableAPI and DisableMCP drop one transport from the mux.
	DisableAPI bool
	DisableMCP bool
}

// Dependencies defines app-facing adapters required by server transports.
type Dependencies struct {
	Form common.FormService
}

// route binds one mux pattern to its handler.
type route struct {
	pattern string
	handler http.Handler
}

// NewHandler composes one root HTTP mux from the enabled transports.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Form == nil {
		return nil, Config{}, errors.New("form service dependency is required")
	}
	routes, err := buildRoutes(cfg, deps)
	if err != nil {
		return nil, Config{}, err
	}

	mux := http.NewServeMux()
	seen := make(map[string]struct{}, len(routes))
	for _, rt := range routes {
		if _, dup := seen[rt.pattern]; dup {
			return nil, Config{}, fmt.Errorf("route %q is registered twice", rt.pattern)
		}
		seen[rt.pattern] = struct{}{}
		mux.Handle(rt.pattern, rt.handler)
	}
	return mux, cfg, nil
}

// buildRoutes lists the health routes plus every enabled transport.
func buildRoutes(cfg Config, deps Dependencies) ([]route, error) {
	routes := []route{
		{pattern: livenessPath, handler: http.HandlerFunc(writeLive)},
		{pattern: readinessPath, handler: readinessHandler(deps.Form)},
	}
	if !cfg.DisableMCP {
		mcpHandler, err := mcpapi.NewHandler(mcpapi.Config{
			ServerName:        cfg.ServerName,
			ServerVersion:     cfg.ServerVersion,
			EndpointPath:      cfg.MCPEndpoint,
			DefaultCredential: cfg.DefaultCredential,
			UploadRoot:        cfg.UploadRoot,
		}, deps.Form)
		if err != nil {
			return nil, fmt.Errorf("configure mcp handler: %w", err)
		}
		routes = append(routes, route{pattern: cfg.MCPEndpoint, handler: mcpHandler})
	}
	if !cfg.DisableAPI {
		api := http.StripPrefix(cfg.APIEndpoint, httpapi.NewHandler(deps.Form, httpapi.Config{
			DefaultCredential: cfg.DefaultCredential,
			UploadRoot:        cfg.UploadRoot,
		}))
		routes = append(routes,
			route{pattern: cfg.APIEndpoint, handler: api},
			route{pattern: cfg.APIEndpoint + "/", handler: api},
		)
	}
	return routes, nil
}

// Run listens on cfg.HTTPBind and serves until ctx ends, then drains connections.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	ln, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPBind, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve after shutdown: %w", err)
	}
	return nil
}

// normalizeConfig applies defaults and rejects endpoint collisions.
func normalizeConfig(cfg Config) (Config, error) {
	cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind)
	if cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}
	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint, defaultAPIEndpoint)
	cfg.MCPEndpoint = normalizeEndpoint(cfg.MCPEndpoint, defaultMCPEndpoint)
	cfg.ServerName = firstNonBlank(cfg.ServerName, "morfo")
	cfg.ServerVersion = firstNonBlank(cfg.ServerVersion, "dev")
	cfg.DefaultCredential = strings.TrimSpace(cfg.DefaultCredential)
	cfg.UploadRoot = strings.TrimSpace(cfg.UploadRoot)

	if cfg.DisableAPI && cfg.DisableMCP {
		return Config{}, errors.New("at least one of the api and mcp transports must be enabled")
	}
	reserved := map[string]string{livenessPath: "liveness check", readinessPath: "readiness check"}
	claim := func(path, owner string) error {
		if other, taken := reserved[path]; taken {
			return fmt.Errorf("%s endpoint %q collides with the %s", owner, path, other)
		}
		reserved[path] = owner
		return nil
	}
	if !cfg.DisableMCP {
		if err := claim(cfg.MCPEndpoint, "mcp"); err != nil {
			return Config{}, err
		}
	}
	if !cfg.DisableAPI {
		if err := claim(cfg.APIEndpoint, "api"); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// normalizeEndpoint returns a single-leading-slash path, or fallback when blank.
func normalizeEndpoint(path string, fallback string) string {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return fallback
	}
	return "/" + trimmed
}

// firstNonBlank returns the trimmed value or fallback.
func firstNonBlank(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

// writeLive reports process liveness.
func writeLive(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok", "")
}

// readinessHandler reports ready only while the analysis backend answers its health check.
func readinessHandler(svc common.FormService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		status, err := svc.Health(ctx)
		if err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable", err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ok", status)
	})
}

// writeStatus writes one health payload.
func writeStatus(w http.ResponseWriter, code int, status, detail string) {
	payload := map[string]string{"status": status}
	if detail != "" {
		payload["upstream"] = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
