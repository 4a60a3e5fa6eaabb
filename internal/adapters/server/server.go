// Package server mounts the pipeline REST API, the MCP tools and the health checks on one listener.
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

	"github.com/evanschultz/pitchside/internal/adapters/server/common"
	"github.com/evanschultz/pitchside/internal/adapters/server/httpapi"
	"github.com/evanschultz/pitchside/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress = "127.0.0.1:5437"
	defaultAPIEndpoint = "/api/v1"
	defaultMCPEndpoint = "/mcp"
	defaultServerName  = "pitchside"

	shutdownGrace     = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
)

// Config selects the listen address and mount points.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
}

// Logger receives one line per request and the listener lifecycle.
type Logger interface {
	Info(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// Dependencies are the collaborators behind the transports.
type Dependencies struct {
	Pipeline common.PipelineService
	// Ready reports storage readiness for /readyz. Nil means always ready.
	Ready func(context.Context) error
	// Logger is optional.
	Logger Logger
	// OnListen is called with the bound address once the listener is open.
	OnListen func(addr string)
}

// NewHandler builds the root mux: /healthz, /readyz, the API prefix and the MCP endpoint.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Pipeline == nil {
		return nil, Config{}, errors.New("pipeline dependency is required")
	}

	tools, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
	}, deps.Pipeline)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	api := http.StripPrefix(cfg.APIEndpoint, httpapi.NewHandler(deps.Pipeline))

	identity := statusBody{Service: cfg.ServerName, Version: cfg.ServerVersion}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, identity.with("ok", nil))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, identity.with("unavailable", err))
				return
			}
		}
		writeStatus(w, http.StatusOK, identity.with("ok", nil))
	})
	mux.Handle(cfg.MCPEndpoint, tools)
	mux.Handle(cfg.APIEndpoint, api)
	mux.Handle(cfg.APIEndpoint+"/", api)

	if deps.Logger == nil {
		return mux, cfg, nil
	}
	return logRequests(mux, deps.Logger), cfg, nil
}

// Run binds the listener, serves until ctx ends, then drains in-flight requests.
// A bind failure is returned before anything is served.
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
		return fmt.Errorf("listen on %s: %w", cfg.HTTPBind, err)
	}
	if deps.OnListen != nil {
		deps.OnListen(ln.Addr().String())
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
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

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("drain server: %w", err)
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func normalizeConfig(cfg Config) (Config, error) {
	cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind)
	if cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}
	cfg.APIEndpoint = mountPath(cfg.APIEndpoint, defaultAPIEndpoint)
	cfg.MCPEndpoint = mountPath(cfg.MCPEndpoint, defaultMCPEndpoint)
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ, both are %s", cfg.APIEndpoint)
	}
	if strings.HasPrefix(cfg.MCPEndpoint, cfg.APIEndpoint+"/") || strings.HasPrefix(cfg.APIEndpoint, cfg.MCPEndpoint+"/") {
		return Config{}, fmt.Errorf("api endpoint %s and mcp endpoint %s must not nest", cfg.APIEndpoint, cfg.MCPEndpoint)
	}
	if cfg.ServerName = strings.TrimSpace(cfg.ServerName); cfg.ServerName == "" {
		cfg.ServerName = defaultServerName
	}
	if cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion); cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	return cfg, nil
}

// mountPath cleans a mount point to a leading slash with no trailing slash. The root is not a valid mount.
func mountPath(path, fallback string) string {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	if path == "/" {
		return fallback
	}
	return path
}

type statusBody struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Error   string `json:"error,omitempty"`
}

func (b statusBody) with(status string, err error) statusBody {
	b.Status = status
	if err != nil {
		b.Error = err.Error()
	}
	return b
}

func writeStatus(w http.ResponseWriter, code int, body statusBody) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer for MCP streaming.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		keyvals := []any{"method", r.Method, "path", r.URL.Path, "status", rec.code, "elapsed", time.Since(start).Round(time.Microsecond)}
		if rec.code >= http.StatusInternalServerError {
			logger.Error("http request failed", keyvals...)
			return
		}
		logger.Info("http request", keyvals...)
	})
}
