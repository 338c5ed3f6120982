// ABOUTME: Entry point for the baseline-mcp gateway server
// ABOUTME: Exposes the Baseline loan servicing API as MCP tools over HTTP

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"tailscale.com/tsnet"

	"github.com/baselinehq/baseline-mcp/internal/auth"
	"github.com/baselinehq/baseline-mcp/internal/config"
	"github.com/baselinehq/baseline-mcp/internal/mcp"
	"github.com/baselinehq/baseline-mcp/internal/store"
	"github.com/baselinehq/baseline-mcp/internal/tools"
	"github.com/baselinehq/baseline-mcp/internal/upstream"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                    _ _
| |__   __ _ ___  ___| (_)_ __   ___        _ __ ___   ___ _ __
| '_ \ / _' / __|/ _ \ | | '_ \ / _ \_____| '_ ' _ \ / __| '_ \
| |_) | (_| \__ \  __/ | | | | |  __/_____| | | | | | (__| |_) |
|_.__/ \__,_|___/\___|_|_|_| |_|\___|     |_| |_| |_|\___| .__/
                                                         |_|
`

// getConfigPath returns the path to the gateway config file.
// Priority: BASELINE_MCP_CONFIG env var > XDG_CONFIG_HOME/baseline-mcp/config.yaml > ~/.config/baseline-mcp/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BASELINE_MCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "baseline-mcp", "config.yaml")
}

// getDataPath returns the path to the baseline-mcp data directory.
// Priority: XDG_DATA_HOME/baseline-mcp > ~/.local/share/baseline-mcp
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "baseline-mcp")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: baseline-mcp <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve           Start the MCP gateway server")
		fmt.Println("  init            Write a starter config file")
		fmt.Println("  health          Check gateway health")
		fmt.Println("  token create    Create an access token")
		fmt.Println("  token list      List access tokens")
		fmt.Println("  token revoke    Revoke an access token")
		fmt.Println("  token jwt       Mint a JWT for a client")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, or falls back to built-in defaults
// with the credential taken from BASELINE_API_TOKEN.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default(), "(defaults)", nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Upstream.Credential == "" {
		return fmt.Errorf("no upstream credential configured: set upstream.credential or BASELINE_API_TOKEN")
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Upstream:  %s\n", upstreamLabel(cfg.Upstream.BaseURL))
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	fmt.Println()

	logger.Info("starting baseline-mcp",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"require_auth", cfg.Auth.RequireAuth,
	)

	client := upstream.New(upstream.Config{
		BaseURL:          cfg.Upstream.BaseURL,
		Credential:       cfg.Upstream.Credential,
		UpdateLoanMethod: cfg.Upstream.UpdateLoanMethod,
	})

	registry, err := tools.NewRegistry(client, logger)
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}
	logger.Info("tool registry ready", "tools", registry.Len())

	serverCfg := mcp.Config{
		Registry:    registry,
		Logger:      logger,
		RequireAuth: cfg.Auth.RequireAuth,
		IdleTimeout: cfg.Sessions.IdleTimeout,
	}

	var tokenStore *store.TokenStore
	if cfg.Auth.TokenDB != "" {
		tokenStore, err = store.NewTokenStore(cfg.Auth.TokenDB)
		if err != nil {
			return fmt.Errorf("opening token store: %w", err)
		}
		defer tokenStore.Close()
		serverCfg.Tokens = tokenStore
	}
	if cfg.Auth.JWTSecret != "" {
		serverCfg.Verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	defer server.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, version)
	})
	server.RegisterRoutes(r)

	ln, cleanup, err := setupListener(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// upstreamLabel shows the upstream host without leaking path details.
func upstreamLabel(baseURL string) string {
	if baseURL == "" {
		baseURL = upstream.DefaultBaseURL
	}
	return baseURL
}

// setupListener returns a TCP listener, or a tsnet listener when
// Tailscale is enabled. The cleanup function closes any extra resources.
func setupListener(ctx context.Context, cfg *config.Config, logger *slog.Logger) (net.Listener, func(), error) {
	if !cfg.Tailscale.Enabled {
		ln, err := net.Listen("tcp", cfg.Server.HTTPAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("listening on %s: %w", cfg.Server.HTTPAddr, err)
		}
		return ln, func() {}, nil
	}

	stateDir := cfg.Tailscale.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(getDataPath(), "tsnet")
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey := cfg.Tailscale.AuthKey
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}

	ts := &tsnet.Server{
		Hostname:  cfg.Tailscale.Hostname,
		Dir:       stateDir,
		Ephemeral: cfg.Tailscale.Ephemeral,
		AuthKey:   authKey,
	}

	logger.Info("starting tailscale node",
		"hostname", cfg.Tailscale.Hostname,
		"state_dir", stateDir,
		"ephemeral", cfg.Tailscale.Ephemeral,
	)
	status, err := ts.Up(ctx)
	if err != nil {
		_ = ts.Close()
		return nil, nil, fmt.Errorf("starting tailscale: %w", err)
	}
	if status.Self != nil && status.Self.DNSName != "" {
		logger.Info("tailscale node ready", "dns_name", strings.TrimSuffix(status.Self.DNSName, "."))
	}

	ln, err := ts.Listen("tcp", ":80")
	if err != nil {
		_ = ts.Close()
		return nil, nil, fmt.Errorf("listening on tailscale port: %w", err)
	}
	return ln, func() { _ = ts.Close() }, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	url := fmt.Sprintf("http://%s/health", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runToken(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: baseline-mcp token <create|list|revoke|jwt>")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	switch os.Args[2] {
	case "create":
		return runTokenCreate(ctx, cfg)
	case "list":
		return runTokenList(ctx, cfg)
	case "revoke":
		return runTokenRevoke(ctx, cfg)
	case "jwt":
		return runTokenJWT(cfg)
	default:
		return fmt.Errorf("unknown token command: %s", os.Args[2])
	}
}

func openTokenStore(cfg *config.Config) (*store.TokenStore, error) {
	dbPath := cfg.Auth.TokenDB
	if dbPath == "" {
		dbPath = filepath.Join(getDataPath(), "tokens.db")
	}
	return store.NewTokenStore(dbPath)
}

func runTokenCreate(ctx context.Context, cfg *config.Config) error {
	description := strings.Join(os.Args[3:], " ")

	s, err := openTokenStore(cfg)
	if err != nil {
		return fmt.Errorf("opening token store: %w", err)
	}
	defer s.Close()

	tok, err := s.Create(ctx, description)
	if err != nil {
		return fmt.Errorf("creating token: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Println("  Token created")
	fmt.Printf("  Token:       %s\n", tok.Token)
	if tok.Description != "" {
		fmt.Printf("  Description: %s\n", tok.Description)
	}
	return nil
}

func runTokenList(ctx context.Context, cfg *config.Config) error {
	s, err := openTokenStore(cfg)
	if err != nil {
		return fmt.Errorf("opening token store: %w", err)
	}
	defer s.Close()

	tokens, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("listing tokens: %w", err)
	}

	if len(tokens) == 0 {
		fmt.Println("no tokens")
		return nil
	}

	for _, tok := range tokens {
		status := "active"
		if tok.RevokedAt != nil {
			status = "revoked"
		}
		fmt.Printf("%s  %-8s %s  %s\n",
			tok.Token[:12], status,
			tok.CreatedAt.Format("2006-01-02"),
			tok.Description)
	}
	return nil
}

func runTokenRevoke(ctx context.Context, cfg *config.Config) error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: baseline-mcp token revoke <token>")
	}

	s, err := openTokenStore(cfg)
	if err != nil {
		return fmt.Errorf("opening token store: %w", err)
	}
	defer s.Close()

	if err := s.Revoke(ctx, os.Args[3]); err != nil {
		return err
	}
	fmt.Println("revoked")
	return nil
}

func runTokenJWT(cfg *config.Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured")
	}

	subject := "mcp-client"
	ttl := 30 * 24 * time.Hour
	args := os.Args[3:]
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--subject" && i+1 < len(args):
			subject = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--subject="):
			subject = strings.TrimPrefix(args[i], "--subject=")
		case args[i] == "--ttl" && i+1 < len(args):
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
			ttl = d
			i++
		case strings.HasPrefix(args[i], "--ttl="):
			d, err := time.ParseDuration(strings.TrimPrefix(args[i], "--ttl="))
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
			ttl = d
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(subject, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tokenDB := filepath.Join(getDataPath(), "tokens.db")
	configContent := fmt.Sprintf(`# baseline-mcp configuration
# Generated by baseline-mcp init

server:
  http_addr: ":8080"

upstream:
  # base_url: "https://production.baselinesoftware.com/production/api"
  credential: "${BASELINE_API_TOKEN}"
  update_loan_method: "PATCH"

auth:
  require_auth: false
  # jwt_secret: "change-me"
  token_db: "%s"

sessions:
  idle_timeout: "30m"

tailscale:
  enabled: false
  # hostname: "baseline-mcp"

logging:
  level: "info"
  format: "text"
`, tokenDB)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println()
	fmt.Println("Set BASELINE_API_TOKEN, then start the server:")
	fmt.Println("  baseline-mcp serve")
	return nil
}
