// ABOUTME: Entry point for the assistant-relay server
// ABOUTME: Loads configuration, wires the gateway and runs it until a signal or fatal error

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/assistant-relay/internal/auth"
	"github.com/2389/assistant-relay/internal/config"
	"github.com/2389/assistant-relay/internal/gateway"
	"github.com/2389/assistant-relay/internal/telemetry"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                _     _              _                   _
  __ _ ___ ___(_)___| |_ __ _ _ __ | |_      _ __ ___| | __ _ _   _
 / _' / __/ __| / __| __/ _' | '_ \| __|____| '__/ _ \ |/ _' | | | |
| (_| \__ \__ \ \__ \ || (_| | | | | ||_____| | |  __/ | (_| | |_| |
 \__,_|___/___/_|___/\__\__,_|_| |_|\__|    |_|  \___|_|\__,_|\__, |
                                                               |___/
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: assistant-relay <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                     Start the relay server")
		fmt.Println("  health                    Check relay health")
		fmt.Println("  ready                     Check relay readiness")
		fmt.Println("  token --subject NAME      Issue an admin API token")
		os.Exit(1)
	}

	// .env values fill in secrets referenced as ${VAR} in the config file
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runProbe(ctx, "/health")
	case "ready":
		err = runProbe(ctx, "/health/ready")
	case "token":
		err = runToken(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.Path()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Assistant: ")
	cyan.Print(string(cfg.Mode()))
	if cfg.Mode() == config.ModeProxy {
		gray.Printf(" (%s)", cfg.Proxy.URL)
	}
	fmt.Println()
	if cfg.Slack.SigningSecret == "" {
		yellow.Println("    ! request signatures are not verified (slack.signing_secret unset)")
	}
	fmt.Println()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, os.Stderr, logger)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("flushing traces failed", "error", err)
			}
		}()
	}

	logger.Info("starting assistant-relay",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"mode", cfg.Mode(),
	)

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runProbe(ctx context.Context, path string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", probeAddr(cfg.Server.HTTPAddr), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(string(body))
	return nil
}

// probeAddr turns a wildcard listen address into one a client can dial.
func probeAddr(addr string) string {
	if rest, ok := strings.CutPrefix(addr, "0.0.0.0:"); ok {
		return "127.0.0.1:" + rest
	}
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}

// runToken issues an admin JWT for the /api endpoints.
// Supports both "--subject value" and "--subject=value" formats.
func runToken(args []string) error {
	var subject string
	ttl := 30 * 24 * time.Hour

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--subject" || arg == "-s":
			if i+1 >= len(args) {
				return fmt.Errorf("--subject requires a value")
			}
			subject = args[i+1]
			i++
		case strings.HasPrefix(arg, "--subject="):
			subject = strings.TrimPrefix(arg, "--subject=")
		case arg == "--ttl":
			if i+1 >= len(args) {
				return fmt.Errorf("--ttl requires a value")
			}
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid --ttl: %w", err)
			}
			ttl = d
			i++
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return fmt.Errorf("--subject flag is required")
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(subject, []string{auth.RoleAdmin}, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{mu: &sync.Mutex{}, level: level}
	}

	return slog.New(handler)
}
