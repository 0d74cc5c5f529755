// ABOUTME: Entry point for the glidescope capture server
// ABOUTME: Persists ServiceNow debug events and serves the query surface

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/glidescope/glidescope/internal/capture"
	"github.com/glidescope/glidescope/internal/config"
	"github.com/glidescope/glidescope/internal/kvstore"
	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/notify"
	"github.com/glidescope/glidescope/internal/query"
	"github.com/glidescope/glidescope/internal/relay"
	"github.com/glidescope/glidescope/internal/server"
	"github.com/glidescope/glidescope/internal/settings"
	"github.com/glidescope/glidescope/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _ _     _
   __ _| (_) __| | ___  ___  ___ ___  _ __   ___
  / _' | | |/ _' |/ _ \/ __|/ __/ _ \| '_ \ / _ \
 | (_| | | | (_| |  __/\__ \ (_| (_) | |_) |  __/
  \__, |_|_|\__,_|\___||___/\___\___/| .__/ \___|
  |___/                              |_|
`

// getConfigPath returns the path to the config file.
// Priority: GLIDESCOPE_CONFIG env var > XDG_CONFIG_HOME/glidescope/config.yaml > ~/.config/glidescope/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("GLIDESCOPE_CONFIG"); envPath != "" {
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

	return filepath.Join(configDir, "glidescope", "config.yaml")
}

// getDataPath returns the path to the data directory.
// Priority: XDG_DATA_HOME/glidescope > ~/.local/share/glidescope
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "glidescope")
}

// loadConfig reads the config file, falling back to defaults when absent.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(getDataPath()), nil
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: glidescope <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                       Start the capture server")
		fmt.Println("  health                      Check server health")
		fmt.Println("  status                      Show capture status and counts")
		fmt.Println("  export logs|performance     Export a collection (use -format csv for CSV)")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "status":
		err = runStatus(ctx)
	case "export":
		err = runExport(ctx, os.Args[2:])
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
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	if cfg.Instance.Origin != "" {
		green.Print("    ▶ ")
		fmt.Printf("Origin:   %s\n", cfg.Instance.Origin)
	}
	fmt.Println()

	db, err := store.New(cfg.Database.Path, store.DefaultOptions())
	if err != nil {
		return fmt.Errorf("opening event store: %w", err)
	}
	defer db.Close()

	state, err := kvstore.Open(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}

	mgr := settings.New(db, state)
	mgr.Apply(ctx)

	broadcaster := notify.NewBroadcaster(logger)
	defer broadcaster.Close()

	// External edits to the state file re-apply tuning and notify subscribers
	go func() {
		err := state.Watch(ctx, func() {
			mgr.Apply(ctx)
			broadcaster.Publish(notify.TopicSettings, relay.ActionUpdateSettings, nil)
		})
		if err != nil {
			logger.Warn("state file watch unavailable", "error", err)
		}
	}()

	emitter := capture.EmitterFuncs{
		Log: func(entry *model.LogEntry) {
			if id, err := db.SaveLog(ctx, entry); err == nil {
				broadcaster.Publish(notify.TopicLogs, relay.ActionLogCaptured,
					map[string]any{"id": id, "logEntry": entry})
			}
		},
		Measure: func(m *model.Measurement) {
			if id, err := db.SaveMeasurement(ctx, m); err == nil && id != "" {
				broadcaster.Publish(notify.TopicPerformance, relay.ActionPerformanceCaptured,
					map[string]any{"id": id, "measurement": m})
			}
		},
	}
	hooks := capture.NewHooks(emitter, func() query.Thresholds {
		return db.Options().Thresholds
	}, &capture.RecordClient{})
	hooks.ConfigureMasking(mgr.Get(ctx))
	mgr.OnChange(hooks.ConfigureMasking)

	dispatcher := relay.NewDispatcher(db, mgr, state, broadcaster, hooks)
	pageRelay := relay.NewRelay(cfg.Instance.Origin, dispatcher)
	srv := server.New(dispatcher, pageRelay, broadcaster, db, cfg.Server.HTTPAddr)

	// Scheduled retention sweep, in addition to the per-save enforcement
	go runCleanupLoop(ctx, db, cfg.Retention.CleanupInterval, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("glidescope started", "http_addr", cfg.Server.HTTPAddr)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func runCleanupLoop(ctx context.Context, db *store.Store, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logs, err := db.CleanupLogs(ctx)
			if err != nil {
				logger.Warn("scheduled log cleanup failed", "error", err)
			}
			measurements, err := db.CleanupMeasurements(ctx)
			if err != nil {
				logger.Warn("scheduled measurement cleanup failed", "error", err)
			}
			logger.Info("scheduled cleanup complete",
				"logs_removed", logs,
				"measurements_removed", measurements)
		}
	}
}

func runHealth(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
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

// dispatch posts one action request to a running server and decodes the
// envelope.
func dispatch(ctx context.Context, cfg *config.Config, req *relay.Request) (map[string]any, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/message", cfg.Server.HTTPAddr)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var envelope struct {
		Type  string           `json:"type"`
		Data  map[string]any   `json:"data"`
		Error *relay.ErrorInfo `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if envelope.Type != relay.TypeSuccess {
		return nil, fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
	}
	return envelope.Data, nil
}

func runStatus(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := dispatch(ctx, cfg, &relay.Request{Action: relay.ActionGetStatus})
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	if enabled, _ := data["enabled"].(bool); enabled {
		green.Println("capture enabled")
	} else {
		red.Println("capture disabled")
	}
	fmt.Printf("logs:     %v\n", data["logCount"])
	fmt.Printf("snippets: %v\n", data["snippetCount"])
	return nil
}

func runExport(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: glidescope export logs|performance [-format json|csv]")
	}

	format := "json"
	for i, arg := range args[1:] {
		if arg == "-format" && i+2 < len(args) {
			format = args[i+2]
		}
	}

	var action string
	switch args[0] {
	case "logs":
		action = relay.ActionExportLogs
	case "performance":
		action = relay.ActionExportPerformance
	default:
		return fmt.Errorf("unknown collection %q (want logs or performance)", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := dispatch(ctx, cfg, &relay.Request{Action: action, Format: format})
	if err != nil {
		return err
	}

	payload, _ := data["data"].(string)
	fmt.Print(payload)
	if !strings.HasSuffix(payload, "\n") {
		fmt.Println()
	}
	return nil
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
