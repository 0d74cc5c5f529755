// ABOUTME: Settings manager: merged reads, dot-path access, import/export,
// ABOUTME: dual-write mirror, and pushing tuning values into the event store

package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/glidescope/glidescope/internal/kvstore"
	"github.com/glidescope/glidescope/internal/query"
	"github.com/glidescope/glidescope/internal/store"
)

// Manager mediates all settings access. Reads merge the stored document
// over the defaults tree; writes persist to the event store, mirror to the
// key-value file, and retune the store's retention and sampling options.
type Manager struct {
	db     *store.Store
	mirror *kvstore.Store
	logger *slog.Logger

	// mu serializes every read-merge-write cycle so concurrent writes
	// cannot interleave their Get and save halves and drop an update.
	mu       sync.Mutex
	onChange func(doc map[string]any)
}

// New builds a Manager. The mirror may be nil, in which case dual-writes
// are skipped.
func New(db *store.Store, mirror *kvstore.Store) *Manager {
	return &Manager{
		db:     db,
		mirror: mirror,
		logger: slog.Default().With("component", "settings"),
	}
}

// OnChange registers a callback invoked with the merged document after
// every successful write. Used to fan settings changes out to subscribers.
func (m *Manager) OnChange(fn func(doc map[string]any)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Get returns the full merged settings document. A missing or unreadable
// stored document yields the defaults.
func (m *Manager) Get(ctx context.Context) map[string]any {
	doc := Defaults()
	if stored, ok := m.db.GetSettingsDoc(ctx); ok {
		doc = deepMerge(doc, stored)
	}
	return doc
}

// Update deep-merges a partial document onto the current settings and
// persists the result. Returns the merged document.
func (m *Manager) Update(ctx context.Context, partial map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := deepMerge(m.Get(ctx), partial)
	if err := m.save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetSetting resolves a dot path like "logs.enabled" against the merged
// document. The second return is false when any path segment is absent.
func (m *Manager) GetSetting(ctx context.Context, path string) (any, bool) {
	return lookup(m.Get(ctx), path)
}

// SetSetting writes a single value at a dot path, creating intermediate
// maps as needed, then persists the whole document.
func (m *Manager) SetSetting(ctx context.Context, path string, value any) error {
	if path == "" {
		return fmt.Errorf("%w: empty settings path", store.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.Get(ctx)
	keys := strings.Split(path, ".")
	current := doc
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[key] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = value

	return m.save(ctx, doc)
}

// Import parses a full settings document, validates it, merges it over the
// defaults, and persists the result.
func (m *Manager) Import(ctx context.Context, jsonData string) error {
	var doc map[string]any
	if err := json.Unmarshal([]byte(jsonData), &doc); err != nil {
		return fmt.Errorf("%w: parsing settings import: %v", store.ErrValidation, err)
	}
	if err := validateDoc(doc); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx, deepMerge(Defaults(), doc))
}

// Export serializes the merged settings document as pretty-printed JSON.
func (m *Manager) Export(ctx context.Context) (string, error) {
	data, err := json.MarshalIndent(m.Get(ctx), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding settings export: %w", err)
	}
	return string(data), nil
}

// Apply pushes the current merged settings into the event store options.
// Called once at startup so persisted tuning takes effect before writes.
func (m *Manager) Apply(ctx context.Context) {
	m.applyStoreOptions(m.Get(ctx))
}

// Reset restores the defaults, overwriting any stored document.
func (m *Manager) Reset(ctx context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := Defaults()
	if err := m.save(ctx, doc); err != nil {
		return nil, err
	}
	m.logger.Info("settings reset to defaults")
	return doc, nil
}

func (m *Manager) save(ctx context.Context, doc map[string]any) error {
	if err := m.db.PutSettingsDoc(ctx, doc); err != nil {
		return err
	}

	if m.mirror != nil {
		if err := m.mirror.Set(kvstore.KeySettings, doc); err != nil {
			m.logger.Warn("mirroring settings failed", "error", err)
		}
		if err := m.mirror.Set(kvstore.KeyLastSync, time.Now().UnixMilli()); err != nil {
			m.logger.Warn("recording settings sync time failed", "error", err)
		}
	}

	m.applyStoreOptions(doc)

	// Caller holds mu, so the callback read is already serialized.
	if m.onChange != nil {
		m.onChange(doc)
	}
	return nil
}

// applyStoreOptions retunes the event store from the settings document so
// retention, caps, sampling, and slow thresholds take effect immediately.
func (m *Manager) applyStoreOptions(doc map[string]any) {
	opts := store.DefaultOptions()

	if d, ok := floatAt(doc, "logs.retentionDays"); ok {
		opts.LogRetention = time.Duration(d*24) * time.Hour
	}
	if n, ok := intAt(doc, "logs.maxLogs"); ok {
		opts.MaxLogs = n
	}
	if d, ok := floatAt(doc, "performance.retentionDays"); ok {
		opts.PerfRetention = time.Duration(d*24) * time.Hour
	}
	if n, ok := intAt(doc, "performance.maxMeasurements"); ok {
		opts.MaxMeasurements = n
	}
	if r, ok := floatAt(doc, "performance.samplingRate"); ok {
		opts.SamplingRate = r
	}
	th := query.DefaultThresholds()
	if v, ok := floatAt(doc, "performance.slowQueryThreshold"); ok {
		th.SlowQuery = v
	}
	if v, ok := floatAt(doc, "performance.slowAPIThreshold"); ok {
		th.SlowAPI = v
	}
	opts.Thresholds = th

	m.db.SetOptions(opts)
}

// validateDoc checks the structural contract an imported document must
// meet before it can replace the stored settings.
func validateDoc(doc map[string]any) error {
	for _, section := range []string{"logs", "performance", "ui"} {
		if _, ok := doc[section].(map[string]any); !ok {
			return fmt.Errorf("%w: missing required section %q", store.ErrValidation, section)
		}
	}

	if v, ok := lookup(doc, "logs.enabled"); ok {
		if _, isBool := v.(bool); !isBool {
			return fmt.Errorf("%w: logs.enabled must be a boolean", store.ErrValidation)
		}
	}

	if v, ok := lookup(doc, "performance.samplingRate"); ok {
		rate, isNum := asFloat(v)
		if !isNum {
			return fmt.Errorf("%w: performance.samplingRate must be a number", store.ErrValidation)
		}
		if err := validation.Validate(rate, validation.Min(0.0), validation.Max(1.0)); err != nil {
			return fmt.Errorf("%w: performance.samplingRate: %v", store.ErrValidation, err)
		}
	}

	return nil
}

// lookup walks a dot path through nested maps.
func lookup(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// asFloat normalizes the numeric types a settings value can arrive as:
// float64 from JSON decoding, int from in-process callers.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func floatAt(doc map[string]any, path string) (float64, bool) {
	v, ok := lookup(doc, path)
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

func intAt(doc map[string]any, path string) (int, bool) {
	f, ok := floatAt(doc, path)
	if !ok {
		return 0, false
	}
	return int(f), true
}
