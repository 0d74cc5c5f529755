// ABOUTME: Store options, sentinel errors, and shared runtime state for the event store
// ABOUTME: One Store instance owns all four collections in a single SQLite database

package store

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/query"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation wraps write-time validation failures. No partial write occurs.
var ErrValidation = errors.New("validation failed")

// Options controls retention, caps, sampling, and slow thresholds. The zero
// value is unusable; use DefaultOptions.
type Options struct {
	LogRetention    time.Duration
	PerfRetention   time.Duration
	MaxLogs         int
	MaxMeasurements int
	SamplingRate    float64 // probability a measurement is persisted, [0,1]
	Thresholds      query.Thresholds
}

// DefaultOptions returns the built-in retention and threshold defaults.
func DefaultOptions() Options {
	return Options{
		LogRetention:    model.DefaultLogRetention,
		PerfRetention:   model.DefaultPerfRetention,
		MaxLogs:         model.DefaultMaxLogs,
		MaxMeasurements: model.DefaultMaxMeasurements,
		SamplingRate:    model.DefaultSamplingRate,
		Thresholds:      query.DefaultThresholds(),
	}
}

// optState guards the mutable runtime options shared across goroutines.
type optState struct {
	mu   sync.RWMutex
	opts Options
}

func (o *optState) get() Options {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.opts
}

func (o *optState) set(opts Options) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opts = opts
}

// SetOptions replaces the store's runtime options. Used when the settings
// document changes retention, sampling, or thresholds.
func (s *Store) SetOptions(opts Options) {
	s.opt.set(opts)
}

// Options returns the store's current runtime options.
func (s *Store) Options() Options {
	return s.opt.get()
}

// nowMillis is the store's clock, overridable in tests.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}

// sampleDraw is the uniform draw used by measurement sampling, overridable
// in tests.
var sampleDraw = rand.Float64
