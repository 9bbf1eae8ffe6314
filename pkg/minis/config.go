package minis

// config.go defines the internal configuration object and the functional
// options New accepts (spec §9 "functional options, idiomatic Go pattern").
//
// Design notes
// ------------
// - All fields get sensible defaults in defaultConfig().
// - Options never allocate unless strictly necessary - they just capture
//   values or pointers to external objects (registry, logger).
// - The config struct itself is unexported: callers only influence behavior
//   through Option.
//
// © 2025 minis authors. MIT License.

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/minisdb/minis/internal/workerpool"
)

// Profile selects a message/argument size ceiling (spec §9 Open Question:
// "profile" picks between an embedded-library budget and a networked-server
// budget; this module only ever runs embedded, but the distinction is kept
// so a future server front-end can reuse the same engine with a larger
// ceiling without touching this package).
type Profile int

const (
	// ProfileEmbedded is the default: small bulk-operation ceilings suited to
	// an in-process caller.
	ProfileEmbedded Profile = iota
	// ProfileServer raises the ceilings for a networked front-end sharing
	// this engine across many client connections.
	ProfileServer
)

const (
	maxBulkEmbedded = 1024
	maxBulkServer   = 65536
)

// MaxBulkKeys returns the mset/mget/mdel argument-count ceiling for the
// profile (spec §4.4 "oversized batch" edge case).
func (p Profile) MaxBulkKeys() int {
	if p == ProfileServer {
		return maxBulkServer
	}
	return maxBulkEmbedded
}

// Option configures an Engine at construction time.
type Option func(*config)

type config struct {
	shards              uint8
	maintenanceInterval time.Duration
	snapshotDir         string
	workerPoolSize      int
	logger              *zap.Logger
	registry            *prometheus.Registry
	profile             Profile
	maxEntries          int64 // 0 = unlimited
}

func defaultConfig() *config {
	return &config{
		shards:              16,
		maintenanceInterval: 100 * time.Millisecond,
		workerPoolSize:      workerpool.DefaultWorkers,
		logger:              zap.NewNop(),
		profile:             ProfileEmbedded,
	}
}

// WithShards sets the number of shards. Must be a power of two (spec §3
// "shard_count a power of two, for fast masking").
func WithShards(n uint8) Option {
	return func(c *config) { c.shards = n }
}

// WithMaintenanceInterval sets the tick period of the background sweep/save
// loop (spec §4.5 default ~100ms).
func WithMaintenanceInterval(d time.Duration) Option {
	return func(c *config) { c.maintenanceInterval = d }
}

// WithSnapshotDir enables periodic incremental snapshotting to dir (spec
// §4.7's incremental save). Leaving this unset disables the background
// writer; SaveFull/Load remain available either way.
func WithSnapshotDir(dir string) Option {
	return func(c *config) { c.snapshotDir = dir }
}

// WithWorkerPoolSize overrides the default worker count for large-container
// destruction (spec §4.6, default N=4).
func WithWorkerPoolSize(n int) Option {
	return func(c *config) { c.workerPoolSize = n }
}

// WithLogger plugs an external zap.Logger. The engine never logs on the hot
// path; only slow events (resize, sweep errors, snapshot I/O) are emitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection. Passing nil disables
// metrics (default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithProfile selects the bulk-operation size ceiling.
func WithProfile(p Profile) Option {
	return func(c *config) { c.profile = p }
}

// WithMaxEntries caps the total number of live entries across all shards.
// Operations that would create a new entry past this cap return OOM (spec
// §7). 0 (the default) means unlimited.
func WithMaxEntries(n int64) Option {
	return func(c *config) { c.maxEntries = n }
}

var (
	errInvalidShards = errors.New("minis: shards must be a power of two and > 0")
	errInvalidInterval = errors.New("minis: maintenance interval must be > 0")
)

// applyOptions copies user-supplied options into cfg and validates
// invariants.
func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.shards == 0 || cfg.shards&(cfg.shards-1) != 0 {
		return errInvalidShards
	}
	if cfg.maintenanceInterval <= 0 {
		return errInvalidInterval
	}
	return nil
}
