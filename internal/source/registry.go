package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"Minerva/internal/source/schema"
	"Minerva/pkg/logger"
)

// Registry owns the set of known source adapters. It is an explicit object
// handed to its consumers rather than package-level state, so tests and
// services can each hold their own.
//
// Initialized adapters are cached per (source type, config fingerprint):
// repeated requests with the same configuration reuse one instance, while a
// different configuration for the same type gets its own. A failed
// Initialize is never cached, so the next request retries from scratch.
type Registry struct {
	log *logger.Logger

	mu           sync.RWMutex
	constructors map[string]Constructor
	capabilities map[string]schema.Capabilities

	// initLocks serializes initialization per source type so concurrent
	// requests for the same adapter do not race Initialize.
	initLocks map[string]*sync.Mutex

	cacheMu sync.RWMutex
	cache   map[string]Adapter // key: sourceType + "\x00" + config fingerprint
}

// RegisterOption tweaks a single Register call.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	allowOverride bool
}

// AllowOverride permits replacing an existing registration. Without it a
// duplicate registration fails with ErrDuplicateRegistration.
func AllowOverride() RegisterOption {
	return func(o *registerOptions) { o.allowOverride = true }
}

// NewRegistry creates an empty Registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		log:          log,
		constructors: make(map[string]Constructor),
		capabilities: make(map[string]schema.Capabilities),
		initLocks:    make(map[string]*sync.Mutex),
		cache:        make(map[string]Adapter),
	}
}

// Register adds a constructor for a source type. Capabilities are captured
// at registration time from a throwaway instance, so discovery never
// triggers initialization. Registering an already-known type fails unless
// AllowOverride is given.
func (r *Registry) Register(sourceType string, ctor Constructor, opts ...RegisterOption) error {
	if sourceType == "" {
		return fmt.Errorf("%w: empty source type", ErrInvalidInput)
	}
	if ctor == nil {
		return fmt.Errorf("%w: nil constructor for %q", ErrInvalidInput, sourceType)
	}

	var options registerOptions
	for _, opt := range opts {
		opt(&options)
	}

	probe, err := ctor(Config{})
	if err != nil {
		return fmt.Errorf("constructing probe adapter for %q: %w", sourceType, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[sourceType]; exists && !options.allowOverride {
		return fmt.Errorf("%w: %q", ErrDuplicateRegistration, sourceType)
	}

	r.constructors[sourceType] = ctor
	r.capabilities[sourceType] = probe.Capabilities()
	if _, ok := r.initLocks[sourceType]; !ok {
		r.initLocks[sourceType] = &sync.Mutex{}
	}

	r.log.WithFields(map[string]interface{}{"source_type": sourceType}).
		Info("registered source adapter")
	return nil
}

// Adapter returns an initialized adapter for the source type and
// configuration, creating and initializing one on first use.
func (r *Registry) Adapter(ctx context.Context, sourceType string, cfg Config) (Adapter, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[sourceType]
	lock := r.initLocks[sourceType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceType, sourceType)
	}

	key := sourceType + "\x00" + cfg.Fingerprint()

	r.cacheMu.RLock()
	cached, hit := r.cache[key]
	r.cacheMu.RUnlock()
	if hit {
		return cached, nil
	}

	lock.Lock()
	defer lock.Unlock()

	// Re-check under the init lock; another request may have won the race.
	r.cacheMu.RLock()
	cached, hit = r.cache[key]
	r.cacheMu.RUnlock()
	if hit {
		return cached, nil
	}

	adapter, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing adapter %q: %w", sourceType, err)
	}
	if err := adapter.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing adapter %q: %w", sourceType, err)
	}

	r.cacheMu.Lock()
	r.cache[key] = adapter
	r.cacheMu.Unlock()

	r.log.WithFields(map[string]interface{}{"source_type": sourceType}).
		Info("initialized source adapter")
	return adapter, nil
}

// Capabilities lists the capabilities of every registered source type,
// sorted by type, without initializing anything.
func (r *Registry) Capabilities() []schema.Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schema.Capabilities, 0, len(r.capabilities))
	for _, caps := range r.capabilities {
		out = append(out, caps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceType < out[j].SourceType })
	return out
}

// Types returns the registered source type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CleanupAll tears down every cached adapter and empties the cache. The
// first cleanup error is returned but every adapter is attempted.
func (r *Registry) CleanupAll() error {
	r.cacheMu.Lock()
	adapters := r.cache
	r.cache = make(map[string]Adapter)
	r.cacheMu.Unlock()

	var firstErr error
	for key, adapter := range adapters {
		if err := adapter.Cleanup(); err != nil {
			r.log.WithError(err).Error("adapter cleanup failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("cleaning up %q: %w", key, err)
			}
		}
	}
	return firstErr
}
