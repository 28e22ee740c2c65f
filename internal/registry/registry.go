// Package registry memoizes per-feature dependencies for the process lifetime.
//
// The first resolution of a feature constructs its value; every later
// resolution returns the same instance. Concurrent first callers share a
// single construction.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrTypeMismatch is returned when a feature is cached under a different type.
var ErrTypeMismatch = errors.New("registry: cached dependency has a different type")

// Registry caches one constructed instance per feature name.
type Registry struct {
	group singleflight.Group

	mu        sync.RWMutex
	instances map[string]any
	order     []string
	hooks     []func(feature string)
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		instances: make(map[string]any),
	}
}

// OnConstruct registers a callback invoked after each successful construction.
func (r *Registry) OnConstruct(fn func(feature string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Resolve returns the cached instance for feature, constructing it with build
// on first use. A failed build is not cached.
func Resolve[T any](r *Registry, feature string, build func() (T, error)) (T, error) {
	var zero T

	if v, ok := r.lookup(feature); ok {
		return cast[T](feature, v)
	}

	v, err, _ := r.group.Do(feature, func() (any, error) {
		// Another flight may have finished between lookup and Do.
		if v, ok := r.lookup(feature); ok {
			return v, nil
		}

		built, err := build()
		if err != nil {
			return nil, err
		}

		r.store(feature, built)
		return built, nil
	})
	if err != nil {
		return zero, fmt.Errorf("resolve %s: %w", feature, err)
	}

	return cast[T](feature, v)
}

// Resolved reports whether feature has been constructed.
func (r *Registry) Resolved(feature string) bool {
	_, ok := r.lookup(feature)
	return ok
}

// Lookup returns the constructed instance for feature without building it.
func Lookup[T any](r *Registry, feature string) (T, bool) {
	var zero T
	v, ok := r.lookup(feature)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Features returns the constructed feature names in construction order.
func (r *Registry) Features() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Close closes constructed instances in reverse construction order.
// Instances implementing io.Closer, interface{ Close() } or
// interface{ Close(context.Context) error } are closed; others are skipped.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	order := r.order
	instances := r.instances
	r.order = nil
	r.instances = make(map[string]any)
	r.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		feature := order[i]
		if err := closeInstance(ctx, instances[feature]); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", feature, err))
		}
	}

	return errors.Join(errs...)
}

// Reset drops every cached instance without closing it.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]any)
	r.order = nil
}

func (r *Registry) lookup(feature string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.instances[feature]
	return v, ok
}

func (r *Registry) store(feature string, v any) {
	r.mu.Lock()
	r.instances[feature] = v
	r.order = append(r.order, feature)
	hooks := r.hooks
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(feature)
	}
}

func cast[T any](feature string, v any) (T, error) {
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s is %T", ErrTypeMismatch, feature, v)
	}
	return typed, nil
}

func closeInstance(ctx context.Context, v any) error {
	switch c := v.(type) {
	case interface{ Close(context.Context) error }:
		return c.Close(ctx)
	case io.Closer:
		return c.Close()
	case interface{ Close() }:
		c.Close()
	}
	return nil
}
