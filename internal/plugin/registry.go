// Package plugin hosts named external services that scripts call through loadPlugin,
// pluginGet and pluginRequest.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "plugin:registry"

var (
	ErrNotFound  = errors.New("plugin not found")
	ErrNotLoaded = errors.New("plugin not loaded")
)

// Service is a named, versioned external collaborator.
type Service interface {
	Name() string
	Version() *masterminds.Version
	Load(ctx context.Context, sourceURL string) (bool, error)
	Get(ctx context.Context, prerequisite, key string) (string, error)
}

// Registry resolves plugin references of the form "name" or "name@constraint"
// (e.g. "TestAPI@^1.2") to the newest registered version that satisfies them.
type Registry struct {
	mu       sync.RWMutex
	services map[string][]Service
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[string][]Service)}
}

func (r *Registry) Register(s Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.services[s.Name()] {
		if existing.Version().Equal(s.Version()) {
			return fmt.Errorf("%s - %s %s is already registered", logPrefix, s.Name(), s.Version())
		}
	}
	list := append(r.services[s.Name()], s)
	sort.Slice(list, func(i, j int) bool { return list[i].Version().GreaterThan(list[j].Version()) })
	r.services[s.Name()] = list
	slog.Debug(fmt.Sprintf("%s - registered %s %s", logPrefix, s.Name(), s.Version()))
	return nil
}

// Resolve finds the service for ref.
func (r *Registry) Resolve(ref string) (Service, error) {
	name, constraintText, hasConstraint := strings.Cut(ref, "@")
	r.mu.RLock()
	list := r.services[name]
	r.mu.RUnlock()
	if len(list) == 0 {
		return nil, fmt.Errorf("%s - %q: %w", logPrefix, name, ErrNotFound)
	}
	if !hasConstraint {
		return list[0], nil
	}
	constraint, err := masterminds.NewConstraint(constraintText)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version constraint %q: %w", logPrefix, constraintText, err)
	}
	for _, s := range list {
		if constraint.Check(s.Version()) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%s - no version of %s satisfies %s: %w", logPrefix, name, constraintText, ErrNotFound)
}

func (r *Registry) Load(ctx context.Context, ref, sourceURL string) (bool, error) {
	s, err := r.Resolve(ref)
	if err != nil {
		return false, err
	}
	return s.Load(ctx, sourceURL)
}

func (r *Registry) Get(ctx context.Context, ref, prerequisite, key string) (string, error) {
	s, err := r.Resolve(ref)
	if err != nil {
		return "", err
	}
	return s.Get(ctx, prerequisite, key)
}

// Names lists registered plugins as "name@version" in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, list := range r.services {
		for _, s := range list {
			out = append(out, name+"@"+s.Version().String())
		}
	}
	sort.Strings(out)
	return out
}

// ParseEndpoint splits a "name@version=url" configuration entry.
func ParseEndpoint(entry string) (name string, version *masterminds.Version, url string, err error) {
	ref, url, ok := strings.Cut(entry, "=")
	if !ok || url == "" {
		return "", nil, "", fmt.Errorf("%s - endpoint %q must look like name@version=url", logPrefix, entry)
	}
	name, v, ok := strings.Cut(ref, "@")
	if !ok {
		v = "1.0.0"
	}
	version, err = masterminds.NewVersion(v)
	if err != nil {
		return "", nil, "", fmt.Errorf("%s - endpoint %q has an invalid version: %w", logPrefix, entry, err)
	}
	return name, version, url, nil
}
