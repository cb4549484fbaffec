// Package driver exposes decoder backends to the host service. A Driver
// builds Devices from configuration; a Device starts sessions.
package driver

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dbehnke/mbedecode/internal/session"
)

var (
	ErrDuplicateDriver = errors.New("driver: identifier already registered")
	ErrUnknownDriver   = errors.New("driver: no driver with that identifier")
)

// Driver builds devices from a flat string configuration
type Driver interface {
	Identifier() string
	BuildFromConfiguration(config map[string]string) (Device, error)
}

// Device starts decode sessions for the codecs it lists
type Device interface {
	Codecs() []string
	StartSession(settings session.Settings) (*session.Session, error)
}

// Registry maps driver identifiers to drivers. It is filled explicitly at
// startup.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds d under its identifier
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := d.Identifier()
	if _, exists := r.drivers[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDriver, id)
	}
	r.drivers[id] = d
	return nil
}

// Lookup returns the driver registered under id
func (r *Registry) Lookup(id string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, id)
	}
	return d, nil
}

// Identifiers lists the registered drivers in sorted order
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.drivers))
	for id := range r.drivers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildDevice looks up id and builds a device from config
func (r *Registry) BuildDevice(id string, config map[string]string) (Device, error) {
	d, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return d.BuildFromConfiguration(config)
}
