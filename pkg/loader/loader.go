// Package loader keeps the program images kernos can start.
//
// An Image pairs the segments to load into a fresh address space with the
// Go function that plays the role of the program's machine code.
package loader

import (
	"errors"
	"sort"
	"sync"

	"kernos/pkg/mm"
	"kernos/pkg/ulib"
)

// Registry errors.
var (
	ErrAppExists  = errors.New("app already registered")
	ErrInvalidApp = errors.New("invalid app image")
)

// Program is the body of a user program. Its return value is the exit code.
type Program func(env *ulib.Env) int

// Image is a loadable program.
type Image struct {
	// Name is the name the program is looked up by.
	Name string
	// Segments are mapped into the new address space, user-accessible.
	Segments []mm.Segment
	// Program runs when the process first returns to user mode.
	Program Program
}

// Registry maps app names to images.
type Registry struct {
	apps map[string]*Image
	mu   sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		apps: make(map[string]*Image),
	}
}

// Register adds an image.
func (r *Registry) Register(img *Image) error {
	if img == nil || img.Name == "" || img.Program == nil {
		return ErrInvalidApp
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.apps[img.Name]; ok {
		return ErrAppExists
	}
	r.apps[img.Name] = img
	return nil
}

// GetAppDataByName returns the image registered under name.
func (r *Registry) GetAppDataByName(name string) (*Image, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	img, ok := r.apps[name]
	return img, ok
}

// ListApps returns the registered names in sorted order.
func (r *Registry) ListApps() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.apps))
	for name := range r.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds an image to the default registry.
func Register(img *Image) error {
	return defaultRegistry.Register(img)
}

// GetAppDataByName looks an image up in the default registry.
func GetAppDataByName(name string) (*Image, bool) {
	return defaultRegistry.GetAppDataByName(name)
}

// ListApps lists the default registry.
func ListApps() []string {
	return defaultRegistry.ListApps()
}
