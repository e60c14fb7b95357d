// Package build defines the contract every builder kind implements, the
// kind registry, and the steps builders share.
package build

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/trustedanalytics/platform-parent/src/config"
)

// Category is the output subdirectory an archive is written to.
type Category string

const (
	Tools Category = "tools"
	Apps  Category = "apps"
	Files Category = "files"
)

// Categories lists every output subdirectory in creation order.
var Categories = []Category{Tools, Apps, Files}

// Fetched is what a fetch step resolved. An empty Ref records nothing in
// the run's refs manifest.
type Fetched struct {
	Ref string
}

// Builder is the interface every builder kind implements. The pipeline
// calls Fetch, Build and Package in order and stops at the first error.
type Builder interface {
	Category() Category
	Fetch(ctx context.Context) (Fetched, error)
	Build(ctx context.Context) error
	// Package writes archives into destDir and returns their paths.
	Package(ctx context.Context, destDir string) ([]string, error)
}

// Constructor creates a builder for one project.
type Constructor func(p config.Project, env *Env) Builder

// Registry maps builder kinds to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

// Register adds a constructor. Registering a kind twice panics.
func (r *Registry) Register(kind string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[kind]; exists {
		panic(fmt.Sprintf("build: duplicate builder registration: %s", kind))
	}
	r.ctors[kind] = ctor
}

// New constructs the builder for p.Builder.
func (r *Registry) New(p config.Project, env *Env) (Builder, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[p.Builder]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuilder, p.Builder)
	}
	return ctor(p, env), nil
}

// Kinds returns the sorted registered kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Default is populated from init() in the builders package.
var Default = NewRegistry()

// Register adds a constructor to the default registry.
func Register(kind string, ctor Constructor) {
	Default.Register(kind, ctor)
}

// Kinds returns the kinds in the default registry.
func Kinds() []string {
	return Default.Kinds()
}
