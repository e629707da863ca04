// Package registry holds the process-wide mapping from adapter name to
// constructor, mirroring the duck-typed adapter plugin lookup of the
// source system as a small, explicit Go registry.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/couchcryptid/osint-ingest/internal/domain"
)

// Constructor builds a named SourceAdapter instance.
type Constructor func() domain.SourceAdapter

var (
	mu    sync.RWMutex
	ctors = map[string]Constructor{}
)

// Register installs a constructor under name. Called from adapter package
// init()s or explicitly during process bootstrap.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	ctors[name] = ctor
}

// New builds the adapter registered under name. Looking up an unregistered
// name is a programmer error and panics — callers are expected to validate
// names against Names() at configuration time.
func New(name string) domain.SourceAdapter {
	mu.RLock()
	ctor, ok := ctors[name]
	mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("registry: unknown adapter %q", name))
	}
	return ctor()
}

// Names returns the sorted list of registered adapter names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(ctors))
	for name := range ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
