package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]ImportSchema)
	registryMu sync.RWMutex
)

// Register adds an import schema to the registry.
// Panics if a schema with the same kind is already registered or has no mapper.
func Register(schema ImportSchema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[schema.Kind]; exists {
		panic(fmt.Sprintf("import kind already registered: %s", schema.Kind))
	}
	if schema.Map == nil {
		panic(fmt.Sprintf("import kind %s has no mapper", schema.Kind))
	}

	registry[schema.Kind] = schema
}

// Get returns a schema by kind.
// Returns false if not found.
func Get(kind string) (ImportSchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	schema, ok := registry[kind]
	return schema, ok
}

// All returns all registered schemas sorted by kind.
func All() []ImportSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ImportSchema, 0, len(registry))
	for _, schema := range registry {
		result = append(result, schema)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})

	return result
}

// Kinds returns the registered kind names, sorted.
func Kinds() []string {
	schemas := All()
	kinds := make([]string, len(schemas))
	for i, s := range schemas {
		kinds[i] = s.Kind
	}
	return kinds
}

// Clear removes all registered schemas.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ImportSchema)
}
