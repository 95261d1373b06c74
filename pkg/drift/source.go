package drift

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"clearway/meridian/pkg/claims"
)

// Source supplies the current schema description per API name. The static
// file source stands in for a live introspection call against the upstream.
type Source interface {
	// Schemas returns the current schema description per API name.
	Schemas() (map[string]*claims.APISchema, error)
}

// FileSource reads schema descriptions from a YAML file of the form:
//
//	apis:
//	  amazon_orders:
//	    endpoints: [/orders, /orders/{id}]
//	    fields: [order_id, amount, carrier]
//	    claim_types: [lost_package, shipping_damage]
type FileSource struct {
	path string

	mu      sync.RWMutex
	schemas map[string]*claims.APISchema
}

type schemaFile struct {
	APIs map[string]*claims.APISchema `yaml:"apis"`
}

// NewFileSource creates a source over the given YAML file and loads it once.
func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the schema file, replacing the in-memory descriptions.
func (s *FileSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read schema source %q: %w", s.path, err)
	}

	var parsed schemaFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse schema source %q: %w", s.path, err)
	}

	s.mu.Lock()
	s.schemas = parsed.APIs
	s.mu.Unlock()
	return nil
}

// Schemas returns the loaded schema descriptions.
func (s *FileSource) Schemas() (map[string]*claims.APISchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*claims.APISchema, len(s.schemas))
	for name, schema := range s.schemas {
		out[name] = schema
	}
	return out, nil
}

// StaticSource serves a fixed schema set; used in tests.
type StaticSource map[string]*claims.APISchema

func (s StaticSource) Schemas() (map[string]*claims.APISchema, error) {
	return s, nil
}

// apiNames returns the source's API names in stable order.
func apiNames(schemas map[string]*claims.APISchema) []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
