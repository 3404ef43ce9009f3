package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed endpoints.yaml
var endpointsYAML []byte

// ErrUnknownEndpoint is returned for a name the registry does not define.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

type namespace struct {
	Name      string         `yaml:"name"`
	Path      string         `yaml:"path"`
	Endpoints map[string]any `yaml:"endpoints"`
}

// Registry maps dotted endpoint names ("CATALOGS.HOTEL") to resource paths
// ("catalogs/hotel").
type Registry struct {
	paths map[string]string
	names []string
}

// ParseRegistry builds a Registry from YAML. Nested groups resolve
// recursively: a group key becomes a path segment and a name segment.
func ParseRegistry(data []byte) (*Registry, error) {
	var spaces []namespace
	if err := yaml.Unmarshal(data, &spaces); err != nil {
		return nil, fmt.Errorf("parse endpoints: %w", err)
	}

	r := &Registry{paths: make(map[string]string)}
	for _, ns := range spaces {
		if ns.Name == "" || ns.Path == "" {
			return nil, fmt.Errorf("namespace %q: name and path are required", ns.Name)
		}
		if err := r.resolve(ns.Name, ns.Path, ns.Endpoints); err != nil {
			return nil, err
		}
	}

	for name := range r.paths {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

func (r *Registry) resolve(name, parent string, node map[string]any) error {
	for key, v := range node {
		full := name + "." + key
		switch val := v.(type) {
		case string:
			r.paths[full] = parent + "/" + val
		case map[string]any:
			if err := r.resolve(full, parent+"/"+key, val); err != nil {
				return err
			}
		default:
			return fmt.Errorf("endpoint %s: unsupported value %T", full, v)
		}
	}
	return nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Endpoints returns the embedded registry. The YAML ships with the binary,
// so a parse failure is a build defect and panics.
func Endpoints() *Registry {
	defaultOnce.Do(func() {
		r, err := ParseRegistry(endpointsYAML)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Path resolves a dotted name.
func (r *Registry) Path(name string) (string, error) {
	p, ok := r.paths[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}
	return p, nil
}

// MustPath is Path for names known at compile time.
func (r *Registry) MustPath(name string) string {
	p, err := r.Path(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Names returns every dotted name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Namespace returns the names under a prefix such as "CATALOGS".
func (r *Registry) Namespace(prefix string) []string {
	var out []string
	for _, n := range r.names {
		if strings.HasPrefix(n, prefix+".") {
			out = append(out, n)
		}
	}
	return out
}

// Resolve accepts either a dotted name or a literal path and returns the
// path. Anything containing a slash is taken as a path.
func (r *Registry) Resolve(nameOrPath string) (string, error) {
	if strings.Contains(nameOrPath, "/") {
		return strings.Trim(nameOrPath, "/"), nil
	}
	return r.Path(nameOrPath)
}
