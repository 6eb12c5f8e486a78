package vintage

import (
	"fmt"
	"sort"
	"strings"
)

// acceptAllTokens select every value of an attribute. "Todos" is what the report
// dashboard sidebar sends.
var acceptAllTokens = []string{"todos", "all", "*"}

// Filters maps an attribute name to its accepted values.
type Filters map[string][]string

func isAcceptAll(values []string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		for _, token := range acceptAllTokens {
			if strings.EqualFold(strings.TrimSpace(v), token) {
				return true
			}
		}
	}
	return false
}

// Constrained returns the attributes that actually restrict rows, sorted by name, with
// their accepted values.
func (f Filters) Constrained() []Constraint {
	out := make([]Constraint, 0, len(f))
	for attr, values := range f {
		if isAcceptAll(values) {
			continue
		}
		out = append(out, Constraint{Attribute: attr, Values: values})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attribute < out[j].Attribute })
	return out
}

type Constraint struct {
	Attribute string
	Values    []string
}

// Registry lists the attributes the surrounding application allows to filter on.
type Registry struct {
	names []string
	known map[string]bool
}

func NewRegistry(names ...string) *Registry {
	r := &Registry{known: make(map[string]bool, len(names))}
	for _, n := range names {
		if r.known[n] {
			continue
		}
		r.known[n] = true
		r.names = append(r.names, n)
	}
	return r
}

func DefaultRegistry() *Registry {
	return NewRegistry(DefaultAttributes...)
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) Has(name string) bool {
	return r.known[name]
}

// Validate rejects filters on attributes the registry does not know.
func (r *Registry) Validate(f Filters) error {
	var unknown []string
	for attr := range f {
		if !r.Has(attr) {
			unknown = append(unknown, attr)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrUnknownAttribute, strings.Join(unknown, ", "))
	}
	return nil
}
