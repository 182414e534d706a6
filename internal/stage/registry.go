package stage

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrUnknownStage is returned for a stage name that was never registered.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrDuplicateStage is returned when a name is registered twice.
	ErrDuplicateStage = errors.New("duplicate stage")
	// ErrCycle is returned when dependencies cannot be ordered.
	ErrCycle = errors.New("stage dependency cycle")
)

// Registry holds stages by name.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds s to the registry.
func (r *Registry) Register(s Stage) error {
	if s == nil {
		return errors.New("register stage: nil stage")
	}
	name := strings.TrimSpace(s.Name())
	if name == "" {
		return errors.New("register stage: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateStage, name)
	}
	r.stages[name] = s
	return nil
}

// MustRegister registers every stage and panics on error. Intended for
// package-level wiring of a fixed stage set.
func (r *Registry) MustRegister(stages ...Stage) {
	for _, s := range stages {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Get returns the stage registered under name.
func (r *Registry) Get(name string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return s, nil
}

// Names lists registered stage names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.stages))
}

// BuildPipeline returns the requested stages plus their transitive
// dependencies in execution order. With no names, every registered stage is
// included.
func (r *Registry) BuildPipeline(names ...string) ([]Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		names = slices.Sorted(maps.Keys(r.stages))
	}
	selected, err := r.closure(names)
	if err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(selected))
	dependents := make(map[string][]string, len(selected))
	for name := range selected {
		deps := uniqueDeps(r.stages[name].DependsOn())
		indegree[name] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, degree := range indegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]Stage, 0, len(selected))
	for len(ready) > 0 {
		slices.Sort(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, r.stages[name])
		delete(indegree, name)
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(indegree) > 0 {
		remaining := slices.Sorted(maps.Keys(indegree))
		return nil, fmt.Errorf("%w among: %s", ErrCycle, strings.Join(remaining, ", "))
	}
	return order, nil
}

func (r *Registry) closure(names []string) (map[string]struct{}, error) {
	selected := make(map[string]struct{})
	queue := slices.Clone(names)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, seen := selected[name]; seen {
			continue
		}
		s, ok := r.stages[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
		}
		selected[name] = struct{}{}
		queue = append(queue, s.DependsOn()...)
	}
	return selected, nil
}

func uniqueDeps(deps []string) []string {
	out := make([]string, 0, len(deps))
	for _, dep := range deps {
		if !slices.Contains(out, dep) {
			out = append(out, dep)
		}
	}
	return out
}
