package stage

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrResultMissing is returned when a stage result is requested before the
// stage ran.
var ErrResultMissing = errors.New("stage result missing")

// State carries stage results and free-form metadata between stages. It is
// never mutated after construction.
type State struct {
	results  map[string]any
	metadata map[string]any
}

// NewState returns an empty State.
func NewState() *State {
	return &State{}
}

// WithResult returns a copy of s with the result of stage name set.
func (s *State) WithResult(name string, value any) *State {
	next := s.clone()
	next.results = cloneWith(s.resultsMap(), name, value)
	return next
}

// WithMetadata returns a copy of s with metadata key set.
func (s *State) WithMetadata(key string, value any) *State {
	next := s.clone()
	next.metadata = cloneWith(s.metadataMap(), key, value)
	return next
}

// Result returns the result of stage name. The error names the missing stage
// and lists the stages that do have results.
func (s *State) Result(name string) (any, error) {
	if value, ok := s.resultsMap()[name]; ok {
		return value, nil
	}
	available := s.ResultNames()
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: %q (no results available)", ErrResultMissing, name)
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrResultMissing, name, strings.Join(available, ", "))
}

// HasResult reports whether stage name has a result.
func (s *State) HasResult(name string) bool {
	_, ok := s.resultsMap()[name]
	return ok
}

// ResultNames lists the stages with results, sorted.
func (s *State) ResultNames() []string {
	return slices.Sorted(maps.Keys(s.resultsMap()))
}

// Metadata returns metadata key.
func (s *State) Metadata(key string) (any, bool) {
	value, ok := s.metadataMap()[key]
	return value, ok
}

// ResultAs returns the result of stage name converted to T.
func ResultAs[T any](s *State, name string) (T, error) {
	var zero T
	value, err := s.Result(name)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("stage %q result has type %T, want %T", name, value, zero)
	}
	return typed, nil
}

// MetadataAs returns metadata key converted to T.
func MetadataAs[T any](s *State, key string) (T, bool) {
	var zero T
	value, ok := s.Metadata(key)
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	return typed, ok
}

func (s *State) clone() *State {
	if s == nil {
		return &State{}
	}
	return &State{results: s.results, metadata: s.metadata}
}

func (s *State) resultsMap() map[string]any {
	if s == nil {
		return nil
	}
	return s.results
}

func (s *State) metadataMap() map[string]any {
	if s == nil {
		return nil
	}
	return s.metadata
}

func cloneWith(src map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(src)+1)
	maps.Copy(out, src)
	out[key] = value
	return out
}
