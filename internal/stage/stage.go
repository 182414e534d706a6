package stage

import "context"

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	DependsOn() []string
	Execute(ctx context.Context, st *State) (any, error)
}

// Skipper is implemented by stages that run conditionally, for example only
// for one content type.
type Skipper interface {
	ShouldSkip(st *State) bool
}

// Func adapts a function into a Stage.
type Func struct {
	StageName string
	Deps      []string
	Run       func(ctx context.Context, st *State) (any, error)
	Skip      func(st *State) bool
}

func (f Func) Name() string { return f.StageName }

func (f Func) DependsOn() []string { return f.Deps }

func (f Func) Execute(ctx context.Context, st *State) (any, error) {
	return f.Run(ctx, st)
}

func (f Func) ShouldSkip(st *State) bool {
	return f.Skip != nil && f.Skip(st)
}

// Skipped reports whether s should be skipped for st.
func Skipped(s Stage, st *State) bool {
	skipper, ok := s.(Skipper)
	return ok && skipper.ShouldSkip(st)
}
