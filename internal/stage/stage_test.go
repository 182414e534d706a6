package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"talkvault/internal/services"
)

func stub(name string, deps ...string) Func {
	return Func{
		StageName: name,
		Deps:      deps,
		Run: func(context.Context, *State) (any, error) {
			return name + "-result", nil
		},
	}
}

func stageNames(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.Name()
	}
	return out
}

func TestBuildPipelineOrdersDependenciesAlphabetically(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(
		stub("save", "summarize", "longread", "chunk"),
		stub("parse"),
		stub("transcribe", "parse"),
		stub("clean", "transcribe"),
		stub("chunk", "clean"),
		stub("longread", "clean"),
		stub("summarize", "clean"),
	)

	order, err := reg.BuildPipeline("save")
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	got := strings.Join(stageNames(order), ",")
	want := "parse,transcribe,clean,chunk,longread,summarize,save"
	if got != want {
		t.Fatalf("order = %s, want %s", got, want)
	}
}

func TestBuildPipelineIncludesOnlyTransitiveDependencies(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(stub("a"), stub("b", "a"), stub("c", "b"), stub("unrelated"))

	order, err := reg.BuildPipeline("c")
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	if got := strings.Join(stageNames(order), ","); got != "a,b,c" {
		t.Fatalf("order = %s", got)
	}

	all, err := reg.BuildPipeline()
	if err != nil {
		t.Fatalf("BuildPipeline all: %v", err)
	}
	if got := strings.Join(stageNames(all), ","); got != "a,b,c,unrelated" {
		t.Fatalf("full order = %s", got)
	}
}

func TestBuildPipelineIsDeterministic(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(stub("root"), stub("zeta", "root"), stub("alpha", "root"), stub("mid", "root"))
	for i := 0; i < 20; i++ {
		order, err := reg.BuildPipeline("zeta", "alpha", "mid")
		if err != nil {
			t.Fatalf("BuildPipeline: %v", err)
		}
		if got := strings.Join(stageNames(order), ","); got != "root,alpha,mid,zeta" {
			t.Fatalf("iteration %d: order = %s", i, got)
		}
	}
}

func TestBuildPipelineDetectsCycle(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(stub("a"), stub("b", "a", "c"), stub("c", "b"), stub("d", "c"))

	_, err := reg.BuildPipeline("d")
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	if !strings.Contains(err.Error(), "b, c, d") {
		t.Fatalf("expected remaining stages in error, got %v", err)
	}
}

func TestBuildPipelineUnknownStage(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(stub("a", "missing"))
	if _, err := reg.BuildPipeline("a"); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
	if _, err := reg.Get("nope"); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage from Get, got %v", err)
	}
}

func TestRegisterRejectsDuplicatesAndEmptyNames(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(stub("a")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(stub("a")); !errors.Is(err, ErrDuplicateStage) {
		t.Fatalf("expected ErrDuplicateStage, got %v", err)
	}
	if err := reg.Register(stub(" ")); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestStateIsImmutable(t *testing.T) {
	base := NewState().WithResult("parse", 1).WithMetadata("video_id", "v1")
	next := base.WithResult("clean", "text").WithResult("parse", 2)

	if base.HasResult("clean") {
		t.Fatal("base state must not see later results")
	}
	if v, _ := base.Result("parse"); v != 1 {
		t.Fatalf("base parse result changed to %v", v)
	}
	if v, _ := next.Result("parse"); v != 2 {
		t.Fatalf("next parse result = %v", v)
	}
	if id, ok := MetadataAs[string](next, "video_id"); !ok || id != "v1" {
		t.Fatalf("metadata not carried over: %q %v", id, ok)
	}
}

func TestResultMissingListsAvailable(t *testing.T) {
	st := NewState().WithResult("transcribe", "raw").WithResult("parse", "meta")
	_, err := st.Result("clean")
	if !errors.Is(err, ErrResultMissing) {
		t.Fatalf("expected ErrResultMissing, got %v", err)
	}
	for _, want := range []string{`"clean"`, "parse, transcribe"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
	if _, err := NewState().Result("x"); err == nil || !strings.Contains(err.Error(), "no results") {
		t.Fatalf("unexpected error for empty state: %v", err)
	}
}

func TestResultAsChecksType(t *testing.T) {
	st := NewState().WithResult("n", 42)
	if v, err := ResultAs[int](st, "n"); err != nil || v != 42 {
		t.Fatalf("ResultAs int = %v, %v", v, err)
	}
	if _, err := ResultAs[string](st, "n"); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestRunThreadsStateAndHonoursSkipper(t *testing.T) {
	var skipped []string
	stages := []Stage{
		stub("parse"),
		Func{StageName: "story", Run: func(context.Context, *State) (any, error) {
			t.Fatal("skipped stage executed")
			return nil, nil
		}, Skip: func(*State) bool { return true }},
		Func{StageName: "clean", Run: func(_ context.Context, st *State) (any, error) {
			v, err := ResultAs[string](st, "parse")
			return v + "+clean", err
		}},
	}
	st, err := Run(context.Background(), stages, nil, Hooks{OnSkip: func(s Stage) { skipped = append(skipped, s.Name()) }})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, _ := ResultAs[string](st, "clean"); v != "parse-result+clean" {
		t.Fatalf("clean result = %q", v)
	}
	if st.HasResult("story") || len(skipped) != 1 || skipped[0] != "story" {
		t.Fatalf("story should be skipped: %v", skipped)
	}
}

func TestRunTagsFailuresWithStage(t *testing.T) {
	boom := errors.New("boom")
	stages := []Stage{
		stub("parse"),
		Func{StageName: "transcribe", Run: func(context.Context, *State) (any, error) { return nil, boom }},
		stub("clean"),
	}
	st, err := Run(context.Background(), stages, NewState(), Hooks{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if name, ok := services.StageOf(err); !ok || name != "transcribe" {
		t.Fatalf("expected transcribe stage tag, got %q", name)
	}
	if !st.HasResult("parse") || st.HasResult("clean") {
		t.Fatalf("unexpected results: %v", st.ResultNames())
	}
}

func TestRunAroundCanSubstituteResult(t *testing.T) {
	stages := []Stage{Func{StageName: "chunk", Run: func(context.Context, *State) (any, error) {
		return nil, errors.New("llm down")
	}}}
	hooks := Hooks{Around: func(ctx context.Context, s Stage, st *State, next func(context.Context) (any, error)) (any, error) {
		if _, err := next(ctx); err != nil {
			return "fallback", nil
		}
		return nil, nil
	}}
	st, err := Run(context.Background(), stages, nil, hooks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, _ := ResultAs[string](st, "chunk"); v != "fallback" {
		t.Fatalf("chunk result = %q", v)
	}
}
