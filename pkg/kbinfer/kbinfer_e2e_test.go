package kbinfer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb/memkb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb/sqlitekb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/scaffold"
	"github.com/cognicore/kbinfer/pkg/kbinfer/verdict"
)

func seed(t *testing.T, ctx context.Context, store kb.KB) *Engine {
	t.Helper()
	engine, err := New(ctx, Options{Store: store, PersistVerdicts: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b := scaffold.New(ctx, store, engine.Keynodes())
	b.SeedDemo()
	if err := b.Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return engine
}

func runDemo(t *testing.T, store kb.KB) {
	ctx := context.Background()
	engine := seed(t, ctx, store)
	defer engine.Close()

	sol, err := engine.InferNamed(ctx, NamedRequest{
		Target:  scaffold.DemoTarget,
		RuleSet: scaffold.DemoRuleSet,
		Input:   scaffold.DemoInput,
		Output:  scaffold.DemoOutput,
	})
	if err != nil {
		t.Fatalf("InferNamed: %v", err)
	}
	if !sol.Achieved {
		t.Fatalf("demo target should be achieved, steps: %+v", sol.Steps)
	}
	if len(sol.Steps) != 6 || len(sol.Applied()) != 3 {
		t.Errorf("expected 6 attempts with 3 applications, got %+v", sol.Steps)
	}

	living, err := engine.Resolve(ctx, "concept_living")
	if err != nil {
		t.Fatal(err)
	}
	rex, _ := engine.Resolve(ctx, "rex")
	if ok, _ := kb.IsMember(ctx, store, living, rex); !ok {
		t.Error("rex should have been classified as living")
	}

	input, _ := engine.Resolve(ctx, scaffold.DemoInput)
	records, err := engine.Verdicts(ctx, input)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("expected one verdict per rule, got %+v", records)
	}
	for _, r := range records {
		if r.Verdict != verdict.Satisfiable {
			t.Errorf("every demo rule ends satisfiable, got %+v", r)
		}
	}

	res, err := engine.Cleaner().Clean(ctx, input)
	if err != nil || res.Removed != 3 {
		t.Errorf("Clean: %+v, %v", res, err)
	}
}

func TestDemoInMemory(t *testing.T) {
	runDemo(t, memkb.New())
}

func TestDemoSQLite(t *testing.T) {
	store, err := sqlitekb.Open(context.Background(), filepath.Join(t.TempDir(), "kb.db"), 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	runDemo(t, store)
}

func TestVerdictsWithoutPersistence(t *testing.T) {
	ctx := context.Background()
	store := memkb.New()
	engine, err := New(ctx, Options{Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer engine.Close()
	b := scaffold.New(ctx, store, engine.Keynodes())
	demo := b.SeedDemo()
	if err := b.Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sol, err := engine.InferNamed(ctx, NamedRequest{
		Target:  scaffold.DemoTarget,
		RuleSet: scaffold.DemoRuleSet,
		Input:   scaffold.DemoInput,
		Output:  scaffold.DemoOutput,
	})
	if err != nil || !sol.Achieved {
		t.Fatalf("InferNamed: %+v, %v", sol, err)
	}

	stored, err := verdict.List(ctx, store, engine.Keynodes(), demo.Input)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 0 {
		t.Errorf("verdicts must stay out of the store, got %+v", stored)
	}
	records, err := engine.Verdicts(ctx, demo.Input)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected the in-memory verdicts of all three rules, got %+v", records)
	}
	for _, r := range records {
		if r.Verdict != verdict.Satisfiable {
			t.Errorf("every demo rule ends satisfiable, got %+v", r)
		}
	}
}

func TestInferNamedUnknownIdentifier(t *testing.T) {
	ctx := context.Background()
	engine := seed(t, ctx, memkb.New())
	defer engine.Close()

	_, err := engine.InferNamed(ctx, NamedRequest{Target: "no_such_target"})
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = engine.InferNamed(ctx, NamedRequest{})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(context.Background(), Options{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
