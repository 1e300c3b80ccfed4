package maintenance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb/memkb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
	"github.com/cognicore/kbinfer/pkg/kbinfer/verdict"
)

type fixture struct {
	ctx    context.Context
	store  kb.KB
	kn     *keynodes.Keynodes
	r1, r2 kb.Addr
	m1, m2 kb.Addr
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memkb.New()
	kn, err := keynodes.Resolve(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{ctx: ctx, store: store, kn: kn}
	for _, p := range []struct {
		addr *kb.Addr
		idtf string
	}{{&f.r1, "rule-1"}, {&f.r2, "rule-2"}, {&f.m1, "model-1"}, {&f.m2, "model-2"}} {
		if *p.addr, err = kb.ResolveOrCreate(ctx, store, p.idtf, kb.NodeConst); err != nil {
			t.Fatal(err)
		}
	}

	book := verdict.NewBook(store, kn, true)
	for _, rec := range []verdict.Record{
		{Rule: f.r1, Model: f.m1, Verdict: verdict.Satisfiable},
		{Rule: f.r2, Model: f.m1, Verdict: verdict.Unsatisfiable},
		{Rule: f.r1, Model: f.m2, Verdict: verdict.Satisfiable},
	} {
		if err := book.Record(ctx, rec.Rule, rec.Model, rec.Verdict); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestCleanerPurgesOneModel(t *testing.T) {
	f := newFixture(t)
	cleaner := &Cleaner{Store: f.store, Keynodes: f.kn}

	res, err := cleaner.Clean(f.ctx, f.m1)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if res.Scanned != 2 || res.Removed != 2 {
		t.Errorf("unexpected result: %+v", res)
	}

	left, _ := verdict.List(f.ctx, f.store, f.kn, 0)
	if len(left) != 1 || left[0].Model != f.m2 {
		t.Errorf("only model-2 verdict should remain, got %+v", left)
	}
}

func TestCleanerPurgesEverything(t *testing.T) {
	f := newFixture(t)
	cleaner := &Cleaner{Store: f.store, Keynodes: f.kn}

	res, err := cleaner.Clean(f.ctx, 0)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if res.Removed != 3 {
		t.Errorf("expected 3 removed, got %d", res.Removed)
	}

	// a second run finds nothing
	res, err = cleaner.Clean(f.ctx, 0)
	if err != nil || res.Scanned != 0 || res.Removed != 0 {
		t.Errorf("second run: %+v, %v", res, err)
	}
}

func TestCleanerInvalidConfig(t *testing.T) {
	cleaner := &Cleaner{}
	if _, err := cleaner.Clean(context.Background(), 0); err == nil {
		t.Error("expected error for missing store")
	}
}

type bufferWriter struct {
	content string
	err     error
}

func (w *bufferWriter) WriteVerdicts(ctx context.Context, content string) error {
	w.content = content
	return w.err
}

func TestVerdictExporter(t *testing.T) {
	f := newFixture(t)
	records, err := verdict.List(f.ctx, f.store, f.kn, f.m1)
	if err != nil {
		t.Fatal(err)
	}

	w := &bufferWriter{}
	exp := &VerdictExporter{Store: f.store, Writer: w}
	if err := exp.Export(f.ctx, records); err != nil {
		t.Fatalf("Export: %v", err)
	}

	want := "satisfiable(rule_1, model_1).\nunsatisfiable(rule_2, model_1).\n"
	if w.content != want {
		t.Errorf("got %q, want %q", w.content, want)
	}
	if strings.Contains(w.content, "-") {
		t.Error("identifiers should be sanitized")
	}
}

func TestVerdictExporterErrors(t *testing.T) {
	exp := &VerdictExporter{}
	if err := exp.Export(context.Background(), nil); err == nil {
		t.Error("expected error for nil writer")
	}

	boom := errors.New("disk full")
	exp = &VerdictExporter{Writer: &bufferWriter{err: boom}}
	if err := exp.Export(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("expected writer error, got %v", err)
	}
}
