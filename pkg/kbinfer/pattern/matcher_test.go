package pattern

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb/memkb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
	"github.com/cognicore/kbinfer/pkg/kbinfer/scaffold"
)

type fixture struct {
	ctx   context.Context
	store *memkb.KB
	b     *scaffold.Builder
	m     *Matcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memkb.New()
	kn, err := keynodes.Resolve(ctx, store)
	if err != nil {
		t.Fatalf("keynodes: %v", err)
	}
	return &fixture{ctx: ctx, store: store, b: scaffold.New(ctx, store, kn), m: NewMatcher(store)}
}

func (f *fixture) check(t *testing.T) {
	t.Helper()
	if err := f.b.Err(); err != nil {
		t.Fatalf("scaffold: %v", err)
	}
}

func images(bs []Binding, v kb.Addr) []kb.Addr {
	out := make([]kb.Addr, len(bs))
	for i, b := range bs {
		out[i] = b[v]
	}
	return out
}

func TestSearchClassPattern(t *testing.T) {
	f := newFixture(t)
	p := f.b.Node("concept_p")
	a, c := f.b.Node("a"), f.b.Node("c")
	f.b.Node("unrelated")
	f.b.Member(p, a)
	f.b.Member(p, c)
	x := f.b.Var("_x")
	atom := f.b.ClassAtom("p_of_x", p, x)
	f.check(t)

	got, err := f.m.Search(f.ctx, atom, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]kb.Addr{a, c}, images(got, x)); diff != "" {
		t.Errorf("bindings of _x (-want +got):\n%s", diff)
	}

	got, err = f.m.Search(f.ctx, atom, Binding{x: c})
	if err != nil {
		t.Fatalf("Search with params: %v", err)
	}
	if len(got) != 1 || got[0][x] != c {
		t.Errorf("expected single match on c, got %v", got)
	}

	ok, err := f.m.Exists(f.ctx, atom, Binding{x: f.b.Node("unrelated")})
	if err != nil || ok {
		t.Errorf("Exists for non-member = %v,%v want false", ok, err)
	}
}

func TestSearchJoinsArcsSharingVariables(t *testing.T) {
	f := newFixture(t)
	p, q := f.b.Node("concept_p"), f.b.Node("concept_q")
	a, c := f.b.Node("a"), f.b.Node("c")
	f.b.Member(p, a)
	f.b.Member(p, c)
	f.b.Member(q, c)

	x := f.b.Var("_x")
	arcP := f.b.Arc(kb.ArcAccessVarPosPerm, p, x)
	arcQ := f.b.Arc(kb.ArcAccessVarPosPerm, q, x)
	atom := f.b.Atom("p_and_q", p, q, x, arcP, arcQ)
	f.check(t)

	got, err := f.m.Search(f.ctx, atom, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]kb.Addr{c}, images(got, x)); diff != "" {
		t.Errorf("join result (-want +got):\n%s", diff)
	}
}

func TestSearchRelationPattern(t *testing.T) {
	f := newFixture(t)
	parent := f.b.Node("nrel_parent")
	ann, bob, cid := f.b.Node("ann"), f.b.Node("bob"), f.b.Node("cid")
	for _, pair := range [][2]kb.Addr{{ann, bob}, {bob, cid}} {
		arc := f.b.Arc(kb.ArcCommonConst, pair[0], pair[1])
		f.b.Member(parent, arc)
	}
	// an unmarked common arc must not match
	f.b.Arc(kb.ArcCommonConst, ann, cid)

	x, y := f.b.Var("_x"), f.b.Var("_y")
	atom := f.b.RelationAtom("parent_xy", parent, x, y)
	f.check(t)

	got, err := f.m.Search(f.ctx, atom, Binding{x: ann})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]kb.Addr{bob}, images(got, y)); diff != "" {
		t.Errorf("children of ann (-want +got):\n%s", diff)
	}

	all, err := f.m.Search(f.ctx, atom, nil)
	if err != nil {
		t.Fatalf("Search all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 parent facts, got %d", len(all))
	}
}

func TestSearchOrGenerate(t *testing.T) {
	f := newFixture(t)
	p := f.b.Node("concept_p")
	a := f.b.Node("a")
	out := f.b.Node("output")
	x := f.b.Var("_x")
	atom := f.b.ClassAtom("p_of_x", p, x)
	f.check(t)

	res, err := f.m.SearchOrGenerate(f.ctx, atom, Binding{x: a}, out)
	if err != nil {
		t.Fatalf("SearchOrGenerate: %v", err)
	}
	if res.Found {
		t.Fatal("nothing should be found before generation")
	}
	if len(res.Created) != 1 {
		t.Fatalf("expected one generated arc, got %v", res.Created)
	}
	if ok, _ := kb.IsMember(f.ctx, f.store, p, a); !ok {
		t.Error("p -> a should exist after generation")
	}
	if ok, _ := kb.IsMember(f.ctx, f.store, out, res.Created[0]); !ok {
		t.Error("generated arc should belong to the output structure")
	}

	before, _ := f.store.Count(f.ctx)
	res, err = f.m.SearchOrGenerate(f.ctx, atom, Binding{x: a}, out)
	if err != nil {
		t.Fatalf("second SearchOrGenerate: %v", err)
	}
	after, _ := f.store.Count(f.ctx)
	if !res.Found || len(res.Created) != 0 || before != after {
		t.Errorf("second call should find without generating: found=%v created=%v count %d->%d",
			res.Found, res.Created, before, after)
	}
}

func TestGenerateCreatesFreeVariables(t *testing.T) {
	f := newFixture(t)
	parent := f.b.Node("nrel_parent")
	ann := f.b.Node("ann")
	x, y := f.b.Var("_x"), f.b.Var("_y")
	atom := f.b.RelationAtom("parent_xy", parent, x, y)
	f.check(t)

	tpl, err := Compile(f.ctx, f.store, atom)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b, created, err := f.m.Generate(f.ctx, tpl, Binding{x: ann}, 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// new node for _y, the common arc and its attribute arc
	if len(created) != 3 {
		t.Fatalf("expected 3 created elements, got %d", len(created))
	}
	child := b[y]
	el, ok, _ := f.store.Element(f.ctx, child)
	if !ok || el.Type != kb.NodeConst {
		t.Errorf("generated _y should be a constant node, got %+v", el)
	}
	found, err := f.m.Search(f.ctx, atom, Binding{x: ann})
	if err != nil || len(found) != 1 || found[0][y] != child {
		t.Errorf("generated fact not found back: %v %v", found, err)
	}
}
