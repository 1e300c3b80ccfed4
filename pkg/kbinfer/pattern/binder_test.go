package pattern

import (
	"testing"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
)

func TestEnumerate(t *testing.T) {
	f := newFixture(t)
	person, adult := f.b.Node("concept_person"), f.b.Node("concept_adult")
	ann, bob, cid := f.b.Node("ann"), f.b.Node("bob"), f.b.Node("cid")
	f.b.Member(person, ann)
	f.b.Member(person, bob)
	f.b.Member(adult, bob)
	f.b.Member(person, cid)

	x, y := f.b.Var("_x"), f.b.Var("_y")
	free := f.b.Var("_free")
	arcX1 := f.b.Arc(kb.ArcAccessVarPosPerm, person, x)
	arcX2 := f.b.Arc(kb.ArcAccessVarPosPerm, adult, x)
	arcY := f.b.Arc(kb.ArcAccessVarPosPerm, person, y)
	rel := f.b.Arc(kb.ArcCommonVar, y, free)
	atom := f.b.Atom("pattern", person, adult, x, y, free, arcX1, arcX2, arcY, rel)
	f.check(t)

	binder := NewBinder(f.store)
	args := []kb.Addr{ann, bob, cid}

	cases := []struct {
		name  string
		args  []kb.Addr
		fixed Binding
		want  int
	}{
		// _x fits only bob, _y fits all three, _free is unconstrained
		{"product", args, nil, 3},
		{"fixed skips", args, Binding{y: ann}, 1},
		{"no arguments", nil, nil, 1},
		{"no fitting argument", []kb.Addr{f.b.Node("stranger")}, nil, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sets, err := binder.Enumerate(f.ctx, atom, tc.args, tc.fixed)
			if err != nil {
				t.Fatalf("Enumerate: %v", err)
			}
			if len(sets) != tc.want {
				t.Fatalf("got %d binding sets, want %d: %v", len(sets), tc.want, sets)
			}
			for _, s := range sets {
				if _, ok := s[free]; ok {
					t.Errorf("unconstrained variable was bound: %v", s)
				}
				if v, ok := s[x]; ok && v != bob {
					t.Errorf("_x bound to %d, only bob is a person and an adult", v)
				}
			}
		})
	}
}

func TestEnumerateScopedArguments(t *testing.T) {
	f := newFixture(t)
	person := f.b.Node("concept_person")
	ann, stranger := f.b.Node("ann"), f.b.Node("stranger")
	f.b.Member(person, ann)
	x := f.b.Var("_x")
	arc := f.b.Arc(kb.ArcAccessVarPosPerm, person, x)
	atom := f.b.Atom("pattern", person, x, arc)
	f.check(t)

	tpl, err := Compile(f.ctx, f.store, atom)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	binder := NewBinder(f.store)

	cases := []struct {
		name  string
		args  *Arguments
		fixed Binding
		want  int
	}{
		{"fitting argument", NewScopedArguments(ann), nil, 1},
		{"no fitting argument", NewScopedArguments(stranger), nil, 0},
		{"empty scope", NewScopedArguments(), nil, 0},
		{"fixed variable", NewScopedArguments(stranger), Binding{x: ann}, 1},
		{"unscoped stays free", NewArguments(stranger), nil, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sets, err := binder.EnumerateArguments(f.ctx, tpl, tc.args, tc.fixed)
			if err != nil {
				t.Fatalf("EnumerateArguments: %v", err)
			}
			if len(sets) != tc.want {
				t.Fatalf("got %d binding sets, want %d: %v", len(sets), tc.want, sets)
			}
		})
	}
}

func TestArgumentsAppendOnly(t *testing.T) {
	args := NewArguments(3, 1, 3, 0)
	if args.Len() != 2 {
		t.Fatalf("expected duplicates and invalid handles dropped, got %v", args.Slice())
	}
	if added := args.Add(1, 7, 9); added != 2 {
		t.Errorf("Add reported %d new, want 2", added)
	}
	want := []kb.Addr{3, 1, 7, 9}
	got := args.Slice()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	got[0] = 42
	if !args.Contains(3) || args.Contains(42) {
		t.Error("Slice must return a copy")
	}
}

func TestBindingMerge(t *testing.T) {
	b := Binding{1: 10}
	m := b.Merge(Binding{1: 99, 2: 20})
	if m[1] != 10 || m[2] != 20 {
		t.Errorf("Merge = %v", m)
	}
	if _, ok := b[2]; ok {
		t.Error("Merge must not mutate the receiver")
	}
	if m.String() != "{1=10,2=20}" {
		t.Errorf("String = %s", m.String())
	}
}
