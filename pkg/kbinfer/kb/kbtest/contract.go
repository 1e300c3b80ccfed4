// Package kbtest holds behaviour checks shared by every kb.KB implementation.
package kbtest

import (
	"context"
	"errors"
	"testing"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
)

// Run exercises the kb.KB contract against fresh stores returned by open.
func Run(t *testing.T, open func(t *testing.T) kb.KB) {
	t.Run("CreationOrder", func(t *testing.T) { testCreationOrder(t, open(t)) })
	t.Run("EraseCascade", func(t *testing.T) { testEraseCascade(t, open(t)) })
	t.Run("Idtf", func(t *testing.T) { testIdtf(t, open(t)) })
	t.Run("TypeMasks", func(t *testing.T) { testTypeMasks(t, open(t)) })
}

func node(t *testing.T, k kb.KB, typ kb.Type) kb.Addr {
	t.Helper()
	a, err := k.CreateNode(context.Background(), typ)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	return a
}

func arc(t *testing.T, k kb.KB, typ kb.Type, src, trg kb.Addr) kb.Addr {
	t.Helper()
	a, err := k.CreateArc(context.Background(), typ, src, trg)
	if err != nil {
		t.Fatalf("CreateArc: %v", err)
	}
	return a
}

func testCreationOrder(t *testing.T, k kb.KB) {
	ctx := context.Background()
	set := node(t, k, kb.NodeConst)
	var want []kb.Addr
	for i := 0; i < 5; i++ {
		want = append(want, node(t, k, kb.NodeConst))
	}
	for _, m := range want {
		arc(t, k, kb.ArcAccessConstPosPerm, set, m)
	}
	got, err := kb.Members(ctx, k, set, kb.TypeNode)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d members, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("member %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func testEraseCascade(t *testing.T, k kb.KB) {
	ctx := context.Background()
	rel := node(t, k, kb.NodeConst)
	x := node(t, k, kb.NodeConst)
	y := node(t, k, kb.NodeConst)
	main := arc(t, k, kb.ArcCommonConst, x, y)
	arc(t, k, kb.ArcAccessConstNegTemp, rel, main)

	before, _ := k.Count(ctx)
	if err := k.Erase(ctx, main); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	after, _ := k.Count(ctx)
	if before-after != 2 {
		t.Errorf("expected main arc and attribute erased, count went %d -> %d", before, after)
	}
	if arcs, _ := k.Arcs(ctx, kb.ArcQuery{Source: rel}); len(arcs) != 0 {
		t.Errorf("attribute arc survived erase: %v", arcs)
	}
	if _, ok, _ := k.Element(ctx, x); !ok {
		t.Error("endpoint must survive arc erase")
	}
	if err := k.Erase(ctx, main); err != nil {
		t.Errorf("erasing a missing element should be a no-op, got %v", err)
	}
}

func testIdtf(t *testing.T, k kb.KB) {
	ctx := context.Background()
	a := node(t, k, kb.NodeConst)
	b := node(t, k, kb.NodeConst)
	if err := k.SetIdtf(ctx, a, "concept_x"); err != nil {
		t.Fatalf("SetIdtf: %v", err)
	}
	if err := k.SetIdtf(ctx, b, "concept_x"); !errors.Is(err, internalerr.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if got, ok, _ := k.ResolveIdtf(ctx, "concept_x"); !ok || got != a {
		t.Errorf("ResolveIdtf = %d,%v want %d", got, ok, a)
	}
	if err := k.Erase(ctx, a); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if _, ok, _ := k.ResolveIdtf(ctx, "concept_x"); ok {
		t.Error("identifier must disappear with its element")
	}
	if err := k.SetIdtf(ctx, b, "concept_x"); err != nil {
		t.Errorf("identifier should be reusable after erase: %v", err)
	}
	if kb.Label(ctx, k, b) != "concept_x" {
		t.Errorf("Label = %q", kb.Label(ctx, k, b))
	}
}

func testTypeMasks(t *testing.T, k kb.KB) {
	ctx := context.Background()
	src := node(t, k, kb.NodeConst)
	c := node(t, k, kb.NodeConst)
	v := node(t, k, kb.NodeVar)
	arc(t, k, kb.ArcAccessConstPosPerm, src, c)
	arc(t, k, kb.ArcAccessVarPosPerm, src, v)
	arc(t, k, kb.ArcCommonConst, src, c)

	cases := []struct {
		name string
		q    kb.ArcQuery
		want int
	}{
		{"all", kb.ArcQuery{Source: src}, 3},
		{"access", kb.ArcQuery{Source: src, Type: kb.TypeArcAccess}, 2},
		{"const access", kb.ArcQuery{Source: src, Type: kb.ArcAccessConstPosPerm}, 1},
		{"var target", kb.ArcQuery{Source: src, TargetType: kb.NodeVar}, 1},
		{"into c", kb.ArcQuery{Target: c}, 2},
		{"const source", kb.ArcQuery{Target: c, SourceType: kb.NodeConst, Type: kb.TypeArcCommon}, 1},
	}
	for _, tc := range cases {
		got, err := k.Arcs(ctx, tc.q)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(got) != tc.want {
			t.Errorf("%s: got %d arcs, want %d", tc.name, len(got), tc.want)
		}
	}
}
