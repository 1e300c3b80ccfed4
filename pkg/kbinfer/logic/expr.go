// Package logic builds boolean formula trees from their knowledge base
// encoding and evaluates them with the pattern matcher as leaf oracle.
package logic

import (
	"context"
	"fmt"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
)

// Kind tags the variant of an Expr.
type Kind int

const (
	KindAtom Kind = iota
	KindAnd
	KindOr
	KindNot
	KindImplication
)

func (k Kind) String() string {
	switch k {
	case KindAtom:
		return "atom"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	case KindImplication:
		return "implication"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Expr is one node of a formula tree.
type Expr struct {
	Kind Kind
	// Formula is the encoding element: a structure node for atoms, the
	// marked common arc for implications, the operator node otherwise.
	Formula kb.Addr
	// Generate marks atoms that are instantiated when their search fails.
	Generate bool
	Children []*Expr
}

// Build reads the formula rooted at key. A bare formula is built in
// generate mode; implication premises and everything under a negation are
// built search-only, nested implications included.
func Build(ctx context.Context, store kb.KB, kn *keynodes.Keynodes, key kb.Addr) (*Expr, error) {
	b := builder{store: store, kn: kn, path: make(map[kb.Addr]bool)}
	return b.build(ctx, key, true)
}

type builder struct {
	store kb.KB
	kn    *keynodes.Keynodes
	path  map[kb.Addr]bool
}

func (b *builder) build(ctx context.Context, f kb.Addr, generate bool) (*Expr, error) {
	if b.path[f] {
		return nil, fmt.Errorf("formula %d is cyclic: %w", f, internalerr.ErrMalformedStructure)
	}
	b.path[f] = true
	defer delete(b.path, f)

	el, ok, err := b.store.Element(ctx, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("formula %d missing: %w", f, internalerr.ErrMalformedStructure)
	}

	if el.Type.IsArc() {
		return b.implication(ctx, el, generate)
	}

	kind, err := b.kindOf(ctx, f)
	if err != nil {
		return nil, err
	}
	if kind == KindAtom {
		return &Expr{Kind: KindAtom, Formula: f, Generate: generate}, nil
	}

	operands, err := kb.Members(ctx, b.store, f, 0)
	if err != nil {
		return nil, err
	}
	x := &Expr{Kind: kind, Formula: f}
	switch kind {
	case KindNot:
		if len(operands) != 1 {
			return nil, fmt.Errorf("negation %d has %d operands: %w", f, len(operands), internalerr.ErrMalformedStructure)
		}
		generate = false
	default:
		if len(operands) == 0 {
			return nil, fmt.Errorf("%s %d has no operands: %w", kind, f, internalerr.ErrMalformedStructure)
		}
	}
	for _, op := range operands {
		child, err := b.build(ctx, op, generate)
		if err != nil {
			return nil, err
		}
		x.Children = append(x.Children, child)
	}
	return x, nil
}

// implication builds the premise search-only. The conclusion inherits
// generate, so an implication under a negation or inside a premise never
// writes.
func (b *builder) implication(ctx context.Context, arc kb.Element, generate bool) (*Expr, error) {
	marked, err := kb.IsMember(ctx, b.store, b.kn.Implication, arc.Addr)
	if err != nil {
		return nil, err
	}
	if !marked || !arc.Type.Matches(kb.TypeArcCommon) {
		return nil, fmt.Errorf("arc %d is not an implication: %w", arc.Addr, internalerr.ErrMalformedStructure)
	}
	premise, err := b.build(ctx, arc.Source, false)
	if err != nil {
		return nil, err
	}
	conclusion, err := b.build(ctx, arc.Target, generate)
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: KindImplication, Formula: arc.Addr, Children: []*Expr{premise, conclusion}}, nil
}

func (b *builder) kindOf(ctx context.Context, f kb.Addr) (Kind, error) {
	classes := []struct {
		class kb.Addr
		kind  Kind
	}{
		{b.kn.Atomic, KindAtom},
		{b.kn.Conjunction, KindAnd},
		{b.kn.Disjunction, KindOr},
		{b.kn.Negation, KindNot},
	}
	for _, c := range classes {
		ok, err := kb.IsMember(ctx, b.store, c.class, f)
		if err != nil {
			return 0, err
		}
		if ok {
			return c.kind, nil
		}
	}
	return 0, fmt.Errorf("formula %d has no known kind: %w", f, internalerr.ErrMalformedStructure)
}
