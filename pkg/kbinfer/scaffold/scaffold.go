// Package scaffold writes formulas, rules and rule sets into a knowledge
// base using the encoding the inference core reads.
package scaffold

import (
	"context"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
)

// Builder writes into a knowledge base. The first failure is kept and
// turns every later call into a no-op returning the invalid handle.
type Builder struct {
	ctx   context.Context
	store kb.KB
	kn    *keynodes.Keynodes
	err   error
}

// New creates a builder.
func New(ctx context.Context, store kb.KB, kn *keynodes.Keynodes) *Builder {
	return &Builder{ctx: ctx, store: store, kn: kn}
}

// Err returns the first error encountered.
func (b *Builder) Err() error { return b.err }

// Node resolves the constant node named idtf, creating it when missing.
func (b *Builder) Node(idtf string) kb.Addr {
	if b.err != nil {
		return 0
	}
	a, err := kb.ResolveOrCreate(b.ctx, b.store, idtf, kb.NodeConst)
	b.err = err
	return a
}

// Anon creates an unnamed constant node.
func (b *Builder) Anon() kb.Addr {
	if b.err != nil {
		return 0
	}
	a, err := b.store.CreateNode(b.ctx, kb.NodeConst)
	b.err = err
	return a
}

// Var creates a variable node; idtf is optional.
func (b *Builder) Var(idtf string) kb.Addr {
	if b.err != nil {
		return 0
	}
	a, err := b.store.CreateNode(b.ctx, kb.NodeVar)
	if err != nil {
		b.err = err
		return 0
	}
	b.name(a, idtf)
	return a
}

// Arc creates an arc of type t.
func (b *Builder) Arc(t kb.Type, source, target kb.Addr) kb.Addr {
	if b.err != nil {
		return 0
	}
	a, err := b.store.CreateArc(b.ctx, t, source, target)
	b.err = err
	return a
}

// Member adds elem to set with a constant positive membership arc.
func (b *Builder) Member(set, elem kb.Addr) kb.Addr {
	return b.Arc(kb.ArcAccessConstPosPerm, set, elem)
}

// Structure creates a node holding the given members.
func (b *Builder) Structure(idtf string, members ...kb.Addr) kb.Addr {
	s := b.named(idtf)
	for _, m := range members {
		b.Member(s, m)
	}
	return s
}

// Atom creates an atomic formula whose pattern consists of elems.
func (b *Builder) Atom(idtf string, elems ...kb.Addr) kb.Addr {
	s := b.Structure(idtf, elems...)
	b.Member(b.kn.Atomic, s)
	return s
}

// ClassAtom creates the atomic formula "v belongs to class".
func (b *Builder) ClassAtom(idtf string, class, v kb.Addr) kb.Addr {
	arc := b.Arc(kb.ArcAccessVarPosPerm, class, v)
	return b.Atom(idtf, class, v, arc)
}

// RelationAtom creates the atomic formula "source relation target": a
// variable common arc source -> target marked by relation.
func (b *Builder) RelationAtom(idtf string, relation, source, target kb.Addr) kb.Addr {
	arc := b.Arc(kb.ArcCommonVar, source, target)
	attr := b.Arc(kb.ArcAccessVarPosPerm, relation, arc)
	return b.Atom(idtf, relation, source, target, arc, attr)
}

// And creates a conjunction of operands, evaluated in the given order.
func (b *Builder) And(idtf string, operands ...kb.Addr) kb.Addr {
	return b.compound(idtf, b.kn.Conjunction, operands)
}

// Or creates a disjunction of operands, evaluated in the given order.
func (b *Builder) Or(idtf string, operands ...kb.Addr) kb.Addr {
	return b.compound(idtf, b.kn.Disjunction, operands)
}

// Not creates the negation of operand.
func (b *Builder) Not(idtf string, operand kb.Addr) kb.Addr {
	return b.compound(idtf, b.kn.Negation, []kb.Addr{operand})
}

func (b *Builder) compound(idtf string, class kb.Addr, operands []kb.Addr) kb.Addr {
	f := b.named(idtf)
	b.Member(class, f)
	for _, op := range operands {
		b.Member(f, op)
	}
	return f
}

// Implication links premise to conclusion with a common arc marked by
// nrel_implication and returns that arc.
func (b *Builder) Implication(premise, conclusion kb.Addr) kb.Addr {
	arc := b.Arc(kb.ArcCommonConst, premise, conclusion)
	b.Member(b.kn.Implication, arc)
	return arc
}

// Rule creates a rule node whose main key element is key.
func (b *Builder) Rule(idtf string, key kb.Addr) kb.Addr {
	r := b.named(idtf)
	arc := b.Member(r, key)
	b.Member(b.kn.MainKeyElement, arc)
	return r
}

// RuleSet creates a rule set with one priority tier per argument. The first
// tier is marked rrel_1 and the tiers are chained with nrel_basic_sequence.
func (b *Builder) RuleSet(idtf string, tiers ...[]kb.Addr) kb.Addr {
	set := b.named(idtf)
	var prev kb.Addr
	for i, rules := range tiers {
		tier := b.Structure("", rules...)
		arc := b.Member(set, tier)
		if i == 0 {
			b.Member(b.kn.Rrel1, arc)
		} else {
			seq := b.Arc(kb.ArcCommonConst, prev, arc)
			b.Member(b.kn.BasicSequence, seq)
		}
		prev = arc
	}
	return set
}

func (b *Builder) named(idtf string) kb.Addr {
	if idtf != "" {
		return b.Node(idtf)
	}
	return b.Anon()
}

func (b *Builder) name(a kb.Addr, idtf string) {
	if b.err != nil || idtf == "" {
		return
	}
	b.err = b.store.SetIdtf(b.ctx, a, idtf)
}
