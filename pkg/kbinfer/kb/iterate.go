package kb

import (
	"context"
	"fmt"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
)

// Quintuple is a main arc together with an attribute arc that points at it
// from a relation node: source -arc-> target, relation -attr-> arc.
type Quintuple struct {
	Arc  Element
	Attr Element
}

// Iterate3 returns the arcs leaving source whose type matches arcType and
// whose target matches targetType.
func Iterate3(ctx context.Context, k KB, source Addr, arcType, targetType Type) ([]Element, error) {
	return k.Arcs(ctx, ArcQuery{Source: source, Type: arcType, TargetType: targetType})
}

// Iterate5 returns every arc matching q that carries an attribute arc of
// type attrType from relation.
func Iterate5(ctx context.Context, k KB, q ArcQuery, attrType Type, relation Addr) ([]Quintuple, error) {
	arcs, err := k.Arcs(ctx, q)
	if err != nil {
		return nil, err
	}
	var out []Quintuple
	for _, arc := range arcs {
		attrs, err := k.Arcs(ctx, ArcQuery{Source: relation, Target: arc.Addr, Type: attrType})
		if err != nil {
			return nil, err
		}
		for _, attr := range attrs {
			out = append(out, Quintuple{Arc: arc, Attr: attr})
		}
	}
	return out, nil
}

// Members returns the targets of constant positive membership arcs leaving
// set, restricted to targetType.
func Members(ctx context.Context, k KB, set Addr, targetType Type) ([]Addr, error) {
	arcs, err := Iterate3(ctx, k, set, ArcAccessConstPosPerm, targetType)
	if err != nil {
		return nil, err
	}
	out := make([]Addr, 0, len(arcs))
	for _, arc := range arcs {
		out = append(out, arc.Target)
	}
	return out, nil
}

// IsMember reports whether a constant positive membership arc set -> elem exists.
func IsMember(ctx context.Context, k KB, set, elem Addr) (bool, error) {
	arcs, err := k.Arcs(ctx, ArcQuery{Source: set, Target: elem, Type: ArcAccessConstPosPerm})
	if err != nil {
		return false, err
	}
	return len(arcs) > 0, nil
}

// OutRelationTarget returns the target of the single membership arc leaving
// source that is marked with relation. ok is false when there is none.
func OutRelationTarget(ctx context.Context, k KB, source, relation Addr) (Addr, bool, error) {
	found, err := Iterate5(ctx, k, ArcQuery{Source: source, Type: ArcAccessConstPosPerm}, ArcAccessConstPosPerm, relation)
	if err != nil {
		return 0, false, err
	}
	if len(found) == 0 {
		return 0, false, nil
	}
	return found[0].Arc.Target, true, nil
}

// ResolveOrCreate returns the element named idtf, creating a node of type t
// when it does not exist yet.
func ResolveOrCreate(ctx context.Context, k KB, idtf string, t Type) (Addr, error) {
	if idtf == "" {
		return 0, fmt.Errorf("resolve: empty identifier: %w", internalerr.ErrInvalidInput)
	}
	addr, ok, err := k.ResolveIdtf(ctx, idtf)
	if err != nil {
		return 0, err
	}
	if ok {
		return addr, nil
	}
	addr, err = k.CreateNode(ctx, t)
	if err != nil {
		return 0, err
	}
	if err := k.SetIdtf(ctx, addr, idtf); err != nil {
		return 0, err
	}
	return addr, nil
}

// Label returns the system identifier of a, or its numeric handle.
func Label(ctx context.Context, k KB, a Addr) string {
	el, ok, err := k.Element(ctx, a)
	if err == nil && ok && el.Idtf != "" {
		return el.Idtf
	}
	return fmt.Sprintf("#%d", a)
}
