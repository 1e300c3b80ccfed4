package pattern

import (
	"context"
	"fmt"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
)

// Template is a compiled pattern: the members of a structure node plus the
// endpoints their arcs reference.
type Template struct {
	Structure kb.Addr
	// Arcs are the arcs of the pattern in member order.
	Arcs []kb.Element
	// VarNodes are the variable nodes in first-reference order.
	VarNodes []kb.Addr

	elems map[kb.Addr]kb.Element
	order []kb.Addr
}

// Compile reads the pattern stored in structure.
func Compile(ctx context.Context, k kb.KB, structure kb.Addr) (*Template, error) {
	if _, ok, err := k.Element(ctx, structure); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("pattern %d: %w", structure, internalerr.ErrNotFound)
	}
	members, err := kb.Members(ctx, k, structure, 0)
	if err != nil {
		return nil, err
	}

	tpl := &Template{Structure: structure, elems: make(map[kb.Addr]kb.Element)}
	for _, m := range members {
		if err := tpl.load(ctx, k, m); err != nil {
			return nil, err
		}
	}
	for _, a := range tpl.order {
		el := tpl.elems[a]
		if !el.Type.IsArc() {
			continue
		}
		tpl.Arcs = append(tpl.Arcs, el)
		for _, end := range []kb.Addr{el.Source, el.Target} {
			if err := tpl.load(ctx, k, end); err != nil {
				return nil, err
			}
		}
	}
	for _, a := range tpl.order {
		if el := tpl.elems[a]; el.Type.IsNode() && el.Type.IsVar() {
			tpl.VarNodes = append(tpl.VarNodes, a)
		}
	}
	return tpl, nil
}

func (t *Template) load(ctx context.Context, k kb.KB, a kb.Addr) error {
	if _, ok := t.elems[a]; ok {
		return nil
	}
	el, ok, err := k.Element(ctx, a)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pattern %d element %d: %w", t.Structure, a, internalerr.ErrNotFound)
	}
	t.elems[a] = el
	t.order = append(t.order, a)
	return nil
}

// IsVar reports whether a is a variable of the template.
func (t *Template) IsVar(a kb.Addr) bool {
	el, ok := t.elems[a]
	return ok && el.Type.IsVar()
}

// Type returns the stored type of a referenced element.
func (t *Template) Type(a kb.Addr) kb.Type {
	return t.elems[a].Type
}

// Classes returns the constant elements c for which the template holds an
// access arc c -> v.
func (t *Template) Classes(v kb.Addr) []kb.Addr {
	var out []kb.Addr
	for _, arc := range t.Arcs {
		if arc.Target != v || !arc.Type.Matches(kb.TypeArcAccess) || arc.Type.Matches(kb.TypeNeg) {
			continue
		}
		if t.IsVar(arc.Source) {
			continue
		}
		out = append(out, arc.Source)
	}
	return out
}

// resolve maps a template element to its image under b.
func (t *Template) resolve(a kb.Addr, b Binding) (kb.Addr, bool) {
	if !t.IsVar(a) {
		return a, true
	}
	v, ok := b[a]
	return v, ok
}
