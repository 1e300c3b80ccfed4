package pattern

import (
	"context"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
)

// MaxBindingSets caps the cartesian product produced by Enumerate.
const MaxBindingSets = 4096

// Binder proposes binding sets for a pattern from a list of candidate arguments.
type Binder struct {
	store kb.KB
}

// NewBinder creates a binder over store.
func NewBinder(store kb.KB) *Binder {
	return &Binder{store: store}
}

// Enumerate returns plausible binding sets for the pattern in structure.
//
// Each variable node the template constrains by constant classes (an access
// arc class -> var) is offered every argument that belongs to all of its
// classes. Variables already bound in fixed, unconstrained variables and
// variables without any fitting argument stay free. The result always holds
// at least one binding set, fixed itself when nothing could be proposed.
func (b *Binder) Enumerate(ctx context.Context, structure kb.Addr, args []kb.Addr, fixed Binding) ([]Binding, error) {
	tpl, err := Compile(ctx, b.store, structure)
	if err != nil {
		return nil, err
	}
	return b.EnumerateTemplate(ctx, tpl, args, fixed)
}

// EnumerateTemplate is Enumerate for an already compiled template.
func (b *Binder) EnumerateTemplate(ctx context.Context, tpl *Template, args []kb.Addr, fixed Binding) ([]Binding, error) {
	return b.enumerate(ctx, tpl, args, fixed, false)
}

// EnumerateArguments is EnumerateTemplate over a run's arguments. When args
// is scoped a constrained variable without a fitting argument yields no
// binding set at all, so the pattern cannot match outside the input.
func (b *Binder) EnumerateArguments(ctx context.Context, tpl *Template, args *Arguments, fixed Binding) ([]Binding, error) {
	return b.enumerate(ctx, tpl, args.Slice(), fixed, args.Scoped())
}

func (b *Binder) enumerate(ctx context.Context, tpl *Template, args []kb.Addr, fixed Binding, scoped bool) ([]Binding, error) {
	sets := []Binding{fixed.Clone()}
	if len(args) == 0 && !scoped {
		return sets, nil
	}

	for _, v := range tpl.VarNodes {
		if _, ok := fixed[v]; ok {
			continue
		}
		classes := tpl.Classes(v)
		if len(classes) == 0 {
			continue
		}
		candidates, err := b.fitting(ctx, classes, args)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			if scoped {
				return nil, nil
			}
			continue
		}

		next := make([]Binding, 0, len(sets)*len(candidates))
	product:
		for _, set := range sets {
			for _, c := range candidates {
				if len(next) >= MaxBindingSets {
					break product
				}
				nb := set.Clone()
				nb[v] = c
				next = append(next, nb)
			}
		}
		sets = next
	}
	return sets, nil
}

func (b *Binder) fitting(ctx context.Context, classes, args []kb.Addr) ([]kb.Addr, error) {
	var out []kb.Addr
	for _, arg := range args {
		fits := true
		for _, class := range classes {
			ok, err := kb.IsMember(ctx, b.store, class, arg)
			if err != nil {
				return nil, err
			}
			if !ok {
				fits = false
				break
			}
		}
		if fits {
			out = append(out, arg)
		}
	}
	return out, nil
}
