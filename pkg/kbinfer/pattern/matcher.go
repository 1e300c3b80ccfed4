package pattern

import (
	"context"
	"errors"
	"fmt"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
)

var errEnough = errors.New("enough results")

// Matcher searches patterns in a knowledge base and instantiates them.
type Matcher struct {
	store kb.KB
}

// NewMatcher creates a matcher over store.
func NewMatcher(store kb.KB) *Matcher {
	return &Matcher{store: store}
}

// Outcome describes a SearchOrGenerate call.
type Outcome struct {
	Found    bool
	Bindings []Binding
	// Created lists elements made by generation, nodes and arcs alike.
	Created []kb.Addr
}

// Search returns every binding of the pattern in structure that extends params.
func (m *Matcher) Search(ctx context.Context, structure kb.Addr, params Binding) ([]Binding, error) {
	tpl, err := Compile(ctx, m.store, structure)
	if err != nil {
		return nil, err
	}
	return m.SearchTemplate(ctx, tpl, params, 0)
}

// Exists reports whether the pattern has at least one match extending params.
func (m *Matcher) Exists(ctx context.Context, structure kb.Addr, params Binding) (bool, error) {
	tpl, err := Compile(ctx, m.store, structure)
	if err != nil {
		return false, err
	}
	found, err := m.SearchTemplate(ctx, tpl, params, 1)
	return len(found) > 0, err
}

// SearchOrGenerate searches first; when nothing matches it instantiates the
// pattern with params and reports the created elements.
func (m *Matcher) SearchOrGenerate(ctx context.Context, structure kb.Addr, params Binding, output kb.Addr) (Outcome, error) {
	tpl, err := Compile(ctx, m.store, structure)
	if err != nil {
		return Outcome{}, err
	}
	found, err := m.SearchTemplate(ctx, tpl, params, 0)
	if err != nil {
		return Outcome{}, err
	}
	if len(found) > 0 {
		return Outcome{Found: true, Bindings: found}, nil
	}
	b, created, err := m.Generate(ctx, tpl, params, output)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Bindings: []Binding{b}, Created: created}, nil
}

// SearchTemplate runs the backtracking search. limit <= 0 means all results.
func (m *Matcher) SearchTemplate(ctx context.Context, tpl *Template, params Binding, limit int) ([]Binding, error) {
	var results []Binding
	done := make([]bool, len(tpl.Arcs))

	var step func(b Binding, remaining int) error
	step = func(b Binding, remaining int) error {
		if remaining == 0 {
			results = append(results, b)
			if limit > 0 && len(results) >= limit {
				return errEnough
			}
			return nil
		}
		i := tpl.pick(b, done)
		done[i] = true
		defer func() { done[i] = false }()

		arc := tpl.Arcs[i]
		candidates, err := m.candidates(ctx, tpl, arc, b)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			nb, ok := tpl.unify(arc, c, b)
			if !ok {
				continue
			}
			if err := step(nb, remaining-1); err != nil {
				return err
			}
		}
		return nil
	}

	err := step(params.Clone(), len(tpl.Arcs))
	if errors.Is(err, errEnough) {
		err = nil
	}
	return results, err
}

// candidates lists the knowledge base arcs that could be the image of arc.
func (m *Matcher) candidates(ctx context.Context, tpl *Template, arc kb.Element, b Binding) ([]kb.Element, error) {
	if img, ok := tpl.resolve(arc.Addr, b); ok {
		el, exists, err := m.store.Element(ctx, img)
		if err != nil || !exists {
			return nil, err
		}
		return []kb.Element{el}, nil
	}

	q := kb.ArcQuery{Type: arc.Type.Const()}
	if src, ok := tpl.resolve(arc.Source, b); ok {
		q.Source = src
	} else {
		q.SourceType = tpl.Type(arc.Source).Const()
	}
	if trg, ok := tpl.resolve(arc.Target, b); ok {
		q.Target = trg
	} else {
		q.TargetType = tpl.Type(arc.Target).Const()
	}
	return m.store.Arcs(ctx, q)
}

// pick chooses the next arc to match: the one with most bound ends, earliest first.
func (t *Template) pick(b Binding, done []bool) int {
	best, bestScore := -1, -1
	for i, arc := range t.Arcs {
		if done[i] {
			continue
		}
		score := 0
		if _, ok := t.resolve(arc.Addr, b); ok {
			score += 4
		}
		if _, ok := t.resolve(arc.Source, b); ok {
			score += 2
		}
		if _, ok := t.resolve(arc.Target, b); ok {
			score += 2
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// unify extends b so that arc maps onto the stored arc c.
func (t *Template) unify(arc, c kb.Element, b Binding) (Binding, bool) {
	if !c.Type.Matches(arc.Type.Const()) {
		return nil, false
	}
	nb := b.Clone()
	pairs := [][2]kb.Addr{{arc.Addr, c.Addr}, {arc.Source, c.Source}, {arc.Target, c.Target}}
	for _, p := range pairs {
		tplElem, value := p[0], p[1]
		if !t.IsVar(tplElem) {
			if tplElem != value {
				return nil, false
			}
			continue
		}
		if existing, ok := nb[tplElem]; ok {
			if existing != value {
				return nil, false
			}
			continue
		}
		nb[tplElem] = value
	}
	return nb, true
}

// Generate instantiates tpl: unbound variable nodes become new constant
// nodes, unbound variable arcs become new constant arcs. Every created
// element is added to output when output is valid.
func (m *Matcher) Generate(ctx context.Context, tpl *Template, params Binding, output kb.Addr) (Binding, []kb.Addr, error) {
	b := params.Clone()
	var created []kb.Addr

	for _, v := range tpl.VarNodes {
		if _, ok := b[v]; ok {
			continue
		}
		n, err := m.store.CreateNode(ctx, tpl.Type(v).Const())
		if err != nil {
			return nil, nil, err
		}
		b[v] = n
		created = append(created, n)
	}

	var pending []kb.Element
	for _, arc := range tpl.Arcs {
		if _, ok := tpl.resolve(arc.Addr, b); !ok {
			pending = append(pending, arc)
		}
	}
	for len(pending) > 0 {
		var rest []kb.Element
		for _, arc := range pending {
			src, okSrc := tpl.resolve(arc.Source, b)
			trg, okTrg := tpl.resolve(arc.Target, b)
			if !okSrc || !okTrg {
				rest = append(rest, arc)
				continue
			}
			a, err := m.store.CreateArc(ctx, arc.Type.Const(), src, trg)
			if err != nil {
				return nil, nil, err
			}
			b[arc.Addr] = a
			created = append(created, a)
		}
		if len(rest) == len(pending) {
			return nil, nil, fmt.Errorf("pattern %d: %d arcs with unresolvable ends: %w",
				tpl.Structure, len(rest), internalerr.ErrMalformedStructure)
		}
		pending = rest
	}

	if output.IsValid() {
		for _, c := range created {
			if _, err := m.store.CreateArc(ctx, kb.ArcAccessConstPosPerm, output, c); err != nil {
				return nil, nil, err
			}
		}
	}
	return b, created, nil
}
