package logic

import (
	"context"

	"go.uber.org/zap"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/pattern"
)

// Result is the outcome of evaluating an Expr.
type Result struct {
	Value bool
	// Bindings are the variable assignments under which the expression
	// holds. Empty for negations.
	Bindings []pattern.Binding
}

// Evaluator computes formula trees for one rule application attempt.
// Nodes it generates are appended to the run's arguments.
type Evaluator struct {
	store   kb.KB
	matcher *pattern.Matcher
	binder  *pattern.Binder
	args    *pattern.Arguments
	output  kb.Addr
	log     *zap.Logger
	created []kb.Addr
}

// NewEvaluator wires an evaluator. output scopes generated facts; it may be
// the invalid handle.
func NewEvaluator(store kb.KB, args *pattern.Arguments, output kb.Addr, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		store:   store,
		matcher: pattern.NewMatcher(store),
		binder:  pattern.NewBinder(store),
		args:    args,
		output:  output,
		log:     logger,
	}
}

// Created returns every element generated so far.
func (e *Evaluator) Created() []kb.Addr {
	return append([]kb.Addr(nil), e.created...)
}

// Evaluate computes x under the bindings b.
func (e *Evaluator) Evaluate(ctx context.Context, x *Expr, b pattern.Binding) (Result, error) {
	switch x.Kind {
	case KindAtom:
		return e.atom(ctx, x, b)
	case KindAnd:
		return e.and(ctx, x, b)
	case KindOr:
		for _, child := range x.Children {
			r, err := e.Evaluate(ctx, child, b)
			if err != nil || r.Value {
				return r, err
			}
		}
		return Result{}, nil
	case KindNot:
		r, err := e.Evaluate(ctx, x.Children[0], b)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: !r.Value}, nil
	case KindImplication:
		return e.implication(ctx, x, b)
	}
	return Result{}, nil
}

// and joins children left to right: each child is evaluated once per
// binding that survived the previous children.
func (e *Evaluator) and(ctx context.Context, x *Expr, b pattern.Binding) (Result, error) {
	current := []pattern.Binding{b}
	for _, child := range x.Children {
		var next []pattern.Binding
		for _, cb := range current {
			r, err := e.Evaluate(ctx, child, cb)
			if err != nil {
				return Result{}, err
			}
			if !r.Value {
				continue
			}
			if len(r.Bindings) == 0 {
				next = append(next, cb)
				continue
			}
			for _, rb := range r.Bindings {
				if len(next) >= pattern.MaxBindingSets {
					break
				}
				next = append(next, cb.Merge(rb))
			}
		}
		if len(next) == 0 {
			return Result{}, nil
		}
		current = next
	}
	return Result{Value: true, Bindings: current}, nil
}

func (e *Evaluator) implication(ctx context.Context, x *Expr, b pattern.Binding) (Result, error) {
	premise, err := e.Evaluate(ctx, x.Children[0], b)
	if err != nil || !premise.Value {
		return Result{}, err
	}
	matches := premise.Bindings
	if len(matches) == 0 {
		matches = []pattern.Binding{b}
	}

	var out Result
	for _, m := range matches {
		r, err := e.Evaluate(ctx, x.Children[1], m)
		if err != nil {
			return Result{}, err
		}
		if r.Value {
			out.Value = true
			out.Bindings = append(out.Bindings, r.Bindings...)
		}
	}
	return out, nil
}

// atom searches the pattern under every binding set the binder proposes.
// In generate mode a failed search instantiates the pattern with b.
func (e *Evaluator) atom(ctx context.Context, x *Expr, b pattern.Binding) (Result, error) {
	tpl, err := pattern.Compile(ctx, e.store, x.Formula)
	if err != nil {
		return Result{}, err
	}
	sets, err := e.binder.EnumerateArguments(ctx, tpl, e.args, b)
	if err != nil {
		return Result{}, err
	}

	var found []pattern.Binding
	seen := make(map[string]bool)
	for _, s := range sets {
		matches, err := e.matcher.SearchTemplate(ctx, tpl, s, 0)
		if err != nil {
			return Result{}, err
		}
		for _, m := range matches {
			key := m.String()
			if !seen[key] {
				seen[key] = true
				found = append(found, m)
			}
		}
	}
	if len(found) > 0 || !x.Generate {
		e.log.Debug("atom searched",
			zap.Uint64("formula", uint64(x.Formula)),
			zap.Int("matches", len(found)))
		return Result{Value: len(found) > 0, Bindings: found}, nil
	}

	gb, created, err := e.matcher.Generate(ctx, tpl, b, e.output)
	if err != nil {
		return Result{}, err
	}
	e.created = append(e.created, created...)
	for _, c := range created {
		el, ok, err := e.store.Element(ctx, c)
		if err != nil {
			return Result{}, err
		}
		if ok && el.Type.IsNode() {
			e.args.Add(c)
		}
	}
	e.log.Debug("atom generated",
		zap.Uint64("formula", uint64(x.Formula)),
		zap.Int("created", len(created)))
	return Result{Value: true, Bindings: []pattern.Binding{gb}}, nil
}
