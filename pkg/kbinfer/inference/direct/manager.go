// Package direct implements priority-tiered forward chaining.
//
// Rules are tried tier by tier. A rule that is used and changes the
// knowledge base sends the scan back to the first tier, because its output
// may enable higher-priority rules that failed before.
package direct

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cognicore/kbinfer/pkg/kbinfer/inference"
	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
	"github.com/cognicore/kbinfer/pkg/kbinfer/logic"
	"github.com/cognicore/kbinfer/pkg/kbinfer/pattern"
	"github.com/cognicore/kbinfer/pkg/kbinfer/rules"
	"github.com/cognicore/kbinfer/pkg/kbinfer/solution"
	"github.com/cognicore/kbinfer/pkg/kbinfer/verdict"
)

// DefaultMaxPasses bounds the number of scans started from the first tier.
const DefaultMaxPasses = 100

// Options configures a Manager.
type Options struct {
	Store    kb.KB
	Keynodes *keynodes.Keynodes
	// Recorder defaults to a solution.Recorder over Store.
	Recorder  *solution.Recorder
	Logger    *zap.Logger
	MaxPasses int
	// PersistVerdicts mirrors satisfiability records into the store.
	PersistVerdicts bool
}

// Manager runs inference requests one at a time.
type Manager struct {
	store     kb.KB
	kn        *keynodes.Keynodes
	recorder  *solution.Recorder
	log       *zap.Logger
	maxPasses int
	book      *verdict.Book

	mu sync.Mutex
}

var _ inference.Engine = (*Manager)(nil)

// New creates a manager.
func New(opts Options) *Manager {
	m := &Manager{
		store:     opts.Store,
		kn:        opts.Keynodes,
		recorder:  opts.Recorder,
		log:       opts.Logger,
		maxPasses: opts.MaxPasses,
		book:      verdict.NewBook(opts.Store, opts.Keynodes, opts.PersistVerdicts),
	}
	if m.recorder == nil {
		m.recorder = solution.New(opts.Store, opts.Keynodes)
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.maxPasses <= 0 {
		m.maxPasses = DefaultMaxPasses
	}
	return m
}

// Book returns the verdicts recorded by every run of this manager.
func (m *Manager) Book() *verdict.Book { return m.book }

// ApplyInference implements inference.Engine.
func (m *Manager) ApplyInference(ctx context.Context, req inference.Request) (solution.Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &run{
		Manager: m,
		req:     req,
		log: m.log.With(
			zap.String("run", uuid.NewString()),
			zap.String("target", kb.Label(ctx, m.store, req.Target))),
		matcher: pattern.NewMatcher(m.store),
		binder:  pattern.NewBinder(m.store),
		model:   m.kn.KnowledgeBase,
	}
	if req.Input.IsValid() {
		r.model = req.Input
		r.args = pattern.NewScopedArguments()
	} else {
		r.args = pattern.NewArguments()
	}

	achieved, err := r.execute(ctx)
	if err != nil {
		return solution.Solution{}, err
	}
	return m.recorder.Build(ctx, req.Target, achieved, r.steps, r.generated)
}

// run holds the state of one ApplyInference call.
type run struct {
	*Manager
	req     inference.Request
	log     *zap.Logger
	args    *pattern.Arguments
	matcher *pattern.Matcher
	binder  *pattern.Binder
	model   kb.Addr

	steps     []solution.Step
	generated []kb.Addr
}

func (r *run) execute(ctx context.Context) (bool, error) {
	if !r.req.Target.IsValid() {
		r.log.Warn("target is not valid")
		return false, nil
	}

	if r.req.Input.IsValid() {
		nodes, err := kb.Members(ctx, r.store, r.req.Input, kb.TypeNode)
		if err != nil {
			return false, err
		}
		r.args.Add(nodes...)
		if r.args.Len() == 0 {
			r.log.Warn("input structure has no arguments")
			return false, nil
		}
	}

	achieved, err := r.isTargetAchieved(ctx)
	if err != nil || achieved {
		if achieved {
			r.log.Info("target is already achieved")
		}
		return achieved, err
	}

	if !r.req.RuleSet.IsValid() {
		r.log.Warn("rules set is not valid")
		return false, nil
	}
	tiers, err := rules.BuildTiers(ctx, r.store, r.kn, r.req.RuleSet)
	if errors.Is(err, internalerr.ErrMalformedStructure) {
		r.log.Error("rule set is malformed", zap.Error(err))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(tiers) == 0 {
		r.log.Warn("no rule sets found")
		return false, nil
	}

	r.log.Info("start rule applying", zap.Int("tiers", len(tiers)))
	return r.loop(ctx, tiers)
}

// loop scans the tiers in order. A used rule that generated something
// restarts the scan at tier 0 with fresh queues; the run ends when a full
// scan makes no progress or the pass budget is spent.
func (r *run) loop(ctx context.Context, tiers []rules.Tier) (bool, error) {
	pass := 0
scan:
	for {
		pass++
		if pass > r.maxPasses {
			r.log.Warn("stopping inference",
				zap.Int("passes", r.maxPasses),
				zap.Error(internalerr.ErrMaxPassesReached))
			return false, nil
		}

		for _, tier := range tiers {
			q := tier.Queue()
			for rule, ok := q.Pop(); ok; rule, ok = q.Pop() {
				if err := ctx.Err(); err != nil {
					return false, err
				}
				if err := r.book.Clear(ctx, rule, r.model); err != nil {
					return false, err
				}

				used, created, err := r.useRule(ctx, rule)
				if err != nil {
					return false, err
				}
				r.steps = append(r.steps, solution.Step{Rule: rule, Tier: tier.Index, Applied: used})

				if !used {
					if err := r.book.Record(ctx, rule, r.model, verdict.Unsatisfiable); err != nil {
						return false, err
					}
					continue
				}
				if err := r.book.Record(ctx, rule, r.model, verdict.Satisfiable); err != nil {
					return false, err
				}
				r.generated = append(r.generated, created...)

				achieved, err := r.isTargetAchieved(ctx)
				if err != nil {
					return false, err
				}
				if achieved {
					r.log.Info("target achieved", zap.Int("tier", tier.Index), zap.Int("pass", pass))
					return true, nil
				}
				if len(created) > 0 {
					continue scan
				}
			}
		}
		return false, nil
	}
}

// useRule evaluates the formula under the rule's main key element. It
// returns whether the formula held and the elements generated on the way.
// A rule without a key element, or with a malformed formula, is not used.
func (r *run) useRule(ctx context.Context, rule kb.Addr) (bool, []kb.Addr, error) {
	log := r.log.With(zap.String("rule", kb.Label(ctx, r.store, rule)))
	log.Info("using rule")

	key, ok, err := kb.OutRelationTarget(ctx, r.store, rule, r.kn.MainKeyElement)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		log.Warn("rule has no main key element")
		return false, nil, nil
	}

	expr, err := logic.Build(ctx, r.store, r.kn, key)
	if errors.Is(err, internalerr.ErrMalformedStructure) {
		log.Warn("rule formula is malformed", zap.Error(err))
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}

	ev := logic.NewEvaluator(r.store, r.args, r.req.Output, log)
	res, err := ev.Evaluate(ctx, expr, nil)
	if errors.Is(err, internalerr.ErrMalformedStructure) {
		log.Warn("rule formula is malformed", zap.Error(err))
		return false, ev.Created(), nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("evaluate rule %d: %w", rule, err)
	}

	if res.Value {
		log.Info("whole statement is right", zap.Int("generated", len(ev.Created())))
	} else {
		log.Info("whole statement is wrong")
	}
	return res.Value, ev.Created(), nil
}

// isTargetAchieved searches the target under every binding set proposed
// from the arguments and stops at the first match. It never generates.
// With an input structure a constrained target variable only matches
// arguments.
func (r *run) isTargetAchieved(ctx context.Context) (bool, error) {
	tpl, err := pattern.Compile(ctx, r.store, r.req.Target)
	if err != nil {
		return false, err
	}
	sets, err := r.binder.EnumerateArguments(ctx, tpl, r.args, nil)
	if err != nil {
		return false, err
	}
	for _, s := range sets {
		found, err := r.matcher.SearchTemplate(ctx, tpl, s, 1)
		if err != nil {
			return false, err
		}
		if len(found) > 0 {
			return true, nil
		}
	}
	return false, nil
}
