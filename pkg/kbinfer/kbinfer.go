package kbinfer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/kbinfer/pkg/kbinfer/inference"
	"github.com/cognicore/kbinfer/pkg/kbinfer/inference/direct"
	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
	"github.com/cognicore/kbinfer/pkg/kbinfer/maintenance"
	"github.com/cognicore/kbinfer/pkg/kbinfer/solution"
	"github.com/cognicore/kbinfer/pkg/kbinfer/verdict"
)

// Engine is the main inference facade
type Engine struct {
	store kb.KB
	kn    *keynodes.Keynodes
	inf   inference.Engine
	log   *zap.Logger
	// book is the direct manager's in-memory verdict index; nil when a
	// custom inference engine is plugged in
	book *verdict.Book
}

// Options configures an Engine
type Options struct {
	Store           kb.KB
	Logger          *zap.Logger
	MaxPasses       int  // zero uses direct.DefaultMaxPasses
	PersistVerdicts bool // mirror satisfiability records into the store
	// Inference replaces the direct manager when set
	Inference inference.Engine
}

// New resolves the keynodes in the store and wires the inference manager
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("kbinfer: nil store: %w", internalerr.ErrInvalidInput)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	kn, err := keynodes.Resolve(ctx, opts.Store)
	if err != nil {
		return nil, err
	}

	e := &Engine{store: opts.Store, kn: kn, inf: opts.Inference, log: log}
	if e.inf == nil {
		m := direct.New(direct.Options{
			Store:           opts.Store,
			Keynodes:        kn,
			Logger:          log,
			MaxPasses:       opts.MaxPasses,
			PersistVerdicts: opts.PersistVerdicts,
		})
		e.inf, e.book = m, m.Book()
	}
	return e, nil
}

// Close cleanly shuts down the engine and its store
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the underlying knowledge base
func (e *Engine) Store() kb.KB { return e.store }

// Keynodes returns the resolved well-known elements
func (e *Engine) Keynodes() *keynodes.Keynodes { return e.kn }

// Resolve finds the element with the given system identifier
func (e *Engine) Resolve(ctx context.Context, idtf string) (kb.Addr, error) {
	addr, ok, err := e.store.ResolveIdtf(ctx, idtf)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("element %q: %w", idtf, internalerr.ErrNotFound)
	}
	return addr, nil
}

// Infer runs one inference request
func (e *Engine) Infer(ctx context.Context, req inference.Request) (solution.Solution, error) {
	return e.inf.ApplyInference(ctx, req)
}

// NamedRequest is an inference request addressed by system identifiers.
// RuleSet, Input and Output may be empty.
type NamedRequest struct {
	Target  string
	RuleSet string
	Input   string
	Output  string
}

// InferNamed resolves the identifiers of req and runs it
func (e *Engine) InferNamed(ctx context.Context, req NamedRequest) (solution.Solution, error) {
	var resolved inference.Request
	fields := []struct {
		idtf     string
		dst      *kb.Addr
		required bool
	}{
		{req.Target, &resolved.Target, true},
		{req.RuleSet, &resolved.RuleSet, false},
		{req.Input, &resolved.Input, false},
		{req.Output, &resolved.Output, false},
	}
	for _, f := range fields {
		if f.idtf == "" {
			if f.required {
				return solution.Solution{}, fmt.Errorf("target identifier: %w", internalerr.ErrInvalidInput)
			}
			continue
		}
		addr, err := e.Resolve(ctx, f.idtf)
		if err != nil {
			return solution.Solution{}, err
		}
		*f.dst = addr
	}
	return e.Infer(ctx, resolved)
}

// Verdicts lists satisfiability records for model (all when invalid). They
// are read from the store unless verdicts are kept in memory only.
func (e *Engine) Verdicts(ctx context.Context, model kb.Addr) ([]verdict.Record, error) {
	if e.book != nil && !e.book.Persistent() {
		return e.book.List(model), nil
	}
	return verdict.List(ctx, e.store, e.kn, model)
}

// Cleaner returns a verdict cleaner bound to the engine's store
func (e *Engine) Cleaner() *maintenance.Cleaner {
	return &maintenance.Cleaner{Store: e.store, Keynodes: e.kn, Logger: e.log}
}
