// Package verdict keeps satisfiability records of rules per model.
//
// In the knowledge base a record is a common arc rule -> model carrying an
// attribute arc from nrel_satisfiable_formula: a positive temporary access
// arc for satisfiable, a negative one for unsatisfiable.
package verdict

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
)

// Verdict is the satisfiability of a rule in a model.
type Verdict int8

const (
	Unknown Verdict = iota
	Satisfiable
	Unsatisfiable
)

func (v Verdict) String() string {
	switch v {
	case Satisfiable:
		return "satisfiable"
	case Unsatisfiable:
		return "unsatisfiable"
	}
	return "unknown"
}

// Record is one stored verdict.
type Record struct {
	Rule    kb.Addr
	Model   kb.Addr
	Verdict Verdict
}

type key struct {
	rule, model kb.Addr
}

// Book indexes verdicts in memory and, when persist is set, mirrors every
// change into the knowledge base. It is safe for concurrent use.
type Book struct {
	store   kb.KB
	kn      *keynodes.Keynodes
	persist bool

	mu      sync.RWMutex
	entries map[key]Verdict
}

// NewBook creates an empty book.
func NewBook(store kb.KB, kn *keynodes.Keynodes, persist bool) *Book {
	return &Book{store: store, kn: kn, persist: persist, entries: make(map[key]Verdict)}
}

// Clear drops the verdict of rule in model. Clearing an absent verdict is
// not an error.
func (b *Book) Clear(ctx context.Context, rule, model kb.Addr) error {
	b.mu.Lock()
	delete(b.entries, key{rule, model})
	b.mu.Unlock()
	if !b.persist {
		return nil
	}
	records, err := find(ctx, b.store, b.kn, rule, model)
	if err != nil {
		return err
	}
	for _, q := range records {
		if err := b.store.Erase(ctx, q.Arc.Addr); err != nil {
			return fmt.Errorf("clear verdict: %w", err)
		}
	}
	return nil
}

// Record replaces the verdict of rule in model. Exactly one record exists
// for the pair afterwards.
func (b *Book) Record(ctx context.Context, rule, model kb.Addr, v Verdict) error {
	if v == Unknown {
		return b.Clear(ctx, rule, model)
	}
	if err := b.Clear(ctx, rule, model); err != nil {
		return err
	}
	b.mu.Lock()
	b.entries[key{rule, model}] = v
	b.mu.Unlock()
	if !b.persist {
		return nil
	}

	arc, err := b.store.CreateArc(ctx, kb.ArcCommonConst, rule, model)
	if err != nil {
		return fmt.Errorf("record verdict: %w", err)
	}
	attr := kb.ArcAccessConstPosTemp
	if v == Unsatisfiable {
		attr = kb.ArcAccessConstNegTemp
	}
	if _, err := b.store.CreateArc(ctx, attr, b.kn.Satisfiable, arc); err != nil {
		return fmt.Errorf("record verdict: %w", err)
	}
	return nil
}

// Lookup returns the verdict recorded during this book's lifetime.
func (b *Book) Lookup(rule, model kb.Addr) Verdict {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries[key{rule, model}]
}

// Len reports how many pairs have a verdict.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Persistent reports whether the book mirrors into the knowledge base.
func (b *Book) Persistent() bool { return b.persist }

// List returns the in-memory verdicts for model, or for every model when
// model is the invalid handle, ordered by model then rule.
func (b *Book) List(model kb.Addr) []Record {
	b.mu.RLock()
	var out []Record
	for k, v := range b.entries {
		if model.IsValid() && k.model != model {
			continue
		}
		out = append(out, Record{Rule: k.rule, Model: k.model, Verdict: v})
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

// Load reads the verdict of rule in model from the knowledge base.
func Load(ctx context.Context, store kb.KB, kn *keynodes.Keynodes, rule, model kb.Addr) (Verdict, error) {
	records, err := find(ctx, store, kn, rule, model)
	if err != nil {
		return Unknown, err
	}
	switch len(records) {
	case 0:
		return Unknown, nil
	case 1:
		return fromAttr(records[0].Attr), nil
	}
	return Unknown, fmt.Errorf("rule %d has %d verdicts in model %d: %w",
		rule, len(records), model, internalerr.ErrMalformedStructure)
}

// List returns the stored verdicts for model, or for every model when model
// is the invalid handle. Records come in creation order.
func List(ctx context.Context, store kb.KB, kn *keynodes.Keynodes, model kb.Addr) ([]Record, error) {
	attrs, err := store.Arcs(ctx, kb.ArcQuery{Source: kn.Satisfiable, Type: kb.TypeArcAccess})
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, attr := range attrs {
		arc, ok, err := store.Element(ctx, attr.Target)
		if err != nil {
			return nil, err
		}
		if !ok || !arc.Type.Matches(kb.ArcCommonConst) {
			continue
		}
		if model.IsValid() && arc.Target != model {
			continue
		}
		out = append(out, Record{Rule: arc.Source, Model: arc.Target, Verdict: fromAttr(attr)})
	}
	return out, nil
}

// Purge erases the stored verdicts for model (every model when invalid) and
// reports how many were removed.
func Purge(ctx context.Context, store kb.KB, kn *keynodes.Keynodes, model kb.Addr) (int, error) {
	records, err := List(ctx, store, kn, model)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, r := range records {
		found, err := find(ctx, store, kn, r.Rule, r.Model)
		if err != nil {
			return removed, err
		}
		for _, q := range found {
			if err := store.Erase(ctx, q.Arc.Addr); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

func find(ctx context.Context, store kb.KB, kn *keynodes.Keynodes, rule, model kb.Addr) ([]kb.Quintuple, error) {
	return kb.Iterate5(ctx, store,
		kb.ArcQuery{Source: rule, Target: model, Type: kb.ArcCommonConst},
		kb.TypeArcAccess, kn.Satisfiable)
}

func fromAttr(attr kb.Element) Verdict {
	if attr.Type.Matches(kb.TypeNeg) {
		return Unsatisfiable
	}
	return Satisfiable
}
