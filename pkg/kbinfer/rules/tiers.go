// Package rules reads prioritized rule sets out of the knowledge base.
//
// A rule set holds its tiers as members. The first tier's membership arc is
// marked rrel_1; every following tier is reached through a common arc from
// the previous membership arc to the next one, marked nrel_basic_sequence.
package rules

import (
	"context"
	"fmt"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
)

// Tier is one priority level of a rule set.
type Tier struct {
	Index int
	Node  kb.Addr
	Rules []kb.Addr
}

// Queue returns a fresh queue over the tier's rules.
func (t Tier) Queue() *Queue {
	return &Queue{rules: append([]kb.Addr(nil), t.Rules...)}
}

// Queue hands out rules front to back.
type Queue struct {
	rules []kb.Addr
}

// Pop removes and returns the front rule.
func (q *Queue) Pop() (kb.Addr, bool) {
	if len(q.rules) == 0 {
		return 0, false
	}
	r := q.rules[0]
	q.rules = q.rules[1:]
	return r, true
}

// Len reports how many rules are left.
func (q *Queue) Len() int { return len(q.rules) }

// BuildTiers returns the tiers of ruleSet in ascending priority order. A
// rule set without an rrel_1 tier yields no tiers. A chain that loops or
// branches is reported as ErrMalformedStructure.
func BuildTiers(ctx context.Context, store kb.KB, kn *keynodes.Keynodes, ruleSet kb.Addr) ([]Tier, error) {
	if !ruleSet.IsValid() {
		return nil, fmt.Errorf("rule set: %w", internalerr.ErrInvalidInput)
	}

	first, err := kb.Iterate5(ctx, store,
		kb.ArcQuery{Source: ruleSet, Type: kb.ArcAccessConstPosPerm, TargetType: kb.NodeConst},
		kb.ArcAccessConstPosPerm, kn.Rrel1)
	if err != nil {
		return nil, err
	}
	switch len(first) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("rule set %d has %d first tiers: %w", ruleSet, len(first), internalerr.ErrMalformedStructure)
	}

	var tiers []Tier
	seen := make(map[kb.Addr]bool)
	membership := first[0].Arc
	for {
		if seen[membership.Target] {
			return nil, fmt.Errorf("rule set %d: tier %d repeats in the sequence: %w",
				ruleSet, membership.Target, internalerr.ErrMalformedStructure)
		}
		seen[membership.Target] = true

		rules, err := kb.Members(ctx, store, membership.Target, kb.NodeConst)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, Tier{Index: len(tiers), Node: membership.Target, Rules: rules})

		next, ok, err := nextMembership(ctx, store, kn, ruleSet, membership.Addr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return tiers, nil
		}
		membership = next
	}
}

// nextMembership follows the nrel_basic_sequence arc leaving the membership
// arc prev. The target must itself be a membership arc of ruleSet.
func nextMembership(ctx context.Context, store kb.KB, kn *keynodes.Keynodes, ruleSet, prev kb.Addr) (kb.Element, bool, error) {
	links, err := kb.Iterate5(ctx, store,
		kb.ArcQuery{Source: prev, Type: kb.ArcCommonConst},
		kb.ArcAccessConstPosPerm, kn.BasicSequence)
	if err != nil {
		return kb.Element{}, false, err
	}
	switch len(links) {
	case 0:
		return kb.Element{}, false, nil
	case 1:
	default:
		return kb.Element{}, false, fmt.Errorf("rule set %d branches after arc %d: %w",
			ruleSet, prev, internalerr.ErrMalformedStructure)
	}

	next, ok, err := store.Element(ctx, links[0].Arc.Target)
	if err != nil {
		return kb.Element{}, false, err
	}
	if !ok || !next.Type.IsArc() || next.Source != ruleSet {
		return kb.Element{}, false, fmt.Errorf("rule set %d: sequence leaves the set at arc %d: %w",
			ruleSet, prev, internalerr.ErrMalformedStructure)
	}
	return next, true, nil
}
