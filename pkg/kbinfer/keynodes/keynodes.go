// Package keynodes resolves the well-known elements the inference core
// addresses by system identifier.
package keynodes

import (
	"context"
	"fmt"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
)

// System identifiers of the keynodes.
const (
	IdtfMainKeyElement     = "rrel_main_key_sc_element"
	IdtfSatisfiable        = "nrel_satisfiable_formula"
	IdtfRrel1              = "rrel_1"
	IdtfBasicSequence      = "nrel_basic_sequence"
	IdtfKnowledgeBase      = "knowledge_base_IMS"
	IdtfImplication        = "nrel_implication"
	IdtfConjunction        = "nrel_conjunction"
	IdtfDisjunction        = "nrel_disjunction"
	IdtfNegation           = "nrel_negation"
	IdtfAtomic             = "atomic_logical_formula"
	IdtfSolution           = "concept_solution"
	IdtfSuccessfulSolution = "concept_success_solution"
)

// Keynodes holds resolved handles. It is filled once and never mutated.
type Keynodes struct {
	MainKeyElement     kb.Addr
	Satisfiable        kb.Addr
	Rrel1              kb.Addr
	BasicSequence      kb.Addr
	KnowledgeBase      kb.Addr
	Implication        kb.Addr
	Conjunction        kb.Addr
	Disjunction        kb.Addr
	Negation           kb.Addr
	Atomic             kb.Addr
	Solution           kb.Addr
	SuccessfulSolution kb.Addr
}

// Resolve looks every keynode up, creating constant nodes for the missing ones.
func Resolve(ctx context.Context, k kb.KB) (*Keynodes, error) {
	kn := &Keynodes{}
	for _, f := range kn.fields() {
		addr, err := kb.ResolveOrCreate(ctx, k, f.idtf, kb.NodeConst)
		if err != nil {
			return nil, fmt.Errorf("keynode %s: %w", f.idtf, err)
		}
		*f.addr = addr
	}
	return kn, nil
}

type field struct {
	idtf string
	addr *kb.Addr
}

func (kn *Keynodes) fields() []field {
	return []field{
		{IdtfMainKeyElement, &kn.MainKeyElement},
		{IdtfSatisfiable, &kn.Satisfiable},
		{IdtfRrel1, &kn.Rrel1},
		{IdtfBasicSequence, &kn.BasicSequence},
		{IdtfKnowledgeBase, &kn.KnowledgeBase},
		{IdtfImplication, &kn.Implication},
		{IdtfConjunction, &kn.Conjunction},
		{IdtfDisjunction, &kn.Disjunction},
		{IdtfNegation, &kn.Negation},
		{IdtfAtomic, &kn.Atomic},
		{IdtfSolution, &kn.Solution},
		{IdtfSuccessfulSolution, &kn.SuccessfulSolution},
	}
}
