package scaffold

import "github.com/cognicore/kbinfer/pkg/kbinfer/kb"

// Identifiers of the demonstration knowledge base.
const (
	DemoTarget  = "demo_target"
	DemoRuleSet = "demo_rule_set"
	DemoInput   = "demo_input"
	DemoOutput  = "demo_output"
)

// Demo addresses the pieces of the demonstration knowledge base.
type Demo struct {
	Target, RuleSet, Input, Output kb.Addr
}

// SeedDemo writes a small taxonomy that needs several restarts to prove
// that rex is a living being: rex is a dog, and the rules climb
// dog -> mammal -> animal -> living with the most general rule ranked first.
func (b *Builder) SeedDemo() Demo {
	x := b.Var("_demo_x")
	class := func(idtf, concept string) kb.Addr {
		return b.ClassAtom(idtf, b.Node(concept), x)
	}
	rule := func(idtf, from, to string) kb.Addr {
		return b.Rule(idtf, b.Implication(class(idtf+"_if", from), class(idtf+"_then", to)))
	}

	rex := b.Node("rex")
	b.Member(b.Node("concept_dog"), rex)

	return Demo{
		Target: class(DemoTarget, "concept_living"),
		RuleSet: b.RuleSet(DemoRuleSet,
			[]kb.Addr{rule("rule_animal_is_living", "concept_animal", "concept_living")},
			[]kb.Addr{
				rule("rule_mammal_is_animal", "concept_mammal", "concept_animal"),
				rule("rule_dog_is_mammal", "concept_dog", "concept_mammal"),
			},
		),
		Input:  b.Structure(DemoInput, rex),
		Output: b.Structure(DemoOutput),
	}
}
