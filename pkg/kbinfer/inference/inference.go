package inference

import (
	"context"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/solution"
)

// Engine runs forward-chaining inference over a knowledge base
// This interface allows swapping implementations (direct chaining, tracing wrappers, etc.)
type Engine interface {
	// ApplyInference tries the rules of req.RuleSet until req.Target matches
	// or no rule can be used. Only storage failures are returned as errors;
	// every other outcome is a Solution, achieved or not.
	ApplyInference(ctx context.Context, req Request) (solution.Solution, error)
}

// Request describes one inference run
type Request struct {
	Target  kb.Addr // pattern structure to prove
	RuleSet kb.Addr // prioritized rule set, may be invalid
	Input   kb.Addr // structure whose nodes are the candidate arguments, may be invalid
	Output  kb.Addr // structure that receives generated elements, may be invalid
}
