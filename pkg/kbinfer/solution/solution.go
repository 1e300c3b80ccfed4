package solution

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
)

// Recorder writes the outcome of inference runs into the knowledge base
type Recorder struct {
	store   kb.KB
	kn      *keynodes.Keynodes
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a new solution recorder
func New(store kb.KB, kn *keynodes.Keynodes) *Recorder {
	return &Recorder{
		store:   store,
		kn:      kn,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Solution is the outcome of one inference run
type Solution struct {
	ID        string
	Node      kb.Addr // solution node in the knowledge base
	Target    kb.Addr
	Achieved  bool
	Steps     []Step
	Generated []kb.Addr // elements created by applied rules
	CreatedAt time.Time
}

// Step records one rule that was tried
type Step struct {
	Rule    kb.Addr
	Tier    int
	Applied bool
}

// Applied returns the rules that were used, in application order
func (s Solution) Applied() []kb.Addr {
	var out []kb.Addr
	for _, st := range s.Steps {
		if st.Applied {
			out = append(out, st.Rule)
		}
	}
	return out
}

// Build creates the solution node and returns the full record.
// The node is named solution_<ULID>, belongs to concept_solution and, when
// the target was achieved, to concept_success_solution. Applied rules
// become its members.
func (r *Recorder) Build(ctx context.Context, target kb.Addr, achieved bool, steps []Step, generated []kb.Addr) (Solution, error) {
	r.mu.Lock()
	createdAt := r.now()
	id := ulid.MustNew(ulid.Timestamp(createdAt), r.entropy).String()
	r.mu.Unlock()

	sol := Solution{
		ID:        id,
		Target:    target,
		Achieved:  achieved,
		Steps:     steps,
		Generated: generated,
		CreatedAt: createdAt,
	}

	node, err := kb.ResolveOrCreate(ctx, r.store, "solution_"+id, kb.NodeConst)
	if err != nil {
		return sol, fmt.Errorf("solution node: %w", err)
	}
	sol.Node = node

	classes := []kb.Addr{r.kn.Solution}
	if achieved {
		classes = append(classes, r.kn.SuccessfulSolution)
	}
	for _, c := range classes {
		if _, err := r.store.CreateArc(ctx, kb.ArcAccessConstPosPerm, c, node); err != nil {
			return sol, fmt.Errorf("solution class: %w", err)
		}
	}

	// Each applied rule is listed once
	seen := make(map[kb.Addr]bool)
	for _, rule := range sol.Applied() {
		if seen[rule] {
			continue
		}
		seen[rule] = true
		if _, err := r.store.CreateArc(ctx, kb.ArcAccessConstPosPerm, node, rule); err != nil {
			return sol, fmt.Errorf("solution step: %w", err)
		}
	}
	return sol, nil
}
