package pattern

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
)

// Binding assigns knowledge base elements to template variables.
type Binding map[kb.Addr]kb.Addr

// Clone returns an independent copy.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Merge returns a copy of b extended with the entries of other that b does
// not already bind.
func (b Binding) Merge(other Binding) Binding {
	out := b.Clone()
	for k, v := range other {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

func (b Binding) String() string {
	keys := make([]kb.Addr, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.FormatUint(uint64(k), 10) + "=" + strconv.FormatUint(uint64(b[k]), 10)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Arguments is the append-only ordered set of candidate argument nodes of
// one inference run. Nodes generated during the run are appended so that
// later rule applications can bind them.
//
// Scoped arguments come from an input structure: class-constrained
// variables may only bind to them. Unscoped arguments are hints and a
// variable no argument fits is searched over the whole knowledge base.
type Arguments struct {
	list   []kb.Addr
	seen   map[kb.Addr]struct{}
	scoped bool
}

// NewArguments builds an unscoped set from initial, dropping duplicates.
func NewArguments(initial ...kb.Addr) *Arguments {
	a := &Arguments{seen: make(map[kb.Addr]struct{})}
	a.Add(initial...)
	return a
}

// NewScopedArguments is NewArguments for the members of an input structure.
func NewScopedArguments(initial ...kb.Addr) *Arguments {
	a := NewArguments(initial...)
	a.scoped = true
	return a
}

// Scoped reports whether constrained variables must bind to an argument.
func (a *Arguments) Scoped() bool { return a.scoped }

// Add appends unseen handles and reports how many were new.
func (a *Arguments) Add(addrs ...kb.Addr) int {
	added := 0
	for _, x := range addrs {
		if _, ok := a.seen[x]; ok || !x.IsValid() {
			continue
		}
		a.seen[x] = struct{}{}
		a.list = append(a.list, x)
		added++
	}
	return added
}

func (a *Arguments) Contains(x kb.Addr) bool {
	_, ok := a.seen[x]
	return ok
}

func (a *Arguments) Len() int { return len(a.list) }

// Slice returns a snapshot of the arguments in insertion order.
func (a *Arguments) Slice() []kb.Addr {
	return append([]kb.Addr(nil), a.list...)
}
