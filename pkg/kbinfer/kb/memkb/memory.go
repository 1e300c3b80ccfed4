package memkb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
)

// KB is an in-memory implementation of kb.KB.
type KB struct {
	mu    sync.RWMutex
	next  kb.Addr
	elems map[kb.Addr]kb.Element
	out   map[kb.Addr][]kb.Addr // source -> arcs
	in    map[kb.Addr][]kb.Addr // target -> arcs
	idtf  map[string]kb.Addr
}

// New creates an empty in-memory knowledge base.
func New() *KB {
	return &KB{
		next:  1,
		elems: make(map[kb.Addr]kb.Element),
		out:   make(map[kb.Addr][]kb.Addr),
		in:    make(map[kb.Addr][]kb.Addr),
		idtf:  make(map[string]kb.Addr),
	}
}

// Close implements kb.KB.
func (s *KB) Close() error { return nil }

// CreateNode adds a node of type t.
func (s *KB) CreateNode(ctx context.Context, t kb.Type) (kb.Addr, error) {
	if !t.Valid() || !t.IsNode() {
		return 0, fmt.Errorf("create node %s: %w", t, internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := s.next
	s.next++
	s.elems[addr] = kb.Element{Addr: addr, Type: t}
	return addr, nil
}

// CreateArc adds an arc of type t from source to target. Both ends may be
// nodes or arcs but must exist.
func (s *KB) CreateArc(ctx context.Context, t kb.Type, source, target kb.Addr) (kb.Addr, error) {
	if !t.Valid() || !t.IsArc() {
		return 0, fmt.Errorf("create arc %s: %w", t, internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.elems[source]; !ok {
		return 0, fmt.Errorf("arc source %d: %w", source, internalerr.ErrNotFound)
	}
	if _, ok := s.elems[target]; !ok {
		return 0, fmt.Errorf("arc target %d: %w", target, internalerr.ErrNotFound)
	}

	addr := s.next
	s.next++
	s.elems[addr] = kb.Element{Addr: addr, Type: t, Source: source, Target: target}
	s.out[source] = append(s.out[source], addr)
	s.in[target] = append(s.in[target], addr)
	return addr, nil
}

// Erase removes an element together with every arc incident to it.
// Erasing an unknown element is a no-op.
func (s *KB) Erase(ctx context.Context, a kb.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.erase(a)
	return nil
}

func (s *KB) erase(a kb.Addr) {
	el, ok := s.elems[a]
	if !ok {
		return
	}
	for _, arc := range append(append([]kb.Addr(nil), s.out[a]...), s.in[a]...) {
		s.erase(arc)
	}
	if el.Type.IsArc() {
		s.out[el.Source] = without(s.out[el.Source], a)
		s.in[el.Target] = without(s.in[el.Target], a)
	}
	delete(s.out, a)
	delete(s.in, a)
	if el.Idtf != "" {
		delete(s.idtf, el.Idtf)
	}
	delete(s.elems, a)
}

// Element returns an element by handle.
func (s *KB) Element(ctx context.Context, a kb.Addr) (kb.Element, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.elems[a]
	return el, ok, nil
}

// Count returns the number of stored elements.
func (s *KB) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.elems)), nil
}

// SetIdtf assigns a unique system identifier to an element.
func (s *KB) SetIdtf(ctx context.Context, a kb.Addr, idtf string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.elems[a]
	if !ok {
		return fmt.Errorf("set idtf %q: %w", idtf, internalerr.ErrNotFound)
	}
	if other, taken := s.idtf[idtf]; taken && other != a {
		return fmt.Errorf("set idtf %q: %w", idtf, internalerr.ErrDuplicate)
	}
	if el.Idtf != "" {
		delete(s.idtf, el.Idtf)
	}
	el.Idtf = idtf
	s.elems[a] = el
	if idtf != "" {
		s.idtf[idtf] = a
	}
	return nil
}

// ResolveIdtf finds the element carrying idtf.
func (s *KB) ResolveIdtf(ctx context.Context, idtf string) (kb.Addr, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.idtf[idtf]
	return a, ok, nil
}

// Arcs returns arcs matching q ordered by creation.
func (s *KB) Arcs(ctx context.Context, q kb.ArcQuery) ([]kb.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []kb.Addr
	switch {
	case q.Source.IsValid():
		candidates = s.out[q.Source]
	case q.Target.IsValid():
		candidates = s.in[q.Target]
	default:
		for a, el := range s.elems {
			if el.Type.IsArc() {
				candidates = append(candidates, a)
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	}

	var out []kb.Element
	for _, a := range candidates {
		el := s.elems[a]
		if q.Target.IsValid() && el.Target != q.Target {
			continue
		}
		if !el.Type.Matches(q.Type) {
			continue
		}
		if q.SourceType != 0 && !s.elems[el.Source].Type.Matches(q.SourceType) {
			continue
		}
		if q.TargetType != 0 && !s.elems[el.Target].Type.Matches(q.TargetType) {
			continue
		}
		out = append(out, el)
	}
	return out, nil
}

func without(list []kb.Addr, a kb.Addr) []kb.Addr {
	out := list[:0]
	for _, x := range list {
		if x != a {
			out = append(out, x)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
