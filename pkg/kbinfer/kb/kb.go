package kb

import (
	"context"
	"strings"
)

// KB is the knowledge base contract the inference core works against.
// Writes are immediately visible to subsequent reads; there is no
// transactional isolation between them.
type KB interface {
	Close() error

	// Elements
	CreateNode(ctx context.Context, t Type) (Addr, error)
	CreateArc(ctx context.Context, t Type, source, target Addr) (Addr, error)
	Erase(ctx context.Context, a Addr) error
	Element(ctx context.Context, a Addr) (Element, bool, error)
	Count(ctx context.Context) (int64, error)

	// System identifiers
	SetIdtf(ctx context.Context, a Addr, idtf string) error
	ResolveIdtf(ctx context.Context, idtf string) (Addr, bool, error)

	// Arcs returns arcs matching the query in creation order.
	Arcs(ctx context.Context, q ArcQuery) ([]Element, error)
}

// Addr is an opaque handle to a knowledge base element (node or arc).
// The zero value is the invalid handle.
type Addr uint64

// IsValid reports whether the handle refers to something.
func (a Addr) IsValid() bool { return a != 0 }

// Element is a node or an arc as stored in the knowledge base.
// Source and Target are only set for arcs.
type Element struct {
	Addr   Addr
	Type   Type
	Source Addr
	Target Addr
	Idtf   string
}

// ArcQuery selects arcs. Zero fields match anything; type fields are
// masks checked with Type.Matches.
type ArcQuery struct {
	Source     Addr
	Target     Addr
	Type       Type
	SourceType Type
	TargetType Type
}

// Type is a set of element flags.
type Type uint16

const (
	TypeNode Type = 1 << iota
	TypeArcAccess
	TypeArcCommon
	TypeConst
	TypeVar
	TypePos
	TypeNeg
	TypePerm
	TypeTemp
)

const (
	NodeConst = TypeNode | TypeConst
	NodeVar   = TypeNode | TypeVar

	ArcAccessConstPosPerm = TypeArcAccess | TypeConst | TypePos | TypePerm
	ArcAccessConstPosTemp = TypeArcAccess | TypeConst | TypePos | TypeTemp
	ArcAccessConstNegTemp = TypeArcAccess | TypeConst | TypeNeg | TypeTemp
	ArcAccessVarPosPerm   = TypeArcAccess | TypeVar | TypePos | TypePerm

	ArcCommonConst = TypeArcCommon | TypeConst
	ArcCommonVar   = TypeArcCommon | TypeVar
)

// IsNode reports whether t describes a node.
func (t Type) IsNode() bool { return t&TypeNode != 0 }

// IsArc reports whether t describes an arc.
func (t Type) IsArc() bool { return t&(TypeArcAccess|TypeArcCommon) != 0 }

func (t Type) IsConst() bool { return t&TypeConst != 0 }

func (t Type) IsVar() bool { return t&TypeVar != 0 }

// Matches reports whether every flag of mask is set in t.
// The zero mask matches everything.
func (t Type) Matches(mask Type) bool { return t&mask == mask }

// Const returns the constant counterpart of a variable type.
func (t Type) Const() Type {
	if !t.IsVar() {
		return t
	}
	return t&^TypeVar | TypeConst
}

// Valid reports whether t is a well formed element type.
func (t Type) Valid() bool {
	kinds := 0
	for _, f := range []Type{TypeNode, TypeArcAccess, TypeArcCommon} {
		if t&f != 0 {
			kinds++
		}
	}
	if kinds != 1 {
		return false
	}
	if t.IsConst() && t.IsVar() {
		return false
	}
	return !(t&TypePos != 0 && t&TypeNeg != 0) && !(t&TypePerm != 0 && t&TypeTemp != 0)
}

var typeNames = []struct {
	flag Type
	name string
}{
	{TypeNode, "node"},
	{TypeArcAccess, "access"},
	{TypeArcCommon, "common"},
	{TypeConst, "const"},
	{TypeVar, "var"},
	{TypePos, "pos"},
	{TypeNeg, "neg"},
	{TypePerm, "perm"},
	{TypeTemp, "temp"},
}

func (t Type) String() string {
	var parts []string
	for _, n := range typeNames {
		if t&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}
