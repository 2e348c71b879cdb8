package typesys

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/syncx"
)

type Kind byte

const (
	// reference type that is not an interface (pointers, maps, funcs, model classes)
	Kind_Class Kind = iota
	// value type (Go structs, basic types, arrays, model structs)
	Kind_Struct
	Kind_Interface
	Kind_Slice
	Kind_Parameter
)

func (k Kind) String() string {
	switch k {
	case Kind_Class:
		return "class"
	case Kind_Struct:
		return "struct"
	case Kind_Interface:
		return "interface"
	case Kind_Slice:
		return "slice"
	case Kind_Parameter:
		return "parameter"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

type Variance byte

const (
	Variance_Invariant Variance = iota
	Variance_Covariant
	Variance_Contravariant
)

// Constraints declared on a generic parameter.
// Base and Interfaces may mention other parameters of the same definition.
type Constraints struct {
	ReferenceType      bool
	ValueType          bool
	DefaultConstructor bool
	Base               *Type
	Interfaces         []*Type
}

var lastID atomic.Uint64

// Type describes a service or implementation type independently of the Go
// type system, so that generic definitions can be closed at runtime.
//
// A Type is one of:
//   - a plain type (reflected from Go or declared in the model),
//   - a generic definition (has parameters, no definition),
//   - a constructed type (definition + arguments, possibly still open),
//   - a generic parameter.
//
// Types are interned: two constructions of the same definition over the
// same arguments return the same *Type, so identity comparison is type
// equality.
type Type struct {
	id          uint64
	name        string
	kind        Kind
	goType      atomic.Pointer[reflect.Type]
	abstract    bool
	defaultCtor bool
	elem        *Type

	base       *Type
	interfaces []*Type
	hierarchy  sync.Once

	params      []*Type
	definition  *Type
	args        []*Type
	open        bool
	constructed *syncx.Map[string, *Type]
	slice       atomic.Pointer[Type]

	owner       *Type
	position    int
	variance    Variance
	constraints Constraints
}

type Option func(*Type)

// WithParams makes the type a generic definition over the parameters ps.
func WithParams(ps ...*Type) Option {
	return func(t *Type) {
		for i, p := range ps {
			if p.kind != Kind_Parameter {
				panic(errorx.NewArgumentError(fmt.Sprintf("'%v' is not a generic parameter", p)))
			}
			if p.owner != nil {
				panic(errorx.NewArgumentError(fmt.Sprintf("generic parameter '%v' already belongs to '%v'", p, p.owner.name)))
			}
			p.owner = t
			p.position = i
		}
		t.params = append(t.params, ps...)
		t.open = true
	}
}

func WithBase(base *Type) Option {
	return func(t *Type) { t.base = base }
}

func WithInterfaces(ifaces ...*Type) Option {
	return func(t *Type) { t.interfaces = append(t.interfaces, ifaces...) }
}

func WithDefaultConstructor() Option {
	return func(t *Type) { t.defaultCtor = true }
}

func Abstract() Option {
	return func(t *Type) { t.abstract = true }
}

// WithGoType binds the model type to a Go type, which lets the container
// check assignability of produced values and build proxies for interfaces.
func WithGoType(rt reflect.Type) Option {
	return func(t *Type) { t.bindGoType(rt) }
}

// Out marks an interface parameter covariant.
func Out() Option {
	return func(t *Type) { t.variance = Variance_Covariant }
}

// In marks an interface parameter contravariant.
func In() Option {
	return func(t *Type) { t.variance = Variance_Contravariant }
}

func WhereClass() Option {
	return func(t *Type) { t.constraints.ReferenceType = true }
}

func WhereStruct() Option {
	return func(t *Type) { t.constraints.ValueType = true }
}

func WhereNew() Option {
	return func(t *Type) { t.constraints.DefaultConstructor = true }
}

func WhereBase(base *Type) Option {
	return func(t *Type) { t.constraints.Base = base }
}

func WhereImplements(ifaces ...*Type) Option {
	return func(t *Type) { t.constraints.Interfaces = append(t.constraints.Interfaces, ifaces...) }
}

func newType(name string, kind Kind, opts []Option) *Type {
	t := &Type{
		id:   lastID.Add(1),
		name: name,
		kind: kind,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.open {
		t.constructed = syncx.NewMap[string, *Type]()
	}
	return t
}

// Class declares a reference type.
func Class(name string, opts ...Option) *Type {
	return newType(name, Kind_Class, opts)
}

// Struct declares a value type. Value types always have a default constructor.
func Struct(name string, opts ...Option) *Type {
	return newType(name, Kind_Struct, append([]Option{WithDefaultConstructor()}, opts...))
}

func Interface(name string, opts ...Option) *Type {
	return newType(name, Kind_Interface, append([]Option{Abstract()}, opts...))
}

// Param declares a generic parameter. It becomes owned by the definition
// it is passed to through WithParams.
func Param(name string, opts ...Option) *Type {
	t := newType(name, Kind_Parameter, opts)
	t.open = true
	return t
}

// Where adds constraints to a generic parameter. It exists for constraints
// that refer back to the parameter's own definition and must only be used
// while the model is being declared.
func (t *Type) Where(opts ...Option) *Type {
	if t.kind != Kind_Parameter {
		panic(errorx.NewArgumentError(fmt.Sprintf("'%v' is not a generic parameter", t)))
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SliceOf returns the slice type with element type elem.
func SliceOf(elem *Type) *Type {
	if rt := elem.GoType(); rt != nil {
		return FromReflect(reflect.SliceOf(rt))
	}
	if s := elem.slice.Load(); s != nil {
		return s
	}
	s := &Type{
		id:   lastID.Add(1),
		name: "[]" + elem.String(),
		kind: Kind_Slice,
		elem: elem,
		open: elem.open,
	}
	if !elem.slice.CompareAndSwap(nil, s) {
		return elem.slice.Load()
	}
	return s
}

// Construct closes the generic definition t over args. Arguments may be
// generic parameters, in which case the result is still open. Constraints
// are not checked; see CheckConstraints.
func (t *Type) Construct(args ...*Type) (*Type, error) {
	if !t.IsGenericDefinition() {
		return nil, errorx.NewArgumentError(fmt.Sprintf("'%v' is not a generic type definition", t))
	}
	if len(args) != len(t.params) {
		return nil, errorx.NewArgumentError(
			fmt.Sprintf("'%v' expects %d type argument(s), got %d", t, len(t.params), len(args)))
	}

	var key strings.Builder
	for i, a := range args {
		if a == nil {
			return nil, errorx.NewArgumentNilError(fmt.Sprintf("args[%d]", i))
		}
		if i > 0 {
			key.WriteByte(',')
		}
		key.WriteString(strconv.FormatUint(a.id, 10))
	}

	c, _ := t.constructed.LoadOrCreate(key.String(), func(string) *Type {
		c := &Type{
			id:          lastID.Add(1),
			name:        t.name,
			kind:        t.kind,
			abstract:    t.abstract,
			defaultCtor: t.defaultCtor,
			definition:  t,
			args:        append([]*Type(nil), args...),
		}
		for _, a := range args {
			if a.open {
				c.open = true
				break
			}
		}
		return c
	})
	return c, nil
}

func (t *Type) MustConstruct(args ...*Type) *Type {
	c, err := t.Construct(args...)
	if err != nil {
		panic(err)
	}
	return c
}

func (t *Type) Name() string {
	return t.name
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch {
	case t.definition != nil:
		return t.name + formatList(t.args)
	case len(t.params) > 0:
		return t.name + formatList(t.params)
	default:
		return t.name
	}
}

func formatList(ts []*Type) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, a := range ts {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

func (t *Type) Kind() Kind {
	return t.kind
}

// GoType returns the bound Go type, or nil for model-only types.
func (t *Type) GoType() reflect.Type {
	if rt := t.goType.Load(); rt != nil {
		return *rt
	}
	return nil
}

func (t *Type) bindGoType(rt reflect.Type) {
	if rt == nil {
		t.goType.Store(nil)
		return
	}
	t.goType.Store(&rt)
}

func (t *Type) IsInterface() bool {
	return t.kind == Kind_Interface
}

func (t *Type) IsValueType() bool {
	if t.kind == Kind_Parameter {
		return t.constraints.ValueType
	}
	return t.kind == Kind_Struct
}

func (t *Type) IsReferenceType() bool {
	switch t.kind {
	case Kind_Class, Kind_Interface, Kind_Slice:
		return true
	case Kind_Parameter:
		return t.constraints.ReferenceType ||
			(t.constraints.Base != nil && t.constraints.Base.kind == Kind_Class)
	default:
		return false
	}
}

func (t *Type) IsAbstract() bool {
	return t.abstract
}

func (t *Type) HasDefaultConstructor() bool {
	if t.kind == Kind_Parameter {
		return t.constraints.DefaultConstructor || t.constraints.ValueType
	}
	if t.kind == Kind_Struct {
		return true
	}
	return t.defaultCtor && !t.abstract
}

func (t *Type) IsGenericParameter() bool {
	return t.kind == Kind_Parameter
}

func (t *Type) IsGenericDefinition() bool {
	return len(t.params) > 0 && t.definition == nil
}

func (t *Type) IsConstructed() bool {
	return t.definition != nil
}

// ContainsGenericParameters reports whether t still has unbound parameters.
func (t *Type) ContainsGenericParameters() bool {
	return t.open
}

// GenericDefinition returns the definition t was constructed from, t itself
// for a definition and nil for non-generic types.
func (t *Type) GenericDefinition() *Type {
	if t.definition != nil {
		return t.definition
	}
	if len(t.params) > 0 {
		return t
	}
	return nil
}

func (t *Type) Params() []*Type {
	return t.params
}

func (t *Type) Args() []*Type {
	return t.args
}

func (t *Type) Elem() *Type {
	if rt := t.GoType(); t.elem == nil && rt != nil && rt.Kind() == reflect.Slice {
		return FromReflect(rt.Elem())
	}
	return t.elem
}

// Owner returns the definition declaring the generic parameter t.
func (t *Type) Owner() *Type {
	return t.owner
}

func (t *Type) Position() int {
	return t.position
}

func (t *Type) Variance() Variance {
	return t.variance
}

func (t *Type) Constraints() Constraints {
	return t.constraints
}

func (t *Type) resolveHierarchy() {
	t.hierarchy.Do(func() {
		if t.definition == nil {
			return
		}
		m := t.definition.bindings(t.args)
		if b := t.definition.base; b != nil {
			t.base = b.Substitute(m)
		}
		if len(t.definition.interfaces) > 0 {
			t.interfaces = make([]*Type, len(t.definition.interfaces))
			for i, iface := range t.definition.interfaces {
				t.interfaces[i] = iface.Substitute(m)
			}
		}
	})
}

func (t *Type) Base() *Type {
	t.resolveHierarchy()
	return t.base
}

// Interfaces returns the directly declared interfaces.
func (t *Type) Interfaces() []*Type {
	t.resolveHierarchy()
	return t.interfaces
}

// AllInterfaces returns every interface t implements, including the ones
// inherited from base types and from other interfaces.
func (t *Type) AllInterfaces() []*Type {
	seen := make(map[*Type]bool)
	var result []*Type
	var walk func(*Type)
	walk = func(x *Type) {
		for _, i := range x.Interfaces() {
			if seen[i] {
				continue
			}
			seen[i] = true
			result = append(result, i)
			walk(i)
		}
		if b := x.Base(); b != nil {
			walk(b)
		}
	}
	walk(t)
	return result
}

func (t *Type) bindings(args []*Type) map[*Type]*Type {
	m := make(map[*Type]*Type, len(t.params))
	for i, p := range t.params {
		m[p] = args[i]
	}
	return m
}

// Substitute replaces generic parameters in t according to m.
func (t *Type) Substitute(m map[*Type]*Type) *Type {
	if !t.open {
		return t
	}
	switch {
	case t.kind == Kind_Parameter:
		if r, ok := m[t]; ok {
			return r
		}
		return t
	case t.definition != nil:
		args := make([]*Type, len(t.args))
		changed := false
		for i, a := range t.args {
			args[i] = a.Substitute(m)
			changed = changed || args[i] != a
		}
		if !changed {
			return t
		}
		return t.definition.MustConstruct(args...)
	case t.kind == Kind_Slice && t.elem != nil:
		if e := t.elem.Substitute(m); e != t.elem {
			return SliceOf(e)
		}
	}
	return t
}

// selfReference is the definition constructed over its own parameters, the
// form in which a definition appears among its own contracts.
func (t *Type) selfReference() *Type {
	return t.MustConstruct(t.params...)
}
