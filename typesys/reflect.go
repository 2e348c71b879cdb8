package typesys

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/reflectx"
	"github.com/dozm/opendi/syncx"
)

var (
	reflected = syncx.NewMap[reflect.Type, *Type]()
	bindMu    sync.Mutex
)

var emptyInterface = reflectx.TypeOf[any]()

// Of returns the descriptor of the Go type T.
func Of[T any]() *Type {
	return FromReflect(reflectx.TypeOf[T]())
}

// FromReflect returns the interned descriptor of a Go type.
func FromReflect(rt reflect.Type) *Type {
	if rt == nil {
		return nil
	}
	if t, ok := reflected.Load(rt); ok {
		return t
	}
	t, _ := reflected.LoadOrStore(rt, newReflectedType(rt))
	return t
}

func newReflectedType(rt reflect.Type) *Type {
	t := &Type{
		id:   lastID.Add(1),
		name: rt.String(),
	}
	t.bindGoType(rt)

	switch rt.Kind() {
	case reflect.Interface:
		t.kind = Kind_Interface
		t.abstract = true
	case reflect.Slice:
		t.kind = Kind_Slice
	case reflect.Pointer:
		t.kind = Kind_Class
		t.defaultCtor = rt.Elem().Kind() == reflect.Struct
	case reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		t.kind = Kind_Class
	default:
		t.kind = Kind_Struct
		t.defaultCtor = true
	}

	return t
}

// Bind associates the construction of def over args with the Go type rt.
// Afterwards Of[rt] and def.Construct(args...) return the same descriptor,
// which lets Go code request model generic types by their Go instantiation.
// Binding is safe while other goroutines resolve, but a Go type must be
// bound before its first Of call, or Of interns an unrelated descriptor.
func Bind(rt reflect.Type, def *Type, args ...*Type) (*Type, error) {
	bindMu.Lock()
	defer bindMu.Unlock()

	c, err := def.Construct(args...)
	if err != nil {
		return nil, err
	}
	if c.open {
		return nil, errorx.NewArgumentError(fmt.Sprintf("cannot bind open type '%v' to '%v'", c, rt))
	}
	if bound := c.GoType(); bound != nil && bound != rt {
		return nil, errorx.NewArgumentError(fmt.Sprintf("'%v' is already bound to '%v'", c, bound))
	}
	if existing, loaded := reflected.LoadOrStore(rt, c); loaded && existing != c {
		return nil, errorx.NewArgumentError(fmt.Sprintf("'%v' is already described by '%v'", rt, existing))
	}
	c.bindGoType(rt)
	return c, nil
}

// MustBind binds the Go type T, panicking on error.
func MustBind[T any](def *Type, args ...*Type) *Type {
	c, err := Bind(reflectx.TypeOf[T](), def, args...)
	if err != nil {
		panic(err)
	}
	return c
}
