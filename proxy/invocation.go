package proxy

import (
	"fmt"
	"reflect"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/reflectx"
)

// Interceptor observes and controls calls made through a proxy.
type Interceptor interface {
	Intercept(inv *Invocation)
}

type InterceptorFunc func(inv *Invocation)

func (f InterceptorFunc) Intercept(inv *Invocation) {
	f(inv)
}

// Invocation is a single in-flight call on a proxy. It is owned by the
// dispatch of that call and must not be retained after Intercept returns.
type Invocation struct {
	method    reflect.Method
	target    any
	call      reflect.Value
	in        []reflect.Value
	out       []reflect.Value
	proceeded int
}

func newInvocation(e *methodEntry, target any, in []reflect.Value) *Invocation {
	mt := e.method.Type
	out := make([]reflect.Value, mt.NumOut())
	for i := range out {
		out[i] = reflect.Zero(mt.Out(i))
	}

	return &Invocation{
		method: e.method,
		target: target,
		call:   e.call,
		in:     in,
		out:    out,
	}
}

// Method returns the interface method being called.
func (inv *Invocation) Method() reflect.Method {
	return inv.method
}

// Target returns the instance behind the proxy.
func (inv *Invocation) Target() any {
	return inv.target
}

func (inv *Invocation) Args() []any {
	args := make([]any, len(inv.in))
	for i, v := range inv.in {
		args[i] = v.Interface()
	}
	return args
}

func (inv *Invocation) Arg(i int) any {
	return inv.in[i].Interface()
}

// SetArg replaces an argument for subsequent calls to Proceed.
func (inv *Invocation) SetArg(i int, v any) {
	inv.in[i] = valueOf(v, inv.method.Type.In(i))
}

// Proceed forwards the call to the target with the current arguments and
// stores the results as the return values. Every call forwards again.
func (inv *Invocation) Proceed() {
	if inv.method.Type.IsVariadic() {
		inv.out = inv.call.CallSlice(inv.in)
	} else {
		inv.out = inv.call.Call(inv.in)
	}
	inv.proceeded++
}

// Proceeded returns how many times the call was forwarded to the target.
func (inv *Invocation) Proceeded() int {
	return inv.proceeded
}

func (inv *Invocation) ReturnValues() []any {
	values := make([]any, len(inv.out))
	for i, v := range inv.out {
		values[i] = v.Interface()
	}
	return values
}

// ReturnValue returns the first return value, or nil for methods without
// results.
func (inv *Invocation) ReturnValue() any {
	if len(inv.out) == 0 {
		return nil
	}
	return inv.out[0].Interface()
}

func (inv *Invocation) SetReturnValue(i int, v any) {
	inv.out[i] = valueOf(v, inv.method.Type.Out(i))
}

func (inv *Invocation) SetReturnValues(values ...any) {
	if len(values) != len(inv.out) {
		panic(&errorx.ProxyError{Message: fmt.Sprintf(
			"method '%v' returns %d value(s), got %d", inv.method.Name, len(inv.out), len(values))})
	}
	for i, v := range values {
		inv.SetReturnValue(i, v)
	}
}

// Err returns the trailing error result, if the method has one.
func (inv *Invocation) Err() error {
	if i := inv.errIndex(); i >= 0 {
		err, _ := inv.out[i].Interface().(error)
		return err
	}
	return nil
}

// SetErr sets the trailing error result. It panics if the method has none.
func (inv *Invocation) SetErr(err error) {
	i := inv.errIndex()
	if i < 0 {
		panic(&errorx.ProxyError{Message: fmt.Sprintf("method '%v' does not return an error", inv.method.Name)})
	}
	inv.SetReturnValue(i, err)
}

func (inv *Invocation) errIndex() int {
	n := inv.method.Type.NumOut()
	if n > 0 && reflectx.IsErrorType(inv.method.Type.Out(n-1)) {
		return n - 1
	}
	return -1
}

func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t)
	}
	panic(&errorx.TypeIncompatibilityError{To: t, From: rv.Type()})
}
