package proxy

import (
	"fmt"
	"reflect"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/reflectx"
)

type methodEntry struct {
	method reflect.Method
	call   reflect.Value
}

// Dispatcher routes the calls of one proxy through its interceptor.
// Proxy stubs hold a Dispatcher and forward every interface method to
// Invoke.
type Dispatcher struct {
	serviceType reflect.Type
	interceptor Interceptor
	target      any
	table       map[string]*methodEntry
}

func newDispatcher(serviceType reflect.Type, interceptor Interceptor, target any) (*Dispatcher, error) {
	methods, err := reflectx.Methods(serviceType)
	if err != nil {
		return nil, &errorx.ProxyError{Message: err.Error()}
	}
	if interceptor == nil {
		return nil, errorx.NewArgumentNilError("interceptor")
	}
	if target == nil {
		return nil, errorx.NewArgumentNilError("target")
	}
	tt := reflect.TypeOf(target)
	if !tt.Implements(serviceType) {
		return nil, &errorx.TypeIncompatibilityError{To: serviceType, From: tt}
	}

	tv := reflect.ValueOf(target)
	table := make(map[string]*methodEntry, len(methods))
	for _, m := range methods {
		if !m.IsExported() {
			return nil, &errorx.ProxyError{
				Message: fmt.Sprintf("cannot proxy unexported method '%v' of '%v'", m.Name, serviceType)}
		}
		table[m.Name] = &methodEntry{method: m, call: tv.MethodByName(m.Name)}
	}

	return &Dispatcher{
		serviceType: serviceType,
		interceptor: interceptor,
		target:      target,
		table:       table,
	}, nil
}

func (d *Dispatcher) ServiceType() reflect.Type {
	return d.serviceType
}

func (d *Dispatcher) Target() any {
	return d.target
}

func (d *Dispatcher) Interceptor() Interceptor {
	return d.interceptor
}

// Invoke dispatches the method name with args through the interceptor and
// returns the invocation's return values. Variadic arguments are passed as
// a single slice.
func (d *Dispatcher) Invoke(name string, args ...any) []any {
	e, ok := d.table[name]
	if !ok {
		panic(&errorx.ProxyError{Message: fmt.Sprintf("'%v' has no method '%v'", d.serviceType, name)})
	}

	mt := e.method.Type
	if len(args) != mt.NumIn() {
		panic(&errorx.ProxyError{Message: fmt.Sprintf(
			"method '%v' expects %d argument(s), got %d", name, mt.NumIn(), len(args))})
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = valueOf(a, mt.In(i))
	}

	inv := newInvocation(e, d.target, in)
	d.interceptor.Intercept(inv)
	return inv.ReturnValues()
}

// Result returns out[i] as T, or the zero value of T when it is nil.
func Result[T any](out []any, i int) (r T) {
	if v := out[i]; v != nil {
		r = v.(T)
	}
	return
}
