package proxy

import (
	"fmt"
	"reflect"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/reflectx"
	"github.com/dozm/opendi/syncx"
)

// Stub builds the proxy value for one interface around a dispatcher.
// Go cannot create method sets at runtime, so every proxied interface
// needs a small struct whose methods call Dispatcher.Invoke.
type Stub func(d *Dispatcher) any

// Factory creates proxies from registered stubs.
type Factory struct {
	stubs *syncx.Map[reflect.Type, Stub]
}

func NewFactory() *Factory {
	return &Factory{stubs: syncx.NewMap[reflect.Type, Stub]()}
}

func (f *Factory) Register(iface reflect.Type, stub Stub) error {
	if iface == nil || iface.Kind() != reflect.Interface {
		return &errorx.ProxyError{Message: fmt.Sprintf("'%v' is not an interface", iface)}
	}
	if stub == nil {
		return errorx.NewArgumentNilError("stub")
	}
	f.stubs.Store(iface, stub)
	return nil
}

// Register adds the stub for the interface T to f.
func Register[T any](f *Factory, stub func(d *Dispatcher) T) {
	if err := f.Register(reflectx.TypeOf[T](), func(d *Dispatcher) any { return stub(d) }); err != nil {
		panic(err)
	}
}

func (f *Factory) Supports(iface reflect.Type) bool {
	_, ok := f.stubs.Load(iface)
	return ok
}

// CreateProxy returns a value implementing serviceType whose every method
// call goes through interceptor before it may reach target.
func (f *Factory) CreateProxy(serviceType reflect.Type, interceptor Interceptor, target any) (any, error) {
	stub, ok := f.stubs.Load(serviceType)
	if !ok {
		return nil, &errorx.ProxyError{Message: fmt.Sprintf("no proxy stub registered for '%v'", serviceType)}
	}

	d, err := newDispatcher(serviceType, interceptor, target)
	if err != nil {
		return nil, err
	}

	p := stub(d)
	if p == nil || !reflect.TypeOf(p).Implements(serviceType) {
		return nil, &errorx.ProxyError{
			Message: fmt.Sprintf("the stub for '%v' returned '%T' which does not implement it", serviceType, p)}
	}
	return p, nil
}
