package di

import (
	"fmt"
	"reflect"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/proxy"
	"github.com/dozm/opendi/typesys"
	"go.uber.org/zap"
)

// Producer produces instances of one registration.
type Producer interface {
	ServiceType() *typesys.Type
	Lifetime() Lifetime
	GetInstance(scope Container) (any, error)
}

// Registry is the part of the container available to extension hooks.
type Registry interface {
	Container
	GetRegistration(serviceType *typesys.Type) (Producer, bool)
	// AddRegistration registers a descriptor for a service type that has no
	// registration yet.
	AddRegistration(d *Descriptor) (Producer, error)
	// GetOrAddRegistration returns the registration of the service type of d,
	// registering d when the type has none yet.
	GetOrAddRegistration(d *Descriptor) (Producer, error)
	// GetInstance resolves serviceType from the root scope.
	GetInstance(serviceType *typesys.Type) (any, error)
}

// ProxyFactory creates interception proxies for interface service types.
type ProxyFactory interface {
	CreateProxy(serviceType reflect.Type, interceptor proxy.Interceptor, target any) (any, error)
}

// UnregisteredTypeEvent is raised when a service type without registration
// is requested. A handler may register a descriptor for the type; handlers
// after the one that registers are not called.
type UnregisteredTypeEvent struct {
	ServiceType *typesys.Type
	Registry    Registry
	Logger      *zap.Logger
	Stats       *Stats
	registered  *Descriptor
}

func (e *UnregisteredTypeEvent) Register(d *Descriptor) error {
	if d == nil {
		return errorx.NewArgumentNilError("descriptor")
	}
	if d.ServiceType != e.ServiceType {
		return errorx.NewArgumentError(
			fmt.Sprintf("cannot register '%v' for the requested type '%v'", d.ServiceType, e.ServiceType))
	}
	if e.registered != nil {
		return errorx.NewArgumentError(fmt.Sprintf("'%v' is already registered", e.ServiceType))
	}
	e.registered = d
	return nil
}

func (e *UnregisteredTypeEvent) Registered() bool {
	return e.registered != nil
}

type UnregisteredTypeHandler func(e *UnregisteredTypeEvent) error

// CallSiteBuiltEvent is raised once per registration when its call site is
// first built. A handler may replace the call site; later handlers observe
// the replacement.
type CallSiteBuiltEvent struct {
	ServiceType *typesys.Type
	Registry    Registry
	Proxies     ProxyFactory
	Logger      *zap.Logger
	Stats       *Stats
	callSite    CallSite
	factory     *CallSiteFactory
	chain       *callSiteChain
}

func (e *CallSiteBuiltEvent) CallSite() CallSite {
	return e.callSite
}

func (e *CallSiteBuiltEvent) Replace(cs CallSite) {
	e.callSite = cs
}

// CallSiteOf returns the call site of another registered service, for
// handlers composing call sites out of registrations.
func (e *CallSiteBuiltEvent) CallSiteOf(serviceType *typesys.Type) (CallSite, error) {
	return e.factory.GetCallSite(serviceType, e.chain)
}

type CallSiteBuiltHandler func(e *CallSiteBuiltEvent) error

type hooks struct {
	unregistered  []UnregisteredTypeHandler
	callSiteBuilt []CallSiteBuiltHandler
}

type producer struct {
	descriptor *Descriptor
}

func (p *producer) ServiceType() *typesys.Type {
	return p.descriptor.ServiceType
}

func (p *producer) Lifetime() Lifetime {
	return p.descriptor.Lifetime
}

func (p *producer) GetInstance(scope Container) (any, error) {
	return scope.Get(p.descriptor.ServiceType)
}
