package di

import (
	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/proxy"
	"github.com/dozm/opendi/syncx"
	"github.com/dozm/opendi/typesys"
	"go.uber.org/zap"
)

type ContainerBuilder interface {
	Add(...*Descriptor)
	Build() Container
	ConfigureOptions(func(*Options))
	Contains(serviceType *typesys.Type) bool
	Remove(serviceType *typesys.Type)
	// OnUnregisteredType appends a handler raised when a service type
	// without registration is requested.
	OnUnregisteredType(UnregisteredTypeHandler)
	// OnCallSiteBuilt appends a handler raised when the call site of a
	// registration is built.
	OnCallSiteBuilt(CallSiteBuiltHandler)
	// Proxies returns the proxy stubs used by interceptors.
	Proxies() *proxy.Factory
}

type containerBuilder struct {
	descriptors          []*Descriptor
	optionsConfigurators []func(*Options)
	hooks                hooks
	proxies              *proxy.Factory
}

func (b *containerBuilder) ConfigureOptions(f func(*Options)) {
	b.optionsConfigurators = append(b.optionsConfigurators, f)
}

func (b *containerBuilder) Add(d ...*Descriptor) {
	b.descriptors = append(b.descriptors, d...)
}

func (b *containerBuilder) Contains(serviceType *typesys.Type) bool {
	for _, d := range b.descriptors {
		if d.ServiceType == serviceType {
			return true
		}
	}
	return false
}

// Remove all descriptors of the service type.
func (b *containerBuilder) Remove(serviceType *typesys.Type) {
	kept := b.descriptors[:0]
	for _, d := range b.descriptors {
		if d.ServiceType != serviceType {
			kept = append(kept, d)
		}
	}
	b.descriptors = kept
}

func (b *containerBuilder) OnUnregisteredType(h UnregisteredTypeHandler) {
	if h == nil {
		panic(errorx.NewArgumentNilError("handler"))
	}
	b.hooks.unregistered = append(b.hooks.unregistered, h)
}

func (b *containerBuilder) OnCallSiteBuilt(h CallSiteBuiltHandler) {
	if h == nil {
		panic(errorx.NewArgumentNilError("handler"))
	}
	b.hooks.callSiteBuilt = append(b.hooks.callSiteBuilt, h)
}

func (b *containerBuilder) Proxies() *proxy.Factory {
	return b.proxies
}

func (b *containerBuilder) builtInServices(c *container) {
	csf := c.CallSiteFactory

	csf.Add(ContainerType, &ContainerCallSite{})
	csf.Add(ScopeFactoryType, newConstantCallSite(ScopeFactoryType, c.Root))
	csf.Add(IsServiceType, newConstantCallSite(IsServiceType, csf))
}

func (b *containerBuilder) configureOptions(options *Options) {
	for _, f := range b.optionsConfigurators {
		f(options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Proxies == nil {
		options.Proxies = b.proxies
	}
}

func (b *containerBuilder) Build() Container {
	options := DefaultOptions()
	b.configureOptions(&options)

	c := &container{
		CallSiteFactory:  newCallSiteFactory(b.descriptors),
		realizedServices: syncx.NewMap[*typesys.Type, ServiceAccessor](),
		logger:           options.Logger,
		stats:            &Stats{},
	}

	c.CallSiteFactory.ext = &extensions{
		hooks: hooks{
			unregistered:  append([]UnregisteredTypeHandler(nil), b.hooks.unregistered...),
			callSiteBuilt: append([]CallSiteBuiltHandler(nil), b.hooks.callSiteBuilt...),
		},
		registry: c,
		proxies:  options.Proxies,
		logger:   options.Logger,
		stats:    c.stats,
	}

	c.Root = newEngineScope(c, true)
	c.engine = c.createEngine()

	b.builtInServices(c)

	if options.ValidateScopes {
		c.callSiteValidator = newCallSiteValidator()
	}

	if options.ValidateOnBuild {
		errs := make([]error, 0)
		for _, d := range b.descriptors {
			if e := c.validateService(d); e != nil {
				errs = append(errs, e)
			}
		}

		if len(errs) > 0 {
			panic(&errorx.AggregateError{Errors: errs})
		}
	}

	return c
}

// Create a ContainerBuilder
func Builder() ContainerBuilder {
	return &containerBuilder{proxies: proxy.NewFactory()}
}

// New a descriptor with instance
func Instance[T any](instance any) *Descriptor {
	return NewInstanceDescriptor(typesys.Of[T](), instance)
}

// New a transient constructor descriptor
func Transient[T any](ctor any) *Descriptor {
	return NewConstructorDescriptor(typesys.Of[T](), Lifetime_Transient, ctor)
}

// New a scoped constructor descriptor
func Scoped[T any](ctor any) *Descriptor {
	return NewConstructorDescriptor(typesys.Of[T](), Lifetime_Scoped, ctor)
}

// New a singleton constructor descriptor
func Singleton[T any](ctor any) *Descriptor {
	return NewConstructorDescriptor(typesys.Of[T](), Lifetime_Singleton, ctor)
}

// Add a transient service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// ctor is the constructor of the service T.
func AddTransient[T any](cb ContainerBuilder, ctor any) {
	cb.Add(Transient[T](ctor))
}

// Add a scoped service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// ctor is the constructor of the service T.
func AddScoped[T any](cb ContainerBuilder, ctor any) {
	cb.Add(Scoped[T](ctor))
}

// Add a singleton service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// ctor is the constructor of the service T.
func AddSingleton[T any](cb ContainerBuilder, ctor any) {
	cb.Add(Singleton[T](ctor))
}

// Add an instance service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// the instance must be assignable to the service T.
func AddInstance[T any](cb ContainerBuilder, instance any) {
	cb.Add(Instance[T](instance))
}

// New a transient factory descriptor
func TransientFactory[T any](factory Factory) *Descriptor {
	return NewFactoryDescriptor(typesys.Of[T](), Lifetime_Transient, factory)
}

// New a scoped factory descriptor
func ScopedFactory[T any](factory Factory) *Descriptor {
	return NewFactoryDescriptor(typesys.Of[T](), Lifetime_Scoped, factory)
}

// New a singleton factory descriptor
func SingletonFactory[T any](factory Factory) *Descriptor {
	return NewFactoryDescriptor(typesys.Of[T](), Lifetime_Singleton, factory)
}

func AddTransientFactory[T any](cb ContainerBuilder, factory Factory) {
	cb.Add(TransientFactory[T](factory))
}

func AddScopedFactory[T any](cb ContainerBuilder, factory Factory) {
	cb.Add(ScopedFactory[T](factory))
}

func AddSingletonFactory[T any](cb ContainerBuilder, factory Factory) {
	cb.Add(SingletonFactory[T](factory))
}

// Add the proxy stub for the interface T, needed to intercept services of type T.
func AddProxy[T any](cb ContainerBuilder, stub func(d *proxy.Dispatcher) T) {
	proxy.Register(cb.Proxies(), stub)
}
