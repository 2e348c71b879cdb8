package di

import (
	"fmt"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/syncx"
	"github.com/dozm/opendi/typesys"
	"go.uber.org/zap"
)

// Activator creates an instance of a closed implementation type. Go cannot
// instantiate generic types at runtime, so the activator plays the role of
// the closed type's constructor.
type Activator func(closed *typesys.Type, c Container) (any, error)

// OpenGenericRegistration maps an open generic service definition to an
// open generic implementation definition.
type OpenGenericRegistration struct {
	ServiceDefinition        *typesys.Type
	ImplementationDefinition *typesys.Type
	Lifetime                 Lifetime
	Activator                Activator
}

// NewOpenGenericRegistration validates and creates an open generic mapping.
// Both types must be generic definitions and the implementation must
// implement the service definition.
func NewOpenGenericRegistration(service, impl *typesys.Type, lifetime Lifetime, activator Activator) (*OpenGenericRegistration, error) {
	switch {
	case service == nil:
		return nil, errorx.NewArgumentNilError("service")
	case impl == nil:
		return nil, errorx.NewArgumentNilError("impl")
	case activator == nil:
		return nil, errorx.NewArgumentNilError("activator")
	}

	if !service.IsGenericDefinition() {
		return nil, &errorx.OpenGenericRegistrationError{
			Message: fmt.Sprintf("service type '%v' is not a generic type definition", service)}
	}
	if !impl.IsGenericDefinition() {
		return nil, &errorx.OpenGenericRegistrationError{
			Message: fmt.Sprintf("implementation type '%v' is not a generic type definition", impl)}
	}
	if impl.IsInterface() || impl.IsAbstract() {
		return nil, &errorx.OpenGenericRegistrationError{
			Message: fmt.Sprintf("implementation type '%v' cannot be instantiated", impl)}
	}
	if !typesys.ImplementsDefinition(impl, service) {
		return nil, &errorx.OpenGenericRegistrationError{
			Message: fmt.Sprintf("implementation type '%v' is not assignable to '%v'", impl, service)}
	}
	if lifetime > Lifetime_Transient {
		return nil, &errorx.OpenGenericRegistrationError{Message: fmt.Sprintf("unknown lifetime %v", lifetime)}
	}

	return &OpenGenericRegistration{
		ServiceDefinition:        service,
		ImplementationDefinition: impl,
		Lifetime:                 lifetime,
		Activator:                activator,
	}, nil
}

// ClosedGenericKey identifies one closed service type resolved through one
// closed implementation type.
type ClosedGenericKey struct {
	Service        *typesys.Type
	Implementation *typesys.Type
}

type closedRegistrar interface {
	register(e *UnregisteredTypeEvent, closed *typesys.Type) error
}

// OpenGenericResolver registers closed services on demand for one open
// generic mapping.
type OpenGenericResolver struct {
	registration *OpenGenericRegistration
	registrar    closedRegistrar
}

func NewOpenGenericResolver(reg *OpenGenericRegistration) *OpenGenericResolver {
	r := &OpenGenericResolver{registration: reg}
	if reg.Lifetime == Lifetime_Singleton {
		r.registrar = &singletonRegistrar{
			registration: reg,
			cache:        syncx.NewMap[ClosedGenericKey, any](),
			locks:        &syncx.LockMap[ClosedGenericKey]{},
		}
	} else {
		r.registrar = &transientRegistrar{registration: reg}
	}
	return r
}

func (r *OpenGenericResolver) Registration() *OpenGenericRegistration {
	return r.registration
}

// OnUnregisteredType is an UnregisteredTypeHandler. Requests that are not
// constructed from the mapped service definition, or whose arguments do not
// satisfy the implementation's constraints, are left unregistered.
func (r *OpenGenericResolver) OnUnregisteredType(e *UnregisteredTypeEvent) error {
	requested := e.ServiceType
	if !requested.IsConstructed() || requested.GenericDefinition() != r.registration.ServiceDefinition {
		return nil
	}

	e.Stats.MatchAttempts.Add(1)
	result := typesys.Match(requested, r.registration.ImplementationDefinition)
	if !result.Satisfied {
		e.Stats.Misses.Add(1)
		e.Logger.Debug("open generic did not match",
			zap.Stringer("service", requested),
			zap.Stringer("implementation", r.registration.ImplementationDefinition),
			zap.String("reason", result.Reason))
		return nil
	}

	e.Stats.Matches.Add(1)
	e.Logger.Debug("open generic matched",
		zap.Stringer("service", requested),
		zap.Stringer("implementation", result.Closed),
		zap.Stringer("lifetime", r.registration.Lifetime))
	return r.registrar.register(e, result.Closed)
}

func activate(activator Activator, closed *typesys.Type) Factory {
	return func(c Container) any {
		v, err := activator(closed, c)
		if err != nil {
			panic(err)
		}
		if err = instanceAssignable(v, closed); err != nil {
			panic(err)
		}
		return v
	}
}

// implementationProducer returns the producer of the closed implementation,
// registering a transient one when the container has none. Several mappings
// may close to the same implementation concurrently.
func implementationProducer(e *UnregisteredTypeEvent, reg *OpenGenericRegistration, closed *typesys.Type) (Producer, error) {
	return e.Registry.GetOrAddRegistration(
		NewFactoryDescriptor(closed, Lifetime_Transient, activate(reg.Activator, closed)))
}

type transientRegistrar struct {
	registration *OpenGenericRegistration
}

func (t *transientRegistrar) register(e *UnregisteredTypeEvent, closed *typesys.Type) error {
	lifetime := t.registration.Lifetime
	if closed == e.ServiceType {
		return e.Register(NewFactoryDescriptor(closed, lifetime, activate(t.registration.Activator, closed)))
	}

	p, err := implementationProducer(e, t.registration, closed)
	if err != nil {
		return err
	}

	return e.Register(NewFactoryDescriptor(e.ServiceType, lifetime, func(c Container) any {
		v, err := p.GetInstance(c)
		if err != nil {
			panic(err)
		}
		return v
	}))
}

type singletonRegistrar struct {
	registration *OpenGenericRegistration
	cache        *syncx.Map[ClosedGenericKey, any]
	locks        *syncx.LockMap[ClosedGenericKey]
}

func (s *singletonRegistrar) register(e *UnregisteredTypeEvent, closed *typesys.Type) error {
	v, err := s.instance(e, ClosedGenericKey{Service: e.ServiceType, Implementation: closed})
	if err != nil {
		return err
	}
	return e.Register(NewInstanceDescriptor(e.ServiceType, v))
}

// instance returns the one instance for key, creating it on first use.
// Concurrent first requests for the same key wait for the creator.
func (s *singletonRegistrar) instance(e *UnregisteredTypeEvent, key ClosedGenericKey) (any, error) {
	if v, ok := s.cache.Load(key); ok {
		return v, nil
	}

	locker := s.locks.LoadOrCreate(key)
	locker.Lock()
	defer locker.Unlock()

	if v, ok := s.cache.Load(key); ok {
		return v, nil
	}

	var v any
	var err error
	if key.Implementation == key.Service {
		v, err = s.registration.Activator(key.Implementation, e.Registry)
		if err == nil {
			err = instanceAssignable(v, key.Implementation)
		}
	} else {
		if _, err = implementationProducer(e, s.registration, key.Implementation); err != nil {
			return nil, err
		}
		v, err = e.Registry.GetInstance(key.Implementation)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Store(key, v)
	e.Logger.Debug("created open generic singleton",
		zap.Stringer("service", key.Service),
		zap.Stringer("implementation", key.Implementation))
	return v, nil
}

// TryAddOpenGeneric registers an open generic mapping, returning the
// configuration error instead of panicking.
func TryAddOpenGeneric(cb ContainerBuilder, service, impl *typesys.Type, lifetime Lifetime, activator Activator) error {
	reg, err := NewOpenGenericRegistration(service, impl, lifetime, activator)
	if err != nil {
		return err
	}
	cb.OnUnregisteredType(NewOpenGenericResolver(reg).OnUnregisteredType)
	return nil
}

// Add an open generic mapping to the ContainerBuilder.
// Requests for closed types of service are served by impl closed over the
// inferred arguments, created by activator.
func AddOpenGeneric(cb ContainerBuilder, service, impl *typesys.Type, lifetime Lifetime, activator Activator) {
	if err := TryAddOpenGeneric(cb, service, impl, lifetime, activator); err != nil {
		panic(err)
	}
}

func AddTransientOpenGeneric(cb ContainerBuilder, service, impl *typesys.Type, activator Activator) {
	AddOpenGeneric(cb, service, impl, Lifetime_Transient, activator)
}

func AddScopedOpenGeneric(cb ContainerBuilder, service, impl *typesys.Type, activator Activator) {
	AddOpenGeneric(cb, service, impl, Lifetime_Scoped, activator)
}

func AddSingletonOpenGeneric(cb ContainerBuilder, service, impl *typesys.Type, activator Activator) {
	AddOpenGeneric(cb, service, impl, Lifetime_Singleton, activator)
}
