package di

import (
	"reflect"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/proxy"
	"github.com/dozm/opendi/typesys"
	"go.uber.org/zap"
)

var interceptorType = typesys.Of[proxy.Interceptor]()

// InterceptorSource produces the call site of the interceptor bound to an
// intercepted service.
type InterceptorSource interface {
	callSite(e *CallSiteBuiltEvent) (CallSite, error)
	// resolves is the service type the interceptor is resolved from, or nil.
	resolves() *typesys.Type
}

type instanceSource struct {
	interceptor proxy.Interceptor
}

func (s instanceSource) callSite(e *CallSiteBuiltEvent) (CallSite, error) {
	return newConstantCallSite(interceptorType, s.interceptor), nil
}

func (s instanceSource) resolves() *typesys.Type { return nil }

type typeSource struct {
	serviceType *typesys.Type
}

// The registration of the interceptor type is looked up when the
// intercepted service is built, not when the rule is added.
func (s typeSource) callSite(e *CallSiteBuiltEvent) (CallSite, error) {
	return e.CallSiteOf(s.serviceType)
}

func (s typeSource) resolves() *typesys.Type { return s.serviceType }

type factorySource struct {
	factory func(Container) proxy.Interceptor
}

func (s factorySource) callSite(e *CallSiteBuiltEvent) (CallSite, error) {
	return newFactoryCallSite(NoneResultCache, interceptorType, func(c Container) any {
		return s.factory(c)
	}), nil
}

func (s factorySource) resolves() *typesys.Type { return nil }

// InterceptorInstance uses the same interceptor for every intercepted call.
func InterceptorInstance(i proxy.Interceptor) InterceptorSource {
	if i == nil {
		panic(errorx.NewArgumentNilError("interceptor"))
	}
	return instanceSource{interceptor: i}
}

// InterceptorType resolves the interceptor from the registration of t.
func InterceptorType(t *typesys.Type) InterceptorSource {
	if t == nil {
		panic(errorx.NewArgumentNilError("interceptor type"))
	}
	return typeSource{serviceType: t}
}

func InterceptorOf[T any]() InterceptorSource {
	return InterceptorType(typesys.Of[T]())
}

// InterceptorFactory calls f on every resolution of an intercepted service.
func InterceptorFactory(f func(Container) proxy.Interceptor) InterceptorSource {
	if f == nil {
		panic(errorx.NewArgumentNilError("factory"))
	}
	return factorySource{factory: f}
}

// InterceptionRule binds an interceptor to the service types accepted by
// Predicate. Only interface types with a Go binding are ever intercepted.
// Interceptors themselves are not: neither the type the rule resolves its
// interceptor from nor any interface implementing proxy.Interceptor.
type InterceptionRule struct {
	Predicate func(*typesys.Type) bool
	Source    InterceptorSource
}

func (r *InterceptionRule) matches(t *typesys.Type) bool {
	if !t.IsInterface() || t == interceptorType || t == r.Source.resolves() {
		return false
	}
	if gt := t.GoType(); gt != nil && gt.Implements(interceptorType.GoType()) {
		return false
	}
	return r.Predicate(t)
}

// OnCallSiteBuilt is a CallSiteBuiltHandler wrapping the call site of every
// matching service in an interception proxy.
func (r *InterceptionRule) OnCallSiteBuilt(e *CallSiteBuiltEvent) error {
	if !r.matches(e.ServiceType) {
		return nil
	}
	if e.ServiceType.GoType() == nil {
		e.Logger.Warn("interception skipped for an interface without Go type",
			zap.Stringer("service", e.ServiceType))
		return nil
	}

	interceptor, err := r.Source.callSite(e)
	if err != nil {
		return err
	}

	inner := e.CallSite()
	e.Stats.Interceptions.Add(1)

	if inner.Kind() == CallSiteKind_Constant && interceptor.Kind() == CallSiteKind_Constant {
		i, ok := interceptor.Value().(proxy.Interceptor)
		if !ok {
			return &errorx.TypeIncompatibilityError{To: interceptorType, From: reflect.TypeOf(interceptor.Value())}
		}
		p, err := e.Proxies.CreateProxy(e.ServiceType.GoType(), i, inner.Value())
		if err != nil {
			return err
		}
		e.Stats.ConstantFolds.Add(1)
		e.Stats.ProxiesCreated.Add(1)
		e.Logger.Debug("interception folded into a constant",
			zap.Stringer("service", e.ServiceType))
		e.Replace(newConstantCallSite(e.ServiceType, p))
		return nil
	}

	e.Logger.Debug("interception applied", zap.Stringer("service", e.ServiceType))
	e.Replace(newInterceptedCallSite(e.ServiceType, inner, interceptor, e.Proxies))
	return nil
}

// InterceptWith adds an interception rule to the ContainerBuilder.
// Rules added later wrap the proxies of rules added earlier.
func InterceptWith(cb ContainerBuilder, source InterceptorSource, predicate func(*typesys.Type) bool) {
	if source == nil {
		panic(errorx.NewArgumentNilError("source"))
	}
	if predicate == nil {
		panic(errorx.NewArgumentNilError("predicate"))
	}
	r := &InterceptionRule{Predicate: predicate, Source: source}
	cb.OnCallSiteBuilt(r.OnCallSiteBuilt)
}

func InterceptWithInstance(cb ContainerBuilder, i proxy.Interceptor, predicate func(*typesys.Type) bool) {
	InterceptWith(cb, InterceptorInstance(i), predicate)
}

func InterceptWithType[T any](cb ContainerBuilder, predicate func(*typesys.Type) bool) {
	InterceptWith(cb, InterceptorOf[T](), predicate)
}

func InterceptWithFactory(cb ContainerBuilder, f func(Container) proxy.Interceptor, predicate func(*typesys.Type) bool) {
	InterceptWith(cb, InterceptorFactory(f), predicate)
}

// InterceptService intercepts the service S with the interceptor i.
func InterceptService[S any](cb ContainerBuilder, i proxy.Interceptor) {
	s := typesys.Of[S]()
	InterceptWithInstance(cb, i, func(t *typesys.Type) bool { return t == s })
}
