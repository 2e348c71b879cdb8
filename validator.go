package di

import (
	"errors"
	"fmt"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/syncx"
	"github.com/dozm/opendi/typesys"
)

type validatorState struct {
	Singleton CallSite
}

type CallSiteValidator struct {
	scopedServices *syncx.Map[*typesys.Type, *typesys.Type]
}

func (v *CallSiteValidator) ValidateCallSite(callSite CallSite) error {
	scoped, err := v.visitCallSite(callSite, validatorState{})
	if err != nil {
		return err
	}

	if scoped != nil {
		v.scopedServices.Store(callSite.ServiceType(), scoped)
	}

	return nil
}

func (v *CallSiteValidator) ValidateResolution(serviceType *typesys.Type, scope Scope, rootScope Scope) (err error) {
	if scope == rootScope {
		scopedService, ok := v.scopedServices.Load(serviceType)
		if !ok {
			return
		}
		if serviceType == scopedService {
			return &errorx.ScopedServiceFromRootError{
				Message: fmt.Sprintf("cannot resolve scoped service '%v' from root scope", serviceType)}
		}

		return &errorx.ScopedServiceFromRootError{
			Message: fmt.Sprintf("cannot resolve '%v' from root scope because it requires scoped service '%v'", serviceType, scopedService),
		}
	}
	return
}

func (r *CallSiteValidator) visitCallSite(callSite CallSite, state validatorState) (*typesys.Type, error) {
	switch callSite.Cache().Location {
	case CacheLocation_Root:
		return r.visitRootCache(callSite, state)
	case CacheLocation_Scope:
		return r.visitScopeCache(callSite, state)
	case CacheLocation_Dispose:
		return r.visitDisposeCache(callSite, state)
	case CacheLocation_None:
		return r.visitNoCache(callSite, state)
	default:
		return nil, errors.New("unknow cache location")
	}
}

func (r *CallSiteValidator) visitCallSiteMain(callSite CallSite, state validatorState) (*typesys.Type, error) {
	switch callSite.Kind() {
	case CallSiteKind_Slice:
		return r.visitSlice(callSite.(*SliceCallSite), state)
	case CallSiteKind_Constructor:
		return r.visitConstructor(callSite.(*ConstructorCallSite), state)
	case CallSiteKind_Constant:
		return r.visitConstant(callSite.(*ConstantCallSite), state)
	case CallSiteKind_Container:
		return r.visitContainer(callSite.(*ContainerCallSite), state)
	case CallSiteKind_Factory:
		return r.visitFactory(callSite.(*FactoryCallSite), state)
	case CallSiteKind_Intercepted:
		return r.visitIntercepted(callSite.(*InterceptedCallSite), state)
	default:
		return nil, errors.New("unknow call site kind")
	}
}

func (v *CallSiteValidator) visitConstructor(callSite *ConstructorCallSite, state validatorState) (*typesys.Type, error) {
	var result *typesys.Type
	for _, cs := range callSite.Parameters {
		scoped, err := v.visitCallSite(cs, state)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = scoped
		}
	}

	return result, nil
}

func (v *CallSiteValidator) visitSlice(callSite *SliceCallSite, state validatorState) (*typesys.Type, error) {
	var result *typesys.Type
	for _, cs := range callSite.CallSites {
		scoped, err := v.visitCallSite(cs, state)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = scoped
		}
	}
	return result, nil
}

func (v *CallSiteValidator) visitRootCache(singletonCallSite CallSite, state validatorState) (*typesys.Type, error) {
	state.Singleton = singletonCallSite
	return v.visitCallSiteMain(singletonCallSite, state)
}

func (v *CallSiteValidator) visitScopeCache(scopedCallSite CallSite, state validatorState) (*typesys.Type, error) {
	if scopedCallSite.ServiceType() == ScopeFactoryType {
		return nil, nil
	}

	if state.Singleton != nil {
		return nil, fmt.Errorf("cannot consume scoped service '%v' from singleton '%v'",
			scopedCallSite.ServiceType(),
			state.Singleton.ServiceType())
	}
	_, err := v.visitCallSiteMain(scopedCallSite, state)
	if err != nil {
		return nil, err
	}

	return scopedCallSite.ServiceType(), nil
}

func (v *CallSiteValidator) visitDisposeCache(callSite CallSite, state validatorState) (*typesys.Type, error) {
	return v.visitCallSiteMain(callSite, state)
}

func (v *CallSiteValidator) visitNoCache(callSite CallSite, state validatorState) (*typesys.Type, error) {
	return v.visitCallSiteMain(callSite, state)
}

func (v *CallSiteValidator) visitConstant(callSite *ConstantCallSite, state validatorState) (*typesys.Type, error) {
	return nil, nil
}

func (v *CallSiteValidator) visitFactory(callSite *FactoryCallSite, state validatorState) (*typesys.Type, error) {
	return nil, nil
}

func (v *CallSiteValidator) visitIntercepted(callSite *InterceptedCallSite, state validatorState) (*typesys.Type, error) {
	scoped, err := v.visitCallSite(callSite.Inner, state)
	if err != nil {
		return nil, err
	}
	interceptorScoped, err := v.visitCallSite(callSite.Interceptor, state)
	if err != nil {
		return nil, err
	}
	if scoped == nil {
		scoped = interceptorScoped
	}
	return scoped, nil
}

func (v *CallSiteValidator) visitContainer(callSite *ContainerCallSite, state validatorState) (*typesys.Type, error) {
	return nil, nil
}

func newCallSiteValidator() *CallSiteValidator {
	return &CallSiteValidator{scopedServices: syncx.NewMap[*typesys.Type, *typesys.Type]()}
}
