package di

type ServiceAccessor func(*ContainerEngineScope) (any, error)

type ContainerEngine interface {
	RealizeService(CallSite) (ServiceAccessor, error)
}

type containerEngine struct {
	container *container
}

// RealizeService turns a call site into an accessor. Constant call sites,
// including folded interception proxies, skip the resolver entirely.
func (engine *containerEngine) RealizeService(callSite CallSite) (ServiceAccessor, error) {
	if callSite.Kind() == CallSiteKind_Constant {
		value := callSite.Value()
		return func(*ContainerEngineScope) (any, error) { return value, nil }, nil
	}

	return func(scope *ContainerEngineScope) (any, error) {
		return CallSiteResolverInstance.Resolve(callSite, scope)
	}, nil
}

func newContainerEngine(c *container) ContainerEngine {
	return &containerEngine{container: c}
}
