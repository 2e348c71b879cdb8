package di

import (
	"fmt"
	"reflect"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/syncx"
	"github.com/dozm/opendi/typesys"
	"go.uber.org/zap"
)

var ContainerType = typesys.Of[Container]()
var ScopeFactoryType = typesys.Of[ScopeFactory]()
var IsServiceType = typesys.Of[IsService]()

// Container options.
type Options struct {
	ValidateScopes  bool
	ValidateOnBuild bool
	// Logger receives debug events from the extension hooks. Defaults to a no-op logger.
	Logger *zap.Logger
	// Proxies overrides the proxy factory filled by AddProxy.
	Proxies ProxyFactory
}

// Get default container options.
func DefaultOptions() Options {
	return Options{
		Logger: zap.NewNop(),
	}
}

// Container implementation
type container struct {
	Root              *ContainerEngineScope
	CallSiteFactory   *CallSiteFactory
	engine            ContainerEngine
	realizedServices  *syncx.Map[*typesys.Type, ServiceAccessor]
	disposed          bool
	callSiteValidator *CallSiteValidator
	logger            *zap.Logger
	stats             *Stats
}

func (c *container) Get(serviceType *typesys.Type) (any, error) {
	return c.GetWithScope(serviceType, c.Root)
}

func (c *container) CreateScope() Scope {
	if c.disposed {
		panic(fmt.Errorf("%v disposed", reflect.TypeOf(c).Elem()))
	}

	return newEngineScope(c, false)
}

func (c *container) Stats() *Stats {
	return c.stats
}

func (c *container) GetWithScope(serviceType *typesys.Type, scope *ContainerEngineScope) (result any, err error) {
	if c.disposed {
		err = fmt.Errorf("%v disposed", reflect.TypeOf(c).Elem())
		return
	}

	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", p)
			}
		}
	}()

	accessor, ok := c.realizedServices.Load(serviceType)
	if !ok {
		accessor, err = c.createServiceAccessor(serviceType)
		if err != nil {
			return
		} else {
			accessor, _ = c.realizedServices.LoadOrStore(serviceType, accessor)
		}

	}

	if c.callSiteValidator != nil {
		err := c.callSiteValidator.ValidateResolution(serviceType, scope, c.Root)
		if err != nil {
			return nil, err
		}
	}

	return accessor(scope)
}

func (c *container) validateService(d *Descriptor) error {
	callSite, err := c.CallSiteFactory.GetCallSiteByDescriptor(d, newCallSiteChain())
	if err != nil {
		return err
	}
	if c.callSiteValidator != nil {
		return c.callSiteValidator.ValidateCallSite(callSite)
	}
	return nil
}

func (c *container) Dispose() {
	c.disposed = true
	c.Root.Dispose()
}

func (c *container) IsDisposed() bool {
	return c.disposed
}

func (c *container) createEngine() ContainerEngine {
	return newContainerEngine(c)
}

func (c *container) createServiceAccessor(serviceType *typesys.Type) (ServiceAccessor, error) {
	callSite, err := c.CallSiteFactory.GetCallSite(serviceType, newCallSiteChain())
	if err != nil {
		return nil, err
	}

	if c.callSiteValidator != nil {
		if err := c.callSiteValidator.ValidateCallSite(callSite); err != nil {
			return nil, err
		}
	}

	if callSite.Cache().Location == CacheLocation_Root {
		value, err := CallSiteResolverInstance.Resolve(callSite, c.Root)
		if err != nil {
			return nil, err
		}
		return func(scope *ContainerEngineScope) (any, error) { return value, nil }, nil
	}

	return c.engine.RealizeService(callSite)
}

func (c *container) ReplaceServiceAccessor(callSite CallSite, accessor ServiceAccessor) {
	c.realizedServices.Store(callSite.ServiceType(), accessor)
}

// Registry

func (c *container) GetRegistration(serviceType *typesys.Type) (Producer, bool) {
	item, ok := c.CallSiteFactory.lookup(serviceType)
	if !ok {
		return nil, false
	}
	return &producer{descriptor: item.Last()}, true
}

func (c *container) AddRegistration(d *Descriptor) (Producer, error) {
	if d == nil {
		return nil, errorx.NewArgumentNilError("descriptor")
	}
	if err := c.CallSiteFactory.addDescriptor(d); err != nil {
		return nil, err
	}
	c.stats.ClosedRegistrations.Add(1)
	c.logger.Debug("added registration",
		zap.Stringer("service", d.ServiceType),
		zap.Stringer("lifetime", d.Lifetime))
	return &producer{descriptor: d}, nil
}

func (c *container) GetOrAddRegistration(d *Descriptor) (Producer, error) {
	if d == nil {
		return nil, errorx.NewArgumentNilError("descriptor")
	}
	registered, added := c.CallSiteFactory.getOrAddDescriptor(d)
	if added {
		c.stats.ClosedRegistrations.Add(1)
		c.logger.Debug("added registration",
			zap.Stringer("service", d.ServiceType),
			zap.Stringer("lifetime", d.Lifetime))
	}
	return &producer{descriptor: registered}, nil
}

func (c *container) GetInstance(serviceType *typesys.Type) (any, error) {
	return c.Get(serviceType)
}
