package di

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/syncx"
	"github.com/dozm/opendi/typesys"
	"go.uber.org/zap"
)

type CallSiteKind byte

const (
	CallSiteKind_Constructor CallSiteKind = iota
	CallSiteKind_Constant
	CallSiteKind_Slice
	CallSiteKind_Container
	CallSiteKind_Scope
	CallSiteKind_Transient
	CallSiteKind_Singleton
	CallSiteKind_Factory
	CallSiteKind_Intercepted
)

// CallSite describes how the container produces an instance of a service.
// A ConstantCallSite is a value known when the call site is built; every
// other kind is evaluated when the service is resolved.
type CallSite interface {
	ServiceType() *typesys.Type
	Kind() CallSiteKind
	Value() any
	SetValue(any)
	Cache() ResultCache
}

//
type ConstantCallSite struct {
	serviceType *typesys.Type
	value       any
}

func (cs *ConstantCallSite) Value() any {
	return cs.value
}

func (cs *ConstantCallSite) SetValue(v any) {
	cs.value = v
}

func (cs *ConstantCallSite) DefaultValue() any {
	return cs.value
}

func (cs *ConstantCallSite) ServiceType() *typesys.Type {
	return cs.serviceType
}

func (cs *ConstantCallSite) Kind() CallSiteKind {
	return CallSiteKind_Constant
}

func (cs *ConstantCallSite) Cache() ResultCache {
	return NoneResultCache
}

func newConstantCallSite(serviceType *typesys.Type, defaultValue any) *ConstantCallSite {
	return &ConstantCallSite{
		serviceType: serviceType,
		value:       defaultValue,
	}
}

//
type ConstructorCallSite struct {
	serviceType *typesys.Type
	value       any
	Ctor        *ConstructorInfo
	Parameters  []CallSite
	cache       ResultCache
}

func (cs *ConstructorCallSite) Value() any {
	return cs.value
}

func (cs *ConstructorCallSite) SetValue(v any) {
	cs.value = v
}

func (cs *ConstructorCallSite) ServiceType() *typesys.Type {
	return cs.serviceType
}

func (cs *ConstructorCallSite) Kind() CallSiteKind {
	return CallSiteKind_Constructor
}

func (cs *ConstructorCallSite) Cache() ResultCache {
	return cs.cache
}

func newConstructorCallSite(cache ResultCache, serviceType *typesys.Type, ctor *ConstructorInfo, parameters []CallSite) *ConstructorCallSite {
	return &ConstructorCallSite{
		cache:       cache,
		serviceType: serviceType,
		Ctor:        ctor,
		Parameters:  parameters,
	}
}

//
type FactoryCallSite struct {
	serviceType *typesys.Type
	value       any
	Factory     Factory
	cache       ResultCache
}

func (cs *FactoryCallSite) Value() any {
	return cs.value
}

func (cs *FactoryCallSite) SetValue(v any) {
	cs.value = v
}

func (cs *FactoryCallSite) ServiceType() *typesys.Type {
	return cs.serviceType
}

func (cs *FactoryCallSite) Kind() CallSiteKind {
	return CallSiteKind_Factory
}

func (cs *FactoryCallSite) Cache() ResultCache {
	return cs.cache
}

func newFactoryCallSite(cache ResultCache, serviceType *typesys.Type, factory Factory) *FactoryCallSite {
	return &FactoryCallSite{
		cache:       cache,
		serviceType: serviceType,
		Factory:     factory,
	}
}

// InterceptedCallSite wraps the instance produced by Inner in a proxy bound
// to the interceptor produced by Interceptor. It is never cached itself, so
// a new proxy is made per resolution while Inner keeps its own lifetime.
type InterceptedCallSite struct {
	serviceType *typesys.Type
	Inner       CallSite
	Interceptor CallSite
	proxies     ProxyFactory
}

func (cs *InterceptedCallSite) Value() any {
	return nil
}

func (cs *InterceptedCallSite) SetValue(v any) {}

func (cs *InterceptedCallSite) ServiceType() *typesys.Type {
	return cs.serviceType
}

func (cs *InterceptedCallSite) Kind() CallSiteKind {
	return CallSiteKind_Intercepted
}

func (cs *InterceptedCallSite) Cache() ResultCache {
	return NoneResultCache
}

func newInterceptedCallSite(serviceType *typesys.Type, inner CallSite, interceptor CallSite, proxies ProxyFactory) *InterceptedCallSite {
	return &InterceptedCallSite{
		serviceType: serviceType,
		Inner:       inner,
		Interceptor: interceptor,
		proxies:     proxies,
	}
}

//
type ContainerCallSite struct {
	value any
}

func (cs *ContainerCallSite) Value() any {
	return cs.value
}

func (cs *ContainerCallSite) SetValue(v any) {
	cs.value = v
}

func (cs *ContainerCallSite) ServiceType() *typesys.Type {
	return ContainerType
}

func (cs *ContainerCallSite) Kind() CallSiteKind {
	return CallSiteKind_Container
}

func (cs *ContainerCallSite) Cache() ResultCache {
	return NoneResultCache
}

//
type SliceCallSite struct {
	serviceType *typesys.Type
	Elem        *typesys.Type
	CallSites   []CallSite
	cache       ResultCache
	value       any
}

func (cs *SliceCallSite) Value() any {
	return cs.value
}

func (cs *SliceCallSite) SetValue(v any) {
	cs.value = v
}

func (cs *SliceCallSite) Cache() ResultCache {
	return cs.cache
}

func (cs *SliceCallSite) ServiceType() *typesys.Type {
	return cs.serviceType
}

func (cs *SliceCallSite) Kind() CallSiteKind {
	return CallSiteKind_Slice
}

func newSliceCallSite(cache ResultCache, serviceType *typesys.Type, callSites []CallSite) *SliceCallSite {
	return &SliceCallSite{
		cache:       cache,
		Elem:        serviceType.Elem(),
		CallSites:   callSites,
		serviceType: serviceType,
	}
}

//
type chainItem struct {
	Order int
	Ctor  *ConstructorInfo
}

type callSiteChain struct {
	items map[*typesys.Type]chainItem
}

func (c *callSiteChain) CheckCircularDependency(serviceType *typesys.Type) error {
	if _, ok := c.items[serviceType]; ok {
		return c.createCircularDependencyError(serviceType)
	}
	return nil
}

func (c *callSiteChain) Remove(serviceType *typesys.Type) {
	delete(c.items, serviceType)
}

// the ctor can be nil when the serviceType is a slice
func (c *callSiteChain) Add(serviceType *typesys.Type, ctor *ConstructorInfo) {
	c.items[serviceType] = chainItem{
		Order: len(c.items),
		Ctor:  ctor,
	}
}

func (c *callSiteChain) createCircularDependencyError(t *typesys.Type) error {
	var sb strings.Builder
	sb.WriteString("a circular dependency was detected for the service of type '")
	sb.WriteString(t.String())
	sb.WriteString("'.")
	// TODO: add resolution path

	return &errorx.CircularDependencyError{Message: sb.String()}
}

func newCallSiteChain() *callSiteChain {
	return &callSiteChain{
		items: make(map[*typesys.Type]chainItem),
	}
}

//

const DefaultSlot int = 0

// extension points of the call site factory
type extensions struct {
	hooks    hooks
	registry Registry
	proxies  ProxyFactory
	logger   *zap.Logger
	stats    *Stats
}

type CallSiteFactory struct {
	mu               sync.RWMutex
	descriptors      []*Descriptor
	callSiteCache    *syncx.Map[ServiceCacheKey, CallSite]
	descriptorLookup map[*typesys.Type]descriptorCacheItem
	callSiteLockers  *syncx.LockMap[*typesys.Type]
	ext              *extensions
}

func (f *CallSiteFactory) Descriptors() []*Descriptor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clip(f.descriptors)
}

func (f *CallSiteFactory) populate() {
	for _, descriptor := range f.descriptors {
		serviceType := descriptor.ServiceType
		cacheItem := f.descriptorLookup[serviceType]
		f.descriptorLookup[serviceType] = cacheItem.Add(descriptor)
	}
}

func (f *CallSiteFactory) lookup(serviceType *typesys.Type) (descriptorCacheItem, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	item, ok := f.descriptorLookup[serviceType]
	return item, ok
}

// addDescriptor registers a descriptor for a service type that has none.
func (f *CallSiteFactory) addDescriptor(d *Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.descriptorLookup[d.ServiceType]; ok {
		return errorx.NewArgumentError(fmt.Sprintf("'%v' is already registered", d.ServiceType))
	}
	f.descriptors = append(f.descriptors, d)
	f.descriptorLookup[d.ServiceType] = descriptorCacheItem{}.Add(d)
	return nil
}

// getOrAddDescriptor returns the last descriptor registered for the service
// type of d, registering d when there is none. The lookup and the insert are
// one step, so concurrent callers agree on a single descriptor.
func (f *CallSiteFactory) getOrAddDescriptor(d *Descriptor) (*Descriptor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if item, ok := f.descriptorLookup[d.ServiceType]; ok {
		return item.Last(), false
	}
	f.descriptors = append(f.descriptors, d)
	f.descriptorLookup[d.ServiceType] = descriptorCacheItem{}.Add(d)
	return d, true
}

func (f *CallSiteFactory) GetCallSite(serviceType *typesys.Type, chain *callSiteChain) (CallSite, error) {
	if site, ok := f.callSiteCache.Load(ServiceCacheKey{ServiceType: serviceType, Slot: DefaultSlot}); ok {
		return site, nil
	}

	return f.createCallSite(serviceType, chain)
}

func (f *CallSiteFactory) GetCallSiteByDescriptor(descriptor *Descriptor, chain *callSiteChain) (CallSite, error) {
	if descriptorCache, ok := f.lookup(descriptor.ServiceType); ok {
		return f.tryCreateExact(
			descriptor,
			chain,
			descriptorCache.GetSlot(descriptor))
	}

	return nil, errors.New("descriptorLookup didn't contain requested descriptor")

}

func (f *CallSiteFactory) createCallSite(serviceType *typesys.Type, chain *callSiteChain) (CallSite, error) {
	if err := chain.CheckCircularDependency(serviceType); err != nil {
		return nil, err
	}

	callSiteLocker := f.callSiteLockers.LoadOrCreate(serviceType)
	callSiteLocker.Lock()
	defer callSiteLocker.Unlock()

	if descriptor, ok := f.lookup(serviceType); ok {
		return f.tryCreateExact(descriptor.Last(), chain, DefaultSlot)
	}

	if serviceType.Kind() == typesys.Kind_Slice {
		return f.createSlice(serviceType, chain)
	}

	descriptor, err := f.raiseUnregisteredType(serviceType)
	if err != nil {
		return nil, err
	}
	if descriptor != nil {
		return f.tryCreateExact(descriptor, chain, DefaultSlot)
	}

	return nil, &errorx.ServiceNotFound{ServiceType: serviceType}
}

// raiseUnregisteredType runs the unregistered type handlers in order until
// one of them registers a descriptor for serviceType.
func (f *CallSiteFactory) raiseUnregisteredType(serviceType *typesys.Type) (*Descriptor, error) {
	if len(f.ext.hooks.unregistered) == 0 {
		return nil, nil
	}

	f.ext.stats.UnregisteredRequests.Add(1)
	e := &UnregisteredTypeEvent{
		ServiceType: serviceType,
		Registry:    f.ext.registry,
		Logger:      f.ext.logger,
		Stats:       f.ext.stats,
	}
	for _, h := range f.ext.hooks.unregistered {
		if err := h(e); err != nil {
			return nil, err
		}
		if e.Registered() {
			break
		}
	}
	if !e.Registered() {
		return nil, nil
	}

	if err := f.addDescriptor(e.registered); err != nil {
		return nil, err
	}
	f.ext.stats.ClosedRegistrations.Add(1)
	f.ext.logger.Debug("registered service for unregistered type",
		zap.Stringer("service", serviceType),
		zap.Stringer("lifetime", e.registered.Lifetime))
	return e.registered, nil
}

func (f *CallSiteFactory) tryCreateExact(descriptor *Descriptor, chain *callSiteChain, slot int) (CallSite, error) {
	callSiteKey := ServiceCacheKey{descriptor.ServiceType, slot}
	callSite, ok := f.callSiteCache.Load(callSiteKey)
	if ok {
		return callSite, nil
	}

	cache := newResultCache(descriptor.Lifetime.cacheLocation(), callSiteKey)

	var err error
	if descriptor.Instance != nil {
		callSite = newConstantCallSite(descriptor.ServiceType, descriptor.Instance)
	} else if descriptor.Ctor != nil {
		callSite, err = f.createConstructorCallsite(cache, descriptor.ServiceType, descriptor.Ctor, chain)
		if err != nil {
			return nil, err
		}
	} else if descriptor.Factory != nil {
		callSite = newFactoryCallSite(cache, descriptor.ServiceType, descriptor.Factory)
	} else {
		return nil, &errorx.InvalidDescriptor{ServiceType: descriptor.ServiceType}
	}

	if callSite, err = f.raiseCallSiteBuilt(callSite, chain); err != nil {
		return nil, err
	}

	callSite, _ = f.callSiteCache.LoadOrStore(callSiteKey, callSite)
	return callSite, nil
}

func (f *CallSiteFactory) raiseCallSiteBuilt(callSite CallSite, chain *callSiteChain) (CallSite, error) {
	if len(f.ext.hooks.callSiteBuilt) == 0 {
		return callSite, nil
	}

	serviceType := callSite.ServiceType()
	chain.Add(serviceType, nil)
	defer chain.Remove(serviceType)

	e := &CallSiteBuiltEvent{
		ServiceType: serviceType,
		Registry:    f.ext.registry,
		Proxies:     f.ext.proxies,
		Logger:      f.ext.logger,
		Stats:       f.ext.stats,
		callSite:    callSite,
		factory:     f,
		chain:       chain,
	}
	for _, h := range f.ext.hooks.callSiteBuilt {
		if err := h(e); err != nil {
			return nil, err
		}
	}
	return e.callSite, nil
}

func (f *CallSiteFactory) createConstructorCallsite(cache ResultCache, serviceType *typesys.Type, ctor *ConstructorInfo, chain *callSiteChain) (*ConstructorCallSite, error) {
	chain.Add(serviceType, ctor)
	defer chain.Remove(serviceType)

	if len(ctor.In) == 0 {
		return newConstructorCallSite(cache, serviceType, ctor, nil), nil
	}

	parameterCallSites, err := f.createArgumentCallSites(chain, ctor)
	if err != nil {
		return nil, err
	}

	return newConstructorCallSite(cache, serviceType, ctor, parameterCallSites), nil
}

func (f *CallSiteFactory) createArgumentCallSites(chain *callSiteChain, ctor *ConstructorInfo) ([]CallSite, error) {
	callSites := make([]CallSite, len(ctor.In))
	for i, t := range ctor.In {
		cs, err := f.GetCallSite(t, chain)
		if err != nil {
			return nil, err
		}
		callSites[i] = cs
	}
	return callSites, nil
}

func (f *CallSiteFactory) createSlice(serviceType *typesys.Type, chain *callSiteChain) (CallSite, error) {
	if serviceType.Kind() != typesys.Kind_Slice {
		return nil, fmt.Errorf("service type '%v' is not slice", serviceType)
	}

	key := ServiceCacheKey{serviceType, DefaultSlot}
	if callSite, ok := f.callSiteCache.Load(key); ok {
		return callSite, nil
	}

	chain.Add(serviceType, nil)
	defer chain.Remove(serviceType)

	elementType := serviceType.Elem()
	cacheLocation := CacheLocation_Root
	callSites := make([]CallSite, 0)

	if descriptorCache, ok := f.lookup(elementType); ok {
		num := descriptorCache.Num()
		for i := 0; i < num; i++ {
			cs, err := f.tryCreateExact(descriptorCache.Get(i), chain, num-i-1)
			if err != nil {
				return nil, err
			}

			cacheLocation = f.getCommonCacheLocation(cacheLocation, cs.Cache().Location)
			callSites = append(callSites, cs)
		}
	}

	resultCache := NoneResultCache
	if cacheLocation == CacheLocation_Scope || cacheLocation == CacheLocation_Root {
		resultCache = newResultCache(cacheLocation, key)
	}

	return newSliceCallSite(resultCache, serviceType, slices.Clip(callSites)), nil
}

func (f *CallSiteFactory) Add(serviceType *typesys.Type, callSite CallSite) {
	f.callSiteCache.Store(ServiceCacheKey{ServiceType: serviceType, Slot: DefaultSlot}, callSite)
}

// Determines if the specified service type is available from the ServiceProvider.
func (f *CallSiteFactory) IsService(serviceType *typesys.Type) bool {
	if serviceType == nil {
		return false
	}

	if _, ok := f.lookup(serviceType); ok {
		return true
	}

	if serviceType.Kind() == typesys.Kind_Slice {
		return true
	}

	return serviceType == ContainerType ||
		serviceType == ScopeFactoryType ||
		serviceType == IsServiceType
}

func (f *CallSiteFactory) getCommonCacheLocation(locationA CacheLocation, locationB CacheLocation) CacheLocation {
	if locationA > locationB {
		return locationA
	}
	return locationB

}

func newCallSiteFactory(descriptors []*Descriptor) *CallSiteFactory {
	d := make([]*Descriptor, len(descriptors))
	copy(d, descriptors)

	f := &CallSiteFactory{
		descriptors:      d,
		callSiteCache:    syncx.NewMap[ServiceCacheKey, CallSite](),
		descriptorLookup: make(map[*typesys.Type]descriptorCacheItem),
		callSiteLockers:  &syncx.LockMap[*typesys.Type]{},
		ext: &extensions{
			logger: zap.NewNop(),
			stats:  &Stats{},
		},
	}

	f.populate()
	return f
}

type descriptorCacheItem struct {
	item  *Descriptor
	items []*Descriptor
}

func (dci descriptorCacheItem) Last() *Descriptor {
	if l := len(dci.items); l > 0 {
		return dci.items[l-1]
	}

	return dci.item
}

func (dci descriptorCacheItem) Num() int {
	if dci.item == nil {
		return 0
	}

	return 1 + len(dci.items)
}

func (dci descriptorCacheItem) Get(index int) *Descriptor {
	if index >= dci.Num() {
		panic("index out of range")
	}

	if index == 0 {
		return dci.item
	}

	return dci.items[index-1]
}

func (dci descriptorCacheItem) GetSlot(descriptor *Descriptor) int {
	if descriptor == dci.item {
		return dci.Num() - 1
	}

	if l := len(dci.items); l > 0 {
		for i := range dci.items {
			if descriptor == dci.items[i] {
				return l - (i + 1)
			}
		}
	}

	panic(errors.New("descriptor not exist"))
}

func (dci descriptorCacheItem) Add(descriptor *Descriptor) descriptorCacheItem {
	var newCacheItem descriptorCacheItem
	if dci.item == nil {
		newCacheItem.item = descriptor
	} else {
		newCacheItem.item = dci.item
		newCacheItem.items = append(dci.items, descriptor)
	}
	return newCacheItem
}
