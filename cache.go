package di

import "github.com/dozm/opendi/typesys"

// CacheLocation is where a resolved call site result is kept.
type CacheLocation byte

const (
	CacheLocation_Root CacheLocation = iota
	CacheLocation_Scope
	CacheLocation_Dispose
	CacheLocation_None
)

// ServiceCacheKey identifies a resolved service within a scope. Slot is the
// reverse index of the descriptor for its service type, the last registered
// descriptor has slot 0.
type ServiceCacheKey struct {
	ServiceType *typesys.Type
	Slot        int
}

type ResultCache struct {
	Location CacheLocation
	Key      ServiceCacheKey
}

// NoneResultCache is the cache of call sites producing a new value on every
// resolution without tracking it for disposal.
var NoneResultCache = ResultCache{Location: CacheLocation_None}

func newResultCache(loc CacheLocation, key ServiceCacheKey) ResultCache {
	return ResultCache{Location: loc, Key: key}
}

func (l Lifetime) cacheLocation() CacheLocation {
	switch l {
	case Lifetime_Singleton:
		return CacheLocation_Root
	case Lifetime_Scoped:
		return CacheLocation_Scope
	case Lifetime_Transient:
		return CacheLocation_Dispose
	}
	return CacheLocation_None
}
