package di

import (
	"errors"
	"testing"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOnUnregisteredType_FirstRegistrationWins(t *testing.T) {
	var calls []string
	b := Builder()
	b.OnUnregisteredType(func(e *UnregisteredTypeEvent) error {
		calls = append(calls, "skip")
		return nil
	})
	b.OnUnregisteredType(func(e *UnregisteredTypeEvent) error {
		calls = append(calls, "register")
		return e.Register(NewInstanceDescriptor(e.ServiceType, "registered"))
	})
	b.OnUnregisteredType(func(e *UnregisteredTypeEvent) error {
		calls = append(calls, "late")
		return e.Register(NewInstanceDescriptor(e.ServiceType, "late"))
	})

	c := b.Build()
	assert.Equal(t, "registered", Get[string](c))
	assert.Equal(t, "registered", Get[string](c))
	assert.Equal(t, []string{"skip", "register"}, calls)

	stats, _ := StatsOf(c)
	assert.EqualValues(t, 1, stats.UnregisteredRequests)
	assert.EqualValues(t, 1, stats.ClosedRegistrations)
}

func TestOnUnregisteredType_Errors(t *testing.T) {
	b := Builder()
	b.OnUnregisteredType(func(e *UnregisteredTypeEvent) error {
		if e.ServiceType == typesys.Of[int]() {
			return errors.New("no ints")
		}
		return nil
	})
	b.OnUnregisteredType(func(e *UnregisteredTypeEvent) error {
		if e.ServiceType == typesys.Of[bool]() {
			return e.Register(NewInstanceDescriptor(typesys.Of[string](), "wrong type"))
		}
		return nil
	})
	c := b.Build()

	_, err := TryGet[int](c)
	assert.EqualError(t, err, "no ints")

	_, err = TryGet[bool](c)
	var argErr *errorx.ArgumentError
	assert.ErrorAs(t, err, &argErr)

	_, err = TryGet[string](c)
	var notFound *errorx.ServiceNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestUnregisteredTypeEvent_Register(t *testing.T) {
	e := &UnregisteredTypeEvent{ServiceType: typesys.Of[int]()}

	var nilErr *errorx.ArgumentNilError
	assert.ErrorAs(t, e.Register(nil), &nilErr)
	assert.False(t, e.Registered())

	require.NoError(t, e.Register(NewInstanceDescriptor(typesys.Of[int](), 1)))
	assert.True(t, e.Registered())

	var argErr *errorx.ArgumentError
	assert.ErrorAs(t, e.Register(NewInstanceDescriptor(typesys.Of[int](), 2)), &argErr)
}

func TestOnUnregisteredType_Dependencies(t *testing.T) {
	b := Builder()
	AddTransient[string](b, func(n int) string { return "value" })
	b.OnUnregisteredType(func(e *UnregisteredTypeEvent) error {
		if e.ServiceType == typesys.Of[int]() {
			return e.Register(NewFactoryDescriptor(e.ServiceType, Lifetime_Transient, func(Container) any { return 7 }))
		}
		return nil
	})

	c := b.Build()
	assert.Equal(t, "value", Get[string](c))
	assert.Equal(t, 7, Get[int](c))
}

func TestOnCallSiteBuilt_Replace(t *testing.T) {
	var seen []CallSiteKind
	var raised int
	b := Builder()
	AddTransient[int](b, func() int { return 1 })
	b.OnCallSiteBuilt(func(e *CallSiteBuiltEvent) error {
		raised++
		seen = append(seen, e.CallSite().Kind())
		e.Replace(newConstantCallSite(e.ServiceType, 2))
		return nil
	})
	b.OnCallSiteBuilt(func(e *CallSiteBuiltEvent) error {
		seen = append(seen, e.CallSite().Kind())
		return nil
	})

	c := b.Build()
	assert.Equal(t, 2, Get[int](c))
	assert.Equal(t, 2, Get[int](c))
	assert.Equal(t, 1, raised)
	assert.Equal(t, []CallSiteKind{CallSiteKind_Constructor, CallSiteKind_Constant}, seen)
}

func TestOnCallSiteBuilt_Error(t *testing.T) {
	b := Builder()
	AddTransient[int](b, func() int { return 1 })
	b.OnCallSiteBuilt(func(e *CallSiteBuiltEvent) error {
		return errors.New("rejected")
	})

	_, err := TryGet[int](b.Build())
	assert.EqualError(t, err, "rejected")
}

func TestOnCallSiteBuilt_CircularLookup(t *testing.T) {
	b := Builder()
	AddTransient[int](b, func() int { return 1 })
	b.OnCallSiteBuilt(func(e *CallSiteBuiltEvent) error {
		_, err := e.CallSiteOf(e.ServiceType)
		return err
	})

	_, err := TryGet[int](b.Build())
	var circularErr *errorx.CircularDependencyError
	assert.ErrorAs(t, err, &circularErr)
}

func TestRegistry(t *testing.T) {
	b := Builder()
	AddTransient[int](b, func() int { return 3 })
	c := b.Build()
	r := c.(Registry)

	p, ok := r.GetRegistration(typesys.Of[int]())
	require.True(t, ok)
	assert.Equal(t, Lifetime_Transient, p.Lifetime())
	v, err := p.GetInstance(c)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, ok = r.GetRegistration(typesys.Of[string]())
	assert.False(t, ok)

	_, err = r.AddRegistration(NewInstanceDescriptor(typesys.Of[int](), 4))
	var argErr *errorx.ArgumentError
	assert.ErrorAs(t, err, &argErr)

	p, err = r.AddRegistration(NewInstanceDescriptor(typesys.Of[string](), "s"))
	require.NoError(t, err)
	assert.Same(t, typesys.Of[string](), p.ServiceType())
	v, err = r.GetInstance(typesys.Of[string]())
	require.NoError(t, err)
	assert.Equal(t, "s", v)
}

func TestRegistry_GetOrAddRegistration(t *testing.T) {
	b := Builder()
	AddTransient[int](b, func() int { return 3 })
	c := b.Build()
	r := c.(Registry)

	p, err := r.GetOrAddRegistration(NewInstanceDescriptor(typesys.Of[int](), 4))
	require.NoError(t, err)
	v, err := p.GetInstance(c)
	require.NoError(t, err)
	assert.Equal(t, 3, v, "the existing registration is kept")

	p, err = r.GetOrAddRegistration(NewInstanceDescriptor(typesys.Of[string](), "s"))
	require.NoError(t, err)
	assert.Same(t, typesys.Of[string](), p.ServiceType())
	p, err = r.GetOrAddRegistration(NewInstanceDescriptor(typesys.Of[string](), "t"))
	require.NoError(t, err)
	v, err = p.GetInstance(c)
	require.NoError(t, err)
	assert.Equal(t, "s", v)

	var nilErr *errorx.ArgumentNilError
	_, err = r.GetOrAddRegistration(nil)
	assert.ErrorAs(t, err, &nilErr)
	_, err = r.AddRegistration(nil)
	assert.ErrorAs(t, err, &nilErr)

	stats, _ := StatsOf(c)
	assert.EqualValues(t, 1, stats.ClosedRegistrations)
}

func TestHooks_Logging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := Builder()
	b.ConfigureOptions(func(o *Options) {
		o.Logger = zap.New(core)
	})
	AddTransientOpenGeneric(b, repositoryDef, memoryRepositoryDef,
		func(closed *typesys.Type, c Container) (any, error) { return &memoryRepository[int]{}, nil })

	c := b.Build()
	_ = Get[Repository[int]](c)
	_, _ = TryGet[Repository[*int]](c)

	assert.Equal(t, 1, logs.FilterMessage("open generic matched").Len())
	assert.Equal(t, 1, logs.FilterMessage("open generic did not match").Len())
	entries := logs.FilterMessage("registered service for unregistered type").All()
	require.Len(t, entries, 1)
	assert.Equal(t, intRepositoryType.String(), entries[0].ContextMap()["service"])
}

func TestBuilder_NilHooks(t *testing.T) {
	b := Builder()
	assert.Panics(t, func() { b.OnUnregisteredType(nil) })
	assert.Panics(t, func() { b.OnCallSiteBuilt(nil) })
}
