package di

import (
	"math/rand"
	"testing"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Handler interface{ Handle() }
type Middleware interface{ Wrap() }

type (
	authHandler    struct{}
	logHandler     struct{}
	healthHandler  struct{}
	gzipMiddleware struct{}
)

func (*authHandler) Handle() {}
func (*logHandler) Handle() {}
func (*healthHandler) Handle() {}
func (*gzipMiddleware) Wrap() {}

type (
	nodeA struct{}
	nodeB struct{}
	nodeC struct{}
	nodeD struct{}
)

func handlerDescriptors() []*Descriptor {
	handler := typesys.Of[Handler]()
	return []*Descriptor{
		NewConstructorDescriptor(handler, Lifetime_Transient, func() *authHandler { return &authHandler{} }),
		NewConstructorDescriptor(handler, Lifetime_Transient, func() *logHandler { return &logHandler{} }),
		NewConstructorDescriptor(handler, Lifetime_Transient, func() *healthHandler { return &healthHandler{} }),
	}
}

func TestCallSiteFactory_ServiceNotRegistered(t *testing.T) {
	f := newCallSiteFactory([]*Descriptor{
		NewConstructorDescriptor(typesys.Of[*authHandler](), Lifetime_Transient, func() *authHandler { return nil }),
	})

	cs, err := f.GetCallSite(typesys.Of[*authHandler](), newCallSiteChain())
	require.NoError(t, err)
	assert.NotNil(t, cs)

	var notFound *errorx.ServiceNotFound
	_, err = f.GetCallSite(typesys.Of[authHandler](), newCallSiteChain())
	assert.ErrorAs(t, err, &notFound)
	_, err = f.GetCallSite(typesys.Of[*logHandler](), newCallSiteChain())
	assert.ErrorAs(t, err, &notFound)
}

func TestCallSiteFactory_CircularDependency(t *testing.T) {
	f := newCallSiteFactory([]*Descriptor{
		NewConstructorDescriptor(typesys.Of[nodeA](), Lifetime_Transient, func(nodeB) nodeA { return nodeA{} }),
		NewConstructorDescriptor(typesys.Of[nodeB](), Lifetime_Transient, func(nodeC) nodeB { return nodeB{} }),
		NewConstructorDescriptor(typesys.Of[nodeC](), Lifetime_Transient, func(nodeB, nodeD) nodeC { return nodeC{} }),
		NewConstructorDescriptor(typesys.Of[nodeD](), Lifetime_Transient, func() nodeD { return nodeD{} }),
	})

	_, err := f.GetCallSite(typesys.Of[nodeA](), newCallSiteChain())
	var circularErr *errorx.CircularDependencyError
	assert.ErrorAs(t, err, &circularErr)

	_, err = f.GetCallSite(typesys.Of[nodeD](), newCallSiteChain())
	assert.NoError(t, err)
}

func TestCallSiteFactory_Slices(t *testing.T) {
	handlers := []Handler{&healthHandler{}}
	withExact := append(handlerDescriptors(),
		NewConstructorDescriptor(typesys.Of[[]Handler](), Lifetime_Transient, func() []Handler { return handlers }))

	tests := []struct {
		name        string
		descriptors []*Descriptor
		serviceType *typesys.Type
		kind        CallSiteKind
		elements    int
	}{
		{"implicit", handlerDescriptors(), typesys.Of[[]Handler](), CallSiteKind_Slice, 3},
		{"exact", withExact, typesys.Of[[]Handler](), CallSiteKind_Constructor, 0},
		{"empty", handlerDescriptors(), typesys.Of[[]Middleware](), CallSiteKind_Slice, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := newCallSiteFactory(tt.descriptors).GetCallSite(tt.serviceType, newCallSiteChain())
			require.NoError(t, err)
			require.Equal(t, tt.kind, cs.Kind())
			if slice, ok := cs.(*SliceCallSite); ok {
				assert.Len(t, slice.CallSites, tt.elements)
			}
		})
	}
}

func TestCallSiteFactory_LastRegisteredIsDefault(t *testing.T) {
	values := rand.Perm(10)
	descriptors := make([]*Descriptor, 0, len(values))
	for _, v := range values {
		v := v
		descriptors = append(descriptors,
			NewConstructorDescriptor(typesys.Of[int](), Lifetime_Transient, func() int { return v }))
	}

	cs, err := newCallSiteFactory(descriptors).GetCallSite(typesys.Of[int](), newCallSiteChain())
	require.NoError(t, err)
	ccs, ok := cs.(*ConstructorCallSite)
	require.True(t, ok)

	ctor := ccs.Ctor.FuncValue.Interface().(func() int)
	assert.Equal(t, values[len(values)-1], ctor())
}

func TestCallSiteFactory_Cached(t *testing.T) {
	f := newCallSiteFactory(handlerDescriptors())
	a, err := f.GetCallSite(typesys.Of[Handler](), newCallSiteChain())
	require.NoError(t, err)
	b, err := f.GetCallSite(typesys.Of[Handler](), newCallSiteChain())
	require.NoError(t, err)
	assert.Same(t, a, b)
}
