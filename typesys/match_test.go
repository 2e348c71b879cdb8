package typesys

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/reflectx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct{}

func (r *fakeReader) Read(p []byte) (int, error) { return 0, io.EOF }

type box[T any] interface {
	Value() T
}

// a small model:
//
//	interface IEntity
//	class     Entity : IEntity
//	class     Order : Entity
//	struct    Money
//	interface IRepository[T]
//	class     Repository[T] : IRepository[T]     where T : IEntity
//	class     StructRepository[T] : IRepository[T] where T : struct
//	interface IPair[K, V]
//	class     SwappedPair[A, B] : IPair[B, A]
//	class     KeyedPair[V] : IPair[string, V]
//	interface IProducer[out T]
//	interface IConsumer[in T]
var (
	iEntity = Interface("IEntity")
	entity  = Class("Entity", WithInterfaces(iEntity), WithDefaultConstructor())
	order   = Class("Order", WithBase(entity), WithDefaultConstructor())
	money   = Struct("Money")

	repoT        = Param("T")
	iRepository  = Interface("IRepository", WithParams(repoT))
	repoImplT    = Param("T", WhereImplements(iEntity))
	repository   = Class("Repository", WithParams(repoImplT), WithInterfaces(iRepository.MustConstruct(repoImplT)))
	structRepoT  = Param("T", WhereStruct())
	structRepo   = Class("StructRepository", WithParams(structRepoT), WithInterfaces(iRepository.MustConstruct(structRepoT)))
	abstractRepo = Class("AbstractRepository", WithParams(Param("T")), Abstract())

	pairK       = Param("K")
	pairV       = Param("V")
	iPair       = Interface("IPair", WithParams(pairK, pairV))
	swapA       = Param("A")
	swapB       = Param("B")
	swappedPair = Class("SwappedPair", WithParams(swapA, swapB), WithInterfaces(iPair.MustConstruct(swapB, swapA)))
	keyedV      = Param("V")
	keyedPair   = Class("KeyedPair", WithParams(keyedV), WithInterfaces(iPair.MustConstruct(Of[string](), keyedV)))

	iProducer = Interface("IProducer", WithParams(Param("T", Out())))
	iConsumer = Interface("IConsumer", WithParams(Param("T", In())))
)

func TestConstruct_Interned(t *testing.T) {
	a := iRepository.MustConstruct(order)
	b := iRepository.MustConstruct(order)
	assert.Same(t, a, b)
	assert.NotSame(t, a, iRepository.MustConstruct(entity))

	assert.True(t, a.IsConstructed())
	assert.False(t, a.ContainsGenericParameters())
	assert.Same(t, iRepository, a.GenericDefinition())
	assert.Equal(t, "IRepository[Order]", a.String())
	assert.Equal(t, "IRepository[T]", iRepository.String())

	open := iRepository.MustConstruct(repoImplT)
	assert.True(t, open.ContainsGenericParameters())

	_, err := iRepository.Construct(order, order)
	var argErr *errorx.ArgumentError
	assert.ErrorAs(t, err, &argErr)

	_, err = order.Construct(order)
	assert.ErrorAs(t, err, &argErr)
}

func TestHierarchy_Substituted(t *testing.T) {
	closed := swappedPair.MustConstruct(Of[int](), Of[string]())
	require.Len(t, closed.Interfaces(), 1)
	assert.Same(t, iPair.MustConstruct(Of[string](), Of[int]()), closed.Interfaces()[0])

	assert.Equal(t, []*Type{iEntity}, order.AllInterfaces())
	assert.Same(t, entity, order.Base())
}

func TestAssignableTo(t *testing.T) {
	assert.True(t, order.AssignableTo(entity))
	assert.True(t, order.AssignableTo(iEntity))
	assert.True(t, order.AssignableTo(Of[any]()))
	assert.False(t, entity.AssignableTo(order))
	assert.False(t, money.AssignableTo(iEntity))

	assert.True(t, Of[*fakeReader]().AssignableTo(Of[io.Reader]()))
	assert.False(t, Of[fakeReader]().AssignableTo(Of[io.Reader]()))
}

func TestAssignableTo_Variance(t *testing.T) {
	assert.True(t, iProducer.MustConstruct(order).AssignableTo(iProducer.MustConstruct(entity)))
	assert.False(t, iProducer.MustConstruct(entity).AssignableTo(iProducer.MustConstruct(order)))

	assert.True(t, iConsumer.MustConstruct(entity).AssignableTo(iConsumer.MustConstruct(order)))
	assert.False(t, iConsumer.MustConstruct(order).AssignableTo(iConsumer.MustConstruct(entity)))

	// value types are never variant
	assert.False(t, iProducer.MustConstruct(Of[int]()).AssignableTo(iProducer.MustConstruct(Of[any]())))

	assert.False(t, iRepository.MustConstruct(order).AssignableTo(iRepository.MustConstruct(entity)))
}

func TestMatch(t *testing.T) {
	r := Match(iRepository.MustConstruct(order), repository)
	require.True(t, r.Satisfied, r.Reason)
	assert.Same(t, repository.MustConstruct(order), r.Closed)

	r = Match(iRepository.MustConstruct(money), repository)
	assert.False(t, r.Satisfied)
	assert.Contains(t, r.Reason, "IEntity")
	assert.Nil(t, r.Closed)

	r = Match(iRepository.MustConstruct(money), structRepo)
	require.True(t, r.Satisfied, r.Reason)
	assert.Same(t, structRepo.MustConstruct(money), r.Closed)

	r = Match(iRepository.MustConstruct(order), structRepo)
	assert.False(t, r.Satisfied)
}

func TestMatch_ReorderedParameters(t *testing.T) {
	r := Match(iPair.MustConstruct(Of[string](), Of[int]()), swappedPair)
	require.True(t, r.Satisfied, r.Reason)
	assert.Same(t, swappedPair.MustConstruct(Of[int](), Of[string]()), r.Closed)
}

func TestMatch_PartialSpecialization(t *testing.T) {
	r := Match(iPair.MustConstruct(Of[string](), order), keyedPair)
	require.True(t, r.Satisfied, r.Reason)
	assert.Same(t, keyedPair.MustConstruct(order), r.Closed)

	r = Match(iPair.MustConstruct(Of[int](), order), keyedPair)
	assert.False(t, r.Satisfied)
}

func TestMatch_Self(t *testing.T) {
	r := Match(repository.MustConstruct(order), repository)
	require.True(t, r.Satisfied, r.Reason)
	assert.Same(t, repository.MustConstruct(order), r.Closed)
}

func TestMatch_NotClosed(t *testing.T) {
	assert.False(t, Match(iRepository, repository).Satisfied)
	assert.False(t, Match(iRepository.MustConstruct(repoImplT), repository).Satisfied)
	assert.False(t, Match(iRepository.MustConstruct(order), order).Satisfied)
	assert.False(t, Match(nil, repository).Satisfied)
}

func TestImplementsDefinition(t *testing.T) {
	assert.True(t, ImplementsDefinition(repository, iRepository))
	assert.True(t, ImplementsDefinition(swappedPair, iPair))
	assert.True(t, ImplementsDefinition(repository, repository))
	assert.False(t, ImplementsDefinition(repository, iPair))
	assert.False(t, ImplementsDefinition(abstractRepo, iRepository))
}

func TestCheckConstraints(t *testing.T) {
	tests := []struct {
		param *Type
		arg   *Type
		ok    bool
	}{
		{Param("T", WhereClass()), order, true},
		{Param("T", WhereClass()), money, false},
		{Param("T", WhereStruct()), money, true},
		{Param("T", WhereStruct()), Of[*fakeReader](), false},
		{Param("T", WhereNew()), order, true},
		{Param("T", WhereNew()), iEntity, false},
		{Param("T", WhereNew()), Class("NoCtor"), false},
		{Param("T", WhereBase(entity)), order, true},
		{Param("T", WhereBase(order)), entity, false},
		{Param("T", WhereImplements(Of[io.Reader]())), Of[*fakeReader](), true},
		{Param("T", WhereImplements(Of[io.Reader]())), Of[int](), false},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			def := Class(fmt.Sprintf("Def%d", i), WithParams(tt.param))
			err := CheckConstraints(def, []*Type{tt.arg})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				var ce *errorx.ConstraintError
				assert.ErrorAs(t, err, &ce)
			}
		})
	}
}

func TestCheckConstraints_SelfReferencing(t *testing.T) {
	// Sorted[T] where T : IComparable[T]
	iComparable := Interface("IComparable", WithParams(Param("T")))
	sortedT := Param("T")
	sorted := Class("Sorted", WithParams(sortedT))
	sortedT.Where(WhereImplements(iComparable.MustConstruct(sortedT)))

	version := Class("Version")
	WithInterfaces(iComparable.MustConstruct(version))(version)

	assert.NoError(t, CheckConstraints(sorted, []*Type{version}))
	assert.Error(t, CheckConstraints(sorted, []*Type{order}))
}

func TestBind(t *testing.T) {
	def := Interface("IBox", WithParams(Param("T")))
	bound, err := Bind(reflectx.TypeOf[box[int]](), def, Of[int]())
	require.NoError(t, err)

	assert.Same(t, bound, Of[box[int]]())
	assert.Same(t, bound, def.MustConstruct(Of[int]()))
	assert.Equal(t, reflectx.TypeOf[box[int]](), bound.GoType())

	_, err = Bind(reflectx.TypeOf[box[string]](), def, Of[int]())
	assert.Error(t, err)

	_, err = Bind(reflectx.TypeOf[box[int]](), def, Of[string]())
	assert.Error(t, err)
}

func TestBind_Concurrent(t *testing.T) {
	def := Interface("IConcurrentBox", WithParams(Param("T")))
	closed := def.MustConstruct(Of[uint8]())
	want := reflectx.TypeOf[box[uint8]]()
	other := reflectx.TypeOf[box[uint16]]()

	const workers = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			<-start
			rt := want
			if i%2 == 1 {
				rt = other
			}
			_, errs[i] = Bind(rt, def, Of[uint8]())
		}(i)
		go func() {
			defer wg.Done()
			<-start
			if gt := closed.GoType(); gt != nil {
				assert.True(t, gt == want || gt == other)
			}
		}()
	}
	close(start)
	wg.Wait()

	winner := closed.GoType()
	require.NotNil(t, winner)
	for i, err := range errs {
		bindsWinner := (i%2 == 0) == (winner == want)
		if bindsWinner {
			assert.NoError(t, err)
		} else {
			assert.Error(t, err)
		}
	}
}

func TestFromReflect(t *testing.T) {
	assert.Same(t, Of[io.Reader](), Of[io.Reader]())
	assert.Equal(t, Kind_Interface, Of[io.Reader]().Kind())
	assert.Equal(t, Kind_Class, Of[*fakeReader]().Kind())
	assert.Equal(t, Kind_Struct, Of[fakeReader]().Kind())
	assert.Equal(t, Kind_Slice, Of[[]int]().Kind())
	assert.Same(t, Of[int](), Of[[]int]().Elem())
	assert.Same(t, Of[[]int](), SliceOf(Of[int]()))
	assert.Nil(t, FromReflect(nil))
}
