package reflectx

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	assert.Equal(t, reflect.Interface, TypeOf[io.Reader]().Kind())
	assert.Equal(t, reflect.TypeOf(0), TypeOf[int]())
}

func TestParameters(t *testing.T) {
	ft := reflect.TypeOf(func(int, string) (bool, error) { return false, nil })
	assert.Equal(t, []reflect.Type{TypeOf[int](), TypeOf[string]()}, GetInParameters(ft))
	assert.Equal(t, []reflect.Type{TypeOf[bool](), TypeOf[error]()}, GetOutParameters(ft))
	assert.Panics(t, func() { GetInParameters(TypeOf[int]()) })

	assert.True(t, IsErrorType(TypeOf[error]()))
	assert.True(t, IsErrorType(reflect.TypeOf(errors.New(""))))
	assert.False(t, IsErrorType(TypeOf[string]()))
}

func TestMethods(t *testing.T) {
	methods, err := Methods(TypeOf[io.ReadCloser]())
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, "Close", methods[0].Name)
	assert.Equal(t, "Read", methods[1].Name)

	_, err = Methods(TypeOf[int]())
	assert.Error(t, err)
}
