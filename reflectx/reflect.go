package reflectx

import (
	"fmt"
	"reflect"
)

var errorType = TypeOf[error]()

func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func GetOutParameters(funcType reflect.Type) []reflect.Type {
	mustBeFunc(funcType)
	paramTypes := make([]reflect.Type, funcType.NumOut())
	for i := range paramTypes {
		paramTypes[i] = funcType.Out(i)
	}
	return paramTypes
}

func GetInParameters(funcType reflect.Type) []reflect.Type {
	mustBeFunc(funcType)
	paramTypes := make([]reflect.Type, funcType.NumIn())
	for i := range paramTypes {
		paramTypes[i] = funcType.In(i)
	}
	return paramTypes
}

func mustBeFunc(t reflect.Type) {
	if t.Kind() != reflect.Func {
		panic(fmt.Errorf("the kind of type '%v' is not function", t))
	}
}

func IsErrorType(t reflect.Type) bool {
	return t.AssignableTo(errorType)
}

// Methods returns the method set of the interface type iface in the order
// reported by reflect, which is sorted by name.
func Methods(iface reflect.Type) ([]reflect.Method, error) {
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, fmt.Errorf("'%v' is not an interface", iface)
	}
	methods := make([]reflect.Method, iface.NumMethod())
	for i := range methods {
		methods[i] = iface.Method(i)
	}
	return methods, nil
}
