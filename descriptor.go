package di

import (
	"fmt"
	"reflect"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/reflectx"
	"github.com/dozm/opendi/typesys"
)

type Lifetime byte

const (
	Lifetime_Singleton Lifetime = iota
	Lifetime_Scoped
	Lifetime_Transient
)

func (l Lifetime) String() string {
	switch l {
	case Lifetime_Singleton:
		return "Singleton"
	case Lifetime_Scoped:
		return "Scoped"
	case Lifetime_Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Lifetime(%d)", byte(l))
	}
}

// Factory creates a service instance. Failures are reported by panicking
// with an error; the container turns the panic back into the error returned
// from Get.
type Factory func(Container) any

type ConstructorInfo struct {
	FuncType  reflect.Type
	FuncValue reflect.Value
	// input parameter types
	In []*typesys.Type
	// output parameter types
	Out []reflect.Type
}

func (c *ConstructorInfo) Call(params []reflect.Value) []reflect.Value {
	return c.FuncValue.Call(params)
}

func newConstructorInfo(ctor any) *ConstructorInfo {
	ft := reflect.TypeOf(ctor)
	ci := &ConstructorInfo{
		FuncValue: reflect.ValueOf(ctor),
		FuncType:  ft,
	}
	if ft == nil || ft.Kind() != reflect.Func {
		return ci
	}

	for _, in := range reflectx.GetInParameters(ft) {
		ci.In = append(ci.In, typesys.FromReflect(in))
	}
	ci.Out = reflectx.GetOutParameters(ft)
	return ci
}

// service descriptor
type Descriptor struct {
	ServiceType *typesys.Type
	Lifetime    Lifetime
	Ctor        *ConstructorInfo
	Instance    any
	Factory     Factory
}

func (d *Descriptor) String() string {
	s := fmt.Sprintf("ServiceType: %v Lifetime: %v ", d.ServiceType, d.Lifetime)

	switch {
	case d.Ctor != nil:
		s += fmt.Sprintf("Constructor: %v", d.Ctor.FuncType)
	case d.Factory != nil:
		s += "Factory"
	default:
		s += fmt.Sprintf("Instance: %v", d.Instance)
	}

	return s
}

func NewInstanceDescriptor(serviceType *typesys.Type, instance any) *Descriptor {
	if err := instanceAssignable(instance, serviceType); err != nil {
		panic(err)
	}

	return &Descriptor{
		ServiceType: serviceType,
		Lifetime:    Lifetime_Singleton,
		Instance:    instance,
	}
}

func NewConstructorDescriptor(serviceType *typesys.Type, lifetime Lifetime, ctor any) *Descriptor {
	ci := newConstructorInfo(ctor)
	err := checkConstructor(ci, serviceType)

	if err != nil {
		panic(err)
	}

	return &Descriptor{
		ServiceType: serviceType,
		Lifetime:    lifetime,
		Ctor:        ci,
	}
}

func checkConstructor(ctor *ConstructorInfo, serviceType *typesys.Type) (err error) {
	if ctor.FuncType == nil || ctor.FuncType.Kind() != reflect.Func {
		return &errorx.FuncSignatureError{
			Message: fmt.Sprintf("the constructor of the service '%v' is not a function", serviceType)}
	}

	out := ctor.Out
	numOut := len(out)
	if (numOut == 0 || numOut > 2) ||
		!assignable(out[0], serviceType) ||
		(numOut == 2 && !reflectx.IsErrorType(out[1])) {
		return &errorx.FuncSignatureError{
			Message: fmt.Sprintf("the constructor must returns a '%v' and an optional error", serviceType)}
	}

	return
}

// Model types without a Go binding cannot be checked and are accepted.
func assignable(from reflect.Type, to *typesys.Type) bool {
	if to.GoType() == nil {
		return true
	}
	return typesys.FromReflect(from).AssignableTo(to)
}

func instanceAssignable(instance any, to *typesys.Type) (err error) {
	if instance == nil {
		return fmt.Errorf("the instance of service '%v' is nil", to)
	}
	if t := reflect.TypeOf(instance); !assignable(t, to) {
		err = fmt.Errorf("the instance of type '%v' can not assignable to type '%v'", t, to)
	}
	return
}

func NewFactoryDescriptor(serviceType *typesys.Type, lifetime Lifetime, factory Factory) *Descriptor {
	if factory == nil {
		panic(errorx.NewArgumentNilError("factory"))
	}
	return &Descriptor{
		ServiceType: serviceType,
		Lifetime:    lifetime,
		Factory:     factory,
	}
}
