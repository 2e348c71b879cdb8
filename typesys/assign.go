package typesys

import (
	"fmt"

	"github.com/dozm/opendi/errorx"
)

// AssignableTo reports whether a value of type t can be used where target
// is expected.
func (t *Type) AssignableTo(target *Type) bool {
	if t == nil || target == nil {
		return false
	}
	from, to := t.GoType(), target.GoType()
	if t == target || to == emptyInterface {
		return true
	}
	if from != nil && to != nil && from.AssignableTo(to) {
		return true
	}

	if t.kind == Kind_Parameter {
		c := t.constraints
		if c.Base != nil && c.Base.AssignableTo(target) {
			return true
		}
		for _, i := range c.Interfaces {
			if i.AssignableTo(target) {
				return true
			}
		}
		return false
	}

	if variantAssignable(t, target) {
		return true
	}

	if target.kind != Kind_Interface {
		for b := t.Base(); b != nil; b = b.Base() {
			if b == target {
				return true
			}
		}
		return false
	}

	for _, i := range t.AllInterfaces() {
		if i == target || variantAssignable(i, target) {
			return true
		}
	}
	return false
}

// variantAssignable handles co- and contravariant generic interfaces.
func variantAssignable(from, to *Type) bool {
	def := from.definition
	if def == nil || def != to.definition || def.kind != Kind_Interface {
		return false
	}

	for i, p := range def.params {
		a, b := from.args[i], to.args[i]
		if a == b {
			continue
		}
		switch p.variance {
		case Variance_Covariant:
			if !a.IsReferenceType() || !a.AssignableTo(b) {
				return false
			}
		case Variance_Contravariant:
			if !b.IsReferenceType() || !b.AssignableTo(a) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// CheckConstraints verifies that args satisfy every constraint declared on
// the parameters of the generic definition def.
func CheckConstraints(def *Type, args []*Type) error {
	if !def.IsGenericDefinition() {
		return errorx.NewArgumentError(fmt.Sprintf("'%v' is not a generic type definition", def))
	}
	if len(args) != len(def.params) {
		return errorx.NewArgumentError(
			fmt.Sprintf("'%v' expects %d type argument(s), got %d", def, len(def.params), len(args)))
	}

	m := def.bindings(args)
	for i, p := range def.params {
		if err := checkParam(p, args[i], m); err != nil {
			return err
		}
	}
	return nil
}

func checkParam(p, arg *Type, m map[*Type]*Type) error {
	c := p.constraints
	fail := func(format string, a ...any) error {
		return &errorx.ConstraintError{
			Param:    p.name,
			Argument: arg.String(),
			Message:  fmt.Sprintf(format, a...),
		}
	}

	if c.ReferenceType && !arg.IsReferenceType() {
		return fail("must be a reference type")
	}
	if c.ValueType && !arg.IsValueType() {
		return fail("must be a value type")
	}
	if c.DefaultConstructor && !arg.HasDefaultConstructor() {
		return fail("must have a default constructor")
	}
	if c.Base != nil {
		if base := c.Base.Substitute(m); !arg.AssignableTo(base) {
			return fail("must derive from '%v'", base)
		}
	}
	for _, i := range c.Interfaces {
		if iface := i.Substitute(m); !arg.AssignableTo(iface) {
			return fail("must implement '%v'", iface)
		}
	}
	return nil
}
