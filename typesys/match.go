package typesys

import "fmt"

type MatchResult struct {
	Satisfied bool
	// the implementation definition closed over the inferred arguments
	Closed *Type
	// why the match failed, for diagnostics
	Reason string
}

func miss(format string, a ...any) MatchResult {
	return MatchResult{Reason: fmt.Sprintf(format, a...)}
}

// Match infers the arguments that close the generic definition impl so
// that it serves the closed type requested, and checks the inferred
// arguments against impl's constraints.
//
// Inference looks at every contract of impl (impl itself, its base types
// and all its interfaces); the first contract built from the requested
// type's definition that unifies wins. A failed match is a normal outcome.
func Match(requested, impl *Type) MatchResult {
	if requested == nil || impl == nil {
		return miss("nil type")
	}
	if !requested.IsConstructed() || requested.ContainsGenericParameters() {
		return miss("'%v' is not a closed generic type", requested)
	}
	if !impl.IsGenericDefinition() {
		return miss("'%v' is not a generic type definition", impl)
	}

	def := requested.definition
	var inferred map[*Type]*Type
	for _, contract := range contracts(impl) {
		if contract.definition != def {
			continue
		}
		b := make(map[*Type]*Type, len(impl.params))
		if unify(contract, requested, b) {
			inferred = b
			break
		}
	}
	if inferred == nil {
		return miss("no contract of '%v' unifies with '%v'", impl, requested)
	}

	args := make([]*Type, len(impl.params))
	for i, p := range impl.params {
		a, ok := inferred[p]
		if !ok {
			return miss("cannot infer '%v' of '%v' from '%v'", p, impl, requested)
		}
		args[i] = a
	}

	if err := CheckConstraints(impl, args); err != nil {
		return miss("%v", err)
	}

	closed, err := impl.Construct(args...)
	if err != nil {
		return miss("%v", err)
	}
	return MatchResult{Satisfied: true, Closed: closed}
}

// ImplementsDefinition reports whether some contract of the generic
// definition impl is constructed from the generic definition service.
func ImplementsDefinition(impl, service *Type) bool {
	if !impl.IsGenericDefinition() || !service.IsGenericDefinition() {
		return false
	}
	for _, c := range contracts(impl) {
		if c.definition == service {
			return true
		}
	}
	return false
}

func contracts(impl *Type) []*Type {
	self := impl.selfReference()
	result := []*Type{self}
	for b := self.Base(); b != nil; b = b.Base() {
		result = append(result, b)
	}
	return append(result, self.AllInterfaces()...)
}

// unify binds the parameters in pattern so that it equals concrete.
func unify(pattern, concrete *Type, b map[*Type]*Type) bool {
	if pattern.kind == Kind_Parameter {
		if bound, ok := b[pattern]; ok {
			return bound == concrete
		}
		b[pattern] = concrete
		return true
	}
	if !pattern.open {
		return pattern == concrete
	}

	switch {
	case pattern.definition != nil:
		if concrete.definition != pattern.definition {
			return false
		}
		for i, a := range pattern.args {
			if !unify(a, concrete.args[i], b) {
				return false
			}
		}
		return true
	case pattern.kind == Kind_Slice:
		if concrete.kind != Kind_Slice {
			return false
		}
		e := concrete.Elem()
		return e != nil && unify(pattern.elem, e, b)
	}
	return false
}
