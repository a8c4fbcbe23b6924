// Package ast defines the type lattice and abstract syntax tree for
// litecode. Types are represented as a tagged sum type, one Kind tag per
// variant, rather than a class hierarchy.
package ast

import "fmt"

// Kind tags the variant of a Type value.
type Kind int

const (
	KindNum Kind = iota
	KindText
	KindChar
	KindBool
	KindVoid
	KindNull
	KindArray
	KindFunction
	KindStruct
)

// ArrayLenDynamic marks an array type whose length is not fixed at compile
// time.
const ArrayLenDynamic = -1

// Type is the tagged-union representation of a litecode type. Only the
// fields relevant to Kind are meaningful:
//
//	KindArray:    Elem, Len (or ArrayLenDynamic)
//	KindFunction: Params, Ret
//	KindStruct:   StructName
//
// Nullable applies to every Kind except KindFunction and KindVoid, which
// are never nullable.
type Type struct {
	Kind       Kind
	Nullable   bool
	Elem       *Type
	Len        int
	Params     []*Type
	Ret        *Type
	StructName string
}

// Convenience constructors for the non-nullable primitive types.
func Num() *Type  { return &Type{Kind: KindNum} }
func Text() *Type { return &Type{Kind: KindText} }
func Char() *Type { return &Type{Kind: KindChar} }
func Bool() *Type { return &Type{Kind: KindBool} }
func Void() *Type { return &Type{Kind: KindVoid} }

// Null returns the type of the null literal, nullable by construction.
func Null() *Type { return &Type{Kind: KindNull, Nullable: true} }

// Array builds an array-of-T type. Pass ArrayLenDynamic for an
// unspecified-length array.
func Array(elem *Type, length int) *Type {
	return &Type{Kind: KindArray, Elem: elem, Len: length}
}

// Function builds a function type from its parameter types and return
// type. Function types are never nullable.
func Function(params []*Type, ret *Type) *Type {
	return &Type{Kind: KindFunction, Params: params, Ret: ret}
}

// Struct builds a reference to a named struct type.
func Struct(name string) *Type {
	return &Type{Kind: KindStruct, StructName: name}
}

// AsNullable returns a copy of t with Nullable set to true. Calling this
// on a function or void type is a caller error; it panics rather than
// silently producing an invalid type.
func (t *Type) AsNullable() *Type {
	if t.Kind == KindFunction || t.Kind == KindVoid {
		panic(fmt.Sprintf("type %s cannot be nullable", t))
	}
	n := *t
	n.Nullable = true
	return &n
}

// Equal implements type equality: structural for primitives and arrays,
// nominal for structs, positional for functions.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindNum, KindText, KindChar, KindBool, KindVoid, KindNull:
		return t.Nullable == o.Nullable
	case KindArray:
		return t.Nullable == o.Nullable && t.Len == o.Len && t.Elem.Equal(o.Elem)
	case KindStruct:
		return t.Nullable == o.Nullable && t.StructName == o.StructName
	case KindFunction:
		if len(t.Params) != len(o.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(o.Params[i]) {
				return false
			}
		}
		return t.Ret.Equal(o.Ret)
	}
	return false
}

// AssignableTo implements assignment compatibility: equal types; a
// non-nullable T to its own nullable form; the literal null to any
// nullable type.
func (t *Type) AssignableTo(target *Type) bool {
	if t == nil || target == nil {
		return false
	}
	if t.Kind == KindNull {
		return target.Nullable
	}
	if t.Equal(target) {
		return true
	}
	if !t.Nullable && target.Nullable {
		return t.AsNullable().Equal(target)
	}
	// A sized array (e.g. an array literal's type) may initialize a
	// dynamic-length array of the same element type.
	if t.Kind == KindArray && target.Kind == KindArray &&
		target.Len == ArrayLenDynamic && !t.Nullable && !target.Nullable {
		return t.Elem.Equal(target.Elem)
	}
	return false
}

// IsNumeric, IsText, etc. name the primitive kinds for readability at call
// sites that only care about one variant.
func (t *Type) IsNumeric() bool { return t != nil && t.Kind == KindNum }
func (t *Type) IsText() bool    { return t != nil && t.Kind == KindText }
func (t *Type) IsChar() bool    { return t != nil && t.Kind == KindChar }
func (t *Type) IsBool() bool    { return t != nil && t.Kind == KindBool }
func (t *Type) IsArray() bool   { return t != nil && t.Kind == KindArray }
func (t *Type) IsStruct() bool  { return t != nil && t.Kind == KindStruct }
func (t *Type) IsVoid() bool    { return t != nil && t.Kind == KindVoid }

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	suffix := ""
	if t.Nullable {
		suffix = "?"
	}
	switch t.Kind {
	case KindNum:
		return "num" + suffix
	case KindText:
		return "text" + suffix
	case KindChar:
		return "char" + suffix
	case KindBool:
		return "bool" + suffix
	case KindVoid:
		return "void"
	case KindNull:
		return "null"
	case KindArray:
		length := "?"
		if t.Len != ArrayLenDynamic {
			length = fmt.Sprint(t.Len)
		}
		return fmt.Sprintf("%s[%s]%s", t.Elem, length, suffix)
	case KindFunction:
		return fmt.Sprintf("fnc(%v):%s", t.Params, t.Ret)
	case KindStruct:
		return t.StructName + suffix
	}
	return "<invalid>"
}

// StructField is one {name, type} entry of a struct definition.
type StructField struct {
	Name string
	Type *Type
}

// StructRegistry is the struct name → field-list table, an explicit
// context value rather than a package-level global. Its lifetime is one
// compilation; Reset clears it at a compilation boundary.
type StructRegistry struct {
	defs map[string][]StructField
}

// NewStructRegistry returns an empty registry.
func NewStructRegistry() *StructRegistry {
	return &StructRegistry{defs: make(map[string][]StructField)}
}

// Reset clears the registry for reuse across compilations.
func (r *StructRegistry) Reset() {
	r.defs = make(map[string][]StructField)
}

// Define registers a struct's field list. It returns an error if the name
// is already registered.
func (r *StructRegistry) Define(name string, fields []StructField) error {
	if _, exists := r.defs[name]; exists {
		return fmt.Errorf("duplicate struct definition: %s", name)
	}
	r.defs[name] = fields
	return nil
}

// Lookup returns the field list for a registered struct name.
func (r *StructRegistry) Lookup(name string) ([]StructField, bool) {
	f, ok := r.defs[name]
	return f, ok
}

// Field returns the type of a named field of a registered struct.
func (r *StructRegistry) Field(structName, fieldName string) (*Type, bool) {
	fields, ok := r.defs[structName]
	if !ok {
		return nil, false
	}
	for _, f := range fields {
		if f.Name == fieldName {
			return f.Type, true
		}
	}
	return nil, false
}
