// Package metadata is the in-memory object model of a compiled module:
// its type definitions, nested types, generic parameters and the custom
// attributes applied to them. Values are mutated in place by the weaver.
package metadata

// Well-known type names.
const (
	AttributeTypeName         = "System.Attribute"
	MulticastDelegateTypeName = "System.MulticastDelegate"
	ObjectTypeName            = "System.Object"
	ModuleTypeName            = "<Module>"
	AssemblyKeyFileAttribute  = "System.Reflection.AssemblyKeyFileAttribute"
)

// Module is one compiled unit. It owns its top-level types.
type Module struct {
	Name             string
	Types            []*Type
	CustomAttributes []*CustomAttribute
	PublicKey        []byte
	Signature        []byte
}

// TypeRef points at a type by name. An empty Scope means the type is
// defined in the module that holds the reference.
type TypeRef struct {
	Scope    string
	FullName string
}

// IsLocal reports whether the reference resolves inside the current module.
func (r TypeRef) IsLocal() bool { return r.Scope == "" }

func (r TypeRef) String() string {
	if r.Scope == "" {
		return r.FullName
	}
	return "[" + r.Scope + "]" + r.FullName
}

// CustomAttribute is one application of an attribute type.
type CustomAttribute struct {
	AttributeType TypeRef
	Arguments     []string
}

// Type is a type definition.
type Type struct {
	Namespace         string
	Name              string
	Attributes        TypeAttributes
	BaseType          *TypeRef
	NestedTypes       []*Type
	GenericParameters []*GenericParameter
	CustomAttributes  []*CustomAttribute

	// DeclaringType is the enclosing type of a nested type, nil at top level.
	DeclaringType *Type
}

// FullName is Namespace.Name for top-level types and Outer/Inner for
// nested ones.
func (t *Type) FullName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// Ref returns a module-local reference to t.
func (t *Type) Ref() TypeRef {
	return TypeRef{FullName: t.FullName()}
}

func (t *Type) IsInterface() bool {
	return t.Attributes&ClassSemanticsMask == Interface
}

func (t *Type) Visibility() TypeAttributes {
	return t.Attributes & VisibilityMask
}

// IsPublic is true for public top-level types and public nested types.
func (t *Type) IsPublic() bool {
	v := t.Visibility()
	return v == Public || v == NestedPublic
}

// IsNested reports whether t is declared inside another type.
func (t *Type) IsNested() bool { return t.DeclaringType != nil }

// BaseTypeName returns the full name of the base type or "" when absent.
func (t *Type) BaseTypeName() string {
	if t.BaseType == nil {
		return ""
	}
	return t.BaseType.FullName
}

// GenericParameter is a type-level generic parameter.
type GenericParameter struct {
	Name             string
	Attributes       GenericParameterAttributes
	CustomAttributes []*CustomAttribute
}

// Variance returns only the variance subfield.
func (g *GenericParameter) Variance() GenericParameterAttributes {
	return g.Attributes & VarianceMask
}

func (g *GenericParameter) IsNonVariant() bool {
	return g.Variance() == NonVariant
}

// SetVariance replaces the variance subfield and keeps every other bit.
func (g *GenericParameter) SetVariance(v GenericParameterAttributes) {
	g.Attributes = (g.Attributes &^ VarianceMask) | (v & VarianceMask)
}

// HasAttribute reports whether an attribute of the given type is applied.
func (g *GenericParameter) HasAttribute(ref TypeRef) bool {
	for _, ca := range g.CustomAttributes {
		if ca.AttributeType == ref {
			return true
		}
	}
	return false
}

// RemoveAttributes drops every usage of ref and returns how many were removed.
func (g *GenericParameter) RemoveAttributes(ref TypeRef) int {
	kept := g.CustomAttributes[:0]
	removed := 0
	for _, ca := range g.CustomAttributes {
		if ca.AttributeType == ref {
			removed++
			continue
		}
		kept = append(kept, ca)
	}
	for i := len(kept); i < len(g.CustomAttributes); i++ {
		g.CustomAttributes[i] = nil
	}
	g.CustomAttributes = kept
	return removed
}

// FindAttribute returns the first module-level attribute whose type name
// matches fullName, or nil.
func (m *Module) FindAttribute(fullName string) *CustomAttribute {
	for _, ca := range m.CustomAttributes {
		if ca.AttributeType.FullName == fullName {
			return ca
		}
	}
	return nil
}
