package metadata

import "strings"

// TypeAttributes is the flag word stored on a type definition.
// Only the visibility subfield and the interface bit are interpreted here;
// every other bit is carried through untouched.
type TypeAttributes uint32

const (
	VisibilityMask    TypeAttributes = 0x00000007
	NotPublic         TypeAttributes = 0x00000000
	Public            TypeAttributes = 0x00000001
	NestedPublic      TypeAttributes = 0x00000002
	NestedPrivate     TypeAttributes = 0x00000003
	NestedFamily      TypeAttributes = 0x00000004
	NestedAssembly    TypeAttributes = 0x00000005
	NestedFamANDAssem TypeAttributes = 0x00000006
	NestedFamORAssem  TypeAttributes = 0x00000007

	ClassSemanticsMask TypeAttributes = 0x00000020
	Interface          TypeAttributes = 0x00000020
)

var visibilityNames = map[TypeAttributes]string{
	NotPublic:         "not_public",
	Public:            "public",
	NestedPublic:      "nested_public",
	NestedPrivate:     "nested_private",
	NestedFamily:      "nested_family",
	NestedAssembly:    "nested_assembly",
	NestedFamANDAssem: "nested_fam_and_assem",
	NestedFamORAssem:  "nested_fam_or_assem",
}

// VisibilityName returns the document name of a visibility value.
func VisibilityName(v TypeAttributes) string {
	return visibilityNames[v&VisibilityMask]
}

// ParseVisibility maps a document name back to its visibility bits.
func ParseVisibility(name string) (TypeAttributes, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return NotPublic, true
	}
	for v, n := range visibilityNames {
		if n == name {
			return v, true
		}
	}
	return 0, false
}

// GenericParameterAttributes is the flag word stored on a generic parameter.
type GenericParameterAttributes uint16

const (
	VarianceMask  GenericParameterAttributes = 0x0003
	NonVariant    GenericParameterAttributes = 0x0000
	Covariant     GenericParameterAttributes = 0x0001
	Contravariant GenericParameterAttributes = 0x0002

	SpecialConstraintMask          GenericParameterAttributes = 0x001c
	ReferenceTypeConstraint        GenericParameterAttributes = 0x0004
	NotNullableValueTypeConstraint GenericParameterAttributes = 0x0008
	DefaultConstructorConstraint   GenericParameterAttributes = 0x0010
)

// String renders the variance subfield only.
func (a GenericParameterAttributes) String() string {
	switch a & VarianceMask {
	case NonVariant:
		return "NonVariant"
	case Covariant:
		return "Covariant"
	case Contravariant:
		return "Contravariant"
	default:
		return "Invalid"
	}
}

// ParseVariance accepts "", "none", "covariant"/"out" and "contravariant"/"in".
func ParseVariance(s string) (GenericParameterAttributes, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "nonvariant", "invariant":
		return NonVariant, true
	case "covariant", "out":
		return Covariant, true
	case "contravariant", "in":
		return Contravariant, true
	}
	return 0, false
}

// VarianceName is the lower-case document form of a variance value.
func VarianceName(a GenericParameterAttributes) string {
	switch a & VarianceMask {
	case Covariant:
		return "covariant"
	case Contravariant:
		return "contravariant"
	default:
		return "none"
	}
}

var constraintNames = []struct {
	bit  GenericParameterAttributes
	name string
}{
	{ReferenceTypeConstraint, "class"},
	{NotNullableValueTypeConstraint, "struct"},
	{DefaultConstructorConstraint, "new"},
}

// ConstraintNames lists the special constraints set in a.
func ConstraintNames(a GenericParameterAttributes) []string {
	var out []string
	for _, c := range constraintNames {
		if a&c.bit != 0 {
			out = append(out, c.name)
		}
	}
	return out
}

// ParseConstraint maps a constraint name to its bit.
func ParseConstraint(name string) (GenericParameterAttributes, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range constraintNames {
		if c.name == name {
			return c.bit, true
		}
	}
	return 0, false
}
