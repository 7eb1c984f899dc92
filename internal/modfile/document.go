package modfile

import (
	"encoding/base64"
	"fmt"

	"varweave/internal/metadata"
)

// document is the on-disk form of a module. It keeps flag words readable:
// visibility, interface and variance are spelled out and only bits the
// tool does not interpret are stored raw.
type document struct {
	Module     string         `yaml:"module" json:"module"`
	PublicKey  string         `yaml:"public_key,omitempty" json:"public_key,omitempty"`
	Signature  string         `yaml:"signature,omitempty" json:"signature,omitempty"`
	Attributes []attributeDoc `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Types      []typeDoc      `yaml:"types" json:"types"`
}

type typeDoc struct {
	Namespace         string         `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Name              string         `yaml:"name" json:"name"`
	Visibility        string         `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	Interface         bool           `yaml:"interface,omitempty" json:"interface,omitempty"`
	ExtraFlags        uint32         `yaml:"extra_flags,omitempty" json:"extra_flags,omitempty"`
	Base              string         `yaml:"base,omitempty" json:"base,omitempty"`
	BaseScope         string         `yaml:"base_scope,omitempty" json:"base_scope,omitempty"`
	Attributes        []attributeDoc `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	GenericParameters []paramDoc     `yaml:"generic_parameters,omitempty" json:"generic_parameters,omitempty"`
	Nested            []typeDoc      `yaml:"nested,omitempty" json:"nested,omitempty"`
}

type paramDoc struct {
	Name        string         `yaml:"name" json:"name"`
	Variance    string         `yaml:"variance,omitempty" json:"variance,omitempty"`
	Constraints []string       `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	ExtraFlags  uint16         `yaml:"extra_flags,omitempty" json:"extra_flags,omitempty"`
	Attributes  []attributeDoc `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

type attributeDoc struct {
	Type  string   `yaml:"type" json:"type"`
	Scope string   `yaml:"scope,omitempty" json:"scope,omitempty"`
	Args  []string `yaml:"args,omitempty" json:"args,omitempty"`
}

const (
	typeKnownBits  = metadata.VisibilityMask | metadata.ClassSemanticsMask
	paramKnownBits = metadata.VarianceMask | metadata.SpecialConstraintMask
)

func toDocument(m *metadata.Module) document {
	doc := document{
		Module:     m.Name,
		Attributes: toAttributeDocs(m.CustomAttributes),
	}
	if len(m.PublicKey) > 0 {
		doc.PublicKey = base64.StdEncoding.EncodeToString(m.PublicKey)
	}
	if len(m.Signature) > 0 {
		doc.Signature = base64.StdEncoding.EncodeToString(m.Signature)
	}
	for _, t := range m.Types {
		doc.Types = append(doc.Types, toTypeDoc(t))
	}
	return doc
}

func toTypeDoc(t *metadata.Type) typeDoc {
	td := typeDoc{
		Namespace:  t.Namespace,
		Name:       t.Name,
		Visibility: metadata.VisibilityName(t.Attributes),
		Interface:  t.IsInterface(),
		ExtraFlags: uint32(t.Attributes &^ typeKnownBits),
		Attributes: toAttributeDocs(t.CustomAttributes),
	}
	if t.BaseType != nil {
		td.Base = t.BaseType.FullName
		td.BaseScope = t.BaseType.Scope
	}
	for _, g := range t.GenericParameters {
		td.GenericParameters = append(td.GenericParameters, paramDoc{
			Name:        g.Name,
			Variance:    varianceDoc(g.Attributes),
			Constraints: metadata.ConstraintNames(g.Attributes),
			ExtraFlags:  uint16(g.Attributes &^ paramKnownBits),
			Attributes:  toAttributeDocs(g.CustomAttributes),
		})
	}
	for _, n := range t.NestedTypes {
		td.Nested = append(td.Nested, toTypeDoc(n))
	}
	return td
}

func varianceDoc(a metadata.GenericParameterAttributes) string {
	if a&metadata.VarianceMask == metadata.NonVariant {
		return ""
	}
	return metadata.VarianceName(a)
}

func toAttributeDocs(in []*metadata.CustomAttribute) []attributeDoc {
	var out []attributeDoc
	for _, ca := range in {
		out = append(out, attributeDoc{
			Type:  ca.AttributeType.FullName,
			Scope: ca.AttributeType.Scope,
			Args:  ca.Arguments,
		})
	}
	return out
}

// fromDocument converts and validates a decoded document.
func fromDocument(doc document) (*metadata.Module, error) {
	m := &metadata.Module{
		Name:             doc.Module,
		CustomAttributes: fromAttributeDocs(doc.Attributes),
	}
	var err error
	if m.PublicKey, err = decodeBase64("public_key", doc.PublicKey); err != nil {
		return nil, err
	}
	if m.Signature, err = decodeBase64("signature", doc.Signature); err != nil {
		return nil, err
	}

	names := make(map[string]string)
	for i, td := range doc.Types {
		t, err := fromTypeDoc(td, nil, fmt.Sprintf("types[%d]", i), names)
		if err != nil {
			return nil, err
		}
		m.Types = append(m.Types, t)
	}
	return m, nil
}

func fromTypeDoc(td typeDoc, declaring *metadata.Type, path string, names map[string]string) (*metadata.Type, error) {
	if td.Name == "" {
		return nil, fmt.Errorf("%s: type name is required", path)
	}
	vis, ok := metadata.ParseVisibility(td.Visibility)
	if !ok {
		return nil, fmt.Errorf("%s: unknown visibility %q", path, td.Visibility)
	}
	t := &metadata.Type{
		Namespace:        td.Namespace,
		Name:             td.Name,
		Attributes:       vis | (metadata.TypeAttributes(td.ExtraFlags) &^ typeKnownBits),
		CustomAttributes: fromAttributeDocs(td.Attributes),
		DeclaringType:    declaring,
	}
	if td.Interface {
		t.Attributes |= metadata.Interface
	}
	if td.Base != "" {
		t.BaseType = &metadata.TypeRef{Scope: td.BaseScope, FullName: td.Base}
	}

	full := t.FullName()
	if prev, dup := names[full]; dup {
		return nil, fmt.Errorf("%s: duplicate type %s (first defined at %s)", path, full, prev)
	}
	names[full] = path

	seen := make(map[string]bool)
	for i, pd := range td.GenericParameters {
		ppath := fmt.Sprintf("%s.generic_parameters[%d]", path, i)
		if pd.Name == "" {
			return nil, fmt.Errorf("%s: parameter name is required", ppath)
		}
		if seen[pd.Name] {
			return nil, fmt.Errorf("%s: duplicate generic parameter %s on %s", ppath, pd.Name, full)
		}
		seen[pd.Name] = true

		attrs, ok := metadata.ParseVariance(pd.Variance)
		if !ok {
			return nil, fmt.Errorf("%s: unknown variance %q", ppath, pd.Variance)
		}
		for _, c := range pd.Constraints {
			bit, ok := metadata.ParseConstraint(c)
			if !ok {
				return nil, fmt.Errorf("%s: unknown constraint %q", ppath, c)
			}
			attrs |= bit
		}
		attrs |= metadata.GenericParameterAttributes(pd.ExtraFlags) &^ paramKnownBits
		t.GenericParameters = append(t.GenericParameters, &metadata.GenericParameter{
			Name:             pd.Name,
			Attributes:       attrs,
			CustomAttributes: fromAttributeDocs(pd.Attributes),
		})
	}

	for i, nd := range td.Nested {
		n, err := fromTypeDoc(nd, t, fmt.Sprintf("%s.nested[%d]", path, i), names)
		if err != nil {
			return nil, err
		}
		t.NestedTypes = append(t.NestedTypes, n)
	}
	return t, nil
}

func fromAttributeDocs(in []attributeDoc) []*metadata.CustomAttribute {
	if len(in) == 0 {
		return nil
	}
	out := make([]*metadata.CustomAttribute, 0, len(in))
	for _, ad := range in {
		out = append(out, &metadata.CustomAttribute{
			AttributeType: metadata.TypeRef{Scope: ad.Scope, FullName: ad.Type},
			Arguments:     ad.Args,
		})
	}
	return out
}

func decodeBase64(field, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return b, nil
}
