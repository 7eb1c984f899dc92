package metadata

// NewModule creates an empty module with its <Module> pseudo-type, the way
// compilers emit it.
func NewModule(name string) *Module {
	return &Module{
		Name:  name,
		Types: []*Type{{Name: ModuleTypeName}},
	}
}

// NewInterface returns an interface definition.
func NewInterface(namespace, name string, visibility TypeAttributes) *Type {
	return &Type{
		Namespace:  namespace,
		Name:       name,
		Attributes: Interface | (visibility & VisibilityMask),
	}
}

// NewClass returns a class definition deriving from base.
func NewClass(namespace, name string, visibility TypeAttributes, base string) *Type {
	t := &Type{
		Namespace:  namespace,
		Name:       name,
		Attributes: visibility & VisibilityMask,
	}
	if base != "" {
		t.BaseType = &TypeRef{Scope: "System.Runtime", FullName: base}
	}
	return t
}

// NewDelegate returns a delegate definition (a class deriving from
// System.MulticastDelegate).
func NewDelegate(namespace, name string, visibility TypeAttributes) *Type {
	return NewClass(namespace, name, visibility, MulticastDelegateTypeName)
}

// NewAttributeType returns an attribute definition deriving directly from
// System.Attribute.
func NewAttributeType(namespace, name string, visibility TypeAttributes) *Type {
	return NewClass(namespace, name, visibility, AttributeTypeName)
}

// AddType appends a top-level type and returns it.
func (m *Module) AddType(t *Type) *Type {
	t.DeclaringType = nil
	m.Types = append(m.Types, t)
	return t
}

// AddNestedType appends child to t's nested types and links it back.
func (t *Type) AddNestedType(child *Type) *Type {
	child.DeclaringType = t
	t.NestedTypes = append(t.NestedTypes, child)
	return child
}

// AddGenericParameter appends a non-variant generic parameter.
func (t *Type) AddGenericParameter(name string) *GenericParameter {
	g := &GenericParameter{Name: name}
	t.GenericParameters = append(t.GenericParameters, g)
	return g
}

// GenericParameter looks a parameter up by name.
func (t *Type) GenericParameter(name string) *GenericParameter {
	for _, g := range t.GenericParameters {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Apply attaches a usage of attr to g and returns g.
func (g *GenericParameter) Apply(attr TypeRef, args ...string) *GenericParameter {
	g.CustomAttributes = append(g.CustomAttributes, &CustomAttribute{AttributeType: attr, Arguments: args})
	return g
}

// Clone deep-copies the module. Declaring links are rebuilt for the copy.
func (m *Module) Clone() *Module {
	out := &Module{
		Name:             m.Name,
		CustomAttributes: cloneAttributes(m.CustomAttributes),
		PublicKey:        cloneBytes(m.PublicKey),
		Signature:        cloneBytes(m.Signature),
	}
	seen := make(map[*Type]*Type)
	for _, t := range m.Types {
		out.Types = append(out.Types, cloneType(t, nil, seen))
	}
	return out
}

func cloneType(t *Type, declaring *Type, seen map[*Type]*Type) *Type {
	if c, ok := seen[t]; ok {
		return c
	}
	c := &Type{
		Namespace:        t.Namespace,
		Name:             t.Name,
		Attributes:       t.Attributes,
		CustomAttributes: cloneAttributes(t.CustomAttributes),
		DeclaringType:    declaring,
	}
	seen[t] = c
	if t.BaseType != nil {
		base := *t.BaseType
		c.BaseType = &base
	}
	for _, g := range t.GenericParameters {
		c.GenericParameters = append(c.GenericParameters, &GenericParameter{
			Name:             g.Name,
			Attributes:       g.Attributes,
			CustomAttributes: cloneAttributes(g.CustomAttributes),
		})
	}
	for _, n := range t.NestedTypes {
		c.NestedTypes = append(c.NestedTypes, cloneType(n, c, seen))
	}
	return c
}

func cloneAttributes(in []*CustomAttribute) []*CustomAttribute {
	if in == nil {
		return nil
	}
	out := make([]*CustomAttribute, 0, len(in))
	for _, ca := range in {
		out = append(out, &CustomAttribute{
			AttributeType: ca.AttributeType,
			Arguments:     append([]string(nil), ca.Arguments...),
		})
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
