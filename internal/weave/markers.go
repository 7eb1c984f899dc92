package weave

import (
	"errors"

	"varweave/internal/metadata"
)

// Default marker attribute names.
const (
	DefaultCovariantName     = "CovariantOutAttribute"
	DefaultContravariantName = "ContravariantInAttribute"
)

// ErrNamesMustDiffer is returned when both roles ask for the same marker.
var ErrNamesMustDiffer = errors.New("covariant and contravariant marker names must differ")

// MarkerNames selects the marker attribute for each role. Empty fields fall
// back to the defaults.
type MarkerNames struct {
	Covariant     string
	Contravariant string
}

// Effective returns the names with defaults applied.
func (n MarkerNames) Effective() MarkerNames {
	if n.Covariant == "" {
		n.Covariant = DefaultCovariantName
	}
	if n.Contravariant == "" {
		n.Contravariant = DefaultContravariantName
	}
	return n
}

// Validate fails when the effective names collide.
func (n MarkerNames) Validate() error {
	e := n.Effective()
	if e.Covariant == e.Contravariant {
		return ErrNamesMustDiffer
	}
	return nil
}

// Markers holds the resolved marker types. A nil field means the role has
// no usable marker in the module.
type Markers struct {
	Covariant     *metadata.Type
	Contravariant *metadata.Type
}

// Any reports whether at least one role resolved.
func (m Markers) Any() bool {
	return m.Covariant != nil || m.Contravariant != nil
}

// ResolveMarkers finds the marker attribute types for both roles in the
// catalog. Nothing is looked up when the names collide.
func ResolveMarkers(catalog []*metadata.Type, names MarkerNames, sink Sink) (Markers, error) {
	if sink == nil {
		sink = nopSink{}
	}
	eff := names.Effective()
	if eff.Covariant == eff.Contravariant {
		emitNamesMustDiffer(sink, eff.Covariant)
		return Markers{}, ErrNamesMustDiffer
	}

	return Markers{
		Covariant:     resolveRole(catalog, metadata.Covariant, eff.Covariant, names.Covariant, DefaultCovariantName, sink),
		Contravariant: resolveRole(catalog, metadata.Contravariant, eff.Contravariant, names.Contravariant, DefaultContravariantName, sink),
	}, nil
}

func resolveRole(catalog []*metadata.Type, role metadata.GenericParameterAttributes, name, requested, def string, sink Sink) *metadata.Type {
	marker, rejected := findMarker(catalog, name)
	if marker != nil {
		return marker
	}
	if rejected {
		emitMarkerIsPublic(sink, role, name)
	} else {
		emitMarkerNotFound(sink, role, name)
	}
	if requested != "" && requested != def {
		emitCustomNameNotFound(sink, role, name)
	}
	return nil
}

// findMarker returns the first legitimate marker named name. rejected is
// true when a same-named direct Attribute subclass exists but is public.
func findMarker(catalog []*metadata.Type, name string) (marker *metadata.Type, rejected bool) {
	for _, t := range catalog {
		if t.BaseTypeName() != metadata.AttributeTypeName || t.FullName() != name {
			continue
		}
		if t.IsPublic() {
			rejected = true
			continue
		}
		return t, false
	}
	return nil, rejected
}
