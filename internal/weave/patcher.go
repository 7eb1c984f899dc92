package weave

import "varweave/internal/metadata"

// IsVarianceEligible reports whether t may carry variant generic
// parameters: interfaces and delegates only.
func IsVarianceEligible(t *metadata.Type) bool {
	if t.IsInterface() {
		return true
	}
	return t.BaseType != nil && t.BaseType.FullName == metadata.MulticastDelegateTypeName
}

// PatchTypes applies the requested variance to every eligible type in the
// catalog and reports whether any parameter was rewritten. Problems with a
// single parameter are reported to sink and do not stop the walk.
func PatchTypes(catalog []*metadata.Type, markers Markers, sink Sink) bool {
	if !markers.Any() {
		return false
	}
	if sink == nil {
		sink = nopSink{}
	}
	changed := false
	for _, t := range catalog {
		if patchType(t, markers, sink) {
			changed = true
		}
	}
	return changed
}

func patchType(t *metadata.Type, markers Markers, sink Sink) bool {
	if !IsVarianceEligible(t) {
		return false
	}
	changed := false
	for _, g := range t.GenericParameters {
		if patchParameter(t, g, markers, sink) {
			changed = true
		}
	}
	return changed
}

func patchParameter(t *metadata.Type, g *metadata.GenericParameter, markers Markers, sink Sink) bool {
	// Markers are consumed whatever the outcome.
	wantsCo := takeMarker(g, markers.Covariant)
	wantsContra := takeMarker(g, markers.Contravariant)

	switch {
	case !wantsCo && !wantsContra:
		return false
	case !g.IsNonVariant():
		emitAlreadyVariant(sink, t, g)
		return false
	case wantsCo && wantsContra:
		emitConflict(sink, t, g)
		return false
	}

	v := metadata.Covariant
	if wantsContra {
		v = metadata.Contravariant
	}
	g.SetVariance(v)
	emitMarked(sink, t, g, v)
	return true
}

// takeMarker removes every usage of marker from g and reports whether there
// was one.
func takeMarker(g *metadata.GenericParameter, marker *metadata.Type) bool {
	if marker == nil {
		return false
	}
	return g.RemoveAttributes(marker.Ref()) > 0
}
