// Package weave rewrites generic parameter variance in a compiled module.
//
// Authors mark type parameters of interfaces and delegates with two
// non-public attribute types (CovariantOutAttribute and
// ContravariantInAttribute by default). Rewrite finds those markers, turns
// each marked parameter covariant or contravariant, and removes the marker
// usages so that a second run is a no-op. The marker type definitions stay
// in the module.
//
// The package does no I/O. Diagnostics go to an optional Sink.
package weave

import (
	"fmt"

	"varweave/internal/metadata"
)

// Options configures a rewrite.
type Options struct {
	Names MarkerNames
	// Sink receives diagnostics; nil drops them.
	Sink Sink
}

// Rewrite patches m in place. It returns true when at least one generic
// parameter's variance changed. A returned error is fatal and guarantees
// that m was not modified.
func Rewrite(m *metadata.Module, opts Options) (bool, error) {
	sink := opts.Sink
	if sink == nil {
		sink = nopSink{}
	}

	if err := opts.Names.Validate(); err != nil {
		emitNamesMustDiffer(sink, opts.Names.Effective().Covariant)
		return false, err
	}

	catalog, err := BuildCatalog(m)
	if err != nil {
		return false, fmt.Errorf("build type catalog: %w", err)
	}

	markers, err := ResolveMarkers(catalog, opts.Names, sink)
	if err != nil {
		return false, err
	}
	if !markers.Any() {
		return false, nil
	}
	return PatchTypes(catalog, markers, sink), nil
}
