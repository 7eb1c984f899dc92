package weave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varweave/internal/metadata"
)

func catalogOf(t *testing.T, m *metadata.Module) []*metadata.Type {
	t.Helper()
	catalog, err := BuildCatalog(m)
	require.NoError(t, err)
	return catalog
}

func TestResolveMarkers_Defaults(t *testing.T) {
	m := metadata.NewModule("Acme.dll")
	co := m.AddType(metadata.NewAttributeType("", DefaultCovariantName, metadata.NotPublic))
	contra := m.AddType(metadata.NewAttributeType("", DefaultContravariantName, metadata.NotPublic))

	rec := &Recorder{}
	markers, err := ResolveMarkers(catalogOf(t, m), MarkerNames{}, rec)
	require.NoError(t, err)

	assert.Same(t, co, markers.Covariant)
	assert.Same(t, contra, markers.Contravariant)
	assert.Empty(t, rec.Events())
}

func TestResolveMarkers_NotFoundIsDebug(t *testing.T) {
	m := metadata.NewModule("Plain.dll")

	rec := &Recorder{}
	markers, err := ResolveMarkers(catalogOf(t, m), MarkerNames{}, rec)
	require.NoError(t, err)

	assert.False(t, markers.Any())
	events := rec.OfKind(KindMarkerNotFound)
	require.Len(t, events, 2)
	assert.Equal(t, SeverityDebug, events[0].Severity)
	assert.Equal(t, metadata.Covariant, events[0].Variance)
	assert.Equal(t, metadata.Contravariant, events[1].Variance)
	assert.Zero(t, rec.Count(SeverityWarning))
}

func TestResolveMarkers_PublicIsRejected(t *testing.T) {
	m := metadata.NewModule("Acme.dll")
	m.AddType(metadata.NewAttributeType("", DefaultCovariantName, metadata.Public))
	contra := m.AddType(metadata.NewAttributeType("", DefaultContravariantName, metadata.NotPublic))

	rec := &Recorder{}
	markers, err := ResolveMarkers(catalogOf(t, m), MarkerNames{}, rec)
	require.NoError(t, err)

	assert.Nil(t, markers.Covariant)
	assert.Same(t, contra, markers.Contravariant)

	rejected := rec.OfKind(KindMarkerRejectedIsPublic)
	require.Len(t, rejected, 1)
	assert.Equal(t, SeverityWarning, rejected[0].Severity)
	assert.Equal(t, DefaultCovariantName, rejected[0].AttributeName)
	assert.Empty(t, rec.OfKind(KindMarkerNotFound))
}

func TestResolveMarkers_WrongBaseIsNotAMarker(t *testing.T) {
	m := metadata.NewModule("Acme.dll")
	// Derives from another attribute rather than System.Attribute directly.
	m.AddType(metadata.NewClass("", DefaultCovariantName, metadata.NotPublic, "System.ObsoleteAttribute"))

	rec := &Recorder{}
	markers, err := ResolveMarkers(catalogOf(t, m), MarkerNames{}, rec)
	require.NoError(t, err)

	assert.Nil(t, markers.Covariant)
	assert.Len(t, rec.OfKind(KindMarkerNotFound), 2)
	assert.Empty(t, rec.OfKind(KindMarkerRejectedIsPublic))
}

func TestResolveMarkers_NestedMarker(t *testing.T) {
	m := metadata.NewModule("Acme.dll")
	outer := m.AddType(metadata.NewClass("Acme", "Markers", metadata.NotPublic, metadata.ObjectTypeName))
	nested := outer.AddNestedType(metadata.NewAttributeType("", "Out", metadata.NestedAssembly))

	markers, err := ResolveMarkers(catalogOf(t, m), MarkerNames{Covariant: "Acme.Markers/Out"}, nil)
	require.NoError(t, err)
	assert.Same(t, nested, markers.Covariant)
}

func TestResolveMarkers_CustomNameNotFound(t *testing.T) {
	m := metadata.NewModule("Acme.dll")
	m.AddType(metadata.NewAttributeType("", DefaultContravariantName, metadata.NotPublic))

	rec := &Recorder{}
	markers, err := ResolveMarkers(catalogOf(t, m), MarkerNames{Covariant: "Acme.OutAttribute"}, rec)
	require.NoError(t, err)

	assert.Nil(t, markers.Covariant)
	assert.NotNil(t, markers.Contravariant)

	custom := rec.OfKind(KindCustomNameNotFound)
	require.Len(t, custom, 1)
	assert.Equal(t, SeverityWarning, custom[0].Severity)
	assert.Equal(t, "Acme.OutAttribute", custom[0].AttributeName)
	assert.Len(t, rec.OfKind(KindMarkerNotFound), 1)
}

func TestResolveMarkers_ExplicitDefaultNameIsNotCustom(t *testing.T) {
	m := metadata.NewModule("Plain.dll")

	rec := &Recorder{}
	_, err := ResolveMarkers(catalogOf(t, m), MarkerNames{Covariant: DefaultCovariantName}, rec)
	require.NoError(t, err)
	assert.Empty(t, rec.OfKind(KindCustomNameNotFound))
}

func TestResolveMarkers_NamesMustDiffer(t *testing.T) {
	m := metadata.NewModule("Acme.dll")
	m.AddType(metadata.NewAttributeType("", "Variant", metadata.NotPublic))

	for _, names := range []MarkerNames{
		{Covariant: "Variant", Contravariant: "Variant"},
		{Covariant: DefaultContravariantName},
		{Contravariant: DefaultCovariantName},
	} {
		rec := &Recorder{}
		markers, err := ResolveMarkers(catalogOf(t, m), names, rec)
		require.ErrorIs(t, err, ErrNamesMustDiffer)
		assert.False(t, markers.Any())
		require.Len(t, rec.Events(), 1)
		assert.Equal(t, KindNamesMustDiffer, rec.Events()[0].Kind)
		assert.Equal(t, SeverityError, rec.Events()[0].Severity)
	}
}

func TestMarkerNames_CaseSensitive(t *testing.T) {
	names := MarkerNames{Covariant: "Marker", Contravariant: "marker"}
	assert.NoError(t, names.Validate())
}
