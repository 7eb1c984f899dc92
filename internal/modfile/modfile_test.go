package modfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varweave/internal/metadata"
)

const sampleYAML = `module: Acme.Collections.dll
attributes:
  - type: System.Reflection.AssemblyKeyFileAttribute
    scope: System.Runtime
    args: [acme.pem]
types:
  - name: <Module>
  - name: CovariantOutAttribute
    visibility: not_public
    base: System.Attribute
    base_scope: System.Runtime
  - namespace: Acme.Collections
    name: IProducer` + "`1" + `
    visibility: public
    interface: true
    extra_flags: 0x80
    generic_parameters:
      - name: T
        constraints: [class]
        attributes:
          - type: CovariantOutAttribute
  - namespace: Acme.Collections
    name: Outer
    visibility: public
    base: System.Object
    nested:
      - name: Handler` + "`1" + `
        visibility: nested_public
        base: System.MulticastDelegate
        generic_parameters:
          - name: TArg
            variance: contravariant
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	m, err := Load(writeFile(t, "acme.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "Acme.Collections.dll", m.Name)
	require.Len(t, m.Types, 4)

	key := m.FindAttribute(metadata.AssemblyKeyFileAttribute)
	require.NotNil(t, key)
	assert.Equal(t, []string{"acme.pem"}, key.Arguments)

	marker := m.Types[1]
	assert.Equal(t, metadata.AttributeTypeName, marker.BaseTypeName())
	assert.False(t, marker.IsPublic())

	producer := m.Types[2]
	assert.Equal(t, "Acme.Collections.IProducer`1", producer.FullName())
	assert.True(t, producer.IsInterface())
	assert.Nil(t, producer.BaseType)
	assert.Equal(t, metadata.TypeAttributes(0x80), producer.Attributes&0x80)
	g := producer.GenericParameters[0]
	assert.True(t, g.IsNonVariant())
	assert.Equal(t, metadata.ReferenceTypeConstraint, g.Attributes&metadata.SpecialConstraintMask)
	assert.True(t, g.HasAttribute(marker.Ref()))

	handler := m.Types[3].NestedTypes[0]
	assert.Same(t, m.Types[3], handler.DeclaringType)
	assert.Equal(t, "Acme.Collections.Outer/Handler`1", handler.FullName())
	assert.Equal(t, metadata.Contravariant, handler.GenericParameters[0].Variance())
}

func TestSaveLoad_PreservesModule(t *testing.T) {
	orig, err := Load(writeFile(t, "acme.yaml", sampleYAML))
	require.NoError(t, err)
	orig.Types[2].GenericParameters[0].SetVariance(metadata.Covariant)
	orig.PublicKey = []byte{0x00, 0x24, 0xff}
	orig.Signature = []byte("sig")

	for _, name := range []string{"out.yaml", "out.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(path, orig))

			got, err := Load(path)
			require.NoError(t, err)

			wantDigest, err := Digest(orig)
			require.NoError(t, err)
			gotDigest, err := Digest(got)
			require.NoError(t, err)
			assert.Equal(t, wantDigest, gotDigest)
			assert.Equal(t, orig.PublicKey, got.PublicKey)
			assert.Equal(t, orig.Signature, got.Signature)
			assert.Equal(t, metadata.Covariant, got.Types[2].GenericParameters[0].Variance())
			assert.Equal(t, orig.Types[2].Attributes, got.Types[2].Attributes)
		})
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	m := metadata.NewModule("Empty.dll")
	require.NoError(t, Save(filepath.Join(dir, "empty.json"), m))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "empty.json", entries[0].Name())
}

func TestDigest_IgnoresSignature(t *testing.T) {
	m := metadata.NewModule("Acme.dll")
	m.AddType(metadata.NewInterface("", "I", metadata.Public)).AddGenericParameter("T")

	before, err := Digest(m)
	require.NoError(t, err)
	m.Signature = []byte{1, 2, 3}
	after, err := Digest(m)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	m.Types[1].GenericParameters[0].SetVariance(metadata.Covariant)
	changed, err := Digest(m)
	require.NoError(t, err)
	assert.NotEqual(t, before, changed)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", "module: a\ntypes:\n  - name: A\n    colour: red\n", "colour"},
		{"bad visibility", "module: a\ntypes:\n  - name: A\n    visibility: friend\n", "unknown visibility"},
		{"bad variance", "module: a\ntypes:\n  - name: A\n    generic_parameters:\n      - name: T\n        variance: sideways\n", "unknown variance"},
		{"bad constraint", "module: a\ntypes:\n  - name: A\n    generic_parameters:\n      - name: T\n        constraints: [unmanaged]\n", "unknown constraint"},
		{"duplicate type", "module: a\ntypes:\n  - name: A\n  - name: A\n", "duplicate type A"},
		{"duplicate parameter", "module: a\ntypes:\n  - name: A\n    generic_parameters:\n      - name: T\n      - name: T\n", "duplicate generic parameter"},
		{"missing name", "module: a\ntypes:\n  - namespace: X\n", "type name is required"},
		{"bad key", "module: a\npublic_key: '!!!'\ntypes: []\n", "public_key"},
		{"empty", "", "empty module document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc), FormatYAML)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_NestedPathInErrors(t *testing.T) {
	doc := `{"module":"a","types":[{"name":"Outer","nested":[{"name":"Inner","visibility":"weird"}]}]}`
	_, err := Decode(strings.NewReader(doc), FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "types[0].nested[0]")
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("a/b/Module.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = FormatOf("Module.dll")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestEncode_OmitsDefaults(t *testing.T) {
	m := metadata.NewModule("Tiny.dll")
	m.AddType(metadata.NewInterface("", "I", metadata.NotPublic)).AddGenericParameter("T")

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m, FormatYAML))
	out := buf.String()
	assert.NotContains(t, out, "variance")
	assert.NotContains(t, out, "extra_flags")
	assert.Contains(t, out, "interface: true")
}

func TestLoadAll_PreservesOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"c.json", "a.yaml", "b.json"} {
		p := filepath.Join(dir, name)
		require.NoError(t, Save(p, metadata.NewModule(name)))
		paths = append(paths, p)
	}

	loaded, err := LoadAll(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i, l := range loaded {
		assert.Equal(t, paths[i], l.Path)
		assert.Equal(t, filepath.Base(paths[i]), l.Module.Name)
	}
}

func TestLoadAll_FailsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, Save(good, metadata.NewModule("good")))

	_, err := LoadAll(context.Background(), []string{good, filepath.Join(dir, "missing.json")})
	assert.Error(t, err)
}
