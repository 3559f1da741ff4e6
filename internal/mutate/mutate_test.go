package mutate

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/docagent/internal/component"
	pkgerrors "github.com/vampirenirmal/docagent/pkg/docagent/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T, source string) (string, *component.Snapshot) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "mod.py"), []byte(source), 0o644))
	snap, err := component.NewScanner(testLogger()).Scan(context.Background(), root)
	require.NoError(t, err)
	return root, snap
}

func fileContent(t *testing.T, root string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "mod.py"))
	require.NoError(t, err)
	return string(data)
}

func TestInsertSingleLine(t *testing.T) {
	root, snap := setup(t, "def add(a, b):\n    return a + b\n")
	comp, ok := snap.Lookup("mod.add")
	require.True(t, ok)

	res, err := New(testLogger()).Insert(root, comp, snap.Files["mod.py"].Hash, "Add two numbers.")
	require.NoError(t, err)
	assert.True(t, res.Changed)

	want := "def add(a, b):\n    \"\"\"Add two numbers.\"\"\"\n    return a + b\n"
	assert.Equal(t, want, fileContent(t, root))
}

func TestInsertMultiLine(t *testing.T) {
	root, snap := setup(t, "def add(a, b):\n    return a + b\n")
	comp, _ := snap.Lookup("mod.add")

	doc := "Add two numbers.\n\nArgs:\n    a: first\n    b: second"
	_, err := New(testLogger()).Insert(root, comp, "", doc)
	require.NoError(t, err)

	want := "def add(a, b):\n" +
		"    \"\"\"Add two numbers.\n" +
		"\n" +
		"    Args:\n" +
		"        a: first\n" +
		"        b: second\n" +
		"    \"\"\"\n" +
		"    return a + b\n"
	assert.Equal(t, want, fileContent(t, root))

	// The result must still parse, with the docstring attached.
	require.NoError(t, snap.Reparse("mod.py"))
	again, ok := snap.Lookup("mod.add")
	require.True(t, ok)
	assert.Contains(t, again.Docstring, "Add two numbers.")
}

func TestInsertMethodIndentation(t *testing.T) {
	root, snap := setup(t, "class C:\n    def m(self):\n        return 1\n")
	comp, ok := snap.Lookup("mod.C.m")
	require.True(t, ok)

	_, err := New(testLogger()).Insert(root, comp, "", "Do the thing.")
	require.NoError(t, err)

	want := "class C:\n    def m(self):\n        \"\"\"Do the thing.\"\"\"\n        return 1\n"
	assert.Equal(t, want, fileContent(t, root))
}

func TestReplaceExistingDocstring(t *testing.T) {
	root, snap := setup(t, "def f():\n    \"\"\"Old doc.\"\"\"\n    return 1\n")
	comp, _ := snap.Lookup("mod.f")

	res, err := New(testLogger()).Insert(root, comp, "", "New doc.")
	require.NoError(t, err)
	assert.True(t, res.Changed)

	want := "def f():\n    \"\"\"New doc.\"\"\"\n    return 1\n"
	assert.Equal(t, want, fileContent(t, root))
}

func TestIdenticalWriteIsNoOp(t *testing.T) {
	root, snap := setup(t, "def f():\n    return 1\n")
	comp, _ := snap.Lookup("mod.f")
	m := New(testLogger())

	first, err := m.Insert(root, comp, "", "Stable doc.")
	require.NoError(t, err)
	require.True(t, first.Changed)

	require.NoError(t, snap.Reparse("mod.py"))
	comp, _ = snap.Lookup("mod.f")

	second, err := m.Insert(root, comp, first.NewHash, "Stable doc.")
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.NewHash, second.NewHash)
}

func TestConflictOnStaleHash(t *testing.T) {
	root, snap := setup(t, "def f():\n    return 1\n")
	comp, _ := snap.Lookup("mod.f")

	_, err := New(testLogger()).Insert(root, comp, "not-the-real-hash", "Doc.")
	assert.ErrorIs(t, err, pkgerrors.ErrMutationConflict)
}

func TestInsertInlineBody(t *testing.T) {
	root, snap := setup(t, "def f(): return 1\n")
	comp, _ := snap.Lookup("mod.f")

	_, err := New(testLogger()).Insert(root, comp, "", "Doc.")
	require.NoError(t, err)

	// Statement moves below the docstring and the file still parses.
	require.NoError(t, snap.Reparse("mod.py"))
	again, ok := snap.Lookup("mod.f")
	require.True(t, ok)
	assert.Equal(t, "Doc.", again.Docstring)
}

func TestVanishedComponent(t *testing.T) {
	root, snap := setup(t, "def f():\n    return 1\n")
	comp, _ := snap.Lookup("mod.f")

	require.NoError(t, os.WriteFile(filepath.Join(root, "mod.py"), []byte("def g():\n    return 2\n"), 0o644))

	_, err := New(testLogger()).Insert(root, comp, "", "Doc.")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestInsertFollowsFileQuoteStyle(t *testing.T) {
	source := "def old():\n    '''Existing style.'''\n    return 1\n\ndef f():\n    return 2\n"
	root, snap := setup(t, source)
	comp, _ := snap.Lookup("mod.f")

	_, err := New(testLogger()).Insert(root, comp, "", "Doc.")
	require.NoError(t, err)

	assert.Contains(t, fileContent(t, root), "'''Doc.'''")
}

func TestRoundTripMultilineDocstring(t *testing.T) {
	source := "def f(x):\n" +
		"    \"\"\"Sum the input.\n" +
		"\n" +
		"    Args:\n" +
		"        x: the input.\n" +
		"    \"\"\"\n" +
		"    return x\n"
	root, snap := setup(t, source)
	comp, ok := snap.Lookup("mod.f")
	require.True(t, ok)

	res, err := New(testLogger()).Insert(root, comp, snap.Files["mod.py"].Hash, comp.Docstring)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, snap.Files["mod.py"].Hash, res.NewHash)
	assert.Equal(t, source, fileContent(t, root))

	// A second pass over the unchanged file is also byte-stable.
	res, err = New(testLogger()).Insert(root, comp, res.NewHash, comp.Docstring)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, source, fileContent(t, root))
}
