package graph

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/docagent/internal/component"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapFromSources(t *testing.T, sources map[string]string) *component.Snapshot {
	t.Helper()
	snap := &component.Snapshot{
		Root:       t.TempDir(),
		Files:      map[string]*component.FileInfo{},
		Components: map[string]*component.Component{},
	}
	for rel, src := range sources {
		info, err := component.ParseFile(rel, []byte(src))
		require.NoError(t, err)
		snap.Files[rel] = info
		for _, c := range info.Components {
			snap.Components[c.ID] = c
		}
	}
	return snap
}

func TestBuildCrossModuleEdges(t *testing.T) {
	snap := snapFromSources(t, map[string]string{
		"util.py": "def helper(x):\n    return x\n",
		"core.py": "from util import helper\n\ndef caller(v):\n    return helper(v)\n",
	})

	g := Build(snap, testLogger())

	assert.Equal(t, []string{"util.helper"}, g.Dependencies("core.caller"))
	assert.Equal(t, []string{"core.caller"}, g.Dependents("util.helper"))
}

func TestBuildClassDependsOnMethods(t *testing.T) {
	snap := snapFromSources(t, map[string]string{
		"shapes.py": `class Circle:
    def __init__(self, r):
        self.r = r

    def area(self):
        return self.r * self.r * 3

    def describe(self):
        return "area=" + str(self.area())
`,
	})

	g := Build(snap, testLogger())

	assert.ElementsMatch(t, []string{"shapes.Circle.area", "shapes.Circle.describe"},
		g.Dependencies("shapes.Circle"))
	assert.Equal(t, []string{"shapes.Circle.area"}, g.Dependencies("shapes.Circle.describe"))
}

func TestBuildUnresolvedRefsDropSilently(t *testing.T) {
	snap := snapFromSources(t, map[string]string{
		"solo.py": "import numpy\n\ndef lonely(a):\n    return numpy.sum(a)\n",
	})

	g := Build(snap, testLogger())

	assert.Empty(t, g.Dependencies("solo.lonely"))
}

func TestOrderDependencyFirst(t *testing.T) {
	snap := snapFromSources(t, map[string]string{
		"util.py": "def helper(x):\n    return x\n",
		"core.py": "from util import helper\n\ndef caller(v):\n    return helper(v)\n",
	})
	g := Build(snap, testLogger())

	order := Order(g, snap, OrderDependencyFirst, nil, testLogger())

	require.Len(t, order, 2)
	assert.Equal(t, []string{"util.helper", "core.caller"}, order)
}

func TestOrderBreaksCycles(t *testing.T) {
	snap := snapFromSources(t, map[string]string{
		"loop.py": `def ping(n):
    return pong(n - 1)

def pong(n):
    return ping(n - 1)
`,
	})
	g := Build(snap, testLogger())

	order := Order(g, snap, OrderDependencyFirst, nil, testLogger())

	assert.ElementsMatch(t, []string{"loop.ping", "loop.pong"}, order)
}

func TestOrderRandomModesAreSeededPermutations(t *testing.T) {
	snap := snapFromSources(t, map[string]string{
		"a.py": "def one():\n    return 1\n\ndef two():\n    return 2\n",
		"b.py": "def three():\n    return 3\n",
	})
	g := Build(snap, testLogger())

	first := Order(g, snap, OrderRandomNode, rand.New(rand.NewSource(7)), testLogger())
	second := Order(g, snap, OrderRandomNode, rand.New(rand.NewSource(7)), testLogger())

	assert.Equal(t, first, second, "same seed reproduces the order")
	assert.ElementsMatch(t, []string{"a.one", "a.two", "b.three"}, first)

	byFile := Order(g, snap, OrderRandomFile, rand.New(rand.NewSource(7)), testLogger())
	require.Len(t, byFile, 3)
	// Components of one file stay contiguous and in source order.
	for i, id := range byFile {
		if id == "a.one" {
			require.Less(t, i, len(byFile)-1)
			assert.Equal(t, "a.two", byFile[i+1])
		}
	}
}

func TestRemapDropsVanished(t *testing.T) {
	snap := snapFromSources(t, map[string]string{
		"m.py": "def keep():\n    return 1\n",
	})

	out := Remap([]string{"m.keep", "m.gone"}, snap, testLogger())

	assert.Equal(t, []string{"m.keep"}, out)
}

func TestExport(t *testing.T) {
	snap := snapFromSources(t, map[string]string{
		"util.py": "def helper(x):\n    \"\"\"Docs here already.\"\"\"\n    return x\n",
	})
	g := Build(snap, testLogger())

	var buf bytes.Buffer
	require.NoError(t, g.Export(&buf))

	var payload struct {
		Components []struct {
			ID           string   `json:"id"`
			Kind         string   `json:"kind"`
			HasDocstring bool     `json:"has_docstring"`
			DependsOn    []string `json:"depends_on"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	require.Len(t, payload.Components, 1)
	assert.Equal(t, "util.helper", payload.Components[0].ID)
	assert.Equal(t, "function", payload.Components[0].Kind)
	assert.True(t, payload.Components[0].HasDocstring)
	assert.Empty(t, payload.Components[0].DependsOn)
}
