package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `import os
from utils.text import clean

CONST = 3

def top(x: int, y: int = 2) -> int:
    """Existing doc."""
    return clean(x) + y

def _private(data):
    if not data:
        raise ValueError("empty")
    total = 0
    for item in data:
        total += item
    return total

class Greeter:
    def __init__(self, name: str):
        self.name = name

    def greet(self) -> str:
        return self._format()

    def _format(self):
        return "hi " + self.name

    @staticmethod
    def shout(text):
        return text.upper()
`

func parseSample(t *testing.T) *FileInfo {
	t.Helper()
	info, err := ParseFile("mypkg/core.py", []byte(sampleSource))
	require.NoError(t, err)
	return info
}

func byID(t *testing.T, info *FileInfo, id string) *Component {
	t.Helper()
	for _, c := range info.Components {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("component %s not found", id)
	return nil
}

func TestParseFileComponents(t *testing.T) {
	info := parseSample(t)

	assert.Equal(t, "mypkg.core", info.Module)

	var ids []string
	for _, c := range info.Components {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{
		"mypkg.core.top",
		"mypkg.core._private",
		"mypkg.core.Greeter",
		"mypkg.core.Greeter.greet",
		"mypkg.core.Greeter._format",
		"mypkg.core.Greeter.shout",
	}, ids, "__init__ must not surface as its own component")
}

func TestParseFileFunctionDetails(t *testing.T) {
	info := parseSample(t)

	top := byID(t, info, "mypkg.core.top")
	assert.Equal(t, KindFunction, top.Kind)
	assert.True(t, top.Public)
	assert.True(t, top.HasReturn)
	assert.Equal(t, "int", top.Returns)
	assert.Equal(t, "Existing doc.", top.Docstring)
	assert.NotEqual(t, -1, top.DocStart)

	require.Len(t, top.Params, 2)
	assert.Equal(t, Param{Name: "x", Annotation: "int"}, top.Params[0])
	assert.Equal(t, Param{Name: "y", Annotation: "int", Default: "2"}, top.Params[1])

	assert.Contains(t, top.Refs(), "clean")

	priv := byID(t, info, "mypkg.core._private")
	assert.False(t, priv.Public)
	assert.Equal(t, []string{"ValueError"}, priv.Raises)
	assert.True(t, priv.HasReturn)
	assert.Empty(t, priv.Docstring)
	assert.Equal(t, -1, priv.DocStart)
	assert.True(t, priv.IsLocal("total"))
	assert.True(t, priv.IsLocal("item"))
}

func TestParseFileClassDetails(t *testing.T) {
	info := parseSample(t)

	cls := byID(t, info, "mypkg.core.Greeter")
	assert.Equal(t, KindClass, cls.Kind)

	// Constructor parameters fold into the class.
	var names []string
	for _, p := range cls.Params {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"self", "name"}, names)

	greet := byID(t, info, "mypkg.core.Greeter.greet")
	assert.Equal(t, KindMethod, greet.Kind)
	assert.Equal(t, "Greeter", greet.Class)
	assert.Contains(t, greet.Refs(), "self._format")

	shout := byID(t, info, "mypkg.core.Greeter.shout")
	assert.True(t, shout.Static)
	assert.NotContains(t, shout.Refs(), "text.upper", "parameter-rooted chains are locals")
}

func TestParseFileImports(t *testing.T) {
	info := parseSample(t)

	assert.Equal(t, "os", info.Imports["os"])
	assert.Equal(t, "utils.text.clean", info.Imports["clean"])
}

func TestParseFileSyntaxError(t *testing.T) {
	_, err := ParseFile("bad.py", []byte("def broken(:\n    pass\n"))
	assert.Error(t, err)
}

func TestRequiredSections(t *testing.T) {
	info := parseSample(t)

	tests := []struct {
		id   string
		want []Section
	}{
		{
			id:   "mypkg.core.top",
			want: []Section{SectionSummary, SectionDescription, SectionParameters, SectionReturns, SectionExamples},
		},
		{
			id:   "mypkg.core._private",
			want: []Section{SectionSummary, SectionDescription, SectionParameters, SectionReturns, SectionRaises},
		},
		{
			id:   "mypkg.core.Greeter",
			want: []Section{SectionSummary, SectionDescription, SectionAttributes, SectionParameters, SectionExamples},
		},
		{
			id:   "mypkg.core.Greeter._format",
			want: []Section{SectionSummary, SectionDescription, SectionReturns},
		},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			c := byID(t, info, tt.id)
			assert.Equal(t, tt.want, c.RequiredSections())
		})
	}
}

func TestModuleName(t *testing.T) {
	assert.Equal(t, "pkg.mod", ModuleName("pkg/mod.py"))
	assert.Equal(t, "pkg", ModuleName("pkg/__init__.py"))
	assert.Equal(t, "top", ModuleName("top.py"))
}
