package component

import "strings"

// Kind classifies a documentable code component.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindClass    Kind = "class"
)

// Param is one parameter of a function, method, or class initializer.
type Param struct {
	Name       string
	Annotation string
	Default    string
}

// Component is one documentable unit of code. Identity is the qualified
// name (ID), which is stable across re-parses of the same repository;
// line numbers and byte offsets are a volatile cache tied to one parse of
// the containing file.
type Component struct {
	ID        string // qualified name: module.path.Class.method
	Name      string
	Kind      Kind
	Class     string // enclosing class name, methods only
	File      string // repo-relative path
	StartLine int    // 1-based
	EndLine   int

	Source    string // full definition text, decorators included
	Signature string
	Params    []Param // for classes, the __init__ parameters
	Returns   string  // return annotation, "" if none
	HasReturn bool    // a return with a value is present
	Raises    []string
	Public    bool
	Static    bool
	Abstract  bool

	Docstring string // existing docstring text, "" if none

	// Byte offsets into the file as of the parse that produced this
	// component. DocStart/DocEnd span the existing docstring statement
	// (-1 when absent); InsertAt is where a new docstring goes.
	DocStart int
	DocEnd   int
	InsertAt int

	// Raw dotted references found in the body, resolved to edges by the
	// graph builder.
	refs   []string
	locals map[string]bool
}

// Refs returns the raw dotted references collected from the component body.
func (c *Component) Refs() []string {
	return c.refs
}

// IsLocal reports whether name is bound locally inside the component
// (parameter, assignment target, loop variable).
func (c *Component) IsLocal(name string) bool {
	return c.locals[name]
}

// Section names one block a complete docstring must contain.
type Section string

const (
	SectionSummary     Section = "summary"
	SectionDescription Section = "description"
	SectionParameters  Section = "parameters"
	SectionAttributes  Section = "attributes"
	SectionReturns     Section = "returns"
	SectionRaises      Section = "raises"
	SectionExamples    Section = "examples"
)

// RequiredSections derives the docstring sections this component must carry
// from its parsed structure. Private components never require examples.
func (c *Component) RequiredSections() []Section {
	sections := []Section{SectionSummary, SectionDescription}

	if c.Kind == KindClass {
		sections = append(sections, SectionAttributes)
		if len(visibleParams(c.Params)) > 0 {
			sections = append(sections, SectionParameters)
		}
		if c.Public {
			sections = append(sections, SectionExamples)
		}
		return sections
	}

	if len(visibleParams(c.Params)) > 0 {
		sections = append(sections, SectionParameters)
	}
	if c.HasReturn {
		sections = append(sections, SectionReturns)
	}
	if len(c.Raises) > 0 {
		sections = append(sections, SectionRaises)
	}
	if c.Public {
		sections = append(sections, SectionExamples)
	}
	return sections
}

// visibleParams drops the receiver parameter of methods.
func visibleParams(params []Param) []Param {
	out := make([]Param, 0, len(params))
	for _, p := range params {
		if p.Name == "self" || p.Name == "cls" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ModuleName converts a repo-relative Python file path to its dotted module
// path. Package __init__ files map to the package itself.
func ModuleName(relPath string) string {
	p := strings.TrimSuffix(relPath, ".py")
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimSuffix(p, "/__init__")
	return strings.ReplaceAll(p, "/", ".")
}
