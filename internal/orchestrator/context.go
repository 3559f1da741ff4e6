package orchestrator

import (
	"strings"
)

// Entry is one gathered piece of context: the qualified name it belongs to
// and the text retrieved for it.
type Entry struct {
	Label string
	Text  string
}

type section struct {
	tag     string
	entries []Entry
}

// ContextBundle accumulates everything the searcher found, grouped the way
// it is presented to the model: internal structure first, external answers
// last. Token budgeting drops content from the heaviest section, oldest
// entries first.
type ContextBundle struct {
	classes   section
	functions section
	methods   section
	callers   section
	external  section
}

func NewContextBundle() *ContextBundle {
	return &ContextBundle{
		classes:   section{tag: "CLASS"},
		functions: section{tag: "FUNCTION"},
		methods:   section{tag: "METHOD"},
		callers:   section{tag: "CALL_BY"},
		external:  section{tag: "EXTERNAL_RETRIEVAL_INFO"},
	}
}

func (b *ContextBundle) AddClass(label, text string)    { b.classes.add(label, text) }
func (b *ContextBundle) AddFunction(label, text string) { b.functions.add(label, text) }
func (b *ContextBundle) AddMethod(label, text string)   { b.methods.add(label, text) }
func (b *ContextBundle) AddCaller(label, text string)   { b.callers.add(label, text) }
func (b *ContextBundle) AddExternal(label, text string) { b.external.add(label, text) }

func (s *section) add(label, text string) {
	for _, e := range s.entries {
		if e.Label == label {
			return
		}
	}
	s.entries = append(s.entries, Entry{Label: label, Text: text})
}

func (s *section) render() string {
	if len(s.entries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("<" + s.tag + ">\n")
	for _, e := range s.entries {
		sb.WriteString("[" + e.Label + "]\n")
		sb.WriteString(e.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("</" + s.tag + ">\n")
	return sb.String()
}

// Empty reports whether nothing has been gathered yet.
func (b *ContextBundle) Empty() bool {
	for _, s := range b.sections() {
		if len(s.entries) > 0 {
			return false
		}
	}
	return true
}

func (b *ContextBundle) sections() []*section {
	return []*section{&b.classes, &b.functions, &b.methods, &b.callers, &b.external}
}

// Render produces the context block passed to the role agents.
func (b *ContextBundle) Render() string {
	var sb strings.Builder
	sb.WriteString("<CONTEXT>\n<INTERNAL_INFO>\n")
	sb.WriteString(b.classes.render())
	sb.WriteString(b.functions.render())
	sb.WriteString(b.methods.render())
	sb.WriteString(b.callers.render())
	sb.WriteString("</INTERNAL_INFO>\n")
	sb.WriteString(b.external.render())
	sb.WriteString("</CONTEXT>")
	return sb.String()
}

// Truncate drops entries until the rendered bundle fits the token limit.
// Each round removes the oldest entry of the heaviest section, so no single
// source of context starves the others.
func (b *ContextBundle) Truncate(count func(string) int, limit int) {
	for count(b.Render()) > limit {
		heaviest := (*section)(nil)
		heaviestTokens := 0
		for _, s := range b.sections() {
			if len(s.entries) == 0 {
				continue
			}
			if t := count(s.render()); heaviest == nil || t > heaviestTokens {
				heaviest = s
				heaviestTokens = t
			}
		}
		if heaviest == nil {
			return
		}
		heaviest.entries = heaviest.entries[1:]
	}
}
