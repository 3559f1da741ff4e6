package mutate

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vampirenirmal/docagent/internal/component"
	pkgerrors "github.com/vampirenirmal/docagent/pkg/docagent/errors"
)

// Mutator writes docstrings into source files. Every byte outside the
// docstring region is preserved exactly; the file is located and re-parsed
// at write time so offsets are never stale.
type Mutator struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Mutator {
	return &Mutator{logger: logger.With("component", "mutator")}
}

// Result reports what a write did. NewHash identifies the file content after
// the call, whether or not anything changed.
type Result struct {
	Changed bool
	NewHash string
}

// Insert writes docstring into the component identified by comp.ID inside
// its file under root. expectedHash guards against concurrent edits: a
// mismatch returns ErrMutationConflict and the caller re-parses and retries
// once. Writing text identical to the current docstring is a no-op.
func (m *Mutator) Insert(root string, comp *component.Component, expectedHash, docstring string) (Result, error) {
	abs := filepath.Join(root, comp.File)

	stat, err := os.Stat(abs)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", comp.File, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", comp.File, err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if expectedHash != "" && hash != expectedHash {
		return Result{}, fmt.Errorf("%w: %s", pkgerrors.ErrMutationConflict, comp.File)
	}

	fresh, err := component.ParseFile(comp.File, data)
	if err != nil {
		return Result{}, err
	}

	var target *component.Component
	for _, c := range fresh.Components {
		if c.ID == comp.ID {
			target = c
			break
		}
	}
	if target == nil {
		return Result{}, fmt.Errorf("%w: %s in %s", pkgerrors.ErrNotFound, comp.ID, comp.File)
	}

	// Writing back the text already in the file must leave it untouched.
	// The parsed docstring keeps the file's interior indentation, so
	// re-rendering it would shift continuation lines; compare first.
	if target.DocStart >= 0 && strings.TrimSpace(docstring) == strings.TrimSpace(target.Docstring) {
		m.logger.Debug("docstring unchanged, skipping write",
			"id", comp.ID,
			"file", comp.File)
		return Result{Changed: false, NewHash: hash}, nil
	}

	newData, err := splice(data, target, docstring)
	if err != nil {
		return Result{}, err
	}

	if bytes.Equal(newData, data) {
		m.logger.Debug("docstring unchanged, skipping write",
			"id", comp.ID,
			"file", comp.File)
		return Result{Changed: false, NewHash: hash}, nil
	}

	if err := os.WriteFile(abs, newData, stat.Mode().Perm()); err != nil {
		return Result{}, fmt.Errorf("writing %s: %w", comp.File, err)
	}

	newSum := sha256.Sum256(newData)
	m.logger.Info("docstring written",
		"id", comp.ID,
		"file", comp.File,
		"bytes_before", len(data),
		"bytes_after", len(newData))

	return Result{Changed: true, NewHash: hex.EncodeToString(newSum[:])}, nil
}

// splice produces the new file contents. An existing docstring statement is
// replaced in place; otherwise the new docstring becomes the first body
// statement.
func splice(data []byte, target *component.Component, docstring string) ([]byte, error) {
	quote := dominantQuote(data)
	if target.DocStart >= 0 {
		indent := lineIndent(data, target.DocStart)
		block := formatDocstring(docstring, indent, quote)
		out := make([]byte, 0, len(data)+len(block))
		out = append(out, data[:target.DocStart]...)
		out = append(out, block...)
		out = append(out, data[target.DocEnd:]...)
		return out, nil
	}

	at := target.InsertAt
	if at < 0 || at > len(data) {
		return nil, fmt.Errorf("%w: %s: invalid insertion offset", pkgerrors.ErrParse, target.ID)
	}

	lineStart := at
	for lineStart > 0 && data[lineStart-1] != '\n' {
		lineStart--
	}
	prefix := string(data[lineStart:at])

	if strings.TrimSpace(prefix) == "" {
		// Body starts on its own line; the prefix is the body indentation.
		block := formatDocstring(docstring, prefix, quote)
		insert := block + "\n" + prefix
		out := make([]byte, 0, len(data)+len(insert))
		out = append(out, data[:at]...)
		out = append(out, insert...)
		out = append(out, data[at:]...)
		return out, nil
	}

	// Inline body (def f(): return x). Move the statement to its own line
	// below the docstring.
	defIndent := lineIndent(data, lineStart)
	bodyIndent := defIndent + "    "
	block := formatDocstring(docstring, bodyIndent, quote)
	insert := "\n" + bodyIndent + block + "\n" + bodyIndent
	out := make([]byte, 0, len(data)+len(insert))
	out = append(out, data[:at]...)
	out = append(out, insert...)
	out = append(out, data[at:]...)
	return out, nil
}

// lineIndent returns the leading whitespace of the line containing offset.
func lineIndent(data []byte, offset int) string {
	start := offset
	for start > 0 && data[start-1] != '\n' {
		start--
	}
	end := start
	for end < len(data) && (data[end] == ' ' || data[end] == '\t') {
		end++
	}
	return string(data[start:end])
}

// dominantQuote picks the triple-quote style the file already favors,
// defaulting to double quotes.
func dominantQuote(data []byte) string {
	if bytes.Count(data, []byte(`'''`)) > bytes.Count(data, []byte(`"""`)) {
		return `'''`
	}
	return `"""`
}

// formatDocstring renders the docstring as a triple-quoted literal with
// continuation lines at the given indentation. The first line carries no
// indent because it lands at the insertion column.
func formatDocstring(doc, indent, quote string) string {
	doc = strings.TrimSpace(doc)
	escaped := `\` + string(quote[0]) + `\` + string(quote[0]) + `\` + string(quote[0])
	doc = strings.ReplaceAll(doc, quote, escaped)

	lines := strings.Split(doc, "\n")
	if len(lines) == 1 {
		return quote + doc + quote
	}

	var b strings.Builder
	b.WriteString(quote)
	b.WriteString(strings.TrimRight(lines[0], " \t"))
	for _, line := range lines[1:] {
		b.WriteString("\n")
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			continue
		}
		b.WriteString(indent)
		b.WriteString(trimmed)
	}
	b.WriteString("\n")
	b.WriteString(indent)
	b.WriteString(quote)
	return b.String()
}
