package orchestrator

import "strings"

// The role agents speak a tagged-text protocol: responses carry their
// payloads between XML-style tags. Extraction is permissive because models
// wrap answers in prose.

// tagContent returns the text between the first <tag> and </tag> pair.
func tagContent(s, tag string) (string, bool) {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// tagBool interprets a tag's content as a boolean; missing tags are false.
func tagBool(s, tag string) bool {
	content, ok := tagContent(s, tag)
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(content), "true")
}

// tagNames splits a tag's content into names, accepting comma or newline
// separated lists.
func tagNames(s, tag string) []string {
	content, ok := tagContent(s, tag)
	if !ok || content == "" {
		return nil
	}
	fields := strings.FieldsFunc(content, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	var out []string
	for _, f := range fields {
		name := strings.TrimSpace(f)
		if name != "" && !strings.EqualFold(name, "none") {
			out = append(out, name)
		}
	}
	return out
}

// tagAll returns every occurrence of a tag's content.
func tagAll(s, tag string) []string {
	var out []string
	rest := s
	for {
		content, ok := tagContent(rest, tag)
		if !ok {
			break
		}
		if content != "" {
			out = append(out, content)
		}
		idx := strings.Index(rest, "</"+tag+">")
		rest = rest[idx+len(tag)+3:]
	}
	return out
}
