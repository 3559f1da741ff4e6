package component

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	pkgerrors "github.com/vampirenirmal/docagent/pkg/docagent/errors"
)

// FileInfo is one parsed Python file. Hash identifies the exact bytes the
// byte offsets in Components refer to.
type FileInfo struct {
	Path       string // repo-relative
	Source     []byte
	Hash       string
	Module     string
	Imports    map[string]string // local alias -> dotted import target
	Components []*Component
}

// ParseFile parses one Python source file into its documentable components.
// Files with syntax errors are rejected whole.
func ParseFile(relPath string, source []byte) (*FileInfo, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pkgerrors.ErrParse, relPath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s: syntax error", pkgerrors.ErrParse, relPath)
	}

	sum := sha256.Sum256(source)
	info := &FileInfo{
		Path:    relPath,
		Source:  source,
		Hash:    hex.EncodeToString(sum[:]),
		Module:  ModuleName(relPath),
		Imports: map[string]string{},
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_statement", "import_from_statement":
			collectImports(child, source, info.Imports)
		case "function_definition":
			info.Components = append(info.Components, buildFunction(child, nil, "", info, source))
		case "class_definition":
			info.Components = append(info.Components, buildClass(child, nil, info, source)...)
		case "decorated_definition":
			def := child.ChildByFieldName("definition")
			if def == nil {
				continue
			}
			switch def.Type() {
			case "function_definition":
				info.Components = append(info.Components, buildFunction(def, child, "", info, source))
			case "class_definition":
				info.Components = append(info.Components, buildClass(def, child, info, source)...)
			}
		}
	}

	return info, nil
}

func nodeText(n *sitter.Node, source []byte) string {
	return string(source[n.StartByte():n.EndByte()])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collectImports records both plain and from-imports. A plain import binds
// its leading package name; a from-import binds each imported name to its
// full dotted path.
func collectImports(node *sitter.Node, source []byte, imports map[string]string) {
	if node.Type() == "import_statement" {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				full := nodeText(child, source)
				head := strings.SplitN(full, ".", 2)[0]
				imports[head] = head
			case "aliased_import":
				name := child.ChildByFieldName("name")
				alias := child.ChildByFieldName("alias")
				if name != nil && alias != nil {
					imports[nodeText(alias, source)] = nodeText(name, source)
				}
			}
		}
		return
	}

	// import_from_statement
	module := node.ChildByFieldName("module_name")
	if module == nil {
		return
	}
	base := nodeText(module, source)
	// Relative imports keep their dots stripped; resolution is best-effort
	// against the repo's module index.
	base = strings.TrimLeft(base, ".")

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.StartByte() == module.StartByte() {
			continue
		}
		switch child.Type() {
		case "dotted_name":
			name := nodeText(child, source)
			imports[name] = joinModule(base, name)
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name != nil && alias != nil {
				imports[nodeText(alias, source)] = joinModule(base, nodeText(name, source))
			}
		}
	}
}

func joinModule(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func buildFunction(def, decorated *sitter.Node, className string, info *FileInfo, source []byte) *Component {
	span := def
	if decorated != nil {
		span = decorated
	}

	nameNode := def.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = nodeText(nameNode, source)
	}

	kind := KindFunction
	if className != "" {
		kind = KindMethod
	}

	c := &Component{
		ID:        qualify(info.Module, className, name),
		Name:      name,
		Kind:      kind,
		Class:     className,
		File:      info.Path,
		StartLine: int(span.StartPoint().Row) + 1,
		EndLine:   int(span.EndPoint().Row) + 1,
		Source:    nodeText(span, source),
		Public:    !strings.HasPrefix(name, "_"),
		DocStart:  -1,
		DocEnd:    -1,
		locals:    map[string]bool{},
	}

	if params := def.ChildByFieldName("parameters"); params != nil {
		c.Params = extractParams(params, source)
		c.Signature = name + collapseWhitespace(nodeText(params, source))
	} else {
		c.Signature = name + "()"
	}
	if ret := def.ChildByFieldName("return_type"); ret != nil {
		c.Returns = nodeText(ret, source)
		c.Signature += " -> " + c.Returns
	}

	if decorated != nil {
		for i := 0; i < int(decorated.NamedChildCount()); i++ {
			dec := decorated.NamedChild(i)
			if dec.Type() != "decorator" {
				continue
			}
			txt := nodeText(dec, source)
			if strings.Contains(txt, "staticmethod") {
				c.Static = true
			}
			if strings.Contains(txt, "abstractmethod") {
				c.Abstract = true
			}
		}
	}

	body := def.ChildByFieldName("body")
	if body != nil {
		extractDocstring(body, source, c)
		for _, p := range c.Params {
			c.locals[p.Name] = true
		}
		collectLocals(body, source, c.locals)
		collectRefs(body, source, c)
		c.HasReturn = hasValueReturn(body)
		c.Raises = collectRaises(body, source)
	}

	return c
}

// buildClass emits the class component followed by its method components.
// The class inherits its parameter list from __init__, which is folded into
// the class documentation rather than documented on its own.
func buildClass(def, decorated *sitter.Node, info *FileInfo, source []byte) []*Component {
	span := def
	if decorated != nil {
		span = decorated
	}

	nameNode := def.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = nodeText(nameNode, source)
	}

	cls := &Component{
		ID:        qualify(info.Module, "", name),
		Name:      name,
		Kind:      KindClass,
		File:      info.Path,
		StartLine: int(span.StartPoint().Row) + 1,
		EndLine:   int(span.EndPoint().Row) + 1,
		Source:    nodeText(span, source),
		Signature: name,
		Public:    !strings.HasPrefix(name, "_"),
		DocStart:  -1,
		DocEnd:    -1,
		locals:    map[string]bool{},
	}

	if bases := def.ChildByFieldName("superclasses"); bases != nil {
		cls.Signature = name + collapseWhitespace(nodeText(bases, source))
		collectRefs(bases, source, cls)
		if strings.Contains(nodeText(bases, source), "ABC") {
			cls.Abstract = true
		}
	}

	out := []*Component{cls}

	body := def.ChildByFieldName("body")
	if body == nil {
		return out
	}
	extractDocstring(body, source, cls)

	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		var method, wrapper *sitter.Node
		switch stmt.Type() {
		case "function_definition":
			method = stmt
		case "decorated_definition":
			if inner := stmt.ChildByFieldName("definition"); inner != nil && inner.Type() == "function_definition" {
				method, wrapper = inner, stmt
			}
		default:
			// Class-level statements contribute references to the class.
			collectRefs(stmt, source, cls)
			continue
		}

		m := buildFunction(method, wrapper, name, info, source)
		if m.Name == "__init__" {
			// Constructor parameters and references belong to the class.
			cls.Params = m.Params
			cls.refs = append(cls.refs, m.refs...)
			continue
		}
		out = append(out, m)
	}

	return out
}

func qualify(module, class, name string) string {
	parts := make([]string, 0, 3)
	if module != "" {
		parts = append(parts, module)
	}
	if class != "" {
		parts = append(parts, class)
	}
	parts = append(parts, name)
	return strings.Join(parts, ".")
}

func extractParams(params *sitter.Node, source []byte) []Param {
	var out []Param
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		switch child.Type() {
		case "identifier":
			out = append(out, Param{Name: nodeText(child, source)})
		case "typed_parameter":
			p := Param{}
			for j := 0; j < int(child.NamedChildCount()); j++ {
				sub := child.NamedChild(j)
				switch sub.Type() {
				case "identifier":
					p.Name = nodeText(sub, source)
				case "type":
					p.Annotation = nodeText(sub, source)
				}
			}
			if p.Name != "" {
				out = append(out, p)
			}
		case "default_parameter", "typed_default_parameter":
			p := Param{}
			if n := child.ChildByFieldName("name"); n != nil {
				p.Name = nodeText(n, source)
			}
			if tn := child.ChildByFieldName("type"); tn != nil {
				p.Annotation = nodeText(tn, source)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				p.Default = nodeText(v, source)
			}
			if p.Name != "" {
				out = append(out, p)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if child.NamedChildCount() > 0 {
				out = append(out, Param{Name: nodeText(child, source)})
			}
		}
	}
	return out
}

// extractDocstring records the existing docstring and the insertion point
// for a new one.
func extractDocstring(body *sitter.Node, source []byte, c *Component) {
	if body.NamedChildCount() == 0 {
		c.InsertAt = int(body.StartByte())
		return
	}

	first := body.NamedChild(0)
	c.InsertAt = int(first.StartByte())

	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return
	}
	str := first.NamedChild(0)
	if str.Type() != "string" && str.Type() != "concatenated_string" {
		return
	}

	c.Docstring = stringLiteralText(nodeText(str, source))
	c.DocStart = int(first.StartByte())
	c.DocEnd = int(first.EndByte())
}

// stringLiteralText strips string prefixes and quotes from a raw literal.
func stringLiteralText(raw string) string {
	s := raw
	i := 0
	for i < len(s) && s[i] != '"' && s[i] != '\'' {
		i++
	}
	s = s[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// collectLocals gathers names bound inside the body: assignment targets,
// loop variables, with-aliases, and nested definition names.
func collectLocals(node *sitter.Node, source []byte, locals map[string]bool) {
	switch node.Type() {
	case "assignment", "augmented_assignment":
		if left := node.ChildByFieldName("left"); left != nil {
			collectTargetNames(left, source, locals)
		}
	case "for_statement":
		if left := node.ChildByFieldName("left"); left != nil {
			collectTargetNames(left, source, locals)
		}
	case "as_pattern":
		if alias := node.ChildByFieldName("alias"); alias != nil {
			collectTargetNames(alias, source, locals)
		}
	case "named_expression":
		if n := node.ChildByFieldName("name"); n != nil {
			collectTargetNames(n, source, locals)
		}
	case "for_in_clause":
		if left := node.ChildByFieldName("left"); left != nil {
			collectTargetNames(left, source, locals)
		}
	case "function_definition", "class_definition":
		if n := node.ChildByFieldName("name"); n != nil {
			locals[nodeText(n, source)] = true
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectLocals(node.NamedChild(i), source, locals)
	}
}

func collectTargetNames(node *sitter.Node, source []byte, locals map[string]bool) {
	if node.Type() == "identifier" {
		locals[nodeText(node, source)] = true
		return
	}
	if node.Type() == "attribute" {
		// self.x = ... binds an attribute, not a local name.
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectTargetNames(node.NamedChild(i), source, locals)
	}
}

// collectRefs walks the body collecting dotted name references. Pure dotted
// chains are captured whole; anything else decomposes into the names it
// mentions.
func collectRefs(node *sitter.Node, source []byte, c *Component) {
	seen := map[string]bool{}
	for _, r := range c.refs {
		seen[r] = true
	}
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "attribute":
			if txt, ok := dottedChain(n, source); ok {
				addRef(c, seen, txt)
				return
			}
			if obj := n.ChildByFieldName("object"); obj != nil {
				walk(obj)
			}
			return
		case "identifier":
			addRef(c, seen, nodeText(n, source))
			return
		case "keyword_argument":
			if v := n.ChildByFieldName("value"); v != nil {
				walk(v)
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
}

func addRef(c *Component, seen map[string]bool, ref string) {
	if ref == "" || seen[ref] {
		return
	}
	head := strings.SplitN(ref, ".", 2)[0]
	if head != "self" && head != "cls" {
		if c.locals[head] || pythonBuiltins[head] {
			return
		}
	}
	if (head == "self" || head == "cls") && !strings.Contains(ref, ".") {
		return
	}
	seen[ref] = true
	c.refs = append(c.refs, ref)
}

// dottedChain returns the text of an attribute node when it is a pure
// identifier chain (a.b.c).
func dottedChain(n *sitter.Node, source []byte) (string, bool) {
	switch n.Type() {
	case "identifier":
		return nodeText(n, source), true
	case "attribute":
		obj := n.ChildByFieldName("object")
		attr := n.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return "", false
		}
		prefix, ok := dottedChain(obj, source)
		if !ok {
			return "", false
		}
		return prefix + "." + nodeText(attr, source), true
	}
	return "", false
}

// hasValueReturn reports whether the body contains a return statement that
// yields a value, ignoring nested definitions.
func hasValueReturn(node *sitter.Node) bool {
	if node.Type() == "function_definition" || node.Type() == "class_definition" || node.Type() == "lambda" {
		return false
	}
	if node.Type() == "return_statement" {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if node.NamedChild(i).Type() != "none" {
				return true
			}
		}
		return false
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if hasValueReturn(node.NamedChild(i)) {
			return true
		}
	}
	return false
}

// collectRaises gathers exception names raised in the body that escape the
// component: raises inside a try body with an except clause are treated as
// handled locally.
func collectRaises(body *sitter.Node, source []byte) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(n *sitter.Node, guarded bool)
	walk = func(n *sitter.Node, guarded bool) {
		switch n.Type() {
		case "function_definition", "class_definition", "lambda":
			return
		case "raise_statement":
			if guarded {
				return
			}
			if name := raisedName(n, source); name != "" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
			return
		case "try_statement":
			hasExcept := false
			for i := 0; i < int(n.NamedChildCount()); i++ {
				t := n.NamedChild(i).Type()
				if t == "except_clause" || t == "except_group_clause" {
					hasExcept = true
				}
			}
			if b := n.ChildByFieldName("body"); b != nil {
				walk(b, guarded || hasExcept)
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "except_clause" || child.Type() == "finally_clause" || child.Type() == "else_clause" {
					walk(child, guarded)
				}
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), guarded)
		}
	}
	walk(body, false)
	return out
}

func raisedName(raise *sitter.Node, source []byte) string {
	for i := 0; i < int(raise.NamedChildCount()); i++ {
		child := raise.NamedChild(i)
		switch child.Type() {
		case "call":
			if fn := child.ChildByFieldName("function"); fn != nil {
				return lastSegment(nodeText(fn, source))
			}
		case "identifier", "attribute":
			return lastSegment(nodeText(child, source))
		}
	}
	return ""
}

func lastSegment(dotted string) string {
	parts := strings.Split(dotted, ".")
	return parts[len(parts)-1]
}

var pythonBuiltins = map[string]bool{
	"abs": true, "all": true, "any": true, "bool": true, "bytes": true,
	"callable": true, "classmethod": true, "dict": true, "dir": true,
	"enumerate": true, "filter": true, "float": true, "format": true,
	"frozenset": true, "getattr": true, "hasattr": true, "hash": true,
	"id": true, "int": true, "isinstance": true, "issubclass": true,
	"iter": true, "len": true, "list": true, "map": true, "max": true,
	"min": true, "next": true, "object": true, "open": true, "print": true,
	"property": true, "range": true, "repr": true, "reversed": true,
	"round": true, "set": true, "setattr": true, "sorted": true,
	"staticmethod": true, "str": true, "sum": true, "super": true,
	"tuple": true, "type": true, "vars": true, "zip": true,
	"None": true, "True": true, "False": true, "NotImplemented": true,
	"Exception": true, "BaseException": true, "ValueError": true,
	"TypeError": true, "KeyError": true, "IndexError": true,
	"AttributeError": true, "RuntimeError": true, "NotImplementedError": true,
	"StopIteration": true, "FileNotFoundError": true, "OSError": true,
	"IOError": true, "ZeroDivisionError": true, "OverflowError": true,
	"ImportError": true, "ModuleNotFoundError": true, "KeyboardInterrupt": true,
}
