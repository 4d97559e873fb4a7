package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// converter walks a tree-sitter concrete syntax tree and builds the
// equivalent ast nodes.
type converter struct {
	src     []byte
	skipped map[string]int
}

// ignoredStatements produce no ast node at all.
var ignoredStatements = map[string]bool{
	"php_tag":                   true,
	"text":                      true,
	"text_interpolation":        true,
	"comment":                   true,
	"empty_statement":           true,
	"break_statement":           true,
	"continue_statement":        true,
	"goto_statement":            true,
	"named_label_statement":     true,
	"namespace_use_declaration": true,
	"use_declaration":           true,
	"declare_statement":         true,
	"base_clause":               true,
	"class_interface_clause":    true,
	"attribute_list":            true,
	"visibility_modifier":       true,
	"static_modifier":           true,
	"abstract_modifier":         true,
	"final_modifier":            true,
	"readonly_modifier":         true,
	"var_modifier":              true,
	"?>":                        true,
}

func (c *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

func (c *converter) skip(n *sitter.Node) {
	c.skipped[n.Type()]++
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func childrenOfType(n *sitter.Node, types ...string) []*sitter.Node {
	var out []*sitter.Node
	for _, ch := range namedChildren(n) {
		for _, t := range types {
			if ch.Type() == t {
				out = append(out, ch)
				break
			}
		}
	}
	return out
}

func firstOfType(n *sitter.Node, types ...string) *sitter.Node {
	if found := childrenOfType(n, types...); len(found) > 0 {
		return found[0]
	}
	return nil
}

// hasToken reports whether n has an anonymous child token with the given text.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if ch.Type() == tok {
			return true
		}
	}
	return false
}

func unwrapParens(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" && n.NamedChildCount() > 0 {
		n = n.NamedChild(0)
	}
	return n
}

// -- Statements --

// stmtList converts the statement children of n. Unbraced namespace
// declarations swallow the statements that follow them, up to the next
// namespace declaration.
func (c *converter) stmtList(n *sitter.Node) []ast.Stmt {
	var out []ast.Stmt
	var open *ast.Namespace
	for _, ch := range namedChildren(n) {
		if ch.Type() == "namespace_definition" && ch.ChildByFieldName("body") == nil {
			open = &ast.Namespace{Position: ast.At(line(ch)), Name: c.namespaceName(ch)}
			out = append(out, open)
			continue
		}
		converted := c.stmt(ch)
		if open != nil {
			open.Stmts = append(open.Stmts, converted...)
		} else {
			out = append(out, converted...)
		}
	}
	return out
}

// body converts a statement that acts as a body: a compound statement, a
// colon block or a single statement.
func (c *converter) body(n *sitter.Node) []ast.Stmt {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "compound_statement", "colon_block", "declaration_list", "switch_block":
		return c.stmtList(n)
	}
	return c.stmt(n)
}

func (c *converter) stmt(n *sitter.Node) []ast.Stmt {
	if ignoredStatements[n.Type()] {
		return nil
	}
	pos := ast.At(line(n))

	switch n.Type() {
	case "expression_statement":
		if n.NamedChildCount() == 0 {
			return nil
		}
		return []ast.Stmt{&ast.ExprStmt{Position: pos, Expr: c.expr(n.NamedChild(0))}}

	case "echo_statement":
		echo := &ast.Echo{Position: pos}
		for _, ch := range namedChildren(n) {
			echo.Exprs = append(echo.Exprs, c.sequence(ch)...)
		}
		return []ast.Stmt{echo}

	case "return_statement":
		ret := &ast.Return{Position: pos}
		if n.NamedChildCount() > 0 {
			ret.Expr = c.expr(n.NamedChild(0))
		}
		return []ast.Stmt{ret}

	case "compound_statement", "colon_block":
		return []ast.Stmt{&ast.Block{Position: pos, Stmts: c.stmtList(n)}}

	case "if_statement":
		return []ast.Stmt{c.ifStmt(n)}

	case "while_statement":
		return []ast.Stmt{&ast.Loop{
			Position: pos,
			Cond:     c.optExprs(unwrapParens(n.ChildByFieldName("condition"))),
			Stmts:    c.body(n.ChildByFieldName("body")),
		}}

	case "do_statement":
		return []ast.Stmt{&ast.Loop{
			Position: pos,
			Cond:     c.optExprs(unwrapParens(n.ChildByFieldName("condition"))),
			Stmts:    c.body(n.ChildByFieldName("body")),
		}}

	case "for_statement":
		return []ast.Stmt{c.forStmt(n)}

	case "foreach_statement":
		return []ast.Stmt{c.foreachStmt(n)}

	case "switch_statement":
		return []ast.Stmt{c.switchStmt(n)}

	case "try_statement":
		return []ast.Stmt{c.tryStmt(n)}

	case "function_definition":
		return []ast.Stmt{&ast.Function{
			Position: pos,
			Name:     c.text(n.ChildByFieldName("name")),
			Params:   c.params(n.ChildByFieldName("parameters")),
			Stmts:    c.body(n.ChildByFieldName("body")),
			ByRef:    firstOfType(n, "reference_modifier") != nil,
		}}

	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
		class := &ast.Class{
			Position: pos,
			Name:     c.text(n.ChildByFieldName("name")),
			Stmts:    c.body(n.ChildByFieldName("body")),
		}
		if base := firstOfType(n, "base_clause"); base != nil && base.NamedChildCount() > 0 {
			class.Extends = c.text(base.NamedChild(0))
		}
		return []ast.Stmt{class}

	case "method_declaration":
		return []ast.Stmt{&ast.Method{
			Position: pos,
			Name:     c.text(n.ChildByFieldName("name")),
			Params:   c.params(n.ChildByFieldName("parameters")),
			Stmts:    c.body(n.ChildByFieldName("body")),
			Static:   firstOfType(n, "static_modifier") != nil,
		}}

	case "property_declaration":
		return []ast.Stmt{c.propertyDecl(n)}

	case "const_declaration":
		decl := &ast.Const{Position: pos}
		for _, el := range childrenOfType(n, "const_element") {
			kids := namedChildren(el)
			if len(kids) == 0 {
				continue
			}
			item := &ast.ConstItem{Position: ast.At(line(el)), Name: c.text(kids[0])}
			if len(kids) > 1 {
				item.Value = c.expr(kids[len(kids)-1])
			}
			decl.Consts = append(decl.Consts, item)
		}
		return []ast.Stmt{decl}

	case "global_declaration":
		g := &ast.Global{Position: pos}
		for _, ch := range namedChildren(n) {
			if v, ok := c.expr(ch).(*ast.Variable); ok {
				g.Vars = append(g.Vars, v)
			}
		}
		return []ast.Stmt{g}

	case "function_static_declaration":
		s := &ast.StaticVar{Position: pos}
		for _, el := range childrenOfType(n, "static_variable_declaration") {
			nameNode := el.ChildByFieldName("name")
			if nameNode == nil {
				nameNode = firstOfType(el, "variable_name")
			}
			v, ok := c.expr(nameNode).(*ast.Variable)
			if !ok {
				continue
			}
			item := &ast.StaticVarItem{Position: ast.At(line(el)), Var: v}
			if val := el.ChildByFieldName("value"); val != nil {
				item.Default = c.expr(val)
			}
			s.Vars = append(s.Vars, item)
		}
		return []ast.Stmt{s}

	case "unset_statement":
		u := &ast.Unset{Position: pos}
		for _, ch := range namedChildren(n) {
			u.Vars = append(u.Vars, c.expr(ch))
		}
		return []ast.Stmt{u}

	case "namespace_definition":
		return []ast.Stmt{&ast.Namespace{
			Position: pos,
			Name:     c.namespaceName(n),
			Stmts:    c.body(n.ChildByFieldName("body")),
		}}

	case "exit_statement":
		return []ast.Stmt{&ast.ExprStmt{Position: pos, Expr: c.constructCall(n, "exit")}}
	}

	c.skip(n)
	return []ast.Stmt{&ast.BadStmt{Position: pos, Type: n.Type()}}
}

func (c *converter) namespaceName(n *sitter.Node) string {
	return c.text(n.ChildByFieldName("name"))
}

func (c *converter) ifStmt(n *sitter.Node) *ast.If {
	root := &ast.If{
		Position: ast.At(line(n)),
		Cond:     c.expr(unwrapParens(n.ChildByFieldName("condition"))),
		Stmts:    c.body(n.ChildByFieldName("body")),
	}
	tail := root
	for _, alt := range childrenOfType(n, "else_if_clause", "else_clause") {
		if alt.Type() == "else_clause" {
			tail.Else = &ast.Block{Position: ast.At(line(alt)), Stmts: c.body(c.clauseBody(alt))}
			break
		}
		next := &ast.If{
			Position: ast.At(line(alt)),
			Cond:     c.expr(unwrapParens(alt.ChildByFieldName("condition"))),
			Stmts:    c.body(c.clauseBody(alt)),
		}
		tail.Else = next
		tail = next
	}
	return root
}

// clauseBody finds the body of an else/elseif clause, falling back to the
// last named child for grammar versions without the field.
func (c *converter) clauseBody(n *sitter.Node) *sitter.Node {
	if b := n.ChildByFieldName("body"); b != nil {
		return b
	}
	if cnt := int(n.NamedChildCount()); cnt > 0 {
		return n.NamedChild(cnt - 1)
	}
	return nil
}

func (c *converter) forStmt(n *sitter.Node) *ast.Loop {
	loop := &ast.Loop{Position: ast.At(line(n))}
	body := n.ChildByFieldName("body")
	kids := namedChildren(n)
	if body == nil && len(kids) > 0 {
		body = kids[len(kids)-1]
		kids = kids[:len(kids)-1]
	}
	for _, ch := range kids {
		if sameNode(ch, body) || ch.Type() == "comment" {
			continue
		}
		loop.Init = append(loop.Init, c.sequence(ch)...)
	}
	loop.Stmts = c.body(body)
	return loop
}

func (c *converter) foreachStmt(n *sitter.Node) *ast.Foreach {
	fe := &ast.Foreach{Position: ast.At(line(n))}
	body := n.ChildByFieldName("body")
	kids := namedChildren(n)
	if body == nil && len(kids) > 0 {
		body = kids[len(kids)-1]
	}
	var rest []*sitter.Node
	for _, ch := range kids {
		if !sameNode(ch, body) && ch.Type() != "comment" {
			rest = append(rest, ch)
		}
	}
	if len(rest) > 0 {
		fe.Expr = c.expr(rest[0])
	}
	if len(rest) > 1 {
		target := rest[1]
		if target.Type() == "pair" {
			pair := namedChildren(target)
			if len(pair) == 2 {
				fe.Key = c.expr(pair[0])
				target = pair[1]
			}
		}
		if target.Type() == "by_ref" {
			fe.ByRef = true
		}
		fe.Value = c.target(target)
	}
	fe.Stmts = c.body(body)
	return fe
}

func (c *converter) switchStmt(n *sitter.Node) *ast.Switch {
	sw := &ast.Switch{
		Position: ast.At(line(n)),
		Cond:     c.expr(unwrapParens(n.ChildByFieldName("condition"))),
	}
	block := n.ChildByFieldName("body")
	if block == nil {
		block = firstOfType(n, "switch_block")
	}
	for _, arm := range childrenOfType(block, "case_statement", "default_statement") {
		kase := &ast.Case{Position: ast.At(line(arm))}
		kids := namedChildren(arm)
		if arm.Type() == "case_statement" && len(kids) > 0 {
			kase.Cond = c.expr(kids[0])
			kids = kids[1:]
		}
		for _, s := range kids {
			kase.Stmts = append(kase.Stmts, c.stmt(s)...)
		}
		sw.Cases = append(sw.Cases, kase)
	}
	return sw
}

func (c *converter) tryStmt(n *sitter.Node) *ast.Try {
	try := &ast.Try{
		Position: ast.At(line(n)),
		Stmts:    c.body(n.ChildByFieldName("body")),
	}
	for _, clause := range childrenOfType(n, "catch_clause", "finally_clause") {
		if clause.Type() == "finally_clause" {
			try.Finally = c.body(c.clauseBody(clause))
			continue
		}
		catch := &ast.Catch{Position: ast.At(line(clause)), Stmts: c.body(c.clauseBody(clause))}
		if t := clause.ChildByFieldName("type"); t != nil {
			for _, name := range strings.Split(c.text(t), "|") {
				catch.Types = append(catch.Types, strings.TrimSpace(name))
			}
		}
		nameNode := clause.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = firstOfType(clause, "variable_name")
		}
		if nameNode != nil {
			if v, ok := c.expr(nameNode).(*ast.Variable); ok {
				catch.Var = v
			}
		}
		try.Catches = append(try.Catches, catch)
	}
	return try
}

func (c *converter) propertyDecl(n *sitter.Node) *ast.PropertyDecl {
	decl := &ast.PropertyDecl{
		Position: ast.At(line(n)),
		Static:   firstOfType(n, "static_modifier") != nil,
	}
	for _, el := range childrenOfType(n, "property_element") {
		nameNode := el.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = firstOfType(el, "variable_name")
		}
		item := &ast.PropertyItem{Position: ast.At(line(el)), Name: c.text(nameNode)}
		if def := el.ChildByFieldName("default_value"); def != nil {
			item.Default = c.expr(def)
		} else if init := firstOfType(el, "property_initializer"); init != nil && init.NamedChildCount() > 0 {
			item.Default = c.expr(init.NamedChild(0))
		}
		decl.Props = append(decl.Props, item)
	}
	return decl
}

func (c *converter) params(n *sitter.Node) []*ast.Param {
	var out []*ast.Param
	for _, p := range childrenOfType(n, "simple_parameter", "variadic_parameter", "property_promotion_parameter") {
		nameNode := p.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = firstOfType(p, "variable_name")
		}
		param := &ast.Param{
			Position: ast.At(line(p)),
			Name:     c.text(nameNode),
			Variadic: p.Type() == "variadic_parameter",
			ByRef:    firstOfType(p, "reference_modifier") != nil || hasToken(p, "&"),
		}
		if def := p.ChildByFieldName("default_value"); def != nil {
			param.Default = c.expr(def)
		}
		out = append(out, param)
	}
	return out
}

// sameNode compares two tree-sitter nodes by their span and type.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
