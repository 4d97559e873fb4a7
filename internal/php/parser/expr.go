package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// stringFragments are the literal pieces of an interpolated string.
var stringFragments = map[string]bool{
	"string_value":    true,
	"string_content":  true,
	"string":          true,
	"escape_sequence": true,
	"heredoc_start":   true,
	"heredoc_end":     true,
	"nowdoc_string":   true,
	"nowdoc_body":     true,
	"text":            true,
}

// constructs maps call-like language constructs to the function name they
// are represented with.
var constructs = map[string]string{
	"include_expression":      "include",
	"include_once_expression": "include_once",
	"require_expression":      "require",
	"require_once_expression": "require_once",
	"print_intrinsic":         "print",
	"exit_intrinsic":          "exit",
	"exit_statement":          "exit",
	"clone_expression":        "clone",
}

func (c *converter) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return &ast.BadExpr{Type: "missing"}
	}
	pos := ast.At(line(n))

	switch n.Type() {
	case "parenthesized_expression":
		if n.NamedChildCount() == 0 {
			break
		}
		return c.expr(n.NamedChild(0))

	case "variable_name":
		return &ast.Variable{Position: pos, Name: c.text(n)}

	case "dynamic_variable_name":
		v := &ast.Variable{Position: pos}
		if n.NamedChildCount() > 0 {
			v.NameExpr = c.expr(n.NamedChild(0))
		}
		return v

	case "by_ref":
		if n.NamedChildCount() > 0 {
			return c.expr(n.NamedChild(0))
		}

	case "assignment_expression":
		return &ast.Assign{
			Position: pos,
			Var:      c.target(n.ChildByFieldName("left")),
			Expr:     c.expr(n.ChildByFieldName("right")),
		}

	case "reference_assignment_expression":
		return &ast.Assign{
			Position: pos,
			Var:      c.target(n.ChildByFieldName("left")),
			Expr:     c.expr(n.ChildByFieldName("right")),
			ByRef:    true,
		}

	case "augmented_assignment_expression":
		return &ast.AssignOp{
			Position: pos,
			Op:       c.operator(n),
			Var:      c.expr(n.ChildByFieldName("left")),
			Expr:     c.expr(n.ChildByFieldName("right")),
		}

	case "binary_expression":
		return &ast.Binary{
			Position: pos,
			Op:       c.operator(n),
			Left:     c.expr(n.ChildByFieldName("left")),
			Right:    c.expr(n.ChildByFieldName("right")),
		}

	case "unary_op_expression", "error_suppression_expression", "throw_expression":
		if n.NamedChildCount() == 0 {
			break
		}
		op := "@"
		switch n.Type() {
		case "unary_op_expression":
			op = c.text(n.Child(0))
		case "throw_expression":
			op = "throw"
		}
		return &ast.Unary{Position: pos, Op: op, Expr: c.expr(n.NamedChild(int(n.NamedChildCount()) - 1))}

	case "update_expression":
		if n.NamedChildCount() == 0 {
			break
		}
		first := n.Child(0)
		prefix := first.Type() == "++" || first.Type() == "--"
		op := "++"
		if hasToken(n, "--") {
			op = "--"
		}
		return &ast.IncDec{Position: pos, Op: op, Prefix: prefix, Var: c.expr(n.NamedChild(0))}

	case "cast_expression":
		typ := n.ChildByFieldName("type")
		val := n.ChildByFieldName("value")
		if val == nil && n.NamedChildCount() > 0 {
			val = n.NamedChild(int(n.NamedChildCount()) - 1)
		}
		return &ast.Cast{Position: pos, Type: strings.ToLower(strings.TrimSpace(c.text(typ))), Expr: c.expr(val)}

	case "conditional_expression":
		t := &ast.Ternary{
			Position: pos,
			Cond:     c.expr(n.ChildByFieldName("condition")),
			Else:     c.expr(n.ChildByFieldName("alternative")),
		}
		if body := n.ChildByFieldName("body"); body != nil {
			t.If = c.expr(body)
		}
		return t

	case "match_expression":
		return c.match(n)

	case "array_creation_expression":
		return &ast.Array{Position: pos, Items: c.arrayItems(n)}

	case "list_literal":
		return &ast.List{Position: pos, Items: c.arrayItems(n)}

	case "subscript_expression":
		kids := namedChildren(n)
		if len(kids) == 0 {
			break
		}
		dim := &ast.ArrayDimFetch{Position: pos, Var: c.expr(kids[0])}
		if len(kids) > 1 {
			dim.Dim = c.expr(kids[1])
		}
		return dim

	case "member_access_expression", "nullsafe_member_access_expression":
		return &ast.PropertyFetch{
			Position: pos,
			Var:      c.expr(n.ChildByFieldName("object")),
			Name:     c.text(n.ChildByFieldName("name")),
		}

	case "scoped_property_access_expression":
		return &ast.StaticPropertyFetch{
			Position: pos,
			Class:    c.text(n.ChildByFieldName("scope")),
			Name:     c.text(n.ChildByFieldName("name")),
		}

	case "class_constant_access_expression":
		kids := namedChildren(n)
		if len(kids) < 2 {
			break
		}
		return &ast.ClassConstFetch{Position: pos, Class: c.text(kids[0]), Name: c.text(kids[len(kids)-1])}

	case "function_call_expression":
		return c.funcCall(n)

	case "member_call_expression", "nullsafe_member_call_expression":
		return &ast.MethodCall{
			Position: pos,
			Var:      c.expr(n.ChildByFieldName("object")),
			Name:     c.text(n.ChildByFieldName("name")),
			Args:     c.args(n.ChildByFieldName("arguments")),
		}

	case "scoped_call_expression":
		return &ast.StaticCall{
			Position: pos,
			Class:    c.text(n.ChildByFieldName("scope")),
			Name:     c.text(n.ChildByFieldName("name")),
			Args:     c.args(n.ChildByFieldName("arguments")),
		}

	case "object_creation_expression":
		obj := &ast.New{Position: pos, Args: c.args(firstOfType(n, "arguments"))}
		if name := firstOfType(n, "name", "qualified_name", "variable_name"); name != nil {
			obj.Class = c.text(name)
		} else {
			obj.Class = "class@anonymous"
		}
		return obj

	case "anonymous_function_creation_expression", "anonymous_function":
		cl := &ast.Closure{
			Position: pos,
			Params:   c.params(n.ChildByFieldName("parameters")),
			Stmts:    c.body(n.ChildByFieldName("body")),
			Static:   firstOfType(n, "static_modifier") != nil,
		}
		if use := firstOfType(n, "anonymous_function_use_clause"); use != nil {
			for _, u := range namedChildren(use) {
				byRef := u.Type() == "by_ref"
				if v, ok := c.expr(u).(*ast.Variable); ok {
					cl.Uses = append(cl.Uses, &ast.ClosureUse{Position: ast.At(line(u)), Var: v, ByRef: byRef})
				}
			}
		}
		return cl

	case "arrow_function":
		return &ast.Closure{
			Position: pos,
			Params:   c.params(n.ChildByFieldName("parameters")),
			Stmts:    []ast.Stmt{&ast.Return{Position: pos, Expr: c.expr(n.ChildByFieldName("body"))}},
			Arrow:    true,
			Static:   firstOfType(n, "static_modifier") != nil,
		}

	case "shell_command_expression":
		parts := c.interpolation(n)
		var arg ast.Expr = &ast.Literal{Position: pos, Type: ast.LitString, Value: strings.Trim(c.text(n), "`")}
		if len(parts) > 0 {
			arg = &ast.Interpolated{Position: pos, Parts: parts}
		}
		return &ast.FuncCall{Position: pos, Name: "shell_exec", Args: []*ast.Arg{{Position: pos, Value: arg}}}

	case "string", "encapsed_string", "heredoc", "nowdoc":
		if parts := c.interpolation(n); len(parts) > 0 {
			return &ast.Interpolated{Position: pos, Parts: parts}
		}
		return &ast.Literal{Position: pos, Type: ast.LitString, Value: c.text(n)}

	case "integer":
		return &ast.Literal{Position: pos, Type: ast.LitInt, Value: c.text(n)}
	case "float":
		return &ast.Literal{Position: pos, Type: ast.LitFloat, Value: c.text(n)}
	case "boolean":
		return &ast.Literal{Position: pos, Type: ast.LitBool, Value: strings.ToLower(c.text(n))}
	case "null":
		return &ast.Literal{Position: pos, Type: ast.LitNull, Value: "null"}

	case "name", "qualified_name", "namespace_name":
		return c.constFetch(n)

	case "sequence_expression":
		parts := c.sequence(n)
		if len(parts) == 1 {
			return parts[0]
		}
		out := parts[0]
		for _, p := range parts[1:] {
			out = &ast.Binary{Position: pos, Op: ",", Left: out, Right: p}
		}
		return out
	}

	if name, ok := constructs[n.Type()]; ok {
		return c.constructCall(n, name)
	}

	c.skip(n)
	return &ast.BadExpr{Position: pos, Type: n.Type()}
}

// target converts the left side of an assignment. Array literals used as
// destructuring targets become *ast.List.
func (c *converter) target(n *sitter.Node) ast.Expr {
	if n != nil && n.Type() == "array_creation_expression" {
		return &ast.List{Position: ast.At(line(n)), Items: c.arrayItems(n)}
	}
	return c.expr(n)
}

func (c *converter) constFetch(n *sitter.Node) ast.Expr {
	name := c.text(n)
	switch strings.ToLower(name) {
	case "true", "false":
		return &ast.Literal{Position: ast.At(line(n)), Type: ast.LitBool, Value: strings.ToLower(name)}
	case "null":
		return &ast.Literal{Position: ast.At(line(n)), Type: ast.LitNull, Value: "null"}
	}
	return &ast.ConstFetch{Position: ast.At(line(n)), Name: name}
}

// operator returns the operator token of a binary-like node.
func (c *converter) operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return c.text(op)
	}
	left := n.ChildByFieldName("left")
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if !ch.IsNamed() && !sameNode(ch, left) {
			return ch.Type()
		}
	}
	return ""
}

// sequence flattens comma-separated expression lists.
func (c *converter) sequence(n *sitter.Node) []ast.Expr {
	if n.Type() != "sequence_expression" {
		return []ast.Expr{c.expr(n)}
	}
	var out []ast.Expr
	for _, ch := range namedChildren(n) {
		out = append(out, c.sequence(ch)...)
	}
	return out
}

func (c *converter) optExprs(n *sitter.Node) []ast.Expr {
	if n == nil {
		return nil
	}
	return c.sequence(n)
}

func (c *converter) funcCall(n *sitter.Node) ast.Expr {
	pos := ast.At(line(n))
	fn := n.ChildByFieldName("function")
	args := c.args(n.ChildByFieldName("arguments"))

	call := &ast.FuncCall{Position: pos, Args: args}
	switch {
	case fn == nil:
		call.NameExpr = &ast.BadExpr{Position: pos, Type: "missing"}
	case fn.Type() == "name" || fn.Type() == "qualified_name":
		call.Name = c.text(fn)
	default:
		call.NameExpr = c.expr(fn)
	}

	if strings.EqualFold(call.Name, "eval") {
		ev := &ast.Eval{Position: pos}
		if len(args) > 0 {
			ev.Expr = args[0].Value
		} else {
			ev.Expr = &ast.Literal{Position: pos, Type: ast.LitString}
		}
		return ev
	}
	return call
}

// constructCall represents a call-like language construct as a FuncCall.
func (c *converter) constructCall(n *sitter.Node, name string) ast.Expr {
	pos := ast.At(line(n))
	call := &ast.FuncCall{Position: pos, Name: name}
	for _, ch := range namedChildren(n) {
		if ch.Type() == "comment" {
			continue
		}
		if ch.Type() == "arguments" {
			call.Args = append(call.Args, c.args(ch)...)
			continue
		}
		call.Args = append(call.Args, &ast.Arg{Position: ast.At(line(ch)), Value: c.expr(ch)})
	}
	return call
}

func (c *converter) args(n *sitter.Node) []*ast.Arg {
	var out []*ast.Arg
	for _, ch := range namedChildren(n) {
		pos := ast.At(line(ch))
		switch ch.Type() {
		case "comment":
			continue
		case "argument":
			arg := &ast.Arg{Position: pos}
			if name := ch.ChildByFieldName("name"); name != nil {
				arg.Name = c.text(name)
			}
			kids := namedChildren(ch)
			if len(kids) == 0 {
				continue
			}
			val := kids[len(kids)-1]
			if val.Type() == "variadic_unpacking" {
				arg.Unpack = true
				if val.NamedChildCount() > 0 {
					val = val.NamedChild(0)
				}
			}
			arg.Value = c.expr(val)
			out = append(out, arg)
		case "variadic_unpacking":
			if ch.NamedChildCount() > 0 {
				out = append(out, &ast.Arg{Position: pos, Value: c.expr(ch.NamedChild(0)), Unpack: true})
			}
		case "variadic_placeholder":
			continue
		default:
			out = append(out, &ast.Arg{Position: pos, Value: c.expr(ch)})
		}
	}
	return out
}

func (c *converter) arrayItems(n *sitter.Node) []*ast.ArrayItem {
	var out []*ast.ArrayItem
	for _, ch := range namedChildren(n) {
		if ch.Type() == "comment" {
			continue
		}
		item := &ast.ArrayItem{Position: ast.At(line(ch))}
		if ch.Type() != "array_element_initializer" {
			item.ByRef = ch.Type() == "by_ref"
			item.Value = c.target(ch)
			out = append(out, item)
			continue
		}
		kids := namedChildren(ch)
		if len(kids) == 0 {
			continue
		}
		val := kids[len(kids)-1]
		if len(kids) > 1 {
			item.Key = c.expr(kids[0])
		}
		switch val.Type() {
		case "by_ref":
			item.ByRef = true
		case "variadic_unpacking":
			item.Unpack = true
			if val.NamedChildCount() > 0 {
				val = val.NamedChild(0)
			}
		}
		item.Value = c.target(val)
		out = append(out, item)
	}
	return out
}

// interpolation returns the embedded parts of a string-like node, or nil if
// the string contains no embedded expressions.
func (c *converter) interpolation(n *sitter.Node) []ast.Expr {
	var parts []ast.Expr
	dynamic := false
	var collect func(*sitter.Node)
	collect = func(node *sitter.Node) {
		for _, ch := range namedChildren(node) {
			switch {
			case ch.Type() == "heredoc_body":
				collect(ch)
			case stringFragments[ch.Type()]:
				parts = append(parts, &ast.Literal{Position: ast.At(line(ch)), Type: ast.LitString, Value: c.text(ch)})
			default:
				dynamic = true
				parts = append(parts, c.expr(ch))
			}
		}
	}
	collect(n)
	if !dynamic {
		return nil
	}
	return parts
}

// match folds the arms of a match expression into nested ternaries so
// every arm's result contributes to the value.
func (c *converter) match(n *sitter.Node) ast.Expr {
	pos := ast.At(line(n))
	subject := c.expr(unwrapParens(n.ChildByFieldName("condition")))
	block := n.ChildByFieldName("body")
	if block == nil {
		block = firstOfType(n, "match_block")
	}
	var results []ast.Expr
	for _, arm := range childrenOfType(block, "match_conditional_expression", "match_default_expression") {
		ret := arm.ChildByFieldName("return_expression")
		if ret == nil && arm.NamedChildCount() > 0 {
			ret = arm.NamedChild(int(arm.NamedChildCount()) - 1)
		}
		results = append(results, c.expr(ret))
	}
	if len(results) == 0 {
		return &ast.Literal{Position: pos, Type: ast.LitNull, Value: "null"}
	}
	out := results[len(results)-1]
	for i := len(results) - 2; i >= 0; i-- {
		out = &ast.Ternary{Position: pos, Cond: subject, If: results[i], Else: out}
	}
	return out
}
