// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// scope maps local variable and parameter names to their declared types.
type scope struct {
	vars   map[string]TypeRef
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]TypeRef), parent: parent}
}

func (s *scope) declare(name string, t TypeRef) {
	if name != "" {
		s.vars[name] = t
	}
}

func (s *scope) lookup(name string) (TypeRef, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return TypeRef{}, false
}

// typeVars is the chain of type parameter names in scope.
type typeVars struct {
	names  map[string]bool
	parent *typeVars
}

func (tv *typeVars) with(names []string) *typeVars {
	if len(names) == 0 {
		return tv
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return &typeVars{names: m, parent: tv}
}

func (tv *typeVars) has(name string) bool {
	for cur := tv; cur != nil; cur = cur.parent {
		if cur.names[name] {
			return true
		}
	}
	return false
}

// frame is the lexical context of the node being walked.
type frame struct {
	decl  *TypeDecl
	scope *scope
	tvars *typeVars

	// anonymous is set inside anonymous class bodies, whose members do not
	// belong to the enclosing declaration.
	anonymous bool
}

func (f frame) withScope() frame {
	f.scope = newScope(f.scope)
	return f
}

type walker struct {
	content []byte
	file    *File
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.content)
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func spanOf(n *sitter.Node) Span {
	return Span{
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}
}

func isComment(n *sitter.Node) bool {
	switch n.Type() {
	case "line_comment", "block_comment", "comment":
		return true
	}
	return false
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func (w *walker) walkProgram(root *sitter.Node) {
	f := frame{scope: newScope(nil)}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "package_declaration":
			w.file.Package = w.qualifiedName(child)
		case "import_declaration":
			w.importDecl(child)
		default:
			w.walk(child, f)
		}
	}
}

// qualifiedName returns the identifier or scoped_identifier child text.
func (w *walker) qualifiedName(n *sitter.Node) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "identifier" || c.Type() == "scoped_identifier" {
			return compact(w.text(c))
		}
	}
	return ""
}

func (w *walker) importDecl(n *sitter.Node) {
	imp := Import{Path: w.qualifiedName(n)}
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "static":
			imp.Static = true
		case "asterisk":
			imp.Wildcard = true
		}
	}
	if imp.Path != "" {
		w.file.Imports = append(w.file.Imports, imp)
	}
}

func (w *walker) walkChildren(n *sitter.Node, f frame) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i), f)
	}
}

func (w *walker) walk(n *sitter.Node, f frame) {
	if n == nil || isComment(n) {
		return
	}

	switch n.Type() {
	case "class_declaration", "interface_declaration", "enum_declaration",
		"annotation_type_declaration", "record_declaration":
		w.declaration(n, f)

	case "method_declaration", "constructor_declaration", "compact_constructor_declaration",
		"annotation_type_element_declaration":
		w.method(n, f)

	case "field_declaration", "constant_declaration":
		w.field(n, f)

	case "local_variable_declaration":
		w.local(n, f)

	case "enhanced_for_statement":
		w.enhancedFor(n, f.withScope())

	case "catch_clause":
		w.catchClause(n, f.withScope())

	case "resource":
		w.resource(n, f)

	case "lambda_expression":
		w.lambda(n, f.withScope())

	case "block", "constructor_body", "for_statement", "switch_block",
		"switch_block_statement_group", "try_with_resources_statement":
		w.walkChildren(n, f.withScope())

	case "method_invocation":
		w.call(n, f)

	case "object_creation_expression":
		w.creation(n, f)

	case "enum_constant":
		w.walk(n.ChildByFieldName("arguments"), f)
		if body := n.ChildByFieldName("body"); body != nil {
			af := f.withScope()
			af.anonymous = true
			w.walkChildren(body, af)
		}

	default:
		w.walkChildren(n, f)
	}
}

func declKind(nodeType string) DeclKind {
	switch nodeType {
	case "interface_declaration":
		return DeclInterface
	case "enum_declaration":
		return DeclEnum
	case "annotation_type_declaration":
		return DeclAnnotation
	default:
		return DeclClass
	}
}

func hasModifier(n *sitter.Node, modifier string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(c.ChildCount()); j++ {
			if c.Child(j).Type() == modifier {
				return true
			}
		}
	}
	return false
}

func (w *walker) typeParams(n *sitter.Node) []string {
	tp := n.ChildByFieldName("type_parameters")
	if tp == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(tp.NamedChildCount()); i++ {
		param := tp.NamedChild(i)
		if param.Type() != "type_parameter" {
			continue
		}
		for j := 0; j < int(param.NamedChildCount()); j++ {
			c := param.NamedChild(j)
			if c.Type() == "type_identifier" || c.Type() == "identifier" {
				names = append(names, w.text(c))
				break
			}
		}
	}
	return names
}

// typeList returns the types of a type_list under a super_interfaces or
// extends_interfaces child of n.
func (w *walker) typeList(n *sitter.Node, f frame) []TypeRef {
	var out []TypeRef
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "super_interfaces" && c.Type() != "extends_interfaces" {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			list := c.NamedChild(j)
			if list.Type() != "type_list" {
				continue
			}
			for k := 0; k < int(list.NamedChildCount()); k++ {
				if t := list.NamedChild(k); !isComment(t) {
					out = append(out, w.typeRef(t, f))
				}
			}
		}
	}
	return out
}

func (w *walker) declaration(n *sitter.Node, f frame) {
	name := w.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}

	d := &TypeDecl{
		Name:     name,
		Kind:     declKind(n.Type()),
		Abstract: hasModifier(n, "abstract"),
		Span:     spanOf(n),
		Outer:    f.decl,
	}
	switch {
	case f.decl != nil:
		d.QualifiedName = f.decl.QualifiedName + "." + name
	case w.file.Package != "":
		d.QualifiedName = w.file.Package + "." + name
	default:
		d.QualifiedName = name
	}

	d.TypeParams = w.typeParams(n)
	inner := frame{
		decl:  d,
		scope: newScope(f.scope),
		tvars: f.tvars.with(d.TypeParams),
	}

	if sc := n.ChildByFieldName("superclass"); sc != nil {
		for i := 0; i < int(sc.NamedChildCount()); i++ {
			if c := sc.NamedChild(i); !isComment(c) {
				t := w.typeRef(c, inner)
				d.Superclass = &t
				break
			}
		}
	}
	d.Interfaces = w.typeList(n, inner)

	if n.Type() == "record_declaration" {
		if params := n.ChildByFieldName("parameters"); params != nil {
			for _, p := range w.params(params, inner) {
				d.Fields = append(d.Fields, Field{Type: p.Type, Names: []string{p.Name}})
			}
		}
	}

	w.file.Types = append(w.file.Types, d)

	if body := n.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, inner)
	}
}

func (w *walker) params(n *sitter.Node, f frame) []Param {
	var out []Param
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		switch p.Type() {
		case "formal_parameter":
			out = append(out, Param{
				Name: w.text(p.ChildByFieldName("name")),
				Type: w.typeRef(p.ChildByFieldName("type"), f),
			})
		case "spread_parameter":
			var param Param
			for j := 0; j < int(p.NamedChildCount()); j++ {
				c := p.NamedChild(j)
				switch c.Type() {
				case "modifiers":
				case "variable_declarator":
					param.Name = w.text(c.ChildByFieldName("name"))
				default:
					if param.Type.Name == "" && !param.Type.Primitive {
						param.Type = w.typeRef(c, f)
					}
				}
			}
			out = append(out, param)
		}
	}
	return out
}

func (w *walker) method(n *sitter.Node, f frame) {
	m := Method{
		Name: w.text(n.ChildByFieldName("name")),
		Span: spanOf(n),
	}
	mf := f.withScope()
	mf.tvars = f.tvars.with(w.typeParams(n))

	switch n.Type() {
	case "constructor_declaration", "compact_constructor_declaration":
		m.Constructor = true
	default:
		if rt := n.ChildByFieldName("type"); rt != nil {
			t := w.typeRef(rt, mf)
			m.Return = &t
		}
	}

	if params := n.ChildByFieldName("parameters"); params != nil {
		m.Params = w.params(params, mf)
		for _, p := range m.Params {
			mf.scope.declare(p.Name, p.Type)
		}
	}

	if !f.anonymous && f.decl != nil && m.Name != "" {
		f.decl.Methods = append(f.decl.Methods, m)
	}

	if body := n.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, mf)
	}
	w.walk(n.ChildByFieldName("value"), mf)
}

// declarators returns the variable_declarator children of n.
func declarators(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "variable_declarator" {
			out = append(out, c)
		}
	}
	return out
}

func (w *walker) field(n *sitter.Node, f frame) {
	t := w.typeRef(n.ChildByFieldName("type"), f)
	var names []string
	for _, d := range declarators(n) {
		names = append(names, w.text(d.ChildByFieldName("name")))
		w.walk(d.ChildByFieldName("value"), f)
	}
	if !f.anonymous && f.decl != nil {
		f.decl.Fields = append(f.decl.Fields, Field{Type: t, Names: names})
	}
}

func (w *walker) local(n *sitter.Node, f frame) {
	t := w.typeRef(n.ChildByFieldName("type"), f)
	decls := declarators(n)

	if t.Inferred && len(decls) > 0 {
		if v := decls[0].ChildByFieldName("value"); v != nil && v.Type() == "object_creation_expression" {
			inferred := w.typeRef(v.ChildByFieldName("type"), f)
			t.Name = inferred.Name
			t.TypeVar = inferred.TypeVar
		}
	}

	site := &LocalSite{Type: t, Line: line(n), Enclosing: f.decl}
	for _, d := range decls {
		// Initializers are walked before the name is visible.
		w.walk(d.ChildByFieldName("value"), f)
		name := w.text(d.ChildByFieldName("name"))
		site.Names = append(site.Names, name)
		f.scope.declare(name, t)
	}
	w.file.Locals = append(w.file.Locals, site)
}

func (w *walker) enhancedFor(n *sitter.Node, f frame) {
	w.walk(n.ChildByFieldName("value"), f)
	if tn := n.ChildByFieldName("type"); tn != nil {
		t := w.typeRef(tn, f)
		name := w.text(n.ChildByFieldName("name"))
		f.scope.declare(name, t)
		w.file.Locals = append(w.file.Locals, &LocalSite{
			Type: t, Names: []string{name}, Line: line(n), Enclosing: f.decl,
		})
	}
	w.walk(n.ChildByFieldName("body"), f)
}

func (w *walker) catchClause(n *sitter.Node, f frame) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "catch_formal_parameter" {
			w.walk(c, f)
			continue
		}
		name := w.text(c.ChildByFieldName("name"))
		for j := 0; j < int(c.NamedChildCount()); j++ {
			if ct := c.NamedChild(j); ct.Type() == "catch_type" && ct.NamedChildCount() > 0 {
				f.scope.declare(name, w.typeRef(ct.NamedChild(0), f))
			}
		}
	}
}

func (w *walker) resource(n *sitter.Node, f frame) {
	tn := n.ChildByFieldName("type")
	w.walk(n.ChildByFieldName("value"), f)
	if tn == nil {
		return
	}
	t := w.typeRef(tn, f)
	name := w.text(n.ChildByFieldName("name"))
	f.scope.declare(name, t)
	w.file.Locals = append(w.file.Locals, &LocalSite{
		Type: t, Names: []string{name}, Line: line(n), Enclosing: f.decl,
	})
}

func (w *walker) lambda(n *sitter.Node, f frame) {
	if params := n.ChildByFieldName("parameters"); params != nil && params.Type() == "formal_parameters" {
		for _, p := range w.params(params, f) {
			f.scope.declare(p.Name, p.Type)
		}
	}
	w.walk(n.ChildByFieldName("body"), f)
}

func argCount(args *sitter.Node) int {
	if args == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if !isComment(args.NamedChild(i)) {
			count++
		}
	}
	return count
}

func (w *walker) call(n *sitter.Node, f frame) {
	obj := n.ChildByFieldName("object")
	args := n.ChildByFieldName("arguments")

	site := &CallSite{
		Method:    w.text(n.ChildByFieldName("name")),
		ArgCount:  argCount(args),
		Line:      line(n),
		Enclosing: f.decl,
	}
	if obj != nil {
		site.Receiver = w.expr(obj, f)
	}
	if site.Method != "" {
		w.file.Calls = append(w.file.Calls, site)
	}

	w.walk(obj, f)
	w.walk(args, f)
}

func (w *walker) creation(n *sitter.Node, f frame) {
	if tn := n.ChildByFieldName("type"); tn != nil {
		w.file.Creations = append(w.file.Creations, &CreationSite{
			Type:      w.typeRef(tn, f),
			Line:      line(n),
			Enclosing: f.decl,
		})
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "class_body":
			af := f.withScope()
			af.anonymous = true
			w.walkChildren(c, af)
		case "argument_list":
			w.walk(c, f)
		case "type_identifier", "scoped_type_identifier", "generic_type", "type_arguments":
		default:
			// Qualified creation: outer.new Inner().
			w.walk(c, f)
		}
	}
}

// expr converts a receiver expression into its minimal typed shape.
func (w *walker) expr(n *sitter.Node, f frame) *Expr {
	e := &Expr{Kind: ExprOther, Text: compact(w.text(n))}

	switch n.Type() {
	case "identifier":
		e.Kind = ExprName
		e.Name = w.text(n)
		if t, ok := f.scope.lookup(e.Name); ok {
			lt := t
			e.LocalType = &lt
		}

	case "this":
		e.Kind = ExprThis

	case "super":
		e.Kind = ExprSuper

	case "field_access":
		field := n.ChildByFieldName("field")
		obj := n.ChildByFieldName("object")
		if field == nil || obj == nil || field.Type() == "this" {
			return e
		}
		e.Kind = ExprField
		e.Name = w.text(field)
		e.Target = w.expr(obj, f)

	case "method_invocation":
		e.Kind = ExprCall
		e.Name = w.text(n.ChildByFieldName("name"))
		if obj := n.ChildByFieldName("object"); obj != nil {
			e.Target = w.expr(obj, f)
		}

	case "object_creation_expression":
		if tn := n.ChildByFieldName("type"); tn != nil {
			t := w.typeRef(tn, f)
			e.Kind = ExprNew
			e.Type = &t
		}

	case "cast_expression":
		if tn := n.ChildByFieldName("type"); tn != nil {
			t := w.typeRef(tn, f)
			e.Kind = ExprCast
			e.Type = &t
		}

	case "parenthesized_expression":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); !isComment(c) {
				return w.expr(c, f)
			}
		}

	case "string_literal", "text_block":
		e.Kind = ExprString
	}

	return e
}

// typeRef reduces a type node to its erasure.
func (w *walker) typeRef(n *sitter.Node, f frame) TypeRef {
	if n == nil {
		return TypeRef{}
	}
	t := TypeRef{Line: line(n)}

	switch n.Type() {
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		t.Name = w.text(n)
		t.Primitive = true

	case "type_identifier", "identifier":
		t.Name = w.text(n)
		if t.Name == "var" {
			t.Name = ""
			t.Inferred = true
		} else {
			t.TypeVar = f.tvars.has(t.Name)
		}

	case "scoped_type_identifier":
		t.Name = w.erasedName(n)

	case "generic_type":
		if n.NamedChildCount() > 0 {
			inner := w.typeRef(n.NamedChild(0), f)
			inner.Line = t.Line
			return inner
		}

	case "array_type":
		inner := w.typeRef(n.ChildByFieldName("element"), f)
		inner.Line = t.Line
		return inner

	case "annotated_type":
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			c := n.NamedChild(i)
			if c.Type() != "annotation" && c.Type() != "marker_annotation" {
				return w.typeRef(c, f)
			}
		}

	default:
		t.Name = compact(w.text(n))
	}

	return t
}

// erasedName joins the identifier parts of a scoped type, dropping type
// arguments and annotations.
func (w *walker) erasedName(n *sitter.Node) string {
	var parts []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "type_identifier", "identifier":
			parts = append(parts, w.text(c))
		case "scoped_type_identifier":
			parts = append(parts, w.erasedName(c))
		case "generic_type":
			if c.NamedChildCount() > 0 {
				first := c.NamedChild(0)
				if first.Type() == "scoped_type_identifier" {
					parts = append(parts, w.erasedName(first))
				} else {
					parts = append(parts, w.text(first))
				}
			}
		}
	}
	return strings.Join(parts, ".")
}
