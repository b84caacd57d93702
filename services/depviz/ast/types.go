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

import "strings"

// DeclKind is the syntactic kind of a type declaration.
type DeclKind int

const (
	// DeclClass is a class (or record) declaration.
	DeclClass DeclKind = iota

	// DeclInterface is an interface declaration.
	DeclInterface

	// DeclEnum is an enum declaration.
	DeclEnum

	// DeclAnnotation is an annotation type declaration (@interface).
	DeclAnnotation
)

// String returns a lowercase name for logging.
func (k DeclKind) String() string {
	switch k {
	case DeclClass:
		return "class"
	case DeclInterface:
		return "interface"
	case DeclEnum:
		return "enum"
	case DeclAnnotation:
		return "annotation"
	default:
		return "unknown"
	}
}

// Span is a 1-indexed inclusive line range. The zero value means the
// declaration has no known source span.
type Span struct {
	StartLine int
	EndLine   int
}

// Known reports whether the span carries real positions.
func (s Span) Known() bool {
	return s.StartLine > 0 && s.EndLine >= s.StartLine
}

// Lines returns EndLine - StartLine + 1, or 0 for an unknown span.
func (s Span) Lines() int {
	if !s.Known() {
		return 0
	}
	return s.EndLine - s.StartLine + 1
}

// TypeRef is a type as written in source, reduced to its erasure.
//
// Generic arguments and array dimensions are dropped: `List<String>[]`
// becomes Name "List". Qualified names keep their dots ("java.util.List",
// "Map.Entry").
type TypeRef struct {
	// Name is the erased type name as written.
	Name string

	// Line is the 1-indexed line of the reference.
	Line int

	// Primitive is true for primitive types and void.
	Primitive bool

	// TypeVar is true when Name is a type parameter in scope.
	TypeVar bool

	// Inferred is true for `var` declarations; Name then holds the
	// initializer's constructed type if one was found, else "".
	Inferred bool
}

// Resolvable reports whether the reference can name a declared type.
func (r TypeRef) Resolvable() bool {
	return r.Name != "" && !r.Primitive && !r.TypeVar
}

// FirstSegment returns the part of Name before the first dot.
func (r TypeRef) FirstSegment() string {
	if i := strings.IndexByte(r.Name, '.'); i >= 0 {
		return r.Name[:i]
	}
	return r.Name
}

// Import is an import declaration.
type Import struct {
	// Path is the imported name without a trailing ".*".
	Path string

	// Static is true for `import static`.
	Static bool

	// Wildcard is true for on-demand imports (`.*`).
	Wildcard bool
}

// Field is a field declaration. One declaration may declare several names.
type Field struct {
	Type  TypeRef
	Names []string
}

// Param is a formal parameter.
type Param struct {
	Name string
	Type TypeRef
}

// Method is a method or constructor declaration.
type Method struct {
	Name string

	// Return is nil for constructors.
	Return *TypeRef

	Params []Param

	Constructor bool

	Span Span
}

// TypeDecl is a class-like declaration.
type TypeDecl struct {
	// Name is the simple name.
	Name string

	// QualifiedName is package + enclosing declarations + Name.
	QualifiedName string

	Kind DeclKind

	// Abstract is true when the declaration carries the abstract modifier.
	Abstract bool

	Span Span

	// Superclass is the class `extends` clause, nil when absent.
	Superclass *TypeRef

	// Interfaces holds `implements` for classes and enums and `extends`
	// for interfaces.
	Interfaces []TypeRef

	TypeParams []string

	Fields  []Field
	Methods []Method

	// Outer is the lexically enclosing declaration, nil for top-level types.
	Outer *TypeDecl
}

// Supertypes returns the declared superclass followed by the interfaces.
func (d *TypeDecl) Supertypes() []TypeRef {
	out := make([]TypeRef, 0, len(d.Interfaces)+1)
	if d.Superclass != nil {
		out = append(out, *d.Superclass)
	}
	return append(out, d.Interfaces...)
}

// ExprKind classifies a receiver expression.
type ExprKind int

const (
	// ExprOther is any expression the resolver cannot type.
	ExprOther ExprKind = iota

	// ExprName is a bare identifier.
	ExprName

	// ExprThis is `this`.
	ExprThis

	// ExprSuper is `super`.
	ExprSuper

	// ExprField is `target.name`.
	ExprField

	// ExprCall is `target.name(...)` or `name(...)`.
	ExprCall

	// ExprNew is `new T(...)`.
	ExprNew

	// ExprCast is `(T) value`.
	ExprCast

	// ExprString is a string literal.
	ExprString
)

// Expr is the minimal expression shape needed to type a call receiver.
type Expr struct {
	Kind ExprKind

	// Name is the identifier, field or method name.
	Name string

	// Target is the qualifier of a field access or call; nil when absent.
	Target *Expr

	// Type is set for ExprNew and ExprCast.
	Type *TypeRef

	// LocalType is set for ExprName when the identifier is a local
	// variable or parameter with a declared type.
	LocalType *TypeRef

	// Text is the source text, used to retry dotted names as types.
	Text string
}

// CallSite is a method invocation.
type CallSite struct {
	Method string

	// Receiver is nil for unqualified calls.
	Receiver *Expr

	ArgCount int
	Line     int

	// Enclosing is the nearest enclosing declaration, nil if none.
	Enclosing *TypeDecl
}

// CreationSite is an object construction expression.
type CreationSite struct {
	Type      TypeRef
	Line      int
	Enclosing *TypeDecl
}

// LocalSite is a local variable declaration.
type LocalSite struct {
	Type      TypeRef
	Names     []string
	Line      int
	Enclosing *TypeDecl
}

// File is the parse result for one compilation unit.
type File struct {
	// Path is the file origin; empty when the content has no known file.
	Path string

	Package string
	Imports []Import

	// Types lists every declaration in pre-order (outer before nested).
	Types []*TypeDecl

	Calls     []*CallSite
	Creations []*CreationSite
	Locals    []*LocalSite

	// Hash is the SHA256 of the parsed content.
	Hash string

	ParsedAtMilli int64

	// Errors holds non-fatal problems such as syntax errors.
	Errors []string

	// ErrorLine is the line of the first syntax error, 0 if none.
	ErrorLine int
}

// HasSyntaxErrors reports whether the parser flagged syntax errors.
func (f *File) HasSyntaxErrors() bool {
	return len(f.Errors) > 0
}

// TopLevel returns the declarations without an enclosing declaration.
func (f *File) TopLevel() []*TypeDecl {
	var out []*TypeDecl
	for _, d := range f.Types {
		if d.Outer == nil {
			out = append(out, d)
		}
	}
	return out
}
