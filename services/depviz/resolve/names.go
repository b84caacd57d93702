// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/AleutianAI/depviz/services/depviz/ast"
)

// maxHierarchyDepth bounds inherited member-type lookups, which recurse
// through supertype resolution.
const maxHierarchyDepth = 8

// javaLang holds the java.lang types visible without an import.
var javaLang = map[string]bool{
	"AutoCloseable": true, "Boolean": true, "Byte": true, "CharSequence": true,
	"Character": true, "Class": true, "ClassCastException": true,
	"CloneNotSupportedException": true, "Cloneable": true, "Comparable": true,
	"Deprecated": true, "Double": true, "Enum": true, "Error": true,
	"Exception": true, "Float": true, "FunctionalInterface": true,
	"IllegalArgumentException": true, "IllegalStateException": true,
	"IndexOutOfBoundsException": true, "Integer": true,
	"InterruptedException": true, "Iterable": true, "Long": true, "Math": true,
	"NullPointerException": true, "Number": true, "Object": true,
	"Override": true, "Process": true, "Record": true, "Runnable": true,
	"Runtime": true, "RuntimeException": true, "SafeVarargs": true,
	"Short": true, "StackTraceElement": true, "String": true,
	"StringBuffer": true, "StringBuilder": true, "SuppressWarnings": true,
	"System": true, "Thread": true, "ThreadLocal": true, "Throwable": true,
	"UnsupportedOperationException": true, "Void": true,
}

// env is the naming context of a reference: the file's package and
// imports plus the innermost enclosing declaration.
type env struct {
	pkg     string
	imports []ast.Import
	scope   string
}

// unitResolver resolves references of one file against the index, with the
// file's own declarations taking precedence over stale index entries.
//
// Thread Safety: Safe for concurrent use.
type unitResolver struct {
	index *Index
	file  *ast.File
	local map[string]*Symbol

	mu     sync.Mutex
	supers map[string][]string
}

func newUnitResolver(index *Index, file *ast.File) *unitResolver {
	r := &unitResolver{
		index:  index,
		file:   file,
		local:  make(map[string]*Symbol),
		supers: make(map[string][]string),
	}
	for _, s := range SymbolsFromFile(file) {
		r.local[s.FQN] = s
	}
	return r
}

// Resolve implements Resolver.
func (r *unitResolver) Resolve(ref Reference) (string, error) {
	switch {
	case ref.Type != nil:
		if !ref.Type.Resolvable() {
			return "", fmt.Errorf("%w: %q is not a declared type", ErrUnresolved, ref.Type.Name)
		}
		if fqn, ok := r.resolveName(ref.Type.Name, r.fileEnv(ref.Scope), 0); ok {
			return fqn, nil
		}
		return "", fmt.Errorf("%w: type %q", ErrUnresolved, ref.Type.Name)

	case ref.Call != nil:
		if fqn, ok := r.resolveCall(ref.Call); ok {
			return fqn, nil
		}
		return "", fmt.Errorf("%w: call %q", ErrUnresolved, ref.Call.Method)

	default:
		return "", ErrUnresolved
	}
}

func (r *unitResolver) fileEnv(scope *ast.TypeDecl) env {
	e := env{pkg: r.file.Package, imports: r.file.Imports}
	if scope != nil {
		e.scope = scope.QualifiedName
	}
	return e
}

// memberEnv is the context for names written inside the body of sym.
func memberEnv(sym *Symbol) env {
	return env{pkg: sym.Package, imports: sym.Imports, scope: sym.FQN}
}

// headerEnv is the context for the supertypes written in sym's header.
func headerEnv(sym *Symbol) env {
	return env{pkg: sym.Package, imports: sym.Imports, scope: sym.Outer}
}

func (r *unitResolver) lookup(fqn string) (*Symbol, bool) {
	if s, ok := r.local[fqn]; ok {
		return s, true
	}
	if r.index == nil {
		return nil, false
	}
	s, ok := r.index.Lookup(fqn)
	if ok && s.Path != "" && s.Path == r.file.Path {
		// Superseded by the unit's own declarations.
		return nil, false
	}
	return s, ok
}

func (r *unitResolver) outerOf(fqn string) string {
	if s, ok := r.lookup(fqn); ok {
		return s.Outer
	}
	return ""
}

// resolveName resolves a possibly dotted type name.
func (r *unitResolver) resolveName(name string, e env, depth int) (string, bool) {
	if name == "" {
		return "", false
	}
	first, rest, dotted := strings.Cut(name, ".")
	if fqn, ok := r.resolveSimple(first, e, depth); ok {
		if dotted {
			return fqn + "." + rest, true
		}
		return fqn, true
	}
	if dotted && startsLower(first) {
		// Fully qualified as written.
		return name, true
	}
	return "", false
}

func (r *unitResolver) resolveSimple(name string, e env, depth int) (string, bool) {
	for s := e.scope; s != ""; s = r.outerOf(s) {
		if _, ok := r.lookup(s + "." + name); ok {
			return s + "." + name, true
		}
		if depth < maxHierarchyDepth {
			for _, super := range r.hierarchy(s, depth+1)[1:] {
				if _, ok := r.lookup(super + "." + name); ok {
					return super + "." + name, true
				}
			}
		}
	}

	for _, imp := range e.imports {
		if imp.Static || imp.Wildcard {
			continue
		}
		if _, last := splitLast(imp.Path); last == name {
			return imp.Path, true
		}
	}

	if candidate := qualify(e.pkg, name); r.exists(candidate) {
		return candidate, true
	}

	for _, imp := range e.imports {
		if !imp.Wildcard {
			continue
		}
		if candidate := imp.Path + "." + name; r.exists(candidate) {
			return candidate, true
		}
	}

	if javaLang[name] {
		return "java.lang." + name, true
	}
	return "", false
}

func (r *unitResolver) exists(fqn string) bool {
	_, ok := r.lookup(fqn)
	return ok
}

// directSupers returns the resolved superclass and interfaces of fqn.
func (r *unitResolver) directSupers(fqn string, depth int) []string {
	r.mu.Lock()
	cached, ok := r.supers[fqn]
	r.mu.Unlock()
	if ok {
		return cached
	}

	sym, found := r.lookup(fqn)
	if !found {
		return nil
	}

	// Mark in progress so cyclic headers terminate.
	r.mu.Lock()
	r.supers[fqn] = nil
	r.mu.Unlock()

	var out []string
	e := headerEnv(sym)
	refs := make([]ast.TypeRef, 0, len(sym.Interfaces)+1)
	if sym.Superclass != nil {
		refs = append(refs, *sym.Superclass)
	}
	refs = append(refs, sym.Interfaces...)
	for _, t := range refs {
		if !t.Resolvable() {
			continue
		}
		if super, ok := r.resolveName(t.Name, e, depth); ok && super != fqn {
			out = append(out, super)
		}
	}

	r.mu.Lock()
	r.supers[fqn] = out
	r.mu.Unlock()
	return out
}

// hierarchy returns fqn followed by its transitive supertypes in
// breadth-first order.
func (r *unitResolver) hierarchy(fqn string, depth int) []string {
	out := []string{fqn}
	seen := map[string]bool{fqn: true}
	for i := 0; i < len(out); i++ {
		for _, s := range r.directSupers(out[i], depth) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// findMethod returns the type declaring a method named name, preferring an
// arity match anywhere in the hierarchy. argc < 0 matches any arity.
func (r *unitResolver) findMethod(fqn, name string, argc int) (string, Signature, bool) {
	chain := r.hierarchy(fqn, 0)
	if argc >= 0 {
		for _, t := range chain {
			if sym, ok := r.lookup(t); ok {
				for _, sig := range sym.Methods[name] {
					if sig.Params == argc {
						return t, sig, true
					}
				}
			}
		}
	}
	for _, t := range chain {
		if sym, ok := r.lookup(t); ok {
			if sigs := sym.Methods[name]; len(sigs) > 0 {
				return t, sigs[0], true
			}
		}
	}
	return "", Signature{}, false
}

// findField returns the declared type of a field and its owner.
func (r *unitResolver) findField(fqn, name string) (ast.TypeRef, *Symbol, bool) {
	for _, t := range r.hierarchy(fqn, 0) {
		if sym, ok := r.lookup(t); ok {
			if ft, ok := sym.Fields[name]; ok {
				return ft, sym, true
			}
		}
	}
	return ast.TypeRef{}, nil, false
}

func (r *unitResolver) resolveCall(c *ast.CallSite) (string, bool) {
	e := r.fileEnv(c.Enclosing)
	recv := c.Receiver

	switch {
	case recv == nil:
		for s := e.scope; s != ""; s = r.outerOf(s) {
			if decl, _, ok := r.findMethod(s, c.Method, c.ArgCount); ok {
				return decl, true
			}
		}
		return r.staticImport(c.Method, e.imports)

	case recv.Kind == ast.ExprThis:
		if e.scope == "" {
			return "", false
		}
		decl, _, ok := r.findMethod(e.scope, c.Method, c.ArgCount)
		return decl, ok

	case recv.Kind == ast.ExprSuper:
		if e.scope == "" {
			return "", false
		}
		supers := r.directSupers(e.scope, 0)
		for _, s := range supers {
			if decl, _, ok := r.findMethod(s, c.Method, c.ArgCount); ok {
				return decl, true
			}
		}
		if len(supers) > 0 {
			return supers[0], true
		}
		return "", false

	default:
		t, ok := r.typeOf(recv, e)
		if !ok {
			return "", false
		}
		if decl, _, ok := r.findMethod(t, c.Method, c.ArgCount); ok {
			return decl, true
		}
		return t, true
	}
}

func (r *unitResolver) staticImport(method string, imports []ast.Import) (string, bool) {
	for _, imp := range imports {
		if !imp.Static || imp.Wildcard {
			continue
		}
		if owner, last := splitLast(imp.Path); last == method && owner != "" {
			return owner, true
		}
	}
	for _, imp := range imports {
		if !imp.Static || !imp.Wildcard {
			continue
		}
		if _, _, ok := r.findMethod(imp.Path, method, -1); ok {
			return imp.Path, true
		}
	}
	return "", false
}

func (r *unitResolver) resolveRef(t *ast.TypeRef, e env) (string, bool) {
	if t == nil || !t.Resolvable() {
		return "", false
	}
	return r.resolveName(t.Name, e, 0)
}

// typeOf names the static type of a receiver expression.
func (r *unitResolver) typeOf(x *ast.Expr, e env) (string, bool) {
	switch x.Kind {
	case ast.ExprName:
		if x.LocalType != nil {
			return r.resolveRef(x.LocalType, e)
		}
		for s := e.scope; s != ""; s = r.outerOf(s) {
			if ft, owner, ok := r.findField(s, x.Name); ok {
				return r.resolveRef(&ft, memberEnv(owner))
			}
		}
		return r.resolveName(x.Name, e, 0)

	case ast.ExprThis:
		return e.scope, e.scope != ""

	case ast.ExprSuper:
		if e.scope == "" {
			return "", false
		}
		if supers := r.directSupers(e.scope, 0); len(supers) > 0 {
			return supers[0], true
		}
		return "", false

	case ast.ExprField:
		if x.Target != nil {
			if owner, ok := r.typeOf(x.Target, e); ok {
				if ft, sym, ok := r.findField(owner, x.Name); ok {
					return r.resolveRef(&ft, memberEnv(sym))
				}
				if nested := owner + "." + x.Name; r.exists(nested) {
					return nested, true
				}
			}
		}
		// A dotted receiver that is not a variable chain names a type.
		return r.resolveName(x.Text, e, 0)

	case ast.ExprCall:
		base := e.scope
		if x.Target != nil {
			t, ok := r.typeOf(x.Target, e)
			if !ok {
				return "", false
			}
			base = t
		}
		if base == "" {
			return "", false
		}
		decl, sig, ok := r.findMethod(base, x.Name, -1)
		if !ok {
			return "", false
		}
		sym, ok := r.lookup(decl)
		if !ok {
			return "", false
		}
		return r.resolveRef(sig.Return, memberEnv(sym))

	case ast.ExprNew, ast.ExprCast:
		return r.resolveRef(x.Type, e)

	case ast.ExprString:
		return "java.lang.String", true

	default:
		return "", false
	}
}

func startsLower(s string) bool {
	for _, c := range s {
		return unicode.IsLower(c)
	}
	return false
}
