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

	"github.com/AleutianAI/depviz/services/depviz/ast"
)

// Reference is one resolvable site in a unit: either a type as written or
// a method call.
type Reference struct {
	// Type is the written type; nil for call references.
	Type *ast.TypeRef

	// Call is the invocation; nil for type references.
	Call *ast.CallSite

	// Scope is the declaration the reference appears in, nil at top level.
	Scope *ast.TypeDecl
}

// TypeReference builds a Reference for a written type.
func TypeReference(t ast.TypeRef, scope *ast.TypeDecl) Reference {
	return Reference{Type: &t, Scope: scope}
}

// CallReference builds a Reference for a method invocation. The result
// names the declaring type of the invoked method.
func CallReference(c *ast.CallSite) Reference {
	return Reference{Call: c, Scope: c.Enclosing}
}

// Resolver answers per-reference resolution queries. Each call may fail
// independently; a failure affects only that reference.
type Resolver interface {
	Resolve(ref Reference) (string, error)
}

// Unit is a parsed file together with its resolver.
type Unit struct {
	*ast.File

	resolver Resolver
}

// NewUnit binds file to resolver.
func NewUnit(file *ast.File, resolver Resolver) *Unit {
	return &Unit{File: file, resolver: resolver}
}

// Resolve resolves ref, failing with ErrUnresolved when the unit has no
// resolver.
func (u *Unit) Resolve(ref Reference) (string, error) {
	if u == nil || u.resolver == nil {
		return "", ErrUnresolved
	}
	return u.resolver.Resolve(ref)
}

// ResolveType resolves a written type in scope.
func (u *Unit) ResolveType(t ast.TypeRef, scope *ast.TypeDecl) (string, error) {
	if !t.Resolvable() {
		return "", fmt.Errorf("%w: %q is not a declared type", ErrUnresolved, t.Name)
	}
	return u.Resolve(TypeReference(t, scope))
}

// ResolveCall resolves the declaring type of an invoked method.
func (u *Unit) ResolveCall(c *ast.CallSite) (string, error) {
	return u.Resolve(CallReference(c))
}

// StaticResolver is a scripted Resolver. Types are keyed by written name,
// calls by method name. Missing keys are unresolved.
type StaticResolver struct {
	Types map[string]string
	Calls map[string]string
}

// Resolve implements Resolver.
func (s StaticResolver) Resolve(ref Reference) (string, error) {
	switch {
	case ref.Type != nil:
		if fqn, ok := s.Types[ref.Type.Name]; ok {
			return fqn, nil
		}
		return "", fmt.Errorf("%w: type %q", ErrUnresolved, ref.Type.Name)
	case ref.Call != nil:
		if fqn, ok := s.Calls[ref.Call.Method]; ok {
			return fqn, nil
		}
		return "", fmt.Errorf("%w: call %q", ErrUnresolved, ref.Call.Method)
	default:
		return "", ErrUnresolved
	}
}
