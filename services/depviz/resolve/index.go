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
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/depviz/services/depviz/ast"
)

// Signature is the part of a method declaration the resolver uses.
type Signature struct {
	Params int

	// Return is nil for constructors.
	Return *ast.TypeRef
}

// Symbol is an indexed type declaration with the file context needed to
// resolve the names written in it.
//
// Symbols MUST NOT be mutated after being added to an Index. To update a
// file, call AddFile again; it replaces every symbol the file declared.
type Symbol struct {
	// FQN is the fully-qualified name and the index key.
	FQN string

	// Name is the simple name.
	Name string

	Kind ast.DeclKind
	Path string

	Package string
	Imports []ast.Import

	// Outer is the FQN of the enclosing declaration, "" for top-level types.
	Outer string

	Superclass *ast.TypeRef
	Interfaces []ast.TypeRef

	Fields  map[string]ast.TypeRef
	Methods map[string][]Signature
}

// SymbolsFromFile converts the declarations of f into symbols.
func SymbolsFromFile(f *ast.File) []*Symbol {
	if f == nil {
		return nil
	}
	out := make([]*Symbol, 0, len(f.Types))
	for _, d := range f.Types {
		sym := &Symbol{
			FQN:        d.QualifiedName,
			Name:       d.Name,
			Kind:       d.Kind,
			Path:       f.Path,
			Package:    f.Package,
			Imports:    f.Imports,
			Superclass: d.Superclass,
			Interfaces: d.Interfaces,
			Fields:     make(map[string]ast.TypeRef),
			Methods:    make(map[string][]Signature),
		}
		if d.Outer != nil {
			sym.Outer = d.Outer.QualifiedName
		}
		for _, field := range d.Fields {
			for _, name := range field.Names {
				sym.Fields[name] = field.Type
			}
		}
		for _, m := range d.Methods {
			sym.Methods[m.Name] = append(sym.Methods[m.Name], Signature{
				Params: len(m.Params),
				Return: m.Return,
			})
		}
		out = append(out, sym)
	}
	return out
}

// Index is the workspace symbol table keyed by FQN.
//
// Thread Safety: Safe for concurrent use. Writes take an exclusive lock,
// lookups a shared lock.
type Index struct {
	mu      sync.RWMutex
	symbols map[string]*Symbol
	byFile  map[string][]string
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		symbols: make(map[string]*Symbol),
		byFile:  make(map[string][]string),
	}
}

// AddFile indexes the declarations of f, replacing whatever f.Path
// declared before. Returns the number of symbols added.
func (x *Index) AddFile(f *ast.File) int {
	if f == nil {
		return 0
	}
	syms := SymbolsFromFile(f)

	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeFileLocked(f.Path)
	names := make([]string, 0, len(syms))
	for _, s := range syms {
		x.symbols[s.FQN] = s
		names = append(names, s.FQN)
	}
	x.byFile[f.Path] = names
	return len(syms)
}

// RemoveFile drops the symbols declared by path. Returns the number removed.
func (x *Index) RemoveFile(path string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeFileLocked(path)
}

func (x *Index) removeFileLocked(path string) int {
	removed := 0
	for _, fqn := range x.byFile[path] {
		// A later file may have redeclared the name.
		if s, ok := x.symbols[fqn]; ok && s.Path == path {
			delete(x.symbols, fqn)
			removed++
		}
	}
	delete(x.byFile, path)
	return removed
}

// Lookup returns the symbol with the given FQN.
func (x *Index) Lookup(fqn string) (*Symbol, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.symbols[fqn]
	return s, ok
}

// Len returns the number of indexed symbols.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.symbols)
}

// Files returns the indexed file paths in sorted order.
func (x *Index) Files() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.byFile))
	for p := range x.byFile {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Package returns the FQNs of the top-level symbols in pkg, sorted.
func (x *Index) Package(pkg string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []string
	for fqn, s := range x.symbols {
		if s.Package == pkg && s.Outer == "" {
			out = append(out, fqn)
		}
	}
	sort.Strings(out)
	return out
}

// Clear removes every symbol.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.symbols = make(map[string]*Symbol)
	x.byFile = make(map[string][]string)
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func splitLast(name string) (string, string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
