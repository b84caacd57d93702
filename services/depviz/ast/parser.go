// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast parses Java compilation units with tree-sitter into the
// declaration tree consumed by the resolver and the extractors.
package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

const (
	// DefaultMaxFileSize is the maximum file size the parser accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024

	// JavaExtension is the only extension the parser handles.
	JavaExtension = ".java"
)

// IsJavaFile reports whether path names a Java source file.
func IsJavaFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), JavaExtension)
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxFileSize sets the maximum accepted content size. Non-positive
// values are ignored.
func WithMaxFileSize(bytes int64) ParserOption {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithLogger sets the logger for parse warnings.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Parser extracts the declaration tree of a Java compilation unit.
//
// Thread Safety: Safe for concurrent use. A tree-sitter parser is created
// per call.
type Parser struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds a File from Java source.
//
// Description:
//
//	Parses content with the tree-sitter Java grammar and walks the tree
//	collecting type declarations (with supertypes, fields and method
//	signatures), method invocations, object creations and local variable
//	declarations. Each site records its nearest enclosing declaration.
//
// Inputs:
//
//	ctx      - Context for cancellation.
//	content  - Source bytes. Must be valid UTF-8.
//	filePath - Origin of the content; may be empty for in-memory sources.
//
// Outputs:
//
//	*File - The declaration tree. Syntax errors are reported in File.Errors
//	        and File.ErrorLine rather than as an error.
//	error - Non-nil when no tree could be produced (*ParseError wrapping
//	        ErrInvalidContent, ErrFileTooLarge or ErrParseFailed).
//
// Thread Safety: Safe for concurrent use.
func (p *Parser) Parse(ctx context.Context, content []byte, filePath string) (*File, error) {
	ctx, span := startParseSpan(ctx, filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if content == nil {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, newParseError(filePath, "nil content", ErrInvalidContent)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, newParseError(filePath,
			fmt.Sprintf("size %d exceeds limit %d", len(content), p.maxFileSize), ErrFileTooLarge)
	}

	if len(content) > WarnFileSize {
		p.logger.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, newParseError(filePath, "content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, newParseError(filePath, "tree-sitter parse failed", fmt.Errorf("%w: %v", ErrParseFailed, err))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		return nil, newParseError(filePath, "tree-sitter returned nil root node", ErrParseFailed)
	}

	file := &File{
		Path:          filePath,
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Imports:       make([]Import, 0),
		Types:         make([]*TypeDecl, 0),
	}

	if root.HasError() {
		line := firstErrorLine(root)
		file.ErrorLine = line
		file.Errors = append(file.Errors, fmt.Sprintf("line %d: source contains syntax errors", line))
	}

	w := &walker{content: content, file: file}
	w.walkProgram(root)

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, time.Since(start), len(file.Types), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, len(file.Types), len(file.Errors))
	recordParseMetrics(ctx, time.Since(start), len(file.Types), true)

	return file, nil
}

// firstErrorLine returns the 1-indexed line of the first ERROR or MISSING
// node in document order.
func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.HasError() && !c.IsMissing() {
			continue
		}
		if line := firstErrorLine(c); line > 0 {
			return line
		}
	}
	return int(n.StartPoint().Row) + 1
}
