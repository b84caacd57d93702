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
	"errors"
	"fmt"
)

// Sentinel errors for parse failures. Check with errors.Is.
var (
	// ErrParseFailed indicates tree-sitter produced no usable tree.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidContent indicates nil or non-UTF-8 content.
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileTooLarge indicates the content exceeds the parser's size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrUnsupportedFile indicates a path that is not a Java source file.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// ParseError wraps a parse failure with the file it occurred in.
//
// Example:
//
//	file, err := parser.Parse(ctx, content, "Foo.java")
//	var perr *ParseError
//	if errors.As(err, &perr) {
//	    log.Printf("%s: %s", perr.FilePath, perr.Message)
//	}
type ParseError struct {
	FilePath string

	// Line is 1-indexed, 0 when the failure has no location.
	Line int

	// Column is 0-indexed, only meaningful when Line > 0.
	Column int

	Message string
	Cause   error
}

// Error formats as "path:line:col: message" with missing parts omitted.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

func newParseError(path, msg string, cause error) *ParseError {
	return &ParseError{FilePath: path, Message: msg, Cause: cause}
}
