// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// METHOD NAMES
// =============================================================================

const (
	MethodInitialize            = "initialize"
	MethodInitialized           = "initialized"
	MethodShutdown              = "shutdown"
	MethodExit                  = "exit"
	MethodDidOpen               = "textDocument/didOpen"
	MethodDidChange             = "textDocument/didChange"
	MethodDidSave               = "textDocument/didSave"
	MethodDidClose              = "textDocument/didClose"
	MethodDidChangeWatchedFiles = "workspace/didChangeWatchedFiles"
	MethodSetTrace              = "$/setTrace"
	MethodCancelRequest         = "$/cancelRequest"

	// MethodFileDependencyGraph returns the node-link graph of one file.
	MethodFileDependencyGraph = "dependviz/getFileDependencyGraph"

	// MethodDependencyGraph returns the node-link graph of the workspace.
	MethodDependencyGraph = "dependviz/getDependencyGraph"
)

// =============================================================================
// DOCUMENT IDENTIFIERS
// =============================================================================

// TextDocumentIdentifier identifies a text document by URI.
type TextDocumentIdentifier struct {
	// URI is the document's URI.
	URI string `json:"uri"`
}

// TextDocumentItem represents a text document with its content.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int32  `json:"version"`
	Text       string `json:"text"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a document.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier

	// Version is the version number. Null means the version is unknown.
	Version *int32 `json:"version"`
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// WorkspaceFolder is a root folder open in the editor.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// InitializeParams contains the fields of initialize the server reads.
type InitializeParams struct {
	ProcessID        *int              `json:"processId"`
	RootURI          *string           `json:"rootUri"`
	RootPath         *string           `json:"rootPath,omitempty"`
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// Root returns the workspace root path the client announced, "" if none.
// rootUri wins over rootPath, which wins over the first workspace folder.
func (p *InitializeParams) Root() string {
	if p.RootURI != nil && *p.RootURI != "" {
		return uriToPath(*p.RootURI)
	}
	if p.RootPath != nil && *p.RootPath != "" {
		return *p.RootPath
	}
	if len(p.WorkspaceFolders) > 0 && p.WorkspaceFolders[0].URI != "" {
		return uriToPath(p.WorkspaceFolders[0].URI)
	}
	return ""
}

// TextDocumentSyncKind defines how the client sends document changes.
type TextDocumentSyncKind int

const (
	SyncNone        TextDocumentSyncKind = 0
	SyncFull        TextDocumentSyncKind = 1
	SyncIncremental TextDocumentSyncKind = 2
)

// TextDocumentSyncOptions describes the document sync capability.
type TextDocumentSyncOptions struct {
	OpenClose bool                 `json:"openClose"`
	Change    TextDocumentSyncKind `json:"change"`
	Save      bool                 `json:"save"`
}

// ServerCapabilities lists the features the server provides.
type ServerCapabilities struct {
	TextDocumentSync TextDocumentSyncOptions `json:"textDocumentSync"`
}

// ServerInfo names the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeResult is the response to initialize.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// =============================================================================
// DOCUMENT SYNC
// =============================================================================

// DidOpenTextDocumentParams contains params for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams contains params for textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument VersionedTextDocumentIdentifier `json:"textDocument"`

	// ContentChanges is the list of changes. With full sync the last entry
	// holds the whole document.
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// TextDocumentContentChangeEvent describes a content change event.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

// DidSaveTextDocumentParams contains params for textDocument/didSave.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

// DidCloseTextDocumentParams contains params for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// FileChangeType is the kind of a watched file event.
type FileChangeType int

const (
	FileCreated FileChangeType = 1
	FileChanged FileChangeType = 2
	FileDeleted FileChangeType = 3
)

// FileEvent is a watched file event.
type FileEvent struct {
	URI  string         `json:"uri"`
	Type FileChangeType `json:"type"`
}

// DidChangeWatchedFilesParams contains params for workspace/didChangeWatchedFiles.
type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

// =============================================================================
// DEPENDENCY GRAPH REQUESTS
// =============================================================================

// FileGraphParams is the argument of dependviz/getFileDependencyGraph.
//
// Editors send the URI as a bare string, as a one-element array, or as an
// object with a uri field; all three decode to the same value.
type FileGraphParams struct {
	URI string
}

// UnmarshalJSON accepts "uri", ["uri"] and {"uri": "uri"}.
func (p *FileGraphParams) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("%w: missing uri", ErrInvalidParams)
	}

	switch trimmed[0] {
	case '"':
		return json.Unmarshal(data, &p.URI)
	case '[':
		var args []json.RawMessage
		if err := json.Unmarshal(data, &args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		if len(args) == 0 {
			return fmt.Errorf("%w: empty argument list", ErrInvalidParams)
		}
		return p.UnmarshalJSON(args[0])
	case '{':
		var obj struct {
			URI          string                  `json:"uri"`
			TextDocument *TextDocumentIdentifier `json:"textDocument"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		p.URI = obj.URI
		if p.URI == "" && obj.TextDocument != nil {
			p.URI = obj.TextDocument.URI
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported uri argument %s", ErrInvalidParams, trimmed)
	}
}
