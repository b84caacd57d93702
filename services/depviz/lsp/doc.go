// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lsp serves dependency graphs to editors over the Language Server
// Protocol.
//
// # Architecture
//
//	┌──────────┐  didOpen/didChange   ┌──────────┐  OpenAsync/Change  ┌───────────┐
//	│  Editor  │ ───────────────────► │  Server  │ ─────────────────► │ FileCache │
//	│          │ ◄─────────────────── │          │ ◄───────────────── │           │
//	└──────────┘  node-link JSON      └────┬─────┘  Query             └─────┬─────┘
//	                                       │ Put/Delete                     │ AnalyzeFile
//	                                       ▼                                ▼
//	                                 ┌──────────┐      Read          ┌───────────┐
//	                                 │ docstore │ ◄───────────────── │ Analyzer  │
//	                                 └──────────┘                    └───────────┘
//
// # Components
//
//   - Protocol: Content-Length framed JSON-RPC 2.0, usable by either peer
//   - Server: lifecycle, document sync and the dependviz/* requests
//
// # Custom Requests
//
//   - dependviz/getFileDependencyGraph(uri) returns the node-link JSON of one
//     file as a string; any failure returns the empty graph.
//   - dependviz/getDependencyGraph() returns the node-link JSON of the whole
//     workspace.
//
// # Example
//
//	srv := lsp.NewServer(fileCache, analyzer, docs, lsp.WithLogger(logger))
//	code, err := srv.Serve(ctx, os.Stdin, os.Stdout)
package lsp
