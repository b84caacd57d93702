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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/depviz/services/depviz/analysis"
	"github.com/AleutianAI/depviz/services/depviz/cache"
	"github.com/AleutianAI/depviz/services/depviz/docstore"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/source"
)

// ServerName is reported in the initialize result.
const ServerName = "depviz"

// server lifecycle states
const (
	stateUninitialized int32 = iota
	stateRunning
	stateShutdown
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExternalPolicy sets how graph responses treat nodes without a source file.
func WithExternalPolicy(p graph.ExternalPolicy) ServerOption {
	return func(s *Server) {
		s.policy = p
	}
}

// WithVersion sets the version reported in the initialize result.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithRootListener registers fn to run after initialize configured the
// workspace root. fn runs on the read loop and must not block.
func WithRootListener(fn func(ctx context.Context, root string)) ServerOption {
	return func(s *Server) {
		s.onRoot = fn
	}
}

// Server is a JSON-RPC language server answering dependency graph queries.
//
// Description:
//
//	Document lifecycle notifications are handled in arrival order on the
//	read loop: buffer text goes to the document store, and the cache
//	takes a new version for the file before its analysis starts in the
//	background. Requests run on their own goroutines.
//
// Thread Safety: Serve must be called once. Handlers are safe to run
// concurrently.
type Server struct {
	cache    *cache.FileCache
	analyzer *analysis.Analyzer
	docs     *docstore.Store

	logger    *slog.Logger
	policy    graph.ExternalPolicy
	version   string
	onRoot    func(ctx context.Context, root string)
	sessionID string

	proto  *Protocol
	state  atomic.Int32
	exited atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a Server.
//
// Inputs:
//
//	fc       - Per-file graph cache. Must not be nil.
//	analyzer - Analyzer behind fc, used for whole-workspace requests. Must not be nil.
//	docs     - Open document store the analyzer reads through. May be nil.
func NewServer(fc *cache.FileCache, analyzer *analysis.Analyzer, docs *docstore.Store, opts ...ServerOption) *Server {
	s := &Server{
		cache:     fc,
		analyzer:  analyzer,
		docs:      docs,
		logger:    slog.Default(),
		policy:    graph.ExternalKeep,
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("session_id", s.sessionID))
	return s
}

// SessionID returns the identifier attached to this server's logs and spans.
func (s *Server) SessionID() string {
	return s.sessionID
}

// Serve reads messages from r and writes responses to w until exit is
// received or r ends.
//
// Outputs:
//
//	int   - Process exit code: 0 if exit followed shutdown, 1 otherwise.
//	error - Non-nil if the stream failed before exit.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.proto = NewProtocol(r, w)

	s.logger.Info("language server started")
	err := s.proto.ReadLoop(ctx, s.handle)
	s.wg.Wait()

	code := 1
	if s.state.Load() == stateShutdown {
		code = 0
	}
	if s.exited.Load() {
		s.logger.Info("language server exited", slog.Int("exit_code", code))
		return code, nil
	}
	if err != nil {
		s.logger.Error("language server stopped", slog.String("error", err.Error()))
		return 1, err
	}
	s.logger.Info("client disconnected", slog.Int("exit_code", code))
	return code, nil
}

// handle dispatches one message. Lifecycle messages run inline to keep
// their order; other requests run on their own goroutine.
func (s *Server) handle(ctx context.Context, msg *Message) {
	if msg.IsNotification() {
		s.handleNotification(ctx, msg)
		return
	}

	switch msg.Method {
	case MethodInitialize, MethodShutdown:
		s.handleRequest(ctx, msg)
	default:
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleRequest(ctx, msg)
		}()
	}
}

func (s *Server) handleRequest(ctx context.Context, msg *Message) {
	ctx, span := startMessageSpan(ctx, msg.Method, s.sessionID)
	defer span.End()
	start := time.Now()

	result, err := s.dispatch(ctx, msg)
	recordMessage(ctx, msg.Method, time.Since(start), err == nil)

	if err != nil {
		span.RecordError(err)
		rpcErr := toRPCError(err)
		s.logger.Debug("request failed",
			slog.String("method", msg.Method),
			slog.Int("code", rpcErr.Code),
			slog.String("error", err.Error()))
		if werr := s.proto.ReplyError(msg.ID, rpcErr); werr != nil {
			s.logger.Warn("writing error response failed", slog.String("error", werr.Error()))
		}
		return
	}
	if werr := s.proto.Reply(msg.ID, result); werr != nil {
		s.logger.Warn("writing response failed",
			slog.String("method", msg.Method),
			slog.String("error", werr.Error()))
	}
}

func (s *Server) dispatch(ctx context.Context, msg *Message) (interface{}, error) {
	state := s.state.Load()
	if msg.Method == MethodInitialize {
		if state != stateUninitialized {
			return nil, &RPCError{Code: CodeInvalidRequest, Message: "server already initialized"}
		}
		return s.initialize(ctx, msg.Params)
	}
	switch state {
	case stateUninitialized:
		return nil, ErrNotInitialized
	case stateShutdown:
		return nil, ErrShutdown
	}

	switch msg.Method {
	case MethodShutdown:
		s.state.Store(stateShutdown)
		s.logger.Info("shutdown requested")
		return nil, nil
	case MethodFileDependencyGraph:
		return s.fileDependencyGraph(ctx, msg.Params), nil
	case MethodDependencyGraph:
		return s.dependencyGraph(ctx), nil
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + msg.Method}
	}
}

func (s *Server) initialize(ctx context.Context, raw json.RawMessage) (*InitializeResult, error) {
	var params InitializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	}

	if root := params.Root(); root != "" {
		if err := s.cache.SetRoot(ctx, root); err == nil && s.onRoot != nil {
			s.onRoot(ctx, s.cache.Root())
		}
	} else {
		s.logger.Warn("client announced no workspace root")
	}

	s.state.Store(stateRunning)
	return &InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    SyncFull,
				Save:      true,
			},
		},
		ServerInfo: &ServerInfo{Name: ServerName, Version: s.version},
	}, nil
}

// fileDependencyGraph answers with node-link JSON. Every failure yields the
// empty graph.
func (s *Server) fileDependencyGraph(ctx context.Context, raw json.RawMessage) string {
	var params FileGraphParams
	if err := json.Unmarshal(raw, &params); err != nil || params.URI == "" {
		s.logger.Warn("file graph request without uri", slog.String("params", string(raw)))
		return graph.EmptyGraphJSON
	}
	path := uriToPath(params.URI)
	if !source.IsJavaFile(path) {
		return graph.EmptyGraphJSON
	}
	return s.encode(s.cache.Query(ctx, path))
}

func (s *Server) dependencyGraph(ctx context.Context) string {
	root := s.cache.Root()
	if root == "" {
		s.logger.Warn("workspace graph requested before root configured")
		return graph.EmptyGraphJSON
	}
	res, err := s.analyzer.AnalyzeProject(ctx, root)
	if err != nil {
		s.logger.Warn("workspace analysis failed",
			slog.String("root", root),
			slog.String("error", err.Error()))
		return graph.EmptyGraphJSON
	}
	return s.encode(res.Graph)
}

func (s *Server) encode(g *graph.CodeGraph) string {
	data, err := graph.MarshalNodeLink(s.policy.Apply(g), false)
	if err != nil {
		s.logger.Warn("encoding graph failed", slog.String("error", err.Error()))
		return graph.EmptyGraphJSON
	}
	return string(data)
}

func (s *Server) handleNotification(ctx context.Context, msg *Message) {
	if msg.Method == MethodExit {
		s.exited.Store(true)
		s.proto.Close()
		s.cancel()
		return
	}
	if s.state.Load() != stateRunning {
		return
	}

	ctx, span := startMessageSpan(ctx, msg.Method, s.sessionID)
	defer span.End()
	start := time.Now()

	var err error
	switch msg.Method {
	case MethodDidOpen:
		err = s.didOpen(ctx, msg.Params)
	case MethodDidChange:
		err = s.didChange(ctx, msg.Params)
	case MethodDidSave:
		err = s.didSave(ctx, msg.Params)
	case MethodDidClose:
		err = s.didClose(ctx, msg.Params)
	case MethodDidChangeWatchedFiles:
		err = s.didChangeWatchedFiles(ctx, msg.Params)
	default:
		return
	}
	recordMessage(ctx, msg.Method, time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("notification failed",
			slog.String("method", msg.Method),
			slog.String("error", err.Error()))
	}
}

func decodeParams(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// track waits for an analysis started by the cache and logs its failure.
func (s *Server) track(op, path string, done <-chan error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := <-done; err != nil {
			s.logger.Debug("background analysis did not store",
				slog.String("op", op),
				slog.String("file", path),
				slog.String("error", err.Error()))
		}
	}()
}

func (s *Server) putDocument(path string, version int32, text string) {
	if s.docs == nil {
		return
	}
	if err := s.docs.Put(path, version, []byte(text)); err != nil {
		s.logger.Warn("storing open document failed",
			slog.String("file", path),
			slog.String("error", err.Error()))
	}
}

func (s *Server) didOpen(ctx context.Context, raw json.RawMessage) error {
	var params DidOpenTextDocumentParams
	if err := decodeParams(raw, &params); err != nil {
		return err
	}
	path := uriToPath(params.TextDocument.URI)
	if !source.IsJavaFile(path) {
		return nil
	}
	s.putDocument(path, params.TextDocument.Version, params.TextDocument.Text)
	recordOpenDocuments(ctx, 1)
	s.track("Open", path, s.cache.OpenAsync(ctx, path))
	return nil
}

func (s *Server) didChange(ctx context.Context, raw json.RawMessage) error {
	var params DidChangeTextDocumentParams
	if err := decodeParams(raw, &params); err != nil {
		return err
	}
	path := uriToPath(params.TextDocument.URI)
	if !source.IsJavaFile(path) || len(params.ContentChanges) == 0 {
		return nil
	}
	var version int32
	if params.TextDocument.Version != nil {
		version = *params.TextDocument.Version
	}
	s.putDocument(path, version, params.ContentChanges[len(params.ContentChanges)-1].Text)
	s.track("Change", path, s.cache.ChangeAsync(ctx, path))
	return nil
}

func (s *Server) didSave(ctx context.Context, raw json.RawMessage) error {
	var params DidSaveTextDocumentParams
	if err := decodeParams(raw, &params); err != nil {
		return err
	}
	path := uriToPath(params.TextDocument.URI)
	if !source.IsJavaFile(path) {
		return nil
	}
	return s.cache.Save(ctx, path)
}

func (s *Server) didClose(ctx context.Context, raw json.RawMessage) error {
	var params DidCloseTextDocumentParams
	if err := decodeParams(raw, &params); err != nil {
		return err
	}
	path := uriToPath(params.TextDocument.URI)
	if !source.IsJavaFile(path) {
		return nil
	}
	if s.docs != nil {
		if err := s.docs.Delete(path); err != nil {
			return err
		}
	}
	recordOpenDocuments(ctx, -1)
	s.cache.Close(path)

	// The index still holds the buffer's declarations; reload from disk.
	if err := s.analyzer.Workspace().Refresh(ctx, path); err != nil && !errors.Is(err, source.ErrNotFound) {
		s.logger.Debug("index refresh after close failed",
			slog.String("file", path),
			slog.String("error", err.Error()))
	}
	return nil
}

func (s *Server) didChangeWatchedFiles(ctx context.Context, raw json.RawMessage) error {
	var params DidChangeWatchedFilesParams
	if err := decodeParams(raw, &params); err != nil {
		return err
	}
	ws := s.analyzer.Workspace()
	for _, ch := range params.Changes {
		path := uriToPath(ch.URI)
		if !source.IsJavaFile(path) {
			continue
		}
		if ch.Type == FileDeleted {
			ws.Remove(path)
		} else if err := ws.Refresh(ctx, path); err != nil {
			s.logger.Debug("index refresh failed",
				slog.String("file", path),
				slog.String("error", err.Error()))
		}
		s.cache.Invalidate(path)
	}
	return nil
}
